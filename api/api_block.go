// Copyright (c) 2019 Perlin
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

package api

import (
	"context"
	"strconv"
	"time"

	"github.com/perlin-network/evmledger"
	"github.com/perlin-network/evmledger/log"
	"github.com/perlin-network/evmledger/store"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fastjson"
)

const defaultBlockLimit = 100

type blockResponse struct {
	block *evmledger.Block
}

var _ log.MarshalableArena = (*blockResponse)(nil)

func (s *blockResponse) MarshalArena(arena *fastjson.Arena) ([]byte, error) {
	if s.block == nil {
		return nil, errors.New("insufficient fields specified")
	}

	txs := s.block.Transactions

	return newObject(arena).
		setHex("id", s.block.ID[:]).
		setUint("index", s.block.Index).
		setUint("timestamp", s.block.Timestamp).
		setValue("transactions", hexArray(arena, len(txs), func(i int) []byte { return txs[i].ID[:] })).
		marshal(), nil
}

// applyBlock seals up to ?limit pooled transactions into the next block.
func (g *Gateway) applyBlock(ctx *fasthttp.RequestCtx) {
	limit := defaultBlockLimit

	if n, err := ctx.QueryArgs().GetUint("limit"); err == nil && n > 0 {
		limit = n
	}

	pipeline := g.Ledger.Pipeline()
	block := pipeline.ProposeBlock(uint64(time.Now().Unix()), limit)

	if err := pipeline.ApplyBlock(context.Background(), block); err != nil {
		g.renderError(ctx, ledgerError(err))
		return
	}

	g.render(ctx, &blockResponse{block: block})
}

func (g *Gateway) revertBlock(ctx *fasthttp.RequestCtx) {
	block, err := g.Ledger.Pipeline().RevertLatest(context.Background())
	if err != nil {
		g.renderError(ctx, ledgerError(err))
		return
	}

	g.render(ctx, &blockResponse{block: block})
}

func (g *Gateway) getBlock(ctx *fasthttp.RequestCtx) {
	param, ok := ctx.UserValue("index").(string)
	if !ok {
		g.renderError(ctx, ErrBadRequest(errors.New("could not cast index into string")))
		return
	}

	index, err := strconv.ParseUint(param, 10, 64)
	if err != nil {
		g.renderError(ctx, ErrBadRequest(errors.Wrap(err, "block index must be a number")))
		return
	}

	block, err := g.Ledger.Pipeline().Block(index)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.renderError(ctx, ErrNotFound(errors.Errorf("could not find block %d", index)))
			return
		}

		g.renderError(ctx, ErrInternal(err))
		return
	}

	g.render(ctx, &blockResponse{block: block})
}
