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

	"github.com/perlin-network/evmledger"
	"github.com/perlin-network/evmledger/log"
	"github.com/perlin-network/evmledger/sys"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fastjson"
)

type ledgerStatusResponse struct {
	publicKey []byte
	stats     evmledger.Stats
	metrics   map[string]int64
}

var _ log.MarshalableArena = (*ledgerStatusResponse)(nil)

func (g *Gateway) ledgerStatus(ctx *fasthttp.RequestCtx) {
	stats, err := g.Ledger.Stats(context.Background())
	if err != nil {
		g.renderError(ctx, ErrInternal(err))
		return
	}

	res := &ledgerStatusResponse{
		stats:   stats,
		metrics: g.Ledger.Metrics().Snapshot(),
	}

	if g.Keys != nil {
		publicKey := g.Keys.PublicKey()
		res.publicKey = publicKey[:]
	}

	g.render(ctx, res)
}

func (s *ledgerStatusResponse) MarshalArena(arena *fastjson.Arena) ([]byte, error) {
	o := newObject(arena).
		setString("version", sys.Version).
		setUint("height", s.stats.Height).
		setInt("num_pending", s.stats.NumPending).
		setInt("num_accounts", s.stats.NumAccounts).
		setInt("num_contracts", s.stats.NumContract).
		setInt("num_rows", s.stats.NumRows)

	if s.publicKey != nil {
		o.setHex("public_key", s.publicKey)
	}

	metrics := arena.NewObject()
	for key, value := range s.metrics {
		metrics.Set(key, arena.NewNumberString(strconv.FormatInt(value, 10)))
	}

	return o.setValue("metrics", metrics).marshal(), nil
}
