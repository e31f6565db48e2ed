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
	"github.com/ethereum/go-ethereum/common"
	"github.com/perlin-network/evmledger"
	"github.com/perlin-network/evmledger/log"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fastjson"
)

type accountResponse struct {
	account *evmledger.Account
}

var _ log.MarshalableArena = (*accountResponse)(nil)

func (g *Gateway) getAccount(ctx *fasthttp.RequestCtx) {
	address, ok := ctx.UserValue("address").(common.Address)
	if !ok {
		g.renderError(ctx, ErrBadRequest(errors.New("address must be an account address")))
		return
	}

	account, err := g.Ledger.Accounts().GetAccount(address)
	if err != nil {
		g.renderError(ctx, ledgerError(err))
		return
	}

	g.render(ctx, &accountResponse{account: account})
}

func (s *accountResponse) MarshalArena(arena *fastjson.Arena) ([]byte, error) {
	if s.account == nil {
		return nil, errors.New("insufficient fields specified")
	}

	a := s.account
	storage := arena.NewArray()
	for i, entry := range a.Storage {
		storage.SetArrayItem(i, newObject(arena).setHex("key", entry.Key).setHex("value", entry.Value).v)
	}

	return newObject(arena).
		setAddress("address", a.Address).
		setHex("public_key", a.PublicKey[:]).
		setBool("is_contract", a.IsContract()).
		setHex("block_id", a.BlockID[:]).
		setHex("code", a.Code).
		setInt("multi_min", int(a.MultiMin)).
		setValue("multisignatures", hexArray(arena, len(a.Multisignatures), func(i int) []byte {
			return a.Multisignatures[i][:]
		})).
		setValue("storage", storage).
		marshal(), nil
}
