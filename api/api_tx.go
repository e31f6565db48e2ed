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

	"github.com/perlin-network/evmledger"
	"github.com/perlin-network/evmledger/log"
	"github.com/perlin-network/evmledger/sqlstore"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fastjson"
)

const (
	statusPending = "pending"
	statusApplied = "applied"
)

type sendTransactionResponse struct {
	tx *evmledger.Transaction
}

var _ log.MarshalableArena = (*sendTransactionResponse)(nil)

func (g *Gateway) parseTransaction(buf []byte) (*evmledger.Transaction, error) {
	parser := g.parserPool.Get()
	defer g.parserPool.Put(parser)

	v, err := parser.ParseBytes(buf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse transaction json")
	}

	tx := new(evmledger.Transaction)
	if err := tx.UnmarshalValue(v); err != nil {
		return nil, err
	}

	return tx, nil
}

func (g *Gateway) sendTransaction(ctx *fasthttp.RequestCtx) {
	tx, err := g.parseTransaction(ctx.PostBody())
	if err != nil {
		g.renderError(ctx, ErrBadRequest(err))
		return
	}

	if err := g.Ledger.Pipeline().Admit(tx); err != nil {
		g.renderError(ctx, ledgerError(errors.Wrap(err, "error adding your transaction to the pool")))
		return
	}

	g.render(ctx, &sendTransactionResponse{tx: tx})
}

func (s *sendTransactionResponse) MarshalArena(arena *fastjson.Arena) ([]byte, error) {
	if s.tx == nil {
		return nil, errors.New("insufficient parameters were provided")
	}

	return newObject(arena).
		setHex("id", s.tx.ID[:]).
		setAddress("address", s.tx.RecipientID).
		marshal(), nil
}

type verifyResult struct {
	id  evmledger.TransactionID
	err error
}

type verifyResponse []verifyResult

func (g *Gateway) verifyTransactions(ctx *fasthttp.RequestCtx) {
	parser := g.parserPool.Get()
	defer g.parserPool.Put(parser)

	v, err := parser.ParseBytes(ctx.PostBody())
	if err != nil {
		g.renderError(ctx, ErrBadRequest(errors.Wrap(err, "failed to parse transactions")))
		return
	}

	items, err := v.Array()
	if err != nil {
		g.renderError(ctx, ErrBadRequest(errors.Wrap(err, "expected an array of transactions")))
		return
	}

	txs := make([]*evmledger.Transaction, len(items))

	for i, item := range items {
		txs[i] = new(evmledger.Transaction)

		if err := txs[i].UnmarshalValue(item); err != nil {
			g.renderError(ctx, ErrBadRequest(errors.Wrapf(err, "transaction %d", i)))
			return
		}
	}

	errs := g.Ledger.Pipeline().VerifyBatch(txs)

	res := make(verifyResponse, len(txs))
	for i, tx := range txs {
		res[i] = verifyResult{id: tx.ID, err: errs[i]}
	}

	g.render(ctx, res)
}

func (s verifyResponse) MarshalArena(arena *fastjson.Arena) ([]byte, error) {
	list := arena.NewArray()

	for i, result := range s {
		o := newObject(arena).
			setHex("id", result.id[:]).
			setBool("valid", result.err == nil)

		if result.err != nil {
			o.setString("error", result.err.Error())
		}

		list.SetArrayItem(i, o.v)
	}

	return list.MarshalTo(nil), nil
}

type transactionResponse struct {
	tx     *evmledger.Transaction
	id     evmledger.TransactionID
	asset  *evmledger.Asset
	status string
}

func (s *transactionResponse) getObject(arena *fastjson.Arena) (*fastjson.Value, error) {
	if s.tx == nil {
		o := newObject(arena).
			setHex("id", s.id[:]).
			setString("status", s.status)

		if s.asset != nil {
			o.setValue("asset", newObject(arena).setString("code", s.asset.Code).v)
		}

		return o.v, nil
	}

	buf, err := s.tx.MarshalArena(arena)
	if err != nil {
		return nil, err
	}

	o, err := fastjson.ParseBytes(buf)
	if err != nil {
		return nil, err
	}

	o.Set("status", arena.NewString(s.status))

	return o, nil
}

func (s *transactionResponse) MarshalArena(arena *fastjson.Arena) ([]byte, error) {
	o, err := s.getObject(arena)
	if err != nil {
		return nil, err
	}

	return o.MarshalTo(nil), nil
}

func (g *Gateway) getTransaction(ctx *fasthttp.RequestCtx) {
	id, ok := ctx.UserValue("tx_id").(evmledger.TransactionID)
	if !ok {
		g.renderError(ctx, ErrBadRequest(errors.New("id must be a transaction ID")))
		return
	}

	if tx, exists := g.Ledger.Pipeline().PendingTransaction(id); exists {
		g.render(ctx, &transactionResponse{tx: tx, id: id, status: statusPending})
		return
	}

	asset, err := g.Ledger.Pipeline().LoadAsset(context.Background(), id)
	if err != nil {
		if errors.Is(err, sqlstore.ErrRowNotFound) {
			g.renderError(ctx, ErrNotFound(errors.Errorf("could not find transaction with ID %x", id)))
			return
		}

		g.renderError(ctx, ErrInternal(err))
		return
	}

	g.render(ctx, &transactionResponse{id: id, asset: asset, status: statusApplied})
}

func (g *Gateway) discardTransaction(ctx *fasthttp.RequestCtx) {
	id, ok := ctx.UserValue("tx_id").(evmledger.TransactionID)
	if !ok {
		g.renderError(ctx, ErrBadRequest(errors.New("id must be a transaction ID")))
		return
	}

	if err := g.Ledger.Pipeline().Discard(id); err != nil {
		g.renderError(ctx, ledgerError(err))
		return
	}

	g.render(ctx, &MsgResponse{Message: "Discarded transaction."})
}

type transactionList []*transactionResponse

func (g *Gateway) listTransactions(ctx *fasthttp.RequestCtx) {
	pending := g.Ledger.Pipeline().Pending()

	if limit, err := ctx.QueryArgs().GetUint("limit"); err == nil && limit < len(pending) {
		pending = pending[:limit]
	}

	list := make(transactionList, 0, len(pending))
	for _, tx := range pending {
		list = append(list, &transactionResponse{tx: tx, id: tx.ID, status: statusPending})
	}

	g.render(ctx, list)
}

func (s transactionList) MarshalArena(arena *fastjson.Arena) ([]byte, error) {
	list := arena.NewArray()

	for i, v := range s {
		o, err := v.getObject(arena)
		if err != nil {
			return nil, err
		}

		list.SetArrayItem(i, o)
	}

	return list.MarshalTo(nil), nil
}
