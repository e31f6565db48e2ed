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

package evmledger

import (
	"context"

	"github.com/perlin-network/evmledger/log"
	"github.com/perlin-network/evmledger/sqlstore"
	"github.com/perlin-network/evmledger/store"
	"github.com/perlin-network/evmledger/sys"
	"github.com/pkg/errors"
)

// Ledger wires the account ledger, the contract transaction type and the
// transaction pipeline on top of a key-value store and a row store.
type Ledger struct {
	ctx    context.Context
	cancel context.CancelFunc

	kv   store.KV
	rows *sqlstore.Store

	accounts  *Accounts
	journal   *Journal
	contracts *ContractTransactionType
	registry  *Registry
	pipeline  *Pipeline
	metrics   *Metrics
}

func NewLedger(kv store.KV, rows *sqlstore.Store, opts ...ContractOption) (*Ledger, error) {
	ctx, cancel := context.WithCancel(context.Background())

	metrics := NewMetrics(ctx)
	accounts := NewAccounts(kv)
	journal := NewJournal(kv)

	contracts := NewContractTransactionType(accounts, journal, append([]ContractOption{WithMetrics(metrics)}, opts...)...)
	registry := NewDefaultRegistry(contracts)

	pipeline, err := NewPipeline(&PipelineConfig{
		Registry: registry,
		Accounts: accounts,
		Journal:  journal,
		Rows:     rows,
		KV:       kv,
		Metrics:  metrics,
	})
	if err != nil {
		metrics.Stop()
		cancel()

		return nil, errors.Wrap(err, "failed to start transaction pipeline")
	}

	logger := log.Node()
	logger.Info().
		Str("kv", kv.Dir()).
		Uint64("height", pipeline.Height()).
		Str("contract_tag", sys.TagContract.String()).
		Msg("Ledger ready.")

	return &Ledger{
		ctx:    ctx,
		cancel: cancel,

		kv:   kv,
		rows: rows,

		accounts:  accounts,
		journal:   journal,
		contracts: contracts,
		registry:  registry,
		pipeline:  pipeline,
		metrics:   metrics,
	}, nil
}

func (l *Ledger) Accounts() *Accounts {
	return l.accounts
}

func (l *Ledger) Contracts() *ContractTransactionType {
	return l.contracts
}

func (l *Ledger) Registry() *Registry {
	return l.registry
}

func (l *Ledger) Pipeline() *Pipeline {
	return l.pipeline
}

func (l *Ledger) Metrics() *Metrics {
	return l.metrics
}

func (l *Ledger) Rows() *sqlstore.Store {
	return l.rows
}

// Stats summarizes the ledger for status reporting.
type Stats struct {
	Height      uint64
	NumPending  int
	NumAccounts int
	NumContract int
	NumRows     int
}

func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		Height:     l.pipeline.Height(),
		NumPending: len(l.pipeline.Pending()),
	}

	err := l.accounts.ForEach(func(account *Account) error {
		stats.NumAccounts++

		if account.IsContract() {
			stats.NumContract++
		}

		return nil
	})
	if err != nil {
		return stats, err
	}

	if stats.NumRows, err = l.rows.Count(ctx, codeTable); err != nil {
		return stats, err
	}

	return stats, nil
}

// Close stops background work. The stores are owned by the caller.
func (l *Ledger) Close() {
	l.cancel()
	l.pipeline.Stop()
	l.metrics.Stop()
}
