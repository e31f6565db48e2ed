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
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"sync"

	"github.com/perlin-network/evmledger/conf"
	"github.com/perlin-network/evmledger/log"
	"github.com/perlin-network/evmledger/sqlstore"
	"github.com/perlin-network/evmledger/store"
	"github.com/perlin-network/evmledger/sys"
	"github.com/phf/go-queue/queue"
	"github.com/pkg/errors"
)

var (
	keyBlocks = []byte("block/")
	keyHeight = []byte("height")
)

type PipelineConfig struct {
	Registry *Registry
	Accounts *Accounts
	Journal  *Journal
	Rows     *sqlstore.Store
	KV       store.KV
	Metrics  *Metrics
}

// Pipeline drives transactions through admission into the unconfirmed pool
// and through block application and reversion.
type Pipeline struct {
	*PipelineConfig

	workers *WorkerPool

	// Guards the pool, the height, and block application.
	mu sync.Mutex

	pending      *queue.Queue
	pendingIndex map[TransactionID]*Transaction

	height uint64
}

func NewPipeline(cfg *PipelineConfig) (*Pipeline, error) {
	p := &Pipeline{
		PipelineConfig: cfg,
		pending:        queue.New(),
		pendingIndex:   make(map[TransactionID]*Transaction),
	}

	buf, err := cfg.KV.Get(keyHeight)
	switch {
	case err == nil:
		if len(buf) != 8 {
			return nil, errors.Errorf("malformed stored height %x", buf)
		}

		p.height = binary.BigEndian.Uint64(buf)
	case !errors.Is(err, store.ErrNotFound):
		return nil, errors.Wrap(err, "failed to read stored height")
	}

	p.workers = NewWorkerPool(conf.GetVerifyWorkers())

	return p, nil
}

func (p *Pipeline) Stop() {
	p.workers.Stop()
}

func (p *Pipeline) Height() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.height
}

// Sender resolves the sending account of tx. Unknown senders are treated as
// fresh single-signature accounts.
func (p *Pipeline) Sender(tx *Transaction) (*Account, error) {
	sender, err := p.Accounts.GetAccount(tx.SenderAddress)
	if err == nil {
		return sender, nil
	}

	if errors.Is(err, ErrAccountNotFound) {
		return NewSenderAccount(tx.SenderPublicKey), nil
	}

	return nil, err
}

// check runs the stateless stages of admission.
func (p *Pipeline) check(tx *Transaction) (TransactionType, *Account, error) {
	typ, err := p.Registry.Lookup(tx.Tag)
	if err != nil {
		return nil, nil, err
	}

	if _, err := typ.ObjectNormalize(tx); err != nil {
		return nil, nil, err
	}

	sender, err := p.Sender(tx)
	if err != nil {
		return nil, nil, err
	}

	if tx, err = typ.Process(tx, sender); err != nil {
		return nil, nil, err
	}

	if err := typ.Verify(tx, sender); err != nil {
		return nil, nil, err
	}

	return typ, sender, nil
}

// Admit validates tx and places it into the unconfirmed pool.
func (p *Pipeline) Admit(tx *Transaction) error {
	logger := log.Pipeline("admit")

	if err := p.admit(tx); err != nil {
		p.Metrics.markRejected()

		logger.Debug().Err(err).Hex("tx_id", tx.ID[:]).Msg("Rejected transaction.")

		return err
	}

	log.EventTo(logger.Debug(), tx, "Admitted transaction.")

	return nil
}

func (p *Pipeline) admit(tx *Transaction) error {
	typ, sender, err := p.check(tx)
	if err != nil {
		return err
	}

	if !typ.Ready(tx, sender) {
		return errors.Wrapf(ErrNotReady, "%d of %d signatures", len(tx.Signatures), sender.MultiMin)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.pendingIndex[tx.ID]; exists {
		return errors.Wrapf(ErrAlreadyPooled, "%x", tx.ID)
	}

	if p.pending.Len() >= conf.GetPendingTxLimit() {
		return ErrPoolFull
	}

	if err := typ.ApplyUnconfirmed(tx, sender); err != nil {
		return err
	}

	p.pending.PushBack(tx)
	p.pendingIndex[tx.ID] = tx

	p.Metrics.markAdmitted(p.pending.Len())

	return nil
}

// Discard drops a pooled transaction and releases its unconfirmed state.
func (p *Pipeline) Discard(id TransactionID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, exists := p.pendingIndex[id]
	if !exists {
		return errors.Wrapf(ErrNotPooled, "%x", id)
	}

	if err := p.undoUnconfirmed(tx); err != nil {
		return err
	}

	p.removePending(map[TransactionID]struct{}{id: {}})

	return nil
}

func (p *Pipeline) undoUnconfirmed(tx *Transaction) error {
	typ, err := p.Registry.Lookup(tx.Tag)
	if err != nil {
		return err
	}

	sender, err := p.Sender(tx)
	if err != nil {
		return err
	}

	return typ.UndoUnconfirmed(tx, sender)
}

// removePending must be called with p.mu held.
func (p *Pipeline) removePending(ids map[TransactionID]struct{}) {
	for n := p.pending.Len(); n > 0; n-- {
		tx := p.pending.PopFront().(*Transaction)

		if _, remove := ids[tx.ID]; remove {
			delete(p.pendingIndex, tx.ID)
			continue
		}

		p.pending.PushBack(tx)
	}
}

// Pending returns pooled transactions in admission order.
func (p *Pipeline) Pending() []*Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.pendingLocked(p.pending.Len())
}

func (p *Pipeline) pendingLocked(limit int) []*Transaction {
	txs := make([]*Transaction, 0, p.pending.Len())

	for n := p.pending.Len(); n > 0; n-- {
		tx := p.pending.PopFront().(*Transaction)
		p.pending.PushBack(tx)

		if len(txs) < limit {
			txs = append(txs, tx)
		}
	}

	return txs
}

func (p *Pipeline) PendingTransaction(id TransactionID) (*Transaction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, exists := p.pendingIndex[id]
	return tx, exists
}

// ProposeBlock builds the next block out of at most limit pooled
// transactions. The pool is left as is until the block is applied.
func (p *Pipeline) ProposeBlock(timestamp uint64, limit int) *Block {
	p.mu.Lock()
	defer p.mu.Unlock()

	return NewBlock(p.height+1, timestamp, p.pendingLocked(limit)...)
}

// VerifyBatch checks every transaction in parallel. The i-th error belongs
// to the i-th transaction.
func (p *Pipeline) VerifyBatch(txs []*Transaction) []error {
	errs := make([]error, len(txs))

	p.workers.Run(len(txs), func(i int) {
		_, _, errs[i] = p.check(txs[i])
	})

	return errs
}

type appliedTX struct {
	tx     *Transaction
	typ    TransactionType
	sender *Account
	pooled bool
}

// ApplyBlock applies every transaction of block in order. Either all of them
// are applied, or none are and every pooled transaction keeps its
// unconfirmed state.
func (p *Pipeline) ApplyBlock(ctx context.Context, block *Block) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if block.Index != p.height+1 {
		return errors.Errorf("expected block %d, got block %d", p.height+1, block.Index)
	}

	if err := p.checkNotApplied(ctx, block); err != nil {
		return err
	}

	applied := make([]appliedTX, 0, len(block.Transactions))

	for _, tx := range block.Transactions {
		entry, err := p.applyTransaction(ctx, block, tx)
		if err != nil {
			p.rollback(ctx, block, applied)

			logger := log.Pipeline("apply")
			logger.Warn().Err(err).
				Hex("tx_id", tx.ID[:]).
				Uint64("block", block.Index).
				Msg("Failed to apply block; rolled back.")

			return errors.Wrapf(err, "failed to apply transaction %x in block %d", tx.ID, block.Index)
		}

		applied = append(applied, entry)
	}

	if err := p.storeBlock(block); err != nil {
		p.rollback(ctx, block, applied)
		return err
	}

	ids := make(map[TransactionID]struct{}, len(applied))
	for _, entry := range applied {
		if entry.pooled {
			ids[entry.tx.ID] = struct{}{}
		}
	}

	p.removePending(ids)
	p.height = block.Index

	p.Metrics.markApplied(len(applied), p.pending.Len())

	logger := log.Pipeline("apply")
	logger.Info().
		Uint64("block", block.Index).
		Hex("block_id", block.ID[:]).
		Int("num_txs", len(applied)).
		Msg("Applied block.")

	return nil
}

// checkNotApplied rejects a block that repeats a transaction, or that
// carries a transaction already applied by an earlier block.
func (p *Pipeline) checkNotApplied(ctx context.Context, block *Block) error {
	seen := make(map[TransactionID]struct{}, len(block.Transactions))

	for _, tx := range block.Transactions {
		if _, dup := seen[tx.ID]; dup {
			return errors.Wrapf(ErrAlreadyApplied, "transaction %x repeated in block %d", tx.ID, block.Index)
		}

		seen[tx.ID] = struct{}{}

		journaled, err := p.Journal.Has(tx.ID)
		if err != nil {
			return &PersistenceError{Op: "read journal", Err: err}
		}

		if journaled {
			return errors.Wrapf(ErrAlreadyApplied, "transaction %x", tx.ID)
		}

		_, err = p.Rows.Load(ctx, codeTable, hex.EncodeToString(tx.ID[:]))
		switch {
		case err == nil:
			return errors.Wrapf(ErrAlreadyApplied, "transaction %x", tx.ID)
		case !errors.Is(err, sqlstore.ErrRowNotFound):
			return &PersistenceError{Op: "read transaction row", Err: err}
		}
	}

	return nil
}

func (p *Pipeline) applyTransaction(ctx context.Context, block *Block, tx *Transaction) (appliedTX, error) {
	entry := appliedTX{tx: tx}

	_, entry.pooled = p.pendingIndex[tx.ID]

	var err error

	if entry.pooled {
		if entry.typ, err = p.Registry.Lookup(tx.Tag); err != nil {
			return entry, err
		}

		if entry.sender, err = p.Sender(tx); err != nil {
			return entry, err
		}

		if err = entry.typ.UndoUnconfirmed(tx, entry.sender); err != nil {
			return entry, err
		}
	} else if entry.typ, entry.sender, err = p.check(tx); err != nil {
		return entry, err
	}

	if err = entry.typ.Apply(tx, block, entry.sender); err != nil {
		p.restoreUnconfirmed(entry)
		return entry, err
	}

	if err = p.Rows.Save(ctx, entry.typ.DBSave(tx)); err != nil {
		if undoErr := entry.typ.Undo(tx, block, entry.sender); undoErr != nil {
			logger := log.Pipeline("apply")
			logger.Error().Err(undoErr).Hex("tx_id", tx.ID[:]).Msg("Failed to undo transaction.")
		}

		p.restoreUnconfirmed(entry)

		return entry, &PersistenceError{Op: "save transaction row", Err: err}
	}

	return entry, nil
}

func (p *Pipeline) restoreUnconfirmed(entry appliedTX) {
	if !entry.pooled {
		return
	}

	if err := entry.typ.ApplyUnconfirmed(entry.tx, entry.sender); err != nil {
		logger := log.Pipeline("apply")
		logger.Error().Err(err).Hex("tx_id", entry.tx.ID[:]).Msg("Failed to restore unconfirmed transaction.")
	}
}

// rollback undoes applied transactions in reverse order.
func (p *Pipeline) rollback(ctx context.Context, block *Block, applied []appliedTX) {
	logger := log.Pipeline("rollback")

	for i := len(applied) - 1; i >= 0; i-- {
		entry := applied[i]

		if err := entry.typ.Undo(entry.tx, block, entry.sender); err != nil {
			logger.Error().Err(err).Hex("tx_id", entry.tx.ID[:]).Msg("Failed to undo transaction.")
		}

		if err := p.Rows.Delete(ctx, codeTable, hex.EncodeToString(entry.tx.ID[:])); err != nil {
			logger.Error().Err(err).Hex("tx_id", entry.tx.ID[:]).Msg("Failed to delete transaction row.")
		}

		p.restoreUnconfirmed(entry)
	}
}

func blockKey(index uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], index)

	return append(append([]byte(nil), keyBlocks...), buf[:]...)
}

func (p *Pipeline) storeBlock(block *Block) error {
	var height [8]byte
	binary.BigEndian.PutUint64(height[:], block.Index)

	batch := p.KV.NewBatch()
	batch.Put(blockKey(block.Index), block.Marshal())
	batch.Put(keyHeight, height[:])

	if err := p.KV.Write(batch); err != nil {
		return &PersistenceError{Op: "store block", Err: err}
	}

	return nil
}

// Block loads an applied block by index.
func (p *Pipeline) Block(index uint64) (*Block, error) {
	buf, err := p.KV.Get(blockKey(index))
	if err != nil {
		return nil, errors.Wrapf(err, "block %d", index)
	}

	return UnmarshalBlock(bytes.NewReader(buf))
}

// RevertLatest undoes the most recently applied block.
func (p *Pipeline) RevertLatest(ctx context.Context) (*Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.height == 0 {
		return nil, ErrNoBlocks
	}

	block, err := p.Block(p.height)
	if err != nil {
		return nil, err
	}

	return block, p.revertBlock(ctx, block)
}

// RevertBlock undoes every transaction of the latest applied block in
// reverse order.
func (p *Pipeline) RevertBlock(ctx context.Context, block *Block) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.revertBlock(ctx, block)
}

func (p *Pipeline) revertBlock(ctx context.Context, block *Block) error {
	if block.Index != p.height || p.height == 0 {
		return errors.Errorf("can only revert the latest block %d, got block %d", p.height, block.Index)
	}

	for _, tx := range block.Transactions {
		journaled, err := p.Journal.Has(tx.ID)
		if err != nil {
			return &PersistenceError{Op: "read journal", Err: err}
		}

		if !journaled {
			return errors.Wrapf(ErrNothingToUndo, "%x", tx.ID)
		}
	}

	for i := len(block.Transactions) - 1; i >= 0; i-- {
		tx := block.Transactions[i]

		typ, err := p.Registry.Lookup(tx.Tag)
		if err != nil {
			return err
		}

		sender, err := p.Sender(tx)
		if err != nil {
			return err
		}

		if err := typ.Undo(tx, block, sender); err != nil {
			return errors.Wrapf(err, "failed to undo transaction %x", tx.ID)
		}

		if err := p.Rows.Delete(ctx, codeTable, hex.EncodeToString(tx.ID[:])); err != nil {
			return &PersistenceError{Op: "delete transaction row", Err: err}
		}
	}

	var height [8]byte
	binary.BigEndian.PutUint64(height[:], block.Index-1)

	batch := p.KV.NewBatch()
	batch.Delete(blockKey(block.Index))
	batch.Put(keyHeight, height[:])

	if err := p.KV.Write(batch); err != nil {
		return &PersistenceError{Op: "drop block", Err: err}
	}

	p.height = block.Index - 1
	p.Metrics.markReverted(len(block.Transactions))

	logger := log.Pipeline("revert")
	logger.Info().
		Uint64("block", block.Index).
		Int("num_txs", len(block.Transactions)).
		Msg("Reverted block.")

	return nil
}

// LoadAsset reads the persisted asset of an applied transaction.
func (p *Pipeline) LoadAsset(ctx context.Context, id TransactionID) (*Asset, error) {
	raw, err := p.Rows.Load(ctx, codeTable, hex.EncodeToString(id[:]))
	if err != nil {
		return nil, err
	}

	typ, err := p.Registry.Lookup(sys.TagContract)
	if err != nil {
		return nil, err
	}

	asset := typ.DBRead(raw)
	if asset == nil {
		return nil, errors.Wrapf(sqlstore.ErrRowNotFound, "no asset for %x", id)
	}

	return asset, nil
}
