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
	"testing"

	"github.com/perlin-network/evmledger/conf"
	"github.com/perlin-network/evmledger/sqlstore"
	"github.com/perlin-network/evmledger/store"
	"github.com/perlin-network/noise/edwards25519"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestPipelineAdmitAndApply(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := newTestLedger(t)
	p := ledger.Pipeline()

	keys := newTestKeys(t)
	tx := newDeployment(ledger.Contracts(), keys, codeReturnWord, 1)

	assert.NoError(t, p.Admit(tx))
	assert.True(t, errors.Is(p.Admit(tx), ErrAlreadyPooled))

	pooled, exists := p.PendingTransaction(tx.ID)
	assert.True(t, exists)
	assert.Equal(t, tx, pooled)
	assert.Equal(t, []*Transaction{tx}, p.Pending())

	owner, reserved := ledger.Contracts().Reserved(tx.RecipientID)
	assert.True(t, reserved)
	assert.Equal(t, tx.ID, owner)

	block := p.ProposeBlock(10, 100)
	assert.EqualValues(t, 1, block.Index)
	assert.Equal(t, []*Transaction{tx}, block.Transactions)

	// Proposing leaves the pool untouched.
	assert.Len(t, p.Pending(), 1)

	assert.NoError(t, p.ApplyBlock(ctx, block))
	assert.EqualValues(t, 1, p.Height())
	assert.Empty(t, p.Pending())

	_, reserved = ledger.Contracts().Reserved(tx.RecipientID)
	assert.False(t, reserved)

	account, err := ledger.Accounts().GetAccount(tx.RecipientID)
	assert.NoError(t, err)
	assert.True(t, account.IsContract())
	assert.Equal(t, block.ID, account.BlockID)

	asset, err := p.LoadAsset(ctx, tx.ID)
	assert.NoError(t, err)
	assert.Equal(t, &Asset{Code: codeReturnWord}, asset)

	stored, err := p.Block(1)
	assert.NoError(t, err)
	assert.Equal(t, block.ID, stored.ID)

	snapshot := ledger.Metrics().Snapshot()
	assert.EqualValues(t, 1, snapshot["tx.admitted"])
	assert.EqualValues(t, 1, snapshot["tx.applied"])
	assert.EqualValues(t, 1, snapshot["contract.deployed"])
	assert.EqualValues(t, 0, snapshot["tx.pending"])

	// The deployed contract now blocks deploying to its address again.
	assert.True(t, errors.Is(p.Admit(tx), ErrContractExists))
}

func TestPipelineAdmitRejects(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)
	p := ledger.Pipeline()
	keys := newTestKeys(t)

	bad := newDeployment(ledger.Contracts(), keys, codeReturnWord, 1)
	bad.Fee++

	var verifyErr *VerificationError
	assert.True(t, errors.As(p.Admit(bad), &verifyErr))

	unknown := newDeployment(ledger.Contracts(), keys, codeReturnWord, 2)
	unknown.Tag = 0xff
	assert.True(t, errors.Is(p.Admit(unknown), ErrUnknownTag))

	assert.Empty(t, p.Pending())
	assert.EqualValues(t, 2, ledger.Metrics().Snapshot()["tx.rejected"])
}

func TestPipelineAdmitMultisig(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)
	p := ledger.Pipeline()

	keys, member := newTestKeys(t), newTestKeys(t)

	sender := NewSenderAccount(keys.PublicKey())
	sender.Multisignatures = []edwards25519.PublicKey{member.PublicKey()}
	sender.MultiMin = 1
	assert.NoError(t, ledger.Accounts().PutAccount(sender))

	tx := newDeployment(ledger.Contracts(), keys, codeReturnWord, 1)
	assert.True(t, errors.Is(p.Admit(tx), ErrNotReady))

	tx.Cosign(member)
	assert.NoError(t, p.Admit(tx))
}

func TestPipelineDiscard(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)
	p := ledger.Pipeline()
	keys := newTestKeys(t)

	a := newDeployment(ledger.Contracts(), keys, codeReturnWord, 1)
	b := newDeployment(ledger.Contracts(), keys, codeReturnWord, 2)

	assert.NoError(t, p.Admit(a))
	assert.NoError(t, p.Admit(b))

	assert.NoError(t, p.Discard(a.ID))
	assert.True(t, errors.Is(p.Discard(a.ID), ErrNotPooled))

	assert.Equal(t, []*Transaction{b}, p.Pending())

	_, reserved := ledger.Contracts().Reserved(a.RecipientID)
	assert.False(t, reserved)
}

// Shares conf with other tests; not parallel.
func TestPipelinePoolFull(t *testing.T) {
	conf.Update(conf.WithPendingTxLimit(1))
	defer conf.Reset()

	ledger := newTestLedger(t)
	p := ledger.Pipeline()
	keys := newTestKeys(t)

	assert.NoError(t, p.Admit(newDeployment(ledger.Contracts(), keys, codeReturnWord, 1)))

	overflow := newDeployment(ledger.Contracts(), keys, codeReturnWord, 2)
	assert.True(t, errors.Is(p.Admit(overflow), ErrPoolFull))

	_, reserved := ledger.Contracts().Reserved(overflow.RecipientID)
	assert.False(t, reserved)
}

// Shares conf with other tests; not parallel.
func TestPipelineApplyBlockRollback(t *testing.T) {
	conf.Update(conf.WithMaxContractGas(1000000))
	defer conf.Reset()

	ctx := context.Background()
	ledger := newTestLedger(t)
	p := ledger.Pipeline()
	keys := newTestKeys(t)

	good := newDeployment(ledger.Contracts(), keys, codeStorageReturnWord, 1)
	stuck := newDeployment(ledger.Contracts(), keys, codeLoop, 2)

	assert.NoError(t, p.Admit(good))
	assert.NoError(t, p.Admit(stuck))

	block := p.ProposeBlock(10, 10)
	assert.Len(t, block.Transactions, 2)

	err := p.ApplyBlock(ctx, block)
	assert.True(t, errors.Is(err, ErrOutOfGas))

	assert.Zero(t, p.Height())
	assert.Len(t, p.Pending(), 2)

	_, err = ledger.Accounts().GetAccount(good.RecipientID)
	assert.True(t, errors.Is(err, ErrAccountNotFound))

	count, err := ledger.Rows().Count(ctx, "code")
	assert.NoError(t, err)
	assert.Zero(t, count)

	for _, tx := range []*Transaction{good, stuck} {
		owner, reserved := ledger.Contracts().Reserved(tx.RecipientID)
		assert.True(t, reserved)
		assert.Equal(t, tx.ID, owner)
	}

	// Dropping the stuck deployment lets the rest through.
	assert.NoError(t, p.Discard(stuck.ID))
	assert.NoError(t, p.ApplyBlock(ctx, p.ProposeBlock(11, 10)))
	assert.EqualValues(t, 1, p.Height())
}

func TestPipelineApplyBlockOutOfOrder(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)

	assert.Error(t, ledger.Pipeline().ApplyBlock(context.Background(), NewBlock(2, 1)))
}

func TestPipelineApplyUnpooled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := newTestLedger(t)
	p := ledger.Pipeline()
	keys := newTestKeys(t)

	tx := newDeployment(ledger.Contracts(), keys, codeReturnWord, 1)
	assert.NoError(t, p.ApplyBlock(ctx, NewBlock(1, 1, tx)))

	invalid := newDeployment(ledger.Contracts(), keys, codeReturnWord, 2)
	invalid.Amount = 1

	var verifyErr *VerificationError
	assert.True(t, errors.As(p.ApplyBlock(ctx, NewBlock(2, 2, invalid)), &verifyErr))
	assert.EqualValues(t, 1, p.Height())
}

func TestPipelineApplyBlockReplay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := newTestLedger(t)
	p := ledger.Pipeline()

	tx := newDeployment(ledger.Contracts(), newTestKeys(t), codeStorageReturnWord, 1)

	assert.NoError(t, p.ApplyBlock(ctx, NewBlock(1, 1, tx)))

	// A transaction applied by an earlier block is not applied again.
	err := p.ApplyBlock(ctx, NewBlock(2, 2, tx))
	assert.True(t, errors.Is(err, ErrAlreadyApplied))
	assert.EqualValues(t, 1, p.Height())

	// The undo entry of the first application is intact.
	reverted, err := p.RevertLatest(ctx)
	if !assert.NoError(t, err) {
		return
	}

	assert.EqualValues(t, 1, reverted.Index)
	assert.EqualValues(t, 0, p.Height())

	_, err = ledger.Accounts().GetAccount(tx.RecipientID)
	assert.True(t, errors.Is(err, ErrAccountNotFound))
}

func TestPipelineApplyBlockDuplicate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := newTestLedger(t)
	p := ledger.Pipeline()

	tx := newDeployment(ledger.Contracts(), newTestKeys(t), codeReturnWord, 1)

	err := p.ApplyBlock(ctx, NewBlock(1, 1, tx, tx))
	assert.True(t, errors.Is(err, ErrAlreadyApplied))
	assert.EqualValues(t, 0, p.Height())

	_, err = ledger.Accounts().GetAccount(tx.RecipientID)
	assert.True(t, errors.Is(err, ErrAccountNotFound))

	_, err = p.LoadAsset(ctx, tx.ID)
	assert.True(t, errors.Is(err, sqlstore.ErrRowNotFound))

	assert.NoError(t, p.ApplyBlock(ctx, NewBlock(1, 1, tx)))
}

func TestPipelineRevertWithoutJournal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := newTestLedger(t)
	p := ledger.Pipeline()
	keys := newTestKeys(t)

	first := newDeployment(ledger.Contracts(), keys, codeReturnWord, 1)
	second := newDeployment(ledger.Contracts(), keys, codeStorageReturnWord, 2)

	assert.NoError(t, p.ApplyBlock(ctx, NewBlock(1, 1, first, second)))
	assert.NoError(t, ledger.journal.Drop(first.ID))

	// Nothing is undone when any transaction of the block lacks an entry.
	_, err := p.RevertLatest(ctx)
	assert.True(t, errors.Is(err, ErrNothingToUndo))
	assert.EqualValues(t, 1, p.Height())

	_, err = ledger.Accounts().GetAccount(second.RecipientID)
	assert.NoError(t, err)

	_, err = p.LoadAsset(ctx, second.ID)
	assert.NoError(t, err)
}

func TestPipelineRevertLatest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := newTestLedger(t)
	p := ledger.Pipeline()
	keys := newTestKeys(t)

	_, err := p.RevertLatest(ctx)
	assert.True(t, errors.Is(err, ErrNoBlocks))

	first := newDeployment(ledger.Contracts(), keys, codeReturnWord, 1)
	second := newDeployment(ledger.Contracts(), keys, codeStorageReturnWord, 2)

	assert.NoError(t, p.ApplyBlock(ctx, NewBlock(1, 1, first)))
	assert.NoError(t, p.ApplyBlock(ctx, NewBlock(2, 2, second)))

	// Only the latest block can be reverted.
	assert.Error(t, p.RevertBlock(ctx, NewBlock(1, 1, first)))

	reverted, err := p.RevertLatest(ctx)
	if !assert.NoError(t, err) {
		return
	}

	assert.EqualValues(t, 2, reverted.Index)
	assert.EqualValues(t, 1, p.Height())

	_, err = ledger.Accounts().GetAccount(second.RecipientID)
	assert.True(t, errors.Is(err, ErrAccountNotFound))

	_, err = p.LoadAsset(ctx, second.ID)
	assert.True(t, errors.Is(err, sqlstore.ErrRowNotFound))

	_, err = ledger.Accounts().GetAccount(first.RecipientID)
	assert.NoError(t, err)

	_, err = p.Block(2)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	assert.EqualValues(t, 1, ledger.Metrics().Snapshot()["tx.reverted"])
}

func TestPipelineVerifyBatch(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)
	keys := newTestKeys(t)

	good := newDeployment(ledger.Contracts(), keys, codeReturnWord, 1)
	bad := newDeployment(ledger.Contracts(), keys, codeReturnWord, 2)
	bad.Signature[0] ^= 0xff

	errs := ledger.Pipeline().VerifyBatch([]*Transaction{good, bad, good})

	assert.Len(t, errs, 3)
	assert.NoError(t, errs[0])
	assert.Error(t, errs[1])
	assert.NoError(t, errs[2])

	assert.Empty(t, ledger.Pipeline().VerifyBatch(nil))
}

func TestPipelineHeightSurvivesRestart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	kv := store.NewInmem()
	defer kv.Close()

	rows, err := sqlstore.Open("")
	if !assert.NoError(t, err) {
		return
	}
	defer rows.Close()

	ledger, err := NewLedger(kv, rows)
	if !assert.NoError(t, err) {
		return
	}

	tx := newDeployment(ledger.Contracts(), newTestKeys(t), codeReturnWord, 1)
	assert.NoError(t, ledger.Pipeline().ApplyBlock(ctx, NewBlock(1, 1, tx)))
	ledger.Close()

	reopened, err := NewLedger(kv, rows)
	if !assert.NoError(t, err) {
		return
	}
	defer reopened.Close()

	assert.EqualValues(t, 1, reopened.Pipeline().Height())

	// The journal survives too, so the block can still be reverted.
	_, err = reopened.Pipeline().RevertLatest(ctx)
	assert.NoError(t, err)

	_, err = reopened.Accounts().GetAccount(tx.RecipientID)
	assert.True(t, errors.Is(err, ErrAccountNotFound))
}
