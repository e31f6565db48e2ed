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
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/perlin-network/evmledger/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestJournal(t *testing.T) {
	t.Parallel()

	kv := store.NewInmem()
	defer kv.Close()

	journal := NewJournal(kv)

	fresh, replaced := TransactionID{0x01}, TransactionID{0x02}

	_, _, err := journal.Load(fresh)
	assert.True(t, errors.Is(err, ErrNothingToUndo))

	assert.NoError(t, journal.Record(fresh, nil))

	prior, existed, err := journal.Load(fresh)
	assert.NoError(t, err)
	assert.False(t, existed)
	assert.Nil(t, prior)

	account := &Account{
		Address: common.Address{0x09},
		Code:    []byte{0x60, 0x00},
		Storage: []StorageEntry{{Key: slotKey(1), Value: []byte{0x01}}},
	}

	assert.NoError(t, journal.Record(replaced, account))

	prior, existed, err = journal.Load(replaced)
	assert.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, account, prior)

	// An entry is never overwritten while held.
	assert.True(t, errors.Is(journal.Record(replaced, nil), ErrAlreadyApplied))

	prior, existed, err = journal.Load(replaced)
	assert.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, account, prior)

	held, err := journal.Has(replaced)
	assert.NoError(t, err)
	assert.True(t, held)

	assert.NoError(t, journal.Drop(replaced))

	held, err = journal.Has(replaced)
	assert.NoError(t, err)
	assert.False(t, held)

	_, _, err = journal.Load(replaced)
	assert.True(t, errors.Is(err, ErrNothingToUndo))
}
