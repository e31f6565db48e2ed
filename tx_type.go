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
	"sync"

	"github.com/perlin-network/evmledger/sqlstore"
	"github.com/perlin-network/evmledger/sys"
	"github.com/perlin-network/noise/edwards25519"
	"github.com/pkg/errors"
)

// CreateData carries the caller-supplied fields of a new transaction.
type CreateData struct {
	Code            string
	SenderPublicKey edwards25519.PublicKey
	Timestamp       uint64
}

// TransactionType is the set of lifecycle hooks the ledger invokes for every
// transaction carrying the type's tag.
type TransactionType interface {
	Create(data CreateData, tx *Transaction) *Transaction
	CalculateFee(tx *Transaction) uint64

	Verify(tx *Transaction, sender *Account) error
	Process(tx *Transaction, sender *Account) (*Transaction, error)
	GetBytes(tx *Transaction) []byte

	Apply(tx *Transaction, block *Block, sender *Account) error
	Undo(tx *Transaction, block *Block, sender *Account) error

	ApplyUnconfirmed(tx *Transaction, sender *Account) error
	UndoUnconfirmed(tx *Transaction, sender *Account) error

	ObjectNormalize(tx *Transaction) (*Transaction, error)

	DBSave(tx *Transaction) sqlstore.Row
	DBRead(raw map[string]interface{}) *Asset

	Ready(tx *Transaction, sender *Account) bool
}

type Registry struct {
	sync.RWMutex
	types map[sys.Tag]TransactionType
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[sys.Tag]TransactionType)}
}

func (r *Registry) Register(tag sys.Tag, typ TransactionType) {
	r.Lock()
	r.types[tag] = typ
	r.Unlock()
}

func (r *Registry) Lookup(tag sys.Tag) (TransactionType, error) {
	r.RLock()
	typ, exists := r.types[tag]
	r.RUnlock()

	if !exists {
		return nil, errors.Wrapf(ErrUnknownTag, "%d (%s)", tag, tag)
	}

	return typ, nil
}

// NewDefaultRegistry registers every transaction type the ledger supports.
func NewDefaultRegistry(contracts *ContractTransactionType) *Registry {
	r := NewRegistry()
	r.Register(sys.TagContract, contracts)

	return r
}
