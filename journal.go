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
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/golang/snappy"
	"github.com/perlin-network/evmledger/store"
	"github.com/pkg/errors"
)

var keyJournal = []byte("journal/")

type journalEntry struct {
	Existed bool
	Prior   Account
}

// Journal keeps, per applied transaction, the account state its apply
// replaced so that undo can restore it.
type Journal struct {
	kv store.KV
}

func NewJournal(kv store.KV) *Journal {
	return &Journal{kv: kv}
}

func journalKey(id TransactionID) []byte {
	return append(append([]byte(nil), keyJournal...), id[:]...)
}

// Record stores the prior state for id. A nil prior means the account did
// not exist.
func (j *Journal) Record(id TransactionID, prior *Account) error {
	entry := journalEntry{Existed: prior != nil}
	if prior != nil {
		entry.Prior = *prior
	}

	buf, err := rlp.EncodeToBytes(&entry)
	if err != nil {
		return errors.Wrap(err, "failed to encode journal entry")
	}

	exists, err := j.Has(id)
	if err != nil {
		return err
	}

	if exists {
		return errors.Wrapf(ErrAlreadyApplied, "%x", id)
	}

	return j.kv.Put(journalKey(id), snappy.Encode(nil, buf))
}

// Has reports whether an undo entry is held for id.
func (j *Journal) Has(id TransactionID) (bool, error) {
	if _, err := j.kv.Get(journalKey(id)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// Load returns the prior state recorded for id, or ErrNothingToUndo.
func (j *Journal) Load(id TransactionID) (*Account, bool, error) {
	buf, err := j.kv.Get(journalKey(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, errors.Wrapf(ErrNothingToUndo, "%x", id)
		}

		return nil, false, err
	}

	raw, err := snappy.Decode(nil, buf)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to decompress journal entry")
	}

	var entry journalEntry

	if err := rlp.DecodeBytes(raw, &entry); err != nil {
		return nil, false, errors.Wrap(err, "failed to decode journal entry")
	}

	if !entry.Existed {
		return nil, false, nil
	}

	entry.Prior.normalize()

	return &entry.Prior, true, nil
}

func (j *Journal) Drop(id TransactionID) error {
	return j.kv.Delete(journalKey(id))
}
