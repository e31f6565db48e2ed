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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/pkg/errors"
)

// StorageHandle gives one-shot access to the storage a contract wrote during
// execution. It is drained at most once and released afterwards.
type StorageHandle struct {
	mu sync.Mutex

	nodeDB  *triedb.Database
	root    common.Hash
	address common.Address
	keys    KeyAddressing

	drained bool
}

// Drain returns every storage entry of the contract in trie order. Slots
// written to zero are absent and overwritten slots appear once with their
// final value.
func (h *StorageHandle) Drain() ([]StorageEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.drained {
		return nil, ErrStorageReleased
	}

	defer h.release()

	entries, err := h.drain()
	if err != nil {
		return nil, &ExecutionError{Address: h.address, Err: ErrStorageRead, VMErr: err}
	}

	return entries, nil
}

func (h *StorageHandle) drain() ([]StorageEntry, error) {
	accounts, err := trie.NewStateTrie(trie.StateTrieID(h.root), h.nodeDB)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open account trie")
	}

	account, err := accounts.GetAccount(h.address)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read account %s", h.address.Hex())
	}

	if account == nil {
		return nil, errors.Errorf("account %s missing from committed state", h.address.Hex())
	}

	if account.Root == types.EmptyRootHash {
		return nil, nil
	}

	id := trie.StorageTrieID(h.root, crypto.Keccak256Hash(h.address.Bytes()), account.Root)

	storage, err := trie.NewStateTrie(id, h.nodeDB)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open storage trie")
	}

	nodes, err := storage.NodeIterator(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to iterate storage trie")
	}

	var entries []StorageEntry

	it := trie.NewIterator(nodes)

	for it.Next() {
		key := common.CopyBytes(it.Key)

		if h.keys == KeysRaw {
			if key = storage.GetKey(it.Key); key == nil {
				return nil, errors.Errorf("missing preimage for storage key %x", it.Key)
			}

			key = common.CopyBytes(key)
		}

		_, value, _, err := rlp.Split(it.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed storage value under %x", key)
		}

		entries = append(entries, StorageEntry{Key: key, Value: common.CopyBytes(value)})
	}

	if it.Err != nil {
		return nil, errors.Wrap(it.Err, "storage iteration failed")
	}

	return entries, nil
}

// Release drops the handle's state without draining it.
func (h *StorageHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.release()
}

func (h *StorageHandle) release() {
	h.nodeDB = nil
	h.drained = true
}
