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
	"github.com/perlin-network/evmledger/log"
	"github.com/perlin-network/evmledger/store"
	"github.com/pkg/errors"
)

var keyAccounts = []byte("account/")

// AccountLedger is the system of record for account state.
type AccountLedger interface {
	GetAccount(address common.Address) (*Account, error)
	PutAccount(account *Account) error

	// SetAccountAndGet writes a contract record into the account at its
	// address, creating it if needed, and returns the resulting account.
	SetAccountAndGet(record AccountRecord) (*Account, error)

	RemoveAccount(address common.Address) error
}

var _ AccountLedger = (*Accounts)(nil)

// Accounts stores snappy-compressed RLP accounts in a KV store.
type Accounts struct {
	sync.Mutex
	kv store.KV
}

func NewAccounts(kv store.KV) *Accounts {
	return &Accounts{kv: kv}
}

func accountKey(address common.Address) []byte {
	return append(append([]byte(nil), keyAccounts...), address[:]...)
}

func (a *Accounts) GetAccount(address common.Address) (*Account, error) {
	buf, err := a.kv.Get(accountKey(address))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.Wrapf(ErrAccountNotFound, "%s", address.Hex())
		}

		return nil, errors.Wrapf(err, "failed to read account %s", address.Hex())
	}

	return decodeAccount(buf)
}

func (a *Accounts) PutAccount(account *Account) error {
	a.Lock()
	defer a.Unlock()

	return a.put(account)
}

func (a *Accounts) put(account *Account) error {
	buf, err := encodeAccount(account)
	if err != nil {
		return err
	}

	if err := a.kv.Put(accountKey(account.Address), buf); err != nil {
		return errors.Wrapf(err, "failed to write account %s", account.Address.Hex())
	}

	return nil
}

func (a *Accounts) SetAccountAndGet(record AccountRecord) (*Account, error) {
	a.Lock()
	defer a.Unlock()

	account, err := a.GetAccount(record.Address)
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			return nil, err
		}

		account = &Account{Address: record.Address}
	}

	account.BlockID = record.BlockID
	account.Code = common.CopyBytes(record.Code)
	account.Storage = append([]StorageEntry(nil), record.Storage...)
	account.normalize()

	if err := a.put(account); err != nil {
		return nil, err
	}

	logger := log.Accounts("set")
	log.EventTo(logger.Debug(), account, "Updated account.")

	return account, nil
}

func (a *Accounts) RemoveAccount(address common.Address) error {
	a.Lock()
	defer a.Unlock()

	if err := a.kv.Delete(accountKey(address)); err != nil {
		return errors.Wrapf(err, "failed to remove account %s", address.Hex())
	}

	return nil
}

// ForEach visits every account in address order.
func (a *Accounts) ForEach(fn func(account *Account) error) error {
	return a.kv.Iterate(keyAccounts, func(key, value []byte) error {
		account, err := decodeAccount(value)
		if err != nil {
			return err
		}

		return fn(account)
	})
}
