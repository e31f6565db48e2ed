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
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/perlin-network/evmledger/sqlstore"
	"github.com/perlin-network/evmledger/store"
	"github.com/perlin-network/noise/skademlia"
	"github.com/stretchr/testify/assert"
)

const (
	// Returns a 32-byte runtime whose last byte is 0x01.
	codeReturnWord = "600160005260206000f3"

	// JUMPDEST PUSH1 0 JUMP.
	codeLoop = "5b600056"

	// Writes 0x0a, 0x0b and 0x0c into slots 1 to 3, overwrites slot 2 with
	// 0x0d, then sets slot 4 to 5 and back to zero.
	codeStorage = "600a600155600b600255600c600355600d6002556005600455600060045500"

	// codeStorage followed by codeReturnWord.
	codeStorageReturnWord = "600a600155600b600255600c600355600d60025560056004556000600455" + codeReturnWord
)

func slotKey(slot int64) []byte {
	return common.BigToHash(big.NewInt(slot)).Bytes()
}

func newTestKeys(t testing.TB) *skademlia.Keypair {
	keys, err := skademlia.NewKeys(1, 1)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	return keys
}

func newTestContracts(t testing.TB, opts ...ContractOption) (*ContractTransactionType, *Accounts) {
	kv := store.NewInmem()
	t.Cleanup(func() { _ = kv.Close() })

	accounts := NewAccounts(kv)

	return NewContractTransactionType(accounts, NewJournal(kv), opts...), accounts
}

func newDeployment(c *ContractTransactionType, keys *skademlia.Keypair, code string, timestamp uint64) *Transaction {
	tx := c.Create(CreateData{
		Code:            code,
		SenderPublicKey: keys.PublicKey(),
		Timestamp:       timestamp,
	}, new(Transaction))

	tx.Sign(keys)

	return tx
}

func newTestLedger(t testing.TB) *Ledger {
	kv := store.NewInmem()

	rows, err := sqlstore.Open("")
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	ledger, err := NewLedger(kv, rows)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	t.Cleanup(func() {
		ledger.Close()
		_ = rows.Close()
		_ = kv.Close()
	})

	return ledger
}
