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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/golang/snappy"
	"github.com/perlin-network/noise/edwards25519"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// StorageEntry is one key/value slot of a contract's storage. Keys are raw
// 32-byte slot keys or their hashes depending on the sandbox addressing mode.
// Values carry no leading zero bytes.
type StorageEntry struct {
	Key   []byte
	Value []byte
}

// AccountRecord is the state written to the ledger for a deployed contract.
type AccountRecord struct {
	Address common.Address
	BlockID BlockID
	Code    []byte
	Storage []StorageEntry
}

// Account is a ledger account. Senders carry a public key and optionally a
// multisignature group; contracts carry code and storage.
type Account struct {
	Address   common.Address
	PublicKey edwards25519.PublicKey

	Multisignatures []edwards25519.PublicKey
	MultiMin        uint8

	BlockID BlockID
	Code    []byte
	Storage []StorageEntry
}

func NewSenderAccount(publicKey edwards25519.PublicKey) *Account {
	return &Account{
		Address:   AccountAddress(publicKey),
		PublicKey: publicKey,
	}
}

func (a *Account) IsContract() bool {
	return len(a.Code) > 0
}

func (a *Account) IsMultisig() bool {
	return len(a.Multisignatures) > 0
}

// StorageAt returns the value stored under key, or nil.
func (a *Account) StorageAt(key []byte) []byte {
	for _, entry := range a.Storage {
		if bytes.Equal(entry.Key, key) {
			return entry.Value
		}
	}

	return nil
}

func (a *Account) MarshalEvent(ev *zerolog.Event) {
	ev.Str("address", a.Address.Hex())
	ev.Hex("block_id", a.BlockID[:])
	ev.Int("code_len", len(a.Code))
	ev.Int("num_storage_entries", len(a.Storage))
	ev.Int("num_multisignatures", len(a.Multisignatures))
}

// normalize maps empty decoded slices back to nil.
func (a *Account) normalize() {
	if len(a.Multisignatures) == 0 {
		a.Multisignatures = nil
	}

	if len(a.Code) == 0 {
		a.Code = nil
	}

	if len(a.Storage) == 0 {
		a.Storage = nil
	}
}

func encodeAccount(a *Account) ([]byte, error) {
	buf, err := rlp.EncodeToBytes(a)
	if err != nil {
		return nil, errors.Wrap(err, "failed to rlp-encode account")
	}

	return snappy.Encode(nil, buf), nil
}

func decodeAccount(buf []byte) (*Account, error) {
	raw, err := snappy.Decode(nil, buf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress account")
	}

	a := new(Account)

	if err := rlp.DecodeBytes(raw, a); err != nil {
		return nil, errors.Wrap(err, "failed to rlp-decode account")
	}

	a.normalize()

	return a, nil
}
