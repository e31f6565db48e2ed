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
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/perlin-network/noise/edwards25519"
)

// AddressDeriver maps the canonical encoding of a deployment to the address
// of the contract it creates.
type AddressDeriver struct {
	hash func(data ...[]byte) []byte
}

func NewAddressDeriver() *AddressDeriver {
	return NewAddressDeriverWithHash(crypto.Keccak256)
}

func NewAddressDeriverWithHash(hash func(data ...[]byte) []byte) *AddressDeriver {
	return &AddressDeriver{hash: hash}
}

// Derive returns the last 20 bytes of the hash of canonical.
func (d *AddressDeriver) Derive(canonical []byte) common.Address {
	return common.BytesToAddress(d.hash(canonical))
}

// ContractAddress derives the address from the transaction body, which
// excludes the recipient and every signature.
func (d *AddressDeriver) ContractAddress(tx *Transaction) common.Address {
	return d.Derive(tx.Body())
}

// AccountAddress derives the ledger address owned by an ed25519 public key.
func AccountAddress(publicKey edwards25519.PublicKey) common.Address {
	return common.BytesToAddress(crypto.Keccak256(publicKey[:]))
}
