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
	"encoding/binary"
	"encoding/hex"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/perlin-network/evmledger/log"
	"github.com/perlin-network/evmledger/sys"
	"github.com/perlin-network/noise/edwards25519"
	"github.com/perlin-network/noise/skademlia"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"
)

type TransactionID = [sys.SizeTransactionID]byte

var ZeroTransactionID TransactionID

// Asset is the contract-specific part of a transaction.
type Asset struct {
	// Init code, hex encoded without a 0x prefix.
	Code string `validate:"required,hex"`
}

// Bytes returns the asset as it is transmitted, or nil if no code is set.
func (a Asset) Bytes() []byte {
	if a.Code == "" {
		return nil
	}

	return []byte(a.Code)
}

type Transaction struct {
	ID  TransactionID // BLAKE2b(*).
	Tag sys.Tag

	Timestamp uint64

	SenderPublicKey edwards25519.PublicKey
	SenderAddress   common.Address

	// Derived contract address for deployments.
	RecipientID common.Address

	Amount uint64
	Fee    uint64

	Asset Asset

	Signature  edwards25519.Signature
	Signatures []edwards25519.Signature // Multisignature co-signatures.
}

var _ log.MarshalableEvent = (*Transaction)(nil)

// Body is the canonical encoding signed by the sender and hashed into the
// contract address. It leaves out the recipient, the signatures and the ID.
func (tx *Transaction) Body() []byte {
	asset := tx.Asset.Bytes()

	w := bytes.NewBuffer(make([]byte, 0, 1+8+edwards25519.SizePublicKey+8+8+4+len(asset)))

	w.WriteByte(byte(tx.Tag))

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:8], tx.Timestamp)
	w.Write(buf[:8])

	w.Write(tx.SenderPublicKey[:])

	binary.BigEndian.PutUint64(buf[:8], tx.Amount)
	w.Write(buf[:8])

	binary.BigEndian.PutUint64(buf[:8], tx.Fee)
	w.Write(buf[:8])

	binary.BigEndian.PutUint32(buf[:4], uint32(len(asset)))
	w.Write(buf[:4])

	w.Write(asset)

	return w.Bytes()
}

func (tx *Transaction) Marshal() []byte {
	w := bytes.NewBuffer(tx.Body())

	w.Write(tx.RecipientID[:])
	w.Write(tx.Signature[:])

	w.WriteByte(byte(len(tx.Signatures)))

	for _, sig := range tx.Signatures {
		w.Write(sig[:])
	}

	return w.Bytes()
}

func (tx *Transaction) Unmarshal(r io.Reader) (err error) {
	var buf [8]byte

	if _, err = io.ReadFull(r, buf[:1]); err != nil {
		return errors.Wrap(err, "failed to read tag")
	}

	tx.Tag = sys.Tag(buf[0])

	if _, err = io.ReadFull(r, buf[:8]); err != nil {
		return errors.Wrap(err, "failed to read timestamp")
	}

	tx.Timestamp = binary.BigEndian.Uint64(buf[:8])

	if _, err = io.ReadFull(r, tx.SenderPublicKey[:]); err != nil {
		return errors.Wrap(err, "failed to decode transaction sender")
	}

	tx.SenderAddress = AccountAddress(tx.SenderPublicKey)

	if _, err = io.ReadFull(r, buf[:8]); err != nil {
		return errors.Wrap(err, "failed to read amount")
	}

	tx.Amount = binary.BigEndian.Uint64(buf[:8])

	if _, err = io.ReadFull(r, buf[:8]); err != nil {
		return errors.Wrap(err, "failed to read fee")
	}

	tx.Fee = binary.BigEndian.Uint64(buf[:8])

	if _, err = io.ReadFull(r, buf[:4]); err != nil {
		return errors.Wrap(err, "could not read asset length")
	}

	asset := make([]byte, binary.BigEndian.Uint32(buf[:4]))

	if _, err = io.ReadFull(r, asset); err != nil {
		return errors.Wrap(err, "could not read asset")
	}

	tx.Asset = Asset{Code: string(asset)}

	if _, err = io.ReadFull(r, tx.RecipientID[:]); err != nil {
		return errors.Wrap(err, "failed to decode recipient")
	}

	if _, err = io.ReadFull(r, tx.Signature[:]); err != nil {
		return errors.Wrap(err, "failed to decode signature")
	}

	if _, err = io.ReadFull(r, buf[:1]); err != nil {
		return errors.Wrap(err, "failed to read number of signatures")
	}

	tx.Signatures = nil

	if n := int(buf[0]); n > 0 {
		tx.Signatures = make([]edwards25519.Signature, n)

		for i := range tx.Signatures {
			if _, err = io.ReadFull(r, tx.Signatures[i][:]); err != nil {
				return errors.Wrapf(err, "failed to decode signature %d", i)
			}
		}
	}

	tx.ID = tx.ComputeID()

	return nil
}

func UnmarshalTransaction(r io.Reader) (*Transaction, error) {
	tx := new(Transaction)
	return tx, tx.Unmarshal(r)
}

func (tx *Transaction) ComputeID() TransactionID {
	return blake2b.Sum256(tx.Marshal())
}

// Sign signs the body with the sender's keys and refreshes the ID.
func (tx *Transaction) Sign(keys *skademlia.Keypair) {
	tx.SenderPublicKey = keys.PublicKey()
	tx.SenderAddress = AccountAddress(tx.SenderPublicKey)
	tx.Signature = edwards25519.Sign(keys.PrivateKey(), tx.Body())
	tx.ID = tx.ComputeID()
}

// Cosign appends a multisignature co-signature over the body.
func (tx *Transaction) Cosign(keys *skademlia.Keypair) {
	tx.Signatures = append(tx.Signatures, edwards25519.Sign(keys.PrivateKey(), tx.Body()))
	tx.ID = tx.ComputeID()
}

func (tx *Transaction) VerifySignature() bool {
	return edwards25519.Verify(tx.SenderPublicKey, tx.Body(), tx.Signature)
}

func (tx *Transaction) MarshalEvent(ev *zerolog.Event) {
	ev.Hex("tx_id", tx.ID[:])
	ev.Str("tag", tx.Tag.String())
	ev.Hex("sender", tx.SenderPublicKey[:])
	ev.Str("recipient", tx.RecipientID.Hex())
	ev.Uint64("fee", tx.Fee)
	ev.Int("code_len", hex.DecodedLen(len(tx.Asset.Code)))
	ev.Int("num_signatures", len(tx.Signatures))
}
