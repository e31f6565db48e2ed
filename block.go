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
	"fmt"
	"io"

	"github.com/perlin-network/evmledger/sys"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

type BlockID = [sys.SizeBlockID]byte

var ZeroBlockID BlockID

type Block struct {
	Index     uint64
	Timestamp uint64

	Transactions []*Transaction

	ID BlockID
}

func NewBlock(index, timestamp uint64, txs ...*Transaction) *Block {
	b := &Block{Index: index, Timestamp: timestamp, Transactions: txs}

	b.ID = b.computeID()

	return b
}

func (b *Block) computeID() BlockID {
	var buf [8]byte

	h, _ := blake2b.New256(nil)

	binary.BigEndian.PutUint64(buf[:], b.Index)
	h.Write(buf[:])

	binary.BigEndian.PutUint64(buf[:], b.Timestamp)
	h.Write(buf[:])

	for _, tx := range b.Transactions {
		h.Write(tx.ID[:])
	}

	var id BlockID
	copy(id[:], h.Sum(nil))

	return id
}

func (b *Block) Marshal() []byte {
	w := new(bytes.Buffer)

	var buf [8]byte

	binary.BigEndian.PutUint64(buf[:8], b.Index)
	w.Write(buf[:8])

	binary.BigEndian.PutUint64(buf[:8], b.Timestamp)
	w.Write(buf[:8])

	binary.BigEndian.PutUint32(buf[:4], uint32(len(b.Transactions)))
	w.Write(buf[:4])

	for _, tx := range b.Transactions {
		raw := tx.Marshal()

		binary.BigEndian.PutUint32(buf[:4], uint32(len(raw)))
		w.Write(buf[:4])
		w.Write(raw)
	}

	return w.Bytes()
}

func UnmarshalBlock(r io.Reader) (*Block, error) {
	var buf [8]byte

	b := new(Block)

	if _, err := io.ReadFull(r, buf[:8]); err != nil {
		return nil, errors.Wrap(err, "failed to decode block index")
	}

	b.Index = binary.BigEndian.Uint64(buf[:8])

	if _, err := io.ReadFull(r, buf[:8]); err != nil {
		return nil, errors.Wrap(err, "failed to decode block timestamp")
	}

	b.Timestamp = binary.BigEndian.Uint64(buf[:8])

	if _, err := io.ReadFull(r, buf[:4]); err != nil {
		return nil, errors.Wrap(err, "failed to decode block's transactions length")
	}

	b.Transactions = make([]*Transaction, binary.BigEndian.Uint32(buf[:4]))

	for i := range b.Transactions {
		if _, err := io.ReadFull(r, buf[:4]); err != nil {
			return nil, errors.Wrapf(err, "failed to decode length of transaction %d", i)
		}

		tx, err := UnmarshalTransaction(io.LimitReader(r, int64(binary.BigEndian.Uint32(buf[:4]))))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode transaction %d", i)
		}

		b.Transactions[i] = tx
	}

	b.ID = b.computeID()

	return b, nil
}

func (b *Block) String() string {
	return fmt.Sprintf("Block(index=%d, id=%s, num_txs=%d)", b.Index, hex.EncodeToString(b.ID[:])[:16], len(b.Transactions))
}
