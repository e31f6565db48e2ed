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
	"testing"

	"github.com/perlin-network/evmledger/sys"
	"github.com/stretchr/testify/assert"
)

func TestTransactionMarshalRoundTrip(t *testing.T) {
	t.Parallel()

	keys, cosigner := newTestKeys(t), newTestKeys(t)
	c, _ := newTestContracts(t)

	tx := newDeployment(c, keys, codeReturnWord, 42)
	tx.Cosign(cosigner)

	decoded, err := UnmarshalTransaction(bytes.NewReader(tx.Marshal()))
	if !assert.NoError(t, err) {
		return
	}

	assert.Equal(t, tx, decoded)
	assert.Equal(t, sys.TagContract, decoded.Tag)
	assert.Len(t, decoded.Signatures, 1)
	assert.True(t, decoded.VerifySignature())
}

func TestTransactionUnmarshalTruncated(t *testing.T) {
	t.Parallel()

	keys := newTestKeys(t)
	c, _ := newTestContracts(t)

	buf := newDeployment(c, keys, codeReturnWord, 42).Marshal()

	for _, n := range []int{0, 1, 9, 41, 57, 65, 69, len(buf) - 1} {
		_, err := UnmarshalTransaction(bytes.NewReader(buf[:n]))
		assert.Error(t, err, "decoded %d of %d bytes", n, len(buf))
	}
}

func TestTransactionSignature(t *testing.T) {
	t.Parallel()

	keys := newTestKeys(t)
	c, _ := newTestContracts(t)

	tx := newDeployment(c, keys, codeReturnWord, 42)
	assert.True(t, tx.VerifySignature())

	// The recipient is outside the signed body.
	tx.RecipientID[0] ^= 0xff
	assert.True(t, tx.VerifySignature())

	tx.Timestamp++
	assert.False(t, tx.VerifySignature())
}

func TestTransactionIDCoversSignatures(t *testing.T) {
	t.Parallel()

	keys, cosigner := newTestKeys(t), newTestKeys(t)
	c, _ := newTestContracts(t)

	tx := newDeployment(c, keys, codeReturnWord, 42)
	id := tx.ID

	tx.Cosign(cosigner)
	assert.NotEqual(t, id, tx.ID)
	assert.Equal(t, tx.ComputeID(), tx.ID)
}

func TestAssetBytes(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Asset{}.Bytes())
	assert.Equal(t, []byte("6001"), Asset{Code: "6001"}.Bytes())
}
