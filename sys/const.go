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

package sys

type Tag byte

const (
	TagTransfer Tag = iota
	TagSecondSignature
	TagDelegate
	TagVote
	TagMultisignature
	TagDapp
	TagInTransfer
	TagOutTransfer
	TagContract
)

var tagNames = map[Tag]string{
	TagTransfer:        "transfer",
	TagSecondSignature: "second_signature",
	TagDelegate:        "delegate",
	TagVote:            "vote",
	TagMultisignature:  "multisignature",
	TagDapp:            "dapp",
	TagInTransfer:      "in_transfer",
	TagOutTransfer:     "out_transfer",
	TagContract:        "contract",
}

func (tag Tag) String() string {
	if name, ok := tagNames[tag]; ok {
		return name
	}

	return "unknown"
}

const (
	// Fee charged for publishing a contract, in the ledger's smallest unit.
	DefaultContractFee uint64 = 10 * 100000000

	// Gas ceiling handed to the VM for every contract deployment.
	MaxContractGas uint64 = 0xffffffffff

	// Size of a transaction ID (BLAKE2b-256).
	SizeTransactionID = 32

	// Size of a block ID (BLAKE2b-256).
	SizeBlockID = 32
)
