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
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

const testGas = 0xffffffffff

func mustDecodeHex(t testing.TB, s string) []byte {
	buf, err := hex.DecodeString(s)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	return buf
}

func TestSandboxReturnsRuntimeCode(t *testing.T) {
	t.Parallel()

	address := common.HexToAddress("0x1000000000000000000000000000000000000001")

	result, err := NewSandbox().Execute(mustDecodeHex(t, codeReturnWord), testGas, address, NewBlock(1, 1))
	if !assert.NoError(t, err) {
		return
	}

	expected := make([]byte, 32)
	expected[31] = 0x01

	assert.Equal(t, address, result.Address)
	assert.Equal(t, expected, result.RuntimeCode)
	assert.NotZero(t, result.GasUsed)

	entries, err := result.Storage.Drain()
	assert.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSandboxOutOfGas(t *testing.T) {
	t.Parallel()

	const gas = 100000

	_, err := NewSandbox().Execute(mustDecodeHex(t, codeLoop), gas, common.Address{0x01}, nil)
	assert.True(t, errors.Is(err, ErrOutOfGas))

	var execErr *ExecutionError
	if assert.True(t, errors.As(err, &execErr)) {
		assert.EqualValues(t, gas, execErr.GasUsed)
		assert.NotNil(t, execErr.VMErr)
	}
}

func TestSandboxExecutionFault(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"invalid opcode":   "fe",
		"stack underflow":  "01",
		"revert":           "60006000fd",
		"0xef code prefix": "60ef60005360016000f3",
	}

	for name, code := range tests {
		_, err := NewSandbox().Execute(mustDecodeHex(t, code), testGas, common.Address{0x01}, nil)
		assert.True(t, errors.Is(err, ErrExecutionFault), name)
		assert.False(t, errors.Is(err, ErrOutOfGas), name)
	}
}

func TestSandboxCodeDepositOutOfGas(t *testing.T) {
	t.Parallel()

	// Enough gas to run the init code but not to store 32 bytes of code.
	_, err := NewSandbox().Execute(mustDecodeHex(t, codeReturnWord), 1000, common.Address{0x01}, nil)
	assert.True(t, errors.Is(err, ErrOutOfGas))
}

// Two runs at the same address must not observe each other's state.
func TestSandboxIsolation(t *testing.T) {
	t.Parallel()

	sandbox := NewSandbox()
	address := common.Address{0x02}

	first, err := sandbox.Execute(mustDecodeHex(t, codeStorage), testGas, address, nil)
	if !assert.NoError(t, err) {
		return
	}

	second, err := sandbox.Execute(mustDecodeHex(t, codeStorage), testGas, address, nil)
	if !assert.NoError(t, err) {
		return
	}

	assert.Equal(t, first.GasUsed, second.GasUsed)

	a, err := first.Storage.Drain()
	assert.NoError(t, err)

	b, err := second.Storage.Drain()
	assert.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 3)

	// Code that writes nothing sees nothing of the earlier run.
	third, err := sandbox.Execute(mustDecodeHex(t, codeReturnWord), testGas, address, nil)
	if !assert.NoError(t, err) {
		return
	}

	c, err := third.Storage.Drain()
	assert.NoError(t, err)
	assert.Empty(t, c)
}

func TestKeyAddressingString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "raw", KeysRaw.String())
	assert.Equal(t, "hashed", KeysHashed.String())
	assert.Equal(t, KeysHashed, NewSandbox(WithKeyAddressing(KeysHashed)).KeyAddressing())
}
