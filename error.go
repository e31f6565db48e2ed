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
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

var (
	ErrOutOfGas        = errors.New("out of gas")
	ErrExecutionFault  = errors.New("execution fault")
	ErrStorageRead     = errors.New("failed to read contract storage")
	ErrStorageReleased = errors.New("contract storage already drained")

	ErrContractExists  = errors.New("contract already exists at address")
	ErrNothingToUndo   = errors.New("nothing to undo for transaction")
	ErrNotReady        = errors.New("transaction does not carry enough signatures")
	ErrAccountNotFound = errors.New("account not found")
	ErrUnknownTag      = errors.New("transaction type not registered for tag")

	ErrPoolFull       = errors.New("unconfirmed pool is full")
	ErrAlreadyPooled  = errors.New("transaction already in unconfirmed pool")
	ErrNotPooled      = errors.New("transaction not in unconfirmed pool")
	ErrAlreadyApplied = errors.New("transaction already applied")
	ErrNoBlocks       = errors.New("no applied blocks to revert")
)

// SchemaValidationError lists every rule the transaction asset violated.
type SchemaValidationError struct {
	Errors []string
}

func (e *SchemaValidationError) Error() string {
	return "failed to validate contract schema: " + strings.Join(e.Errors, ", ")
}

type VerificationError struct {
	Reason string
	Err    error
}

func verificationError(reason string) *VerificationError {
	return &VerificationError{Reason: reason}
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return "verification failed: " + e.Reason + ": " + e.Err.Error()
	}

	return "verification failed: " + e.Reason
}

func (e *VerificationError) Unwrap() error { return e.Err }

// ExecutionError wraps ErrOutOfGas, ErrExecutionFault or ErrStorageRead. VMErr
// holds the fault reported by the VM, if any.
type ExecutionError struct {
	Address common.Address
	GasUsed uint64

	Err   error
	VMErr error
}

func (e *ExecutionError) Error() string {
	msg := "contract " + e.Address.Hex() + ": " + e.Err.Error()

	if e.VMErr != nil {
		msg += ": " + e.VMErr.Error()
	}

	return msg
}

func (e *ExecutionError) Cause() error  { return e.Err }
func (e *ExecutionError) Unwrap() error { return e.Err }

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "failed to " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Cause() error  { return e.Err }
func (e *PersistenceError) Unwrap() error { return e.Err }
