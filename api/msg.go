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

package api

import (
	"net/http"

	"github.com/perlin-network/evmledger"
	"github.com/perlin-network/evmledger/log"
	"github.com/pkg/errors"
	"github.com/valyala/fastjson"
)

var (
	_ log.MarshalableArena = (*MsgResponse)(nil)
	_ log.MarshalableArena = (*ErrResponse)(nil)
)

// MsgResponse carries a human readable confirmation.
type MsgResponse struct {
	Message string
}

func (s *MsgResponse) MarshalArena(arena *fastjson.Arena) ([]byte, error) {
	return newObject(arena).setString("msg", s.Message).marshal(), nil
}

type ErrResponse struct {
	Err            error
	HTTPStatusCode int
}

func newErrResponse(status int, err error) *ErrResponse {
	return &ErrResponse{Err: err, HTTPStatusCode: status}
}

func (e *ErrResponse) MarshalArena(arena *fastjson.Arena) ([]byte, error) {
	o := newObject(arena).setString("status", http.StatusText(e.HTTPStatusCode))

	if e.Err != nil {
		o.setString("error", e.Err.Error())
	}

	return o.marshal(), nil
}

func ErrBadRequest(err error) *ErrResponse {
	return newErrResponse(http.StatusBadRequest, err)
}

func ErrNotFound(err error) *ErrResponse {
	return newErrResponse(http.StatusNotFound, err)
}

func ErrConflict(err error) *ErrResponse {
	return newErrResponse(http.StatusConflict, err)
}

func ErrInternal(err error) *ErrResponse {
	return newErrResponse(http.StatusInternalServerError, err)
}

func ErrUnavailable(err error) *ErrResponse {
	return newErrResponse(http.StatusServiceUnavailable, err)
}

// ledgerError maps ledger errors onto responses. Anything that is not a
// fault of the caller is reported as internal.
func ledgerError(err error) *ErrResponse {
	var (
		schemaErr *evmledger.SchemaValidationError
		verifyErr *evmledger.VerificationError
		execErr   *evmledger.ExecutionError
	)

	switch {
	case errors.As(err, &schemaErr), errors.As(err, &verifyErr), errors.As(err, &execErr):
		return ErrBadRequest(err)
	case errors.Is(err, evmledger.ErrUnknownTag), errors.Is(err, evmledger.ErrNotReady):
		return ErrBadRequest(err)
	case errors.Is(err, evmledger.ErrContractExists), errors.Is(err, evmledger.ErrAlreadyPooled),
		errors.Is(err, evmledger.ErrAlreadyApplied):
		return ErrConflict(err)
	case errors.Is(err, evmledger.ErrPoolFull):
		return ErrUnavailable(err)
	case errors.Is(err, evmledger.ErrAccountNotFound), errors.Is(err, evmledger.ErrNotPooled),
		errors.Is(err, evmledger.ErrNoBlocks):
		return ErrNotFound(err)
	default:
		return ErrInternal(err)
	}
}
