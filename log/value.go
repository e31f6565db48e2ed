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

package log

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
	"github.com/valyala/fastjson"
)

var ErrHexLength = errors.New("hex value has the wrong length")

// FieldError reports which JSON field failed to decode.
type FieldError struct {
	Field string
	Err   error
}

func NewFieldError(field string, err error) *FieldError {
	return &FieldError{Field: field, Err: err}
}

func (e *FieldError) Error() string {
	return "invalid field " + e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func ValueString(v *fastjson.Value, keys ...string) string {
	return string(v.GetStringBytes(keys...))
}

// ValueHex decodes a fixed-size hex string at keys into dst. A missing field
// leaves dst untouched.
func ValueHex(v *fastjson.Value, dst []byte, keys ...string) error {
	raw := v.GetStringBytes(keys...)
	if raw == nil {
		return nil
	}

	field := strings.Join(keys, ".")

	if hex.DecodedLen(len(raw)) != len(dst) {
		return NewFieldError(field, ErrHexLength)
	}

	if _, err := hex.Decode(dst, raw); err != nil {
		return NewFieldError(field, err)
	}

	return nil
}
