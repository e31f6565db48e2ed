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
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidateAsset(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validateAsset(&Asset{Code: codeReturnWord}))
	assert.NoError(t, validateAsset(&Asset{Code: "60AB"}))

	tests := map[string]string{
		"":      "missing required property: Code",
		"600":   "object didn't pass validation for format hex: Code",
		"0x60":  "object didn't pass validation for format hex: Code",
		"60zz":  "object didn't pass validation for format hex: Code",
		"60 01": "object didn't pass validation for format hex: Code",
	}

	for code, msg := range tests {
		err := validateAsset(&Asset{Code: code})

		var schemaErr *SchemaValidationError
		if assert.True(t, errors.As(err, &schemaErr), "code %q", code) {
			assert.Equal(t, []string{msg}, schemaErr.Errors, "code %q", code)
		}
	}
}
