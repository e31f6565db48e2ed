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
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var assetValidator = newAssetValidator()

func newAssetValidator() *validator.Validate {
	v := validator.New()

	// Even-length hex without a 0x prefix, in either case.
	if err := v.RegisterValidation("hex", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if len(s)%2 != 0 {
			return false
		}

		_, err := hex.DecodeString(s)
		return err == nil
	}); err != nil {
		panic(err)
	}

	return v
}

// validateAsset checks the asset against its static schema and reports
// every violated rule.
func validateAsset(asset *Asset) error {
	err := assetValidator.Struct(asset)
	if err == nil {
		return nil
	}

	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return &SchemaValidationError{Errors: []string{err.Error()}}
	}

	msgs := make([]string, 0, len(fields))

	for _, field := range fields {
		switch field.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("missing required property: %s", field.Field()))
		case "hex":
			msgs = append(msgs, fmt.Sprintf("object didn't pass validation for format hex: %s", field.Field()))
		default:
			msgs = append(msgs, field.Error())
		}
	}

	return &SchemaValidationError{Errors: msgs}
}
