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

package store

import (
	"io"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("not found")

// KV is the ordered byte store accounts, journal entries and blocks live in.
type KV interface {
	io.Closer

	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error

	// Iterate visits every key starting with prefix in ascending key order.
	// Returning an error from fn stops the iteration and surfaces the error.
	// fn must not retain key or value past its return.
	Iterate(prefix []byte, fn func(key, value []byte) error) error

	NewBatch() *Batch
	Write(batch *Batch) error

	// Dir is the backing directory, empty for memory-only stores.
	Dir() string
}

// Open opens a LevelDB store under dir, or an in-memory store when dir is
// empty.
func Open(dir string, opts ...LevelDBOption) (KV, error) {
	if dir == "" {
		return NewInmem(), nil
	}

	return NewLevelDB(dir, opts...)
}
