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
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]KV {
	t.Helper()

	level, err := NewLevelDB(filepath.Join(t.TempDir(), "level"))
	require.NoError(t, err)

	mem := NewInmem()

	t.Cleanup(func() {
		assert.NoError(t, level.Close())
		assert.NoError(t, mem.Close())
	})

	return map[string]KV{"inmem": mem, "level": level}
}

func TestGetPutDelete(t *testing.T) {
	for name, kv := range backends(t) {
		kv := kv

		t.Run(name, func(t *testing.T) {
			_, err := kv.Get([]byte("missing"))
			assert.True(t, errors.Is(err, ErrNotFound))

			assert.NoError(t, kv.Put([]byte("empty"), nil))
			value, err := kv.Get([]byte("empty"))
			assert.NoError(t, err)
			assert.Len(t, value, 0)

			buf := []byte("code")
			assert.NoError(t, kv.Put([]byte("acct"), buf))
			buf[0] = 'x'

			value, err = kv.Get([]byte("acct"))
			assert.NoError(t, err)
			assert.Equal(t, "code", string(value))

			assert.NoError(t, kv.Delete([]byte("acct")))
			_, err = kv.Get([]byte("acct"))
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestBatch(t *testing.T) {
	for name, kv := range backends(t) {
		kv := kv

		t.Run(name, func(t *testing.T) {
			assert.NoError(t, kv.Put([]byte("height"), []byte{1}))

			batch := kv.NewBatch()
			batch.Put([]byte("block/2"), []byte("b2"))
			batch.Put([]byte("height"), []byte{2})
			batch.Delete([]byte("block/1"))
			assert.Equal(t, 3, batch.Len())
			assert.NoError(t, kv.Write(batch))

			height, err := kv.Get([]byte("height"))
			assert.NoError(t, err)
			assert.Equal(t, []byte{2}, height)

			block, err := kv.Get([]byte("block/2"))
			assert.NoError(t, err)
			assert.Equal(t, "b2", string(block))

			batch.Reset()
			assert.Equal(t, 0, batch.Len())
		})
	}
}

func TestIterate(t *testing.T) {
	for name, kv := range backends(t) {
		kv := kv

		t.Run(name, func(t *testing.T) {
			assert.NoError(t, kv.Put([]byte("a/2"), []byte("2")))
			assert.NoError(t, kv.Put([]byte("a/1"), []byte("1")))
			assert.NoError(t, kv.Put([]byte("b/1"), []byte("x")))
			assert.NoError(t, kv.Put([]byte("0"), []byte("y")))

			var values []string
			assert.NoError(t, kv.Iterate([]byte("a/"), func(key, value []byte) error {
				values = append(values, string(value))
				return nil
			}))
			assert.Equal(t, []string{"1", "2"}, values)

			stop := errors.New("stop")
			assert.Equal(t, stop, kv.Iterate(nil, func(key, value []byte) error {
				return stop
			}))
		})
	}
}

func TestOpen(t *testing.T) {
	kv, err := Open("")
	assert.NoError(t, err)
	assert.Equal(t, "", kv.Dir())
	assert.NoError(t, kv.Close())

	dir := filepath.Join(t.TempDir(), "db")

	kv, err = Open(dir, WithBloomFilter(0), WithBlockCache(1<<20))
	assert.NoError(t, err)
	assert.Equal(t, dir, kv.Dir())
	assert.NoError(t, kv.Put([]byte("k"), []byte("v")))
	assert.NoError(t, kv.Close())

	kv, err = Open(dir)
	assert.NoError(t, err)
	defer kv.Close()

	value, err := kv.Get([]byte("k"))
	assert.NoError(t, err)
	assert.Equal(t, "v", string(value))
}
