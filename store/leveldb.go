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
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var _ KV = (*levelKV)(nil)

type LevelDBOption func(*opt.Options)

// WithBloomFilter sets the bits per key of the table bloom filter. Zero
// disables the filter.
func WithBloomFilter(bitsPerKey int) LevelDBOption {
	return func(o *opt.Options) {
		if bitsPerKey <= 0 {
			o.Filter = nil
			return
		}

		o.Filter = filter.NewBloomFilter(bitsPerKey)
	}
}

func WithBlockCache(bytes int) LevelDBOption {
	return func(o *opt.Options) {
		o.BlockCacheCapacity = bytes
	}
}

type levelKV struct {
	dir string
	db  *leveldb.DB
}

func NewLevelDB(dir string, opts ...LevelDBOption) (*levelKV, error) {
	o := &opt.Options{
		Filter:       filter.NewBloomFilter(10),
		NoWriteMerge: true,
	}

	for _, apply := range opts {
		apply(o)
	}

	db, err := leveldb.OpenFile(dir, o)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open leveldb at %s", dir)
	}

	return &levelKV{dir: dir, db: db}, nil
}

func (l *levelKV) Close() error {
	return l.db.Close()
}

func (l *levelKV) Get(key []byte) ([]byte, error) {
	value, err := l.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "key %x", key)
	}

	return value, err
}

func (l *levelKV) Put(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

func (l *levelKV) Delete(key []byte) error {
	return l.db.Delete(key, nil)
}

func (l *levelKV) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	it := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()

	for it.Next() {
		if err := fn(it.Key(), it.Value()); err != nil {
			return err
		}
	}

	return it.Error()
}

func (l *levelKV) NewBatch() *Batch {
	return new(Batch)
}

func (l *levelKV) Write(batch *Batch) error {
	wb := new(leveldb.Batch)

	for _, op := range batch.ops {
		if op.del {
			wb.Delete(op.key)
		} else {
			wb.Put(op.key, op.value)
		}
	}

	return l.db.Write(wb, &opt.WriteOptions{Sync: true})
}

func (l *levelKV) Dir() string {
	return l.dir
}
