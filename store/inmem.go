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
	"bytes"
	"sync"

	"github.com/huandu/skiplist"
	"github.com/pkg/errors"
)

var _ KV = (*inmemKV)(nil)

// inmemKV keeps keys sorted in a skiplist so prefix iteration matches LevelDB.
type inmemKV struct {
	sync.RWMutex
	list *skiplist.SkipList
}

func NewInmem() *inmemKV {
	var greater skiplist.GreaterThanFunc = func(lhs, rhs interface{}) bool {
		return bytes.Compare(lhs.([]byte), rhs.([]byte)) > 0
	}

	return &inmemKV{list: skiplist.New(greater)}
}

func (s *inmemKV) Close() error {
	s.Lock()
	s.list.Init()
	s.Unlock()

	return nil
}

func (s *inmemKV) Get(key []byte) ([]byte, error) {
	s.RLock()
	defer s.RUnlock()

	value, ok := s.list.GetValue(key)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "key %x", key)
	}

	return clone(value.([]byte)), nil
}

func (s *inmemKV) Put(key, value []byte) error {
	s.Lock()
	s.list.Set(clone(key), clone(value))
	s.Unlock()

	return nil
}

func (s *inmemKV) Delete(key []byte) error {
	s.Lock()
	s.list.Remove(key)
	s.Unlock()

	return nil
}

func (s *inmemKV) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	s.RLock()
	defer s.RUnlock()

	for elem := s.list.Front(); elem != nil; elem = elem.Next() {
		key := elem.Key().([]byte)

		if !bytes.HasPrefix(key, prefix) {
			if bytes.Compare(key, prefix) > 0 {
				break
			}

			continue
		}

		if err := fn(key, elem.Value.([]byte)); err != nil {
			return err
		}
	}

	return nil
}

func (s *inmemKV) NewBatch() *Batch {
	return new(Batch)
}

func (s *inmemKV) Write(batch *Batch) error {
	s.Lock()
	defer s.Unlock()

	for _, op := range batch.ops {
		if op.del {
			s.list.Remove(op.key)
		} else {
			s.list.Set(op.key, op.value)
		}
	}

	return nil
}

func (s *inmemKV) Dir() string {
	return ""
}
