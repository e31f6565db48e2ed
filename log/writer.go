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
	"io"
	"sync"
	"sync/atomic"
)

// writerSet fans every log line out to a keyed set of writers. The set is
// copied on change so that writes never take a lock.
type writerSet struct {
	mu      sync.Mutex
	current atomic.Value // map[string]io.Writer
}

func newWriterSet() *writerSet {
	s := new(writerSet)
	s.current.Store(map[string]io.Writer{})

	return s
}

func (s *writerSet) load() map[string]io.Writer {
	return s.current.Load().(map[string]io.Writer)
}

func (s *writerSet) update(fn func(next map[string]io.Writer)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.load()
	next := make(map[string]io.Writer, len(prev)+1)

	for key, w := range prev {
		next[key] = w
	}

	fn(next)
	s.current.Store(next)
}

func (s *writerSet) Set(key string, w io.Writer) {
	s.update(func(next map[string]io.Writer) { next[key] = w })
}

func (s *writerSet) Clear(key string) {
	s.update(func(next map[string]io.Writer) { delete(next, key) })
}

// Write hands p to every writer. A failing writer does not starve the rest;
// the first error is returned.
func (s *writerSet) Write(p []byte) (int, error) {
	var first error

	for _, w := range s.load() {
		n, err := w.Write(p)
		if err == nil && n != len(p) {
			err = io.ErrShortWrite
		}

		if err != nil && first == nil {
			first = err
		}
	}

	return len(p), first
}
