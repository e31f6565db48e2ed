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

import "sync"

type job struct {
	fn   func(i int)
	i    int
	done *sync.WaitGroup
}

// WorkerPool runs batches of independent jobs on a fixed set of goroutines.
type WorkerPool struct {
	jobs chan job

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewWorkerPool(workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}

	wp := &WorkerPool{jobs: make(chan job, workers)}

	wp.wg.Add(workers)
	for w := 0; w < workers; w++ {
		go wp.work()
	}

	return wp
}

func (wp *WorkerPool) work() {
	defer wp.wg.Done()

	for j := range wp.jobs {
		j.fn(j.i)
		j.done.Done()
	}
}

// Run calls fn for every index in [0, n) and blocks until all calls returned.
// Once the pool is stopped the calls run on the caller's goroutine.
func (wp *WorkerPool) Run(n int, fn func(i int)) {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.stopped {
		for i := 0; i < n; i++ {
			fn(i)
		}

		return
	}

	var done sync.WaitGroup
	done.Add(n)

	for i := 0; i < n; i++ {
		wp.jobs <- job{fn: fn, i: i, done: &done}
	}

	done.Wait()
}

func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.stopped {
		return
	}

	wp.stopped = true
	close(wp.jobs)
	wp.wg.Wait()
}
