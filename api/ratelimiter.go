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
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per route and client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	rps   rate.Limit
	burst int

	// Visitors idle for longer than ttl are dropped on sweep.
	ttl time.Duration
	now func() time.Time
}

func newRateLimiter(rps float64) *rateLimiter {
	return &rateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    int(math.Max(1, rps)),
		ttl:      time.Minute,
		now:      time.Now,
	}
}

func (r *rateLimiter) allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	v, ok := r.visitors[key]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(r.rps, r.burst)}
		r.visitors[key] = v
	}

	v.lastSeen = now

	return v.bucket.AllowN(now, 1)
}

// sweep drops idle visitors and reports how many were dropped.
func (r *rateLimiter) sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	dropped := 0

	for key, v := range r.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(r.visitors, key)
			dropped++
		}
	}

	return dropped
}

// cleanup sweeps once per interval until the returned stop is called.
func (r *rateLimiter) cleanup(interval time.Duration) (stop func()) {
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()

	var once sync.Once

	return func() {
		once.Do(func() { close(done) })
	}
}

func (r *rateLimiter) limit(route string) middleware {
	retryAfter := strconv.Itoa(int(math.Ceil(1 / math.Max(float64(r.rps), 1e-3))))

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			if !r.allow(route + "|" + ctx.RemoteIP().String()) {
				// ctx.Error resets the response, headers included.
				ctx.Error(http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				ctx.Response.Header.Set("Retry-After", retryAfter)

				return
			}

			next(ctx)
		}
	}
}
