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

package conf

import (
	"fmt"
	"sync"
	"time"

	"github.com/perlin-network/evmledger/sys"
)

// Storage key addressing modes for drained contract storage.
const (
	StorageKeysRaw    = "raw"
	StorageKeysHashed = "hashed"
)

type config struct {
	// Fee charged for a contract deployment.
	contractFee uint64

	// Gas ceiling for a single deployment's init code.
	maxContractGas uint64

	// How drained storage keys are addressed, see StorageKeysRaw.
	storageKeys string

	// Max number of transactions held in the unconfirmed pool.
	pendingTxLimit int

	// Number of goroutines verifying transactions in a batch.
	verifyWorkers int

	// Interval between metric dumps.
	metricsInterval time.Duration

	// Per-route HTTP API rate limit.
	requestsPerSecond float64

	// shared secret for http api authorization
	secret string
}

var (
	l sync.RWMutex

	c = defaultConfig()
)

func defaultConfig() config {
	return config{
		contractFee:    sys.DefaultContractFee,
		maxContractGas: sys.MaxContractGas,
		storageKeys:    StorageKeysRaw,

		pendingTxLimit: 1 << 14,
		verifyWorkers:  4,

		metricsInterval:   5 * time.Second,
		requestsPerSecond: 1000,
	}
}

type Option func(*config)

func WithContractFee(fee uint64) Option {
	return func(c *config) {
		c.contractFee = fee
	}
}

func WithMaxContractGas(gas uint64) Option {
	return func(c *config) {
		c.maxContractGas = gas
	}
}

// WithStorageKeys sets the storage key addressing mode. Unknown modes are
// ignored.
func WithStorageKeys(mode string) Option {
	return func(c *config) {
		if mode != StorageKeysRaw && mode != StorageKeysHashed {
			return
		}

		c.storageKeys = mode
	}
}

func WithPendingTxLimit(n int) Option {
	return func(c *config) {
		c.pendingTxLimit = n
	}
}

func WithVerifyWorkers(n int) Option {
	return func(c *config) {
		if n < 1 {
			n = 1
		}

		c.verifyWorkers = n
	}
}

func WithMetricsInterval(d time.Duration) Option {
	return func(c *config) {
		c.metricsInterval = d
	}
}

func WithRequestsPerSecond(rps float64) Option {
	return func(c *config) {
		c.requestsPerSecond = rps
	}
}

func WithSecret(s string) Option {
	return func(c *config) {
		c.secret = s
	}
}

func GetContractFee() uint64 {
	l.RLock()
	t := c.contractFee
	l.RUnlock()

	return t
}

func GetMaxContractGas() uint64 {
	l.RLock()
	t := c.maxContractGas
	l.RUnlock()

	return t
}

func GetStorageKeys() string {
	l.RLock()
	t := c.storageKeys
	l.RUnlock()

	return t
}

func GetPendingTxLimit() int {
	l.RLock()
	t := c.pendingTxLimit
	l.RUnlock()

	return t
}

func GetVerifyWorkers() int {
	l.RLock()
	t := c.verifyWorkers
	l.RUnlock()

	return t
}

func GetMetricsInterval() time.Duration {
	l.RLock()
	t := c.metricsInterval
	l.RUnlock()

	return t
}

func GetRequestsPerSecond() float64 {
	l.RLock()
	t := c.requestsPerSecond
	l.RUnlock()

	return t
}

func GetSecret() string {
	l.RLock()
	t := c.secret
	l.RUnlock()

	return t
}

func Update(options ...Option) {
	l.Lock()

	for _, option := range options {
		option(&c)
	}

	l.Unlock()
}

// Reset restores the default configuration.
func Reset() {
	l.Lock()
	c = defaultConfig()
	l.Unlock()
}

func Stringify() string {
	l.RLock()
	defer l.RUnlock()

	return fmt.Sprintf("%+v", c)
}
