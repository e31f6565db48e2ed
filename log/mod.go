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

	"github.com/rs/zerolog"
)

const (
	LoggerStdout = "stdout"

	KeyModule = "mod"
	KeyEvent  = "event"

	ModuleNode     = "node"
	ModuleAccounts = "accounts"
	ModuleContract = "contract"
	ModuleTX       = "tx"
	ModulePipeline = "pipeline"
	ModuleMetrics  = "metrics"
	ModuleAPI      = "api"
	ModuleStore    = "store"
)

var (
	output = newWriterSet()
	root   = zerolog.New(output).With().Timestamp().Logger()

	modulesMu sync.RWMutex
	modules   = map[string]zerolog.Logger{}
	level     = zerolog.DebugLevel
)

func module(name string) zerolog.Logger {
	modulesMu.RLock()
	logger, ok := modules[name]
	modulesMu.RUnlock()

	if ok {
		return logger
	}

	modulesMu.Lock()
	defer modulesMu.Unlock()

	if logger, ok = modules[name]; !ok {
		logger = root.With().Str(KeyModule, name).Logger().Level(level)
		modules[name] = logger
	}

	return logger
}

// SetLevel sets the minimum level of every module logger. Unknown level
// names are ignored.
func SetLevel(name string) {
	l, err := zerolog.ParseLevel(name)
	if err != nil {
		return
	}

	modulesMu.Lock()
	defer modulesMu.Unlock()

	level = l

	for key, logger := range modules {
		modules[key] = logger.Level(l)
	}
}

func SetWriter(key string, w io.Writer) {
	output.Set(key, w)
}

func ClearWriter(key string) {
	output.Clear(key)
}

func withEvent(name, event string) zerolog.Logger {
	logger := module(name)
	return logger.With().Str(KeyEvent, event).Logger()
}

func Node() zerolog.Logger {
	return module(ModuleNode)
}

func Metrics() zerolog.Logger {
	return module(ModuleMetrics)
}

func Accounts(event string) zerolog.Logger {
	return withEvent(ModuleAccounts, event)
}

func Contracts(event string) zerolog.Logger {
	return withEvent(ModuleContract, event)
}

func TX(event string) zerolog.Logger {
	return withEvent(ModuleTX, event)
}

func Pipeline(event string) zerolog.Logger {
	return withEvent(ModulePipeline, event)
}

func API(event string) zerolog.Logger {
	return withEvent(ModuleAPI, event)
}

func Store(event string) zerolog.Logger {
	return withEvent(ModuleStore, event)
}
