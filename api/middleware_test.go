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
	"net/http"
	"strings"
	"testing"

	"github.com/perlin-network/evmledger/conf"
	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestChainOrder(t *testing.T) {
	var order []string

	tag := func(name string) middleware {
		return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
			return func(ctx *fasthttp.RequestCtx) {
				order = append(order, name)
				next(ctx)
			}
		}
	}

	h := chain(func(*fasthttp.RequestCtx) { order = append(order, "handler") }, []middleware{tag("a"), tag("b")})
	h(new(fasthttp.RequestCtx))

	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestRecoverer(t *testing.T) {
	g, _ := newTestGateway(t)

	ctx := new(fasthttp.RequestCtx)

	g.recoverer(func(*fasthttp.RequestCtx) {
		panic("boom")
	})(ctx)

	assert.Equal(t, http.StatusInternalServerError, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), http.StatusText(http.StatusInternalServerError))
}

func TestAuth(t *testing.T) {
	g, _ := newTestGateway(t)

	var served int
	h := g.auth(func(*fasthttp.RequestCtx) { served++ })

	call := func(header string) int {
		ctx := new(fasthttp.RequestCtx)
		if header != "" {
			ctx.Request.Header.Set("Authorization", header)
		}

		h(ctx)

		return ctx.Response.StatusCode()
	}

	// Without a configured secret nothing gets through.
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "))
	assert.Equal(t, 0, served)

	conf.Update(conf.WithSecret(testSecret))
	defer conf.Reset()

	assert.Equal(t, http.StatusUnauthorized, call(""))
	assert.Equal(t, http.StatusUnauthorized, call("Bearer wrong"))
	assert.Equal(t, http.StatusUnauthorized, call(testSecret))
	assert.Equal(t, http.StatusOK, call("Bearer "+testSecret))
	assert.Equal(t, 1, served)
}

func TestParseScopes(t *testing.T) {
	_, err := parseTransactionID("zz")
	assert.Error(t, err)

	id, err := parseTransactionID("01" + strings.Repeat("00", 31))
	assert.NoError(t, err)
	assert.Equal(t, byte(1), id.([32]byte)[0])

	address, err := parseAddress("0x00000000000000000000000000000000000000ff")
	assert.NoError(t, err)
	assert.NotNil(t, address)

	_, err = parseAddress("0x1")
	assert.Error(t, err)
}
