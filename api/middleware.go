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
	"bytes"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/perlin-network/evmledger"
	"github.com/perlin-network/evmledger/conf"
	"github.com/perlin-network/evmledger/log"
	"github.com/perlin-network/evmledger/sys"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
)

var bearerPrefix = []byte("Bearer ")

type middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

// chain wraps h so that ms[0] runs first.
func chain(h fasthttp.RequestHandler, ms []middleware) fasthttp.RequestHandler {
	for i := range ms {
		h = ms[len(ms)-1-i](h)
	}

	return h
}

func (g *Gateway) recoverer(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		defer func() {
			if rvr := recover(); rvr != nil {
				logger := log.API("panic")
				logger.Error().
					Interface("panic", rvr).
					Bytes("path", ctx.Path()).
					Bytes("stack", debug.Stack()).
					Msg("Recovered from a panic while serving a request.")

				g.renderError(ctx, ErrInternal(errors.New(http.StatusText(http.StatusInternalServerError))))
			}
		}()

		next(ctx)
	}
}

func timeout(d time.Duration, msg string) middleware {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return fasthttp.TimeoutHandler(next, d, msg)
	}
}

// scope parses the :id route parameter and stores the result under key.
func (g *Gateway) scope(key string, parse func(param string) (interface{}, error)) middleware {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			param, ok := ctx.UserValue("id").(string)
			if !ok {
				g.renderError(ctx, ErrBadRequest(errors.New("missing id parameter")))
				return
			}

			value, err := parse(param)
			if err != nil {
				g.renderError(ctx, ErrBadRequest(err))
				return
			}

			ctx.SetUserValue(key, value)

			next(ctx)
		}
	}
}

func parseTransactionID(param string) (interface{}, error) {
	buf, err := hex.DecodeString(param)
	if err != nil {
		return nil, errors.Wrap(err, "transaction ID must be presented as valid hex")
	}

	if len(buf) != sys.SizeTransactionID {
		return nil, errors.Errorf("transaction ID must be %d bytes long", sys.SizeTransactionID)
	}

	var id evmledger.TransactionID
	copy(id[:], buf)

	return id, nil
}

func parseAddress(param string) (interface{}, error) {
	if !common.IsHexAddress(param) {
		return nil, errors.Errorf("%q is not a valid address", param)
	}

	return common.HexToAddress(param), nil
}

func (g *Gateway) txScope(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return g.scope("tx_id", parseTransactionID)(next)
}

func (g *Gateway) addressScope(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return g.scope("address", parseAddress)(next)
}

func bearerToken(ctx *fasthttp.RequestCtx) []byte {
	header := ctx.Request.Header.Peek("Authorization")
	if !bytes.HasPrefix(header, bearerPrefix) {
		return nil
	}

	return header[len(bearerPrefix):]
}

// auth admits requests carrying the configured secret as a bearer token. With
// no secret configured every request is refused.
func (g *Gateway) auth(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		secret := conf.GetSecret()

		if secret != "" && subtle.ConstantTimeCompare(bearerToken(ctx), []byte(secret)) == 1 {
			next(ctx)
			return
		}

		ctx.Response.Header.Set("WWW-Authenticate", "Bearer realm=Restricted")
		ctx.Error(http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
}
