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
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/buaazp/fasthttprouter"
	"github.com/perlin-network/evmledger"
	"github.com/perlin-network/evmledger/conf"
	"github.com/perlin-network/evmledger/log"
	"github.com/perlin-network/noise/skademlia"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/pprofhandler"
	"github.com/valyala/fastjson"
	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"
)

const (
	requestTimeout  = 60 * time.Second
	limiterInterval = 10 * time.Minute
)

type Gateway struct {
	*Config
	addr string
	tls  *tls.Config

	router    *fasthttprouter.Router
	server    *fasthttp.Server
	serverTLS *fasthttp.Server

	rateLimiter *rateLimiter
	stopLimiter func()

	parserPool *fastjson.ParserPool
	arenaPool  *fastjson.ArenaPool
}

type Config struct {
	Port int // for HTTP only, HTTPS is hard-coded to be :443

	Ledger *evmledger.Ledger
	Keys   *skademlia.Keypair

	// Wraps every handler in a 60 second timeout.
	EnableTimeout bool

	// Both needs to be non-empty for TLS to be enabled.
	HostPolicy   string
	CertCacheDir string
}

type route struct {
	method  string
	path    string
	handler fasthttp.RequestHandler

	limited bool
	ms      []middleware
}

func New(opts *Config) *Gateway {
	g := &Gateway{
		Config:      opts,
		addr:        ":" + strconv.Itoa(opts.Port),
		parserPool:  new(fastjson.ParserPool),
		arenaPool:   new(fastjson.ArenaPool),
		rateLimiter: newRateLimiter(conf.GetRequestsPerSecond()),
	}

	if opts.HostPolicy != "" && opts.CertCacheDir != "" {
		manager := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			Cache:      autocert.DirCache(opts.CertCacheDir),
			HostPolicy: autocert.HostWhitelist(opts.HostPolicy),
		}

		// No "h2": fasthttp speaks HTTP/1.1 only.
		g.tls = &tls.Config{
			GetCertificate: manager.GetCertificate,
			NextProtos:     []string{"http/1.1", acme.ALPNProto},
		}
	}

	g.router = fasthttprouter.New()

	// fasthttprouter treats OPTIONS on a known route as not found, so CORS
	// preflights are answered from the not found handler.
	g.router.HandleOPTIONS = false
	g.router.NotFound = g.notFound()

	for _, r := range g.routes() {
		g.handle(r)
	}

	g.server = &fasthttp.Server{Handler: g.router.Handler}

	if g.tls != nil {
		g.serverTLS = &fasthttp.Server{Handler: g.router.Handler}
	}

	return g
}

func (g *Gateway) routes() []route {
	return []route{
		{method: "GET", path: "/debug/*p", handler: pprofhandler.PprofHandler, limited: true},
		{method: "GET", path: "/ledger", handler: g.ledgerStatus, limited: true},

		{method: "GET", path: "/accounts/:id", handler: g.getAccount, ms: []middleware{g.addressScope}},

		{method: "GET", path: "/tx", handler: g.listTransactions, limited: true},
		{method: "POST", path: "/tx/send", handler: g.sendTransaction},
		{method: "POST", path: "/tx/verify", handler: g.verifyTransactions, limited: true},
		{method: "GET", path: "/tx/:id", handler: g.getTransaction, ms: []middleware{g.txScope}},
		{method: "DELETE", path: "/tx/:id", handler: g.discardTransaction, limited: true, ms: []middleware{g.auth, g.txScope}},

		{method: "POST", path: "/block", handler: g.applyBlock, limited: true, ms: []middleware{g.auth}},
		{method: "POST", path: "/block/revert", handler: g.revertBlock, limited: true, ms: []middleware{g.auth}},
		{method: "GET", path: "/block/:index", handler: g.getBlock},
	}
}

// handle registers r behind recovery, rate limiting, CORS and the optional
// timeout, in that order.
func (g *Gateway) handle(r route) {
	ms := []middleware{g.recoverer}

	if r.limited {
		ms = append(ms, g.rateLimiter.limit(r.path))
	}

	ms = append(ms, cors())

	if g.EnableTimeout {
		ms = append(ms, timeout(requestTimeout, "Request timed out."))
	}

	g.router.Handle(r.method, r.path, chain(r.handler, append(ms, r.ms...)))
}

// Start listens on the configured port, and on :443 when TLS is set up. It
// does not block.
func (g *Gateway) Start() error {
	ln, err := net.Listen("tcp4", g.addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", g.addr)
	}

	var lnTLS net.Listener

	if g.tls != nil {
		if lnTLS, err = net.Listen("tcp", ":443"); err != nil {
			_ = ln.Close()
			return errors.Wrap(err, "failed to listen on :443")
		}
	}

	g.stopLimiter = g.rateLimiter.cleanup(limiterInterval)

	go g.serve(g.server, ln, g.addr)

	if lnTLS != nil {
		go g.serve(g.serverTLS, tls.NewListener(lnTLS, g.tls), ":443")
	}

	return nil
}

func (g *Gateway) serve(server *fasthttp.Server, ln net.Listener, addr string) {
	logger := log.API("serve")
	logger.Info().Str("addr", addr).Msg("Serving the HTTP API.")

	if err := server.Serve(ln); err != nil {
		logger.Error().Err(err).Str("addr", addr).Msg("HTTP API server stopped.")
	}
}

func (g *Gateway) Shutdown() {
	logger := log.API("shutdown")

	if g.stopLimiter != nil {
		g.stopLimiter()
	}

	for _, server := range []*fasthttp.Server{g.serverTLS, g.server} {
		if server == nil {
			continue
		}

		if err := server.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop the HTTP API server.")
		}
	}
}

func (g *Gateway) notFound() fasthttp.RequestHandler {
	methods := []string{"GET", "POST", "PUT", "DELETE", "PATCH"}

	notFound := func(ctx *fasthttp.RequestCtx) {
		ctx.Error(http.StatusText(http.StatusNotFound), http.StatusNotFound)
	}

	preflight := cors()(notFound)

	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Method()) != "OPTIONS" {
			notFound(ctx)
			return
		}

		var lookup fasthttp.RequestCtx

		for _, method := range methods {
			if h, _ := g.router.Lookup(method, string(ctx.Path()), &lookup); h != nil {
				preflight(ctx)
				return
			}
		}

		notFound(ctx)
	}
}

func (g *Gateway) render(ctx *fasthttp.RequestCtx, m log.MarshalableArena) {
	g.write(ctx, http.StatusOK, m)
}

func (g *Gateway) renderError(ctx *fasthttp.RequestCtx, e *ErrResponse) {
	g.write(ctx, e.HTTPStatusCode, e)
}

func (g *Gateway) write(ctx *fasthttp.RequestCtx, status int, m log.MarshalableArena) {
	arena := g.arenaPool.Get()
	defer g.arenaPool.Put(arena)

	body, err := m.MarshalArena(arena)
	if err != nil {
		ctx.Error(fmt.Sprintf(`{"error":"render error: %s"}`, err), http.StatusInternalServerError)
		return
	}

	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}
