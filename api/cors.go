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
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
)

// corsConfig follows the shape of labstack/echo's CORS middleware.
type corsConfig struct {
	// Origins allowed to access the resource. "*" allows any origin, and
	// patterns like "https://*.example.com" allow subdomains.
	allowOrigins []string

	// Methods and headers answered to preflight requests.
	allowMethods []string
	allowHeaders []string

	allowCredentials bool

	// Response headers exposed to the client.
	exposeHeaders []string

	// Seconds a preflight response may be cached for.
	maxAge int
}

var defaultCORSConfig = corsConfig{
	allowOrigins:     []string{"*"},
	allowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	allowHeaders:     []string{"*"},
	exposeHeaders:    []string{"Link"},
	allowCredentials: true,
	maxAge:           300,
}

func cors() middleware {
	return corsWithConfig(defaultCORSConfig)
}

// allowedOrigin returns the value of Access-Control-Allow-Origin for origin,
// or an empty string if origin is not allowed.
func (c corsConfig) allowedOrigin(origin string) string {
	for _, o := range c.allowOrigins {
		switch {
		case o == "*" && c.allowCredentials:
			return origin
		case o == "*", o == origin:
			return o
		case matchSubdomain(origin, o):
			return origin
		}
	}

	return ""
}

func corsWithConfig(config corsConfig) middleware {
	if len(config.allowOrigins) == 0 {
		config.allowOrigins = defaultCORSConfig.allowOrigins
	}

	if len(config.allowMethods) == 0 {
		config.allowMethods = defaultCORSConfig.allowMethods
	}

	var (
		allowMethods  = strings.Join(config.allowMethods, ",")
		allowHeaders  = strings.Join(config.allowHeaders, ",")
		exposeHeaders = strings.Join(config.exposeHeaders, ",")
		maxAge        = strconv.Itoa(config.maxAge)
	)

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			header := &ctx.Response.Header

			header.Add("Vary", "Origin")
			header.Set("Access-Control-Allow-Origin", config.allowedOrigin(string(ctx.Request.Header.Peek("Origin"))))

			if config.allowCredentials {
				header.Set("Access-Control-Allow-Credentials", "true")
			}

			if string(ctx.Method()) != http.MethodOptions {
				if exposeHeaders != "" {
					header.Set("Access-Control-Expose-Headers", exposeHeaders)
				}

				next(ctx)
				return
			}

			header.Add("Vary", "Access-Control-Request-Method")
			header.Add("Vary", "Access-Control-Request-Headers")
			header.Set("Access-Control-Allow-Methods", allowMethods)

			if allowHeaders != "" {
				header.Set("Access-Control-Allow-Headers", allowHeaders)
			} else if h := ctx.Request.Header.Peek("Access-Control-Request-Headers"); len(h) > 0 {
				header.SetBytesV("Access-Control-Allow-Headers", h)
			}

			if config.maxAge > 0 {
				header.Set("Access-Control-Max-Age", maxAge)
			}

			ctx.Response.SetStatusCode(http.StatusNoContent)
		}
	}
}

// matchSubdomain reports whether domain matches a pattern such as
// "https://*.example.com".
func matchSubdomain(domain, pattern string) bool {
	didx, pidx := strings.Index(domain, "://"), strings.Index(pattern, "://")
	if didx == -1 || pidx == -1 || domain[:didx] != pattern[:pidx] {
		return false
	}

	domAuth, patAuth := domain[didx+3:], pattern[pidx+3:]

	// Bounded by the longest valid hostname.
	if len(domAuth) > 253 {
		return false
	}

	domComp, patComp := strings.Split(domAuth, "."), strings.Split(patAuth, ".")

	for i := 0; i < len(domComp); i++ {
		if i >= len(patComp) {
			return false
		}

		d, p := domComp[len(domComp)-1-i], patComp[len(patComp)-1-i]

		if p == "*" {
			return true
		}

		if p != d {
			return false
		}
	}

	return false
}
