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
	"github.com/rs/zerolog"
	"github.com/valyala/fastjson"
)

func init() { // nolint:gochecknoinits
	zerolog.MessageFieldName = "message"
	zerolog.LevelFieldName = "level"
	zerolog.ErrorFieldName = "error"
}

type MarshalableEvent interface {
	// MarshalEvent writes fields into the event without sending it.
	MarshalEvent(ev *zerolog.Event)
}

type MarshalableArena interface {
	MarshalArena(arena *fastjson.Arena) ([]byte, error)
}

// JSONObject is implemented by values that travel through the HTTP API and
// show up in logs.
type JSONObject interface {
	MarshalableEvent
	MarshalableArena

	UnmarshalValue(v *fastjson.Value) error
}

// EventTo writes a loggable's fields into ev and sends it with msg.
func EventTo(ev *zerolog.Event, loggable MarshalableEvent, msg string) {
	loggable.MarshalEvent(ev)
	ev.Msg(msg)
}
