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
	"encoding/hex"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/valyala/fastjson"
)

// object builds a JSON object on an arena. Setters return the receiver so
// responses read as a single expression.
type object struct {
	arena *fastjson.Arena
	v     *fastjson.Value
}

func newObject(arena *fastjson.Arena) object {
	return object{arena: arena, v: arena.NewObject()}
}

func (o object) setString(key, s string) object {
	o.v.Set(key, o.arena.NewString(s))
	return o
}

func (o object) setHex(key string, buf []byte) object {
	o.v.Set(key, hexValue(o.arena, buf))
	return o
}

func (o object) setAddress(key string, address common.Address) object {
	o.v.Set(key, o.arena.NewString(address.Hex()))
	return o
}

func (o object) setUint(key string, u uint64) object {
	o.v.Set(key, o.arena.NewNumberString(strconv.FormatUint(u, 10)))
	return o
}

func (o object) setInt(key string, i int) object {
	o.v.Set(key, o.arena.NewNumberInt(i))
	return o
}

func (o object) setBool(key string, b bool) object {
	if b {
		o.v.Set(key, o.arena.NewTrue())
	} else {
		o.v.Set(key, o.arena.NewFalse())
	}

	return o
}

func (o object) setValue(key string, v *fastjson.Value) object {
	o.v.Set(key, v)
	return o
}

func (o object) marshal() []byte {
	return o.v.MarshalTo(nil)
}

func hexValue(arena *fastjson.Arena, buf []byte) *fastjson.Value {
	return arena.NewString(hex.EncodeToString(buf))
}

// hexArray encodes n items as an array of hex strings.
func hexArray(arena *fastjson.Arena, n int, item func(i int) []byte) *fastjson.Value {
	list := arena.NewArray()

	for i := 0; i < n; i++ {
		list.SetArrayItem(i, hexValue(arena, item(i)))
	}

	return list
}
