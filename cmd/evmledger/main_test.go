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

package main

import (
	"encoding/hex"
	"flag"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func codeContext(t *testing.T, args ...string) *cli.Context {
	set := flag.NewFlagSet("deploy", flag.ContinueOnError)
	set.String("file", "", "")
	require.NoError(t, set.Parse(args))

	return cli.NewContext(nil, set, nil)
}

func TestReadCode(t *testing.T) {
	code, err := readCode(codeContext(t, "0x600160005260206000f3"))
	assert.NoError(t, err)
	assert.Equal(t, "600160005260206000f3", code)

	path := filepath.Join(t.TempDir(), "init.hex")
	require.NoError(t, ioutil.WriteFile(path, []byte("5b600056\n"), 0600))

	code, err = readCode(codeContext(t, "-file", path))
	assert.NoError(t, err)
	assert.Equal(t, "5b600056", code)

	_, err = readCode(codeContext(t))
	assert.Error(t, err)
}

func TestLoadKeys(t *testing.T) {
	generated, err := loadKeys("")
	require.NoError(t, err)

	privateKey := generated.PrivateKey()

	path := filepath.Join(t.TempDir(), "wallet.txt")
	require.NoError(t, ioutil.WriteFile(path, []byte(hex.EncodeToString(privateKey[:])+"\n"), 0600))

	loaded, err := loadKeys(path)
	require.NoError(t, err)
	assert.Equal(t, generated.PublicKey(), loaded.PublicKey())

	require.NoError(t, ioutil.WriteFile(path, []byte("abcd"), 0600))
	_, err = loadKeys(path)
	assert.Error(t, err)

	_, err = loadKeys(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
