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

package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codeRow(id, code string) Row {
	return Row{
		Table:  "code",
		Fields: []string{"code", "transactionId"},
		Values: map[string]interface{}{
			"code":          code,
			"transactionId": id,
		},
	}
}

func TestSaveLoadDelete(t *testing.T) {
	ctx := context.Background()

	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.Save(ctx, codeRow("aa", "600160005260206000f3")))

	raw, err := s.Load(ctx, "code", "aa")
	assert.NoError(t, err)
	assert.Equal(t, "600160005260206000f3", raw["code"])
	assert.Equal(t, "aa", raw["transactionId"])

	// Saving the same key replaces the row.
	assert.NoError(t, s.Save(ctx, codeRow("aa", "00")))

	n, err := s.Count(ctx, "code")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.NoError(t, s.Delete(ctx, "code", "aa"))

	_, err = s.Load(ctx, "code", "aa")
	assert.True(t, errors.Is(err, ErrRowNotFound))
}

func TestRowChecks(t *testing.T) {
	ctx := context.Background()

	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	row := codeRow("aa", "00")
	row.Table = "votes"
	assert.True(t, errors.Is(s.Save(ctx, row), ErrUnknownTable))

	row = codeRow("aa", "00")
	row.Fields = []string{"code", "vote"}
	assert.True(t, errors.Is(s.Save(ctx, row), ErrUnknownField))

	row = codeRow("aa", "00")
	delete(row.Values, "code")
	assert.Error(t, s.Save(ctx, row))

	_, err = s.Load(ctx, "votes", "aa")
	assert.True(t, errors.Is(err, ErrUnknownTable))
}

func TestForEachCodeOnDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rows.db")

	s, err := Open(path)
	require.NoError(t, err)

	assert.NoError(t, s.Save(ctx, codeRow("bb", "02")))
	assert.NoError(t, s.Save(ctx, codeRow("aa", "01")))
	assert.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	var ids, codes []string
	assert.NoError(t, s.ForEachCode(ctx, func(id, code string) error {
		ids = append(ids, id)
		codes = append(codes, code)
		return nil
	}))

	assert.Equal(t, []string{"aa", "bb"}, ids)
	assert.Equal(t, []string{"01", "02"}, codes)
}
