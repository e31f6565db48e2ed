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

// Package sqlstore persists the row representations produced by transaction
// types into a SQL database.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bobg/sqlutil"
	"github.com/perlin-network/evmledger/log"
	"github.com/pkg/errors"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

var (
	ErrUnknownTable = errors.New("unknown table")
	ErrUnknownField = errors.New("unknown field")
	ErrRowNotFound  = errors.New("row not found")
)

// Row is the persistence representation of a transaction asset.
type Row struct {
	Table  string
	Fields []string
	Values map[string]interface{}
}

type Store struct {
	db *sql.DB
}

// Open opens a sqlite3 database at dsn and creates the schema. An empty dsn
// opens a private in-memory database.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite database %q", dsn)
	}

	// Every connection to :memory: gets its own database.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func columns(table string) ([]string, error) {
	cols, ok := tables[table]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTable, "%q", table)
	}

	return cols, nil
}

func (r Row) check() error {
	cols, err := columns(r.Table)
	if err != nil {
		return err
	}

	if len(r.Fields) != len(cols) {
		return errors.Errorf("table %q expects %d fields, got %d", r.Table, len(cols), len(r.Fields))
	}

	for _, field := range r.Fields {
		found := false

		for _, col := range cols {
			if col == field {
				found = true
				break
			}
		}

		if !found {
			return errors.Wrapf(ErrUnknownField, "%q in table %q", field, r.Table)
		}

		if _, ok := r.Values[field]; !ok {
			return errors.Errorf("missing value for field %q", field)
		}
	}

	return nil
}

// Save inserts the row, replacing any row with the same key.
func (s *Store) Save(ctx context.Context, row Row) error {
	if err := row.check(); err != nil {
		return err
	}

	args := make([]interface{}, 0, len(row.Fields))
	for _, field := range row.Fields {
		args = append(args, row.Values[field])
	}

	q := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		row.Table,
		strings.Join(row.Fields, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(row.Fields)), ", "),
	)

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return errors.Wrapf(err, "failed to save row into %q", row.Table)
	}

	cols, _ := columns(row.Table)

	logger := log.Store("saved")
	logger.Debug().
		Str("table", row.Table).
		Interface("key", row.Values[cols[0]]).
		Msg("Saved row.")

	return nil
}

// Load reads the row keyed by key as a column name to value map.
func (s *Store) Load(ctx context.Context, table, key string) (map[string]interface{}, error) {
	cols, err := columns(table)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", strings.Join(cols, ", "), table, cols[0])

	values := make([]sql.NullString, len(cols))
	dest := make([]interface{}, len(cols))

	for i := range values {
		dest[i] = &values[i]
	}

	if err := s.db.QueryRowContext(ctx, q, key).Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(ErrRowNotFound, "%s %q", table, key)
		}

		return nil, errors.Wrapf(err, "failed to load row from %q", table)
	}

	raw := make(map[string]interface{}, len(cols))

	for i, col := range cols {
		if values[i].Valid {
			raw[col] = values[i].String
		}
	}

	return raw, nil
}

func (s *Store) Delete(ctx context.Context, table, key string) error {
	cols, err := columns(table)
	if err != nil {
		return err
	}

	q := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, cols[0])

	if _, err := s.db.ExecContext(ctx, q, key); err != nil {
		return errors.Wrapf(err, "failed to delete row from %q", table)
	}

	return nil
}

// ForEachCode visits every persisted contract code row in key order.
func (s *Store) ForEachCode(ctx context.Context, fn func(transactionID, code string) error) error {
	const q = `SELECT transactionId, code FROM code ORDER BY transactionId`

	return sqlutil.ForQueryRows(ctx, s.db, q, fn)
}

func (s *Store) Count(ctx context.Context, table string) (int, error) {
	if _, err := columns(table); err != nil {
		return 0, err
	}

	var n int

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "failed to count rows of %q", table)
	}

	return n, nil
}
