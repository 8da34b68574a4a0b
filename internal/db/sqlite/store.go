// Package sqlite implements db.Store on an embedded SQLite file.
// Each hash is a set of rows in one table keyed by (hash, field).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/kailas-cloud/memrag/internal/db"
)

var _ db.Store = (*Store)(nil)

const schema = `CREATE TABLE IF NOT EXISTS hash_fields (
	hash  TEXT NOT NULL,
	field TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (hash, field)
)`

// Store implements db.Store on database/sql with the pure-Go SQLite driver.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema exists.
// Use ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	conn.SetMaxOpenConns(1)

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		_ = conn.Close()
		return nil, &db.Error{Op: db.OpSchema, Err: err}
	}
	return &Store{db: conn}, nil
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() {
	_ = s.db.Close()
}

// HSet upserts fields of a hash in one transaction.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO hash_fields(hash, field, value) VALUES(?, ?, ?)
		 ON CONFLICT(hash, field) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	defer stmt.Close()

	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := stmt.ExecContext(ctx, key, name, fields[name]); err != nil {
			return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("field %q: %w", name, err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	return nil
}

// HGetAll returns all fields of a hash. A missing hash yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT field, value FROM hash_fields WHERE hash = ?`, key)
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Err: err}
		}
		out[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return out, nil
}

// Del removes every field of a hash.
func (s *Store) Del(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM hash_fields WHERE hash = ?`, key); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}
