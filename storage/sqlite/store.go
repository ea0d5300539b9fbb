// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlite implements the storage repositories on SQLite.
//
// The schema enforces the same invariants the pipeline relies on: unique
// filenames, unique non-null content hashes, unique (document, index)
// chunk pairs, and an embedding length fixed by the deployment dimension.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/poiesic/libindex/idgen"
	"github.com/poiesic/libindex/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id              TEXT PRIMARY KEY,
	filename        TEXT NOT NULL UNIQUE,
	path            TEXT NOT NULL,
	content_hash    TEXT UNIQUE,
	status          TEXT NOT NULL CHECK (status IN ('SCANNED', 'INDEXED', 'FAILED_PARSE', 'FAILED_EMBED', 'FAILED_INSERT')),
	error_text      TEXT,
	chunk_count     INTEGER NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL,
	last_indexed_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);
`

const chunksSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	idx         INTEGER NOT NULL CHECK (idx >= 0),
	content     TEXT NOT NULL,
	embedding   BLOB NOT NULL CHECK (length(embedding) = %d),
	created_at  INTEGER NOT NULL,
	UNIQUE (document_id, idx)
);
`

// Store owns the SQLite connection pool shared by both repositories.
type Store struct {
	db        *sql.DB
	dimension int
	newID     idgen.Generator
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets the generator for document and chunk ids.
// Default is idgen.Default.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// Open opens (creating if needed) the database file at path and migrates
// the schema. The embedding dimension is recorded on first open; reopening
// with a different dimension fails with storage.ErrDimensionMismatch.
func Open(ctx context.Context, path string, dimension int, logger *slog.Logger, opts ...Option) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dimension)
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:        db,
		dimension: dimension,
		newID:     idgen.Default,
		logger:    logger.With("component", "sqlite"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// dsn builds a connection string whose pragmas apply to every pooled
// connection. Immediate transactions take the write lock at BEGIN so
// concurrent writers wait on busy_timeout instead of failing on upgrade.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(10000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(chunksSchema, 4*s.dimension)); err != nil {
		return fmt.Errorf("create chunks table: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('embedding_dimension', ?) ON CONFLICT (key) DO NOTHING`,
		strconv.Itoa(s.dimension)); err != nil {
		return fmt.Errorf("record dimension: %w", err)
	}

	var stored string
	if err := tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'embedding_dimension'`).Scan(&stored); err != nil {
		return fmt.Errorf("read dimension: %w", err)
	}
	if stored != strconv.Itoa(s.dimension) {
		return fmt.Errorf("%w: database was created with dimension %s, configured %d",
			storage.ErrDimensionMismatch, stored, s.dimension)
	}

	return tx.Commit()
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Documents returns the document repository backed by this store.
func (s *Store) Documents() *DocumentRepository {
	return &DocumentRepository{store: s}
}

// Chunks returns the chunk repository backed by this store.
func (s *Store) Chunks() *ChunkRepository {
	return &ChunkRepository{store: s}
}

// withTx runs fn in a transaction, committing when fn returns nil.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

// mapError translates driver errors into storage sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) {
		return storage.ErrStorageClosed
	}
	if err.Error() == "sql: database is closed" {
		return storage.ErrStorageClosed
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %w", storage.ErrDuplicateKey, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
		}
	}
	return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
}
