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

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/libindex/core"
	"github.com/poiesic/libindex/storage"
)

const documentColumns = `id, filename, path, content_hash, status, error_text, chunk_count, created_at, last_indexed_at`

// DocumentRepository implements storage.DocumentRepository on SQLite.
type DocumentRepository struct {
	store *Store
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// Close is a no-op; the Store owns the connection pool.
func (r *DocumentRepository) Close() error {
	return nil
}

// ReserveDocument atomically inserts doc in the SCANNED state.
// The insert is a single conditional statement, so the database decides
// which of several concurrent reservations wins.
func (r *DocumentRepository) ReserveDocument(ctx context.Context, doc *core.Document) (*core.Document, error) {
	reserved := *doc
	reserved.Status = core.StatusScanned
	reserved.ErrorText = ""
	reserved.ChunkCount = 0
	reserved.LastIndexedAt = time.Time{}
	if reserved.ID == "" {
		reserved.ID = core.ID(r.store.newID())
	}
	if reserved.CreatedAt.IsZero() {
		reserved.CreatedAt = time.Now().UTC()
	}
	reserved.CreatedAt = reserved.CreatedAt.UTC().Truncate(time.Microsecond)
	if err := core.ValidateDocument(&reserved); err != nil {
		return nil, err
	}

	res, err := r.store.db.ExecContext(ctx,
		`INSERT INTO documents (id, filename, path, content_hash, status, chunk_count, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)
		 ON CONFLICT DO NOTHING`,
		string(reserved.ID), reserved.Filename, reserved.Path, nullString(reserved.ContentHash),
		string(reserved.Status), reserved.CreatedAt.UnixMicro())
	if err != nil {
		return nil, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, mapError(err)
	}
	if n == 0 {
		return nil, storage.ErrDuplicateKey
	}
	return &reserved, nil
}

// UpdateDocumentStatus applies update to the document with the given ID.
func (r *DocumentRepository) UpdateDocumentStatus(ctx context.Context, id core.ID, update core.StatusUpdate) error {
	if err := core.ValidateStatus(update.Status); err != nil {
		return err
	}
	var indexedAt sql.NullInt64
	if !update.LastIndexedAt.IsZero() {
		indexedAt = sql.NullInt64{Int64: update.LastIndexedAt.UnixMicro(), Valid: true}
	}
	res, err := r.store.db.ExecContext(ctx,
		`UPDATE documents
		 SET status = ?,
		     error_text = ?,
		     chunk_count = CASE WHEN ? != 0 THEN ? ELSE chunk_count END,
		     last_indexed_at = COALESCE(?, last_indexed_at)
		 WHERE id = ?`,
		string(update.Status), nullString(update.ErrorText),
		update.ChunkCount, update.ChunkCount, indexedAt, string(id))
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	return r.queryOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, string(id))
}

// FindDocumentByFilename retrieves a document by its unique filename.
func (r *DocumentRepository) FindDocumentByFilename(ctx context.Context, filename string) (*core.Document, error) {
	return r.queryOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE filename = ?`, filename)
}

// FindDocumentByHash retrieves a document by its content hash.
func (r *DocumentRepository) FindDocumentByHash(ctx context.Context, hash string) (*core.Document, error) {
	if hash == "" {
		return nil, storage.ErrNotFound
	}
	return r.queryOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE content_hash = ?`, hash)
}

// GetRecentDocuments returns up to limit documents, most recently created first.
func (r *DocumentRepository) GetRecentDocuments(ctx context.Context, limit int) ([]*core.Document, error) {
	var results []*core.Document
	if limit <= 0 {
		return results, nil
	}
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return results, nil
}

// CountDocuments returns the number of documents in storage.
func (r *DocumentRepository) CountDocuments(ctx context.Context) (int, error) {
	var count int
	if err := r.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

func (r *DocumentRepository) queryOne(ctx context.Context, query string, args ...any) (*core.Document, error) {
	doc, err := scanDocument(r.store.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*core.Document, error) {
	var (
		doc       core.Document
		id        string
		status    string
		hash      sql.NullString
		errText   sql.NullString
		createdAt int64
		indexedAt sql.NullInt64
	)
	err := row.Scan(&id, &doc.Filename, &doc.Path, &hash, &status, &errText,
		&doc.ChunkCount, &createdAt, &indexedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan document: %w", storage.ErrSerializationFailed, err)
	}
	doc.ID = core.ID(id)
	doc.Status = core.Status(status)
	doc.ContentHash = hash.String
	doc.ErrorText = errText.String
	doc.CreatedAt = time.UnixMicro(createdAt).UTC()
	if indexedAt.Valid {
		doc.LastIndexedAt = time.UnixMicro(indexedAt.Int64).UTC()
	}
	return &doc, nil
}

// nullString stores empty strings as NULL so optional unique columns
// never collide on "".
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
