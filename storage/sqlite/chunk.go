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
	"fmt"
	"time"

	"github.com/poiesic/libindex/core"
	"github.com/poiesic/libindex/storage"
)

// ChunkRepository implements storage.ChunkRepository on SQLite.
type ChunkRepository struct {
	store *Store
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// Close is a no-op; the Store owns the connection pool.
func (r *ChunkRepository) Close() error {
	return nil
}

// Dimension returns the embedding dimension the repository enforces.
func (r *ChunkRepository) Dimension() int {
	return r.store.dimension
}

// AddChunks stores a batch of chunks in a single transaction.
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks ...*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	dim := r.store.dimension
	for _, c := range chunks {
		if c != nil && len(c.Embedding) != dim {
			return fmt.Errorf("%w: chunk %d has %d values, expected %d",
				storage.ErrDimensionMismatch, c.Index, len(c.Embedding), dim)
		}
		if err := core.ValidateChunk(c, dim); err != nil {
			return err
		}
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	ids := make([]core.ID, len(chunks))
	created := make([]time.Time, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		if ids[i] == "" {
			ids[i] = core.ID(r.store.newID())
		}
		created[i] = c.CreatedAt
		if created[i].IsZero() {
			created[i] = now
		}
	}

	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO chunks (id, document_id, idx, content, embedding, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return mapError(err)
		}
		defer stmt.Close()

		for i, c := range chunks {
			if _, err := stmt.ExecContext(ctx,
				string(ids[i]), string(c.DocumentID), c.Index, c.Content,
				storage.EncodeVector(c.Embedding), created[i].UnixMicro()); err != nil {
				return mapError(err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i, c := range chunks {
		c.ID = ids[i]
		c.CreatedAt = created[i]
	}
	return nil
}

// GetChunks returns every chunk of a document ordered by index.
func (r *ChunkRepository) GetChunks(ctx context.Context, documentID core.ID) ([]*core.Chunk, error) {
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT id, document_id, idx, content, embedding, created_at
		 FROM chunks WHERE document_id = ? ORDER BY idx`, string(documentID))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var results []*core.Chunk
	for rows.Next() {
		var (
			c         core.Chunk
			id, docID string
			blob      []byte
			createdAt int64
		)
		if err := rows.Scan(&id, &docID, &c.Index, &c.Content, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scan chunk: %w", storage.ErrSerializationFailed, err)
		}
		c.ID = core.ID(id)
		c.DocumentID = core.ID(docID)
		c.CreatedAt = time.UnixMicro(createdAt).UTC()
		if c.Embedding, err = storage.DecodeVector(blob); err != nil {
			return nil, err
		}
		results = append(results, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return results, nil
}

// CountChunks returns the number of committed chunks of a document.
func (r *ChunkRepository) CountChunks(ctx context.Context, documentID core.ID) (int, error) {
	var count int
	err := r.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_id = ?`, string(documentID)).Scan(&count)
	if err != nil {
		return 0, mapError(err)
	}
	return count, nil
}
