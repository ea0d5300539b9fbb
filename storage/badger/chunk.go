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

package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/libindex/core"
	"github.com/poiesic/libindex/idgen"
	"github.com/poiesic/libindex/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend   *Backend
	dimension int
	newID     idgen.Generator
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository enforcing the given
// embedding dimension. A nil generator means idgen.Default.
func NewChunkRepository(backend *Backend, dimension int, newID idgen.Generator) (*ChunkRepository, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dimension)
	}
	if newID == nil {
		newID = idgen.Default
	}
	return &ChunkRepository{
		backend:   backend,
		dimension: dimension,
		newID:     newID,
	}, nil
}

// Close is a no-op; the backend owns the database handle.
func (r *ChunkRepository) Close() error {
	return nil
}

// Dimension returns the embedding dimension the repository enforces.
func (r *ChunkRepository) Dimension() int {
	return r.dimension
}

// AddChunks stores a batch of chunks in a single transaction.
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks ...*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for _, c := range chunks {
		if c != nil && len(c.Embedding) != r.dimension {
			return fmt.Errorf("%w: chunk %d has %d values, expected %d",
				storage.ErrDimensionMismatch, c.Index, len(c.Embedding), r.dimension)
		}
		if err := core.ValidateChunk(c, r.dimension); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	prepared := make([]core.Chunk, len(chunks))
	for i, c := range chunks {
		prepared[i] = *c
		if prepared[i].ID == "" {
			prepared[i].ID = core.ID(r.newID())
		}
		if prepared[i].CreatedAt.IsZero() {
			prepared[i].CreatedAt = now
		}
	}

	err := r.backend.Update(func(tx *badger.Txn) error {
		checked := make(map[core.ID]bool)
		for i := range prepared {
			c := &prepared[i]
			if !checked[c.DocumentID] {
				exists, err := keyExists(tx, makeDocumentKey(c.DocumentID))
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("%w: document %s", storage.ErrNotFound, c.DocumentID)
				}
				checked[c.DocumentID] = true
			}

			key := makeChunkKey(c.DocumentID, c.Index)
			exists, err := keyExists(tx, key)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: chunk %d of document %s", storage.ErrDuplicateKey, c.Index, c.DocumentID)
			}
			if err := tx.Set(key, storage.MarshalChunk(c)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrDuplicateKey) ||
			errors.Is(err, storage.ErrStorageClosed) || errors.Is(err, storage.ErrTransactionFailed) {
			return err
		}
		return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
	}

	for i, c := range chunks {
		c.ID = prepared[i].ID
		c.CreatedAt = prepared[i].CreatedAt
	}
	return nil
}

// GetChunks returns every chunk of a document ordered by index.
func (r *ChunkRepository) GetChunks(ctx context.Context, documentID core.ID) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkPrefix(documentID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Big-endian index suffix keeps iteration in index order
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.Chunk
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			}); err != nil {
				return err
			}
			results = append(results, chunk)
		}
		return nil
	})
	return results, err
}

// CountChunks returns the number of committed chunks of a document.
func (r *ChunkRepository) CountChunks(ctx context.Context, documentID core.ID) (int, error) {
	count := 0
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makeChunkPrefix(documentID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	})
	return count, err
}
