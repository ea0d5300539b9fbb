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

package storage

import (
	"context"

	"github.com/poiesic/libindex/core"
)

// DocumentRepository tracks documents through the pipeline.
// Implementations must be thread-safe and support concurrent access.
type DocumentRepository interface {
	// ReserveDocument atomically inserts doc in the SCANNED state.
	// An empty ID is generated and CreatedAt is set when zero.
	// Returns ErrDuplicateKey if the filename, or the content hash when
	// non-empty, is already reserved. Exactly one of any number of
	// concurrent reservations for the same filename succeeds.
	ReserveDocument(ctx context.Context, doc *core.Document) (*core.Document, error)

	// UpdateDocumentStatus applies update to the document with the given ID.
	// Returns ErrNotFound if the document doesn't exist.
	UpdateDocumentStatus(ctx context.Context, id core.ID, update core.StatusUpdate) error

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// FindDocumentByFilename retrieves a document by its unique filename.
	// Returns ErrNotFound if no document has that filename.
	FindDocumentByFilename(ctx context.Context, filename string) (*core.Document, error)

	// FindDocumentByHash retrieves a document by its content hash.
	// Returns ErrNotFound if no document has that hash.
	FindDocumentByHash(ctx context.Context, hash string) (*core.Document, error)

	// GetRecentDocuments returns up to limit documents, most recently
	// created first.
	GetRecentDocuments(ctx context.Context, limit int) ([]*core.Document, error)

	// CountDocuments returns the number of documents in storage.
	CountDocuments(ctx context.Context) (int, error)

	// Close releases resources held by the repository.
	Close() error
}

// ChunkRepository stores document chunks and their embeddings.
// Implementations must be thread-safe and support concurrent access.
type ChunkRepository interface {
	// AddChunks stores a batch of chunks in a single transaction.
	// Either every chunk is committed or none is.
	// IDs and CreatedAt are populated when empty.
	// Returns ErrDimensionMismatch if any embedding has the wrong length,
	// ErrDuplicateKey if a (document, index) pair already exists and
	// ErrNotFound if a referenced document doesn't exist.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) error

	// GetChunks returns every chunk of a document ordered by index.
	GetChunks(ctx context.Context, documentID core.ID) ([]*core.Chunk, error)

	// CountChunks returns the number of committed chunks of a document.
	CountChunks(ctx context.Context, documentID core.ID) (int, error)

	// Dimension returns the embedding dimension the repository enforces.
	Dimension() int

	// Close releases resources held by the repository.
	Close() error
}
