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

package core

import (
	"fmt"
	"strings"
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Filename must not be empty or whitespace
//   - Path must not be empty
//   - Status must be a defined value
//
// NOT validated (populated by the pipeline):
//   - ID (assigned on reservation when empty)
//   - ChunkCount, LastIndexedAt (set once indexed)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if strings.TrimSpace(doc.Filename) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyFilename)
	}

	if doc.Path == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyPath)
	}

	if err := ValidateStatus(doc.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return nil
}

// ValidateChunk validates a Chunk against the deployment's embedding dimension.
// A dimension of zero or less skips the embedding check.
func ValidateChunk(chunk *Chunk, dimension int) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if strings.TrimSpace(chunk.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	if chunk.Index < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrNegativeIndex)
	}

	if dimension > 0 && len(chunk.Embedding) != dimension {
		return fmt.Errorf("%w: %w: expected %d, got %d",
			ErrInvalidChunk, ErrDimensionMismatch, dimension, len(chunk.Embedding))
	}

	return nil
}

// ValidateStatus validates that a Status has a defined value.
func ValidateStatus(status Status) error {
	for _, s := range Statuses {
		if s == status {
			return nil
		}
	}
	return fmt.Errorf("%w: value %q", ErrInvalidStatus, status)
}
