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

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/poiesic/libindex/core"
	"github.com/poiesic/libindex/storage"
)

// IngestRequest describes one externally supplied file.
type IngestRequest struct {
	Path        string // location the converter reads
	Filename    string // natural key; defaults to the base name of Path
	ContentHash string // optional precomputed content hash
}

// IngestFile processes a single file outside the worker pool and the
// business-hours gate. Duplicates by hash or filename are reported as
// ALREADY_EXISTS with the stored document's data; a filename still being
// processed elsewhere is reported as IN_PROGRESS.
func (p *Pipeline) IngestFile(ctx context.Context, req IngestRequest) *core.SingleFileResult {
	filename := req.Filename
	if filename == "" {
		filename = filepath.Base(req.Path)
	}
	logger := p.logger.With("filename", filename)

	if req.ContentHash != "" {
		existing, err := p.documents.FindDocumentByHash(ctx, req.ContentHash)
		if err == nil {
			logger.Info("content already ingested", "document_id", existing.ID)
			return existingResult(existing, core.IngestAlreadyExists)
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return &core.SingleFileResult{
				Filename: filename,
				Status:   core.IngestFailedReserve,
				Error:    fmt.Sprintf("lookup by hash: %v", err),
			}
		}
	}

	doc, err := p.documents.ReserveDocument(ctx, &core.Document{
		Filename:    filename,
		Path:        req.Path,
		ContentHash: req.ContentHash,
		CreatedAt:   p.clock.Now().UTC(),
	})
	if errors.Is(err, storage.ErrDuplicateKey) {
		return p.resolveConflict(ctx, filename, req.ContentHash)
	}
	if err != nil {
		logger.Error("reservation failed", "err", err)
		return &core.SingleFileResult{
			Filename: filename,
			Status:   core.IngestFailedReserve,
			Error:    err.Error(),
		}
	}

	o := p.process(ctx, doc, false)
	result := &core.SingleFileResult{
		Success:    o.err == nil,
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		ChunkCount: o.chunkCount,
		Status:     core.IngestStatus(o.status),
	}
	if o.err != nil {
		result.Error = o.err.Error()
	}
	return result
}

// resolveConflict re-reads the document that won the reservation. A row
// that reached a terminal state is reported as ALREADY_EXISTS; one still in
// SCANNED is owned by a concurrent pass.
func (p *Pipeline) resolveConflict(ctx context.Context, filename, hash string) *core.SingleFileResult {
	existing, err := p.documents.FindDocumentByFilename(ctx, filename)
	if errors.Is(err, storage.ErrNotFound) && hash != "" {
		// The conflict came from a concurrent reservation of the same content.
		existing, err = p.documents.FindDocumentByHash(ctx, hash)
	}
	if err != nil {
		return &core.SingleFileResult{
			Filename: filename,
			Status:   core.IngestFailedReserve,
			Error:    fmt.Sprintf("reservation conflict: %v", err),
		}
	}
	if existing.Status.IsTerminal() {
		return existingResult(existing, core.IngestAlreadyExists)
	}
	return existingResult(existing, core.IngestInProgress)
}

func existingResult(doc *core.Document, status core.IngestStatus) *core.SingleFileResult {
	return &core.SingleFileResult{
		Success:    status == core.IngestAlreadyExists,
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		ChunkCount: doc.ChunkCount,
		Status:     status,
		Error:      doc.ErrorText,
	}
}
