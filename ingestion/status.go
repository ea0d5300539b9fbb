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
	"fmt"
	"time"

	"github.com/poiesic/libindex/core"
	"github.com/poiesic/libindex/metrics"
)

// markIndexed records a document whose every batch was committed.
func (p *Pipeline) markIndexed(ctx context.Context, id core.ID, chunkCount int, at time.Time) error {
	return p.writeStatus(ctx, id, core.StatusUpdate{
		Status:        core.StatusIndexed,
		ChunkCount:    chunkCount,
		LastIndexedAt: at,
	})
}

// markFailed records a failed stage and its error text. chunkCount reflects
// batches already committed before the failure.
func (p *Pipeline) markFailed(ctx context.Context, id core.ID, status core.Status, cause error, chunkCount int) error {
	return p.writeStatus(ctx, id, core.StatusUpdate{
		Status:     status,
		ErrorText:  cause.Error(),
		ChunkCount: chunkCount,
	})
}

// writeStatus applies a status update even when ctx has been cancelled, so a
// shutdown does not leave documents stuck in SCANNED without an error text.
func (p *Pipeline) writeStatus(ctx context.Context, id core.ID, update core.StatusUpdate) error {
	if err := p.documents.UpdateDocumentStatus(context.WithoutCancel(ctx), id, update); err != nil {
		return fmt.Errorf("write status %s for %s: %w", update.Status, id, err)
	}
	return nil
}

// logStatusFailure logs a failed status write. Progress is never reversed
// because of it.
func (p *Pipeline) logStatusFailure(err error, filename string) {
	if err == nil {
		return
	}
	metrics.RecordStatusWriteFailure()
	p.logger.Warn("status write failed", "filename", filename, "err", err)
}
