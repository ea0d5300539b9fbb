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
	"log/slog"

	"github.com/poiesic/libindex/chunk"
	"github.com/poiesic/libindex/convert"
	"github.com/poiesic/libindex/core"
	"github.com/poiesic/libindex/metrics"
)

// outcome is the result of running one reserved document through the stages.
type outcome struct {
	status     core.Status
	chunkCount int
	err        error
}

// process runs convert, chunk, embed and store for a reserved document and
// records the resulting status. When gated is set the business-hours gate is
// consulted before conversion and before every embedding batch.
func (p *Pipeline) process(ctx context.Context, doc *core.Document, gated bool) outcome {
	logger := p.logger.With("filename", doc.Filename, "document_id", doc.ID)

	if gated {
		if err := p.gate.Wait(ctx); err != nil {
			return p.fail(ctx, logger, doc, core.StatusFailedParse, fmt.Errorf("waiting for processing window: %w", err), 0)
		}
	}

	started := p.clock.Now()
	text, err := p.converter.Convert(ctx, doc.Path)
	metrics.ObserveStage("convert", p.clock.Now().Sub(started))
	if err != nil {
		if kind := convert.KindOf(err); kind != "" {
			metrics.RecordConversionFailure(string(kind))
		}
		return p.fail(ctx, logger, doc, core.StatusFailedParse, err, 0)
	}

	pieces := chunk.Split(text, p.chunking)
	if len(pieces) == 0 {
		return p.fail(ctx, logger, doc, core.StatusFailedParse, ErrNoChunks, 0)
	}
	logger.Debug("document chunked", "chunks", len(pieces))

	stored := 0
	for start := 0; start < len(pieces); start += p.batchSize {
		end := min(start+p.batchSize, len(pieces))
		batch := pieces[start:end]

		if gated {
			if err := p.gate.Wait(ctx); err != nil {
				return p.fail(ctx, logger, doc, core.StatusFailedEmbed, fmt.Errorf("waiting for processing window: %w", err), stored)
			}
		}

		started = p.clock.Now()
		vectors, err := p.embedder.EmbedTexts(ctx, batch)
		metrics.ObserveStage("embed", p.clock.Now().Sub(started))
		if err != nil {
			return p.fail(ctx, logger, doc, core.StatusFailedEmbed, err, stored)
		}

		chunks := make([]*core.Chunk, len(batch))
		for i, content := range batch {
			chunks[i] = &core.Chunk{
				DocumentID: doc.ID,
				Index:      start + i,
				Content:    content,
				Embedding:  vectors[i],
			}
		}

		started = p.clock.Now()
		err = p.chunks.AddChunks(ctx, chunks...)
		metrics.ObserveStage("store", p.clock.Now().Sub(started))
		if err != nil {
			return p.fail(ctx, logger, doc, core.StatusFailedInsert, err, stored)
		}
		stored += len(batch)
		metrics.RecordChunks(len(batch))
	}

	p.logStatusFailure(p.markIndexed(ctx, doc.ID, stored, p.clock.Now().UTC()), doc.Filename)
	metrics.RecordDocument(string(core.StatusIndexed))
	logger.Info("document indexed", "chunks", stored)

	return outcome{status: core.StatusIndexed, chunkCount: stored}
}

func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, doc *core.Document, status core.Status, cause error, stored int) outcome {
	logger.Warn("document failed", "status", status, "stored_chunks", stored, "err", cause)
	p.logStatusFailure(p.markFailed(ctx, doc.ID, status, cause, stored), doc.Filename)
	metrics.RecordDocument(string(status))
	return outcome{status: status, chunkCount: stored, err: cause}
}
