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
	"sort"
	"sync"

	"github.com/poiesic/libindex/core"
	"github.com/poiesic/libindex/library"
	"github.com/poiesic/libindex/metrics"
	"github.com/poiesic/libindex/storage"
)

// Run performs one pass over the library. Every scanned file is attempted;
// a document failure is recorded in the result and never aborts the pass.
// Only a gate cancellation or a scan failure is returned as an error.
// An empty correlationID is replaced with a generated one.
func (p *Pipeline) Run(ctx context.Context, correlationID string) (*core.PassResult, error) {
	if p.root == "" {
		return nil, ErrLibraryRootRequired
	}
	if correlationID == "" {
		correlationID = p.correlationID()
	}
	logger := p.logger.With("correlation_id", correlationID)

	metrics.PassStarted()
	startedAt := p.clock.Now()
	defer func() {
		metrics.PassFinished(p.clock.Now().Sub(startedAt))
	}()

	if err := p.gate.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for processing window: %w", err)
	}

	entries, err := library.Scan(p.root, p.extensions)
	if err != nil {
		logger.Error("library scan failed", "root", p.root, "err", err)
		return nil, fmt.Errorf("scan library: %w", err)
	}
	logger.Info("pass started", "root", p.root, "files", len(entries))

	result := &core.PassResult{
		CorrelationID:   correlationID,
		ScannedCount:    len(entries),
		NewlyIndexed:    []core.IndexedDocument{},
		SkippedExisting: []string{},
		Failed:          []core.FailedDocument{},
		StartedAt:       startedAt,
	}

	var tracker *progressTracker
	if p.progress != nil {
		tracker = newProgressTracker(p.progress, p.clock, len(entries), p.progressEvery)
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	record := func(entry library.Entry, doc *core.Document, skipped bool, o outcome) {
		if tracker != nil {
			defer tracker.Increment(1)
		}
		mu.Lock()
		defer mu.Unlock()
		switch {
		case skipped:
			result.SkippedExisting = append(result.SkippedExisting, entry.Filename)
		case o.err != nil:
			result.Failed = append(result.Failed, core.FailedDocument{Filename: entry.Filename, Error: o.err.Error()})
		default:
			result.NewlyIndexed = append(result.NewlyIndexed, core.IndexedDocument{
				ID:         doc.ID,
				Filename:   doc.Filename,
				Path:       doc.Path,
				ChunkCount: o.chunkCount,
			})
		}
	}

	for _, entry := range entries {
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			doc, skipped, o := p.runEntry(ctx, entry)
			record(entry, doc, skipped, o)
		})
		if err != nil {
			wg.Done()
			logger.Error("failed to schedule document", "filename", entry.Filename, "err", err)
			record(entry, nil, false, outcome{err: fmt.Errorf("schedule document: %w", err)})
		}
	}
	wg.Wait()
	if tracker != nil {
		tracker.Finish()
	}

	sort.Slice(result.NewlyIndexed, func(i, j int) bool {
		return result.NewlyIndexed[i].Filename < result.NewlyIndexed[j].Filename
	})
	sort.Strings(result.SkippedExisting)
	sort.Slice(result.Failed, func(i, j int) bool {
		return result.Failed[i].Filename < result.Failed[j].Filename
	})
	result.Duration = p.clock.Now().Sub(startedAt)

	logger.Info("pass finished",
		"scanned", result.ScannedCount,
		"indexed", result.NewlyIndexedCount(),
		"skipped", result.SkippedCount(),
		"failed", result.FailedCount(),
		"duration", result.Duration)

	return result, nil
}

// runEntry reserves one scanned file and, when the reservation is won,
// processes it. skipped reports a reservation conflict.
func (p *Pipeline) runEntry(ctx context.Context, entry library.Entry) (*core.Document, bool, outcome) {
	doc, err := p.documents.ReserveDocument(ctx, &core.Document{
		Filename:  entry.Filename,
		Path:      entry.Path,
		CreatedAt: p.clock.Now().UTC(),
	})
	if errors.Is(err, storage.ErrDuplicateKey) {
		metrics.RecordSkipped()
		p.logger.Debug("document already reserved, skipping", "filename", entry.Filename)
		return nil, true, outcome{}
	}
	if err != nil {
		p.logger.Error("reservation failed", "filename", entry.Filename, "err", err)
		return nil, false, outcome{err: fmt.Errorf("reserve document: %w", err)}
	}
	return doc, false, p.process(ctx, doc, true)
}
