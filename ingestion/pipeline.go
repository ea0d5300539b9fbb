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
	"fmt"
	"io"
	"log/slog"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/libindex/ai"
	"github.com/poiesic/libindex/chunk"
	"github.com/poiesic/libindex/clock"
	"github.com/poiesic/libindex/convert"
	"github.com/poiesic/libindex/idgen"
	"github.com/poiesic/libindex/storage"
	"github.com/poiesic/libindex/window"
)

const (
	// DefaultConcurrency is the number of documents processed in parallel.
	DefaultConcurrency = 2
	// DefaultBatchSize is the number of chunks embedded and stored per batch.
	DefaultBatchSize = 32
)

// Pipeline orchestrates library passes and single-document ingests.
// A Pipeline is safe for concurrent use; passes share one worker pool.
type Pipeline struct {
	documents storage.DocumentRepository
	chunks    storage.ChunkRepository
	converter convert.Converter
	embedder  ai.Embedder
	pool      *ants.Pool
	gate      *window.Gate

	root       string
	extensions []string
	chunking   chunk.Options
	batchSize  int

	progress      io.Writer
	progressEvery int

	clock         clock.Clock
	correlationID idgen.Generator
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithConcurrency sets how many documents a pass processes in parallel.
// Default is DefaultConcurrency, with a minimum of 1.
func WithConcurrency(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.pool != nil {
			p.pool.Release()
			p.pool = nil
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLibrary sets the library root scanned by Run and the file extensions
// it accepts. An empty extension list accepts every file.
func WithLibrary(root string, extensions ...string) Option {
	return func(p *Pipeline) error {
		p.root = root
		p.extensions = extensions
		return nil
	}
}

// WithGate sets the business-hours gate checked before a pass, before each
// conversion and before each embedding batch. A nil gate disables gating.
func WithGate(gate *window.Gate) Option {
	return func(p *Pipeline) error {
		if gate == nil {
			gate = window.Disabled()
		}
		p.gate = gate
		return nil
	}
}

// WithChunkOptions overrides the chunking parameters.
func WithChunkOptions(opts chunk.Options) Option {
	return func(p *Pipeline) error {
		p.chunking = opts
		return nil
	}
}

// WithBatchSize sets the number of chunks per embedding batch.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("invalid batch size %d", size)
		}
		p.batchSize = size
		return nil
	}
}

// WithProgress writes a progress line to w every `every` finished documents
// of a pass. A nil writer disables progress reporting.
func WithProgress(w io.Writer, every int) Option {
	return func(p *Pipeline) error {
		if every < 1 {
			every = DefaultProgressInterval
		}
		p.progress = w
		p.progressEvery = every
		return nil
	}
}

// WithClock sets the clock used for timings and timestamps.
func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) error {
		if c == nil {
			c = clock.Real
		}
		p.clock = c
		return nil
	}
}

// WithCorrelationIDs sets the generator used when Run is called without a
// correlation id. Default is idgen.Correlation.
func WithCorrelationIDs(gen idgen.Generator) Option {
	return func(p *Pipeline) error {
		if gen == nil {
			gen = idgen.Correlation
		}
		p.correlationID = gen
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline. The embedder is wrapped in an
// ai.DimensionGuard enforcing the chunk repository's dimension.
func NewPipeline(
	documents storage.DocumentRepository,
	chunks storage.ChunkRepository,
	converter convert.Converter,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if converter == nil {
		return nil, ErrConverterRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	pool, err := ants.NewPool(DefaultConcurrency)
	if err != nil {
		return nil, err
	}

	// Create pipeline with defaults
	p := &Pipeline{
		documents:     documents,
		chunks:        chunks,
		converter:     converter,
		pool:          pool,
		gate:          window.Disabled(),
		chunking:      chunk.DefaultOptions(),
		batchSize:     DefaultBatchSize,
		clock:         clock.Real,
		correlationID: idgen.Correlation,
		logger:        slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	if guard, ok := embedder.(*ai.DimensionGuard); ok && guard.Dimension() == chunks.Dimension() {
		p.embedder = guard
	} else {
		p.embedder = ai.NewDimensionGuard(embedder, chunks.Dimension())
	}
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

// Concurrency returns the size of the worker pool.
func (p *Pipeline) Concurrency() int {
	return p.pool.Cap()
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
