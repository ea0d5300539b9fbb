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

package libindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/poiesic/libindex/ai"
	"github.com/poiesic/libindex/ai/openai"
	"github.com/poiesic/libindex/clock"
	"github.com/poiesic/libindex/config"
	"github.com/poiesic/libindex/convert"
	"github.com/poiesic/libindex/core"
	"github.com/poiesic/libindex/ingestion"
	"github.com/poiesic/libindex/library"
	"github.com/poiesic/libindex/scheduler"
	"github.com/poiesic/libindex/storage"
	"github.com/poiesic/libindex/storage/badger"
	"github.com/poiesic/libindex/storage/sqlite"
	"github.com/poiesic/libindex/window"
)

// Index wires storage, conversion, embedding, the ingestion pipeline and
// the scheduler together from one config.Config.
type Index struct {
	config       *config.Config
	documents    storage.DocumentRepository
	chunks       storage.ChunkRepository
	closeStorage func() error
	provider     ai.Provider
	pipeline     *ingestion.Pipeline
	scheduler    *scheduler.Scheduler
	logger       *slog.Logger
}

// Option configures an Index.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	embedder  ai.Embedder
	converter convert.Converter
	clock     clock.Clock
	progress  io.Writer
	every     int
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEmbedder replaces the OpenAI-compatible embedding service.
func WithEmbedder(e ai.Embedder) Option {
	return func(o *options) {
		o.embedder = e
	}
}

// WithConverter replaces the external converter process.
func WithConverter(c convert.Converter) Option {
	return func(o *options) {
		o.converter = c
	}
}

// WithClock sets the clock shared by the gate, pipeline and scheduler.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithProgress reports scan progress to w every `every` documents.
func WithProgress(w io.Writer, every int) Option {
	return func(o *options) {
		o.progress = w
		o.every = every
	}
}

// Open validates cfg and builds every component. The caller must Close
// the returned Index.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Index, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := &options{logger: slog.Default(), clock: clock.Real}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.clock == nil {
		o.clock = clock.Real
	}

	idx := &Index{config: cfg, logger: o.logger}
	if err := idx.openStorage(ctx); err != nil {
		return nil, err
	}

	embedder := o.embedder
	if embedder == nil {
		provider, err := openai.NewProvider(cfg.AIConfig(),
			openai.WithRateLimit(cfg.Embedding.RequestsPerSecond, cfg.Embedding.Burst),
			openai.WithRetry(cfg.Embedding.MaxAttempts, cfg.Embedding.RetryDelay),
			openai.WithLogger(o.logger))
		if err != nil {
			idx.Close()
			return nil, fmt.Errorf("create embedding provider: %w", err)
		}
		idx.provider = provider
		embedder = provider.Embedder()
	}

	converter := o.converter
	if converter == nil {
		pc, err := convert.NewProcessConverter(cfg.Converter.Command,
			convert.WithArgs(cfg.Converter.Args...),
			convert.WithTimeout(cfg.Converter.Timeout),
			convert.WithMaxOutputBytes(cfg.Converter.MaxOutputBytes),
			convert.WithEnv(cfg.Converter.Env),
			convert.WithLogger(o.logger))
		if err != nil {
			idx.Close()
			return nil, fmt.Errorf("create converter: %w", err)
		}
		converter = pc
	}

	gate, err := newGate(cfg.Window, o.clock, o.logger)
	if err != nil {
		idx.Close()
		return nil, err
	}

	idx.pipeline, err = ingestion.NewPipeline(idx.documents, idx.chunks, converter, embedder,
		ingestion.WithLibrary(cfg.Library.Root, cfg.Library.Extensions...),
		ingestion.WithConcurrency(cfg.Pipeline.Concurrency),
		ingestion.WithBatchSize(cfg.Embedding.BatchSize),
		ingestion.WithChunkOptions(cfg.ChunkOptions()),
		ingestion.WithGate(gate),
		ingestion.WithClock(o.clock),
		ingestion.WithProgress(o.progress, o.every),
		ingestion.WithLogger(o.logger))
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	idx.scheduler, err = scheduler.New(idx.pipeline, idx.documents,
		scheduler.WithInterval(cfg.Scheduler.Interval),
		scheduler.WithRecentLimit(cfg.Scheduler.RecentLimit),
		scheduler.WithClock(o.clock),
		scheduler.WithLogger(o.logger))
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	return idx, nil
}

func (idx *Index) openStorage(ctx context.Context) error {
	cfg := idx.config
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.Storage.Path, cfg.Embedding.Dimension, idx.logger)
		if err != nil {
			return fmt.Errorf("open sqlite storage: %w", err)
		}
		idx.documents = store.Documents()
		idx.chunks = store.Chunks()
		idx.closeStorage = store.Close
	default:
		backend, err := badger.OpenBackend(cfg.Storage.Path, false, idx.logger)
		if err != nil {
			return fmt.Errorf("open badger storage: %w", err)
		}
		docs, err := badger.NewDocumentRepository(backend, nil)
		if err != nil {
			backend.Close()
			return err
		}
		chunks, err := badger.NewChunkRepository(backend, cfg.Embedding.Dimension, nil)
		if err != nil {
			backend.Close()
			return err
		}
		idx.documents = docs
		idx.chunks = chunks
		idx.closeStorage = backend.Close
	}
	return nil
}

func newGate(cfg config.WindowConfig, c clock.Clock, logger *slog.Logger) (*window.Gate, error) {
	if cfg.Start == "" && cfg.End == "" {
		return window.Disabled(), nil
	}
	start, err := window.ParseTimeOfDay(cfg.Start)
	if err != nil {
		return nil, err
	}
	end, err := window.ParseTimeOfDay(cfg.End)
	if err != nil {
		return nil, err
	}
	opts := []window.Option{window.WithClock(c), window.WithLogger(logger)}
	if cfg.Timezone != "" {
		opts = append(opts, window.WithTimezone(cfg.Timezone))
	}
	if cfg.PollInterval > 0 {
		opts = append(opts, window.WithPollInterval(cfg.PollInterval))
	}
	return window.NewGate(start, end, opts...)
}

// Close stops the scheduler, waiting for an in-flight pass, and releases
// every resource.
func (idx *Index) Close() error {
	var errs []error
	if idx.scheduler != nil {
		if err := idx.scheduler.Stop(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	if idx.pipeline != nil {
		idx.pipeline.Release()
	}
	if idx.provider != nil {
		if err := idx.provider.Close(); err != nil {
			idx.logger.Error("error closing embedding provider", "err", err)
			errs = append(errs, err)
		}
	}
	if idx.closeStorage != nil {
		if err := idx.closeStorage(); err != nil {
			idx.logger.Error("error closing storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns the validated configuration.
func (idx *Index) Config() *config.Config {
	return idx.config
}

// Documents returns the document repository.
func (idx *Index) Documents() storage.DocumentRepository {
	return idx.documents
}

// Chunks returns the chunk repository.
func (idx *Index) Chunks() storage.ChunkRepository {
	return idx.chunks
}

// Pipeline returns the ingestion pipeline.
func (idx *Index) Pipeline() *ingestion.Pipeline {
	return idx.pipeline
}

// Scheduler returns the background scheduler.
func (idx *Index) Scheduler() *scheduler.Scheduler {
	return idx.scheduler
}

// Scan runs one library pass immediately through the scheduler, so it never
// overlaps a scheduled or triggered pass. It fails with
// scheduler.ErrPassRunning while one is in flight.
func (idx *Index) Scan(ctx context.Context) (*core.PassResult, error) {
	return idx.scheduler.RunNow(ctx)
}

// IngestFile hashes and ingests one file. Files under the library root are
// keyed by their root-relative path, like the scanner does; others by their
// base name.
func (idx *Index) IngestFile(ctx context.Context, path string) (*core.SingleFileResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	hash, err := library.HashFile(abs)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", path, err)
	}
	return idx.pipeline.IngestFile(ctx, ingestion.IngestRequest{
		Path:        abs,
		Filename:    idx.filenameFor(abs),
		ContentHash: hash,
	}), nil
}

func (idx *Index) filenameFor(abs string) string {
	if root := idx.config.Library.Root; root != "" {
		if rootAbs, err := filepath.Abs(root); err == nil {
			if rel, err := filepath.Rel(rootAbs, abs); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				return filepath.ToSlash(rel)
			}
		}
	}
	return filepath.Base(abs)
}

// Status returns the scheduler status with fresh document aggregates.
func (idx *Index) Status(ctx context.Context) (*core.SchedulerStatus, error) {
	return idx.scheduler.Status(ctx)
}
