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

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/poiesic/libindex/clock"
	"github.com/poiesic/libindex/core"
	"github.com/poiesic/libindex/idgen"
	"github.com/poiesic/libindex/metrics"
)

const (
	// DefaultInterval is the time between scheduled passes.
	DefaultInterval = 30 * time.Minute
	// DefaultRecentLimit is the number of recent documents Status reports.
	DefaultRecentLimit = 10
)

var (
	// ErrRunnerRequired is returned when no pass runner is provided.
	ErrRunnerRequired = errors.New("pass runner required")
	// ErrDocumentsRequired is returned when no document reader is provided.
	ErrDocumentsRequired = errors.New("document reader required")
	// ErrStopped is returned by EnsureStarted and RunNow after Stop.
	ErrStopped = errors.New("scheduler stopped")
	// ErrPassRunning is returned by RunNow while another pass is in flight.
	ErrPassRunning = errors.New("pass already running")
)

// Runner performs one library pass.
type Runner interface {
	Run(ctx context.Context, correlationID string) (*core.PassResult, error)
}

// DocumentReader provides the aggregates reported by Status.
type DocumentReader interface {
	GetRecentDocuments(ctx context.Context, limit int) ([]*core.Document, error)
	CountDocuments(ctx context.Context) (int, error)
}

// Scheduler runs passes on a fixed interval and on demand.
type Scheduler struct {
	runner      Runner
	documents   DocumentReader
	interval    time.Duration
	recentLimit int
	clock       clock.Clock
	newID       idgen.Generator
	logger      *slog.Logger

	mu      sync.Mutex
	cron    *gocron.Scheduler
	started bool
	stopped bool
	running bool
	state   core.SchedulerStatus
	passes  sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler) error

// WithInterval sets the time between scheduled passes.
// Default is DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) error {
		if d <= 0 {
			return fmt.Errorf("invalid interval %s", d)
		}
		s.interval = d
		return nil
	}
}

// WithRecentLimit sets how many recent documents Status returns.
// Default is DefaultRecentLimit.
func WithRecentLimit(n int) Option {
	return func(s *Scheduler) error {
		if n < 1 {
			n = DefaultRecentLimit
		}
		s.recentLimit = n
		return nil
	}
}

// WithClock sets the clock used for timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) error {
		if c == nil {
			c = clock.Real
		}
		s.clock = c
		return nil
	}
}

// WithCorrelationIDs sets the generator for pass correlation ids.
// Default is idgen.Correlation.
func WithCorrelationIDs(gen idgen.Generator) Option {
	return func(s *Scheduler) error {
		if gen == nil {
			gen = idgen.Correlation
		}
		s.newID = gen
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// New creates a Scheduler. It does nothing until EnsureStarted, Tick or
// Trigger is called.
func New(runner Runner, documents DocumentReader, opts ...Option) (*Scheduler, error) {
	if runner == nil {
		return nil, ErrRunnerRequired
	}
	if documents == nil {
		return nil, ErrDocumentsRequired
	}

	s := &Scheduler{
		runner:      runner,
		documents:   documents,
		interval:    DefaultInterval,
		recentLimit: DefaultRecentLimit,
		clock:       clock.Real,
		newID:       idgen.Correlation,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "scheduler")
	s.state.Interval = s.interval
	return s, nil
}

// EnsureStarted arms the recurring timer and fires one immediate
// asynchronous tick. Later calls do nothing.
func (s *Scheduler) EnsureStarted() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}

	cron := gocron.NewScheduler(time.UTC)
	_, err := cron.Every(s.interval).Tag("library-pass").WaitForSchedule().Do(func() {
		s.Tick(context.Background())
	})
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("schedule library pass: %w", err)
	}
	cron.StartAsync()
	s.cron = cron
	s.started = true
	s.state.Started = true
	s.mu.Unlock()

	s.logger.Info("scheduler started", "interval", s.interval)
	s.startAsync(true)
	return nil
}

// Tick is the timer's entry point: it records the tick and runs one pass
// synchronously. It returns false without running anything when a pass is
// already running or the scheduler was stopped. Errors and panics from the
// pass are recorded in the status, never propagated.
func (s *Scheduler) Tick(ctx context.Context) bool {
	correlationID, err := s.begin(true)
	if err != nil {
		return false
	}
	s.runPass(ctx, correlationID)
	return true
}

// Trigger starts one on-demand pass in the background, subject to the same
// idle check as Tick. It reports whether a pass was started.
func (s *Scheduler) Trigger() bool {
	return s.startAsync(false)
}

// RunNow runs one on-demand pass synchronously and returns its result. It
// shares the idle check with Tick and Trigger, failing with ErrPassRunning
// while another pass is in flight. The pass is recorded in the status like
// any other.
func (s *Scheduler) RunNow(ctx context.Context) (*core.PassResult, error) {
	correlationID, err := s.begin(false)
	if err != nil {
		return nil, err
	}
	return s.runPass(ctx, correlationID)
}

func (s *Scheduler) startAsync(scheduled bool) bool {
	correlationID, err := s.begin(scheduled)
	if err != nil {
		return false
	}
	go s.runPass(context.Background(), correlationID)
	return true
}

// begin claims the running flag. Scheduled ticks update LastTickAt even when
// the run is skipped, so NextRunAt follows the timer.
func (s *Scheduler) begin(scheduled bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		metrics.RecordTick(false)
		return "", ErrStopped
	}
	now := s.clock.Now()
	if scheduled {
		s.state.LastTickAt = now
	}
	if s.running {
		metrics.RecordTick(false)
		s.logger.Debug("pass already running, tick skipped", "scheduled", scheduled)
		return "", ErrPassRunning
	}
	correlationID := s.newID()

	s.running = true
	s.state.Running = true
	s.state.RunCount++
	s.state.LastStartedAt = now
	s.state.LastCorrelationID = correlationID
	s.passes.Add(1)
	metrics.RecordTick(true)
	return correlationID, nil
}

func (s *Scheduler) runPass(ctx context.Context, correlationID string) (*core.PassResult, error) {
	defer s.passes.Done()
	logger := s.logger.With("correlation_id", correlationID)
	logger.Info("pass starting")

	result, err := s.safeRun(ctx, correlationID)

	s.mu.Lock()
	defer s.mu.Unlock()
	finished := s.clock.Now()
	s.running = false
	s.state.Running = false
	s.state.LastFinishedAt = finished
	s.state.LastDuration = finished.Sub(s.state.LastStartedAt)
	s.state.LastResult = result
	if err != nil {
		s.state.LastError = err.Error()
		logger.Error("pass failed", "err", err)
		return nil, err
	}
	s.state.LastError = ""
	logger.Info("pass finished",
		"indexed", result.NewlyIndexedCount(),
		"skipped", result.SkippedCount(),
		"failed", result.FailedCount())
	return result, nil
}

func (s *Scheduler) safeRun(ctx context.Context, correlationID string) (result *core.PassResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("pass panicked: %v", r)
		}
	}()
	result, err = s.runner.Run(ctx, correlationID)
	if err == nil && result == nil {
		err = errors.New("pass returned no result")
	}
	return result, err
}

// Status returns the scheduler state together with a fresh read of recent
// documents and the total document count.
func (s *Scheduler) Status(ctx context.Context) (*core.SchedulerStatus, error) {
	s.mu.Lock()
	status := s.state
	s.mu.Unlock()

	if status.Started && !status.LastTickAt.IsZero() {
		status.NextRunAt = status.LastTickAt.Add(s.interval)
	}

	recent, err := s.documents.GetRecentDocuments(ctx, s.recentLimit)
	if err != nil {
		return nil, fmt.Errorf("read recent documents: %w", err)
	}
	total, err := s.documents.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if recent == nil {
		recent = []*core.Document{}
	}
	status.RecentDocuments = recent
	status.TotalDocuments = total
	return &status, nil
}

// Stop disarms the timer and waits for an in-flight pass to finish or for
// ctx to end. No pass starts after Stop.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	cron := s.cron
	s.cron = nil
	s.mu.Unlock()

	if cron != nil {
		cron.Stop()
	}

	done := make(chan struct{})
	go func() {
		s.passes.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
