package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/libindex/clock"
	"github.com/poiesic/libindex/core"
	"github.com/poiesic/libindex/idgen"
	"github.com/poiesic/libindex/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerFunc func(ctx context.Context, correlationID string) (*core.PassResult, error)

func (f runnerFunc) Run(ctx context.Context, correlationID string) (*core.PassResult, error) {
	return f(ctx, correlationID)
}

func okRunner(calls *atomic.Int32) runnerFunc {
	return func(ctx context.Context, correlationID string) (*core.PassResult, error) {
		calls.Add(1)
		return &core.PassResult{CorrelationID: correlationID, ScannedCount: 1}, nil
	}
}

func newTestScheduler(t *testing.T, runner Runner, opts ...Option) *Scheduler {
	t.Helper()
	docs, _, backend, err := badger.NewMemoryRepositories(3)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	s, err := New(runner, docs, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func TestNew_RequiresDependencies(t *testing.T) {
	docs, _, backend, err := badger.NewMemoryRepositories(3)
	require.NoError(t, err)
	defer backend.Close()

	_, err = New(nil, docs)
	assert.ErrorIs(t, err, ErrRunnerRequired)

	var calls atomic.Int32
	_, err = New(okRunner(&calls), nil)
	assert.ErrorIs(t, err, ErrDocumentsRequired)

	_, err = New(okRunner(&calls), docs, WithInterval(0))
	assert.Error(t, err)
}

func TestTick_RecordsResult(t *testing.T) {
	var calls atomic.Int32
	s := newTestScheduler(t, okRunner(&calls), WithCorrelationIDs(idgen.Sequence("tick")))
	ctx := context.Background()

	assert.True(t, s.Tick(ctx))
	assert.True(t, s.Tick(ctx))
	assert.Equal(t, int32(2), calls.Load())

	status, err := s.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Started)
	assert.False(t, status.Running)
	assert.Equal(t, 2, status.RunCount)
	assert.Equal(t, "tick-2", status.LastCorrelationID)
	require.NotNil(t, status.LastResult)
	assert.Equal(t, "tick-2", status.LastResult.CorrelationID)
	assert.Empty(t, status.LastError)
	assert.False(t, status.LastFinishedAt.IsZero())
}

func TestTick_SkipsWhileRunning(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	var calls atomic.Int32
	blocking := runnerFunc(func(ctx context.Context, correlationID string) (*core.PassResult, error) {
		calls.Add(1)
		entered <- struct{}{}
		<-release
		return &core.PassResult{CorrelationID: correlationID}, nil
	})
	s := newTestScheduler(t, blocking)
	ctx := context.Background()

	require.True(t, s.Trigger())
	<-entered

	assert.False(t, s.Tick(ctx))
	assert.False(t, s.Trigger())

	status, err := s.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, 1, status.RunCount)

	close(release)
	require.Eventually(t, func() bool {
		st, err := s.Status(ctx)
		return err == nil && !st.Running
	}, 2*time.Second, 5*time.Millisecond)

	assert.True(t, s.Tick(ctx))
	assert.Equal(t, int32(2), calls.Load())
}

func TestTick_RecoversErrorsAndPanics(t *testing.T) {
	tests := []struct {
		name    string
		runner  runnerFunc
		wantErr string
	}{
		{
			name: "error",
			runner: func(ctx context.Context, correlationID string) (*core.PassResult, error) {
				return nil, errors.New("library root unreadable")
			},
			wantErr: "library root unreadable",
		},
		{
			name: "panic",
			runner: func(ctx context.Context, correlationID string) (*core.PassResult, error) {
				panic("boom")
			},
			wantErr: "pass panicked: boom",
		},
		{
			name: "nil result",
			runner: func(ctx context.Context, correlationID string) (*core.PassResult, error) {
				return nil, nil
			},
			wantErr: "pass returned no result",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler(t, tt.runner)
			ctx := context.Background()

			assert.True(t, s.Tick(ctx))

			status, err := s.Status(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantErr, status.LastError)
			assert.Nil(t, status.LastResult)
			assert.False(t, status.Running)

			// The scheduler keeps accepting ticks after a failure.
			assert.True(t, s.Tick(ctx))
		})
	}
}

func TestEnsureStarted_IsIdempotent(t *testing.T) {
	var calls atomic.Int32
	s := newTestScheduler(t, okRunner(&calls), WithInterval(time.Hour))

	require.NoError(t, s.EnsureStarted())
	require.NoError(t, s.EnsureStarted())
	require.NoError(t, s.EnsureStarted())

	require.Eventually(t, func() bool {
		st, err := s.Status(context.Background())
		return err == nil && st.RunCount == 1 && !st.Running
	}, 2*time.Second, 5*time.Millisecond)

	// Give a stray duplicate tick the chance to show up.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	status, err := s.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Started)
	assert.Equal(t, time.Hour, status.Interval)
}

func TestStatus_ReadsDocumentsAndNextRun(t *testing.T) {
	docs, _, backend, err := badger.NewMemoryRepositories(3)
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.txt", "b.txt", "c.txt"} {
		_, err := docs.ReserveDocument(ctx, &core.Document{
			Filename:  name,
			Path:      "/library/" + name,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	fake := clock.NewFake(base)
	var calls atomic.Int32
	s, err := New(okRunner(&calls), docs, WithRecentLimit(2), WithInterval(15*time.Minute), WithClock(fake))
	require.NoError(t, err)
	defer s.Stop(ctx)

	status, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.TotalDocuments)
	require.Len(t, status.RecentDocuments, 2)
	assert.Equal(t, "c.txt", status.RecentDocuments[0].Filename)
	assert.Equal(t, "b.txt", status.RecentDocuments[1].Filename)
	assert.True(t, status.NextRunAt.IsZero())

	require.NoError(t, s.EnsureStarted())
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	status, err = s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, base, status.LastTickAt)
	assert.Equal(t, base.Add(15*time.Minute), status.NextRunAt)
}

func TestStop_WaitsForInFlightPass(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	var finished atomic.Bool
	blocking := runnerFunc(func(ctx context.Context, correlationID string) (*core.PassResult, error) {
		entered <- struct{}{}
		<-release
		finished.Store(true)
		return &core.PassResult{CorrelationID: correlationID}, nil
	})
	s := newTestScheduler(t, blocking)

	require.True(t, s.Trigger())
	<-entered

	shortCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(shortCtx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, finished.Load())

	assert.False(t, s.Tick(context.Background()))
	assert.ErrorIs(t, s.EnsureStarted(), ErrStopped)
}

func TestRunNow_ReturnsResultAndSharesIdleCheck(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	blocking := runnerFunc(func(ctx context.Context, correlationID string) (*core.PassResult, error) {
		entered <- struct{}{}
		<-release
		return &core.PassResult{CorrelationID: correlationID}, nil
	})
	s := newTestScheduler(t, blocking, WithCorrelationIDs(idgen.Sequence("run")))
	ctx := context.Background()

	require.True(t, s.Trigger())
	<-entered

	result, err := s.RunNow(ctx)
	assert.ErrorIs(t, err, ErrPassRunning)
	assert.Nil(t, result)

	close(release)
	require.Eventually(t, func() bool {
		st, err := s.Status(ctx)
		return err == nil && !st.Running
	}, 2*time.Second, 5*time.Millisecond)

	result, err = s.RunNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", result.CorrelationID)

	status, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.RunCount)
	assert.Equal(t, "run-2", status.LastResult.CorrelationID)

	require.NoError(t, s.Stop(ctx))
	_, err = s.RunNow(ctx)
	assert.ErrorIs(t, err, ErrStopped)
}

func TestRunNow_ReturnsPassError(t *testing.T) {
	failing := runnerFunc(func(ctx context.Context, correlationID string) (*core.PassResult, error) {
		return nil, errors.New("scan library: boom")
	})
	s := newTestScheduler(t, failing)

	_, err := s.RunNow(context.Background())
	require.Error(t, err)

	status, err := s.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "scan library: boom", status.LastError)
}

func TestStatus_SkippedTimerTickAdvancesNextRun(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	blocking := runnerFunc(func(ctx context.Context, correlationID string) (*core.PassResult, error) {
		entered <- struct{}{}
		<-release
		return &core.PassResult{CorrelationID: correlationID}, nil
	})
	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	fake := clock.NewFake(base)
	s := newTestScheduler(t, blocking, WithInterval(15*time.Minute), WithClock(fake))
	ctx := context.Background()
	defer close(release)

	require.NoError(t, s.EnsureStarted())
	<-entered

	// The pass outlives the interval; the timer fires and is skipped.
	fake.Advance(20 * time.Minute)
	assert.False(t, s.Tick(ctx))

	// On-demand attempts do not move the schedule.
	fake.Advance(time.Minute)
	assert.False(t, s.Trigger())

	status, err := s.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, base.Add(20*time.Minute), status.LastTickAt)
	assert.Equal(t, base.Add(35*time.Minute), status.NextRunAt)
	assert.Equal(t, base, status.LastStartedAt)
}
