package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealSleep_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Real.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRealSleep_Elapses(t *testing.T) {
	err := Real.Sleep(context.Background(), 5*time.Millisecond)
	assert.NoError(t, err)
}

func TestFake_SleepAdvances(t *testing.T) {
	start := time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)
	f := NewFake(start)

	require.NoError(t, f.Sleep(context.Background(), time.Minute))
	require.NoError(t, f.Sleep(context.Background(), 2*time.Minute))

	assert.Equal(t, start.Add(3*time.Minute), f.Now())
	assert.Equal(t, []time.Duration{time.Minute, 2 * time.Minute}, f.Sleeps())
}

func TestFake_SleepHonoursContext(t *testing.T) {
	f := NewFake(time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, f.Sleep(ctx, time.Minute), context.Canceled)
	assert.Empty(t, f.Sleeps())
}

func TestFake_AdvanceAndSet(t *testing.T) {
	start := time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)
	f := NewFake(start)
	f.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), f.Now())

	later := start.Add(24 * time.Hour)
	f.Set(later)
	assert.Equal(t, later, f.Now())
}
