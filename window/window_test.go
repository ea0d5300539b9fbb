package window

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/libindex/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTOD(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	require.NoError(t, err)
	return tod
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "08:00", want: 8 * time.Hour},
		{in: "21:30", want: 21*time.Hour + 30*time.Minute},
		{in: "00:00", want: 0},
		{in: "24:00", want: 24 * time.Hour},
		{in: " 9:05 ", want: 9*time.Hour + 5*time.Minute},
		{in: "8", wantErr: true},
		{in: "25:00", wantErr: true},
		{in: "10:60", wantErr: true},
		{in: "24:30", wantErr: true},
		{in: "ab:cd", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTimeOfDay)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, TimeOfDay(tt.want), got)
		})
	}
}

func TestTimeOfDay_String(t *testing.T) {
	assert.Equal(t, "08:00", mustTOD(t, "08:00").String())
	assert.Equal(t, "21:05", mustTOD(t, "21:05").String())
}

func TestNewGate_Validation(t *testing.T) {
	_, err := NewGate(mustTOD(t, "08:00"), mustTOD(t, "08:00"))
	assert.ErrorIs(t, err, ErrEmptyWindow)

	_, err = NewGate(mustTOD(t, "08:00"), mustTOD(t, "21:00"), WithPollInterval(0))
	assert.ErrorIs(t, err, ErrInvalidPollInterval)

	_, err = NewGate(mustTOD(t, "08:00"), mustTOD(t, "21:00"), WithLocation(nil))
	assert.ErrorIs(t, err, ErrNilLocation)

	_, err = NewGate(mustTOD(t, "08:00"), mustTOD(t, "21:00"), WithTimezone("Not/AZone"))
	assert.Error(t, err)
}

func TestGate_Allowed(t *testing.T) {
	g, err := NewGate(mustTOD(t, "08:00"), mustTOD(t, "21:00"), WithLocation(time.UTC))
	require.NoError(t, err)

	day := func(h, m int) time.Time { return time.Date(2025, 6, 2, h, m, 0, 0, time.UTC) }

	assert.False(t, g.Allowed(day(7, 59)))
	assert.True(t, g.Allowed(day(8, 0)), "start is inclusive")
	assert.True(t, g.Allowed(day(13, 30)))
	assert.True(t, g.Allowed(day(20, 59)))
	assert.False(t, g.Allowed(day(21, 0)), "end is exclusive")
	assert.False(t, g.Allowed(day(23, 0)))
}

func TestGate_AllowedUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	g, err := NewGate(mustTOD(t, "08:00"), mustTOD(t, "21:00"), WithLocation(loc))
	require.NoError(t, err)

	// 06:30 UTC is 08:30 in UTC+2.
	assert.True(t, g.Allowed(time.Date(2025, 6, 2, 6, 30, 0, 0, time.UTC)))
	// 19:30 UTC is 21:30 in UTC+2.
	assert.False(t, g.Allowed(time.Date(2025, 6, 2, 19, 30, 0, 0, time.UTC)))
}

func TestGate_AllowedOnDSTTransitionDays(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone database unavailable: %v", err)
	}
	g, err := NewGate(mustTOD(t, "08:00"), mustTOD(t, "21:00"), WithLocation(loc))
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"spring forward morning", time.Date(2025, 3, 9, 8, 30, 0, 0, loc), true},
		{"spring forward before start", time.Date(2025, 3, 9, 7, 30, 0, 0, loc), false},
		{"spring forward end", time.Date(2025, 3, 9, 21, 0, 0, 0, loc), false},
		{"fall back evening", time.Date(2025, 11, 2, 20, 30, 0, 0, loc), true},
		{"fall back start", time.Date(2025, 11, 2, 8, 0, 0, 0, loc), true},
		{"fall back after end", time.Date(2025, 11, 2, 21, 30, 0, 0, loc), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Allowed(tt.at))
			assert.Equal(t, tt.want, g.Allowed(tt.at.UTC()), "same instant in UTC")
		})
	}
}

func TestGate_AllowedWrapsMidnight(t *testing.T) {
	g, err := NewGate(mustTOD(t, "22:00"), mustTOD(t, "06:00"), WithLocation(time.UTC))
	require.NoError(t, err)

	assert.True(t, g.Allowed(time.Date(2025, 6, 2, 23, 0, 0, 0, time.UTC)))
	assert.True(t, g.Allowed(time.Date(2025, 6, 2, 2, 0, 0, 0, time.UTC)))
	assert.False(t, g.Allowed(time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC)))
	assert.False(t, g.Allowed(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)))
}

func TestGate_WaitInsideWindowReturnsImmediately(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC))
	g, err := NewGate(mustTOD(t, "08:00"), mustTOD(t, "21:00"), WithLocation(time.UTC), WithClock(fake))
	require.NoError(t, err)

	require.NoError(t, g.Wait(context.Background()))
	assert.Empty(t, fake.Sleeps())
}

func TestGate_WaitSuspendsUntilWindowOpens(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 6, 2, 7, 55, 30, 0, time.UTC))
	g, err := NewGate(mustTOD(t, "08:00"), mustTOD(t, "21:00"),
		WithLocation(time.UTC), WithClock(fake), WithPollInterval(time.Minute))
	require.NoError(t, err)

	require.NoError(t, g.Wait(context.Background()))

	// 07:55:30 -> 08:00:30 takes five one-minute polls.
	assert.Len(t, fake.Sleeps(), 5)
	assert.True(t, g.Allowed(fake.Now()))
}

func TestGate_WaitStraddlesEveningBoundary(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 6, 2, 20, 59, 0, 0, time.UTC))
	g, err := NewGate(mustTOD(t, "08:00"), mustTOD(t, "21:00"),
		WithLocation(time.UTC), WithClock(fake), WithPollInterval(time.Hour))
	require.NoError(t, err)

	require.NoError(t, g.Wait(context.Background()))
	assert.Empty(t, fake.Sleeps())

	// Work ran past 21:00; the next check suspends until the next morning.
	fake.Advance(2 * time.Minute)
	require.NoError(t, g.Wait(context.Background()))
	assert.Len(t, fake.Sleeps(), 11)
	assert.Equal(t, 8, fake.Now().Hour())
}

func TestGate_WaitContextCancelled(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC))
	g, err := NewGate(mustTOD(t, "08:00"), mustTOD(t, "21:00"), WithLocation(time.UTC), WithClock(fake))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, g.Wait(ctx), context.Canceled)
}

func TestDisabledGate(t *testing.T) {
	g := Disabled()
	assert.False(t, g.Enabled())
	assert.True(t, g.Allowed(time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)))
	assert.NoError(t, g.Wait(context.Background()))

	var nilGate *Gate
	assert.True(t, nilGate.Allowed(time.Now()))
}
