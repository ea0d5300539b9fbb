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

// Package window restricts heavy work to a daily time-of-day window.
//
// A Gate is checked cooperatively: callers invoke Wait before each unit of
// heavy work and Wait suspends, polling on coarse intervals, until the local
// time in the configured timezone falls inside [Start, End).
package window

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/libindex/clock"
)

// DefaultPollInterval is how often a suspended Wait re-checks the window.
const DefaultPollInterval = 60 * time.Second

// TimeOfDay is an offset from local midnight.
type TimeOfDay time.Duration

// ParseTimeOfDay parses "HH:MM" (24h) into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	return TimeOfDay(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute), nil
}

// String formats the TimeOfDay as HH:MM.
func (t TimeOfDay) String() string {
	d := time.Duration(t)
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// Gate suspends callers outside a daily window.
type Gate struct {
	start    TimeOfDay
	end      TimeOfDay
	location *time.Location
	poll     time.Duration
	clock    clock.Clock
	logger   *slog.Logger
	enabled  bool
}

// Option configures a Gate.
type Option func(*Gate) error

// WithLocation sets the timezone the window is evaluated in. Default is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(g *Gate) error {
		if loc == nil {
			return ErrNilLocation
		}
		g.location = loc
		return nil
	}
}

// WithTimezone loads an IANA timezone name such as "Europe/Paris".
func WithTimezone(name string) Option {
	return func(g *Gate) error {
		if name == "" {
			return nil
		}
		loc, err := time.LoadLocation(name)
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", name, err)
		}
		g.location = loc
		return nil
	}
}

// WithPollInterval sets how often a suspended Wait re-checks the window.
// Default is 60 seconds.
func WithPollInterval(d time.Duration) Option {
	return func(g *Gate) error {
		if d <= 0 {
			return ErrInvalidPollInterval
		}
		g.poll = d
		return nil
	}
}

// WithClock sets the clock used for time checks and sleeping.
func WithClock(c clock.Clock) Option {
	return func(g *Gate) error {
		if c == nil {
			c = clock.Real
		}
		g.clock = c
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) error {
		if logger == nil {
			logger = slog.Default()
		}
		g.logger = logger
		return nil
	}
}

// NewGate creates a Gate admitting work in [start, end).
// When end is before start the window wraps past midnight.
// start == end is rejected; use Disabled for an always-open gate.
func NewGate(start, end TimeOfDay, opts ...Option) (*Gate, error) {
	if start == end {
		return nil, ErrEmptyWindow
	}
	if start < 0 || end < 0 || time.Duration(start) > 24*time.Hour || time.Duration(end) > 24*time.Hour {
		return nil, ErrInvalidTimeOfDay
	}
	g := &Gate{
		start:    start,
		end:      end,
		location: time.Local,
		poll:     DefaultPollInterval,
		clock:    clock.Real,
		logger:   slog.Default(),
		enabled:  true,
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	g.logger = g.logger.With("component", "business-hours-gate")
	return g, nil
}

// Disabled returns a Gate that always admits work.
func Disabled() *Gate {
	return &Gate{clock: clock.Real, logger: slog.Default()}
}

// Enabled reports whether the gate restricts anything.
func (g *Gate) Enabled() bool {
	return g != nil && g.enabled
}

// Allowed reports whether t falls inside the window.
func (g *Gate) Allowed(t time.Time) bool {
	if !g.Enabled() {
		return true
	}
	// Wall-clock time of day, so DST transition days keep their window.
	local := t.In(g.location)
	offset := TimeOfDay(time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second)
	if g.start < g.end {
		return offset >= g.start && offset < g.end
	}
	return offset >= g.start || offset < g.end
}

// Wait returns once the current time is inside the window, sleeping in
// poll-interval steps while outside. It returns ctx.Err() if ctx ends first.
func (g *Gate) Wait(ctx context.Context) error {
	if !g.Enabled() {
		return ctx.Err()
	}
	if g.Allowed(g.clock.Now()) {
		return nil
	}
	g.logger.Info("outside business hours, suspending",
		"window_start", g.start.String(), "window_end", g.end.String(), "location", g.location.String())
	waited := time.Duration(0)
	for {
		if err := g.clock.Sleep(ctx, g.poll); err != nil {
			return err
		}
		waited += g.poll
		if g.Allowed(g.clock.Now()) {
			g.logger.Info("inside business hours, resuming", "waited", waited)
			return nil
		}
	}
}
