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

package ai

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/libindex/clock"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ResilientEmbedder throttles calls to an upstream embedder with a token
// bucket, retries transient failures with backoff and trips a circuit
// breaker after repeated failures, so a failing service is not hammered by
// every document in a pass.
type ResilientEmbedder struct {
	next        Embedder
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	maxAttempts int
	retryDelay  time.Duration
	clock       clock.Clock
	logger      *slog.Logger
}

var _ Embedder = (*ResilientEmbedder)(nil)

// ResilienceOption configures a ResilientEmbedder.
type ResilienceOption func(*resilienceSettings)

type resilienceSettings struct {
	requestsPerSecond float64
	burst             int
	failureThreshold  uint32
	openTimeout       time.Duration
	maxAttempts       int
	retryDelay        time.Duration
	clock             clock.Clock
	logger            *slog.Logger
}

// WithRateLimit caps upstream requests per second. Zero or less disables it.
func WithRateLimit(requestsPerSecond float64, burst int) ResilienceOption {
	return func(s *resilienceSettings) {
		s.requestsPerSecond = requestsPerSecond
		s.burst = burst
	}
}

// WithCircuitBreaker sets how many consecutive failures open the circuit
// and how long it stays open before probing again.
func WithCircuitBreaker(consecutiveFailures uint32, openTimeout time.Duration) ResilienceOption {
	return func(s *resilienceSettings) {
		s.failureThreshold = consecutiveFailures
		s.openTimeout = openTimeout
	}
}

// WithRetry retries a failed request up to maxAttempts times in total,
// doubling the delay from baseDelay. Requests rejected by an open circuit
// are not retried. Default is a single attempt.
func WithRetry(maxAttempts int, baseDelay time.Duration) ResilienceOption {
	return func(s *resilienceSettings) {
		s.maxAttempts = maxAttempts
		s.retryDelay = baseDelay
	}
}

// WithResilienceClock sets the clock used for retry backoff.
func WithResilienceClock(c clock.Clock) ResilienceOption {
	return func(s *resilienceSettings) {
		s.clock = c
	}
}

// WithResilienceLogger sets a custom logger.
func WithResilienceLogger(logger *slog.Logger) ResilienceOption {
	return func(s *resilienceSettings) {
		s.logger = logger
	}
}

// NewResilientEmbedder wraps next with rate limiting and a circuit breaker.
func NewResilientEmbedder(next Embedder, opts ...ResilienceOption) *ResilientEmbedder {
	s := &resilienceSettings{
		failureThreshold: 5,
		openTimeout:      30 * time.Second,
		maxAttempts:      1,
		clock:            clock.Real,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxAttempts < 1 {
		s.maxAttempts = 1
	}
	if s.clock == nil {
		s.clock = clock.Real
	}
	logger := s.logger.With("component", "resilient-embedder")

	var limiter *rate.Limiter
	if s.requestsPerSecond > 0 {
		burst := s.burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(s.requestsPerSecond), burst)
	}

	threshold := s.failureThreshold
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "embedding",
		MaxRequests: 1,
		Timeout:     s.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return threshold > 0 && counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Cancellation is the caller's doing, not a service fault.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &ResilientEmbedder{
		next:        next,
		limiter:     limiter,
		breaker:     breaker,
		maxAttempts: s.maxAttempts,
		retryDelay:  s.retryDelay,
		clock:       s.clock,
		logger:      logger,
	}
}

// EmbedText embeds one text through the limiter and breaker.
func (r *ResilientEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	out, err := r.execute(ctx, func() (interface{}, error) {
		return r.next.EmbedText(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return out.([]float32), nil
}

// EmbedTexts embeds a batch through the limiter and breaker.
func (r *ResilientEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := r.execute(ctx, func() (interface{}, error) {
		return r.next.EmbedTexts(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return out.([][]float32), nil
}

func (r *ResilientEmbedder) execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	var out interface{}
	err := RetryWithBackoff(ctx, r.clock, func() error {
		var err error
		out, err = r.attempt(ctx, fn)
		return err
	}, retryable, r.maxAttempts, r.retryDelay)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	return !errors.Is(err, ErrCircuitOpen) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func (r *ResilientEmbedder) attempt(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, &EmbeddingError{Kind: KindServiceFailure, Err: err}
		}
	}
	out, err := r.breaker.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &EmbeddingError{Kind: KindServiceFailure, Err: errors.Join(ErrCircuitOpen, err)}
		}
		return nil, err
	}
	return out, nil
}

// State returns the circuit breaker state.
func (r *ResilientEmbedder) State() gobreaker.State {
	return r.breaker.State()
}
