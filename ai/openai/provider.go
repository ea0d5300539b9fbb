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

package openai

import (
	"log/slog"
	"time"

	"github.com/poiesic/libindex/ai"
)

// Provider implements ai.Provider using an OpenAI-compatible service.
// The embedder it hands out is wrapped in rate limiting, a circuit breaker
// and a dimension guard, outermost last.
type Provider struct {
	config   *ai.Config
	raw      *Embedder
	embedder ai.Embedder
	logger   *slog.Logger
}

var _ ai.Provider = (*Provider)(nil)

// ProviderOption configures a Provider.
type ProviderOption func(*providerSettings)

type providerSettings struct {
	requestsPerSecond float64
	burst             int
	maxAttempts       int
	retryDelay        time.Duration
	logger            *slog.Logger
}

// WithRateLimit caps requests per second sent to the service.
func WithRateLimit(requestsPerSecond float64, burst int) ProviderOption {
	return func(s *providerSettings) {
		s.requestsPerSecond = requestsPerSecond
		s.burst = burst
	}
}

// WithRetry retries failed requests up to maxAttempts times in total.
func WithRetry(maxAttempts int, baseDelay time.Duration) ProviderOption {
	return func(s *providerSettings) {
		s.maxAttempts = maxAttempts
		s.retryDelay = baseDelay
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(s *providerSettings) {
		s.logger = logger
	}
}

// NewProvider creates a new AI provider with an OpenAI-compatible service.
// The config is validated and normalized before use.
//
// Returns ai.Provider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config, opts ...ProviderOption) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	s := &providerSettings{maxAttempts: 1, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	raw, err := newEmbedder(config, s.logger)
	if err != nil {
		return nil, err
	}

	resilient := ai.NewResilientEmbedder(raw,
		ai.WithRateLimit(s.requestsPerSecond, s.burst),
		ai.WithCircuitBreaker(5, 30*time.Second),
		ai.WithRetry(s.maxAttempts, s.retryDelay),
		ai.WithResilienceLogger(s.logger),
	)

	return &Provider{
		config:   config,
		raw:      raw,
		embedder: ai.NewDimensionGuard(resilient, config.Dimension),
		logger:   s.logger.With("component", "openai-provider"),
	}, nil
}

// Embedder returns the guarded text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
