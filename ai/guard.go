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
	"fmt"
)

// DimensionGuard wraps an Embedder and rejects any output whose vectors do
// not all have the configured dimension. Every error it returns is an
// *EmbeddingError.
type DimensionGuard struct {
	next      Embedder
	dimension int
}

var _ Embedder = (*DimensionGuard)(nil)

// NewDimensionGuard wraps next, enforcing vectors of length dimension.
func NewDimensionGuard(next Embedder, dimension int) *DimensionGuard {
	return &DimensionGuard{next: next, dimension: dimension}
}

// Dimension returns the enforced vector length.
func (g *DimensionGuard) Dimension() int {
	return g.dimension
}

// EmbedText embeds one text and checks its dimension.
func (g *DimensionGuard) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vec, err := g.next.EmbedText(ctx, text)
	if err != nil {
		return nil, serviceFailure(err)
	}
	if len(vec) != g.dimension {
		return nil, &EmbeddingError{Kind: KindDimensionMismatch, Expected: g.dimension, Got: len(vec)}
	}
	return vec, nil
}

// EmbedTexts embeds a batch and checks the count and every dimension.
func (g *DimensionGuard) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := g.next.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, serviceFailure(err)
	}
	if len(vecs) != len(texts) {
		return nil, &EmbeddingError{
			Kind: KindDimensionMismatch,
			Err:  fmt.Errorf("expected %d vectors, got %d", len(texts), len(vecs)),
		}
	}
	for i, v := range vecs {
		if len(v) != g.dimension {
			return nil, &EmbeddingError{
				Kind:     KindDimensionMismatch,
				Expected: g.dimension,
				Got:      len(v),
				Err:      fmt.Errorf("vector %d: expected %d, got %d", i, g.dimension, len(v)),
			}
		}
	}
	return vecs, nil
}

// serviceFailure wraps err unless it already is an EmbeddingError.
func serviceFailure(err error) error {
	var ee *EmbeddingError
	if errors.As(err, &ee) {
		return err
	}
	return &EmbeddingError{Kind: KindServiceFailure, Err: err}
}
