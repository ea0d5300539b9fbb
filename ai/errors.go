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
	"errors"
	"fmt"
)

// ErrorKind classifies an embedding failure.
type ErrorKind string

const (
	// KindDimensionMismatch means a returned vector has the wrong length
	// or the service returned the wrong number of vectors.
	KindDimensionMismatch ErrorKind = "DIMENSION_MISMATCH"
	// KindServiceFailure covers transport, quota and breaker failures.
	KindServiceFailure ErrorKind = "SERVICE_FAILURE"
)

// ErrCircuitOpen is returned while the embedding circuit breaker is open.
var ErrCircuitOpen = errors.New("embedding service circuit open")

// EmbeddingError describes a failed embedding request.
type EmbeddingError struct {
	Kind     ErrorKind
	Expected int // expected dimension, for KindDimensionMismatch
	Got      int // offending dimension, for KindDimensionMismatch
	Err      error
}

func (e *EmbeddingError) Error() string {
	switch e.Kind {
	case KindDimensionMismatch:
		if e.Err != nil {
			return fmt.Sprintf("embedding dimension mismatch: %v", e.Err)
		}
		return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Expected, e.Got)
	default:
		return fmt.Sprintf("embedding service failure: %v", e.Err)
	}
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// IsDimensionMismatch reports whether err is a dimension mismatch.
func IsDimensionMismatch(err error) bool {
	var ee *EmbeddingError
	return errors.As(err, &ee) && ee.Kind == KindDimensionMismatch
}
