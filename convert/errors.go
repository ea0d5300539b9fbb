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

package convert

import (
	"errors"
	"fmt"
)

// Kind classifies a conversion failure.
type Kind string

const (
	KindTimeout      Kind = "TIMEOUT"
	KindSizeExceeded Kind = "SIZE_EXCEEDED"
	KindNonZeroExit  Kind = "EXIT_NON_ZERO"
	KindSpawnFailure Kind = "SPAWN_FAILURE"
)

// ErrInvalidCommand is returned when a ProcessConverter has no command.
var ErrInvalidCommand = errors.New("converter command is empty")

// ConversionError describes why an external conversion failed.
type ConversionError struct {
	Kind     Kind
	Path     string
	ExitCode int    // set for KindNonZeroExit
	Stderr   string // bounded excerpt of the process stderr
	Err      error
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("conversion of %s failed: %s", e.Path, e.Kind)
	if e.Kind == KindNonZeroExit {
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err when it is a ConversionError, or "".
func KindOf(err error) Kind {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
