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

package window

import "errors"

var (
	// ErrInvalidTimeOfDay is returned for malformed or out-of-range times.
	ErrInvalidTimeOfDay = errors.New("invalid time of day")

	// ErrEmptyWindow is returned when start and end are equal.
	ErrEmptyWindow = errors.New("window start and end must differ")

	// ErrInvalidPollInterval is returned for non-positive poll intervals.
	ErrInvalidPollInterval = errors.New("poll interval must be positive")

	// ErrNilLocation is returned when a nil location is supplied.
	ErrNilLocation = errors.New("location required")
)
