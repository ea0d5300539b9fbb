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

package ingestion

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/poiesic/libindex/clock"
)

// DefaultProgressInterval is how many finished documents pass between
// progress lines.
const DefaultProgressInterval = 10

// progressTracker reports how many documents of a pass have finished.
type progressTracker struct {
	writer       io.Writer
	clock        clock.Clock
	total        int
	current      int
	every        int
	lastReported int
	startedAt    time.Time
	mu           sync.Mutex
}

func newProgressTracker(w io.Writer, c clock.Clock, total, every int) *progressTracker {
	if every < 1 {
		every = 1
	}
	return &progressTracker{
		writer:    w,
		clock:     c,
		total:     total,
		every:     every,
		startedAt: c.Now(),
	}
}

// Increment records delta more finished documents.
func (p *progressTracker) Increment(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current += delta
	if p.current > p.total {
		p.current = p.total
	}
	if p.current-p.lastReported >= p.every {
		p.report()
		p.lastReported = p.current
	}
}

// Finish prints the final line.
func (p *progressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = p.total
	p.report()
	fmt.Fprintln(p.writer)
}

// report must be called with the lock held.
func (p *progressTracker) report() {
	rate := 0.0
	if elapsed := p.clock.Now().Sub(p.startedAt); elapsed > 0 {
		rate = float64(p.current) / elapsed.Seconds()
	}

	percentage := 100.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\rProgress: %d/%d (%.1f%%) - %.1f documents/s",
		p.current, p.total, percentage, rate)
}
