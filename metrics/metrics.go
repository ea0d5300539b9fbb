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

// Package metrics holds the Prometheus collectors exported by libindex.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var documentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "libindex",
	Name:      "documents_processed_total",
	Help:      "Documents that reached a terminal state, labelled by status.",
}, []string{"status"})

var documentsSkipped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "libindex",
	Name:      "documents_skipped_total",
	Help:      "Files skipped because they were already reserved.",
})

var chunksStored = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "libindex",
	Name:      "chunks_stored_total",
	Help:      "Chunks committed to storage.",
})

var conversionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "libindex",
	Name:      "conversion_failures_total",
	Help:      "Converter failures labelled by kind.",
}, []string{"kind"})

var stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "libindex",
	Name:      "stage_duration_seconds",
	Help:      "Latency of per-document pipeline stages.",
	Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30, 60, 120},
}, []string{"stage"})

var passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "libindex",
	Name:      "pass_duration_seconds",
	Help:      "Duration of a full orchestrator pass.",
	Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
})

var passesRunning = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "libindex",
	Name:      "passes_running",
	Help:      "Orchestrator passes currently running.",
})

var schedulerTicks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "libindex",
	Name:      "scheduler_ticks_total",
	Help:      "Scheduler ticks labelled by outcome (started, skipped).",
}, []string{"outcome"})

var statusWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "libindex",
	Name:      "status_write_failures_total",
	Help:      "Best-effort status writes that failed.",
})

// RecordDocument counts a document that reached status.
func RecordDocument(status string) {
	documentsProcessed.WithLabelValues(status).Inc()
}

// RecordSkipped counts a file skipped on reservation conflict.
func RecordSkipped() {
	documentsSkipped.Inc()
}

// RecordChunks counts committed chunks.
func RecordChunks(n int) {
	chunksStored.Add(float64(n))
}

// RecordConversionFailure counts a converter failure of the given kind.
func RecordConversionFailure(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	conversionFailures.WithLabelValues(kind).Inc()
}

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, elapsed time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// PassStarted marks a pass as running.
func PassStarted() {
	passesRunning.Inc()
}

// PassFinished marks a pass as done and records its duration.
func PassFinished(elapsed time.Duration) {
	passesRunning.Dec()
	passDuration.Observe(elapsed.Seconds())
}

// RecordTick counts a scheduler tick outcome.
func RecordTick(started bool) {
	if started {
		schedulerTicks.WithLabelValues("started").Inc()
		return
	}
	schedulerTicks.WithLabelValues("skipped").Inc()
}

// RecordStatusWriteFailure counts a failed status write.
func RecordStatusWriteFailure() {
	statusWriteFailures.Inc()
}
