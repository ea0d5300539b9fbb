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

package core

import "time"

// ID is an opaque unique identifier for documents and chunks.
type ID string

// Status is the pipeline state of a document.
type Status string

const (
	// StatusScanned is the initial state, set when a document is reserved.
	StatusScanned Status = "SCANNED"
	// StatusIndexed means every chunk batch was committed.
	StatusIndexed Status = "INDEXED"
	// StatusFailedParse covers conversion failures and empty chunk output.
	StatusFailedParse Status = "FAILED_PARSE"
	// StatusFailedEmbed means an embedding batch failed.
	StatusFailedEmbed Status = "FAILED_EMBED"
	// StatusFailedInsert means a storage transaction failed.
	StatusFailedInsert Status = "FAILED_INSERT"
)

// Statuses lists every defined Status value.
var Statuses = []Status{
	StatusScanned,
	StatusIndexed,
	StatusFailedParse,
	StatusFailedEmbed,
	StatusFailedInsert,
}

// IsTerminal reports whether no further pipeline transition can follow s.
func (s Status) IsTerminal() bool {
	return s != StatusScanned
}

// IsFailure reports whether s is one of the FAILED_* states.
func (s Status) IsFailure() bool {
	switch s {
	case StatusFailedParse, StatusFailedEmbed, StatusFailedInsert:
		return true
	}
	return false
}

// Document is one source file tracked end-to-end through the pipeline.
// Rows are created on reservation and never deleted by the pipeline.
type Document struct {
	ID            ID        `json:"id"`
	Filename      string    `json:"filename"`              // unique natural key
	Path          string    `json:"path"`                  // storage locator
	ContentHash   string    `json:"content_hash,omitempty"` // optional, unique when non-empty
	Status        Status    `json:"status"`
	ErrorText     string    `json:"error_text,omitempty"`
	ChunkCount    int       `json:"chunk_count"`
	CreatedAt     time.Time `json:"created_at"`
	LastIndexedAt time.Time `json:"last_indexed_at"` // zero until indexed
}

// Chunk is a retrieval-sized segment of a document and its embedding.
type Chunk struct {
	ID         ID
	DocumentID ID
	Index      int // 0-based, contiguous within a document
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}

// StatusUpdate is the patch a status write applies to a document.
// Zero values of ChunkCount and LastIndexedAt leave the stored values untouched.
type StatusUpdate struct {
	Status        Status
	ErrorText     string
	ChunkCount    int
	LastIndexedAt time.Time
}

// IndexedDocument describes a document newly indexed during a pass.
type IndexedDocument struct {
	ID         ID     `json:"id"`
	Filename   string `json:"filename"`
	Path       string `json:"path"`
	ChunkCount int    `json:"chunk_count"`
}

// FailedDocument describes a document that failed during a pass.
type FailedDocument struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// PassResult is the aggregated, immutable outcome of one orchestrator pass.
type PassResult struct {
	CorrelationID   string            `json:"correlation_id"`
	ScannedCount    int               `json:"scanned_count"`
	NewlyIndexed    []IndexedDocument `json:"newly_indexed"`
	SkippedExisting []string          `json:"skipped_existing"`
	Failed          []FailedDocument  `json:"failed"`
	StartedAt       time.Time         `json:"started_at"`
	Duration        time.Duration     `json:"duration"`
}

// NewlyIndexedCount returns the number of documents indexed in the pass.
func (r *PassResult) NewlyIndexedCount() int {
	return len(r.NewlyIndexed)
}

// SkippedCount returns the number of files skipped because they were already reserved.
func (r *PassResult) SkippedCount() int {
	return len(r.SkippedExisting)
}

// FailedCount returns the number of documents that failed in the pass.
func (r *PassResult) FailedCount() int {
	return len(r.Failed)
}

// IngestStatus is the outcome reported for a single-document ingest.
type IngestStatus string

const (
	IngestIndexed       IngestStatus = IngestStatus(StatusIndexed)
	IngestFailedParse   IngestStatus = IngestStatus(StatusFailedParse)
	IngestFailedEmbed   IngestStatus = IngestStatus(StatusFailedEmbed)
	IngestFailedInsert  IngestStatus = IngestStatus(StatusFailedInsert)
	IngestAlreadyExists IngestStatus = "ALREADY_EXISTS"
	// IngestInProgress is reported when the filename is reserved by a
	// document that has not reached a terminal state yet.
	IngestInProgress IngestStatus = "IN_PROGRESS"
	// IngestFailedReserve is reported when the reservation itself failed
	// for a reason other than a conflict.
	IngestFailedReserve IngestStatus = "FAILED_RESERVE"
)

// SingleFileResult is the structured result of a single-document ingest.
type SingleFileResult struct {
	Success    bool         `json:"success"`
	DocumentID ID           `json:"document_id,omitempty"`
	Filename   string       `json:"filename"`
	ChunkCount int          `json:"chunk_count"`
	Status     IngestStatus `json:"status"`
	Error      string       `json:"error,omitempty"`
}

// SchedulerStatus is a snapshot of the background scheduler.
type SchedulerStatus struct {
	Started           bool          `json:"started"`
	Running           bool          `json:"running"`
	RunCount          int           `json:"run_count"`
	Interval          time.Duration `json:"interval"`
	LastCorrelationID string        `json:"last_correlation_id,omitempty"`
	LastStartedAt     time.Time     `json:"last_started_at"`
	LastFinishedAt    time.Time     `json:"last_finished_at"`
	LastDuration      time.Duration `json:"last_duration"`
	LastError         string        `json:"last_error,omitempty"`
	LastResult        *PassResult   `json:"last_result,omitempty"`
	LastTickAt        time.Time     `json:"last_tick_at"`
	NextRunAt         time.Time     `json:"next_run_at"`

	RecentDocuments []*Document `json:"recent_documents"`
	TotalDocuments  int         `json:"total_documents"`
}
