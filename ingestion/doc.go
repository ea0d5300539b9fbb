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

// Package ingestion turns files in a document library into stored,
// embedded chunks.
//
// A Pipeline runs every document through the same stages:
//   - reserve the filename (a conflict means another pass owns it)
//   - convert the file to text with an external converter
//   - split the text into retrieval-sized chunks
//   - embed and store the chunks in fixed-size batches
//
// Run performs one pass over the library with bounded concurrency and
// returns an aggregated core.PassResult. IngestFile processes a single
// externally supplied file. A failing document is recorded with a FAILED_*
// status and never aborts the pass.
package ingestion
