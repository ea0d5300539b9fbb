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

// Package storage provides the storage abstraction layer for libindex.
//
// This package defines repository interfaces that decouple storage
// implementation from the ingestion pipeline. Two backends implement them:
// storage/badger (embedded key-value store) and storage/sqlite (relational,
// with the documents and chunks tables enforcing uniqueness and foreign keys).
//
// # Architecture
//
//   - DocumentRepository: reservation guard, status writes and lookups
//   - ChunkRepository: transactional chunk batches with dimension checks
//
// # Usage
//
//	docs, chunks, backend, err := badger.NewMemoryRepositories(1536)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
