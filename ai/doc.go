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

// Package ai provides abstractions for the embedding service used by libindex.
//
// The pipeline depends on the Embedder interface only. Implementations live
// in sub-packages:
//
//   - openai: OpenAI-compatible HTTP service via langchaingo
//   - mock: deterministic test double
//
// Two wrappers compose around any Embedder:
//
//   - DimensionGuard rejects vectors whose length differs from the
//     deployment dimension and classifies every failure as an
//     *EmbeddingError (DIMENSION_MISMATCH or SERVICE_FAILURE)
//   - ResilientEmbedder adds a token-bucket rate limit and a circuit breaker
//
// # Constructor Return Type Pattern
//
// Public constructors for services (openai.NewProvider, openai.NewEmbedder)
// return INTERFACE types. Test utility constructors (mock.NewMockEmbedder)
// return CONCRETE types so tests can inject behavior and inspect call counts.
//
// # Usage Example
//
//	provider, err := openai.NewProvider(ai.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vectors, err := provider.Embedder().EmbedTexts(ctx, []string{"first chunk", "second chunk"})
package ai
