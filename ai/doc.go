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

// Package ai provides abstractions for the model services Kinfolk uses.
//
// The workflow depends only on the interfaces defined here:
//
//   - LLM: text completion with a known context window and token counter
//   - Embedder: generates vector embeddings from text
//   - AIProvider: aggregates both for initialization and shutdown
//
// # Implementation Packages
//
//   - ai/openai: production implementation using OpenAI-compatible APIs
//   - ai/mock: test doubles for unit testing without external dependencies
//
// Public constructors (openai.NewProvider, openai.NewLLM) return interface
// types. Mock constructors return concrete types so tests can script
// answers and inspect recorded prompts.
//
// # Failure Handling
//
// Completion errors are classified with ErrTimeout, ErrRateLimited,
// ErrProvider and ErrMalformedResponse. ResilientLLM retries the transient
// classes with exponential backoff and enforces a per-attempt timeout.
// DecodeJSON cleans up and parses structured model answers.
//
// # Usage Example
//
//	provider, err := openai.NewProvider(ai.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	answer, err := provider.LLM().Complete(ctx, prompt, 512)
package ai
