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

import "errors"

// LLM failure classes
var (
	// ErrTimeout indicates the model did not answer within the allotted time.
	ErrTimeout = errors.New("llm request timed out")

	// ErrRateLimited indicates the provider rejected the request for quota reasons.
	ErrRateLimited = errors.New("llm rate limited")

	// ErrProvider indicates any other failure reported by the provider.
	ErrProvider = errors.New("llm provider error")

	// ErrMalformedResponse indicates the model answered with unusable output.
	ErrMalformedResponse = errors.New("malformed llm response")
)

// Configuration errors
var (
	ErrEmbeddingHostRequired   = errors.New("ai config: EmbeddingHost is required")
	ErrCompletionHostRequired  = errors.New("ai config: CompletionHost is required")
	ErrEmbeddingModelRequired  = errors.New("ai config: EmbeddingModel is required")
	ErrCompletionModelRequired = errors.New("ai config: CompletionModel is required")
	ErrInvalidContextWindow    = errors.New("ai config: ContextWindow must be positive")
	ErrInvalidMaxAttempts      = errors.New("ai config: MaxAttempts must be positive")
	ErrInvalidTimeout          = errors.New("ai config: Timeout must be positive")
)

// IsTransient reports whether err is worth retrying.
// Timeouts and rate limiting are transient; malformed output and other
// provider errors are not.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimited)
}
