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

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ResilientLLM wraps an LLM with a per-attempt timeout and bounded
// retries of transient failures.
type ResilientLLM struct {
	inner       LLM
	timeout     time.Duration
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

var _ LLM = (*ResilientLLM)(nil)

// NewResilientLLM wraps inner using the timeout and retry settings from config.
func NewResilientLLM(inner LLM, config *Config) *ResilientLLM {
	return &ResilientLLM{
		inner:       inner,
		timeout:     config.Timeout,
		maxAttempts: config.MaxAttempts,
		baseDelay:   config.RetryDelay,
		logger:      slog.Default().With("component", "resilient-llm"),
	}
}

// Complete calls the wrapped model. Each attempt gets its own deadline;
// an attempt that runs past it fails with ErrTimeout.
func (r *ResilientLLM) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var out string
	err := RetryWithBackoff(ctx, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		text, err := r.inner.Complete(attemptCtx, prompt, maxTokens)
		if err != nil {
			if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
				err = fmt.Errorf("%w: %w", ErrTimeout, err)
			}
			r.logger.Debug("completion attempt failed", "err", err)
			return err
		}
		out = text
		return nil
	}, r.maxAttempts, r.baseDelay, IsTransient)
	if err != nil {
		return "", err
	}
	return out, nil
}

// ContextWindow returns the wrapped model's context window.
func (r *ResilientLLM) ContextWindow() int {
	return r.inner.ContextWindow()
}

// CountTokens delegates to the wrapped model.
func (r *ResilientLLM) CountTokens(text string) int {
	return r.inner.CountTokens(text)
}
