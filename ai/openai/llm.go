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

package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/kinfolk/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LLM implements ai.LLM using OpenAI-compatible chat APIs.
type LLM struct {
	client        llms.Model
	model         string
	contextWindow int
	logger        *slog.Logger
}

var _ ai.LLM = (*LLM)(nil)

func newLLM(config *ai.Config) (*LLM, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.CompletionHost),
		openai.WithToken(config.APIToken),
		openai.WithModel(config.CompletionModel),
	)
	if err != nil {
		return nil, err
	}

	return &LLM{
		client:        client,
		model:         config.CompletionModel,
		contextWindow: config.ContextWindow,
		logger:        slog.Default().With("component", "openai-llm", "model", config.CompletionModel),
	}, nil
}

// NewLLM creates a completion client wrapped with the configured timeout
// and retry policy.
//
// Returns ai.LLM interface to enforce abstraction.
func NewLLM(config *ai.Config) (ai.LLM, error) {
	llm, err := newLLM(config)
	if err != nil {
		return nil, err
	}
	return ai.NewResilientLLM(llm, config), nil
}

// Complete sends prompt as a single user message at temperature zero.
func (l *LLM) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt)},
		},
	}

	opts := []llms.CallOption{llms.WithTemperature(0.0)}
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}

	response, err := l.client.GenerateContent(ctx, content, opts...)
	if err != nil {
		l.logger.Warn("completion failed", "err", err)
		return "", classify(ctx, err)
	}
	if len(response.Choices) < 1 {
		return "", fmt.Errorf("%w: no choices returned", ai.ErrMalformedResponse)
	}

	text := strings.TrimSpace(response.Choices[0].Content)
	l.logger.Debug("completion finished", "prompt_tokens", l.CountTokens(prompt), "answer_length", len(text))
	return text, nil
}

// ContextWindow returns the configured context size.
func (l *LLM) ContextWindow() int {
	return l.contextWindow
}

// CountTokens uses the langchaingo tokenizer for the configured model.
func (l *LLM) CountTokens(text string) int {
	return llms.CountTokens(l.model, text)
}

// classify maps a client error onto the ai failure classes.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ai.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") {
		return fmt.Errorf("%w: %w", ai.ErrRateLimited, err)
	}
	return fmt.Errorf("%w: %w", ai.ErrProvider, err)
}
