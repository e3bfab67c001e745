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
	"log/slog"

	"github.com/poiesic/kinfolk/ai"
)

// Provider implements ai.AIProvider using OpenAI-compatible services.
type Provider struct {
	config   *ai.Config
	llm      ai.LLM
	embedder *Embedder
	logger   *slog.Logger
}

// NewProvider builds the completion and embedding clients described by
// config. The completion client retries transient failures.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	llm, err := NewLLM(config)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		config:   config,
		llm:      llm,
		embedder: embedder,
		logger:   slog.Default().With("component", "openai-provider"),
	}
	p.logger.Debug("provider ready",
		"completion_host", config.CompletionHost, "completion_model", config.CompletionModel,
		"embedding_host", config.EmbeddingHost, "embedding_model", config.EmbeddingModel)
	return p, nil
}

// LLM returns the completion service.
func (p *Provider) LLM() ai.LLM {
	return p.llm
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close releases resources held by the provider. The langchaingo clients
// hold none, so this only logs.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
