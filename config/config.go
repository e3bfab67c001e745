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

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/poiesic/kinfolk/ai"
	"github.com/poiesic/kinfolk/workflow"
	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// Config is the complete assistant configuration.
type Config struct {
	AI       AIConfig        `yaml:"ai"`
	Storage  StorageConfig   `yaml:"storage"`
	Search   SearchConfig    `yaml:"search"`
	Workflow workflow.Config `yaml:"workflow"`
	Metrics  MetricsConfig   `yaml:"metrics"`
}

// AIConfig mirrors ai.Config with YAML keys.
type AIConfig struct {
	EmbeddingHost   string        `yaml:"embedding_host"`
	CompletionHost  string        `yaml:"completion_host"`
	EmbeddingModel  string        `yaml:"embedding_model"`
	CompletionModel string        `yaml:"completion_model"`
	APIToken        string        `yaml:"api_token"`
	ContextWindow   int           `yaml:"context_window"`
	MaxAttempts     int           `yaml:"max_attempts"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	Timeout         time.Duration `yaml:"timeout"`
}

// StorageConfig selects where passages and genealogy records live.
type StorageConfig struct {
	// Backend is "badger" (default) or "postgres".
	Backend string `yaml:"backend"`

	// Path is the badger database directory.
	Path string `yaml:"path"`

	// URL is the postgres connection string.
	URL string `yaml:"url"`
}

// SearchConfig tunes the semantic retriever.
type SearchConfig struct {
	MinSimilarity float64 `yaml:"min_similarity"`
	VerbatimBoost float64 `yaml:"verbatim_boost"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	base := ai.DefaultConfig()
	return &Config{
		AI: AIConfig{
			EmbeddingHost:   base.EmbeddingHost,
			CompletionHost:  base.CompletionHost,
			EmbeddingModel:  base.EmbeddingModel,
			CompletionModel: base.CompletionModel,
			APIToken:        base.APIToken,
			ContextWindow:   base.ContextWindow,
			MaxAttempts:     base.MaxAttempts,
			RetryDelay:      base.RetryDelay,
			Timeout:         base.Timeout,
		},
		Storage: StorageConfig{
			Backend: BackendBadger,
			Path:    "kinfolk.db",
		},
		Search: SearchConfig{
			MinSimilarity: 0.2,
			VerbatimBoost: 0.15,
		},
		Workflow: workflow.DefaultConfig(),
	}
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates YAML held in memory.
func Parse(data []byte) (*Config, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads YAML from r on top of Default and validates the result.
// Unknown keys are rejected.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendBadger:
		if c.Storage.Path == "" {
			return ErrStoragePathRequired
		}
	case BackendPostgres:
		if c.Storage.URL == "" {
			return ErrStorageURLRequired
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Storage.Backend)
	}

	if c.Search.MinSimilarity < 0 || c.Search.MinSimilarity > 1 {
		return fmt.Errorf("%w: min_similarity must be in [0,1]", ErrInvalidSearch)
	}
	if c.Search.VerbatimBoost < 0 {
		return fmt.Errorf("%w: verbatim_boost cannot be negative", ErrInvalidSearch)
	}

	if err := c.AIConfig().Validate(); err != nil {
		return err
	}
	return c.Workflow.Validate()
}

// AIConfig converts the ai section into a normalized ai.Config.
func (c *Config) AIConfig() *ai.Config {
	cfg := ai.NewConfig(
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithCompletionHost(c.AI.CompletionHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithCompletionModel(c.AI.CompletionModel),
		ai.WithAPIToken(c.AI.APIToken),
		ai.WithContextWindow(c.AI.ContextWindow),
		ai.WithRetry(c.AI.MaxAttempts, c.AI.RetryDelay),
		ai.WithTimeout(c.AI.Timeout),
	)
	cfg.Normalize()
	return cfg
}

// WorkflowConfig returns the workflow section.
func (c *Config) WorkflowConfig() workflow.Config {
	return c.Workflow
}
