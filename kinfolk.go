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

// Package kinfolk wires the AI provider, the storage backend and the
// workflow engine into a ready to use genealogy assistant.
package kinfolk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/kinfolk/ai"
	"github.com/poiesic/kinfolk/ai/openai"
	"github.com/poiesic/kinfolk/config"
	"github.com/poiesic/kinfolk/fixture"
	"github.com/poiesic/kinfolk/search"
	"github.com/poiesic/kinfolk/storage"
	"github.com/poiesic/kinfolk/storage/badger"
	"github.com/poiesic/kinfolk/storage/postgres"
	"github.com/poiesic/kinfolk/workflow"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrSeedUnsupported is returned by Seed for backends without write access.
var ErrSeedUnsupported = errors.New("seeding is only supported by the badger backend")

// Assistant answers genealogy questions against one configured corpus.
type Assistant struct {
	engine    *workflow.Engine
	provider  ai.AIProvider
	passages  storage.PassageRepository
	genealogy storage.GenealogyRepository
	closers   []func() error
	logger    *slog.Logger
}

// Option configures Open.
type Option func(*options)

type options struct {
	provider   ai.AIProvider
	registerer prometheus.Registerer
	monitor    workflow.Monitor
	logger     *slog.Logger
}

// WithProvider uses provider instead of an OpenAI-compatible one built from
// the configuration.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithRegisterer registers the workflow metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithMonitor attaches a workflow monitor.
func WithMonitor(monitor workflow.Monitor) Option {
	return func(o *options) {
		o.monitor = monitor
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open builds an Assistant from cfg. The caller must Close it.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Assistant, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	a := &Assistant{logger: options.logger.With("component", "assistant")}

	provider := options.provider
	if provider == nil {
		var err error
		provider, err = openai.NewProvider(cfg.AIConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create AI provider: %w", err)
		}
	}
	a.provider = provider
	a.closers = append(a.closers, provider.Close)

	retriever, facts, err := a.openStorage(ctx, cfg, provider.Embedder())
	if err != nil {
		a.Close()
		return nil, err
	}

	engineOpts := []workflow.Option{
		workflow.WithConfig(cfg.WorkflowConfig()),
		workflow.WithLogger(options.logger),
		workflow.WithMonitor(options.monitor),
	}
	if options.registerer != nil {
		metrics, err := workflow.NewMetrics(options.registerer)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		engineOpts = append(engineOpts, workflow.WithMetrics(metrics))
	}

	a.engine, err = workflow.NewEngine(provider.LLM(), retriever, facts, engineOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Assistant) openStorage(ctx context.Context, cfg *config.Config, embedder ai.Embedder) (storage.SemanticRetriever, storage.FactStore, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.Storage.URL)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return nil, nil, err
		}
		retriever, err := postgres.NewRetriever(pool, embedder,
			postgres.WithLogger(a.logger),
			postgres.WithMinSimilarity(cfg.Search.MinSimilarity))
		if err != nil {
			return nil, nil, err
		}
		facts, err := postgres.NewFactStore(pool, postgres.WithLogger(a.logger))
		if err != nil {
			return nil, nil, err
		}
		a.logger.Info("using postgres storage")
		return retriever, facts, nil

	default:
		passages, genealogy, backend, err := badger.OpenRepositories(cfg.Storage.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.passages, a.genealogy = passages, genealogy
		a.closers = append(a.closers, backend.Close, genealogy.Close, passages.Close)

		searcher, err := search.NewSearcher(passages, embedder,
			search.WithLogger(a.logger),
			search.WithMinSimilarity(float32(cfg.Search.MinSimilarity)),
			search.WithVerbatimBoost(cfg.Search.VerbatimBoost))
		if err != nil {
			return nil, nil, err
		}
		facts, ok := genealogy.(storage.FactStore)
		if !ok {
			return nil, nil, fmt.Errorf("genealogy repository %T cannot answer fact queries", genealogy)
		}
		a.logger.Info("using badger storage", "path", cfg.Storage.Path)
		return searcher, facts, nil
	}
}

// Ask answers one question.
func (a *Assistant) Ask(ctx context.Context, question string) (*workflow.Response, error) {
	return a.engine.Run(ctx, question)
}

// Engine returns the workflow engine, for batch answering.
func (a *Assistant) Engine() *workflow.Engine {
	return a.engine
}

// Seed stores the fixture's passages and records.
func (a *Assistant) Seed(ctx context.Context, fx *fixture.Fixture) (fixture.Summary, error) {
	if a.passages == nil || a.genealogy == nil {
		return fixture.Summary{}, ErrSeedUnsupported
	}
	return fx.Apply(ctx, a.passages, a.genealogy, a.provider.Embedder(), a.logger)
}

// Close releases everything Open acquired, in reverse order.
func (a *Assistant) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("error closing assistant resource", "err", err)
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
