package workflow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/kinfolk/ai"
	"github.com/poiesic/kinfolk/core"
	"github.com/poiesic/kinfolk/storage"
)

// Engine runs questions through the pipeline. It holds no per-query state
// and is safe for concurrent use.
type Engine struct {
	config      Config
	router      *QueryRouter
	coordinator *RetrievalCoordinator
	extractor   *FactExtractor
	synthesizer *Synthesizer
	citer       *CitationGenerator
	assessor    *ConfidenceAssessor
	metrics     *Metrics
	monitor     Monitor
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithConfig replaces the default configuration.
func WithConfig(config Config) Option {
	return func(e *Engine) error {
		if err := config.Validate(); err != nil {
			return err
		}
		e.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithMetrics records stage timings and outcomes.
func WithMetrics(metrics *Metrics) Option {
	return func(e *Engine) error {
		e.metrics = metrics
		return nil
	}
}

// WithMonitor attaches a monitor to every query.
func WithMonitor(monitor Monitor) Option {
	return func(e *Engine) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		e.monitor = monitor
		return nil
	}
}

// NewEngine creates an engine. facts may be nil to answer from passages only.
func NewEngine(llm ai.LLM, retriever storage.SemanticRetriever, facts storage.FactStore, opts ...Option) (*Engine, error) {
	if llm == nil {
		return nil, ErrLLMRequired
	}
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}

	e := &Engine{
		config:  DefaultConfig(),
		monitor: &noopMonitor{},
		logger:  slog.Default().With("component", "workflow"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	var err error
	if e.router, err = NewQueryRouter(llm, e.config.RouterMaxTokens, e.logger); err != nil {
		return nil, err
	}
	if e.coordinator, err = NewRetrievalCoordinator(retriever, facts, e.config, e.logger); err != nil {
		return nil, err
	}
	if e.extractor, err = NewFactExtractor(llm, e.config, e.logger); err != nil {
		return nil, err
	}
	if e.synthesizer, err = NewSynthesizer(llm, e.config, e.logger); err != nil {
		return nil, err
	}
	e.citer = NewCitationGenerator(e.config.CitationOverlap)
	e.assessor = NewConfidenceAssessor(llm, e.config.YearTolerance, e.config.ConfidenceReview, e.logger)
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Run answers one question. Stage failures never surface as errors: they
// are reported in Response.Errors, and a failed synthesis yields a response
// with StatusFailed. Run only errors for blank queries, cancellation or an
// internal state violation.
func (e *Engine) Run(ctx context.Context, query string) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	state := newQueryState(query)
	for !state.Phase().Terminal() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		from := state.Phase()
		before, usedBefore := len(state.errors), len(state.usage)
		start := time.Now()
		if err := e.step(ctx, state); err != nil {
			return nil, err
		}
		if err := state.advance(); err != nil {
			return nil, err
		}
		elapsed := time.Since(start)

		for _, u := range state.usage[usedBefore:] {
			e.metrics.tokens(u)
		}
		for _, stageErr := range state.errors[before:] {
			e.metrics.stageError(stageErr)
			e.monitor.StageFailed(query, stageErr)
		}
		e.metrics.observePhase(from, elapsed)
		e.monitor.PhaseCompleted(query, from, state.Phase(), elapsed)
		e.logger.Debug("phase complete", "from", from, "to", state.Phase(), "elapsed", elapsed)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp := newResponse(state)
	e.metrics.response(resp)
	e.monitor.Finished(resp)
	e.logger.Info("query answered", "intent", resp.Intent, "confidence", resp.Confidence, "status", resp.Status, "errors", len(resp.Errors))
	return resp, nil
}

// step runs the stage owning the current phase and applies its result.
func (e *Engine) step(ctx context.Context, s *QueryState) error {
	switch s.Phase() {
	case PhaseRouting:
		return s.applyRoute(e.router.Route(ctx, s.RawQuery()))

	case PhaseRetrieving:
		return s.applyRetrieval(e.coordinator.Retrieve(ctx, s.RawQuery(), s.Intent(), s.entities))

	case PhaseExtracting:
		return s.applyExtraction(e.extractor.Extract(ctx, s.RawQuery(), s.evidence))

	case PhaseSynthesizing:
		result := e.synthesizer.Synthesize(ctx, s.RawQuery(), s.Intent(), s.evidence, s.facts)
		failed := false
		for _, err := range result.Errors {
			failed = failed || !err.Recoverable
		}
		if failed {
			result.Answer = FailureAnswer
		}
		if err := s.applySynthesis(result); err != nil {
			return err
		}
		// failed and evidence-free queries skip citing and assessing
		switch {
		case failed:
			return s.applyAssessment(Assessment{Level: core.ConfidenceUncertain, Rationale: "The answer could not be generated."}, nil)
		case len(s.evidence) == 0:
			return s.applyAssessment(Assessment{Level: core.ConfidenceUncertain, Rationale: "No evidence was found."}, nil)
		}
		return nil

	case PhaseCiting:
		return s.applyCitations(e.citer.Generate(s.AnswerText(), s.evidence))

	case PhaseAssessing:
		r := e.assessor.Assess(ctx, s.AnswerText(), s.evidence, s.facts, s.citations)
		return s.applyAssessment(r.Assessment, r.Usage, r.Errors...)
	}
	return nil
}
