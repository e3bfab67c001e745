package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/kinfolk/ai"
	"github.com/poiesic/kinfolk/core"
)

// QueryRouter classifies a question into one intent and extracts entities.
type QueryRouter struct {
	llm       ai.LLM
	maxTokens int
	logger    *slog.Logger
}

// NewQueryRouter creates a router that spends at most maxTokens per answer.
func NewQueryRouter(llm ai.LLM, maxTokens int, logger *slog.Logger) (*QueryRouter, error) {
	if llm == nil {
		return nil, ErrLLMRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryRouter{llm: llm, maxTokens: maxTokens, logger: logger.With("stage", core.StageRouter)}, nil
}

type routerResponse struct {
	Intent   string `json:"intent"`
	Entities []struct {
		Name       string `json:"name"`
		Kind       string `json:"kind"`
		Normalized string `json:"normalized"`
	} `json:"entities"`
}

// Route makes one LLM call. Any failure falls back to the exploratory
// intent with heuristic entities and a recoverable error.
func (r *QueryRouter) Route(ctx context.Context, query string) RouteResult {
	prompt := fmt.Sprintf(routerPrompt, query)
	text, err := r.llm.Complete(ctx, prompt, r.maxTokens)
	usage := countUsage(r.llm, core.StageRouter, prompt, text)
	if err != nil {
		r.logger.Warn("router LLM call failed, falling back to exploratory", "err", err)
		return r.fallback(query, usage, core.NewStageError(core.StageRouter, true, "intent classification failed", err))
	}

	var resp routerResponse
	if err := ai.DecodeJSON(text, &resp); err != nil {
		r.logger.Warn("unparseable router response", "err", err)
		return r.fallback(query, usage, core.NewStageError(core.StageRouter, true, "unparseable router response", err))
	}

	intent, err := core.ParseIntent(resp.Intent)
	if err != nil {
		r.logger.Warn("router returned unknown intent", "intent", resp.Intent)
		return r.fallback(query, usage, core.NewStageError(core.StageRouter, true, "invalid intent", err))
	}

	var entities []core.ExtractedEntity
	seen := map[string]bool{}
	for _, raw := range resp.Entities {
		e, ok := normalizeEntity(core.ExtractedEntity{
			Name:       raw.Name,
			Kind:       core.EntityKind(strings.ToLower(strings.TrimSpace(raw.Kind))),
			Normalized: raw.Normalized,
		})
		key := string(e.Kind) + "|" + e.Normalized
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		entities = append(entities, e)
	}
	if len(entities) == 0 {
		entities = HeuristicEntities(query)
	}

	r.logger.Debug("routed query", "intent", intent, "entities", len(entities))
	return RouteResult{Intent: intent, Entities: entities, Usage: usage}
}

func (r *QueryRouter) fallback(query string, usage []TokenUsage, stageErr core.StageError) RouteResult {
	return RouteResult{
		Intent:   core.IntentExploratory,
		Entities: HeuristicEntities(query),
		Usage:    usage,
		Errors:   []core.StageError{stageErr},
	}
}
