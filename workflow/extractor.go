package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/kinfolk/ai"
	"github.com/poiesic/kinfolk/core"
)

// FactExtractor turns evidence text into normalized fact candidates.
type FactExtractor struct {
	llm    ai.LLM
	config Config
	logger *slog.Logger
}

// NewFactExtractor creates an extractor.
func NewFactExtractor(llm ai.LLM, config Config, logger *slog.Logger) (*FactExtractor, error) {
	if llm == nil {
		return nil, ErrLLMRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FactExtractor{llm: llm, config: config, logger: logger.With("stage", core.StageExtraction)}, nil
}

type extractorResponse struct {
	Facts []struct {
		Subject    string `json:"subject"`
		Predicate  string `json:"predicate"`
		Value      string `json:"value"`
		DateHint   string `json:"date_hint"`
		EvidenceID string `json:"evidence_id"`
	} `json:"facts"`
}

// Extract makes one batched LLM call over the evidence that fits the
// context budget. Facts citing evidence outside that set are discarded.
// Failures leave the facts empty and are recoverable.
func (x *FactExtractor) Extract(ctx context.Context, query string, evidence []core.EvidenceItem) ExtractionResult {
	if len(evidence) == 0 {
		return ExtractionResult{}
	}

	template := fmt.Sprintf(extractorPrompt, query, "")
	budget := evidenceBudget(x.config, x.llm.ContextWindow(), template, x.config.ExtractorMaxTokens, x.llm.CountTokens)
	considered := selectWithinBudget(evidence, budget, x.llm.CountTokens)

	byID := make(map[core.EvidenceID]core.EvidenceItem, len(considered))
	for _, item := range considered {
		byID[item.ID] = item
	}

	prompt := fmt.Sprintf(extractorPrompt, query, formatEvidence(considered))
	text, err := x.llm.Complete(ctx, prompt, x.config.ExtractorMaxTokens)
	usage := countUsage(x.llm, core.StageExtraction, prompt, text)
	if err != nil {
		x.logger.Warn("fact extraction failed", "err", err)
		return ExtractionResult{Usage: usage, Errors: []core.StageError{core.NewStageError(core.StageExtraction, true, "fact extraction failed", err)}}
	}

	var resp extractorResponse
	if err := ai.DecodeJSON(text, &resp); err != nil {
		x.logger.Warn("unparseable extraction response", "err", err)
		return ExtractionResult{Usage: usage, Errors: []core.StageError{core.NewStageError(core.StageExtraction, true, "unparseable extraction response", err)}}
	}

	var facts []core.ExtractedFact
	for _, raw := range resp.Facts {
		id := core.EvidenceID(strings.ToUpper(strings.Trim(strings.TrimSpace(raw.EvidenceID), "[]")))
		item, ok := byID[id]
		if !ok {
			x.logger.Debug("discarding fact with unknown evidence id", "evidence_id", raw.EvidenceID)
			continue
		}
		subject := strings.TrimSpace(raw.Subject)
		value := strings.TrimSpace(raw.Value)
		if subject == "" || value == "" {
			continue
		}
		facts = append(facts, core.ExtractedFact{
			Subject:          subject,
			Predicate:        core.ParsePredicate(raw.Predicate),
			Value:            value,
			DateHint:         strings.TrimSpace(raw.DateHint),
			SourceEvidenceID: id,
			Origin:           item.Origin,
		})
	}

	if len(facts) == 0 {
		x.logger.Info("no facts extracted", "considered", len(considered))
	}
	return ExtractionResult{Facts: facts, Usage: usage}
}
