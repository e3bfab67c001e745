package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/kinfolk/ai"
	"github.com/poiesic/kinfolk/core"
)

const (
	// NoInformationAnswer is returned when retrieval found nothing.
	NoInformationAnswer = "I could not find any relevant information in the family records to answer this question."

	// FailureAnswer is returned when the answer could not be generated.
	FailureAnswer = "I'm sorry, I was unable to generate an answer to this question. Please try again later."
)

// Synthesizer writes the natural-language answer.
type Synthesizer struct {
	llm    ai.LLM
	config Config
	logger *slog.Logger
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(llm ai.LLM, config Config, logger *slog.Logger) (*Synthesizer, error) {
	if llm == nil {
		return nil, ErrLLMRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{llm: llm, config: config, logger: logger.With("stage", core.StageSynthesis)}, nil
}

// Synthesize answers query from the ranked evidence and facts. Without
// evidence it returns NoInformationAnswer and makes no LLM call. An LLM
// failure is the one fatal error of the pipeline.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, intent core.Intent, evidence []core.EvidenceItem, facts []core.ExtractedFact) SynthesisResult {
	if len(evidence) == 0 {
		return SynthesisResult{Answer: NoInformationAnswer}
	}

	tone := intentTone[intent]
	factText := formatFacts(facts)
	template := fmt.Sprintf(synthesisPrompt, tone, query, factText, "")
	budget := evidenceBudget(s.config, s.llm.ContextWindow(), template, s.config.SynthesisMaxTokens, s.llm.CountTokens)
	selected := selectWithinBudget(evidence, budget, s.llm.CountTokens)

	prompt := fmt.Sprintf(synthesisPrompt, tone, query, factText, formatEvidence(selected))
	text, err := s.llm.Complete(ctx, prompt, s.config.SynthesisMaxTokens)
	usage := countUsage(s.llm, core.StageSynthesis, prompt, text)
	if err != nil {
		s.logger.Error("answer synthesis failed", "err", err)
		return SynthesisResult{Usage: usage, Errors: []core.StageError{core.NewStageError(core.StageSynthesis, false, "answer synthesis failed", err)}}
	}

	answer := strings.TrimSpace(ai.StripFences(text))
	if answer == "" {
		s.logger.Error("LLM returned an empty answer")
		return SynthesisResult{Usage: usage, Errors: []core.StageError{core.NewStageError(core.StageSynthesis, false, "answer synthesis failed", ErrEmptyAnswer)}}
	}
	return SynthesisResult{Answer: answer, Usage: usage}
}
