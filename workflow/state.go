package workflow

import (
	"fmt"
	"slices"

	"github.com/poiesic/kinfolk/core"
)

// QueryState is the record of one query's progress through the pipeline.
// It is created by the Engine for a single Run and never shared.
// Fields are written only through the apply methods, each owned by one stage.
type QueryState struct {
	rawQuery   string
	phase      Phase
	intent     core.Intent
	entities   []core.ExtractedEntity
	evidence   []core.EvidenceItem
	retrieved  bool
	facts      []core.ExtractedFact
	answer     string
	answered   bool
	citations  []core.Citation
	confidence core.ConfidenceLevel
	rationale  string
	usage      []TokenUsage
	errors     []core.StageError
}

func newQueryState(query string) *QueryState {
	return &QueryState{rawQuery: query, phase: PhaseRouting}
}

func (s *QueryState) RawQuery() string                 { return s.rawQuery }
func (s *QueryState) Phase() Phase                     { return s.phase }
func (s *QueryState) Intent() core.Intent              { return s.intent }
func (s *QueryState) Entities() []core.ExtractedEntity { return slices.Clone(s.entities) }
func (s *QueryState) Evidence() []core.EvidenceItem    { return slices.Clone(s.evidence) }
func (s *QueryState) Facts() []core.ExtractedFact      { return slices.Clone(s.facts) }
func (s *QueryState) AnswerText() string               { return s.answer }
func (s *QueryState) Citations() []core.Citation       { return slices.Clone(s.citations) }
func (s *QueryState) Confidence() core.ConfidenceLevel { return s.confidence }
func (s *QueryState) ConfidenceRationale() string      { return s.rationale }
func (s *QueryState) Errors() []core.StageError        { return slices.Clone(s.errors) }
func (s *QueryState) TokenUsage() []TokenUsage         { return slices.Clone(s.usage) }

// Fatal returns the first unrecoverable error, if any.
func (s *QueryState) Fatal() (core.StageError, bool) {
	for _, e := range s.errors {
		if !e.Recoverable {
			return e, true
		}
	}
	return core.StageError{}, false
}

// RouteResult is the router's output.
type RouteResult struct {
	Intent   core.Intent
	Entities []core.ExtractedEntity
	Usage    []TokenUsage
	Errors   []core.StageError
}

// RetrievalResult is the coordinator's output.
type RetrievalResult struct {
	Evidence []core.EvidenceItem
	Errors   []core.StageError
}

// ExtractionResult is the fact extractor's output.
type ExtractionResult struct {
	Facts  []core.ExtractedFact
	Usage  []TokenUsage
	Errors []core.StageError
}

// SynthesisResult is the synthesizer's output.
type SynthesisResult struct {
	Answer string
	Usage  []TokenUsage
	Errors []core.StageError
}

// Assessment is a confidence level with the reason it was chosen.
type Assessment struct {
	Level     core.ConfidenceLevel
	Rationale string
}

func (s *QueryState) expect(phase Phase) error {
	if s.phase != phase {
		return fmt.Errorf("%w: %s result applied during %s", ErrStateViolation, phase, s.phase)
	}
	return nil
}

func (s *QueryState) applyRoute(r RouteResult) error {
	if err := s.expect(PhaseRouting); err != nil {
		return err
	}
	if s.intent != 0 {
		return fmt.Errorf("%w: intent already set", ErrStateViolation)
	}
	if !r.Intent.Valid() {
		return fmt.Errorf("%w: router produced %s", ErrStateViolation, r.Intent)
	}
	s.intent = r.Intent
	s.entities = slices.Clone(r.Entities)
	s.usage = append(s.usage, r.Usage...)
	s.errors = append(s.errors, r.Errors...)
	return nil
}

func (s *QueryState) applyRetrieval(r RetrievalResult) error {
	if err := s.expect(PhaseRetrieving); err != nil {
		return err
	}
	if s.retrieved {
		return fmt.Errorf("%w: evidence already set", ErrStateViolation)
	}
	s.retrieved = true
	s.evidence = slices.Clone(r.Evidence)
	s.errors = append(s.errors, r.Errors...)
	return nil
}

func (s *QueryState) applyExtraction(r ExtractionResult) error {
	if err := s.expect(PhaseExtracting); err != nil {
		return err
	}
	if s.intent != core.IntentFactual {
		return fmt.Errorf("%w: facts only apply to factual queries", ErrStateViolation)
	}
	s.facts = slices.Clone(r.Facts)
	s.usage = append(s.usage, r.Usage...)
	s.errors = append(s.errors, r.Errors...)
	return nil
}

func (s *QueryState) applySynthesis(r SynthesisResult) error {
	if err := s.expect(PhaseSynthesizing); err != nil {
		return err
	}
	if s.answered {
		return fmt.Errorf("%w: answer already set", ErrStateViolation)
	}
	s.answered = true
	s.answer = r.Answer
	s.usage = append(s.usage, r.Usage...)
	s.errors = append(s.errors, r.Errors...)
	return nil
}

func (s *QueryState) applyCitations(citations []core.Citation) error {
	if err := s.expect(PhaseCiting); err != nil {
		return err
	}
	s.citations = slices.Clone(citations)
	return nil
}

// applyAssessment sets the confidence. It is also used when synthesis ends
// the query early, so it accepts the synthesizing phase.
func (s *QueryState) applyAssessment(a Assessment, usage []TokenUsage, errs ...core.StageError) error {
	if s.phase != PhaseAssessing && s.phase != PhaseSynthesizing {
		return fmt.Errorf("%w: assessment applied during %s", ErrStateViolation, s.phase)
	}
	if s.confidence != 0 {
		return fmt.Errorf("%w: confidence already set", ErrStateViolation)
	}
	s.confidence = a.Level
	s.rationale = a.Rationale
	s.usage = append(s.usage, usage...)
	s.errors = append(s.errors, errs...)
	return nil
}

// nextPhase picks the phase that follows the current one.
func (s *QueryState) nextPhase() Phase {
	switch s.phase {
	case PhaseRouting:
		return PhaseRetrieving
	case PhaseRetrieving:
		if s.intent == core.IntentFactual {
			return PhaseExtracting
		}
		return PhaseSynthesizing
	case PhaseExtracting:
		return PhaseSynthesizing
	case PhaseSynthesizing:
		if _, fatal := s.Fatal(); fatal {
			return PhaseFailed
		}
		if len(s.evidence) == 0 {
			return PhaseFinalized
		}
		return PhaseCiting
	case PhaseCiting:
		return PhaseAssessing
	case PhaseAssessing:
		return PhaseFinalized
	}
	return s.phase
}

func (s *QueryState) advance() error {
	next := s.nextPhase()
	if !s.phase.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.phase, next)
	}
	s.phase = next
	return nil
}
