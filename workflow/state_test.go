package workflow

import (
	"testing"

	"github.com/poiesic/kinfolk/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseTransitions(t *testing.T) {
	tests := []struct {
		from, to Phase
		ok       bool
	}{
		{PhaseRouting, PhaseRetrieving, true},
		{PhaseRouting, PhaseSynthesizing, false},
		{PhaseRetrieving, PhaseExtracting, true},
		{PhaseRetrieving, PhaseSynthesizing, true},
		{PhaseExtracting, PhaseCiting, false},
		{PhaseSynthesizing, PhaseCiting, true},
		{PhaseSynthesizing, PhaseFinalized, true},
		{PhaseSynthesizing, PhaseFailed, true},
		{PhaseCiting, PhaseAssessing, true},
		{PhaseAssessing, PhaseFinalized, true},
		{PhaseFinalized, PhaseRouting, false},
		{PhaseFailed, PhaseFinalized, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+">"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))
		})
	}

	assert.True(t, PhaseFinalized.Terminal())
	assert.True(t, PhaseFailed.Terminal())
	assert.False(t, PhaseCiting.Terminal())
	assert.Equal(t, "phase(42)", Phase(42).String())
}

func TestQueryState_FactualPath(t *testing.T) {
	s := newQueryState("When was John Carpenter born?")
	evidence := []core.EvidenceItem{{ID: "E1", SourceID: "census", Text: "born 1850", Score: 0.9}}

	require.NoError(t, s.applyRoute(RouteResult{Intent: core.IntentFactual}))
	require.NoError(t, s.advance())
	require.NoError(t, s.applyRetrieval(RetrievalResult{Evidence: evidence}))
	require.NoError(t, s.advance())
	assert.Equal(t, PhaseExtracting, s.Phase())
	require.NoError(t, s.applyExtraction(ExtractionResult{}))
	require.NoError(t, s.advance())
	require.NoError(t, s.applySynthesis(SynthesisResult{Answer: "1850 [E1]"}))
	require.NoError(t, s.advance())
	assert.Equal(t, PhaseCiting, s.Phase())
	require.NoError(t, s.applyCitations(nil))
	require.NoError(t, s.advance())
	require.NoError(t, s.applyAssessment(Assessment{Level: core.ConfidencePossible, Rationale: "one source"}, nil))
	require.NoError(t, s.advance())

	assert.Equal(t, PhaseFinalized, s.Phase())
	assert.Equal(t, core.ConfidencePossible, s.Confidence())
	assert.Equal(t, evidence, s.Evidence())
}

func TestQueryState_Violations(t *testing.T) {
	t.Run("result applied out of phase", func(t *testing.T) {
		s := newQueryState("q")
		err := s.applySynthesis(SynthesisResult{Answer: "early"})
		assert.ErrorIs(t, err, ErrStateViolation)
		assert.Empty(t, s.AnswerText())
	})

	t.Run("invalid intent", func(t *testing.T) {
		s := newQueryState("q")
		assert.ErrorIs(t, s.applyRoute(RouteResult{}), ErrStateViolation)
	})

	t.Run("intent set once", func(t *testing.T) {
		s := newQueryState("q")
		require.NoError(t, s.applyRoute(RouteResult{Intent: core.IntentTimeline}))
		assert.ErrorIs(t, s.applyRoute(RouteResult{Intent: core.IntentFactual}), ErrStateViolation)
		assert.Equal(t, core.IntentTimeline, s.Intent())
	})

	t.Run("facts only for factual queries", func(t *testing.T) {
		s := newQueryState("q")
		require.NoError(t, s.applyRoute(RouteResult{Intent: core.IntentExploratory}))
		require.NoError(t, s.advance())
		require.NoError(t, s.applyRetrieval(RetrievalResult{}))
		s.phase = PhaseExtracting
		assert.ErrorIs(t, s.applyExtraction(ExtractionResult{}), ErrStateViolation)
	})

	t.Run("confidence set once", func(t *testing.T) {
		s := newQueryState("q")
		s.phase = PhaseAssessing
		require.NoError(t, s.applyAssessment(Assessment{Level: core.ConfidenceLikely}, nil))
		assert.ErrorIs(t, s.applyAssessment(Assessment{Level: core.ConfidenceConfirmed}, nil), ErrStateViolation)
	})

	t.Run("getters return copies", func(t *testing.T) {
		s := newQueryState("q")
		require.NoError(t, s.applyRoute(RouteResult{Intent: core.IntentFactual, Entities: johnEntity}))
		entities := s.Entities()
		entities[0].Name = "changed"
		assert.Equal(t, "John Carpenter", s.Entities()[0].Name)
	})
}

func TestQueryState_NextPhase(t *testing.T) {
	t.Run("non factual skips extraction", func(t *testing.T) {
		s := newQueryState("q")
		require.NoError(t, s.applyRoute(RouteResult{Intent: core.IntentRelationship}))
		require.NoError(t, s.advance())
		require.NoError(t, s.advance())
		assert.Equal(t, PhaseSynthesizing, s.Phase())
	})

	t.Run("fatal synthesis fails", func(t *testing.T) {
		s := newQueryState("q")
		s.phase = PhaseSynthesizing
		require.NoError(t, s.applySynthesis(SynthesisResult{Errors: []core.StageError{
			core.NewStageError(core.StageSynthesis, false, "down", ErrEmptyAnswer),
		}}))
		require.NoError(t, s.advance())
		assert.Equal(t, PhaseFailed, s.Phase())
	})

	t.Run("no evidence finalizes", func(t *testing.T) {
		s := newQueryState("q")
		s.phase = PhaseSynthesizing
		require.NoError(t, s.applySynthesis(SynthesisResult{Answer: NoInformationAnswer}))
		require.NoError(t, s.advance())
		assert.Equal(t, PhaseFinalized, s.Phase())
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero top k", func(c *Config) { c.TopK = 0 }, false},
		{"exact above one", func(c *Config) { c.ExactMatchScore = 1.5 }, false},
		{"partial above exact", func(c *Config) { c.ExactMatchScore = 0.5; c.PartialMatchScore = 0.6 }, false},
		{"negative tolerance", func(c *Config) { c.YearTolerance = -1 }, false},
		{"zero router tokens", func(c *Config) { c.RouterMaxTokens = 0 }, false},
		{"negative budget", func(c *Config) { c.ContextBudget = -1 }, false},
		{"zero timeout", func(c *Config) { c.StoreTimeout = 0 }, false},
		{"overlap above one", func(c *Config) { c.CitationOverlap = 2 }, false},
		{"negative sources", func(c *Config) { c.MaxSourcesListed = -1 }, false},
		{"fixed budget", func(c *Config) { c.ContextBudget = 2048 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}
