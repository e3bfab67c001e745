package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/poiesic/kinfolk/ai"
	"github.com/poiesic/kinfolk/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	routerFactual     = `{"intent": "factual", "entities": [{"name": "John Carpenter", "kind": "person"}]}`
	routerExploratory = `{"intent": "exploratory", "entities": []}`
)

func carpenterBirthRetriever() *stubRetriever {
	return &stubRetriever{passages: []core.ScoredPassage{
		passage("census-1860", "p. 4", "John Carpenter was born in 1850 in Ohio.", 0.92),
		passage("family-bible", "page 2", "Birth recorded: John Carpenter, 1850.", 0.88),
	}}
}

func TestNewEngine_Validation(t *testing.T) {
	llm := scriptedLLM(stageReplies{})

	_, err := NewEngine(nil, &stubRetriever{}, nil)
	assert.ErrorIs(t, err, ErrLLMRequired)

	_, err = NewEngine(llm, nil, nil)
	assert.ErrorIs(t, err, ErrRetrieverRequired)

	bad := DefaultConfig()
	bad.TopK = 0
	_, err = NewEngine(llm, &stubRetriever{}, nil, WithConfig(bad))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRun_EmptyQuery(t *testing.T) {
	engine, err := NewEngine(scriptedLLM(stageReplies{}), &stubRetriever{}, nil)
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestRun_FactualConfirmed(t *testing.T) {
	llm := scriptedLLM(stageReplies{
		router: routerFactual,
		extractor: `{"facts": [
			{"subject": "John Carpenter", "predicate": "birth", "value": "1850", "date_hint": "1850", "evidence_id": "E1"},
			{"subject": "John Carpenter", "predicate": "born", "value": "1850", "evidence_id": "E2"}
		]}`,
		synthesis: "John Carpenter was born in 1850 [E1, E2].",
	})

	engine, err := NewEngine(llm, carpenterBirthRetriever(), nil)
	require.NoError(t, err)

	resp, err := engine.Run(context.Background(), "When was John Carpenter born?")
	require.NoError(t, err)

	assert.Equal(t, core.IntentFactual, resp.Intent)
	assert.Equal(t, StatusAnswered, resp.Status)
	require.Len(t, resp.Facts, 2)
	for _, f := range resp.Facts {
		assert.Equal(t, core.PredicateBirth, f.Predicate)
		assert.Equal(t, "1850", f.Value)
		assert.Equal(t, core.OriginSemantic, f.Origin)
	}

	require.Len(t, resp.Citations, 1)
	assert.Equal(t, []core.EvidenceID{"E1", "E2"}, resp.Citations[0].EvidenceIDs)
	assert.Equal(t, resp.AnswerText, resp.AnswerText[resp.Citations[0].Span.Start:resp.Citations[0].Span.End])
	assert.ElementsMatch(t, []string{"census-1860 (p. 4)", "family-bible (page 2)"}, resp.CitedSources(0))

	assert.Equal(t, core.ConfidenceConfirmed, resp.Confidence)
	assert.Empty(t, resp.Errors)
}

func TestRun_NoEvidence(t *testing.T) {
	llm := scriptedLLM(stageReplies{router: routerExploratory})
	retriever := &stubRetriever{}
	facts := &stubFactStore{}

	engine, err := NewEngine(llm, retriever, facts)
	require.NoError(t, err)

	resp, err := engine.Run(context.Background(), "Tell me about immigration")
	require.NoError(t, err)

	assert.Equal(t, core.IntentExploratory, resp.Intent)
	assert.Equal(t, NoInformationAnswer, resp.AnswerText)
	assert.Equal(t, core.ConfidenceUncertain, resp.Confidence)
	assert.Empty(t, resp.Citations)
	assert.Equal(t, StatusNoInformation, resp.Status)

	// exploratory questions skip the fact store, and synthesis skips the LLM
	assert.Empty(t, facts.queries)
	assert.Equal(t, 1, llm.CallCount())

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, core.StageRetrieval, resp.Errors[0].Stage)
	assert.True(t, resp.Errors[0].Recoverable)
	assert.ErrorIs(t, resp.Errors[0], ErrNoEvidence)
}

func TestRun_SynthesisTimeoutIsFatal(t *testing.T) {
	timeout := fmt.Errorf("%w: deadline exceeded after 3 attempts", ai.ErrTimeout)
	llm := scriptedLLM(stageReplies{
		router:       routerFactual,
		extractor:    `{"facts": []}`,
		synthesisErr: timeout,
	})

	engine, err := NewEngine(llm, carpenterBirthRetriever(), nil)
	require.NoError(t, err)

	resp, err := engine.Run(context.Background(), "When was John Carpenter born?")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, FailureAnswer, resp.AnswerText)
	assert.Equal(t, core.ConfidenceUncertain, resp.Confidence)
	assert.Empty(t, resp.Citations)

	var fatal *core.StageError
	for i := range resp.Errors {
		if !resp.Errors[i].Recoverable {
			fatal = &resp.Errors[i]
		}
	}
	require.NotNil(t, fatal)
	assert.Equal(t, core.StageSynthesis, fatal.Stage)
	assert.ErrorIs(t, *fatal, ai.ErrTimeout)
	assert.Contains(t, fatal.Message, "deadline exceeded")
}

func TestRun_ContradictionCapsAtPossible(t *testing.T) {
	retriever := &stubRetriever{passages: []core.ScoredPassage{
		passage("census-1860", "", "John Carpenter, age 10, born 1850.", 0.95),
		passage("family-bible", "", "John Carpenter born 1850.", 0.93),
		passage("obituary", "", "John Carpenter was born in 1862.", 0.9),
	}}
	llm := scriptedLLM(stageReplies{
		router: routerFactual,
		extractor: `{"facts": [
			{"subject": "John Carpenter", "predicate": "birth", "value": "1850", "evidence_id": "E1"},
			{"subject": "John Carpenter", "predicate": "birth", "value": "1850", "evidence_id": "E2"},
			{"subject": "John Carpenter", "predicate": "birth", "value": "1862", "evidence_id": "E3"}
		]}`,
		synthesis: "Most records give 1850 [E1, E2]. One record gives 1862 [E3].",
	})

	engine, err := NewEngine(llm, retriever, nil)
	require.NoError(t, err)

	resp, err := engine.Run(context.Background(), "When was John Carpenter born?")
	require.NoError(t, err)

	assert.Equal(t, core.ConfidencePossible, resp.Confidence)
	assert.Contains(t, resp.ConfidenceRationale, "disagree")
}

func TestRun_Deterministic(t *testing.T) {
	newEngine := func() *Engine {
		llm := scriptedLLM(stageReplies{
			router:    routerFactual,
			extractor: `{"facts": [{"subject": "John Carpenter", "predicate": "birth", "value": "1850", "evidence_id": "E2"}]}`,
			synthesis: "John Carpenter was born in 1850 in Ohio [E1]. The family bible agrees [E2].",
		})
		facts := &stubFactStore{records: []core.StructuredRecord{{
			Kind:    core.RecordPerson,
			Match:   core.MatchExact,
			Person:  &core.Person{Id: 1, GivenName: "John", Surname: "Carpenter", BirthYear: 1850, SourceID: "census-1860"},
			Subject: &core.Person{Id: 1, GivenName: "John", Surname: "Carpenter", BirthYear: 1850, SourceID: "census-1860"},
		}}}
		engine, err := NewEngine(llm, carpenterBirthRetriever(), facts)
		require.NoError(t, err)
		return engine
	}

	first, err := newEngine().Run(context.Background(), "When was John Carpenter born?")
	require.NoError(t, err)
	second, err := newEngine().Run(context.Background(), "When was John Carpenter born?")
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("responses differ (-first +second):\n%s", diff)
	}
}

func TestRun_StructuredEvidenceRanksFirst(t *testing.T) {
	john := &core.Person{Id: 7, GivenName: "John", Surname: "Carpenter", BirthYear: 1850, BirthPlace: "Ohio"}
	facts := &stubFactStore{records: []core.StructuredRecord{
		{Kind: core.RecordPerson, Match: core.MatchExact, Person: john, Subject: john},
	}}
	llm := scriptedLLM(stageReplies{
		router:    routerFactual,
		extractor: `{"facts": [{"subject": "John Carpenter", "predicate": "birth", "value": "1850", "evidence_id": "E1"}]}`,
		synthesis: "John Carpenter was born in 1850 [E1, E2].",
	})

	engine, err := NewEngine(llm, carpenterBirthRetriever(), facts)
	require.NoError(t, err)

	resp, err := engine.Run(context.Background(), "When was John Carpenter born?")
	require.NoError(t, err)

	require.Len(t, facts.queries, 1)
	assert.Equal(t, []string{"John Carpenter"}, facts.queries[0].Names)

	require.Len(t, resp.Evidence, 3)
	assert.Equal(t, core.EvidenceID("E1"), resp.Evidence[0].ID)
	assert.Equal(t, core.OriginStructured, resp.Evidence[0].Origin)
	assert.Equal(t, 1.0, resp.Evidence[0].Score)
	assert.Equal(t, "factstore", resp.Evidence[0].SourceID)
	assert.Equal(t, "person/7", resp.Evidence[0].Locator)
	assert.Equal(t, core.OriginStructured, resp.Facts[0].Origin)
	assert.Equal(t, core.ConfidenceConfirmed, resp.Confidence)
}

func TestRun_RouterFallback(t *testing.T) {
	llm := scriptedLLM(stageReplies{
		routerErr: fmt.Errorf("%w: status 500", ai.ErrProvider),
		synthesis: "Records mention John Carpenter in Ohio [E1].",
	})
	facts := &stubFactStore{}

	engine, err := NewEngine(llm, carpenterBirthRetriever(), facts)
	require.NoError(t, err)

	resp, err := engine.Run(context.Background(), "When was John Carpenter born?")
	require.NoError(t, err)

	assert.Equal(t, core.IntentExploratory, resp.Intent)
	assert.Equal(t, StatusAnswered, resp.Status)
	assert.Empty(t, resp.Facts)
	assert.Equal(t, 0, promptsOfKind(llm, "Extract genealogical facts"))

	require.NotEmpty(t, resp.Errors)
	assert.Equal(t, core.StageRouter, resp.Errors[0].Stage)
	assert.True(t, resp.Errors[0].Recoverable)
}

func TestRun_ExtractionFailureIsRecoverable(t *testing.T) {
	llm := scriptedLLM(stageReplies{
		router:       routerFactual,
		extractorErr: fmt.Errorf("%w: too many requests", ai.ErrRateLimited),
		synthesis:    "John Carpenter was born in 1850 [E1, E2].",
	})

	engine, err := NewEngine(llm, carpenterBirthRetriever(), nil)
	require.NoError(t, err)

	resp, err := engine.Run(context.Background(), "When was John Carpenter born?")
	require.NoError(t, err)

	assert.Equal(t, StatusAnswered, resp.Status)
	assert.Empty(t, resp.Facts)
	// two sources at high scores, but no facts
	assert.Equal(t, core.ConfidenceLikely, resp.Confidence)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, core.StageExtraction, resp.Errors[0].Stage)
	assert.ErrorIs(t, resp.Errors[0], ai.ErrRateLimited)
}

func TestRun_RetrieverFailureDegrades(t *testing.T) {
	llm := scriptedLLM(stageReplies{router: routerFactual})
	retriever := &stubRetriever{err: errors.New("connection refused")}

	engine, err := NewEngine(llm, retriever, nil)
	require.NoError(t, err)

	resp, err := engine.Run(context.Background(), "When was John Carpenter born?")
	require.NoError(t, err)

	assert.Equal(t, NoInformationAnswer, resp.AnswerText)
	assert.Equal(t, core.ConfidenceUncertain, resp.Confidence)
	require.Len(t, resp.Errors, 2)
	assert.Contains(t, resp.Errors[0].Message, "connection refused")
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	llm := scriptedLLM(stageReplies{})
	llm.CompleteFunc = func(_ context.Context, _ string, _ int) (string, error) {
		cancel()
		return routerFactual, nil
	}

	engine, err := NewEngine(llm, carpenterBirthRetriever(), nil)
	require.NoError(t, err)

	_, err = engine.Run(ctx, "When was John Carpenter born?")
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingMonitor struct {
	transitions []string
	failures    int
	finished    *Response
}

func (m *recordingMonitor) PhaseCompleted(_ string, from, to Phase, _ time.Duration) {
	m.transitions = append(m.transitions, from.String()+">"+to.String())
}
func (m *recordingMonitor) StageFailed(_ string, _ core.StageError) { m.failures++ }
func (m *recordingMonitor) Finished(resp *Response)                 { m.finished = resp }

func TestRun_MonitorAndMetrics(t *testing.T) {
	llm := scriptedLLM(stageReplies{
		router:    routerFactual,
		extractor: `{"facts": []}`,
		synthesis: "John Carpenter was born in 1850 [E1].",
	})
	monitor := &recordingMonitor{}
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	engine, err := NewEngine(llm, carpenterBirthRetriever(), nil, WithMonitor(monitor), WithMetrics(metrics))
	require.NoError(t, err)

	resp, err := engine.Run(context.Background(), "When was John Carpenter born?")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"routing>retrieving",
		"retrieving>extracting",
		"extracting>synthesizing",
		"synthesizing>citing",
		"citing>assessing",
		"assessing>finalized",
	}, monitor.transitions)
	assert.Zero(t, monitor.failures)
	assert.Same(t, resp, monitor.finished)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.responses.WithLabelValues("factual", resp.Confidence.String(), "answered")))
	assert.Equal(t, 6, testutil.CollectAndCount(metrics.stageDuration))

	// router, extraction and synthesis each spent prompt and completion tokens
	assert.Equal(t, 6, testutil.CollectAndCount(metrics.llmTokens))
	assert.Equal(t, float64(ai.ApproximateTokens("John Carpenter was born in 1850 [E1].")),
		testutil.ToFloat64(metrics.llmTokens.WithLabelValues("synthesis", "completion")))
}

func TestRun_TokenUsage(t *testing.T) {
	replies := stageReplies{
		router:    routerFactual,
		extractor: `{"facts": [{"subject": "John Carpenter", "predicate": "birth", "value": "1850", "evidence_id": "E1"}]}`,
		synthesis: "John Carpenter was born in 1850 [E1].",
		review:    "likely",
	}
	llm := scriptedLLM(replies)
	config := DefaultConfig()
	config.ConfidenceReview = true

	engine, err := NewEngine(llm, carpenterBirthRetriever(), nil, WithConfig(config))
	require.NoError(t, err)

	resp, err := engine.Run(context.Background(), "When was John Carpenter born?")
	require.NoError(t, err)

	prompts := llm.Prompts()
	require.Len(t, prompts, 4)
	want := []TokenUsage{
		{Stage: core.StageRouter, PromptTokens: ai.ApproximateTokens(prompts[0]), CompletionTokens: ai.ApproximateTokens(replies.router)},
		{Stage: core.StageExtraction, PromptTokens: ai.ApproximateTokens(prompts[1]), CompletionTokens: ai.ApproximateTokens(replies.extractor)},
		{Stage: core.StageSynthesis, PromptTokens: ai.ApproximateTokens(prompts[2]), CompletionTokens: ai.ApproximateTokens(replies.synthesis)},
		{Stage: core.StageConfidence, PromptTokens: ai.ApproximateTokens(prompts[3]), CompletionTokens: ai.ApproximateTokens(replies.review)},
	}
	if diff := cmp.Diff(want, resp.TokenUsage); diff != "" {
		t.Errorf("token usage mismatch (-want +got):\n%s", diff)
	}

	total := 0
	for _, u := range want {
		total += u.PromptTokens + u.CompletionTokens
	}
	assert.Equal(t, total, resp.TotalTokens())
}

func TestRun_TokenUsageWithoutEvidence(t *testing.T) {
	llm := scriptedLLM(stageReplies{router: routerExploratory})
	engine, err := NewEngine(llm, &stubRetriever{}, nil)
	require.NoError(t, err)

	resp, err := engine.Run(context.Background(), "Tell me about immigration")
	require.NoError(t, err)

	// only the router reached the model
	require.Len(t, resp.TokenUsage, 1)
	assert.Equal(t, core.StageRouter, resp.TokenUsage[0].Stage)
	assert.Positive(t, resp.TokenUsage[0].PromptTokens)
}

func TestResponseFormat(t *testing.T) {
	resp := &Response{
		AnswerText:          "John Carpenter was born in 1850 [E1, E2].",
		Confidence:          core.ConfidenceConfirmed,
		ConfidenceRationale: "2 independent sources agree",
		Evidence: []core.EvidenceItem{
			{ID: "E1", SourceID: "census-1860", Locator: "p. 4"},
			{ID: "E2", SourceID: "family-bible"},
			{ID: "E3", SourceID: "uncited"},
		},
		Citations: []core.Citation{{Span: core.Span{Start: 0, End: 41}, EvidenceIDs: []core.EvidenceID{"E1", "E2"}}},
	}

	out := resp.Format(5)
	assert.True(t, strings.HasPrefix(out, resp.AnswerText))
	assert.Contains(t, out, "Sources:\n  1. census-1860 (p. 4)\n  2. family-bible\n")
	assert.NotContains(t, out, "uncited")
	assert.Contains(t, out, "Confidence: confirmed (2 independent sources agree)")

	limited := resp.Format(1)
	assert.NotContains(t, limited, "family-bible")
}
