package workflow

import (
	"context"
	"strings"

	"github.com/poiesic/kinfolk/ai/mock"
	"github.com/poiesic/kinfolk/core"
)

type stubRetriever struct {
	passages []core.ScoredPassage
	err      error
	calls    int
}

func (s *stubRetriever) Search(ctx context.Context, query string, topK int) ([]core.ScoredPassage, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.passages) > topK {
		return s.passages[:topK], nil
	}
	return s.passages, nil
}

type stubFactStore struct {
	records []core.StructuredRecord
	err     error
	queries []core.FactQuery
}

func (s *stubFactStore) Query(ctx context.Context, q core.FactQuery) ([]core.StructuredRecord, error) {
	s.queries = append(s.queries, q)
	return s.records, s.err
}

func passage(source, locator, text string, score float64) core.ScoredPassage {
	return core.ScoredPassage{
		Passage: &core.Passage{SourceID: source, Locator: locator, Text: text},
		Score:   score,
	}
}

// stageReplies answers each prompt kind with a fixed reply or error.
type stageReplies struct {
	router, extractor, synthesis, review string

	routerErr, extractorErr, synthesisErr, reviewErr error
}

func scriptedLLM(r stageReplies) *mock.MockLLM {
	llm := mock.NewMockLLM()
	llm.CompleteFunc = func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		switch {
		case strings.HasPrefix(prompt, "You route questions"):
			return r.router, r.routerErr
		case strings.HasPrefix(prompt, "Extract genealogical facts"):
			return r.extractor, r.extractorErr
		case strings.HasPrefix(prompt, "You are a careful family history"):
			return r.synthesis, r.synthesisErr
		case strings.HasPrefix(prompt, "Rate how well"):
			return r.review, r.reviewErr
		}
		return "{}", nil
	}
	return llm
}

// promptsOfKind counts recorded prompts starting with prefix.
func promptsOfKind(llm *mock.MockLLM, prefix string) int {
	n := 0
	for _, p := range llm.Prompts() {
		if strings.HasPrefix(p, prefix) {
			n++
		}
	}
	return n
}
