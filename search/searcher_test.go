package search

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/kinfolk/ai/mock"
	"github.com/poiesic/kinfolk/core"
	"github.com/poiesic/kinfolk/storage"
	"github.com/poiesic/kinfolk/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) storage.PassageRepository {
	t.Helper()
	passageRepo, genealogyRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		genealogyRepo.Close()
		passageRepo.Close()
		backend.Close()
	})
	return passageRepo
}

func TestNewSearcher_Validation(t *testing.T) {
	repo := newTestRepo(t)

	t.Run("nil passage repository", func(t *testing.T) {
		_, err := NewSearcher(nil, mock.NewMockEmbedder())
		assert.Equal(t, ErrPassageRepositoryRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewSearcher(repo, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})

	t.Run("bad similarity floor", func(t *testing.T) {
		_, err := NewSearcher(repo, mock.NewMockEmbedder(), WithMinSimilarity(1.5))
		assert.ErrorIs(t, err, ErrInvalidMinSimilarity)
	})
}

func TestSearch_EmptyDatabase(t *testing.T) {
	searcher, err := NewSearcher(newTestRepo(t), mock.NewMockEmbedder())
	require.NoError(t, err)

	results, err := searcher.Search(context.Background(), "test query", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_RanksBySimilarity(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.AddPassages(ctx,
		&core.Passage{SourceID: "census-1860", Text: "household of a farmer", Vector: []float32{0.9, 0.1, 0.0}},
		&core.Passage{SourceID: "bible", Text: "family register page", Vector: []float32{0.85, 0.15, 0.0}},
		&core.Passage{SourceID: "cookbook", Text: "recipes for bread", Vector: []float32{0.1, 0.1, 0.8}},
	)
	require.NoError(t, err)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{0.88, 0.12, 0.0}, nil
	}

	searcher, err := NewSearcher(repo, embedder, WithMinSimilarity(0.6))
	require.NoError(t, err)

	results, err := searcher.Search(ctx, "farm family", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for i := 0; i < len(results)-1; i++ {
		assert.GreaterOrEqual(t, results[i].Score, results[i+1].Score)
	}
	for _, r := range results {
		assert.NotEqual(t, "cookbook", r.Passage.SourceID)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestSearch_VerbatimBoostIsClamped(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.AddPassages(ctx,
		&core.Passage{SourceID: "a", Text: "John Carpenter was born in 1850.", Vector: []float32{0.9, 0.3}},
		&core.Passage{SourceID: "b", Text: "A carpenter from Ohio.", Vector: []float32{1, 0.2}},
	)
	require.NoError(t, err)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0}, nil
	}

	searcher, err := NewSearcher(repo, embedder)
	require.NoError(t, err)

	results, err := searcher.Search(ctx, "When was John Carpenter born?", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "a", results[0].Passage.SourceID)
	assert.Equal(t, 1.0, results[0].Score)
	assert.Equal(t, "b", results[1].Passage.SourceID)
}

func TestSearch_TiesBreakBySource(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.AddPassages(ctx,
		&core.Passage{SourceID: "zeta", Text: "one", Vector: []float32{0.5, 0.5}},
		&core.Passage{SourceID: "alpha", Text: "two", Vector: []float32{0.5, 0.5}},
		&core.Passage{SourceID: "mid", Text: "three", Vector: []float32{0.5, 0.5}},
	)
	require.NoError(t, err)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0}, nil
	}
	searcher, err := NewSearcher(repo, embedder, WithVerbatimBoost(0))
	require.NoError(t, err)

	results, err := searcher.Search(ctx, "query", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].Passage.SourceID)
	assert.Equal(t, "mid", results[1].Passage.SourceID)
}

func TestSearch_EmbedderError(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	boom := errors.New("embedding backend down")
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, boom
	}

	searcher, err := NewSearcher(newTestRepo(t), embedder)
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "anything", 5)
	assert.ErrorIs(t, err, boom)
}

type recordingMonitor struct {
	noopMonitor
	started  string
	verbatim int
	finished int
}

func (m *recordingMonitor) Start(query string)                  { m.started = query }
func (m *recordingMonitor) VerbatimHit(_ *core.Passage)         { m.verbatim++ }
func (m *recordingMonitor) Finish(results []core.ScoredPassage) { m.finished = len(results) }

func TestSearchWithMonitor(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.AddPassages(ctx,
		&core.Passage{SourceID: "a", Text: "Mary Ellis married in 1874", Vector: mock.BagOfWordsVector("Mary Ellis married in 1874", mock.Dimensions)},
	)
	require.NoError(t, err)

	searcher, err := NewSearcher(repo, mock.NewMockEmbedder())
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	results, err := searcher.SearchWithMonitor(ctx, "Mary Ellis married", 3, monitor)
	require.NoError(t, err)

	assert.Equal(t, "Mary Ellis married", monitor.started)
	assert.Equal(t, 1, monitor.verbatim)
	assert.Equal(t, len(results), monitor.finished)
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"When was John Carpenter born?", []string{"john", "carpenter", "born"}},
		{"Patrick O'Brien, 1850.", []string{"patrick", "o'brien", "1850"}},
		{"the of and", []string{}},
		{"", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestContainsAllQueryWords(t *testing.T) {
	assert.True(t, containsAllQueryWords("John Carpenter was born in 1850.", "When was John Carpenter born?"))
	assert.False(t, containsAllQueryWords("John Smith was born in 1850.", "When was John Carpenter born?"))
	assert.False(t, containsAllQueryWords("anything", "the of"))
}
