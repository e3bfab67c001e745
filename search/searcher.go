package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/kinfolk/ai"
	"github.com/poiesic/kinfolk/core"
	"github.com/poiesic/kinfolk/storage"
)

const (
	defaultMinSimilarity = 0.2
	defaultVerbatimBoost = 0.15
	// candidates fetched per requested hit so the verbatim boost can reorder
	overfetchFactor = 2
)

// Searcher provides semantic search over stored passages.
type Searcher struct {
	passages      storage.PassageRepository
	embedder      ai.Embedder
	minSimilarity float32
	verbatimBoost float64
	monitor       SearchMonitor
	logger        *slog.Logger
}

var _ storage.SemanticRetriever = (*Searcher)(nil)

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMinSimilarity sets the cosine similarity floor for semantic matches.
func WithMinSimilarity(minSimilarity float32) Option {
	return func(s *Searcher) error {
		if minSimilarity < 0 || minSimilarity > 1 {
			return ErrInvalidMinSimilarity
		}
		s.minSimilarity = minSimilarity
		return nil
	}
}

// WithVerbatimBoost sets the score added to passages containing every query keyword.
func WithVerbatimBoost(boost float64) Option {
	return func(s *Searcher) error {
		s.verbatimBoost = max(boost, 0)
		return nil
	}
}

// WithMonitor attaches a monitor that observes every search.
func WithMonitor(monitor SearchMonitor) Option {
	return func(s *Searcher) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		s.monitor = monitor
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(passages storage.PassageRepository, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if passages == nil {
		return nil, ErrPassageRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		passages:      passages,
		embedder:      embedder,
		minSimilarity: defaultMinSimilarity,
		verbatimBoost: defaultVerbatimBoost,
		monitor:       &noopMonitor{},
		logger:        slog.Default().With("component", "searcher"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search returns up to topK passages relevant to query, ranked by score.
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]core.ScoredPassage, error) {
	return s.SearchWithMonitor(ctx, query, topK, s.monitor)
}

// SearchWithMonitor is Search with a per-call monitor.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, topK int, monitor SearchMonitor) ([]core.ScoredPassage, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if topK <= 0 || strings.TrimSpace(query) == "" {
		return []core.ScoredPassage{}, nil
	}

	monitor.Start(query)

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(len(embedding))

	matches, err := s.passages.FindSimilar(ctx, embedding, s.minSimilarity, topK*overfetchFactor)
	if err != nil {
		s.logger.Error("error querying for similar passages", "err", err)
		return nil, err
	}

	ids := make([]core.ID, 0, len(matches))
	for _, match := range matches {
		ids = append(ids, match.Passage.Id)
	}
	monitor.AfterSemanticSearch(ids)

	results := make([]core.ScoredPassage, 0, len(matches))
	for _, match := range matches {
		score := match.Score
		if containsAllQueryWords(match.Passage.Text, query) {
			score += s.verbatimBoost
			monitor.VerbatimHit(match.Passage)
		}
		results = append(results, core.ScoredPassage{
			Passage: match.Passage,
			Score:   min(max(score, 0), 1),
		})
	}

	storage.SortPassages(results)
	if len(results) > topK {
		results = results[:topK]
	}
	monitor.Finish(results)

	s.logger.Debug("semantic search complete", "query", query, "hits", len(results))
	return results, nil
}
