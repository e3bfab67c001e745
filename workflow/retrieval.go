package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/kinfolk/core"
	"github.com/poiesic/kinfolk/storage"
	"golang.org/x/sync/errgroup"
)

// factStoreSource is the source id given to structured records that carry none.
const factStoreSource = "factstore"

// RetrievalCoordinator gathers evidence from the semantic retriever and,
// for factual and relationship questions, the fact store.
type RetrievalCoordinator struct {
	retriever storage.SemanticRetriever
	facts     storage.FactStore
	config    Config
	logger    *slog.Logger
}

// NewRetrievalCoordinator creates a coordinator. facts may be nil, in which
// case only semantic evidence is gathered.
func NewRetrievalCoordinator(retriever storage.SemanticRetriever, facts storage.FactStore, config Config, logger *slog.Logger) (*RetrievalCoordinator, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalCoordinator{
		retriever: retriever,
		facts:     facts,
		config:    config,
		logger:    logger.With("stage", core.StageRetrieval),
	}, nil
}

// usesFactStore reports whether intent consults structured records.
func usesFactStore(intent core.Intent) bool {
	return intent == core.IntentFactual || intent == core.IntentRelationship
}

// Retrieve runs the semantic and structured reads concurrently and merges
// them into one ranked evidence list with ids E1..En. Store failures are
// recorded as recoverable errors and count as zero hits. When ctx ends
// during the reads nothing is merged and the cancellation is recorded.
func (c *RetrievalCoordinator) Retrieve(ctx context.Context, query string, intent core.Intent, entities []core.ExtractedEntity) RetrievalResult {
	var (
		passages []core.ScoredPassage
		records  []core.StructuredRecord
		semErr   error
		factErr  error
	)

	var g errgroup.Group
	g.Go(func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.config.StoreTimeout)
		defer cancel()
		passages, semErr = c.retriever.Search(callCtx, query, c.config.TopK)
		return ctx.Err()
	})

	fq := BuildFactQuery(query, intent, entities)
	if c.facts != nil && usesFactStore(intent) && !fq.Empty() {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.config.StoreTimeout)
			defer cancel()
			records, factErr = c.facts.Query(callCtx, fq)
			return ctx.Err()
		})
	}

	var result RetrievalResult
	if err := g.Wait(); err != nil {
		c.logger.Debug("retrieval abandoned", "err", err)
		result.Errors = append(result.Errors, core.NewStageError(core.StageRetrieval, true, "retrieval canceled", err))
		return result
	}
	if semErr != nil {
		c.logger.Warn("semantic retrieval failed", "err", semErr)
		result.Errors = append(result.Errors, core.NewStageError(core.StageRetrieval, true, "semantic retrieval failed", semErr))
		passages = nil
	}
	if factErr != nil {
		c.logger.Warn("fact store query failed", "err", factErr)
		result.Errors = append(result.Errors, core.NewStageError(core.StageRetrieval, true, "fact store query failed", factErr))
		records = nil
	}

	result.Evidence = c.merge(passages, records)
	if len(result.Evidence) == 0 {
		result.Errors = append(result.Errors, core.NewStageError(core.StageRetrieval, true, "retrieval returned no hits", ErrNoEvidence))
	}

	c.logger.Debug("retrieval complete", "passages", len(passages), "records", len(records), "evidence", len(result.Evidence))
	return result
}

// merge converts hits to evidence, drops duplicates by (source, locator)
// keeping the higher score, ranks the rest and assigns ids.
func (c *RetrievalCoordinator) merge(passages []core.ScoredPassage, records []core.StructuredRecord) []core.EvidenceItem {
	byKey := map[string]int{}
	var items []core.EvidenceItem
	add := func(item core.EvidenceItem) {
		item.Score = min(max(item.Score, 0), 1)
		key := item.SourceID + "\x00" + item.Locator
		if idx, ok := byKey[key]; ok {
			if item.Score > items[idx].Score {
				items[idx] = item
			}
			return
		}
		byKey[key] = len(items)
		items = append(items, item)
	}

	for _, p := range passages {
		if p.Passage == nil {
			continue
		}
		add(core.EvidenceItem{
			Text:     p.Passage.Text,
			SourceID: p.Passage.SourceID,
			Locator:  p.Passage.Locator,
			Score:    p.Score,
			Origin:   core.OriginSemantic,
		})
	}
	for _, r := range records {
		add(c.structuredEvidence(r))
	}

	slices.SortStableFunc(items, compareEvidence)
	for i := range items {
		items[i].ID = core.EvidenceID(fmt.Sprintf("E%d", i+1))
	}
	return items
}

// structuredEvidence renders a fact store record with its calibrated score.
// The locator always contains the record's stable id so distinct records
// never collapse into one.
func (c *RetrievalCoordinator) structuredEvidence(r core.StructuredRecord) core.EvidenceItem {
	source, locator := r.Provenance()
	if source == "" {
		source = factStoreSource
	}
	if locator == "" {
		locator = r.StableID()
	} else {
		locator = locator + " [" + r.StableID() + "]"
	}
	score := c.config.PartialMatchScore
	if r.Match == core.MatchExact {
		score = c.config.ExactMatchScore
	}
	return core.EvidenceItem{
		Text:     r.Describe(),
		SourceID: source,
		Locator:  locator,
		Score:    score,
		Origin:   core.OriginStructured,
	}
}

// compareEvidence orders by score descending, then source id, locator and text.
func compareEvidence(a, b core.EvidenceItem) int {
	if a.Score != b.Score {
		if a.Score > b.Score {
			return -1
		}
		return 1
	}
	if c := strings.Compare(a.SourceID, b.SourceID); c != 0 {
		return c
	}
	if c := strings.Compare(a.Locator, b.Locator); c != 0 {
		return c
	}
	return strings.Compare(a.Text, b.Text)
}

// selectWithinBudget keeps the highest ranked items whose rendered prompt
// lines fit in budget tokens. The first item is truncated rather than dropped.
func selectWithinBudget(items []core.EvidenceItem, budget int, countTokens func(string) int) []core.EvidenceItem {
	var selected []core.EvidenceItem
	used := 0
	for _, item := range items {
		cost := countTokens(formatEvidenceLine(item)) + 1
		if used+cost > budget {
			if len(selected) == 0 && budget > 0 {
				item.Text = truncateToTokens(item.Text, budget, countTokens)
				selected = append(selected, item)
			}
			break
		}
		used += cost
		selected = append(selected, item)
	}
	return selected
}

// truncateToTokens cuts text at a word boundary until it fits.
func truncateToTokens(text string, budget int, countTokens func(string) int) string {
	words := strings.Fields(text)
	for len(words) > 0 && countTokens(strings.Join(words, " ")) > budget {
		words = words[:len(words)*3/4]
	}
	return strings.Join(words, " ")
}

// evidenceBudget returns the tokens available for evidence in a prompt
// that also carries template and reserves maxTokens for the reply.
func evidenceBudget(config Config, window int, template string, maxTokens int, countTokens func(string) int) int {
	if config.ContextBudget > 0 {
		return config.ContextBudget
	}
	const minimumBudget = 256
	return max(window-maxTokens-countTokens(template), minimumBudget)
}
