package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/poiesic/kinfolk/ai"
	"github.com/poiesic/kinfolk/core"
)

// Score thresholds of the confidence policy.
const (
	confirmedMinScore = 0.8
	likelyMinScore    = 0.5
	possibleMinScore  = 0.3
)

// singleEventPredicates happen once per person, so differing values contradict.
var singleEventPredicates = map[core.Predicate]bool{
	core.PredicateBirth:  true,
	core.PredicateDeath:  true,
	core.PredicateBurial: true,
}

// Assess applies the confidence policy with the default year tolerance.
func Assess(evidence []core.EvidenceItem, facts []core.ExtractedFact, citations []core.Citation) Assessment {
	return AssessWithTolerance(evidence, facts, citations, DefaultYearTolerance)
}

// AssessWithTolerance is a pure function of its arguments:
//   - no evidence or no citations: Uncertain
//   - two structured facts contradicting each other: Uncertain
//   - best cited score below 0.3: Uncertain
//   - two or more cited sources, an extracted fact or a cited structured
//     record, every cited score ≥ 0.8: Confirmed
//   - two or more cited sources, every cited score ≥ 0.5: Likely
//   - otherwise Possible
//
// Any other contradiction caps the result at Possible.
func AssessWithTolerance(evidence []core.EvidenceItem, facts []core.ExtractedFact, citations []core.Citation, tolerance int) Assessment {
	if len(evidence) == 0 {
		return Assessment{Level: core.ConfidenceUncertain, Rationale: "No evidence was found."}
	}
	if len(citations) == 0 {
		return Assessment{Level: core.ConfidenceUncertain, Rationale: "The answer is not supported by any cited evidence."}
	}

	byID := make(map[core.EvidenceID]core.EvidenceItem, len(evidence))
	for _, item := range evidence {
		byID[item.ID] = item
	}
	var cited []core.EvidenceItem
	seen := map[core.EvidenceID]bool{}
	for _, c := range citations {
		for _, id := range c.EvidenceIDs {
			if item, ok := byID[id]; ok && !seen[id] {
				seen[id] = true
				cited = append(cited, item)
			}
		}
	}
	if len(cited) == 0 {
		return Assessment{Level: core.ConfidenceUncertain, Rationale: "The citations reference no known evidence."}
	}

	conflict, structuredConflict := findContradiction(facts, tolerance)
	if structuredConflict {
		return Assessment{Level: core.ConfidenceUncertain, Rationale: "Structured records contradict each other: " + conflict + "."}
	}

	sources := map[string]bool{}
	minScore, maxScore := 1.0, 0.0
	for _, item := range cited {
		sources[item.SourceID] = true
		minScore = min(minScore, item.Score)
		maxScore = max(maxScore, item.Score)
	}

	if maxScore < possibleMinScore {
		return Assessment{Level: core.ConfidenceUncertain, Rationale: fmt.Sprintf("The best cited evidence scores only %.2f.", maxScore)}
	}

	factBacked := len(facts) > 0 || slices.ContainsFunc(cited, func(e core.EvidenceItem) bool {
		return e.Origin == core.OriginStructured
	})

	var a Assessment
	switch {
	case len(sources) >= 2 && factBacked && minScore >= confirmedMinScore:
		a = Assessment{Level: core.ConfidenceConfirmed, Rationale: fmt.Sprintf("%d independent sources agree and every cited item scores at least %.2f.", len(sources), confirmedMinScore)}
	case len(sources) >= 2 && minScore >= likelyMinScore:
		a = Assessment{Level: core.ConfidenceLikely, Rationale: fmt.Sprintf("%d sources support the answer with scores of at least %.2f.", len(sources), likelyMinScore)}
	case len(sources) == 1:
		a = Assessment{Level: core.ConfidencePossible, Rationale: "Only one source supports the answer."}
	default:
		a = Assessment{Level: core.ConfidencePossible, Rationale: fmt.Sprintf("Some cited evidence scores as low as %.2f.", minScore)}
	}

	if conflict != "" && a.Level > core.ConfidencePossible {
		a = Assessment{Level: core.ConfidencePossible, Rationale: "Sources disagree: " + conflict + "."}
	}
	return a
}

// findContradiction returns a description of the first pair of facts about
// the same single event whose values disagree, and whether both of them came
// from structured records. A structured pair wins over any other pair.
func findContradiction(facts []core.ExtractedFact, tolerance int) (string, bool) {
	first := ""
	for i := 0; i < len(facts); i++ {
		for j := i + 1; j < len(facts); j++ {
			a, b := facts[i], facts[j]
			if !singleEventPredicates[a.Predicate] || a.Predicate != b.Predicate {
				continue
			}
			if !strings.EqualFold(normalizeValue(a.Subject), normalizeValue(b.Subject)) {
				continue
			}
			if !valuesDisagree(a, b, tolerance) {
				continue
			}
			desc := fmt.Sprintf("%s %s given as %s and %s", a.Subject, a.Predicate, a.Value, b.Value)
			if a.Origin == core.OriginStructured && b.Origin == core.OriginStructured {
				return desc, true
			}
			if first == "" {
				first = desc
			}
		}
	}
	return first, false
}

// valuesDisagree compares years when both facts carry one, else the values.
func valuesDisagree(a, b core.ExtractedFact, tolerance int) bool {
	ya, okA := factYear(a)
	yb, okB := factYear(b)
	if okA && okB {
		diff := ya - yb
		if diff < 0 {
			diff = -diff
		}
		return diff > tolerance
	}
	return normalizeValue(a.Value) != normalizeValue(b.Value)
}

func factYear(f core.ExtractedFact) (int, bool) {
	for _, s := range []string{f.Value, f.DateHint} {
		if y := yearPattern.FindString(s); y != "" {
			n, err := strconv.Atoi(y)
			return n, err == nil
		}
	}
	return 0, false
}

func normalizeValue(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ConfidenceAssessor applies the policy and optionally a qualitative LLM
// review that can only lower the level.
type ConfidenceAssessor struct {
	llm       ai.LLM
	tolerance int
	review    bool
	logger    *slog.Logger
}

// NewConfidenceAssessor creates an assessor. llm is only used when review is set.
func NewConfidenceAssessor(llm ai.LLM, tolerance int, review bool, logger *slog.Logger) *ConfidenceAssessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfidenceAssessor{
		llm:       llm,
		tolerance: tolerance,
		review:    review && llm != nil,
		logger:    logger.With("stage", core.StageConfidence),
	}
}

// reviewMaxTokens is enough for a one-word rating.
const reviewMaxTokens = 8

// AssessmentResult is the confidence assessor's output.
type AssessmentResult struct {
	Assessment
	Usage  []TokenUsage
	Errors []core.StageError
}

// Assess returns the policy level, lowered by the review when it disagrees.
// A failed review is recoverable and keeps the policy level.
func (a *ConfidenceAssessor) Assess(ctx context.Context, answer string, evidence []core.EvidenceItem, facts []core.ExtractedFact, citations []core.Citation) AssessmentResult {
	result := AssessWithTolerance(evidence, facts, citations, a.tolerance)
	if !a.review || result.Level == core.ConfidenceUncertain {
		return AssessmentResult{Assessment: result}
	}

	prompt := fmt.Sprintf(reviewPrompt, answer, formatEvidence(evidence))
	text, err := a.llm.Complete(ctx, prompt, reviewMaxTokens)
	out := AssessmentResult{Assessment: result, Usage: countUsage(a.llm, core.StageConfidence, prompt, text)}
	if err != nil {
		a.logger.Warn("confidence review failed", "err", err)
		out.Errors = []core.StageError{core.NewStageError(core.StageConfidence, true, "confidence review failed", err)}
		return out
	}
	word := ""
	if fields := strings.Fields(text); len(fields) > 0 {
		word = strings.Trim(fields[0], ".,!:\"'`*")
	}
	rated, err := core.ParseConfidence(word)
	if err != nil {
		a.logger.Warn("unparseable confidence review", "response", text)
		out.Errors = []core.StageError{core.NewStageError(core.StageConfidence, true, "unparseable confidence review", err)}
		return out
	}
	if rated < result.Level {
		out.Assessment = Assessment{
			Level:     rated,
			Rationale: result.Rationale + fmt.Sprintf(" A qualitative review lowered the rating to %s.", rated),
		}
	}
	return out
}
