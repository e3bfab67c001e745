package workflow

import (
	"fmt"
	"strings"

	"github.com/poiesic/kinfolk/core"
)

// Status summarizes how a query ended.
type Status string

const (
	StatusAnswered      Status = "answered"
	StatusNoInformation Status = "no_information"
	StatusFailed        Status = "failed"
)

// Response is the final result of one query.
type Response struct {
	Query               string               `json:"query"`
	AnswerText          string               `json:"answer_text"`
	Intent              core.Intent          `json:"intent"`
	Confidence          core.ConfidenceLevel `json:"confidence"`
	ConfidenceRationale string               `json:"confidence_rationale"`
	Citations           []core.Citation      `json:"citations"`
	Evidence            []core.EvidenceItem  `json:"evidence"`
	Facts               []core.ExtractedFact `json:"facts,omitempty"`
	Errors              []core.StageError    `json:"errors"`
	TokenUsage          []TokenUsage         `json:"token_usage"`
	Status              Status               `json:"status"`
}

func newResponse(s *QueryState) *Response {
	resp := &Response{
		Query:               s.RawQuery(),
		AnswerText:          s.AnswerText(),
		Intent:              s.Intent(),
		Confidence:          s.Confidence(),
		ConfidenceRationale: s.ConfidenceRationale(),
		Citations:           s.Citations(),
		Evidence:            s.Evidence(),
		Facts:               s.Facts(),
		Errors:              s.Errors(),
		TokenUsage:          SumUsage(s.TokenUsage()),
		Status:              StatusAnswered,
	}
	switch {
	case s.Phase() == PhaseFailed:
		resp.Status = StatusFailed
	case len(resp.Evidence) == 0:
		resp.Status = StatusNoInformation
	}
	// keep JSON output free of nulls
	if resp.Citations == nil {
		resp.Citations = []core.Citation{}
	}
	if resp.Evidence == nil {
		resp.Evidence = []core.EvidenceItem{}
	}
	if resp.Errors == nil {
		resp.Errors = []core.StageError{}
	}
	if resp.TokenUsage == nil {
		resp.TokenUsage = []TokenUsage{}
	}
	return resp
}

// CitedSources returns the distinct cited sources with their locators,
// in order of first citation, up to limit entries. A limit of zero means no limit.
func (r *Response) CitedSources(limit int) []string {
	byID := make(map[core.EvidenceID]core.EvidenceItem, len(r.Evidence))
	for _, item := range r.Evidence {
		byID[item.ID] = item
	}

	var sources []string
	seen := map[string]bool{}
	for _, c := range r.Citations {
		for _, id := range c.EvidenceIDs {
			item, ok := byID[id]
			if !ok {
				continue
			}
			entry := item.SourceID
			if item.Locator != "" {
				entry += " (" + item.Locator + ")"
			}
			if seen[entry] {
				continue
			}
			seen[entry] = true
			sources = append(sources, entry)
			if limit > 0 && len(sources) == limit {
				return sources
			}
		}
	}
	return sources
}

// TotalTokens returns the tokens spent across every LLM call of the query.
func (r *Response) TotalTokens() int {
	total := 0
	for _, u := range r.TokenUsage {
		total += u.Total()
	}
	return total
}

// Format renders the answer for people: the text, a list of up to
// maxSources cited sources and the confidence level.
func (r *Response) Format(maxSources int) string {
	var sb strings.Builder
	sb.WriteString(r.AnswerText)
	sb.WriteString("\n")

	if sources := r.CitedSources(maxSources); len(sources) > 0 {
		sb.WriteString("\nSources:\n")
		for i, s := range sources {
			fmt.Fprintf(&sb, "  %d. %s\n", i+1, s)
		}
	}

	fmt.Fprintf(&sb, "\nConfidence: %s", r.Confidence)
	if r.ConfidenceRationale != "" {
		fmt.Fprintf(&sb, " (%s)", r.ConfidenceRationale)
	}
	sb.WriteString("\n")
	return sb.String()
}
