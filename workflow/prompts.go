package workflow

import (
	"fmt"
	"strings"

	"github.com/poiesic/kinfolk/core"
)

const routerPrompt = `You route questions for a family history assistant.

Classify the question into exactly one intent:
- factual: a specific fact about a person (a date, place, occupation)
- exploratory: open-ended research or a general topic
- relationship: how two or more people are related
- timeline: events in chronological order

Also list the people, places and dates the question mentions.
Reply with JSON only, in this form:
{"intent": "factual", "entities": [{"name": "John Carpenter", "kind": "person", "normalized": "John Carpenter"}]}
Entity kinds are person, place and date. Normalize dates to a year ("1850") or a range ("1850-1860").

Question: %s`

const extractorPrompt = `Extract genealogical facts from the evidence below.

Each evidence item starts with its id in brackets. Only state what the text says.
For every fact give the subject (a person's full name), the predicate
(birth, death, marriage, immigration, residence, occupation, burial or other),
the value, an optional date_hint, and the id of the evidence item it came from.

Reply with JSON only, in this form:
{"facts": [{"subject": "John Carpenter", "predicate": "birth", "value": "1850", "date_hint": "1850", "evidence_id": "E1"}]}
Reply {"facts": []} when the evidence states no facts.

Question: %s

Evidence:
%s`

const synthesisPrompt = `You are a careful family history research assistant.
%s

Answer the question using only the evidence below. After each sentence that
relies on evidence, cite the evidence ids in brackets, for example [E1] or [E1, E3].
When the extracted facts disagree with free text, trust the extracted facts.
If the evidence does not answer the question, say so plainly.

Question: %s
%s
Evidence:
%s`

const reviewPrompt = `Rate how well the evidence supports the answer.
Reply with exactly one word: confirmed, likely, possible or uncertain.

Answer: %s

Evidence:
%s`

// intentTone tells the synthesizer how to shape the answer for each intent.
var intentTone = map[core.Intent]string{
	core.IntentFactual:      "Answer directly and precisely in one or two sentences.",
	core.IntentExploratory:  "Give a short narrative overview of what the records show.",
	core.IntentRelationship: "Explain how the people are related and name the records that connect them.",
	core.IntentTimeline:     "Present the events in chronological order, one sentence per event.",
}

// formatEvidence renders evidence items as prompt lines.
func formatEvidence(items []core.EvidenceItem) string {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(formatEvidenceLine(item))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatEvidenceLine(item core.EvidenceItem) string {
	source := item.SourceID
	if item.Locator != "" {
		source += ", " + item.Locator
	}
	return fmt.Sprintf("[%s] (%s) %s", item.ID, source, strings.TrimSpace(item.Text))
}

// formatFacts renders extracted facts for the synthesis prompt.
func formatFacts(facts []core.ExtractedFact) string {
	if len(facts) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\nExtracted facts:\n")
	for _, f := range facts {
		fmt.Fprintf(&sb, "- %s: %s = %s", f.Subject, f.Predicate, f.Value)
		if f.DateHint != "" && f.DateHint != f.Value {
			fmt.Fprintf(&sb, " (%s)", f.DateHint)
		}
		fmt.Fprintf(&sb, " [%s]\n", f.SourceEvidenceID)
	}
	return sb.String()
}
