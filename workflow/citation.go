package workflow

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/poiesic/kinfolk/core"
	"github.com/poiesic/kinfolk/search"
)

var (
	markerPattern   = regexp.MustCompile(`\[\s*E\d+(?:\s*[,;]\s*E\d+)*\s*\]`)
	markerIDPattern = regexp.MustCompile(`E\d+`)
)

// minSharedKeywords is the fewest keywords a sentence must share with an
// evidence item before overlap alone counts as a citation.
const minSharedKeywords = 2

// CitationGenerator attributes answer sentences to evidence items.
type CitationGenerator struct {
	overlap float64
}

// NewCitationGenerator creates a generator with the given overlap threshold.
func NewCitationGenerator(overlap float64) *CitationGenerator {
	return &CitationGenerator{overlap: overlap}
}

// Generate returns one citation per answer sentence that has support.
// A sentence cites an item it names with an [E#] marker, or one containing
// at least the overlap share of the sentence's keywords. Sentences with no
// support stay uncited. Ids within a citation follow evidence rank.
func (g *CitationGenerator) Generate(answer string, evidence []core.EvidenceItem) []core.Citation {
	if len(evidence) == 0 {
		return nil
	}

	known := make(map[core.EvidenceID]bool, len(evidence))
	evidenceTokens := make([]map[string]bool, len(evidence))
	for i, item := range evidence {
		known[item.ID] = true
		evidenceTokens[i] = tokenSet(item.Text)
	}

	var citations []core.Citation
	for _, span := range sentenceSpans(answer) {
		sentence := answer[span.Start:span.End]
		cited := map[core.EvidenceID]bool{}

		for _, marker := range markerPattern.FindAllString(sentence, -1) {
			for _, id := range markerIDPattern.FindAllString(marker, -1) {
				if known[core.EvidenceID(id)] {
					cited[core.EvidenceID(id)] = true
				}
			}
		}

		words := tokenSet(markerPattern.ReplaceAllString(sentence, " "))
		if len(words) > 0 {
			for i, item := range evidence {
				shared := 0
				for w := range words {
					if evidenceTokens[i][w] {
						shared++
					}
				}
				if shared >= minSharedKeywords && float64(shared)/float64(len(words)) >= g.overlap {
					cited[item.ID] = true
				}
			}
		}

		if len(cited) == 0 {
			continue
		}
		ids := make([]core.EvidenceID, 0, len(cited))
		for _, item := range evidence {
			if cited[item.ID] {
				ids = append(ids, item.ID)
			}
		}
		citations = append(citations, core.Citation{Span: span, EvidenceIDs: ids})
	}
	return citations
}

func tokenSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, t := range search.Tokenize(text) {
		set[t] = true
	}
	return set
}

// sentenceSpans splits text into sentences. A sentence ends at '.', '!' or
// '?' followed by whitespace or the end of text (trailing citation markers
// stay with their sentence), or at a newline. Spans exclude surrounding space.
func sentenceSpans(text string) []core.Span {
	var spans []core.Span
	start := 0
	emit := func(end int) {
		sentence := text[start:end]
		trimmed := strings.TrimLeftFunc(sentence, unicode.IsSpace)
		s := start + len(sentence) - len(trimmed)
		e := s + len(strings.TrimRightFunc(trimmed, unicode.IsSpace))
		if e > s {
			spans = append(spans, core.Span{Start: s, End: e})
		}
		start = end
	}

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			emit(i + 1)
		case '.', '!', '?':
			end := i + 1
			// keep a marker such as " [E1]" that follows the punctuation
			if loc := markerPattern.FindStringIndex(text[end:]); loc != nil && strings.TrimSpace(text[end:end+loc[0]]) == "" {
				end += loc[1]
			}
			if r, _ := utf8.DecodeRuneInString(text[end:]); end == len(text) || unicode.IsSpace(r) {
				emit(end)
				i = end - 1
			}
		}
	}
	emit(len(text))
	return spans
}
