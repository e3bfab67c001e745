package search

import (
	"strings"
	"unicode"
)

// Stop words to filter out when checking for verbatim matches
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "were": true, "to": true, "of": true, "and": true, "in": true,
	"that": true, "have": true, "had": true, "it": true, "for": true, "not": true,
	"on": true, "with": true, "as": true, "you": true, "do": true, "did": true,
	"does": true, "at": true, "this": true, "but": true, "by": true, "from": true,
	"who": true, "what": true, "when": true, "where": true, "why": true, "how": true,
	"tell": true, "me": true, "about": true, "his": true, "her": true, "their": true,
	"he": true, "she": true, "they": true, "there": true, "any": true,
}

// Tokenize splits text into lowercase words and removes stop words.
// Apostrophes inside a word are kept so "o'brien" stays one token.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.Trim(word, "'")
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// containsAllQueryWords checks if all query words (after filtering) appear in the document
func containsAllQueryWords(document, query string) bool {
	queryWords := Tokenize(query)
	if len(queryWords) == 0 {
		return false
	}

	docWordSet := make(map[string]bool)
	for _, word := range Tokenize(document) {
		docWordSet[word] = true
	}

	for _, qWord := range queryWords {
		if !docWordSet[qWord] {
			return false
		}
	}

	return true
}
