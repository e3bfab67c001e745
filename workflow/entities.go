package workflow

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/poiesic/kinfolk/core"
	"github.com/poiesic/kinfolk/search"
)

var (
	yearPattern      = regexp.MustCompile(`\b(1[0-9]{3}|20[0-9]{2})\b`)
	yearRangePattern = regexp.MustCompile(`\b(1[0-9]{3}|20[0-9]{2})\s*(?:-|–|to|and|through)\s*(1[0-9]{3}|20[0-9]{2})\b`)
)

// notNames are capitalized words that open questions rather than name people.
var notNames = map[string]bool{
	"when": true, "where": true, "who": true, "whom": true, "whose": true, "what": true,
	"which": true, "why": true, "how": true, "was": true, "were": true, "is": true,
	"are": true, "did": true, "does": true, "do": true, "tell": true, "show": true,
	"list": true, "find": true, "give": true, "describe": true, "explain": true,
	"the": true, "a": true, "an": true, "in": true, "on": true, "of": true, "and": true,
	"i": true, "my": true, "me": true, "please": true, "can": true, "could": true,
}

// HeuristicEntities extracts entities without an LLM: runs of capitalized
// words become persons and four-digit years become dates.
func HeuristicEntities(query string) []core.ExtractedEntity {
	var entities []core.ExtractedEntity
	seen := map[string]bool{}
	add := func(e core.ExtractedEntity) {
		key := string(e.Kind) + "|" + e.Normalized
		if !seen[key] {
			seen[key] = true
			entities = append(entities, e)
		}
	}

	var run []string
	flush := func() {
		if len(run) > 0 {
			name := strings.Join(run, " ")
			add(core.ExtractedEntity{Name: name, Kind: core.EntityPerson, Normalized: normalizeName(name)})
			run = run[:0]
		}
	}
	for _, word := range strings.Fields(query) {
		trimmed := strings.Trim(strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && r != '\''
		}), "'")
		trimmed = strings.TrimSuffix(trimmed, "'s")
		r := []rune(trimmed)
		if len(r) > 0 && unicode.IsUpper(r[0]) && !notNames[strings.ToLower(trimmed)] {
			run = append(run, trimmed)
		} else {
			flush()
		}
		// punctuation after a word ends the name
		if strings.ContainsAny(word[len(word)-1:], ",.;:?!") {
			flush()
		}
	}
	flush()

	for _, year := range yearPattern.FindAllString(query, -1) {
		add(core.ExtractedEntity{Name: year, Kind: core.EntityDate, Normalized: year})
	}
	return entities
}

// normalizeEntity fills in Normalized and reports whether e is usable.
func normalizeEntity(e core.ExtractedEntity) (core.ExtractedEntity, bool) {
	e.Name = strings.TrimSpace(e.Name)
	switch e.Kind {
	case core.EntityPerson, core.EntityPlace:
		if e.Normalized == "" {
			e.Normalized = e.Name
		}
		e.Normalized = normalizeName(e.Normalized)
	case core.EntityDate:
		value := e.Normalized
		if value == "" {
			value = e.Name
		}
		if m := yearRangePattern.FindStringSubmatch(value); m != nil {
			e.Normalized = m[1] + "-" + m[2]
		} else if y := yearPattern.FindString(value); y != "" {
			e.Normalized = y
		} else {
			return e, false
		}
	default:
		return e, false
	}
	if e.Name == "" {
		e.Name = e.Normalized
	}
	return e, e.Normalized != ""
}

// normalizeName collapses whitespace and title-cases each word.
func normalizeName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// relationshipKeywords maps question words onto stored relationship types.
var relationshipKeywords = map[string]string{
	"parent": core.RelationshipParent, "parents": core.RelationshipParent,
	"father": core.RelationshipParent, "mother": core.RelationshipParent,
	"son": core.RelationshipParent, "daughter": core.RelationshipParent,
	"child": core.RelationshipParent, "children": core.RelationshipParent,
	"spouse": core.RelationshipSpouse, "wife": core.RelationshipSpouse,
	"husband": core.RelationshipSpouse, "married": core.RelationshipSpouse,
	"marry": core.RelationshipSpouse,
	"sibling": core.RelationshipSibling, "siblings": core.RelationshipSibling,
	"brother": core.RelationshipSibling, "sister": core.RelationshipSibling,
}

// BuildFactQuery derives fact store predicates from the routed question.
// Relationship types are only constrained for relationship questions.
func BuildFactQuery(query string, intent core.Intent, entities []core.ExtractedEntity) core.FactQuery {
	var q core.FactQuery
	var years []int
	for _, e := range entities {
		switch e.Kind {
		case core.EntityPerson:
			if !slices.Contains(q.Names, e.Normalized) {
				q.Names = append(q.Names, e.Normalized)
			}
		case core.EntityDate:
			for _, part := range strings.Split(e.Normalized, "-") {
				if y, err := strconv.Atoi(part); err == nil {
					years = append(years, y)
				}
			}
		}
	}
	if len(years) > 0 {
		q.FromYear = slices.Min(years)
		q.ToYear = slices.Max(years)
	}

	if intent == core.IntentRelationship {
		for _, word := range search.Tokenize(query) {
			if t, ok := relationshipKeywords[word]; ok && !slices.Contains(q.RelationshipTypes, t) {
				q.RelationshipTypes = append(q.RelationshipTypes, t)
			}
		}
		slices.Sort(q.RelationshipTypes)
	}
	return q
}
