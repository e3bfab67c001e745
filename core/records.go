// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Passage is an indexed chunk of a source document.
// Passages are produced by ingestion, which lives outside this module.
type Passage struct {
	Id         ID
	SourceID   string // Document identifier, e.g. "carpenter-family-history.pdf"
	Locator    string // Page or section within the source, e.g. "p. 12"
	Text       string
	Vector     []float32 // Embedding vector for semantic search
	InsertedAt time.Time
}

// Key returns the provenance pair used for content-based IDs.
func (p *Passage) Key() string {
	return p.SourceID + "|" + p.Locator + "|" + p.Text
}

// ScoredPassage is a passage returned from semantic search.
type ScoredPassage struct {
	Passage *Passage
	Score   float64
}

// Person is a structured person record.
// Years are zero when unknown.
type Person struct {
	Id         ID
	GivenName  string
	MiddleName string
	Surname    string
	MaidenName string
	BirthYear  int
	BirthPlace string
	DeathYear  int
	DeathPlace string
	SourceID   string
	Locator    string
}

// FullName returns the given, middle and surnames joined by single spaces.
func (p *Person) FullName() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.GivenName, p.MiddleName, p.Surname} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// NameTokens returns the names of p as lowercase tokens.
func (p *Person) NameTokens() []string {
	return NameTokens(strings.Join([]string{p.GivenName, p.MiddleName, p.Surname, p.MaidenName}, " "))
}

// NameTokens lowercases s and splits it into letter and digit runs.
func NameTokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// MatchName reports whether every token of name is a prefix of one of the
// person's name tokens, and whether the match is exact: every token equal
// to a name token and both given name and surname named.
func (p *Person) MatchName(name string) (matched, exact bool) {
	query := NameTokens(name)
	if len(query) == 0 {
		return false, false
	}
	tokens := p.NameTokens()
	exact = true
	for _, q := range query {
		found, equal := false, false
		for _, t := range tokens {
			if strings.HasPrefix(t, q) {
				found = true
				if t == q {
					equal = true
				}
			}
		}
		if !found {
			return false, false
		}
		exact = exact && equal
	}
	return true, exact && containsAll(query, NameTokens(p.GivenName)) && containsAll(query, NameTokens(p.Surname))
}

func containsAll(set, want []string) bool {
	if len(want) == 0 {
		return false
	}
	for _, w := range want {
		found := false
		for _, s := range set {
			if s == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Relationship types stored in the fact store.
const (
	RelationshipParent  = "parent"
	RelationshipSpouse  = "spouse"
	RelationshipSibling = "sibling"
)

// Relationship connects two persons.
// For RelationshipParent, PersonID is the parent and RelatedID the child.
type Relationship struct {
	Id        ID
	PersonID  ID
	RelatedID ID
	Type      string
	StartYear int
	SourceID  string
	Locator   string
}

// Fact is a structured event about a person.
type Fact struct {
	Id          ID
	PersonID    ID
	Type        Predicate
	Year        int
	Place       string
	Description string
	SourceID    string
	Locator     string
}

// FactQuery holds the predicates sent to a fact store.
type FactQuery struct {
	// Names are person name strings; every whitespace-separated fragment
	// of a name must match part of a person's name.
	Names []string
	// FromYear and ToYear bound fact and life-event years (inclusive).
	// Zero means unbounded.
	FromYear int
	ToYear   int
	// RelationshipTypes limits returned relationships. Empty means all.
	RelationshipTypes []string
}

// Empty reports whether the query carries no predicates at all.
func (q FactQuery) Empty() bool {
	return len(q.Names) == 0 && q.FromYear == 0 && q.ToYear == 0
}

// InYearRange reports whether year satisfies the query's date bounds.
// Unknown years (zero) only match unbounded queries.
func (q FactQuery) InYearRange(year int) bool {
	if q.FromYear == 0 && q.ToYear == 0 {
		return true
	}
	if year == 0 {
		return false
	}
	if q.FromYear != 0 && year < q.FromYear {
		return false
	}
	if q.ToYear != 0 && year > q.ToYear {
		return false
	}
	return true
}

// MatchKind reports how precisely a structured record matched the query.
type MatchKind int

const (
	MatchPartial MatchKind = iota + 1
	MatchExact
)

// RecordKind tags the payload of a StructuredRecord.
type RecordKind string

const (
	RecordPerson       RecordKind = "person"
	RecordRelationship RecordKind = "relationship"
	RecordFact         RecordKind = "fact"
)

// StructuredRecord is one fact store hit.
// Exactly one of Person, Relationship or Fact is set, according to Kind.
type StructuredRecord struct {
	Kind  RecordKind
	Match MatchKind

	Person       *Person
	Relationship *Relationship
	Fact         *Fact

	// Subject is the person the record is about; Related is the other
	// party of a relationship.
	Subject *Person
	Related *Person
}

// StableID returns an identifier that does not change between queries.
func (r StructuredRecord) StableID() string {
	switch r.Kind {
	case RecordPerson:
		return "person/" + strconv.FormatUint(uint64(r.Person.Id), 10)
	case RecordRelationship:
		return "relationship/" + strconv.FormatUint(uint64(r.Relationship.Id), 10)
	case RecordFact:
		return "fact/" + strconv.FormatUint(uint64(r.Fact.Id), 10)
	}
	return ""
}

// Provenance returns the cited source of the record, if any.
func (r StructuredRecord) Provenance() (sourceID, locator string) {
	switch r.Kind {
	case RecordPerson:
		return r.Person.SourceID, r.Person.Locator
	case RecordRelationship:
		return r.Relationship.SourceID, r.Relationship.Locator
	case RecordFact:
		return r.Fact.SourceID, r.Fact.Locator
	}
	return "", ""
}

// Describe renders the record as a sentence usable as evidence text.
func (r StructuredRecord) Describe() string {
	switch r.Kind {
	case RecordPerson:
		return describePerson(r.Person)
	case RecordRelationship:
		return describeRelationship(r.Relationship, r.Subject, r.Related)
	case RecordFact:
		return describeFact(r.Fact, r.Subject)
	}
	return ""
}

func describePerson(p *Person) string {
	var b strings.Builder
	b.WriteString(p.FullName())
	if p.MaidenName != "" {
		fmt.Fprintf(&b, " (born %s)", p.MaidenName)
	}
	if p.BirthYear != 0 {
		fmt.Fprintf(&b, " was born in %d", p.BirthYear)
		if p.BirthPlace != "" {
			fmt.Fprintf(&b, " in %s", p.BirthPlace)
		}
	}
	if p.DeathYear != 0 {
		if p.BirthYear != 0 {
			b.WriteString(" and")
		}
		fmt.Fprintf(&b, " died in %d", p.DeathYear)
		if p.DeathPlace != "" {
			fmt.Fprintf(&b, " in %s", p.DeathPlace)
		}
	}
	if p.BirthYear == 0 && p.DeathYear == 0 {
		b.WriteString(" is recorded in the family records")
	}
	b.WriteString(".")
	return b.String()
}

func describeRelationship(rel *Relationship, subject, related *Person) string {
	subjectName, relatedName := "unknown person", "unknown person"
	if subject != nil {
		subjectName = subject.FullName()
	}
	if related != nil {
		relatedName = related.FullName()
	}
	var s string
	switch rel.Type {
	case RelationshipParent:
		s = fmt.Sprintf("%s is the parent of %s", subjectName, relatedName)
	case RelationshipSpouse:
		s = fmt.Sprintf("%s married %s", subjectName, relatedName)
		if rel.StartYear != 0 {
			s += fmt.Sprintf(" in %d", rel.StartYear)
		}
	case RelationshipSibling:
		s = fmt.Sprintf("%s is a sibling of %s", subjectName, relatedName)
	default:
		s = fmt.Sprintf("%s has a %s relationship with %s", subjectName, rel.Type, relatedName)
	}
	return s + "."
}

func describeFact(f *Fact, subject *Person) string {
	name := "unknown person"
	if subject != nil {
		name = subject.FullName()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", name, f.Type)
	if f.Year != 0 {
		fmt.Fprintf(&b, " in %d", f.Year)
	}
	if f.Place != "" {
		fmt.Fprintf(&b, " at %s", f.Place)
	}
	if f.Description != "" {
		fmt.Fprintf(&b, ". %s", strings.TrimSuffix(f.Description, "."))
	}
	b.WriteString(".")
	return b.String()
}
