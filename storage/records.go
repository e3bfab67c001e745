package storage

import (
	"context"
	"slices"
	"strings"

	"github.com/poiesic/kinfolk/core"
)

// PersonMatch is a person selected by a FactQuery, with how its name matched.
type PersonMatch struct {
	Person *core.Person
	Exact  bool
}

// RecordSource reads the records attached to a person.
// Person returns nil without error for unknown ids.
type RecordSource interface {
	Person(id core.ID) (*core.Person, error)
	FactsFor(personID core.ID) ([]*core.Fact, error)
	RelationshipsFor(personID core.ID) ([]*core.Relationship, error)
}

// MergeMatches combines per-name match lists, keeping the first occurrence
// of each person and upgrading it to exact when any name matched exactly.
func MergeMatches(lists ...[]PersonMatch) []PersonMatch {
	byID := map[core.ID]int{}
	var out []PersonMatch
	for _, matches := range lists {
		for _, m := range matches {
			if idx, ok := byID[m.Person.Id]; ok {
				out[idx].Exact = out[idx].Exact || m.Exact
				continue
			}
			byID[m.Person.Id] = len(out)
			out = append(out, m)
		}
	}
	return out
}

// AssembleRecords turns candidate persons into structured records for q.
//
// The person record is returned when a life event falls in range, along with
// facts in range and relationships of the requested types. Relationships
// reached from two candidates appear once.
func AssembleRecords(ctx context.Context, q core.FactQuery, candidates []PersonMatch, src RecordSource) ([]core.StructuredRecord, error) {
	var records []core.StructuredRecord
	seenRel := map[core.ID]int{}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		match := core.MatchPartial
		if c.Exact {
			match = core.MatchExact
		}

		p := c.Person
		if q.InYearRange(p.BirthYear) || q.InYearRange(p.DeathYear) {
			records = append(records, core.StructuredRecord{Kind: core.RecordPerson, Match: match, Person: p, Subject: p})
		}

		facts, err := src.FactsFor(p.Id)
		if err != nil {
			return nil, err
		}
		for _, f := range facts {
			if q.InYearRange(f.Year) {
				records = append(records, core.StructuredRecord{Kind: core.RecordFact, Match: match, Fact: f, Subject: p})
			}
		}

		rels, err := src.RelationshipsFor(p.Id)
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			if len(q.RelationshipTypes) > 0 && !slices.Contains(q.RelationshipTypes, rel.Type) {
				continue
			}
			// Undated relationships only accompany named persons.
			if !q.InYearRange(rel.StartYear) && (rel.StartYear != 0 || len(q.Names) == 0) {
				continue
			}
			if idx, ok := seenRel[rel.Id]; ok {
				if match == core.MatchExact {
					records[idx].Match = core.MatchExact
				}
				continue
			}
			subject, err := src.Person(rel.PersonID)
			if err != nil {
				return nil, err
			}
			related, err := src.Person(rel.RelatedID)
			if err != nil {
				return nil, err
			}
			seenRel[rel.Id] = len(records)
			records = append(records, core.StructuredRecord{
				Kind: core.RecordRelationship, Match: match, Relationship: rel, Subject: subject, Related: related,
			})
		}
	}

	SortRecords(records)
	return records, nil
}

// SortRecords orders exact matches first, then by stable id.
func SortRecords(records []core.StructuredRecord) {
	slices.SortStableFunc(records, func(a, b core.StructuredRecord) int {
		if a.Match != b.Match {
			return int(b.Match) - int(a.Match)
		}
		return strings.Compare(a.StableID(), b.StableID())
	})
}

// SortPassages orders passages by score descending, then by source id,
// locator and text ascending so equal scores rank deterministically.
func SortPassages(passages []core.ScoredPassage) {
	slices.SortStableFunc(passages, func(a, b core.ScoredPassage) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		if c := strings.Compare(a.Passage.SourceID, b.Passage.SourceID); c != 0 {
			return c
		}
		if c := strings.Compare(a.Passage.Locator, b.Passage.Locator); c != 0 {
			return c
		}
		return strings.Compare(a.Passage.Text, b.Passage.Text)
	})
}
