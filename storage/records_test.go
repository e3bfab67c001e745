package storage

import (
	"context"
	"testing"

	"github.com/poiesic/kinfolk/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSource struct {
	persons map[core.ID]*core.Person
	facts   map[core.ID][]*core.Fact
	rels    map[core.ID][]*core.Relationship
}

func (m mapSource) Person(id core.ID) (*core.Person, error) { return m.persons[id], nil }

func (m mapSource) FactsFor(id core.ID) ([]*core.Fact, error) { return m.facts[id], nil }

func (m mapSource) RelationshipsFor(id core.ID) ([]*core.Relationship, error) {
	return m.rels[id], nil
}

func TestMergeMatches(t *testing.T) {
	a := &core.Person{Id: 1}
	b := &core.Person{Id: 2}

	merged := MergeMatches(
		[]PersonMatch{{Person: a}, {Person: b}},
		[]PersonMatch{{Person: a, Exact: true}},
	)
	require.Len(t, merged, 2)
	assert.Equal(t, core.ID(1), merged[0].Person.Id)
	assert.True(t, merged[0].Exact)
	assert.False(t, merged[1].Exact)
}

func TestAssembleRecords_SharedRelationshipOnce(t *testing.T) {
	john := &core.Person{Id: 1, GivenName: "John", Surname: "Carpenter", BirthYear: 1850}
	mary := &core.Person{Id: 2, GivenName: "Mary", Surname: "Carpenter", BirthYear: 1853}
	marriage := &core.Relationship{Id: 1, PersonID: 1, RelatedID: 2, Type: "spouse", StartYear: 1874}

	src := mapSource{
		persons: map[core.ID]*core.Person{1: john, 2: mary},
		facts:   map[core.ID][]*core.Fact{1: {{Id: 1, PersonID: 1, Type: core.PredicateBirth, Year: 1850}}},
		rels:    map[core.ID][]*core.Relationship{1: {marriage}, 2: {marriage}},
	}

	records, err := AssembleRecords(context.Background(), core.FactQuery{Names: []string{"Carpenter"}},
		[]PersonMatch{{Person: john}, {Person: mary, Exact: true}}, src)
	require.NoError(t, err)

	var ids []string
	for _, r := range records {
		ids = append(ids, r.StableID())
	}
	assert.Equal(t, []string{"person/2", "relationship/1", "fact/1", "person/1"}, ids)
}

func TestAssembleRecords_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := AssembleRecords(ctx, core.FactQuery{FromYear: 1800}, []PersonMatch{{Person: &core.Person{Id: 1}}}, mapSource{})
	assert.ErrorIs(t, err, context.Canceled)
}
