package postgres

import (
	"fmt"
	"strings"

	"github.com/poiesic/kinfolk/core"
)

const personColumns = `id, given_name, middle_name, surname, maiden_name, birth_year, birth_place, death_year, death_place, source_id, locator`

const similarPassagesSQL = `SELECT id, source_id, locator, text, 1 - (embedding <=> $1) AS similarity
FROM passages
WHERE embedding IS NOT NULL
ORDER BY embedding <=> $1, source_id, locator
LIMIT $2`

const personsByIDSQL = `SELECT ` + personColumns + ` FROM persons WHERE id = ANY($1)`

const factsForSQL = `SELECT id, person_id, type, year, place, description, source_id, locator
FROM facts WHERE person_id = ANY($1) ORDER BY id`

const relationshipsForSQL = `SELECT id, person_id, related_id, type, start_year, source_id, locator
FROM relationships WHERE person_id = ANY($1) OR related_id = ANY($1) ORDER BY id`

// queryBuilder accumulates positional arguments.
type queryBuilder struct {
	args []any
}

func (b *queryBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// personsByNameQuery selects persons having, for every token of name, a name
// column with a word starting with that token. ok is false when name has no tokens.
func personsByNameQuery(name string) (sql string, args []any, ok bool) {
	tokens := core.NameTokens(name)
	if len(tokens) == 0 {
		return "", nil, false
	}

	b := &queryBuilder{}
	conds := make([]string, 0, len(tokens))
	for _, token := range tokens {
		// tokens are letters and digits only, so they are safe inside a regex
		p := b.arg(`\m` + token)
		conds = append(conds, fmt.Sprintf("(given_name ~* %[1]s OR middle_name ~* %[1]s OR surname ~* %[1]s OR maiden_name ~* %[1]s)", p))
	}

	sql = "SELECT " + personColumns + " FROM persons WHERE " + strings.Join(conds, " AND ") + " ORDER BY id"
	return sql, b.args, true
}

// yearCondition renders the bounds of q against column, or "" when unbounded.
func yearCondition(b *queryBuilder, column string, q core.FactQuery) string {
	var conds []string
	if q.FromYear != 0 || q.ToYear != 0 {
		conds = append(conds, column+" <> 0")
	}
	if q.FromYear != 0 {
		conds = append(conds, column+" >= "+b.arg(q.FromYear))
	}
	if q.ToYear != 0 {
		conds = append(conds, column+" <= "+b.arg(q.ToYear))
	}
	return strings.Join(conds, " AND ")
}

// personsInRangeQuery selects persons with any dated event inside the
// bounds of q: a birth, a death, a fact or a relationship on either side.
func personsInRangeQuery(q core.FactQuery) (string, []any) {
	b := &queryBuilder{}
	parts := []string{
		"(" + yearCondition(b, "birth_year", q) + ")",
		"(" + yearCondition(b, "death_year", q) + ")",
		"id IN (SELECT person_id FROM facts WHERE " + yearCondition(b, "year", q) + ")",
	}
	relCond := yearCondition(b, "start_year", q)
	parts = append(parts,
		"id IN (SELECT person_id FROM relationships WHERE "+relCond+")",
		"id IN (SELECT related_id FROM relationships WHERE "+relCond+")",
	)
	return "SELECT " + personColumns + " FROM persons WHERE " + strings.Join(parts, " OR ") + " ORDER BY id", b.args
}
