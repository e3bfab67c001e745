package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/kinfolk/ai"
	"github.com/poiesic/kinfolk/core"
	"github.com/poiesic/kinfolk/storage"
)

var (
	// ErrDatabaseRequired is returned when no connection pool is provided.
	ErrDatabaseRequired = errors.New("database required")

	// ErrEmbedderRequired is returned when a retriever has no embedder.
	ErrEmbedderRequired = errors.New("embedder required")
)

// Querier runs read queries. *pgxpool.Pool satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Execer runs statements. *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var (
	_ Querier = (*pgxpool.Pool)(nil)
	_ Execer  = (*pgxpool.Pool)(nil)
)

// Connect opens a connection pool and verifies it with a ping.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}
	return pool, nil
}

// Retriever implements storage.SemanticRetriever with pgvector cosine distance.
type Retriever struct {
	db            Querier
	embedder      ai.Embedder
	minSimilarity float64
	logger        *slog.Logger
}

var _ storage.SemanticRetriever = (*Retriever)(nil)

// Option configures a Retriever or FactStore.
type Option func(*options) error

type options struct {
	logger        *slog.Logger
	minSimilarity float64
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// WithMinSimilarity drops passages below the given similarity.
func WithMinSimilarity(minSimilarity float64) Option {
	return func(o *options) error {
		if minSimilarity < 0 || minSimilarity > 1 {
			return fmt.Errorf("min similarity %v: %w", minSimilarity, storage.ErrInvalidQuery)
		}
		o.minSimilarity = minSimilarity
		return nil
	}
}

func applyOptions(component string, opts []Option) (*options, error) {
	o := &options{logger: slog.Default().With("component", component)}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// NewRetriever creates a Retriever reading the passages table.
func NewRetriever(db Querier, embedder ai.Embedder, opts ...Option) (*Retriever, error) {
	if db == nil {
		return nil, ErrDatabaseRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	o, err := applyOptions("pg-retriever", opts)
	if err != nil {
		return nil, err
	}
	return &Retriever{db: db, embedder: embedder, minSimilarity: o.minSimilarity, logger: o.logger}, nil
}

// Search embeds query and returns the topK nearest passages.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]core.ScoredPassage, error) {
	if topK <= 0 {
		return []core.ScoredPassage{}, nil
	}
	embedding, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		r.logger.Error("error generating embedding for query", "err", err)
		return nil, err
	}

	rows, err := r.db.Query(ctx, similarPassagesSQL, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("similar passages query failed: %w", err)
	}
	defer rows.Close()

	results := []core.ScoredPassage{}
	for rows.Next() {
		var (
			id         int64
			p          core.Passage
			similarity float64
		)
		if err := rows.Scan(&id, &p.SourceID, &p.Locator, &p.Text, &similarity); err != nil {
			return nil, err
		}
		p.Id = core.ID(id)
		score := min(max(similarity, 0), 1)
		if score < r.minSimilarity {
			continue
		}
		results = append(results, core.ScoredPassage{Passage: &p, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	storage.SortPassages(results)
	return results, nil
}

// FactStore implements storage.FactStore over the relational tables.
type FactStore struct {
	db     Querier
	logger *slog.Logger
}

var _ storage.FactStore = (*FactStore)(nil)

// NewFactStore creates a FactStore.
func NewFactStore(db Querier, opts ...Option) (*FactStore, error) {
	if db == nil {
		return nil, ErrDatabaseRequired
	}
	o, err := applyOptions("pg-factstore", opts)
	if err != nil {
		return nil, err
	}
	return &FactStore{db: db, logger: o.logger}, nil
}

// Query implements storage.FactStore.
func (s *FactStore) Query(ctx context.Context, q core.FactQuery) ([]core.StructuredRecord, error) {
	if q.Empty() {
		return nil, nil
	}

	candidates, err := s.candidates(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	src, err := s.load(ctx, candidates)
	if err != nil {
		return nil, err
	}

	records, err := storage.AssembleRecords(ctx, q, candidates, src)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("fact query", "names", q.Names, "from", q.FromYear, "to", q.ToYear, "records", len(records))
	return records, nil
}

func (s *FactStore) candidates(ctx context.Context, q core.FactQuery) ([]storage.PersonMatch, error) {
	if len(q.Names) == 0 {
		sql, args := personsInRangeQuery(q)
		persons, err := s.persons(ctx, sql, args...)
		if err != nil {
			return nil, err
		}
		matches := make([]storage.PersonMatch, 0, len(persons))
		for _, p := range persons {
			matches = append(matches, storage.PersonMatch{Person: p})
		}
		return matches, nil
	}

	lists := make([][]storage.PersonMatch, 0, len(q.Names))
	for _, name := range q.Names {
		sql, args, ok := personsByNameQuery(name)
		if !ok {
			continue
		}
		persons, err := s.persons(ctx, sql, args...)
		if err != nil {
			return nil, err
		}
		var matches []storage.PersonMatch
		for _, p := range persons {
			if matched, exact := p.MatchName(name); matched {
				matches = append(matches, storage.PersonMatch{Person: p, Exact: exact})
			}
		}
		lists = append(lists, matches)
	}
	return storage.MergeMatches(lists...), nil
}

// load reads facts and relationships of the candidates, plus any relatives
// outside the candidate set.
func (s *FactStore) load(ctx context.Context, candidates []storage.PersonMatch) (*loadedSource, error) {
	src := &loadedSource{
		persons: map[core.ID]*core.Person{},
		facts:   map[core.ID][]*core.Fact{},
		rels:    map[core.ID][]*core.Relationship{},
	}
	ids := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		src.persons[c.Person.Id] = c.Person
		ids = append(ids, int64(c.Person.Id))
	}

	rows, err := s.db.Query(ctx, factsForSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("facts query failed: %w", err)
	}
	facts, err := pgx.CollectRows(rows, scanFact)
	if err != nil {
		return nil, err
	}
	for _, f := range facts {
		src.facts[f.PersonID] = append(src.facts[f.PersonID], f)
	}

	rows, err = s.db.Query(ctx, relationshipsForSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("relationships query failed: %w", err)
	}
	rels, err := pgx.CollectRows(rows, scanRelationship)
	if err != nil {
		return nil, err
	}
	var missing []int64
	for _, rel := range rels {
		src.rels[rel.PersonID] = append(src.rels[rel.PersonID], rel)
		if rel.RelatedID != rel.PersonID {
			src.rels[rel.RelatedID] = append(src.rels[rel.RelatedID], rel)
		}
		for _, id := range []core.ID{rel.PersonID, rel.RelatedID} {
			if _, ok := src.persons[id]; !ok {
				src.persons[id] = nil
				missing = append(missing, int64(id))
			}
		}
	}

	if len(missing) > 0 {
		relatives, err := s.persons(ctx, personsByIDSQL, missing)
		if err != nil {
			return nil, err
		}
		for _, p := range relatives {
			src.persons[p.Id] = p
		}
	}
	return src, nil
}

func (s *FactStore) persons(ctx context.Context, sql string, args ...any) ([]*core.Person, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("persons query failed: %w", err)
	}
	return pgx.CollectRows(rows, scanPerson)
}

func scanPerson(row pgx.CollectableRow) (*core.Person, error) {
	var (
		id int64
		p  core.Person
	)
	err := row.Scan(&id, &p.GivenName, &p.MiddleName, &p.Surname, &p.MaidenName,
		&p.BirthYear, &p.BirthPlace, &p.DeathYear, &p.DeathPlace, &p.SourceID, &p.Locator)
	p.Id = core.ID(id)
	return &p, err
}

func scanFact(row pgx.CollectableRow) (*core.Fact, error) {
	var (
		id, personID int64
		kind         string
		f            core.Fact
	)
	err := row.Scan(&id, &personID, &kind, &f.Year, &f.Place, &f.Description, &f.SourceID, &f.Locator)
	f.Id = core.ID(id)
	f.PersonID = core.ID(personID)
	f.Type = core.ParsePredicate(kind)
	return &f, err
}

func scanRelationship(row pgx.CollectableRow) (*core.Relationship, error) {
	var (
		id, personID, relatedID int64
		rel                     core.Relationship
	)
	err := row.Scan(&id, &personID, &relatedID, &rel.Type, &rel.StartYear, &rel.SourceID, &rel.Locator)
	rel.Id = core.ID(id)
	rel.PersonID = core.ID(personID)
	rel.RelatedID = core.ID(relatedID)
	return &rel, err
}

// loadedSource serves records read up front by FactStore.load.
type loadedSource struct {
	persons map[core.ID]*core.Person
	facts   map[core.ID][]*core.Fact
	rels    map[core.ID][]*core.Relationship
}

var _ storage.RecordSource = (*loadedSource)(nil)

func (l *loadedSource) Person(id core.ID) (*core.Person, error) { return l.persons[id], nil }

func (l *loadedSource) FactsFor(personID core.ID) ([]*core.Fact, error) {
	return l.facts[personID], nil
}

func (l *loadedSource) RelationshipsFor(personID core.ID) ([]*core.Relationship, error) {
	return l.rels[personID], nil
}
