package storage

import (
	"context"

	"github.com/poiesic/kinfolk/core"
)

// SemanticRetriever finds passages semantically related to a free-text query.
type SemanticRetriever interface {
	// Search returns up to topK passages ordered by descending score.
	// Scores are similarities in [0,1].
	Search(ctx context.Context, query string, topK int) ([]core.ScoredPassage, error)
}

// FactStore answers structured genealogical queries.
type FactStore interface {
	// Query returns every person, relationship and fact matching q.
	// Each record carries a MatchKind telling exact name matches from
	// partial ones. An empty query returns no records.
	Query(ctx context.Context, q core.FactQuery) ([]core.StructuredRecord, error)
}

// Repository holds the lifecycle operations shared by all repositories.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// PassageRepository stores indexed document passages and their embeddings.
type PassageRepository interface {
	Repository

	// AddPassages adds one or more passages to storage.
	// Passages with ID=0 get a content-based ID from SourceID, Locator and Text,
	// so adding the same passage twice overwrites it.
	// Sets InsertedAt timestamp if not already set.
	AddPassages(ctx context.Context, passages ...*core.Passage) ([]*core.Passage, error)

	// DeletePassages removes passages by their IDs.
	// Returns ErrNotFound if any passage doesn't exist.
	DeletePassages(ctx context.Context, ids ...core.ID) error

	// GetPassage retrieves a single passage by ID.
	// Returns ErrNotFound if the passage doesn't exist.
	GetPassage(ctx context.Context, id core.ID) (*core.Passage, error)

	// GetPassages retrieves multiple passages by their IDs.
	// Returns only the passages that exist (no error for missing passages).
	GetPassages(ctx context.Context, ids ...core.ID) ([]*core.Passage, error)

	// CountPassages returns the number of stored passages.
	CountPassages(ctx context.Context) (int, error)

	// FindSimilar finds passages similar to the given vector.
	// Returns passages with similarity >= minSimilarity, up to limit results,
	// ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]core.ScoredPassage, error)
}

// GenealogyRepository stores persons, relationships and facts.
type GenealogyRepository interface {
	Repository
	FactStore

	// AddPersons adds persons, assigning sequence IDs to those with ID=0.
	AddPersons(ctx context.Context, persons ...*core.Person) ([]*core.Person, error)

	// AddRelationships adds relationships between existing persons.
	// Returns ErrNotFound if either person doesn't exist.
	AddRelationships(ctx context.Context, rels ...*core.Relationship) ([]*core.Relationship, error)

	// AddFacts adds facts about existing persons.
	// Returns ErrNotFound if the person doesn't exist.
	AddFacts(ctx context.Context, facts ...*core.Fact) ([]*core.Fact, error)

	// GetPerson retrieves a single person by ID.
	// Returns ErrNotFound if the person doesn't exist.
	GetPerson(ctx context.Context, id core.ID) (*core.Person, error)

	// FindPersonsByName returns persons whose names contain every
	// whitespace-separated fragment of name, case-insensitively.
	FindPersonsByName(ctx context.Context, name string) ([]*core.Person, error)
}
