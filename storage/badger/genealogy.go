package badger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/kinfolk/core"
	"github.com/poiesic/kinfolk/storage"
)

// GenealogyRepository implements storage.GenealogyRepository for BadgerDB.
// Persons are indexed by name token so name lookups avoid full scans.
type GenealogyRepository struct {
	backend  *Backend
	personSq *badger.Sequence
	relSq    *badger.Sequence
	factSq   *badger.Sequence
	logger   *slog.Logger
}

var _ storage.GenealogyRepository = (*GenealogyRepository)(nil)

// NewGenealogyRepository creates a new GenealogyRepository.
func NewGenealogyRepository(backend *Backend) (*GenealogyRepository, error) {
	personSq, err := backend.GetSequence(personIDSeq)
	if err != nil {
		return nil, err
	}
	relSq, err := backend.GetSequence(relationshipIDSeq)
	if err != nil {
		personSq.Release()
		return nil, err
	}
	factSq, err := backend.GetSequence(factIDSeq)
	if err != nil {
		personSq.Release()
		relSq.Release()
		return nil, err
	}

	return &GenealogyRepository{
		backend:  backend,
		personSq: personSq,
		relSq:    relSq,
		factSq:   factSq,
		logger:   slog.Default().With("component", "genealogy-repository"),
	}, nil
}

// Close releases the ID sequences.
func (r *GenealogyRepository) Close() error {
	return errors.Join(r.personSq.Release(), r.relSq.Release(), r.factSq.Release())
}

// WithTransaction delegates to the backend.
func (r *GenealogyRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// nextID skips the zero value BadgerDB sequences can return on first call.
func nextID(seq *badger.Sequence) (core.ID, error) {
	id, err := seq.Next()
	if err != nil {
		return 0, err
	}
	if id == 0 {
		id, err = seq.Next()
		if err != nil {
			return 0, err
		}
	}
	return core.ID(id), nil
}

// AddPersons adds persons and indexes every name token.
func (r *GenealogyRepository) AddPersons(ctx context.Context, persons ...*core.Person) ([]*core.Person, error) {
	for _, p := range persons {
		if err := core.ValidatePerson(p); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, p := range persons {
			if p.Id == 0 {
				id, err := nextID(r.personSq)
				if err != nil {
					return err
				}
				p.Id = id
			}
			if err := tx.Set(makePersonKey(p.Id), storage.MarshalPerson(p)); err != nil {
				return err
			}
			for _, token := range p.NameTokens() {
				if err := tx.Set(makePersonNameKey(token, p.Id), nil); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return persons, nil
}

// AddRelationships adds relationships and indexes them under both persons.
func (r *GenealogyRepository) AddRelationships(ctx context.Context, rels ...*core.Relationship) ([]*core.Relationship, error) {
	for _, rel := range rels {
		if err := core.ValidateRelationship(rel); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, rel := range rels {
			for _, pid := range []core.ID{rel.PersonID, rel.RelatedID} {
				if p, err := readPerson(tx, pid); err != nil {
					return err
				} else if p == nil {
					return fmt.Errorf("%w: person %d", storage.ErrNotFound, pid)
				}
			}
			if rel.Id == 0 {
				id, err := nextID(r.relSq)
				if err != nil {
					return err
				}
				rel.Id = id
			}
			if err := tx.Set(makeRelationshipKey(rel.Id), storage.MarshalRelationship(rel)); err != nil {
				return err
			}
			if err := tx.Set(makePairKey(relationshipIdxPrefix, rel.PersonID, rel.Id), nil); err != nil {
				return err
			}
			if err := tx.Set(makePairKey(relationshipIdxPrefix, rel.RelatedID, rel.Id), nil); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return rels, nil
}

// AddFacts adds facts and indexes them under their person.
func (r *GenealogyRepository) AddFacts(ctx context.Context, facts ...*core.Fact) ([]*core.Fact, error) {
	for _, f := range facts {
		if err := core.ValidateFact(f); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, f := range facts {
			if p, err := readPerson(tx, f.PersonID); err != nil {
				return err
			} else if p == nil {
				return fmt.Errorf("%w: person %d", storage.ErrNotFound, f.PersonID)
			}
			if f.Id == 0 {
				id, err := nextID(r.factSq)
				if err != nil {
					return err
				}
				f.Id = id
			}
			if err := tx.Set(makeFactKey(f.Id), storage.MarshalFact(f)); err != nil {
				return err
			}
			if err := tx.Set(makePairKey(factIdxPrefix, f.PersonID, f.Id), nil); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return facts, nil
}

// GetPerson retrieves a single person by ID.
func (r *GenealogyRepository) GetPerson(ctx context.Context, id core.ID) (*core.Person, error) {
	var result *core.Person
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readPerson(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// FindPersonsByName returns persons matching every fragment of name.
func (r *GenealogyRepository) FindPersonsByName(ctx context.Context, name string) ([]*core.Person, error) {
	var result []*core.Person
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		matches, err := r.findByName(tx, name)
		if err != nil {
			return err
		}
		for _, m := range matches {
			result = append(result, m.Person)
		}
		return nil
	}, false)
	return result, err
}

// findByName intersects the token index postings of every fragment,
// then confirms each candidate with Person.MatchName.
func (r *GenealogyRepository) findByName(tx *badger.Txn, name string) ([]storage.PersonMatch, error) {
	tokens := core.NameTokens(name)
	if len(tokens) == 0 {
		return nil, nil
	}

	var candidates map[core.ID]bool
	for _, token := range tokens {
		ids := map[core.ID]bool{}
		err := scanKeys(tx, makePersonNameScanPrefix(token), func(key []byte) error {
			ids[idFromKeySuffix(key)] = true
			return nil
		})
		if err != nil {
			return nil, err
		}
		if candidates == nil {
			candidates = ids
			continue
		}
		for id := range candidates {
			if !ids[id] {
				delete(candidates, id)
			}
		}
	}

	var matches []storage.PersonMatch
	for id := range candidates {
		p, err := readPerson(tx, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			continue
		}
		if ok, exact := p.MatchName(name); ok {
			matches = append(matches, storage.PersonMatch{Person: p, Exact: exact})
		}
	}
	slices.SortFunc(matches, func(a, b storage.PersonMatch) int {
		return cmp.Compare(a.Person.Id, b.Person.Id)
	})
	return matches, nil
}

// allPersons returns every person, used for date-only queries.
func (r *GenealogyRepository) allPersons(tx *badger.Txn) ([]storage.PersonMatch, error) {
	var matches []storage.PersonMatch
	err := scanPrefix(tx, []byte(personPrefix), func(_, val []byte) error {
		p, err := storage.UnmarshalPerson(val)
		if err != nil {
			return err
		}
		matches = append(matches, storage.PersonMatch{Person: p})
		return nil
	})
	return matches, err
}

// Query implements storage.FactStore.
//
// Names select candidate persons; without names every person is a
// candidate and only the year bounds apply.
func (r *GenealogyRepository) Query(ctx context.Context, q core.FactQuery) ([]core.StructuredRecord, error) {
	if q.Empty() {
		return nil, nil
	}

	var records []core.StructuredRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		candidates, err := r.candidates(tx, q)
		if err != nil {
			return err
		}
		records, err = storage.AssembleRecords(ctx, q, candidates, txSource{tx: tx})
		return err
	}, false)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("fact query", "names", q.Names, "from", q.FromYear, "to", q.ToYear, "records", len(records))
	return records, nil
}

func (r *GenealogyRepository) candidates(tx *badger.Txn, q core.FactQuery) ([]storage.PersonMatch, error) {
	if len(q.Names) == 0 {
		return r.allPersons(tx)
	}

	lists := make([][]storage.PersonMatch, 0, len(q.Names))
	for _, name := range q.Names {
		matches, err := r.findByName(tx, name)
		if err != nil {
			return nil, err
		}
		lists = append(lists, matches)
	}
	return storage.MergeMatches(lists...), nil
}

// txSource reads attached records inside one read transaction.
type txSource struct {
	tx *badger.Txn
}

var _ storage.RecordSource = txSource{}

func (s txSource) Person(id core.ID) (*core.Person, error) { return readPerson(s.tx, id) }

func (s txSource) FactsFor(personID core.ID) ([]*core.Fact, error) {
	return readFactsFor(s.tx, personID)
}

func (s txSource) RelationshipsFor(personID core.ID) ([]*core.Relationship, error) {
	return readRelationshipsFor(s.tx, personID)
}

// readPerson returns nil without error when the person is missing.
func readPerson(tx *badger.Txn, id core.ID) (*core.Person, error) {
	item, err := tx.Get(makePersonKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p *core.Person
	err = item.Value(func(val []byte) error {
		var err error
		p, err = storage.UnmarshalPerson(val)
		return err
	})
	return p, err
}

func readFactsFor(tx *badger.Txn, personID core.ID) ([]*core.Fact, error) {
	var facts []*core.Fact
	err := scanKeys(tx, makeIDKey(factIdxPrefix, personID), func(key []byte) error {
		item, err := tx.Get(makeFactKey(idFromKeySuffix(key)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			f, err := storage.UnmarshalFact(val)
			if err != nil {
				return err
			}
			facts = append(facts, f)
			return nil
		})
	})
	return facts, err
}

func readRelationshipsFor(tx *badger.Txn, personID core.ID) ([]*core.Relationship, error) {
	var rels []*core.Relationship
	err := scanKeys(tx, makeIDKey(relationshipIdxPrefix, personID), func(key []byte) error {
		item, err := tx.Get(makeRelationshipKey(idFromKeySuffix(key)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rel, err := storage.UnmarshalRelationship(val)
			if err != nil {
				return err
			}
			rels = append(rels, rel)
			return nil
		})
	})
	return rels, err
}
