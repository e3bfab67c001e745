package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/kinfolk/core"
	"github.com/poiesic/kinfolk/storage"
)

// PassageRepository implements storage.PassageRepository for BadgerDB.
type PassageRepository struct {
	backend *Backend
}

var _ storage.PassageRepository = (*PassageRepository)(nil)

// NewPassageRepository creates a new PassageRepository.
func NewPassageRepository(backend *Backend) (*PassageRepository, error) {
	return &PassageRepository{backend: backend}, nil
}

// Close is a no-op; the shared Backend is closed by its owner.
func (r *PassageRepository) Close() error {
	return nil
}

// FindSimilar delegates to the backend.
func (r *PassageRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]core.ScoredPassage, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// WithTransaction delegates to the backend.
func (r *PassageRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddPassages adds one or more passages to storage.
func (r *PassageRepository) AddPassages(ctx context.Context, passages ...*core.Passage) ([]*core.Passage, error) {
	for _, p := range passages {
		if err := core.ValidatePassage(p); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, p := range passages {
			if p.Id == 0 {
				p.Id = core.IDFromContent(p.Key())
			}
			if p.InsertedAt.IsZero() {
				p.InsertedAt = time.Now().UTC()
			}
			if err := tx.Set(makePassageKey(p.Id), storage.MarshalPassage(p)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return passages, nil
}

// DeletePassages removes passages by their IDs.
func (r *PassageRepository) DeletePassages(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makePassageKey(id)
			if _, err := tx.Get(key); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return storage.ErrNotFound
				}
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetPassage retrieves a single passage by ID.
func (r *PassageRepository) GetPassage(ctx context.Context, id core.ID) (*core.Passage, error) {
	var result *core.Passage
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readPassage(tx, id)
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

// GetPassages retrieves multiple passages by their IDs.
func (r *PassageRepository) GetPassages(ctx context.Context, ids ...core.ID) ([]*core.Passage, error) {
	var result []*core.Passage
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			p, err := readPassage(tx, id)
			if err != nil {
				return err
			}
			if p != nil {
				result = append(result, p)
			}
		}
		return nil
	}, false)
	return result, err
}

// CountPassages returns the number of stored passages.
func (r *PassageRepository) CountPassages(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanKeys(tx, []byte(passagePrefix), func([]byte) error {
			count++
			return nil
		})
	}, false)
	return count, err
}

// readPassage returns nil without error when the passage is missing.
func readPassage(tx *badger.Txn, id core.ID) (*core.Passage, error) {
	item, err := tx.Get(makePassageKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p *core.Passage
	err = item.Value(func(val []byte) error {
		var err error
		p, err = storage.UnmarshalPassage(val)
		return err
	})
	return p, err
}
