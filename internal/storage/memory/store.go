// Package memory is an ordered in-memory implementation of domain.Store.
// Writes made inside Atomically are staged and applied only when the
// callback succeeds; one writer runs at a time.
package memory

import (
	"context"
	"sync"

	"business_reviews/internal/domain"
)

type Store struct {
	mu         sync.RWMutex
	writer     sync.Mutex
	businesses *orderedMap[domain.Business]
	reviews    map[string]*orderedMap[domain.Review] // business -> reviewer -> review
}

var _ domain.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		businesses: newOrderedMap[domain.Business](),
		reviews:    make(map[string]*orderedMap[domain.Review]),
	}
}

func (s *Store) Atomically(ctx context.Context, fn func(tx domain.Tx) error) error {
	s.writer.Lock()
	defer s.writer.Unlock()

	tx := &txn{
		base:       s,
		businesses: make(map[string]domain.Business),
		reviews:    make(map[reviewKey]domain.Review),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, b := range tx.businesses {
		s.businesses.Put(addr, b)
	}
	for k, r := range tx.reviews {
		m, ok := s.reviews[k.business]
		if !ok {
			m = newOrderedMap[domain.Review]()
			s.reviews[k.business] = m
		}
		m.Put(k.reviewer, r)
	}
	return nil
}

func (s *Store) GetBusiness(ctx context.Context, address string) (domain.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getBusiness(address)
}

func (s *Store) getBusiness(address string) (domain.Business, error) {
	b, ok := s.businesses.Get(address)
	if !ok {
		return domain.Business{}, domain.ErrNotFound
	}
	return b, nil
}

func (s *Store) getReview(business, reviewer string) (domain.Review, error) {
	m, ok := s.reviews[business]
	if !ok {
		return domain.Review{}, domain.ErrNotFound
	}
	r, ok := m.Get(reviewer)
	if !ok {
		return domain.Review{}, domain.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *Store) CountBusinesses(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.businesses.Len(), nil
}

func (s *Store) ListBusinesses(ctx context.Context, offset, limit int) ([]domain.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.businesses.Slice(offset, limit), nil
}

func (s *Store) ListBusinessesFrom(ctx context.Context, fromAddress string, limit int) ([]domain.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.businesses.From(fromAddress, limit), nil
}

func (s *Store) CountReviews(ctx context.Context, business string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.reviews[business]; ok {
		return m.Len(), nil
	}
	return 0, nil
}

func (s *Store) ListReviews(ctx context.Context, business string, offset, limit int) ([]domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.reviews[business]
	if !ok {
		return nil, nil
	}
	return cloneReviews(m.Slice(offset, limit)), nil
}

func (s *Store) ListReviewsFrom(ctx context.Context, business, fromReviewer string, limit int) ([]domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.reviews[business]
	if !ok {
		return nil, nil
	}
	return cloneReviews(m.From(fromReviewer, limit)), nil
}

func cloneReviews(in []domain.Review) []domain.Review {
	for i := range in {
		in[i] = in[i].Clone()
	}
	return in
}

type reviewKey struct{ business, reviewer string }

// txn overlays staged writes on the committed maps.
type txn struct {
	base       *Store
	businesses map[string]domain.Business
	reviews    map[reviewKey]domain.Review
}

func (t *txn) GetBusiness(ctx context.Context, address string) (domain.Business, error) {
	if b, ok := t.businesses[address]; ok {
		return b, nil
	}
	t.base.mu.RLock()
	defer t.base.mu.RUnlock()
	return t.base.getBusiness(address)
}

func (t *txn) InsertBusiness(ctx context.Context, b domain.Business) error {
	if _, err := t.GetBusiness(ctx, b.Address); err == nil {
		return domain.ErrDuplicate
	}
	t.businesses[b.Address] = b
	return nil
}

func (t *txn) UpdateBusiness(ctx context.Context, b domain.Business) error {
	if _, err := t.GetBusiness(ctx, b.Address); err != nil {
		return err
	}
	t.businesses[b.Address] = b
	return nil
}

func (t *txn) GetReview(ctx context.Context, business, reviewer string) (domain.Review, error) {
	if r, ok := t.reviews[reviewKey{business, reviewer}]; ok {
		return r.Clone(), nil
	}
	t.base.mu.RLock()
	defer t.base.mu.RUnlock()
	return t.base.getReview(business, reviewer)
}

func (t *txn) PutReview(ctx context.Context, r domain.Review) error {
	t.reviews[reviewKey{r.Business, r.Reviewer}] = r.Clone()
	return nil
}
