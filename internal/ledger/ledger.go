// Package ledger owns the business registry and the per-reviewer review
// slots, and keeps each business's weighted average consistent with them.
package ledger

import (
	"context"
	"time"

	"business_reviews/internal/domain"
)

type Ledger struct {
	store    domain.Store
	verifier domain.ReceiptVerifier
	now      func() time.Time
}

type Option func(*Ledger)

// WithClock overrides the timestamp source for review updates.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func New(store domain.Store, verifier domain.ReceiptVerifier, opts ...Option) *Ledger {
	l := &Ledger{store: store, verifier: verifier, now: func() time.Time { return time.Now().UTC() }}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Ledger) atomically(ctx context.Context, fn func(tx domain.Tx) error) error {
	return l.store.Atomically(ctx, fn)
}
