package ledger

import (
	"context"

	"business_reviews/internal/domain"
	"business_reviews/internal/paging"
)

func (l *Ledger) businesses() paging.KeyedSource[domain.Business] {
	return paging.Funcs[domain.Business]{
		CountFn: l.store.CountBusinesses,
		SliceFn: l.store.ListBusinesses,
		FromFn:  l.store.ListBusinessesFrom,
	}
}

func (l *Ledger) reviews(business string) paging.KeyedSource[domain.Review] {
	return paging.Funcs[domain.Review]{
		CountFn: func(ctx context.Context) (int, error) {
			return l.store.CountReviews(ctx, business)
		},
		SliceFn: func(ctx context.Context, offset, limit int) ([]domain.Review, error) {
			return l.store.ListReviews(ctx, business, offset, limit)
		},
		FromFn: func(ctx context.Context, from string, limit int) ([]domain.Review, error) {
			return l.store.ListReviewsFrom(ctx, business, from, limit)
		},
	}
}

// PageBusinesses pages registered businesses in address order.
func (l *Ledger) PageBusinesses(ctx context.Context, q domain.PageQuery) (paging.Result[domain.BusinessView], error) {
	res, err := l.pageFullBusinesses(ctx, q)
	if err != nil {
		return paging.Result[domain.BusinessView]{}, err
	}
	return paging.Map(res, domain.Business.View), nil
}

func (l *Ledger) pageFullBusinesses(ctx context.Context, q domain.PageQuery) (paging.Result[domain.Business], error) {
	if q.From != "" {
		return paging.PageFrom(ctx, l.businesses(), q.From, q.Limit)
	}
	return paging.Page[domain.Business](ctx, l.businesses(), q.Start, q.Limit)
}

// PageReviews pages a business's reviews in reviewer order. Only the public
// projection leaves the ledger.
func (l *Ledger) PageReviews(ctx context.Context, business string, q domain.PageQuery) (paging.Result[domain.ReviewView], error) {
	res, err := l.pageFullReviews(ctx, business, q)
	if err != nil {
		return paging.Result[domain.ReviewView]{}, err
	}
	return paging.Map(res, domain.Review.View), nil
}

func (l *Ledger) pageFullReviews(ctx context.Context, business string, q domain.PageQuery) (paging.Result[domain.Review], error) {
	if q.From != "" {
		return paging.PageFrom(ctx, l.reviews(business), q.From, q.Limit)
	}
	return paging.Page[domain.Review](ctx, l.reviews(business), q.Start, q.Limit)
}
