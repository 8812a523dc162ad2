package ledger

import (
	"context"
	"fmt"

	"lukechampine.com/uint128"

	"business_reviews/internal/domain"
	"business_reviews/internal/rating"
)

const auditPageSize = 200

// AuditReport compares a business's stored aggregate with its review slots.
type AuditReport struct {
	Address       string
	TotalWeight   uint128.Uint128
	SumOfWeights  uint128.Uint128
	ReviewsCount  uint64
	ReviewerSlots uint64
	AverageRating uint64
}

// Consistent reports whether the stored totals match the review slots and
// a zero weight carries a zero average.
func (r AuditReport) Consistent() bool {
	if !r.TotalWeight.Equals(r.SumOfWeights) || r.ReviewsCount != r.ReviewerSlots {
		return false
	}
	return !r.TotalWeight.IsZero() || r.AverageRating == 0
}

// Audit walks every review of the business. It reads committed state only
// and does not hold a write lock, so a concurrent submission can produce a
// transient mismatch.
func (l *Ledger) Audit(ctx context.Context, address string) (AuditReport, error) {
	b, found, err := l.Business(ctx, address)
	if err != nil {
		return AuditReport{}, err
	}
	if !found {
		return AuditReport{}, domain.NotFound("no business registered at " + address)
	}
	rep := AuditReport{
		Address:       b.Address,
		TotalWeight:   b.TotalWeight,
		ReviewsCount:  b.ReviewsCount,
		AverageRating: b.AverageRating,
	}
	for start := 0; ; start += auditPageSize {
		page, err := l.pageFullReviews(ctx, address, domain.PageQuery{Start: start, Limit: auditPageSize})
		if err != nil {
			return AuditReport{}, fmt.Errorf("page reviews of %s: %w", address, err)
		}
		for _, r := range page.Items {
			if rep.SumOfWeights, err = rating.Add(rep.SumOfWeights, r.Weight); err != nil {
				return AuditReport{}, domain.Fatal("review weights overflow", err)
			}
			rep.ReviewerSlots++
		}
		if len(page.Items) < auditPageSize {
			return rep, nil
		}
	}
}

// EachBusiness calls fn with every registered address in ascending order.
func (l *Ledger) EachBusiness(ctx context.Context, fn func(address string) error) error {
	for start := 0; ; start += auditPageSize {
		page, err := l.pageFullBusinesses(ctx, domain.PageQuery{Start: start, Limit: auditPageSize})
		if err != nil {
			return fmt.Errorf("page businesses: %w", err)
		}
		for _, b := range page.Items {
			if err := fn(b.Address); err != nil {
				return err
			}
		}
		if len(page.Items) < auditPageSize {
			return nil
		}
	}
}
