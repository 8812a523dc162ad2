package app

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"business_reviews/internal/adapters/observability"
	"business_reviews/internal/ledger"
)

type AuditSummary struct {
	Checked    int
	Mismatches []ledger.AuditReport
}

type AuditService struct {
	ledger  *ledger.Ledger
	workers int
}

func NewAuditService(l *ledger.Ledger, workers int) *AuditService {
	if workers <= 0 {
		workers = 1
	}
	return &AuditService{ledger: l, workers: workers}
}

// AuditOne checks a single business and logs a mismatch.
func (s *AuditService) AuditOne(ctx context.Context, address string) (ledger.AuditReport, error) {
	rep, err := s.ledger.Audit(ctx, address)
	if err != nil {
		return ledger.AuditReport{}, err
	}
	if !rep.Consistent() {
		observability.ObserveAuditMismatch()
		log.Error().
			Str("address", rep.Address).
			Str("total_weight", rep.TotalWeight.String()).
			Str("sum_of_weights", rep.SumOfWeights.String()).
			Uint64("reviews_count", rep.ReviewsCount).
			Uint64("reviewer_slots", rep.ReviewerSlots).
			Uint64("average_rating", rep.AverageRating).
			Msg("aggregate mismatch")
	}
	return rep, nil
}

// AuditAll audits every registered business with at most s.workers in
// flight. Mismatches are returned in address order.
func (s *AuditService) AuditAll(ctx context.Context) (AuditSummary, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	var (
		mu  sync.Mutex
		sum AuditSummary
	)
	walkErr := s.ledger.EachBusiness(gctx, func(address string) error {
		g.Go(func() error {
			rep, err := s.AuditOne(gctx, address)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			sum.Checked++
			if !rep.Consistent() {
				sum.Mismatches = append(sum.Mismatches, rep)
			}
			return nil
		})
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return AuditSummary{}, err
	}
	if walkErr != nil {
		return AuditSummary{}, walkErr
	}

	slices.SortFunc(sum.Mismatches, func(a, b ledger.AuditReport) int {
		return strings.Compare(a.Address, b.Address)
	})
	log.Info().Int("checked", sum.Checked).Int("mismatches", len(sum.Mismatches)).Msg("audit finished")
	return sum, nil
}
