package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lukechampine.com/uint128"

	"business_reviews/internal/domain"
	"business_reviews/internal/rating"
)

// getReview returns the reviewer's slot and whether it already existed.
func getReview(ctx context.Context, tx domain.Tx, business, reviewer string) (domain.Review, bool, error) {
	r, err := tx.GetReview(ctx, business, reviewer)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Review{}, false, nil
	}
	if err != nil {
		return domain.Review{}, false, fmt.Errorf("get review %s/%s: %w", business, reviewer, err)
	}
	return r, true, nil
}

// upsertReview overwrites the slot. Merging is the caller's job.
func upsertReview(ctx context.Context, tx domain.Tx, r domain.Review) error {
	if err := tx.PutReview(ctx, r); err != nil {
		return fmt.Errorf("put review %s/%s: %w", r.Business, r.Reviewer, err)
	}
	return nil
}

// SubmitReview records a reviewer's rating for a business and folds it into
// the business's weighted average.
//
// A receipt id already counted on this review is not verified again and adds
// no weight; the rating, title and content are still replaced. Nothing is
// written unless every step succeeds.
func (l *Ledger) SubmitReview(ctx context.Context, s domain.Submission) (domain.Outcome, error) {
	if s.Rating < 0 || s.Rating > domain.MaxRating {
		return domain.Outcome{}, domain.Validation("Rating must be between 0 and %d", domain.MaxRating)
	}
	if strings.TrimSpace(s.Reviewer) == "" {
		return domain.Outcome{}, domain.Unauthorized("reviewer identity is required")
	}

	var out domain.Outcome
	err := l.atomically(ctx, func(tx domain.Tx) error {
		biz, err := tx.GetBusiness(ctx, s.Business)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NotFound("No business is registered on that address; register it first")
		}
		if err != nil {
			return fmt.Errorf("get business %s: %w", s.Business, err)
		}

		existing, found, err := getReview(ctx, tx, s.Business, s.Reviewer)
		if err != nil {
			return err
		}
		work := existing.Clone()
		if !found {
			work = domain.Review{Business: s.Business, Reviewer: s.Reviewer}
		}
		prevWeight, prevRating := work.Weight, work.Rating

		added := uint128.Zero
		counted := false
		if !work.HasReceipt(s.ReceiptID) {
			rc, err := l.verify(ctx, s, biz.Address)
			if err != nil {
				return err
			}
			if work.Weight, err = rating.Add(work.Weight, rc.Amount); err != nil {
				return domain.Fatal("review weight overflow", err)
			}
			work.TxIDs = append(work.TxIDs, s.ReceiptID)
			added, counted = rc.Amount, true
		}

		work.Title = s.Title
		work.Content = s.Content
		work.Rating = uint8(s.Rating)
		work.LastUpdate = l.now()
		if err := upsertReview(ctx, tx, work); err != nil {
			return err
		}

		res, err := rating.Recompute(rating.Input{
			AddedWeight:        added,
			PrevReviewerWeight: prevWeight,
			NewRating:          uint64(s.Rating),
			PrevRating:         uint64(prevRating),
			PrevTotalWeight:    biz.TotalWeight,
			PrevAverage:        biz.AverageRating,
		})
		if err != nil {
			return domain.Fatal("weighted average recomputation failed", err)
		}

		updated, err := applyReviewUpdate(ctx, tx, biz.Address, res.TotalWeight, res.Average, !found)
		if err != nil {
			return err
		}
		out = domain.Outcome{NewReview: !found, ReceiptCounted: counted, AddedWeight: added, Business: updated}
		return nil
	})
	if err != nil {
		return domain.Outcome{}, err
	}
	return out, nil
}

// verify asks the external verifier for the receipt and checks that it is a
// transfer from the reviewer to the business.
func (l *Ledger) verify(ctx context.Context, s domain.Submission, business string) (domain.Receipt, error) {
	if l.verifier == nil {
		return domain.Receipt{}, domain.Upstream("receipt verification is not configured", nil)
	}
	rc, err := l.verifier.Verify(ctx, domain.ReceiptQuery{
		ID:         s.ReceiptID,
		Credential: s.Credential,
		Hint:       s.Hint.Normalize(),
		Requester:  s.Reviewer,
	})
	if err != nil {
		var de *domain.Error
		switch {
		case errors.As(err, &de):
			return domain.Receipt{}, err
		case errors.Is(err, domain.ErrNotFound):
			return domain.Receipt{}, domain.NotFound(fmt.Sprintf("no transfer with id %d in the given page", s.ReceiptID))
		default:
			return domain.Receipt{}, domain.Upstream("receipt verification failed", err)
		}
	}
	if rc.Sender != s.Reviewer {
		return domain.Receipt{}, domain.Unauthorized("receipt was not sent by the reviewer")
	}
	if rc.Receiver != business {
		return domain.Receipt{}, domain.Unauthorized("receipt was not paid to the business")
	}
	return rc, nil
}
