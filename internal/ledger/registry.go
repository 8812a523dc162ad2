package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"lukechampine.com/uint128"

	"business_reviews/internal/domain"
)

const RegisteredStatus = "successfully registered business"

// ValidateRegistration checks the registration bounds before any read.
func ValidateRegistration(b domain.Business) error {
	if strings.TrimSpace(b.Address) == "" {
		return domain.Validation("Address is required")
	}
	if strings.TrimSpace(b.Name) == "" {
		return domain.Validation("Name is required")
	}
	if utf8.RuneCountInString(b.Name) > domain.MaxNameLength {
		return domain.Validation("Name length can't be bigger than %d", domain.MaxNameLength)
	}
	if utf8.RuneCountInString(b.Description) > domain.MaxDescriptionLength {
		return domain.Validation("Description length can't be bigger than %d", domain.MaxDescriptionLength)
	}
	return nil
}

// RegisterBusiness creates the business once. The aggregate always starts at
// zero whatever the caller passed.
func (l *Ledger) RegisterBusiness(ctx context.Context, b domain.Business) (domain.Business, error) {
	if err := ValidateRegistration(b); err != nil {
		return domain.Business{}, err
	}
	b = domain.NewBusiness(b.Address, b.Name, b.Description)

	err := l.atomically(ctx, func(tx domain.Tx) error {
		if err := tx.InsertBusiness(ctx, b); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				return domain.Conflict("A business is already registered on that address")
			}
			return fmt.Errorf("insert business %s: %w", b.Address, err)
		}
		return nil
	})
	if err != nil {
		return domain.Business{}, err
	}
	return b, nil
}

// Business returns the committed business; found is false when the address
// was never registered.
func (l *Ledger) Business(ctx context.Context, address string) (b domain.Business, found bool, err error) {
	b, err = l.store.GetBusiness(ctx, address)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Business{}, false, nil
	}
	if err != nil {
		return domain.Business{}, false, fmt.Errorf("get business %s: %w", address, err)
	}
	return b, true, nil
}

// applyReviewUpdate writes a recomputed aggregate back to the business.
func applyReviewUpdate(ctx context.Context, tx domain.Tx, address string, totalWeight uint128.Uint128, average uint64, newReviewer bool) (domain.Business, error) {
	b, err := tx.GetBusiness(ctx, address)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Business{}, domain.Fatal("business vanished during review update", err)
	}
	if err != nil {
		return domain.Business{}, fmt.Errorf("reload business %s: %w", address, err)
	}
	b.TotalWeight = totalWeight
	b.AverageRating = average
	if newReviewer {
		b.ReviewsCount++
	}
	if err := tx.UpdateBusiness(ctx, b); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Business{}, domain.Fatal("business vanished during review update", err)
		}
		return domain.Business{}, fmt.Errorf("update business %s: %w", address, err)
	}
	return b, nil
}
