package domain

import "context"

// Tx is the point-access view of the store inside one atomic unit of work.
// Reads of a business or review inside a Tx are owned by that Tx until it
// ends: no other writer sees them in between.
//
// Get* and UpdateBusiness return ErrNotFound for missing rows;
// InsertBusiness returns ErrDuplicate for an existing address.
type Tx interface {
	GetBusiness(ctx context.Context, address string) (Business, error)
	InsertBusiness(ctx context.Context, b Business) error
	UpdateBusiness(ctx context.Context, b Business) error
	GetReview(ctx context.Context, business, reviewer string) (Review, error)
	PutReview(ctx context.Context, r Review) error
}

// Reader enumerates committed state in ascending key order.
type Reader interface {
	GetBusiness(ctx context.Context, address string) (Business, error)
	CountBusinesses(ctx context.Context) (int, error)
	ListBusinesses(ctx context.Context, offset, limit int) ([]Business, error)
	ListBusinessesFrom(ctx context.Context, fromAddress string, limit int) ([]Business, error)
	CountReviews(ctx context.Context, business string) (int, error)
	ListReviews(ctx context.Context, business string, offset, limit int) ([]Review, error)
	ListReviewsFrom(ctx context.Context, business, fromReviewer string, limit int) ([]Review, error)
}

// Store commits fn's writes only if fn returns nil.
type Store interface {
	Reader
	Atomically(ctx context.Context, fn func(tx Tx) error) error
}

// ReceiptVerifier is the external transfer lookup. It returns an error
// wrapping ErrNotFound when the receipt is not in the hinted page.
type ReceiptVerifier interface {
	Verify(ctx context.Context, q ReceiptQuery) (Receipt, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// EventPublisher emits committed changes to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, aggregateID string, data any) error
}

// Read models & queries
type PageQuery struct {
	Start int    // offset
	From  string // key cursor; when set, Start is ignored
	Limit int
}

type BusinessesPage struct {
	Items []BusinessView `json:"items"`
	Total int            `json:"total"`
}

type ReviewsPage struct {
	Items []ReviewView `json:"items"`
	Total int          `json:"total"`
}

type SingleBusiness struct {
	Business *BusinessView `json:"business,omitempty"`
	Status   string        `json:"status"`
}

type RegistrationResult struct {
	Business BusinessView `json:"business"`
	Status   string       `json:"status"`
}

type SubmissionResult struct {
	Business  BusinessView `json:"business"`
	NewReview bool         `json:"new_review"`
	Outcome   string       `json:"outcome"`
	Status    string       `json:"status"`
}
