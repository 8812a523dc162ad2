package domain

import (
	"slices"
	"time"

	"lukechampine.com/uint128"
)

const MaxRating = 5

// Review is a reviewer's single slot on a business. Weight is the sum of the
// amounts of every receipt in TxIDs.
type Review struct {
	Business   string
	Reviewer   string
	Title      string
	Content    string
	Rating     uint8
	Weight     uint128.Uint128
	TxIDs      []uint64
	LastUpdate time.Time
}

// HasReceipt reports whether the receipt id was already counted toward Weight.
func (r Review) HasReceipt(id uint64) bool {
	return slices.Contains(r.TxIDs, id)
}

// Clone copies the review so the TxIDs backing array is not shared.
func (r Review) Clone() Review {
	out := r
	out.TxIDs = slices.Clone(r.TxIDs)
	return out
}

// ReviewView is what leaves the service; weight and receipts stay internal.
type ReviewView struct {
	Reviewer   string    `json:"reviewer"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Rating     uint8     `json:"rating"`
	LastUpdate time.Time `json:"last_update"`
}

func (r Review) View() ReviewView {
	return ReviewView{
		Reviewer:   r.Reviewer,
		Title:      r.Title,
		Content:    r.Content,
		Rating:     r.Rating,
		LastUpdate: r.LastUpdate,
	}
}

// Submission is one ReviewBusiness request after the caller was authenticated.
type Submission struct {
	Business   string
	Reviewer   string
	Title      string
	Content    string
	Rating     int
	ReceiptID  uint64
	Hint       PagingHint
	Credential string
}

// Outcome distinguishes new reviews from updates and newly counted receipts
// from receipts that were already counted on this review.
type Outcome struct {
	NewReview      bool
	ReceiptCounted bool
	AddedWeight    uint128.Uint128
	Business       Business
}

func (o Outcome) Status() string {
	switch {
	case o.NewReview && o.ReceiptCounted:
		return "review created; receipt counted toward weight"
	case o.NewReview:
		return "review created; receipt was already used, no weight added"
	case o.ReceiptCounted:
		return "review updated; receipt counted toward weight"
	default:
		return "review updated; receipt was already used, no weight added"
	}
}

// Label is the low-cardinality form of Status used in metrics and logs.
func (o Outcome) Label() string {
	switch {
	case o.NewReview && o.ReceiptCounted:
		return "created_counted"
	case o.NewReview:
		return "created_reused"
	case o.ReceiptCounted:
		return "updated_counted"
	default:
		return "updated_reused"
	}
}
