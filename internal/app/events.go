package app

const (
	EventBusinessRegistered = "business.registered"
	EventReviewSubmitted    = "review.submitted"
)

type BusinessRegistered struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ReviewSubmitted carries the committed aggregate; weights are decimal strings.
type ReviewSubmitted struct {
	Business      string `json:"business"`
	Reviewer      string `json:"reviewer"`
	Rating        int    `json:"rating"`
	ReceiptID     uint64 `json:"receipt_id"`
	Outcome       string `json:"outcome"`
	AddedWeight   string `json:"added_weight"`
	AverageRating uint64 `json:"average_rating"`
	TotalWeight   string `json:"total_weight"`
	ReviewsCount  uint64 `json:"reviews_count"`
}
