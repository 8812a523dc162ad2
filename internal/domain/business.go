package domain

import (
	"lukechampine.com/uint128"
)

const (
	MaxNameLength        = 20
	MaxDescriptionLength = 40
)

// Business is the registry record for one address. The aggregate fields
// (AverageRating, ReviewsCount, TotalWeight) are written only through a
// recomputation of the weighted average.
type Business struct {
	Address       string
	Name          string
	Description   string
	AverageRating uint64 // 0..5000, three decimal places
	ReviewsCount  uint64
	TotalWeight   uint128.Uint128
}

// NewBusiness returns a business with a zeroed aggregate.
func NewBusiness(address, name, description string) Business {
	return Business{Address: address, Name: name, Description: description}
}

// BusinessView is the public projection of a Business.
type BusinessView struct {
	Address       string `json:"address"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	AverageRating uint64 `json:"average_rating"`
	ReviewsCount  uint64 `json:"reviews_count"`
	TotalWeight   string `json:"total_weight"` // decimal, may exceed 2^53
}

func (b Business) View() BusinessView {
	return BusinessView{
		Address:       b.Address,
		Name:          b.Name,
		Description:   b.Description,
		AverageRating: b.AverageRating,
		ReviewsCount:  b.ReviewsCount,
		TotalWeight:   b.TotalWeight.String(),
	}
}
