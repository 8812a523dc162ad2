// Package rating recomputes a business's weighted average rating in O(1)
// from the previous aggregate and one reviewer's change.
//
// Ratings 0..5 are scaled to 0..5000 (three decimal places). All arithmetic is
// unsigned 128-bit and checked; division floors. The order of multiplication
// and division below is part of the contract: changing it changes results.
package rating

import (
	"fmt"

	"lukechampine.com/uint128"
)

const (
	MaxValue  = 5000
	MaxRating = 5
)

// Input describes one reviewer's change against the previous aggregate.
type Input struct {
	AddedWeight        uint128.Uint128
	PrevReviewerWeight uint128.Uint128
	NewRating          uint64
	PrevRating         uint64
	PrevTotalWeight    uint128.Uint128
	PrevAverage        uint64
}

type Result struct {
	Average     uint64
	TotalWeight uint128.Uint128
}

// Scale maps a 0..5 rating onto the 0..5000 aggregate range.
func Scale(r uint64) (uint128.Uint128, error) {
	if r > MaxRating {
		return uint128.Zero, fmt.Errorf("rating %d out of range [0, %d]", r, MaxRating)
	}
	return uint128.From64(r * MaxValue / MaxRating), nil
}

// Recompute removes the reviewer's previous contribution from the aggregate,
// recovers the mean of everyone else, and folds the reviewer back in with
// their new rating and cumulative weight.
func Recompute(in Input) (Result, error) {
	if in.PrevAverage > MaxValue {
		return Result{}, fmt.Errorf("previous average %d out of range [0, %d]", in.PrevAverage, MaxValue)
	}
	prevScaled, err := Scale(in.PrevRating)
	if err != nil {
		return Result{}, err
	}
	newScaled, err := Scale(in.NewRating)
	if err != nil {
		return Result{}, err
	}
	prevAvg := uint128.From64(in.PrevAverage)

	withoutMe, err := Sub(in.PrevTotalWeight, in.PrevReviewerWeight)
	if err != nil {
		return Result{}, fmt.Errorf("weight without reviewer: %w", err)
	}

	rest := uint128.Zero
	if !withoutMe.IsZero() {
		total, err := Mul(prevAvg, in.PrevTotalWeight)
		if err != nil {
			return Result{}, fmt.Errorf("aggregate weighted sum: %w", err)
		}
		mine, err := Mul(prevScaled, in.PrevReviewerWeight)
		if err != nil {
			return Result{}, fmt.Errorf("reviewer weighted sum: %w", err)
		}
		// A floored average can leave total a few units short of mine.
		rest, err = Div(saturatingSub(total, mine), withoutMe)
		if err != nil {
			return Result{}, err
		}
	}

	myTotal, err := Add(in.PrevReviewerWeight, in.AddedWeight)
	if err != nil {
		return Result{}, fmt.Errorf("reviewer weight: %w", err)
	}
	newTotal, err := Add(withoutMe, myTotal)
	if err != nil {
		return Result{}, fmt.Errorf("total weight: %w", err)
	}

	if newTotal.IsZero() {
		return Result{Average: 0, TotalWeight: newTotal}, nil
	}

	others, err := Mul(rest, withoutMe)
	if err != nil {
		return Result{}, fmt.Errorf("others weighted sum: %w", err)
	}
	mine, err := Mul(newScaled, myTotal)
	if err != nil {
		return Result{}, fmt.Errorf("reviewer weighted sum: %w", err)
	}
	sum, err := Add(others, mine)
	if err != nil {
		return Result{}, fmt.Errorf("weighted sum: %w", err)
	}
	avg, err := Div(sum, newTotal)
	if err != nil {
		return Result{}, err
	}
	if avg.Cmp64(MaxValue) > 0 {
		return Result{}, fmt.Errorf("average %s out of range [0, %d]", avg, MaxValue)
	}
	return Result{Average: avg.Lo, TotalWeight: newTotal}, nil
}
