package rating

import (
	"errors"

	"lukechampine.com/uint128"
)

var (
	ErrOverflow  = errors.New("uint128 overflow")
	ErrUnderflow = errors.New("uint128 underflow")
	ErrDivByZero = errors.New("division by zero")
)

func Add(a, b uint128.Uint128) (uint128.Uint128, error) {
	s := a.AddWrap(b)
	if s.Cmp(a) < 0 {
		return uint128.Zero, ErrOverflow
	}
	return s, nil
}

func Sub(a, b uint128.Uint128) (uint128.Uint128, error) {
	if a.Cmp(b) < 0 {
		return uint128.Zero, ErrUnderflow
	}
	return a.SubWrap(b), nil
}

func Mul(a, b uint128.Uint128) (uint128.Uint128, error) {
	if a.IsZero() || b.IsZero() {
		return uint128.Zero, nil
	}
	p := a.MulWrap(b)
	if !p.Div(a).Equals(b) {
		return uint128.Zero, ErrOverflow
	}
	return p, nil
}

// Div is floor division.
func Div(a, b uint128.Uint128) (uint128.Uint128, error) {
	if b.IsZero() {
		return uint128.Zero, ErrDivByZero
	}
	return a.Div(b), nil
}

// saturatingSub clamps at zero instead of failing.
func saturatingSub(a, b uint128.Uint128) uint128.Uint128 {
	if a.Cmp(b) < 0 {
		return uint128.Zero
	}
	return a.SubWrap(b)
}
