package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Direction tells whether an amount already contains tax
type Direction string

const (
	DirectionExclusive Direction = "EXCLUSIVE"
	DirectionInclusive Direction = "INCLUSIVE"
)

// Sentinel errors for tax input validation
var (
	ErrMissingInput     = errors.New("input is missing")
	ErrNonNumeric       = errors.New("input is not numeric")
	ErrNegativeAmount   = errors.New("amount must not be negative")
	ErrRateOutOfRange   = errors.New("rate must not be negative")
	ErrInvalidDirection = errors.New("direction must be EXCLUSIVE or INCLUSIVE")
)

// ValidationError reports which input field failed and why.
// Callers match the reason with errors.Is against the sentinels above.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ParseDirection accepts either case of EXCLUSIVE/INCLUSIVE
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionExclusive, "exclusive":
		return DirectionExclusive, nil
	case DirectionInclusive, "inclusive":
		return DirectionInclusive, nil
	}
	return "", &ValidationError{Field: "direction", Err: ErrInvalidDirection}
}

// Validate checks the direction is one of the known values
func (d Direction) Validate() error {
	if d != DirectionExclusive && d != DirectionInclusive {
		return &ValidationError{Field: "direction", Err: ErrInvalidDirection}
	}
	return nil
}

// TaxBreakdown is the result of a tax computation.
// Values are unrounded; rounding is a display concern.
type TaxBreakdown struct {
	Base   decimal.Decimal // amount excluding tax
	Tax    decimal.Decimal
	Total  decimal.Decimal // Base + Tax
	SplitA decimal.Decimal // central half (CGST)
	SplitB decimal.Decimal // state half (SGST)
}

// Validate ensures the breakdown adheres to its arithmetic invariants
func (b TaxBreakdown) Validate() error {
	if !b.Base.Add(b.Tax).Equal(b.Total) {
		return errors.New("breakdown total must equal base plus tax")
	}
	if !b.SplitA.Add(b.SplitB).Equal(b.Tax) {
		return errors.New("breakdown split components must sum to tax")
	}
	return nil
}

// Rounded returns a copy with every component rounded to 2 decimal places
func (b TaxBreakdown) Rounded() TaxBreakdown {
	return TaxBreakdown{
		Base:   b.Base.Round(2),
		Tax:    b.Tax.Round(2),
		Total:  b.Total.Round(2),
		SplitA: b.SplitA.Round(2),
		SplitB: b.SplitB.Round(2),
	}
}
