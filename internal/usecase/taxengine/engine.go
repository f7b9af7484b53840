package taxengine

import (
	"github.com/shopspring/decimal"
	"github.com/simaogato/gstk-backend/internal/domain"
)

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.New(5, -1)
)

// ComputeTax calculates the tax breakdown of an amount at a percentage rate
// Logic:
//  1. EXCLUSIVE: base = amount, tax = amount * rate / 100, total = base + tax
//  2. INCLUSIVE: total = amount, base = amount / (1 + rate/100), tax = total - base
//  3. Both halves of the split are tax / 2
//
// No rounding is applied; see domain.TaxBreakdown.Rounded for display values.
func ComputeTax(amount, rate decimal.Decimal, direction domain.Direction) (domain.TaxBreakdown, error) {
	if err := validateInput(amount, rate); err != nil {
		return domain.TaxBreakdown{}, err
	}
	if err := direction.Validate(); err != nil {
		return domain.TaxBreakdown{}, err
	}

	var base, tax, total decimal.Decimal
	switch direction {
	case domain.DirectionExclusive:
		base = amount
		tax = amount.Mul(rate).Div(hundred)
		total = base.Add(tax)
	case domain.DirectionInclusive:
		total = amount
		base = amount.Div(decimal.NewFromInt(1).Add(rate.Div(hundred)))
		tax = total.Sub(base)
	}

	// Mul is exact, so the halves always sum back to tax
	split := tax.Mul(half)

	breakdown := domain.TaxBreakdown{
		Base:   base,
		Tax:    tax,
		Total:  total,
		SplitA: split,
		SplitB: split,
	}
	if err := breakdown.Validate(); err != nil {
		return domain.TaxBreakdown{}, err
	}
	return breakdown, nil
}

// ReverseCalculate splits a tax-inclusive total into base and tax
func ReverseCalculate(total, rate decimal.Decimal) (domain.TaxBreakdown, error) {
	return ComputeTax(total, rate, domain.DirectionInclusive)
}

// ComputeB2B calculates an invoice line for business customers.
// Invoice amounts are always quoted before tax.
func ComputeB2B(amount, rate decimal.Decimal) (domain.TaxBreakdown, error) {
	return ComputeTax(amount, rate, domain.DirectionExclusive)
}

// SplitRate returns the rate applied by each half of the split
func SplitRate(rate decimal.Decimal) decimal.Decimal {
	return rate.Mul(half)
}

func validateInput(amount, rate decimal.Decimal) error {
	if amount.IsNegative() {
		return &domain.ValidationError{Field: "amount", Err: domain.ErrNegativeAmount}
	}
	// Rejects -100 as well, where the inclusive divisor would be zero
	if rate.IsNegative() {
		return &domain.ValidationError{Field: "rate", Err: domain.ErrRateOutOfRange}
	}
	return nil
}
