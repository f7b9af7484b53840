package calculator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"github.com/simaogato/gstk-backend/internal/domain"
	"github.com/simaogato/gstk-backend/internal/observability"
	"github.com/simaogato/gstk-backend/internal/usecase/taxengine"
)

// CalculateInput represents raw form input for a tax calculation
type CalculateInput struct {
	Amount    string `validate:"required,numeric"`
	Rate      string `validate:"required,numeric"`
	Direction string `validate:"required"`
}

// ReverseInput represents raw input for splitting a tax-inclusive total
type ReverseInput struct {
	Total string `validate:"required,numeric"`
	Rate  string `validate:"required,numeric"`
}

// B2BInput represents raw input for a business invoice line
type B2BInput struct {
	Amount string `validate:"required,numeric"`
	Rate   string `validate:"required,numeric"`
}

// Calculation is a completed tax calculation ready to be presented
type Calculation struct {
	ID        uuid.UUID
	Direction domain.Direction
	Amount    decimal.Decimal
	Rate      decimal.Decimal
	Breakdown domain.TaxBreakdown
	Display   taxengine.Display
	CreatedAt time.Time
}

// CalculatorService turns raw input into validated tax calculations
type CalculatorService struct {
	Validate *validator.Validate
	Locale   language.Tag
	Metrics  *observability.Metrics
}

// NewCalculatorService creates a new CalculatorService instance
func NewCalculatorService(locale language.Tag, metrics *observability.Metrics) *CalculatorService {
	return &CalculatorService{
		Validate: validator.New(validator.WithRequiredStructEnabled()),
		Locale:   locale,
		Metrics:  metrics,
	}
}

// Calculate validates the input and computes the breakdown
// Logic:
//  1. Trim and validate raw strings (missing -> ErrMissingInput, not a number -> ErrNonNumeric)
//  2. Parse amount, rate and direction
//  3. Run the tax engine and render display values
func (s *CalculatorService) Calculate(ctx context.Context, input CalculateInput) (*Calculation, error) {
	input.Amount = strings.TrimSpace(input.Amount)
	input.Rate = strings.TrimSpace(input.Rate)
	input.Direction = strings.TrimSpace(input.Direction)

	if err := s.validate(input); err != nil {
		s.Metrics.Calculation("unknown", err)
		return nil, err
	}

	direction, err := domain.ParseDirection(input.Direction)
	if err != nil {
		s.Metrics.Calculation("unknown", err)
		return nil, err
	}

	amount, rate, err := parsePair("amount", input.Amount, input.Rate)
	if err != nil {
		s.Metrics.Calculation(string(direction), err)
		return nil, err
	}

	breakdown, err := taxengine.ComputeTax(amount, rate, direction)
	s.Metrics.Calculation(string(direction), err)
	if err != nil {
		return nil, err
	}

	return s.newCalculation(direction, amount, rate, breakdown), nil
}

// Reverse splits a tax-inclusive total into base and tax
func (s *CalculatorService) Reverse(ctx context.Context, input ReverseInput) (*Calculation, error) {
	input.Total = strings.TrimSpace(input.Total)
	input.Rate = strings.TrimSpace(input.Rate)

	if err := s.validate(input); err != nil {
		s.Metrics.Calculation(string(domain.DirectionInclusive), err)
		return nil, err
	}

	total, rate, err := parsePair("total", input.Total, input.Rate)
	if err != nil {
		s.Metrics.Calculation(string(domain.DirectionInclusive), err)
		return nil, err
	}

	breakdown, err := taxengine.ReverseCalculate(total, rate)
	s.Metrics.Calculation(string(domain.DirectionInclusive), err)
	if err != nil {
		return nil, err
	}

	return s.newCalculation(domain.DirectionInclusive, total, rate, breakdown), nil
}

// CalculateB2B computes an invoice line quoted before tax
func (s *CalculatorService) CalculateB2B(ctx context.Context, input B2BInput) (*Calculation, error) {
	input.Amount = strings.TrimSpace(input.Amount)
	input.Rate = strings.TrimSpace(input.Rate)

	if err := s.validate(input); err != nil {
		s.Metrics.Calculation(string(domain.DirectionExclusive), err)
		return nil, err
	}

	amount, rate, err := parsePair("amount", input.Amount, input.Rate)
	if err != nil {
		s.Metrics.Calculation(string(domain.DirectionExclusive), err)
		return nil, err
	}

	breakdown, err := taxengine.ComputeB2B(amount, rate)
	s.Metrics.Calculation(string(domain.DirectionExclusive), err)
	if err != nil {
		return nil, err
	}

	return s.newCalculation(domain.DirectionExclusive, amount, rate, breakdown), nil
}

func (s *CalculatorService) newCalculation(
	direction domain.Direction,
	amount, rate decimal.Decimal,
	breakdown domain.TaxBreakdown,
) *Calculation {
	return &Calculation{
		ID:        uuid.New(),
		Direction: direction,
		Amount:    amount,
		Rate:      rate,
		Breakdown: breakdown,
		Display:   taxengine.Render(breakdown, rate, s.Locale),
		CreatedAt: time.Now(),
	}
}

// validate maps the first validator failure onto a domain.ValidationError
func (s *CalculatorService) validate(input any) error {
	err := s.Validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	fe := fieldErrs[0]
	reason := domain.ErrNonNumeric
	if fe.Tag() == "required" {
		reason = domain.ErrMissingInput
	}
	return &domain.ValidationError{Field: strings.ToLower(fe.Field()), Err: reason}
}

func parsePair(amountField, rawAmount, rawRate string) (decimal.Decimal, decimal.Decimal, error) {
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return decimal.Zero, decimal.Zero, &domain.ValidationError{Field: amountField, Err: domain.ErrNonNumeric}
	}
	rate, err := decimal.NewFromString(rawRate)
	if err != nil {
		return decimal.Zero, decimal.Zero, &domain.ValidationError{Field: "rate", Err: domain.ErrNonNumeric}
	}
	return amount, rate, nil
}
