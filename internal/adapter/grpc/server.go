package grpc

import (
	"context"
	"errors"
	"strconv"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/gstk-backend/internal/domain"
	"github.com/simaogato/gstk-backend/internal/usecase/calculator"
)

// Server implements the TaxService gRPC server
type Server struct {
	CalculatorService *calculator.CalculatorService
}

// NewServer creates a new gRPC server instance
func NewServer(calculatorService *calculator.CalculatorService) *Server {
	return &Server{CalculatorService: calculatorService}
}

// ComputeTax handles the ComputeTax RPC
// Request fields: amount, rate (string or number), direction
func (s *Server) ComputeTax(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	input := calculator.CalculateInput{
		Amount:    field(req, "amount"),
		Rate:      field(req, "rate"),
		Direction: field(req, "direction"),
	}

	calc, err := s.CalculatorService.Calculate(ctx, input)
	if err != nil {
		return nil, mapError(err)
	}
	return calculationStruct(calc)
}

// ReverseCalculate handles the ReverseCalculate RPC
// Request fields: total, rate (string or number)
func (s *Server) ReverseCalculate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	input := calculator.ReverseInput{
		Total: field(req, "total"),
		Rate:  field(req, "rate"),
	}

	calc, err := s.CalculatorService.Reverse(ctx, input)
	if err != nil {
		return nil, mapError(err)
	}
	return calculationStruct(calc)
}

// ComputeB2B handles the ComputeB2B RPC, a tax-exclusive business invoice line
// Request fields: amount, rate (string or number)
func (s *Server) ComputeB2B(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	input := calculator.B2BInput{
		Amount: field(req, "amount"),
		Rate:   field(req, "rate"),
	}

	calc, err := s.CalculatorService.CalculateB2B(ctx, input)
	if err != nil {
		return nil, mapError(err)
	}
	return calculationStruct(calc)
}

// field reads a string or number value; anything else reads as empty
func field(req *structpb.Struct, name string) string {
	v, ok := req.GetFields()[name]
	if !ok {
		return ""
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(kind.NumberValue, 'f', -1, 64)
	default:
		return ""
	}
}

func calculationStruct(calc *calculator.Calculation) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(map[string]interface{}{
		"id":              calc.ID.String(),
		"direction":       string(calc.Direction),
		"base":            calc.Display.Base,
		"tax":             calc.Display.Tax,
		"total":           calc.Display.Total,
		"split_a":         calc.Display.SplitA,
		"split_b":         calc.Display.SplitB,
		"split_rate":      calc.Display.SplitRate,
		"formatted_total": calc.Display.FormattedTotal,
		"created_at":      calc.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to build response: %v", err)
	}
	return out, nil
}

// mapError maps domain errors to gRPC status codes
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) ||
		errors.Is(err, domain.ErrMissingInput) ||
		errors.Is(err, domain.ErrNonNumeric) ||
		errors.Is(err, domain.ErrNegativeAmount) ||
		errors.Is(err, domain.ErrRateOutOfRange) ||
		errors.Is(err, domain.ErrInvalidDirection) {
		return status.Errorf(codes.InvalidArgument, "%s", err.Error())
	}

	// Default to Internal error for unknown errors
	return status.Errorf(codes.Internal, "%s", err.Error())
}
