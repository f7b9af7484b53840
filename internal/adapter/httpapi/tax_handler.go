package httpapi

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/simaogato/gstk-backend/internal/usecase/calculator"
)

// numberOrString accepts 1000, 18.5 or "1000" in request bodies
type numberOrString string

func (n *numberOrString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = numberOrString(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*n = numberOrString(num.String())
	return nil
}

type taxRequest struct {
	Amount    numberOrString `json:"amount"`
	Rate      numberOrString `json:"rate"`
	Direction string         `json:"direction"`
}

type reverseRequest struct {
	Total numberOrString `json:"total"`
	Rate  numberOrString `json:"rate"`
}

type calculationResponse struct {
	ID        string    `json:"id"`
	Direction string    `json:"direction"`
	Amount    string    `json:"amount"`
	Rate      string    `json:"rate"`
	Base      string    `json:"base"`
	Tax       string    `json:"tax"`
	Total     string    `json:"total"`
	SplitA    string    `json:"split_a"`
	SplitB    string    `json:"split_b"`
	SplitRate string    `json:"split_rate"`
	Formatted formatted `json:"formatted"`
	CreatedAt time.Time `json:"created_at"`
}

type formatted struct {
	Base  string `json:"base"`
	Tax   string `json:"tax"`
	Total string `json:"total"`
}

func newCalculationResponse(c *calculator.Calculation) calculationResponse {
	return calculationResponse{
		ID:        c.ID.String(),
		Direction: string(c.Direction),
		Amount:    c.Amount.String(),
		Rate:      c.Rate.String(),
		Base:      c.Display.Base,
		Tax:       c.Display.Tax,
		Total:     c.Display.Total,
		SplitA:    c.Display.SplitA,
		SplitB:    c.Display.SplitB,
		SplitRate: c.Display.SplitRate,
		Formatted: formatted{
			Base:  c.Display.FormattedBase,
			Tax:   c.Display.FormattedTax,
			Total: c.Display.FormattedTotal,
		},
		CreatedAt: c.CreatedAt,
	}
}

// TaxHandler serves the calculator endpoints
type TaxHandler struct {
	service *calculator.CalculatorService
	logger  *slog.Logger
}

// NewTaxHandler creates a new TaxHandler
func NewTaxHandler(service *calculator.CalculatorService, logger *slog.Logger) *TaxHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaxHandler{service: service, logger: logger}
}

// MountRoutes registers the calculator routes on r
func (h *TaxHandler) MountRoutes(r chi.Router) {
	r.Post("/tax", h.calculate)
	r.Post("/tax/reverse", h.reverse)
	r.Post("/tax/b2b", h.b2b)
}

func (h *TaxHandler) calculate(w http.ResponseWriter, r *http.Request) {
	var req taxRequest
	if err := DecodeJSON(r, &req); err != nil {
		Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	calc, err := h.service.Calculate(r.Context(), calculator.CalculateInput{
		Amount:    string(req.Amount),
		Rate:      string(req.Rate),
		Direction: req.Direction,
	})
	h.respond(w, r, calc, err)
}

func (h *TaxHandler) reverse(w http.ResponseWriter, r *http.Request) {
	var req reverseRequest
	if err := DecodeJSON(r, &req); err != nil {
		Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	calc, err := h.service.Reverse(r.Context(), calculator.ReverseInput{
		Total: string(req.Total),
		Rate:  string(req.Rate),
	})
	h.respond(w, r, calc, err)
}

func (h *TaxHandler) b2b(w http.ResponseWriter, r *http.Request) {
	var req taxRequest
	if err := DecodeJSON(r, &req); err != nil {
		Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	calc, err := h.service.CalculateB2B(r.Context(), calculator.B2BInput{
		Amount: string(req.Amount),
		Rate:   string(req.Rate),
	})
	h.respond(w, r, calc, err)
}

func (h *TaxHandler) respond(w http.ResponseWriter, r *http.Request, calc *calculator.Calculation, err error) {
	if err != nil {
		h.logger.Debug("tax calculation rejected",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		RespondError(w, err)
		return
	}
	JSON(w, http.StatusOK, newCalculationResponse(calc))
}
