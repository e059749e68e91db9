package taxhandler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"paycalc/internal/domain/payroll"
	"paycalc/internal/domain/tax"
	"paycalc/internal/transport/http/api"
	"paycalc/internal/transport/http/middleware"
	"paycalc/internal/transport/http/shared"
)

type Handler struct {
	Service *payroll.Service
	Guard   func(http.Handler) http.Handler
}

func NewHandler(service *payroll.Service, guard func(http.Handler) http.Handler) *Handler {
	return &Handler{Service: service, Guard: guard}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/tax", func(r chi.Router) {
		r.Post("/calculate", h.handleCalculate)
		r.Post("/brackets/validate", h.handleValidate)
		r.Get("/rates", h.handleListRates)
		r.Group(func(r chi.Router) {
			if h.Guard != nil {
				r.Use(h.Guard)
			}
			r.Post("/rates", h.handleCreateRate)
		})
	})
}

type calculatePayload struct {
	Gross    float64       `json:"gross"`
	Brackets []tax.Bracket `json:"brackets"`
	// Date selects the stored table when Brackets is empty.
	Date string `json:"date"`
}

type calculateResponse struct {
	Gross         float64    `json:"gross"`
	Tax           float64    `json:"tax"`
	Net           float64    `json:"net"`
	EffectiveRate float64    `json:"effectiveRate"`
	Bands         []tax.Band `json:"bands"`
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var payload calculatePayload
	if !shared.Decode(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.NonNegative("gross", payload.Gross)
	date := time.Now()
	if d := v.OptionalDate("date", payload.Date); d != nil {
		date = *d
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	brackets := payload.Brackets
	if len(brackets) == 0 {
		active, err := h.Service.ActiveTaxTable(r.Context(), date)
		if err != nil {
			shared.WriteError(w, r, err)
			return
		}
		brackets = active
	} else if err := tax.Validate(brackets); err != nil {
		shared.WriteError(w, r, err)
		return
	}

	owed := tax.Calculate(payload.Gross, brackets)
	resp := calculateResponse{Gross: payload.Gross, Tax: owed, Net: payload.Gross - owed, Bands: shared.NonNil(tax.Resolve(brackets))}
	if payload.Gross > 0 {
		resp.EffectiveRate = owed / payload.Gross
	}
	api.Success(w, resp, middleware.GetRequestID(r.Context()))
}

type validateResponse struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues,omitempty"`
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Brackets []tax.Bracket `json:"brackets"`
	}
	if !shared.Decode(w, r, &payload) {
		return
	}
	resp := validateResponse{Valid: true}
	if err := tax.Validate(payload.Brackets); err != nil {
		var cerr *tax.ConfigError
		if !errors.As(err, &cerr) {
			shared.WriteError(w, r, err)
			return
		}
		resp = validateResponse{Valid: false, Issues: cerr.Issues}
	}
	api.Success(w, resp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Service.ListTaxRates(r.Context())
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, shared.NonNil(rates), middleware.GetRequestID(r.Context()))
}

type ratePayload struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Rate           float64  `json:"rate"`
	ThresholdLower *float64 `json:"thresholdLower"`
	ThresholdUpper *float64 `json:"thresholdUpper"`
	EffectiveDate  string   `json:"effectiveDate"`
	EndDate        string   `json:"endDate"`
}

func (h *Handler) handleCreateRate(w http.ResponseWriter, r *http.Request) {
	var payload ratePayload
	if !shared.Decode(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Required("name", payload.Name)
	effective, _ := v.Date("effectiveDate", payload.EffectiveDate)
	end := v.OptionalDate("endDate", payload.EndDate)
	if end != nil {
		v.DateOrder("effectiveDate", effective, "endDate", *end)
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	created, err := h.Service.CreateTaxRate(r.Context(), tax.Bracket{
		Name:           payload.Name,
		Description:    payload.Description,
		Rate:           payload.Rate,
		ThresholdLower: payload.ThresholdLower,
		ThresholdUpper: payload.ThresholdUpper,
		EffectiveDate:  effective,
		EndDate:        end,
	})
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}
