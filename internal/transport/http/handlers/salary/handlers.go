package salaryhandler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"paycalc/internal/domain/payroll"
	"paycalc/internal/domain/tax"
	"paycalc/internal/transport/http/api"
	"paycalc/internal/transport/http/middleware"
	"paycalc/internal/transport/http/shared"
)

type Handler struct {
	Service *payroll.Service
	// Guard wraps mutating routes; nil when auth is disabled.
	Guard func(http.Handler) http.Handler
}

func NewHandler(service *payroll.Service, guard func(http.Handler) http.Handler) *Handler {
	return &Handler{Service: service, Guard: guard}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/salary", func(r chi.Router) {
		r.Post("/calculate", h.handleCalculate)
		r.Post("/structures/validate", h.handleValidateStructure)
		r.Get("/structures", h.handleListStructures)
		r.Get("/structures/{structureID}", h.handleGetStructure)
		r.Group(func(r chi.Router) {
			if h.Guard != nil {
				r.Use(h.Guard)
			}
			r.Post("/structures", h.handleCreateStructure)
		})
	})
}

type calculatePayload struct {
	Components        []payroll.SalaryComponent   `json:"components"`
	Overrides         []payroll.ComponentOverride `json:"overrides"`
	ExternalVariables map[string]float64          `json:"externalVariables"`
	StrictMissing     *bool                       `json:"strictMissingAmount"`
	TaxBrackets       []tax.Bracket               `json:"taxBrackets"`
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var payload calculatePayload
	if !shared.Decode(w, r, &payload) {
		return
	}
	opts := h.Service.Options()
	strict := opts.StrictMissingAmount
	if payload.StrictMissing != nil {
		strict = *payload.StrictMissing
	}
	if err := tax.Validate(payload.TaxBrackets); err != nil {
		shared.WriteError(w, r, err)
		return
	}

	calc := payroll.NewCalculator(payroll.Options{
		StrictMissingAmount: strict,
		TaxBrackets:         payload.TaxBrackets,
		TaxLabel:            opts.TaxLabel,
		Logger:              opts.Logger,
	})
	result, err := calc.Calculate(payload.Components, payload.Overrides, payload.ExternalVariables)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

type validateStructureResponse struct {
	Valid  bool            `json:"valid"`
	Issues []payroll.Issue `json:"issues,omitempty"`
}

func (h *Handler) handleValidateStructure(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Components []payroll.SalaryComponent `json:"components"`
	}
	if !shared.Decode(w, r, &payload) {
		return
	}
	resp := validateStructureResponse{Valid: true}
	if err := payroll.ValidateStructure(payload.Components); err != nil {
		var verr *payroll.ValidationError
		if !errors.As(err, &verr) {
			shared.WriteError(w, r, err)
			return
		}
		resp = validateStructureResponse{Valid: false, Issues: verr.Issues}
	}
	api.Success(w, resp, middleware.GetRequestID(r.Context()))
}

type structurePayload struct {
	Name                  string                    `json:"name"`
	Description           string                    `json:"description"`
	ApplicableDepartments []string                  `json:"applicableDepartments"`
	EffectiveDate         string                    `json:"effectiveDate"`
	Status                string                    `json:"status"`
	Components            []payroll.SalaryComponent `json:"components"`
}

func (h *Handler) handleCreateStructure(w http.ResponseWriter, r *http.Request) {
	var payload structurePayload
	if !shared.Decode(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Required("name", payload.Name)
	effective, _ := v.Date("effectiveDate", payload.EffectiveDate)
	v.Enum("status", payload.Status, payroll.StructureStatusActive, payroll.StructureStatusInactive)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	created, err := h.Service.CreateStructure(r.Context(), payroll.SalaryStructure{
		Name:                  payload.Name,
		Description:           payload.Description,
		ApplicableDepartments: payload.ApplicableDepartments,
		EffectiveDate:         effective,
		Status:                payload.Status,
		Components:            payload.Components,
	})
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListStructures(w http.ResponseWriter, r *http.Request) {
	structures, err := h.Service.ListStructures(r.Context())
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, shared.NonNil(structures), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetStructure(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(w, r, "structureID")
	if !ok {
		return
	}
	st, err := h.Service.GetStructure(r.Context(), id)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, st, middleware.GetRequestID(r.Context()))
}
