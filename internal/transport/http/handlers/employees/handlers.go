package employeeshandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"paycalc/internal/domain/payroll"
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
	r.Route("/employees", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/{employeeID}/assignments", h.handleListAssignments)
		r.Get("/{employeeID}/overrides", h.handleListOverrides)
		r.Get("/{employeeID}/variables", h.handleListVariables)
		r.Group(func(r chi.Router) {
			if h.Guard != nil {
				r.Use(h.Guard)
			}
			r.Post("/", h.handleCreate)
			r.Post("/{employeeID}/assignments", h.handleAssign)
			r.Put("/{employeeID}/overrides/{componentID}", h.handleSetOverride)
			r.Put("/{employeeID}/variables/{name}", h.handleSetVariable)
		})
	})
}

type employeePayload struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Department string `json:"department"`
	Position   string `json:"position"`
	JoinDate   string `json:"joinDate"`
	Status     string `json:"status"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload employeePayload
	if !shared.Decode(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Required("firstName", payload.FirstName)
	v.Required("lastName", payload.LastName)
	v.Required("email", payload.Email)
	v.Required("department", payload.Department)
	joined := v.OptionalDate("joinDate", payload.JoinDate)
	v.Enum("status", payload.Status, payroll.EmployeeStatusActive, payroll.EmployeeStatusInactive)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	created, err := h.Service.CreateEmployee(r.Context(), payroll.Employee{
		FirstName:  payload.FirstName,
		LastName:   payload.LastName,
		Email:      payload.Email,
		Department: payload.Department,
		Position:   payload.Position,
		JoinDate:   joined,
		Status:     payload.Status,
	})
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Service.ListEmployees(r.Context())
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, shared.NonNil(employees), middleware.GetRequestID(r.Context()))
}

type assignmentPayload struct {
	StructureID   int64  `json:"structureId"`
	EffectiveDate string `json:"effectiveDate"`
	EndDate       string `json:"endDate"`
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := shared.IDParam(w, r, "employeeID")
	if !ok {
		return
	}
	var payload assignmentPayload
	if !shared.Decode(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.PositiveID("structureId", payload.StructureID)
	effective, _ := v.Date("effectiveDate", payload.EffectiveDate)
	end := v.OptionalDate("endDate", payload.EndDate)
	if end != nil {
		v.DateOrder("effectiveDate", effective, "endDate", *end)
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	created, err := h.Service.AssignStructure(r.Context(), payroll.StructureAssignment{
		EmployeeID:    employeeID,
		StructureID:   payload.StructureID,
		EffectiveDate: effective,
		EndDate:       end,
	})
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := shared.IDParam(w, r, "employeeID")
	if !ok {
		return
	}
	assignments, err := h.Service.ListAssignments(r.Context(), employeeID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, shared.NonNil(assignments), middleware.GetRequestID(r.Context()))
}

type overridePayload struct {
	Amount  *float64 `json:"amount"`
	Formula string   `json:"formula"`
}

func (h *Handler) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := shared.IDParam(w, r, "employeeID")
	if !ok {
		return
	}
	componentID, ok := shared.IDParam(w, r, "componentID")
	if !ok {
		return
	}
	var payload overridePayload
	if !shared.Decode(w, r, &payload) {
		return
	}

	override := payroll.ComponentOverride{EmployeeID: employeeID, ComponentID: componentID, Amount: payload.Amount, Formula: payload.Formula}
	if err := h.Service.SetOverride(r.Context(), override); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, override, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := shared.IDParam(w, r, "employeeID")
	if !ok {
		return
	}
	overrides, err := h.Service.ListOverrides(r.Context(), employeeID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, shared.NonNil(overrides), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSetVariable(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := shared.IDParam(w, r, "employeeID")
	if !ok {
		return
	}
	var payload struct {
		Value *float64 `json:"value"`
	}
	if !shared.Decode(w, r, &payload) {
		return
	}
	if payload.Value == nil {
		api.Fail(w, http.StatusBadRequest, "validation_error", "value is required", middleware.GetRequestID(r.Context()))
		return
	}

	name := chi.URLParam(r, "name")
	if err := h.Service.SetVariable(r.Context(), employeeID, name, *payload.Value); err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, map[string]any{"name": name, "value": *payload.Value}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListVariables(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := shared.IDParam(w, r, "employeeID")
	if !ok {
		return
	}
	vars, err := h.Service.ListVariables(r.Context(), employeeID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, vars, middleware.GetRequestID(r.Context()))
}
