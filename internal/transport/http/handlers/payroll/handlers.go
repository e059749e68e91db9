package payrollhandler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"paycalc/internal/domain/payroll"
	"paycalc/internal/platform/jobs"
	"paycalc/internal/transport/http/api"
	"paycalc/internal/transport/http/middleware"
	"paycalc/internal/transport/http/shared"
)

type RunRecorder interface {
	RecordRun(err error)
}

type Handler struct {
	Service *payroll.Service
	Jobs    *jobs.Service
	Metrics RunRecorder
	Guard   func(http.Handler) http.Handler
}

func NewHandler(service *payroll.Service, jobsSvc *jobs.Service, metrics RunRecorder, guard func(http.Handler) http.Handler) *Handler {
	return &Handler{Service: service, Jobs: jobsSvc, Metrics: metrics, Guard: guard}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll", func(r chi.Router) {
		r.Get("/periods", h.handleListPeriods)
		r.Get("/periods/{periodID}", h.handleGetPeriod)
		r.Get("/periods/{periodID}/entries", h.handleListEntries)
		r.Get("/entries/{entryID}", h.handleGetEntry)
		r.Get("/jobs/{jobID}", h.handleGetJob)
		r.Group(func(r chi.Router) {
			if h.Guard != nil {
				r.Use(h.Guard)
			}
			r.Post("/periods", h.handleCreatePeriod)
			r.Post("/periods/{periodID}/run", h.handleRun)
			r.Post("/periods/{periodID}/complete", h.handleComplete)
		})
	})
}

type periodPayload struct {
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	PayDate   string `json:"payDate"`
}

func (h *Handler) handleCreatePeriod(w http.ResponseWriter, r *http.Request) {
	var payload periodPayload
	if !shared.Decode(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	v.Required("name", payload.Name)
	start, okStart := v.Date("startDate", payload.StartDate)
	end, okEnd := v.Date("endDate", payload.EndDate)
	pay, _ := v.Date("payDate", payload.PayDate)
	if okStart && okEnd {
		v.DateOrder("startDate", start, "endDate", end)
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	created, err := h.Service.CreatePeriod(r.Context(), payroll.Period{
		Name:      payload.Name,
		StartDate: start,
		EndDate:   end,
		PayDate:   pay,
	})
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Service.ListPeriods(r.Context())
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, shared.NonNil(periods), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetPeriod(w http.ResponseWriter, r *http.Request) {
	periodID, ok := shared.IDParam(w, r, "periodID")
	if !ok {
		return
	}
	period, err := h.Service.GetPeriod(r.Context(), periodID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

// runOutcome is what an async run leaves in job_runs. Entries are read
// back through the entries endpoint.
type runOutcome struct {
	PeriodID         int64                     `json:"periodId"`
	ProcessedEntries int                       `json:"processedEntries"`
	FlaggedEntries   int                       `json:"flaggedEntries"`
	Skipped          []payroll.SkippedEmployee `json:"skipped,omitempty"`
	Failed           []payroll.FailedEmployee  `json:"failed,omitempty"`
}

func (h *Handler) runPeriod(periodID int64) jobs.RunFunc {
	return func(ctx context.Context) (any, error) {
		summary, err := h.Service.RunPeriod(ctx, periodID)
		if h.Metrics != nil {
			h.Metrics.RecordRun(err)
		}
		if err != nil {
			return nil, err
		}
		return runOutcome{
			PeriodID:         summary.PeriodID,
			ProcessedEntries: summary.ProcessedEntries,
			FlaggedEntries:   summary.FlaggedEntries,
			Skipped:          summary.Skipped,
			Failed:           summary.Failed,
		}, nil
	}
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	periodID, ok := shared.IDParam(w, r, "periodID")
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async && h.Jobs != nil {
		// Fail fast on an unknown or completed period instead of queueing it.
		period, err := h.Service.GetPeriod(r.Context(), periodID)
		if err != nil {
			shared.WriteError(w, r, err)
			return
		}
		if period.Status == payroll.PeriodStatusCompleted {
			shared.WriteError(w, r, payroll.ErrPeriodCompleted)
			return
		}
		run, err := h.Jobs.Enqueue(r.Context(), payroll.JobPayrollRun, periodID, h.runPeriod(periodID))
		if err != nil {
			shared.WriteError(w, r, err)
			return
		}
		api.Accepted(w, run, requestID)
		return
	}

	summary, err := h.Service.RunPeriod(r.Context(), periodID)
	if h.Metrics != nil {
		h.Metrics.RecordRun(err)
	}
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	summary.Entries = shared.NonNil(summary.Entries)
	api.Success(w, summary, requestID)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	periodID, ok := shared.IDParam(w, r, "periodID")
	if !ok {
		return
	}
	period, err := h.Service.CompletePeriod(r.Context(), periodID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	periodID, ok := shared.IDParam(w, r, "periodID")
	if !ok {
		return
	}
	entries, err := h.Service.ListEntries(r.Context(), periodID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, shared.NonNil(entries), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entryID, ok := shared.IDParam(w, r, "entryID")
	if !ok {
		return
	}
	entry, err := h.Service.GetEntry(r.Context(), entryID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, entry, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := shared.IDParam(w, r, "jobID")
	if !ok {
		return
	}
	if h.Jobs == nil {
		shared.WriteError(w, r, jobs.ErrJobNotFound)
		return
	}
	run, err := h.Jobs.Get(r.Context(), jobID)
	if err != nil {
		shared.WriteError(w, r, err)
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}
