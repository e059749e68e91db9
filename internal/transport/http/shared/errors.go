package shared

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"paycalc/internal/domain/formula"
	"paycalc/internal/domain/payroll"
	"paycalc/internal/domain/tax"
	"paycalc/internal/platform/jobs"
	"paycalc/internal/requestctx"
	"paycalc/internal/transport/http/api"
)

// WriteError maps a domain error to the response envelope. Errors it does
// not recognise are logged and reported as internal.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := requestctx.GetRequestID(r.Context())

	var verr *payroll.ValidationError
	if errors.As(err, &verr) {
		code := "invalid_structure"
		if errors.Is(verr.Kind, payroll.ErrInvalidOverride) {
			code = "invalid_override"
		}
		api.FailWithDetails(w, http.StatusUnprocessableEntity, code, verr.Kind.Error(), map[string]any{"issues": verr.Issues}, requestID)
		return
	}
	var cerr *tax.ConfigError
	if errors.As(err, &cerr) {
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "invalid_tax_brackets", err.Error(), map[string]any{"issues": cerr.Issues}, requestID)
		return
	}
	var mae *payroll.MissingAmountError
	var mfe *payroll.MissingFormulaError
	if errors.As(err, &mae) || errors.As(err, &mfe) {
		api.Fail(w, http.StatusUnprocessableEntity, "incomplete_component", err.Error(), requestID)
		return
	}

	switch {
	case errors.Is(err, payroll.ErrPeriodNotFound),
		errors.Is(err, payroll.ErrStructureNotFound),
		errors.Is(err, payroll.ErrEmployeeNotFound),
		errors.Is(err, payroll.ErrEntryNotFound),
		errors.Is(err, payroll.ErrComponentNotFound),
		errors.Is(err, jobs.ErrJobNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	case errors.Is(err, payroll.ErrPeriodCompleted):
		api.Fail(w, http.StatusConflict, "period_completed", err.Error(), requestID)
	case errors.Is(err, jobs.ErrQueueFull):
		api.Fail(w, http.StatusServiceUnavailable, "queue_full", err.Error(), requestID)
	case errors.Is(err, payroll.ErrInvalidPeriod),
		errors.Is(err, payroll.ErrInvalidAssignment),
		errors.Is(err, payroll.ErrInvalidEmployee),
		errors.Is(err, payroll.ErrInvalidVariable),
		errors.Is(err, payroll.ErrInvalidTaxRate):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	case errors.Is(err, formula.ErrSyntax),
		errors.Is(err, formula.ErrUndefinedVariable),
		errors.Is(err, formula.ErrDivisionByZero),
		errors.Is(err, formula.ErrNonNumeric):
		api.Fail(w, http.StatusUnprocessableEntity, "formula_error", err.Error(), requestID)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "requestId", requestID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", requestID)
	}
}

// Decode reads a JSON body into v, answering 400 itself on failure.
func Decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", requestctx.GetRequestID(r.Context()))
			return false
		}
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestctx.GetRequestID(r.Context()))
		return false
	}
	return true
}

// IDParam parses a positive integer path parameter, answering 400 itself
// when it is malformed.
func IDParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		api.Fail(w, http.StatusBadRequest, "invalid_id", name+" must be a positive integer", requestctx.GetRequestID(r.Context()))
		return 0, false
	}
	return id, true
}

// NonNil keeps empty lists rendering as [] rather than null.
func NonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
