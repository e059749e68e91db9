package shared

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"paycalc/internal/transport/http/api"
)

// FieldIssue names one rejected request field.
type FieldIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Validator collects request-shape problems so a handler can report all
// of them in one 400. Domain rules are checked later by the services.
type Validator struct {
	issues []FieldIssue
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Add(field, reason string) {
	v.issues = append(v.issues, FieldIssue{Field: field, Reason: reason})
}

func (v *Validator) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "is required")
	}
}

func (v *Validator) PositiveID(field string, id int64) {
	if id <= 0 {
		v.Add(field, "must be a positive id")
	}
}

func (v *Validator) NonNegative(field string, value float64) {
	if value < 0 {
		v.Add(field, "must not be negative")
	}
}

// Enum accepts an empty value; services fill in their defaults.
func (v *Validator) Enum(field, value string, allowed ...string) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || slices.Contains(allowed, value) {
		return
	}
	v.Add(field, "must be one of "+strings.Join(allowed, ", "))
}

func (v *Validator) Date(field, raw string) (time.Time, bool) {
	parsed, err := ParseDate(strings.TrimSpace(raw))
	if err != nil || parsed.IsZero() {
		v.Add(field, "must be a date in YYYY-MM-DD format")
		return time.Time{}, false
	}
	return parsed, true
}

func (v *Validator) OptionalDate(field, raw string) *time.Time {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if parsed, ok := v.Date(field, raw); ok {
		return &parsed
	}
	return nil
}

func (v *Validator) DateOrder(startField string, start time.Time, endField string, end time.Time) {
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		v.Add(endField, "must not be before "+startField)
	}
}

func (v *Validator) Issues() []FieldIssue {
	return slices.Clone(v.issues)
}

// Reject writes a validation_error response when any issue was collected
// and reports whether it did.
func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if len(v.issues) == 0 {
		return false
	}
	api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "payload validation failed",
		map[string]any{"fields": v.issues}, requestID)
	return true
}
