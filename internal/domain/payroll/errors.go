package payroll

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPeriodNotFound    = errors.New("payroll period not found")
	ErrPeriodCompleted   = errors.New("payroll period is already completed")
	ErrStructureNotFound = errors.New("salary structure not found")
	ErrEmployeeNotFound  = errors.New("employee not found")
	ErrEntryNotFound     = errors.New("payroll entry not found")
	ErrComponentNotFound = errors.New("salary component not found")
	ErrMissingAmount     = errors.New("fixed component has no amount")
	ErrMissingFormula    = errors.New("formula component has no formula")
	ErrInvalidStructure  = errors.New("invalid salary structure")
	ErrInvalidOverride   = errors.New("invalid component override")
	ErrInvalidPeriod     = errors.New("invalid payroll period")
	ErrInvalidAssignment = errors.New("invalid structure assignment")
	ErrInvalidEmployee   = errors.New("invalid employee")
	ErrInvalidVariable   = errors.New("invalid employee variable")
	ErrInvalidTaxRate    = errors.New("invalid tax rate")
)

type MissingAmountError struct {
	ComponentID int64
	Name        string
}

func (e *MissingAmountError) Error() string {
	return fmt.Sprintf("component %d (%s): %s", e.ComponentID, e.Name, ErrMissingAmount)
}

func (e *MissingAmountError) Unwrap() error { return ErrMissingAmount }

type MissingFormulaError struct {
	ComponentID int64
	Name        string
	Type        string
}

func (e *MissingFormulaError) Error() string {
	return fmt.Sprintf("%s component %d (%s): %s", e.Type, e.ComponentID, e.Name, ErrMissingFormula)
}

func (e *MissingFormulaError) Unwrap() error { return ErrMissingFormula }

// Issue is one problem found while validating a structure or override.
type Issue struct {
	ComponentID int64  `json:"componentId,omitempty"`
	Component   string `json:"component,omitempty"`
	Field       string `json:"field"`
	Message     string `json:"message"`
}

// ValidationError collects every issue so callers can report them together.
// Kind is ErrInvalidStructure or ErrInvalidOverride.
type ValidationError struct {
	Kind   error
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		if issue.Component != "" {
			parts = append(parts, fmt.Sprintf("%s.%s: %s", issue.Component, issue.Field, issue.Message))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	return fmt.Sprintf("%s: %s", e.Kind, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return e.Kind }
