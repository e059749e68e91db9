package payroll

import (
	"context"
	"time"

	"paycalc/internal/domain/tax"
)

type StoreAPI interface {
	CreateEmployee(ctx context.Context, employee Employee) (int64, error)
	GetEmployee(ctx context.Context, employeeID int64) (Employee, error)
	ListEmployees(ctx context.Context, status string) ([]Employee, error)

	CreateStructure(ctx context.Context, structure SalaryStructure) (int64, error)
	GetStructure(ctx context.Context, structureID int64) (SalaryStructure, error)
	ListStructures(ctx context.Context) ([]SalaryStructure, error)

	CreateAssignment(ctx context.Context, assignment StructureAssignment) (int64, error)
	ListAssignments(ctx context.Context, employeeID int64) ([]StructureAssignment, error)
	ListAllAssignments(ctx context.Context) ([]StructureAssignment, error)

	UpsertOverride(ctx context.Context, override ComponentOverride) error
	ListOverrides(ctx context.Context, employeeID int64) ([]ComponentOverride, error)

	SetVariable(ctx context.Context, employeeID int64, name string, value float64) error
	ListVariables(ctx context.Context, employeeID int64) (map[string]float64, error)

	CreateTaxRate(ctx context.Context, bracket tax.Bracket) (int64, error)
	ListTaxRates(ctx context.Context) ([]tax.Bracket, error)

	CreatePeriod(ctx context.Context, period Period) (int64, error)
	GetPeriod(ctx context.Context, periodID int64) (Period, error)
	ListPeriods(ctx context.Context) ([]Period, error)
	UpdatePeriodStatus(ctx context.Context, periodID int64, status string) error

	// SaveRun replaces the period's entries and marks it processing.
	SaveRun(ctx context.Context, periodID int64, entries []Entry, runDate time.Time) ([]Entry, error)
	ListEntries(ctx context.Context, periodID int64) ([]Entry, error)
	GetEntry(ctx context.Context, entryID int64) (Entry, error)
}
