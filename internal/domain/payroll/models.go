package payroll

import (
	"encoding/json"
	"time"
)

type SalaryComponent struct {
	ID          int64    `json:"id" yaml:"id"`
	StructureID int64    `json:"structureId,omitempty" yaml:"structureId,omitempty"`
	Name        string   `json:"name" yaml:"name"`
	Type        string   `json:"type" yaml:"type"`
	Amount      *float64 `json:"amount,omitempty" yaml:"amount,omitempty"`
	Formula     string   `json:"formula,omitempty" yaml:"formula,omitempty"`
	Taxable     bool     `json:"taxable" yaml:"taxable"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

type ComponentOverride struct {
	EmployeeID  int64    `json:"employeeId,omitempty" yaml:"employeeId,omitempty"`
	ComponentID int64    `json:"componentId" yaml:"componentId"`
	Amount      *float64 `json:"amount,omitempty" yaml:"amount,omitempty"`
	Formula     string   `json:"formula,omitempty" yaml:"formula,omitempty"`
}

// ComponentLine is an earning in a CalculationResult. Fixed lines carry
// Amount, variable lines carry CalculatedAmount.
type ComponentLine struct {
	ID               int64    `json:"id"`
	Name             string   `json:"name"`
	Type             string   `json:"type"`
	Amount           *float64 `json:"amount,omitempty"`
	CalculatedAmount *float64 `json:"calculatedAmount,omitempty"`
	Formula          string   `json:"formula,omitempty"`
	Taxable          bool     `json:"taxable"`
	Error            string   `json:"error,omitempty"`
}

func (l ComponentLine) Value() float64 {
	switch {
	case l.Amount != nil:
		return *l.Amount
	case l.CalculatedAmount != nil:
		return *l.CalculatedAmount
	}
	return 0
}

type DeductionLine struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	CalculatedAmount float64 `json:"calculatedAmount"`
	Formula          string  `json:"formula,omitempty"`
	Error            string  `json:"error,omitempty"`
}

// LineFailure records a formula that failed and was booked at zero. Such
// lines need manual review before the period is paid.
type LineFailure struct {
	ComponentID int64  `json:"componentId"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Formula     string `json:"formula"`
	Error       string `json:"error"`
}

type CalculationResult struct {
	Components      []ComponentLine `json:"components"`
	Deductions      []DeductionLine `json:"deductions"`
	GrossAmount     float64         `json:"grossAmount"`
	NetAmount       float64         `json:"netAmount"`
	TotalDeductions float64         `json:"totalDeductions"`
	TaxableAmount   float64         `json:"taxableAmount"`
	Failures        []LineFailure   `json:"failures,omitempty"`
}

type SalaryStructure struct {
	ID                    int64             `json:"id"`
	Name                  string            `json:"name"`
	Description           string            `json:"description,omitempty"`
	ApplicableDepartments []string          `json:"applicableDepartments,omitempty"`
	EffectiveDate         time.Time         `json:"effectiveDate"`
	Status                string            `json:"status"`
	Components            []SalaryComponent `json:"components,omitempty"`
}

type Employee struct {
	ID         int64      `json:"id"`
	FirstName  string     `json:"firstName"`
	LastName   string     `json:"lastName"`
	Email      string     `json:"email"`
	Department string     `json:"department"`
	Position   string     `json:"position,omitempty"`
	JoinDate   *time.Time `json:"joinDate,omitempty"`
	Status     string     `json:"status"`
}

type StructureAssignment struct {
	ID            int64      `json:"id"`
	EmployeeID    int64      `json:"employeeId"`
	StructureID   int64      `json:"structureId"`
	EffectiveDate time.Time  `json:"effectiveDate"`
	EndDate       *time.Time `json:"endDate,omitempty"`
}

type Period struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	StartDate time.Time  `json:"startDate"`
	EndDate   time.Time  `json:"endDate"`
	PayDate   time.Time  `json:"payDate"`
	Status    string     `json:"status"`
	RunDate   *time.Time `json:"runDate,omitempty"`
}

// Entry is one employee's result for a period. CalculationDetails holds the
// CalculationResult as JSON; in storage it may be sealed, see
// DetailsEncrypted.
type Entry struct {
	ID                 int64           `json:"id"`
	PeriodID           int64           `json:"periodId"`
	EmployeeID         int64           `json:"employeeId"`
	GrossAmount        float64         `json:"grossAmount"`
	NetAmount          float64         `json:"netAmount"`
	Deductions         float64         `json:"deductions"`
	CalculationDetails json.RawMessage `json:"calculationDetails"`
	DetailsEncrypted   bool            `json:"-"`
	Flagged            bool            `json:"flagged"`
	Status             string          `json:"status"`
}

type SkippedEmployee struct {
	EmployeeID int64  `json:"employeeId"`
	Reason     string `json:"reason"`
}

type FailedEmployee struct {
	EmployeeID int64  `json:"employeeId"`
	Error      string `json:"error"`
}

type RunSummary struct {
	PeriodID         int64             `json:"periodId"`
	ProcessedEntries int               `json:"processedEntries"`
	FlaggedEntries   int               `json:"flaggedEntries"`
	Skipped          []SkippedEmployee `json:"skipped,omitempty"`
	Failed           []FailedEmployee  `json:"failed,omitempty"`
	Entries          []Entry           `json:"entries"`
}
