package payroll

const (
	ComponentFixed     = "fixed"
	ComponentVariable  = "variable"
	ComponentDeduction = "deduction"

	PeriodStatusDraft      = "draft"
	PeriodStatusProcessing = "processing"
	PeriodStatusCompleted  = "completed"

	EntryStatusPending   = "pending"
	EntryStatusProcessed = "processed"
	EntryStatusPaid      = "paid"

	StructureStatusActive   = "active"
	StructureStatusInactive = "inactive"

	EmployeeStatusActive   = "active"
	EmployeeStatusInactive = "inactive"

	// Scope names supplied by the engine itself. They win over external
	// variables of the same name.
	VarBaseSalary  = "baseSalary"
	VarGrossSalary = "grossSalary"

	DefaultTaxLabel = "Income Tax (brackets)"

	JobPayrollRun = "payroll_run"
)
