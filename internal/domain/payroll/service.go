package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"paycalc/internal/domain/tax"
)

// Sealer encrypts calculation details at rest.
type Sealer interface {
	Configured() bool
	Encrypt(plain []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

type Auditor interface {
	Record(ctx context.Context, entityType string, entityID int64, action string, details any) error
}

type Recorder interface {
	RecordCalculation(duration time.Duration, failures int)
}

type ServiceOptions struct {
	Workers             int
	StrictMissingAmount bool
	// ApplyBracketTax adds the active tax table as a deduction on every
	// entry. Structures usually carry their own tax formula, so it is off
	// by default.
	ApplyBracketTax bool
	TaxLabel        string
	Logger          *slog.Logger
}

type Service struct {
	Store   StoreAPI
	Crypto  Sealer
	Audit   Auditor
	Metrics Recorder

	opts ServiceOptions
	now  func() time.Time
}

func NewService(store StoreAPI, opts ServiceOptions) *Service {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.TaxLabel == "" {
		opts.TaxLabel = DefaultTaxLabel
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{Store: store, opts: opts, now: time.Now}
}

func (s *Service) Options() ServiceOptions {
	return s.opts
}

// Calculator returns a calculator configured like the one used for runs,
// with the given tax table.
func (s *Service) Calculator(brackets []tax.Bracket) *Calculator {
	opts := Options{
		StrictMissingAmount: s.opts.StrictMissingAmount,
		TaxLabel:            s.opts.TaxLabel,
		Logger:              s.opts.Logger,
	}
	if s.opts.ApplyBracketTax {
		opts.TaxBrackets = brackets
	}
	return NewCalculator(opts)
}

func (s *Service) audit(ctx context.Context, entityType string, entityID int64, action string, details any) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Record(ctx, entityType, entityID, action, details); err != nil {
		s.opts.Logger.Warn("audit record failed", "entityType", entityType, "entityId", entityID, "action", action, "err", err)
	}
}

func (s *Service) CreateEmployee(ctx context.Context, e Employee) (Employee, error) {
	e.FirstName = strings.TrimSpace(e.FirstName)
	e.LastName = strings.TrimSpace(e.LastName)
	e.Email = strings.TrimSpace(e.Email)
	e.Department = strings.TrimSpace(e.Department)
	switch {
	case e.FirstName == "" || e.LastName == "":
		return Employee{}, fmt.Errorf("%w: first and last name are required", ErrInvalidEmployee)
	case !strings.Contains(e.Email, "@"):
		return Employee{}, fmt.Errorf("%w: email is invalid", ErrInvalidEmployee)
	case e.Department == "":
		return Employee{}, fmt.Errorf("%w: department is required", ErrInvalidEmployee)
	}
	if e.Status == "" {
		e.Status = EmployeeStatusActive
	}
	if e.Status != EmployeeStatusActive && e.Status != EmployeeStatusInactive {
		return Employee{}, fmt.Errorf("%w: unknown status %q", ErrInvalidEmployee, e.Status)
	}
	if e.JoinDate != nil {
		d := dateOnly(*e.JoinDate)
		e.JoinDate = &d
	}

	id, err := s.Store.CreateEmployee(ctx, e)
	if err != nil {
		return Employee{}, err
	}
	e.ID = id
	s.audit(ctx, "employee", id, "create", e)
	return e, nil
}

func (s *Service) ListEmployees(ctx context.Context) ([]Employee, error) {
	return s.Store.ListEmployees(ctx, "")
}

// CreateStructure validates and stores a structure with its components.
// Component order is kept; it is the evaluation order.
func (s *Service) CreateStructure(ctx context.Context, st SalaryStructure) (SalaryStructure, error) {
	st.Name = strings.TrimSpace(st.Name)
	if st.Name == "" {
		return SalaryStructure{}, &ValidationError{Kind: ErrInvalidStructure, Issues: []Issue{{Field: "name", Message: "is required"}}}
	}
	if st.EffectiveDate.IsZero() {
		return SalaryStructure{}, &ValidationError{Kind: ErrInvalidStructure, Issues: []Issue{{Field: "effectiveDate", Message: "is required"}}}
	}
	if st.Status == "" {
		st.Status = StructureStatusActive
	}
	if st.Status != StructureStatusActive && st.Status != StructureStatusInactive {
		return SalaryStructure{}, &ValidationError{Kind: ErrInvalidStructure, Issues: []Issue{{Field: "status", Message: fmt.Sprintf("unknown status %q", st.Status)}}}
	}
	if err := ValidateStructure(st.Components); err != nil {
		return SalaryStructure{}, err
	}
	st.EffectiveDate = dateOnly(st.EffectiveDate)

	id, err := s.Store.CreateStructure(ctx, st)
	if err != nil {
		return SalaryStructure{}, err
	}
	created, err := s.Store.GetStructure(ctx, id)
	if err != nil {
		return SalaryStructure{}, err
	}
	s.audit(ctx, "salary_structure", id, "create", map[string]any{"name": created.Name, "components": len(created.Components)})
	return created, nil
}

func (s *Service) GetStructure(ctx context.Context, structureID int64) (SalaryStructure, error) {
	return s.Store.GetStructure(ctx, structureID)
}

func (s *Service) ListStructures(ctx context.Context) ([]SalaryStructure, error) {
	return s.Store.ListStructures(ctx)
}

func (s *Service) AssignStructure(ctx context.Context, a StructureAssignment) (StructureAssignment, error) {
	if a.EffectiveDate.IsZero() {
		return StructureAssignment{}, fmt.Errorf("%w: effectiveDate is required", ErrInvalidAssignment)
	}
	a.EffectiveDate = dateOnly(a.EffectiveDate)
	if a.EndDate != nil {
		end := dateOnly(*a.EndDate)
		if end.Before(a.EffectiveDate) {
			return StructureAssignment{}, fmt.Errorf("%w: endDate is before effectiveDate", ErrInvalidAssignment)
		}
		a.EndDate = &end
	}
	if _, err := s.Store.GetEmployee(ctx, a.EmployeeID); err != nil {
		return StructureAssignment{}, err
	}
	if _, err := s.Store.GetStructure(ctx, a.StructureID); err != nil {
		return StructureAssignment{}, err
	}

	id, err := s.Store.CreateAssignment(ctx, a)
	if err != nil {
		return StructureAssignment{}, err
	}
	a.ID = id
	s.audit(ctx, "employee", a.EmployeeID, "assign_structure", a)
	return a, nil
}

func (s *Service) ListAssignments(ctx context.Context, employeeID int64) ([]StructureAssignment, error) {
	return s.Store.ListAssignments(ctx, employeeID)
}

// SetOverride validates an override against the structures the employee
// is assigned to and saves it, replacing any earlier override.
func (s *Service) SetOverride(ctx context.Context, o ComponentOverride) error {
	if _, err := s.Store.GetEmployee(ctx, o.EmployeeID); err != nil {
		return err
	}
	assignments, err := s.Store.ListAssignments(ctx, o.EmployeeID)
	if err != nil {
		return err
	}

	var components []SalaryComponent
	seen := map[int64]bool{}
	for _, a := range assignments {
		if seen[a.StructureID] {
			continue
		}
		seen[a.StructureID] = true
		st, err := s.Store.GetStructure(ctx, a.StructureID)
		if err != nil {
			return err
		}
		components = append(components, st.Components...)
	}

	if err := ValidateOverrides(components, []ComponentOverride{o}); err != nil {
		return err
	}
	o.Formula = strings.TrimSpace(o.Formula)
	if err := s.Store.UpsertOverride(ctx, o); err != nil {
		return err
	}
	s.audit(ctx, "employee", o.EmployeeID, "override_component", o)
	return nil
}

func (s *Service) ListOverrides(ctx context.Context, employeeID int64) ([]ComponentOverride, error) {
	return s.Store.ListOverrides(ctx, employeeID)
}

var variableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SetVariable stores an externally sourced value, such as a performance
// score, that formulas can read by name.
func (s *Service) SetVariable(ctx context.Context, employeeID int64, name string, value float64) error {
	if !variableName.MatchString(name) {
		return fmt.Errorf("%w: %q is not a valid identifier", ErrInvalidVariable, name)
	}
	if name == VarBaseSalary || name == VarGrossSalary {
		return fmt.Errorf("%w: %q is computed by the engine", ErrInvalidVariable, name)
	}
	if _, err := s.Store.GetEmployee(ctx, employeeID); err != nil {
		return err
	}
	if err := s.Store.SetVariable(ctx, employeeID, name, value); err != nil {
		return err
	}
	s.audit(ctx, "employee", employeeID, "set_variable", map[string]any{"name": name, "value": value})
	return nil
}

func (s *Service) ListVariables(ctx context.Context, employeeID int64) (map[string]float64, error) {
	return s.Store.ListVariables(ctx, employeeID)
}

func (s *Service) CreateTaxRate(ctx context.Context, b tax.Bracket) (tax.Bracket, error) {
	if b.EffectiveDate.IsZero() {
		return tax.Bracket{}, fmt.Errorf("%w: effectiveDate is required", ErrInvalidTaxRate)
	}
	b.EffectiveDate = dateOnly(b.EffectiveDate)
	if b.EndDate != nil {
		end := dateOnly(*b.EndDate)
		b.EndDate = &end
	}
	if err := tax.ValidateBracket(b); err != nil {
		return tax.Bracket{}, fmt.Errorf("%w: %w", ErrInvalidTaxRate, err)
	}
	id, err := s.Store.CreateTaxRate(ctx, b)
	if err != nil {
		return tax.Bracket{}, err
	}
	b.ID = id
	s.audit(ctx, "tax_rate", id, "create", b)
	return b, nil
}

func (s *Service) ListTaxRates(ctx context.Context) ([]tax.Bracket, error) {
	return s.Store.ListTaxRates(ctx)
}

// ActiveTaxTable returns the brackets in effect on date and checks that they
// form a usable table.
func (s *Service) ActiveTaxTable(ctx context.Context, date time.Time) ([]tax.Bracket, error) {
	rates, err := s.Store.ListTaxRates(ctx)
	if err != nil {
		return nil, err
	}
	active := tax.ActiveOn(rates, dateOnly(date))
	if err := tax.Validate(active); err != nil {
		return nil, err
	}
	return active, nil
}

func (s *Service) CreatePeriod(ctx context.Context, p Period) (Period, error) {
	p.Name = strings.TrimSpace(p.Name)
	switch {
	case p.Name == "":
		return Period{}, fmt.Errorf("%w: name is required", ErrInvalidPeriod)
	case p.StartDate.IsZero() || p.EndDate.IsZero() || p.PayDate.IsZero():
		return Period{}, fmt.Errorf("%w: startDate, endDate and payDate are required", ErrInvalidPeriod)
	case p.EndDate.Before(p.StartDate):
		return Period{}, fmt.Errorf("%w: endDate is before startDate", ErrInvalidPeriod)
	}
	p.StartDate = dateOnly(p.StartDate)
	p.EndDate = dateOnly(p.EndDate)
	p.PayDate = dateOnly(p.PayDate)
	p.Status = PeriodStatusDraft
	p.RunDate = nil

	id, err := s.Store.CreatePeriod(ctx, p)
	if err != nil {
		return Period{}, err
	}
	p.ID = id
	s.audit(ctx, "payroll_period", id, "create", p)
	return p, nil
}

func (s *Service) GetPeriod(ctx context.Context, periodID int64) (Period, error) {
	return s.Store.GetPeriod(ctx, periodID)
}

func (s *Service) ListPeriods(ctx context.Context) ([]Period, error) {
	return s.Store.ListPeriods(ctx)
}

// CompletePeriod closes a processed period. Completed periods cannot be
// run again.
func (s *Service) CompletePeriod(ctx context.Context, periodID int64) (Period, error) {
	p, err := s.Store.GetPeriod(ctx, periodID)
	if err != nil {
		return Period{}, err
	}
	switch p.Status {
	case PeriodStatusCompleted:
		return Period{}, ErrPeriodCompleted
	case PeriodStatusDraft:
		return Period{}, fmt.Errorf("%w: period has not been run", ErrInvalidPeriod)
	}
	if err := s.Store.UpdatePeriodStatus(ctx, periodID, PeriodStatusCompleted); err != nil {
		return Period{}, err
	}
	p.Status = PeriodStatusCompleted
	s.audit(ctx, "payroll_period", periodID, "complete", nil)
	return p, nil
}

func (s *Service) ListEntries(ctx context.Context, periodID int64) ([]Entry, error) {
	if _, err := s.Store.GetPeriod(ctx, periodID); err != nil {
		return nil, err
	}
	entries, err := s.Store.ListEntries(ctx, periodID)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if err := s.openDetails(&entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (s *Service) GetEntry(ctx context.Context, entryID int64) (Entry, error) {
	entry, err := s.Store.GetEntry(ctx, entryID)
	if err != nil {
		return Entry{}, err
	}
	if err := s.openDetails(&entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// sealDetails stores result on entry, encrypted when a key is configured,
// and returns the plain JSON.
func (s *Service) sealDetails(entry *Entry, result CalculationResult) ([]byte, error) {
	details, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal calculation details: %w", err)
	}
	entry.CalculationDetails = details
	if s.Crypto == nil || !s.Crypto.Configured() {
		return details, nil
	}
	sealed, err := s.Crypto.Encrypt(details)
	if err != nil {
		return nil, fmt.Errorf("encrypt calculation details: %w", err)
	}
	entry.CalculationDetails = sealed
	entry.DetailsEncrypted = true
	return details, nil
}

func (s *Service) openDetails(entry *Entry) error {
	if !entry.DetailsEncrypted {
		return nil
	}
	if s.Crypto == nil || !s.Crypto.Configured() {
		return errors.New("calculation details are encrypted but no key is configured")
	}
	plain, err := s.Crypto.Decrypt(entry.CalculationDetails)
	if err != nil {
		return fmt.Errorf("decrypt details of entry %d: %w", entry.ID, err)
	}
	entry.CalculationDetails = plain
	entry.DetailsEncrypted = false
	return nil
}
