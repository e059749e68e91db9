package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"paycalc/internal/domain/tax"
	"paycalc/internal/platform/querier"
)

type Store struct {
	DB querier.DB
}

func NewStore(db querier.DB) *Store {
	return &Store{DB: db}
}

func notFound(err, sentinel error) error {
	if errors.Is(err, querier.ErrNoRows) {
		return sentinel
	}
	return err
}

func (s *Store) CreateEmployee(ctx context.Context, employee Employee) (int64, error) {
	var id int64
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO employees (first_name, last_name, email, department, position, join_date, status)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING id
  `, employee.FirstName, employee.LastName, employee.Email, employee.Department, employee.Position, employee.JoinDate, employee.Status).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert employee: %w", err)
	}
	return id, nil
}

func (s *Store) GetEmployee(ctx context.Context, employeeID int64) (Employee, error) {
	var e Employee
	err := s.DB.QueryRow(ctx, `
    SELECT id, first_name, last_name, email, department, position, join_date, status
    FROM employees
    WHERE id = $1
  `, employeeID).Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.Department, &e.Position, &e.JoinDate, &e.Status)
	if err != nil {
		return Employee{}, notFound(err, ErrEmployeeNotFound)
	}
	return e, nil
}

// ListEmployees returns employees ordered by id. An empty status lists all.
func (s *Store) ListEmployees(ctx context.Context, status string) ([]Employee, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, first_name, last_name, email, department, position, join_date, status
    FROM employees
    WHERE $1 = '' OR status = $1
    ORDER BY id
  `, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.Department, &e.Position, &e.JoinDate, &e.Status); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CreateStructure(ctx context.Context, structure SalaryStructure) (int64, error) {
	departments, err := json.Marshal(nonNilStrings(structure.ApplicableDepartments))
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.DB.InTx(ctx, func(q querier.Querier) error {
		if err := q.QueryRow(ctx, `
      INSERT INTO salary_structures (name, description, applicable_departments, effective_date, status)
      VALUES ($1,$2,$3,$4,$5)
      RETURNING id
    `, structure.Name, structure.Description, string(departments), structure.EffectiveDate, structure.Status).Scan(&id); err != nil {
			return fmt.Errorf("insert salary structure: %w", err)
		}
		for i, comp := range structure.Components {
			if _, err := q.Exec(ctx, `
        INSERT INTO salary_components (structure_id, sort_order, name, type, amount, formula, taxable, description)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
      `, id, i, comp.Name, comp.Type, comp.Amount, comp.Formula, comp.Taxable, comp.Description); err != nil {
				return fmt.Errorf("insert component %q: %w", comp.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetStructure loads a structure with its components in evaluation order.
func (s *Store) GetStructure(ctx context.Context, structureID int64) (SalaryStructure, error) {
	var st SalaryStructure
	var departments string
	err := s.DB.QueryRow(ctx, `
    SELECT id, name, description, applicable_departments, effective_date, status
    FROM salary_structures
    WHERE id = $1
  `, structureID).Scan(&st.ID, &st.Name, &st.Description, &departments, &st.EffectiveDate, &st.Status)
	if err != nil {
		return SalaryStructure{}, notFound(err, ErrStructureNotFound)
	}
	if err := json.Unmarshal([]byte(departments), &st.ApplicableDepartments); err != nil {
		return SalaryStructure{}, fmt.Errorf("decode departments of structure %d: %w", structureID, err)
	}

	rows, err := s.DB.Query(ctx, `
    SELECT id, structure_id, name, type, amount, formula, taxable, description
    FROM salary_components
    WHERE structure_id = $1
    ORDER BY sort_order, id
  `, structureID)
	if err != nil {
		return SalaryStructure{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var c SalaryComponent
		if err := rows.Scan(&c.ID, &c.StructureID, &c.Name, &c.Type, &c.Amount, &c.Formula, &c.Taxable, &c.Description); err != nil {
			return SalaryStructure{}, err
		}
		st.Components = append(st.Components, c)
	}
	return st, rows.Err()
}

func (s *Store) ListStructures(ctx context.Context) ([]SalaryStructure, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, description, applicable_departments, effective_date, status
    FROM salary_structures
    ORDER BY name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SalaryStructure
	for rows.Next() {
		var st SalaryStructure
		var departments string
		if err := rows.Scan(&st.ID, &st.Name, &st.Description, &departments, &st.EffectiveDate, &st.Status); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(departments), &st.ApplicableDepartments); err != nil {
			return nil, fmt.Errorf("decode departments of structure %d: %w", st.ID, err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) CreateAssignment(ctx context.Context, a StructureAssignment) (int64, error) {
	var id int64
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO employee_salary_structures (employee_id, structure_id, effective_date, end_date)
    VALUES ($1,$2,$3,$4)
    RETURNING id
  `, a.EmployeeID, a.StructureID, a.EffectiveDate, a.EndDate).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert assignment: %w", err)
	}
	return id, nil
}

func (s *Store) ListAssignments(ctx context.Context, employeeID int64) ([]StructureAssignment, error) {
	return s.queryAssignments(ctx, `
    SELECT id, employee_id, structure_id, effective_date, end_date
    FROM employee_salary_structures
    WHERE employee_id = $1
    ORDER BY effective_date, id
  `, employeeID)
}

func (s *Store) ListAllAssignments(ctx context.Context) ([]StructureAssignment, error) {
	return s.queryAssignments(ctx, `
    SELECT id, employee_id, structure_id, effective_date, end_date
    FROM employee_salary_structures
    ORDER BY employee_id, effective_date, id
  `)
}

func (s *Store) queryAssignments(ctx context.Context, query string, args ...any) ([]StructureAssignment, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StructureAssignment
	for rows.Next() {
		var a StructureAssignment
		if err := rows.Scan(&a.ID, &a.EmployeeID, &a.StructureID, &a.EffectiveDate, &a.EndDate); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpsertOverride(ctx context.Context, o ComponentOverride) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO employee_component_overrides (employee_id, component_id, amount, formula)
    VALUES ($1,$2,$3,$4)
    ON CONFLICT (employee_id, component_id)
    DO UPDATE SET amount = excluded.amount, formula = excluded.formula
  `, o.EmployeeID, o.ComponentID, o.Amount, o.Formula)
	return err
}

func (s *Store) ListOverrides(ctx context.Context, employeeID int64) ([]ComponentOverride, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT employee_id, component_id, amount, formula
    FROM employee_component_overrides
    WHERE employee_id = $1
    ORDER BY component_id
  `, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ComponentOverride
	for rows.Next() {
		var o ComponentOverride
		if err := rows.Scan(&o.EmployeeID, &o.ComponentID, &o.Amount, &o.Formula); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) SetVariable(ctx context.Context, employeeID int64, name string, value float64) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO employee_variables (employee_id, name, value)
    VALUES ($1,$2,$3)
    ON CONFLICT (employee_id, name)
    DO UPDATE SET value = excluded.value
  `, employeeID, name, value)
	return err
}

func (s *Store) ListVariables(ctx context.Context, employeeID int64) (map[string]float64, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT name, value
    FROM employee_variables
    WHERE employee_id = $1
  `, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]float64{}
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}

func (s *Store) CreateTaxRate(ctx context.Context, b tax.Bracket) (int64, error) {
	var id int64
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO tax_rates (name, description, rate, threshold_lower, threshold_upper, effective_date, end_date)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING id
  `, b.Name, b.Description, b.Rate, b.ThresholdLower, b.ThresholdUpper, b.EffectiveDate, b.EndDate).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert tax rate: %w", err)
	}
	return id, nil
}

func (s *Store) ListTaxRates(ctx context.Context) ([]tax.Bracket, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, description, rate, threshold_lower, threshold_upper, effective_date, end_date
    FROM tax_rates
    ORDER BY id
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tax.Bracket
	for rows.Next() {
		var b tax.Bracket
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Rate, &b.ThresholdLower, &b.ThresholdUpper, &b.EffectiveDate, &b.EndDate); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) CreatePeriod(ctx context.Context, p Period) (int64, error) {
	var id int64
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO payroll_periods (name, start_date, end_date, pay_date, status)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id
  `, p.Name, p.StartDate, p.EndDate, p.PayDate, p.Status).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert period: %w", err)
	}
	return id, nil
}

func (s *Store) GetPeriod(ctx context.Context, periodID int64) (Period, error) {
	var p Period
	err := s.DB.QueryRow(ctx, `
    SELECT id, name, start_date, end_date, pay_date, status, run_date
    FROM payroll_periods
    WHERE id = $1
  `, periodID).Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.PayDate, &p.Status, &p.RunDate)
	if err != nil {
		return Period{}, notFound(err, ErrPeriodNotFound)
	}
	return p, nil
}

func (s *Store) ListPeriods(ctx context.Context) ([]Period, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, start_date, end_date, pay_date, status, run_date
    FROM payroll_periods
    ORDER BY start_date DESC, id DESC
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Period
	for rows.Next() {
		var p Period
		if err := rows.Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.PayDate, &p.Status, &p.RunDate); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UpdatePeriodStatus(ctx context.Context, periodID int64, status string) error {
	n, err := s.DB.Exec(ctx, "UPDATE payroll_periods SET status = $1 WHERE id = $2", status, periodID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPeriodNotFound
	}
	return nil
}

func (s *Store) SaveRun(ctx context.Context, periodID int64, entries []Entry, runDate time.Time) ([]Entry, error) {
	saved := make([]Entry, 0, len(entries))
	err := s.DB.InTx(ctx, func(q querier.Querier) error {
		var status string
		if err := q.QueryRow(ctx, "SELECT status FROM payroll_periods WHERE id = $1", periodID).Scan(&status); err != nil {
			return notFound(err, ErrPeriodNotFound)
		}
		if status == PeriodStatusCompleted {
			return ErrPeriodCompleted
		}

		if _, err := q.Exec(ctx, "DELETE FROM payroll_entries WHERE period_id = $1", periodID); err != nil {
			return fmt.Errorf("clear entries: %w", err)
		}
		for _, e := range entries {
			if err := q.QueryRow(ctx, `
        INSERT INTO payroll_entries (period_id, employee_id, gross_amount, net_amount, deductions, calculation_details, details_encrypted, flagged, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id
      `, periodID, e.EmployeeID, e.GrossAmount, e.NetAmount, e.Deductions, []byte(e.CalculationDetails), e.DetailsEncrypted, e.Flagged, e.Status).Scan(&e.ID); err != nil {
				return fmt.Errorf("insert entry for employee %d: %w", e.EmployeeID, err)
			}
			e.PeriodID = periodID
			saved = append(saved, e)
		}

		if _, err := q.Exec(ctx, `
      UPDATE payroll_periods SET status = $1, run_date = $2 WHERE id = $3
    `, PeriodStatusProcessing, runDate, periodID); err != nil {
			return fmt.Errorf("update period status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

const entryColumns = `id, period_id, employee_id, gross_amount, net_amount, deductions, calculation_details, details_encrypted, flagged, status`

func scanEntry(row querier.Row) (Entry, error) {
	var e Entry
	var details []byte
	if err := row.Scan(&e.ID, &e.PeriodID, &e.EmployeeID, &e.GrossAmount, &e.NetAmount, &e.Deductions, &details, &e.DetailsEncrypted, &e.Flagged, &e.Status); err != nil {
		return Entry{}, err
	}
	e.CalculationDetails = details
	return e, nil
}

func (s *Store) ListEntries(ctx context.Context, periodID int64) ([]Entry, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+entryColumns+" FROM payroll_entries WHERE period_id = $1 ORDER BY employee_id", periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) GetEntry(ctx context.Context, entryID int64) (Entry, error) {
	e, err := scanEntry(s.DB.QueryRow(ctx, "SELECT "+entryColumns+" FROM payroll_entries WHERE id = $1", entryID))
	if err != nil {
		return Entry{}, notFound(err, ErrEntryNotFound)
	}
	return e, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
