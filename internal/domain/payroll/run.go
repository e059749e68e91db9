package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	SkipNoAssignment      = "no salary structure assigned"
	SkipInactiveStructure = "assigned salary structure is inactive"
)

type runItem struct {
	employee  Employee
	structure SalaryStructure
}

type runOutcome struct {
	entry   Entry
	details []byte
	failed  *FailedEmployee
}

// RunPeriod calculates every active employee for a period and replaces the
// period's entries with the results. Setup problems (a completed period, a
// malformed tax table, a missing structure) fail the run before anything is
// computed. A formula failure only flags the affected entry.
func (s *Service) RunPeriod(ctx context.Context, periodID int64) (RunSummary, error) {
	period, err := s.Store.GetPeriod(ctx, periodID)
	if err != nil {
		return RunSummary{}, err
	}
	if period.Status == PeriodStatusCompleted {
		return RunSummary{}, ErrPeriodCompleted
	}
	asOf := period.EndDate

	brackets, err := s.ActiveTaxTable(ctx, asOf)
	if err != nil {
		return RunSummary{}, fmt.Errorf("tax table for %s: %w", asOf.Format(time.DateOnly), err)
	}

	employees, err := s.Store.ListEmployees(ctx, EmployeeStatusActive)
	if err != nil {
		return RunSummary{}, err
	}
	assignments, err := s.Store.ListAllAssignments(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	byEmployee := map[int64][]StructureAssignment{}
	for _, a := range assignments {
		byEmployee[a.EmployeeID] = append(byEmployee[a.EmployeeID], a)
	}

	summary := RunSummary{PeriodID: periodID, Entries: []Entry{}}
	structures := map[int64]SalaryStructure{}
	var items []runItem
	for _, e := range employees {
		a, ok := EffectiveAssignment(byEmployee[e.ID], asOf)
		if !ok {
			summary.Skipped = append(summary.Skipped, SkippedEmployee{EmployeeID: e.ID, Reason: SkipNoAssignment})
			continue
		}
		st, ok := structures[a.StructureID]
		if !ok {
			st, err = s.Store.GetStructure(ctx, a.StructureID)
			if err != nil {
				if errors.Is(err, ErrStructureNotFound) {
					return RunSummary{}, fmt.Errorf("employee %d: structure %d: %w", e.ID, a.StructureID, err)
				}
				return RunSummary{}, err
			}
			structures[a.StructureID] = st
		}
		if st.Status != StructureStatusActive {
			summary.Skipped = append(summary.Skipped, SkippedEmployee{EmployeeID: e.ID, Reason: SkipInactiveStructure})
			continue
		}
		items = append(items, runItem{employee: e, structure: st})
	}

	calc := s.Calculator(brackets)
	outcomes := make([]runOutcome, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, item := range items {
		g.Go(func() error {
			out, err := s.calculateEntry(gctx, calc, item)
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RunSummary{}, err
	}

	var entries []Entry
	var plain [][]byte
	for _, out := range outcomes {
		if out.failed != nil {
			summary.Failed = append(summary.Failed, *out.failed)
			continue
		}
		entries = append(entries, out.entry)
		plain = append(plain, out.details)
	}

	saved, err := s.Store.SaveRun(ctx, periodID, entries, s.now().UTC())
	if err != nil {
		return RunSummary{}, err
	}
	for i := range saved {
		saved[i].CalculationDetails = plain[i]
		saved[i].DetailsEncrypted = false
		if saved[i].Flagged {
			summary.FlaggedEntries++
		}
	}
	summary.Entries = saved
	summary.ProcessedEntries = len(saved)

	s.audit(ctx, "payroll_process", periodID, "process", map[string]any{
		"periodId": periodID,
		"entries":  summary.ProcessedEntries,
		"flagged":  summary.FlaggedEntries,
		"skipped":  len(summary.Skipped),
		"failed":   len(summary.Failed),
	})
	s.opts.Logger.Info("payroll run completed",
		"periodId", periodID,
		"processed", summary.ProcessedEntries,
		"flagged", summary.FlaggedEntries,
		"skipped", len(summary.Skipped),
		"failed", len(summary.Failed),
	)
	return summary, nil
}

// calculateEntry computes one employee. A calculation error, which only
// strict mode produces, is reported as a failed employee; store errors
// abort the run.
func (s *Service) calculateEntry(ctx context.Context, calc *Calculator, item runItem) (runOutcome, error) {
	if err := ctx.Err(); err != nil {
		return runOutcome{}, err
	}
	overrides, err := s.Store.ListOverrides(ctx, item.employee.ID)
	if err != nil {
		return runOutcome{}, fmt.Errorf("overrides for employee %d: %w", item.employee.ID, err)
	}
	variables, err := s.Store.ListVariables(ctx, item.employee.ID)
	if err != nil {
		return runOutcome{}, fmt.Errorf("variables for employee %d: %w", item.employee.ID, err)
	}

	start := time.Now()
	result, err := calc.Calculate(item.structure.Components, overrides, variables)
	if s.Metrics != nil {
		s.Metrics.RecordCalculation(time.Since(start), len(result.Failures))
	}
	if err != nil {
		s.opts.Logger.Warn("employee calculation failed", "employeeId", item.employee.ID, "structureId", item.structure.ID, "err", err)
		return runOutcome{failed: &FailedEmployee{EmployeeID: item.employee.ID, Error: err.Error()}}, nil
	}

	entry := Entry{
		EmployeeID:  item.employee.ID,
		GrossAmount: result.GrossAmount,
		NetAmount:   result.NetAmount,
		Deductions:  result.TotalDeductions,
		Flagged:     len(result.Failures) > 0,
		Status:      EntryStatusPending,
	}
	details, err := s.sealDetails(&entry, result)
	if err != nil {
		return runOutcome{}, err
	}
	return runOutcome{entry: entry, details: details}, nil
}
