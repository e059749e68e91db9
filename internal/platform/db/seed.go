package db

import (
	"context"
	"fmt"
	"time"

	"paycalc/internal/domain/payroll"
	"paycalc/internal/domain/tax"
)

var seedEffective = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

// Seed loads a demo data set when the database has no employees yet: two
// employees on a standard structure, a three band tax table and a
// performance score for each.
func Seed(ctx context.Context, svc *payroll.Service) error {
	existing, err := svc.ListEmployees(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	employees := []payroll.Employee{
		{FirstName: "John", LastName: "Doe", Email: "john.doe@example.com", Department: "Engineering", Position: "Software Engineer", JoinDate: ptr(time.Date(2022, time.March, 1, 0, 0, 0, 0, time.UTC))},
		{FirstName: "Jane", LastName: "Smith", Email: "jane.smith@example.com", Department: "Marketing", Position: "Marketing Manager", JoinDate: ptr(time.Date(2021, time.September, 15, 0, 0, 0, 0, time.UTC))},
	}
	for i := range employees {
		created, err := svc.CreateEmployee(ctx, employees[i])
		if err != nil {
			return fmt.Errorf("seed employee %s: %w", employees[i].Email, err)
		}
		employees[i] = created
	}

	structure, err := svc.CreateStructure(ctx, payroll.SalaryStructure{
		Name:                  "Standard Employee Structure",
		Description:           "Default structure for full-time employees",
		ApplicableDepartments: []string{"Engineering", "Marketing"},
		EffectiveDate:         seedEffective,
		Components: []payroll.SalaryComponent{
			{Name: "Base Salary", Type: payroll.ComponentFixed, Amount: ptr(5000.0), Taxable: true},
			{Name: "Performance Bonus", Type: payroll.ComponentVariable, Formula: "baseSalary * (performanceScore/100) * 0.15", Taxable: true},
			{Name: "Income Tax", Type: payroll.ComponentDeduction, Formula: "if(grossSalary <= 2000, grossSalary * 0.1, if(grossSalary <= 5000, grossSalary * 0.15, grossSalary * 0.2))"},
		},
	})
	if err != nil {
		return fmt.Errorf("seed structure: %w", err)
	}

	for _, e := range employees {
		if _, err := svc.AssignStructure(ctx, payroll.StructureAssignment{EmployeeID: e.ID, StructureID: structure.ID, EffectiveDate: seedEffective}); err != nil {
			return fmt.Errorf("seed assignment for %d: %w", e.ID, err)
		}
		if err := svc.SetVariable(ctx, e.ID, "performanceScore", 80); err != nil {
			return fmt.Errorf("seed performance score for %d: %w", e.ID, err)
		}
	}

	brackets := []tax.Bracket{
		{Name: "Low Income", Rate: 0.1, ThresholdLower: ptr(0.0), ThresholdUpper: ptr(2000.0)},
		{Name: "Middle Income", Rate: 0.15, ThresholdLower: ptr(2001.0), ThresholdUpper: ptr(5000.0)},
		{Name: "High Income", Rate: 0.2, ThresholdLower: ptr(5001.0)},
	}
	for _, b := range brackets {
		b.EffectiveDate = seedEffective
		if _, err := svc.CreateTaxRate(ctx, b); err != nil {
			return fmt.Errorf("seed tax rate %s: %w", b.Name, err)
		}
	}
	return nil
}
