package payroll

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"paycalc/internal/domain/tax"
)

func amt(v float64) *float64 { return &v }

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func standardComponents() []SalaryComponent {
	return []SalaryComponent{
		{ID: 1, Name: "Base Salary", Type: ComponentFixed, Amount: amt(5000), Taxable: true},
		{ID: 2, Name: "Performance Bonus", Type: ComponentVariable, Formula: "baseSalary * (performanceScore/100) * 0.15", Taxable: true},
		{ID: 3, Name: "Income Tax", Type: ComponentDeduction, Formula: "grossSalary * 0.15"},
	}
}

func TestCalculateSalaryEndToEnd(t *testing.T) {
	result, err := CalculateSalary(standardComponents(), nil, map[string]float64{"performanceScore": 80})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	want := CalculationResult{
		Components: []ComponentLine{
			{ID: 1, Name: "Base Salary", Type: ComponentFixed, Amount: amt(5000), Taxable: true},
			{ID: 2, Name: "Performance Bonus", Type: ComponentVariable, CalculatedAmount: amt(600), Formula: "baseSalary * (performanceScore/100) * 0.15", Taxable: true},
		},
		Deductions: []DeductionLine{
			{ID: 3, Name: "Income Tax", CalculatedAmount: 840, Formula: "grossSalary * 0.15"},
		},
		GrossAmount:     5600,
		NetAmount:       4760,
		TotalDeductions: 840,
		TaxableAmount:   5600,
	}
	approx := cmp.Comparer(func(a, b float64) bool { return math.Abs(a-b) < 1e-9 })
	if diff := cmp.Diff(want, result, approx); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestCalculateSalaryInvariants(t *testing.T) {
	components := append(standardComponents(),
		SalaryComponent{ID: 4, Name: "Housing", Type: ComponentFixed, Amount: amt(750.5)},
		SalaryComponent{ID: 5, Name: "Pension", Type: ComponentDeduction, Formula: "baseSalary * 0.05"},
	)
	result, err := CalculateSalary(components, nil, map[string]float64{"performanceScore": 95})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	var earned float64
	for _, line := range result.Components {
		earned += line.Value()
	}
	if math.Abs(earned-result.GrossAmount) > 1e-9 {
		t.Fatalf("expected gross %v to equal sum of lines %v", result.GrossAmount, earned)
	}
	if math.Abs(result.NetAmount-(result.GrossAmount-result.TotalDeductions)) > 1e-9 {
		t.Fatalf("expected net %v to equal gross - deductions", result.NetAmount)
	}
}

func TestCalculateSalaryIsIdempotent(t *testing.T) {
	components := standardComponents()
	vars := map[string]float64{"performanceScore": 72}

	first, err := CalculateSalary(components, nil, vars)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := CalculateSalary(components, nil, vars)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("results differ:\n%s", diff)
	}
	if len(vars) != 1 {
		t.Fatalf("expected variables untouched, got %v", vars)
	}
}

func TestOverrideAmountTakesPrecedence(t *testing.T) {
	overrides := []ComponentOverride{
		{ComponentID: 1, Amount: amt(6000)},
		{ComponentID: 1, Amount: amt(9999)},
	}
	result, err := CalculateSalary(standardComponents(), overrides, map[string]float64{"performanceScore": 80})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if got := result.Components[0].Value(); got != 6000 {
		t.Fatalf("expected overridden base 6000, got %v", got)
	}
	// bonus follows the overridden base: 6000 * 0.8 * 0.15
	if got := result.Components[1].Value(); math.Abs(got-720) > 1e-9 {
		t.Fatalf("expected bonus 720, got %v", got)
	}
}

func TestOverrideFormula(t *testing.T) {
	overrides := []ComponentOverride{
		{ComponentID: 2, Formula: "250"},
		{ComponentID: 3, Formula: "   "},
	}
	result, err := CalculateSalary(standardComponents(), overrides, map[string]float64{"performanceScore": 80})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if result.GrossAmount != 5250 {
		t.Fatalf("expected gross 5250, got %v", result.GrossAmount)
	}
	if result.Deductions[0].Formula != "grossSalary * 0.15" {
		t.Fatalf("expected blank override formula ignored, got %q", result.Deductions[0].Formula)
	}
}

func TestMissingAmountLenientAndStrict(t *testing.T) {
	components := []SalaryComponent{
		{ID: 1, Name: "Base Salary", Type: ComponentFixed, Amount: amt(4000)},
		{ID: 2, Name: "Allowance", Type: ComponentFixed},
	}

	result, err := CalculateSalary(components, nil, nil)
	if err != nil {
		t.Fatalf("lenient: %v", err)
	}
	if result.GrossAmount != 4000 || len(result.Components) != 1 {
		t.Fatalf("expected allowance skipped, got %+v", result)
	}

	_, err = NewCalculator(Options{StrictMissingAmount: true}).Calculate(components, nil, nil)
	var missing *MissingAmountError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingAmountError, got %v", err)
	}
	if missing.ComponentID != 2 || !errors.Is(err, ErrMissingAmount) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestStrictModeRequiresFormula(t *testing.T) {
	components := []SalaryComponent{
		{ID: 1, Name: "Base Salary", Type: ComponentFixed, Amount: amt(4000)},
		{ID: 2, Name: "Bonus", Type: ComponentVariable},
	}
	_, err := NewCalculator(Options{StrictMissingAmount: true}).Calculate(components, nil, nil)
	if !errors.Is(err, ErrMissingFormula) {
		t.Fatalf("expected ErrMissingFormula, got %v", err)
	}

	// an override can fill the gap
	_, err = NewCalculator(Options{StrictMissingAmount: true}).Calculate(components, []ComponentOverride{{ComponentID: 2, Formula: "100"}}, nil)
	if err != nil {
		t.Fatalf("expected override to satisfy strict mode, got %v", err)
	}
}

func TestFailedFormulaBecomesZeroLine(t *testing.T) {
	components := []SalaryComponent{
		{ID: 1, Name: "Base Salary", Type: ComponentFixed, Amount: amt(3000)},
		{ID: 2, Name: "Bonus", Type: ComponentVariable, Formula: "baseSalary * unknownRate"},
		{ID: 3, Name: "Levy", Type: ComponentDeduction, Formula: "100 / 0"},
		{ID: 4, Name: "Union Fee", Type: ComponentDeduction, Formula: "25"},
	}
	result, err := NewCalculator(Options{Logger: quietLogger}).Calculate(components, nil, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	if result.GrossAmount != 3000 {
		t.Fatalf("expected gross 3000, got %v", result.GrossAmount)
	}
	if result.TotalDeductions != 25 {
		t.Fatalf("expected deductions 25, got %v", result.TotalDeductions)
	}
	if len(result.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %+v", result.Failures)
	}
	if result.Components[1].Error != "Undefined symbol unknownRate" {
		t.Fatalf("unexpected bonus error %q", result.Components[1].Error)
	}
	if result.Components[1].Value() != 0 {
		t.Fatalf("expected zero bonus, got %v", result.Components[1].Value())
	}
	if result.Deductions[0].Error != "Division by zero" {
		t.Fatalf("unexpected levy error %q", result.Deductions[0].Error)
	}
}

func TestSiblingReferencesFollowListOrder(t *testing.T) {
	components := []SalaryComponent{
		{ID: 1, Name: "Base Salary", Type: ComponentFixed, Amount: amt(1000)},
		{ID: 2, Name: "Shift  Premium", Type: ComponentVariable, Formula: "baseSalary * 0.1"},
		{ID: 3, Name: "Premium Tax", Type: ComponentDeduction, Formula: "shift_premium * 0.5"},
		{ID: 4, Name: "Early", Type: ComponentDeduction, Formula: "late_fee"},
		{ID: 5, Name: "Late Fee", Type: ComponentDeduction, Formula: "5"},
	}
	result, err := NewCalculator(Options{Logger: quietLogger}).Calculate(components, nil, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if got := result.Deductions[0].CalculatedAmount; got != 50 {
		t.Fatalf("expected premium tax 50, got %v", got)
	}
	if result.Deductions[1].Error == "" {
		t.Fatalf("expected forward reference to fail")
	}
	if result.GrossAmount != 1100 {
		t.Fatalf("expected gross 1100, got %v", result.GrossAmount)
	}
}

func TestGrossSalaryTracksRunningTotal(t *testing.T) {
	components := []SalaryComponent{
		{ID: 1, Name: "Base Salary", Type: ComponentFixed, Amount: amt(1000)},
		{ID: 2, Name: "Bonus", Type: ComponentVariable, Formula: "200"},
		{ID: 3, Name: "Levy", Type: ComponentDeduction, Formula: "grossSalary * 0.1"},
		{ID: 4, Name: "Extra", Type: ComponentVariable, Formula: "100"},
		{ID: 5, Name: "Late Levy", Type: ComponentDeduction, Formula: "grossSalary * 0.1"},
	}
	result, err := CalculateSalary(components, nil, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if got := result.Deductions[0].CalculatedAmount; math.Abs(got-120) > 1e-9 {
		t.Fatalf("expected levy 120, got %v", got)
	}
	if got := result.Deductions[1].CalculatedAmount; math.Abs(got-130) > 1e-9 {
		t.Fatalf("expected late levy 130, got %v", got)
	}
}

func TestEngineVariablesOverrideExternal(t *testing.T) {
	components := []SalaryComponent{
		{ID: 1, Name: "Monthly Base Salary", Type: ComponentFixed, Amount: amt(2000)},
		{ID: 2, Name: "Check", Type: ComponentVariable, Formula: "baseSalary"},
	}
	result, err := CalculateSalary(components, nil, map[string]float64{"baseSalary": 1, "grossSalary": 1})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if got := result.Components[1].Value(); got != 2000 {
		t.Fatalf("expected baseSalary from component, got %v", got)
	}
}

func TestNoBaseSalaryComponentMeansZero(t *testing.T) {
	components := []SalaryComponent{
		{ID: 1, Name: "Wage", Type: ComponentFixed, Amount: amt(2000)},
		{ID: 2, Name: "Bonus", Type: ComponentVariable, Formula: "baseSalary + 10"},
	}
	result, err := CalculateSalary(components, nil, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if got := result.Components[1].Value(); got != 10 {
		t.Fatalf("expected bonus 10, got %v", got)
	}
}

func TestUnknownTypesAreIgnored(t *testing.T) {
	components := []SalaryComponent{
		{ID: 1, Name: "Base Salary", Type: ComponentFixed, Amount: amt(100)},
		{ID: 2, Name: "Mystery", Type: "benefit", Amount: amt(50), Formula: "50"},
	}
	result, err := NewCalculator(Options{StrictMissingAmount: true}).Calculate(components, nil, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if result.GrossAmount != 100 || len(result.Components) != 1 {
		t.Fatalf("expected only base salary, got %+v", result)
	}
}

func TestBracketTaxOnTaxableGross(t *testing.T) {
	components := []SalaryComponent{
		{ID: 1, Name: "Base Salary", Type: ComponentFixed, Amount: amt(5000), Taxable: true},
		{ID: 2, Name: "Meal Allowance", Type: ComponentFixed, Amount: amt(1000)},
	}
	brackets := []tax.Bracket{
		{Rate: 0.10, ThresholdLower: amt(0), ThresholdUpper: amt(2000)},
		{Rate: 0.15, ThresholdLower: amt(2001), ThresholdUpper: amt(5000)},
		{Rate: 0.20, ThresholdLower: amt(5001)},
	}
	result, err := NewCalculator(Options{TaxBrackets: brackets}).Calculate(components, nil, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if result.TaxableAmount != 5000 {
		t.Fatalf("expected taxable 5000, got %v", result.TaxableAmount)
	}
	last := result.Deductions[len(result.Deductions)-1]
	if last.Name != DefaultTaxLabel || math.Abs(last.CalculatedAmount-650) > 1e-9 {
		t.Fatalf("unexpected tax line %+v", last)
	}
	if math.Abs(result.NetAmount-5350) > 1e-9 {
		t.Fatalf("expected net 5350, got %v", result.NetAmount)
	}
}

func TestScopeKey(t *testing.T) {
	cases := map[string]string{
		"Performance Bonus":  "performance_bonus",
		"Shift \t Premium":   "shift_premium",
		"ALREADY_KEYED":      "already_keyed",
		" Leading":           "_leading",
		"Überstunden Zulage": "überstunden_zulage",
	}
	for in, want := range cases {
		if got := ScopeKey(in); got != want {
			t.Fatalf("ScopeKey(%q): expected %q, got %q", in, want, got)
		}
	}
}
