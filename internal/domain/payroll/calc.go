package payroll

import (
	"log/slog"
	"strings"
	"unicode"

	"paycalc/internal/domain/formula"
	"paycalc/internal/domain/tax"
)

// Options tunes a Calculator. The zero value skips fixed components that
// have no amount and formula components that have no formula.
type Options struct {
	StrictMissingAmount bool
	// TaxBrackets, when set, adds a bracket tax deduction computed on the
	// taxable gross after all formula deductions. Lines not marked taxable
	// are left out of that base.
	TaxBrackets []tax.Bracket
	TaxLabel    string
	Logger      *slog.Logger
}

type Calculator struct {
	opts Options
}

func NewCalculator(opts Options) *Calculator {
	if opts.TaxLabel == "" {
		opts.TaxLabel = DefaultTaxLabel
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Calculator{opts: opts}
}

// CalculateSalary runs the pipeline with default options.
func CalculateSalary(components []SalaryComponent, overrides []ComponentOverride, variables map[string]float64) (CalculationResult, error) {
	return NewCalculator(Options{}).Calculate(components, overrides, variables)
}

// Calculate evaluates components in the order given. Fixed components are
// summed first, then variable and deduction formulas run against a scope
// that grows as each line is computed. A formula may therefore only refer
// to siblings that appear before it in the list.
func (c *Calculator) Calculate(components []SalaryComponent, overrides []ComponentOverride, variables map[string]float64) (CalculationResult, error) {
	merged, err := c.merge(components, overrides)
	if err != nil {
		return CalculationResult{}, err
	}

	result := CalculationResult{
		Components: []ComponentLine{},
		Deductions: []DeductionLine{},
	}

	var taxable float64
	for _, comp := range merged {
		if comp.Type != ComponentFixed || comp.Amount == nil {
			continue
		}
		amount := *comp.Amount
		result.GrossAmount += amount
		if comp.Taxable {
			taxable += amount
		}
		result.Components = append(result.Components, ComponentLine{
			ID:      comp.ID,
			Name:    comp.Name,
			Type:    comp.Type,
			Amount:  &amount,
			Taxable: comp.Taxable,
		})
	}

	scope := make(map[string]float64, len(variables)+len(merged)+2)
	for k, v := range variables {
		scope[k] = v
	}
	scope[VarBaseSalary] = baseSalary(result.Components)
	scope[VarGrossSalary] = result.GrossAmount

	for _, comp := range merged {
		if comp.Type != ComponentVariable && comp.Type != ComponentDeduction {
			continue
		}
		if strings.TrimSpace(comp.Formula) == "" {
			continue
		}

		value, evalErr := formula.Evaluate(comp.Formula, scope)
		var errText string
		if evalErr != nil {
			value = 0
			errText = evalErr.Error()
			result.Failures = append(result.Failures, LineFailure{
				ComponentID: comp.ID,
				Name:        comp.Name,
				Type:        comp.Type,
				Formula:     comp.Formula,
				Error:       errText,
			})
			c.opts.Logger.Warn("formula evaluation failed",
				"componentId", comp.ID,
				"component", comp.Name,
				"type", comp.Type,
				"formula", comp.Formula,
				"err", evalErr,
			)
		}

		if comp.Type == ComponentVariable {
			result.GrossAmount += value
			if comp.Taxable {
				taxable += value
			}
			calculated := value
			result.Components = append(result.Components, ComponentLine{
				ID:               comp.ID,
				Name:             comp.Name,
				Type:             comp.Type,
				CalculatedAmount: &calculated,
				Formula:          comp.Formula,
				Taxable:          comp.Taxable,
				Error:            errText,
			})
		} else {
			result.TotalDeductions += value
			result.Deductions = append(result.Deductions, DeductionLine{
				ID:               comp.ID,
				Name:             comp.Name,
				CalculatedAmount: value,
				Formula:          comp.Formula,
				Error:            errText,
			})
		}

		scope[VarGrossSalary] = result.GrossAmount
		scope[ScopeKey(comp.Name)] = value
	}

	result.TaxableAmount = taxable
	if len(c.opts.TaxBrackets) > 0 {
		amount := tax.Calculate(taxable, c.opts.TaxBrackets)
		result.TotalDeductions += amount
		result.Deductions = append(result.Deductions, DeductionLine{
			Name:             c.opts.TaxLabel,
			CalculatedAmount: amount,
		})
	}

	result.NetAmount = result.GrossAmount - result.TotalDeductions
	return result, nil
}

// merge applies overrides and, in strict mode, rejects components that
// would otherwise be dropped.
func (c *Calculator) merge(components []SalaryComponent, overrides []ComponentOverride) ([]SalaryComponent, error) {
	byComponent := make(map[int64]ComponentOverride, len(overrides))
	for _, o := range overrides {
		if _, seen := byComponent[o.ComponentID]; seen {
			continue
		}
		byComponent[o.ComponentID] = o
	}

	merged := make([]SalaryComponent, 0, len(components))
	for _, comp := range components {
		eff := comp
		if o, ok := byComponent[comp.ID]; ok {
			if o.Amount != nil {
				amount := *o.Amount
				eff.Amount = &amount
			}
			if strings.TrimSpace(o.Formula) != "" {
				eff.Formula = o.Formula
			}
		}

		if c.opts.StrictMissingAmount {
			switch eff.Type {
			case ComponentFixed:
				if eff.Amount == nil {
					return nil, &MissingAmountError{ComponentID: eff.ID, Name: eff.Name}
				}
			case ComponentVariable, ComponentDeduction:
				if strings.TrimSpace(eff.Formula) == "" {
					return nil, &MissingFormulaError{ComponentID: eff.ID, Name: eff.Name, Type: eff.Type}
				}
			}
		}
		merged = append(merged, eff)
	}
	return merged, nil
}

func baseSalary(lines []ComponentLine) float64 {
	for _, line := range lines {
		if strings.Contains(strings.ToLower(line.Name), "base salary") {
			return line.Value()
		}
	}
	return 0
}

// ScopeKey is the name under which a computed component is visible to
// later formulas: lowercased, with each whitespace run replaced by "_".
func ScopeKey(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	inSpace := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
