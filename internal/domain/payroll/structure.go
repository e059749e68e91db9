package payroll

import (
	"fmt"
	"strings"

	"paycalc/internal/domain/formula"
)

// ValidateStructure checks a component list before it is saved. Formulas
// must compile, and a formula that names a sibling must come after it,
// because the calculator evaluates strictly in list order. Fixed amounts
// only reach formulas through baseSalary and grossSalary, so naming a fixed
// sibling is rejected too.
func ValidateStructure(components []SalaryComponent) error {
	var issues []Issue
	names := make(map[string]int, len(components))
	keys := make(map[string]int, len(components))
	position := make(map[string]int, len(components))

	for i, comp := range components {
		position[ScopeKey(comp.Name)] = i
	}

	for i, comp := range components {
		add := func(field, msg string) {
			issues = append(issues, Issue{ComponentID: comp.ID, Component: comp.Name, Field: field, Message: msg})
		}

		name := strings.TrimSpace(comp.Name)
		if name == "" {
			add("name", "is required")
		} else {
			lower := strings.ToLower(name)
			if j, ok := names[lower]; ok {
				add("name", fmt.Sprintf("duplicates component #%d", j+1))
			} else {
				names[lower] = i
				key := ScopeKey(comp.Name)
				if j, ok := keys[key]; ok {
					add("name", fmt.Sprintf("scope key %q collides with %q", key, components[j].Name))
				} else {
					keys[key] = i
				}
			}
		}

		switch comp.Type {
		case ComponentFixed:
			if comp.Amount == nil {
				add("amount", "is required for fixed components")
			} else if *comp.Amount < 0 {
				add("amount", "must not be negative")
			}
		case ComponentVariable, ComponentDeduction:
			if strings.TrimSpace(comp.Formula) == "" {
				add("formula", formula.MsgEmptyFormula)
				continue
			}
			expr, err := formula.Compile(comp.Formula)
			if err != nil {
				add("formula", err.Error())
				continue
			}
			for _, ident := range expr.Identifiers() {
				j, ok := position[ident]
				switch {
				case !ok:
				case components[j].Type == ComponentFixed:
					add("formula", fmt.Sprintf("references fixed component %q; use %s or %s instead", ident, VarBaseSalary, VarGrossSalary))
				case j >= i:
					add("formula", fmt.Sprintf("references %q which is not computed before this component", ident))
				}
			}
		default:
			add("type", fmt.Sprintf("unknown component type %q", comp.Type))
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Kind: ErrInvalidStructure, Issues: issues}
	}
	return nil
}

// ValidateOverrides checks employee overrides against the structure they
// apply to.
func ValidateOverrides(components []SalaryComponent, overrides []ComponentOverride) error {
	byID := make(map[int64]SalaryComponent, len(components))
	for _, comp := range components {
		byID[comp.ID] = comp
	}

	var issues []Issue
	seen := make(map[int64]bool, len(overrides))
	for _, o := range overrides {
		comp, ok := byID[o.ComponentID]
		add := func(field, msg string) {
			issues = append(issues, Issue{ComponentID: o.ComponentID, Component: comp.Name, Field: field, Message: msg})
		}
		if !ok {
			add("componentId", "does not belong to the salary structure")
			continue
		}
		if seen[o.ComponentID] {
			add("componentId", "has more than one override")
			continue
		}
		seen[o.ComponentID] = true

		if o.Amount == nil && strings.TrimSpace(o.Formula) == "" {
			add("override", "must set an amount or a formula")
		}
		if o.Amount != nil && comp.Type != ComponentFixed {
			add("amount", fmt.Sprintf("is ignored for %s components", comp.Type))
		}
		if strings.TrimSpace(o.Formula) != "" {
			if comp.Type == ComponentFixed {
				add("formula", "is ignored for fixed components")
			} else if _, err := formula.Compile(o.Formula); err != nil {
				add("formula", err.Error())
			}
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Kind: ErrInvalidOverride, Issues: issues}
	}
	return nil
}
