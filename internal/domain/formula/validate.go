package formula

import "strings"

const MsgEmptyFormula = "Formula cannot be empty"

// Validation is advisory: it says the formula parses and evaluates against
// SampleScope, not that it will succeed against a real employee's scope.
type Validation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// SampleScope returns a fresh copy of the representative scope used by Validate.
func SampleScope() map[string]float64 {
	return map[string]float64{
		"baseSalary":       5000,
		"performanceScore": 80,
		"grossSalary":      6000,
	}
}

func Validate(src string) Validation {
	if strings.TrimSpace(src) == "" {
		return Validation{Valid: false, Error: MsgEmptyFormula}
	}
	if _, err := Evaluate(src, SampleScope()); err != nil {
		return Validation{Valid: false, Error: err.Error()}
	}
	return Validation{Valid: true}
}
