package tax

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrBracketConfiguration = errors.New("invalid tax bracket configuration")

// ConfigError lists every problem found in a bracket table.
type ConfigError struct {
	Issues []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", ErrBracketConfiguration, strings.Join(e.Issues, "; "))
}

func (e *ConfigError) Unwrap() error {
	return ErrBracketConfiguration
}

// Validate checks that brackets tile [0, +Inf) once defaults are applied.
// It is meant for configuration time; Calculate does not call it.
func Validate(brackets []Bracket) error {
	if len(brackets) == 0 {
		return nil
	}

	var issues []string
	for _, b := range brackets {
		issues = append(issues, bracketIssues(b)...)
	}

	bands := Resolve(brackets)
	if bands[0].Lower > 0 {
		issues = append(issues, fmt.Sprintf("gap: no bracket covers 0 to %v", bands[0].Lower))
	}
	for i := 1; i < len(bands); i++ {
		prev, cur := bands[i-1], bands[i]
		distance := cur.Lower - *prev.Upper
		switch {
		case cur.Lower == prev.Lower:
			issues = append(issues, fmt.Sprintf("%s and %s share lower threshold %v", bandLabel(prev, i-1), bandLabel(cur, i), cur.Lower))
		case distance < 0:
			issues = append(issues, fmt.Sprintf("%s overlaps %s between %v and %v", bandLabel(cur, i), bandLabel(prev, i-1), cur.Lower, *prev.Upper))
		case distance > AdjacencyTolerance:
			issues = append(issues, fmt.Sprintf("gap: no bracket covers %v to %v", *prev.Upper, cur.Lower))
		}
	}
	if top := bands[len(bands)-1]; top.Upper != nil {
		issues = append(issues, fmt.Sprintf("gap: no bracket covers income above %v", *top.Upper))
	}

	if len(issues) > 0 {
		return &ConfigError{Issues: issues}
	}
	return nil
}

// ValidateBracket checks one bracket on its own, without regard to how it
// fits the rest of a table.
func ValidateBracket(b Bracket) error {
	if issues := bracketIssues(b); len(issues) > 0 {
		return &ConfigError{Issues: issues}
	}
	return nil
}

func bracketIssues(b Bracket) []string {
	var issues []string
	label := bracketLabel(b)
	if math.IsNaN(b.Rate) || b.Rate < 0 || b.Rate > 1 {
		issues = append(issues, fmt.Sprintf("%s: rate %v must be a fraction between 0 and 1", label, b.Rate))
	}
	if b.lower() < 0 {
		issues = append(issues, fmt.Sprintf("%s: lower threshold %v is negative", label, b.lower()))
	}
	if b.ThresholdUpper != nil && *b.ThresholdUpper <= b.lower() {
		issues = append(issues, fmt.Sprintf("%s: upper threshold %v must be greater than lower threshold %v", label, *b.ThresholdUpper, b.lower()))
	}
	if b.EndDate != nil && b.EndDate.Before(b.EffectiveDate) {
		issues = append(issues, fmt.Sprintf("%s: end date is before effective date", label))
	}
	return issues
}

func bracketLabel(b Bracket) string {
	if b.Name != "" {
		return fmt.Sprintf("bracket %q", b.Name)
	}
	return fmt.Sprintf("bracket starting at %v", b.lower())
}

func bandLabel(b Band, index int) string {
	if b.Name != "" {
		return fmt.Sprintf("bracket %q", b.Name)
	}
	return fmt.Sprintf("bracket #%d", index+1)
}
