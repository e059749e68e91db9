package tax

import (
	"math"
	"sort"
	"time"
)

// AdjacencyTolerance is the widest distance between one bracket's upper bound
// and the next bracket's lower bound that is still read as inclusive-range
// notation (2000 / 2001, or 1999.99 / 2000) rather than a real gap.
const AdjacencyTolerance = 1.0

// defaultUpperStep is subtracted from the next bracket's lower bound when a
// bracket has no upper bound of its own.
const defaultUpperStep = 0.01

type Bracket struct {
	ID             int64      `json:"id,omitempty" yaml:"id,omitempty"`
	Name           string     `json:"name,omitempty" yaml:"name,omitempty"`
	Description    string     `json:"description,omitempty" yaml:"description,omitempty"`
	Rate           float64    `json:"rate" yaml:"rate"`
	ThresholdLower *float64   `json:"thresholdLower,omitempty" yaml:"thresholdLower,omitempty"`
	ThresholdUpper *float64   `json:"thresholdUpper,omitempty" yaml:"thresholdUpper,omitempty"`
	EffectiveDate  time.Time  `json:"effectiveDate" yaml:"effectiveDate,omitempty"`
	EndDate        *time.Time `json:"endDate,omitempty" yaml:"endDate,omitempty"`
}

func (b Bracket) lower() float64 {
	if b.ThresholdLower == nil {
		return 0
	}
	return *b.ThresholdLower
}

// Band is a bracket with its bounds resolved. Upper is nil for the topmost,
// unbounded band.
type Band struct {
	Name          string   `json:"name,omitempty"`
	Rate          float64  `json:"rate"`
	Lower         float64  `json:"lower"`
	Upper         *float64 `json:"upper,omitempty"`
	UpperExplicit bool     `json:"upperExplicit"`
}

func (b Band) upper() float64 {
	if b.Upper == nil {
		return math.Inf(1)
	}
	return *b.Upper
}

func sorted(brackets []Bracket) []Bracket {
	out := make([]Bracket, len(brackets))
	copy(out, brackets)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].lower() < out[j].lower()
	})
	return out
}

// Resolve sorts brackets by lower bound and fills in default bounds: a
// missing lower is 0, a missing upper is the next lower bound minus one cent,
// or unbounded for the last bracket.
func Resolve(brackets []Bracket) []Band {
	ordered := sorted(brackets)
	bands := make([]Band, len(ordered))
	for i, b := range ordered {
		band := Band{Name: b.Name, Rate: b.Rate, Lower: b.lower()}
		switch {
		case b.ThresholdUpper != nil:
			upper := *b.ThresholdUpper
			band.Upper = &upper
			band.UpperExplicit = true
		case i+1 < len(ordered):
			upper := ordered[i+1].lower() - defaultUpperStep
			band.Upper = &upper
		}
		bands[i] = band
	}
	return bands
}

// Calculate returns the marginal tax owed on gross. Adjacent brackets meet
// without losing income between them: a band starts where the previous band
// ended whenever its own lower bound is within AdjacencyTolerance of that
// point. A band with a defaulted upper bound ends at the next lower bound.
func Calculate(gross float64, brackets []Bracket) float64 {
	if len(brackets) == 0 {
		return 0
	}
	bands := Resolve(brackets)

	var tax float64
	prevCeil := math.Inf(-1)
	for i, band := range bands {
		ceil := band.upper()
		if !band.UpperExplicit && i+1 < len(bands) {
			ceil = bands[i+1].Lower
		}

		start := band.Lower
		if i > 0 && band.Lower-prevCeil <= AdjacencyTolerance {
			start = prevCeil
		}
		if gross <= start {
			break
		}

		taxable := math.Min(gross, ceil) - start
		if taxable > 0 {
			tax += taxable * band.Rate
		}
		if gross <= ceil {
			break
		}
		prevCeil = math.Max(prevCeil, ceil)
	}
	return tax
}

// ActiveOn returns the brackets in effect on date, keeping input order.
func ActiveOn(brackets []Bracket, date time.Time) []Bracket {
	var out []Bracket
	for _, b := range brackets {
		if !b.EffectiveDate.IsZero() && b.EffectiveDate.After(date) {
			continue
		}
		if b.EndDate != nil && b.EndDate.Before(date) {
			continue
		}
		out = append(out, b)
	}
	return out
}
