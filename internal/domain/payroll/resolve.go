package payroll

import "time"

// EffectiveAssignment picks the assignment in force on asOf: the one with
// the latest effective date not after asOf whose end date, if any, is not
// before it. Among equal effective dates the most recently created wins.
func EffectiveAssignment(assignments []StructureAssignment, asOf time.Time) (StructureAssignment, bool) {
	day := dateOnly(asOf)
	var best StructureAssignment
	found := false
	for _, a := range assignments {
		start := dateOnly(a.EffectiveDate)
		if start.After(day) {
			continue
		}
		if a.EndDate != nil && dateOnly(*a.EndDate).Before(day) {
			continue
		}
		if !found || start.After(dateOnly(best.EffectiveDate)) || (start.Equal(dateOnly(best.EffectiveDate)) && a.ID > best.ID) {
			best = a
			found = true
		}
	}
	return best, found
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
