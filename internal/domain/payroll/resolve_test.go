package payroll

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEffectiveAssignment(t *testing.T) {
	end := date(2023, time.June, 30)
	assignments := []StructureAssignment{
		{ID: 1, StructureID: 10, EffectiveDate: date(2023, time.January, 1), EndDate: &end},
		{ID: 2, StructureID: 20, EffectiveDate: date(2023, time.July, 1)},
		{ID: 3, StructureID: 30, EffectiveDate: date(2024, time.January, 1)},
		{ID: 4, StructureID: 40, EffectiveDate: date(2024, time.January, 1)},
	}

	cases := []struct {
		asOf time.Time
		want int64
		ok   bool
	}{
		{date(2022, time.December, 31), 0, false},
		{date(2023, time.March, 15), 10, true},
		{date(2023, time.June, 30), 10, true},
		{date(2023, time.July, 1), 20, true},
		{date(2023, time.December, 31), 20, true},
		{date(2024, time.February, 1), 40, true},
		// Time of day is ignored.
		{time.Date(2023, time.June, 30, 23, 59, 0, 0, time.UTC), 10, true},
	}
	for _, tc := range cases {
		got, ok := EffectiveAssignment(assignments, tc.asOf)
		if ok != tc.ok {
			t.Fatalf("%s: expected ok=%v, got %v", tc.asOf.Format(time.DateOnly), tc.ok, ok)
		}
		if ok && got.StructureID != tc.want {
			t.Fatalf("%s: expected structure %d, got %d", tc.asOf.Format(time.DateOnly), tc.want, got.StructureID)
		}
	}
}

func TestEffectiveAssignmentEnded(t *testing.T) {
	end := date(2023, time.March, 31)
	_, ok := EffectiveAssignment([]StructureAssignment{
		{ID: 1, StructureID: 10, EffectiveDate: date(2023, time.January, 1), EndDate: &end},
	}, date(2023, time.April, 1))
	if ok {
		t.Fatalf("expected no assignment after end date")
	}
}
