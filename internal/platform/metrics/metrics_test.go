package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCollectorSnapshot(t *testing.T) {
	c := New()
	c.Record(200, 10*time.Millisecond)
	c.Record(404, 20*time.Millisecond)
	c.Record(500, 30*time.Millisecond)

	snap := c.Snapshot()
	if snap["requestsTotal"] != uint64(3) {
		t.Fatalf("expected 3 requests, got %v", snap["requestsTotal"])
	}
	if snap["errorsTotal"] != uint64(1) || snap["clientErrorsTotal"] != uint64(1) {
		t.Fatalf("unexpected error counts %v", snap)
	}
	if snap["avgDurationMs"] != float64(20) {
		t.Fatalf("expected avg 20ms, got %v", snap["avgDurationMs"])
	}
}

func TestCollectorCalculations(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordCalculation(100*time.Microsecond, i%2)
		}()
	}
	wg.Wait()
	c.RecordRun(nil)
	c.RecordRun(errors.New("boom"))

	snap := c.Snapshot()
	if snap["calculationsTotal"] != uint64(50) {
		t.Fatalf("expected 50 calculations, got %v", snap["calculationsTotal"])
	}
	if snap["formulaFailuresTotal"] != uint64(25) {
		t.Fatalf("expected 25 failures, got %v", snap["formulaFailuresTotal"])
	}
	if snap["avgCalculationMicros"] != float64(100) {
		t.Fatalf("expected avg 100us, got %v", snap["avgCalculationMicros"])
	}
	if snap["payrollRunsTotal"] != uint64(2) || snap["payrollRunsFailedTotal"] != uint64(1) {
		t.Fatalf("unexpected run counts %v", snap)
	}
}
