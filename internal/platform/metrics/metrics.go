package metrics

import (
	"sync/atomic"
	"time"
)

// Collector keeps process-wide counters for the /metrics endpoint.
type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	clientErrors    uint64
	totalDurationMs uint64

	calculations      uint64
	formulaFailures   uint64
	calcDurationMicro uint64
	payrollRuns       uint64
	failedRuns        uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	switch {
	case status >= 500:
		atomic.AddUint64(&c.errorRequests, 1)
	case status >= 400:
		atomic.AddUint64(&c.clientErrors, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordCalculation counts one employee calculation and the formulas that
// failed in it.
func (c *Collector) RecordCalculation(duration time.Duration, failures int) {
	atomic.AddUint64(&c.calculations, 1)
	if failures > 0 {
		atomic.AddUint64(&c.formulaFailures, uint64(failures))
	}
	atomic.AddUint64(&c.calcDurationMicro, uint64(duration.Microseconds()))
}

func (c *Collector) RecordRun(err error) {
	atomic.AddUint64(&c.payrollRuns, 1)
	if err != nil {
		atomic.AddUint64(&c.failedRuns, 1)
	}
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	calcs := atomic.LoadUint64(&c.calculations)
	calcMicro := atomic.LoadUint64(&c.calcDurationMicro)
	avgCalc := float64(0)
	if calcs > 0 {
		avgCalc = float64(calcMicro) / float64(calcs)
	}
	return map[string]any{
		"requestsTotal":          total,
		"errorsTotal":            atomic.LoadUint64(&c.errorRequests),
		"clientErrorsTotal":      atomic.LoadUint64(&c.clientErrors),
		"avgDurationMs":          avg,
		"totalDurationMs":        totalMs,
		"calculationsTotal":      calcs,
		"formulaFailuresTotal":   atomic.LoadUint64(&c.formulaFailures),
		"avgCalculationMicros":   avgCalc,
		"payrollRunsTotal":       atomic.LoadUint64(&c.payrollRuns),
		"payrollRunsFailedTotal": atomic.LoadUint64(&c.failedRuns),
	}
}
