// Package telemetry exposes Prometheus counters and histograms for the
// core's own execution: tick duration, IDYN solve duration against its
// wall budget, LCP regularization fallbacks, and phase violations.
//
// Grounded on the example pack's direct github.com/prometheus/
// client_golang dependency (C360Studio-semspec/go.mod); this is metrics
// on the controller's own loop, not a telemetry sink for the robot
// itself, which stays out of scope per spec.md §1.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every series the controller publishes. The zero value
// is not usable; construct with New or NewForRegistry.
type Metrics struct {
	TickDuration     prometheus.Histogram
	IDYNSolveSeconds prometheus.Histogram
	IDYNOverBudget   prometheus.Counter
	LCPRegularized   prometheus.Counter
	PhaseViolations  prometheus.Counter
	Faults           prometheus.Counter
}

// New registers metrics against the default Prometheus registry.
func New() *Metrics {
	return NewForRegistry(prometheus.DefaultRegisterer)
}

// NewForRegistry registers metrics against a caller-supplied registerer,
// so tests can use a private registry instead of the global default.
func NewForRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pacer_tick_duration_seconds",
			Help:    "Wall-clock duration of one controller tick.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		IDYNSolveSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pacer_idyn_solve_seconds",
			Help:    "Wall-clock duration of the IDYN Stage I/II solve.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		IDYNOverBudget: factory.NewCounter(prometheus.CounterOpts{
			Name: "pacer_idyn_over_budget_total",
			Help: "IDYN solves that exceeded their configured wall budget and fell back to PID-only.",
		}),
		LCPRegularized: factory.NewCounter(prometheus.CounterOpts{
			Name: "pacer_lcp_regularized_total",
			Help: "Lemke solves that required diagonal regularization to converge.",
		}),
		PhaseViolations: factory.NewCounter(prometheus.CounterOpts{
			Name: "pacer_phase_violations_total",
			Help: "State-store writes rejected for targeting a unit outside its allowed phase.",
		}),
		Faults: factory.NewCounter(prometheus.CounterOpts{
			Name: "pacer_faults_total",
			Help: "Ticks that latched a fault and commanded a zero-torque halt.",
		}),
	}
}
