// Package metrics exports dataset sampling and constraint check statistics
// to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "scrbench"

// Collectors implements the benchmark recorder on a Prometheus registerer.
type Collectors struct {
	rounds        *prometheus.CounterVec
	drawn         prometheus.Counter
	rejected      prometheus.Counter
	checks        *prometheus.CounterVec
	violations    *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
}

// New registers the collectors with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Collectors {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Collectors{
		// phase is "initial" for the first draw and "retry" afterwards.
		rounds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampling",
			Name:      "rounds_total",
			Help:      "Rejection sampling rounds by phase",
		}, []string{"phase"}),
		drawn: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampling",
			Name:      "drawn_total",
			Help:      "Candidate rows drawn",
		}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampling",
			Name:      "rejected_total",
			Help:      "Candidate rows rejected for an invalid output",
		}),
		checks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "constraints",
			Name:      "checks_total",
			Help:      "Constraint checks by backend and verdict",
		}, []string{"backend", "passed"}),
		violations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "constraints",
			Name:      "violations_total",
			Help:      "Violated constraints by equation",
		}, []string{"equation"}),
		checkDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "constraints",
			Name:      "check_duration_seconds",
			Help:      "Constraint check latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"backend"}),
	}
}

// ObserveRound records one sampling round.
func (c *Collectors) ObserveRound(round, drawn, accepted int) {
	phase := "retry"
	if round == 0 {
		phase = "initial"
	}
	c.rounds.WithLabelValues(phase).Inc()
	c.drawn.Add(float64(drawn))
	c.rejected.Add(float64(drawn - accepted))
}

// ObserveCheck records one constraint check.
func (c *Collectors) ObserveCheck(equation, backend string, passed bool, violations int, elapsed time.Duration) {
	c.checks.WithLabelValues(backend, strconv.FormatBool(passed)).Inc()
	c.violations.WithLabelValues(equation).Add(float64(violations))
	c.checkDuration.WithLabelValues(backend).Observe(elapsed.Seconds())
}
