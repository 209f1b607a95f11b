// Package metrics exports the results of a batch run as Prometheus metrics,
// written in the node_exporter textfile format so CI hosts can scrape them.
package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"ptrperm/internal/borrowck"
	"ptrperm/internal/driver"
)

const namespace = "ptrperm"

// Outcome labels. A function that failed before or during refinement is
// "failed"; the others follow the refinement outcome.
const (
	OutcomeConverged  = "converged"
	OutcomeUnresolved = "unresolved"
	OutcomeBudget     = "budget-exhausted"
	OutcomeFailed     = "failed"
)

// Metrics holds the collectors of one run.
type Metrics struct {
	registry *prometheus.Registry

	functions  *prometheus.CounterVec
	iterations prometheus.Histogram
	dropped    prometheus.Counter
	conflicts  prometheus.Gauge
	latency    prometheus.Summary
	wall       prometheus.GaugeFunc

	lastWall float64
}

// New registers the run collectors on a fresh pedantic registry.
func New() *Metrics {
	m := &Metrics{
		functions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "functions_total",
				Help:      "analyzed functions by outcome",
			},
			[]string{"outcome"},
		),
		iterations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "iterations",
				Help:      "refinement iterations per analyzed function",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 6),
			},
		),
		dropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unique_dropped_total",
				Help:      "UNIQUE permissions removed by conflict resolution",
			},
		),
		conflicts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "conflicts_remaining",
				Help:      "conflicts left after the last iteration, summed over functions",
			},
		),
		latency: prometheus.NewSummary(
			prometheus.SummaryOpts{
				Namespace:  namespace,
				Name:       "analysis_seconds",
				Help:       "time spent refining one function",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
		),
	}
	m.wall = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_wall_seconds",
			Help:      "wall-clock time of the last recorded run",
		},
		func() float64 { return m.lastWall },
	)

	m.registry = prometheus.NewPedanticRegistry()
	m.registry.MustRegister(m.functions, m.iterations, m.dropped, m.conflicts, m.latency, m.wall)
	return m
}

// Registry exposes the collectors, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Outcome classifies one function result.
func Outcome(fr *driver.FuncResult) string {
	switch {
	case fr.Result == nil:
		return OutcomeFailed
	case fr.Result.Outcome == borrowck.BudgetExhausted:
		return OutcomeBudget
	case fr.Err != nil:
		return OutcomeFailed
	case fr.Result.Outcome == borrowck.UnresolvedStall:
		return OutcomeUnresolved
	}
	return OutcomeConverged
}

// Record adds sum to the collectors.
func (m *Metrics) Record(sum *driver.Summary) {
	if sum == nil {
		return
	}
	remaining := 0
	for i := range sum.Funcs {
		fr := &sum.Funcs[i]
		m.functions.WithLabelValues(Outcome(fr)).Inc()
		if fr.Result == nil {
			continue
		}
		m.iterations.Observe(float64(fr.Result.Iterations))
		m.latency.Observe(fr.Analyze.Seconds())
		remaining += fr.Result.Conflicts
		for _, st := range fr.Result.Stats {
			m.dropped.Add(float64(st.Dropped))
		}
	}
	m.conflicts.Set(float64(remaining))
	m.lastWall = sum.Timer.Report().Wall.Seconds()
}

// WriteFile writes every metric to path atomically. The textfile collector
// only picks up files ending in .prom.
func (m *Metrics) WriteFile(path string) error {
	if !strings.HasSuffix(path, ".prom") {
		return fmt.Errorf("metrics file %q must end in .prom", path)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
