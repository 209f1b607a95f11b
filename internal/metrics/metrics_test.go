package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"ptrperm/internal/borrowck"
	"ptrperm/internal/driver"
	"ptrperm/internal/observ"
)

func sampleSummary() *driver.Summary {
	converged := &borrowck.Result{
		Func: "ok", Outcome: borrowck.Converged, Iterations: 2,
		Stats: []borrowck.IterationStat{{Iteration: 1, Conflicts: 2, Dropped: 1}, {Iteration: 2}},
	}
	tight := &borrowck.Result{Func: "tight", Outcome: borrowck.BudgetExhausted, Iterations: 1, Conflicts: 2,
		Stats: []borrowck.IterationStat{{Iteration: 1, Conflicts: 2}}}
	stalled := &borrowck.Result{Func: "stuck", Outcome: borrowck.UnresolvedStall, Iterations: 3, Conflicts: 1,
		Stats: []borrowck.IterationStat{{Iteration: 1, Dropped: 2}, {Iteration: 2}, {Iteration: 3}}}
	return &driver.Summary{
		Timer: observ.NewTimer(),
		Funcs: []driver.FuncResult{
			{Name: "ok", Result: converged, Analyze: time.Millisecond},
			{Name: "tight", Result: tight, Err: tight.Err()},
			{Name: "stuck", Result: stalled},
			{Name: "broken", Err: errors.New("bb5 does not exist")},
		},
	}
}

func TestOutcome(t *testing.T) {
	sum := sampleSummary()
	want := []string{OutcomeConverged, OutcomeBudget, OutcomeUnresolved, OutcomeFailed}
	for i := range sum.Funcs {
		if got := Outcome(&sum.Funcs[i]); got != want[i] {
			t.Errorf("%s: outcome %q, want %q", sum.Funcs[i].Name, got, want[i])
		}
	}
}

func TestRecord(t *testing.T) {
	m := New()
	m.Record(sampleSummary())
	m.Record(nil)

	for outcome, want := range map[string]float64{OutcomeConverged: 1, OutcomeBudget: 1, OutcomeUnresolved: 1, OutcomeFailed: 1} {
		if got := testutil.ToFloat64(m.functions.WithLabelValues(outcome)); got != want {
			t.Errorf("functions_total{outcome=%q} = %v, want %v", outcome, got, want)
		}
	}
	if got := testutil.ToFloat64(m.dropped); got != 3 {
		t.Errorf("unique_dropped_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.conflicts); got != 3 {
		t.Errorf("conflicts_remaining = %v, want 3", got)
	}
	if n := testutil.CollectAndCount(m.iterations); n != 1 {
		t.Errorf("iterations collected %d metrics", n)
	}
}

func TestWriteFile(t *testing.T) {
	m := New()
	m.Record(sampleSummary())
	dir := t.TempDir()

	if err := m.WriteFile(filepath.Join(dir, "ptrperm.txt")); err == nil {
		t.Errorf("expected error for a non-.prom file")
	}
	path := filepath.Join(dir, "ptrperm.prom")
	if err := m.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`ptrperm_functions_total{outcome="converged"} 1`,
		`ptrperm_iterations_bucket{le="2"} 2`,
		"ptrperm_run_wall_seconds",
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics file missing %q:\n%s", want, data)
		}
	}
}
