// Package observ records wall-clock timings of analysis phases.
package observ

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// Phase is one timed unit of work, usually one function's analysis.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// Timer collects phases. Begin and End may be called from several
// goroutines; a nil *Timer records nothing.
type Timer struct {
	mu     sync.Mutex
	phases []Phase
}

// NewTimer returns an empty timer.
func NewTimer() *Timer { return &Timer{} }

// Begin starts a phase and returns the index End expects.
func (t *Timer) Begin(name string) int {
	if t == nil {
		return -1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now()})
	return len(t.phases) - 1
}

// End closes phase idx with an optional note, e.g. the outcome.
func (t *Timer) End(idx int, note string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	p.Dur = time.Since(p.Start)
	p.Note = note
}

// Report is a snapshot of the timer. Busy sums the phase durations; Wall
// spans the first start to the last end, so Busy/Wall approximates the
// parallelism achieved.
type Report struct {
	Phases []Phase
	Busy   time.Duration
	Wall   time.Duration
}

// Report snapshots the phases in the order they began.
func (t *Timer) Report() Report {
	if t == nil {
		return Report{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	rep := Report{Phases: slices.Clone(t.phases)}
	var first, last time.Time
	for i, p := range rep.Phases {
		rep.Busy += p.Dur
		if i == 0 || p.Start.Before(first) {
			first = p.Start
		}
		if end := p.Start.Add(p.Dur); end.After(last) {
			last = end
		}
	}
	if len(rep.Phases) > 0 {
		rep.Wall = last.Sub(first)
	}
	return rep
}

// SummaryLimit caps the phases Summary lists individually.
const SummaryLimit = 10

// Summary renders the slowest phases followed by busy and wall totals.
func (t *Timer) Summary() string {
	rep := t.Report()
	phases := rep.Phases
	slices.SortStableFunc(phases, func(a, b Phase) int { return cmp.Compare(b.Dur, a.Dur) })

	var sb strings.Builder
	sb.WriteString("timings:\n")
	for i, p := range phases {
		if i == SummaryLimit {
			fmt.Fprintf(&sb, "  ... %d faster phases\n", len(phases)-SummaryLimit)
			break
		}
		fmt.Fprintf(&sb, "  %-24s %8.2f ms", p.Name, millis(p.Dur))
		if p.Note != "" {
			sb.WriteString("  // " + p.Note)
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "  %-24s %8.2f ms\n", "busy", millis(rep.Busy))
	fmt.Fprintf(&sb, "  %-24s %8.2f ms\n", "wall", millis(rep.Wall))
	return sb.String()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
