package observ

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestTimerConcurrentPhases(t *testing.T) {
	tm := NewTimer()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			idx := tm.Begin("fn")
			tm.End(idx, "converged")
		}()
	}
	wg.Wait()

	rep := tm.Report()
	if len(rep.Phases) != 8 {
		t.Fatalf("phases = %d, want 8", len(rep.Phases))
	}
	for _, p := range rep.Phases {
		if p.Note != "converged" {
			t.Errorf("phase note = %q", p.Note)
		}
	}
	if rep.Wall < 0 || rep.Busy < 0 {
		t.Errorf("negative totals: busy %v wall %v", rep.Busy, rep.Wall)
	}
	if s := tm.Summary(); !strings.Contains(s, "busy") || !strings.Contains(s, "wall") {
		t.Errorf("summary lacks totals:\n%s", s)
	}
}

func TestSummaryLimitsPhases(t *testing.T) {
	tm := NewTimer()
	for i := 0; i < SummaryLimit+3; i++ {
		tm.End(tm.Begin(fmt.Sprintf("fn%d", i)), "")
	}
	s := tm.Summary()
	if !strings.Contains(s, "... 3 faster phases") {
		t.Errorf("summary not truncated:\n%s", s)
	}
	if got := strings.Count(s, "\n"); got != 1+SummaryLimit+1+2 {
		t.Errorf("summary has %d lines:\n%s", got, s)
	}
}

func TestNilTimer(t *testing.T) {
	var tm *Timer
	tm.End(tm.Begin("x"), "")
	if rep := tm.Report(); len(rep.Phases) != 0 {
		t.Errorf("nil timer recorded phases")
	}
}
