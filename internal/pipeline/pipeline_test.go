package pipeline

import (
	"testing"
	"time"
)

func TestTimingsAccumulate(t *testing.T) {
	var tm Timings
	if tm.Has(StageAnalyze) {
		t.Fatal("empty timings report a stage")
	}
	tm.Add(StageAnalyze, 2*time.Millisecond)
	tm.Add(StageAnalyze, 3*time.Millisecond)
	tm.Add(StageLoad, time.Millisecond)
	if got := tm.Duration(StageAnalyze); got != 5*time.Millisecond {
		t.Errorf("analyze = %v, want 5ms", got)
	}
	if got := tm.Sum(StageLoad, StageAnalyze, StageReport); got != 6*time.Millisecond {
		t.Errorf("sum = %v, want 6ms", got)
	}
}

func TestStatusFinal(t *testing.T) {
	for _, s := range []Status{StatusDone, StatusWarning, StatusError} {
		if !s.Final() {
			t.Errorf("%s should be final", s)
		}
	}
	for _, s := range []Status{StatusQueued, StatusWorking} {
		if s.Final() {
			t.Errorf("%s should not be final", s)
		}
	}
}

func TestChannelSink(t *testing.T) {
	ch := make(chan Event, 1)
	ChannelSink{Ch: ch}.OnEvent(Event{Func: "f", Status: StatusDone})
	if ev := <-ch; ev.Func != "f" || ev.Status != StatusDone {
		t.Errorf("event = %+v", ev)
	}
	ChannelSink{}.OnEvent(Event{}) // nil channel is a no-op
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.OnEvent(Event{Func: "a"})
	r.OnEvent(Event{Func: "b"})
	evs := r.Events()
	if len(evs) != 2 || evs[1].Func != "b" {
		t.Errorf("events = %+v", evs)
	}
}
