package pipeline

import "time"

// Stage is a phase of a batch run. Load and Report happen once per run;
// Validate and Analyze are summed over functions.
type Stage string

const (
	StageLoad     Stage = "load"
	StageValidate Stage = "validate"
	StageAnalyze  Stage = "analyze"
	StageReport   Stage = "report"
)

// Status is where a function stands. Done, Warning and Error are final:
// Warning is a stall with conflicts left, Error a failure or an exhausted
// iteration budget.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Final reports whether no further events follow for the function.
func (s Status) Final() bool {
	return s == StatusDone || s == StatusWarning || s == StatusError
}

// Event reports progress for a function (or for the whole run when Func is empty).
type Event struct {
	Func   string
	Stage  Stage
	Status Status
	// Iteration and Conflicts describe the latest refinement pass.
	Iteration int
	Conflicts int
	Err       error
	Elapsed   time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// Timings accumulates wall-clock time per stage. The zero value is ready to
// use through a pointer.
type Timings map[Stage]time.Duration

// Add accumulates dur on stage.
func (t *Timings) Add(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	if *t == nil {
		*t = make(Timings)
	}
	(*t)[stage] += dur
}

// Has reports whether stage was recorded, even with a zero duration.
func (t Timings) Has(stage Stage) bool {
	_, ok := t[stage]
	return ok
}

func (t Timings) Duration(stage Stage) time.Duration { return t[stage] }

// Sum adds up the given stages.
func (t Timings) Sum(stages ...Stage) time.Duration {
	var total time.Duration
	for _, stage := range stages {
		total += t[stage]
	}
	return total
}
