package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	// KindPoint is an instant event.
	KindPoint
	// KindWarning is an instant event kept at every level but LevelOff.
	KindWarning
	// KindHeartbeat reports batch activity at a fixed interval.
	KindHeartbeat
)

var kindNames = [...]string{
	KindSpanBegin: "begin",
	KindSpanEnd:   "end",
	KindPoint:     "point",
	KindWarning:   "warning",
	KindHeartbeat: "heartbeat",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// Scope is the granularity of an event. Lower values are coarser.
type Scope uint8

const (
	// ScopeDriver covers a whole batch run.
	ScopeDriver Scope = iota + 1
	// ScopeFunc covers one function's refinement loop.
	ScopeFunc
	// ScopeIter covers one refinement iteration.
	ScopeIter
	// ScopeFact covers individual facts and conflicts.
	ScopeFact
)

var scopeNames = [...]string{
	ScopeDriver: "driver",
	ScopeFunc:   "func",
	ScopeIter:   "iter",
	ScopeFact:   "fact",
}

func (s Scope) String() string {
	if int(s) < len(scopeNames) && scopeNames[s] != "" {
		return scopeNames[s]
	}
	return "unknown"
}

// Site locates an event inside a batch run. The zero Site is the driver
// itself.
type Site struct {
	// Func is the analyzed function, empty for driver events.
	Func string
	// Iter is the 1-based refinement iteration, 0 outside the loop.
	Iter int
	// Parent is the enclosing span, 0 at the root.
	Parent uint64
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64 // global, monotonic
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64
	Func     string
	Iter     int
	Name     string // e.g. "borrowck", "iteration", "drop-unique"
	Detail   string
	Extra    map[string]string
}
