package trace

import (
	"sync/atomic"
	"time"
)

var (
	seqCounter  atomic.Uint64
	spanCounter atomic.Uint64
)

// NextSeq returns the next global event sequence number.
func NextSeq() uint64 { return seqCounter.Add(1) }

func newEvent(kind Kind, scope Scope, at Site, name, detail string, extra map[string]string) *Event {
	return &Event{
		Time:     time.Now(),
		Seq:      NextSeq(),
		Kind:     kind,
		Scope:    scope,
		ParentID: at.Parent,
		Func:     at.Func,
		Iter:     at.Iter,
		Name:     name,
		Detail:   detail,
		Extra:    extra,
	}
}

// Point emits an instant event at site at.
func Point(t Tracer, scope Scope, at Site, name, detail string, extra map[string]string) {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	t.Emit(newEvent(KindPoint, scope, at, name, detail, extra))
}

// Warn emits a warning at site at. Warnings pass every level but off.
func Warn(t Tracer, at Site, name, detail string, extra map[string]string) {
	if t == nil || !t.Enabled() {
		return
	}
	t.Emit(newEvent(KindWarning, ScopeFunc, at, name, detail, extra))
}

// Span tracks one logical operation from Begin to End.
type Span struct {
	tracer  Tracer
	id      uint64
	scope   Scope
	at      Site
	name    string
	started time.Time
	extra   map[string]string
}

// Begin starts a span at site at. A span filtered out by the tracer's level
// emits nothing, but its Site still carries at.Parent so children attach to
// the nearest recorded ancestor.
func Begin(t Tracer, scope Scope, at Site, name string) *Span {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return &Span{tracer: Nop, at: at}
	}
	s := &Span{
		tracer:  t,
		id:      spanCounter.Add(1),
		scope:   scope,
		at:      at,
		name:    name,
		started: time.Now(),
	}
	ev := newEvent(KindSpanBegin, scope, at, name, "", nil)
	ev.Time = s.started
	ev.SpanID = s.id
	t.Emit(ev)
	return s
}

// With adds a key/value pair reported by End.
func (s *Span) With(key, value string) *Span {
	if s == nil || s.id == 0 {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string)
	}
	s.extra[key] = value
	return s
}

// End emits the closing event and returns the span's duration.
func (s *Span) End(detail string) time.Duration {
	if s == nil || s.id == 0 {
		return 0
	}
	ev := newEvent(KindSpanEnd, s.scope, s.at, s.name, detail, s.extra)
	ev.SpanID = s.id
	s.tracer.Emit(ev)
	return ev.Time.Sub(s.started)
}

// ID returns the span id, or the parent's id for a span that was not
// emitted.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	if s.id == 0 {
		return s.at.Parent
	}
	return s.id
}

// Site returns the location for events nested under s. iter overrides the
// iteration when positive.
func (s *Span) Site(iter int) Site {
	if s == nil {
		return Site{Iter: iter}
	}
	at := Site{Func: s.at.Func, Iter: s.at.Iter, Parent: s.ID()}
	if iter > 0 {
		at.Iter = iter
	}
	return at
}
