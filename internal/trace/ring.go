package trace

import (
	"io"
	"sync"
)

// RingTracer keeps the most recent events in memory. The CLI dumps it to
// stderr when a function fails.
type RingTracer struct {
	mu       sync.Mutex
	buf      []Event
	start    int // oldest event once buf is full
	capacity int
	level    Level
}

// NewRingTracer keeps the last capacity accepted events in memory.
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &RingTracer{buf: make([]Event, 0, capacity), capacity: capacity, level: level}
}

// Emit stores ev, overwriting the oldest event once full.
func (t *RingTracer) Emit(ev *Event) {
	if ev == nil || !t.level.accepts(ev) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.buf) < t.capacity {
		t.buf = append(t.buf, *ev)
		return
	}
	t.buf[t.start] = *ev
	t.start = (t.start + 1) % t.capacity
}

// Snapshot returns the stored events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, 0, len(t.buf))
	out = append(out, t.buf[t.start:]...)
	return append(out, t.buf[:t.start]...)
}

// Dump writes the stored events to w. When funcs is non-empty only driver
// events and events of those functions are written.
func (t *RingTracer) Dump(w io.Writer, format Format, funcs ...string) error {
	keep := make(map[string]bool, len(funcs))
	for _, fn := range funcs {
		keep[fn] = true
	}
	events := t.Snapshot()
	for i := range events {
		ev := &events[i]
		if len(keep) > 0 && ev.Func != "" && !keep[ev.Func] {
			continue
		}
		if _, err := w.Write(FormatEvent(ev, format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error  { return nil }
func (t *RingTracer) Close() error  { return nil }
func (t *RingTracer) Level() Level  { return t.level }
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
