package trace

import (
	"context"
	"strconv"
	"sync/atomic"
)

// Activity counts functions and iterations of a batch run. Heartbeat events
// report a snapshot of it. A nil *Activity ignores every call.
type Activity struct {
	queued     atomic.Int64
	running    atomic.Int64
	done       atomic.Int64
	iterations atomic.Int64
}

// Queue announces n functions waiting to be analyzed.
func (a *Activity) Queue(n int) {
	if a != nil {
		a.queued.Add(int64(n))
	}
}

// Start moves one function from queued to running.
func (a *Activity) Start() {
	if a != nil {
		a.queued.Add(-1)
		a.running.Add(1)
	}
}

// Finish marks one running function done.
func (a *Activity) Finish() {
	if a != nil {
		a.running.Add(-1)
		a.done.Add(1)
	}
}

// Iteration counts one refinement pass.
func (a *Activity) Iteration() {
	if a != nil {
		a.iterations.Add(1)
	}
}

// Snapshot renders the counters as event extras.
func (a *Activity) Snapshot() map[string]string {
	if a == nil {
		return nil
	}
	return map[string]string{
		"queued":     strconv.FormatInt(a.queued.Load(), 10),
		"running":    strconv.FormatInt(a.running.Load(), 10),
		"done":       strconv.FormatInt(a.done.Load(), 10),
		"iterations": strconv.FormatInt(a.iterations.Load(), 10),
	}
}

type activityKey struct{}

// WithActivity attaches a to ctx.
func WithActivity(ctx context.Context, a *Activity) context.Context {
	return context.WithValue(ctx, activityKey{}, a)
}

// ActivityFrom returns the counters attached to ctx, or nil.
func ActivityFrom(ctx context.Context) *Activity {
	if ctx == nil {
		return nil
	}
	a, _ := ctx.Value(activityKey{}).(*Activity)
	return a
}
