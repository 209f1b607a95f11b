package trace

import (
	"fmt"
	"sync"
	"time"
)

// Heartbeat emits an activity snapshot at a fixed interval, so a stalled
// batch can be told apart from a slow one.
type Heartbeat struct {
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// StartHeartbeat returns nil when tracing is disabled or interval is not
// positive. act may be nil.
func StartHeartbeat(t Tracer, interval time.Duration, act *Activity) *Heartbeat {
	if t == nil || !t.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{stop: make(chan struct{})}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for beat := 1; ; beat++ {
			select {
			case <-ticker.C:
				t.Emit(newEvent(KindHeartbeat, ScopeDriver, Site{}, "heartbeat", fmt.Sprintf("#%d", beat), act.Snapshot()))
			case <-h.stop:
				return
			}
		}
	}()
	return h
}

// Stop ends the heartbeat and waits for its goroutine. Safe on nil.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		close(h.stop)
		h.wg.Wait()
	})
}
