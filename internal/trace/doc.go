// Package trace provides structured event tracing for the permission
// inference pipeline.
//
// Every event carries a Site: the function it concerns and, inside the
// refinement loop, the iteration. A trace of a batch run can therefore be
// filtered down to a single loop or a single pass of it.
//
// # Usage
//
//	ptrperm check --trace=- --trace-level=detail prog.yaml
//
// # Tracers
//
//   - Nop: zero-overhead tracer used when tracing is disabled
//   - StreamTracer: immediate write to output (file/stderr)
//   - RingTracer: circular buffer kept in memory, dumped on failure
//   - MultiTracer: combines multiple tracers
//
// # Levels
//
//   - LevelOff: nothing
//   - LevelError: warnings only (unresolved conflicts, exhausted budgets)
//   - LevelPhase: driver and per-function spans
//   - LevelDetail: per-iteration spans and permission drops
//   - LevelDebug: everything including fact detail
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopeFunc, trace.Site{Func: fn, Parent: trace.ParentSpan(ctx)}, "borrowck")
//	iter := trace.Begin(t, trace.ScopeIter, span.Site(1), "iteration")
//	trace.Point(t, trace.ScopeIter, iter.Site(0), "drop-unique", "_1", nil)
//	iter.End("")
//	span.End("converged")
//
// # Heartbeat
//
// StartHeartbeat reports an Activity snapshot (queued, running and finished
// functions, iterations so far) at a fixed interval.
package trace
