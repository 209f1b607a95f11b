// Package driver runs the permission analysis over every function of a
// program, one refinement loop per function, in parallel.
package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"ptrperm/internal/borrowck"
	"ptrperm/internal/config"
	"ptrperm/internal/dump"
	"ptrperm/internal/mir"
	"ptrperm/internal/observ"
	"ptrperm/internal/pipeline"
	"ptrperm/internal/program"
	"ptrperm/internal/trace"
)

// FuncResult is the analysis result of one function.
type FuncResult struct {
	Name string
	// Result is nil when validation or analysis failed.
	Result *borrowck.Result
	// Err is a validation or analysis error, or budget exhaustion.
	Err      error
	Validate time.Duration
	Analyze  time.Duration
}

// Status maps the result onto a progress status.
func (r *FuncResult) Status() pipeline.Status {
	switch {
	case r.Err != nil:
		return pipeline.StatusError
	case r.Result != nil && r.Result.Outcome == borrowck.UnresolvedStall:
		return pipeline.StatusWarning
	default:
		return pipeline.StatusDone
	}
}

// Summary holds per-function results in program order.
type Summary struct {
	Funcs   []FuncResult
	Timer   *observ.Timer
	Timings pipeline.Timings
}

// Failed counts functions whose analysis failed or ran out of iterations.
func (s *Summary) Failed() int { return len(s.FailedNames()) }

// FailedNames lists the failed functions in program order.
func (s *Summary) FailedNames() []string {
	var names []string
	for i := range s.Funcs {
		if s.Funcs[i].Err != nil {
			names = append(names, s.Funcs[i].Name)
		}
	}
	return names
}

// Stalled counts functions left with unresolved conflicts.
func (s *Summary) Stalled() int {
	n := 0
	for i := range s.Funcs {
		if s.Funcs[i].Status() == pipeline.StatusWarning {
			n++
		}
	}
	return n
}

// Err joins every per-function error.
func (s *Summary) Err() error {
	var errs []error
	for i := range s.Funcs {
		if s.Funcs[i].Err != nil {
			errs = append(errs, s.Funcs[i].Err)
		}
	}
	return errors.Join(errs...)
}

// AnalyzeAll analyzes every function of prog. A failure in one function is
// recorded on its result and does not stop the others; only cancellation of
// ctx aborts the run. The hypotheses stored in prog are not modified.
func AnalyzeAll(ctx context.Context, prog *program.Program, cfg config.Config, sink pipeline.ProgressSink) (*Summary, error) {
	if prog == nil {
		return nil, fmt.Errorf("driver: nil program")
	}
	if sink == nil {
		sink = pipeline.FuncSink(nil)
	}
	sum := &Summary{Funcs: make([]FuncResult, len(prog.Funcs)), Timer: observ.NewTimer()}
	if len(prog.Funcs) == 0 {
		return sum, nil
	}

	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeDriver, trace.Site{Parent: trace.ParentSpan(ctx)}, "analyze")
	ctx = trace.WithParentSpan(ctx, span.ID())
	act := trace.ActivityFrom(ctx)
	act.Queue(len(prog.Funcs))

	var dumper borrowck.DumpFunc
	if cfg.Dump.Enabled {
		dumper = dump.NewWriter(cfg.Dump.Dir).Write
	}

	for _, fn := range prog.Funcs {
		sink.OnEvent(pipeline.Event{Func: fn.Name(), Stage: pipeline.StageAnalyze, Status: pipeline.StatusQueued})
	}

	jobs := cfg.Analysis.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	// Results are written by index, one goroutine per slot.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(prog.Funcs)))
	for i, fn := range prog.Funcs {
		i, fn := i, fn
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			act.Start()
			defer act.Finish()
			idx := sum.Timer.Begin("analyze " + fn.Name())
			res, err := analyzeOne(gctx, fn, cfg, dumper, sink)
			sum.Funcs[i] = res
			sum.Timer.End(idx, string(res.Status()))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		span.End("canceled")
		return nil, err
	}

	for i := range sum.Funcs {
		sum.Timings.Add(pipeline.StageValidate, sum.Funcs[i].Validate)
		sum.Timings.Add(pipeline.StageAnalyze, sum.Funcs[i].Analyze)
	}
	span.With("funcs", fmt.Sprint(len(sum.Funcs))).
		With("failed", fmt.Sprint(sum.Failed())).
		End(fmt.Sprintf("%d stalled", sum.Stalled()))
	return sum, nil
}

// analyzeOne returns a non-nil error only for cancellation.
func analyzeOne(ctx context.Context, fn *program.Function, cfg config.Config, dumper borrowck.DumpFunc, sink pipeline.ProgressSink) (FuncResult, error) {
	out := FuncResult{Name: fn.Name()}
	emit := func(evt pipeline.Event) {
		evt.Func = fn.Name()
		sink.OnEvent(evt)
	}

	if cfg.Analysis.Validate {
		start := time.Now()
		err := mir.Validate(fn.Func)
		out.Validate = time.Since(start)
		if err != nil {
			out.Err = err
			emit(pipeline.Event{Stage: pipeline.StageValidate, Status: pipeline.StatusError, Err: err, Elapsed: out.Validate})
			return out, nil
		}
	}

	f := fn.Func
	if cfg.Analysis.SimplifyCFG {
		f = mir.Simplified(f)
	}
	acx := borrowck.NewContext(f)
	acx.MaxIterations = cfg.Analysis.MaxIterations
	if fn.MaxIterations > 0 {
		acx.MaxIterations = fn.MaxIterations
	}
	acx.Dump = dumper

	act := trace.ActivityFrom(ctx)
	obs := borrowck.ObserverFunc(func(name string, st borrowck.IterationStat) {
		act.Iteration()
		emit(pipeline.Event{
			Stage:     pipeline.StageAnalyze,
			Status:    pipeline.StatusWorking,
			Iteration: st.Iteration,
			Conflicts: st.Conflicts,
			Elapsed:   st.Elapsed,
		})
	})

	emit(pipeline.Event{Stage: pipeline.StageAnalyze, Status: pipeline.StatusWorking})
	start := time.Now()
	res, err := borrowck.Run(ctx, acx, f, fn.Hypothesis.Clone(), borrowck.Defaults(fn.Constraints), obs)
	out.Analyze = time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return out, err
		}
		out.Err = err
		emit(pipeline.Event{Stage: pipeline.StageAnalyze, Status: pipeline.StatusError, Err: err, Elapsed: out.Analyze})
		return out, nil
	}
	out.Result = res
	out.Err = res.Err()
	emit(pipeline.Event{
		Stage:     pipeline.StageAnalyze,
		Status:    out.Status(),
		Iteration: res.Iterations,
		Conflicts: res.Conflicts,
		Err:       out.Err,
		Elapsed:   out.Analyze,
	})
	return out, nil
}
