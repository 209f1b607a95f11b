package borrowck

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ptrperm/internal/facts"
	"ptrperm/internal/mir"
	"ptrperm/internal/perm"
	"ptrperm/internal/trace"
)

// Outcome is how a refinement run ended.
type Outcome uint8

const (
	// Converged means the last solver run reported no conflict.
	Converged Outcome = iota + 1
	// UnresolvedStall means conflicts remain but nothing could be weakened.
	UnresolvedStall
	// BudgetExhausted means the iteration cap was hit with conflicts left.
	BudgetExhausted
)

func (o Outcome) String() string {
	switch o {
	case Converged:
		return "converged"
	case UnresolvedStall:
		return "unresolved"
	case BudgetExhausted:
		return "budget-exhausted"
	default:
		return "unknown"
	}
}

// IterationStat summarizes one pass of the loop.
type IterationStat struct {
	Iteration      int
	Conflicts      int
	ConflictPoints int
	Points         int
	Origins        int
	Loans          int
	// Dropped counts UNIQUE bits removed by conflict resolution.
	Dropped    int
	Propagated bool
	Changed    bool
	// Hypothesis is a snapshot taken at the end of the pass.
	Hypothesis perm.Hypothesis
	Elapsed    time.Duration
}

// Observer is notified after every iteration.
type Observer interface {
	OnIteration(fn string, st IterationStat)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(fn string, st IterationStat)

func (f ObserverFunc) OnIteration(fn string, st IterationStat) { f(fn, st) }

// Result is the outcome of a refinement run. Hypothesis is the caller's
// slice, weakened in place.
type Result struct {
	Func       string
	Outcome    Outcome
	Iterations int
	// Conflicts is the (point, loan) conflict count of the last solver run.
	Conflicts  int
	Hypothesis perm.Hypothesis
	Report     *Report
	Stats      []IterationStat
}

// Err reports budget exhaustion as an error; the other outcomes are not
// failures.
func (r *Result) Err() error {
	if r == nil || r.Outcome != BudgetExhausted {
		return nil
	}
	return fmt.Errorf("function %s: %w after %d iterations (%d conflicts remain)", r.Func, ErrBudgetExhausted, r.Iterations, r.Conflicts)
}

// Run refines h for f until the solver reports no conflict, nothing more can
// be weakened, or the iteration cap is reached. h is only ever weakened.
// Errors are InternalInconsistency, UnsupportedCase, PartialFacts, collaborator
// failures and context cancellation; on error h keeps its last state.
func Run(ctx context.Context, acx *Context, f *mir.Func, h perm.Hypothesis, c Collaborators, obs Observer) (*Result, error) {
	if f == nil {
		return nil, fmt.Errorf("borrowck: nil function")
	}
	if acx == nil {
		acx = NewContext(f)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("borrowck %s: %w", f.Name, err)
	}

	r := &refiner{
		acx:    acx,
		f:      f,
		h:      h,
		c:      c,
		obs:    obs,
		tracer: trace.FromContext(ctx),
	}
	r.span = trace.Begin(r.tracer, trace.ScopeFunc, trace.Site{Func: f.Name, Parent: trace.ParentSpan(ctx)}, "borrowck")

	res, err := r.loop(ctx)
	if err != nil {
		r.span.End("error: " + err.Error())
		return nil, err
	}
	res.Report = BuildReport(acx, f, h)
	r.emitReport(res.Report)
	r.span.With("iterations", strconv.Itoa(res.Iterations)).
		With("conflicts", strconv.Itoa(res.Conflicts)).
		End(res.Outcome.String())
	return res, nil
}

type refiner struct {
	acx    *Context
	f      *mir.Func
	h      perm.Hypothesis
	c      Collaborators
	obs    Observer
	tracer trace.Tracer
	span   *trace.Span
}

func (r *refiner) loop(ctx context.Context) (*Result, error) {
	res := &Result{Func: r.f.Name, Hypothesis: r.h}
	limit := r.acx.maxIterations()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		started := time.Now()
		iter := trace.Begin(r.tracer, trace.ScopeIter, r.span.Site(res.Iterations+1), "iteration")

		fs, err := assemble(r.acx, r.f, r.h, r.c)
		if err != nil {
			iter.End("error")
			return nil, err
		}
		out, err := solve(r.c.Solver, fs.all)
		if err != nil {
			iter.End("error")
			return nil, fmt.Errorf("borrowck %s: %w", r.f.Name, err)
		}
		res.Iterations++
		res.Conflicts = out.Count()
		r.dump(res.Iterations, fs, out, iter.Site(0))

		st := IterationStat{
			Iteration:      res.Iterations,
			Conflicts:      out.Count(),
			ConflictPoints: out.Len(),
			Points:         fs.maps.NumPoints(),
			Origins:        fs.maps.NumOrigins(),
			Loans:          fs.maps.NumLoans(),
		}

		switch {
		case out.Count() == 0:
			res.Outcome = Converged
		case res.Iterations >= limit:
			res.Outcome = BudgetExhausted
			trace.Warn(r.tracer, iter.Site(0), "budget", "", map[string]string{
				"conflicts":  strconv.Itoa(res.Conflicts),
				"iterations": strconv.Itoa(res.Iterations),
			})
		default:
			dropped, err := r.resolve(fs, out, iter.Site(0))
			if err != nil {
				iter.End("error")
				return nil, err
			}
			st.Dropped = dropped
			// Propagation runs on every pass, even when no conflict dropped a bit.
			st.Propagated = r.c.Dataflow.Propagate(r.h)
			st.Changed = dropped > 0 || st.Propagated
			if !st.Changed {
				res.Outcome = UnresolvedStall
				trace.Warn(r.tracer, iter.Site(0), "unresolved", "", map[string]string{
					"conflicts":  strconv.Itoa(res.Conflicts),
					"iterations": strconv.Itoa(res.Iterations),
				})
			}
		}

		st.Hypothesis = r.h.Clone()
		st.Elapsed = time.Since(started)
		res.Stats = append(res.Stats, st)
		iter.With("conflicts", strconv.Itoa(st.Conflicts)).
			With("changed", strconv.FormatBool(st.Changed)).
			End("")
		if r.obs != nil {
			r.obs.OnIteration(r.f.Name, st)
		}
		if res.Outcome != 0 {
			return res, nil
		}
	}
}

func (r *refiner) dump(iteration int, fs *factSet, out *facts.Output, at trace.Site) {
	if r.acx.Dump == nil {
		return
	}
	if err := r.acx.Dump(r.f.Name, iteration, fs.all, fs.maps, out); err != nil {
		trace.Warn(r.tracer, at, "dump", err.Error(), nil)
	}
}

// resolve drops UNIQUE from the pointer behind every conflicting loan and
// returns how many bits were removed. Conflicts are visited in point then
// loan order.
func (r *refiner) resolve(fs *factSet, out *facts.Output, at trace.Site) (int, error) {
	dropped := 0
	for _, p := range out.Points() {
		for _, loan := range out.Loans(p) {
			local, ptr, err := r.blame(fs, loan)
			if err != nil {
				return dropped, err
			}
			if !r.h.Drop(ptr, perm.Unique) {
				continue
			}
			dropped++
			trace.Point(r.tracer, trace.ScopeIter, at, "drop-unique", mir.FormatPlace(mir.LocalPlace(local)), map[string]string{
				"loan":  loan.String(),
				"local": r.f.LocalName(local),
				"ptr":   ptr.String(),
			})
		}
	}
	return dropped, nil
}

// blame finds the local whose address the conflicting loan took and the
// pointer identity of that address.
func (r *refiner) blame(fs *factSet, loan facts.Loan) (mir.LocalID, perm.PointerID, error) {
	fail := func(kind ErrorKind, loc *mir.Location, stmt, format string, args ...any) error {
		e := &Error{Kind: kind, Func: r.f.Name, Loan: loan, Stmt: stmt, Msg: fmt.Sprintf(format, args...)}
		if loc != nil {
			e.Location, e.HasLocation = *loc, true
		}
		return e
	}

	point, ok := fs.all.IssuedAt(loan)
	if !ok {
		return mir.NoLocalID, perm.NoPointerID, fail(KindInternal, nil, "", "loan was never issued")
	}
	loc, ok := fs.maps.PointLocation(point)
	if !ok {
		return mir.NoLocalID, perm.NoPointerID, fail(KindInternal, nil, "", "issue point %s is unknown", point)
	}
	st, term, err := r.f.StmtAt(loc)
	if err != nil {
		return mir.NoLocalID, perm.NoPointerID, fail(KindInternal, &loc, "", "%v", err)
	}
	if term != nil {
		return mir.NoLocalID, perm.NoPointerID, fail(KindInternal, &loc, mir.FormatTerm(term), "loan was issued by a terminator")
	}
	text := mir.FormatStmt(st)
	if st.Kind != mir.StmtAssign {
		return mir.NoLocalID, perm.NoPointerID, fail(KindInternal, &loc, text, "loan was issued by a non-assign statement")
	}

	rv := &st.Assign.Src
	var place mir.Place
	switch rv.Kind {
	case mir.RValueRef, mir.RValueAddressOf:
		place = rv.Borrow.Place
	case mir.RValueUse, mir.RValueCast:
		return mir.NoLocalID, perm.NoPointerID, fail(KindUnsupported, &loc, text, "loan flows from a pointer copy (%s)", rv.Kind)
	case mir.RValueOpaque:
		return mir.NoLocalID, perm.NoPointerID, fail(KindUnsupported, &loc, text, "loan was issued by an unrecognized rvalue")
	default:
		return mir.NoLocalID, perm.NoPointerID, fail(KindInternal, &loc, text, "loan was issued by %s rvalue", rv.Kind)
	}

	local, ok := place.AsLocal()
	if !ok {
		return mir.NoLocalID, perm.NoPointerID, fail(KindUnsupported, &loc, text, "borrowed place %s is projected", mir.FormatPlace(place))
	}
	ptr := r.acx.addrOf(local)
	if !ptr.IsValid() {
		return mir.NoLocalID, perm.NoPointerID, fail(KindInternal, &loc, text, "local %s has no address pointer", r.f.LocalName(local))
	}
	return local, ptr, nil
}
