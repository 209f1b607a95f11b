package borrowck

import (
	"fmt"

	"ptrperm/internal/facts"
	"ptrperm/internal/mir"
	"ptrperm/internal/perm"
)

// factSet is everything one iteration knows about the function. It is
// rebuilt from scratch whenever the hypothesis changes.
type factSet struct {
	all   *facts.AllFacts
	maps  *facts.Maps
	input *facts.LoanInput
	loans facts.LoanIndex
}

// assemble builds the complete fact set for f under h.
func assemble(acx *Context, f *mir.Func, h perm.Hypothesis, c Collaborators) (*factSet, error) {
	fs := &factSet{all: &facts.AllFacts{}, maps: facts.NewMaps()}

	addCFGEdges(f, fs.all, fs.maps)
	addInitialMoves(f, fs.all, fs.maps)
	fs.input = labelLocals(acx, f, h, fs.all, fs.maps)

	loans, err := c.Loans.GenerateLoans(fs.input, fs.all, fs.maps)
	if err != nil {
		return nil, fmt.Errorf("loan generation: %w", err)
	}
	if loans == nil {
		loans = make(facts.LoanIndex)
	}
	fs.loans = loans

	if err := c.DefUse.LoanInvalidations(f, fs.loans, fs.all, fs.maps); err != nil {
		return nil, fmt.Errorf("loan invalidations: %w", err)
	}
	if err := c.DefUse.DefUse(f, fs.all, fs.maps); err != nil {
		return nil, fmt.Errorf("def-use: %w", err)
	}

	if missing := fs.all.Missing(); missing != 0 {
		return nil, &Error{
			Kind:    KindPartialFacts,
			Func:    f.Name,
			Loan:    facts.NoLoan,
			Missing: missing,
			Msg:     "fact groups were not produced",
		}
	}
	return fs, nil
}

// addCFGEdges allocates Start and Mid points for every statement and
// terminator of the reachable blocks, in block order, and links them:
// Start(i)->Mid(i)->Start(i+1), and the terminator's Mid to Start(0) of every
// successor.
func addCFGEdges(f *mir.Func, all *facts.AllFacts, maps *facts.Maps) {
	reachable := mir.Reachable(f)
	for i := range f.Blocks {
		if !reachable[i] {
			continue
		}
		bb := &f.Blocks[i]
		for idx := range bb.Stmts {
			start := maps.Point(bb.ID, idx, facts.Start)
			mid := maps.Point(bb.ID, idx, facts.Mid)
			next := maps.Point(bb.ID, idx+1, facts.Start)
			all.CFGEdge = append(all.CFGEdge,
				facts.Edge{From: start, To: mid},
				facts.Edge{From: mid, To: next})
		}
		termIdx := len(bb.Stmts)
		termStart := maps.Point(bb.ID, termIdx, facts.Start)
		termMid := maps.Point(bb.ID, termIdx, facts.Mid)
		all.CFGEdge = append(all.CFGEdge, facts.Edge{From: termStart, To: termMid})
		for _, succ := range bb.Term.Successors() {
			all.CFGEdge = append(all.CFGEdge, facts.Edge{From: termMid, To: maps.Point(succ, 0, facts.Start)})
		}
	}
	all.Mark(facts.GroupCFG)
}

// addInitialMoves marks every non-parameter local as moved at the entry
// point: such storage starts out uninitialized.
func addInitialMoves(f *mir.Func, all *facts.AllFacts, maps *facts.Maps) {
	entry := maps.Point(f.Entry, 0, facts.Start)
	for i := range f.Locals {
		local := mir.LocalID(i)
		if f.LocalKind(local) == mir.LocalArg {
			continue
		}
		path := maps.Path(all, mir.LocalPlace(local))
		all.PathMovedAtBase = append(all.PathMovedAtBase, facts.PathPoint{Path: path, Point: entry})
	}
	all.Mark(facts.GroupInitialMoves)
}

// solve runs the solver. Conflicts are never adjusted here.
func solve(s Solver, all *facts.AllFacts) (*facts.Output, error) {
	out, err := s.Compute(all)
	if err != nil {
		return nil, fmt.Errorf("solver: %w", err)
	}
	if out == nil {
		out = facts.NewOutput()
	}
	return out, nil
}
