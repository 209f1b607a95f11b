package defuse

import (
	"ptrperm/internal/facts"
	"ptrperm/internal/mir"
)

// Generator is the default def-use collaborator.
type Generator struct{}

// visit calls fn for every access of every reachable statement and
// terminator, in block order.
func visit(f *mir.Func, fn func(loc mir.Location, acc Access)) {
	reachable := mir.Reachable(f)
	for i := range f.Blocks {
		if !reachable[i] {
			continue
		}
		bb := &f.Blocks[i]
		for idx := range bb.Stmts {
			loc := mir.Location{Block: bb.ID, Index: idx}
			for _, acc := range StmtAccesses(&bb.Stmts[idx]) {
				fn(loc, acc)
			}
		}
		loc := mir.Location{Block: bb.ID, Index: len(bb.Stmts)}
		for _, acc := range TermAccesses(&bb.Term) {
			fn(loc, acc)
		}
	}
}

// DefUse records var_defined_at, var_used_at and var_dropped_at together
// with the path assignment, move and access facts, all at Mid points.
func (Generator) DefUse(f *mir.Func, all *facts.AllFacts, maps *facts.Maps) error {
	visit(f, func(loc mir.Location, acc Access) {
		mid := maps.Point(loc.Block, loc.Index, facts.Mid)
		v := maps.Variable(acc.Place.Local)
		path := maps.Path(all, acc.Place)
		_, bare := acc.Place.AsLocal()
		switch acc.Kind {
		case AccessRead, AccessBorrow:
			all.VarUsedAt = append(all.VarUsedAt, facts.VarPoint{Var: v, Point: mid})
			all.PathAccessedAtBase = append(all.PathAccessedAtBase, facts.PathPoint{Path: path, Point: mid})
		case AccessMove:
			all.VarUsedAt = append(all.VarUsedAt, facts.VarPoint{Var: v, Point: mid})
			all.PathMovedAtBase = append(all.PathMovedAtBase, facts.PathPoint{Path: path, Point: mid})
		case AccessWrite:
			// A partial write keeps the rest of the local alive.
			if bare {
				all.VarDefinedAt = append(all.VarDefinedAt, facts.VarPoint{Var: v, Point: mid})
			} else {
				all.VarUsedAt = append(all.VarUsedAt, facts.VarPoint{Var: v, Point: mid})
			}
			all.PathAssignedAtBase = append(all.PathAssignedAtBase, facts.PathPoint{Path: path, Point: mid})
		case AccessDrop:
			all.VarDroppedAt = append(all.VarDroppedAt, facts.VarPoint{Var: v, Point: mid})
			all.PathAccessedAtBase = append(all.PathAccessedAtBase, facts.PathPoint{Path: path, Point: mid})
		case AccessStorageLive, AccessStorageDead:
			all.VarDefinedAt = append(all.VarDefinedAt, facts.VarPoint{Var: v, Point: mid})
		}
	})
	all.Mark(facts.GroupDefUse)
	return nil
}

// LoanInvalidations records, at the Start point of every access, the loans
// the access invalidates. Writes, moves, drops, storage-dead and unique
// borrows invalidate every overlapping loan; reads and shared or raw borrows
// invalidate only unique ones. Overwriting a bare local also kills the loans
// taken through a dereference of it.
func (Generator) LoanInvalidations(f *mir.Func, loans facts.LoanIndex, all *facts.AllFacts, maps *facts.Maps) error {
	visit(f, func(loc mir.Location, acc Access) {
		onLocal := loans[acc.Place.Local]
		if len(onLocal) == 0 {
			return
		}
		start := maps.Point(loc.Block, loc.Index, facts.Start)
		exclusive := isExclusive(acc, loc, loans, maps)
		for _, rec := range onLocal {
			if !Overlaps(rec.Place, acc.Place) {
				continue
			}
			if exclusive || rec.Kind == facts.LoanUnique {
				all.LoanInvalidatedAt = append(all.LoanInvalidatedAt, facts.LoanPoint{Loan: rec.Loan, Point: start})
			}
		}
		if _, bare := acc.Place.AsLocal(); bare && acc.Kind == AccessWrite {
			for _, rec := range onLocal {
				if rec.Place.HasDeref() {
					all.LoanKilledAt = append(all.LoanKilledAt, facts.LoanPoint{Loan: rec.Loan, Point: start})
				}
			}
		}
	})
	all.Mark(facts.GroupInvalidations)
	return nil
}

func isExclusive(acc Access, loc mir.Location, loans facts.LoanIndex, maps *facts.Maps) bool {
	switch acc.Kind {
	case AccessRead, AccessStorageLive:
		return false
	case AccessBorrow:
		mid, ok := maps.LookupPoint(facts.PointKey{Block: loc.Block, Index: loc.Index, Sub: facts.Mid})
		if !ok {
			return false
		}
		rec, ok := loans.IssuedAt(mid)
		return ok && rec.Kind == facts.LoanUnique
	}
	return true
}
