// Package polonius computes borrow conflicts from a fact set with a naive
// fixpoint over the location-sensitive subset and requires relations.
//
// The rules follow the naive variant of the Polonius analysis:
//
//	var_live_on_entry(V, P)      :- var_used_at(V, P).
//	var_live_on_entry(V, P)      :- var_live_on_entry(V, Q), cfg_edge(P, Q), !var_defined_at(V, P).
//	origin_live_on_entry(O, P)   :- var_live_on_entry(V, P), use_of_var_derefs_origin(V, O).
//	origin_live_on_entry(O, P)   :- universal_region(O).
//	subset(O1, O2, P)            :- subset_base(O1, O2, P).
//	subset(O1, O3, P)            :- subset(O1, O2, P), subset(O2, O3, P).
//	subset(O1, O2, Q)            :- subset(O1, O2, P), cfg_edge(P, Q), origin_live_on_entry(O1, Q), origin_live_on_entry(O2, Q).
//	requires(O, L, P)            :- loan_issued_at(O, L, P).
//	requires(O2, L, P)           :- requires(O1, L, P), subset(O1, O2, P).
//	requires(O, L, Q)            :- requires(O, L, P), !loan_killed_at(L, P), cfg_edge(P, Q), origin_live_on_entry(O, Q).
//	loan_live_at(L, P)           :- requires(O, L, P), origin_live_on_entry(O, P).
//	errors(L, P)                 :- loan_invalidated_at(L, P), loan_live_at(L, P).
//
// Drop liveness uses var_dropped_at and drop_of_var_derefs_origin the same
// way.
package polonius

import (
	"ptrperm/internal/facts"
)

// Naive is the default solver.
type Naive struct{}

// Compute runs the analysis over all and returns every (point, loan)
// conflict.
func (Naive) Compute(all *facts.AllFacts) (*facts.Output, error) {
	s := newSolver(all)
	s.computeLiveness()
	s.computeSubsets()
	s.computeRequires()
	return s.errors(), nil
}

type originPair struct {
	sub, super facts.Origin
}

type originLoan struct {
	origin facts.Origin
	loan   facts.Loan
}

type solver struct {
	all *facts.AllFacts

	numPoints  int
	numOrigins int
	succ       [][]facts.Point
	pred       [][]facts.Point

	// originLive[o][p] holds origin_live_on_entry.
	originLive [][]bool

	subset   []map[originPair]struct{}
	requires []map[originLoan]struct{}
	killed   map[facts.LoanPoint]bool
}

func newSolver(all *facts.AllFacts) *solver {
	s := &solver{all: all, killed: make(map[facts.LoanPoint]bool)}
	maxPoint := facts.Point(-1)
	maxOrigin := facts.Origin(-1)
	notePoint := func(p facts.Point) { maxPoint = max(maxPoint, p) }
	noteOrigin := func(o facts.Origin) { maxOrigin = max(maxOrigin, o) }
	for _, e := range all.CFGEdge {
		notePoint(e.From)
		notePoint(e.To)
	}
	for _, li := range all.LoanIssuedAt {
		notePoint(li.Point)
		noteOrigin(li.Origin)
	}
	for _, sb := range all.SubsetBase {
		notePoint(sb.Point)
		noteOrigin(sb.Sub)
		noteOrigin(sb.Super)
	}
	for _, lp := range all.LoanInvalidatedAt {
		notePoint(lp.Point)
	}
	for _, lp := range all.LoanKilledAt {
		notePoint(lp.Point)
		s.killed[lp] = true
	}
	for _, vp := range all.VarUsedAt {
		notePoint(vp.Point)
	}
	for _, vp := range all.VarDefinedAt {
		notePoint(vp.Point)
	}
	for _, vp := range all.VarDroppedAt {
		notePoint(vp.Point)
	}
	for _, vo := range all.UseOfVarDerefsOrigin {
		noteOrigin(vo.Origin)
	}
	for _, vo := range all.DropOfVarDerefsOrigin {
		noteOrigin(vo.Origin)
	}
	for _, o := range all.UniversalRegion {
		noteOrigin(o)
	}

	s.numPoints = int(maxPoint) + 1
	s.numOrigins = int(maxOrigin) + 1
	s.succ = make([][]facts.Point, s.numPoints)
	s.pred = make([][]facts.Point, s.numPoints)
	for _, e := range all.CFGEdge {
		s.succ[e.From] = append(s.succ[e.From], e.To)
		s.pred[e.To] = append(s.pred[e.To], e.From)
	}
	return s
}

// varLiveness propagates liveness backwards from every seed point until a
// defining point is reached.
func (s *solver) varLiveness(seeds []facts.VarPoint) map[facts.Variable][]bool {
	defined := make(map[facts.VarPoint]bool, len(s.all.VarDefinedAt))
	for _, vp := range s.all.VarDefinedAt {
		defined[vp] = true
	}
	live := make(map[facts.Variable][]bool)
	for _, seed := range seeds {
		bits := live[seed.Var]
		if bits == nil {
			bits = make([]bool, s.numPoints)
			live[seed.Var] = bits
		}
		if bits[seed.Point] {
			continue
		}
		bits[seed.Point] = true
		work := []facts.Point{seed.Point}
		for len(work) > 0 {
			q := work[len(work)-1]
			work = work[:len(work)-1]
			for _, p := range s.pred[q] {
				if bits[p] || defined[facts.VarPoint{Var: seed.Var, Point: p}] {
					continue
				}
				bits[p] = true
				work = append(work, p)
			}
		}
	}
	return live
}

func (s *solver) computeLiveness() {
	s.originLive = make([][]bool, s.numOrigins)
	mark := func(o facts.Origin, bits []bool) {
		if s.originLive[o] == nil {
			s.originLive[o] = make([]bool, s.numPoints)
		}
		for p, on := range bits {
			if on {
				s.originLive[o][p] = true
			}
		}
	}

	useLive := s.varLiveness(s.all.VarUsedAt)
	for _, vo := range s.all.UseOfVarDerefsOrigin {
		if bits := useLive[vo.Var]; bits != nil {
			mark(vo.Origin, bits)
		}
	}
	dropLive := s.varLiveness(s.all.VarDroppedAt)
	for _, vo := range s.all.DropOfVarDerefsOrigin {
		if bits := dropLive[vo.Var]; bits != nil {
			mark(vo.Origin, bits)
		}
	}
	everywhere := make([]bool, s.numPoints)
	for p := range everywhere {
		everywhere[p] = true
	}
	for _, o := range s.all.UniversalRegion {
		mark(o, everywhere)
	}
}

func (s *solver) live(o facts.Origin, p facts.Point) bool {
	return int(o) < len(s.originLive) && s.originLive[o] != nil && s.originLive[o][p]
}

func (s *solver) computeSubsets() {
	s.subset = make([]map[originPair]struct{}, s.numPoints)
	add := func(p facts.Point, pair originPair) bool {
		if s.subset[p] == nil {
			s.subset[p] = make(map[originPair]struct{})
		}
		if _, ok := s.subset[p][pair]; ok {
			return false
		}
		s.subset[p][pair] = struct{}{}
		return true
	}
	for _, sb := range s.all.SubsetBase {
		add(sb.Point, originPair{sb.Sub, sb.Super})
	}

	for changed := true; changed; {
		changed = false
		for p := 0; p < s.numPoints; p++ {
			pt := facts.Point(p)
			if s.closeSubsets(pt, add) {
				changed = true
			}
			for pair := range s.subset[pt] {
				for _, q := range s.succ[pt] {
					if s.live(pair.sub, q) && s.live(pair.super, q) && add(q, pair) {
						changed = true
					}
				}
			}
		}
	}
}

// closeSubsets makes the subset relation at p transitive.
func (s *solver) closeSubsets(p facts.Point, add func(facts.Point, originPair) bool) bool {
	grew := false
	for again := true; again; {
		again = false
		var fresh []originPair
		for a := range s.subset[p] {
			for b := range s.subset[p] {
				if a.super == b.sub {
					fresh = append(fresh, originPair{a.sub, b.super})
				}
			}
		}
		for _, pair := range fresh {
			if add(p, pair) {
				again, grew = true, true
			}
		}
	}
	return grew
}

func (s *solver) computeRequires() {
	s.requires = make([]map[originLoan]struct{}, s.numPoints)
	add := func(p facts.Point, ol originLoan) bool {
		if s.requires[p] == nil {
			s.requires[p] = make(map[originLoan]struct{})
		}
		if _, ok := s.requires[p][ol]; ok {
			return false
		}
		s.requires[p][ol] = struct{}{}
		return true
	}
	for _, li := range s.all.LoanIssuedAt {
		add(li.Point, originLoan{li.Origin, li.Loan})
	}

	for changed := true; changed; {
		changed = false
		for p := 0; p < s.numPoints; p++ {
			pt := facts.Point(p)
			for again := true; again; {
				again = false
				var fresh []originLoan
				for ol := range s.requires[pt] {
					for pair := range s.subset[pt] {
						if pair.sub == ol.origin {
							fresh = append(fresh, originLoan{pair.super, ol.loan})
						}
					}
				}
				for _, ol := range fresh {
					if add(pt, ol) {
						again, changed = true, true
					}
				}
			}
			for ol := range s.requires[pt] {
				if s.killed[facts.LoanPoint{Loan: ol.loan, Point: pt}] {
					continue
				}
				for _, q := range s.succ[pt] {
					if s.live(ol.origin, q) && add(q, ol) {
						changed = true
					}
				}
			}
		}
	}
}

func (s *solver) errors() *facts.Output {
	liveAt := make(map[facts.LoanPoint]bool)
	for p := 0; p < s.numPoints; p++ {
		pt := facts.Point(p)
		for ol := range s.requires[pt] {
			if s.live(ol.origin, pt) {
				liveAt[facts.LoanPoint{Loan: ol.loan, Point: pt}] = true
			}
		}
	}
	out := facts.NewOutput()
	for _, lp := range s.all.LoanInvalidatedAt {
		if liveAt[lp] {
			out.Add(lp.Point, lp.Loan)
		}
	}
	return out
}
