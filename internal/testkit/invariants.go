package testkit

import (
	"fmt"

	"ptrperm/internal/facts"
	"ptrperm/internal/mir"
)

// CheckFactInvariants runs the structural checks every assembled fact set
// must pass:
// 1) every cfg_edge endpoint is an allocated point
// 2) every reachable block owns exactly 2n+2 points (n statements)
// 3) each block chains Start(i)->Mid(i)->Start(i+1) and fans the terminator's
// Mid out to every successor's Start(0)
// 4) each loan is issued exactly once, at a Mid point
// 5) every origin mentioned is allocated
func CheckFactInvariants(f *mir.Func, all *facts.AllFacts, maps *facts.Maps) error {
	if f == nil || all == nil || maps == nil {
		return fmt.Errorf("nil function, facts or maps")
	}

	// 1) edges
	edges := make(map[facts.Edge]bool, len(all.CFGEdge))
	for _, e := range all.CFGEdge {
		if _, ok := maps.PointKey(e.From); !ok {
			return fmt.Errorf("edge %s->%s: unknown source", e.From, e.To)
		}
		if _, ok := maps.PointKey(e.To); !ok {
			return fmt.Errorf("edge %s->%s: unknown target", e.From, e.To)
		}
		edges[e] = true
	}

	// 2) points per block
	perBlock := make(map[mir.BlockID]int)
	for p := 0; p < maps.NumPoints(); p++ {
		key, _ := maps.PointKey(facts.Point(p))
		perBlock[key.Block]++
	}
	reachable := mir.Reachable(f)
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		want := 0
		if reachable[i] {
			want = 2*len(bb.Stmts) + 2
		}
		if got := perBlock[bb.ID]; got != want {
			return fmt.Errorf("bb%d: %d points, want %d", bb.ID, got, want)
		}
	}

	// 3) edge shape
	for i := range f.Blocks {
		if !reachable[i] {
			continue
		}
		bb := &f.Blocks[i]
		n := len(bb.Stmts)
		for idx := 0; idx <= n; idx++ {
			start, okS := maps.LookupPoint(facts.PointKey{Block: bb.ID, Index: idx, Sub: facts.Start})
			mid, okM := maps.LookupPoint(facts.PointKey{Block: bb.ID, Index: idx, Sub: facts.Mid})
			if !okS || !okM {
				return fmt.Errorf("bb%d[%d]: missing start or mid point", bb.ID, idx)
			}
			if !edges[facts.Edge{From: start, To: mid}] {
				return fmt.Errorf("bb%d[%d]: missing Start->Mid edge", bb.ID, idx)
			}
			if idx < n {
				next, _ := maps.LookupPoint(facts.PointKey{Block: bb.ID, Index: idx + 1, Sub: facts.Start})
				if !edges[facts.Edge{From: mid, To: next}] {
					return fmt.Errorf("bb%d[%d]: missing Mid->Start edge", bb.ID, idx)
				}
				continue
			}
			for _, succ := range bb.Term.Successors() {
				to, ok := maps.LookupPoint(facts.PointKey{Block: succ, Index: 0, Sub: facts.Start})
				if !ok || !edges[facts.Edge{From: mid, To: to}] {
					return fmt.Errorf("bb%d: missing edge to bb%d", bb.ID, succ)
				}
			}
		}
	}

	// 4) loans
	issued := make(map[facts.Loan]bool, len(all.LoanIssuedAt))
	for _, li := range all.LoanIssuedAt {
		if issued[li.Loan] {
			return fmt.Errorf("loan %s issued twice", li.Loan)
		}
		issued[li.Loan] = true
		key, ok := maps.PointKey(li.Point)
		if !ok || key.Sub != facts.Mid {
			return fmt.Errorf("loan %s issued at %s, want a Mid point", li.Loan, li.Point)
		}
	}

	// 5) origins
	checkOrigin := func(o facts.Origin) error {
		if o < 0 || int(o) >= maps.NumOrigins() {
			return fmt.Errorf("origin %s not allocated", o)
		}
		return nil
	}
	for _, li := range all.LoanIssuedAt {
		if err := checkOrigin(li.Origin); err != nil {
			return err
		}
	}
	for _, sb := range all.SubsetBase {
		if err := checkOrigin(sb.Sub); err != nil {
			return err
		}
		if err := checkOrigin(sb.Super); err != nil {
			return err
		}
	}
	for _, vo := range all.UseOfVarDerefsOrigin {
		if err := checkOrigin(vo.Origin); err != nil {
			return err
		}
	}
	return nil
}
