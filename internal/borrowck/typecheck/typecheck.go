// Package typecheck generates loans and subset facts for the borrows and
// pointer copies of a function.
package typecheck

import (
	"fmt"

	"ptrperm/internal/facts"
	"ptrperm/internal/mir"
	"ptrperm/internal/perm"
)

// Generator is the default loan generator.
type Generator struct{}

// GenerateLoans walks every reachable statement of in.Func. Each Ref or
// AddressOf issues a fresh loan in a fresh origin that flows into the
// destination's root origin; copies and casts relate aligned pointer origins.
func (Generator) GenerateLoans(in *facts.LoanInput, all *facts.AllFacts, maps *facts.Maps) (facts.LoanIndex, error) {
	if in == nil || in.Func == nil {
		return nil, fmt.Errorf("typecheck: nil input")
	}
	tc := &checker{in: in, all: all, maps: maps, loans: make(facts.LoanIndex)}
	f := in.Func
	reachable := mir.Reachable(f)
	for i := range f.Blocks {
		if !reachable[i] {
			continue
		}
		bb := &f.Blocks[i]
		for idx := range bb.Stmts {
			if err := tc.visitStmt(bb.ID, idx, &bb.Stmts[idx]); err != nil {
				return nil, fmt.Errorf("typecheck %s at %s: %w", f.Name, mir.Location{Block: bb.ID, Index: idx}, err)
			}
		}
	}
	all.Mark(facts.GroupLoans)
	return tc.loans, nil
}

type checker struct {
	in    *facts.LoanInput
	all   *facts.AllFacts
	maps  *facts.Maps
	loans facts.LoanIndex
}

func (tc *checker) visitStmt(bb mir.BlockID, idx int, st *mir.Stmt) error {
	if st.Kind != mir.StmtAssign {
		return nil
	}
	mid := tc.maps.Point(bb, idx, facts.Mid)
	dst, err := tc.placeTy(st.Assign.Dst)
	if err != nil {
		return err
	}
	rv := &st.Assign.Src
	switch rv.Kind {
	case mir.RValueRef, mir.RValueAddressOf:
		return tc.borrow(rv, dst, mid)
	case mir.RValueUse:
		return tc.relateOperand(&rv.Use, dst, mid)
	case mir.RValueCast:
		return tc.relateOperand(&rv.Cast.Value, dst, mid)
	case mir.RValueAggregate:
		if dst == nil {
			return nil
		}
		for i := range rv.Aggregate.Elems {
			if i >= len(dst.Args) {
				break
			}
			if err := tc.relateOperand(&rv.Aggregate.Elems[i], dst.Args[i], mid); err != nil {
				return err
			}
		}
	}
	return nil
}

func (tc *checker) borrow(rv *mir.RValue, dst *facts.LTy, mid facts.Point) error {
	place := rv.Borrow.Place
	if _, err := tc.placeTy(place); err != nil {
		return err
	}
	origin := tc.maps.Origin()
	loan := tc.maps.Loan()
	tc.all.LoanIssuedAt = append(tc.all.LoanIssuedAt, facts.LoanIssue{Origin: origin, Loan: loan, Point: mid})
	if dst != nil && dst.Label.HasOrigin() {
		tc.all.SubsetBase = append(tc.all.SubsetBase, facts.OriginPair{Sub: origin, Super: dst.Label.Origin, Point: mid})
	}

	kind := facts.LoanShared
	if rv.Kind == mir.RValueAddressOf {
		kind = facts.LoanRaw
	}
	if tc.borrowPerm(place, dst).Contains(perm.Unique) {
		kind = facts.LoanUnique
	}
	tc.loans.Add(place.Local, facts.LoanRecord{
		Loan:  loan,
		Path:  tc.maps.Path(tc.all, place),
		Place: place,
		Kind:  kind,
		Point: mid,
	})
	return nil
}

// borrowPerm is the permission hypothesized for the pointer a borrow creates.
// For a bare local that is the local's address-of permission; for projected
// places the destination pointer's label stands in.
func (tc *checker) borrowPerm(place mir.Place, dst *facts.LTy) perm.PermissionSet {
	if l, ok := place.AsLocal(); ok {
		if int(l) < len(tc.in.AddrOfPerm) {
			return tc.in.AddrOfPerm[l]
		}
		return perm.None
	}
	if dst != nil && dst.IsPointer() {
		return dst.Label.Perm
	}
	return perm.None
}

func (tc *checker) relateOperand(op *mir.Operand, dst *facts.LTy, mid facts.Point) error {
	if op.Kind == mir.OperandConst || dst == nil {
		return nil
	}
	src, err := tc.placeTy(op.Place)
	if err != nil {
		return err
	}
	tc.relate(src, dst, mid)
	return nil
}

// relate emits subset_base(src, dst) for every pair of pointer nodes found at
// the same position of both trees.
func (tc *checker) relate(src, dst *facts.LTy, mid facts.Point) {
	if src == nil || dst == nil {
		return
	}
	if src.Label.HasOrigin() && dst.Label.HasOrigin() {
		tc.all.SubsetBase = append(tc.all.SubsetBase, facts.OriginPair{Sub: src.Label.Origin, Super: dst.Label.Origin, Point: mid})
	}
	n := min(len(src.Args), len(dst.Args))
	for i := 0; i < n; i++ {
		tc.relate(src.Args[i], dst.Args[i], mid)
	}
}

// placeTy resolves the labeled type of place by following its projections.
func (tc *checker) placeTy(place mir.Place) (*facts.LTy, error) {
	return PlaceTy(tc.in.LocalTys, place)
}

// PlaceTy resolves the labeled type of place within tys, indexed by local.
func PlaceTy(tys []*facts.LTy, place mir.Place) (*facts.LTy, error) {
	if place.Local < 0 || int(place.Local) >= len(tys) {
		return nil, fmt.Errorf("place %s: unknown local", mir.FormatPlace(place))
	}
	ty := tys[place.Local]
	for _, proj := range place.Proj {
		if ty == nil {
			return nil, fmt.Errorf("place %s: projection on untyped value", mir.FormatPlace(place))
		}
		switch proj.Kind {
		case mir.PlaceProjDeref:
			if !ty.IsPointer() || len(ty.Args) == 0 {
				return nil, fmt.Errorf("place %s: deref of non-pointer %s", mir.FormatPlace(place), ty.Kind)
			}
			ty = ty.Args[0]
		case mir.PlaceProjField:
			if proj.FieldIdx < 0 || proj.FieldIdx >= len(ty.Args) {
				return nil, fmt.Errorf("place %s: no field %d", mir.FormatPlace(place), proj.FieldIdx)
			}
			ty = ty.Args[proj.FieldIdx]
		case mir.PlaceProjIndex:
			if len(ty.Args) == 0 {
				return nil, fmt.Errorf("place %s: index into %s", mir.FormatPlace(place), ty.Kind)
			}
			ty = ty.Args[0]
		}
	}
	return ty, nil
}
