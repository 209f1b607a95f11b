package typecheck_test

import (
	"testing"

	"ptrperm/internal/borrowck/typecheck"
	"ptrperm/internal/facts"
	"ptrperm/internal/lty"
	"ptrperm/internal/mir"
	"ptrperm/internal/perm"
	"ptrperm/internal/testkit"
)

// labelAll gives every pointer node a fresh origin and the permission
// `perms` for its identity.
func labelAll(f *mir.Func, maps *facts.Maps, perms map[perm.PointerID]perm.PermissionSet) *facts.LoanInput {
	in := &facts.LoanInput{Func: f}
	for i := range f.Locals {
		in.LocalTys = append(in.LocalTys, lty.Relabel(f.Locals[i].Ty, func(n *lty.Type) facts.Label {
			l := facts.Label{Origin: facts.NoOrigin, Perm: perms[n.Label]}
			if n.IsPointer() {
				l.Origin = maps.Origin()
			}
			return l
		}))
		in.AddrOfPerm = append(in.AddrOfPerm, perms[f.Locals[i].AddrOf])
	}
	return in
}

func TestGenerateLoanKinds(t *testing.T) {
	b := testkit.NewFunc("kinds", 0)
	b.Local("", "()", perm.NoPointerID)
	x := b.Local("x", "i32", 1)
	y := b.Local("y", "i32", 2)
	s := b.Local("s", "(i32, i32)", 3)
	r := b.Local("r", "&#4 i32", perm.NoPointerID)
	p := b.Local("p", "*mut#5 i32", perm.NoPointerID)
	q := b.Local("q", "*mut#6 i32", perm.NoPointerID)
	bb := b.Block()
	b.Assign(bb, testkit.Place(r), testkit.Ref(testkit.Place(x), false)).
		Assign(bb, testkit.Place(p), testkit.AddrOf(testkit.Place(y), true)).
		Assign(bb, testkit.Place(q), testkit.AddrOf(testkit.Field(s, 0), true)).
		Assign(bb, testkit.Place(p), testkit.Use(testkit.Copy(testkit.Place(q)))).
		Return(bb)
	f := b.Func()

	maps := facts.NewMaps()
	all := &facts.AllFacts{}
	in := labelAll(f, maps, map[perm.PointerID]perm.PermissionSet{
		1: perm.Read,
		2: perm.Read | perm.Unique,
		6: perm.Unique,
	})
	loans, err := typecheck.Generator{}.GenerateLoans(in, all, maps)
	if err != nil {
		t.Fatalf("GenerateLoans: %v", err)
	}
	if all.Groups&facts.GroupLoans == 0 {
		t.Errorf("loan group not marked")
	}
	if got := len(all.LoanIssuedAt); got != 3 {
		t.Fatalf("loans issued = %d, want 3", got)
	}

	want := map[mir.LocalID]facts.LoanKind{x: facts.LoanShared, y: facts.LoanUnique, s: facts.LoanUnique}
	for local, kind := range want {
		recs := loans[local]
		if len(recs) != 1 || recs[0].Kind != kind {
			t.Errorf("loans on %s = %+v, want one %s loan", f.LocalName(local), recs, kind)
		}
	}
	if place := loans[s][0].Place; len(place.Proj) != 1 {
		t.Errorf("projected loan place = %s", mir.FormatPlace(place))
	}

	// three borrow subsets plus the q -> p copy
	if got := len(all.SubsetBase); got != 4 {
		t.Errorf("subset_base = %d, want 4", got)
	}
	copyRel := all.SubsetBase[3]
	if copyRel.Sub != in.LocalTys[q].Label.Origin || copyRel.Super != in.LocalTys[p].Label.Origin {
		t.Errorf("copy relation = %+v", copyRel)
	}
	for _, li := range all.LoanIssuedAt {
		key, _ := maps.PointKey(li.Point)
		if key.Sub != facts.Mid {
			t.Errorf("loan %s issued at %s", li.Loan, key)
		}
	}
}

func TestGenerateLoansBadProjection(t *testing.T) {
	b := testkit.NewFunc("bad", 0)
	b.Local("", "()", perm.NoPointerID)
	x := b.Local("x", "i32", 1)
	p := b.Local("p", "*mut#2 i32", perm.NoPointerID)
	bb := b.Block()
	b.Assign(bb, testkit.Place(p), testkit.AddrOf(testkit.Deref(x), true)).Return(bb)
	f := b.Func()

	maps := facts.NewMaps()
	_, err := typecheck.Generator{}.GenerateLoans(labelAll(f, maps, nil), &facts.AllFacts{}, maps)
	if err == nil {
		t.Fatal("deref of an integer must fail")
	}
}

func TestPlaceTy(t *testing.T) {
	tys := []*facts.LTy{
		lty.Relabel(lty.MustParse("(*mut#1 [i32; 4], bool)"), func(*lty.Type) facts.Label {
			return facts.Label{Origin: facts.NoOrigin}
		}),
	}
	place := mir.Place{Local: 0, Proj: []mir.PlaceProj{
		{Kind: mir.PlaceProjField, FieldIdx: 0},
		{Kind: mir.PlaceProjDeref},
		{Kind: mir.PlaceProjIndex, IndexLocal: 0},
	}}
	ty, err := typecheck.PlaceTy(tys, place)
	if err != nil {
		t.Fatalf("PlaceTy: %v", err)
	}
	if ty.Kind != lty.KindInt {
		t.Errorf("kind = %s, want int", ty.Kind)
	}
	if _, err := typecheck.PlaceTy(tys, mir.Place{Local: 3}); err == nil {
		t.Errorf("unknown local accepted")
	}
}
