package borrowck

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"ptrperm/internal/dataflow"
	"ptrperm/internal/facts"
	"ptrperm/internal/mir"
	"ptrperm/internal/perm"
	"ptrperm/internal/testkit"
)

// diamondFunc has two arguments, two temporaries, a branch and an
// unreachable block.
func diamondFunc() *mir.Func {
	b := testkit.NewFunc("diamond", 2)
	b.Local("", "i32", 1)
	a := b.Local("a", "&mut#2 i32", 3)
	c := b.Local("c", "bool", 4)
	t1 := b.Temp("*const#5 i32", 6)
	t2 := b.Temp("(*mut#7 i32, i32)", 8)
	bb0, bb1, bb2, bb3, dead := b.Block(), b.Block(), b.Block(), b.Block(), b.Block()
	b.StorageLive(bb0, t1).
		Assign(bb0, testkit.Place(t1), testkit.Cast(testkit.Copy(testkit.Place(a)), "*const i32")).
		Switch(bb0, testkit.Copy(testkit.Place(c)), bb2, bb1)
	b.Assign(bb1, testkit.Place(0), testkit.Use(testkit.Copy(testkit.Deref(t1)))).Goto(bb1, bb3)
	b.Nop(bb2).Assign(bb2, testkit.Place(0), testkit.Use(testkit.Const("0"))).Nop(bb2).Goto(bb2, bb3)
	b.StorageDead(bb3, t1).Return(bb3)
	b.Assign(dead, testkit.Field(t2, 1), testkit.Use(testkit.Const("1"))).Return(dead)
	return b.Func()
}

func TestAssemblePointNumbering(t *testing.T) {
	f := diamondFunc()
	fs, err := assemble(NewContext(f), f, perm.NewHypothesis(8, perm.All), Defaults(dataflow.New()))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if err := testkit.CheckFactInvariants(f, fs.all, fs.maps); err != nil {
		t.Fatalf("invariants: %v", err)
	}
	// 2n+2 per reachable block: bb0 (2 stmts), bb1 (1), bb2 (3), bb3 (1)
	if got, want := fs.maps.NumPoints(), 6+4+8+4; got != want {
		t.Errorf("points = %d, want %d", got, want)
	}
	// chain edges per block plus one edge per successor
	if got, want := len(fs.all.CFGEdge), (5+2)+(3+1)+(7+1)+(3+0); got != want {
		t.Errorf("edges = %d, want %d", got, want)
	}
	if fs.all.Missing() != 0 {
		t.Errorf("missing groups: %s", fs.all.Missing())
	}
}

func TestAssembleEntryMoves(t *testing.T) {
	f := diamondFunc()
	fs, err := assemble(NewContext(f), f, perm.NewHypothesis(8, perm.All), Defaults(dataflow.New()))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	entry, ok := fs.maps.LookupPoint(facts.PointKey{Block: f.Entry, Index: 0, Sub: facts.Start})
	if !ok {
		t.Fatal("entry point not allocated")
	}
	var moved []mir.LocalID
	for _, pp := range fs.all.PathMovedAtBase {
		if pp.Point != entry {
			continue
		}
		place, ok := fs.maps.PathPlace(pp.Path)
		if !ok {
			t.Fatalf("unknown path %s", pp.Path)
		}
		l, bare := place.AsLocal()
		if !bare {
			t.Errorf("projected path %s moved at entry", mir.FormatPlace(place))
		}
		moved = append(moved, l)
	}
	// return place plus the two temporaries; arguments 1 and 2 are exempt
	if diff := cmp.Diff([]mir.LocalID{0, 3, 4}, moved); diff != "" {
		t.Errorf("entry moves (-want +got):\n%s", diff)
	}
}

func TestAssignOriginsLabelsPointers(t *testing.T) {
	f := diamondFunc()
	h := perm.NewHypothesis(8, perm.Read)
	h[7] = perm.Read | perm.Unique
	all := &facts.AllFacts{}
	maps := facts.NewMaps()
	in := labelLocals(NewContext(f), f, h, all, maps)

	// a, t1 and t2 carry one pointer each
	if got := maps.NumOrigins(); got != 3 {
		t.Errorf("origins = %d, want 3", got)
	}
	if got := len(all.UseOfVarDerefsOrigin); got != 3 {
		t.Errorf("use_of_var_derefs_origin = %d, want 3", got)
	}
	t2 := in.LocalTys[4]
	if t2.Label.HasOrigin() {
		t.Errorf("tuple node got an origin")
	}
	ptr := t2.Args[0]
	if !ptr.Label.HasOrigin() || ptr.Label.Perm != perm.Read|perm.Unique {
		t.Errorf("pointer label = %s", ptr.Label)
	}
	if ptr.Args[0].Label.HasOrigin() || ptr.Args[0].Label.Perm != perm.None {
		t.Errorf("pointee label = %s", ptr.Args[0].Label)
	}
	if got := in.AddrOfPerm[4]; got != perm.Read {
		t.Errorf("addr_of(t2) = %s, want READ", got)
	}

	// a second labeling allocates fresh origins
	again := facts.NewMaps()
	labelLocals(NewContext(f), f, h, &facts.AllFacts{}, again)
	if again.NumOrigins() != maps.NumOrigins() {
		t.Errorf("relabeling is not deterministic: %d vs %d origins", again.NumOrigins(), maps.NumOrigins())
	}
}
