package facts

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"ptrperm/internal/mir"
)

func TestPointInterning(t *testing.T) {
	m := NewMaps()
	a := m.Point(0, 0, Start)
	b := m.Point(0, 0, Mid)
	if a == b {
		t.Fatalf("start and mid share point %v", a)
	}
	if again := m.Point(0, 0, Start); again != a {
		t.Errorf("re-interning gave %v, want %v", again, a)
	}
	if m.NumPoints() != 2 {
		t.Errorf("NumPoints = %d, want 2", m.NumPoints())
	}
	loc, ok := m.PointLocation(b)
	if !ok || loc != (mir.Location{Block: 0, Index: 0}) {
		t.Errorf("PointLocation(%v) = %v, %v", b, loc, ok)
	}
	if _, ok := m.PointKey(Point(9)); ok {
		t.Errorf("unknown point resolved")
	}
}

func TestFreshAtomsAreMonotonic(t *testing.T) {
	m := NewMaps()
	if m.Origin() != 0 || m.Origin() != 1 || m.NumOrigins() != 2 {
		t.Errorf("origins not allocated densely")
	}
	if m.Loan() != 0 || m.Loan() != 1 || m.NumLoans() != 2 {
		t.Errorf("loans not allocated densely")
	}
	if m.Variable(3) != Variable(3) {
		t.Errorf("variables are not the identity mapping")
	}
}

func TestPathRecordsStructure(t *testing.T) {
	m := NewMaps()
	all := &AllFacts{}
	field := mir.Place{Local: 1, Proj: []mir.PlaceProj{{Kind: mir.PlaceProjDeref}, {Kind: mir.PlaceProjField, FieldIdx: 0}}}

	leaf := m.Path(all, field)
	if m.Path(all, field) != leaf {
		t.Errorf("path not interned")
	}
	if m.NumPaths() != 3 {
		t.Fatalf("NumPaths = %d, want 3 (local, deref, field)", m.NumPaths())
	}
	root := m.Path(all, mir.LocalPlace(1))
	if diff := cmp.Diff([]PathVar{{Path: root, Var: 1}}, all.PathIsVar); diff != "" {
		t.Errorf("path_is_var (-want +got):\n%s", diff)
	}
	if len(all.ChildPath) != 2 || all.ChildPath[1].Child != leaf {
		t.Errorf("child_path = %v", all.ChildPath)
	}
	place, ok := m.PathPlace(leaf)
	if !ok || place.Key() != field.Key() {
		t.Errorf("PathPlace(%v) = %v", leaf, place)
	}
}

func TestGroupsAndOutput(t *testing.T) {
	all := &AllFacts{}
	all.Mark(GroupCFG)
	all.Mark(GroupLoans)
	if got := all.Missing().String(); got != "initial-moves,origins,invalidations,def-use" {
		t.Errorf("Missing = %q", got)
	}
	if Group(0).String() != "none" {
		t.Errorf("empty group string")
	}

	out := NewOutput()
	out.Add(4, 1)
	out.Add(4, 1)
	out.Add(4, 0)
	out.Add(2, 1)
	if out.Count() != 3 || out.Len() != 2 {
		t.Errorf("count = %d, len = %d", out.Count(), out.Len())
	}
	if diff := cmp.Diff([]Point{2, 4}, out.Points()); diff != "" {
		t.Errorf("points (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Loan{0, 1}, out.Loans(4)); diff != "" {
		t.Errorf("loans (-want +got):\n%s", diff)
	}
	var nilOut *Output
	if nilOut.Count() != 0 || nilOut.Points() != nil {
		t.Errorf("nil output not empty")
	}
}
