package dataflow

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"ptrperm/internal/perm"
)

func TestPropagateSubsetChain(t *testing.T) {
	h := perm.NewHypothesis(3, perm.Read|perm.Write|perm.Unique)
	h.Drop(3, perm.Unique)

	dc := New()
	dc.AddSubset(1, 2)
	dc.AddSubset(2, 3)

	if !dc.Propagate(h) {
		t.Fatal("Propagate reported no change")
	}
	want := perm.Hypothesis{perm.None, perm.Read | perm.Write, perm.Read | perm.Write, perm.Read | perm.Write}
	if diff := cmp.Diff(want, h); diff != "" {
		t.Errorf("hypothesis mismatch (-want +got):\n%s", diff)
	}
	if dc.Propagate(h) {
		t.Errorf("second Propagate changed an already consistent hypothesis")
	}
}

func TestPropagateSubsetExceptKeepsMaskedBits(t *testing.T) {
	h := perm.NewHypothesis(2, perm.Read|perm.Unique|perm.OffsetAdd)
	h.Drop(2, perm.Unique|perm.OffsetAdd)

	dc := New()
	dc.AddSubsetExcept(1, 2, perm.OffsetAdd)
	dc.Propagate(h)

	if got, want := h.Get(1), perm.Read|perm.OffsetAdd; got != want {
		t.Errorf("ptr1 = %s, want %s", got, want)
	}
}

func TestPropagateNoPerms(t *testing.T) {
	h := perm.NewHypothesis(1, perm.All)
	dc := New()
	dc.AddNoPerms(1, perm.Write|perm.Linear)
	if !dc.Propagate(h) {
		t.Fatal("expected change")
	}
	if h.Get(1).Contains(perm.Write) || h.Get(1).Contains(perm.Linear) {
		t.Errorf("ptr1 still holds masked bits: %s", h.Get(1))
	}
}

func TestPropagateNeverAddsBits(t *testing.T) {
	h := perm.NewHypothesis(2, perm.None)
	h[2] = perm.All

	dc := New()
	dc.AddSubset(1, 2)
	dc.AddSubset(2, 1)
	before := h.Clone()
	dc.Propagate(h)
	for _, id := range h.IDs() {
		if !h.Get(id).SubsetOf(before.Get(id)) {
			t.Errorf("%s gained bits: %s -> %s", id, before.Get(id), h.Get(id))
		}
	}
}

func TestNilConstraints(t *testing.T) {
	var dc *Constraints
	if dc.Propagate(perm.NewHypothesis(1, perm.All)) {
		t.Errorf("nil constraints must not change anything")
	}
	if dc.Len() != 0 {
		t.Errorf("nil Len = %d", dc.Len())
	}
}
