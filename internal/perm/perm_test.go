package perm

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPermissionSetString(t *testing.T) {
	tests := []struct {
		in   PermissionSet
		want string
	}{
		{None, "{}"},
		{Read | Write, "READ|WRITE"},
		{Unique | OffsetSub, "UNIQUE|OFFSET_SUB"},
		{Read | 0x100, "READ|0x100"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", uint16(tt.in), got, tt.want)
		}
	}
}

func TestParsePermissionSet(t *testing.T) {
	for in, want := range map[string]PermissionSet{
		"":                      None,
		"{}":                    None,
		"read | write":          Read | Write,
		"UNIQUE|LINEAR":         Unique | Linear,
		"OFFSET_ADD|OFFSET_SUB": OffsetAdd | OffsetSub,
	} {
		got, err := ParsePermissionSet(in)
		if err != nil {
			t.Fatalf("ParsePermissionSet(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParsePermissionSet(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParsePermissionSet("READ|FREE"); err == nil {
		t.Errorf("expected error for unknown permission")
	}
}

func TestSetAlgebra(t *testing.T) {
	s := Read | Write | Unique
	if !s.Contains(Read|Unique) || s.Contains(Linear) {
		t.Errorf("Contains on %v", s)
	}
	if got := s.Remove(Unique); got != Read|Write {
		t.Errorf("Remove = %v", got)
	}
	if !(Read).SubsetOf(s) || s.SubsetOf(Read) {
		t.Errorf("SubsetOf on %v", s)
	}
}

func TestHypothesisOnlyWeakens(t *testing.T) {
	h := NewHypothesis(2, Read|Write|Unique)
	if h.Len() != 2 || h.Get(NoPointerID) != None {
		t.Fatalf("hypothesis = %v", h)
	}
	snapshot := h.Clone()

	if !h.Drop(2, Unique) {
		t.Errorf("first drop reported no change")
	}
	if h.Drop(2, Unique) {
		t.Errorf("second drop reported a change")
	}
	if h.Drop(NoPointerID, Read) || h.Drop(7, Read) {
		t.Errorf("drop on invalid id reported a change")
	}
	if got := h.Get(2); got != Read|Write {
		t.Errorf("ptr2 = %v, want READ|WRITE", got)
	}
	if snapshot.Get(2) != Read|Write|Unique {
		t.Errorf("clone shares storage with the original")
	}
	if diff := cmp.Diff([]PointerID{1, 2}, h.IDs()); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}
	if NewHypothesis(0, All).IDs() != nil {
		t.Errorf("empty hypothesis has ids")
	}
}
