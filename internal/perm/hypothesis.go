package perm

import (
	"fmt"

	"fortio.org/safecast"
)

// PointerID identifies one pointer-typed position within a function.
// ID 0 is reserved for "no pointer".
type PointerID uint32

// NoPointerID marks a type node that carries no pointer identity.
const NoPointerID PointerID = 0

// IsValid reports whether id names a pointer.
func (id PointerID) IsValid() bool { return id != NoPointerID }

// Index returns the slot of id in a Hypothesis.
func (id PointerID) Index() int { return int(id) }

func (id PointerID) String() string {
	if id == NoPointerID {
		return "ptr?"
	}
	return fmt.Sprintf("ptr%d", uint32(id))
}

// Hypothesis holds the current permission guess for every PointerID.
// Slot 0 belongs to NoPointerID and always stays empty.
type Hypothesis []PermissionSet

// NewHypothesis allocates a hypothesis for pointers 1..count, each starting
// with initial.
func NewHypothesis(count int, initial PermissionSet) Hypothesis {
	h := make(Hypothesis, count+1)
	for i := 1; i < len(h); i++ {
		h[i] = initial
	}
	return h
}

// Len reports the number of pointer slots excluding the sentinel.
func (h Hypothesis) Len() int {
	if len(h) == 0 {
		return 0
	}
	return len(h) - 1
}

// Get returns the permissions of id, or None for invalid or unknown ids.
func (h Hypothesis) Get(id PointerID) PermissionSet {
	if !id.IsValid() || id.Index() >= len(h) {
		return None
	}
	return h[id.Index()]
}

// Drop removes bits from id and reports whether anything was removed.
func (h Hypothesis) Drop(id PointerID, bits PermissionSet) bool {
	if !id.IsValid() || id.Index() >= len(h) {
		return false
	}
	before := h[id.Index()]
	after := before.Remove(bits)
	h[id.Index()] = after
	return after != before
}

// Clone returns an independent copy.
func (h Hypothesis) Clone() Hypothesis {
	out := make(Hypothesis, len(h))
	copy(out, h)
	return out
}

// IDs lists every valid PointerID in ascending order.
func (h Hypothesis) IDs() []PointerID {
	if len(h) <= 1 {
		return nil
	}
	out := make([]PointerID, 0, len(h)-1)
	for i := 1; i < len(h); i++ {
		id, err := safecast.Conv[uint32](i)
		if err != nil {
			panic(fmt.Errorf("pointer id overflow: %w", err))
		}
		out = append(out, PointerID(id))
	}
	return out
}
