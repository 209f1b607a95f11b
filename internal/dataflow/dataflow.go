// Package dataflow keeps permission constraints derived from pointer
// subtyping and propagates hypothesis downgrades through them.
package dataflow

import (
	"fmt"

	"ptrperm/internal/perm"
)

// ConstraintKind enumerates constraint shapes.
type ConstraintKind uint8

const (
	// ConstraintSubset requires A's permissions to be a subset of B's.
	ConstraintSubset ConstraintKind = iota + 1
	// ConstraintSubsetExcept is ConstraintSubset ignoring the bits in Mask.
	ConstraintSubsetExcept
	// ConstraintNoPerms forbids A from holding any bit of Mask.
	ConstraintNoPerms
)

func (k ConstraintKind) String() string {
	switch k {
	case ConstraintSubset:
		return "subset"
	case ConstraintSubsetExcept:
		return "subset_except"
	case ConstraintNoPerms:
		return "no_perms"
	default:
		return "unknown"
	}
}

// Constraint relates the permissions of two pointers, or restricts one.
type Constraint struct {
	Kind ConstraintKind
	A    perm.PointerID
	B    perm.PointerID
	Mask perm.PermissionSet
}

func (c Constraint) String() string {
	switch c.Kind {
	case ConstraintSubset:
		return fmt.Sprintf("%s <= %s", c.A, c.B)
	case ConstraintSubsetExcept:
		return fmt.Sprintf("%s <= %s except %s", c.A, c.B, c.Mask)
	case ConstraintNoPerms:
		return fmt.Sprintf("%s has none of %s", c.A, c.Mask)
	default:
		return "?"
	}
}

// Constraints is an ordered constraint list.
type Constraints struct {
	list []Constraint
}

// New returns an empty constraint set.
func New() *Constraints {
	return &Constraints{}
}

// AddSubset records that a may only hold permissions b holds.
func (dc *Constraints) AddSubset(a, b perm.PointerID) {
	dc.list = append(dc.list, Constraint{Kind: ConstraintSubset, A: a, B: b})
}

// AddSubsetExcept records AddSubset(a, b) for bits outside mask.
func (dc *Constraints) AddSubsetExcept(a, b perm.PointerID, mask perm.PermissionSet) {
	dc.list = append(dc.list, Constraint{Kind: ConstraintSubsetExcept, A: a, B: b, Mask: mask})
}

// AddNoPerms records that a may hold none of mask.
func (dc *Constraints) AddNoPerms(a perm.PointerID, mask perm.PermissionSet) {
	dc.list = append(dc.list, Constraint{Kind: ConstraintNoPerms, A: a, Mask: mask})
}

// Add appends c as is.
func (dc *Constraints) Add(c Constraint) {
	dc.list = append(dc.list, c)
}

// Len reports the number of constraints.
func (dc *Constraints) Len() int {
	if dc == nil {
		return 0
	}
	return len(dc.list)
}

// All returns the constraints in insertion order.
func (dc *Constraints) All() []Constraint {
	if dc == nil {
		return nil
	}
	return dc.list
}

// Propagate removes from h every bit some constraint forbids, repeating
// until nothing changes. It only ever removes bits and reports whether it
// removed any.
func (dc *Constraints) Propagate(h perm.Hypothesis) bool {
	if dc == nil {
		return false
	}
	changed := false
	for {
		round := false
		for _, c := range dc.list {
			if dc.apply(c, h) {
				round = true
			}
		}
		if !round {
			return changed
		}
		changed = true
	}
}

func (dc *Constraints) apply(c Constraint, h perm.Hypothesis) bool {
	switch c.Kind {
	case ConstraintSubset:
		lacking := h.Get(c.A).Remove(h.Get(c.B))
		return h.Drop(c.A, lacking)
	case ConstraintSubsetExcept:
		lacking := h.Get(c.A).Remove(h.Get(c.B)).Remove(c.Mask)
		return h.Drop(c.A, lacking)
	case ConstraintNoPerms:
		return h.Drop(c.A, c.Mask)
	}
	return false
}
