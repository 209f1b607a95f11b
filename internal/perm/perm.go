// Package perm defines pointer permissions and the per-function permission
// hypothesis refined by the borrow checker.
package perm

import (
	"fmt"
	"strings"
)

// PermissionSet is the set of capabilities required of one pointer position.
type PermissionSet uint16

const (
	// Read means the pointee may be read through this pointer.
	Read PermissionSet = 1 << iota
	// Write means the pointee may be written through this pointer.
	Write
	// Unique means no other pointer aliases the pointee while this one is live.
	Unique
	// Linear means the pointer is the sole owner of the pointee.
	Linear
	// OffsetAdd means positive pointer arithmetic is applied to the pointer.
	OffsetAdd
	// OffsetSub means negative pointer arithmetic is applied to the pointer.
	OffsetSub
)

// None is the empty permission set.
const None PermissionSet = 0

// All is every known permission bit.
const All = Read | Write | Unique | Linear | OffsetAdd | OffsetSub

var permNames = [...]struct {
	bit  PermissionSet
	name string
}{
	{Read, "READ"},
	{Write, "WRITE"},
	{Unique, "UNIQUE"},
	{Linear, "LINEAR"},
	{OffsetAdd, "OFFSET_ADD"},
	{OffsetSub, "OFFSET_SUB"},
}

// Contains reports whether every bit of other is present in s.
func (s PermissionSet) Contains(other PermissionSet) bool {
	return s&other == other
}

// Remove returns s without the bits of other.
func (s PermissionSet) Remove(other PermissionSet) PermissionSet {
	return s &^ other
}

// SubsetOf reports whether s has no bits outside other.
func (s PermissionSet) SubsetOf(other PermissionSet) bool {
	return s&^other == 0
}

func (s PermissionSet) String() string {
	if s == None {
		return "{}"
	}
	var parts []string
	for _, p := range permNames {
		if s&p.bit != 0 {
			parts = append(parts, p.name)
		}
	}
	if rest := s &^ All; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint16(rest)))
	}
	return strings.Join(parts, "|")
}

// ParsePermissionSet parses a `|`-separated list of permission names.
// "{}" and the empty string denote the empty set.
func ParsePermissionSet(s string) (PermissionSet, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "{}" {
		return None, nil
	}
	var out PermissionSet
	for _, part := range strings.Split(s, "|") {
		name := strings.ToUpper(strings.TrimSpace(part))
		found := false
		for _, p := range permNames {
			if p.name == name {
				out |= p.bit
				found = true
				break
			}
		}
		if !found {
			return None, fmt.Errorf("unknown permission %q", part)
		}
	}
	return out, nil
}
