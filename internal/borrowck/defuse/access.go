// Package defuse derives variable definition, use and drop facts, path
// access facts, and loan invalidations from the accesses each statement
// performs.
package defuse

import (
	"ptrperm/internal/mir"
)

// AccessKind classifies how a statement touches a place.
type AccessKind uint8

const (
	AccessRead AccessKind = iota
	AccessMove
	AccessWrite
	AccessDrop
	AccessStorageLive
	AccessStorageDead
	// AccessBorrow takes the address of the place; the loan issued by the
	// same statement decides whether it behaves as a read or a write.
	AccessBorrow
)

func (k AccessKind) String() string {
	switch k {
	case AccessRead:
		return "read"
	case AccessMove:
		return "move"
	case AccessWrite:
		return "write"
	case AccessDrop:
		return "drop"
	case AccessStorageLive:
		return "storage-live"
	case AccessStorageDead:
		return "storage-dead"
	case AccessBorrow:
		return "borrow"
	default:
		return "unknown"
	}
}

// Access is one place touched by a statement or terminator.
type Access struct {
	Place mir.Place
	Kind  AccessKind
}

// StmtAccesses lists the accesses of st in evaluation order: operands are
// read before the destination is written.
func StmtAccesses(st *mir.Stmt) []Access {
	var out []Access
	switch st.Kind {
	case mir.StmtAssign:
		rv := &st.Assign.Src
		if rv.IsBorrow() {
			out = appendPlace(out, rv.Borrow.Place, AccessBorrow)
		}
		if rv.Kind == mir.RValueLen {
			out = appendPlace(out, rv.Len, AccessRead)
		}
		for _, op := range rv.Operands() {
			out = appendOperand(out, op)
		}
		out = appendPlace(out, st.Assign.Dst, AccessWrite)
	case mir.StmtStorageLive:
		out = append(out, Access{Place: mir.LocalPlace(st.Local), Kind: AccessStorageLive})
	case mir.StmtStorageDead:
		out = append(out, Access{Place: mir.LocalPlace(st.Local), Kind: AccessStorageDead})
	}
	return out
}

// TermAccesses lists the accesses of a terminator.
func TermAccesses(term *mir.Terminator) []Access {
	var out []Access
	switch term.Kind {
	case mir.TermSwitchInt:
		out = appendOperand(out, term.SwitchInt.Discr)
	case mir.TermCall:
		for _, op := range term.Call.Args {
			out = appendOperand(out, op)
		}
		if term.Call.HasDst {
			out = appendPlace(out, term.Call.Dst, AccessWrite)
		}
	case mir.TermDrop:
		out = appendPlace(out, term.Drop.Place, AccessDrop)
	case mir.TermReturn:
		out = append(out, Access{Place: mir.LocalPlace(mir.ReturnLocal), Kind: AccessRead})
	}
	return out
}

func appendOperand(out []Access, op mir.Operand) []Access {
	switch op.Kind {
	case mir.OperandCopy:
		return appendPlace(out, op.Place, AccessRead)
	case mir.OperandMove:
		return appendPlace(out, op.Place, AccessMove)
	}
	return out
}

// appendPlace records kind on place. Index locals are read first, and an
// access through a dereference only reads the pointer held by the base local.
func appendPlace(out []Access, place mir.Place, kind AccessKind) []Access {
	for _, proj := range place.Proj {
		if proj.Kind == mir.PlaceProjIndex {
			out = append(out, Access{Place: mir.LocalPlace(proj.IndexLocal), Kind: AccessRead})
		}
	}
	if place.HasDeref() {
		return append(out, Access{Place: derefBase(place), Kind: AccessRead})
	}
	return append(out, Access{Place: place, Kind: kind})
}

// derefBase trims place to the prefix holding its first dereferenced pointer.
func derefBase(place mir.Place) mir.Place {
	for i, proj := range place.Proj {
		if proj.Kind != mir.PlaceProjDeref {
			continue
		}
		if i == 0 {
			return mir.LocalPlace(place.Local)
		}
		return mir.Place{Local: place.Local, Proj: place.Proj[:i]}
	}
	return place
}

// Overlaps reports whether a and b name intersecting storage of the same
// local: one projection list is a prefix of the other and the longer one does
// not leave the local through a dereference.
func Overlaps(a, b mir.Place) bool {
	if a.Local != b.Local {
		return false
	}
	n := min(len(a.Proj), len(b.Proj))
	for i := 0; i < n; i++ {
		pa, pb := a.Proj[i], b.Proj[i]
		if pa.Kind != pb.Kind {
			return false
		}
		if pa.Kind == mir.PlaceProjField && pa.FieldIdx != pb.FieldIdx {
			return false
		}
	}
	rest := a.Proj[n:]
	if len(b.Proj) > n {
		rest = b.Proj[n:]
	}
	for _, proj := range rest {
		if proj.Kind == mir.PlaceProjDeref {
			return false
		}
	}
	return true
}
