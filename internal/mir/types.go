package mir

import (
	"fmt"
	"strings"

	"ptrperm/internal/lty"
	"ptrperm/internal/perm"
)

type BlockID int32
type LocalID int32

const (
	NoBlockID BlockID = -1
	NoLocalID LocalID = -1
)

// ReturnLocal is the local that holds the function result.
const ReturnLocal LocalID = 0

// LocalKind classifies a local by its position in the function signature.
type LocalKind uint8

const (
	LocalReturn LocalKind = iota
	LocalArg
	LocalVar
	LocalTemp
)

func (k LocalKind) String() string {
	switch k {
	case LocalReturn:
		return "return"
	case LocalArg:
		return "arg"
	case LocalVar:
		return "var"
	case LocalTemp:
		return "temp"
	default:
		return "unknown"
	}
}

type Local struct {
	Name string
	Ty   *lty.Type
	// AddrOf is the pointer identity of `&local` / `&raw local`.
	AddrOf perm.PointerID
	Temp   bool
}

type PlaceProjKind uint8

const (
	PlaceProjDeref PlaceProjKind = iota
	PlaceProjField
	PlaceProjIndex
)

type PlaceProj struct {
	Kind PlaceProjKind

	FieldIdx   int
	IndexLocal LocalID
}

type Place struct {
	Local LocalID
	Proj  []PlaceProj
}

// LocalPlace returns the place naming local l with no projection.
func LocalPlace(l LocalID) Place {
	return Place{Local: l}
}

func (p Place) IsValid() bool {
	return p.Local != NoLocalID
}

// AsLocal returns the local when p has no projections.
func (p Place) AsLocal() (LocalID, bool) {
	if len(p.Proj) != 0 || p.Local == NoLocalID {
		return NoLocalID, false
	}
	return p.Local, true
}

// HasDeref reports whether any projection dereferences a pointer.
func (p Place) HasDeref() bool {
	for _, proj := range p.Proj {
		if proj.Kind == PlaceProjDeref {
			return true
		}
	}
	return false
}

// Parent drops the last projection. The parent of a bare local is itself.
func (p Place) Parent() Place {
	if len(p.Proj) == 0 {
		return p
	}
	return Place{Local: p.Local, Proj: p.Proj[:len(p.Proj)-1]}
}

// Key is a canonical string used to intern places.
func (p Place) Key() string {
	return FormatPlace(p)
}

func FormatPlace(p Place) string {
	if !p.IsValid() {
		return "_?"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "_%d", p.Local)
	for _, proj := range p.Proj {
		switch proj.Kind {
		case PlaceProjDeref:
			sb.WriteString(".*")
		case PlaceProjField:
			fmt.Fprintf(&sb, ".%d", proj.FieldIdx)
		case PlaceProjIndex:
			fmt.Fprintf(&sb, "[_%d]", proj.IndexLocal)
		}
	}
	return sb.String()
}
