// Package facts defines the atoms and relations exchanged with the region
// solver: control-flow points, origins, loans, move paths and variables.
//
// All atoms are dense integers allocated by a Maps value. A Maps is scoped
// to a single solver run; atoms from different runs must never be compared.
package facts

import (
	"fmt"

	"ptrperm/internal/lty"
	"ptrperm/internal/mir"
	"ptrperm/internal/perm"
)

// Point is a Start or Mid position of one statement or terminator.
type Point int32

// Origin is a region variable attached to one pointer-typed type node.
type Origin int32

// Loan is one borrow or address-of taken at a point.
type Loan int32

// Path is a move path: a local or a projection of one.
type Path int32

// Variable is a local as the solver sees it. It equals the LocalID.
type Variable int32

// Sentinels for "no atom".
const (
	NoPoint  Point  = -1
	NoOrigin Origin = -1
	NoLoan   Loan   = -1
	NoPath   Path   = -1
)

func (p Point) String() string  { return fmt.Sprintf("p%d", int32(p)) }
func (o Origin) String() string { return fmt.Sprintf("'%d", int32(o)) }
func (l Loan) String() string   { return fmt.Sprintf("L%d", int32(l)) }
func (p Path) String() string   { return fmt.Sprintf("mp%d", int32(p)) }
func (v Variable) String() string {
	return fmt.Sprintf("_%d", int32(v))
}

// SubPoint splits a statement into the moment before it takes effect and
// the moment it takes effect.
type SubPoint uint8

const (
	Start SubPoint = iota
	Mid
)

func (s SubPoint) String() string {
	if s == Mid {
		return "Mid"
	}
	return "Start"
}

// PointKey is the program location a Point stands for.
type PointKey struct {
	Block mir.BlockID
	Index int
	Sub   SubPoint
}

// Location drops the sub-point.
func (k PointKey) Location() mir.Location {
	return mir.Location{Block: k.Block, Index: k.Index}
}

func (k PointKey) String() string {
	return fmt.Sprintf("%s(bb%d[%d])", k.Sub, k.Block, k.Index)
}

// Label annotates one node of a local's type for a single solver run.
type Label struct {
	// Origin is NoOrigin for nodes that are not pointer shaped.
	Origin Origin
	Perm   perm.PermissionSet
}

// HasOrigin reports whether the node carries a region variable.
func (l Label) HasOrigin() bool { return l.Origin != NoOrigin }

func (l Label) String() string {
	if !l.HasOrigin() {
		return l.Perm.String()
	}
	return fmt.Sprintf("%s %s", l.Origin, l.Perm)
}

// LTy is a local's type labeled for one solver run.
type LTy = lty.Labeled[Label]

// LoanInput is what loan generation needs from the labeling step.
type LoanInput struct {
	Func *mir.Func
	// LocalTys holds the labeled type of every local, indexed by LocalID.
	LocalTys []*LTy
	// AddrOfPerm holds the hypothesized permission of `&local`, indexed by LocalID.
	AddrOfPerm []perm.PermissionSet
}
