package facts

import (
	"fmt"

	"fortio.org/safecast"

	"ptrperm/internal/mir"
)

// Maps allocates atoms for one solver run and remembers what they stand for.
type Maps struct {
	points   []PointKey
	pointIdx map[PointKey]Point

	paths   []mir.Place
	pathIdx map[string]Path

	origins int
	loans   int
}

// NewMaps creates an empty allocator.
func NewMaps() *Maps {
	return &Maps{
		pointIdx: make(map[PointKey]Point),
		pathIdx:  make(map[string]Path),
	}
}

func nextAtom(n int, what string) int32 {
	value, err := safecast.Conv[int32](n)
	if err != nil {
		panic(fmt.Errorf("%s arena overflow: %w", what, err))
	}
	return value
}

// Point interns the point for (bb, idx, sub).
func (m *Maps) Point(bb mir.BlockID, idx int, sub SubPoint) Point {
	key := PointKey{Block: bb, Index: idx, Sub: sub}
	if p, ok := m.pointIdx[key]; ok {
		return p
	}
	p := Point(nextAtom(len(m.points), "point"))
	m.points = append(m.points, key)
	m.pointIdx[key] = p
	return p
}

// LookupPoint returns the point for key if one was allocated.
func (m *Maps) LookupPoint(key PointKey) (Point, bool) {
	p, ok := m.pointIdx[key]
	return p, ok
}

// PointKey returns the location p stands for.
func (m *Maps) PointKey(p Point) (PointKey, bool) {
	if p < 0 || int(p) >= len(m.points) {
		return PointKey{}, false
	}
	return m.points[p], true
}

// PointLocation returns the statement location of p.
func (m *Maps) PointLocation(p Point) (mir.Location, bool) {
	key, ok := m.PointKey(p)
	if !ok {
		return mir.Location{}, false
	}
	return key.Location(), true
}

// NumPoints reports how many points were allocated.
func (m *Maps) NumPoints() int { return len(m.points) }

// Origin allocates a fresh origin.
func (m *Maps) Origin() Origin {
	o := Origin(nextAtom(m.origins, "origin"))
	m.origins++
	return o
}

// NumOrigins reports how many origins were allocated.
func (m *Maps) NumOrigins() int { return m.origins }

// Loan allocates a fresh loan.
func (m *Maps) Loan() Loan {
	l := Loan(nextAtom(m.loans, "loan"))
	m.loans++
	return l
}

// NumLoans reports how many loans were allocated.
func (m *Maps) NumLoans() int { return m.loans }

// Variable returns the variable atom of a local.
func (m *Maps) Variable(l mir.LocalID) Variable {
	return Variable(l)
}

// Path interns the move path of place. The first time a place is seen its
// structural facts are recorded: path_is_var for a bare local, child_path
// linking a projection to its parent otherwise.
func (m *Maps) Path(all *AllFacts, place mir.Place) Path {
	key := place.Key()
	if p, ok := m.pathIdx[key]; ok {
		return p
	}
	var parent Path = NoPath
	if len(place.Proj) > 0 {
		parent = m.Path(all, place.Parent())
	}
	p := Path(nextAtom(len(m.paths), "path"))
	m.paths = append(m.paths, place)
	m.pathIdx[key] = p
	if all != nil {
		if parent == NoPath {
			all.PathIsVar = append(all.PathIsVar, PathVar{Path: p, Var: m.Variable(place.Local)})
		} else {
			all.ChildPath = append(all.ChildPath, PathPair{Child: p, Parent: parent})
		}
	}
	return p
}

// PathPlace returns the place p stands for.
func (m *Maps) PathPlace(p Path) (mir.Place, bool) {
	if p < 0 || int(p) >= len(m.paths) {
		return mir.Place{}, false
	}
	return m.paths[p], true
}

// NumPaths reports how many paths were interned.
func (m *Maps) NumPaths() int { return len(m.paths) }
