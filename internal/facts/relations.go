package facts

import (
	"slices"
	"strings"

	"ptrperm/internal/mir"
)

// LoanIssue is a loan_issued_at tuple.
type LoanIssue struct {
	Origin Origin
	Loan   Loan
	Point  Point
}

// Edge is a cfg_edge tuple.
type Edge struct {
	From Point
	To   Point
}

// LoanPoint is a loan_killed_at or loan_invalidated_at tuple.
type LoanPoint struct {
	Loan  Loan
	Point Point
}

// OriginPair is a subset_base tuple: Sub flows into Super at Point.
type OriginPair struct {
	Sub   Origin
	Super Origin
	Point Point
}

// VarPoint is a var_used_at, var_defined_at or var_dropped_at tuple.
type VarPoint struct {
	Var   Variable
	Point Point
}

// VarOrigin relates a variable to an origin its use or drop dereferences.
type VarOrigin struct {
	Var    Variable
	Origin Origin
}

// PathPair is a child_path tuple.
type PathPair struct {
	Child  Path
	Parent Path
}

// PathVar is a path_is_var tuple.
type PathVar struct {
	Path Path
	Var  Variable
}

// PathPoint is a path assigned, moved or accessed at a point.
type PathPoint struct {
	Path  Path
	Point Point
}

// Group is one of the fact groups a complete fact set must contain.
type Group uint8

// Fact groups, one bit each.
const (
	GroupCFG Group = 1 << iota
	GroupInitialMoves
	GroupOrigins
	GroupLoans
	GroupInvalidations
	GroupDefUse
)

// AllGroups is the mask of a complete fact set.
const AllGroups = GroupCFG | GroupInitialMoves | GroupOrigins | GroupLoans | GroupInvalidations | GroupDefUse

var groupNames = [...]struct {
	g    Group
	name string
}{
	{GroupCFG, "cfg"},
	{GroupInitialMoves, "initial-moves"},
	{GroupOrigins, "origins"},
	{GroupLoans, "loans"},
	{GroupInvalidations, "invalidations"},
	{GroupDefUse, "def-use"},
}

func (g Group) String() string {
	var parts []string
	for _, n := range groupNames {
		if g&n.g != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// AllFacts is the input of one solver run.
type AllFacts struct {
	LoanIssuedAt          []LoanIssue
	UniversalRegion       []Origin
	CFGEdge               []Edge
	LoanKilledAt          []LoanPoint
	SubsetBase            []OriginPair
	LoanInvalidatedAt     []LoanPoint
	VarUsedAt             []VarPoint
	VarDefinedAt          []VarPoint
	VarDroppedAt          []VarPoint
	UseOfVarDerefsOrigin  []VarOrigin
	DropOfVarDerefsOrigin []VarOrigin
	ChildPath             []PathPair
	PathIsVar             []PathVar
	PathAssignedAtBase    []PathPoint
	PathMovedAtBase       []PathPoint
	PathAccessedAtBase    []PathPoint

	// Groups records which fact groups have been produced.
	Groups Group
}

// Mark records that group g has been produced.
func (f *AllFacts) Mark(g Group) { f.Groups |= g }

// Missing returns the groups not yet produced.
func (f *AllFacts) Missing() Group { return AllGroups &^ f.Groups }

// IssuedAt returns the point at which loan was issued.
func (f *AllFacts) IssuedAt(loan Loan) (Point, bool) {
	for _, li := range f.LoanIssuedAt {
		if li.Loan == loan {
			return li.Point, true
		}
	}
	return NoPoint, false
}

// Output is the solver's conflict report: for every point, the loans found
// live where they are invalidated.
type Output struct {
	Errors map[Point][]Loan
}

// NewOutput returns an empty report.
func NewOutput() *Output {
	return &Output{Errors: make(map[Point][]Loan)}
}

// Add records loan as conflicting at p, ignoring duplicates.
func (o *Output) Add(p Point, loan Loan) {
	if o.Errors == nil {
		o.Errors = make(map[Point][]Loan)
	}
	if slices.Contains(o.Errors[p], loan) {
		return
	}
	o.Errors[p] = append(o.Errors[p], loan)
}

// Count reports the number of (point, loan) conflicts.
func (o *Output) Count() int {
	if o == nil {
		return 0
	}
	n := 0
	for _, loans := range o.Errors {
		n += len(loans)
	}
	return n
}

// Len reports the number of points with conflicts.
func (o *Output) Len() int {
	if o == nil {
		return 0
	}
	return len(o.Errors)
}

// Points lists conflicting points in ascending order.
func (o *Output) Points() []Point {
	if o == nil {
		return nil
	}
	out := make([]Point, 0, len(o.Errors))
	for p := range o.Errors {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Loans returns the conflicting loans at p in ascending order.
func (o *Output) Loans(p Point) []Loan {
	out := slices.Clone(o.Errors[p])
	slices.Sort(out)
	return out
}

// LoanKind is the kind of access a loan grants.
type LoanKind uint8

// Loan kinds. Unique loans conflict with every other access.
const (
	LoanShared LoanKind = iota
	LoanUnique
	LoanRaw
)

func (k LoanKind) String() string {
	switch k {
	case LoanShared:
		return "shared"
	case LoanUnique:
		return "unique"
	case LoanRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// LoanRecord describes one issued loan.
type LoanRecord struct {
	Loan  Loan
	Path  Path
	Place mir.Place
	Kind  LoanKind
	Point Point
}

// LoanIndex lists, per borrowed local, the loans taken on it in issue order.
type LoanIndex map[mir.LocalID][]LoanRecord

// Add appends rec under local.
func (idx LoanIndex) Add(local mir.LocalID, rec LoanRecord) {
	idx[local] = append(idx[local], rec)
}

// Find returns the record for loan.
func (idx LoanIndex) Find(loan Loan) (LoanRecord, bool) {
	for _, recs := range idx {
		for _, r := range recs {
			if r.Loan == loan {
				return r, true
			}
		}
	}
	return LoanRecord{}, false
}

// IssuedAt returns the loan issued at p, if any.
func (idx LoanIndex) IssuedAt(p Point) (LoanRecord, bool) {
	for _, recs := range idx {
		for _, r := range recs {
			if r.Point == p {
				return r, true
			}
		}
	}
	return LoanRecord{}, false
}
