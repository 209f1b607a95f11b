// Package program loads analysis inputs from YAML files.
//
// A program lists functions. Each function declares its locals with typed
// pointer identities, its basic blocks in the textual MIR syntax printed by
// mir.DumpFunc, the initial permission hypothesis and the subtyping
// constraints used by dataflow propagation.
package program

import (
	"errors"
	"fmt"
	"io"
	"os"

	"fortio.org/safecast"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"ptrperm/internal/dataflow"
	"ptrperm/internal/lty"
	"ptrperm/internal/mir"
	"ptrperm/internal/perm"
)

// DefaultInitial is the hypothesis every pointer starts with unless the
// function overrides it.
const DefaultInitial = perm.Read | perm.Write | perm.Unique

// Program is a decoded input file.
type Program struct {
	Path  string
	Funcs []*Function
}

// Function is one analysis unit.
type Function struct {
	Func *mir.Func
	// MaxIterations overrides the configured budget when positive.
	MaxIterations int
	Hypothesis    perm.Hypothesis
	Constraints   *dataflow.Constraints
}

// Name returns the function name.
func (fn *Function) Name() string { return fn.Func.Name }

type fileDoc struct {
	Functions []funcDoc `yaml:"functions"`
}

type funcDoc struct {
	Name          string          `yaml:"name"`
	Args          int             `yaml:"args"`
	MaxIterations int             `yaml:"max_iterations"`
	Locals        []localDoc      `yaml:"locals"`
	Blocks        []blockDoc      `yaml:"blocks"`
	Hypothesis    hypothesisDoc   `yaml:"hypothesis"`
	Constraints   []constraintDoc `yaml:"constraints"`
}

type localDoc struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	AddrOf uint32 `yaml:"addr_of"`
	Temp   bool   `yaml:"temp"`
}

type blockDoc struct {
	Stmts []string `yaml:"stmts"`
	Term  string   `yaml:"term"`
}

type hypothesisDoc struct {
	Pointers int               `yaml:"pointers"`
	Initial  *string           `yaml:"initial"`
	Perms    map[uint32]string `yaml:"perms"`
}

type constraintDoc struct {
	Kind string `yaml:"kind"`
	A    uint32 `yaml:"a"`
	B    uint32 `yaml:"b"`
	Mask string `yaml:"mask"`
}

// Load reads and decodes the program at path.
func Load(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	prog, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	prog.Path = path
	return prog, nil
}

// Decode reads a program from r. Unknown keys are rejected.
func Decode(r io.Reader) (*Program, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc fileDoc
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &Program{}, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	prog := &Program{Funcs: make([]*Function, 0, len(doc.Functions))}
	seen := make(map[string]bool, len(doc.Functions))
	var errs []error
	for i := range doc.Functions {
		fn, err := buildFunction(&doc.Functions[i])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[fn.Name()] {
			errs = append(errs, fmt.Errorf("function %s: declared twice", fn.Name()))
			continue
		}
		seen[fn.Name()] = true
		prog.Funcs = append(prog.Funcs, fn)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return prog, nil
}

func buildFunction(doc *funcDoc) (*Function, error) {
	name := norm.NFC.String(doc.Name)
	if name == "" {
		return nil, errors.New("function without a name")
	}
	wrap := func(err error) error { return fmt.Errorf("function %s: %w", name, err) }

	f := &mir.Func{Name: name, ArgCount: doc.Args, Entry: 0}
	scope := &localScope{names: make(map[string]mir.LocalID, len(doc.Locals)), count: len(doc.Locals)}
	// positions counts the places a pointer id can appear; ids are bounded
	// by it so a typo cannot size the hypothesis arbitrarily.
	positions := 0
	var maxPtr perm.PointerID
	var maxAt string
	note := func(id perm.PointerID, at string) {
		if id > maxPtr {
			maxPtr, maxAt = id, at
		}
	}
	noteType := func(ty *lty.Type, at string) {
		ty.Walk(func(n *lty.Type) {
			positions++
			if n.IsPointer() {
				note(n.Label, at)
			}
		})
	}

	for i, ld := range doc.Locals {
		ty, err := lty.Parse(ld.Type)
		if err != nil {
			return nil, wrap(fmt.Errorf("local %d: type %q: %w", i, ld.Type, err))
		}
		at := fmt.Sprintf("local %d", i)
		noteType(ty, at)
		local := mir.Local{Name: norm.NFC.String(ld.Name), Ty: ty, AddrOf: perm.PointerID(ld.AddrOf), Temp: ld.Temp}
		positions++
		note(local.AddrOf, at+" addr_of")
		if local.Name != "" {
			if _, dup := scope.names[local.Name]; dup {
				return nil, wrap(fmt.Errorf("local %q declared twice", local.Name))
			}
			id, err := safecast.Conv[int32](i)
			if err != nil {
				return nil, wrap(err)
			}
			scope.names[local.Name] = mir.LocalID(id)
		}
		f.Locals = append(f.Locals, local)
	}

	for i, bd := range doc.Blocks {
		id, err := safecast.Conv[int32](i)
		if err != nil {
			return nil, wrap(err)
		}
		bb := mir.Block{ID: mir.BlockID(id)}
		for j, src := range bd.Stmts {
			st, err := parseStmt(src, scope)
			if err != nil {
				return nil, wrap(fmt.Errorf("bb%d[%d]: %w", i, j, err))
			}
			if st.Kind == mir.StmtAssign && st.Assign.Src.Kind == mir.RValueCast {
				noteType(st.Assign.Src.Cast.TargetTy, fmt.Sprintf("bb%d[%d]", i, j))
			}
			bb.Stmts = append(bb.Stmts, st)
		}
		if bd.Term == "" {
			return nil, wrap(fmt.Errorf("bb%d: missing terminator", i))
		}
		term, err := parseTerm(bd.Term, scope)
		if err != nil {
			return nil, wrap(fmt.Errorf("bb%d terminator: %w", i, err))
		}
		bb.Term = term
		f.Blocks = append(f.Blocks, bb)
	}

	cons := dataflow.New()
	for i, cd := range doc.Constraints {
		c, err := buildConstraint(cd)
		if err != nil {
			return nil, wrap(fmt.Errorf("constraint %d: %w", i, err))
		}
		at := fmt.Sprintf("constraint %d", i)
		positions += 2
		note(c.A, at)
		note(c.B, at)
		cons.Add(c)
	}
	for id := range doc.Hypothesis.Perms {
		positions++
		note(perm.PointerID(id), fmt.Sprintf("hypothesis perms ptr%d", id))
	}

	limit := pointerLimit(positions)
	if int64(maxPtr) > int64(limit) {
		return nil, wrap(fmt.Errorf("%s: pointer id %d exceeds the limit of %d for this function", maxAt, maxPtr, limit))
	}
	if doc.Hypothesis.Pointers > limit {
		return nil, wrap(fmt.Errorf("hypothesis declares %d pointers, limit is %d", doc.Hypothesis.Pointers, limit))
	}

	h, err := buildHypothesis(&doc.Hypothesis, int(maxPtr))
	if err != nil {
		return nil, wrap(err)
	}
	return &Function{Func: f, MaxIterations: doc.MaxIterations, Hypothesis: h, Constraints: cons}, nil
}

// pointerLimit bounds pointer ids given the number of positions that can
// carry one. Sparse numbering is allowed, runaway ids are not.
func pointerLimit(positions int) int {
	return 64 + 16*positions
}

func buildHypothesis(doc *hypothesisDoc, maxPtr int) (perm.Hypothesis, error) {
	count := maxPtr
	if doc.Pointers > 0 {
		if doc.Pointers < maxPtr {
			return nil, fmt.Errorf("hypothesis declares %d pointers but ptr%d is used", doc.Pointers, maxPtr)
		}
		count = doc.Pointers
	}
	initial := DefaultInitial
	if doc.Initial != nil {
		p, err := perm.ParsePermissionSet(*doc.Initial)
		if err != nil {
			return nil, fmt.Errorf("hypothesis initial: %w", err)
		}
		initial = p
	}
	h := perm.NewHypothesis(count, initial)
	for id, text := range doc.Perms {
		if id == 0 {
			return nil, errors.New("hypothesis perms: pointer 0 is reserved")
		}
		p, err := perm.ParsePermissionSet(text)
		if err != nil {
			return nil, fmt.Errorf("hypothesis perms ptr%d: %w", id, err)
		}
		h[id] = p
	}
	return h, nil
}

func buildConstraint(doc constraintDoc) (dataflow.Constraint, error) {
	c := dataflow.Constraint{A: perm.PointerID(doc.A), B: perm.PointerID(doc.B)}
	mask, err := perm.ParsePermissionSet(doc.Mask)
	if err != nil {
		return c, err
	}
	c.Mask = mask
	switch doc.Kind {
	case "subset":
		c.Kind = dataflow.ConstraintSubset
	case "subset_except":
		c.Kind = dataflow.ConstraintSubsetExcept
	case "no_perms":
		c.Kind = dataflow.ConstraintNoPerms
		if c.B.IsValid() {
			return c, errors.New("no_perms takes no second pointer")
		}
	default:
		return c, fmt.Errorf("unknown constraint kind %q", doc.Kind)
	}
	if !c.A.IsValid() {
		return c, errors.New("missing pointer a")
	}
	if c.Kind != dataflow.ConstraintNoPerms && !c.B.IsValid() {
		return c, errors.New("missing pointer b")
	}
	return c, nil
}
