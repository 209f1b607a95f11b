// Package dump persists per-iteration fact sets and solver output for
// offline inspection. Bundles are msgpack files laid out as
// <dir>/<function>/iter-NNN.mp. Function names that are not usable as a
// directory name are sanitized and suffixed with a hash of the original.
package dump

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"ptrperm/internal/facts"
	"ptrperm/internal/mir"
)

// Current schema version - increment when Bundle format changes
const schemaVersion uint16 = 1

// Bundle is the content of one dump file.
type Bundle struct {
	Schema uint16
	// Run identifies the ptrperm invocation that wrote the bundle.
	Run       string
	Func      string
	Iteration int

	Facts facts.AllFacts
	// Points[i] is the location of facts.Point(i).
	Points []facts.PointKey
	// Paths[i] is the place of facts.Path(i).
	Paths []string

	Errors []PointErrors
}

// PointErrors lists the loans reported at one point.
type PointErrors struct {
	Point facts.Point
	Loans []facts.Loan
}

// Writer writes bundles under a root directory.
type Writer struct {
	dir string
	run string
}

// NewWriter returns a writer rooted at dir with a fresh run id. Nothing is
// created until the first Write.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, run: uuid.New().String()}
}

// Dir returns the root directory.
func (w *Writer) Dir() string { return w.dir }

// Run returns the id stamped into every bundle this writer produces.
func (w *Writer) Run() string { return w.run }

// FuncDir returns the directory holding fn's bundles.
func (w *Writer) FuncDir(fn string) string {
	return filepath.Join(w.dir, safeName(fn))
}

func safeName(fn string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, fn)
	if name == "" || name == "." || name == ".." {
		name = "_" + name
	}
	if name != fn {
		// Keep sanitized names apart from functions literally named that way.
		name = fmt.Sprintf("%s-%08x", name, uint32(xxhash.Sum64String(fn)))
	}
	return name
}

// Write stores one iteration. Its signature matches borrowck.DumpFunc.
func (w *Writer) Write(fn string, iteration int, all *facts.AllFacts, maps *facts.Maps, out *facts.Output) error {
	if w == nil {
		return nil
	}
	b := NewBundle(fn, iteration, all, maps, out)
	b.Run = w.run
	p := filepath.Join(w.FuncDir(fn), fmt.Sprintf("iter-%03d.mp", iteration))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	if iteration == 1 {
		// A previous run may have needed more iterations.
		if err := clearStale(filepath.Dir(p)); err != nil {
			return err
		}
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		// Already renamed on success.
		_ = os.Remove(tmp)
	}()

	if err := writeBundle(f, b); err != nil {
		return fmt.Errorf("encode %s: %w", p, err)
	}
	return os.Rename(tmp, p)
}

func clearStale(funcDir string) error {
	old, err := List(funcDir)
	if err != nil {
		return err
	}
	for _, p := range old {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// writeBundle encodes b into f and closes it.
func writeBundle(f *os.File, b *Bundle) error {
	if err := msgpack.NewEncoder(f).Encode(b); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// NewBundle snapshots one solver run.
func NewBundle(fn string, iteration int, all *facts.AllFacts, maps *facts.Maps, out *facts.Output) *Bundle {
	b := &Bundle{Schema: schemaVersion, Func: fn, Iteration: iteration}
	if all != nil {
		b.Facts = *all
	}
	if maps != nil {
		b.Points = make([]facts.PointKey, maps.NumPoints())
		for i := range b.Points {
			b.Points[i], _ = maps.PointKey(facts.Point(i))
		}
		b.Paths = make([]string, maps.NumPaths())
		for i := range b.Paths {
			if place, ok := maps.PathPlace(facts.Path(i)); ok {
				b.Paths[i] = mir.FormatPlace(place)
			}
		}
	}
	for _, p := range out.Points() {
		b.Errors = append(b.Errors, PointErrors{Point: p, Loans: out.Loans(p)})
	}
	return b
}

// Read decodes one bundle file.
func Read(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var b Bundle
	if err := msgpack.NewDecoder(f).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if b.Schema != schemaVersion {
		return nil, fmt.Errorf("%s: schema %d, want %d", path, b.Schema, schemaVersion)
	}
	return &b, nil
}

// List returns the bundle files of a function directory in iteration order.
func List(funcDir string) ([]string, error) {
	entries, err := os.ReadDir(funcDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no dumps in %s", funcDir)
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "iter-") && strings.HasSuffix(e.Name(), ".mp") {
			out = append(out, filepath.Join(funcDir, e.Name()))
		}
	}
	slices.Sort(out)
	return out, nil
}

// RelationCount is the size of one relation in a bundle.
type RelationCount struct {
	Name  string
	Count int
}

// Counts lists relation sizes in a fixed order, followed by the error count.
func (b *Bundle) Counts() []RelationCount {
	f := &b.Facts
	errs := 0
	for _, pe := range b.Errors {
		errs += len(pe.Loans)
	}
	return []RelationCount{
		{"loan_issued_at", len(f.LoanIssuedAt)},
		{"universal_region", len(f.UniversalRegion)},
		{"cfg_edge", len(f.CFGEdge)},
		{"loan_killed_at", len(f.LoanKilledAt)},
		{"subset_base", len(f.SubsetBase)},
		{"loan_invalidated_at", len(f.LoanInvalidatedAt)},
		{"var_used_at", len(f.VarUsedAt)},
		{"var_defined_at", len(f.VarDefinedAt)},
		{"var_dropped_at", len(f.VarDroppedAt)},
		{"use_of_var_derefs_origin", len(f.UseOfVarDerefsOrigin)},
		{"drop_of_var_derefs_origin", len(f.DropOfVarDerefsOrigin)},
		{"child_path", len(f.ChildPath)},
		{"path_is_var", len(f.PathIsVar)},
		{"path_assigned_at_base", len(f.PathAssignedAtBase)},
		{"path_moved_at_base", len(f.PathMovedAtBase)},
		{"path_accessed_at_base", len(f.PathAccessedAtBase)},
		{"errors", errs},
	}
}
