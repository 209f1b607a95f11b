package dump

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"ptrperm/internal/facts"
	"ptrperm/internal/mir"
)

func sampleRun() (*facts.AllFacts, *facts.Maps, *facts.Output) {
	maps := facts.NewMaps()
	all := &facts.AllFacts{}
	p0 := maps.Point(0, 0, facts.Start)
	p1 := maps.Point(0, 0, facts.Mid)
	all.CFGEdge = append(all.CFGEdge, facts.Edge{From: p0, To: p1})
	o := maps.Origin()
	l := maps.Loan()
	all.LoanIssuedAt = append(all.LoanIssuedAt, facts.LoanIssue{Origin: o, Loan: l, Point: p1})
	maps.Path(all, mir.Place{Local: 1, Proj: []mir.PlaceProj{{Kind: mir.PlaceProjDeref}}})
	all.Mark(facts.GroupCFG)

	out := facts.NewOutput()
	out.Add(p1, l)
	return all, maps, out
}

func TestWriteRead(t *testing.T) {
	all, maps, out := sampleRun()
	w := NewWriter(t.TempDir())
	if err := w.Write("ns/f", 1, all, maps, facts.NewOutput()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Write("ns/f", 2, all, maps, out); err != nil {
		t.Fatalf("Write: %v", err)
	}

	files, err := List(w.FuncDir("ns/f"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 2 || !strings.HasSuffix(files[0], "iter-001.mp") || !strings.HasSuffix(files[1], "iter-002.mp") {
		t.Fatalf("files = %v", files)
	}
	if base := filepath.Base(w.FuncDir("ns/f")); !strings.HasPrefix(base, "ns_f-") {
		t.Errorf("function dir %q not sanitized", base)
	}

	got, err := Read(files[1])
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := NewBundle("ns/f", 2, all, maps, out)
	want.Run = w.Run()
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("bundle (-want +got):\n%s", diff)
	}
	if got.Paths[len(got.Paths)-1] != "_1.*" {
		t.Errorf("paths = %v", got.Paths)
	}

	counts := map[string]int{}
	for _, rc := range got.Counts() {
		counts[rc.Name] = rc.Count
	}
	if counts["cfg_edge"] != 1 || counts["loan_issued_at"] != 1 || counts["errors"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestReadRejectsOtherSchema(t *testing.T) {
	all, maps, out := sampleRun()
	w := NewWriter(t.TempDir())
	if err := w.Write("f", 1, all, maps, out); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(w.FuncDir("f"), "iter-001.mp")
	b, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	b.Schema = schemaVersion + 1
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := writeBundle(f, b); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); err == nil || !strings.Contains(err.Error(), "schema") {
		t.Errorf("err = %v, want schema mismatch", err)
	}
}

func TestFirstIterationClearsStaleRun(t *testing.T) {
	all, maps, out := sampleRun()
	dir := t.TempDir()
	old := NewWriter(dir)
	for i := 1; i <= 3; i++ {
		if err := old.Write("f", i, all, maps, out); err != nil {
			t.Fatal(err)
		}
	}
	fresh := NewWriter(dir)
	if fresh.Run() == old.Run() {
		t.Fatalf("writers share run id %s", fresh.Run())
	}
	if err := fresh.Write("f", 1, all, maps, out); err != nil {
		t.Fatal(err)
	}
	files, err := List(fresh.FuncDir("f"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("files = %v, want only the new iteration", files)
	}
	b, err := Read(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if b.Run != fresh.Run() {
		t.Errorf("run = %s, want %s", b.Run, fresh.Run())
	}
}

func TestListMissing(t *testing.T) {
	if _, err := List(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Errorf("expected error for missing directory")
	}
}

func TestSanitizedNamesKeepSeparateDirs(t *testing.T) {
	all, maps, out := sampleRun()
	w := NewWriter(t.TempDir())
	if w.FuncDir("a/b") == w.FuncDir("a_b") || w.FuncDir("a:b") == w.FuncDir("a/b") {
		t.Fatalf("sanitized names collide: %s", w.FuncDir("a/b"))
	}
	if filepath.Base(w.FuncDir("a_b")) != "a_b" {
		t.Errorf("plain name rewritten to %q", w.FuncDir("a_b"))
	}
	if filepath.Base(w.FuncDir("..")) == ".." {
		t.Errorf("dot-dot escapes the dump dir")
	}

	if err := w.Write("a_b", 1, all, maps, out); err != nil {
		t.Fatal(err)
	}
	if err := w.Write("a/b", 1, all, maps, out); err != nil {
		t.Fatal(err)
	}
	for _, fn := range []string{"a_b", "a/b"} {
		files, err := List(w.FuncDir(fn))
		if err != nil || len(files) != 1 {
			t.Fatalf("%s: files = %v, err = %v", fn, files, err)
		}
		b, err := Read(files[0])
		if err != nil {
			t.Fatal(err)
		}
		if b.Func != fn {
			t.Errorf("bundle in %s belongs to %q", w.FuncDir(fn), b.Func)
		}
	}
}
