package program

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ptrperm/internal/dataflow"
	"ptrperm/internal/mir"
	"ptrperm/internal/perm"
)

const swapSrc = `
functions:
  - name: swap
    args: 1
    locals:
      - {name: ret, type: "()"}
      - {name: p, type: "*mut#1 i32"}
      - {name: x, type: "i32", addr_of: 2}
      - {type: "*mut#3 i32", temp: true}
      - {name: pair, type: "(i32, *const#4 u8)"}
    blocks:
      - stmts:
          - storage_live x
          - x = const 7
          - _3 = &raw mut x
          - (*_3) = const 1
          - p.* = copy _3.*
          - pair.0 = copy x + const -1
          - ret = ()
        term: "switch_int copy x [0: bb1, otherwise: bb2]"
      - term: "drop x -> bb2"
      - stmts: [storage_dead x]
        term: return
    hypothesis:
      perms:
        3: READ|WRITE
    constraints:
      - {kind: subset, a: 3, b: 1}
      - {kind: no_perms, a: 4, mask: WRITE}
`

func TestDecodeFunction(t *testing.T) {
	// `(*_3)` is not part of the syntax; the decode error must name the block.
	_, err := Decode(strings.NewReader(swapSrc))
	if err == nil || !strings.Contains(err.Error(), "bb0[3]") {
		t.Fatalf("err = %v, want bb0[3] error", err)
	}

	prog, err := Decode(strings.NewReader(strings.Replace(swapSrc, "(*_3) = const 1", "_3.* = const 1", 1)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(prog.Funcs) != 1 {
		t.Fatalf("got %d functions", len(prog.Funcs))
	}
	fn := prog.Funcs[0]
	if fn.Name() != "swap" || fn.Func.ArgCount != 1 || len(fn.Func.Locals) != 5 {
		t.Fatalf("unexpected function header %s/%d/%d", fn.Name(), fn.Func.ArgCount, len(fn.Func.Locals))
	}
	if got := fn.Func.Locals[2].AddrOf; got != 2 {
		t.Errorf("x addr_of = %s, want ptr2", got)
	}
	if !fn.Func.Locals[3].Temp {
		t.Errorf("_3 should be a temp")
	}

	var lines []string
	for _, bb := range fn.Func.Blocks {
		bb := bb
		for i := range bb.Stmts {
			lines = append(lines, mir.FormatStmt(&bb.Stmts[i]))
		}
		lines = append(lines, mir.FormatTerm(&bb.Term))
	}
	want := []string{
		"storage_live _2",
		"_2 = const 7",
		"_3 = &raw mut _2",
		"_3.* = const 1",
		"_1.* = copy _3.*",
		"_4.0 = copy _2 + const -1",
		"_0 = ()",
		"switch_int copy _2 [0: bb1, otherwise: bb2]",
		"drop _2 -> bb2",
		"storage_dead _2",
		"return",
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("blocks (-want +got):\n%s", diff)
	}

	wantH := perm.Hypothesis{perm.None, DefaultInitial, DefaultInitial, perm.Read | perm.Write, DefaultInitial}
	if diff := cmp.Diff(wantH, fn.Hypothesis); diff != "" {
		t.Errorf("hypothesis (-want +got):\n%s", diff)
	}
	wantC := []dataflow.Constraint{
		{Kind: dataflow.ConstraintSubset, A: 3, B: 1},
		{Kind: dataflow.ConstraintNoPerms, A: 4, Mask: perm.Write},
	}
	if diff := cmp.Diff(wantC, fn.Constraints.All()); diff != "" {
		t.Errorf("constraints (-want +got):\n%s", diff)
	}
	if err := mir.Validate(fn.Func); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestStatementRoundTrip(t *testing.T) {
	scope := &localScope{names: map[string]mir.LocalID{}, count: 8}
	stmts := []string{
		"_1 = &_2",
		"_1 = &mut _2.0",
		"_1 = &raw const _2[_3]",
		"_1 = copy _2 as *const#5 [u8]",
		"_1 = move _2",
		"_1 = -copy _2",
		"_1 = copy _2 == const 0",
		"_1 = (copy _2, const 3)",
		"_1 = len(_2.*)",
		"_1 = opaque intrinsic foo",
		"nop",
	}
	for _, src := range stmts {
		st, err := parseStmt(src, scope)
		if err != nil {
			t.Errorf("parseStmt(%q): %v", src, err)
			continue
		}
		if got := mir.FormatStmt(&st); got != src {
			t.Errorf("round trip %q -> %q", src, got)
		}
	}

	terms := []string{
		"_0 = call malloc(const 8) -> bb1",
		"call abort()",
		"goto bb3",
		"unreachable",
	}
	for _, src := range terms {
		term, err := parseTerm(src, scope)
		if err != nil {
			t.Errorf("parseTerm(%q): %v", src, err)
			continue
		}
		if got := mir.FormatTerm(&term); got != src {
			t.Errorf("round trip %q -> %q", src, got)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name, src, want string
	}{
		{"unknown key", "functions:\n  - name: f\n    colour: red\n", "field colour not found"},
		{"bad type", "functions:\n  - name: f\n    locals: [{type: \"*i32\"}]\n", "expected mut or const"},
		{"unknown local", "functions:\n  - name: f\n    locals: [{type: \"()\"}]\n    blocks: [{stmts: [\"y = const 1\"], term: return}]\n", `unknown local "y"`},
		{"missing term", "functions:\n  - name: f\n    locals: [{type: \"()\"}]\n    blocks: [{stmts: [nop]}]\n", "missing terminator"},
		{"duplicate", "functions:\n  - name: f\n  - name: f\n", "declared twice"},
		{"constraint", "functions:\n  - name: f\n    constraints: [{kind: weaker, a: 1, b: 2}]\n", `unknown constraint kind "weaker"`},
		{"too few pointers", "functions:\n  - name: f\n    locals: [{type: \"&#3 i32\"}]\n    hypothesis: {pointers: 2}\n", "declares 2 pointers"},
		{"runaway addr_of", "functions:\n  - name: f\n    locals: [{type: \"()\"}, {type: i32, addr_of: 4000000000}]\n", "local 1 addr_of: pointer id 4000000000 exceeds the limit"},
		{"runaway type id", "functions:\n  - name: f\n    locals: [{type: \"*mut#99999 i32\"}]\n", "local 0: pointer id 99999 exceeds"},
		{"runaway perms", "functions:\n  - name: f\n    hypothesis: {perms: {3000000: READ}}\n", "hypothesis perms ptr3000000"},
		{"runaway pointers", "functions:\n  - name: f\n    hypothesis: {pointers: 1000000}\n", "hypothesis declares 1000000 pointers, limit is"},
		{"switch order", "functions:\n  - name: f\n    locals: [{type: \"()\"}]\n    blocks: [{term: \"switch_int const 0 [1: bb0, otherwise: bb0]\"}]\n", "out of order"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestSparsePointerIDsWithinLimit(t *testing.T) {
	src := "functions:\n  - name: f\n    locals: [{type: \"()\"}, {type: \"*mut#40 i32\", addr_of: 90}]\n    blocks: [{term: return}]\n"
	prog, err := Decode(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := prog.Funcs[0].Hypothesis.Len(); got != 90 {
		t.Errorf("hypothesis covers %d pointers, want 90", got)
	}
}

func TestNamesAreNFC(t *testing.T) {
	// Declared decomposed, used precomposed.
	src := "functions:\n  - name: cafe\u0301\n    locals:\n      - {type: \"()\"}\n      - {name: \"ve\u0301\", type: i32}\n    blocks: [{stmts: [\"v\u00e9 = const 1\"], term: return}]\n"
	prog, err := Decode(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := prog.Funcs[0].Name(); got != "caf\u00e9" {
		t.Errorf("name = %q, want NFC form", got)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.yaml")
	if err := os.WriteFile(path, []byte("functions: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	prog, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if prog.Path != path || len(prog.Funcs) != 0 {
		t.Errorf("unexpected program %+v", prog)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected error for missing file")
	}
}
