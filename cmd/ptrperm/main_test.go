package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"ptrperm/internal/dump"
	"ptrperm/internal/facts"
)

const programYAML = `functions:
  - name: two_borrows
    max_iterations: %d
    locals:
      - {type: "()", addr_of: 1}
      - {name: x, type: i32, addr_of: 2}
      - {name: p, type: "*mut#3 i32", addr_of: 4}
      - {name: q, type: "*mut#5 i32", addr_of: 6}
      - {name: y, type: i32, addr_of: 7}
    blocks:
      - stmts:
          - p = &raw mut x
          - q = &raw mut x
          - y = copy p.*
        term: return
`

func newCheckCommand(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cmd := &cobra.Command{Use: "check", RunE: runCheck}
	addGlobalFlags(cmd.Flags())
	addCheckFlags(cmd.Flags())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	if err := cmd.Flags().Set("ui", "off"); err != nil {
		t.Fatal(err)
	}
	return cmd, &out
}

func writeProgram(t *testing.T, budget string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.yaml")
	src := strings.Replace(programYAML, "%d", budget, 1)
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSettingsOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "ptrperm.toml")
	if err := os.WriteFile(cfgPath, []byte("[analysis]\nmax_iterations = 7\njobs = 3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cmd, _ := newCheckCommand(t)
	for flag, value := range map[string]string{
		"config":   cfgPath,
		"jobs":     "1",
		"trace":    "-",
		"dump-dir": filepath.Join(dir, "inspect"),
	} {
		if err := cmd.Flags().Set(flag, value); err != nil {
			t.Fatal(err)
		}
	}

	cfg, err := loadSettings(cmd)
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if cfg.Analysis.MaxIterations != 7 || cfg.Analysis.Jobs != 1 {
		t.Errorf("analysis = %+v, want file budget 7 and flag jobs 1", cfg.Analysis)
	}
	if cfg.Trace.Level != "phase" || cfg.Trace.Output != "-" {
		t.Errorf("trace = %+v, want phase level on stderr", cfg.Trace)
	}
	if !cfg.Dump.Enabled || !strings.HasSuffix(cfg.Dump.Dir, "inspect") {
		t.Errorf("dump = %+v", cfg.Dump)
	}
}

func TestRunCheck(t *testing.T) {
	cmd, out := newCheckCommand(t)
	dumpDir := t.TempDir()
	if err := cmd.Flags().Set("dump-dir", dumpDir); err != nil {
		t.Fatal(err)
	}
	if err := runCheck(cmd, []string{writeProgram(t, "0")}); err != nil {
		t.Fatalf("runCheck: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "fn two_borrows converged") {
		t.Errorf("report:\n%s", out.String())
	}

	dcmd := &cobra.Command{Use: "dump", RunE: dumpCmd.RunE}
	dcmd.Flags().Bool("errors", true, "")
	var dout bytes.Buffer
	dcmd.SetOut(&dout)
	if err := dcmd.RunE(dcmd, []string{filepath.Join(dumpDir, "two_borrows")}); err != nil {
		t.Fatalf("dump: %v", err)
	}
	for _, want := range []string{"iter-001.mp: fn two_borrows iteration 1", "loan_issued_at", "conflict at"} {
		if !strings.Contains(dout.String(), want) {
			t.Errorf("dump output missing %q:\n%s", want, dout.String())
		}
	}
}

func TestRunCheckBudgetFails(t *testing.T) {
	cmd, out := newCheckCommand(t)
	metricsPath := filepath.Join(t.TempDir(), "ptrperm.prom")
	if err := cmd.Flags().Set("metrics-file", metricsPath); err != nil {
		t.Fatal(err)
	}
	err := runCheck(cmd, []string{writeProgram(t, "1")})
	if !errors.Is(err, errAnalysisFailed) {
		t.Fatalf("err = %v, want errAnalysisFailed", err)
	}
	if !strings.Contains(out.String(), "budget-exhausted") {
		t.Errorf("report:\n%s", out.String())
	}
	data, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("metrics file: %v", err)
	}
	if !strings.Contains(string(data), `ptrperm_functions_total{outcome="budget-exhausted"} 1`) {
		t.Errorf("metrics:\n%s", data)
	}
}

func TestReadUIMode(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiModeAuto, "ON": uiModeOn, " off ": uiModeOff} {
		got, err := readUIMode(in)
		if err != nil || got != want {
			t.Errorf("readUIMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Errorf("expected error")
	}
	if _, err := colorEnabled("purple"); err == nil {
		t.Errorf("expected error for bad --color")
	}
}

func TestPrintBundle(t *testing.T) {
	b := &dump.Bundle{
		Func:      "f",
		Iteration: 3,
		Points:    []facts.PointKey{{Block: 0, Index: 1, Sub: facts.Mid}},
		Errors:    []dump.PointErrors{{Point: 0, Loans: []facts.Loan{2, 5}}},
	}
	b.Facts.CFGEdge = []facts.Edge{{From: 0, To: 0}}
	var out bytes.Buffer
	printBundle(&out, "iter-003.mp", b, true)
	for _, want := range []string{"fn f iteration 3", "cfg_edge", "conflict at Mid(bb0[1]): L2, L5"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("missing %q:\n%s", want, out.String())
		}
	}
	if strings.Contains(out.String(), "loan_killed_at") {
		t.Errorf("empty relations should be omitted:\n%s", out.String())
	}
}
