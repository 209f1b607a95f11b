package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), `
[analysis]
max_iterations = 5
jobs = 2

[trace]
level = "detail"
`)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, err := Discover(nested)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := Default()
	want.Analysis.MaxIterations = 5
	want.Analysis.Jobs = 2
	want.Trace.Level = "detail"
	want.Path = filepath.Join(root, FileName)
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestDiscoverDefaults(t *testing.T) {
	cfg, err := Discover(t.TempDir())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if cfg.Path != "" && !strings.HasSuffix(cfg.Path, FileName) {
		t.Errorf("unexpected path %q", cfg.Path)
	}
	if cfg.Path == "" && cfg.Analysis.MaxIterations != 20 {
		t.Errorf("default max_iterations = %d, want 20", cfg.Analysis.MaxIterations)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name, content, want string
	}{
		{"syntax", "[analysis\n", "failed to parse TOML"},
		{"unknown key", "[analysis]\nspeed = 3\n", "unknown keys: analysis.speed"},
		{"zero budget", "[analysis]\nmax_iterations = 0\n", "max_iterations must be positive"},
		{"bad constraint", "requires = \"~~\"\n", "invalid version constraint"},
		{"too old", "requires = \"< 0.0.1\"\n", "does not satisfy"},
		{"metrics suffix", "[metrics]\ntextfile = \"out.txt\"\n", "must end in .prom"},
		{"dump without dir", "[dump]\nenabled = true\ndir = \"\"\n", "[dump].dir must be set"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			writeFile(t, path, tt.content)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}
