package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestString(t *testing.T) {
	origNoColor, origVersion, origCommit, origDate := color.NoColor, Version, GitCommit, BuildDate
	defer func() {
		color.NoColor, Version, GitCommit, BuildDate = origNoColor, origVersion, origCommit, origDate
	}()
	color.NoColor = true

	tests := []struct {
		version, commit, date string
		want                  string
	}{
		{"0.1.0-dev", "", "", "ptrperm 0.1.0-dev"},
		{"1.2.3", "abc123", "", "ptrperm 1.2.3 (abc123)"},
		{"1.2.3", "abc123", "2024-01-15", "ptrperm 1.2.3 (abc123, 2024-01-15)"},
		{"1.2.3-rc.1", "", "2024-01-15", "ptrperm 1.2.3-rc.1 (2024-01-15)"},
		{"nightly", "", "", "ptrperm nightly"},
	}
	for _, tt := range tests {
		Version, GitCommit, BuildDate = tt.version, tt.commit, tt.date
		if got := String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestSatisfies(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	tests := []struct {
		version, constraint string
		ok                  bool
	}{
		{"1.2.3", ">= 1.0", true},
		{"1.2.3", "~1.2", true},
		{"1.2.3", "< 1.2", false},
		{"0.1.0-dev", ">= 0.1.0-0", true},
		{"0.1.0-dev", ">= 0.1.0", false},
		{"1.2.3", "not a constraint", false},
		{"nightly", ">= 1.0", false},
	}
	for _, tt := range tests {
		Version = tt.version
		err := Satisfies(tt.constraint)
		if (err == nil) != tt.ok {
			t.Errorf("Satisfies(%q) with %s: err = %v, want ok=%v", tt.constraint, tt.version, err, tt.ok)
		}
	}
}

func TestCurrent(t *testing.T) {
	origVersion, origCommit := Version, GitCommit
	defer func() { Version, GitCommit = origVersion, origCommit }()

	Version, GitCommit = "1.4.2-rc.1", " abc "
	info := Current()
	if !info.Semantic || info.Major != 1 || info.Minor != 4 || info.Patch != 2 || info.Prerelease != "rc.1" {
		t.Errorf("Current() = %+v", info)
	}
	if info.GitCommit != "abc" || info.Tool != "ptrperm" {
		t.Errorf("Current() = %+v", info)
	}

	Version = ""
	if info := Current(); info.Version != "dev" || info.Semantic {
		t.Errorf("empty version: %+v", info)
	}
}
