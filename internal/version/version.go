// Package version holds build metadata for the ptrperm CLI.
// The variables can be overridden at build time via -ldflags.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/fatih/color"
)

var (
	majorColor = color.New(color.FgYellow, color.Bold)
	minorColor = color.New(color.FgGreen, color.Bold)
	patchColor = color.New(color.FgBlue, color.Bold)

	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

// Colored renders Version with each numeric component highlighted. Color
// output follows color.NoColor.
func Colored() string {
	v, err := semver.StrictNewVersion(Version)
	if err != nil {
		return Version
	}
	out := majorColor.Sprint(strconv.FormatUint(v.Major(), 10)) + "." +
		minorColor.Sprint(strconv.FormatUint(v.Minor(), 10)) + "." +
		patchColor.Sprint(strconv.FormatUint(v.Patch(), 10))
	if pre := v.Prerelease(); pre != "" {
		out += "-" + pre
	}
	if meta := v.Metadata(); meta != "" {
		out += "+" + meta
	}
	return out
}

// Satisfies reports whether the running Version meets constraint, e.g.
// ">= 0.2" or "~1.3". Development builds carry a prerelease suffix, so a
// constraint that should admit them must itself mention a prerelease.
func Satisfies(constraint string) error {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}
	v, err := semver.NewVersion(Version)
	if err != nil {
		return fmt.Errorf("ptrperm version %q is not semantic: %w", Version, err)
	}
	if ok, reasons := c.Validate(v); !ok {
		msgs := make([]string, 0, len(reasons))
		for _, r := range reasons {
			msgs = append(msgs, r.Error())
		}
		return fmt.Errorf("ptrperm %s does not satisfy %q: %s", Version, constraint, strings.Join(msgs, "; "))
	}
	return nil
}

// Info is the machine-readable build description.
type Info struct {
	Tool       string `json:"tool"`
	Version    string `json:"version"`
	Major      uint64 `json:"major"`
	Minor      uint64 `json:"minor"`
	Patch      uint64 `json:"patch"`
	Prerelease string `json:"prerelease,omitempty"`
	GitCommit  string `json:"git_commit,omitempty"`
	BuildDate  string `json:"build_date,omitempty"`
	// Semantic is false when Version does not parse; the numeric fields are
	// then zero.
	Semantic bool `json:"semantic"`
}

// Current describes this build. An empty Version is reported as "dev".
func Current() Info {
	info := Info{
		Tool:      "ptrperm",
		Version:   strings.TrimSpace(Version),
		GitCommit: strings.TrimSpace(GitCommit),
		BuildDate: strings.TrimSpace(BuildDate),
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	if v, err := semver.NewVersion(info.Version); err == nil {
		info.Semantic = true
		info.Major, info.Minor, info.Patch = v.Major(), v.Minor(), v.Patch()
		info.Prerelease = v.Prerelease()
	}
	return info
}

// String is the one-line version banner.
func String() string {
	var sb strings.Builder
	sb.WriteString("ptrperm ")
	sb.WriteString(Colored())
	if GitCommit != "" {
		sb.WriteString(" (")
		sb.WriteString(GitCommit)
		if BuildDate != "" {
			sb.WriteString(", ")
			sb.WriteString(BuildDate)
		}
		sb.WriteString(")")
	} else if BuildDate != "" {
		sb.WriteString(" (" + BuildDate + ")")
	}
	return sb.String()
}
