// Package config loads ptrperm.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"ptrperm/internal/version"
)

// FileName is the configuration file searched for.
const FileName = "ptrperm.toml"

// Config is the decoded configuration with defaults applied.
type Config struct {
	// Requires is an optional semver constraint on the running ptrperm.
	Requires string `toml:"requires"`

	Analysis AnalysisConfig `toml:"analysis"`
	Dump     DumpConfig     `toml:"dump"`
	Trace    TraceConfig    `toml:"trace"`
	Metrics  MetricsConfig  `toml:"metrics"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `toml:"-"`
}

// AnalysisConfig is the [analysis] section.
type AnalysisConfig struct {
	// MaxIterations caps solver runs per function.
	MaxIterations int `toml:"max_iterations"`
	// Jobs bounds parallel functions; 0 means GOMAXPROCS.
	Jobs     int  `toml:"jobs"`
	Validate bool `toml:"validate"`
	// SimplifyCFG threads empty goto blocks and drops unreachable ones
	// before analysis. Dumped points then refer to the simplified blocks.
	SimplifyCFG bool `toml:"simplify_cfg"`
}

// DumpConfig is the [dump] section.
type DumpConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// TraceConfig is the [trace] section. Values use the trace flag syntax.
type TraceConfig struct {
	Level  string `toml:"level"`
	Output string `toml:"output"`
	Mode   string `toml:"mode"`
	Format string `toml:"format"`
}

// MetricsConfig names a Prometheus textfile written after each check.
type MetricsConfig struct {
	Textfile string `toml:"textfile"`
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		Analysis: AnalysisConfig{MaxIterations: 20, Validate: true},
		Dump:     DumpConfig{Dir: "inspect"},
		Trace:    TraceConfig{Level: "off", Mode: "stream", Format: "auto"},
	}
}

// Find walks up from startDir looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover loads the nearest ptrperm.toml above startDir, or the defaults
// when there is none.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Load decodes path over the defaults and checks the result.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Path = path
	if err := cfg.Check(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Check rejects values no run could honor.
func (c *Config) Check() error {
	var errs []error
	if c.Requires != "" {
		if err := version.Satisfies(c.Requires); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Analysis.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("[analysis].max_iterations must be positive, got %d", c.Analysis.MaxIterations))
	}
	if c.Analysis.Jobs < 0 {
		errs = append(errs, fmt.Errorf("[analysis].jobs must not be negative, got %d", c.Analysis.Jobs))
	}
	if c.Dump.Enabled && strings.TrimSpace(c.Dump.Dir) == "" {
		errs = append(errs, errors.New("[dump].dir must be set when dumping is enabled"))
	}
	if c.Metrics.Textfile != "" && !strings.HasSuffix(c.Metrics.Textfile, ".prom") {
		errs = append(errs, fmt.Errorf("[metrics].textfile must end in .prom, got %q", c.Metrics.Textfile))
	}
	return errors.Join(errs...)
}
