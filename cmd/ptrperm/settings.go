package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ptrperm/internal/config"
)

// loadSettings reads ptrperm.toml (explicit --config or upward search) and
// applies command-line overrides. Only flags the user set take effect.
func loadSettings(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	path, err := flags.GetString("config")
	if err != nil {
		return config.Config{}, err
	}

	var cfg config.Config
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		var wd string
		if wd, err = os.Getwd(); err != nil {
			return config.Config{}, fmt.Errorf("failed to get working directory: %w", err)
		}
		cfg, err = config.Discover(wd)
	}
	if err != nil {
		return config.Config{}, err
	}

	overrides := []struct {
		flag  string
		apply func() error
	}{
		{"jobs", func() (err error) { cfg.Analysis.Jobs, err = flags.GetInt("jobs"); return }},
		{"max-iterations", func() (err error) { cfg.Analysis.MaxIterations, err = flags.GetInt("max-iterations"); return }},
		{"no-validate", func() error {
			off, err := flags.GetBool("no-validate")
			cfg.Analysis.Validate = !off
			return err
		}},
		{"simplify-cfg", func() (err error) { cfg.Analysis.SimplifyCFG, err = flags.GetBool("simplify-cfg"); return }},
		{"dump-dir", func() (err error) {
			cfg.Dump.Enabled = true
			cfg.Dump.Dir, err = flags.GetString("dump-dir")
			return
		}},
		{"metrics-file", func() (err error) { cfg.Metrics.Textfile, err = flags.GetString("metrics-file"); return }},
		{"trace", func() (err error) { cfg.Trace.Output, err = flags.GetString("trace"); return }},
		{"trace-level", func() (err error) { cfg.Trace.Level, err = flags.GetString("trace-level"); return }},
		{"trace-mode", func() (err error) { cfg.Trace.Mode, err = flags.GetString("trace-mode"); return }},
		{"trace-format", func() (err error) { cfg.Trace.Format, err = flags.GetString("trace-format"); return }},
	}
	for _, o := range overrides {
		if flags.Lookup(o.flag) == nil || !flags.Changed(o.flag) {
			continue
		}
		if err := o.apply(); err != nil {
			return config.Config{}, fmt.Errorf("failed to get %s flag: %w", o.flag, err)
		}
	}
	// A trace destination without a level means "trace the phases".
	if cfg.Trace.Output != "" && (cfg.Trace.Level == "" || cfg.Trace.Level == "off") && !flags.Changed("trace-level") {
		cfg.Trace.Level = "phase"
	}
	if err := cfg.Check(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
