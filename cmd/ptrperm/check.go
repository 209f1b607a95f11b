package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"ptrperm/internal/config"
	"ptrperm/internal/driver"
	"ptrperm/internal/metrics"
	"ptrperm/internal/pipeline"
	"ptrperm/internal/program"
	"ptrperm/internal/ui"
)

var errAnalysisFailed = errors.New("analysis failed")

var checkCmd = &cobra.Command{
	Use:   "check FILE.yaml",
	Short: "Infer pointer permissions for every function of a program",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	addCheckFlags(checkCmd.Flags())
}

func addCheckFlags(fs *pflag.FlagSet) {
	fs.Int("jobs", 0, "max parallel functions (0=auto)")
	fs.Int("max-iterations", config.Default().Analysis.MaxIterations, "refinement iteration cap per function")
	fs.Bool("no-validate", false, "skip CFG validation before analysis")
	fs.Bool("simplify-cfg", false, "thread empty goto blocks and drop unreachable ones before analysis")
	fs.String("dump-dir", "", "write per-iteration fact dumps under this directory")
	fs.String("ui", "auto", "progress UI (auto|on|off)")
	fs.Bool("watch", false, "re-run whenever the program or config file changes")
	fs.String("metrics-file", "", "write Prometheus metrics for the run to this .prom file")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	watch, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return fmt.Errorf("failed to get watch flag: %w", err)
	}

	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	cleanup, err := setupTracing(cmd, cfg.Trace)
	if err != nil {
		return err
	}
	failed := true
	var focus []string
	defer func() { cleanup(failed, focus...) }()

	if !watch {
		sum, err := checkOnce(cmd, args[0], cfg, mode)
		failed = err != nil
		if sum != nil {
			focus = sum.FailedNames()
		}
		return err
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt)
	defer stop()
	cmd.SetContext(ctx)

	watched := []string{args[0]}
	if cfg.Path != "" {
		watched = append(watched, cfg.Path)
	}
	rerun := func() {
		if cfg.Path != "" {
			next, err := loadSettings(cmd)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.RedString("config:"), err)
				return
			}
			cfg = next
		}
		if _, err := checkOnce(cmd, args[0], cfg, uiModeOff); err != nil && !errors.Is(err, errAnalysisFailed) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.RedString("error:"), err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), color.New(color.Faint).Sprint("watching for changes..."))
	}
	rerun()
	failed = false
	err = watchFiles(ctx, watched, watchDebounce, rerun)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// checkOnce loads path, analyzes every function and renders the report.
// The summary is returned whenever analysis ran, also alongside
// errAnalysisFailed.
func checkOnce(cmd *cobra.Command, path string, cfg config.Config, mode uiMode) (*driver.Summary, error) {
	showTimings, err := cmd.Flags().GetBool("timings")
	if err != nil {
		return nil, fmt.Errorf("failed to get timings flag: %w", err)
	}

	var stages pipeline.Timings
	loadStart := time.Now()
	prog, err := program.Load(path)
	if err != nil {
		return nil, err
	}
	stages.Add(pipeline.StageLoad, time.Since(loadStart))

	ctx := contextOf(cmd)
	var sum *driver.Summary
	if shouldUseTUI(mode) && len(prog.Funcs) > 0 {
		sum, err = analyzeWithUI(ctx, "check "+filepath.Base(path), prog, cfg)
	} else {
		sum, err = driver.AnalyzeAll(ctx, prog, cfg, nil)
	}
	if err != nil {
		return nil, err
	}

	out := cmd.OutOrStdout()
	reportStart := time.Now()
	if err := ui.RenderReport(out, sum, ui.ReportOptions{Color: !color.NoColor}); err != nil {
		return sum, err
	}
	stages.Add(pipeline.StageReport, time.Since(reportStart))

	if showTimings {
		stages.Add(pipeline.StageValidate, sum.Timings.Duration(pipeline.StageValidate))
		stages.Add(pipeline.StageAnalyze, sum.Timings.Duration(pipeline.StageAnalyze))
		printStageTimings(out, stages)
		fmt.Fprint(out, sum.Timer.Summary())
	}

	if cfg.Metrics.Textfile != "" {
		m := metrics.New()
		m.Record(sum)
		if err := m.WriteFile(cfg.Metrics.Textfile); err != nil {
			return sum, err
		}
	}

	if sum.Failed() > 0 {
		return sum, fmt.Errorf("%w: %d of %d functions", errAnalysisFailed, sum.Failed(), len(sum.Funcs))
	}
	return sum, nil
}

func printStageTimings(out io.Writer, timings pipeline.Timings) {
	stages := []pipeline.Stage{pipeline.StageLoad, pipeline.StageValidate, pipeline.StageAnalyze, pipeline.StageReport}
	for _, stage := range stages {
		if timings.Has(stage) {
			fmt.Fprintf(out, "%s %.1f ms\n", stage, toMillis(timings.Duration(stage)))
		}
	}
	fmt.Fprintf(out, "stages %.1f ms\n", toMillis(timings.Sum(stages...)))
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
