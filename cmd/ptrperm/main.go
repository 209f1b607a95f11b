package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"ptrperm/internal/version"
)

var rootCmd = &cobra.Command{
	Use:          "ptrperm",
	Short:        "Pointer permission inference",
	Long:         `ptrperm infers which pointers of a program need exclusive access by refining a permission hypothesis against borrow-check conflicts.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		mode, err := cmd.Flags().GetString("color")
		if err != nil {
			return err
		}
		on, err := colorEnabled(mode)
		if err != nil {
			return err
		}
		color.NoColor = !on
		return nil
	},
}

// main registers subcommands and persistent flags and runs the root command.
// Any error exits with status 1.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(versionCmd)

	addGlobalFlags(rootCmd.PersistentFlags())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.String("color", "auto", "colorize output (auto|on|off)")
	fs.String("config", "", "path to ptrperm.toml (default: search upward from the working directory)")
	fs.Bool("timings", false, "show timing information")

	fs.String("trace", "", "trace output file (- for stderr)")
	fs.String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	fs.String("trace-mode", "", "trace storage mode (stream|ring|both)")
	fs.String("trace-format", "", "trace format (auto|text|ndjson)")
	fs.Int("trace-ring-size", 4096, "ring buffer capacity for --trace-mode ring|both")
	fs.Duration("trace-heartbeat", 0, "emit heartbeat events at this interval (0 disables)")

	fs.String("cpu-profile", "", "write a CPU profile to this file")
	fs.String("mem-profile", "", "write a heap profile to this file on exit")
	fs.String("runtime-trace", "", "write a Go runtime trace to this file")
}

func colorEnabled(mode string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "auto":
		return isTerminal(os.Stdout), nil
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
