package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ptrperm/internal/dump"
)

var dumpCmd = &cobra.Command{
	Use:   "dump DIR/FUNC | FILE.mp",
	Short: "Summarize fact dumps written by check --dump-dir",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		showErrors, err := cmd.Flags().GetBool("errors")
		if err != nil {
			return fmt.Errorf("failed to get errors flag: %w", err)
		}

		files := []string{args[0]}
		if info, err := os.Stat(args[0]); err != nil {
			return err
		} else if info.IsDir() {
			if files, err = dump.List(args[0]); err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no dumps in %s", args[0])
			}
		}

		out := cmd.OutOrStdout()
		for i, path := range files {
			b, err := dump.Read(path)
			if err != nil {
				return err
			}
			if i > 0 {
				fmt.Fprintln(out)
			}
			printBundle(out, filepath.Base(path), b, showErrors)
		}
		return nil
	},
}

func init() {
	dumpCmd.Flags().Bool("errors", false, "list every reported conflict with its location")
}

func printBundle(out io.Writer, file string, b *dump.Bundle, showErrors bool) {
	fmt.Fprintf(out, "%s: fn %s iteration %d (%d points, %d paths, groups %s)\n",
		file, b.Func, b.Iteration, len(b.Points), len(b.Paths), b.Facts.Groups)
	for _, rc := range b.Counts() {
		if rc.Count == 0 {
			continue
		}
		fmt.Fprintf(out, "  %-26s %d\n", rc.Name, rc.Count)
	}
	if b.Run != "" {
		fmt.Fprintf(out, "  %-26s %s\n", "run", b.Run)
	}
	if !showErrors {
		return
	}
	for _, pe := range b.Errors {
		where := pe.Point.String()
		if int(pe.Point) < len(b.Points) {
			where = b.Points[pe.Point].String()
		}
		loans := make([]string, len(pe.Loans))
		for i, l := range pe.Loans {
			loans[i] = l.String()
		}
		fmt.Fprintf(out, "  conflict at %s: %s\n", where, strings.Join(loans, ", "))
	}
}
