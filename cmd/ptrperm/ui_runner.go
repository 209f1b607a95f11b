package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"ptrperm/internal/config"
	"ptrperm/internal/driver"
	"ptrperm/internal/pipeline"
	"ptrperm/internal/program"
	"ptrperm/internal/ui"
)

type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return uiModeAuto, nil
	case "on":
		return uiModeOn, nil
	case "off":
		return uiModeOff, nil
	default:
		return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
}

func shouldUseTUI(mode uiMode) bool {
	switch mode {
	case uiModeOn:
		return true
	case uiModeOff:
		return false
	default:
		return isTerminal(os.Stdout)
	}
}

type analyzeOutcome struct {
	summary *driver.Summary
	err     error
}

func analyzeWithUI(ctx context.Context, title string, prog *program.Program, cfg config.Config) (*driver.Summary, error) {
	events := make(chan pipeline.Event, 256)
	outcomeCh := make(chan analyzeOutcome, 1)

	go func() {
		sum, err := driver.AnalyzeAll(ctx, prog, cfg, pipeline.ChannelSink{Ch: events})
		outcomeCh <- analyzeOutcome{summary: sum, err: err}
		close(events)
	}()

	names := make([]string, len(prog.Funcs))
	for i, fn := range prog.Funcs {
		names[i] = fn.Name()
	}
	model := ui.NewProgressModel(title, names, cfg.Analysis.MaxIterations, events)
	p := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := p.Run()
	// The view may quit before the driver finishes.
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.summary, uiErr
	}
	return outcome.summary, outcome.err
}
