package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ptrperm/internal/config"
	"ptrperm/internal/trace"
)

// setupTracing builds the tracer described by cfg, attaches it to the
// command context and returns a cleanup function. When failed reports true
// at cleanup time, the ring buffer (if any) is dumped to stderr, narrowed to
// funcs when any are named.
func setupTracing(cmd *cobra.Command, cfg config.TraceConfig) (func(failed bool, funcs ...string), error) {
	level, err := trace.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid trace level: %w", err)
	}
	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(contextOf(cmd), trace.Nop))
		return func(bool, ...string) {}, nil
	}

	mode, err := trace.ParseMode(cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("invalid trace mode: %w", err)
	}
	format, err := trace.ParseFormat(cfg.Format, cfg.Output)
	if err != nil {
		return nil, err
	}
	ringSize, err := cmd.Flags().GetInt("trace-ring-size")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	heartbeatInterval, err := cmd.Flags().GetDuration("trace-heartbeat")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: cfg.Output,
		RingSize:   ringSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	act := &trace.Activity{}
	cmd.SetContext(trace.WithActivity(trace.WithTracer(contextOf(cmd), tracer), act))
	heartbeat := trace.StartHeartbeat(tracer, heartbeatInterval, act)

	return func(failed bool, funcs ...string) {
		heartbeat.Stop()
		if ring := trace.FindRing(tracer); ring != nil && failed {
			fmt.Fprintln(cmd.ErrOrStderr(), "trace: last events")
			if err := ring.Dump(os.Stderr, format, funcs...); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "trace: dump error: %v\n", err)
			}
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}, nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
