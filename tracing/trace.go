//go:build trace

// Package tracing wraps runtime/trace. Without the trace build tag every
// function is a no-op.
package tracing

import (
	"context"
	"os"
	"runtime/trace"
)

var traceFile *os.File

// Start enables runtime tracing and writes trace data to path.
func Start(path string) error {
	var err error
	traceFile, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if err := trace.Start(traceFile); err != nil {
		traceFile.Close()
		traceFile = nil
		return err
	}
	return nil
}

// Stop stops runtime tracing and closes the trace file.
func Stop() {
	if traceFile == nil {
		return
	}
	trace.Stop()
	traceFile.Close()
	traceFile = nil
}

// Enabled reports whether this binary was built with tracing support.
func Enabled() bool { return true }

// StartTask begins a trace task and returns the derived context and a function
// to end the task.
func StartTask(ctx context.Context, name string) (context.Context, func()) {
	ctx, task := trace.NewTask(ctx, name)
	return ctx, task.End
}

// StartRegion marks a region of the current task.
func StartRegion(ctx context.Context, name string) func() {
	region := trace.StartRegion(ctx, name)
	return region.End
}

// Log adds a trace event with the provided category and message.
func Log(ctx context.Context, category, message string) {
	trace.Log(ctx, category, message)
}
