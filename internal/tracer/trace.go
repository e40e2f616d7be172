// Package tracer executes a program in the sandbox and records every Call,
// Line, Return and Exception event with frame lineage, variable diffs,
// timing and captured output.
package tracer

import (
	"context"
	"errors"

	"github.com/ppiankov/pywiz/internal/budget"
	"github.com/ppiankov/pywiz/internal/interp"
	"github.com/ppiankov/pywiz/internal/sandbox"
)

// Options configures one trace.
type Options struct {
	// Filename labels the source in the result; DefaultFilename if empty.
	Filename string
	Limits   budget.Limits
	Clock    Clock
	// Tracker overrides the wall clock used for MaxDuration.
	Tracker *budget.Tracker
}

// Trace compiles and runs source once, recording the event log.
//
// A compile failure returns *lang.CompileError and no result. An exception
// that escapes the program is not an error: the result is returned with
// Uncaught set. When a limit is hit or ctx ends, the partial result is
// returned together with a *budget.ExceededError.
func Trace(ctx context.Context, source string, opts Options) (Result, error) {
	sbx, err := sandbox.Build(source)
	if err != nil {
		return Result{}, err
	}
	if opts.Filename == "" {
		opts.Filename = DefaultFilename
	}

	rec := NewRecorder(sbx.Output, RecorderOptions{
		Limiter: budget.NewEnforcer(ctx, opts.Limits, opts.Tracker),
		Clock:   opts.Clock,
	})
	runErr := sbx.Run(interp.Options{Hook: rec, MaxCallDepth: opts.Limits.MaxCallDepth})
	rec.Finish()

	res := Serialize(opts.Filename, source, rec.Events())
	var exc *interp.Exception
	if errors.As(runErr, &exc) {
		res.Uncaught = exc
		return res, nil
	}
	return res, runErr
}
