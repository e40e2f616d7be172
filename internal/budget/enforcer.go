package budget

import (
	"context"
	"errors"
	"fmt"
)

// ErrCancelled is reported when the caller's context ends a trace early.
var ErrCancelled = errors.New("trace cancelled")

// CheckResult is the outcome of a budget check.
type CheckResult struct {
	Exceeded  bool
	Dimension string // "steps", "output_bytes", "trace_bytes", "duration", "cancelled"
	Current   int64
	Limit     int64
	Reason    string
}

// Check compares current usage against limits.
// Dimensions are checked in the order steps, output bytes, trace bytes,
// duration; the first exceeded one is reported.
func Check(usage Usage, limits Limits) CheckResult {
	if limits.MaxSteps > 0 && usage.Steps >= limits.MaxSteps {
		return CheckResult{
			Exceeded:  true,
			Dimension: "steps",
			Current:   usage.Steps,
			Limit:     limits.MaxSteps,
			Reason:    fmt.Sprintf("budget exceeded: %d steps >= %d max_steps", usage.Steps, limits.MaxSteps),
		}
	}
	if limits.MaxOutputBytes > 0 && usage.OutputBytes > limits.MaxOutputBytes {
		return CheckResult{
			Exceeded:  true,
			Dimension: "output_bytes",
			Current:   usage.OutputBytes,
			Limit:     limits.MaxOutputBytes,
			Reason:    fmt.Sprintf("budget exceeded: %d output bytes > %d max_output_bytes", usage.OutputBytes, limits.MaxOutputBytes),
		}
	}
	if limits.MaxTraceBytes > 0 && usage.TraceBytes > limits.MaxTraceBytes {
		return CheckResult{
			Exceeded:  true,
			Dimension: "trace_bytes",
			Current:   usage.TraceBytes,
			Limit:     limits.MaxTraceBytes,
			Reason:    fmt.Sprintf("budget exceeded: %d trace bytes > %d max_trace_bytes", usage.TraceBytes, limits.MaxTraceBytes),
		}
	}
	if limits.MaxDuration > 0 && usage.Duration >= limits.MaxDuration {
		return CheckResult{
			Exceeded:  true,
			Dimension: "duration",
			Current:   int64(usage.Duration),
			Limit:     int64(limits.MaxDuration),
			Reason:    fmt.Sprintf("budget exceeded: %s duration >= %s max_duration", usage.Duration, limits.MaxDuration),
		}
	}
	return CheckResult{}
}

// ExceededError stops a trace. The partial trace recorded so far stays valid.
type ExceededError struct {
	Result CheckResult
	cause  error
}

func (e *ExceededError) Error() string { return e.Result.Reason }

// Unwrap exposes ErrCancelled and the context error for cancelled traces.
func (e *ExceededError) Unwrap() []error {
	if e.cause == nil {
		return nil
	}
	return []error{ErrCancelled, e.cause}
}

// Limiter is the pre-event check a recorder runs before every step.
type Limiter interface {
	Allow(counters Usage) error
}

// Enforcer applies Limits and context cancellation to one trace.
type Enforcer struct {
	ctx     context.Context
	limits  Limits
	tracker *Tracker
}

// NewEnforcer starts the duration clock immediately.
func NewEnforcer(ctx context.Context, limits Limits, tracker *Tracker) *Enforcer {
	if ctx == nil {
		ctx = context.Background()
	}
	if tracker == nil {
		tracker = NewTracker(nil)
	}
	return &Enforcer{ctx: ctx, limits: limits, tracker: tracker}
}

// Limits returns the ceilings being enforced.
func (e *Enforcer) Limits() Limits { return e.limits }

// Allow returns nil while the trace may record another event. counters
// holds what has been recorded so far; Duration is measured here.
func (e *Enforcer) Allow(counters Usage) error {
	if err := e.ctx.Err(); err != nil {
		return &ExceededError{
			Result: CheckResult{
				Exceeded:  true,
				Dimension: "cancelled",
				Reason:    fmt.Sprintf("%s: %v", ErrCancelled, err),
			},
			cause: err,
		}
	}
	result := Check(e.tracker.Snapshot(counters), e.limits)
	if result.Exceeded {
		return &ExceededError{Result: result}
	}
	return nil
}
