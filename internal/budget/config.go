package budget

import "time"

// Limits defines per-trace resource ceilings.
// Zero values mean unlimited (no enforcement for that dimension).
type Limits struct {
	MaxSteps       int64         `yaml:"max_steps"`
	MaxDuration    time.Duration `yaml:"max_duration"`
	MaxOutputBytes int64         `yaml:"max_output_bytes"`
	MaxCallDepth   int           `yaml:"max_call_depth"`

	// MaxTraceBytes bounds the encoded variable values (args, set, prev,
	// ret) the event log holds.
	MaxTraceBytes int64 `yaml:"max_trace_bytes"`
}

// HasLimits returns true if any limit is configured (non-zero).
func (l Limits) HasLimits() bool {
	return l.MaxSteps > 0 || l.MaxDuration > 0 || l.MaxOutputBytes > 0 || l.MaxCallDepth > 0 || l.MaxTraceBytes > 0
}

// Merge returns l with every non-zero field of override applied.
func (l Limits) Merge(override Limits) Limits {
	if override.MaxSteps > 0 {
		l.MaxSteps = override.MaxSteps
	}
	if override.MaxDuration > 0 {
		l.MaxDuration = override.MaxDuration
	}
	if override.MaxOutputBytes > 0 {
		l.MaxOutputBytes = override.MaxOutputBytes
	}
	if override.MaxCallDepth > 0 {
		l.MaxCallDepth = override.MaxCallDepth
	}
	if override.MaxTraceBytes > 0 {
		l.MaxTraceBytes = override.MaxTraceBytes
	}
	return l
}
