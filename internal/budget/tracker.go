package budget

import "time"

// Usage captures how much of the budget a trace has consumed so far.
type Usage struct {
	Steps       int64
	OutputBytes int64
	TraceBytes  int64
	Duration    time.Duration
}

// Tracker measures elapsed wall time for one trace.
type Tracker struct {
	started time.Time
	now     func() time.Time
}

// NewTracker starts measuring now. A nil clock means time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{started: now(), now: now}
}

// Snapshot returns the counters supplied by the caller with elapsed time
// filled in.
func (t *Tracker) Snapshot(counters Usage) Usage {
	counters.Duration = t.now().Sub(t.started)
	return counters
}
