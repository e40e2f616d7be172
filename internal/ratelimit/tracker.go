package ratelimit

import "time"

// Window counts requests since Start.
type Window struct {
	Start time.Time
	Count int
}

// Snapshot returns the count in w, resetting the window first if it has
// expired.
func Snapshot(w *Window, window time.Duration, now time.Time) int {
	if now.Sub(w.Start) >= window {
		w.Start = now
		w.Count = 0
	}
	return w.Count
}

// Increment records one request.
func Increment(w *Window) {
	w.Count++
}
