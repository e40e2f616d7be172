package audit

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampFormat is the layout used in audit entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// ReplayFilter selects request entries. Empty fields match everything.
type ReplayFilter struct {
	Transport string
	Outcome   string
	From      time.Time // zero value = no lower bound
	To        time.Time // zero value = no upper bound
}

func (f ReplayFilter) match(e Entry) bool {
	if f.Transport != "" && e.Transport != f.Transport {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	ts, err := time.Parse(TimestampFormat, e.Timestamp)
	if err != nil {
		return false
	}
	if !f.From.IsZero() && ts.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ts.After(f.To) {
		return false
	}
	return true
}

// ReplaySummary aggregates the selected requests.
type ReplaySummary struct {
	Total          int            `json:"total"`
	Outcomes       map[string]int `json:"outcomes"`
	TotalSteps     int            `json:"total_steps"`
	MaxSteps       int            `json:"max_steps"`
	MaxDurationMS  int64          `json:"max_duration_ms"`
	FirstTimestamp string         `json:"first_timestamp"`
	LastTimestamp  string         `json:"last_timestamp"`
}

// ReplayResult holds filtered entries and their summary.
type ReplayResult struct {
	Entries []Entry       `json:"entries"`
	Summary ReplaySummary `json:"summary"`
}

// Replay returns the entries of the log at path that match filter, with
// their summary. Lines that are not entries are skipped; Verify reports them.
func Replay(path string, filter ReplayFilter) (*ReplayResult, error) {
	result := &ReplayResult{Summary: ReplaySummary{Outcomes: map[string]int{}}}
	err := eachLine(path, func(_ int, line []byte) error {
		var entry Entry
		if json.Unmarshal(line, &entry) != nil || !filter.match(entry) {
			return nil
		}
		result.Entries = append(result.Entries, entry)
		updateSummary(&result.Summary, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return result, nil
}

func updateSummary(s *ReplaySummary, entry Entry) {
	s.Total++
	s.Outcomes[entry.Outcome]++
	s.TotalSteps += entry.Steps
	if entry.Steps > s.MaxSteps {
		s.MaxSteps = entry.Steps
	}
	if entry.DurationMS > s.MaxDurationMS {
		s.MaxDurationMS = entry.DurationMS
	}
	if s.FirstTimestamp == "" {
		s.FirstTimestamp = entry.Timestamp
	}
	s.LastTimestamp = entry.Timestamp
}
