package audit

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeTestLog creates a temp request log with known entries for testing.
func writeTestLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-audit.jsonl")
	log, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()

	base := time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)
	at := func(sec int) string { return base.Add(time.Duration(sec) * time.Second).Format(TimestampFormat) }

	entries := []Entry{
		{Timestamp: at(0), RequestID: "r-aaa", Transport: "http", Steps: 12, Outcome: OutcomeOK, DurationMS: 3},
		{Timestamp: at(2), RequestID: "r-bbb", Transport: "http", Steps: 40, Outcome: OutcomeException, Detail: "ValueError: boom", DurationMS: 5},
		{Timestamp: at(4), RequestID: "r-ccc", Transport: "grpc", Steps: 0, Outcome: OutcomeCompileError, Detail: "SyntaxError: invalid syntax"},
		{Timestamp: at(6), RequestID: "r-ddd", Transport: "http", Steps: 100000, Outcome: OutcomeBudgetExceeded, Detail: "budget exceeded: 100000 steps >= 100000 max_steps", DurationMS: 900},
		{Timestamp: at(8), RequestID: "r-eee", Transport: "mcp", Steps: 7, Outcome: OutcomeOK, DurationMS: 1},
		{Timestamp: at(10), RequestID: "r-fff", Transport: "http", Steps: 9, Outcome: OutcomeOK, DurationMS: 2},
	}

	for _, e := range entries {
		if err := log.Record(e); err != nil {
			t.Fatal(err)
		}
	}

	return path
}

func TestReplayFilters(t *testing.T) {
	path := writeTestLog(t)
	at := func(sec int) time.Time { return time.Date(2025, 1, 15, 14, 0, sec, 0, time.UTC) }

	tests := []struct {
		name   string
		filter ReplayFilter
		want   []string
	}{
		{"no filter", ReplayFilter{}, []string{"r-aaa", "r-bbb", "r-ccc", "r-ddd", "r-eee", "r-fff"}},
		{"transport", ReplayFilter{Transport: "http"}, []string{"r-aaa", "r-bbb", "r-ddd", "r-fff"}},
		{"outcome", ReplayFilter{Outcome: OutcomeOK}, []string{"r-aaa", "r-eee", "r-fff"}},
		{"from", ReplayFilter{From: at(5)}, []string{"r-ddd", "r-eee", "r-fff"}},
		{"to inclusive", ReplayFilter{To: at(4)}, []string{"r-aaa", "r-bbb", "r-ccc"}},
		{"window and transport", ReplayFilter{Transport: "http", From: at(1), To: at(7)}, []string{"r-bbb", "r-ddd"}},
		{"unknown transport", ReplayFilter{Transport: "carrier-pigeon"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Replay(path, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, e := range result.Entries {
				got = append(got, e.RequestID)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if result.Summary.Total != len(tt.want) {
				t.Errorf("expected summary total %d, got %d", len(tt.want), result.Summary.Total)
			}
		})
	}
}

func TestReplaySummaryCountsCorrect(t *testing.T) {
	path := writeTestLog(t)

	result, err := Replay(path, ReplayFilter{})
	if err != nil {
		t.Fatal(err)
	}

	s := result.Summary
	if s.Total != 6 {
		t.Errorf("total: expected 6, got %d", s.Total)
	}
	if s.Outcomes[OutcomeOK] != 3 {
		t.Errorf("ok: expected 3, got %d", s.Outcomes[OutcomeOK])
	}
	if s.Outcomes[OutcomeBudgetExceeded] != 1 {
		t.Errorf("budget_exceeded: expected 1, got %d", s.Outcomes[OutcomeBudgetExceeded])
	}
	if s.TotalSteps != 100068 {
		t.Errorf("total steps: expected 100068, got %d", s.TotalSteps)
	}
	if s.MaxSteps != 100000 {
		t.Errorf("max steps: expected 100000, got %d", s.MaxSteps)
	}
	if s.MaxDurationMS != 900 {
		t.Errorf("max duration: expected 900, got %d", s.MaxDurationMS)
	}
}

func TestReplaySkipsMalformedLines(t *testing.T) {
	path := writeTestLog(t)
	appendLine(t, path, "not json")

	result, err := Replay(path, ReplayFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 6 {
		t.Errorf("expected malformed line skipped, got %d entries", len(result.Entries))
	}
	if Verify(path).Valid {
		t.Error("expected malformed line to break verification")
	}
}

func TestReplayMissingFile(t *testing.T) {
	_, err := Replay(filepath.Join(t.TempDir(), "missing.jsonl"), ReplayFilter{})
	if err == nil {
		t.Error("expected error for missing log")
	}
}
