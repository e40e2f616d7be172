package audit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

var rule = strings.Repeat("─", 66) + "\n"

// FormatTimeline renders one line per request between a time-range header
// and a per-outcome summary.
func FormatTimeline(result *ReplayResult) string {
	if len(result.Entries) == 0 {
		return "No requests found.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Requests: %s–%s UTC\n",
		reformat(result.Summary.FirstTimestamp, time.DateTime),
		reformat(result.Summary.LastTimestamp, time.TimeOnly))
	b.WriteString(rule)
	for _, e := range result.Entries {
		fmt.Fprintf(&b, "%-10s %-5s %-16s %-14s %7d steps %6dms  %s\n",
			reformat(e.Timestamp, time.TimeOnly),
			e.Transport,
			strings.ToUpper(e.Outcome),
			clip(e.RequestID, 14),
			e.Steps,
			e.DurationMS,
			clip(e.Detail, 30))
	}
	b.WriteString(rule)

	s := result.Summary
	names := make([]string, 0, len(s.Outcomes))
	for name := range s.Outcomes {
		names = append(names, name)
	}
	sort.Strings(names)
	counts := make([]string, len(names))
	for i, name := range names {
		counts[i] = fmt.Sprintf("%d %s", s.Outcomes[name], name)
	}
	fmt.Fprintf(&b, "Summary: %d requests (%s) | %d steps total, max %d\n",
		s.Total, strings.Join(counts, ", "), s.TotalSteps, s.MaxSteps)
	return b.String()
}

// FormatJSON renders a ReplayResult as indented JSON.
func FormatJSON(result *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

// reformat re-renders an entry timestamp in layout, or returns it as is
// when it does not parse.
func reformat(ts, layout string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format(layout)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
