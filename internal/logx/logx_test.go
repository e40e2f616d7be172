package logx

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLoggerPlainLines(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.Infof("listening on %s", ":8000")
	l.Warnf("hot-reload disabled: %v", "no such file")
	l.Errorf("boom")
	l.Debugf("hidden")

	want := "listening on :8000\nwarning: hot-reload disabled: no such file\nerror: boom\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

func TestLoggerBufferIsNotATerminal(t *testing.T) {
	if IsTerminal(&bytes.Buffer{}) {
		t.Error("expected bytes.Buffer not to be a terminal")
	}
}

func TestLoggerColor(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, WithColor(true)).Warnf("careful")
	if !strings.Contains(buf.String(), colorYellow+"warning: "+colorReset) {
		t.Errorf("expected coloured tag, got %q", buf.String())
	}
}

func TestLoggerLevelAndTimestamps(t *testing.T) {
	var buf bytes.Buffer
	clock := func() time.Time { return time.Date(2026, 3, 1, 12, 30, 45, 123000000, time.UTC) }
	l := New(&buf, WithLevel(LevelDebug), WithTimestamps(true), WithClock(clock))
	l.Debugf("step %d", 3)

	if buf.String() != "12:30:45.123 debug: step 3\n" {
		t.Errorf("unexpected line %q", buf.String())
	}

	buf.Reset()
	New(&buf, WithLevel(LevelError)).Warnf("dropped")
	if buf.Len() != 0 {
		t.Errorf("expected warning dropped below level, got %q", buf.String())
	}
}

func TestLoggerNilIsNoop(t *testing.T) {
	var l *Logger
	l.Infof("nothing")
}

func TestLoggerConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Infof("line")
		}()
	}
	wg.Wait()
	if got := strings.Count(buf.String(), "line\n"); got != 50 {
		t.Errorf("expected 50 intact lines, got %d", got)
	}
}
