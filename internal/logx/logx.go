// Package logx writes operator diagnostics as plain lines to a writer,
// normally stderr: "warning: hot-reload disabled: ...". Levels are coloured
// only when the writer is a terminal.
package logx

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	colorReset   = "\033[0m"
	colorGray    = "\033[90m"
	colorYellow  = "\033[33m"
	colorBoldRed = "\033[1;31m"
)

// Level orders message severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Option configures a Logger.
type Option func(*Logger)

// WithColor forces colour on or off.
func WithColor(on bool) Option {
	return func(l *Logger) { l.color = on }
}

// WithLevel drops messages below min.
func WithLevel(min Level) Option {
	return func(l *Logger) { l.min = min }
}

// WithTimestamps prefixes each line with the wall-clock time.
func WithTimestamps(on bool) Option {
	return func(l *Logger) { l.stamps = on }
}

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// Logger is safe for concurrent use.
type Logger struct {
	mu     sync.Mutex
	w      io.Writer
	min    Level
	color  bool
	stamps bool
	now    func() time.Time
}

// New returns a logger writing to w. Colour defaults to whether w is a
// terminal.
func New(w io.Writer, opts ...Option) *Logger {
	l := &Logger{w: w, min: LevelInfo, color: IsTerminal(w), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Stderr is the logger the commands share.
var Stderr = New(os.Stderr)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (l *Logger) logf(level Level, format string, args ...any) {
	if l == nil || level < l.min {
		return
	}
	msg := fmt.Sprintf(format, args...)

	var tag, color string
	switch level {
	case LevelDebug:
		tag, color = "debug: ", colorGray
	case LevelWarn:
		tag, color = "warning: ", colorYellow
	case LevelError:
		tag, color = "error: ", colorBoldRed
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	line := ""
	if l.stamps {
		line = l.now().UTC().Format("15:04:05.000") + " "
	}
	if tag != "" && l.color {
		tag = color + tag + colorReset
	}
	fmt.Fprintf(l.w, "%s%s%s\n", line, tag, msg)
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }
