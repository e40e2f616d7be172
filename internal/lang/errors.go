package lang

import (
	"fmt"
	"strings"
)

// CompileError reports source that cannot be tokenized or parsed. Line and
// Col are 1-based.
type CompileError struct {
	Kind string // "SyntaxError" or "IndentationError"
	Line int
	Col  int
	Msg  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s at %d:%d: %s", e.Kind, e.Line, e.Col, e.Msg)
}

func syntaxErrorf(line, col int, format string, args ...any) *CompileError {
	return &CompileError{Kind: "SyntaxError", Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

func indentErrorf(line, col int, format string, args ...any) *CompileError {
	return &CompileError{Kind: "IndentationError", Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

// Snippet renders the error with one line of context on each side and a
// caret under the offending column:
//
//	SyntaxError at 2:9: unexpected ')'
//
//	   1 | x = 1
//	   2 | y = (x +)
//	     |         ^
func (e *CompileError) Snippet(src string) string {
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	line := clamp(e.Line, 1, len(lines))

	var b strings.Builder
	b.WriteString(e.Error())
	b.WriteString("\n\n")

	width := len(fmt.Sprint(min(line+1, len(lines))))
	for n := max(1, line-1); n <= min(len(lines), line+1); n++ {
		fmt.Fprintf(&b, "  %*d | %s\n", width, n, lines[n-1])
		if n == line {
			col := clamp(e.Col, 1, len(lines[n-1])+1)
			fmt.Fprintf(&b, "  %s | %s^\n", strings.Repeat(" ", width), strings.Repeat(" ", col-1))
		}
	}
	return b.String()
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
