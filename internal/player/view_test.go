package player

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/pywiz/internal/tracer"
)

func TestViewShowsPanes(t *testing.T) {
	m := NewModel(traced(t, program))
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	m = updated.(Model)
	m, _ = press(m, "end")

	view := m.View()
	for _, want := range []string{"Code", "Calls", "Locals", "Output", "<user_code>", "[q]quit", "paused 1x"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
	if h := lipgloss.Height(view); h > 30 {
		t.Errorf("view taller than window: %d", h)
	}
}

func TestRenderCodeMarksCurrentLine(t *testing.T) {
	m := NewModel(traced(t, program))
	m, _ = press(m, "right")
	cur := m.State().Last.Line

	code := renderCode(m, 0)
	lines := strings.Split(code, "\n")
	if len(lines) != 6 {
		t.Fatalf("expected 6 source lines, got %d", len(lines))
	}
	for i, line := range lines {
		marked := strings.HasPrefix(line, "▶ ")
		if marked != (i+1 == cur) {
			t.Errorf("line %d: marker %v, current line %d", i+1, marked, cur)
		}
	}
}

func TestRenderCodeScrollsToCurrentLine(t *testing.T) {
	var src strings.Builder
	for i := 0; i < 40; i++ {
		src.WriteString("x = 1\n")
	}
	m := NewModel(traced(t, src.String()))
	m, _ = press(m, "end")

	code := renderCode(m, 10)
	lines := strings.Split(code, "\n")
	if len(lines) != 10 {
		t.Fatalf("expected 10 visible lines, got %d", len(lines))
	}
	if !strings.Contains(lines[len(lines)-1], "40 x = 1") || !strings.HasPrefix(lines[len(lines)-1], "▶ ") {
		t.Errorf("expected last line marked, got %q", lines[len(lines)-1])
	}
}

func TestRenderCallTree(t *testing.T) {
	m := NewModel(traced(t, program))
	m, _ = press(m, "end")

	tree := renderCallTree(m.State())
	if !strings.Contains(tree, "<module> #1") {
		t.Errorf("expected module root, got:\n%s", tree)
	}
	if !strings.Contains(tree, "double #2 = 6") {
		t.Errorf("expected closed double with return value, got:\n%s", tree)
	}
}

func TestRenderLocals(t *testing.T) {
	m := NewModel(traced(t, program))
	for m.State().Last.Kind != tracer.KindReturn {
		m, _ = press(m, "right")
	}
	locals := renderLocals(m.State())
	if !strings.Contains(locals, "n = 3") || !strings.Contains(locals, "d = 6") {
		t.Errorf("expected double's locals, got:\n%s", locals)
	}
}

func TestRenderHeaderException(t *testing.T) {
	m := NewModel(traced(t, "x = [1][2]\n"))
	m, _ = press(m, "end")
	header := renderHeader(m)
	if !strings.Contains(header, "IndexError") {
		t.Errorf("expected exception in header, got %q", header)
	}
}

func TestLayoutBar(t *testing.T) {
	if got := layoutBar("left", "right", 20); got != "left           right" {
		t.Errorf("unexpected bar %q", got)
	}
	if got := layoutBar("a long list of hints", "right", 12); got != "a long right" {
		t.Errorf("unexpected truncated bar %q", got)
	}
}
