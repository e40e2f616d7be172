package player

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ppiankov/pywiz/internal/tracer"
)

const program = `def double(n):
    d = n * 2
    return d

x = double(3)
print(x)
`

func traced(t *testing.T, src string) tracer.Result {
	t.Helper()
	res, err := tracer.Trace(context.Background(), src, tracer.Options{})
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	return res
}

func press(m Model, keys ...string) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "right":
			msg = tea.KeyMsg{Type: tea.KeyRight}
		case "left":
			msg = tea.KeyMsg{Type: tea.KeyLeft}
		case "home":
			msg = tea.KeyMsg{Type: tea.KeyHome}
		case "end":
			msg = tea.KeyMsg{Type: tea.KeyEnd}
		case "space":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		case "ctrl+c":
			msg = tea.KeyMsg{Type: tea.KeyCtrlC}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		updated, c := m.Update(msg)
		m, cmd = updated.(Model), c
	}
	return m, cmd
}

func TestQuit(t *testing.T) {
	for _, k := range []string{"q", "ctrl+c"} {
		_, cmd := press(NewModel(traced(t, program)), k)
		if cmd == nil {
			t.Fatalf("%s: expected quit command, got nil", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Fatalf("%s: expected tea.QuitMsg", k)
		}
	}
}

func TestStepNavigation(t *testing.T) {
	res := traced(t, program)
	last := len(res.Trace) - 1
	m := NewModel(res)

	if m.Step() != 0 {
		t.Fatalf("expected start at 0, got %d", m.Step())
	}
	m, _ = press(m, "left")
	if m.Step() != 0 {
		t.Errorf("prev at start must stay at 0, got %d", m.Step())
	}
	m, _ = press(m, "right", "l", "n")
	if m.Step() != 3 {
		t.Errorf("expected step 3, got %d", m.Step())
	}
	m, _ = press(m, "end")
	if m.Step() != last {
		t.Errorf("expected last step %d, got %d", last, m.Step())
	}
	m, _ = press(m, "right")
	if m.Step() != last {
		t.Errorf("next at end must stay at %d, got %d", last, m.Step())
	}
	if m.State().Stdout != "6\n" {
		t.Errorf("expected full output at end, got %q", m.State().Stdout)
	}
	m, _ = press(m, "0")
	if m.Step() != 0 || m.State().Stdout != "" {
		t.Errorf("reset must rewind state, got step %d output %q", m.Step(), m.State().Stdout)
	}
}

func TestStateFollowsStep(t *testing.T) {
	res := traced(t, program)
	m := NewModel(res)
	for i := range res.Trace {
		if m.State().Last == nil || m.State().Last.Step != i+1 {
			t.Fatalf("step %d: state out of sync", i)
		}
		m, _ = press(m, "right")
	}
}

func TestAutoplay(t *testing.T) {
	res := traced(t, program)
	m := NewModel(res)

	m, cmd := press(m, "space")
	if !m.Playing() || cmd == nil {
		t.Fatal("expected playback to start with a tick")
	}
	gen := m.gen

	for i := 0; i < len(res.Trace)+2; i++ {
		updated, next := m.Update(playTickMsg{gen: gen})
		m = updated.(Model)
		if next == nil {
			break
		}
	}
	if m.Playing() {
		t.Error("playback must stop at the last step")
	}
	if m.Step() != len(res.Trace)-1 {
		t.Errorf("expected last step, got %d", m.Step())
	}

	// Play from the end restarts at the beginning.
	m, _ = press(m, "space")
	if m.Step() != 0 || !m.Playing() {
		t.Errorf("expected restart from 0, got step %d playing %v", m.Step(), m.Playing())
	}
}

func TestStaleTickIgnored(t *testing.T) {
	m := NewModel(traced(t, program))
	m, _ = press(m, "space")
	stale := m.gen
	m, _ = press(m, "space") // pause
	m, _ = press(m, "space") // play again

	updated, cmd := m.Update(playTickMsg{gen: stale})
	m = updated.(Model)
	if cmd != nil || m.Step() != 0 {
		t.Errorf("stale tick must not advance, got step %d", m.Step())
	}
}

func TestManualStepPauses(t *testing.T) {
	m := NewModel(traced(t, program))
	m, _ = press(m, "space", "right")
	if m.Playing() {
		t.Error("stepping by hand must pause playback")
	}
}

func TestSpeedClamped(t *testing.T) {
	m := NewModel(traced(t, program))
	if m.interval() != BaseInterval {
		t.Errorf("expected base interval at 1x, got %s", m.interval())
	}
	m, _ = press(m, "+", "+", "+", "+")
	if m.Speed() != 2 {
		t.Errorf("expected 2x, got %v", m.Speed())
	}
	if m.interval() != BaseInterval/2 {
		t.Errorf("expected half interval at 2x, got %s", m.interval())
	}
	for i := 0; i < 20; i++ {
		m, _ = press(m, "+")
	}
	if m.Speed() != maxSpeed {
		t.Errorf("expected clamp at %v, got %v", float64(maxSpeed), m.Speed())
	}
	for i := 0; i < 40; i++ {
		m, _ = press(m, "-")
	}
	if m.Speed() != minSpeed {
		t.Errorf("expected clamp at %v, got %v", minSpeed, m.Speed())
	}
}

func TestEmptyTrace(t *testing.T) {
	m := NewModel(tracer.Result{Filename: "empty.py"})
	m, _ = press(m, "right", "end", "space")
	if m.Step() != 0 {
		t.Errorf("expected step 0, got %d", m.Step())
	}
	if !strings.Contains(m.View(), "(empty trace)") {
		t.Error("expected empty trace notice")
	}
}
