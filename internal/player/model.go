// Package player is a terminal trace player: step through a recorded trace
// and watch the current line, the call tree, locals and output.
package player

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ppiankov/pywiz/internal/tracer"
)

// BaseInterval is the autoplay delay at 1x speed.
const BaseInterval = 400 * time.Millisecond

const (
	minSpeed  = 0.25
	maxSpeed  = 4
	speedStep = 0.25
)

type keyMap struct {
	Next   key.Binding
	Prev   key.Binding
	First  key.Binding
	Last   key.Binding
	Play   key.Binding
	Faster key.Binding
	Slower key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Next:   key.NewBinding(key.WithKeys("right", "l", "n"), key.WithHelp("→", "next")),
	Prev:   key.NewBinding(key.WithKeys("left", "h", "p"), key.WithHelp("←", "prev")),
	First:  key.NewBinding(key.WithKeys("home", "0"), key.WithHelp("0", "reset")),
	Last:   key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "end")),
	Play:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play")),
	Faster: key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "faster")),
	Slower: key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "slower")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type playTickMsg struct {
	gen int
}

// Model is the bubbletea model of the player.
type Model struct {
	result tracer.Result
	lines  []string
	step   int // 0-based index into result.Trace
	state  tracer.State

	playing bool
	speed   float64
	// gen invalidates ticks scheduled before the last play/pause toggle.
	gen int

	windowWidth  int
	windowHeight int
}

// NewModel starts at the first event, paused, at 1x.
func NewModel(res tracer.Result) Model {
	m := Model{
		result: res,
		lines:  strings.Split(strings.TrimRight(res.Code, "\n"), "\n"),
		speed:  1,
	}
	m.seek(0)
	return m
}

// Step returns the 0-based position.
func (m Model) Step() int { return m.step }

// Playing reports whether autoplay is on.
func (m Model) Playing() bool { return m.playing }

// Speed returns the playback multiplier.
func (m Model) Speed() float64 { return m.speed }

// State returns the reconstructed state at the current step.
func (m Model) State() tracer.State { return m.state }

func (m Model) maxStep() int {
	if n := len(m.result.Trace); n > 0 {
		return n - 1
	}
	return 0
}

func (m *Model) seek(step int) {
	if step < 0 {
		step = 0
	}
	if step > m.maxStep() {
		step = m.maxStep()
	}
	m.step = step
	m.state = tracer.ReconstructState(m.result.Trace, step)
}

func (m Model) Init() tea.Cmd {
	return nil
}

// interval is the delay between autoplay steps at the current speed.
func (m Model) interval() time.Duration {
	return time.Duration(float64(BaseInterval) / m.speed)
}

func playTickCmd(gen int, wait time.Duration) tea.Cmd {
	return func() tea.Msg {
		<-time.After(wait)
		return playTickMsg{gen: gen}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = typed.Width
		m.windowHeight = typed.Height
		return m, nil
	case playTickMsg:
		if !m.playing || typed.gen != m.gen {
			return m, nil
		}
		if m.step >= m.maxStep() {
			m.playing = false
			return m, nil
		}
		m.seek(m.step + 1)
		return m, playTickCmd(m.gen, m.interval())
	case tea.KeyMsg:
		return m.handleKey(typed)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Next):
		m.pause()
		m.seek(m.step + 1)
	case key.Matches(msg, keys.Prev):
		m.pause()
		m.seek(m.step - 1)
	case key.Matches(msg, keys.First):
		m.pause()
		m.seek(0)
	case key.Matches(msg, keys.Last):
		m.pause()
		m.seek(m.maxStep())
	case key.Matches(msg, keys.Play):
		if m.playing {
			m.pause()
			return m, nil
		}
		if m.step >= m.maxStep() {
			m.seek(0)
		}
		m.playing = true
		m.gen++
		return m, playTickCmd(m.gen, m.interval())
	case key.Matches(msg, keys.Faster):
		m.speed = clampSpeed(m.speed + speedStep)
	case key.Matches(msg, keys.Slower):
		m.speed = clampSpeed(m.speed - speedStep)
	}
	return m, nil
}

func (m *Model) pause() {
	if m.playing {
		m.playing = false
		m.gen++
	}
}

func clampSpeed(s float64) float64 {
	if s < minSpeed {
		return minSpeed
	}
	if s > maxSpeed {
		return maxSpeed
	}
	return s
}
