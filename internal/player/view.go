package player

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/pywiz/internal/tracer"
)

const (
	defaultWidth  = 100
	defaultHeight = 30
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	paneStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headingStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	currentStyle = lipgloss.NewStyle().Reverse(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	changedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

func (m Model) View() string {
	width, height := m.windowWidth, m.windowHeight
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}

	header := renderHeader(m)
	bar := renderBottomBar(m, width)
	bodyHeight := height - lipgloss.Height(header) - lipgloss.Height(bar)
	if bodyHeight < 6 {
		bodyHeight = 6
	}

	leftWidth := width / 2
	rightWidth := width - leftWidth
	code := renderPane("Code", renderCode(m, bodyHeight-3), leftWidth, bodyHeight)

	third := bodyHeight / 3
	tree := renderPane("Calls", renderCallTree(m.state), rightWidth, third)
	locals := renderPane("Locals", renderLocals(m.state), rightWidth, third)
	stdout := renderPane("Output", tailView(m.state.Stdout, rightWidth-4, bodyHeight-2*third-3), rightWidth, bodyHeight-2*third)

	body := lipgloss.JoinHorizontal(lipgloss.Top, code, lipgloss.JoinVertical(lipgloss.Left, tree, locals, stdout))
	return lipgloss.JoinVertical(lipgloss.Left, header, body, bar)
}

func renderHeader(m Model) string {
	total := len(m.result.Trace)
	title := titleStyle.Render("pywiz " + m.result.Filename)
	if total == 0 {
		return title + "  (empty trace)"
	}
	ev := m.result.Trace[m.step]
	desc := fmt.Sprintf("step %d/%d  %s %s:%d", m.step+1, total, ev.Kind, ev.Func, ev.Line)
	if ev.Kind == tracer.KindException {
		desc += "  " + errorStyle.Render(ev.ExcType+": "+ev.Exc)
	}
	if ev.Kind == tracer.KindReturn && ev.HasRet {
		desc += "  -> " + tracer.FormatValue(ev.Ret)
	}
	return title + "  " + desc
}

// renderPane boxes content. Border and padding take four columns and two rows.
func renderPane(title, content string, width, height int) string {
	inner := width - 4
	if inner < 1 {
		inner = 1
	}
	rows := height - 2
	if rows < 1 {
		rows = 1
	}
	text := headingStyle.Render(title) + "\n" + content
	lines := strings.Split(text, "\n")
	if len(lines) > rows {
		lines = lines[:rows]
	}
	for i, line := range lines {
		lines[i] = truncate(line, inner)
	}
	return paneStyle.Width(width - 2).Height(rows).Render(strings.Join(lines, "\n"))
}

// renderCode numbers the source and marks the current line. The window
// scrolls to keep that line visible.
func renderCode(m Model, rows int) string {
	current := 0
	var exc bool
	if m.state.Last != nil {
		current = m.state.Last.Line
		exc = m.state.Last.Kind == tracer.KindException
	}
	gutter := len(strconv.Itoa(len(m.lines)))

	var out []string
	for i, src := range m.lines {
		n := i + 1
		marker := "  "
		line := fmt.Sprintf("%*d %s", gutter, n, src)
		if n == current {
			marker = "▶ "
			if exc {
				line = errorStyle.Render(line)
			} else {
				line = currentStyle.Render(line)
			}
		}
		out = append(out, marker+line)
	}

	if rows > 0 && len(out) > rows {
		start := current - rows/2
		if start < 0 {
			start = 0
		}
		if start > len(out)-rows {
			start = len(out) - rows
		}
		out = out[start : start+rows]
	}
	return strings.Join(out, "\n")
}

// renderCallTree lists frames depth first. Finished frames are dimmed and
// show their return value; the current frame is highlighted.
func renderCallTree(st tracer.State) string {
	if len(st.Roots) == 0 {
		return dimStyle.Render("(no frames)")
	}
	cur := -1
	if st.Last != nil {
		cur = st.Last.FID
	}
	var b strings.Builder
	var walk func(fid, indent int)
	walk = func(fid, indent int) {
		fs := st.Frames[fid]
		line := fmt.Sprintf("%s%s #%d", strings.Repeat("  ", indent), fs.Func, fs.FID)
		switch {
		case fs.HasRet:
			line += " = " + tracer.FormatValue(fs.Ret)
		case fs.Exc != "":
			line += " ! " + fs.Exc
		}
		if fid == cur {
			line = currentStyle.Render(line)
		} else if fs.Closed || fs.Unwound {
			line = dimStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
		for _, child := range st.Children[fid] {
			walk(child, indent+1)
		}
	}
	for _, root := range st.Roots {
		walk(root, 0)
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderLocals shows the current frame's variables; those assigned by the
// current event are highlighted.
func renderLocals(st tracer.State) string {
	fs := st.Current()
	if fs == nil || len(fs.Locals) == 0 {
		return dimStyle.Render("(none)")
	}
	var b strings.Builder
	for i, v := range fs.Locals {
		line := v.Name + " = " + tracer.FormatValue(v.Value)
		if _, changed := st.Last.Set.Get(v.Name); changed {
			line = changedStyle.Render(line)
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return b.String()
}

// tailView shows the last rows of s.
func tailView(s string, width, rows int) string {
	if s == "" {
		return dimStyle.Render("(no output)")
	}
	if width <= 0 || rows <= 0 {
		return s
	}
	view := viewport.New(width, rows)
	view.SetContent(strings.TrimRight(s, "\n"))
	view.GotoBottom()
	return view.View()
}

func renderBottomBar(m Model, width int) string {
	hints := []string{}
	for _, b := range []key.Binding{keys.Prev, keys.Next, keys.Play, keys.First, keys.Last, keys.Slower, keys.Faster, keys.Quit} {
		h := b.Help()
		hints = append(hints, fmt.Sprintf("[%s]%s", h.Key, h.Desc))
	}
	state := "paused"
	if m.playing {
		state = "playing"
	}
	right := fmt.Sprintf("%s %sx", state, formatSpeed(m.speed))

	padding := 1
	contentWidth := width - padding*2
	if contentWidth < 0 {
		contentWidth = 0
	}
	bar := layoutBar(strings.Join(hints, " "), right, contentWidth)
	return lipgloss.NewStyle().Reverse(true).Padding(0, padding).Render(bar)
}

func formatSpeed(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

func layoutBar(left string, right string, width int) string {
	if width <= 0 {
		return left + " " + right
	}
	leftWidth := lipgloss.Width(left)
	rightWidth := lipgloss.Width(right)
	gap := width - leftWidth - rightWidth
	if gap < 1 {
		availableLeft := width - rightWidth - 1
		if availableLeft < 0 {
			return truncate(right, width)
		}
		left = truncate(left, availableLeft)
		leftWidth = lipgloss.Width(left)
		gap = width - leftWidth - rightWidth
		if gap < 1 {
			gap = 1
		}
	}
	return truncate(left+strings.Repeat(" ", gap)+right, width)
}

// truncate cuts plain text to width runes. Styled text is left alone since
// escape sequences would be split.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if strings.Contains(s, "\x1b") {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width])
}
