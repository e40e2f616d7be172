package player

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ppiankov/pywiz/internal/tracer"
)

// Start runs the player full screen until the user quits.
func Start(res tracer.Result) error {
	program := tea.NewProgram(NewModel(res), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
