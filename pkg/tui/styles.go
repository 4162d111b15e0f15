// Package tui holds the bubbletea views behind formu's interactive commands:
// the streaming prompt view and the jobs board.
package tui

import (
	"io"
	"os"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("215"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	paneStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("237")).
			Padding(0, 1)
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// ConfigureRenderer points lipgloss at stdout with a detected color profile,
// falling back to no color when NO_COLOR is set.
func ConfigureRenderer() {
	profile := termenv.NewOutput(os.Stdout).EnvColorProfile()
	renderer := lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)
	lipgloss.SetDefaultRenderer(renderer)
}

// IsTerminal reports whether w is an interactive terminal. Commands fall back
// to plain line output when it is not, e.g. when piped.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type keyMap struct {
	Quit key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Quit}}
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	}
}
