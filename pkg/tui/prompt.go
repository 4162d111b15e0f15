package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/papercomputeco/formu/pkg/sse"
	"github.com/papercomputeco/formu/pkg/typewriter"
)

// StreamDoneMsg tells the prompt view the event stream has ended.
type StreamDoneMsg struct {
	Err error
}

type revealMsg time.Time

// PromptModel shows the analysis and prompt regions filling in at typewriter
// speed while the stream is read in the background. The stream handler fills
// the buffers; the model's own tick loop reveals one rune per region per tick.
type PromptModel struct {
	title    string
	analysis *typewriter.Buffer
	prompt   *typewriter.Buffer
	spinner  spinner.Model
	keys     keyMap
	help     help.Model
	width    int
	period   time.Duration
	done     bool
	aborted  bool
	err      error
	onQuit   func()
}

// NewPromptModel builds the view. opts configure both typewriter buffers; the
// buffers always run on manual ticks driven by the model.
func NewPromptModel(title string, onQuit func(), opts ...typewriter.Option) *PromptModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = accentStyle

	opts = append(opts, typewriter.WithManualTicks())
	analysis := typewriter.NewBuffer(opts...)

	return &PromptModel{
		title:    title,
		analysis: analysis,
		prompt:   typewriter.NewBuffer(opts...),
		period:   analysis.TickPeriod(),
		spinner:  s,
		keys:     defaultKeyMap(),
		help:     help.New(),
		width:    80,
		onQuit:   onQuit,
	}
}

// Begin clears both regions for a new run.
func (m *PromptModel) Begin() {
	m.analysis.Reset()
	m.prompt.Reset()
	m.done = false
	m.aborted = false
	m.err = nil
}

// Handler routes decoded events into the two regions: "analysis" events to
// the analysis buffer, "prompt" and untyped events to the prompt buffer.
// onTerminal runs once the stream signals completion.
func (m *PromptModel) Handler(onTerminal func()) sse.Handler {
	return sse.HandlerFuncs{
		Event: func(ev sse.Event) {
			switch ev.Channel() {
			case sse.ChannelAnalysis:
				m.analysis.Enqueue(ev.Payload)
			case sse.ChannelPrompt:
				m.prompt.Enqueue(ev.Payload)
			}
		},
		Terminal: onTerminal,
	}
}

// Analysis returns the analysis buffer.
func (m *PromptModel) Analysis() *typewriter.Buffer { return m.analysis }

// Prompt returns the prompt buffer.
func (m *PromptModel) Prompt() *typewriter.Buffer { return m.prompt }

// Err returns the stream error, if any.
func (m *PromptModel) Err() error { return m.err }

// Aborted reports whether the user quit before the stream finished.
func (m *PromptModel) Aborted() bool { return m.aborted }

func (m *PromptModel) Init() bubbletea.Cmd {
	return bubbletea.Batch(m.spinner.Tick, m.revealTick())
}

func (m *PromptModel) revealTick() bubbletea.Cmd {
	return bubbletea.Tick(m.period, func(t time.Time) bubbletea.Msg {
		return revealMsg(t)
	})
}

func (m *PromptModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case bubbletea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			if !m.done {
				m.aborted = true
			}
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, bubbletea.Quit
		}
		return m, nil

	case StreamDoneMsg:
		m.done = true
		m.err = msg.Err
		return m, nil

	case revealMsg:
		m.analysis.Tick()
		m.prompt.Tick()
		if m.settled() {
			return m, bubbletea.Quit
		}
		return m, m.revealTick()

	case spinner.TickMsg:
		var cmd bubbletea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// settled reports whether the stream ended and both regions caught up.
func (m *PromptModel) settled() bool {
	if !m.done {
		return false
	}
	if m.err != nil {
		return true
	}
	return m.analysis.Pending() == 0 && m.prompt.Pending() == 0
}

func (m *PromptModel) View() string {
	width := max(m.width-2, 20)
	pane := paneStyle.Width(width - 2)

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Analysis"))
	b.WriteString("\n")
	b.WriteString(pane.Render(m.region(m.analysis)))
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Prompt"))
	b.WriteString("\n")
	b.WriteString(pane.Render(m.region(m.prompt)))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(failStyle.Render("✗ " + m.err.Error()))
	case m.done && m.settled():
		b.WriteString(okStyle.Render("✓ done"))
	default:
		b.WriteString(m.spinner.View() + " " + mutedStyle.Render("generating..."))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return lipgloss.NewStyle().MaxWidth(m.width).Render(b.String())
}

func (m *PromptModel) region(buf *typewriter.Buffer) string {
	text := buf.Revealed()
	if buf.Active() {
		text += cursorStyle.Render("▌")
	}
	if text == "" {
		return mutedStyle.Render("waiting...")
	}
	return text
}
