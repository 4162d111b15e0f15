package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/papercomputeco/formu/pkg/cliui"
	"github.com/papercomputeco/formu/pkg/jobs"
	"github.com/papercomputeco/formu/pkg/quota"
	"github.com/papercomputeco/formu/pkg/utils"
)

// JobUpdateMsg carries one job progress update into the board.
type JobUpdateMsg jobs.Update

// QuotaMsg carries a published quota snapshot into the board.
type QuotaMsg quota.Snapshot

// AllJobsDoneMsg tells the board no more jobs will arrive. The board quits
// once every known job is terminal.
type AllJobsDoneMsg struct{}

type jobRow struct {
	latest jobs.Update
	status string
}

// JobsModel is the jobs board: one row per job plus the quota badge.
type JobsModel struct {
	title   string
	order   []string
	rows    map[string]*jobRow
	quota   quota.Snapshot
	spinner spinner.Model
	keys    keyMap
	help    help.Model
	width   int
	closing bool
	onQuit  func()
}

// NewJobsModel builds an empty board showing initial as the quota.
func NewJobsModel(title string, initial quota.Snapshot, onQuit func()) *JobsModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = accentStyle

	return &JobsModel{
		title:   title,
		rows:    make(map[string]*jobRow),
		quota:   initial,
		spinner: s,
		keys:    defaultKeyMap(),
		help:    help.New(),
		width:   100,
		onQuit:  onQuit,
	}
}

// Quota returns the last snapshot the board received.
func (m *JobsModel) Quota() quota.Snapshot { return m.quota }

// Counts returns how many jobs are known, and how many of those are terminal.
func (m *JobsModel) Counts() (total, finished int) {
	for _, id := range m.order {
		if m.rows[id].latest.Phase.Terminal() {
			finished++
		}
	}
	return len(m.order), finished
}

func (m *JobsModel) Init() bubbletea.Cmd {
	return m.spinner.Tick
}

func (m *JobsModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case bubbletea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, bubbletea.Quit
		}
		return m, nil

	case JobUpdateMsg:
		m.apply(jobs.Update(msg))
		return m, m.maybeQuit()

	case QuotaMsg:
		m.quota = quota.Snapshot(msg)
		return m, nil

	case AllJobsDoneMsg:
		m.closing = true
		return m, m.maybeQuit()

	case spinner.TickMsg:
		var cmd bubbletea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *JobsModel) apply(u jobs.Update) {
	row, ok := m.rows[u.JobID]
	if !ok {
		row = &jobRow{}
		m.rows[u.JobID] = row
		m.order = append(m.order, u.JobID)
	}

	// Terminal rows are final. A queued notice can race behind the worker's
	// first update, so it never overrides an existing row.
	if row.latest.Phase.Terminal() || (ok && u.Phase == jobs.PhaseQueued) {
		return
	}

	if u.Status != "" {
		row.status = u.Status
	}
	if u.TaskID == "" {
		u.TaskID = row.latest.TaskID
	}
	row.latest = u
}

func (m *JobsModel) maybeQuit() bubbletea.Cmd {
	if !m.closing {
		return nil
	}
	total, finished := m.Counts()
	if total == finished {
		return bubbletea.Quit
	}
	return nil
}

func (m *JobsModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("  ")
	b.WriteString(cliui.QuotaBadge(m.quota))
	b.WriteString("\n\n")

	if len(m.order) == 0 {
		b.WriteString(mutedStyle.Render("  waiting for jobs..."))
		b.WriteString("\n")
	}

	for _, id := range m.order {
		b.WriteString(m.renderRow(m.rows[id]))
		b.WriteString("\n")
	}

	total, finished := m.Counts()
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  %d/%d finished", finished, total)))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return lipgloss.NewStyle().MaxWidth(m.width).Render(b.String())
}

func (m *JobsModel) renderRow(row *jobRow) string {
	u := row.latest

	var mark string
	switch u.Phase {
	case jobs.PhaseSucceeded:
		mark = cliui.SuccessMark
	case jobs.PhaseFailed, jobs.PhaseRejected, jobs.PhaseCancelled:
		mark = cliui.FailMark
	case jobs.PhaseQueued:
		mark = mutedStyle.Render("·")
	default:
		mark = m.spinner.View()
	}

	source := fmt.Sprintf("%-24s", utils.Truncate(u.Source, 21))
	line := fmt.Sprintf("  %s %-8s %s %s", mark, u.Kind, source, m.describe(row))
	return line
}

func (m *JobsModel) describe(row *jobRow) string {
	u := row.latest

	switch u.Phase {
	case jobs.PhaseSucceeded:
		detail := okStyle.Render("done")
		if len(u.Artifacts) > 0 {
			detail += " " + mutedStyle.Render(u.Artifacts[0])
		}
		return detail

	case jobs.PhaseFailed, jobs.PhaseRejected, jobs.PhaseCancelled:
		return failStyle.Render(u.Message)

	case jobs.PhasePolling:
		parts := []string{accentStyle.Render(u.Phase.String())}
		if row.status != "" {
			parts = append(parts, row.status)
		}
		if u.Progress > 0 {
			parts = append(parts, fmt.Sprintf("%d%%", u.Progress))
		}
		if u.TaskID != "" {
			parts = append(parts, mutedStyle.Render(u.TaskID))
		}
		return strings.Join(parts, " ")

	default:
		return mutedStyle.Render(u.Phase.String())
	}
}
