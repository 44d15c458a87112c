// Package dashboard renders live sampler statistics in the terminal.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codeberg.org/mutker/telemetrylab/internal/activity"
	"codeberg.org/mutker/telemetrylab/internal/errors"
	"codeberg.org/mutker/telemetrylab/internal/lifecycle"
	"codeberg.org/mutker/telemetrylab/internal/telemetry"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	DefaultRefresh = 100 * time.Millisecond

	// visible activity rows when the terminal height is unknown
	defaultRows = 10
)

type tickMsg time.Time

// toggledMsg is sent once a start or stop completes
type toggledMsg struct{}

// Model is the bubbletea model.
type Model struct {
	view    lifecycle.View
	refresh time.Duration
	width   int
	height  int

	// Copied from the view on every tick
	state       lifecycle.RunState
	intensity   int
	powerSaving bool
	snap        telemetry.Snapshot
	entries     []activity.Entry

	toggling bool
}

// New returns a model polling view every refresh interval
func New(view lifecycle.View, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	m := Model{view: view, refresh: refresh}
	m.pull()
	return m
}

// Run shows the dashboard until the user quits or ctx is cancelled
func Run(ctx context.Context, view lifecycle.View, refresh time.Duration) error {
	p := tea.NewProgram(New(view, refresh), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.New().Wrap(errors.ErrDashboardExit, err)
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) pull() {
	m.state = m.view.RunState().Get()
	m.intensity = m.view.Intensity().Get()
	m.powerSaving = m.view.PowerSaving().Get()
	m.snap = m.view.Snapshot().Get()
	m.entries = m.view.Activity().Get()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ", "t", "enter":
			if m.toggling {
				return m, nil
			}
			m.toggling = true
			view := m.view
			return m, func() tea.Msg {
				view.Toggle()
				return toggledMsg{}
			}
		case "+", "=", "up":
			m.intensity = m.view.SetIntensity(m.intensity + 1)
		case "-", "_", "down":
			m.intensity = m.view.SetIntensity(m.intensity - 1)
		}
		return m, nil

	case toggledMsg:
		m.toggling = false
		m.pull()
		return m, nil

	case tickMsg:
		m.pull()
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("telemetrylab"))
	b.WriteString("\n\n")

	b.WriteString(panelStyle.Render(m.renderStatus()))
	b.WriteString("\n")
	b.WriteString(panelStyle.Render(m.renderStats()))
	b.WriteString("\n")
	b.WriteString(panelStyle.Render(m.renderActivity()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("space: start/stop  +/-: intensity  q: quit"))

	return b.String()
}

func (m Model) renderStatus() string {
	state := critStyle.Render(m.state.String())
	if m.state == lifecycle.Running {
		state = okStyle.Render(m.state.String())
	}
	if m.toggling {
		state += helpStyle.Render(" ...")
	}

	power := okStyle.Render("off")
	if m.powerSaving {
		power = warnStyle.Render("on")
	}

	intensity := fmt.Sprintf("%d %s", m.intensity, strings.Repeat("▮", m.intensity))

	return lipgloss.JoinVertical(lipgloss.Left,
		row("Sampler", state),
		row("Intensity", valueStyle.Render(intensity)),
		row("Power saving", power),
	)
}

func (m Model) renderStats() string {
	s := m.snap
	return lipgloss.JoinVertical(lipgloss.Left,
		row("Latest", latencyColor(s.LatestLatency).Render(fmt.Sprintf("%.2f ms", s.LatestLatency))),
		row("Average", latencyColor(s.MovingAverage).Render(fmt.Sprintf("%.2f ms", s.MovingAverage))),
		row("Jank", jankColor(s.JankPercentage).Render(fmt.Sprintf("%.1f%%", s.JankPercentage))),
		row("Frames", valueStyle.Render(fmt.Sprintf("%d (%d jank)", s.TotalFrames, s.JankCount))),
	)
}

func (m Model) renderActivity() string {
	rows := defaultRows
	// title, stats and status panels take up roughly 16 lines
	if m.height > 0 {
		rows = max(1, m.height-18)
	}

	lines := make([]string, 0, rows+1)
	lines = append(lines, titleStyle.Render("Activity"))
	if len(m.entries) == 0 {
		lines = append(lines, helpStyle.Render("no activity"))
	}
	for i, e := range m.entries {
		if i == rows {
			break
		}
		lines = append(lines, valueStyle.Render(e.String()))
	}
	return strings.Join(lines, "\n")
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}
