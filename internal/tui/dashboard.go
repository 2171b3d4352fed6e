package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/vesclink/internal/telemetry"
)

// refreshInterval drives the "last update" age display.
const refreshInterval = time.Second

// staleAfter marks realtime data older than this as stale.
const staleAfter = 5 * time.Second

// updateMsg carries one telemetry update into the model
type updateMsg telemetry.Update

// tickMsg refreshes relative timestamps
type tickMsg time.Time

// streamClosedMsg reports that the update channel was closed
type streamClosedMsg struct{}

// LinkErrorMsg reports that the link session ended with an error. Send it
// with tea.Program.Send.
type LinkErrorMsg struct {
	Err error
}

// Model is the live telemetry dashboard
type Model struct {
	// Name is the link nickname shown in the title line
	Name string
	// Target describes the transport (port and baud, or URL)
	Target string

	Realtime telemetry.Realtime
	Stats    telemetry.Stats
	Updates  int
	Err      error

	Width  int
	Height int

	Help help.Model
	Keys keyMap

	updates <-chan telemetry.Update
	now     func() time.Time
	closed  bool
}

// New creates a dashboard that renders every update received on updates.
func New(name, target string, updates <-chan telemetry.Update) Model {
	return Model{
		Name:    name,
		Target:  target,
		Help:    help.New(),
		Keys:    defaultKeyMap(),
		updates: updates,
		now:     time.Now,
	}
}

// Init starts listening for updates and the refresh ticker
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tick())
}

// Update handles updates, ticks and key presses
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.Keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.Keys.Help):
			m.Help.ShowAll = !m.Help.ShowAll
		}
		return m, nil

	case updateMsg:
		m.Realtime = msg.Realtime
		m.Stats = msg.Stats
		m.Updates++
		return m, waitForUpdate(m.updates)

	case streamClosedMsg:
		m.closed = true
		m.Realtime.Connected = false
		return m, nil

	case LinkErrorMsg:
		m.Err = msg.Err
		m.Realtime.Connected = false
		return m, nil

	case tickMsg:
		return m, tick()
	}

	return m, nil
}

// View renders the dashboard
func (m Model) View() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatusLine(),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, m.renderRealtime(), " ", m.renderStats()),
		m.renderError(),
	)
	return renderContainer(content, m.Help.View(m.Keys), m.Width, m.Height)
}

func (m Model) renderStatusLine() string {
	state := DisconnectedStyle.Render("● disconnected")
	if m.Realtime.Connected {
		state = ConnectedStyle.Render("● connected")
	}

	age := "no data yet"
	if !m.Realtime.LastUpdate.IsZero() {
		since := m.Realtime.SinceLastUpdate(m.now())
		age = "updated " + formatAge(since) + " ago"
		if since > staleAfter {
			age = StaleStyle.Render(age)
		}
	}

	return fmt.Sprintf("%s %s  %s  %s  %s",
		ValueStyle.Render(m.Name),
		SubtleStyle.Render(m.Target),
		state,
		SubtleStyle.Render(age),
		SubtleStyle.Render(fmt.Sprintf("%d updates", m.Updates)),
	)
}

func (m Model) renderRealtime() string {
	r := m.Realtime
	return renderPanel("Realtime", renderRows([][2]string{
		{"Battery", fmt.Sprintf("%.1f V", r.BatteryVoltage)},
		{"Input current", fmt.Sprintf("%.2f A", r.InputCurrent)},
		{"Power", fmt.Sprintf("%.0f W", r.BatteryVoltage*r.InputCurrent)},
		{"MOSFET temp", fmt.Sprintf("%.1f °C", r.MosTemperature)},
		{"Consumed", fmt.Sprintf("%.2f Wh", r.WattHours)},
		{"ERPM", fmt.Sprintf("%.0f", r.RPM)},
	}))
}

func (m Model) renderStats() string {
	s := m.Stats
	updated := "never"
	if !s.LastUpdate.IsZero() {
		updated = formatAge(s.SinceLastUpdate(m.now())) + " ago"
	}
	return renderPanel("Ride statistics", renderRows([][2]string{
		{"Run time", formatAge(time.Duration(s.RunTime * float64(time.Second)))},
		{"Power avg/max", fmt.Sprintf("%.0f / %.0f W", s.AvgPower, s.MaxPower)},
		{"Current avg/max", fmt.Sprintf("%.1f / %.1f A", s.AvgCurrent, s.MaxCurrent)},
		{"MOSFET avg/max", fmt.Sprintf("%.1f / %.1f °C", s.AvgMosTemperature, s.MaxMosTemperature)},
		{"Updated", updated},
	}))
}

func (m Model) renderError() string {
	switch {
	case m.Err != nil:
		return "\n" + DisconnectedStyle.Render("✗ "+m.Err.Error())
	case m.closed:
		return "\n" + SubtleStyle.Render("Link closed. Press q to quit.")
	}
	return ""
}

// formatAge renders a duration at a resolution suited to a status line.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Second:
		return "<1s"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d/time.Second))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d/time.Minute), int(d%time.Minute/time.Second))
	default:
		return fmt.Sprintf("%dh%02dm", int(d/time.Hour), int(d%time.Hour/time.Minute))
	}
}

func waitForUpdate(ch <-chan telemetry.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return updateMsg(u)
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// NewProgram creates the full-screen program for m, stopped when ctx ends.
func NewProgram(ctx context.Context, m Model) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
}

// Run shows the dashboard until the user quits or ctx ends.
func Run(p *tea.Program) error {
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
