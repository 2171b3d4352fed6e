package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/vesclink/internal/urls"
	"github.com/muurk/vesclink/internal/version"
)

// AppName is shown in the dashboard header.
const AppName = "VESCLINK MONITOR"

// Layout constants for responsive terminal width
const (
	MinTerminalWidth = 60
	panelLabelWidth  = 18
)

// Color palette
var (
	PrimaryColor   = lipgloss.Color("#7D56F4") // Purple
	SecondaryColor = lipgloss.Color("#43BF6D") // Green
	WarningColor   = lipgloss.Color("#FFA500") // Orange
	ErrorColor     = lipgloss.Color("#FF5555") // Red
	TextColor      = lipgloss.Color("#FFFFFF") // White
	SubtleColor    = lipgloss.Color("#626262") // Gray
	BorderColor    = PrimaryColor
)

var (
	// PanelStyle frames the realtime and stats sections
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	PanelTitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Width(panelLabelWidth)

	ValueStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Bold(true)

	ConnectedStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true)

	DisconnectedStyle = lipgloss.NewStyle().
				Foreground(ErrorColor).
				Bold(true)

	StaleStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	SubtleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)
)

// buildHeaderContent creates header content with app name and GitHub URL
func buildHeaderContent() string {
	left := lipgloss.NewStyle().
		Foreground(TextColor).
		Bold(true).
		Render(AppName + " v" + version.Version)

	right := SubtleStyle.Render(urls.Repository)

	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

// renderContainer wraps content with the header and footer. Without a known
// terminal size the sections are stacked unframed.
func renderContainer(content, footer string, width, height int) string {
	header := buildHeaderContent()

	if width < MinTerminalWidth || height <= 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, "", content, "", footer)
	}

	headerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderForeground(BorderColor).
		Width(width-4).
		Padding(0, 1)

	footerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderForeground(BorderColor).
		Width(width-4).
		Padding(0, 1)

	inner := lipgloss.JoinVertical(
		lipgloss.Left,
		headerStyle.Render(header),
		lipgloss.NewStyle().Width(width-4).Padding(1, 1).Render(content),
		footerStyle.Render(footer),
	)

	bordered := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(BorderColor).
		Width(width - 2).
		Height(height - 2).
		AlignVertical(lipgloss.Top).
		Render(inner)

	return lipgloss.Place(width, height, lipgloss.Left, lipgloss.Top, bordered)
}

// renderRows renders label/value pairs one per line.
func renderRows(rows [][2]string) string {
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, LabelStyle.Render(r[0])+ValueStyle.Render(r[1]))
	}
	return strings.Join(lines, "\n")
}

// renderPanel renders a titled, bordered section.
func renderPanel(title, body string) string {
	return PanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, PanelTitleStyle.Render(title), body))
}
