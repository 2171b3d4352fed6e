package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette shared with the dashboard.
var (
	PrimaryColor = lipgloss.Color("#7D56F4")
	SuccessColor = lipgloss.Color("#43BF6D")
	ErrorColor   = lipgloss.Color("#FF5555")
	WarningColor = lipgloss.Color("#FFA500")
	MutedColor   = lipgloss.Color("#626262")
	TextColor    = lipgloss.Color("#FFFFFF")
)

// Output is never narrower than MinTerminalWidth nor wider than
// MaxContentWidth.
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100
)

var (
	text   = lipgloss.NewStyle().Foreground(TextColor)
	muted  = lipgloss.NewStyle().Foreground(MutedColor)
	indent = lipgloss.NewStyle().PaddingLeft(2)
)

var (
	HeaderTitleStyle      = indent.Foreground(TextColor).Bold(true)
	HeaderCommandStyle    = indent.Foreground(MutedColor)
	HeaderParamKeyStyle   = indent.Foreground(MutedColor)
	HeaderParamValueStyle = text

	SuccessTitleStyle = lipgloss.NewStyle().Foreground(SuccessColor).Bold(true)
	ErrorTitleStyle   = lipgloss.NewStyle().Foreground(ErrorColor).Bold(true)
	WarningTitleStyle = lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	ErrorMessageStyle = lipgloss.NewStyle().Foreground(ErrorColor)

	// ResultKeyStyle pads detail keys into a column.
	ResultKeyStyle   = muted.Width(18)
	ResultValueStyle = text

	TroubleshootingTitleStyle = muted.Bold(true)
	TroubleshootingItemStyle  = muted

	TableHeaderStyle = lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true).Padding(0, 1)
	TableCellStyle   = text.Padding(0, 1)
)

// Status markers
const (
	SuccessMarker = "✓"
	FailureMarker = "✗"
	WarningMarker = "⚠"
)

// GetTerminalWidth returns the current terminal width, clamped to the
// supported range. Non-terminals get the minimum width.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MinTerminalWidth
	}
	return min(clampWidth(width), MaxContentWidth)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func clampWidth(width int) int {
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	return width
}
