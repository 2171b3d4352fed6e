package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

type resultLook struct {
	label  string
	marker string
	style  lipgloss.Style
	border lipgloss.Color
}

var resultLooks = map[ResultType]resultLook{
	ResultSuccess: {label: "SUCCESS", marker: SuccessMarker, style: SuccessTitleStyle, border: SuccessColor},
	ResultFailure: {label: "FAILED", marker: FailureMarker, style: ErrorTitleStyle, border: ErrorColor},
	ResultWarning: {label: "WARNING", marker: WarningMarker, style: WarningTitleStyle, border: WarningColor},
}

// Result is a bordered outcome box printed at the end of a command.
type Result struct {
	Type            ResultType
	Title           string
	Details         []Detail
	Error           error    // failure results only
	Troubleshooting []string // failure results only
	Width           int
}

// AddDetail appends a detail key-value pair
func (r *Result) AddDetail(key, value string) *Result {
	r.Details = append(r.Details, Detail{Key: key, Value: value})
	return r
}

// Render returns the styled result box as a string
func (r *Result) Render() string {
	width := clampWidth(r.Width)

	look := resultLooks[r.Type]
	title := look.style.Render(fmt.Sprintf("   %s  %s  ─  %s", look.marker, look.label, r.Title))
	border := look.border

	lines := []string{"", title, ""}

	for _, d := range r.Details {
		lines = append(lines, ResultKeyStyle.Render("   "+d.Key+":")+" "+ResultValueStyle.Render(d.Value))
	}
	if len(r.Details) > 0 {
		lines = append(lines, "")
	}

	if r.Type == ResultFailure {
		if r.Error != nil {
			lines = append(lines, ErrorMessageStyle.Render("   Error: "+r.Error.Error()), "")
		}
		if len(r.Troubleshooting) > 0 {
			lines = append(lines, r.renderTroubleshootingBox(width), "")
		}
	}

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(border).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))
}

// renderTroubleshootingBox renders the inner troubleshooting box
func (r *Result) renderTroubleshootingBox(width int) string {
	lines := []string{TroubleshootingTitleStyle.Render("Troubleshooting:"), ""}
	for _, tip := range r.Troubleshooting {
		lines = append(lines, TroubleshootingItemStyle.Render("  • "+tip))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(max(width-12, 40)).
		Padding(0, 1).
		MarginLeft(3).
		Render(strings.Join(lines, "\n"))
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}
