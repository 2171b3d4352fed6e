package ui

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirm prints a warning with the given bullet points and asks for a yes
// or no answer on the printer's input. Anything but "y" or "yes" declines.
func (p *Printer) Confirm(in *bufio.Reader, title string, warnings ...string) bool {
	lines := []string{"", WarningTitleStyle.Render(fmt.Sprintf("   %s  %s", WarningMarker, title)), ""}
	for _, w := range warnings {
		lines = append(lines, lipgloss.NewStyle().Foreground(TextColor).Render("   • "+w))
	}
	lines = append(lines, "")

	p.Println(lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(WarningColor).
		Width(p.width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n")))

	_, _ = fmt.Fprint(p.out, WarningTitleStyle.Render("Proceed? [y/N]: "))

	input, err := in.ReadString('\n')
	if err != nil && input == "" {
		p.Newline()
		return false
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	}

	p.Println(lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	return false
}
