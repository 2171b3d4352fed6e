// Package ui renders the styled one-shot output of vesclink commands:
// a header banner, bordered result boxes, tables and a yes/no prompt.
//
// Output is plain lipgloss rendering written to an io.Writer; nothing here
// takes over the terminal. The live dashboard lives in package tui.
//
// Logging stays silent unless VESCLINK_LOG_LEVEL is set, so these boxes
// are the only thing a user sees by default.
package ui
