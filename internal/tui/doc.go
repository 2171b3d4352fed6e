// Package tui renders the live telemetry dashboard shown by
// "vesclink monitor" when stdout is a terminal.
//
// The Model consumes telemetry.Update values from a channel fed by the link
// session's publisher. A separate one-second tick keeps the "updated N ago"
// display current between updates, so a silent controller is visible as
// stale data rather than a frozen screen.
package tui
