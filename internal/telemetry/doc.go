// Package telemetry builds the controller's telemetry requests and decodes
// its responses into two snapshots: live realtime values and accumulated
// ride statistics.
//
// Both responses start with a command tag and a 32-bit mask. Each set mask
// bit means one value follows, in ascending bit order. Realtime values are
// scaled integers; statistics are auto-scaled floats (see package wire).
//
// A Decoder owns the snapshots and reports every change through a
// Publisher callback supplied by its owner.
package telemetry
