// Package debug holds the bench tracing switches. Traces go straight to
// stdout, bypassing the structured logger, so they can be grepped per line.
package debug

import "fmt"

// Enabled turns on per-poll maneuver traces (--debug).
var Enabled bool

// Sweep turns on per-sample sweep traces, 91 lines per survey (--debug-sweep).
var Sweep bool

// Log prints when Enabled is set.
func Log(format string, args ...any) {
	if Enabled {
		fmt.Printf(format, args...)
	}
}

// SweepLog prints when Sweep is set.
func SweepLog(format string, args ...any) {
	if Sweep {
		fmt.Printf(format, args...)
	}
}
