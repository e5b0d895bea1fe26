package main

import "fmt"

// verbosity is the tool's single output knob. Commands print their own
// results; these helpers only cover progress and detail lines, so two
// levels above quiet are all cpkextract needs.
type verbosity int

const (
	quietOutput   verbosity = iota // errors only (cli prints those itself)
	normalOutput                   // progress and summaries
	verboseOutput                  // per-entry and per-column detail
)

var outputLevel = normalOutput

// infof reports command progress and summaries; silenced by -quiet.
func infof(format string, args ...any) {
	if outputLevel >= normalOutput {
		fmt.Printf(format, args...)
	}
}

// verbosef prints per-entry detail only under -verbose.
func verbosef(format string, args ...any) {
	if outputLevel >= verboseOutput {
		fmt.Printf(format, args...)
	}
}
