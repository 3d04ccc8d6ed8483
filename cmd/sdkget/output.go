package main

import "github.com/fatih/color"

// outputStyle holds the common coloring for install/list command output.
type outputStyle struct {
	successMark string
	failMark    string
	warnMark    string
	header      *color.Color
	path        *color.Color
	success     *color.Color
	fail        *color.Color
}

// newOutputStyle creates an outputStyle. When noColor is set (--no-color,
// or a non-TTY stdout), color.NoColor is forced so every *color.Color
// degrades to plain Sprint/Fprintln.
func newOutputStyle(noColor bool) *outputStyle {
	if noColor {
		color.NoColor = true
	}
	return &outputStyle{
		successMark: color.New(color.FgGreen).Sprint("+"),
		failMark:    color.New(color.FgRed).Sprint("x"),
		warnMark:    color.New(color.FgYellow).Sprint("!"),
		header:      color.New(color.FgCyan, color.Bold),
		path:        color.New(color.FgCyan),
		success:     color.New(color.FgGreen, color.Bold),
		fail:        color.New(color.FgRed, color.Bold),
	}
}
