package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor returns true when ANSI colors should be used on stdout.
func ShouldUseColor() bool {
	return ShouldUseColorFor(os.Stdout)
}

// ShouldUseColorFor reports whether ANSI colors should be written to f. It
// respects NO_COLOR, CLICOLOR_FORCE and CLICOLOR before falling back to TTY
// detection.
func ShouldUseColorFor(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Init disables color unless both stdout and stderr want it. Board output
// goes to stdout and notices to stderr, so mixed settings would interleave
// escaped and plain text.
func Init() {
	if !ShouldUseColorFor(os.Stdout) || !ShouldUseColorFor(os.Stderr) {
		ForceNoColor()
	}
}
