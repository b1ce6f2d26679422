// Package detector inspects the environment to choose how build output is rendered.
package detector

import (
	"os"

	"github.com/muesli/termenv"
	"go.trai.ch/kiln/internal/ui/output"
	"golang.org/x/term"
)

// OutputMode is the rendering mode of human-facing output.
type OutputMode int

const (
	// ModeAuto defers to detection.
	ModeAuto OutputMode = iota
	// ModeTerminal renders for an interactive terminal with full colour.
	ModeTerminal
	// ModeCI renders for CI logs, which accept basic ANSI colours.
	ModeCI
	// ModePlain renders without any escape sequences.
	ModePlain
)

// String returns the flag spelling of the mode.
func (m OutputMode) String() string {
	switch m {
	case ModeTerminal:
		return "terminal"
	case ModeCI:
		return "ci"
	case ModePlain:
		return "plain"
	default:
		return "auto"
	}
}

// Detect returns the mode suited to f: CI when a CI variable is set, terminal
// when f is a TTY, plain otherwise.
func Detect(f *os.File) OutputMode {
	ci := os.Getenv("CI")
	if ci == "true" || ci == "1" {
		return ModeCI
	}
	if f != nil && term.IsTerminal(int(f.Fd())) {
		return ModeTerminal
	}
	return ModePlain
}

// DetectEnvironment returns the mode suited to stderr, where kiln reports.
func DetectEnvironment() OutputMode {
	return Detect(os.Stderr)
}

// ResolveMode applies a user override to the detected mode. Unknown values
// keep the detected mode.
func ResolveMode(detected OutputMode, flag string) OutputMode {
	switch flag {
	case "terminal", "tty":
		return ModeTerminal
	case "ci":
		return ModeCI
	case "plain":
		return ModePlain
	default:
		return detected
	}
}

// Profile returns the colour profile function for m.
func Profile(m OutputMode) func() termenv.Profile {
	switch m {
	case ModeCI:
		return output.ColorProfileANSI
	case ModePlain:
		return func() termenv.Profile { return termenv.Ascii }
	default:
		return output.ColorProfile
	}
}
