package domain

import "strconv"

// Location is the build-file position a target or dependency set was declared at.
// It is attached at construction and carried into every error about that object.
type Location struct {
	File string
	Line int
}

// String renders the location as file:line.
func (l Location) String() string {
	switch {
	case l.File == "":
		return "<builtin>"
	case l.Line <= 0:
		return l.File
	default:
		return l.File + ":" + strconv.Itoa(l.Line)
	}
}

// IsZero reports whether the location is unset.
func (l Location) IsZero() bool {
	return l.File == "" && l.Line == 0
}
