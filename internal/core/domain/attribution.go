package domain

import (
	"errors"
	"fmt"

	"go.trai.ch/zerr"
)

// Attribution returns the target and build-file location recorded on err.
// Either is empty when err carries no such metadata.
func Attribution(err error) (target, location string) {
	var zerrErr *zerr.Error
	if !errors.As(err, &zerrErr) {
		return "", ""
	}
	md := zerrErr.Metadata()
	if v, ok := md["target"]; ok {
		target = fmt.Sprint(v)
	}
	if v, ok := md["location"]; ok {
		location = fmt.Sprint(v)
	}
	return target, location
}

// Describe renders err as "target (location): message", leaving out the parts
// err does not carry.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	target, location := Attribution(err)
	switch {
	case target != "" && location != "":
		return target + " (" + location + "): " + err.Error()
	case target != "":
		return target + ": " + err.Error()
	default:
		return err.Error()
	}
}
