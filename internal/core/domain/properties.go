package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// ExpandProperties replaces every ${NAME} placeholder in s with its value from props.
func ExpandProperties(s string, props map[string]string) (string, error) {
	if !strings.Contains(s, "${") {
		return s, nil
	}

	var b strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		b.WriteString(rest[:start])

		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			return "", zerr.With(ErrUnterminatedPlaceholder, "value", s)
		}

		name := rest[start+2 : start+end]
		value, ok := props[name]
		if !ok {
			return "", zerr.With(zerr.With(ErrUndefinedProperty, "property", name), "value", s)
		}
		b.WriteString(value)
		rest = rest[start+end+1:]
	}
}
