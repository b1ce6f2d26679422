package app

import (
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/engine/suggest"
	"go.trai.ch/zerr"
)

// TagPrefix marks a selection item that names a tag.
const TagPrefix = "tag:"

// Select returns the targets named by items, in order and without duplicates.
// An item is a target name, an output path or "tag:NAME". No items selects
// every target. Unknown items are configuration errors with a suggestion.
func Select(reg *domain.Registry, items []string) ([]domain.Target, error) {
	if len(items) == 0 {
		return reg.Targets(), nil
	}

	seen := make(map[domain.Target]bool)
	var out []domain.Target
	add := func(ts ...domain.Target) {
		for _, t := range ts {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}

	for _, item := range items {
		if tag, ok := strings.CutPrefix(item, TagPrefix); ok {
			tagged := reg.Tagged(tag)
			if len(tagged) == 0 {
				return nil, unknown(domain.ErrTagNotFound, "tag", tag, reg.Tags())
			}
			add(tagged...)
			continue
		}

		t, ok := reg.Lookup(item)
		if !ok {
			return nil, unknown(domain.ErrTargetNotFound, "target", item, reg.Names())
		}
		add(t)
	}
	return out, nil
}

func unknown(sentinel error, key, value string, known []string) error {
	err := zerr.With(sentinel, key, value)
	if hint := suggest.Message(value, known); hint != "" {
		err = zerr.With(err, "hint", hint)
	}
	return domain.Classify(err, domain.ErrConfiguration)
}
