// Package suggest produces "did you mean" hints for mistyped names.
package suggest

import (
	"slices"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// DefaultMaxDistance is the edit distance beyond which a name is not suggested.
const DefaultMaxDistance = 4

type candidate struct {
	s    string
	dist int
}

// Suggest returns the entries of haystack within maxDistance edits of needle,
// closest first.
func Suggest(needle string, haystack []string, maxDistance int) []string {
	r := []rune(needle)
	options := make([]candidate, 0, len(haystack))
	for _, straw := range haystack {
		if straw == "" {
			continue
		}
		d := levenshtein.DistanceForStrings(r, []rune(straw), levenshtein.DefaultOptions)
		if d <= maxDistance {
			options = append(options, candidate{s: straw, dist: d})
		}
	}
	slices.SortStableFunc(options, func(a, b candidate) int {
		if a.dist != b.dist {
			return a.dist - b.dist
		}
		return strings.Compare(a.s, b.s)
	})

	out := make([]string, len(options))
	for i, o := range options {
		out[i] = o.s
	}
	return out
}

// Message renders the suggestions as a single hint, or "" if there are none.
// At most three names are listed.
func Message(needle string, haystack []string) string {
	options := Suggest(needle, haystack, DefaultMaxDistance)
	if len(options) == 0 {
		return ""
	}
	if len(options) > 3 {
		options = options[:3]
	}
	if len(options) == 1 {
		return "did you mean " + options[0] + "?"
	}
	return "did you mean " + strings.Join(options[:len(options)-1], ", ") + " or " + options[len(options)-1] + "?"
}
