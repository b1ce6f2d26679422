package pathset

import (
	"path"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

// Pattern is a compiled ant-style glob. Segments are literal names, shell
// wildcards confined to one segment, or "**" matching zero or more whole
// segments. A trailing separator restricts the pattern to directories;
// otherwise it only matches files.
type Pattern struct {
	raw     string
	segs    []string
	dirOnly bool
}

// CompilePattern validates raw and compiles it.
func CompilePattern(raw string) (Pattern, error) {
	invalid := func(reason string) (Pattern, error) {
		return Pattern{}, zerr.With(zerr.With(domain.ErrInvalidPattern, "pattern", raw), "reason", reason)
	}

	if raw == "" {
		return invalid("empty pattern")
	}
	if strings.HasPrefix(raw, "/") {
		return invalid("pattern must be relative")
	}

	dirOnly := strings.HasSuffix(raw, "/")
	body := strings.TrimSuffix(raw, "/")
	if body == "" {
		return invalid("empty pattern")
	}

	segs := strings.Split(body, "/")
	for _, seg := range segs {
		switch {
		case seg == "":
			return invalid("empty path segment")
		case seg == "." || seg == "..":
			return invalid("relative path segment " + seg)
		case strings.Contains(seg, "**") && seg != "**":
			return invalid("** must be a whole path segment")
		}
		if _, err := path.Match(seg, ""); err != nil {
			return invalid("malformed segment " + seg)
		}
	}

	return Pattern{raw: raw, segs: segs, dirOnly: dirOnly}, nil
}

// MustCompile is like CompilePattern but panics on error. It is meant for
// patterns known at compile time.
func MustCompile(raw string) Pattern {
	p, err := CompilePattern(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// CompilePatterns compiles every entry of raws.
func CompilePatterns(raws []string) ([]Pattern, error) {
	out := make([]Pattern, 0, len(raws))
	for _, r := range raws {
		p, err := CompilePattern(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// String returns the pattern as written.
func (p Pattern) String() string { return p.raw }

// DirOnly reports whether the pattern matches directories only.
func (p Pattern) DirOnly() bool { return p.dirOnly }

// Match reports whether the slash-separated relative path matches.
func (p Pattern) Match(rel string, isDir bool) bool {
	if isDir != p.dirOnly {
		return false
	}
	return matchSegs(p.segs, splitRel(rel))
}

// canDescend reports whether some path strictly below the directory dirSegs
// could match the pattern.
func (p Pattern) canDescend(dirSegs []string) bool {
	segs := p.segs
	for _, d := range dirSegs {
		if len(segs) == 0 {
			return false
		}
		if segs[0] == "**" {
			return true
		}
		if ok, _ := path.Match(segs[0], d); !ok {
			return false
		}
		segs = segs[1:]
	}
	return len(segs) > 0
}

// coversAll reports whether every path below the directory dirSegs matches,
// i.e. the pattern is the directory followed by "**".
func (p Pattern) coversAll(dirSegs []string) bool {
	if len(p.segs) != len(dirSegs)+1 || p.segs[len(p.segs)-1] != "**" {
		return false
	}
	for i, d := range dirSegs {
		if ok, _ := path.Match(p.segs[i], d); !ok {
			return false
		}
	}
	return true
}

func matchSegs(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			for i := 0; i <= len(segs); i++ {
				if matchSegs(pat[1:], segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, _ := path.Match(pat[0], segs[0]); !ok {
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}

func splitRel(rel string) []string {
	rel = strings.Trim(rel, "/")
	if rel == "" || rel == "." {
		return nil
	}
	return strings.Split(rel, "/")
}

// Match is a path found by FindPaths.
type Match struct {
	// Path is absolute; directories end with a separator.
	Path string
	// Rel is slash-separated and relative to the search root.
	Rel   string
	IsDir bool
}

// search is the outcome of one walk.
type search struct {
	matches []Match
	used    []int
}

// ignoredDirs are never descended into.
var ignoredDirs = []string{".git", ".hg", ".jj", domain.KilnDirName}

// FindPaths walks root and returns every entry matching an include pattern and
// no exclude pattern, sorted by path. It fails if root does not exist or if an
// include pattern matches nothing.
func FindPaths(rc domain.ResolveContext, root string, includes, excludes []string) ([]Match, error) {
	inc, err := CompilePatterns(includes)
	if err != nil {
		return nil, err
	}
	exc, err := CompilePatterns(excludes)
	if err != nil {
		return nil, err
	}

	res, err := findPaths(rc, root, inc, exc)
	if err != nil {
		return nil, err
	}
	if err := checkUsed(root, inc, res.used); err != nil {
		return nil, err
	}
	return res.matches, nil
}

func findPaths(rc domain.ResolveContext, root string, includes, excludes []Pattern) (*search, error) {
	st, err := rc.Stat(root)
	if err != nil {
		return nil, err
	}
	if !st.Exists || !st.IsDir {
		raws := make([]string, len(includes))
		for i, p := range includes {
			raws[i] = p.raw
		}
		return nil, zerr.With(zerr.With(domain.ErrPatternRootNotFound,
			"root", domain.RelativeTo(rc.Root(), root)),
			"pattern", strings.Join(raws, ", "))
	}

	res := &search{used: make([]int, len(includes))}
	walkErr := rc.Walk(root, func(p string, isDir bool) error {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		segs := splitRel(rel)

		if isDir {
			if slices.Contains(ignoredDirs, segs[len(segs)-1]) {
				return domain.ErrSkipDir
			}
			for _, e := range excludes {
				if e.Match(rel, true) || e.coversAll(segs) {
					return domain.ErrSkipDir
				}
			}
			res.record(includes, rel, segs, p, true)
			for _, inc := range includes {
				if inc.canDescend(segs) {
					return nil
				}
			}
			return domain.ErrSkipDir
		}

		for _, e := range excludes {
			if e.Match(rel, false) {
				return nil
			}
		}
		res.record(includes, rel, segs, p, false)
		return nil
	})
	if walkErr != nil {
		return nil, zerr.With(zerr.Wrap(walkErr, "failed to walk directory"), "root", root)
	}

	slices.SortFunc(res.matches, func(a, b Match) int { return strings.Compare(a.Path, b.Path) })
	return res, nil
}

func (s *search) record(includes []Pattern, rel string, segs []string, p string, isDir bool) {
	matched := false
	for i, inc := range includes {
		if isDir != inc.dirOnly {
			continue
		}
		if matchSegs(inc.segs, segs) {
			s.used[i]++
			matched = true
		}
	}
	if !matched {
		return
	}
	if isDir {
		p += string(filepath.Separator)
		rel += "/"
	}
	s.matches = append(s.matches, Match{Path: p, Rel: rel, IsDir: isDir})
}

func checkUsed(root string, includes []Pattern, used []int) error {
	for i, n := range used {
		if n == 0 {
			return zerr.With(zerr.With(domain.ErrPatternUnused, "pattern", includes[i].raw), "root", root)
		}
	}
	return nil
}
