package pathset

import (
	"path/filepath"
	"strings"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
)

// Glob is a recursive pattern search below a root directory.
//
// When the root lies inside a directory produced by a target, the search can
// only happen after that target ran, so the set depends on the target as a
// whole. Otherwise it depends on every matched file, plus any target whose
// declared output would match.
type Glob struct {
	loc      domain.Location
	root     string
	includes []Pattern
	excludes []Pattern
	memo     memo
	walk     walkMemo
}

var (
	_ domain.PathSet        = (*Glob)(nil)
	_ domain.NewestReporter = (*Glob)(nil)
)

// NewGlob compiles the patterns and creates the set. Invalid patterns are
// rejected here, not at resolution time.
func NewGlob(loc domain.Location, root string, includes, excludes []string) (*Glob, error) {
	if len(includes) == 0 {
		includes = []string{"**"}
	}
	inc, err := CompilePatterns(includes)
	if err != nil {
		return nil, withLocation(err, loc)
	}
	exc, err := CompilePatterns(excludes)
	if err != nil {
		return nil, withLocation(err, loc)
	}
	if root == "" {
		root = "."
	}
	return &Glob{loc: loc, root: root, includes: inc, excludes: exc}, nil
}

// Resolve returns the matched paths.
func (g *Glob) Resolve(rc domain.ResolveContext) ([]string, error) {
	pairs, err := g.ResolveWithDestinations(rc)
	if err != nil {
		return nil, err
	}
	return sources(pairs), nil
}

// ResolveWithDestinations returns the matched paths; destinations are relative to the root.
func (g *Glob) ResolveWithDestinations(rc domain.ResolveContext) ([]domain.PathPair, error) {
	return g.memo.resolvePairs(rc, func() ([]domain.PathPair, error) {
		res, err := g.search(rc)
		if err != nil {
			return nil, err
		}
		if err := checkUsed(g.root, g.includes, res.used); err != nil {
			return nil, withLocation(err, g.loc)
		}
		pairs := make([]domain.PathPair, len(res.matches))
		for i, m := range res.matches {
			pairs[i] = domain.PathPair{Src: m.Path, Dest: m.Rel}
		}
		return normalizePairs(pairs), nil
	})
}

// UnderlyingDependencies returns the dependencies of the search.
func (g *Glob) UnderlyingDependencies(rc domain.ResolveContext) ([]domain.Dependency, error) {
	return g.memo.resolveDeps(rc, func() ([]domain.Dependency, error) {
		root := g.absRoot(rc)
		reg := rc.Registry()

		if t, ok := reg.Owner(root); ok && t.Base().IsDir() {
			return []domain.Dependency{{Path: t.Base().Path(), Target: t, Source: g}}, nil
		}

		var deps []domain.Dependency
		used := make([]int, len(g.includes))

		// Declared outputs below the root count as matches even before they exist.
		for _, t := range reg.Under(root) {
			rel := domain.RelativeTo(root, t.Base().Path())
			isDir := t.Base().IsDir()
			if g.excluded(rel, isDir) {
				continue
			}
			for i, inc := range g.includes {
				if inc.Match(rel, isDir) {
					used[i]++
					deps = append(deps, domain.Dependency{Path: t.Base().Path(), Target: t, Source: g})
				}
			}
		}

		res, err := g.search(rc)
		if err != nil {
			return nil, err
		}
		for i, n := range res.used {
			used[i] += n
		}
		if err := checkUsed(g.root, g.includes, used); err != nil {
			return nil, withLocation(err, g.loc)
		}

		for _, m := range res.matches {
			if t, ok := reg.Owner(m.Path); ok {
				deps = append(deps, domain.Dependency{Path: t.Base().Path(), Target: t, Source: g})
				continue
			}
			deps = append(deps, domain.Dependency{Path: m.Path, Source: g})
		}
		return dedupeDeps(deps), nil
	})
}

// Newest returns the newest raw file the search found.
func (g *Glob) Newest(rc domain.ResolveContext) (string, time.Time, bool, error) {
	deps, err := g.UnderlyingDependencies(rc)
	if err != nil {
		return "", time.Time{}, false, err
	}
	return newestOf(rc, deps)
}

// String describes the search.
func (g *Glob) String() string {
	var b strings.Builder
	b.WriteString("glob(")
	b.WriteString(g.root)
	b.WriteString(", include=[")
	for i, p := range g.includes {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.raw)
	}
	b.WriteString("]")
	if len(g.excludes) > 0 {
		b.WriteString(", exclude=[")
		for i, p := range g.excludes {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.raw)
		}
		b.WriteString("]")
	}
	b.WriteString(")")
	return b.String()
}

// search walks the root once per phase; pairs and dependencies share the result.
func (g *Glob) search(rc domain.ResolveContext) (*search, error) {
	return g.walk.find(rc, func() (*search, error) {
		res, err := findPaths(rc, g.absRoot(rc), g.includes, g.excludes)
		if err != nil {
			return nil, withLocation(err, g.loc)
		}
		return res, nil
	})
}

func (g *Glob) absRoot(rc domain.ResolveContext) string {
	return strings.TrimSuffix(absPath(rc.Root(), g.root), string(filepath.Separator))
}

func (g *Glob) excluded(rel string, isDir bool) bool {
	segs := splitRel(rel)
	for _, e := range g.excludes {
		if e.Match(rel, isDir) {
			return true
		}
		for i := 1; i < len(segs); i++ {
			if e.Match(strings.Join(segs[:i], "/"), true) || e.coversAll(segs[:i]) {
				return true
			}
		}
	}
	return false
}
