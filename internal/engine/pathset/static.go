package pathset

import (
	"path"
	"path/filepath"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
)

// Static is a fixed list of paths, either declared individually or as children
// of one directory.
type Static struct {
	loc     domain.Location
	dir     string
	entries []string
	memo    memo
}

var _ domain.PathSet = (*Static)(nil)

// NewLiteral creates a set of individually declared paths, relative to the
// build root or absolute. Each path's destination is its last element.
func NewLiteral(loc domain.Location, paths ...string) *Static {
	return &Static{loc: loc, entries: paths}
}

// NewDirChildren creates a set of named children of dir. Each child's
// destination is its name relative to dir.
func NewDirChildren(loc domain.Location, dir string, names ...string) *Static {
	if dir == "" {
		dir = "."
	}
	return &Static{loc: loc, dir: dir, entries: names}
}

// Resolve returns the absolute paths.
func (s *Static) Resolve(rc domain.ResolveContext) ([]string, error) {
	pairs, err := s.ResolveWithDestinations(rc)
	if err != nil {
		return nil, err
	}
	return sources(pairs), nil
}

// ResolveWithDestinations returns the paths with their destinations.
func (s *Static) ResolveWithDestinations(rc domain.ResolveContext) ([]domain.PathPair, error) {
	return s.memo.resolvePairs(rc, func() ([]domain.PathPair, error) {
		pairs := make([]domain.PathPair, 0, len(s.entries))
		for _, e := range s.entries {
			src, err := s.source(rc, e)
			if err != nil {
				return nil, err
			}
			dest := baseDest(src)
			if s.dir != "" {
				dest = path.Clean(e)
				if strings.HasSuffix(src, string(filepath.Separator)) {
					dest += "/"
				}
			}
			pairs = append(pairs, domain.PathPair{Src: src, Dest: dest})
		}
		return normalizePairs(pairs), nil
	})
}

// UnderlyingDependencies returns one dependency per path: the producing target
// or the raw path, which must exist.
func (s *Static) UnderlyingDependencies(rc domain.ResolveContext) ([]domain.Dependency, error) {
	return s.memo.resolveDeps(rc, func() ([]domain.Dependency, error) {
		deps := make([]domain.Dependency, 0, len(s.entries))
		for _, e := range s.entries {
			src, err := s.source(rc, e)
			if err != nil {
				return nil, err
			}
			d, err := dependencyFor(rc, s, s.loc, src)
			if err != nil {
				return nil, err
			}
			deps = append(deps, d)
		}
		return dedupeDeps(deps), nil
	})
}

// String describes the set.
func (s *Static) String() string {
	if s.dir != "" {
		return s.dir + "/[" + strings.Join(s.entries, ", ") + "]"
	}
	return "[" + strings.Join(s.entries, ", ") + "]"
}

// source returns the absolute path of entry. A path that exists as a directory,
// or is produced by a directory target, gets a trailing separator.
func (s *Static) source(rc domain.ResolveContext, entry string) (string, error) {
	p := entry
	if s.dir != "" {
		p = path.Join(s.dir, entry)
		if strings.HasSuffix(entry, "/") {
			p += "/"
		}
	}
	abs := absPath(rc.Root(), p)
	if strings.HasSuffix(abs, string(filepath.Separator)) {
		return abs, nil
	}

	if t, ok := rc.Registry().ByPath(abs); ok {
		return t.Base().Path(), nil
	}
	st, err := rc.Stat(abs)
	if err != nil {
		return "", err
	}
	if st.Exists && st.IsDir {
		abs += string(filepath.Separator)
	}
	return abs, nil
}
