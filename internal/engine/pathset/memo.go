// Package pathset implements the dependency set variants targets declare:
// literal paths, directory children, glob searches, target references, tag and
// directory based target sets, and derived sets wrapping another set.
package pathset

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

// memo caches the resolution of one set for one phase. A set may be shared by
// many targets that resolve concurrently.
type memo struct {
	mu sync.Mutex

	pairsPhase uint64
	pairsDone  bool
	pairs      []domain.PathPair
	pairsErr   error

	depsPhase uint64
	depsDone  bool
	deps      []domain.Dependency
	depsErr   error
}

func (m *memo) resolvePairs(rc domain.ResolveContext, compute func() ([]domain.PathPair, error)) ([]domain.PathPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pairsDone && m.pairsPhase == rc.Phase() {
		return m.pairs, m.pairsErr
	}
	m.pairs, m.pairsErr = compute()
	m.pairsPhase = rc.Phase()
	m.pairsDone = true
	return m.pairs, m.pairsErr
}

func (m *memo) resolveDeps(rc domain.ResolveContext, compute func() ([]domain.Dependency, error)) ([]domain.Dependency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.depsDone && m.depsPhase == rc.Phase() {
		return m.deps, m.depsErr
	}
	m.deps, m.depsErr = compute()
	m.depsPhase = rc.Phase()
	m.depsDone = true
	return m.deps, m.depsErr
}

// walkMemo caches one directory search per phase, shared by the pair and
// dependency resolutions of a glob.
type walkMemo struct {
	mu    sync.Mutex
	phase uint64
	done  bool
	res   *search
	err   error
}

func (m *walkMemo) find(rc domain.ResolveContext, compute func() (*search, error)) (*search, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done && m.phase == rc.Phase() {
		return m.res, m.err
	}
	m.res, m.err = compute()
	m.phase = rc.Phase()
	m.done = true
	return m.res, m.err
}

// sources returns the sorted, deduplicated source paths of pairs.
func sources(pairs []domain.PathPair) []string {
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.Src)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// normalizePairs sorts pairs by source then destination and drops duplicates.
func normalizePairs(pairs []domain.PathPair) []domain.PathPair {
	slices.SortFunc(pairs, func(a, b domain.PathPair) int {
		if c := strings.Compare(a.Src, b.Src); c != 0 {
			return c
		}
		return strings.Compare(a.Dest, b.Dest)
	})
	return slices.Compact(pairs)
}

// dedupeDeps drops repeated dependencies, keeping the first occurrence.
func dedupeDeps(deps []domain.Dependency) []domain.Dependency {
	seen := make(map[string]bool, len(deps))
	out := deps[:0]
	for _, d := range deps {
		key := d.Path
		if d.Target != nil {
			key = "target:" + d.Target.Base().Name()
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}

// absPath joins a declared path onto the build root, keeping a trailing separator.
func absPath(root, p string) string {
	dir := strings.HasSuffix(p, "/")
	abs := filepath.FromSlash(p)
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, abs)
	}
	abs = filepath.Clean(abs)
	if dir {
		abs += string(filepath.Separator)
	}
	return abs
}

// baseDest returns the last element of p as a destination, keeping a trailing separator.
func baseDest(p string) string {
	sep := string(filepath.Separator)
	base := filepath.Base(strings.TrimSuffix(p, sep))
	if strings.HasSuffix(p, sep) {
		return base + "/"
	}
	return base
}

// dependencyFor turns an absolute path into a dependency: the producing target
// when one owns the path, otherwise the raw path, which must exist.
func dependencyFor(rc domain.ResolveContext, set domain.PathSet, loc domain.Location, p string) (domain.Dependency, error) {
	if t, ok := rc.Registry().Owner(p); ok {
		return domain.Dependency{Path: t.Base().Path(), Target: t, Source: set}, nil
	}
	st, err := rc.Stat(strings.TrimSuffix(p, string(filepath.Separator)))
	if err != nil {
		return domain.Dependency{}, err
	}
	if !st.Exists {
		return domain.Dependency{}, withLocation(
			zerr.With(domain.ErrSourceNotFound, "path", domain.RelativeTo(rc.Root(), p)), loc)
	}
	return domain.Dependency{Path: p, Source: set}, nil
}

// newestOf returns the newest of the raw dependencies in deps.
func newestOf(rc domain.ResolveContext, deps []domain.Dependency) (string, time.Time, bool, error) {
	var (
		newest string
		mtime  time.Time
		found  bool
	)
	for _, d := range deps {
		if d.Target != nil {
			continue
		}
		st, err := rc.Stat(strings.TrimSuffix(d.Path, string(filepath.Separator)))
		if err != nil {
			return "", time.Time{}, false, err
		}
		if !st.Exists {
			continue
		}
		if !found || st.ModTime.After(mtime) {
			newest, mtime, found = d.Path, st.ModTime, true
		}
	}
	return newest, mtime, found, nil
}

// withLocation attaches the declaring location to err.
func withLocation(err error, loc domain.Location) error {
	if loc.IsZero() {
		return err
	}
	return zerr.With(err, "location", loc.String())
}
