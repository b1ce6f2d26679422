package pathset

import (
	"path"
	"sort"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
)

// derived wraps another set and only rewrites destinations. Sources and
// underlying dependencies are those of the child.
type derived struct {
	child   domain.PathSet
	name    string
	rewrite func(domain.PathPair) (domain.PathPair, bool)
	memo    memo
}

func (d *derived) Resolve(rc domain.ResolveContext) ([]string, error) {
	pairs, err := d.ResolveWithDestinations(rc)
	if err != nil {
		return nil, err
	}
	return sources(pairs), nil
}

func (d *derived) ResolveWithDestinations(rc domain.ResolveContext) ([]domain.PathPair, error) {
	return d.memo.resolvePairs(rc, func() ([]domain.PathPair, error) {
		in, err := d.child.ResolveWithDestinations(rc)
		if err != nil {
			return nil, err
		}
		out := make([]domain.PathPair, 0, len(in))
		for _, p := range in {
			if np, ok := d.rewrite(p); ok {
				out = append(out, np)
			}
		}
		return normalizePairs(out), nil
	})
}

func (d *derived) UnderlyingDependencies(rc domain.ResolveContext) ([]domain.Dependency, error) {
	return d.child.UnderlyingDependencies(rc)
}

func (d *derived) String() string { return d.name + "(" + d.child.String() + ")" }

// NewPrefix places every destination of child below prefix.
func NewPrefix(child domain.PathSet, prefix string) domain.PathSet {
	prefix = strings.Trim(prefix, "/")
	return &derived{
		child: child,
		name:  "prefix " + prefix,
		rewrite: func(p domain.PathPair) (domain.PathPair, bool) {
			if prefix != "" {
				p.Dest = joinDest(prefix, p.Dest)
			}
			return p, true
		},
	}
}

// NewRename replaces destinations found in renames. Other destinations pass through.
func NewRename(child domain.PathSet, renames map[string]string) domain.PathSet {
	keys := make([]string, 0, len(renames))
	for k := range renames {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + renames[k]
	}

	return &derived{
		child: child,
		name:  "rename " + strings.Join(parts, ","),
		rewrite: func(p domain.PathPair) (domain.PathPair, bool) {
			if to, ok := renames[strings.TrimSuffix(p.Dest, "/")]; ok {
				dir := strings.HasSuffix(p.Dest, "/")
				p.Dest = to
				if dir && !strings.HasSuffix(to, "/") {
					p.Dest += "/"
				}
			}
			return p, true
		},
	}
}

// NewFlatten drops every directory component from the destinations.
func NewFlatten(child domain.PathSet) domain.PathSet {
	return &derived{
		child: child,
		name:  "flatten",
		rewrite: func(p domain.PathPair) (domain.PathPair, bool) {
			dir := strings.HasSuffix(p.Dest, "/")
			p.Dest = path.Base(strings.TrimSuffix(p.Dest, "/"))
			if dir {
				p.Dest += "/"
			}
			return p, true
		},
	}
}

// NewFilter keeps the entries whose destination matches one of patterns.
func NewFilter(child domain.PathSet, patterns []string) (domain.PathSet, error) {
	pats, err := CompilePatterns(patterns)
	if err != nil {
		return nil, err
	}
	return &derived{
		child: child,
		name:  "filter " + strings.Join(patterns, ","),
		rewrite: func(p domain.PathPair) (domain.PathPair, bool) {
			isDir := strings.HasSuffix(p.Dest, "/")
			for _, pat := range pats {
				if pat.Match(p.Dest, isDir) {
					return p, true
				}
			}
			return p, false
		},
	}, nil
}

func joinDest(prefix, dest string) string {
	joined := path.Join(prefix, dest)
	if strings.HasSuffix(dest, "/") {
		joined += "/"
	}
	return joined
}

// Union is the concatenation of several sets.
type Union struct {
	sets []domain.PathSet
	memo memo
}

var _ domain.PathSet = (*Union)(nil)

// NewUnion combines sets. A single set is returned as is.
func NewUnion(sets ...domain.PathSet) domain.PathSet {
	switch len(sets) {
	case 0:
		return domain.EmptyPathSet{}
	case 1:
		return sets[0]
	}
	return &Union{sets: sets}
}

// Resolve returns the paths of every member set.
func (u *Union) Resolve(rc domain.ResolveContext) ([]string, error) {
	pairs, err := u.ResolveWithDestinations(rc)
	if err != nil {
		return nil, err
	}
	return sources(pairs), nil
}

// ResolveWithDestinations returns the pairs of every member set.
func (u *Union) ResolveWithDestinations(rc domain.ResolveContext) ([]domain.PathPair, error) {
	return u.memo.resolvePairs(rc, func() ([]domain.PathPair, error) {
		var out []domain.PathPair
		for _, s := range u.sets {
			pairs, err := s.ResolveWithDestinations(rc)
			if err != nil {
				return nil, err
			}
			out = append(out, pairs...)
		}
		return normalizePairs(out), nil
	})
}

// UnderlyingDependencies returns the dependencies of every member set.
func (u *Union) UnderlyingDependencies(rc domain.ResolveContext) ([]domain.Dependency, error) {
	return u.memo.resolveDeps(rc, func() ([]domain.Dependency, error) {
		var out []domain.Dependency
		for _, s := range u.sets {
			deps, err := s.UnderlyingDependencies(rc)
			if err != nil {
				return nil, err
			}
			out = append(out, deps...)
		}
		return dedupeDeps(out), nil
	})
}

// String lists the member sets.
func (u *Union) String() string {
	parts := make([]string, len(u.sets))
	for i, s := range u.sets {
		parts[i] = s.String()
	}
	return strings.Join(parts, " + ")
}
