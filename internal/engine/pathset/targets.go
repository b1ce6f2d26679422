package pathset

import (
	"path/filepath"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/engine/suggest"
	"go.trai.ch/zerr"
)

// TargetRef is the output of one named target.
type TargetRef struct {
	loc  domain.Location
	ref  string
	memo memo
}

var _ domain.PathSet = (*TargetRef)(nil)

// NewTargetRef refers to a target by name or output path.
func NewTargetRef(loc domain.Location, ref string) *TargetRef {
	return &TargetRef{loc: loc, ref: ref}
}

// Resolve returns the output path of the target.
func (r *TargetRef) Resolve(rc domain.ResolveContext) ([]string, error) {
	pairs, err := r.ResolveWithDestinations(rc)
	if err != nil {
		return nil, err
	}
	return sources(pairs), nil
}

// ResolveWithDestinations maps the output to its last element.
func (r *TargetRef) ResolveWithDestinations(rc domain.ResolveContext) ([]domain.PathPair, error) {
	return r.memo.resolvePairs(rc, func() ([]domain.PathPair, error) {
		t, err := r.lookup(rc)
		if err != nil {
			return nil, err
		}
		p := t.Base().Path()
		return []domain.PathPair{{Src: p, Dest: baseDest(p)}}, nil
	})
}

// UnderlyingDependencies returns the target.
func (r *TargetRef) UnderlyingDependencies(rc domain.ResolveContext) ([]domain.Dependency, error) {
	return r.memo.resolveDeps(rc, func() ([]domain.Dependency, error) {
		t, err := r.lookup(rc)
		if err != nil {
			return nil, err
		}
		return []domain.Dependency{{Path: t.Base().Path(), Target: t, Source: r}}, nil
	})
}

// String returns the reference.
func (r *TargetRef) String() string { return "target(" + r.ref + ")" }

func (r *TargetRef) lookup(rc domain.ResolveContext) (domain.Target, error) {
	reg := rc.Registry()
	if t, ok := reg.Lookup(r.ref); ok {
		return t, nil
	}
	err := zerr.With(domain.ErrTargetNotFound, "target", r.ref)
	if hint := suggest.Message(r.ref, reg.Names()); hint != "" {
		err = zerr.With(err, "hint", hint)
	}
	return nil, withLocation(err, r.loc)
}

// Tag is every target carrying a tag.
type Tag struct {
	loc  domain.Location
	tag  string
	memo memo
}

var _ domain.PathSet = (*Tag)(nil)

// NewTag selects the targets tagged tag.
func NewTag(loc domain.Location, tag string) *Tag {
	return &Tag{loc: loc, tag: tag}
}

// Resolve returns the outputs of the tagged targets.
func (s *Tag) Resolve(rc domain.ResolveContext) ([]string, error) {
	pairs, err := s.ResolveWithDestinations(rc)
	if err != nil {
		return nil, err
	}
	return sources(pairs), nil
}

// ResolveWithDestinations maps each output to its path relative to the root.
func (s *Tag) ResolveWithDestinations(rc domain.ResolveContext) ([]domain.PathPair, error) {
	return s.memo.resolvePairs(rc, func() ([]domain.PathPair, error) {
		ts, err := s.targets(rc)
		if err != nil {
			return nil, err
		}
		pairs := make([]domain.PathPair, len(ts))
		for i, t := range ts {
			p := t.Base().Path()
			pairs[i] = domain.PathPair{Src: p, Dest: domain.RelativeTo(rc.Root(), p)}
		}
		return normalizePairs(pairs), nil
	})
}

// UnderlyingDependencies returns the tagged targets.
func (s *Tag) UnderlyingDependencies(rc domain.ResolveContext) ([]domain.Dependency, error) {
	return s.memo.resolveDeps(rc, func() ([]domain.Dependency, error) {
		ts, err := s.targets(rc)
		if err != nil {
			return nil, err
		}
		return targetDeps(ts, s), nil
	})
}

// String returns the tag.
func (s *Tag) String() string { return "tag(" + s.tag + ")" }

func (s *Tag) targets(rc domain.ResolveContext) ([]domain.Target, error) {
	reg := rc.Registry()
	ts := reg.Tagged(s.tag)
	if len(ts) == 0 {
		err := zerr.With(domain.ErrTagNotFound, "tag", s.tag)
		if hint := suggest.Message(s.tag, reg.Tags()); hint != "" {
			err = zerr.With(err, "hint", hint)
		}
		return nil, withLocation(err, s.loc)
	}
	return ts, nil
}

// Under is every target whose output lies below a directory. It does not look
// at the filesystem, so it is empty rather than failing when nothing matches.
type Under struct {
	loc  domain.Location
	dir  string
	memo memo
}

var _ domain.PathSet = (*Under)(nil)

// NewUnder selects the targets below dir.
func NewUnder(loc domain.Location, dir string) *Under {
	if dir == "" {
		dir = "."
	}
	return &Under{loc: loc, dir: dir}
}

// Resolve returns the outputs below the directory.
func (s *Under) Resolve(rc domain.ResolveContext) ([]string, error) {
	pairs, err := s.ResolveWithDestinations(rc)
	if err != nil {
		return nil, err
	}
	return sources(pairs), nil
}

// ResolveWithDestinations maps each output to its path relative to the directory.
func (s *Under) ResolveWithDestinations(rc domain.ResolveContext) ([]domain.PathPair, error) {
	return s.memo.resolvePairs(rc, func() ([]domain.PathPair, error) {
		dir := s.absDir(rc)
		ts := rc.Registry().Under(dir)
		pairs := make([]domain.PathPair, len(ts))
		for i, t := range ts {
			p := t.Base().Path()
			pairs[i] = domain.PathPair{Src: p, Dest: domain.RelativeTo(dir, p)}
		}
		return normalizePairs(pairs), nil
	})
}

// UnderlyingDependencies returns the targets below the directory.
func (s *Under) UnderlyingDependencies(rc domain.ResolveContext) ([]domain.Dependency, error) {
	return s.memo.resolveDeps(rc, func() ([]domain.Dependency, error) {
		return targetDeps(rc.Registry().Under(s.absDir(rc)), s), nil
	})
}

// String returns the directory.
func (s *Under) String() string { return "under(" + s.dir + ")" }

func (s *Under) absDir(rc domain.ResolveContext) string {
	return strings.TrimSuffix(absPath(rc.Root(), s.dir), string(filepath.Separator))
}

func targetDeps(ts []domain.Target, src domain.PathSet) []domain.Dependency {
	deps := make([]domain.Dependency, len(ts))
	for i, t := range ts {
		deps[i] = domain.Dependency{Path: t.Base().Path(), Target: t, Source: src}
	}
	return deps
}
