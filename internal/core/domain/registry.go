package domain

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// AtomicGroup is a set of targets that only satisfy a dependency together:
// a dependent of any member waits for every member.
type AtomicGroup struct {
	Name     string
	Location Location
	Members  []Target
}

type groupDecl struct {
	name    string
	loc     Location
	members []string
}

// RegistryBuilder collects targets and groups while build files are evaluated.
// It is single-threaded; Freeze turns it into an immutable Registry.
type RegistryBuilder struct {
	targets map[string]Target
	order   []string
	groups  []groupDecl
	frozen  bool
}

// NewRegistryBuilder creates an empty builder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{
		targets: make(map[string]Target),
	}
}

// Add registers a target under its declared name.
func (rb *RegistryBuilder) Add(t Target) error {
	if rb.frozen {
		return ErrRegistryFrozen
	}
	b := t.Base()
	if existing, ok := rb.targets[b.Name()]; ok {
		return zerr.With(zerr.With(zerr.With(ErrTargetAlreadyExists,
			"target", b.Name()),
			"location", b.Location().String()),
			"previous", existing.Base().Location().String())
	}
	rb.targets[b.Name()] = t
	rb.order = append(rb.order, b.Name())
	return nil
}

// AddGroup declares an atomic group over the named targets. Members are
// validated when the builder is frozen.
func (rb *RegistryBuilder) AddGroup(name string, loc Location, members ...string) error {
	if rb.frozen {
		return ErrRegistryFrozen
	}
	for _, g := range rb.groups {
		if g.name == name {
			return zerr.With(zerr.With(ErrGroupAlreadyExists, "group", name), "location", loc.String())
		}
	}
	if len(members) == 0 {
		return zerr.With(zerr.With(ErrEmptyGroup, "group", name), "location", loc.String())
	}
	rb.groups = append(rb.groups, groupDecl{name: name, loc: loc, members: slices.Clone(members)})
	return nil
}

// Len returns the number of registered targets.
func (rb *RegistryBuilder) Len() int {
	return len(rb.targets)
}

// Freeze resolves every target path and returns the read-only registry.
// The builder cannot be used afterwards.
func (rb *RegistryBuilder) Freeze(root string, props map[string]string) (*Registry, error) {
	if rb.frozen {
		return nil, ErrRegistryFrozen
	}
	rb.frozen = true

	root = filepath.Clean(root)
	reg := &Registry{
		root:    root,
		byName:  make(map[string]Target, len(rb.targets)),
		byPath:  make(map[string]Target, len(rb.targets)),
		tags:    make(map[string][]Target),
		groupOf: make(map[Target]*AtomicGroup),
	}

	var errs error
	for _, name := range rb.order {
		t := rb.targets[name]
		b := t.Base()
		p, err := b.ResolvePath(root, props)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}

		key := pathKey(p)
		if other, ok := reg.byPath[key]; ok {
			errs = errors.Join(errs, zerr.With(zerr.With(zerr.With(ErrDuplicateOutputPath,
				"path", RelativeTo(root, p)),
				"target", name),
				"other", other.Base().Name()))
			continue
		}

		reg.byName[name] = t
		reg.byPath[key] = t
		reg.names = append(reg.names, name)
		for _, tag := range b.Tags() {
			reg.tags[tag] = append(reg.tags[tag], t)
		}
	}

	for _, decl := range rb.groups {
		g := &AtomicGroup{Name: decl.name, Location: decl.loc}
		for _, m := range decl.members {
			t, ok := reg.byName[m]
			if !ok {
				errs = errors.Join(errs, zerr.With(zerr.With(zerr.With(ErrTargetNotFound,
					"target", m), "group", decl.name), "location", decl.loc.String()))
				continue
			}
			if other, ok := reg.groupOf[t]; ok {
				errs = errors.Join(errs, zerr.With(zerr.With(zerr.With(ErrTargetInMultipleGroups,
					"target", m), "group", decl.name), "other", other.Name))
				continue
			}
			reg.groupOf[t] = g
			g.Members = append(g.Members, t)
		}
		reg.groups = append(reg.groups, g)
	}

	if errs != nil {
		return nil, errs
	}

	slices.Sort(reg.names)
	return reg, nil
}

// Registry is the frozen set of targets. It is safe for concurrent reads.
type Registry struct {
	root    string
	names   []string
	byName  map[string]Target
	byPath  map[string]Target
	tags    map[string][]Target
	groups  []*AtomicGroup
	groupOf map[Target]*AtomicGroup
}

// Root returns the absolute build root.
func (r *Registry) Root() string { return r.root }

// Len returns the number of targets.
func (r *Registry) Len() int { return len(r.names) }

// Names returns the sorted target names.
func (r *Registry) Names() []string { return r.names }

// Targets returns every target ordered by name.
func (r *Registry) Targets() []Target {
	out := make([]Target, len(r.names))
	for i, n := range r.names {
		out[i] = r.byName[n]
	}
	return out
}

// Get returns the target declared under name.
func (r *Registry) Get(name string) (Target, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// ByPath returns the target whose output is exactly path.
func (r *Registry) ByPath(path string) (Target, bool) {
	t, ok := r.byPath[pathKey(path)]
	return t, ok
}

// Lookup finds a target by declared name, by output path relative to the root,
// or by absolute output path.
func (r *Registry) Lookup(ref string) (Target, bool) {
	if t, ok := r.byName[ref]; ok {
		return t, true
	}
	p := filepath.FromSlash(ref)
	if !filepath.IsAbs(p) {
		p = filepath.Join(r.root, p)
	}
	return r.ByPath(p)
}

// Owner returns the target producing path: either a target whose output is
// exactly path, or a directory target whose output contains it.
func (r *Registry) Owner(path string) (Target, bool) {
	key := pathKey(path)
	if t, ok := r.byPath[key]; ok {
		return t, true
	}
	for dir := filepath.Dir(key); ; dir = filepath.Dir(dir) {
		if t, ok := r.byPath[dir]; ok && t.Base().IsDir() {
			return t, true
		}
		if dir == r.root || dir == filepath.Dir(dir) {
			return nil, false
		}
	}
}

// Tagged returns the targets carrying tag, ordered by name.
func (r *Registry) Tagged(tag string) []Target {
	ts := slices.Clone(r.tags[tag])
	slices.SortFunc(ts, func(a, b Target) int { return strings.Compare(a.Base().Name(), b.Base().Name()) })
	return ts
}

// Tags returns every tag in use, sorted.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.tags))
	for tag := range r.tags {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}

// Under returns the targets whose output lies below dir, ordered by name.
func (r *Registry) Under(dir string) []Target {
	prefix := pathKey(dir) + string(filepath.Separator)
	var out []Target
	for _, n := range r.names {
		t := r.byName[n]
		if strings.HasPrefix(pathKey(t.Base().Path()), prefix) {
			out = append(out, t)
		}
	}
	return out
}

// Group returns the atomic group t belongs to, or nil.
func (r *Registry) Group(t Target) *AtomicGroup {
	return r.groupOf[t]
}

// Groups returns every atomic group in declaration order.
func (r *Registry) Groups() []*AtomicGroup {
	return r.groups
}

func pathKey(p string) string {
	return filepath.Clean(strings.TrimSuffix(p, string(filepath.Separator)))
}
