package config

import (
	"slices"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/engine/pathset"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// parser turns build-file nodes into domain values. Every value it creates
// carries the location of the node it came from.
type parser struct {
	file  string
	props map[string]string
}

func (p *parser) loc(n *yaml.Node) domain.Location {
	return domain.Location{File: p.file, Line: n.Line}
}

func (p *parser) fail(n *yaml.Node, err error) error {
	return zerr.With(err, "location", p.loc(n).String())
}

func (p *parser) expand(n *yaml.Node, s string) (string, error) {
	v, err := domain.ExpandProperties(s, p.props)
	if err != nil {
		return "", p.fail(n, err)
	}
	return v, nil
}

func (p *parser) expandAll(n *yaml.Node, ss []string) ([]string, error) {
	out := make([]string, len(ss))
	for i, s := range ss {
		v, err := p.expand(n, s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *parser) expandMap(n *yaml.Node, m map[string]string) (map[string]string, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		ev, err := p.expand(n, v)
		if err != nil {
			return nil, err
		}
		out[k] = ev
	}
	return out, nil
}

// dependencies builds the union of every entry in nodes. It returns nil for an
// empty list.
func (p *parser) dependencies(nodes []yaml.Node) (domain.PathSet, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	sets := make([]domain.PathSet, 0, len(nodes))
	for i := range nodes {
		set, err := p.dependency(&nodes[i])
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	if len(sets) == 1 {
		return sets[0], nil
	}
	return pathset.NewUnion(sets...), nil
}

func (p *parser) dependency(n *yaml.Node) (domain.PathSet, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		path, err := p.expand(n, n.Value)
		if err != nil {
			return nil, err
		}
		return pathset.NewLiteral(p.loc(n), path), nil
	case yaml.MappingNode:
		return p.dependencyMapping(n)
	default:
		return nil, p.fail(n, domain.ErrUnknownDependencyKind)
	}
}

func (p *parser) dependencyMapping(n *yaml.Node) (domain.PathSet, error) {
	if err := p.checkKeys(n, dependencyKeys); err != nil {
		return nil, err
	}
	var kinds []string
	for _, k := range mappingKeys(n) {
		if slices.Contains(dependencyKinds, k) {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) != 1 {
		return nil, zerr.With(p.fail(n, domain.ErrUnknownDependencyKind), "kinds", strings.Join(kinds, ", "))
	}

	var dto DependencyDTO
	if err := n.Decode(&dto); err != nil {
		return nil, p.fail(n, zerr.Wrap(err, domain.ErrConfigParseFailed.Error()))
	}
	loc := p.loc(n)

	switch kinds[0] {
	case "target":
		ref, err := p.expand(n, dto.Target)
		if err != nil {
			return nil, err
		}
		return pathset.NewTargetRef(loc, ref), nil
	case "tag":
		return pathset.NewTag(loc, dto.Tag), nil
	case "under":
		dir, err := p.expand(n, dto.Under)
		if err != nil {
			return nil, err
		}
		return pathset.NewUnder(loc, dir), nil
	case "glob":
		return p.glob(n, &dto)
	case "dir":
		dir, err := p.expand(n, dto.Dir)
		if err != nil {
			return nil, err
		}
		children, err := p.expandAll(n, dto.Children)
		if err != nil {
			return nil, err
		}
		return pathset.NewDirChildren(loc, dir, children...), nil
	default:
		return p.derived(n, kinds[0], &dto)
	}
}

func (p *parser) glob(n *yaml.Node, dto *DependencyDTO) (domain.PathSet, error) {
	includes, err := p.stringList(&dto.Glob)
	if err != nil {
		return nil, err
	}
	excludes, err := p.stringList(&dto.Exclude)
	if err != nil {
		return nil, err
	}
	root, err := p.expand(n, dto.Root)
	if err != nil {
		return nil, err
	}
	g, err := pathset.NewGlob(p.loc(n), root, includes, excludes)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// derived wraps the nested deps of n in a destination-rewriting set.
func (p *parser) derived(n *yaml.Node, kind string, dto *DependencyDTO) (domain.PathSet, error) {
	if len(dto.Deps) == 0 {
		return nil, zerr.With(p.fail(n, domain.ErrUnknownDependencyKind), "kind", kind+" without deps")
	}
	child, err := p.dependencies(dto.Deps)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "prefix":
		prefix, err := p.expand(n, dto.Prefix)
		if err != nil {
			return nil, err
		}
		return pathset.NewPrefix(child, prefix), nil
	case "rename":
		return pathset.NewRename(child, dto.Rename), nil
	case "flatten":
		if !dto.Flatten {
			return child, nil
		}
		return pathset.NewFlatten(child), nil
	default:
		patterns, err := p.stringList(&dto.Filter)
		if err != nil {
			return nil, err
		}
		set, err := pathset.NewFilter(child, patterns)
		if err != nil {
			return nil, p.fail(n, err)
		}
		return set, nil
	}
}

// stringList accepts a scalar or a sequence of scalars.
func (p *parser) stringList(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		v, err := p.expand(n, n.Value)
		if err != nil {
			return nil, err
		}
		return []string{v}, nil
	case yaml.SequenceNode:
		var raw []string
		if err := n.Decode(&raw); err != nil {
			return nil, p.fail(n, zerr.Wrap(err, domain.ErrConfigParseFailed.Error()))
		}
		return p.expandAll(n, raw)
	default:
		return nil, p.fail(n, zerr.With(domain.ErrConfigParseFailed, "expected", "string or list of strings"))
	}
}

// checkKeys rejects unknown keys so that a typo does not silently drop a setting.
func (p *parser) checkKeys(n *yaml.Node, allowed []string) error {
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		if !slices.Contains(allowed, key.Value) {
			return zerr.With(p.fail(key, domain.ErrConfigParseFailed), "unknown_field", key.Value)
		}
	}
	return nil
}

func mappingKeys(n *yaml.Node) []string {
	keys := make([]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		keys = append(keys, n.Content[i].Value)
	}
	return keys
}

// field returns the value node of key in mapping n, or n itself when the key is absent.
func field(n *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return n
}
