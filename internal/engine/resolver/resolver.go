package resolver

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Options controls plan construction.
type Options struct {
	// IgnoreDeps treats every target whose output exists as satisfied.
	IgnoreDeps bool
}

// Resolver builds plans against one resolution context.
type Resolver struct {
	rc          domain.ResolveContext
	logger      ports.Logger
	parallelism int
}

// New creates a Resolver. Dependency sets are resolved with up to GOMAXPROCS
// goroutines.
func New(rc domain.ResolveContext, logger ports.Logger) *Resolver {
	return &Resolver{rc: rc, logger: logger, parallelism: runtime.GOMAXPROCS(0)}
}

// Resolve computes the plan for selected and everything they depend on.
//
// Resolution errors are attributed to the declaring target and classified as
// pre-build check failures; a cycle is a configuration error.
func (r *Resolver) Resolve(ctx context.Context, selected []domain.Target, opts Options) (*Plan, error) {
	nodes, err := r.collect(ctx, selected)
	if err != nil {
		return nil, err
	}

	if err := r.link(nodes); err != nil {
		return nil, domain.Classify(err, domain.ErrConfiguration)
	}

	order, err := topoSort(nodes)
	if err != nil {
		return nil, domain.Classify(err, domain.ErrConfiguration)
	}
	propagatePriorities(order)

	if opts.IgnoreDeps {
		if err := r.markSatisfied(order); err != nil {
			return nil, domain.Classify(err, domain.ErrPreBuildCheck)
		}
	}

	return &Plan{Order: order, nodes: nodes}, nil
}

// collect resolves dependency sets breadth first. Every wave is resolved in
// parallel; targets discovered in a wave form the next one.
func (r *Resolver) collect(ctx context.Context, selected []domain.Target) (map[string]*Node, error) {
	reg := r.rc.Registry()
	nodes := make(map[string]*Node)
	var frontier []*Node

	var add func(t domain.Target) *Node
	add = func(t domain.Target) *Node {
		name := t.Base().Name()
		if n, ok := nodes[name]; ok {
			return n
		}
		n := &Node{Target: t}
		nodes[name] = n
		frontier = append(frontier, n)
		if g := reg.Group(t); g != nil {
			for _, m := range g.Members {
				add(m)
			}
		}
		return n
	}

	for _, t := range selected {
		add(t).Selected = true
	}

	for len(frontier) > 0 {
		wave := frontier
		frontier = nil

		errs := make([]error, len(wave))
		var g errgroup.Group
		g.SetLimit(r.parallelism)
		for i, n := range wave {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				deps, err := n.Target.Base().Dependencies().UnderlyingDependencies(r.rc)
				if err != nil {
					errs[i] = attribute(n.Target, err)
					return nil
				}
				n.Sources = deps
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := errors.Join(errs...); err != nil {
			return nil, domain.Classify(err, domain.ErrPreBuildCheck)
		}

		for _, n := range wave {
			for _, d := range n.Sources {
				if d.Target != nil {
					add(d.Target)
				}
			}
		}
	}

	return nodes, nil
}

// link turns target dependencies into edges. A dependency on a member of an
// atomic group the dependent does not belong to becomes a dependency on every
// member of the group.
func (r *Resolver) link(nodes map[string]*Node) error {
	reg := r.rc.Registry()
	for _, name := range sortedNames(nodes) {
		n := nodes[name]
		own := reg.Group(n.Target)
		seen := make(map[*Node]bool)
		for _, d := range n.Sources {
			if d.Target == nil {
				continue
			}
			dn := nodes[d.Target.Base().Name()]
			if dn == n {
				return cycleError([]*Node{n, n})
			}
			if g := reg.Group(d.Target); g != nil && g != own {
				for _, m := range g.Members {
					seen[nodes[m.Base().Name()]] = true
				}
				continue
			}
			seen[dn] = true
		}
		for dn := range seen {
			n.Deps = append(n.Deps, dn)
			dn.Dependents = append(dn.Dependents, n)
		}
	}
	for _, n := range nodes {
		sortNodes(n.Deps)
		sortNodes(n.Dependents)
	}
	return nil
}

const (
	unvisited = iota
	visiting
	visited
)

// topoSort orders nodes with dependencies first. Nodes are visited by name so
// the order, and the reported cycle, are deterministic.
func topoSort(nodes map[string]*Node) ([]*Node, error) {
	names := sortedNames(nodes)

	state := make(map[*Node]int, len(nodes))
	order := make([]*Node, 0, len(nodes))
	var stack []*Node

	var visit func(n *Node) error
	visit = func(n *Node) error {
		state[n] = visiting
		stack = append(stack, n)
		for _, d := range n.Deps {
			switch state[d] {
			case visiting:
				i := slices.Index(stack, d)
				return cycleError(append(slices.Clone(stack[i:]), d))
			case unvisited:
				if err := visit(d); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[n] = visited
		order = append(order, n)
		return nil
	}

	for _, name := range names {
		if n := nodes[name]; state[n] == unvisited {
			if err := visit(n); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

// propagatePriorities raises every node to the highest priority of its
// dependents. Dependents come later in order, so a reverse walk finalizes each
// node before any of its dependencies reads it.
func propagatePriorities(order []*Node) {
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		p := n.Target.Base().Priority()
		for _, d := range n.Dependents {
			p = max(p, d.Priority)
		}
		n.Priority = p
	}
}

func (r *Resolver) markSatisfied(order []*Node) error {
	var satisfied []string
	for _, n := range order {
		st, err := r.rc.Stat(n.Target.Base().Path())
		if err != nil {
			return attribute(n.Target, err)
		}
		if st.Exists {
			n.Satisfied = true
			satisfied = append(satisfied, n.Name())
		}
	}
	if len(satisfied) > 0 && r.logger != nil {
		r.logger.Warn("ignoring dependencies: " + strconv.Itoa(len(satisfied)) +
			" targets with existing outputs are treated as up to date")
		r.logger.Debug("satisfied without checking: " + strings.Join(satisfied, ", "))
	}
	return nil
}

func sortedNames(nodes map[string]*Node) []string {
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func cycleError(path []*Node) error {
	names := make([]string, len(path))
	for i, n := range path {
		names[i] = n.Name()
	}
	return zerr.With(domain.ErrCycleDetected, "cycle", strings.Join(names, " -> "))
}

func attribute(t domain.Target, err error) error {
	b := t.Base()
	return zerr.With(zerr.With(zerr.Wrap(err, domain.ErrDependencyResolutionFailed.Error()),
		"target", b.Name()),
		"location", b.Location().String())
}
