package resolver

import (
	"slices"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
)

// Node is one target of a plan.
type Node struct {
	Target domain.Target
	// Priority is the effective priority: the declared priority raised to the
	// highest priority of any dependent.
	Priority float64
	// Deps are the targets that must complete first, sorted by name. Atomic
	// groups are already expanded: depending on one member means depending on all.
	Deps []*Node
	// Dependents are the targets waiting on this one, sorted by name.
	Dependents []*Node
	// Sources are the underlying dependencies, raw paths and targets, used by
	// the up-to-date check.
	Sources []domain.Dependency
	// Satisfied marks a target that is not scheduled because ignore-deps found
	// its output on disk.
	Satisfied bool
	// Selected marks a target that was requested rather than pulled in.
	Selected bool
}

// Name returns the target name.
func (n *Node) Name() string { return n.Target.Base().Name() }

// Plan is the resolved graph of one build.
type Plan struct {
	// Order lists every node with dependencies before dependents.
	Order []*Node
	nodes map[string]*Node
}

// Node returns the node of the named target.
func (p *Plan) Node(name string) (*Node, bool) {
	n, ok := p.nodes[name]
	return n, ok
}

// Len returns the number of nodes.
func (p *Plan) Len() int { return len(p.Order) }

// Names returns the node names in plan order.
func (p *Plan) Names() []string {
	names := make([]string, len(p.Order))
	for i, n := range p.Order {
		names[i] = n.Name()
	}
	return names
}

// Pending returns the number of unsatisfied dependencies of every node that
// has to be scheduled.
func (p *Plan) Pending() map[*Node]int {
	pending := make(map[*Node]int, len(p.Order))
	for _, n := range p.Order {
		if n.Satisfied {
			continue
		}
		count := 0
		for _, d := range n.Deps {
			if !d.Satisfied {
				count++
			}
		}
		pending[n] = count
	}
	return pending
}

// Ready returns the scheduled nodes without unsatisfied dependencies, by name.
func (p *Plan) Ready() []*Node {
	var ready []*Node
	for n, count := range p.Pending() {
		if count == 0 {
			ready = append(ready, n)
		}
	}
	sortNodes(ready)
	return ready
}

// Edges returns, per target name, the names of its direct dependencies.
func (p *Plan) Edges() map[string][]string {
	edges := make(map[string][]string, len(p.Order))
	for _, n := range p.Order {
		deps := make([]string, len(n.Deps))
		for i, d := range n.Deps {
			deps[i] = d.Name()
		}
		edges[n.Name()] = deps
	}
	return edges
}

func sortNodes(nodes []*Node) {
	slices.SortFunc(nodes, func(a, b *Node) int { return strings.Compare(a.Name(), b.Name()) })
}
