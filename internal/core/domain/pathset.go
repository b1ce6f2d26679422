package domain

import "time"

// PathPair maps an absolute source path to a destination relative to wherever a
// consumer places it. Directory sources end with a separator.
type PathPair struct {
	Src  string
	Dest string
}

// Dependency is one underlying dependency of a path set: either a raw path
// checked against the filesystem, or the target that produces the path.
type Dependency struct {
	// Path is the raw path, or the producing target's output path.
	Path string
	// Target is the producing target, nil for raw paths.
	Target Target
	// Source is the set that yielded the dependency.
	Source PathSet
}

// IsTarget reports whether the dependency is a graph edge.
func (d Dependency) IsTarget() bool {
	return d.Target != nil
}

// PathSet is a lazily resolved collection of dependency paths.
//
// Implementations must be safe for concurrent use and must cache their results
// for the duration of a resolution phase.
type PathSet interface {
	// Resolve returns the sorted, deduplicated absolute paths of the set.
	Resolve(rc ResolveContext) ([]string, error)

	// ResolveWithDestinations returns every path with its relative destination.
	ResolveWithDestinations(rc ResolveContext) ([]PathPair, error)

	// UnderlyingDependencies returns the dependencies the graph resolver turns into
	// edges and up-to-date inputs. Paths nested under a target's output yield that target.
	UnderlyingDependencies(rc ResolveContext) ([]Dependency, error)

	// String returns a stable description used in implicit inputs and diagnostics.
	String() string
}

// NewestReporter is implemented by path sets that learn the newest file while
// resolving, which lets the up-to-date check skip a second stat pass.
type NewestReporter interface {
	Newest(rc ResolveContext) (path string, mtime time.Time, ok bool, err error)
}

// ResolveContext is the environment path sets resolve against.
type ResolveContext interface {
	// Root returns the absolute build root.
	Root() string

	// Phase identifies the current resolution phase; caches keyed on an older
	// phase must be discarded.
	Phase() uint64

	// Registry returns the frozen target registry.
	Registry() *Registry

	// Stat returns the possibly cached stat of path.
	Stat(path string) (FileStat, error)

	// Walk walks the tree below root in lexical order.
	Walk(root string, fn WalkFunc) error
}

// EmptyPathSet has no paths.
type EmptyPathSet struct{}

// Resolve returns no paths.
func (EmptyPathSet) Resolve(ResolveContext) ([]string, error) { return nil, nil }

// ResolveWithDestinations returns no pairs.
func (EmptyPathSet) ResolveWithDestinations(ResolveContext) ([]PathPair, error) { return nil, nil }

// UnderlyingDependencies returns no dependencies.
func (EmptyPathSet) UnderlyingDependencies(ResolveContext) ([]Dependency, error) { return nil, nil }

// String describes the empty set.
func (EmptyPathSet) String() string { return "[]" }
