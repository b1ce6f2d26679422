// Package resolver turns the selected targets into an executable plan: it
// resolves dependency sets into graph edges, rejects cycles and propagates
// priorities from dependents to their dependencies.
package resolver

import (
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

// Context implements domain.ResolveContext on top of the stat cache and walker.
type Context struct {
	reg    *domain.Registry
	stats  ports.StatCache
	walker ports.Walker
}

var _ domain.ResolveContext = (*Context)(nil)

// NewContext creates a resolution context for reg.
func NewContext(reg *domain.Registry, stats ports.StatCache, walker ports.Walker) *Context {
	return &Context{reg: reg, stats: stats, walker: walker}
}

// Root returns the build root.
func (c *Context) Root() string { return c.reg.Root() }

// Phase returns the phase of the stat cache.
func (c *Context) Phase() uint64 { return c.stats.Phase() }

// Registry returns the frozen registry.
func (c *Context) Registry() *domain.Registry { return c.reg }

// Stat returns the cached stat of path.
func (c *Context) Stat(path string) (domain.FileStat, error) { return c.stats.Stat(path) }

// Walk walks the tree below root.
func (c *Context) Walk(root string, fn domain.WalkFunc) error { return c.walker.Walk(root, fn) }

// Stats returns the underlying stat cache.
func (c *Context) Stats() ports.StatCache { return c.stats }
