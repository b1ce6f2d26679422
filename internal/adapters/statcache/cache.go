// Package statcache implements the process-wide stat cache.
package statcache

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

// Cache implements ports.StatCache with a read-through map. Concurrent misses on
// the same key may both stat the path; the last writer wins with an equivalent entry.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]domain.FileStat
	phase   atomic.Uint64

	stat func(string) (fs.FileInfo, error)
}

// New creates an empty cache in phase 1.
func New() *Cache {
	c := &Cache{
		entries: make(map[string]domain.FileStat),
		stat:    os.Stat,
	}
	c.phase.Store(1)
	return c
}

// Stat returns the cached stat of path.
func (c *Cache) Stat(path string) (domain.FileStat, error) {
	key := normalize(path)

	c.mu.RLock()
	st, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return st, nil
	}

	info, err := c.stat(key)
	switch {
	case err == nil:
		st = domain.FileStat{Exists: true, IsDir: info.IsDir(), ModTime: info.ModTime()}
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscallNotDir):
		st = domain.FileStat{}
	default:
		return domain.FileStat{}, zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", key)
	}

	c.mu.Lock()
	c.entries[key] = st
	c.mu.Unlock()
	return st, nil
}

// Invalidate drops the entry of path.
func (c *Cache) Invalidate(path string) {
	key := normalize(path)
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Reset discards every entry and advances the phase.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]domain.FileStat)
	c.mu.Unlock()
	c.phase.Add(1)
}

// Phase returns the current phase.
func (c *Cache) Phase() uint64 {
	return c.phase.Load()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// normalize drops trailing separators; the file system root keeps its own.
func normalize(path string) string {
	return filepath.Clean(path)
}
