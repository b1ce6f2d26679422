package statcache

import "io/fs"

// SetStatFunc replaces the stat function used on a cache miss.
func (c *Cache) SetStatFunc(fn func(string) (fs.FileInfo, error)) {
	c.stat = fn
}
