package domain

import "time"

// FileStat is the cached result of stating a path.
type FileStat struct {
	Exists  bool
	IsDir   bool
	ModTime time.Time
}

// WalkFunc is invoked for every entry of a directory walk, the root included.
// Returning ErrSkipDir from a directory prunes it.
type WalkFunc func(path string, isDir bool) error
