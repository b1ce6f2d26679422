// Package fs provides the directory walker used for glob resolution.
package fs

import (
	"errors"
	"path/filepath"

	"github.com/karrick/godirwalk"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

// Walker implements ports.Walker on top of godirwalk, which reads directory
// entries without a stat per entry.
type Walker struct {
	// Unsorted trades lexical order for speed. Callers sort their results.
	Unsorted bool
}

// NewWalker creates a new Walker.
func NewWalker() *Walker {
	return &Walker{}
}

// Walk calls fn for root and every entry below it. Returning domain.ErrSkipDir
// for a directory prunes it. Symbolic links are reported by the type of their
// target but never descended into.
func (w *Walker) Walk(root string, fn domain.WalkFunc) error {
	root = filepath.Clean(root)
	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted:            w.Unsorted,
		FollowSymbolicLinks: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			isDir, err := de.IsDirOrSymlinkToDir()
			if err != nil {
				return err
			}
			if err := fn(path, isDir); err != nil {
				if errors.Is(err, domain.ErrSkipDir) {
					if isDir && path != root {
						return godirwalk.SkipThis
					}
					return nil
				}
				return err
			}
			return nil
		},
	})
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to walk directory"), "root", root)
	}
	return nil
}
