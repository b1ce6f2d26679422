//go:build unix

package statcache

import "golang.org/x/sys/unix"

// syscallNotDir is returned when a path component is a regular file.
var syscallNotDir error = unix.ENOTDIR
