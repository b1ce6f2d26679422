//go:build !unix

package statcache

import "errors"

var syscallNotDir = errors.New("not a directory")
