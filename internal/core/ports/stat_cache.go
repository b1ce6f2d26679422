package ports

import "go.trai.ch/kiln/internal/core/domain"

// StatCache is a process-wide cache of filesystem stat results.
//
//go:generate mockgen -source=stat_cache.go -destination=mocks/mock_stat_cache.go -package=mocks
type StatCache interface {
	// Stat returns the cached stat of path, populating it on first use.
	// A missing path is reported through FileStat.Exists, not as an error.
	Stat(path string) (domain.FileStat, error)

	// Invalidate drops the entry of path so the next Stat hits the filesystem.
	Invalidate(path string)

	// Reset discards every entry and starts a new resolution phase.
	Reset()

	// Phase returns the identifier of the current resolution phase.
	Phase() uint64
}
