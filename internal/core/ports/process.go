package ports

import (
	"context"
	"io"
	"time"
)

// Command describes a process spawned by a target.
type Command struct {
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// CommandRunner runs external processes on behalf of targets.
//
//go:generate mockgen -source=process.go -destination=mocks/mock_process.go -package=mocks
type CommandRunner interface {
	// Run starts cmd, streams its combined output to out and waits for it.
	// A process exceeding its timeout is killed and reported as a failure.
	Run(ctx context.Context, cmd Command, out io.Writer) error
}

// ProcessTracker tracks processes spawned during a build so that an abort can kill them.
type ProcessTracker interface {
	// KillAll kills every tracked process tree and returns how many were signalled.
	KillAll() int
}
