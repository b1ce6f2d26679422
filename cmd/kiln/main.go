// Package main is the entry point for the kiln build tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/cmd/kiln/commands"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/core/domain"
	_ "go.trai.ch/kiln/internal/wiring"
	"go.uber.org/automaxprocs/maxprocs"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitBuildFailed = 1
	ExitConfig      = 2
	ExitPreBuild    = 3
	ExitInternal    = 4
)

// ComponentProvider is a function that returns the application components.
type ComponentProvider func(context.Context) (*app.Components, func(), error)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr, func(ctx context.Context) (*app.Components, func(), error) {
		c, _, err := graft.ExecuteFor[*app.Components](ctx)
		return c, func() {}, err
	}))
}

func run(
	ctx context.Context,
	args []string,
	stderr io.Writer,
	provider ComponentProvider,
	opts ...commands.Option,
) int {
	// 0. Context with signal handling
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 1. Initialize application components
	components, cleanup, err := provider(ctx)
	if err != nil {
		// Logger is not available yet if initialization failed
		_, _ = fmt.Fprintln(stderr, "Error: "+err.Error())
		return exitCode(err)
	}
	defer cleanup()

	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		components.Logger.Debug(fmt.Sprintf(format, args...))
	}))
	if err != nil {
		components.Logger.Warn("failed to set GOMAXPROCS: " + err.Error())
	}
	defer undo()

	// 2. Interface - CLI
	opts = append([]commands.Option{commands.WithJSONDefault(components.Settings.LogJSON)}, opts...)
	cli := commands.New(components.App, components.Logger, opts...)
	cli.SetArgs(args)
	cli.SetOutput(os.Stdout, stderr)

	// 3. Execution
	err = cli.Execute(ctx)
	if ctx.Err() != nil && components.Tracker != nil {
		if n := components.Tracker.KillAll(); n > 0 {
			components.Logger.Warn("interrupted, killed " + strconv.Itoa(n) + " processes")
		}
	}
	if err == nil {
		return ExitOK
	}

	// Failed targets are already listed in the build summary.
	if !errors.Is(err, domain.ErrBuildFailed) {
		components.Logger.Error(err)
	}
	return exitCode(err)
}

// exitCode maps an error class to the process exit code.
func exitCode(err error) int {
	switch domain.ClassOf(err) {
	case nil:
		return ExitInternal
	case domain.ErrBuildFailed:
		return ExitBuildFailed
	case domain.ErrConfiguration:
		return ExitConfig
	case domain.ErrPreBuildCheck:
		return ExitPreBuild
	case domain.ErrInternal:
		return ExitInternal
	default:
		return ExitInternal
	}
}
