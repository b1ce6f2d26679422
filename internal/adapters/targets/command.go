// Package targets implements the built-in target kinds.
package targets

import (
	"context"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	"github.com/google/shlex"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// CommandTypeName is the type name of command targets.
const CommandTypeName = "command"

// OutputLogName is the file in the scratch directory receiving command output.
const OutputLogName = "output.log"

// Command runs an external command that produces the output.
type Command struct {
	*domain.BaseTarget

	runner  ports.CommandRunner
	args    []string
	env     map[string]string
	timeout time.Duration
}

// NewCommand creates a command target. args must not be empty.
func NewCommand(
	name string,
	loc domain.Location,
	deps domain.PathSet,
	runner ports.CommandRunner,
	args []string,
	env map[string]string,
	timeout time.Duration,
) (*Command, error) {
	if len(args) == 0 {
		return nil, zerr.With(zerr.With(domain.ErrEmptyCommand, "target", name), "location", loc.String())
	}
	return &Command{
		BaseTarget: domain.NewBaseTarget(CommandTypeName, name, loc, deps),
		runner:     runner,
		args:       args,
		env:        env,
		timeout:    timeout,
	}, nil
}

// SplitCommandLine splits a command line with shell quoting rules, without
// invoking a shell.
func SplitCommandLine(line string) ([]string, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to split command line"), "command", line)
	}
	if len(args) == 0 {
		return nil, domain.ErrEmptyCommand
	}
	return args, nil
}

// Args returns the command line.
func (c *Command) Args() []string { return c.args }

// Timeout returns the process timeout.
func (c *Command) Timeout() time.Duration { return c.timeout }

// Run executes the command in the build root. The output path, the scratch
// directory and the resolved inputs are passed in the environment.
func (c *Command) Run(ctx context.Context, rc *domain.RunContext) (bool, error) {
	out := c.Path()
	if err := os.MkdirAll(filepath.Dir(strings.TrimSuffix(out, string(filepath.Separator))), domain.DirPerm); err != nil {
		return false, zerr.With(zerr.Wrap(err, "failed to create output directory"), "path", out)
	}

	inputs, err := c.Dependencies().Resolve(rc.Resolve)
	if err != nil {
		return false, err
	}
	rel := make([]string, len(inputs))
	for i, p := range inputs {
		rel[i] = domain.RelativeTo(rc.Root(), p)
	}

	logFile, err := os.OpenFile(filepath.Join(rc.ScratchDir, OutputLogName), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, domain.FilePerm)
	if err != nil {
		return false, zerr.Wrap(err, "failed to create output log")
	}
	defer func() { _ = logFile.Close() }()

	var w io.Writer = logFile
	if rc.Output != nil {
		w = io.MultiWriter(logFile, rc.Output)
	}

	env := []string{
		"KILN_ROOT=" + rc.Root(),
		"KILN_OUTPUT=" + strings.TrimSuffix(out, string(filepath.Separator)),
		"KILN_WORKDIR=" + rc.ScratchDir,
		"KILN_INPUTS=" + strings.Join(rel, " "),
	}
	for _, k := range slices.Sorted(maps.Keys(c.env)) {
		env = append(env, k+"="+c.env[k])
	}

	err = c.runner.Run(ctx, ports.Command{
		Args:    c.args,
		Dir:     rc.Root(),
		Env:     env,
		Timeout: c.timeout,
	}, w)
	return true, err
}

// ImplicitInputs adds the command line and its environment to the defaults.
func (c *Command) ImplicitInputs(ctx context.Context, rc domain.ResolveContext) ([]string, error) {
	inputs, err := c.BaseTarget.ImplicitInputs(ctx, rc)
	if err != nil {
		return nil, err
	}
	inputs = append(inputs, "command: "+shellescape.QuoteCommand(c.args))
	for k, v := range c.env {
		inputs = append(inputs, "env "+k+"="+v)
	}
	slices.Sort(inputs)
	return inputs, nil
}
