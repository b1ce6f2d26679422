// Package shell runs the external processes of build targets.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alessio/shellescape"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	// DefaultTimeout applies to commands that do not set their own.
	DefaultTimeout = 600 * time.Second

	// killGrace is how long a process group gets to exit after SIGTERM.
	killGrace = 100 * time.Millisecond
)

// trackedProcess is a started command tracked until it exits.
type trackedProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
}

// Runner implements ports.CommandRunner and ports.ProcessTracker. Every command
// runs in its own process group so a timeout or an abort reaches its children.
type Runner struct {
	logger ports.Logger

	mu    sync.Mutex
	procs map[*trackedProcess]struct{}
}

// NewRunner creates a new Runner.
func NewRunner(logger ports.Logger) *Runner {
	return &Runner{
		logger: logger,
		procs:  make(map[*trackedProcess]struct{}),
	}
}

// Run starts cmd, streams its combined output to out and waits for it. The
// process is killed when its timeout expires or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, c ports.Command, out io.Writer) error {
	if len(c.Args) == 0 {
		return domain.ErrEmptyCommand
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	name := c.Args[0]
	env := resolveEnvironment(os.Environ(), c.Env)

	executable := name
	if !filepath.IsAbs(name) {
		if lp, err := lookPath(name, env); err == nil {
			executable = lp
		}
	}

	// Not CommandContext: it only sends SIGKILL to the leader, and the group
	// has to be signalled instead.
	cmd := exec.Command(executable, c.Args[1:]...) //nolint:gosec // commands come from the build file
	cmd.Args[0] = name
	cmd.Dir = c.Dir
	cmd.Env = env
	setProcessGroup(cmd)

	log := &logWriter{logger: r.logger, prefix: filepath.Base(name) + ": "}
	if out == nil {
		out = io.Discard
	}
	combined := &lockedWriter{w: io.MultiWriter(out, log)}
	cmd.Stdout = combined
	cmd.Stderr = combined

	line := shellescape.QuoteCommand(c.Args)
	r.logger.Debug("running " + line)

	if err := cmd.Start(); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrProcessFailed.Error()), "command", line)
	}
	p := &trackedProcess{cmd: cmd, done: make(chan struct{})}
	r.track(p)
	defer r.untrack(p)

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(p.done)
	}()

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-waitErr:
	case <-timer.C:
		terminate(p)
		<-waitErr
		_ = log.Close()
		return zerr.With(zerr.With(domain.ErrProcessTimeout, "command", line), "timeout", timeout.String())
	case <-ctx.Done():
		terminate(p)
		<-waitErr
		_ = log.Close()
		return zerr.With(zerr.Wrap(ctx.Err(), domain.ErrProcessFailed.Error()), "command", line)
	}
	_ = log.Close()

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return zerr.With(zerr.With(zerr.Wrap(err, domain.ErrProcessFailed.Error()),
			"command", line),
			"exit_code", exitCode)
	}
	return nil
}

// KillAll terminates the process tree of every running command and returns
// how many commands were signalled.
func (r *Runner) KillAll() int {
	r.mu.Lock()
	procs := make([]*trackedProcess, 0, len(r.procs))
	for p := range r.procs {
		procs = append(procs, p)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range procs {
		wg.Go(func() { terminate(p) })
	}
	wg.Wait()
	return len(procs)
}

// Running returns the number of tracked commands.
func (r *Runner) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

func (r *Runner) track(p *trackedProcess) {
	r.mu.Lock()
	r.procs[p] = struct{}{}
	r.mu.Unlock()
}

func (r *Runner) untrack(p *trackedProcess) {
	r.mu.Lock()
	delete(r.procs, p)
	r.mu.Unlock()
}

// terminate sends SIGTERM to the process group and escalates to killing the
// whole tree if it does not exit within the grace period.
func terminate(p *trackedProcess) {
	if p.cmd.Process == nil {
		return
	}
	pid := p.cmd.Process.Pid
	signalGroup(pid, false)
	select {
	case <-p.done:
		return
	case <-time.After(killGrace):
	}
	killTree(pid)
	signalGroup(pid, true)
}

// lockedWriter serialises writes from stdout and stderr.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// logWriter forwards complete lines of output to the debug log.
type logWriter struct {
	logger ports.Logger
	prefix string
	buf    []byte
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logLine(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *logWriter) Close() error {
	if len(w.buf) > 0 {
		w.logLine(w.buf)
		w.buf = nil
	}
	return nil
}

func (w *logWriter) logLine(line []byte) {
	w.logger.Debug(w.prefix + strings.TrimSuffix(string(line), "\r"))
}

// allowListedEnvVars are the system environment variables a command inherits.
// Everything else must be passed explicitly so builds stay reproducible.
var allowListedEnvVars = map[string]struct{}{
	"HOME":   {},
	"LANG":   {},
	"PATH":   {},
	"TERM":   {},
	"TMPDIR": {},
	"USER":   {},
}

// resolveEnvironment returns the allow-listed system variables overlaid with
// the command's own, sorted by name.
func resolveEnvironment(sysEnv, cmdEnv []string) []string {
	envMap := make(map[string]string)
	for _, entry := range sysEnv {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if _, allowed := allowListedEnvVars[k]; allowed {
			envMap[k] = v
		}
	}
	for _, entry := range cmdEnv {
		if k, v, ok := strings.Cut(entry, "="); ok {
			envMap[k] = v
		}
	}

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	slices.Sort(result)
	return result
}

// lookPath searches for an executable in the directories named by the PATH
// of env rather than of the current process.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if p, ok := strings.CutPrefix(e, "PATH="); ok {
			path = p
			break
		}
	}
	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
