package scheduler

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/resolver"
	"go.trai.ch/zerr"
)

// maxBackoff caps a single retry delay.
const maxBackoff = time.Hour

// resultKind classifies one execution attempt.
type resultKind int

const (
	resultSuccess resultKind = iota
	resultRetryable
	resultTerminal
)

// attemptResult is the outcome of one call to Run.
type attemptResult struct {
	kind        resultKind
	err         error
	nothingToDo bool
	output      string
}

// execution is the outcome of all attempts at one target.
type execution struct {
	attempts    int
	nothingToDo bool
	output      string
	err         error
}

// newBackOff doubles the delay after every failure, starting at initial.
func newBackOff(initial time.Duration) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = max(maxBackoff, initial)
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// execute runs n until it succeeds, fails terminally or runs out of retries.
// The output and scratch directory are cleaned before every retry.
func (st *runState) execute(ctx context.Context, n *resolver.Node, span ports.Span, inputs []string) execution {
	t := n.Target
	b := t.Base()
	retries := b.Retries()
	bo := newBackOff(b.InitialBackoff())

	for attempt := 1; ; attempt++ {
		res := st.attempt(ctx, n, span, inputs)
		switch res.kind {
		case resultSuccess:
			return execution{attempts: attempt, nothingToDo: res.nothingToDo, output: res.output}
		case resultTerminal:
			return execution{attempts: attempt, output: res.output, err: res.err}
		case resultRetryable:
		}

		if attempt > retries {
			err := res.err
			if retries > 0 {
				err = zerr.Wrap(err, "failed after "+strconv.Itoa(retries)+" retries")
			}
			return execution{attempts: attempt, output: res.output, err: err}
		}
		if st.isAborting() {
			return execution{attempts: attempt, output: res.output, err: zerr.Wrap(res.err, domain.ErrBuildAborted.Error())}
		}

		delay := bo.NextBackOff()
		st.emit(domain.Event{
			Kind:     domain.EventRetrying,
			Target:   b.Name(),
			Path:     b.Path(),
			Location: b.Location(),
			Attempt:  attempt,
			Delay:    delay,
			Err:      res.err,
			Output:   res.output,
		})
		span.SetAttribute("kiln.retries", attempt)

		if err := sleep(ctx, delay); err != nil {
			return execution{attempts: attempt, output: res.output, err: zerr.Wrap(err, domain.ErrBuildAborted.Error())}
		}
		if err := t.Clean(ctx, st.runContext(t, io.Discard)); err != nil {
			return execution{attempts: attempt, output: res.output, err: err}
		}
		st.s.stats.Invalidate(b.Path())
	}
}

// attempt runs n once and checks that it produced its output. On success the
// implicit inputs are recorded.
func (st *runState) attempt(ctx context.Context, n *resolver.Node, span ports.Span, inputs []string) attemptResult {
	t := n.Target
	b := t.Base()

	scratch := domain.ScratchPath(st.root, t)
	if err := os.RemoveAll(scratch); err != nil {
		return attemptResult{kind: resultTerminal, err: zerr.With(zerr.Wrap(err, domain.ErrCleanFailed.Error()), "path", scratch)}
	}
	if err := os.MkdirAll(scratch, domain.DirPerm); err != nil {
		return attemptResult{kind: resultTerminal, err: zerr.With(zerr.Wrap(err, "failed to create scratch directory"), "path", scratch)}
	}

	out := &syncBuffer{}
	did, err := t.Run(ctx, st.runContext(t, io.MultiWriter(out, span)))
	if err != nil {
		if ctx.Err() != nil {
			return attemptResult{kind: resultTerminal, err: err, output: out.String()}
		}
		return attemptResult{kind: resultRetryable, err: err, output: out.String()}
	}

	path := b.Path()
	st.s.stats.Invalidate(path)
	info, err := st.s.stats.Stat(path)
	if err != nil {
		return attemptResult{kind: resultTerminal, err: err, output: out.String()}
	}
	if !info.Exists {
		return attemptResult{
			kind:   resultRetryable,
			err:    zerr.With(domain.ErrOutputNotCreated, "path", domain.RelativeTo(st.root, path)),
			output: out.String(),
		}
	}

	// A directory's mtime only moves when entries change; dependents compare
	// against the build time instead.
	if b.IsDir() {
		now := time.Now()
		dir := strings.TrimSuffix(path, string(filepath.Separator))
		if err := os.Chtimes(dir, now, now); err != nil {
			return attemptResult{kind: resultTerminal, err: zerr.With(zerr.Wrap(err, "failed to touch output directory"), "path", dir)}
		}
		st.s.stats.Invalidate(path)
	}

	if err := st.s.store.Put(st.root, t, inputs); err != nil {
		return attemptResult{kind: resultTerminal, err: err, output: out.String()}
	}
	return attemptResult{kind: resultSuccess, nothingToDo: !did, output: out.String()}
}

func (st *runState) runContext(t domain.Target, out io.Writer) *domain.RunContext {
	return &domain.RunContext{
		Resolve:    st.rc,
		ScratchDir: domain.ScratchPath(st.root, t),
		Output:     out,
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// syncBuffer collects process output written from several goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
