// Package scheduler runs a resolved plan on a pool of workers.
//
// Ready targets wait in a priority queue. Workers pop the highest priority
// target, check whether it is stale and run it; a finished target unblocks its
// dependents. All scheduling state is guarded by one mutex and condition
// variable, and target actions run without holding it.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/analysis"
	"go.trai.ch/kiln/internal/engine/resolver"
	"go.trai.ch/kiln/internal/engine/uptodate"
	"go.trai.ch/zerr"
)

// Options controls one build.
type Options struct {
	// Workers is the size of the pool; values below one mean one.
	Workers int
	// KeepGoing continues with everything a failure does not block.
	KeepGoing bool
	// DryRun checks targets without running them.
	DryRun bool
	// Verify re-checks the dependencies of every built target.
	Verify bool
	// RandomPriority replaces priorities with random values.
	RandomPriority bool
	// Seed makes RandomPriority reproducible when non-zero.
	Seed uint64
	// IdleReport is how long the build may go without a finished target before
	// the in-flight targets are reported. Zero disables the report.
	IdleReport time.Duration
}

// Scheduler executes plans.
type Scheduler struct {
	stats   ports.StatCache
	store   ports.ImplicitInputStore
	tracker ports.ProcessTracker
	tracer  ports.Tracer
	logger  ports.Logger
}

// NewScheduler creates a new Scheduler with the given dependencies.
func NewScheduler(
	stats ports.StatCache,
	store ports.ImplicitInputStore,
	tracker ports.ProcessTracker,
	tracer ports.Tracer,
	logger ports.Logger,
) *Scheduler {
	return &Scheduler{
		stats:   stats,
		store:   store,
		tracker: tracker,
		tracer:  tracer,
		logger:  logger,
	}
}

type runState struct {
	s        *Scheduler
	ctx      context.Context
	rc       domain.ResolveContext
	root     string
	checker  *uptodate.Checker
	reporter ports.Reporter
	opts     Options
	rand     *rand.Rand

	mu   sync.Mutex
	cond *sync.Cond

	queue        readyQueue
	seq          uint64
	pending      map[*resolver.Node]int
	remaining    int
	inFlight     map[*resolver.Node]time.Time
	results      map[*resolver.Node]*domain.TargetResult
	stale        map[*resolver.Node]bool
	aborting     bool
	interrupted  bool
	internal     bool
	lastProgress time.Time
	util         *analysis.Tracker
	failures     *multierror.Error
	warnings     []error
}

// Run executes plan and returns the report of the build. The error is nil
// unless a target failed or ctx was cancelled; it is classified as
// domain.ErrBuildFailed, or domain.ErrInternal when a target panicked. The report is returned in either case.
func (s *Scheduler) Run(
	ctx context.Context,
	rc domain.ResolveContext,
	plan *resolver.Plan,
	reporter ports.Reporter,
	opts Options,
) (*domain.BuildReport, error) {
	workers := max(opts.Workers, 1)
	report := &domain.BuildReport{
		Workers: workers,
		Started: time.Now(),
		DryRun:  opts.DryRun,
	}

	state := s.newRunState(ctx, rc, plan, reporter, opts, report.Started, workers)
	state.announce(plan)

	var pool sync.WaitGroup
	for range workers {
		pool.Go(state.worker)
	}

	done := make(chan struct{})
	var watchers sync.WaitGroup
	watchers.Go(func() { state.watchCancel(done) })
	if opts.IdleReport > 0 {
		watchers.Go(func() { state.watchIdle(done) })
	}

	pool.Wait()
	close(done)
	watchers.Wait()

	return report, state.finish(plan, report)
}

func (s *Scheduler) newRunState(
	ctx context.Context,
	rc domain.ResolveContext,
	plan *resolver.Plan,
	reporter ports.Reporter,
	opts Options,
	start time.Time,
	workers int,
) *runState {
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	state := &runState{
		s:            s,
		ctx:          ctx,
		rc:           rc,
		root:         rc.Root(),
		checker:      uptodate.New(rc, s.stats, s.store),
		reporter:     reporter,
		opts:         opts,
		rand:         rand.New(rand.NewPCG(seed, seed>>1)),
		pending:      plan.Pending(),
		inFlight:     make(map[*resolver.Node]time.Time),
		results:      make(map[*resolver.Node]*domain.TargetResult, plan.Len()),
		stale:        make(map[*resolver.Node]bool),
		lastProgress: start,
		util:         analysis.NewTracker(start, workers),
	}
	state.cond = sync.NewCond(&state.mu)
	state.remaining = len(state.pending)
	for _, n := range plan.Ready() {
		state.push(n)
	}
	return state
}

// announce reports the plan and settles the targets ignore-deps satisfied.
func (st *runState) announce(plan *resolver.Plan) {
	names := plan.Names()
	st.reporter.OnPlan(names)
	st.s.tracer.EmitPlan(st.ctx, names)

	for _, n := range plan.Order {
		b := n.Target.Base()
		st.emit(domain.Event{Kind: domain.EventSelected, Target: n.Name(), Path: b.Path(), Location: b.Location()})
	}
	for _, n := range plan.Order {
		if !n.Satisfied {
			continue
		}
		b := n.Target.Base()
		const reason = "output exists and dependencies are ignored"
		st.results[n] = &domain.TargetResult{
			Name:     n.Name(),
			Path:     b.Path(),
			Location: b.Location(),
			Outcome:  domain.OutcomeSatisfied,
			Reason:   reason,
			Priority: n.Priority,
		}
		st.emit(domain.Event{Kind: domain.EventSkipped, Target: n.Name(), Path: b.Path(), Location: b.Location(), Reason: reason})
	}
}

// push queues a ready node. Called with the lock held.
func (st *runState) push(n *resolver.Node) {
	p := n.Priority
	if st.opts.RandomPriority {
		p = st.rand.Float64()
	}
	st.seq++
	heap.Push(&st.queue, entry{node: n, priority: p, seq: st.seq})
}

func (st *runState) worker() {
	for {
		n, forced, ok := st.next()
		if !ok {
			return
		}
		st.complete(n, st.process(n, forced))
	}
}

// next blocks until a target is ready, every target is settled or the build
// aborts. forced reports that a dry run already decided the target is stale
// because a dependency is.
func (st *runState) next() (n *resolver.Node, forced, ok bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for st.queue.Len() == 0 && !st.aborting && st.remaining > 0 {
		st.cond.Wait()
	}
	if st.aborting || st.queue.Len() == 0 {
		return nil, false, false
	}

	n = heap.Pop(&st.queue).(entry).node
	now := time.Now()
	st.inFlight[n] = now
	st.util.Busy(now)
	if st.opts.DryRun {
		forced = slices.ContainsFunc(n.Deps, func(d *resolver.Node) bool { return st.stale[d] })
	}
	return n, forced, true
}

// process checks and, if stale, builds one target. A panic in the target's
// action fails the target with an internal error.
func (st *runState) process(n *resolver.Node, forced bool) (out domain.TargetResult) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = st.panicked(n, r, started)
		}
	}()

	t := n.Target
	b := t.Base()
	ctx, span := st.s.tracer.Start(st.ctx, n.Name(),
		ports.WithAttribute("kiln.target.path", domain.RelativeTo(st.root, b.Path())),
		ports.WithAttribute("kiln.target.priority", n.Priority),
	)
	defer span.End()

	res := domain.TargetResult{
		Name:     n.Name(),
		Path:     b.Path(),
		Location: b.Location(),
		Priority: n.Priority,
		Start:    time.Now(),
	}
	ev := domain.Event{Target: n.Name(), Path: b.Path(), Location: b.Location()}
	settle := func(o domain.Outcome) domain.TargetResult {
		res.Outcome = o
		res.End = time.Now()
		span.SetAttribute("kiln.outcome", o.String())
		if res.Err != nil {
			span.RecordError(res.Err)
		}
		return res
	}

	check := uptodate.Result{Build: true, Reason: "a dependency would be rebuilt"}
	if !forced {
		c, err := st.checker.Check(ctx, t, n.Sources)
		if err != nil {
			res.Err = attribute(t, err)
			ev.Kind, ev.Err = domain.EventFailed, res.Err
			st.emit(ev)
			return settle(domain.OutcomeFailed)
		}
		check = c
	}
	res.Reason = check.Reason
	ev.Reason = check.Reason

	switch {
	case !check.Build:
		ev.Kind = domain.EventSkipped
		st.emit(ev)
		return settle(domain.OutcomeUpToDate)
	case st.opts.DryRun:
		ev.Kind = domain.EventWouldBuild
		st.emit(ev)
		return settle(domain.OutcomeWouldBuild)
	}

	ev.Kind = domain.EventBuilding
	st.emit(ev)

	// Without a record an interrupted build is never mistaken for a finished one.
	if err := st.s.store.Delete(st.root, t); err != nil {
		res.Err = attribute(t, err)
		ev.Kind, ev.Err = domain.EventFailed, res.Err
		st.emit(ev)
		return settle(domain.OutcomeFailed)
	}

	exec := st.execute(ctx, n, span, check.Inputs)
	res.Attempts = exec.attempts
	res.NothingToDo = exec.nothingToDo
	if exec.err != nil {
		res.Err = attribute(t, exec.err)
		ev.Kind, ev.Err, ev.Attempt, ev.Output = domain.EventFailed, res.Err, exec.attempts, exec.output
		ev.Duration = time.Since(res.Start)
		st.emit(ev)
		return settle(domain.OutcomeFailed)
	}

	if st.opts.Verify {
		st.verify(n, res.Start)
	}

	ev.Kind, ev.Attempt, ev.Duration = domain.EventSucceeded, exec.attempts, time.Since(res.Start)
	st.emit(ev)
	if exec.nothingToDo {
		st.s.logger.Debug(n.Name() + ": nothing to do")
	}
	return settle(domain.OutcomeBuilt)
}

// panicked turns a recovered panic into a failed result.
func (st *runState) panicked(n *resolver.Node, r any, started time.Time) domain.TargetResult {
	b := n.Target.Base()
	st.s.logger.Debug(n.Name() + " panicked:\n" + string(debug.Stack()))
	err := zerr.Wrap(fmt.Errorf("%v", r), domain.ErrTargetPanicked.Error())
	err = domain.Classify(attribute(n.Target, err), domain.ErrInternal)
	now := time.Now()
	st.emit(domain.Event{
		Kind:     domain.EventFailed,
		Target:   n.Name(),
		Path:     b.Path(),
		Location: b.Location(),
		Err:      err,
		Duration: now.Sub(started),
	})
	return domain.TargetResult{
		Name:     n.Name(),
		Path:     b.Path(),
		Location: b.Location(),
		Priority: n.Priority,
		Outcome:  domain.OutcomeFailed,
		Err:      err,
		Start:    started,
		End:      now,
	}
}

// verify records dependencies that changed while t was being built.
func (st *runState) verify(n *resolver.Node, started time.Time) {
	err := st.checker.Verify(n.Target, n.Sources, started)
	if err == nil {
		return
	}
	warnings := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		warnings = joined.Unwrap()
	}

	st.mu.Lock()
	st.warnings = append(st.warnings, warnings...)
	st.mu.Unlock()

	b := n.Target.Base()
	for _, w := range warnings {
		st.emit(domain.Event{Kind: domain.EventVerifyWarning, Target: n.Name(), Path: b.Path(), Location: b.Location(), Err: w})
	}
}

// complete settles n and unblocks or blocks its dependents.
func (st *runState) complete(n *resolver.Node, res domain.TargetResult) {
	var blocked []domain.Event
	abort := false

	st.mu.Lock()
	now := time.Now()
	delete(st.inFlight, n)
	st.util.Idle(now)
	st.lastProgress = now
	st.settle(n, &res)

	if res.Outcome == domain.OutcomeFailed {
		st.failures = multierror.Append(st.failures, res.Err)
		st.internal = st.internal || errors.Is(res.Err, domain.ErrInternal)
		blocked = st.block(n, nil)
		if !st.opts.KeepGoing && !st.aborting {
			st.aborting = true
			abort = true
		}
	} else {
		if res.Outcome == domain.OutcomeWouldBuild {
			st.stale[n] = true
		}
		for _, d := range n.Dependents {
			if _, scheduled := st.pending[d]; !scheduled {
				continue
			}
			st.pending[d]--
			if st.pending[d] == 0 && st.results[d] == nil && !st.aborting {
				st.push(d)
			}
		}
	}
	st.cond.Broadcast()
	st.mu.Unlock()

	if abort {
		st.abort("stopping after failure of " + n.Name())
	}
	for _, ev := range blocked {
		st.emit(ev)
	}
}

// settle records the final result of n. Called with the lock held.
func (st *runState) settle(n *resolver.Node, res *domain.TargetResult) {
	st.results[n] = res
	st.remaining--
}

// block settles every scheduled, unsettled dependent of failed, transitively.
// Called with the lock held.
func (st *runState) block(failed *resolver.Node, events []domain.Event) []domain.Event {
	for _, d := range failed.Dependents {
		if _, scheduled := st.pending[d]; !scheduled || st.results[d] != nil {
			continue
		}
		b := d.Target.Base()
		err := zerr.With(zerr.With(zerr.With(domain.ErrBlockedByFailure,
			"target", d.Name()),
			"location", b.Location().String()),
			"dependency", failed.Name())
		st.settle(d, &domain.TargetResult{
			Name:     d.Name(),
			Path:     b.Path(),
			Location: b.Location(),
			Outcome:  domain.OutcomeBlocked,
			Reason:   "dependency " + failed.Name() + " failed",
			Priority: d.Priority,
			Err:      err,
		})
		events = append(events, domain.Event{
			Kind:     domain.EventBlocked,
			Target:   d.Name(),
			Path:     b.Path(),
			Location: b.Location(),
			Reason:   "dependency " + failed.Name() + " failed",
			Err:      err,
		})
		events = st.block(d, events)
	}
	return events
}

func (st *runState) isAborting() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.aborting
}

// abort kills the processes of in-flight targets. Dispatch has already stopped.
func (st *runState) abort(reason string) {
	killed := 0
	if st.s.tracker != nil {
		killed = st.s.tracker.KillAll()
	}
	msg := "aborting build: " + reason
	if killed > 0 {
		msg += " (killed " + strconv.Itoa(killed) + " processes)"
	}
	st.s.logger.Warn(msg)
}

// watchCancel turns cancellation of the build context into an abort.
func (st *runState) watchCancel(done <-chan struct{}) {
	select {
	case <-done:
		return
	case <-st.ctx.Done():
	}

	st.mu.Lock()
	first := !st.aborting
	st.aborting = true
	st.interrupted = true
	st.cond.Broadcast()
	st.mu.Unlock()

	if first {
		st.abort("interrupted")
	}
}

// watchIdle reports the in-flight targets whenever no target finished for a
// whole window.
func (st *runState) watchIdle(done <-chan struct{}) {
	window := st.opts.IdleReport
	timer := time.NewTimer(window)
	defer timer.Stop()

	var lastReport time.Time
	for {
		select {
		case <-done:
			return
		case <-timer.C:
		}

		st.mu.Lock()
		now := time.Now()
		since := now.Sub(st.lastProgress)
		if lastReport.After(st.lastProgress) {
			since = now.Sub(lastReport)
		}
		var inFlight []domain.InFlight
		if since >= window {
			for n, started := range st.inFlight {
				inFlight = append(inFlight, domain.InFlight{Name: n.Name(), Running: now.Sub(started)})
			}
		}
		st.mu.Unlock()

		next := window - since
		if since >= window {
			next = window
			lastReport = now
			if len(inFlight) > 0 {
				slices.SortFunc(inFlight, func(a, b domain.InFlight) int { return strings.Compare(a.Name, b.Name) })
				st.emit(domain.Event{Kind: domain.EventIdle, InFlight: inFlight, Duration: since})
			}
		}
		timer.Reset(next)
	}
}

// finish fills in the report and returns the build error.
func (st *runState) finish(plan *resolver.Plan, report *domain.BuildReport) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, n := range plan.Order {
		if r := st.results[n]; r != nil {
			report.Results = append(report.Results, *r)
			continue
		}
		b := n.Target.Base()
		report.Results = append(report.Results, domain.TargetResult{
			Name:     n.Name(),
			Path:     b.Path(),
			Location: b.Location(),
			Outcome:  domain.OutcomeNotStarted,
			Priority: n.Priority,
		})
	}

	report.Finished = time.Now()
	report.Aborted = st.aborting
	report.Errors = st.failures.WrappedErrors()
	report.Warnings = st.warnings
	report.CriticalPath = analysis.CriticalPath(plan, analysis.RunDurations(report.Results))
	report.Utilization = st.util.Histogram(report.Finished)

	var err error
	if st.failures != nil {
		st.failures.ErrorFormat = FormatFailures
		err = st.failures.ErrorOrNil()
	}
	// The context may win the race against a failure that it caused.
	if st.interrupted || (st.aborting && st.ctx.Err() != nil) {
		err = errors.Join(err, zerr.Wrap(st.ctx.Err(), domain.ErrBuildAborted.Error()))
	}
	if st.internal {
		return domain.Classify(err, domain.ErrInternal)
	}
	return domain.Classify(err, domain.ErrBuildFailed)
}

func (st *runState) emit(ev domain.Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	st.reporter.OnEvent(ev)
}

// attribute ties err to the target that produced it.
func attribute(t domain.Target, err error) error {
	b := t.Base()
	return zerr.With(zerr.With(zerr.Wrap(err, domain.ErrTargetExecutionFailed.Error()),
		"target", b.Name()),
		"location", b.Location().String())
}

// FormatFailures renders accumulated target failures one per line.
func FormatFailures(errs []error) string {
	noun := "targets"
	if len(errs) == 1 {
		noun = "target"
	}
	lines := make([]string, len(errs))
	for i, err := range errs {
		lines[i] = "  * " + domain.Describe(err)
	}
	return strconv.Itoa(len(errs)) + " " + noun + " failed:\n" + strings.Join(lines, "\n")
}
