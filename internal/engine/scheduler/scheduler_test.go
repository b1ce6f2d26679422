package scheduler_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/cas"
	"go.trai.ch/kiln/internal/adapters/fs"
	"go.trai.ch/kiln/internal/adapters/statcache"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/domain/domaintest"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.trai.ch/kiln/internal/engine/pathset"
	"go.trai.ch/kiln/internal/engine/resolver"
	"go.trai.ch/kiln/internal/engine/scheduler"
	"go.uber.org/mock/gomock"
)

// recorder is a Reporter keeping every event.
type recorder struct {
	mu     sync.Mutex
	plan   []string
	events []domain.Event
}

func (r *recorder) OnPlan(targets []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plan = targets
}

func (r *recorder) OnEvent(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) OnSummary(*domain.BuildReport) {}

func (r *recorder) Close() error { return nil }

func (r *recorder) of(kind domain.EventKind) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type schedulerTestEnv struct {
	root    string
	stats   *statcache.Cache
	tracker *mocks.MockProcessTracker
	logger  *mocks.MockLogger
	sched   *scheduler.Scheduler
	rep     *recorder

	ignoreDeps bool
}

// setupSchedulerTest creates a scheduler on a real stat cache and record store
// with permissive tracing and logging mocks.
func setupSchedulerTest(t *testing.T) *schedulerTestEnv {
	t.Helper()
	ctrl := gomock.NewController(t)

	span := mocks.NewMockSpan(ctrl)
	span.EXPECT().End().AnyTimes()
	span.EXPECT().RecordError(gomock.Any()).AnyTimes()
	span.EXPECT().SetAttribute(gomock.Any(), gomock.Any()).AnyTimes()
	span.EXPECT().Write(gomock.Any()).DoAndReturn(func(p []byte) (int, error) { return len(p), nil }).AnyTimes()

	tracer := mocks.NewMockTracer(ctrl)
	tracer.EXPECT().Start(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
			return ctx, span
		},
	).AnyTimes()
	tracer.EXPECT().EmitPlan(gomock.Any(), gomock.Any()).AnyTimes()

	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Debug(gomock.Any()).AnyTimes()
	logger.EXPECT().Info(gomock.Any()).AnyTimes()
	logger.EXPECT().Warn(gomock.Any()).AnyTimes()

	env := &schedulerTestEnv{
		root:    t.TempDir(),
		stats:   statcache.New(),
		tracker: mocks.NewMockProcessTracker(ctrl),
		logger:  logger,
		rep:     &recorder{},
	}
	env.sched = scheduler.NewScheduler(env.stats, cas.NewStore(), env.tracker, tracer, logger)
	return env
}

// build resolves selected in a fresh phase and runs the plan.
func (e *schedulerTestEnv) build(
	t *testing.T,
	ctx context.Context,
	reg *domain.Registry,
	opts scheduler.Options,
	selected ...domain.Target,
) (*domain.BuildReport, error) {
	t.Helper()
	e.stats.Reset()
	e.rep = &recorder{}
	rc := resolver.NewContext(reg, e.stats, fs.NewWalker())
	plan, err := resolver.New(rc, e.logger).Resolve(ctx, selected, resolver.Options{IgnoreDeps: e.ignoreDeps})
	require.NoError(t, err)
	return e.sched.Run(ctx, rc, plan, e.rep, opts)
}

func ref(names ...string) domain.PathSet {
	sets := make([]domain.PathSet, len(names))
	for i, n := range names {
		sets[i] = pathset.NewTargetRef(domain.Location{}, n)
	}
	return pathset.NewUnion(sets...)
}

func src(paths ...string) domain.PathSet {
	return pathset.NewLiteral(domain.Location{}, paths...)
}

// runLog records the order targets ran in.
type runLog struct {
	mu    sync.Mutex
	names []string
}

func (l *runLog) track(targets ...*domaintest.Target) {
	for _, tg := range targets {
		tg.RunFunc = func(_ context.Context, _ *domain.RunContext) (bool, error) {
			l.mu.Lock()
			l.names = append(l.names, tg.Name())
			l.mu.Unlock()
			return true, domaintest.WriteOutput(tg.Path())
		}
	}
}

func (l *runLog) order() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.names)
}

func outcome(t *testing.T, report *domain.BuildReport, name string) domain.Outcome {
	t.Helper()
	r, ok := report.Result(name)
	require.True(t, ok, "no result for %s", name)
	return r.Outcome
}

func TestScheduler_DependenciesRunFirst(t *testing.T) {
	t.Parallel()
	env := setupSchedulerTest(t)

	d := domaintest.New("d", nil)
	b := domaintest.New("b", ref("d"))
	c := domaintest.New("c", ref("d"))
	a := domaintest.New("a", ref("b", "c"))
	reg := domaintest.Freeze(t, env.root, a, b, c, d)
	var log runLog
	log.track(a, b, c, d)

	report, err := env.build(t, context.Background(), reg, scheduler.Options{Workers: 4}, a)
	require.NoError(t, err)

	order := log.order()
	require.Len(t, order, 4)
	assert.Equal(t, "d", order[0])
	assert.Equal(t, "a", order[3])
	assert.Equal(t, 4, report.Count(domain.OutcomeBuilt))
	assert.True(t, report.Succeeded())
	assert.Equal(t, []string{"d", "b", "c", "a"}, env.rep.plan)
	assert.Len(t, env.rep.of(domain.EventSelected), 4)
	assert.Len(t, env.rep.of(domain.EventSucceeded), 4)
}

func TestScheduler_SecondBuildIsUpToDate(t *testing.T) {
	t.Parallel()
	env := setupSchedulerTest(t)

	domaintest.Touch(t, env.root, "src/main.c", time.Now().Add(-time.Hour))
	lib := domaintest.New("lib.a", src("src/main.c"))
	app := domaintest.New("app", ref("lib.a"))
	reg := domaintest.Freeze(t, env.root, lib, app)

	report, err := env.build(t, context.Background(), reg, scheduler.Options{Workers: 2}, app)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(domain.OutcomeBuilt))

	report, err = env.build(t, context.Background(), reg, scheduler.Options{Workers: 2}, app)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Count(domain.OutcomeBuilt))
	assert.Equal(t, 2, report.Count(domain.OutcomeUpToDate))
	assert.Equal(t, 1, lib.Runs())
	assert.Equal(t, 1, app.Runs())

	skipped := env.rep.of(domain.EventSkipped)
	require.Len(t, skipped, 2)
	assert.Equal(t, "already up-to-date", skipped[0].Reason)
}

func TestScheduler_TouchedSourceRebuildsDependents(t *testing.T) {
	t.Parallel()
	env := setupSchedulerTest(t)

	past := time.Now().Add(-time.Hour)
	domaintest.Touch(t, env.root, "src/leaf.c", past)
	domaintest.Touch(t, env.root, "src/other.c", past)
	lib := domaintest.New("lib.a", src("src/leaf.c"))
	app := domaintest.New("app", ref("lib.a"))
	other := domaintest.New("other.o", src("src/other.c"))
	reg := domaintest.Freeze(t, env.root, lib, app, other)
	opts := scheduler.Options{Workers: 2}

	_, err := env.build(t, context.Background(), reg, opts, app, other)
	require.NoError(t, err)

	domaintest.Touch(t, env.root, "src/leaf.c", time.Now().Add(time.Hour))
	report, err := env.build(t, context.Background(), reg, opts, app, other)
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeBuilt, outcome(t, report, "lib.a"))
	assert.Equal(t, domain.OutcomeBuilt, outcome(t, report, "app"))
	assert.Equal(t, domain.OutcomeUpToDate, outcome(t, report, "other.o"))

	r, _ := report.Result("lib.a")
	assert.Contains(t, r.Reason, "src/leaf.c is newer than lib.a")
}

func TestScheduler_ChangedOptionRebuilds(t *testing.T) {
	t.Parallel()
	env := setupSchedulerTest(t)

	obj := domaintest.New("main.o", nil)
	obj.SetOptions(domain.Options{"cflags": "-O1"})
	reg := domaintest.Freeze(t, env.root, obj)
	opts := scheduler.Options{Workers: 1}

	_, err := env.build(t, context.Background(), reg, opts, obj)
	require.NoError(t, err)

	report, err := env.build(t, context.Background(), reg, opts, obj)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUpToDate, outcome(t, report, "main.o"))

	obj.SetOptions(domain.Options{"cflags": "-O2"})
	report, err = env.build(t, context.Background(), reg, opts, obj)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeBuilt, outcome(t, report, "main.o"))
	r, _ := report.Result("main.o")
	assert.Equal(t, `implicit input changed: now "option cflags=-O2", was "option cflags=-O1"`, r.Reason)
	assert.Equal(t, 2, obj.Runs())
}

func TestScheduler_PriorityOrder(t *testing.T) {
	t.Parallel()
	env := setupSchedulerTest(t)

	top := domaintest.New("top", ref("prereq"))
	prereq := domaintest.New("prereq", nil)
	p16 := domaintest.New("p16", nil)
	p15 := domaintest.New("p15", nil)
	half := domaintest.New("half", nil)
	zero := domaintest.New("zero", nil)
	require.NoError(t, top.SetPriority(20))
	require.NoError(t, p16.SetPriority(16))
	require.NoError(t, p15.SetPriority(15))
	require.NoError(t, half.SetPriority(0.5))
	reg := domaintest.Freeze(t, env.root, top, prereq, p16, p15, half, zero)
	var log runLog
	log.track(top, prereq, p16, p15, half, zero)

	report, err := env.build(t, context.Background(), reg, scheduler.Options{Workers: 1},
		zero, half, p15, p16, top)
	require.NoError(t, err)

	assert.Equal(t, []string{"prereq", "top", "p16", "p15", "half", "zero"}, log.order())
	r, _ := report.Result("prereq")
	assert.InDelta(t, 20.0, r.Priority, 0)
}

func TestScheduler_RandomPriorityStillRespectsDependencies(t *testing.T) {
	t.Parallel()
	env := setupSchedulerTest(t)

	base := domaintest.New("base", nil)
	mid := domaintest.New("mid", ref("base"))
	leaf := domaintest.New("leaf", ref("mid"))
	side := domaintest.New("side", nil)
	reg := domaintest.Freeze(t, env.root, base, mid, leaf, side)
	var log runLog
	log.track(base, mid, leaf, side)

	_, err := env.build(t, context.Background(), reg,
		scheduler.Options{Workers: 1, RandomPriority: true, Seed: 42}, leaf, side)
	require.NoError(t, err)

	order := log.order()
	require.Len(t, order, 4)
	assert.Less(t, slices.Index(order, "base"), slices.Index(order, "mid"))
	assert.Less(t, slices.Index(order, "mid"), slices.Index(order, "leaf"))
}

func TestScheduler_IgnoreDeps(t *testing.T) {
	t.Parallel()
	env := setupSchedulerTest(t)
	env.ignoreDeps = true

	domaintest.Touch(t, env.root, "lib.a", time.Now().Add(-time.Hour))
	domaintest.Touch(t, env.root, "src/lib.c", time.Now())
	lib := domaintest.New("lib.a", src("src/lib.c"))
	app := domaintest.New("app", ref("lib.a"))
	reg := domaintest.Freeze(t, env.root, lib, app)

	report, err := env.build(t, context.Background(), reg, scheduler.Options{Workers: 2}, app)
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeSatisfied, outcome(t, report, "lib.a"))
	assert.Equal(t, domain.OutcomeBuilt, outcome(t, report, "app"))
	assert.Equal(t, 0, lib.Runs(), "an existing output is never rebuilt")
}

func TestScheduler_DryRun(t *testing.T) {
	t.Parallel()
	env := setupSchedulerTest(t)

	domaintest.Touch(t, env.root, "src/lib.c", time.Now().Add(-time.Hour))
	lib := domaintest.New("lib.a", src("src/lib.c"))
	app := domaintest.New("app", ref("lib.a"))
	reg := domaintest.Freeze(t, env.root, lib, app)

	_, err := env.build(t, context.Background(), reg, scheduler.Options{Workers: 1}, app)
	require.NoError(t, err)

	domaintest.Touch(t, env.root, "src/lib.c", time.Now().Add(time.Hour))
	report, err := env.build(t, context.Background(), reg, scheduler.Options{Workers: 1, DryRun: true}, app)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, domain.OutcomeWouldBuild, outcome(t, report, "lib.a"))
	assert.Equal(t, domain.OutcomeWouldBuild, outcome(t, report, "app"))
	r, _ := report.Result("app")
	assert.Equal(t, "a dependency would be rebuilt", r.Reason)
	assert.Equal(t, 1, lib.Runs())
	assert.Equal(t, 1, app.Runs())
	assert.Len(t, env.rep.of(domain.EventWouldBuild), 2)
	assert.Empty(t, env.rep.of(domain.EventBuilding))
}

func TestScheduler_MissingOutputFails(t *testing.T) {
	t.Parallel()
	env := setupSchedulerTest(t)
	env.tracker.EXPECT().KillAll().Return(0)

	lazy := domaintest.New("lazy", nil)
	lazy.RunFunc = func(context.Context, *domain.RunContext) (bool, error) { return true, nil }
	reg := domaintest.Freeze(t, env.root, lazy)

	report, err := env.build(t, context.Background(), reg, scheduler.Options{Workers: 1}, lazy)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBuildFailed)
	assert.ErrorContains(t, err, domain.ErrOutputNotCreated.Error())
	assert.Equal(t, domain.OutcomeFailed, outcome(t, report, "lazy"))

	target, _ := domain.Attribution(report.Errors[0])
	assert.Equal(t, "lazy", target)
}

func TestScheduler_AbortStopsDispatch(t *testing.T) {
	t.Parallel()
	env := setupSchedulerTest(t)
	env.tracker.EXPECT().KillAll().Return(0).Times(1)

	bad := domaintest.New("bad", nil)
	bad.RunFunc = func(context.Context, *domain.RunContext) (bool, error) { return false, errors.New("boom") }
	require.NoError(t, bad.SetPriority(10))
	good := domaintest.New("good", nil)
	reg := domaintest.Freeze(t, env.root, bad, good)

	report, err := env.build(t, context.Background(), reg, scheduler.Options{Workers: 1}, bad, good)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBuildFailed)
	assert.Equal(t, "1 target failed:\n  * bad (kiln.yaml): target execution failed: boom", err.Error())

	assert.True(t, report.Aborted)
	assert.False(t, report.Succeeded())
	assert.Equal(t, domain.OutcomeFailed, outcome(t, report, "bad"))
	assert.Equal(t, domain.OutcomeNotStarted, outcome(t, report, "good"))
	assert.Equal(t, 0, good.Runs())
}

func TestScheduler_PanickingTargetFailsAsInternal(t *testing.T) {
	t.Parallel()
	env := setupSchedulerTest(t)
	env.tracker.EXPECT().KillAll().Return(0).Times(1)

	bad := domaintest.New("bad", nil)
	bad.RunFunc = func(context.Context, *domain.RunContext) (bool, error) { panic("boom") }
	require.NoError(t, bad.SetPriority(10))
	child := domaintest.New("child", ref("bad"))
	good := domaintest.New("good", nil)
	reg := domaintest.Freeze(t, env.root, bad, child, good)

	report, err := env.build(t, context.Background(), reg, scheduler.Options{Workers: 1}, child, good)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInternal)
	assert.NotErrorIs(t, err, domain.ErrBuildFailed)
	assert.Equal(t, domain.ErrInternal, domain.ClassOf(err))
	assert.ErrorContains(t, err, "target panicked: boom")

	assert.True(t, report.Aborted)
	assert.Equal(t, domain.OutcomeFailed, outcome(t, report, "bad"))
	assert.Equal(t, domain.OutcomeBlocked, outcome(t, report, "child"))
	assert.Equal(t, domain.OutcomeNotStarted, outcome(t, report, "good"))

	failed := env.rep.of(domain.EventFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "bad", failed[0].Target)
	assert.ErrorIs(t, failed[0].Err, domain.ErrInternal)
}

func TestScheduler_KeepGoing(t *testing.T) {
	t.Parallel()
	env := setupSchedulerTest(t)

	bad := domaintest.New("bad", nil)
	bad.RunFunc = func(context.Context, *domain.RunContext) (bool, error) { return false, errors.New("boom") }
	child := domaintest.New("child", ref("bad"))
	grandchild := domaintest.New("grandchild", ref("child"))
	good := domaintest.New("good", nil)
	reg := domaintest.Freeze(t, env.root, bad, child, grandchild, good)

	report, err := env.build(t, context.Background(), reg,
		scheduler.Options{Workers: 2, KeepGoing: true}, grandchild, good)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBuildFailed)

	assert.False(t, report.Aborted)
	assert.Equal(t, domain.OutcomeFailed, outcome(t, report, "bad"))
	assert.Equal(t, domain.OutcomeBlocked, outcome(t, report, "child"))
	assert.Equal(t, domain.OutcomeBlocked, outcome(t, report, "grandchild"))
	assert.Equal(t, domain.OutcomeBuilt, outcome(t, report, "good"))
	assert.Len(t, report.Errors, 1)

	blocked, _ := report.Result("grandchild")
	assert.ErrorContains(t, blocked.Err, domain.ErrBlockedByFailure.Error())
	assert.Len(t, env.rep.of(domain.EventBlocked), 2)
}

func TestScheduler_VerifyReportsModifiedDependency(t *testing.T) {
	t.Parallel()
	env := setupSchedulerTest(t)

	domaintest.Touch(t, env.root, "src/gen.in", time.Now().Add(-time.Hour))
	sloppy := domaintest.New("gen.out", src("src/gen.in"))
	sloppy.RunFunc = func(context.Context, *domain.RunContext) (bool, error) {
		later := time.Now().Add(time.Minute)
		if err := os.Chtimes(filepath.Join(env.root, "src", "gen.in"), later, later); err != nil {
			return false, err
		}
		return true, domaintest.WriteOutput(sloppy.Path())
	}
	reg := domaintest.Freeze(t, env.root, sloppy)

	report, err := env.build(t, context.Background(), reg, scheduler.Options{Workers: 1, Verify: true}, sloppy)
	require.NoError(t, err, "verification problems are warnings")

	assert.Equal(t, domain.OutcomeBuilt, outcome(t, report, "gen.out"))
	require.Len(t, report.Warnings, 1)
	assert.ErrorContains(t, report.Warnings[0], domain.ErrDependencyModified.Error())
	assert.Len(t, env.rep.of(domain.EventVerifyWarning), 1)
}

func TestScheduler_ReportsCriticalPath(t *testing.T) {
	t.Parallel()
	env := setupSchedulerTest(t)

	first := domaintest.New("first", nil)
	second := domaintest.New("second", ref("first"))
	reg := domaintest.Freeze(t, env.root, first, second)

	report, err := env.build(t, context.Background(), reg, scheduler.Options{Workers: 3}, second)
	require.NoError(t, err)

	require.Len(t, report.CriticalPath, 2)
	assert.Equal(t, "first", report.CriticalPath[0].Name)
	assert.Equal(t, "second", report.CriticalPath[1].Name)
	assert.Len(t, report.Utilization, 3)
	assert.Equal(t, 3, report.Workers)
}

func TestFormatFailures(t *testing.T) {
	t.Parallel()

	one := scheduler.FormatFailures([]error{errors.New("boom")})
	assert.Equal(t, "1 target failed:\n  * boom", one)

	two := scheduler.FormatFailures([]error{errors.New("a"), errors.New("b")})
	assert.Equal(t, "2 targets failed:\n  * a\n  * b", two)
}
