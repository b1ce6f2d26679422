// Package app implements the application layer of kiln: it loads the build
// file, selects and resolves targets, and drives the scheduler.
package app

import (
	"context"
	"io"
	"os"
	"runtime"
	"strconv"

	"go.trai.ch/kiln/internal/adapters/config"             //nolint:depguard // Wired in app layer
	"go.trai.ch/kiln/internal/adapters/detector"           //nolint:depguard // Wired in app layer
	"go.trai.ch/kiln/internal/adapters/linear"             //nolint:depguard // Wired in app layer
	"go.trai.ch/kiln/internal/adapters/metrics"            //nolint:depguard // Wired in app layer
	"go.trai.ch/kiln/internal/adapters/telemetry/progrock" //nolint:depguard // Wired in app layer
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/resolver"
	"go.trai.ch/kiln/internal/engine/scheduler"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	loader    ports.ConfigLoader
	stats     ports.StatCache
	store     ports.ImplicitInputStore
	walker    ports.Walker
	scheduler *scheduler.Scheduler
	logger    ports.Logger
	settings  *config.Settings
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	stats ports.StatCache,
	store ports.ImplicitInputStore,
	walker ports.Walker,
	sched *scheduler.Scheduler,
	log ports.Logger,
	settings *config.Settings,
) *App {
	return &App{
		loader:    loader,
		stats:     stats,
		store:     store,
		walker:    walker,
		scheduler: sched,
		logger:    log,
		settings:  settings,
	}
}

// Options configures Build, Clean and Rebuild.
type Options struct {
	// Targets selects what to build: names, output paths or "tag:NAME".
	Targets []string
	// File is an explicit build file. When empty the build file is
	// discovered from Dir.
	File string
	// Dir is where discovery starts; empty means the working directory.
	Dir string

	Workers        int
	KeepGoing      bool
	DryRun         bool
	IgnoreDeps     bool
	Verify         bool
	RandomPriority bool
	Seed           uint64

	// Output receives the human-readable report; nil means stderr.
	Output io.Writer
	// OutputMode chooses the colour profile of Output.
	OutputMode detector.OutputMode
	// Verbose also reports up-to-date targets.
	Verbose bool
	// JSON routes the report through the logger instead of Output.
	JSON bool
}

// session is one loaded and resolved build.
type session struct {
	project *ports.Project
	rc      *resolver.Context
	plan    *resolver.Plan
	workers int
}

// Build loads the build file and brings the selected targets up to date.
// The report is returned whenever the scheduler ran.
func (a *App) Build(ctx context.Context, opts Options) (*domain.BuildReport, error) {
	s, err := a.prepare(ctx, opts)
	if err != nil {
		return nil, err
	}
	return a.build(ctx, s, opts)
}

// Clean removes the outputs, scratch directories and implicit-input records
// of the selected targets and everything they depend on.
func (a *App) Clean(ctx context.Context, opts Options) error {
	s, err := a.prepare(ctx, opts)
	if err != nil {
		return err
	}
	return a.clean(ctx, s, opts)
}

// Rebuild cleans the selection, then resolves it again and builds it.
func (a *App) Rebuild(ctx context.Context, opts Options) (*domain.BuildReport, error) {
	s, err := a.prepare(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := a.clean(ctx, s, opts); err != nil {
		return nil, err
	}

	if s, err = a.prepare(ctx, opts); err != nil {
		return nil, err
	}
	return a.build(ctx, s, opts)
}

// prepare starts every invocation from a fresh view of the file system, so
// stat results never outlive the build that read them.
func (a *App) prepare(ctx context.Context, opts Options) (*session, error) {
	a.stats.Reset()

	project, err := a.load(opts)
	if err != nil {
		return nil, err
	}
	reg := project.Registry

	selected, err := Select(reg, opts.Targets)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		a.logger.Warn("no targets selected")
	}

	rc := resolver.NewContext(reg, a.stats, a.walker)
	plan, err := resolver.New(rc, a.logger).Resolve(ctx, selected, resolver.Options{IgnoreDeps: opts.IgnoreDeps})
	if err != nil {
		return nil, err
	}

	workers := a.settings.Workers(opts.Workers, runtime.GOMAXPROCS(0))
	a.logger.Debug("resolved " + strconv.Itoa(plan.Len()) + " targets from " + project.File +
		" with " + strconv.Itoa(workers) + " workers")

	return &session{project: project, rc: rc, plan: plan, workers: workers}, nil
}

func (a *App) load(opts Options) (*ports.Project, error) {
	if opts.File != "" {
		return a.loader.LoadFile(opts.File)
	}
	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, zerr.Wrap(err, "failed to get working directory")
		}
		dir = wd
	}
	return a.loader.Load(dir)
}

func (a *App) build(ctx context.Context, s *session, opts Options) (*domain.BuildReport, error) {
	reporter := a.reporters(s.project.Registry.Root(), opts)

	report, err := a.scheduler.Run(ctx, s.rc, s.plan, reporter, scheduler.Options{
		Workers:        s.workers,
		KeepGoing:      opts.KeepGoing,
		DryRun:         opts.DryRun,
		Verify:         opts.Verify,
		RandomPriority: opts.RandomPriority,
		Seed:           opts.Seed,
		IdleReport:     a.settings.IdleReport,
	})
	if report != nil {
		reporter.OnSummary(report)
	}
	if cerr := reporter.Close(); cerr != nil {
		a.logger.Warn("closing reporters: " + cerr.Error())
	}
	return report, err
}

func (a *App) reporters(root string, opts Options) multiReporter {
	var rs multiReporter
	if opts.JSON {
		rs = append(rs, linear.NewLogReporter(a.logger))
	} else {
		rs = append(rs, linear.NewReporter(opts.Output,
			linear.WithProfile(detector.Profile(opts.OutputMode)),
			linear.WithVerbose(opts.Verbose),
		))
	}
	rs = append(rs, metrics.NewReporter(a.settings.Pushgateway))

	if !opts.DryRun {
		tape, err := progrock.New(root)
		if err != nil {
			a.logger.Warn("progress tape disabled: " + err.Error())
		} else {
			rs = append(rs, tape)
		}
	}
	return rs
}

func (a *App) clean(ctx context.Context, s *session, opts Options) error {
	root := s.project.Registry.Root()
	if opts.DryRun {
		for _, n := range s.plan.Order {
			a.logger.Info("would clean " + n.Name())
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, n := range s.plan.Order {
		t := n.Target
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rc := &domain.RunContext{Resolve: s.rc, ScratchDir: domain.ScratchPath(root, t), Output: io.Discard}
			if err := t.Clean(ctx, rc); err != nil {
				return a.cleanFailed(t, err)
			}
			if err := a.store.Delete(root, t); err != nil {
				return a.cleanFailed(t, err)
			}
			a.stats.Invalidate(t.Base().Path())
			a.logger.Debug("cleaned " + t.Base().Name())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Classify(err, domain.ErrBuildFailed)
	}

	a.logger.Info("cleaned " + strconv.Itoa(s.plan.Len()) + " targets")
	return nil
}

// cleanFailed logs a clean failure; like failed builds it is reported where it
// happens, so the caller only needs the class.
func (a *App) cleanFailed(t domain.Target, err error) error {
	err = zerr.With(zerr.With(err, "target", t.Base().Name()), "location", t.Base().Location().String())
	a.logger.Error(err)
	return err
}
