// Package uptodate decides whether a target has to be rebuilt.
package uptodate

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// Result is the outcome of a check.
type Result struct {
	// Build reports that the target must run.
	Build bool
	// Reason explains the decision.
	Reason string
	// Inputs are the current implicit inputs, recorded after a successful build.
	Inputs []string
}

// Checker compares outputs against dependencies and recorded implicit inputs.
type Checker struct {
	rc    domain.ResolveContext
	stats ports.StatCache
	store ports.ImplicitInputStore
}

// New creates a Checker.
func New(rc domain.ResolveContext, stats ports.StatCache, store ports.ImplicitInputStore) *Checker {
	return &Checker{rc: rc, stats: stats, store: store}
}

// Check decides whether t, whose underlying dependencies are sources, must be
// built. The checks run in order: missing output, newer dependency, changed
// implicit inputs. The first that triggers decides.
func (c *Checker) Check(ctx context.Context, t domain.Target, sources []domain.Dependency) (Result, error) {
	b := t.Base()
	root := c.rc.Root()

	inputs, err := t.ImplicitInputs(ctx, c.rc)
	if err != nil {
		return Result{}, c.fail(t, err)
	}

	out, err := c.rc.Stat(b.Path())
	if err != nil {
		return Result{}, c.fail(t, err)
	}
	if !out.Exists {
		return Result{Build: true, Reason: "output does not exist", Inputs: inputs}, nil
	}

	newest, mtime, ok, err := c.newest(sources)
	if err != nil {
		return Result{}, c.fail(t, err)
	}
	if ok && mtime.After(out.ModTime) {
		return Result{
			Build: true,
			Reason: "must be rebuilt because input file " + domain.RelativeTo(root, newest) +
				" is newer than " + domain.RelativeTo(root, b.Path()),
			Inputs: inputs,
		}, nil
	}

	prev, found, err := c.store.Get(root, t)
	if err != nil {
		return Result{}, c.fail(t, err)
	}
	if !found {
		return Result{Build: true, Reason: "no record of a previous build", Inputs: inputs}, nil
	}
	if reason, changed := diff(prev, inputs); changed {
		return Result{Build: true, Reason: reason, Inputs: inputs}, nil
	}

	return Result{Reason: "already up-to-date", Inputs: inputs}, nil
}

// newest returns the newest dependency. Raw paths coming from a set that
// already knows its newest file are not stat'ed one by one.
func (c *Checker) newest(sources []domain.Dependency) (string, time.Time, bool, error) {
	var (
		newest string
		mtime  time.Time
		found  bool
	)
	consider := func(p string, m time.Time) {
		if !found || m.After(mtime) {
			newest, mtime, found = p, m, true
		}
	}

	reported := make(map[domain.PathSet]bool)
	for _, d := range sources {
		if d.Target == nil && d.Source != nil {
			if nr, ok := d.Source.(domain.NewestReporter); ok {
				if reported[d.Source] {
					continue
				}
				reported[d.Source] = true
				p, m, ok, err := nr.Newest(c.rc)
				if err != nil {
					return "", time.Time{}, false, err
				}
				if ok {
					consider(p, m)
				}
				continue
			}
		}

		st, err := c.rc.Stat(d.Path)
		if err != nil {
			return "", time.Time{}, false, err
		}
		if st.Exists {
			consider(d.Path, st.ModTime)
		}
	}
	return newest, mtime, found, nil
}

// Verify re-stats the raw dependencies of t after it was built. A dependency
// that vanished, or changed after the build started, points at a missing or
// wrong dependency declaration. The result is a warning, never a failure.
func (c *Checker) Verify(t domain.Target, sources []domain.Dependency, started time.Time) error {
	var errs error
	root := c.rc.Root()
	for _, d := range sources {
		if d.Target != nil {
			continue
		}
		c.stats.Invalidate(d.Path)
		st, err := c.stats.Stat(d.Path)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		switch {
		case !st.Exists:
			errs = errors.Join(errs, zerr.With(zerr.With(domain.ErrDependencyDeleted,
				"target", t.Base().Name()), "path", domain.RelativeTo(root, d.Path)))
		case st.ModTime.After(started):
			errs = errors.Join(errs, zerr.With(zerr.With(domain.ErrDependencyModified,
				"target", t.Base().Name()), "path", domain.RelativeTo(root, d.Path)))
		}
	}
	return errs
}

func (c *Checker) fail(t domain.Target, err error) error {
	return zerr.With(zerr.Wrap(err, domain.ErrUpToDateCheckFailed.Error()), "target", t.Base().Name())
}

// diff describes the first difference between the recorded and current inputs.
func diff(prev, cur []string) (string, bool) {
	if slices.Equal(prev, cur) {
		return "", false
	}
	var added, removed []string
	for _, s := range cur {
		if !slices.Contains(prev, s) {
			added = append(added, s)
		}
	}
	for _, s := range prev {
		if !slices.Contains(cur, s) {
			removed = append(removed, s)
		}
	}

	var parts []string
	if len(added) > 0 {
		parts = append(parts, "now "+strconv.Quote(added[0]))
	}
	if len(removed) > 0 {
		parts = append(parts, "was "+strconv.Quote(removed[0]))
	}
	if len(parts) == 0 {
		return "implicit inputs changed order", true
	}
	return "implicit input changed: " + strings.Join(parts, ", "), true
}
