package linear

import (
	"fmt"
	"strings"
	"sync"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

// LogReporter implements ports.Reporter by sending one message per event to a
// ports.Logger. It backs the JSON log mode, where every line must be a record.
type LogReporter struct {
	log ports.Logger
	mu  sync.Mutex
}

var _ ports.Reporter = (*LogReporter)(nil)

// NewLogReporter creates a LogReporter writing to log.
func NewLogReporter(log ports.Logger) *LogReporter {
	return &LogReporter{log: log}
}

// OnPlan logs how many targets were scheduled.
func (r *LogReporter) OnPlan(targets []string) {
	r.log.Info(plural(len(targets), "target") + " scheduled")
}

// OnEvent logs ev at a level matching its severity.
func (r *LogReporter) OnEvent(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case domain.EventBuilding:
		r.log.Info("building " + ev.Target + reason(ev.Reason))
	case domain.EventSkipped:
		r.log.Debug(ev.Target + " is up to date" + reason(ev.Reason))
	case domain.EventWouldBuild:
		r.log.Info("would build " + ev.Target + reason(ev.Reason))
	case domain.EventSucceeded:
		r.log.Info("built " + ev.Target + " in " + formatDuration(ev.Duration))
	case domain.EventRetrying:
		r.log.Warn(fmt.Sprintf("%s: attempt %d failed, retrying in %s: %v", ev.Target, ev.Attempt, formatDuration(ev.Delay), ev.Err))
	case domain.EventFailed:
		r.log.Error(ev.Err)
	case domain.EventBlocked:
		r.log.Warn(ev.Target + " not built, a dependency failed")
	case domain.EventVerifyWarning:
		r.log.Warn(domain.Describe(ev.Err))
	case domain.EventIdle:
		names := make([]string, len(ev.InFlight))
		for i, f := range ev.InFlight {
			names[i] = f.Name
		}
		r.log.Warn("no target finished in " + formatDuration(ev.Duration) + ", waiting on " + strings.Join(names, ", "))
	default:
	}
}

// OnSummary logs the totals and the critical path.
func (r *LogReporter) OnSummary(report *domain.BuildReport) {
	msg := fmt.Sprintf("%d built, %d up to date, %d failed in %s",
		report.Count(domain.OutcomeBuilt),
		report.Count(domain.OutcomeUpToDate)+report.Count(domain.OutcomeSatisfied),
		len(report.Errors),
		formatDuration(report.Elapsed()))
	r.log.Info(msg)

	if len(report.CriticalPath) == 0 {
		return
	}
	steps := make([]string, len(report.CriticalPath))
	for i, s := range report.CriticalPath {
		steps[i] = s.Name + " (" + formatDuration(s.Own) + ")"
	}
	total := report.CriticalPath[len(report.CriticalPath)-1].Cumulative
	r.log.Info("critical path " + formatDuration(total) + ": " + strings.Join(steps, " -> "))
}

// Close does nothing.
func (r *LogReporter) Close() error { return nil }
