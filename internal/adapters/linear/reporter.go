// Package linear provides a line-oriented build reporter for terminals and CI logs.
package linear

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/ui/output"
	"go.trai.ch/kiln/internal/ui/style"
)

const barWidth = 24

// Reporter implements ports.Reporter by printing one line per event, prefixed
// with the target name.
type Reporter struct {
	out     *termenv.Output
	profile func() termenv.Profile
	verbose bool

	mu    sync.Mutex
	total int
	done  int
}

var _ ports.Reporter = (*Reporter)(nil)

// Option configures a Reporter.
type Option func(*Reporter)

// WithVerbose also prints targets that were up to date.
func WithVerbose(v bool) Option {
	return func(r *Reporter) { r.verbose = v }
}

// WithProfile selects the colour profile of the output.
func WithProfile(profileFn func() termenv.Profile) Option {
	return func(r *Reporter) { r.profile = profileFn }
}

// NewReporter creates a Reporter writing to w, or stderr when w is nil.
func NewReporter(w io.Writer, opts ...Option) *Reporter {
	if w == nil {
		w = os.Stderr
	}
	r := &Reporter{profile: output.ColorProfile}
	for _, opt := range opts {
		opt(r)
	}
	r.out = output.NewWithProfile(w, r.profile)
	return r
}

// OnPlan prints how many targets were scheduled.
func (r *Reporter) OnPlan(targets []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total = len(targets)
	r.printf("%s %s scheduled\n", r.paint(style.Arrow, style.Ember), plural(len(targets), "target"))
}

// OnEvent prints ev.
func (r *Reporter) OnEvent(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case domain.EventBuilding:
		r.line(ev.Target, r.paint(style.Dot, style.Blue)+" building"+reason(ev.Reason))
	case domain.EventSkipped:
		r.done++
		if r.verbose {
			r.line(ev.Target, r.paint(style.Tilde, style.Ash)+" up to date"+reason(ev.Reason))
		}
	case domain.EventWouldBuild:
		r.done++
		r.line(ev.Target, r.paint(style.Circle, style.Yellow)+" would build"+reason(ev.Reason))
	case domain.EventSucceeded:
		r.done++
		msg := r.paint(style.Check, style.Green) + " built in " + formatDuration(ev.Duration)
		if ev.Attempt > 1 {
			msg += fmt.Sprintf(" after %d attempts", ev.Attempt)
		}
		r.line(ev.Target, msg)
	case domain.EventRetrying:
		r.line(ev.Target, fmt.Sprintf("%s attempt %d failed, retrying in %s: %v",
			r.paint(style.Warning, style.Yellow), ev.Attempt, formatDuration(ev.Delay), ev.Err))
	case domain.EventFailed:
		r.done++
		r.line(ev.Target, fmt.Sprintf("%s failed after %s (%s)",
			r.paint(style.Cross, style.Red), formatDuration(ev.Duration), ev.Location))
		r.output(ev.Output)
	case domain.EventBlocked:
		r.done++
		r.line(ev.Target, r.paint(style.Blocked, style.Ash)+" not built, a dependency failed")
	case domain.EventVerifyWarning:
		r.line(ev.Target, fmt.Sprintf("%s %v", r.paint(style.Warning, style.Yellow), ev.Err))
	case domain.EventIdle:
		r.idle(ev)
	default:
	}
}

// OnSummary prints the totals, the failures and warnings, the critical path
// and the utilisation histogram.
func (r *Reporter) OnSummary(report *domain.BuildReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.printf("\n")
	r.summaryLine(report)

	if len(report.Errors) > 0 {
		r.printf("\nErrors:\n")
		for _, err := range report.Errors {
			r.printf("  %s %s\n", r.paint(style.Cross, style.Red), domain.Describe(err))
		}
	}
	if len(report.Warnings) > 0 {
		r.printf("\nWarnings:\n")
		for _, err := range report.Warnings {
			r.printf("  %s %s\n", r.paint(style.Warning, style.Yellow), domain.Describe(err))
		}
	}

	if len(report.CriticalPath) > 0 {
		total := report.CriticalPath[len(report.CriticalPath)-1].Cumulative
		r.printf("\nCritical path (%s):\n", formatDuration(total))
		for _, step := range report.CriticalPath {
			r.printf("  %9s %9s  %s\n", formatDuration(step.Own), formatDuration(step.Cumulative), step.Name)
		}
	}

	if len(report.Utilization) > 0 && !report.DryRun {
		r.printf("\nUtilization (%s):\n", plural(report.Workers, "worker"))
		for _, b := range report.Utilization {
			r.printf("  %3d %s %3.0f%%\n", b.Workers, r.paint(style.Bar(b.Fraction, barWidth), style.Ember), b.Fraction*100)
		}
	}
}

func (r *Reporter) summaryLine(report *domain.BuildReport) {
	parts := []string{
		humanize.Comma(int64(report.Count(domain.OutcomeBuilt))) + " built",
		humanize.Comma(int64(report.Count(domain.OutcomeUpToDate)+report.Count(domain.OutcomeSatisfied))) + " up to date",
		humanize.Comma(int64(len(report.Errors))) + " failed",
	}
	if n := report.Count(domain.OutcomeBlocked) + report.Count(domain.OutcomeNotStarted); n > 0 {
		parts = append(parts, humanize.Comma(int64(n))+" not built")
	}
	if n := report.Count(domain.OutcomeWouldBuild); n > 0 {
		parts = append(parts, humanize.Comma(int64(n))+" would build")
	}
	if len(report.Warnings) > 0 {
		parts = append(parts, plural(len(report.Warnings), "warning"))
	}

	icon := r.paint(style.Check, style.Green)
	if !report.Succeeded() {
		icon = r.paint(style.Cross, style.Red)
	}
	status := ""
	if report.Aborted {
		status = " (aborted)"
	}
	r.printf("%s %s in %s%s\n", icon, strings.Join(parts, ", "), formatDuration(report.Elapsed()), status)
}

// Close does nothing; every line is written as it is produced.
func (r *Reporter) Close() error { return nil }

func (r *Reporter) idle(ev domain.Event) {
	names := make([]string, len(ev.InFlight))
	for i, f := range ev.InFlight {
		names[i] = fmt.Sprintf("%s (%s)", f.Name, formatDuration(f.Running))
	}
	r.printf("%s no target finished in %s, waiting on %s\n",
		r.paint(style.Warning, style.Yellow), formatDuration(ev.Duration), strings.Join(names, ", "))
}

// line must be called with mu held.
func (r *Reporter) line(target, msg string) {
	prefix := fmt.Sprintf("[%s]", target)
	if r.total > 0 {
		prefix = fmt.Sprintf("[%d/%d %s]", r.done, r.total, target)
	}
	r.printf("%s %s\n", r.out.String(prefix).Faint().String(), msg)
}

// output prints captured target output indented below its failure line.
// It must be called with mu held.
func (r *Reporter) output(text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	bar := r.out.String("│").Faint().String()
	for l := range strings.SplitSeq(text, "\n") {
		r.printf("  %s %s\n", bar, strings.TrimSuffix(l, "\r"))
	}
}

func (r *Reporter) paint(s string, c lipgloss.Color) string {
	return r.out.String(s).Foreground(r.out.Color(string(c))).String()
}

func (r *Reporter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

func reason(s string) string {
	if s == "" {
		return ""
	}
	return " (" + s + ")"
}

func plural(n int, noun string) string {
	if n != 1 {
		noun += "s"
	}
	return humanize.Comma(int64(n)) + " " + noun
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(10 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}
