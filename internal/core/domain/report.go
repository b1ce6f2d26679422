package domain

import "time"

// Outcome is the final state of a target in one build invocation.
type Outcome int

const (
	// OutcomeBuilt means the target ran successfully.
	OutcomeBuilt Outcome = iota
	// OutcomeUpToDate means the target was checked and skipped.
	OutcomeUpToDate
	// OutcomeFailed means the target failed terminally.
	OutcomeFailed
	// OutcomeBlocked means the target never ran because a dependency failed.
	OutcomeBlocked
	// OutcomeSatisfied means ignore-deps treated the existing output as good.
	OutcomeSatisfied
	// OutcomeWouldBuild means a dry run found the target stale.
	OutcomeWouldBuild
	// OutcomeNotStarted means the build aborted before the target was dispatched.
	OutcomeNotStarted
)

// String returns the lowercase name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeBuilt:
		return "built"
	case OutcomeUpToDate:
		return "up-to-date"
	case OutcomeFailed:
		return "failed"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeSatisfied:
		return "satisfied"
	case OutcomeWouldBuild:
		return "would-build"
	case OutcomeNotStarted:
		return "not-started"
	default:
		return "unknown"
	}
}

// TargetResult records what happened to one target.
type TargetResult struct {
	Name     string
	Path     string
	Location Location
	Outcome  Outcome
	Reason   string
	Priority float64
	Attempts int
	Start    time.Time
	End      time.Time
	Err      error
	// NothingToDo is set when Run reported that nothing actually needed doing.
	NothingToDo bool
}

// Duration returns the wall-clock time the target spent checking and running.
func (r TargetResult) Duration() time.Duration {
	if r.Start.IsZero() || r.End.Before(r.Start) {
		return 0
	}
	return r.End.Sub(r.Start)
}

// CriticalStep is one target on the critical path.
type CriticalStep struct {
	Name       string
	Own        time.Duration
	Cumulative time.Duration
}

// UtilizationBucket is the share of the build during which exactly Workers
// workers were busy.
type UtilizationBucket struct {
	Workers  int
	Duration time.Duration
	Fraction float64
}

// BuildReport summarises one build invocation.
type BuildReport struct {
	Workers  int
	Started  time.Time
	Finished time.Time
	Aborted  bool
	DryRun   bool

	Results []TargetResult
	// Errors holds terminal target failures, attributed to target and location.
	Errors []error
	// Warnings holds non-fatal verification errors.
	Warnings []error

	CriticalPath []CriticalStep
	Utilization  []UtilizationBucket
}

// Count returns the number of results with the given outcome.
func (r *BuildReport) Count(o Outcome) int {
	n := 0
	for i := range r.Results {
		if r.Results[i].Outcome == o {
			n++
		}
	}
	return n
}

// Result returns the result recorded for the named target.
func (r *BuildReport) Result(name string) (TargetResult, bool) {
	for i := range r.Results {
		if r.Results[i].Name == name {
			return r.Results[i], true
		}
	}
	return TargetResult{}, false
}

// Succeeded reports whether no target failed and the build was not aborted.
func (r *BuildReport) Succeeded() bool {
	return len(r.Errors) == 0 && !r.Aborted
}

// Elapsed returns the wall-clock duration of the build.
func (r *BuildReport) Elapsed() time.Duration {
	return r.Finished.Sub(r.Started)
}
