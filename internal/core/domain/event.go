package domain

import "time"

// EventKind identifies a structured build event.
type EventKind int

const (
	// EventSelected is emitted once per scheduled target after resolution.
	EventSelected EventKind = iota
	// EventBuilding is emitted when a target is found stale and is about to run.
	EventBuilding
	// EventSkipped is emitted when a target is up to date or satisfied.
	EventSkipped
	// EventSucceeded is emitted when a target run completes.
	EventSucceeded
	// EventFailed is emitted when a target fails terminally.
	EventFailed
	// EventRetrying is emitted before a failed target is retried.
	EventRetrying
	// EventVerifyWarning is emitted for a non-fatal verification problem.
	EventVerifyWarning
	// EventIdle is emitted when no target completed within the idle window.
	EventIdle
	// EventBlocked is emitted for a target that will not run because a dependency failed.
	EventBlocked
	// EventWouldBuild is emitted by a dry run for a target that is stale.
	EventWouldBuild
)

// String returns the lowercase name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventSelected:
		return "selected"
	case EventBuilding:
		return "building"
	case EventSkipped:
		return "skipped"
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	case EventRetrying:
		return "retrying"
	case EventVerifyWarning:
		return "verify-warning"
	case EventIdle:
		return "idle"
	case EventBlocked:
		return "blocked"
	case EventWouldBuild:
		return "would-build"
	default:
		return "unknown"
	}
}

// InFlight describes a target that is currently being worked on.
type InFlight struct {
	Name    string
	Running time.Duration
}

// Event is a structured build event consumed by reporters.
type Event struct {
	Kind     EventKind
	Target   string
	Path     string
	Location Location
	Reason   string
	Attempt  int
	Delay    time.Duration
	Duration time.Duration
	Err      error
	Time     time.Time
	InFlight []InFlight
	// Output is the combined output a failed target produced, if any.
	Output string
}
