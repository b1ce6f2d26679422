package ports

import "go.trai.ch/kiln/internal/core/domain"

// Reporter consumes structured build events. Implementations decide how to
// render or export them and must be safe for concurrent use.
//
//go:generate mockgen -source=reporter.go -destination=mocks/mock_reporter.go -package=mocks
type Reporter interface {
	// OnPlan is called once after dependency resolution with the scheduled
	// target names in topological order.
	OnPlan(targets []string)

	// OnEvent is called for every target event.
	OnEvent(ev domain.Event)

	// OnSummary is called once with the final report.
	OnSummary(report *domain.BuildReport)

	// Close flushes any buffered output.
	Close() error
}
