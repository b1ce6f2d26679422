package app

import (
	"errors"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

// multiReporter fans every call out to each reporter in order.
type multiReporter []ports.Reporter

func (m multiReporter) OnPlan(targets []string) {
	for _, r := range m {
		r.OnPlan(targets)
	}
}

func (m multiReporter) OnEvent(ev domain.Event) {
	for _, r := range m {
		r.OnEvent(ev)
	}
}

func (m multiReporter) OnSummary(report *domain.BuildReport) {
	for _, r := range m {
		r.OnSummary(report)
	}
}

func (m multiReporter) Close() error {
	var errs error
	for _, r := range m {
		errs = errors.Join(errs, r.Close())
	}
	return errs
}
