// Package analysis derives observational statistics from a finished build:
// the critical path through the target graph and worker utilization.
// Nothing here feeds back into scheduling.
package analysis

import (
	"slices"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/engine/resolver"
)

// CriticalPath returns the dependency chain whose cumulative duration is the
// largest, in build order. own maps target names to the time spent running
// them; targets missing from it count as zero.
//
// The cumulative duration of a node is its own duration plus the largest
// cumulative duration among its dependencies. The path is recovered by walking
// back from the node that finishes last.
func CriticalPath(plan *resolver.Plan, own map[string]time.Duration) []domain.CriticalStep {
	if plan == nil || plan.Len() == 0 {
		return nil
	}

	cumulative := make(map[*resolver.Node]time.Duration, plan.Len())
	criticalInput := make(map[*resolver.Node]*resolver.Node, plan.Len())

	var (
		last    *resolver.Node
		longest time.Duration
	)
	// Order lists dependencies first, so every input is final when read.
	for _, n := range plan.Order {
		var (
			in   *resolver.Node
			best time.Duration
		)
		for _, d := range n.Deps {
			if c := cumulative[d]; in == nil || c > best {
				in, best = d, c
			}
		}
		cumulative[n] = best + own[n.Name()]
		criticalInput[n] = in
		if cumulative[n] > longest {
			last, longest = n, cumulative[n]
		}
	}

	if last == nil {
		return nil
	}

	var path []domain.CriticalStep
	for n := last; n != nil; n = criticalInput[n] {
		path = append(path, domain.CriticalStep{
			Name:       n.Name(),
			Own:        own[n.Name()],
			Cumulative: cumulative[n],
		})
	}
	slices.Reverse(path)
	return path
}

// RunDurations extracts the time each target spent building from results.
// Targets that were skipped did not run and are left out.
func RunDurations(results []domain.TargetResult) map[string]time.Duration {
	own := make(map[string]time.Duration, len(results))
	for _, r := range results {
		switch r.Outcome {
		case domain.OutcomeBuilt, domain.OutcomeFailed:
			own[r.Name] = r.Duration()
		}
	}
	return own
}
