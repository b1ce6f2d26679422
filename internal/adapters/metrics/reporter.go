// Package metrics exports build events as Prometheus metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// JobName is the pushgateway job the metrics are grouped under.
const JobName = "kiln"

// Reporter implements ports.Reporter by updating a private registry. When a
// pushgateway URL is set, Close pushes the registry to it.
type Reporter struct {
	registry *prometheus.Registry
	pushURL  string

	targets  *prometheus.CounterVec
	retries  prometheus.Counter
	duration prometheus.Histogram
	active   prometheus.Gauge

	mu       sync.Mutex
	building map[string]bool
}

var _ ports.Reporter = (*Reporter)(nil)

// NewReporter creates a Reporter. An empty pushURL disables pushing.
func NewReporter(pushURL string) *Reporter {
	r := &Reporter{
		registry: prometheus.NewRegistry(),
		pushURL:  pushURL,
		targets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiln_targets_total",
			Help: "Targets processed, by outcome.",
		}, []string{"outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kiln_target_retries_total",
			Help: "Retried target attempts.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kiln_target_duration_seconds",
			Help:    "Wall-clock time of targets that ran.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 9),
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kiln_active_workers",
			Help: "Workers currently running a target.",
		}),
		building: make(map[string]bool),
	}
	r.registry.MustRegister(r.targets, r.retries, r.duration, r.active)
	return r
}

// Registry returns the registry holding the build metrics.
func (r *Reporter) Registry() *prometheus.Registry {
	return r.registry
}

// OnPlan does nothing.
func (r *Reporter) OnPlan(_ []string) {}

// OnEvent updates the metrics for ev.
func (r *Reporter) OnEvent(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case domain.EventBuilding:
		r.building[ev.Target] = true
		r.active.Inc()
	case domain.EventSucceeded:
		r.finish(ev)
		r.targets.WithLabelValues(domain.OutcomeBuilt.String()).Inc()
	case domain.EventFailed:
		r.finish(ev)
		r.targets.WithLabelValues(domain.OutcomeFailed.String()).Inc()
	case domain.EventRetrying:
		r.retries.Inc()
	case domain.EventSkipped:
		r.targets.WithLabelValues(domain.OutcomeUpToDate.String()).Inc()
	case domain.EventBlocked:
		r.targets.WithLabelValues(domain.OutcomeBlocked.String()).Inc()
	case domain.EventWouldBuild:
		r.targets.WithLabelValues(domain.OutcomeWouldBuild.String()).Inc()
	default:
	}
}

// finish must be called with mu held. Failures found before the target ran
// have no duration and never held a worker.
func (r *Reporter) finish(ev domain.Event) {
	if !r.building[ev.Target] {
		return
	}
	delete(r.building, ev.Target)
	r.active.Dec()
	r.duration.Observe(ev.Duration.Seconds())
}

// OnSummary does nothing; the counters already hold the totals.
func (r *Reporter) OnSummary(_ *domain.BuildReport) {}

// Close pushes the registry when a pushgateway is configured.
func (r *Reporter) Close() error {
	if r.pushURL == "" {
		return nil
	}
	if err := push.New(r.pushURL, JobName).Gatherer(r.registry).Push(); err != nil {
		return zerr.With(zerr.Wrap(err, "push metrics"), "url", r.pushURL)
	}
	return nil
}
