package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/metrics"
	"go.trai.ch/kiln/internal/core/domain"
)

func TestReporter_Counts(t *testing.T) {
	t.Parallel()

	r := metrics.NewReporter("")
	r.OnPlan([]string{"a", "b", "c", "d", "e"})
	r.OnEvent(domain.Event{Kind: domain.EventSkipped, Target: "a"})
	r.OnEvent(domain.Event{Kind: domain.EventBuilding, Target: "b"})
	r.OnEvent(domain.Event{Kind: domain.EventBuilding, Target: "c"})
	r.OnEvent(domain.Event{Kind: domain.EventRetrying, Target: "c"})
	r.OnEvent(domain.Event{Kind: domain.EventSucceeded, Target: "b", Duration: 2 * time.Second})
	r.OnEvent(domain.Event{Kind: domain.EventFailed, Target: "c", Duration: time.Second})
	r.OnEvent(domain.Event{Kind: domain.EventFailed, Target: "d"})
	r.OnEvent(domain.Event{Kind: domain.EventBlocked, Target: "e"})
	r.OnSummary(&domain.BuildReport{})
	require.NoError(t, r.Close())

	expected := `
# HELP kiln_active_workers Workers currently running a target.
# TYPE kiln_active_workers gauge
kiln_active_workers 0
# HELP kiln_target_retries_total Retried target attempts.
# TYPE kiln_target_retries_total counter
kiln_target_retries_total 1
# HELP kiln_targets_total Targets processed, by outcome.
# TYPE kiln_targets_total counter
kiln_targets_total{outcome="blocked"} 1
kiln_targets_total{outcome="built"} 1
kiln_targets_total{outcome="failed"} 2
kiln_targets_total{outcome="up-to-date"} 1
`
	require.NoError(t, testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected),
		"kiln_active_workers", "kiln_target_retries_total", "kiln_targets_total"))

	families, err := r.Registry().Gather()
	require.NoError(t, err)
	var samples uint64
	var sum float64
	for _, f := range families {
		if f.GetName() == "kiln_target_duration_seconds" {
			h := f.GetMetric()[0].GetHistogram()
			samples, sum = h.GetSampleCount(), h.GetSampleSum()
		}
	}
	assert.Equal(t, uint64(2), samples, "only targets that ran are observed")
	assert.InDelta(t, 3.0, sum, 1e-9)
}

func TestReporter_ActiveWorkers(t *testing.T) {
	t.Parallel()

	r := metrics.NewReporter("")
	r.OnEvent(domain.Event{Kind: domain.EventBuilding, Target: "a"})
	r.OnEvent(domain.Event{Kind: domain.EventBuilding, Target: "b"})

	expected := `
# HELP kiln_active_workers Workers currently running a target.
# TYPE kiln_active_workers gauge
kiln_active_workers 2
`
	require.NoError(t, testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected), "kiln_active_workers"))
}

func TestReporter_Push(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var method, path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		data, _ := io.ReadAll(req.Body)
		mu.Lock()
		method, path, body = req.Method, req.URL.Path, string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := metrics.NewReporter(srv.URL)
	r.OnEvent(domain.Event{Kind: domain.EventSkipped, Target: "a"})
	require.NoError(t, r.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/"+metrics.JobName, path)
	assert.NotEmpty(t, body)
}

func TestReporter_PushFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := metrics.NewReporter(srv.URL)
	err := r.Close()
	require.Error(t, err)
	assert.ErrorContains(t, err, "push metrics")
}
