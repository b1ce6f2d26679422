package config_test

import (
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/config"
	"go.trai.ch/kiln/internal/core/domain"
)

func TestLoadSettings_Defaults(t *testing.T) {
	t.Parallel()

	s, err := config.LoadSettingsFrom(t.Context(), envconfig.MapLookuper(nil))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s.WorkersPerCPU, 0)
	assert.Equal(t, 0, s.MaxWorkers)
	assert.Equal(t, 600*time.Second, s.ProcessTimeout)
	assert.Equal(t, time.Minute, s.IdleReport)
	assert.False(t, s.LogJSON)
	assert.Empty(t, s.Pushgateway)
}

func TestLoadSettings_Overrides(t *testing.T) {
	t.Parallel()

	s, err := config.LoadSettingsFrom(t.Context(), envconfig.MapLookuper(map[string]string{
		"KILN_WORKERS_PER_CPU":     "1.5",
		"KILN_MAX_WORKERS":         "6",
		"KILN_PROCESS_TIMEOUT":     "2m",
		"KILN_IDLE_REPORT":         "5s",
		"KILN_LOG_JSON":            "true",
		"KILN_METRICS_PUSHGATEWAY": "http://localhost:9091",
	}))
	require.NoError(t, err)
	assert.InDelta(t, 1.5, s.WorkersPerCPU, 0)
	assert.Equal(t, 6, s.MaxWorkers)
	assert.Equal(t, 2*time.Minute, s.ProcessTimeout)
	assert.Equal(t, 5*time.Second, s.IdleReport)
	assert.True(t, s.LogJSON)
	assert.Equal(t, "http://localhost:9091", s.Pushgateway)
}

func TestLoadSettings_Invalid(t *testing.T) {
	t.Parallel()

	tests := map[string]map[string]string{
		"malformed duration": {"KILN_PROCESS_TIMEOUT": "soon"},
		"zero multiplier":    {"KILN_WORKERS_PER_CPU": "0"},
		"malformed int":      {"KILN_MAX_WORKERS": "many"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadSettingsFrom(t.Context(), envconfig.MapLookuper(env))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
			assert.ErrorContains(t, err, domain.ErrSettingsLoadFailed.Error())
		})
	}
}

func TestSettings_Workers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		settings  config.Settings
		requested int
		procs     int
		want      int
	}{
		{name: "requested wins", settings: config.Settings{WorkersPerCPU: 1}, requested: 3, procs: 8, want: 3},
		{name: "one per cpu", settings: config.Settings{WorkersPerCPU: 1}, procs: 8, want: 8},
		{name: "rounds up", settings: config.Settings{WorkersPerCPU: 1.5}, procs: 3, want: 5},
		{name: "capped", settings: config.Settings{WorkersPerCPU: 2, MaxWorkers: 4}, procs: 8, want: 4},
		{name: "cap applies to requested", settings: config.Settings{WorkersPerCPU: 1, MaxWorkers: 2}, requested: 9, procs: 1, want: 2},
		{name: "at least one", settings: config.Settings{WorkersPerCPU: 0.1}, procs: 1, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.settings.Workers(tt.requested, tt.procs))
		})
	}
}
