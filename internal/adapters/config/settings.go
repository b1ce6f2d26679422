package config

import (
	"context"
	"math"
	"time"

	"github.com/sethvargo/go-envconfig"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

// Settings holds the tunables read from the environment.
type Settings struct {
	// WorkersPerCPU multiplies GOMAXPROCS when the worker count is not given.
	WorkersPerCPU float64 `env:"KILN_WORKERS_PER_CPU, default=1.0"`
	// MaxWorkers caps the worker count; zero means no cap.
	MaxWorkers int `env:"KILN_MAX_WORKERS, default=0"`
	// ProcessTimeout is the default timeout of command targets.
	ProcessTimeout time.Duration `env:"KILN_PROCESS_TIMEOUT, default=600s"`
	// IdleReport is the interval after which in-flight targets are reported.
	IdleReport time.Duration `env:"KILN_IDLE_REPORT, default=60s"`
	// LogJSON selects the JSON log handler.
	LogJSON bool `env:"KILN_LOG_JSON, default=false"`
	// Pushgateway is the URL metrics are pushed to at the end of a build.
	Pushgateway string `env:"KILN_METRICS_PUSHGATEWAY"`
}

// LoadSettings reads Settings from the process environment.
func LoadSettings(ctx context.Context) (*Settings, error) {
	return LoadSettingsFrom(ctx, envconfig.OsLookuper())
}

// LoadSettingsFrom reads Settings through lookuper.
func LoadSettingsFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Settings, error) {
	var s Settings
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &s, Lookuper: lookuper}); err != nil {
		return nil, domain.Classify(zerr.Wrap(err, domain.ErrSettingsLoadFailed.Error()), domain.ErrConfiguration)
	}
	if s.WorkersPerCPU <= 0 || math.IsNaN(s.WorkersPerCPU) {
		return nil, domain.Classify(
			zerr.With(domain.ErrSettingsLoadFailed, "KILN_WORKERS_PER_CPU", s.WorkersPerCPU),
			domain.ErrConfiguration)
	}
	return &s, nil
}

// Workers returns the worker count: requested when positive, otherwise procs
// times the per-CPU multiplier rounded up. The result is at least one and
// honours MaxWorkers.
func (s *Settings) Workers(requested, procs int) int {
	n := requested
	if n <= 0 {
		n = int(math.Ceil(float64(procs) * s.WorkersPerCPU))
	}
	if s.MaxWorkers > 0 {
		n = min(n, s.MaxWorkers)
	}
	return max(n, 1)
}
