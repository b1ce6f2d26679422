// Package domaintest provides targets and registries for tests.
package domaintest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/core/domain"
)

// TypeName is the type of targets created by New.
const TypeName = "test"

// Target is a target whose behaviour is supplied by the test. By default Run
// creates the output and succeeds.
type Target struct {
	*domain.BaseTarget

	// RunFunc replaces the default action when set.
	RunFunc func(ctx context.Context, rc *domain.RunContext) (bool, error)

	mu      sync.Mutex
	runs    int
	cleans  int
	started []time.Time
}

// New creates a target named name depending on deps.
func New(name string, deps domain.PathSet) *Target {
	return &Target{BaseTarget: domain.NewBaseTarget(TypeName, name, domain.Location{File: "kiln.yaml"}, deps)}
}

// Run records the attempt and runs RunFunc or the default action.
func (t *Target) Run(ctx context.Context, rc *domain.RunContext) (bool, error) {
	t.mu.Lock()
	t.runs++
	t.started = append(t.started, time.Now())
	fn := t.RunFunc
	t.mu.Unlock()

	if fn != nil {
		return fn(ctx, rc)
	}
	return true, WriteOutput(t.Path())
}

// Clean records the call and removes the output.
func (t *Target) Clean(ctx context.Context, rc *domain.RunContext) error {
	t.mu.Lock()
	t.cleans++
	t.mu.Unlock()
	return t.BaseTarget.Clean(ctx, rc)
}

// Runs returns how often Run was called.
func (t *Target) Runs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}

// Cleans returns how often Clean was called.
func (t *Target) Cleans() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cleans
}

// Started returns the start time of every attempt.
func (t *Target) Started() []time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Time(nil), t.started...)
}

// WriteOutput creates the file or directory at path.
func WriteOutput(path string) error {
	if strings.HasSuffix(path, string(filepath.Separator)) {
		return os.MkdirAll(path, domain.DirPerm)
	}
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(filepath.Base(path)), domain.PrivateFilePerm)
}

// Freeze registers targets and freezes the registry at root.
func Freeze(t *testing.T, root string, targets ...domain.Target) *domain.Registry {
	t.Helper()
	rb := domain.NewRegistryBuilder()
	for _, tg := range targets {
		require.NoError(t, rb.Add(tg))
	}
	reg, err := rb.Freeze(root, nil)
	require.NoError(t, err)
	return reg
}

// Touch creates path below root with the given modification time.
func Touch(t *testing.T, root, rel string, mtime time.Time) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), domain.DirPerm))
	require.NoError(t, os.WriteFile(p, []byte(rel), domain.PrivateFilePerm))
	require.NoError(t, os.Chtimes(p, mtime, mtime))
	return p
}
