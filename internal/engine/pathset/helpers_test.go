package pathset_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/fs"
	"go.trai.ch/kiln/internal/adapters/statcache"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/domain/domaintest"
	"go.trai.ch/kiln/internal/engine/resolver"
	"go.trai.ch/zerr"
)

// recordingWalker counts walks and remembers every visited path.
type recordingWalker struct {
	inner *fs.Walker

	mu      sync.Mutex
	walks   int
	visited []string
}

func (w *recordingWalker) Walk(root string, fn domain.WalkFunc) error {
	w.mu.Lock()
	w.walks++
	w.mu.Unlock()
	return w.inner.Walk(root, func(p string, isDir bool) error {
		w.mu.Lock()
		w.visited = append(w.visited, p)
		w.mu.Unlock()
		return fn(p, isDir)
	})
}

func (w *recordingWalker) Walks() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.walks
}

func (w *recordingWalker) Visited() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.visited...)
}

type env struct {
	root   string
	rc     *resolver.Context
	stats  *statcache.Cache
	walker *recordingWalker
}

func newEnv(t *testing.T, root string, targets ...domain.Target) *env {
	t.Helper()
	reg := domaintest.Freeze(t, root, targets...)
	stats := statcache.New()
	walker := &recordingWalker{inner: fs.NewWalker()}
	return &env{root: root, rc: resolver.NewContext(reg, stats, walker), stats: stats, walker: walker}
}

// tree creates the given files below root.
func tree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), domain.DirPerm))
		require.NoError(t, os.WriteFile(p, []byte(f), domain.PrivateFilePerm))
	}
}

func (e *env) abs(rel string) string {
	return filepath.Join(e.root, filepath.FromSlash(rel))
}

func rels(root string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = domain.RelativeTo(root, p)
	}
	return out
}

func dests(pairs []domain.PathPair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.Dest
	}
	return out
}

func depNames(root string, deps []domain.Dependency) []string {
	out := make([]string, len(deps))
	for i, d := range deps {
		if d.Target != nil {
			out[i] = "target:" + d.Target.Base().Name()
			continue
		}
		out[i] = domain.RelativeTo(root, d.Path)
	}
	return out
}

func metadata(t *testing.T, err error) map[string]any {
	t.Helper()
	var zerrErr *zerr.Error
	require.True(t, errors.As(err, &zerrErr))
	return zerrErr.Metadata()
}
