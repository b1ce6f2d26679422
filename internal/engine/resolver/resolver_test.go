package resolver_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/fs"
	"go.trai.ch/kiln/internal/adapters/statcache"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/domain/domaintest"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.trai.ch/kiln/internal/engine/pathset"
	"go.trai.ch/kiln/internal/engine/resolver"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

func ref(names ...string) domain.PathSet {
	sets := make([]domain.PathSet, len(names))
	for i, n := range names {
		sets[i] = pathset.NewTargetRef(domain.Location{}, n)
	}
	return pathset.NewUnion(sets...)
}

func newResolver(t *testing.T, reg *domain.Registry) *resolver.Resolver {
	t.Helper()
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Warn(gomock.Any()).AnyTimes()
	logger.EXPECT().Debug(gomock.Any()).AnyTimes()
	rc := resolver.NewContext(reg, statcache.New(), fs.NewWalker())
	return resolver.New(rc, logger)
}

func metadata(t *testing.T, err error) map[string]any {
	t.Helper()
	var zerrErr *zerr.Error
	require.True(t, errors.As(err, &zerrErr))
	return zerrErr.Metadata()
}

func TestResolve_Diamond(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	d := domaintest.New("d", nil)
	b := domaintest.New("b", ref("d"))
	c := domaintest.New("c", ref("d"))
	a := domaintest.New("a", ref("b", "c"))
	reg := domaintest.Freeze(t, root, a, b, c, d)

	plan, err := newResolver(t, reg).Resolve(context.Background(), []domain.Target{a}, resolver.Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"d", "b", "c", "a"}, plan.Names())
	assert.Equal(t, map[string][]string{
		"a": {"b", "c"},
		"b": {"d"},
		"c": {"d"},
		"d": {},
	}, plan.Edges())

	ready := plan.Ready()
	require.Len(t, ready, 1)
	assert.Equal(t, "d", ready[0].Name())

	n, ok := plan.Node("a")
	require.True(t, ok)
	assert.True(t, n.Selected)
	n, _ = plan.Node("d")
	assert.False(t, n.Selected)
}

func TestResolve_OnlyPullsInDependencies(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	a := domaintest.New("a", nil)
	b := domaintest.New("b", ref("a"))
	other := domaintest.New("other", nil)
	reg := domaintest.Freeze(t, root, a, b, other)

	plan, err := newResolver(t, reg).Resolve(context.Background(), []domain.Target{b}, resolver.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, plan.Names())
}

func TestResolve_Cycle(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	a := domaintest.New("A", ref("B"))
	b := domaintest.New("B", ref("C"))
	c := domaintest.New("C", ref("A"))
	reg := domaintest.Freeze(t, root, a, b, c)

	_, err := newResolver(t, reg).Resolve(context.Background(), []domain.Target{a}, resolver.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.ErrorContains(t, err, domain.ErrCycleDetected.Error())
	assert.Equal(t, "A -> B -> C -> A", metadata(t, err)["cycle"])
}

func TestResolve_SelfDependency(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	inner := domaintest.New("loop", pathset.NewLiteral(domain.Location{}, "loop"))
	reg := domaintest.Freeze(t, root, inner)

	_, err := newResolver(t, reg).Resolve(context.Background(), []domain.Target{inner}, resolver.Options{})
	require.Error(t, err)
	assert.Equal(t, "loop -> loop", metadata(t, err)["cycle"])
}

func TestResolve_PriorityPropagation(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	low := domaintest.New("low", nil)
	mid := domaintest.New("mid", ref("low"))
	high := domaintest.New("high", ref("mid"))
	side := domaintest.New("side", ref("low"))
	require.NoError(t, high.SetPriority(20))
	require.NoError(t, mid.SetPriority(5))
	require.NoError(t, side.SetPriority(16))
	reg := domaintest.Freeze(t, root, low, mid, high, side)

	plan, err := newResolver(t, reg).Resolve(context.Background(), []domain.Target{high, side}, resolver.Options{})
	require.NoError(t, err)

	want := map[string]float64{"high": 20, "mid": 20, "low": 20, "side": 16}
	for name, p := range want {
		n, ok := plan.Node(name)
		require.True(t, ok)
		assert.InDelta(t, p, n.Priority, 0, name)
	}
}

func TestResolve_AtomicGroup(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	a := domaintest.New("a", nil)
	b := domaintest.New("b", nil)
	c := domaintest.New("c", ref("a"))
	require.NoError(t, c.SetPriority(3))

	rb := domain.NewRegistryBuilder()
	for _, tg := range []domain.Target{a, b, c} {
		require.NoError(t, rb.Add(tg))
	}
	require.NoError(t, rb.AddGroup("pair", domain.Location{}, "a", "b"))
	reg, err := rb.Freeze(root, nil)
	require.NoError(t, err)

	plan, err := newResolver(t, reg).Resolve(context.Background(), []domain.Target{c}, resolver.Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, plan.Edges()["c"], "c waits for every member of the group")
	nb, ok := plan.Node("b")
	require.True(t, ok)
	assert.InDelta(t, 3.0, nb.Priority, 0, "priority propagates through the group")
}

func TestResolve_IgnoreDeps(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	a := domaintest.New("a", nil)
	b := domaintest.New("b", ref("a"))
	reg := domaintest.Freeze(t, root, a, b)
	domaintest.Touch(t, root, "a", time.Now())

	plan, err := newResolver(t, reg).Resolve(context.Background(), []domain.Target{b}, resolver.Options{IgnoreDeps: true})
	require.NoError(t, err)

	na, _ := plan.Node("a")
	nb, _ := plan.Node("b")
	assert.True(t, na.Satisfied)
	assert.False(t, nb.Satisfied)
	ready := plan.Ready()
	require.Len(t, ready, 1)
	assert.Equal(t, "b", ready[0].Name())
}

func TestResolve_RawSourcesAndOwnership(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	src := domaintest.Touch(t, root, "src/main.c", time.Now())
	gen := domaintest.New("gen/", nil)
	use := domaintest.New("bin", pathset.NewLiteral(domain.Location{}, "src/main.c", "gen/header.h"))
	reg := domaintest.Freeze(t, root, gen, use)

	plan, err := newResolver(t, reg).Resolve(context.Background(), []domain.Target{use}, resolver.Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"gen/"}, plan.Edges()["bin"])
	n, _ := plan.Node("bin")
	require.Len(t, n.Sources, 2)
	var raw []string
	for _, d := range n.Sources {
		if !d.IsTarget() {
			raw = append(raw, d.Path)
		}
	}
	assert.Equal(t, []string{src}, raw)
}

func TestResolve_MissingSourceIsAttributed(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	loc := domain.Location{File: filepath.Join(root, "kiln.yaml"), Line: 7}
	broken := domaintest.New("broken", pathset.NewLiteral(loc, "missing.txt"))
	reg := domaintest.Freeze(t, root, broken)

	_, err := newResolver(t, reg).Resolve(context.Background(), []domain.Target{broken}, resolver.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPreBuildCheck)
	assert.ErrorContains(t, err, domain.ErrDependencyResolutionFailed.Error())
	assert.ErrorContains(t, err, domain.ErrSourceNotFound.Error())
	assert.Equal(t, "broken", metadata(t, err)["target"])
}

func TestResolve_Cancelled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	a := domaintest.New("a", nil)
	reg := domaintest.Freeze(t, root, a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newResolver(t, reg).Resolve(ctx, []domain.Target{a}, resolver.Options{})
	require.ErrorIs(t, err, context.Canceled)
}
