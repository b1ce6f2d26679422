package pathset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/domain/domaintest"
	"go.trai.ch/kiln/internal/engine/pathset"
)

func TestDerivedSets(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	tree(t, root, "src/a.c", "src/sub/b.h", "src/sub/c.h")
	e := newEnv(t, root)
	child := pathset.NewDirChildren(domain.Location{}, "src", "a.c", "sub/b.h", "sub/c.h")

	filtered, err := pathset.NewFilter(child, []string{"**/*.h"})
	require.NoError(t, err)

	tests := []struct {
		name string
		set  domain.PathSet
		want []string
	}{
		{"prefix", pathset.NewPrefix(child, "/include/"), []string{"include/a.c", "include/sub/b.h", "include/sub/c.h"}},
		{"empty prefix", pathset.NewPrefix(child, ""), []string{"a.c", "sub/b.h", "sub/c.h"}},
		{"rename", pathset.NewRename(child, map[string]string{"a.c": "main.c"}), []string{"main.c", "sub/b.h", "sub/c.h"}},
		{"flatten", pathset.NewFlatten(child), []string{"a.c", "b.h", "c.h"}},
		{"filter", filtered, []string{"sub/b.h", "sub/c.h"}},
		{"nested", pathset.NewPrefix(pathset.NewFlatten(filtered), "hdr"), []string{"hdr/b.h", "hdr/c.h"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pairs, err := tt.set.ResolveWithDestinations(e.rc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dests(pairs))

			deps, err := tt.set.UnderlyingDependencies(e.rc)
			require.NoError(t, err)
			assert.Len(t, deps, 3, "dependencies are those of the child")
		})
	}
}

func TestDerived_String(t *testing.T) {
	t.Parallel()

	child := pathset.NewLiteral(domain.Location{}, "x")
	assert.Equal(t, "prefix a([x])", pathset.NewPrefix(child, "a").String())
	assert.Equal(t, "rename a=b,c=d([x])", pathset.NewRename(child, map[string]string{"c": "d", "a": "b"}).String())
	assert.Equal(t, "flatten([x])", pathset.NewFlatten(child).String())

	_, err := pathset.NewFilter(child, []string{"a**"})
	assert.ErrorContains(t, err, domain.ErrInvalidPattern.Error())
}

func TestRename_KeepsDirectoryMarker(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	gen := domaintest.New("gen/", nil)
	e := newEnv(t, root, gen)

	s := pathset.NewRename(pathset.NewTargetRef(domain.Location{}, "gen/"), map[string]string{"gen": "generated"})
	pairs, err := s.ResolveWithDestinations(e.rc)
	require.NoError(t, err)
	assert.Equal(t, []string{"generated/"}, dests(pairs))
}

func TestUnion(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	tree(t, root, "a.txt", "b.txt")
	lib := domaintest.New("lib.a", nil)
	e := newEnv(t, root, lib)

	left := pathset.NewLiteral(domain.Location{}, "a.txt", "b.txt")
	right := pathset.NewLiteral(domain.Location{}, "b.txt", "lib.a")
	u := pathset.NewUnion(left, right)

	paths, err := u.Resolve(e.rc)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "lib.a"}, rels(root, paths))

	deps, err := u.UnderlyingDependencies(e.rc)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "target:lib.a"}, depNames(root, deps))
	assert.Equal(t, "[a.txt, b.txt] + [b.txt, lib.a]", u.String())

	assert.Equal(t, domain.EmptyPathSet{}, pathset.NewUnion())
	assert.Same(t, left, pathset.NewUnion(left))
}
