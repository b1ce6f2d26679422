package pathset_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/engine/pathset"
)

func TestCompilePattern(t *testing.T) {
	t.Parallel()

	valid := []string{"**", "*.go", "a/**/*.foo", "src/", "a/*/b/", "[ab]?.txt"}
	for _, raw := range valid {
		p, err := pathset.CompilePattern(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, raw, p.String())
		assert.Equal(t, strings.HasSuffix(raw, "/"), p.DirOnly(), raw)
	}

	invalid := map[string]string{
		"":       "empty pattern",
		"/":      "pattern must be relative",
		"/abs":   "pattern must be relative",
		"a//b":   "empty path segment",
		"../x":   "relative path segment ..",
		"a**/b":  "** must be a whole path segment",
		"a/**b":  "** must be a whole path segment",
		"x/[a-":  "malformed segment [a-",
		"./src/": "relative path segment .",
	}
	for raw, reason := range invalid {
		_, err := pathset.CompilePattern(raw)
		require.Error(t, err, raw)
		assert.ErrorContains(t, err, domain.ErrInvalidPattern.Error(), raw)
		md := metadata(t, err)
		assert.Equal(t, raw, md["pattern"])
		assert.Equal(t, reason, md["reason"], raw)
	}
}

func TestPattern_Match(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		path    string
		isDir   bool
		want    bool
	}{
		{"a/**/*.foo", "a/x/y/bar.foo", false, true},
		{"a/**/*.foo", "a/bar.foo", false, true},
		{"a/**/*.foo", "b/x/y/bar.foo", false, false},
		{"a/**/*.foo", "a/x/y/bar.foo", true, false},
		{"**", "deep/down/file", false, true},
		{"**", "file", false, true},
		{"*.go", "main.go", false, true},
		{"*.go", "cmd/main.go", false, false},
		{"*/", "cmd", true, true},
		{"*/", "cmd", false, false},
		{"**/testdata/", "a/b/testdata", true, true},
		{"src/*.c", "src/sub/x.c", false, false},
	}
	for _, tt := range tests {
		p := pathset.MustCompile(tt.pattern)
		assert.Equal(t, tt.want, p.Match(tt.path, tt.isDir), "%s ~ %s (dir=%v)", tt.pattern, tt.path, tt.isDir)
	}
}

func TestMustCompile_Panics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { pathset.MustCompile("a**") })
}

func TestFindPaths(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	tree(t, root,
		"a/x/y/bar.foo",
		"a/top.foo",
		"a/x/skip.txt",
		"b/x/y/bar.foo",
		".git/objects/obj.foo",
		"readme.md",
	)
	e := newEnv(t, root)

	t.Run("recursive pattern stays below its prefix", func(t *testing.T) {
		t.Parallel()
		matches, err := pathset.FindPaths(e.rc, root, []string{"a/**/*.foo"}, nil)
		require.NoError(t, err)
		var got []string
		for _, m := range matches {
			got = append(got, m.Rel)
		}
		assert.Equal(t, []string{"a/top.foo", "a/x/y/bar.foo"}, got)
	})

	t.Run("double star matches every file at any depth", func(t *testing.T) {
		t.Parallel()
		matches, err := pathset.FindPaths(e.rc, root, []string{"**"}, nil)
		require.NoError(t, err)
		var got []string
		for _, m := range matches {
			assert.False(t, m.IsDir)
			got = append(got, m.Rel)
		}
		assert.Equal(t, []string{"a/top.foo", "a/x/skip.txt", "a/x/y/bar.foo", "b/x/y/bar.foo", "readme.md"}, got)
	})

	t.Run("directory patterns", func(t *testing.T) {
		t.Parallel()
		matches, err := pathset.FindPaths(e.rc, root, []string{"*/x/"}, nil)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.True(t, matches[0].IsDir)
		assert.Equal(t, "a/x/", matches[0].Rel)
		assert.Equal(t, filepath.Join(root, "a", "x")+string(filepath.Separator), matches[0].Path)
		assert.Equal(t, "b/x/", matches[1].Rel)
	})

	t.Run("excludes", func(t *testing.T) {
		t.Parallel()
		matches, err := pathset.FindPaths(e.rc, root, []string{"**/*.foo"}, []string{"a/x/", "b/**"})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "a/top.foo", matches[0].Rel)
	})

	t.Run("unused include is an error", func(t *testing.T) {
		t.Parallel()
		_, err := pathset.FindPaths(e.rc, root, []string{"a/**/*.foo", "*.bar"}, nil)
		require.Error(t, err)
		assert.ErrorContains(t, err, domain.ErrPatternUnused.Error())
		assert.Equal(t, "*.bar", metadata(t, err)["pattern"])
	})

	t.Run("missing root is an error", func(t *testing.T) {
		t.Parallel()
		_, err := pathset.FindPaths(e.rc, filepath.Join(root, "nope"), []string{"**"}, nil)
		require.Error(t, err)
		assert.ErrorContains(t, err, domain.ErrPatternRootNotFound.Error())
		md := metadata(t, err)
		assert.Equal(t, "nope", md["root"])
		assert.Equal(t, "**", md["pattern"])
	})

	t.Run("invalid pattern", func(t *testing.T) {
		t.Parallel()
		_, err := pathset.FindPaths(e.rc, root, []string{"x**"}, nil)
		assert.ErrorContains(t, err, domain.ErrInvalidPattern.Error())
	})
}

func TestFindPaths_PrunesDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	tree(t, root, "a/x/y/bar.foo", "b/x/y/bar.foo", "b/deep/er/file.foo")
	e := newEnv(t, root)

	_, err := pathset.FindPaths(e.rc, root, []string{"a/**/*.foo"}, nil)
	require.NoError(t, err)

	for _, p := range e.walker.Visited() {
		rel := domain.RelativeTo(root, p)
		assert.False(t, strings.HasPrefix(rel, "b/"), "descended into %s", rel)
	}
	assert.Contains(t, rels(root, e.walker.Visited()), "b", "the directory itself is visited before it is pruned")
}
