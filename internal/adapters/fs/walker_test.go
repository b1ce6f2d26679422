package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/fs"
	"go.trai.ch/kiln/internal/core/domain"
)

func TestWalker_Walk(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "dir1"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "dir2"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "file1.txt"), []byte("content1"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "dir1", "file2.txt"), []byte("content2"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "dir2", "file3.txt"), []byte("content3"), 0o600))

	type entry struct {
		rel   string
		isDir bool
	}
	var got []entry
	err := fs.NewWalker().Walk(tmpDir, func(path string, isDir bool) error {
		rel, err := filepath.Rel(tmpDir, path)
		require.NoError(t, err)
		got = append(got, entry{filepath.ToSlash(rel), isDir})
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []entry{
		{".", true},
		{"dir1", true},
		{"dir1/file2.txt", false},
		{"dir2", true},
		{"dir2/file3.txt", false},
		{"file1.txt", false},
	}, got)
}

func TestWalker_Walk_SkipDir(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "skip", "deep"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "keep"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "skip", "deep", "x"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "keep", "y"), nil, 0o600))

	var files []string
	err := fs.NewWalker().Walk(tmpDir, func(path string, isDir bool) error {
		if isDir && filepath.Base(path) == "skip" {
			return domain.ErrSkipDir
		}
		if !isDir {
			files = append(files, filepath.Base(path))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, files)
}

func TestWalker_Walk_MissingRoot(t *testing.T) {
	t.Parallel()

	err := fs.NewWalker().Walk(filepath.Join(t.TempDir(), "missing"), func(string, bool) error { return nil })
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to walk directory")
}
