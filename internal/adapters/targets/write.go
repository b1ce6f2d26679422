package targets

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

// WriteTypeName is the type name of write targets.
const WriteTypeName = "write"

// Write writes literal content to a file.
type Write struct {
	*domain.BaseTarget

	content []byte
}

// NewWrite creates a write target.
func NewWrite(name string, loc domain.Location, deps domain.PathSet, content string) *Write {
	return &Write{
		BaseTarget: domain.NewBaseTarget(WriteTypeName, name, loc, deps),
		content:    []byte(content),
	}
}

// Run writes the content. An output that already holds it is only touched,
// which is reported as nothing to do.
func (w *Write) Run(_ context.Context, _ *domain.RunContext) (bool, error) {
	out := w.Path()
	if current, err := os.ReadFile(out); err == nil && bytes.Equal(current, w.content) {
		now := time.Now()
		if err := os.Chtimes(out, now, now); err != nil {
			return false, zerr.With(zerr.Wrap(err, "failed to touch output"), "path", out)
		}
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(out), domain.DirPerm); err != nil {
		return false, zerr.With(zerr.Wrap(err, "failed to create output directory"), "path", out)
	}
	if err := os.WriteFile(out, w.content, domain.FilePerm); err != nil {
		return false, zerr.With(zerr.Wrap(err, "failed to write output"), "path", out)
	}
	return true, nil
}

// ImplicitInputs adds a digest of the content to the defaults.
func (w *Write) ImplicitInputs(ctx context.Context, rc domain.ResolveContext) ([]string, error) {
	inputs, err := w.BaseTarget.ImplicitInputs(ctx, rc)
	if err != nil {
		return nil, err
	}
	inputs = append(inputs, "content: "+strconv.FormatUint(xxhash.Sum64(w.content), 16))
	slices.Sort(inputs)
	return inputs, nil
}
