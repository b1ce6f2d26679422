package targets

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

// MkdirTypeName is the type name of mkdir targets.
const MkdirTypeName = "mkdir"

// Mkdir creates an empty directory.
type Mkdir struct {
	*domain.BaseTarget
}

// NewMkdir creates a mkdir target. The name gets a trailing separator if it
// lacks one.
func NewMkdir(name string, loc domain.Location, deps domain.PathSet) *Mkdir {
	if !strings.HasSuffix(name, "/") {
		name += "/"
	}
	return &Mkdir{BaseTarget: domain.NewBaseTarget(MkdirTypeName, name, loc, deps)}
}

// Run creates the directory.
func (m *Mkdir) Run(_ context.Context, _ *domain.RunContext) (bool, error) {
	dir := strings.TrimSuffix(m.Path(), string(filepath.Separator))
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return false, nil
	}
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return false, zerr.With(zerr.Wrap(err, "failed to create directory"), "path", dir)
	}
	return true, nil
}
