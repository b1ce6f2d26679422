package targets

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

// CopyTypeName is the type name of copy targets.
const CopyTypeName = "copy"

// Copy copies its dependencies into the output. A directory output receives
// every source at its destination; a file output takes exactly one file.
type Copy struct {
	*domain.BaseTarget
}

// NewCopy creates a copy target.
func NewCopy(name string, loc domain.Location, deps domain.PathSet) *Copy {
	return &Copy{BaseTarget: domain.NewBaseTarget(CopyTypeName, name, loc, deps)}
}

// Run copies the sources.
func (c *Copy) Run(_ context.Context, rc *domain.RunContext) (bool, error) {
	pairs, err := c.Dependencies().ResolveWithDestinations(rc.Resolve)
	if err != nil {
		return false, err
	}

	if !c.IsDir() {
		if len(pairs) != 1 || strings.HasSuffix(pairs[0].Src, string(filepath.Separator)) {
			return false, zerr.With(zerr.With(domain.ErrCopySourceCount,
				"target", c.Name()), "sources", len(pairs))
		}
		return true, copyFile(pairs[0].Src, c.Path())
	}

	out := strings.TrimSuffix(c.Path(), string(filepath.Separator))
	if err := os.MkdirAll(out, domain.DirPerm); err != nil {
		return false, zerr.With(zerr.Wrap(err, "failed to create output directory"), "path", out)
	}
	for _, p := range pairs {
		dest, err := destination(out, p.Dest)
		if err != nil {
			return false, zerr.With(err, "target", c.Name())
		}
		if strings.HasSuffix(p.Src, string(filepath.Separator)) {
			if err := os.MkdirAll(dest, domain.DirPerm); err != nil {
				return false, zerr.With(zerr.Wrap(err, "failed to create directory"), "path", dest)
			}
			continue
		}
		if err := copyFile(p.Src, dest); err != nil {
			return false, err
		}
	}
	return true, nil
}

// ImplicitInputs adds the destination of every source to the defaults.
func (c *Copy) ImplicitInputs(ctx context.Context, rc domain.ResolveContext) ([]string, error) {
	inputs, err := c.BaseTarget.ImplicitInputs(ctx, rc)
	if err != nil {
		return nil, err
	}
	pairs, err := c.Dependencies().ResolveWithDestinations(rc)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		inputs = append(inputs, "dest: "+domain.RelativeTo(rc.Root(), p.Src)+" -> "+p.Dest)
	}
	slices.Sort(inputs)
	return inputs, nil
}

// destination joins rel onto dir and rejects results outside dir.
func destination(dir, rel string) (string, error) {
	dest := filepath.Join(dir, filepath.FromSlash(rel))
	if filepath.IsAbs(filepath.FromSlash(rel)) || (dest != dir && !strings.HasPrefix(dest, dir+string(filepath.Separator))) {
		return "", zerr.With(domain.ErrInvalidDestination, "destination", rel)
	}
	return dest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to open source"), "path", src)
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to stat source"), "path", src)
	}
	if err := os.MkdirAll(filepath.Dir(dst), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create directory"), "path", filepath.Dir(dst))
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create file"), "path", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return zerr.With(zerr.Wrap(err, "failed to copy file"), "path", dst)
	}
	if err := out.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to close file"), "path", dst)
	}
	return nil
}
