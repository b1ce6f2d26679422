// Package domain holds the core types of the build engine: targets, path sets,
// the frozen registry and build results.
package domain

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
)

// DefaultInitialBackoff is the first retry delay of a target that declares retries.
const DefaultInitialBackoff = 15 * time.Second

// Target is the unit of work of a build.
//
// Concrete kinds embed *BaseTarget, which supplies identity, dependencies and
// the default Clean and ImplicitInputs, and implement Run themselves.
type Target interface {
	// Base returns the shared state of the target.
	Base() *BaseTarget

	// Run performs the build action. Returning false with a nil error reports
	// that nothing actually needed doing; it has no effect on scheduling.
	Run(ctx context.Context, rc *RunContext) (bool, error)

	// Clean removes the output and the private scratch directory.
	// Overrides must still release the scratch directory.
	Clean(ctx context.Context, rc *RunContext) error

	// ImplicitInputs returns the non-file inputs whose change forces a rebuild.
	// The result must be sorted and must only depend on already resolved state.
	ImplicitInputs(ctx context.Context, rc ResolveContext) ([]string, error)
}

// RunContext is handed to Run and Clean.
type RunContext struct {
	// Resolve gives access to dependency resolution for the current build phase.
	Resolve ResolveContext
	// ScratchDir is the private working directory owned by the target.
	ScratchDir string
	// Output receives anything the target wants to surface, such as process output.
	Output io.Writer
}

// Root returns the build root.
func (rc *RunContext) Root() string {
	return rc.Resolve.Root()
}

// Options is a set of named option values.
type Options map[string]string

// MergeOptions returns defaults overlaid with overrides. Neither input is modified.
func MergeOptions(defaults, overrides Options) Options {
	merged := make(Options, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// BaseTarget holds the state shared by every target kind.
type BaseTarget struct {
	name     string
	typeName string
	loc      Location
	deps     PathSet
	tags     []string
	options  Options
	priority float64
	retries  int
	backoff  time.Duration

	path string
}

// NewBaseTarget creates the shared state of a target.
// The name is the declared output path, possibly holding ${PROPERTY} placeholders;
// a trailing separator declares a directory output.
func NewBaseTarget(typeName, name string, loc Location, deps PathSet) *BaseTarget {
	if deps == nil {
		deps = EmptyPathSet{}
	}
	return &BaseTarget{
		name:     name,
		typeName: typeName,
		loc:      loc,
		deps:     deps,
		options:  Options{},
		backoff:  DefaultInitialBackoff,
	}
}

// Base returns b. It lets concrete kinds satisfy Target by embedding.
func (b *BaseTarget) Base() *BaseTarget { return b }

// Name returns the declared, unexpanded name.
func (b *BaseTarget) Name() string { return b.name }

// TypeName returns the kind of target.
func (b *BaseTarget) TypeName() string { return b.typeName }

// Location returns where the target was declared.
func (b *BaseTarget) Location() Location { return b.loc }

// Dependencies returns the dependency set supplied at construction.
func (b *BaseTarget) Dependencies() PathSet { return b.deps }

// Tags returns the sorted tag set.
func (b *BaseTarget) Tags() []string { return b.tags }

// Priority returns the declared priority.
func (b *BaseTarget) Priority() float64 { return b.priority }

// Retries returns the number of retries after a failed run.
func (b *BaseTarget) Retries() int { return b.retries }

// InitialBackoff returns the delay before the first retry.
func (b *BaseTarget) InitialBackoff() time.Duration { return b.backoff }

// Options returns the effective options. Callers must not modify the map.
func (b *BaseTarget) Options() Options { return b.options }

// Path returns the resolved absolute output path; directories end with a separator.
// It is empty until ResolvePath succeeds.
func (b *BaseTarget) Path() string { return b.path }

// IsDir reports whether the target produces a directory.
func (b *BaseTarget) IsDir() bool {
	return strings.HasSuffix(b.name, "/")
}

// ID returns a filesystem-safe identifier derived from the unexpanded name.
func (b *BaseTarget) ID() string {
	return SafeID(b.name)
}

// SetPriority sets the declared priority.
func (b *BaseTarget) SetPriority(p float64) error {
	if p < 0 || math.IsNaN(p) {
		return zerr.With(zerr.With(ErrNegativePriority, "target", b.name), "priority", p)
	}
	b.priority = p
	return nil
}

// SetRetryPolicy sets the retry count and the delay before the first retry.
// A zero initial delay keeps the default.
func (b *BaseTarget) SetRetryPolicy(retries int, initial time.Duration) error {
	if retries < 0 {
		return zerr.With(ErrNegativeRetries, "target", b.name)
	}
	b.retries = retries
	if initial > 0 {
		b.backoff = initial
	}
	return nil
}

// AddTags adds tags to the target.
func (b *BaseTarget) AddTags(tags ...string) {
	for _, tag := range tags {
		if tag != "" && !slices.Contains(b.tags, tag) {
			b.tags = append(b.tags, tag)
		}
	}
	slices.Sort(b.tags)
}

// SetOptions replaces the effective options.
func (b *BaseTarget) SetOptions(opts Options) {
	b.options = MergeOptions(nil, opts)
}

// ResolvePath expands placeholders in the name, validates the result and stores
// the absolute output path. Repeated calls return the cached path.
func (b *BaseTarget) ResolvePath(root string, props map[string]string) (string, error) {
	if b.path != "" {
		return b.path, nil
	}

	if strings.TrimSpace(b.name) == "" {
		return "", zerr.With(ErrInvalidTargetName, "location", b.loc.String())
	}

	expanded, err := ExpandProperties(b.name, props)
	if err != nil {
		return "", zerr.With(err, "location", b.loc.String())
	}

	abs, err := ResolveOutputPath(root, expanded)
	if err != nil {
		return "", zerr.With(zerr.With(err, "target", b.name), "location", b.loc.String())
	}

	b.path = abs
	return abs, nil
}

// Clean removes the output, file or directory, and the scratch directory.
func (b *BaseTarget) Clean(_ context.Context, rc *RunContext) error {
	var errs error
	if b.path != "" {
		if err := os.RemoveAll(strings.TrimSuffix(b.path, string(filepath.Separator))); err != nil {
			errs = errors.Join(errs, zerr.With(zerr.Wrap(err, ErrCleanFailed.Error()), "path", b.path))
		}
	}
	if rc != nil && rc.ScratchDir != "" {
		if err := os.RemoveAll(rc.ScratchDir); err != nil {
			errs = errors.Join(errs, zerr.With(zerr.Wrap(err, ErrCleanFailed.Error()), "path", rc.ScratchDir))
		}
	}
	return errs
}

// ImplicitInputs returns one entry per resolved dependency path and one per option.
func (b *BaseTarget) ImplicitInputs(_ context.Context, rc ResolveContext) ([]string, error) {
	paths, err := b.deps.Resolve(rc)
	if err != nil {
		return nil, err
	}

	inputs := make([]string, 0, len(paths)+len(b.options))
	for _, p := range paths {
		inputs = append(inputs, "src: "+RelativeTo(rc.Root(), p))
	}
	inputs = append(inputs, b.OptionInputs()...)
	slices.Sort(inputs)
	return inputs, nil
}

// OptionInputs renders the effective options as implicit inputs.
func (b *BaseTarget) OptionInputs() []string {
	inputs := make([]string, 0, len(b.options))
	for k, v := range b.options {
		inputs = append(inputs, "option "+k+"="+v)
	}
	slices.Sort(inputs)
	return inputs
}

// String returns the declared name.
func (b *BaseTarget) String() string { return b.name }

// SafeID turns a name into a filesystem-safe identifier. Distinct names never
// share an identifier because a hash of the raw name is appended.
func SafeID(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	clean := strings.Trim(sb.String(), "._")
	if len(clean) > 64 {
		clean = clean[:64]
	}
	return clean + "-" + strconv.FormatUint(xxhash.Sum64String(name), 16)
}

// disallowedPathChars are rejected in output paths on every platform.
const disallowedPathChars = "<>:\"|?*\\\x00"

// ResolveOutputPath joins name onto root and validates the result.
// A trailing separator on name is preserved.
func ResolveOutputPath(root, name string) (string, error) {
	if i := strings.IndexAny(name, disallowedPathChars); i >= 0 {
		return "", zerr.With(zerr.With(ErrInvalidPathCharacter, "path", name), "character", strconv.QuoteRune(rune(name[i])))
	}
	for _, r := range name {
		if r < 0x20 {
			return "", zerr.With(zerr.With(ErrInvalidPathCharacter, "path", name), "character", strconv.QuoteRune(r))
		}
	}

	isDir := strings.HasSuffix(name, "/")
	for _, part := range strings.Split(strings.TrimSuffix(name, "/"), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasSuffix(part, ".") || strings.HasSuffix(part, " ") {
			return "", zerr.With(zerr.With(ErrInvalidPathComponent, "path", name), "component", part)
		}
	}

	abs := filepath.FromSlash(name)
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, abs)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(filepath.Clean(root), abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", zerr.With(ErrOutputPathOutsideRoot, "path", name)
	}

	if isDir {
		abs += string(filepath.Separator)
	}
	return abs, nil
}

// RelativeTo renders p relative to root when it lies below it, keeping a
// trailing separator.
func RelativeTo(root, p string) string {
	trimmed := strings.TrimSuffix(p, string(filepath.Separator))
	rel, err := filepath.Rel(root, trimmed)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	rel = filepath.ToSlash(rel)
	if strings.HasSuffix(p, string(filepath.Separator)) {
		rel += "/"
	}
	return rel
}
