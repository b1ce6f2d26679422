// Package config provides the kiln.yaml loader and the environment settings.
package config

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.trai.ch/kiln/internal/adapters/targets"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
	Runner ports.CommandRunner
	// Timeout is the command timeout used when neither the target nor the
	// defaults set one.
	Timeout time.Duration
}

// NewLoader creates a new Loader.
func NewLoader(logger ports.Logger, runner ports.CommandRunner, timeout time.Duration) *Loader {
	return &Loader{Logger: logger, Runner: runner, Timeout: timeout}
}

// Load finds kiln.yaml in cwd or one of its parents and evaluates it.
// Every error is classified as a configuration error.
func (l *Loader) Load(cwd string) (*ports.Project, error) {
	path, err := findBuildfile(cwd)
	if err != nil {
		return nil, domain.Classify(err, domain.ErrConfiguration)
	}
	return l.LoadFile(path)
}

// LoadFile evaluates the build file at path.
func (l *Loader) LoadFile(path string) (*ports.Project, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, domain.Classify(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), domain.ErrConfiguration)
	}
	reg, err := l.load(path)
	if err != nil {
		return nil, domain.Classify(zerr.With(err, "file", path), domain.ErrConfiguration)
	}
	return &ports.Project{File: path, Registry: reg}, nil
}

func (l *Loader) load(path string) (*domain.Registry, error) {
	var bf Buildfile
	if err := readAndUnmarshalYAML(path, &bf); err != nil {
		return nil, err
	}

	root := resolveRoot(path, bf.Root)
	p := &parser{file: relativeFile(root, path), props: bf.Properties}

	rb := domain.NewRegistryBuilder()
	for i := range bf.Targets {
		t, err := l.buildTarget(p, &bf.Targets[i], &bf.Defaults)
		if err != nil {
			return nil, err
		}
		if err := rb.Add(t); err != nil {
			return nil, err
		}
	}
	if err := addGroups(p, rb, &bf.Groups); err != nil {
		return nil, err
	}

	if rb.Len() == 0 {
		l.Logger.Warn(p.file + " declares no targets")
	}
	l.Logger.Debug("loaded " + strconv.Itoa(rb.Len()) + " targets from " + path)

	return rb.Freeze(root, bf.Properties)
}

func (l *Loader) buildTarget(p *parser, n *yaml.Node, defaults *DefaultsDTO) (domain.Target, error) {
	if n.Kind != yaml.MappingNode {
		return nil, p.fail(n, zerr.With(domain.ErrConfigParseFailed, "expected", "target mapping"))
	}
	if err := p.checkKeys(n, targetKeys); err != nil {
		return nil, err
	}
	var dto TargetDTO
	if err := n.Decode(&dto); err != nil {
		return nil, p.fail(n, zerr.Wrap(err, domain.ErrConfigParseFailed.Error()))
	}

	deps, err := p.dependencies(dto.Deps)
	if err != nil {
		return nil, zerr.With(err, "target", dto.Name)
	}

	t, err := l.newTarget(p, n, &dto, defaults, deps)
	if err != nil {
		return nil, zerr.With(err, "target", dto.Name)
	}

	b := t.Base()
	if err := b.SetPriority(dto.Priority); err != nil {
		return nil, p.fail(n, err)
	}
	retries := defaults.Retries
	if dto.Retries != nil {
		retries = *dto.Retries
	}
	backoff := dto.Backoff
	if backoff == 0 {
		backoff = defaults.Backoff
	}
	if err := b.SetRetryPolicy(retries, backoff); err != nil {
		return nil, p.fail(n, err)
	}
	opts, err := p.expandMap(n, dto.Options)
	if err != nil {
		return nil, err
	}
	b.SetOptions(domain.MergeOptions(defaults.Options, opts))
	b.AddTags(dto.Tags...)

	return t, nil
}

func (l *Loader) newTarget(
	p *parser,
	n *yaml.Node,
	dto *TargetDTO,
	defaults *DefaultsDTO,
	deps domain.PathSet,
) (domain.Target, error) {
	loc := p.loc(n)
	switch dto.Type {
	case "", targets.CommandTypeName:
		args, err := commandArgs(dto)
		if err != nil {
			return nil, p.fail(n, err)
		}
		if args, err = p.expandAll(n, args); err != nil {
			return nil, err
		}
		env, err := p.expandMap(n, dto.Env)
		if err != nil {
			return nil, err
		}
		timeout := firstPositive(dto.Timeout, defaults.Timeout, l.Timeout)
		c, err := targets.NewCommand(dto.Name, loc, deps, l.Runner, args, env, timeout)
		if err != nil {
			return nil, err
		}
		return c, nil
	case targets.CopyTypeName:
		return targets.NewCopy(dto.Name, loc, deps), nil
	case targets.WriteTypeName:
		return targets.NewWrite(dto.Name, loc, deps, dto.Content), nil
	case targets.MkdirTypeName:
		return targets.NewMkdir(dto.Name, loc, deps), nil
	default:
		return nil, p.fail(field(n, "type"), zerr.With(domain.ErrUnknownTargetType, "type", dto.Type))
	}
}

func commandArgs(dto *TargetDTO) ([]string, error) {
	switch {
	case dto.Cmd != "" && len(dto.Args) > 0:
		return nil, zerr.With(domain.ErrConfigParseFailed, "conflict", "cmd and args are mutually exclusive")
	case dto.Cmd != "":
		return targets.SplitCommandLine(dto.Cmd)
	case len(dto.Args) > 0:
		return slices.Clone(dto.Args), nil
	default:
		return nil, domain.ErrEmptyCommand
	}
}

// firstPositive returns the first positive duration.
func firstPositive(ds ...time.Duration) time.Duration {
	for _, d := range ds {
		if d > 0 {
			return d
		}
	}
	return 0
}

func addGroups(p *parser, rb *domain.RegistryBuilder, n *yaml.Node) error {
	switch n.Kind {
	case 0:
		return nil
	case yaml.MappingNode:
	default:
		return p.fail(n, zerr.With(domain.ErrConfigParseFailed, "expected", "groups mapping"))
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		var members []string
		if err := value.Decode(&members); err != nil {
			return p.fail(value, zerr.Wrap(err, domain.ErrConfigParseFailed.Error()))
		}
		if err := rb.AddGroup(key.Value, p.loc(key), members...); err != nil {
			return err
		}
	}
	return nil
}

// findBuildfile walks up from cwd to the filesystem root.
func findBuildfile(cwd string) (string, error) {
	dir := cwd
	for {
		path := filepath.Join(dir, domain.BuildFileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", zerr.With(domain.ErrConfigNotFound, "cwd", cwd)
}

func resolveRoot(configPath, configuredRoot string) string {
	configDir := filepath.Dir(configPath)
	if configuredRoot == "" {
		return filepath.Clean(configDir)
	}
	if filepath.IsAbs(configuredRoot) {
		return filepath.Clean(configuredRoot)
	}
	return filepath.Clean(filepath.Join(configDir, configuredRoot))
}

// relativeFile shortens the build file path used in locations.
func relativeFile(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

// readAndUnmarshalYAML reads a YAML file and unmarshals it into the target struct.
func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	// #nosec G304 -- configPath is discovered or given on the command line
	data, err := os.ReadFile(configPath)
	if err != nil {
		return zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return zerr.Wrap(err, domain.ErrConfigParseFailed.Error())
	}
	return nil
}
