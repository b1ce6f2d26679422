package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Buildfile represents the structure of the kiln.yaml build file.
type Buildfile struct {
	Version    string            `yaml:"version"`
	Root       string            `yaml:"root"`
	Properties map[string]string `yaml:"properties"`
	Defaults   DefaultsDTO       `yaml:"defaults"`
	// Groups maps an atomic group name to its member target names.
	Groups yaml.Node `yaml:"groups"`
	// Targets is kept as raw nodes so every target can be given its line.
	Targets []yaml.Node `yaml:"targets"`
}

// DefaultsDTO holds values applied to every target that does not set them.
type DefaultsDTO struct {
	Options map[string]string `yaml:"options"`
	Timeout time.Duration     `yaml:"timeout"`
	Retries int               `yaml:"retries"`
	Backoff time.Duration     `yaml:"backoff"`
}

// TargetDTO represents a target definition in the build file.
type TargetDTO struct {
	Name     string            `yaml:"name"`
	Type     string            `yaml:"type"`
	Cmd      string            `yaml:"cmd"`
	Args     []string          `yaml:"args"`
	Env      map[string]string `yaml:"env"`
	Timeout  time.Duration     `yaml:"timeout"`
	Content  string            `yaml:"content"`
	Deps     []yaml.Node       `yaml:"deps"`
	Tags     []string          `yaml:"tags"`
	Priority float64           `yaml:"priority"`
	Retries  *int              `yaml:"retries"`
	Backoff  time.Duration     `yaml:"backoff"`
	Options  map[string]string `yaml:"options"`
}

// DependencyDTO is the mapping form of a dependency entry. Exactly one kind
// key must be present; the other keys qualify it.
type DependencyDTO struct {
	Target string `yaml:"target"`
	Tag    string `yaml:"tag"`
	Under  string `yaml:"under"`

	Glob    yaml.Node `yaml:"glob"`
	Root    string    `yaml:"root"`
	Exclude yaml.Node `yaml:"exclude"`

	Dir      string   `yaml:"dir"`
	Children []string `yaml:"children"`

	Prefix  string            `yaml:"prefix"`
	Rename  map[string]string `yaml:"rename"`
	Flatten bool              `yaml:"flatten"`
	Filter  yaml.Node         `yaml:"filter"`
	Deps    []yaml.Node       `yaml:"deps"`
}

var targetKeys = []string{
	"name", "type", "cmd", "args", "env", "timeout", "content", "deps",
	"tags", "priority", "retries", "backoff", "options",
}

var dependencyKinds = []string{
	"target", "tag", "under", "glob", "dir", "prefix", "rename", "flatten", "filter",
}

var dependencyKeys = append([]string{"root", "exclude", "children", "deps"}, dependencyKinds...)
