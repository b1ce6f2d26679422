// Package ports defines the core interfaces for the application.
package ports

import "go.trai.ch/kiln/internal/core/domain"

// Project is a loaded build file.
type Project struct {
	// File is the absolute path of the build file.
	File string
	// Registry holds the frozen targets.
	Registry *domain.Registry
}

// ConfigLoader defines the interface for loading the build configuration.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load discovers the build file starting at cwd and walking up,
	// evaluates it and returns the frozen registry.
	Load(cwd string) (*Project, error)

	// LoadFile evaluates the build file at path.
	LoadFile(path string) (*Project, error)
}
