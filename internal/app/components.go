package app

import (
	"go.trai.ch/kiln/internal/adapters/config" //nolint:depguard // Wired in app layer
	"go.trai.ch/kiln/internal/adapters/logger" //nolint:depguard // Wired in app layer
	"go.trai.ch/kiln/internal/core/ports"
)

// Components contains the initialized application components the CLI needs.
type Components struct {
	App      *App
	Logger   *logger.Logger
	Settings *config.Settings
	// Tracker kills the processes still running when the CLI gives up.
	Tracker ports.ProcessTracker
}
