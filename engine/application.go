package engine

import (
	"github.com/spaghettifunk/tessera/engine/core"
)

type ApplicationConfig struct {
	// Framebuffer starting width.
	StartWidth uint32
	// Framebuffer starting height.
	StartHeight uint32
	// Engine settings, usually read from tessera.toml.
	Config *core.Config
}

// Name is the application name handed to the backend.
func (c *ApplicationConfig) Name() string {
	if c.Config == nil || c.Config.Application.Name == "" {
		return "tessera"
	}
	return c.Config.Application.Name
}
