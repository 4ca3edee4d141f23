package engine

import (
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

type Initialize func(r *renderer.Renderer) error
type Update func(deltaTime float64) error

// Render fills the render state and returns the visible drawables of the frame.
type Render func(rs *metadata.RenderState, deltaTime float64) ([]*metadata.Drawable, error)
type OnResize func(width uint32, height uint32) error
type Shutdown func(r *renderer.Renderer) error
