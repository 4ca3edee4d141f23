package engine

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/tessera/engine/assets"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/shaders"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// how often the frame statistics are logged, in seconds
const statsInterval float64 = 5.0

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    atomic.Bool
	config       *core.Config

	backend      renderer.RendererBackend
	renderer     *renderer.Renderer
	registry     *shaders.Registry
	events       *core.EventBus
	assetManager *assets.AssetManager
	renderState  *metadata.RenderState

	width    uint32
	height   uint32
	clock    *core.Clock
	lastTime float64
	frames   uint64
}

func New(g *Game, backend renderer.RendererBackend) (*Engine, error) {
	if g.ApplicationConfig == nil {
		return nil, fmt.Errorf("game has no application config")
	}
	if g.ApplicationConfig.Config == nil {
		g.ApplicationConfig.Config = core.DefaultConfig()
	}
	registry := shaders.NewRegistry()
	events := core.NewEventBus()

	am, err := assets.NewAssetManager(registry, events)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       g.ApplicationConfig.Config,
		backend:      backend,
		registry:     registry,
		events:       events,
		assetManager: am,
		renderState:  metadata.NewRenderState(),
		clock:        core.NewClock(),
		width:        g.ApplicationConfig.StartWidth,
		height:       g.ApplicationConfig.StartHeight,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	core.SetLogLevel(e.config.Application.LogLevel)

	// register some events
	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_BINDINGS_CHANGED, e, e.onBindings)
	e.events.Register(core.EVENT_CODE_BINDINGS_REMOVED, e, e.onBindings)

	if err := e.backend.Initialize(e.gameInstance.ApplicationConfig.Name()); err != nil {
		return err
	}
	r, err := renderer.NewRenderer(e.config, e.backend, e.registry)
	if err != nil {
		return err
	}
	e.renderer = r

	if dir := e.config.Application.BindingsDir; dir != "" {
		if err := e.assetManager.Initialize(dir); err != nil {
			return err
		}
	}

	if err := e.gameInstance.FnInitialize(e.renderer); err != nil {
		return err
	}
	if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
		return err
	}
	e.currentStage = EngineStageInitialized
	return nil
}

// Run drives frames until Quit is called, MaxFrames is reached or a frame fails.
func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	metrics := e.renderer.Metrics()
	var lastReport float64

	for e.isRunning.Load() {
		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		if err := e.gameInstance.FnUpdate(delta); err != nil {
			return fmt.Errorf("game update failed: %w", err)
		}

		// Call the game's render routine.
		drawables, err := e.gameInstance.FnRender(e.renderState, delta)
		if err != nil {
			return fmt.Errorf("game render failed: %w", err)
		}
		renderer.SortDrawables(drawables)

		if err := e.renderer.RenderFrame(drawables, e.renderState); err != nil {
			if errors.Is(err, core.ErrAllPipelinesFailed) {
				return err
			}
			// a lost frame is not fatal, the next one retries
			core.LogError("frame %d: %s", e.renderer.FrameNumber(), err)
		}

		e.clock.Update()
		metrics.Update(e.clock.Elapsed() - currentTime)
		if currentTime-lastReport >= statsInterval {
			fps, ms := metrics.FPSAndFrameTime()
			c := metrics.Current
			core.LogInfo("%.0f fps (%.3f ms) draws=%d merged=%d skipped=%d pipelines=%d batches=%d",
				fps, ms, c.DrawCalls(), c.MergedDrawCalls, c.SkippedDrawables, e.renderer.Cache().Len(), len(e.renderer.Batches().Batches()))
			lastReport = currentTime
		}

		e.lastTime = currentTime
		e.frames++
		if limit := e.config.Application.MaxFrames; limit > 0 && e.frames >= limit {
			e.isRunning.Store(false)
		}
	}
	return nil
}

// Quit asks the frame loop to stop. Safe from any goroutine.
func (e *Engine) Quit() {
	e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	var errs []error
	if err := e.assetManager.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if e.renderer != nil {
		if e.gameInstance.FnShutdown != nil {
			if err := e.gameInstance.FnShutdown(e.renderer); err != nil {
				errs = append(errs, err)
			}
		}
		if err := e.renderer.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	e.currentStage = EngineStageUninitialized
	return errors.Join(errs...)
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

// Resize forwards a new framebuffer size to the game.
func (e *Engine) Resize(width, height uint32) error {
	if width == e.width && height == e.height {
		return nil
	}
	e.width = width
	e.height = height
	core.LogDebug("Framebuffer resize: %d, %d", width, height)
	return e.gameInstance.FnOnResize(width, height)
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Frames() uint64 {
	return e.frames
}

func (e *Engine) Renderer() *renderer.Renderer {
	return e.renderer
}

func (e *Engine) Events() *core.EventBus {
	return e.events
}

func (e *Engine) Registry() *shaders.Registry {
	return e.registry
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onBindings(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	core.LogDebug("shader '%s' bindings changed by %s", data.Name, data.Path)
	return false
}
