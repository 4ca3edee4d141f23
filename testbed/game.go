package testbed

import (
	"github.com/spaghettifunk/tessera/engine"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

const gridSize = 8

type TestGame struct {
	*engine.Game
}

type gameState struct {
	elapsed float64

	width  uint32
	height uint32

	bricks    *metadata.Material
	hud       *metadata.Material
	water     *metadata.Material
	wave      *metadata.Mesh
	drawables []*metadata.Drawable
	spinning  []*metadata.Drawable
}

func NewTestGame(config *core.Config) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				StartWidth:  1280,
				StartHeight: 720,
				Config:      config,
			},
			State: &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func quadMesh(name string) *metadata.Mesh {
	mesh := metadata.NewMesh(name, []math.Vec3{
		{X: -0.5, Y: -0.5}, {X: 0.5, Y: -0.5}, {X: 0.5, Y: 0.5}, {X: -0.5, Y: 0.5},
	}, []uint16{0, 1, 2, 2, 3, 0})
	mesh.SetTexcoords(0, []math.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}})
	return mesh
}

// Initialize builds a grid of textured quads that merge into one draw,
// a few unlit overlay quads drawn one by one and a water strip whose
// mesh changes every frame.
func (g *TestGame) Initialize(r *renderer.Renderer) error {
	core.LogDebug("TestGame Initialize fn....")
	state := g.State.(*gameState)

	brickTexture := metadata.NewTexture("bricks")
	brickTexture.SetReady(true)
	state.bricks = metadata.NewMaterial("bricks", metadata.ShaderTypeTexture)
	state.bricks.SetTexture("main_texture", brickTexture)

	state.hud = metadata.NewMaterial("hud", metadata.ShaderTypeUnlit)
	state.hud.SetDiffuseColour(math.NewVec4(1, 0.8, 0.2, 1))

	// the bindings watcher may already know "water", otherwise it shows up
	// once water.bindings.toml is dropped in the bindings directory
	water := r.Registry().RegisterCustom("water", true)
	state.water = metadata.NewMaterial("water", metadata.ShaderTypeCustom)
	state.water.SetShader(metadata.ShaderTypeCustom, water.ID)

	for y := 0; y < gridSize; y++ {
		for x := 0; x < gridSize; x++ {
			d := metadata.NewDrawable("brick", quadMesh("brick"), state.bricks, metadata.DefaultRenderModes(),
				math.TransformFromPosition(math.NewVec3(float32(x)*1.1, float32(y)*1.1, -10)))
			state.drawables = append(state.drawables, d)
			if (x+y)%5 == 0 {
				state.spinning = append(state.spinning, d)
			}
		}
	}

	overlay := metadata.DefaultRenderModes()
	overlay.RenderingOrder = metadata.RenderingOrderOverlay
	overlay.DepthTest = false
	for i := 0; i < 3; i++ {
		state.drawables = append(state.drawables, metadata.NewDrawable("hud", quadMesh("hud"), state.hud, overlay,
			math.TransformFromPosition(math.NewVec3(float32(i)*0.3-0.3, 0.8, 0))))
	}

	state.wave = quadMesh("wave")
	state.drawables = append(state.drawables, metadata.NewDrawable("wave", state.wave, state.water,
		metadata.DefaultRenderModes(), math.TransformFromPosition(math.NewVec3(0, -2, -8))))

	core.LogInfo("testbed scene has %d drawables", len(state.drawables))
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	state.elapsed += deltaTime

	rotation := math.NewQuatFromAxisAngle(math.NewVec3(0, 0, 1), float32(0.5*deltaTime), false)
	for _, d := range state.spinning {
		d.Transform.Rotate(rotation)
	}

	// ripple the water strip, the batch holding it gets rebuilt
	h := 0.1 * math.Sin(float32(state.elapsed)*2)
	state.wave.SetPositions([]math.Vec3{
		{X: -0.5, Y: -0.5}, {X: 0.5, Y: -0.5 + h}, {X: 0.5, Y: 0.5 + h}, {X: -0.5, Y: 0.5},
	})
	return nil
}

func (g *TestGame) Render(rs *metadata.RenderState, deltaTime float64) ([]*metadata.Drawable, error) {
	state := g.State.(*gameState)
	height := state.height
	if height == 0 {
		height = 1
	}
	aspect := float32(state.width) / float32(height)
	rs.Projection = math.NewMat4Perspective(math.DegToRad(45), aspect, 0.1, 1000)
	eye := math.NewVec3(4, 4, 5)
	rs.View = math.NewMat4LookAt(eye, math.NewVec3(4, 4, -10), math.NewVec3(0, 1, 0))
	rs.CameraPosition = eye

	// no culling, everything is visible
	out := make([]*metadata.Drawable, len(state.drawables))
	for i, d := range state.drawables {
		d.CameraDistance = d.Transform.GetWorld().Translation().Distance(eye)
		out[i] = d
	}
	return out, nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown(r *renderer.Renderer) error {
	state := g.State.(*gameState)
	for _, d := range state.drawables {
		r.Release(d, true)
	}
	core.LogInfo("testbed released %d drawables", len(state.drawables))
	return nil
}
