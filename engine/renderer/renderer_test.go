package renderer_test

import (
	"testing"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/headless"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/shaders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quad(name string, material *metadata.Material, x float32) *metadata.Drawable {
	mesh := metadata.NewMesh(name, []math.Vec3{
		{X: -0.5, Y: -0.5}, {X: 0.5, Y: -0.5}, {X: 0.5, Y: 0.5}, {X: -0.5, Y: 0.5},
	}, []uint16{0, 1, 2, 2, 3, 0})
	mesh.SetTexcoords(0, []math.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}})
	return metadata.NewDrawable(name, mesh, material, metadata.DefaultRenderModes(), math.TransformFromPosition(math.NewVec3(x, 0, 0)))
}

func quads(n int, material *metadata.Material) []*metadata.Drawable {
	out := make([]*metadata.Drawable, n)
	for i := range out {
		out[i] = quad("quad", material, float32(i))
	}
	return out
}

func newRenderer(t *testing.T, mutate func(*core.Config)) (*renderer.Renderer, *headless.Backend) {
	t.Helper()
	cfg := core.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	backend := headless.New()
	require.NoError(t, backend.Initialize("test"))
	r, err := renderer.NewRenderer(cfg, backend, shaders.NewRegistry())
	require.NoError(t, err)
	return r, backend
}

func TestRenderFrameMergesCompatibleDrawables(t *testing.T) {
	r, backend := newRenderer(t, nil)
	ds := quads(5, metadata.NewMaterial("bricks", metadata.ShaderTypeTexture))

	require.NoError(t, r.RenderFrame(ds, metadata.NewRenderState()))
	assert.Equal(t, 1, backend.DrawCalls())
	assert.Equal(t, uint32(1), r.Metrics().Current.MergedDrawCalls)
	assert.Equal(t, uint32(0), r.Metrics().Current.SingleDrawCalls)

	require.Len(t, r.Batches().Batches(), 1)
	b := r.Batches().Batches()[0]
	var draw headless.Command
	for _, c := range backend.LastFrame() {
		if c.Kind == headless.CmdDrawIndexed {
			draw = c
		}
		if c.Kind == headless.CmdPushTransforms {
			assert.Equal(t, 5, c.Matrices)
		}
	}
	assert.Equal(t, uint32(30), draw.IndexCount)
	assert.Equal(t, 20, b.VertexCount())
}

func TestRenderFrameReusesCachedState(t *testing.T) {
	r, backend := newRenderer(t, nil)
	ds := quads(4, metadata.NewMaterial("bricks", metadata.ShaderTypeTexture))
	rs := metadata.NewRenderState()

	require.NoError(t, r.RenderFrame(ds, rs))
	compiled := backend.Stats().PipelinesCompiled
	uploads := backend.Stats().Uploads
	require.Greater(t, compiled, 0)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.RenderFrame(ds, rs))
		assert.Equal(t, 1, backend.DrawCalls())
	}
	assert.Equal(t, compiled, backend.Stats().PipelinesCompiled)
	assert.Equal(t, uploads, backend.Stats().Uploads)
	for _, d := range ds {
		assert.Equal(t, renderer.Valid, r.Validator().IsValid(d, rs))
	}
}

func TestRenderFrameWithoutBatching(t *testing.T) {
	r, backend := newRenderer(t, func(c *core.Config) { c.Batching.Enabled = false })
	ds := quads(5, metadata.NewMaterial("bricks", metadata.ShaderTypeTexture))

	require.NoError(t, r.RenderFrame(ds, metadata.NewRenderState()))
	assert.Equal(t, 5, backend.DrawCalls())
	assert.Equal(t, uint32(5), r.Metrics().Current.SingleDrawCalls)
	assert.Empty(t, r.Batches().Batches())
}

func TestRenderFrameSkipsTexturesNotReady(t *testing.T) {
	r, backend := newRenderer(t, nil)
	tex := metadata.NewTexture("bricks.png")
	material := metadata.NewMaterial("bricks", metadata.ShaderTypeTexture)
	material.SetTexture("main_texture", tex)
	ds := quads(3, material)

	require.NoError(t, r.RenderFrame(ds, metadata.NewRenderState()))
	assert.Equal(t, 0, backend.DrawCalls())
	assert.Equal(t, uint32(3), r.Metrics().Current.SkippedDrawables)

	tex.SetReady(true)
	require.NoError(t, r.RenderFrame(ds, metadata.NewRenderState()))
	assert.Equal(t, 1, backend.DrawCalls())
	assert.Equal(t, uint32(0), r.Metrics().Current.SkippedDrawables)
}

func TestRenderFramePipelineFailure(t *testing.T) {
	t.Run("only the failing drawables are skipped", func(t *testing.T) {
		r, backend := newRenderer(t, nil)
		backend.FailShaders[metadata.ShaderTypeUnlit.String()] = true

		ds := append(quads(2, metadata.NewMaterial("bricks", metadata.ShaderTypeTexture)),
			quads(2, metadata.NewMaterial("hud", metadata.ShaderTypeUnlit))...)
		require.NoError(t, r.RenderFrame(ds, metadata.NewRenderState()))
		assert.Equal(t, 1, backend.DrawCalls())
		assert.Equal(t, uint32(2), r.Metrics().Current.SkippedDrawables)
		assert.Equal(t, uint32(2), r.Metrics().Current.PipelineFailures)

		// retried next frame
		delete(backend.FailShaders, metadata.ShaderTypeUnlit.String())
		require.NoError(t, r.RenderFrame(ds, metadata.NewRenderState()))
		assert.Equal(t, 3, backend.DrawCalls())
	})

	t.Run("every pipeline failing is fatal for the frame", func(t *testing.T) {
		r, backend := newRenderer(t, nil)
		backend.FailShaders[metadata.ShaderTypeUnlit.String()] = true

		ds := quads(2, metadata.NewMaterial("hud", metadata.ShaderTypeUnlit))
		assert.ErrorIs(t, r.RenderFrame(ds, metadata.NewRenderState()), core.ErrAllPipelinesFailed)
	})
}

func TestRenderFrameRenderMask(t *testing.T) {
	r, backend := newRenderer(t, nil)
	d := quad("right-eye-only", metadata.NewMaterial("m", metadata.ShaderTypeTexture), 0)
	modes := d.Modes()
	modes.RenderMask = metadata.RenderMaskRight
	d.Passes[0].SetModes(modes)

	rs := metadata.NewRenderState()
	rs.CameraMask = metadata.RenderMaskLeft
	require.NoError(t, r.RenderFrame([]*metadata.Drawable{d}, rs))
	assert.Equal(t, 0, backend.DrawCalls())
	assert.Equal(t, uint32(1), r.Metrics().Current.SkippedDrawables)
}

func TestRenderFrameHiddenMembersAreNotDrawn(t *testing.T) {
	hide := func(d *metadata.Drawable) {
		modes := d.Modes()
		modes.RenderMask = metadata.RenderMaskRight
		d.Passes[0].SetModes(modes)
	}
	leftEye := func() *metadata.RenderState {
		rs := metadata.NewRenderState()
		rs.CameraMask = metadata.RenderMaskLeft
		return rs
	}

	t.Run("unbatched", func(t *testing.T) {
		r, backend := newRenderer(t, nil)
		ds := quads(2, metadata.NewMaterial("hud", metadata.ShaderTypeUnlit))
		require.NoError(t, r.RenderFrame(ds, leftEye()))
		assert.Equal(t, 2, backend.DrawCalls())

		hide(ds[1])
		require.NoError(t, r.RenderFrame(ds, leftEye()))
		assert.Equal(t, 1, backend.DrawCalls())
		assert.Equal(t, uint32(1), r.Metrics().Current.SingleDrawCalls)
		assert.Equal(t, uint32(1), r.Metrics().Current.SkippedDrawables)
	})

	t.Run("merged", func(t *testing.T) {
		r, backend := newRenderer(t, nil)
		ds := quads(2, metadata.NewMaterial("bricks", metadata.ShaderTypeTexture))
		require.NoError(t, r.RenderFrame(ds, leftEye()))

		hide(ds[1])
		require.NoError(t, r.RenderFrame(ds, leftEye()))
		assert.Equal(t, 1, backend.DrawCalls())
		require.Len(t, r.Batches().FrameBatches(), 1)
		b := r.Batches().FrameBatches()[0]
		assert.Equal(t, 1, b.MemberCount())
		for _, c := range backend.LastFrame() {
			if c.Kind == headless.CmdDrawIndexed {
				assert.Equal(t, uint32(6), c.IndexCount)
			}
		}
	})

	t.Run("failed pipeline of an unbatched member", func(t *testing.T) {
		r, backend := newRenderer(t, nil)
		ds := quads(2, metadata.NewMaterial("hud", metadata.ShaderTypeUnlit))
		require.NoError(t, r.RenderFrame(ds, metadata.NewRenderState()))

		// a new fingerprint for ds[1] whose build fails
		modes := ds[1].Modes()
		modes.DepthTest = false
		ds[1].Passes[0].SetModes(modes)
		backend.FailShaders[metadata.ShaderTypeUnlit.String()] = true
		require.NoError(t, r.RenderFrame(ds, metadata.NewRenderState()))
		assert.Equal(t, 1, backend.DrawCalls())
		assert.Equal(t, uint32(1), r.Metrics().Current.PipelineFailures)
	})
}

func TestRenderFrameDrawsInSortedOrder(t *testing.T) {
	r, backend := newRenderer(t, nil)
	geometry := quads(2, metadata.NewMaterial("geo", metadata.ShaderTypeTexture))
	require.NoError(t, r.RenderFrame(geometry, metadata.NewRenderState()))

	sky := quad("sky", metadata.NewMaterial("sky", metadata.ShaderTypeTexture), 0)
	modes := sky.Modes()
	modes.RenderingOrder = metadata.RenderingOrderBackground
	sky.Passes[0].SetModes(modes)

	ds := append([]*metadata.Drawable{}, geometry...)
	ds = append(ds, sky)
	renderer.SortDrawables(ds)
	require.Same(t, sky, ds[0])
	require.NoError(t, r.RenderFrame(ds, metadata.NewRenderState()))

	var meshes []*metadata.Mesh
	for _, c := range backend.LastFrame() {
		if c.Kind == headless.CmdBindGeometry {
			meshes = append(meshes, c.Mesh)
		}
	}
	require.Len(t, meshes, 2)
	skyBatch, ok := r.Batches().Batch(sky.Batch)
	require.True(t, ok)
	assert.Same(t, skyBatch.Mesh(), meshes[0])
}

func TestRenderFrameNonBatchableDrawsIndividually(t *testing.T) {
	r, backend := newRenderer(t, nil)
	ds := quads(3, metadata.NewMaterial("hud", metadata.ShaderTypeUnlit))

	require.NoError(t, r.RenderFrame(ds, metadata.NewRenderState()))
	assert.Equal(t, 3, backend.DrawCalls())
	assert.Equal(t, uint32(3), r.Metrics().Current.SingleDrawCalls)
}

func TestRenderFrameDynamicDirtyRebuildsBatch(t *testing.T) {
	r, backend := newRenderer(t, nil)
	ds := quads(3, metadata.NewMaterial("water", metadata.ShaderTypeTexture))
	for _, d := range ds {
		d.Mesh.Dynamic = true
	}
	rs := metadata.NewRenderState()
	require.NoError(t, r.RenderFrame(ds, rs))
	live := backend.Stats().LiveGeometry

	ds[0].Mesh.SetPositions(ds[0].Mesh.Positions)
	require.NoError(t, r.RenderFrame(ds, rs))
	assert.Equal(t, 1, backend.DrawCalls())
	assert.Equal(t, live+1, backend.Stats().LiveGeometry, "old merged mesh is kept while frames are in flight")

	for i := 0; i < 3; i++ {
		require.NoError(t, r.RenderFrame(ds, rs))
	}
	assert.Equal(t, live, backend.Stats().LiveGeometry)
}

func TestShutdownReleasesEverything(t *testing.T) {
	r, backend := newRenderer(t, nil)
	ds := append(quads(3, metadata.NewMaterial("bricks", metadata.ShaderTypeTexture)),
		quads(2, metadata.NewMaterial("hud", metadata.ShaderTypeUnlit))...)
	require.NoError(t, r.RenderFrame(ds, metadata.NewRenderState()))

	require.NoError(t, r.Shutdown())
	stats := backend.Stats()
	assert.Equal(t, stats.PipelinesCompiled, stats.PipelinesDestroyed)
	assert.Equal(t, 0, r.Cache().Len())
	assert.Empty(t, r.Batches().Batches())
}
