package headless

import (
	"testing"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBufferLifecycle(t *testing.T) {
	b := New()
	cb, fence, err := b.NewFrameSlot()
	require.NoError(t, err)
	require.NoError(t, fence.Wait(0), "new fences start signaled")

	mesh := metadata.NewMesh("tri", []math.Vec3{{X: 0}, {X: 1}, {Y: 1}}, []uint16{0, 1, 2})
	entry := &pipeline.Entry{Handle: 1, Native: &Pipeline{ID: 1}}

	assert.ErrorIs(t, cb.DrawIndexed(3, 1), ErrNotRecording)
	require.NoError(t, cb.Begin())
	assert.Error(t, cb.BindGeometry(mesh), "geometry must be uploaded first")
	require.NoError(t, b.UploadGeometry(mesh))
	require.NoError(t, cb.BindPipeline(entry))
	require.NoError(t, cb.BindGeometry(mesh))
	require.NoError(t, cb.PushTransforms(entry, []math.Mat4{math.NewMat4Identity()}))
	require.NoError(t, cb.DrawIndexed(3, 1))

	require.NoError(t, fence.Reset())
	assert.ErrorIs(t, fence.Wait(0), core.ErrFenceTimeout)
	assert.Error(t, b.Submit(cb, fence), "not ended")
	require.NoError(t, cb.End())
	require.NoError(t, b.Submit(cb, fence))
	require.NoError(t, fence.Wait(0))

	assert.Equal(t, 1, b.DrawCalls())
	assert.Len(t, b.LastFrame(), 4)
	assert.Equal(t, 1, b.Stats().LiveGeometry)

	b.ReleaseGeometry(mesh)
	assert.Equal(t, 0, b.Stats().LiveGeometry)
}

func TestCompilePipelineFailure(t *testing.T) {
	b := New()
	b.FailShaders["unlit"] = true

	_, err := b.CompilePipeline(&pipeline.Descriptor{ShaderName: "unlit"})
	assert.Error(t, err)
	native, err := b.CompilePipeline(&pipeline.Descriptor{ShaderName: "texture"})
	require.NoError(t, err)
	b.DestroyPipeline(native)
	assert.Equal(t, 1, b.Stats().PipelinesCompiled)
	assert.Equal(t, 1, b.Stats().PipelinesDestroyed)
}
