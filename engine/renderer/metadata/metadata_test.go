package metadata

import (
	"testing"

	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangle() *Mesh {
	return NewMesh("tri", []math.Vec3{{X: 0}, {X: 1}, {Y: 1}}, []uint16{0, 1, 2})
}

func TestMeshVertexDescriptor(t *testing.T) {
	m := triangle()
	assert.Equal(t, "float3 a_position", m.VertexDescriptor())
	assert.Equal(t, uint32(12), m.Stride())

	m.SetTexcoords(0, []math.Vec2{{}, {X: 1}, {Y: 1}})
	m.SetFloatAttribute("b_weight", []float32{1, 1, 1})
	m.SetFloatAttribute("a_weight", []float32{0, 0, 0})
	assert.Equal(t, "float3 a_position float2 a_texcoord float a_weight float b_weight", m.VertexDescriptor())
	assert.Equal(t, uint32(28), m.Stride())

	data := m.Interleave()
	require.Len(t, data, 3*7)
	// second vertex: position, uv, a_weight, b_weight
	assert.Equal(t, []float32{1, 0, 0, 1, 0, 0, 1}, data[7:14])
}

func TestMeshConsistency(t *testing.T) {
	m := triangle()
	assert.True(t, m.IsConsistent())

	m.SetNormals([]math.Vec3{{Z: 1}})
	assert.False(t, m.IsConsistent())

	m.SetNormals(nil)
	m.SetIndices([]uint16{0, 1, 3})
	assert.False(t, m.IsConsistent())
}

func TestMeshFlags(t *testing.T) {
	m := triangle()
	assert.True(t, m.IsModified())
	assert.True(t, m.IsDirty())

	m.ClearModified()
	m.ClearDirty()
	m.SetPositions(m.Positions)
	assert.True(t, m.IsModified())
	assert.True(t, m.IsDirty())
}

func TestRenderModesKey(t *testing.T) {
	a := DefaultRenderModes()
	b := DefaultRenderModes()
	assert.Equal(t, a.Key(), b.Key())

	b.RenderingOrder = RenderingOrderOverlay
	assert.Equal(t, a.Key(), b.Key(), "rendering order only affects sorting")

	b.DepthTest = false
	assert.NotEqual(t, a.Key(), b.Key())

	c := DefaultRenderModes()
	c.Stencil.Reference = 3
	assert.Equal(t, a.Key(), c.Key(), "disabled stencil state is ignored")
	c.Stencil.Enabled = true
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestComputeFingerprint(t *testing.T) {
	modes := DefaultRenderModes()
	textured := NewMaterial("a", ShaderTypeTexture)
	other := NewMaterial("b", ShaderTypeTexture)
	unlit := NewMaterial("c", ShaderTypeUnlit)
	layout := triangle().VertexDescriptor()

	assert.Equal(t, ComputeFingerprint(modes, textured, layout), ComputeFingerprint(modes, other, layout))
	assert.NotEqual(t, ComputeFingerprint(modes, textured, layout), ComputeFingerprint(modes, unlit, layout))
	assert.NotEqual(t, ComputeFingerprint(modes, textured, layout), ComputeFingerprint(modes, textured, layout+" float x"))

	custom1 := NewMaterial("d", ShaderTypeTexture)
	custom1.SetShader(ShaderTypeCustom, 1)
	custom2 := NewMaterial("e", ShaderTypeTexture)
	custom2.SetShader(ShaderTypeCustom, 2)
	assert.NotEqual(t, ComputeFingerprint(modes, custom1, layout), ComputeFingerprint(modes, custom2, layout))
}

func TestDrawableState(t *testing.T) {
	m := NewMaterial("m", ShaderTypeTexture)
	d := NewDrawable("d", triangle(), m, DefaultRenderModes(), nil)
	assert.Equal(t, StateDirty, d.State())

	d.Passes[0].MarkBuilt("fp", 1, 0, m)
	m.ClearDirty()
	assert.Equal(t, GeometryDirty, d.State())

	d.Mesh.ClearModified()
	assert.Equal(t, TransformOnlyDirty, d.State())

	d.MarkTransformClean()
	assert.Equal(t, Clean, d.State())

	d.Transform.Translate(math.NewVec3(1, 0, 0))
	assert.Equal(t, TransformOnlyDirty, d.State())
	d.MarkTransformClean()

	m.SetDiffuseColour(math.NewVec4(1, 0, 0, 1))
	assert.Equal(t, StateDirty, d.State())
	d.Passes[0].MarkBuilt("fp", 1, 0, m)
	m.ClearDirty()
	assert.Equal(t, Clean, d.State())

	d.Passes[0].Invalidate()
	assert.Equal(t, StateDirty, d.State())
	assert.Equal(t, "state_dirty", d.State().String())
}

func TestRenderStateMaterialOverride(t *testing.T) {
	m := NewMaterial("m", ShaderTypeTexture)
	pass := NewRenderPass(m, DefaultRenderModes())
	rs := NewRenderState()
	assert.Same(t, m, rs.MaterialFor(pass))

	override := NewMaterial("shadow", ShaderTypeUnlit)
	rs.MaterialOverride = override
	assert.Same(t, override, rs.MaterialFor(pass))
}

func TestTextureReadiness(t *testing.T) {
	m := NewMaterial("m", ShaderTypeTexture)
	assert.True(t, m.TexturesReady())

	tex := NewTexture("albedo")
	m.SetTexture("main_texture", tex)
	assert.False(t, m.TexturesReady())
	tex.SetReady(true)
	assert.True(t, m.TexturesReady())
}
