package renderer

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/pipeline"
	"github.com/spaghettifunk/tessera/engine/renderer/shaders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCompiler struct {
	compiled int
	fail     bool
}

func (c *countingCompiler) CompilePipeline(desc *pipeline.Descriptor) (interface{}, error) {
	if c.fail {
		return nil, errors.New("compile error")
	}
	c.compiled++
	return c.compiled, nil
}

func (c *countingCompiler) DestroyPipeline(interface{}) {}

func newTestValidator() (*Validator, *shaders.Registry, *countingCompiler) {
	compiler := &countingCompiler{}
	registry := shaders.NewRegistry()
	return NewValidator(registry, pipeline.NewCache(compiler), shaders.SequentialLocations), registry, compiler
}

func testDrawable(material *metadata.Material) *metadata.Drawable {
	mesh := metadata.NewMesh("tri", []math.Vec3{{X: 0}, {X: 1}, {Y: 1}}, []uint16{0, 1, 2})
	mesh.SetTexcoords(0, []math.Vec2{{X: 0}, {X: 1}, {Y: 1}})
	return metadata.NewDrawable("tri", mesh, material, metadata.DefaultRenderModes(), nil)
}

func TestValidatorStaleThenValid(t *testing.T) {
	v, _, compiler := newTestValidator()
	d := testDrawable(metadata.NewMaterial("m", metadata.ShaderTypeTexture))
	rs := metadata.NewRenderState()

	assert.Equal(t, Stale, v.IsValid(d, rs))
	assert.NotEqual(t, metadata.NoPipeline, d.Passes[0].Pipeline)
	assert.NotEqual(t, metadata.NoFingerprint, d.Fingerprint())

	d.Mesh.ClearModified()
	assert.Equal(t, Valid, v.IsValid(d, rs))
	assert.Equal(t, metadata.TransformOnlyDirty, d.State())
	d.MarkTransformClean()
	assert.Equal(t, metadata.Clean, d.State())
	assert.Equal(t, 1, compiler.compiled)
}

func TestValidatorRebuildTriggers(t *testing.T) {
	v, registry, compiler := newTestValidator()
	material := metadata.NewMaterial("m", metadata.ShaderTypeTexture)
	d := testDrawable(material)
	rs := metadata.NewRenderState()
	require.Equal(t, Stale, v.IsValid(d, rs))
	d.Mesh.ClearModified()
	first := d.Passes[0].Pipeline

	t.Run("modes change", func(t *testing.T) {
		modes := d.Modes()
		modes.CullFace = metadata.FaceCullModeNone
		d.Passes[0].SetModes(modes)
		assert.Equal(t, Stale, v.IsValid(d, rs))
		assert.NotEqual(t, first, d.Passes[0].Pipeline)
		assert.Equal(t, Valid, v.IsValid(d, rs))
	})

	t.Run("material change", func(t *testing.T) {
		material.MarkDirty()
		assert.Equal(t, Stale, v.IsValid(d, rs))
		assert.Equal(t, Valid, v.IsValid(d, rs))
	})

	t.Run("binding registered", func(t *testing.T) {
		shader, err := registry.Lookup(material)
		require.NoError(t, err)
		before := compiler.compiled
		shader.Bindings.AddUniform("u_time", "u_time", "float")
		assert.Equal(t, Stale, v.IsValid(d, rs))
		assert.Equal(t, before+1, compiler.compiled)
		b, ok := shader.Bindings.Lookup(shaders.UniformBinding, "u_time")
		require.True(t, ok)
		assert.NotEqual(t, shaders.UnresolvedLocation, b.Location)
	})
}

func TestValidatorInvalid(t *testing.T) {
	rs := metadata.NewRenderState()

	t.Run("no mesh", func(t *testing.T) {
		v, _, _ := newTestValidator()
		d := testDrawable(metadata.NewMaterial("m", metadata.ShaderTypeTexture))
		d.Mesh = nil
		assert.Equal(t, Invalid, v.IsValid(d, rs))
	})

	t.Run("unknown custom shader", func(t *testing.T) {
		v, _, _ := newTestValidator()
		m := metadata.NewMaterial("m", metadata.ShaderTypeCustom)
		m.SetShader(metadata.ShaderTypeCustom, 42)
		assert.Equal(t, Invalid, v.IsValid(testDrawable(m), rs))
	})

	t.Run("pipeline build failure", func(t *testing.T) {
		v, _, compiler := newTestValidator()
		compiler.fail = true
		d := testDrawable(metadata.NewMaterial("m", metadata.ShaderTypeTexture))
		assert.Equal(t, Invalid, v.IsValid(d, rs))
		assert.True(t, v.AllBuildsFailed())
		assert.Equal(t, metadata.NoPipeline, d.Passes[0].Pipeline)

		compiler.fail = false
		v.BeginFrame()
		assert.Equal(t, Stale, v.IsValid(d, rs))
		assert.False(t, v.AllBuildsFailed())
	})
}

func TestValidatorMaterialOverride(t *testing.T) {
	v, _, _ := newTestValidator()
	d := testDrawable(metadata.NewMaterial("m", metadata.ShaderTypeTexture))
	rs := metadata.NewRenderState()
	require.Equal(t, Stale, v.IsValid(d, rs))
	d.Mesh.ClearModified()

	override := metadata.NewMaterial("depth", metadata.ShaderTypeUnlit)
	tex := metadata.NewTexture("pending")
	override.SetTexture("t", tex)
	rs.MaterialOverride = override
	assert.Equal(t, Invalid, v.IsValid(d, rs))

	tex.SetReady(true)
	assert.Equal(t, Stale, v.IsValid(d, rs))
}

func TestSortDrawables(t *testing.T) {
	opaque := metadata.NewMaterial("opaque", metadata.ShaderTypeTexture)
	glass := metadata.NewMaterial("glass", metadata.ShaderTypeTexture)
	transparent := metadata.DefaultRenderModes()
	transparent.RenderingOrder = metadata.RenderingOrderTransparent
	background := metadata.DefaultRenderModes()
	background.RenderingOrder = metadata.RenderingOrderBackground

	newAt := func(name string, m *metadata.Material, modes metadata.RenderModes, distance float32) *metadata.Drawable {
		d := metadata.NewDrawable(name, metadata.NewMesh(name, nil, nil), m, modes, nil)
		d.CameraDistance = distance
		return d
	}
	ds := []*metadata.Drawable{
		newAt("glass-near", glass, transparent, 1),
		newAt("opaque-far", opaque, metadata.DefaultRenderModes(), 10),
		newAt("glass-far", glass, transparent, 9),
		newAt("sky", opaque, background, 100),
		newAt("opaque-near", opaque, metadata.DefaultRenderModes(), 2),
	}
	SortDrawables(ds)

	var names []string
	for _, d := range ds {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"sky", "opaque-near", "opaque-far", "glass-far", "glass-near"}, names)
}

func TestSortDrawablesGroupsSameNamedInstances(t *testing.T) {
	first := metadata.NewMaterial("brick", metadata.ShaderTypeTexture)
	second := metadata.NewMaterial("brick", metadata.ShaderTypeTexture)
	second.Generation = first.Generation
	require.NotEqual(t, first.ID, second.ID)

	var ds []*metadata.Drawable
	for i := 0; i < 6; i++ {
		m := first
		if i%2 == 1 {
			m = second
		}
		d := metadata.NewDrawable("brick", metadata.NewMesh("brick", nil, nil), m, metadata.DefaultRenderModes(), nil)
		d.CameraDistance = float32(6 - i)
		ds = append(ds, d)
	}
	SortDrawables(ds)

	runs := 1
	for i := 1; i < len(ds); i++ {
		if ds[i].Material() != ds[i-1].Material() {
			runs++
		}
	}
	assert.Equal(t, 2, runs, "each instance forms one run")
}
