package batching

import (
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

type textureOnly struct{}

func (textureOnly) IsBatchable(m *metadata.Material) bool {
	return m != nil && m.ShaderType == metadata.ShaderTypeTexture
}

func quadMesh(indices []uint16) *metadata.Mesh {
	mesh := metadata.NewMesh("quad", []math.Vec3{
		{X: -0.5, Y: -0.5}, {X: 0.5, Y: -0.5}, {X: 0.5, Y: 0.5}, {X: -0.5, Y: 0.5},
	}, indices)
	mesh.SetTexcoords(0, []math.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}})
	return mesh
}

func meshWithVertices(n int, indices []uint16) *metadata.Mesh {
	positions := make([]math.Vec3, n)
	for i := range positions {
		positions[i] = math.NewVec3(float32(i), 0, 0)
	}
	return metadata.NewMesh("strip", positions, indices)
}

func drawable(name string, mesh *metadata.Mesh, material *metadata.Material) *metadata.Drawable {
	return metadata.NewDrawable(name, mesh, material, metadata.DefaultRenderModes(), math.TransformFromPosition(math.NewVec3(1, 2, 3)))
}

// quads returns n drawables sharing one material, each a quad with the given indices.
func quads(n int, material *metadata.Material, indices []uint16) []*metadata.Drawable {
	out := make([]*metadata.Drawable, n)
	for i := range out {
		out[i] = drawable("quad", quadMesh(indices), material)
	}
	return out
}

type recordingSubmitter struct {
	singles []*metadata.Drawable
	batches []*Batch
}

func (r *recordingSubmitter) RenderSingle(d *metadata.Drawable, _ *metadata.RenderState) {
	r.singles = append(r.singles, d)
}

func (r *recordingSubmitter) RenderBatch(b *Batch, _ *metadata.RenderState) {
	r.batches = append(r.batches, b)
}
