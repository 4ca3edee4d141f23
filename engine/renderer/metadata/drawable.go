package metadata

import (
	"github.com/google/uuid"
	"github.com/spaghettifunk/tessera/engine/math"
)

/**
 * @brief One pass of a drawable: a material drawn with a set of render
 * modes. The validator fills the cached fingerprint and pipeline.
 */
type RenderPass struct {
	Material *Material
	modes    RenderModes
	dirty    bool

	Fingerprint Fingerprint
	Pipeline    PipelineHandle
	// shader binding tables version the pipeline was built against
	BindingsVersion uint64
	// material and generation the pipeline was built against
	builtMaterial   *Material
	builtGeneration uint32
}

func NewRenderPass(material *Material, modes RenderModes) *RenderPass {
	return &RenderPass{
		Material: material,
		modes:    modes,
		dirty:    true,
	}
}

func (p *RenderPass) Modes() RenderModes {
	return p.modes
}

func (p *RenderPass) SetModes(modes RenderModes) {
	p.modes = modes
	p.dirty = true
}

func (p *RenderPass) SetMaterial(material *Material) {
	p.Material = material
	p.dirty = true
}

// IsDirty covers the pass itself and its material.
func (p *RenderPass) IsDirty() bool {
	if p.dirty || p.Pipeline == NoPipeline {
		return true
	}
	if p.Material == nil {
		return false
	}
	if p.Material.IsDirty() {
		return true
	}
	return p.builtMaterial == p.Material && p.Material.Generation != p.builtGeneration
}

// BuiltFor reports whether the cached pipeline was built for material, which
// differs from p.Material under a material override.
func (p *RenderPass) BuiltFor(material *Material) bool {
	return material == p.builtMaterial && (material == nil || material.Generation == p.builtGeneration)
}

// MarkBuilt records a successful pipeline lookup for material.
func (p *RenderPass) MarkBuilt(fp Fingerprint, pipeline PipelineHandle, bindingsVersion uint64, material *Material) {
	p.Fingerprint = fp
	p.Pipeline = pipeline
	p.BindingsVersion = bindingsVersion
	p.dirty = false
	p.builtMaterial = material
	if material != nil {
		p.builtGeneration = material.Generation
	}
}

// Invalidate forces a pipeline lookup on next validation.
func (p *RenderPass) Invalidate() {
	p.dirty = true
	p.Pipeline = NoPipeline
}

/**
 * @brief A renderable scene object. Owned by the scene, the renderer only
 * reads its flags and writes the batch back reference.
 */
type Drawable struct {
	ID        uuid.UUID
	Name      string
	Mesh      *Mesh
	Passes    []*RenderPass
	Transform *math.Transform
	/** @brief Distance to the active camera, filled by the culling stage. */
	CameraDistance float32

	Batch BatchHandle
}

func NewDrawable(name string, mesh *Mesh, material *Material, modes RenderModes, transform *math.Transform) *Drawable {
	if transform == nil {
		transform = math.TransformCreate()
	}
	return &Drawable{
		ID:        uuid.New(),
		Name:      name,
		Mesh:      mesh,
		Passes:    []*RenderPass{NewRenderPass(material, modes)},
		Transform: transform,
		Batch:     NoBatch,
	}
}

func (d *Drawable) AddPass(material *Material, modes RenderModes) *RenderPass {
	p := NewRenderPass(material, modes)
	d.Passes = append(d.Passes, p)
	return p
}

func (d *Drawable) Pass(i int) *RenderPass {
	if i < 0 || i >= len(d.Passes) {
		return nil
	}
	return d.Passes[i]
}

// Material returns the material of the first pass.
func (d *Drawable) Material() *Material {
	if p := d.Pass(0); p != nil {
		return p.Material
	}
	return nil
}

func (d *Drawable) Modes() RenderModes {
	if p := d.Pass(0); p != nil {
		return p.Modes()
	}
	return DefaultRenderModes()
}

func (d *Drawable) Fingerprint() Fingerprint {
	if p := d.Pass(0); p != nil {
		return p.Fingerprint
	}
	return NoFingerprint
}

func (d *Drawable) ModelMatrix() math.Mat4 {
	return d.Transform.GetWorld()
}

func (d *Drawable) IsTransformDirty() bool {
	return d.Transform.IsModified()
}

func (d *Drawable) MarkTransformClean() {
	d.Transform.MarkClean()
}

func (d *Drawable) IsMeshDirty() bool {
	return d.Mesh != nil && d.Mesh.IsModified()
}

// State folds the scattered dirty flags into one reconciliation state.
func (d *Drawable) State() DirtyState {
	for _, p := range d.Passes {
		if p.IsDirty() {
			return StateDirty
		}
	}
	if d.IsMeshDirty() {
		return GeometryDirty
	}
	if d.IsTransformDirty() {
		return TransformOnlyDirty
	}
	return Clean
}
