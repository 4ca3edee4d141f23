package batching

import (
	"github.com/google/uuid"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// Limits bound a single batch.
type Limits struct {
	MaxMembers  int
	MaxVertices int
	MaxIndices  int
}

func LimitsFromConfig(cfg core.BatchingConfig) Limits {
	return Limits{
		MaxMembers:  int(cfg.MaxMembers),
		MaxVertices: int(cfg.MaxVertices),
		MaxIndices:  int(cfg.MaxIndices),
	}
}

// Batchability decides whether a material may be merged.
type Batchability interface {
	IsBatchable(material *metadata.Material) bool
}

/**
 * @brief Merged geometry of drawables sharing material, shader and render
 * modes. Each merged vertex carries the slot of its owner so one draw call
 * can pick the right model matrix.
 */
type Batch struct {
	handle metadata.BatchHandle
	label  uuid.UUID
	key    partitionKey
	limits Limits
	policy Batchability

	positions     []math.Vec3
	normals       []math.Vec3
	texcoords     [][]math.Vec2
	floatAttrs    map[string][]float32
	vec2Attrs     map[string][]math.Vec2
	vec3Attrs     map[string][]math.Vec3
	vec4Attrs     map[string][]math.Vec4
	indices       []uint16
	matrixIndices []float32
	layout        string

	members   []*metadata.Drawable
	slots     map[uuid.UUID]int
	matrices  []math.Mat4
	unbatched []*metadata.Drawable

	notBatched bool
	renderData *metadata.Drawable
	mesh       *metadata.Mesh
	meshInit   bool
	merges     int
	// frame the batch was last referenced by BatchSetup
	frame uint64
	// frame the batch was last put in the draw order
	listed uint64
}

func newBatch(limits Limits, policy Batchability) *Batch {
	return &Batch{
		label:      uuid.New(),
		limits:     limits,
		policy:     policy,
		floatAttrs: make(map[string][]float32),
		vec2Attrs:  make(map[string][]math.Vec2),
		vec3Attrs:  make(map[string][]math.Vec3),
		vec4Attrs:  make(map[string][]math.Vec4),
		slots:      make(map[uuid.UUID]int),
	}
}

func (b *Batch) Handle() metadata.BatchHandle { return b.handle }
func (b *Batch) Label() uuid.UUID             { return b.label }
func (b *Batch) MemberCount() int             { return len(b.members) }
func (b *Batch) VertexCount() int             { return len(b.positions) }
func (b *Batch) IndexCount() int              { return len(b.indices) }
func (b *Batch) NotBatched() bool             { return b.notBatched }

// Members returns the merged drawables in slot order.
func (b *Batch) Members() []*metadata.Drawable { return b.members }

// Unbatched returns drawables handled by this batch but drawn one by one.
func (b *Batch) Unbatched() []*metadata.Drawable { return b.unbatched }

// Matrices is the transform table, one model matrix per member slot.
func (b *Batch) Matrices() []math.Mat4 { return b.matrices }

// Indices returns the merged index array.
func (b *Batch) Indices() []uint16 { return b.indices }

// MatrixIndices returns the owner slot of every merged vertex.
func (b *Batch) MatrixIndices() []float32 { return b.matrixIndices }

// RenderData is the drawable issued for the merged draw call.
func (b *Batch) RenderData() *metadata.Drawable { return b.renderData }

// Mesh returns the merged mesh built by SetupMesh, nil before that.
func (b *Batch) Mesh() *metadata.Mesh { return b.mesh }

func (b *Batch) IsEmpty() bool {
	return len(b.members) == 0 && len(b.unbatched) == 0
}

// IsBatchable is false when the members are drawn individually.
func (b *Batch) IsBatchable() bool {
	return !b.notBatched && len(b.members) > 0
}

func (b *Batch) isFull() bool {
	return b.notBatched || len(b.members) >= b.limits.MaxMembers
}

// Add merges d into the batch. It returns false only when d does not fit and
// must go to another batch; drawables that cannot be merged at all are kept
// in the unbatched set and reported as handled.
func (b *Batch) Add(d *metadata.Drawable) bool {
	material := d.Material()
	if b.policy == nil || !b.policy.IsBatchable(material) {
		b.addUnbatched(d)
		return true
	}
	if b.isFull() {
		return false
	}

	mesh := d.Mesh
	if mesh == nil || !mesh.IsConsistent() {
		_ = core.Invariant("batch %s: drawable '%s' has no usable mesh", b.label, d.Name)
		return false
	}

	if len(b.indices)+mesh.IndexCount() > b.limits.MaxIndices ||
		len(b.positions)+mesh.VertexCount() > b.limits.MaxVertices {
		if b.IsEmpty() {
			// too large to ever be merged
			b.notBatched = true
			b.addUnbatched(d)
			return true
		}
		return false
	}

	layout := mesh.VertexDescriptor()
	if len(b.members) == 0 {
		b.layout = layout
	} else if layout != b.layout {
		_ = core.Invariant("batch %s: layout '%s' of '%s' differs from '%s'", b.label, layout, d.Name, b.layout)
		return false
	}

	slot := len(b.members)
	b.matrices = append(b.matrices, d.ModelMatrix())
	b.slots[d.ID] = slot
	b.members = append(b.members, d)
	b.merge(mesh, slot)

	mesh.ClearModified()
	d.MarkTransformClean()
	d.Batch = b.handle
	if b.renderData == nil {
		b.copyRenderData(d)
	}
	b.meshInit = false
	return true
}

func (b *Batch) addUnbatched(d *metadata.Drawable) {
	b.unbatched = append(b.unbatched, d)
	if d.Mesh != nil {
		d.Mesh.ClearModified()
	}
	d.MarkTransformClean()
	d.Batch = b.handle
	if b.renderData == nil {
		b.copyRenderData(d)
	}
}

func (b *Batch) merge(mesh *metadata.Mesh, slot int) {
	offset := uint16(len(b.positions))
	count := mesh.VertexCount()

	b.positions = append(b.positions, mesh.Positions...)
	b.normals = append(b.normals, mesh.Normals...)
	for ch, uv := range mesh.Texcoords {
		for len(b.texcoords) <= ch {
			b.texcoords = append(b.texcoords, nil)
		}
		b.texcoords[ch] = append(b.texcoords[ch], uv...)
	}
	for k, v := range mesh.FloatAttributes {
		b.floatAttrs[k] = append(b.floatAttrs[k], v...)
	}
	for k, v := range mesh.Vec2Attributes {
		b.vec2Attrs[k] = append(b.vec2Attrs[k], v...)
	}
	for k, v := range mesh.Vec3Attributes {
		b.vec3Attrs[k] = append(b.vec3Attrs[k], v...)
	}
	for k, v := range mesh.Vec4Attributes {
		b.vec4Attrs[k] = append(b.vec4Attrs[k], v...)
	}
	for _, idx := range mesh.Indices {
		b.indices = append(b.indices, idx+offset)
	}
	for i := 0; i < count; i++ {
		b.matrixIndices = append(b.matrixIndices, float32(slot))
	}
}

// copyRenderData snapshots the first member's passes. Later changes to the
// member's modes do not leak into the batch, they trigger a rebuild instead.
func (b *Batch) copyRenderData(d *metadata.Drawable) {
	rd := &metadata.Drawable{
		ID:        b.label,
		Name:      "batch:" + b.label.String(),
		Transform: math.TransformCreate(),
		Batch:     b.handle,
	}
	for _, p := range d.Passes {
		rd.Passes = append(rd.Passes, metadata.NewRenderPass(p.Material, p.Modes()))
	}
	b.renderData = rd
}

// IsBatchDirty reports whether any member mesh changed since it was merged.
func (b *Batch) IsBatchDirty() bool {
	for _, d := range b.members {
		if d.IsMeshDirty() {
			return true
		}
	}
	for _, d := range b.unbatched {
		if d.IsMeshDirty() {
			return true
		}
	}
	return false
}

// SetMeshesDirty detaches every member so the next BatchSetup reassigns them.
func (b *Batch) SetMeshesDirty() {
	for _, d := range b.members {
		if d.Batch == b.handle {
			d.Batch = metadata.NoBatch
		}
	}
	for _, d := range b.unbatched {
		if d.Batch == b.handle {
			d.Batch = metadata.NoBatch
		}
	}
}

// SetupMesh builds the merged mesh once per content change. It returns true
// when a merge happened.
func (b *Batch) SetupMesh(material *metadata.Material) bool {
	if b.meshInit || len(b.members) == 0 {
		return false
	}

	mesh := metadata.NewMesh("batch:"+b.label.String(), b.positions, b.indices)
	if len(b.normals) == len(b.positions) {
		mesh.Normals = b.normals
	}
	uvIndex := 0
	if material != nil {
		uvIndex = material.UVIndex
	}
	if uvIndex < len(b.texcoords) && len(b.texcoords[uvIndex]) == len(b.positions) {
		mesh.Texcoords = [][]math.Vec2{b.texcoords[uvIndex]}
	}
	for k, v := range b.floatAttrs {
		mesh.FloatAttributes[k] = v
	}
	for k, v := range b.vec2Attrs {
		mesh.Vec2Attributes[k] = v
	}
	for k, v := range b.vec3Attrs {
		mesh.Vec3Attributes[k] = v
	}
	for k, v := range b.vec4Attrs {
		mesh.Vec4Attributes[k] = v
	}
	mesh.FloatAttributes[metadata.AttributeMatrixIndex] = b.matrixIndices
	mesh.Dynamic = b.key.dynamic

	b.mesh = mesh
	if b.renderData != nil {
		b.renderData.Mesh = mesh
	}
	b.meshInit = true
	b.merges++
	return true
}

// UpdateModelMatrix refreshes the transform table slot of d.
func (b *Batch) UpdateModelMatrix(d *metadata.Drawable, m math.Mat4) bool {
	slot, ok := b.slots[d.ID]
	if !ok {
		return false
	}
	b.matrices[slot] = m
	return true
}

// SyncModelMatrix copies the current world matrix of d into its slot when
// it differs. It reports whether the slot changed.
func (b *Batch) SyncModelMatrix(d *metadata.Drawable) bool {
	slot, ok := b.slots[d.ID]
	if !ok {
		return false
	}
	m := d.ModelMatrix()
	if b.matrices[slot] == m {
		return false
	}
	b.matrices[slot] = m
	return true
}

// Material returns the material the merged draw uses.
func (b *Batch) Material() *metadata.Material {
	if b.renderData == nil {
		return nil
	}
	return b.renderData.Material()
}

// owns reports whether d was handled by this batch.
func (b *Batch) owns(d *metadata.Drawable) bool {
	if _, ok := b.slots[d.ID]; ok {
		return true
	}
	for _, u := range b.unbatched {
		if u == d {
			return true
		}
	}
	return false
}
