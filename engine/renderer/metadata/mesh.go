package metadata

import (
	"strconv"
	"strings"

	"github.com/spaghettifunk/tessera/engine/math"
	"golang.org/x/exp/slices"
)

// Attribute names understood by the built in shaders.
const (
	AttributePosition    = "a_position"
	AttributeNormal      = "a_normal"
	AttributeTexcoord    = "a_texcoord"
	AttributeMatrixIndex = "a_matrix_index"
)

/**
 * @brief Indexed triangle geometry plus any number of named per vertex
 * attribute arrays. Every attribute array must have one entry per position.
 */
type Mesh struct {
	Name      string
	Positions []math.Vec3
	Normals   []math.Vec3
	/** @brief Texture coordinate channels, selected by Material.UVIndex. */
	Texcoords [][]math.Vec2

	FloatAttributes map[string][]float32
	Vec2Attributes  map[string][]math.Vec2
	Vec3Attributes  map[string][]math.Vec3
	Vec4Attributes  map[string][]math.Vec4

	Indices []uint16

	/** @brief Dynamic meshes change content at runtime and are never patched in place inside a batch. */
	Dynamic bool

	// modified: a batch holding this mesh has to merge it again.
	// dirty: the GPU copy is stale.
	modified bool
	dirty    bool
}

func NewMesh(name string, positions []math.Vec3, indices []uint16) *Mesh {
	return &Mesh{
		Name:            name,
		Positions:       positions,
		Indices:         indices,
		FloatAttributes: make(map[string][]float32),
		Vec2Attributes:  make(map[string][]math.Vec2),
		Vec3Attributes:  make(map[string][]math.Vec3),
		Vec4Attributes:  make(map[string][]math.Vec4),
		modified:        true,
		dirty:           true,
	}
}

func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

func (m *Mesh) IndexCount() int {
	return len(m.Indices)
}

func (m *Mesh) SetPositions(positions []math.Vec3) {
	m.Positions = positions
	m.Touch()
}

func (m *Mesh) SetNormals(normals []math.Vec3) {
	m.Normals = normals
	m.Touch()
}

func (m *Mesh) SetIndices(indices []uint16) {
	m.Indices = indices
	m.Touch()
}

// SetTexcoords replaces texture coordinate channel.
func (m *Mesh) SetTexcoords(channel int, uvs []math.Vec2) {
	for len(m.Texcoords) <= channel {
		m.Texcoords = append(m.Texcoords, nil)
	}
	m.Texcoords[channel] = uvs
	m.Touch()
}

func (m *Mesh) SetFloatAttribute(name string, values []float32) {
	m.FloatAttributes[name] = values
	m.Touch()
}

func (m *Mesh) SetVec2Attribute(name string, values []math.Vec2) {
	m.Vec2Attributes[name] = values
	m.Touch()
}

func (m *Mesh) SetVec3Attribute(name string, values []math.Vec3) {
	m.Vec3Attributes[name] = values
	m.Touch()
}

func (m *Mesh) SetVec4Attribute(name string, values []math.Vec4) {
	m.Vec4Attributes[name] = values
	m.Touch()
}

// Touch flags the mesh content as changed.
func (m *Mesh) Touch() {
	m.modified = true
	m.dirty = true
}

func (m *Mesh) IsModified() bool {
	return m.modified
}

func (m *Mesh) ClearModified() {
	m.modified = false
}

func (m *Mesh) IsDirty() bool {
	return m.dirty
}

func (m *Mesh) ClearDirty() {
	m.dirty = false
}

func sortedKeys[V any](attrs map[string]V) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// VertexDescriptor names the vertex layout, e.g. "float3 a_position float2 a_texcoord".
// Meshes with equal descriptors can share a pipeline.
func (m *Mesh) VertexDescriptor() string {
	var b strings.Builder
	b.WriteString("float3 " + AttributePosition)
	if len(m.Normals) > 0 {
		b.WriteString(" float3 " + AttributeNormal)
	}
	for i, uv := range m.Texcoords {
		if len(uv) == 0 {
			continue
		}
		b.WriteString(" float2 " + AttributeTexcoord)
		if i > 0 {
			b.WriteString(strconv.Itoa(i))
		}
	}
	for _, k := range sortedKeys(m.FloatAttributes) {
		b.WriteString(" float " + k)
	}
	for _, k := range sortedKeys(m.Vec2Attributes) {
		b.WriteString(" float2 " + k)
	}
	for _, k := range sortedKeys(m.Vec3Attributes) {
		b.WriteString(" float3 " + k)
	}
	for _, k := range sortedKeys(m.Vec4Attributes) {
		b.WriteString(" float4 " + k)
	}
	return b.String()
}

// Stride returns the size in bytes of one interleaved vertex.
func (m *Mesh) Stride() uint32 {
	stride := uint32(12)
	if len(m.Normals) > 0 {
		stride += 12
	}
	for _, uv := range m.Texcoords {
		if len(uv) > 0 {
			stride += 8
		}
	}
	stride += uint32(4 * len(m.FloatAttributes))
	stride += uint32(8 * len(m.Vec2Attributes))
	stride += uint32(12 * len(m.Vec3Attributes))
	stride += uint32(16 * len(m.Vec4Attributes))
	return stride
}

// Interleave packs all vertex attributes in VertexDescriptor order.
func (m *Mesh) Interleave() []float32 {
	floats := int(m.Stride() / 4)
	out := make([]float32, 0, floats*len(m.Positions))
	floatKeys := sortedKeys(m.FloatAttributes)
	vec2Keys := sortedKeys(m.Vec2Attributes)
	vec3Keys := sortedKeys(m.Vec3Attributes)
	vec4Keys := sortedKeys(m.Vec4Attributes)
	for i, p := range m.Positions {
		out = append(out, p.X, p.Y, p.Z)
		if len(m.Normals) > 0 {
			n := m.Normals[i]
			out = append(out, n.X, n.Y, n.Z)
		}
		for _, uv := range m.Texcoords {
			if len(uv) > 0 {
				out = append(out, uv[i].X, uv[i].Y)
			}
		}
		for _, k := range floatKeys {
			out = append(out, m.FloatAttributes[k][i])
		}
		for _, k := range vec2Keys {
			v := m.Vec2Attributes[k][i]
			out = append(out, v.X, v.Y)
		}
		for _, k := range vec3Keys {
			v := m.Vec3Attributes[k][i]
			out = append(out, v.X, v.Y, v.Z)
		}
		for _, k := range vec4Keys {
			v := m.Vec4Attributes[k][i]
			out = append(out, v.X, v.Y, v.Z, v.W)
		}
	}
	return out
}

// IsConsistent reports whether every attribute array matches the vertex count
// and every index points at an existing vertex.
func (m *Mesh) IsConsistent() bool {
	n := len(m.Positions)
	if len(m.Normals) != 0 && len(m.Normals) != n {
		return false
	}
	for _, uv := range m.Texcoords {
		if len(uv) != 0 && len(uv) != n {
			return false
		}
	}
	for _, v := range m.FloatAttributes {
		if len(v) != n {
			return false
		}
	}
	for _, v := range m.Vec2Attributes {
		if len(v) != n {
			return false
		}
	}
	for _, v := range m.Vec3Attributes {
		if len(v) != n {
			return false
		}
	}
	for _, v := range m.Vec4Attributes {
		if len(v) != n {
			return false
		}
	}
	for _, idx := range m.Indices {
		if int(idx) >= n {
			return false
		}
	}
	return true
}
