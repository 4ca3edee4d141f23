package metadata

import (
	"strconv"
	"sync/atomic"

	"github.com/spaghettifunk/tessera/engine/math"
)

/** @brief The shader family a material is drawn with. */
type ShaderType int

const (
	/** @brief The standard textured shader. Always batchable. */
	ShaderTypeTexture ShaderType = iota
	ShaderTypeUnlit
	ShaderTypeBoundingBox
	ShaderTypeExternal
	/** @brief A runtime registered shader, identified by Material.ShaderID. */
	ShaderTypeCustom
)

func (s ShaderType) String() string {
	switch s {
	case ShaderTypeTexture:
		return "texture"
	case ShaderTypeUnlit:
		return "unlit"
	case ShaderTypeBoundingBox:
		return "bounding_box"
	case ShaderTypeExternal:
		return "external"
	case ShaderTypeCustom:
		return "custom"
	}
	return "unknown"
}

/**
 * @brief A texture reference. Image decoding happens elsewhere, the
 * loader flips Ready once the GPU copy exists.
 */
type Texture struct {
	Name  string
	ready atomic.Bool
}

func NewTexture(name string) *Texture {
	return &Texture{Name: name}
}

func (t *Texture) SetReady(ready bool) {
	t.ready.Store(ready)
}

func (t *Texture) IsReady() bool {
	return t.ready.Load()
}

/**
 * @brief A material, which represents various properties
 * of a surface in the world such as texture, colour and shader.
 */
type Material struct {
	/** @brief Process unique id of this instance. */
	ID uint32
	/** @brief The material name. */
	Name string
	/** @brief The material generation. Incremented every time the material is changed. */
	Generation uint32
	ShaderType ShaderType
	/** @brief Registered shader id, only meaningful for ShaderTypeCustom. */
	ShaderID uint32
	/** @brief Texture coordinate channel sampled by the shader. */
	UVIndex int
	/** @brief The diffuse colour. */
	DiffuseColour math.Vec4
	/** @brief Texture bindings by sampler name. */
	Textures map[string]*Texture

	dirty bool
}

var materialIDs atomic.Uint32

func NewMaterial(name string, shaderType ShaderType) *Material {
	return &Material{
		ID:            materialIDs.Add(1),
		Name:          name,
		ShaderType:    shaderType,
		DiffuseColour: math.NewVec4(1, 1, 1, 1),
		Textures:      make(map[string]*Texture),
		dirty:         true,
	}
}

func (m *Material) SetTexture(name string, tex *Texture) {
	m.Textures[name] = tex
	m.MarkDirty()
}

func (m *Material) SetShader(shaderType ShaderType, shaderID uint32) {
	m.ShaderType = shaderType
	m.ShaderID = shaderID
	m.MarkDirty()
}

func (m *Material) SetDiffuseColour(c math.Vec4) {
	m.DiffuseColour = c
	m.MarkDirty()
}

func (m *Material) MarkDirty() {
	m.Generation++
	m.dirty = true
}

func (m *Material) IsDirty() bool {
	return m.dirty
}

func (m *Material) ClearDirty() {
	m.dirty = false
}

// TexturesReady is false while any bound texture is still loading.
func (m *Material) TexturesReady() bool {
	for _, t := range m.Textures {
		if t == nil || !t.IsReady() {
			return false
		}
	}
	return true
}

// ShaderKey identifies the shader program the material selects.
func (m *Material) ShaderKey() string {
	if m.ShaderType == ShaderTypeCustom {
		return m.ShaderType.String() + "#" + strconv.FormatUint(uint64(m.ShaderID), 10)
	}
	return m.ShaderType.String()
}
