package shaders

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// Shader is a registered program and its variable bindings.
type Shader struct {
	ID        uint32
	Name      string
	Type      metadata.ShaderType
	Batchable bool
	Bindings  *BindingTables
}

// Registry knows every shader a material can reference. Custom shaders can be
// registered from any goroutine while the render thread reads.
type Registry struct {
	mu       sync.RWMutex
	builtins map[metadata.ShaderType]*Shader
	custom   map[uint32]*Shader
	byName   map[string]uint32
	nextID   uint32
}

func NewRegistry() *Registry {
	r := &Registry{
		builtins: make(map[metadata.ShaderType]*Shader),
		custom:   make(map[uint32]*Shader),
		byName:   make(map[string]uint32),
		nextID:   1,
	}
	for _, t := range []metadata.ShaderType{
		metadata.ShaderTypeTexture,
		metadata.ShaderTypeUnlit,
		metadata.ShaderTypeBoundingBox,
		metadata.ShaderTypeExternal,
	} {
		s := &Shader{
			Name:      t.String(),
			Type:      t,
			Batchable: t == metadata.ShaderTypeTexture,
			Bindings:  NewBindingTables(core.NewLockPool()),
		}
		s.Bindings.AddUniform("u_mvp", "u_mvp", "mat4")
		s.Bindings.AddAttribute(metadata.AttributePosition, metadata.AttributePosition, "float3")
		if t == metadata.ShaderTypeTexture {
			s.Bindings.AddTexture("main_texture", "u_texture")
			s.Bindings.AddUniform("u_color", "u_color", "float4")
			s.Bindings.AddAttribute(metadata.AttributeTexcoord, metadata.AttributeTexcoord, "float2")
		}
		r.builtins[t] = s
	}
	return r
}

// RegisterCustom adds a custom shader, or updates the batchable flag of an
// existing one with the same name. Returns the shader id to put in materials.
func (r *Registry) RegisterCustom(name string, batchable bool) *Shader {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byName[name]; ok {
		s := r.custom[id]
		s.Batchable = batchable
		return s
	}
	s := &Shader{
		ID:        r.nextID,
		Name:      name,
		Type:      metadata.ShaderTypeCustom,
		Batchable: batchable,
		Bindings:  NewBindingTables(core.NewLockPool()),
	}
	r.nextID++
	r.custom[s.ID] = s
	r.byName[name] = s.ID
	core.LogDebug("registered custom shader '%s' (id=%d, batchable=%t)", name, s.ID, batchable)
	return s
}

func (r *Registry) ByName(name string) (*Shader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.custom[id], true
}

// Find looks a shader up by name, built in shaders first.
func (r *Registry) Find(name string) (*Shader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.builtins {
		if s.Name == name {
			return s, true
		}
	}
	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.custom[id], true
}

// Lookup resolves the shader a material draws with.
func (r *Registry) Lookup(material *metadata.Material) (*Shader, error) {
	if material == nil {
		return nil, fmt.Errorf("%w: nil material", core.ErrShaderNotFound)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if material.ShaderType == metadata.ShaderTypeCustom {
		if s, ok := r.custom[material.ShaderID]; ok {
			return s, nil
		}
		return nil, fmt.Errorf("%w: custom shader id %d", core.ErrShaderNotFound, material.ShaderID)
	}
	if s, ok := r.builtins[material.ShaderType]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", core.ErrShaderNotFound, material.ShaderType)
}

// IsBatchable is true for the standard texture shader and for custom
// shaders registered as batchable.
func (r *Registry) IsBatchable(material *metadata.Material) bool {
	s, err := r.Lookup(material)
	if err != nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return s.Batchable
}
