package pipeline

import (
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/shaders"
)

// VertexAttribute is one input of the interleaved vertex layout.
type VertexAttribute struct {
	Name       string
	Components uint32
	Offset     uint32
}

/**
 * @brief Everything a backend needs to compile one pipeline. Two descriptors
 * with the same fingerprint compile to interchangeable pipelines.
 */
type Descriptor struct {
	Fingerprint metadata.Fingerprint
	Modes       metadata.RenderModes
	ShaderType  metadata.ShaderType
	ShaderID    uint32
	ShaderName  string
	// VertexFormat is the layout identity, Attributes/Stride its decoded form.
	VertexFormat string
	Attributes   []VertexAttribute
	Stride       uint32
	Bindings     shaders.Snapshot
}

// NewDescriptor builds the compile request for a pass of a drawable.
func NewDescriptor(fp metadata.Fingerprint, modes metadata.RenderModes, material *metadata.Material, mesh *metadata.Mesh, shader *shaders.Shader) *Descriptor {
	desc := &Descriptor{
		Fingerprint:  fp,
		Modes:        modes,
		ShaderType:   material.ShaderType,
		ShaderID:     material.ShaderID,
		ShaderName:   shader.Name,
		VertexFormat: mesh.VertexDescriptor(),
		Stride:       mesh.Stride(),
		Bindings:     shader.Bindings.Snapshot(),
	}
	desc.Attributes = attributesOf(desc.VertexFormat)
	return desc
}

// DescriptorTemplate is the prebuilt binding layout stored with a pipeline.
type DescriptorTemplate struct {
	Textures []shaders.Binding
	Uniforms []shaders.Binding
}

func (d *Descriptor) Template() DescriptorTemplate {
	return DescriptorTemplate{
		Textures: d.Bindings.Textures,
		Uniforms: d.Bindings.Uniforms,
	}
}
