package renderer

import (
	"errors"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/pipeline"
	"github.com/spaghettifunk/tessera/engine/renderer/shaders"
)

type Validity int

const (
	// Invalid items are skipped this frame.
	Invalid Validity = iota
	// Stale items had their GPU state rebuilt and can be drawn.
	Stale
	// Valid items reuse their cached state untouched.
	Valid
)

func (v Validity) String() string {
	switch v {
	case Invalid:
		return "invalid"
	case Stale:
		return "stale"
	}
	return "valid"
}

// Validator checks and repairs the cached GPU state of drawables.
type Validator struct {
	registry *shaders.Registry
	cache    *pipeline.Cache
	resolve  shaders.LocationResolver

	// per frame build accounting
	builds   uint32
	failures uint32
}

func NewValidator(registry *shaders.Registry, cache *pipeline.Cache, resolve shaders.LocationResolver) *Validator {
	return &Validator{
		registry: registry,
		cache:    cache,
		resolve:  resolve,
	}
}

func (v *Validator) BeginFrame() {
	v.builds = 0
	v.failures = 0
}

// AllBuildsFailed is true when pipelines were requested this frame and none
// could be produced.
func (v *Validator) AllBuildsFailed() bool {
	return v.builds > 0 && v.failures == v.builds
}

// IsValid classifies d for the current frame and rebuilds stale state.
func (v *Validator) IsValid(d *metadata.Drawable, rs *metadata.RenderState) Validity {
	if d == nil || d.Mesh == nil || len(d.Passes) == 0 {
		return Invalid
	}
	if d.Modes().RenderMask&rs.CameraMask == 0 {
		return Invalid
	}
	if d.Mesh.IsModified() && !d.Mesh.IsConsistent() {
		_ = core.Invariant("mesh '%s' of drawable '%s' has mismatched attribute arrays", d.Mesh.Name, d.Name)
		return Invalid
	}

	result := Valid
	for _, pass := range d.Passes {
		material := rs.MaterialFor(pass)
		if material == nil {
			return Invalid
		}
		if !material.TexturesReady() {
			core.LogDebug("drawable '%s': %s, retrying next frame", d.Name, core.ErrResourceNotReady)
			return Invalid
		}
		shader, err := v.registry.Lookup(material)
		if err != nil {
			core.LogWarn("drawable '%s': %s", d.Name, err)
			return Invalid
		}
		if !pass.IsDirty() && pass.BuiltFor(material) && !d.Mesh.IsModified() && pass.BindingsVersion == shader.Bindings.Version() {
			continue
		}

		result = Stale
		if err := v.rebuild(d, pass, material, shader); err != nil {
			core.LogError("drawable '%s' skipped this frame: %s", d.Name, err)
			return Invalid
		}
	}
	if result == Stale {
		for _, pass := range d.Passes {
			if m := rs.MaterialFor(pass); m != nil {
				m.ClearDirty()
			}
		}
	}
	return result
}

func (v *Validator) rebuild(d *metadata.Drawable, pass *metadata.RenderPass, material *metadata.Material, shader *shaders.Shader) error {
	version := shader.Bindings.Version()
	shader.Bindings.ResolveLocations(v.resolve)

	modes := pass.Modes()
	snapshot := shader.Bindings.Snapshot()
	fp := metadata.ComputeFingerprint(modes, material, d.Mesh.VertexDescriptor())
	fp = metadata.Fingerprint(string(fp) + "|" + snapshot.Signature())

	desc := pipeline.NewDescriptor(fp, modes, material, d.Mesh, shader)
	desc.Bindings = snapshot

	v.builds++
	entry, err := v.cache.GetOrCreate(desc)
	if err != nil {
		v.failures++
		pass.Invalidate()
		if !errors.Is(err, core.ErrPipelineBuild) {
			return errors.Join(core.ErrPipelineBuild, err)
		}
		return err
	}
	pass.MarkBuilt(fp, entry.Handle, version, material)
	return nil
}
