package metadata

// Fingerprint summarises everything that ends up in a pipeline object:
// fixed function modes, shader identity and vertex layout.
type Fingerprint string

const NoFingerprint Fingerprint = ""

func ComputeFingerprint(modes RenderModes, material *Material, vertexDescriptor string) Fingerprint {
	return Fingerprint(modes.Key() + "|" + material.ShaderKey() + "|" + vertexDescriptor)
}

// PipelineHandle references a cached pipeline entry. Zero means none.
type PipelineHandle uint64

const NoPipeline PipelineHandle = 0

// BatchHandle indexes the batch arena. The zero value means unbatched.
type BatchHandle uint32

const NoBatch BatchHandle = 0

/**
 * @brief Reconciliation state of a drawable for the current frame.
 * Ordered by severity, a higher state implies the work of the lower ones.
 */
type DirtyState int

const (
	/** @brief Nothing changed, cached state is reused as is. */
	Clean DirtyState = iota
	/** @brief Only the model matrix moved. */
	TransformOnlyDirty
	/** @brief Mesh content changed, merged geometry must be rebuilt. */
	GeometryDirty
	/** @brief Material, shader or render modes changed. */
	StateDirty
)

func (s DirtyState) String() string {
	switch s {
	case Clean:
		return "clean"
	case TransformOnlyDirty:
		return "transform_only_dirty"
	case GeometryDirty:
		return "geometry_dirty"
	case StateDirty:
		return "state_dirty"
	}
	return "unknown"
}
