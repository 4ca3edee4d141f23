package metadata

import "github.com/spaghettifunk/tessera/engine/math"

/**
 * @brief Per frame camera and override state handed to every draw.
 */
type RenderState struct {
	FrameNumber    uint64
	CameraMask     uint32
	CameraPosition math.Vec3
	View           math.Mat4
	Projection     math.Mat4
	/** @brief When set, replaces the material of every pass. */
	MaterialOverride *Material
}

func NewRenderState() *RenderState {
	return &RenderState{
		CameraMask: RenderMaskBoth,
		View:       math.NewMat4Identity(),
		Projection: math.NewMat4Identity(),
	}
}

// MaterialFor returns the material a pass is drawn with this frame.
func (rs *RenderState) MaterialFor(p *RenderPass) *Material {
	if rs != nil && rs.MaterialOverride != nil {
		return rs.MaterialOverride
	}
	return p.Material
}
