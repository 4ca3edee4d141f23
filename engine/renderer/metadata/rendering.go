package metadata

import (
	"strconv"
	"strings"
)

/** @brief Determines face culling mode during rendering. */
type FaceCullMode int

const (
	/** @brief No faces are culled. */
	FaceCullModeNone FaceCullMode = 0x0
	/** @brief Only front faces are culled. */
	FaceCullModeFront FaceCullMode = 0x1
	/** @brief Only back faces are culled. */
	FaceCullModeBack FaceCullMode = 0x2
	/** @brief Both front and back faces are culled. */
	FaceCullModeFrontAndBack FaceCullMode = 0x3
)

/** @brief Primitive topology used to draw the indices. */
type DrawMode int

const (
	DrawModePoints DrawMode = iota
	DrawModeLines
	DrawModeLineStrip
	DrawModeTriangles
	DrawModeTriangleStrip
	DrawModeTriangleFan
)

type CompareOp int

const (
	CompareOpNever CompareOp = iota
	CompareOpLess
	CompareOpEqual
	CompareOpLessOrEqual
	CompareOpGreater
	CompareOpNotEqual
	CompareOpGreaterOrEqual
	CompareOpAlways
)

type StencilOp int

const (
	StencilOpKeep StencilOp = iota
	StencilOpZero
	StencilOpReplace
	StencilOpIncrementAndClamp
	StencilOpDecrementAndClamp
	StencilOpInvert
	StencilOpIncrementAndWrap
	StencilOpDecrementAndWrap
)

/**
 * @brief Queue a drawable is rendered in. Lower values draw first.
 */
type RenderingOrder int

const (
	RenderingOrderBackground  RenderingOrder = 1000
	RenderingOrderGeometry    RenderingOrder = 2000
	RenderingOrderTransparent RenderingOrder = 3000
	RenderingOrderOverlay     RenderingOrder = 4000
)

type StencilState struct {
	Enabled   bool
	Func      CompareOp
	Reference int32
	FuncMask  uint32
	WriteMask uint32
	Fail      StencilOp
	DepthFail StencilOp
	Pass      StencilOp
}

/**
 * @brief Fixed function state of a render pass. Everything in here
 * ends up in the pipeline object, so two passes with equal modes can
 * share a pipeline.
 */
type RenderModes struct {
	UseLight           bool
	UseLightmap        bool
	RenderMask         uint32
	RenderingOrder     RenderingOrder
	CullFace           FaceCullMode
	Offset             bool
	OffsetFactor       float32
	OffsetUnits        float32
	DepthTest          bool
	DepthMask          bool
	AlphaBlend         bool
	AlphaToCoverage    bool
	SampleCoverage     float32
	InvertCoverageMask bool
	DrawMode           DrawMode
	Stencil            StencilState
}

/** @brief Render mask bits, matched against the camera mask. */
const (
	RenderMaskLeft  uint32 = 0x1
	RenderMaskRight uint32 = 0x2
	RenderMaskBoth  uint32 = RenderMaskLeft | RenderMaskRight
)

func DefaultRenderModes() RenderModes {
	return RenderModes{
		RenderMask:     RenderMaskBoth,
		RenderingOrder: RenderingOrderGeometry,
		CullFace:       FaceCullModeBack,
		DepthTest:      true,
		DepthMask:      true,
		AlphaBlend:     true,
		SampleCoverage: 1,
		DrawMode:       DrawModeTriangles,
		Stencil: StencilState{
			Func:      CompareOpAlways,
			FuncMask:  0xFF,
			WriteMask: 0xFF,
		},
	}
}

// IsTransparent reports whether the pass sorts back to front.
func (m RenderModes) IsTransparent() bool {
	return m.RenderingOrder >= RenderingOrderTransparent && m.RenderingOrder < RenderingOrderOverlay
}

func appendBool(b *strings.Builder, v bool) {
	if v {
		b.WriteByte('1')
	} else {
		b.WriteByte('0')
	}
}

func appendInt(b *strings.Builder, v int64) {
	b.WriteString(strconv.FormatInt(v, 10))
	b.WriteByte(',')
}

func appendFloat(b *strings.Builder, v float32) {
	b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	b.WriteByte(',')
}

// Key encodes every field that reaches the pipeline. Rendering order is left
// out, it only affects sorting.
func (m RenderModes) Key() string {
	var b strings.Builder
	b.Grow(96)
	appendBool(&b, m.UseLight)
	appendBool(&b, m.UseLightmap)
	b.WriteByte(',')
	appendInt(&b, int64(m.RenderMask))
	appendInt(&b, int64(m.CullFace))
	appendBool(&b, m.Offset)
	b.WriteByte(',')
	appendFloat(&b, m.OffsetFactor)
	appendFloat(&b, m.OffsetUnits)
	appendBool(&b, m.DepthTest)
	appendBool(&b, m.DepthMask)
	appendBool(&b, m.AlphaBlend)
	appendBool(&b, m.AlphaToCoverage)
	b.WriteByte(',')
	appendFloat(&b, m.SampleCoverage)
	appendBool(&b, m.InvertCoverageMask)
	b.WriteByte(',')
	appendInt(&b, int64(m.DrawMode))
	s := m.Stencil
	appendBool(&b, s.Enabled)
	b.WriteByte(',')
	if s.Enabled {
		appendInt(&b, int64(s.Func))
		appendInt(&b, int64(s.Reference))
		appendInt(&b, int64(s.FuncMask))
		appendInt(&b, int64(s.WriteMask))
		appendInt(&b, int64(s.Fail))
		appendInt(&b, int64(s.DepthFail))
		appendInt(&b, int64(s.Pass))
	}
	return b.String()
}
