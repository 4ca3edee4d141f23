package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertexAttributes(t *testing.T) {
	attrs, err := vertexAttributes([]pipeline.VertexAttribute{
		{Name: metadata.AttributePosition, Components: 3, Offset: 0},
		{Name: metadata.AttributeTexcoord, Components: 2, Offset: 12},
		{Name: metadata.AttributeMatrixIndex, Components: 1, Offset: 20},
	})
	require.NoError(t, err)
	require.Len(t, attrs, 3)
	assert.Equal(t, vk.FormatR32g32b32Sfloat, attrs[0].Format)
	assert.Equal(t, vk.FormatR32g32Sfloat, attrs[1].Format)
	assert.Equal(t, uint32(1), attrs[1].Location)
	assert.Equal(t, vk.FormatR32Sfloat, attrs[2].Format)
	assert.Equal(t, uint32(20), attrs[2].Offset)

	_, err = vertexAttributes([]pipeline.VertexAttribute{{Name: "bad", Components: 5}})
	assert.Error(t, err)
}

func TestFixedFunctionMapping(t *testing.T) {
	assert.Equal(t, vk.CullModeFlags(vk.CullModeBackBit), cullMode(metadata.FaceCullModeBack))
	assert.Equal(t, vk.CullModeFlags(vk.CullModeNone), cullMode(metadata.FaceCullModeNone))
	assert.Equal(t, vk.PrimitiveTopologyTriangleList, topology(metadata.DrawModeTriangles))
	assert.Equal(t, vk.PrimitiveTopologyLineList, topology(metadata.DrawModeLines))

	s := metadata.StencilState{Func: metadata.CompareOpEqual, Pass: metadata.StencilOpReplace, Reference: 2, FuncMask: 0xFF}
	face := stencilFace(s)
	assert.Equal(t, vk.CompareOpEqual, face.CompareOp)
	assert.Equal(t, vk.StencilOpReplace, face.PassOp)
	assert.Equal(t, uint32(2), face.Reference)
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, uint64(0), alignUp(0, 256))
	assert.Equal(t, uint64(256), alignUp(1, 256))
	assert.Equal(t, uint64(512), alignUp(320, 256))
}

func TestByteViews(t *testing.T) {
	assert.Len(t, float32Bytes([]float32{1, 2, 3}), 12)
	assert.Len(t, uint16Bytes([]uint16{1, 2, 3}), 6)
	assert.Nil(t, float32Bytes(nil))
	assert.Len(t, uint32Words(make([]byte, 10)), 2)
}

func TestTakeExpiredWaitsForFramesInFlight(t *testing.T) {
	a := &geometryBuffers{indexCount: 6}
	b := &geometryBuffers{indexCount: 12}
	pending := []retiredGeometry{{buffers: a, submission: 4}, {buffers: b, submission: 5}}

	expired, kept := takeExpired(pending, 5, 2)
	assert.Empty(t, expired, "the frame submitted last may still read both")
	assert.Len(t, kept, 2)

	expired, kept = takeExpired(kept, 6, 2)
	require.Len(t, expired, 1)
	assert.Same(t, a, expired[0].buffers)
	require.Len(t, kept, 1)
	assert.Same(t, b, kept[0].buffers)

	expired, kept = takeExpired(kept, 7, 2)
	require.Len(t, expired, 1)
	assert.Empty(t, kept)
}
