package vulkan

import (
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/pipeline"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

var errNotInRenderPass = errors.New("command buffer is not inside a render pass")

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState

	backend    *Backend
	transforms *transformRing
	bound      *VulkanPipeline
}

func NewVulkanCommandBuffer(backend *Backend, transforms *transformRing) (*VulkanCommandBuffer, error) {
	vCommandBuffer := &VulkanCommandBuffer{
		State:      COMMAND_BUFFER_STATE_NOT_ALLOCATED,
		backend:    backend,
		transforms: transforms,
	}
	context := backend.context

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        context.CommandPool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}

	handles := make([]vk.CommandBuffer, 1)
	if err := context.locks.SafeCall(core.QueueSubmission, func() error {
		if res := vk.AllocateCommandBuffers(context.Device, &allocateInfo, handles); res != vk.Success {
			return fmt.Errorf("failed to allocate command buffer: %s", VulkanResultString(res, false))
		}
		return nil
	}); err != nil {
		return nil, err
	}
	vCommandBuffer.Handle = handles[0]
	vCommandBuffer.State = COMMAND_BUFFER_STATE_READY
	return vCommandBuffer, nil
}

func (v *VulkanCommandBuffer) Free() {
	if v.State == COMMAND_BUFFER_STATE_NOT_ALLOCATED {
		return
	}
	context := v.backend.context
	_ = context.locks.SafeCall(core.QueueSubmission, func() error {
		vk.FreeCommandBuffers(context.Device, context.CommandPool, 1, []vk.CommandBuffer{v.Handle})
		return nil
	})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

// Begin starts recording and opens the target render pass.
func (v *VulkanCommandBuffer) Begin() error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(v.Handle, &beginInfo); res != vk.Success {
		return fmt.Errorf("failed to begin command buffer: %s", VulkanResultString(res, false))
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	v.bound = nil

	context := v.backend.context
	if context.RenderPass == vk.NullRenderPass {
		return nil
	}
	renderArea := vk.Rect2D{Extent: context.Extent}
	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor(context.ClearColour[:])
	clearValues[1].SetDepthStencil(1.0, 0)
	passInfo := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      context.RenderPass,
		Framebuffer:     context.Framebuffer,
		RenderArea:      renderArea,
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(v.Handle, &passInfo, vk.SubpassContentsInline)
	v.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS

	viewport := vk.Viewport{
		Width:    float32(context.Extent.Width),
		Height:   float32(context.Extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	vk.CmdSetViewport(v.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(v.Handle, 0, 1, []vk.Rect2D{renderArea})
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if v.State == COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		vk.CmdEndRenderPass(v.Handle)
		v.State = COMMAND_BUFFER_STATE_RECORDING
	}
	if res := vk.EndCommandBuffer(v.Handle); res != vk.Success {
		return fmt.Errorf("failed to end command buffer: %s", VulkanResultString(res, false))
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) Reset() error {
	if res := vk.ResetCommandBuffer(v.Handle, 0); res != vk.Success {
		return fmt.Errorf("failed to reset command buffer: %s", VulkanResultString(res, false))
	}
	v.transforms.reset()
	v.bound = nil
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

func (v *VulkanCommandBuffer) BindPipeline(entry *pipeline.Entry) error {
	if v.State != COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		return errNotInRenderPass
	}
	p, ok := entry.Native.(*VulkanPipeline)
	if !ok {
		return fmt.Errorf("pipeline %d is not a vulkan pipeline", entry.Handle)
	}
	p.Bind(v, vk.PipelineBindPointGraphics)
	v.bound = p
	return nil
}

func (v *VulkanCommandBuffer) BindGeometry(mesh *metadata.Mesh) error {
	g, ok := v.backend.geometryOf(mesh)
	if !ok {
		return fmt.Errorf("mesh '%s' was never uploaded", mesh.Name)
	}
	vk.CmdBindVertexBuffers(v.Handle, 0, 1, []vk.Buffer{g.vertices.Handle}, []vk.DeviceSize{0})
	vk.CmdBindIndexBuffer(v.Handle, g.indices.Handle, 0, vk.IndexTypeUint16)
	return nil
}

// PushTransforms uploads the transform table and binds it for the next draw.
func (v *VulkanCommandBuffer) PushTransforms(entry *pipeline.Entry, matrices []math.Mat4) error {
	if v.bound == nil {
		return fmt.Errorf("no pipeline bound for pipeline %d", entry.Handle)
	}
	if len(matrices) == 0 || len(matrices) > MaxTransformsPerDraw {
		return fmt.Errorf("%d matrices, expected 1 to %d", len(matrices), MaxTransformsPerDraw)
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(&matrices[0])), len(matrices)*mat4Size)
	offset, err := v.transforms.push(v.backend.context, data)
	if err != nil {
		return err
	}
	vk.CmdBindDescriptorSets(v.Handle, vk.PipelineBindPointGraphics, v.bound.PipelineLayout,
		0, 1, []vk.DescriptorSet{v.transforms.set}, 1, []uint32{offset})
	return nil
}

func (v *VulkanCommandBuffer) DrawIndexed(indexCount, instanceCount uint32) error {
	if v.State != COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		return errNotInRenderPass
	}
	vk.CmdDrawIndexed(v.Handle, indexCount, instanceCount, 0, 0, 0)
	return nil
}
