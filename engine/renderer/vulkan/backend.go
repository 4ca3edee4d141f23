package vulkan

import (
	"errors"
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/pipeline"
)

// Upper bound of frame slots, one transform descriptor set each.
const maxFrameSlots = 3

// Bytes of transform tables one frame slot can hold.
const transformRingSize = 4 << 20

/**
 * @brief Renderer backend recording into an application owned device,
 * render pass and framebuffer. Instance, device and swapchain setup stay
 * with the embedding application, which must have loaded the Vulkan
 * entry points with vk.SetGetInstanceProcAddr and vk.Init.
 */
type Backend struct {
	context  *VulkanContext
	programs map[string]ShaderProgram

	transforms *transformLayout
	rings      []*transformRing

	mu        sync.Mutex
	geometry  map[*metadata.Mesh]*geometryBuffers
	retired   []retiredGeometry
	submitted uint64
}

// Buffers replaced while the submission counter stood at submission.
type retiredGeometry struct {
	buffers    *geometryBuffers
	submission uint64
}

// takeExpired splits pending into buffers no frame in flight can read any
// more and the ones that must wait. A frame submitted before retirement is
// finished once inFlight later frames were submitted, since each of them
// waited on the fence of its slot first.
func takeExpired(pending []retiredGeometry, submitted uint64, inFlight int) (expired, kept []retiredGeometry) {
	for _, r := range pending {
		if r.submission+uint64(inFlight) <= submitted {
			expired = append(expired, r)
		} else {
			kept = append(kept, r)
		}
	}
	return expired, kept
}

// New creates a backend for target. programs maps shader names, as used by
// the shader registry, to their SPIR-V code.
func New(target Target, programs map[string]ShaderProgram) *Backend {
	return &Backend{
		context:  &VulkanContext{Target: target},
		programs: programs,
		geometry: make(map[*metadata.Mesh]*geometryBuffers),
	}
}

func (b *Backend) Initialize(appName string) error {
	if b.context.Device == nil {
		return errors.New("vulkan backend needs a logical device")
	}
	b.context = newContext(b.context.Target)

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: b.context.QueueFamilyIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(b.context.Device, &poolCreateInfo, b.context.Allocator, &pool); res != vk.Success {
		return fmt.Errorf("vkCreateCommandPool failed with %s", VulkanResultString(res, true))
	}
	b.context.CommandPool = pool

	layout, err := newTransformLayout(b.context, maxFrameSlots)
	if err != nil {
		return err
	}
	b.transforms = layout

	core.LogInfo("Vulkan renderer initialized for '%s' (%dx%d).", appName, b.context.Extent.Width, b.context.Extent.Height)
	return nil
}

// Resized points the backend at a new framebuffer, e.g. after the
// application recreated its swapchain.
func (b *Backend) Resized(framebuffer vk.Framebuffer, extent vk.Extent2D) {
	b.context.Framebuffer = framebuffer
	b.context.Extent = extent
	core.LogInfo("Vulkan renderer backend->resized: w/h: %d/%d", extent.Width, extent.Height)
}

func (b *Backend) Shutdown() error {
	if err := b.WaitIdle(); err != nil {
		core.LogWarn("shutting down without an idle queue: %s", err)
	}

	// Destroy in the opposite order of creation.
	b.mu.Lock()
	for mesh, g := range b.geometry {
		g.destroy(b.context)
		delete(b.geometry, mesh)
	}
	for _, r := range b.retired {
		r.buffers.destroy(b.context)
	}
	b.retired = nil
	b.mu.Unlock()

	for _, r := range b.rings {
		r.destroy(b.context)
	}
	b.rings = nil
	if b.transforms != nil {
		b.transforms.destroy(b.context)
		b.transforms = nil
	}
	if b.context.CommandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(b.context.Device, b.context.CommandPool, b.context.Allocator)
		b.context.CommandPool = vk.NullCommandPool
	}
	core.LogDebug("Vulkan renderer shut down.")
	return nil
}

// CompilePipeline may run on any goroutine, the pipeline cache serializes
// builds of the same fingerprint only.
func (b *Backend) CompilePipeline(desc *pipeline.Descriptor) (interface{}, error) {
	program, ok := b.programs[desc.ShaderName]
	if !ok {
		return nil, fmt.Errorf("%w: no SPIR-V for shader '%s'", core.ErrShaderNotFound, desc.ShaderName)
	}
	attributes, err := vertexAttributes(desc.Attributes)
	if err != nil {
		return nil, err
	}
	stages, err := createStages(b.context, program)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, s := range stages {
			s.Destroy(b.context)
		}
	}()

	config := &VulkanPipelineConfig{
		Renderpass:           b.context.RenderPass,
		Stride:               desc.Stride,
		Attributes:           attributes,
		DescriptorSetLayouts: []vk.DescriptorSetLayout{b.transforms.SetLayout},
		Modes:                desc.Modes,
	}
	for _, s := range stages {
		config.Stages = append(config.Stages, s.ShaderStageCreateInfo)
	}
	p, err := NewGraphicsPipeline(b.context, config)
	if err != nil {
		return nil, err
	}
	p.Fingerprint = desc.Fingerprint
	return p, nil
}

func (b *Backend) DestroyPipeline(native interface{}) {
	if p, ok := native.(*VulkanPipeline); ok {
		p.Destroy(b.context)
	}
}

// UploadGeometry replaces the GPU copy of mesh. The previous buffers are
// destroyed once every frame in flight that may read them has completed.
func (b *Backend) UploadGeometry(mesh *metadata.Mesh) error {
	vertices := float32Bytes(mesh.Interleave())
	indices := uint16Bytes(mesh.Indices)
	if len(vertices) == 0 || len(indices) == 0 {
		return fmt.Errorf("mesh '%s' has no geometry", mesh.Name)
	}

	g := &geometryBuffers{indexCount: uint32(len(mesh.Indices))}
	var err error
	if g.vertices, err = NewBuffer(b.context, uint64(len(vertices)), vk.BufferUsageVertexBufferBit, false); err != nil {
		return err
	}
	if g.indices, err = NewBuffer(b.context, uint64(len(indices)), vk.BufferUsageIndexBufferBit, false); err != nil {
		g.destroy(b.context)
		return err
	}
	if err := errors.Join(g.vertices.Write(b.context, 0, vertices), g.indices.Write(b.context, 0, indices)); err != nil {
		g.destroy(b.context)
		return err
	}

	b.mu.Lock()
	if old := b.geometry[mesh]; old != nil {
		b.retired = append(b.retired, retiredGeometry{buffers: old, submission: b.submitted})
	}
	b.geometry[mesh] = g
	b.mu.Unlock()
	return nil
}

// ReleaseGeometry is called by the frame driver once no frame in flight can
// reference the mesh.
func (b *Backend) ReleaseGeometry(mesh *metadata.Mesh) {
	b.mu.Lock()
	g, ok := b.geometry[mesh]
	delete(b.geometry, mesh)
	b.mu.Unlock()
	if ok {
		g.destroy(b.context)
	}
}

func (b *Backend) geometryOf(mesh *metadata.Mesh) (*geometryBuffers, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.geometry[mesh]
	return g, ok
}

func (b *Backend) NewFrameSlot() (renderer.CommandBuffer, renderer.Fence, error) {
	if len(b.rings) >= maxFrameSlots {
		return nil, nil, fmt.Errorf("at most %d frame slots are supported", maxFrameSlots)
	}
	ring, err := newTransformRing(b.context, b.transforms, transformRingSize)
	if err != nil {
		return nil, nil, err
	}
	cb, err := NewVulkanCommandBuffer(b, ring)
	if err != nil {
		ring.destroy(b.context)
		return nil, nil, err
	}
	fence, err := NewFence(b.context, true)
	if err != nil {
		cb.Free()
		ring.destroy(b.context)
		return nil, nil, err
	}
	b.rings = append(b.rings, ring)
	return cb, fence, nil
}

func (b *Backend) Submit(cb renderer.CommandBuffer, fence renderer.Fence) error {
	vcb, ok := cb.(*VulkanCommandBuffer)
	if !ok {
		return fmt.Errorf("foreign command buffer %T", cb)
	}
	vf, ok := fence.(*VulkanFence)
	if !ok {
		return fmt.Errorf("foreign fence %T", fence)
	}
	if vcb.State != COMMAND_BUFFER_STATE_RECORDING_ENDED {
		return fmt.Errorf("submitting a command buffer that was not ended")
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{vcb.Handle},
	}
	if err := b.context.locks.SafeCall(core.QueueSubmission, func() error {
		if result := vk.QueueSubmit(b.context.Queue, 1, []vk.SubmitInfo{submitInfo}, vf.Handle); result != vk.Success {
			return fmt.Errorf("vkQueueSubmit failed with result: %s", VulkanResultString(result, true))
		}
		return nil
	}); err != nil {
		return err
	}
	vf.markPending()
	vcb.UpdateSubmitted()

	b.mu.Lock()
	b.submitted++
	expired, kept := takeExpired(b.retired, b.submitted, len(b.rings))
	b.retired = kept
	b.mu.Unlock()
	for _, r := range expired {
		r.buffers.destroy(b.context)
	}
	return nil
}

func (b *Backend) WaitIdle() error {
	return b.context.locks.SafeCall(core.QueueSubmission, func() error {
		if res := vk.QueueWaitIdle(b.context.Queue); res != vk.Success {
			return fmt.Errorf("queue failed to wait in idle mode: %s", VulkanResultString(res, false))
		}
		return nil
	})
}

var _ renderer.RendererBackend = (*Backend)(nil)
