package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
)

// Matrices visible to one draw. 256 mat4 fill the minimum guaranteed
// uniform range of 16KB.
const MaxTransformsPerDraw = core.MaxBatchMembers

const mat4Size = 64

/**
 * @brief The transform table layout shared by every pipeline: set 0,
 * binding 0, a dynamic uniform buffer of mat4 read by the vertex stage
 * and indexed with a_matrix_index.
 */
type transformLayout struct {
	SetLayout vk.DescriptorSetLayout
	Pool      vk.DescriptorPool
}

func newTransformLayout(context *VulkanContext, maxSets uint32) (*transformLayout, error) {
	tl := &transformLayout{}
	binding := vk.DescriptorSetLayoutBinding{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeUniformBufferDynamic,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
	}
	var layout vk.DescriptorSetLayout
	res := vk.CreateDescriptorSetLayout(context.Device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings:    []vk.DescriptorSetLayoutBinding{binding},
	}, context.Allocator, &layout)
	if res != vk.Success {
		return nil, fmt.Errorf("vkCreateDescriptorSetLayout failed with %s", VulkanResultString(res, true))
	}
	tl.SetLayout = layout

	var pool vk.DescriptorPool
	res = vk.CreateDescriptorPool(context.Device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: 1,
		PPoolSizes: []vk.DescriptorPoolSize{{
			Type:            vk.DescriptorTypeUniformBufferDynamic,
			DescriptorCount: maxSets,
		}},
	}, context.Allocator, &pool)
	if res != vk.Success {
		tl.destroy(context)
		return nil, fmt.Errorf("vkCreateDescriptorPool failed with %s", VulkanResultString(res, true))
	}
	tl.Pool = pool
	return tl, nil
}

func (tl *transformLayout) destroy(context *VulkanContext) {
	if tl.Pool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(context.Device, tl.Pool, context.Allocator)
		tl.Pool = vk.NullDescriptorPool
	}
	if tl.SetLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(context.Device, tl.SetLayout, context.Allocator)
		tl.SetLayout = vk.NullDescriptorSetLayout
	}
}

/**
 * @brief Per frame slot ring of transform tables. Every PushTransforms
 * appends at the next aligned offset; the ring rewinds when the slot's
 * command buffer is reset.
 */
type transformRing struct {
	buffer *VulkanBuffer
	set    vk.DescriptorSet
	offset uint64
}

func newTransformRing(context *VulkanContext, layout *transformLayout, size uint64) (*transformRing, error) {
	buffer, err := NewBuffer(context, size, vk.BufferUsageUniformBufferBit, true)
	if err != nil {
		return nil, err
	}
	var set vk.DescriptorSet
	res := vk.AllocateDescriptorSets(context.Device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     layout.Pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout.SetLayout},
	}, &set)
	if res != vk.Success {
		buffer.Destroy(context)
		return nil, fmt.Errorf("vkAllocateDescriptorSets failed with %s", VulkanResultString(res, true))
	}

	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBufferDynamic,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: buffer.Handle,
			Offset: 0,
			Range:  vk.DeviceSize(MaxTransformsPerDraw * mat4Size),
		}},
	}
	vk.UpdateDescriptorSets(context.Device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return &transformRing{buffer: buffer, set: set}, nil
}

// push stores the table and returns its dynamic offset.
func (r *transformRing) push(context *VulkanContext, data []byte) (uint32, error) {
	offset := alignUp(r.offset, context.MinUniformAlignment)
	// the bound range always reads a full table
	if offset+MaxTransformsPerDraw*mat4Size > r.buffer.Size {
		return 0, fmt.Errorf("transform ring of %d bytes is full", r.buffer.Size)
	}
	if err := r.buffer.Write(context, offset, data); err != nil {
		return 0, err
	}
	r.offset = offset + uint64(len(data))
	return uint32(offset), nil
}

func (r *transformRing) reset() {
	r.offset = 0
}

func (r *transformRing) destroy(context *VulkanContext) {
	// the set goes away with the pool
	r.buffer.Destroy(context)
}
