package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
)

/**
 * @brief Handles owned by the embedding application. The backend draws into
 * the given render pass and framebuffer and never presents.
 */
type Target struct {
	Device           vk.Device
	PhysicalDevice   vk.PhysicalDevice
	Queue            vk.Queue
	QueueFamilyIndex uint32
	RenderPass       vk.RenderPass
	Framebuffer      vk.Framebuffer
	Extent           vk.Extent2D
	// ClearColour is used when the render pass clears its attachments.
	ClearColour [4]float32
}

type VulkanContext struct {
	Target

	Allocator   *vk.AllocationCallbacks
	CommandPool vk.CommandPool

	// Alignment of dynamic uniform buffer offsets.
	MinUniformAlignment uint64
	memoryProperties    vk.PhysicalDeviceMemoryProperties

	// Queue and pool access are externally synchronized in Vulkan.
	locks *core.LockPool
}

func newContext(target Target) *VulkanContext {
	vc := &VulkanContext{
		Target:              target,
		MinUniformAlignment: 256,
		locks:               core.NewLockPool(),
	}
	vk.GetPhysicalDeviceMemoryProperties(target.PhysicalDevice, &vc.memoryProperties)
	vc.memoryProperties.Deref()

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(target.PhysicalDevice, &props)
	props.Deref()
	props.Limits.Deref()
	if a := uint64(props.Limits.MinUniformBufferOffsetAlignment); a > 0 {
		vc.MinUniformAlignment = a
	}
	return vc
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	for i := uint32(0); i < vc.memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		vc.memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(vc.memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

func alignUp(v, alignment uint64) uint64 {
	return (v + alignment - 1) &^ (alignment - 1)
}
