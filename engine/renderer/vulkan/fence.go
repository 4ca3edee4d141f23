package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool

	context *VulkanContext
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
		context:    context,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if res := vk.CreateFence(context.Device, &fenceCreateInfo, context.Allocator, &pFence); res != vk.Success {
		return nil, fmt.Errorf("failed to create fence: %s", VulkanResultString(res, false))
	}
	fence.Handle = pFence
	return fence, nil
}

func (vf *VulkanFence) Destroy() {
	if vf.Handle != vk.NullFence {
		vk.DestroyFence(vf.context.Device, vf.Handle, vf.context.Allocator)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}

// Wait returns core.ErrFenceTimeout when the GPU did not finish in time.
func (vf *VulkanFence) Wait(timeoutNs uint64) error {
	if vf.IsSignaled {
		// If already signaled, do not wait.
		return nil
	}
	result := vk.WaitForFences(vf.context.Device, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
		return core.ErrFenceTimeout
	}
	return fmt.Errorf("vk_fence_wait - %s", VulkanResultString(result, true))
}

func (vf *VulkanFence) Reset() error {
	if !vf.IsSignaled {
		return nil
	}
	if res := vk.ResetFences(vf.context.Device, 1, []vk.Fence{vf.Handle}); res != vk.Success {
		return fmt.Errorf("failed to reset fence: %s", VulkanResultString(res, false))
	}
	vf.IsSignaled = false
	return nil
}

// markPending is called once the fence was handed to a queue submission.
func (vf *VulkanFence) markPending() {
	vf.IsSignaled = false
}
