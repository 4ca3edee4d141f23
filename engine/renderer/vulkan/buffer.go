package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// VulkanBuffer is a host visible, host coherent buffer.
type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
	// Mapped stays valid until Destroy when the buffer is persistently mapped.
	Mapped unsafe.Pointer
}

func NewBuffer(context *VulkanContext, size uint64, usage vk.BufferUsageFlagBits, persistent bool) (*VulkanBuffer, error) {
	b := &VulkanBuffer{Size: size}
	var buffer vk.Buffer
	res := vk.CreateBuffer(context.Device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Usage:       vk.BufferUsageFlags(usage),
		Size:        vk.DeviceSize(size),
		SharingMode: vk.SharingModeExclusive,
	}, context.Allocator, &buffer)
	if res != vk.Success {
		return nil, fmt.Errorf("vkCreateBuffer failed with %s", VulkanResultString(res, true))
	}
	b.Handle = buffer

	// Ask device about its memory requirements.
	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device, buffer, &memReqs)
	memReqs.Deref()

	memType := context.FindMemoryIndex(memReqs.MemoryTypeBits,
		uint32(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if memType < 0 {
		b.Destroy(context)
		return nil, fmt.Errorf("no host visible memory type for a %d byte buffer", size)
	}

	var memory vk.DeviceMemory
	res = vk.AllocateMemory(context.Device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: uint32(memType),
	}, context.Allocator, &memory)
	if res != vk.Success {
		b.Destroy(context)
		return nil, fmt.Errorf("vkAllocateMemory failed with %s", VulkanResultString(res, true))
	}
	b.Memory = memory
	vk.BindBufferMemory(context.Device, buffer, memory, 0)

	if persistent {
		var ptr unsafe.Pointer
		if res := vk.MapMemory(context.Device, memory, 0, vk.DeviceSize(vk.WholeSize), 0, &ptr); res != vk.Success {
			b.Destroy(context)
			return nil, fmt.Errorf("vkMapMemory failed with %s", VulkanResultString(res, true))
		}
		b.Mapped = ptr
	}
	return b, nil
}

// Write copies data at offset, mapping the memory for the duration of the copy
// unless the buffer is persistently mapped.
func (b *VulkanBuffer) Write(context *VulkanContext, offset uint64, data []byte) error {
	if offset+uint64(len(data)) > b.Size {
		return fmt.Errorf("write of %d bytes at %d overflows a %d byte buffer", len(data), offset, b.Size)
	}
	if len(data) == 0 {
		return nil
	}
	if b.Mapped != nil {
		vk.Memcopy(unsafe.Add(b.Mapped, offset), data)
		return nil
	}
	var ptr unsafe.Pointer
	if res := vk.MapMemory(context.Device, b.Memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &ptr); res != vk.Success {
		return fmt.Errorf("vkMapMemory failed with %s", VulkanResultString(res, true))
	}
	n := vk.Memcopy(ptr, data)
	vk.UnmapMemory(context.Device, b.Memory)
	if n != len(data) {
		return fmt.Errorf("copied %d of %d bytes", n, len(data))
	}
	return nil
}

func (b *VulkanBuffer) Destroy(context *VulkanContext) {
	if b.Mapped != nil {
		vk.UnmapMemory(context.Device, b.Memory)
		b.Mapped = nil
	}
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(context.Device, b.Handle, context.Allocator)
		b.Handle = vk.NullBuffer
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device, b.Memory, context.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
}

/**
 * @brief GPU copy of one mesh: interleaved vertices and 16 bit indices.
 */
type geometryBuffers struct {
	vertices   *VulkanBuffer
	indices    *VulkanBuffer
	indexCount uint32
}

func (g *geometryBuffers) destroy(context *VulkanContext) {
	if g.vertices != nil {
		g.vertices.Destroy(context)
	}
	if g.indices != nil {
		g.indices.Destroy(context)
	}
}

func float32Bytes(data []float32) []byte {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*4)
}

func uint16Bytes(data []uint16) []byte {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*2)
}

func uint32Words(data []byte) []uint32 {
	if len(data) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}
