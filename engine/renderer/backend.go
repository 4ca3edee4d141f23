package renderer

import (
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/pipeline"
)

// Fence signals completion of submitted GPU work.
type Fence interface {
	// Wait blocks until the fence is signaled or the timeout expires.
	Wait(timeoutNs uint64) error
	Reset() error
	Destroy()
}

// CommandBuffer records the draws of one frame.
type CommandBuffer interface {
	Begin() error
	End() error
	Reset() error
	BindPipeline(entry *pipeline.Entry) error
	BindGeometry(mesh *metadata.Mesh) error
	PushTransforms(entry *pipeline.Entry, matrices []math.Mat4) error
	DrawIndexed(indexCount, instanceCount uint32) error
	Free()
}

/**
 * @brief The native graphics API seen from the frame driver. Pipelines are
 * compiled through the embedded Compiler.
 */
type RendererBackend interface {
	pipeline.Compiler

	Initialize(appName string) error
	Shutdown() error
	// NewFrameSlot creates a command buffer and a fence created signaled.
	NewFrameSlot() (CommandBuffer, Fence, error)
	// UploadGeometry copies the mesh to GPU memory. It returns after the copy
	// is visible to subsequently submitted work.
	UploadGeometry(mesh *metadata.Mesh) error
	ReleaseGeometry(mesh *metadata.Mesh)
	Submit(cb CommandBuffer, fence Fence) error
	WaitIdle() error
}

type RendererType uint8

const (
	Headless RendererType = iota
	Vulkan
)

func (t RendererType) String() string {
	switch t {
	case Headless:
		return "headless"
	case Vulkan:
		return "vulkan"
	}
	return "unknown"
}
