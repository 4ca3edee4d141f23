package headless

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/pipeline"
)

var ErrNotRecording = errors.New("headless: command buffer is not recording")

type CommandKind int

const (
	CmdBindPipeline CommandKind = iota
	CmdBindGeometry
	CmdPushTransforms
	CmdDrawIndexed
)

// Command is one recorded call.
type Command struct {
	Kind       CommandKind
	Pipeline   metadata.PipelineHandle
	Mesh       *metadata.Mesh
	Matrices   int
	IndexCount uint32
	Instances  uint32
}

// Pipeline is the native object handed to the pipeline cache.
type Pipeline struct {
	ID         int
	Descriptor *pipeline.Descriptor
}

type geometry struct {
	vertices []float32
	indices  []uint16
}

type Stats struct {
	PipelinesCompiled  int
	PipelinesDestroyed int
	Uploads            int
	LiveGeometry       int
	Submits            int
}

/**
 * @brief A backend that records instead of drawing. Submitted work
 * completes immediately, so fences are signaled by Submit.
 */
type Backend struct {
	mu sync.Mutex
	// FailShaders makes CompilePipeline fail for these shader names.
	FailShaders map[string]bool

	name      string
	stats     Stats
	geometry  map[*metadata.Mesh]*geometry
	lastFrame []Command
	shutdown  bool
}

func New() *Backend {
	return &Backend{
		FailShaders: make(map[string]bool),
		geometry:    make(map[*metadata.Mesh]*geometry),
	}
}

func (b *Backend) Initialize(appName string) error {
	b.name = appName
	core.LogInfo("headless backend initialized for '%s'", appName)
	return nil
}

func (b *Backend) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.shutdown {
		return nil
	}
	b.shutdown = true
	if n := len(b.geometry); n > 0 {
		core.LogWarn("headless backend shut down with %d live geometry buffers", n)
	}
	return nil
}

func (b *Backend) CompilePipeline(desc *pipeline.Descriptor) (interface{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailShaders[desc.ShaderName] {
		return nil, fmt.Errorf("headless: shader '%s' failed to compile", desc.ShaderName)
	}
	b.stats.PipelinesCompiled++
	return &Pipeline{ID: b.stats.PipelinesCompiled, Descriptor: desc}, nil
}

func (b *Backend) DestroyPipeline(native interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := native.(*Pipeline); ok {
		b.stats.PipelinesDestroyed++
	}
}

func (b *Backend) UploadGeometry(mesh *metadata.Mesh) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.geometry[mesh] = &geometry{
		vertices: mesh.Interleave(),
		indices:  append([]uint16(nil), mesh.Indices...),
	}
	b.stats.Uploads++
	return nil
}

func (b *Backend) ReleaseGeometry(mesh *metadata.Mesh) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.geometry, mesh)
}

func (b *Backend) hasGeometry(mesh *metadata.Mesh) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.geometry[mesh]
	return ok
}

func (b *Backend) NewFrameSlot() (renderer.CommandBuffer, renderer.Fence, error) {
	return &CommandBuffer{backend: b}, &Fence{signaled: true}, nil
}

func (b *Backend) Submit(cb renderer.CommandBuffer, fence renderer.Fence) error {
	hcb, ok := cb.(*CommandBuffer)
	if !ok {
		return fmt.Errorf("headless: foreign command buffer %T", cb)
	}
	hf, ok := fence.(*Fence)
	if !ok {
		return fmt.Errorf("headless: foreign fence %T", fence)
	}
	if hcb.state != stateEnded {
		return fmt.Errorf("headless: submitting a command buffer that was not ended")
	}
	b.mu.Lock()
	b.lastFrame = append(b.lastFrame[:0], hcb.commands...)
	b.stats.Submits++
	b.mu.Unlock()

	hcb.state = stateSubmitted
	hf.signaled = true
	return nil
}

func (b *Backend) WaitIdle() error {
	return nil
}

func (b *Backend) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.LiveGeometry = len(b.geometry)
	return s
}

// LastFrame returns the commands of the last submitted command buffer.
func (b *Backend) LastFrame() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Command(nil), b.lastFrame...)
}

// DrawCalls counts the draws of the last submitted frame.
func (b *Backend) DrawCalls() int {
	n := 0
	for _, c := range b.LastFrame() {
		if c.Kind == CmdDrawIndexed {
			n++
		}
	}
	return n
}

type Fence struct {
	signaled bool
}

func (f *Fence) Wait(timeoutNs uint64) error {
	if !f.signaled {
		return core.ErrFenceTimeout
	}
	return nil
}

func (f *Fence) Reset() error {
	f.signaled = false
	return nil
}

func (f *Fence) Destroy() {
	f.signaled = false
}

type commandBufferState int

const (
	stateReady commandBufferState = iota
	stateRecording
	stateEnded
	stateSubmitted
)

type CommandBuffer struct {
	backend  *Backend
	state    commandBufferState
	commands []Command
}

func (c *CommandBuffer) Begin() error {
	if c.state == stateRecording {
		return fmt.Errorf("headless: command buffer already recording")
	}
	c.state = stateRecording
	return nil
}

func (c *CommandBuffer) End() error {
	if c.state != stateRecording {
		return ErrNotRecording
	}
	c.state = stateEnded
	return nil
}

func (c *CommandBuffer) Reset() error {
	c.commands = c.commands[:0]
	c.state = stateReady
	return nil
}

func (c *CommandBuffer) record(cmd Command) error {
	if c.state != stateRecording {
		return ErrNotRecording
	}
	c.commands = append(c.commands, cmd)
	return nil
}

func (c *CommandBuffer) BindPipeline(entry *pipeline.Entry) error {
	if _, ok := entry.Native.(*Pipeline); !ok {
		return fmt.Errorf("headless: pipeline %d was not built by this backend", entry.Handle)
	}
	return c.record(Command{Kind: CmdBindPipeline, Pipeline: entry.Handle})
}

func (c *CommandBuffer) BindGeometry(mesh *metadata.Mesh) error {
	if !c.backend.hasGeometry(mesh) {
		return fmt.Errorf("headless: mesh '%s' was never uploaded", mesh.Name)
	}
	return c.record(Command{Kind: CmdBindGeometry, Mesh: mesh})
}

func (c *CommandBuffer) PushTransforms(entry *pipeline.Entry, matrices []math.Mat4) error {
	return c.record(Command{Kind: CmdPushTransforms, Pipeline: entry.Handle, Matrices: len(matrices)})
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount uint32) error {
	return c.record(Command{Kind: CmdDrawIndexed, IndexCount: indexCount, Instances: instanceCount})
}

func (c *CommandBuffer) Free() {
	c.commands = nil
	c.state = stateReady
}
