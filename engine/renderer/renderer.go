package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/tessera/engine/containers"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/batching"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/pipeline"
	"github.com/spaghettifunk/tessera/engine/renderer/shaders"
)

const maxFramesInFlight uint32 = 3

// FrameSlot is one command buffer and the fence guarding its reuse.
type FrameSlot struct {
	Index         int
	CommandBuffer CommandBuffer
	Fence         Fence
}

type retiredMesh struct {
	mesh  *metadata.Mesh
	frame uint64
}

/**
 * @brief The frame submission driver. Validates drawables, batches the
 * valid ones and records them into the next free frame slot.
 * All methods must be called from the render thread.
 */
type Renderer struct {
	config   *core.Config
	backend  RendererBackend
	registry *shaders.Registry

	cache     *pipeline.Cache
	validator *Validator
	batches   *batching.Manager
	metrics   *core.FrameMetrics

	frames      *containers.RingQueue[*FrameSlot]
	slots       []*FrameSlot
	current     *FrameSlot
	frameNumber uint64
	visible     []*metadata.Drawable
	retired     []retiredMesh
}

func NewRenderer(config *core.Config, backend RendererBackend, registry *shaders.Registry) (*Renderer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	r := &Renderer{
		config:   config,
		backend:  backend,
		registry: registry,
		cache:    pipeline.NewCache(backend),
		metrics:  core.NewFrameMetrics(),
	}
	r.validator = NewValidator(registry, r.cache, shaders.SequentialLocations)
	r.batches = batching.NewManager(batching.LimitsFromConfig(config.Batching), registry)
	r.batches.OnDiscard = r.retireBatch

	count := math.Clamp(config.Renderer.FramesInFlight, 1, maxFramesInFlight)
	r.frames = containers.NewRingQueue[*FrameSlot](int(count))
	for i := 0; i < int(count); i++ {
		cb, fence, err := backend.NewFrameSlot()
		if err != nil {
			r.destroySlots()
			return nil, fmt.Errorf("failed to create frame slot %d: %w", i, err)
		}
		slot := &FrameSlot{Index: i, CommandBuffer: cb, Fence: fence}
		r.slots = append(r.slots, slot)
		if err := r.frames.Enqueue(slot); err != nil {
			return nil, err
		}
	}
	core.LogInfo("renderer created with %d frames in flight, batching enabled=%t", count, config.Batching.Enabled)
	return r, nil
}

func (r *Renderer) Cache() *pipeline.Cache {
	return r.cache
}

func (r *Renderer) Batches() *batching.Manager {
	return r.batches
}

func (r *Renderer) Metrics() *core.FrameMetrics {
	return r.metrics
}

func (r *Renderer) Validator() *Validator {
	return r.validator
}

func (r *Renderer) Registry() *shaders.Registry {
	return r.registry
}

func (r *Renderer) FrameNumber() uint64 {
	return r.frameNumber
}

func (r *Renderer) Backend() RendererBackend {
	return r.backend
}

// RenderFrame draws the drawables, which must already be culled and sorted.
func (r *Renderer) RenderFrame(drawables []*metadata.Drawable, rs *metadata.RenderState) error {
	r.frameNumber++
	rs.FrameNumber = r.frameNumber
	r.metrics.BeginFrame()
	r.validator.BeginFrame()

	r.visible = r.visible[:0]
	for _, d := range drawables {
		if r.validator.IsValid(d, rs) == Invalid {
			r.metrics.Current.SkippedDrawables++
			continue
		}
		r.visible = append(r.visible, d)
	}
	r.metrics.Current.PipelineFailures = r.validator.failures
	if r.validator.AllBuildsFailed() && r.cache.Len() == 0 {
		return core.ErrAllPipelinesFailed
	}

	if r.config.Batching.Enabled {
		r.batches.BatchSetup(r.visible)
	}

	slot, err := r.frames.Rotate()
	if err != nil {
		return err
	}
	if err := slot.Fence.Wait(r.config.Renderer.FenceTimeoutNs); err != nil {
		return fmt.Errorf("frame %d: %w", r.frameNumber, err)
	}
	r.releaseRetired()
	if err := slot.Fence.Reset(); err != nil {
		return err
	}
	if err := slot.CommandBuffer.Reset(); err != nil {
		return err
	}
	if err := slot.CommandBuffer.Begin(); err != nil {
		return err
	}
	r.current = slot

	if r.config.Batching.Enabled {
		r.batches.RenderBatches(rs, r)
	} else {
		for _, d := range r.visible {
			r.RenderSingle(d, rs)
		}
	}

	r.current = nil
	if err := slot.CommandBuffer.End(); err != nil {
		return err
	}
	return r.backend.Submit(slot.CommandBuffer, slot.Fence)
}

// RenderSingle records every pass of one drawable.
func (r *Renderer) RenderSingle(d *metadata.Drawable, rs *metadata.RenderState) {
	if r.current == nil {
		_ = core.Invariant("RenderSingle called outside of a frame")
		return
	}
	if err := r.upload(d.Mesh); err != nil {
		core.LogError("drawable '%s': %s", d.Name, err)
		r.metrics.Current.SkippedDrawables++
		return
	}
	model := []math.Mat4{d.ModelMatrix()}
	for _, pass := range d.Passes {
		if err := r.draw(pass, d.Mesh, model, uint32(d.Mesh.IndexCount())); err != nil {
			core.LogError("drawable '%s': %s", d.Name, err)
			continue
		}
		r.metrics.Current.SingleDrawCalls++
	}
}

// RenderBatch records the merged draw of a batch.
func (r *Renderer) RenderBatch(b *batching.Batch, rs *metadata.RenderState) {
	if r.current == nil {
		_ = core.Invariant("RenderBatch called outside of a frame")
		return
	}
	previous := b.Mesh()
	if b.SetupMesh(b.Material()) && previous != nil {
		r.retire(previous)
	}
	rd := b.RenderData()
	if rd == nil || rd.Mesh == nil {
		_ = core.Invariant("batch %s has no merged mesh", b.Label())
		return
	}
	if r.validator.IsValid(rd, rs) == Invalid {
		r.metrics.Current.SkippedDrawables += uint32(b.MemberCount())
		return
	}
	if err := r.upload(rd.Mesh); err != nil {
		core.LogError("batch %s: %s", b.Label(), err)
		return
	}
	for _, pass := range rd.Passes {
		if err := r.draw(pass, rd.Mesh, b.Matrices(), uint32(b.IndexCount())); err != nil {
			core.LogError("batch %s: %s", b.Label(), err)
			continue
		}
		r.metrics.Current.MergedDrawCalls++
	}
}

func (r *Renderer) upload(mesh *metadata.Mesh) error {
	if !mesh.IsDirty() {
		return nil
	}
	if err := r.backend.UploadGeometry(mesh); err != nil {
		return err
	}
	mesh.ClearDirty()
	mesh.ClearModified()
	return nil
}

func (r *Renderer) draw(pass *metadata.RenderPass, mesh *metadata.Mesh, matrices []math.Mat4, indexCount uint32) error {
	entry, ok := r.cache.Entry(pass.Pipeline)
	if !ok {
		return core.Invariant("pass has no cached pipeline (handle %d)", pass.Pipeline)
	}
	cb := r.current.CommandBuffer
	if err := cb.BindPipeline(entry); err != nil {
		return err
	}
	if err := cb.BindGeometry(mesh); err != nil {
		return err
	}
	if err := cb.PushTransforms(entry, matrices); err != nil {
		return err
	}
	return cb.DrawIndexed(indexCount, 1)
}

// retire defers freeing GPU geometry until no frame in flight can use it.
func (r *Renderer) retire(mesh *metadata.Mesh) {
	r.retired = append(r.retired, retiredMesh{mesh: mesh, frame: r.frameNumber})
}

func (r *Renderer) retireBatch(b *batching.Batch) {
	if m := b.Mesh(); m != nil {
		r.retire(m)
	}
}

func (r *Renderer) releaseRetired() {
	inFlight := uint64(len(r.slots))
	kept := r.retired[:0]
	for _, rm := range r.retired {
		if rm.frame+inFlight <= r.frameNumber {
			r.backend.ReleaseGeometry(rm.mesh)
			continue
		}
		kept = append(kept, rm)
	}
	r.retired = kept
}

// Release removes a drawable that left the scene. Its own mesh is freed when
// releaseMesh is set, callers sharing the mesh keep it.
func (r *Renderer) Release(d *metadata.Drawable, releaseMesh bool) {
	r.batches.Release(d)
	if releaseMesh && d.Mesh != nil {
		r.retire(d.Mesh)
	}
}

func (r *Renderer) destroySlots() {
	for _, s := range r.slots {
		s.CommandBuffer.Free()
		s.Fence.Destroy()
	}
	r.slots = nil
}

// Shutdown waits for the GPU and frees everything the renderer created.
func (r *Renderer) Shutdown() error {
	var errs []error
	if err := r.backend.WaitIdle(); err != nil {
		errs = append(errs, err)
	}
	r.batches.Teardown()
	for _, rm := range r.retired {
		r.backend.ReleaseGeometry(rm.mesh)
	}
	r.retired = nil
	r.cache.Destroy()
	r.destroySlots()
	if err := r.backend.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
