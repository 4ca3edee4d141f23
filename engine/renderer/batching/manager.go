package batching

import (
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// Submitter issues the draw calls for RenderBatches.
type Submitter interface {
	RenderSingle(d *metadata.Drawable, rs *metadata.RenderState)
	RenderBatch(b *Batch, rs *metadata.RenderState)
}

// partitionKey groups drawables that may share a batch.
type partitionKey struct {
	fingerprint metadata.Fingerprint
	material    *metadata.Material
	shaderType  metadata.ShaderType
	dynamic     bool
}

func keyOf(d *metadata.Drawable) partitionKey {
	k := partitionKey{
		fingerprint: d.Fingerprint(),
		material:    d.Material(),
	}
	if k.material != nil {
		k.shaderType = k.material.ShaderType
	}
	if d.Mesh != nil {
		k.dynamic = d.Mesh.Dynamic
	}
	return k
}

/**
 * @brief Splits the sorted drawable list into runs of compatible drawables
 * and keeps each drawable in a batch across frames. Live batches are kept
 * in creation order with an index from handle to list position; the draw
 * order is rebuilt from the sorted drawables on every BatchSetup.
 */
type Manager struct {
	limits  Limits
	policy  Batchability
	arena   *arena
	batches []*Batch
	index   map[metadata.BatchHandle]int
	frame   uint64

	// drawables handed to the last BatchSetup and the batches they use, in draw order
	visible map[*metadata.Drawable]struct{}
	ordered []*Batch

	// OnDiscard is called for every batch that gets destroyed.
	OnDiscard func(b *Batch)
}

func NewManager(limits Limits, policy Batchability) *Manager {
	return &Manager{
		limits:  limits,
		policy:  policy,
		arena:   newArena(64),
		index:   make(map[metadata.BatchHandle]int),
		visible: make(map[*metadata.Drawable]struct{}),
	}
}

// Batches returns every live batch in creation order.
func (m *Manager) Batches() []*Batch {
	return m.batches
}

// FrameBatches returns the batches of the last BatchSetup in draw order.
func (m *Manager) FrameBatches() []*Batch {
	return m.ordered
}

// IsVisible reports whether d was handed to the last BatchSetup.
func (m *Manager) IsVisible(d *metadata.Drawable) bool {
	_, ok := m.visible[d]
	return ok
}

func (m *Manager) Batch(h metadata.BatchHandle) (*Batch, bool) {
	return m.arena.get(h)
}

// BatchSetup assigns every drawable to a batch. Drawables must be sorted,
// a run ends as soon as the partition key changes.
func (m *Manager) BatchSetup(drawables []*metadata.Drawable) {
	m.frame++
	clear(m.visible)
	m.ordered = m.ordered[:0]
	if len(drawables) == 0 {
		return
	}
	for _, d := range drawables {
		m.visible[d] = struct{}{}
	}

	runs := m.runs(drawables)
	for _, r := range runs {
		m.createBatch(r[0], r[1], drawables)
	}

	// members of batches discarded by a later run still need a home
	for _, r := range runs {
		for i := r[0]; i < r[1]; i++ {
			if drawables[i].Batch == metadata.NoBatch {
				m.createBatch(r[0], r[1], drawables)
				break
			}
		}
	}
	m.prune()

	// a batch is drawn where its first member sits in the sorted list
	for _, d := range drawables {
		if b, ok := m.current(d); ok && b.listed != m.frame {
			b.listed = m.frame
			m.ordered = append(m.ordered, b)
		}
	}
}

// batches nobody referenced for this many frames are dropped
const staleFrames uint64 = 300

func (m *Manager) prune() {
	if m.frame <= staleFrames {
		return
	}
	for i := len(m.batches) - 1; i >= 0; i-- {
		if b := m.batches[i]; b.frame < m.frame-staleFrames {
			m.discard(b)
		}
	}
}

func (m *Manager) runs(drawables []*metadata.Drawable) [][2]int {
	var runs [][2]int
	start := 0
	prev := keyOf(drawables[0])
	for i := 1; i < len(drawables); i++ {
		k := keyOf(drawables[i])
		if k != prev {
			runs = append(runs, [2]int{start, i})
			start = i
			prev = k
		}
	}
	return append(runs, [2]int{start, len(drawables)})
}

// createBatch places drawables[start:end], which all share a partition key.
func (m *Manager) createBatch(start, end int, drawables []*metadata.Drawable) {
	key := keyOf(drawables[start])
	var run []*Batch

	// batches already holding members of this run are the reuse candidates
	for i := start; i < end; i++ {
		d := drawables[i]
		b, ok := m.current(d)
		if !ok {
			continue
		}
		// a merged batch must not draw members that are hidden this frame
		if b.key != key || b.IsBatchDirty() || !m.allVisible(b) {
			m.discard(b)
			continue
		}
		if !containsBatch(run, b) {
			run = append(run, b)
		}
	}

	for i := start; i < end; i++ {
		d := drawables[i]
		if b, ok := m.current(d); ok {
			b.frame = m.frame
			// a parented transform may move without being flagged once its
			// parent was cleaned, so compare against the cached slot
			if d.IsTransformDirty() || d.Transform.Parent != nil {
				b.SyncModelMatrix(d)
				d.MarkTransformClean()
			}
			continue
		}

		candidate := leastFull(run)
		if key.dynamic && candidate != nil && candidate.IsBatchDirty() {
			m.discard(candidate)
			run = removeBatch(run, candidate)
			candidate = nil
		}
		if candidate != nil && candidate.Add(d) {
			continue
		}

		b := m.newBatch(key)
		if !b.Add(d) {
			_ = core.Invariant("fresh batch refused drawable '%s'", d.Name)
			m.discard(b)
			continue
		}
		run = append(run, b)
	}
}

func (m *Manager) allVisible(b *Batch) bool {
	for _, d := range b.members {
		if _, ok := m.visible[d]; !ok {
			return false
		}
	}
	return true
}

// current returns the batch d is assigned to, clearing dangling handles.
func (m *Manager) current(d *metadata.Drawable) (*Batch, bool) {
	if d.Batch == metadata.NoBatch {
		return nil, false
	}
	b, ok := m.arena.get(d.Batch)
	if !ok || !b.owns(d) {
		d.Batch = metadata.NoBatch
		return nil, false
	}
	return b, true
}

func (m *Manager) newBatch(key partitionKey) *Batch {
	b := newBatch(m.limits, m.policy)
	b.key = key
	b.frame = m.frame
	m.arena.insert(b)
	m.index[b.handle] = len(m.batches)
	m.batches = append(m.batches, b)
	return b
}

// discard destroys b and detaches its members. The list and the index are
// kept consistent.
func (m *Manager) discard(b *Batch) {
	pos, ok := m.index[b.handle]
	if !ok || pos >= len(m.batches) || m.batches[pos] != b {
		_ = core.Invariant("batch %s missing from the batch index", b.label)
		return
	}
	b.SetMeshesDirty()

	m.batches = append(m.batches[:pos], m.batches[pos+1:]...)
	m.ordered = removeBatch(m.ordered, b)
	delete(m.index, b.handle)
	for i := pos; i < len(m.batches); i++ {
		m.index[m.batches[i].handle] = i
	}
	if err := m.arena.remove(b.handle); err != nil {
		_ = core.Invariant("batch %s: %s", b.label, err)
	}
	if m.OnDiscard != nil {
		m.OnDiscard(b)
	}
}

// Release detaches a drawable that left the scene. Its batch is rebuilt from
// the remaining members on the next BatchSetup.
func (m *Manager) Release(d *metadata.Drawable) {
	if b, ok := m.current(d); ok {
		m.discard(b)
	}
	d.Batch = metadata.NoBatch
}

// Teardown destroys every batch.
func (m *Manager) Teardown() {
	for len(m.batches) > 0 {
		m.discard(m.batches[len(m.batches)-1])
	}
	m.arena.reset()
	m.ordered = m.ordered[:0]
	clear(m.visible)
}

// RenderBatches draws the batches referenced by the last BatchSetup in the
// order of the sorted drawables. Unbatched drawables are drawn only when they
// were part of that setup.
func (m *Manager) RenderBatches(rs *metadata.RenderState, submitter Submitter) {
	for _, b := range m.ordered {
		if b.IsBatchable() {
			submitter.RenderBatch(b, rs)
		}
		for _, d := range b.unbatched {
			if _, ok := m.visible[d]; ok {
				submitter.RenderSingle(d, rs)
			}
		}
	}
}

// CheckConsistency verifies the list/index bookkeeping.
func (m *Manager) CheckConsistency() error {
	if len(m.index) != len(m.batches) || m.arena.len() != len(m.batches) {
		return core.Invariant("batch list has %d entries, index %d, arena %d", len(m.batches), len(m.index), m.arena.len())
	}
	for i, b := range m.batches {
		if m.index[b.handle] != i {
			return core.Invariant("batch %s indexed at %d, listed at %d", b.label, m.index[b.handle], i)
		}
	}
	return nil
}

func leastFull(batches []*Batch) *Batch {
	var best *Batch
	for _, b := range batches {
		if b.isFull() {
			continue
		}
		// strict less keeps the first in scan order on ties
		if best == nil || b.MemberCount() < best.MemberCount() {
			best = b
		}
	}
	return best
}

func containsBatch(batches []*Batch, b *Batch) bool {
	for _, x := range batches {
		if x == b {
			return true
		}
	}
	return false
}

func removeBatch(batches []*Batch, b *Batch) []*Batch {
	for i, x := range batches {
		if x == b {
			return append(batches[:i], batches[i+1:]...)
		}
	}
	return batches
}
