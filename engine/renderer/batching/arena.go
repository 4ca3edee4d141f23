package batching

import (
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// arena owns every live batch. Drawables only keep the handle, so a discarded
// batch can never be reached through a stale pointer.
type arena struct {
	ids *core.HandleAllocator[Batch]
}

func newArena(capacity int) *arena {
	return &arena{ids: core.NewHandleAllocator[Batch](capacity)}
}

// handles are offset by one so the zero value stays "unbatched"
func (a *arena) insert(b *Batch) metadata.BatchHandle {
	b.handle = metadata.BatchHandle(a.ids.Acquire(b) + 1)
	return b.handle
}

func (a *arena) get(h metadata.BatchHandle) (*Batch, bool) {
	if h == metadata.NoBatch {
		return nil, false
	}
	return a.ids.Get(uint32(h - 1))
}

func (a *arena) remove(h metadata.BatchHandle) error {
	if h == metadata.NoBatch {
		return core.ErrInvalidHandle
	}
	return a.ids.Release(uint32(h - 1))
}

func (a *arena) len() int {
	return a.ids.Live()
}

func (a *arena) reset() {
	a.ids.Reset()
}
