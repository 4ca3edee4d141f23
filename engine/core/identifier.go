package core

import "fmt"

// HandleAllocator hands out small integer ids, reusing released slots first.
type HandleAllocator[T any] struct {
	owners []*T
	free   []uint32
}

func NewHandleAllocator[T any](capacity int) *HandleAllocator[T] {
	return &HandleAllocator[T]{
		owners: make([]*T, 0, capacity),
	}
}

func (h *HandleAllocator[T]) Acquire(owner *T) uint32 {
	// Existing free spot. Take it.
	if n := len(h.free); n > 0 {
		id := h.free[n-1]
		h.free = h.free[:n-1]
		h.owners[id] = owner
		return id
	}

	// No free slots, push a new one. The id will be length - 1
	h.owners = append(h.owners, owner)
	return uint32(len(h.owners) - 1)
}

func (h *HandleAllocator[T]) Get(id uint32) (*T, bool) {
	if id >= uint32(len(h.owners)) || h.owners[id] == nil {
		return nil, false
	}
	return h.owners[id], true
}

func (h *HandleAllocator[T]) Release(id uint32) error {
	length := uint32(len(h.owners))
	if id >= length {
		return fmt.Errorf("%w: id '%d' out of range (max=%d). Nothing was done", ErrInvalidHandle, id, length)
	}
	if h.owners[id] == nil {
		return fmt.Errorf("%w: id '%d' already released", ErrInvalidHandle, id)
	}

	// Just zero out the entry, making it available for use.
	h.owners[id] = nil
	h.free = append(h.free, id)
	return nil
}

// Live returns the number of acquired ids.
func (h *HandleAllocator[T]) Live() int {
	return len(h.owners) - len(h.free)
}

// Reset drops every owner.
func (h *HandleAllocator[T]) Reset() {
	h.owners = h.owners[:0]
	h.free = h.free[:0]
}
