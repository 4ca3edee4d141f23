package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

var ErrNilDescriptor = errors.New("pipeline: descriptor is nil")

// Compiler turns a descriptor into a native pipeline object.
type Compiler interface {
	CompilePipeline(desc *Descriptor) (interface{}, error)
	DestroyPipeline(native interface{})
}

// Entry is a cached pipeline. Entries live as long as their cache.
type Entry struct {
	Handle      metadata.PipelineHandle
	Fingerprint metadata.Fingerprint
	Native      interface{}
	Template    DescriptorTemplate
	Stride      uint32
}

type Stats struct {
	Hits     uint64
	Misses   uint64
	Failures uint64
	Entries  int
}

/**
 * @brief Pipelines keyed by fingerprint. At most one entry exists per
 * fingerprint and nothing is evicted before Destroy.
 *
 * Safe for concurrent use: lookups take the read lock, builds run under the
 * write lock after a second check.
 */
type Cache struct {
	mu       sync.RWMutex
	compiler Compiler
	entries  map[metadata.Fingerprint]*Entry
	// index is handle - 1
	byHandle []*Entry

	hits     atomic.Uint64
	misses   atomic.Uint64
	failures atomic.Uint64
}

func NewCache(compiler Compiler) *Cache {
	return &Cache{
		compiler: compiler,
		entries:  make(map[metadata.Fingerprint]*Entry),
	}
}

// GetOrCreate returns the entry for desc.Fingerprint, compiling it on a miss.
// A failed build is not cached, the next call tries again.
func (c *Cache) GetOrCreate(desc *Descriptor) (*Entry, error) {
	if desc == nil {
		return nil, ErrNilDescriptor
	}

	// Fast path: read lock
	c.mu.RLock()
	if e, ok := c.entries[desc.Fingerprint]; ok {
		c.mu.RUnlock()
		c.hits.Add(1)
		return e, nil
	}
	c.mu.RUnlock()

	// Slow path: write lock with double-check
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[desc.Fingerprint]; ok {
		c.hits.Add(1)
		return e, nil
	}

	native, err := c.compiler.CompilePipeline(desc)
	if err != nil {
		c.failures.Add(1)
		return nil, fmt.Errorf("%w: shader '%s': %w", core.ErrPipelineBuild, desc.ShaderName, err)
	}

	e := &Entry{
		Handle:      metadata.PipelineHandle(len(c.byHandle) + 1),
		Fingerprint: desc.Fingerprint,
		Native:      native,
		Template:    desc.Template(),
		Stride:      desc.Stride,
	}
	c.entries[desc.Fingerprint] = e
	c.byHandle = append(c.byHandle, e)
	c.misses.Add(1)
	core.LogDebug("pipeline cache: built pipeline %d for shader '%s'", e.Handle, desc.ShaderName)

	return e, nil
}

func (c *Cache) Lookup(fp metadata.Fingerprint) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[fp]
	return e, ok
}

// Entry resolves a handle stored on a render pass.
func (c *Cache) Entry(h metadata.PipelineHandle) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if h == metadata.NoPipeline || int(h) > len(c.byHandle) {
		return nil, false
	}
	e := c.byHandle[h-1]
	return e, e != nil
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Failures: c.failures.Load(),
		Entries:  c.Len(),
	}
}

// Destroy releases every native pipeline. Handles handed out before are invalid afterwards.
func (c *Cache) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.byHandle {
		if e != nil {
			c.compiler.DestroyPipeline(e.Native)
		}
	}
	c.entries = make(map[metadata.Fingerprint]*Entry)
	c.byHandle = nil
}
