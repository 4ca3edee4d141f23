package core

import "sync"

type LockGroup string

const (
	TextureBindings   LockGroup = "texture_bindings"
	UniformBindings   LockGroup = "uniform_bindings"
	AttributeBindings LockGroup = "attribute_bindings"
	ShaderManagement  LockGroup = "shader_management"
	PipelineCreation  LockGroup = "pipeline_creation"
	QueueSubmission   LockGroup = "queue_submission"
)

// LockPool hands out one mutex per group, created on first use.
type LockPool struct {
	locks map[LockGroup]*sync.Mutex
	mu    sync.Mutex // Protects access to the locks map
}

func NewLockPool() *LockPool {
	return &LockPool{
		locks: make(map[LockGroup]*sync.Mutex),
	}
}

// Get or create the mutex for a specific group
func (lp *LockPool) lock(group LockGroup) *sync.Mutex {
	lp.mu.Lock()
	l, exists := lp.locks[group]
	if !exists {
		l = &sync.Mutex{}
		lp.locks[group] = l
	}
	lp.mu.Unlock()

	l.Lock()
	return l
}

// SafeCall runs fn while holding the group's mutex.
func (lp *LockPool) SafeCall(group LockGroup, fn func() error) error {
	l := lp.lock(group)
	defer l.Unlock()

	return fn()
}
