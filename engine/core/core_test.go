package core

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tessera.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[application]
name = "demo"
log_level = "debug"
max_frames = 120

[batching]
max_members = 16
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Application.Name)
	assert.Equal(t, DebugLevel, cfg.Application.LogLevel)
	assert.Equal(t, uint64(120), cfg.Application.MaxFrames)
	assert.Equal(t, uint32(16), cfg.Batching.MaxMembers)
	// untouched keys keep their defaults
	assert.True(t, cfg.Batching.Enabled)
	assert.Equal(t, uint32(65535), cfg.Batching.MaxIndices)
	assert.Equal(t, uint32(2), cfg.Renderer.FramesInFlight)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[batching]\nmax_vertices = 70000\n"), 0o644))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "16 bit")

	require.NoError(t, os.WriteFile(path, []byte("[batching]\nmax_members = 257\n"), 0o644))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "exceeds the 256 transforms")

	require.NoError(t, os.WriteFile(path, []byte("[batching\n"), 0o644))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "failed to decode")
}

func TestHandleAllocator(t *testing.T) {
	h := NewHandleAllocator[string](4)
	a, b := "a", "b"

	ida := h.Acquire(&a)
	idb := h.Acquire(&b)
	assert.NotEqual(t, ida, idb)
	assert.Equal(t, 2, h.Live())

	got, ok := h.Get(idb)
	require.True(t, ok)
	assert.Same(t, &b, got)

	require.NoError(t, h.Release(ida))
	assert.ErrorIs(t, h.Release(ida), ErrInvalidHandle)
	assert.ErrorIs(t, h.Release(99), ErrInvalidHandle)
	_, ok = h.Get(ida)
	assert.False(t, ok)

	c := "c"
	assert.Equal(t, ida, h.Acquire(&c), "released ids are reused")

	h.Reset()
	assert.Equal(t, 0, h.Live())
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	var got []string
	first, second := "first", "second"

	handler := func(handled bool) FnOnEvent {
		return func(code SystemEventCode, sender interface{}, listener interface{}, data EventContext) bool {
			got = append(got, *listener.(*string)+":"+data.Name)
			return handled
		}
	}
	require.True(t, bus.Register(EVENT_CODE_BINDINGS_CHANGED, &first, handler(false)))
	require.True(t, bus.Register(EVENT_CODE_BINDINGS_CHANGED, &second, handler(true)))
	assert.False(t, bus.Register(EVENT_CODE_BINDINGS_CHANGED, &first, handler(false)), "duplicate listener")

	assert.True(t, bus.Fire(EVENT_CODE_BINDINGS_CHANGED, nil, EventContext{Name: "water"}))
	assert.Equal(t, []string{"first:water", "second:water"}, got)

	assert.True(t, bus.Unregister(EVENT_CODE_BINDINGS_CHANGED, &second))
	assert.False(t, bus.Fire(EVENT_CODE_BINDINGS_CHANGED, nil, EventContext{Name: "lava"}))
	assert.False(t, bus.Fire(EVENT_CODE_APPLICATION_QUIT, nil, EventContext{}))

	bus.Shutdown()
	assert.False(t, bus.Unregister(EVENT_CODE_BINDINGS_CHANGED, &first))
}

func TestLockPoolSerializesGroup(t *testing.T) {
	lp := NewLockPool()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = lp.SafeCall(PipelineCreation, func() error {
					counter++
					return nil
				})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1600, counter)

	assert.ErrorIs(t, lp.SafeCall(QueueSubmission, func() error { return ErrQueueFull }), ErrQueueFull)
}

func TestFrameMetrics(t *testing.T) {
	m := NewFrameMetrics()
	m.Current.MergedDrawCalls = 2
	m.Current.SingleDrawCalls = 3
	assert.Equal(t, uint32(5), m.Current.DrawCalls())

	m.BeginFrame()
	assert.Equal(t, uint32(5), m.Last.DrawCalls())
	assert.Equal(t, uint32(0), m.Current.DrawCalls())

	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.016)
	}
	_, ms := m.FPSAndFrameTime()
	assert.InDelta(t, 16.0, ms, 0.001)
}

func TestInvariantReturnsError(t *testing.T) {
	if debugBuild {
		t.Skip("invariants abort in debug builds")
	}
	err := Invariant("batch %d lost", 3)
	assert.ErrorIs(t, err, ErrInvariant)
	assert.ErrorContains(t, err, "batch 3 lost")
}
