package assets

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/shaders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waterBindings = `
batchable = true

[[uniforms]]
key = "wave_height"
variable = "u_wave_height"
type = "float"
`

const waterBindingsV2 = `
batchable = true

[[uniforms]]
key = "wave_speed"
variable = "u_wave_speed"
type = "float"
`

func newManager(t *testing.T) (*AssetManager, *shaders.Registry, *core.EventBus) {
	t.Helper()
	registry := shaders.NewRegistry()
	bus := core.NewEventBus()
	am, err := NewAssetManager(registry, bus)
	require.NoError(t, err)
	t.Cleanup(func() { _ = am.Shutdown() })
	return am, registry, bus
}

func hasUniform(registry *shaders.Registry, shader, key string) bool {
	s, ok := registry.Find(shader)
	if !ok {
		return false
	}
	_, ok = s.Bindings.Lookup(shaders.UniformBinding, key)
	return ok
}

func TestAssetManagerLoadsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "water.bindings.toml"), []byte(waterBindings), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("ignored"), 0o644))

	am, registry, bus := newManager(t)
	var changed atomic.Int32
	bus.Register(core.EVENT_CODE_BINDINGS_CHANGED, t, func(_ core.SystemEventCode, _, _ interface{}, data core.EventContext) bool {
		if data.Name == "water" {
			changed.Add(1)
		}
		return false
	})

	require.NoError(t, am.Initialize(dir))

	water, ok := registry.Find("water")
	require.True(t, ok)
	assert.True(t, water.Batchable)
	assert.True(t, hasUniform(registry, "water", "wave_height"))
	assert.Equal(t, int32(1), changed.Load())
	assert.Len(t, am.Assets(), 1)
}

func TestAssetManagerExtendsBuiltinShader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.bindings.toml"), []byte(`
shader = "texture"

[[textures]]
key = "detail"
variable = "u_detail"
`), 0o644))

	am, registry, _ := newManager(t)
	texture, ok := registry.Find("texture")
	require.True(t, ok)
	before := texture.Bindings.Version()

	require.NoError(t, am.Initialize(dir))

	_, ok = texture.Bindings.Lookup(shaders.TextureBinding, "detail")
	assert.True(t, ok)
	assert.Greater(t, texture.Bindings.Version(), before)
	_, custom := registry.ByName("texture")
	assert.False(t, custom, "built in shaders are not re-registered as custom")
}

func TestAssetManagerWatchesChanges(t *testing.T) {
	dir := t.TempDir()
	am, registry, bus := newManager(t)
	var removed atomic.Int32
	bus.Register(core.EVENT_CODE_BINDINGS_REMOVED, t, func(_ core.SystemEventCode, _, _ interface{}, _ core.EventContext) bool {
		removed.Add(1)
		return false
	})
	require.NoError(t, am.Initialize(dir))

	path := filepath.Join(dir, "water.bindings.toml")
	require.NoError(t, os.WriteFile(path, []byte(waterBindings), 0o644))
	require.Eventually(t, func() bool {
		return hasUniform(registry, "water", "wave_height")
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(waterBindingsV2), 0o644))
	require.Eventually(t, func() bool {
		return hasUniform(registry, "water", "wave_speed") && !hasUniform(registry, "water", "wave_height")
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		return removed.Load() == 1 && !hasUniform(registry, "water", "wave_speed")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, am.Assets())
}

func TestAssetManagerShutdownTwice(t *testing.T) {
	am, _, _ := newManager(t)
	require.NoError(t, am.Initialize(t.TempDir()))
	require.NoError(t, am.Shutdown())
	assert.NoError(t, am.Shutdown())
	assert.Error(t, am.Initialize(t.TempDir()))
}
