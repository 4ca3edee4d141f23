package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/tessera/engine/assets/loaders"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/shaders"
)

type AssetInfo struct {
	Path       string
	Type       AssetType
	LastLoaded time.Time
}

// what a bindings file added, so it can be taken back when the file goes away
type appliedBindings struct {
	shader *shaders.Shader
	keys   map[shaders.BindingKind][]string
}

/**
 * @brief Watches a directory of shader binding descriptors and feeds them
 * into the shader registry from its own goroutine. The render thread
 * picks the changes up through the binding tables' version counters.
 */
type AssetManager struct {
	registry *shaders.Registry
	bus      *core.EventBus

	assets  map[string]AssetInfo
	applied map[string]appliedBindings
	loaders map[AssetType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager(registry *shaders.Registry, bus *core.EventBus) (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	am := &AssetManager{
		registry: registry,
		bus:      bus,
		assets:   make(map[string]AssetInfo),
		applied:  make(map[string]appliedBindings),
		loaders:  make(map[AssetType]Loader),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}
	// Register loaders
	am.registerLoader(AssetTypeBindings, &loaders.BindingsLoader{})
	return am, nil
}

// Initialize loads every descriptor under assetsDir and keeps watching it.
func (am *AssetManager) Initialize(assetsDir string) error {
	if err := am.addRecursive(assetsDir); err != nil {
		return err
	}
	am.wg.Add(1)
	go am.start()
	return nil
}

// Shutdown stops the watcher goroutine and waits for it.
func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	am.wg.Wait()
	return am.fsnotify.Close()
}

// AddRecursive starts watching the named directory and all sub-directories.
func (am *AssetManager) addRecursive(name string) error {
	am.mutex.RLock()
	closed := am.isClosed
	am.mutex.RUnlock()
	if closed {
		return errors.New("asset manager already closed")
	}
	return am.watchRecursive(name)
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType AssetType, loader Loader) {
	am.loaders[assetType] = loader
}

// Assets returns the known assets.
func (am *AssetManager) Assets() []AssetInfo {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	out := make([]AssetInfo, 0, len(am.assets))
	for _, a := range am.assets {
		out = append(out, a)
	}
	return out
}

// LoadAsset loads or reloads the asset at path and applies it.
func (am *AssetManager) LoadAsset(path string) error {
	assetType := determineAssetType(path)
	loader, ok := am.loaders[assetType]
	if !ok {
		return fmt.Errorf("no loader registered for asset '%s'", path)
	}
	data, err := loader.Load(path)
	if err != nil {
		return err
	}

	switch v := data.(type) {
	case *loaders.BindingsFile:
		am.applyBindings(path, v)
	default:
		return fmt.Errorf("loader for '%s' returned %T", path, data)
	}

	am.mutex.Lock()
	am.assets[path] = AssetInfo{
		Path:       path,
		Type:       assetType,
		LastLoaded: time.Now(),
	}
	am.mutex.Unlock()
	return nil
}

func (am *AssetManager) applyBindings(path string, bf *loaders.BindingsFile) {
	shader, ok := am.registry.Find(bf.Shader)
	if !ok || shader.Type == metadata.ShaderTypeCustom {
		shader = am.registry.RegisterCustom(bf.Shader, bf.Batchable)
	}

	// a rewrite replaces whatever the previous version of the file added
	am.revertBindings(path, map[shaders.BindingKind][]loaders.BindingEntry{
		shaders.TextureBinding:   bf.Textures,
		shaders.UniformBinding:   bf.Uniforms,
		shaders.AttributeBinding: bf.Attributes,
	})

	applied := appliedBindings{shader: shader, keys: make(map[shaders.BindingKind][]string)}
	for _, e := range bf.Textures {
		shader.Bindings.AddTexture(e.Key, e.Variable)
		applied.keys[shaders.TextureBinding] = append(applied.keys[shaders.TextureBinding], e.Key)
	}
	for _, e := range bf.Uniforms {
		shader.Bindings.AddUniform(e.Key, e.Variable, e.Type)
		applied.keys[shaders.UniformBinding] = append(applied.keys[shaders.UniformBinding], e.Key)
	}
	for _, e := range bf.Attributes {
		shader.Bindings.AddAttribute(e.Key, e.Variable, e.Type)
		applied.keys[shaders.AttributeBinding] = append(applied.keys[shaders.AttributeBinding], e.Key)
	}

	am.mutex.Lock()
	am.applied[path] = applied
	am.mutex.Unlock()

	core.LogInfo("bindings for shader '%s' loaded from %s", shader.Name, path)
	am.bus.Fire(core.EVENT_CODE_BINDINGS_CHANGED, am, core.EventContext{Name: shader.Name, Path: path})
}

// revertBindings removes the keys a file added before, except the ones in keep.
func (am *AssetManager) revertBindings(path string, keep map[shaders.BindingKind][]loaders.BindingEntry) *shaders.Shader {
	am.mutex.Lock()
	prev, ok := am.applied[path]
	delete(am.applied, path)
	am.mutex.Unlock()
	if !ok {
		return nil
	}
	for kind, keys := range prev.keys {
		for _, k := range keys {
			if !containsKey(keep[kind], k) {
				prev.shader.Bindings.Remove(kind, k)
			}
		}
	}
	return prev.shader
}

func containsKey(entries []loaders.BindingEntry, key string) bool {
	for _, e := range entries {
		if e.Key == key {
			return true
		}
	}
	return false
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := am.watchRecursive(e.Name); err != nil {
						core.LogWarn("failed to watch %s: %s", e.Name, err)
					}
				}
				continue
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				am.handleFileEvent(e.Name)
			}
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			return
		}
	}
}

// watchRecursive adds all directories under the given one to the watch list
// and loads the files already present.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) {
	if determineAssetType(path) == AssetTypeNone {
		return
	}
	if err := am.LoadAsset(path); err != nil {
		// editors write in several steps, the next write event retries
		core.LogWarn("failed to load %s: %s", path, err)
	}
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	_, known := am.assets[path]
	delete(am.assets, path)
	am.mutex.Unlock()
	if !known {
		return
	}
	if shader := am.revertBindings(path, nil); shader != nil {
		core.LogInfo("bindings for shader '%s' removed with %s", shader.Name, path)
		am.bus.Fire(core.EVENT_CODE_BINDINGS_REMOVED, am, core.EventContext{Name: shader.Name, Path: path})
	}
}

func determineAssetType(path string) AssetType {
	if strings.HasSuffix(path, loaders.BindingsExtension) {
		return AssetTypeBindings
	}
	return AssetTypeNone
}
