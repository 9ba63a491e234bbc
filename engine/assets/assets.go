package assets

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spaghettifunk/texture-renderer/engine/assets/loaders"
	"github.com/spaghettifunk/texture-renderer/engine/core"
	"github.com/spaghettifunk/texture-renderer/engine/resources"
)

const checkerSize = 4

type AssetInfo struct {
	// Slash separated, relative to the asset directory.
	Path       string
	Type       resources.ResourceType
	LastLoaded time.Time
	// Set while the current scene uses the asset. Only those trigger reloads.
	InUse bool
}

// AssetManager indexes the files under the asset directory, loads them with the loader
// registered for their type and, when watching, reports changes to assets in use with
// EVENT_CODE_ASSET_CHANGED.
type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[resources.ResourceType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager() *AssetManager {
	return &AssetManager{
		assets:  make(map[string]AssetInfo),
		loaders: make(map[resources.ResourceType]Loader),
		done:    make(chan struct{}),
	}
}

func (am *AssetManager) Initialize(assetsDir string, watch bool) error {
	root, err := filepath.Abs(assetsDir)
	if err != nil {
		return err
	}
	if info, err := os.Stat(root); err != nil {
		return err
	} else if !info.IsDir() {
		return fmt.Errorf("asset path %s is not a directory", root)
	}
	am.root = root

	// Register loaders
	am.registerLoader(resources.ResourceTypeBinary, &loaders.BinaryLoader{})
	am.registerLoader(resources.ResourceTypeImage, &loaders.ImageLoader{})
	am.registerLoader(resources.ResourceTypeMesh, &loaders.ModelLoader{})

	if err := am.index(root); err != nil {
		return err
	}
	core.LogInfo("asset manager indexed %d files under %s", len(am.assets), root)

	if !watch {
		return nil
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	am.fsnotify = fsWatch
	if err := am.addRecursive(root); err != nil {
		fsWatch.Close()
		return err
	}
	am.wg.Add(1)
	go am.start()
	return nil
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType resources.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// LoadAsset loads a file relative to the asset directory, or a builtin:<name> resource,
// and marks it as used by the current scene.
func (am *AssetManager) LoadAsset(name string, resourceType resources.ResourceType, params interface{}) (*resources.Resource, error) {
	if builtin, ok := strings.CutPrefix(name, resources.BuiltinPrefix); ok {
		return builtinResource(builtin, resourceType)
	}

	key := am.key(name)
	am.mutex.Lock()
	asset, exists := am.assets[key]
	if exists {
		asset.InUse = true
		asset.LastLoaded = time.Now()
		am.assets[key] = asset
	}
	am.mutex.Unlock()

	if !exists {
		return nil, fmt.Errorf("asset not found: %s", key)
	}
	if asset.Type != resourceType {
		return nil, fmt.Errorf("asset %s is a %s resource, not %s", key, asset.Type, resourceType)
	}
	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type: %s", asset.Type)
	}
	return loader.Load(filepath.Join(am.root, filepath.FromSlash(key)), params)
}

func (am *AssetManager) UnloadAsset(res *resources.Resource) error {
	if res == nil {
		return nil
	}
	if loader, ok := am.loaders[res.Type]; ok {
		return loader.Unload(res)
	}
	return nil
}

// ReleaseAll forgets which assets the scene uses. Called before a scene is loaded again.
func (am *AssetManager) ReleaseAll() {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	for path, asset := range am.assets {
		asset.InUse = false
		am.assets[path] = asset
	}
}

func (am *AssetManager) Lookup(name string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	asset, ok := am.assets[am.key(name)]
	return asset, ok
}

// Paths lists the indexed assets, sorted.
func (am *AssetManager) Paths() []string {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	paths := make([]string, 0, len(am.assets))
	for path := range am.assets {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

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
	if am.fsnotify != nil {
		return am.fsnotify.Close()
	}
	return nil
}

func (am *AssetManager) key(name string) string {
	if filepath.IsAbs(name) && am.root != "" {
		if rel, err := filepath.Rel(am.root, name); err == nil {
			name = rel
		}
	}
	return filepath.ToSlash(filepath.Clean(name))
}

func builtinResource(name string, resourceType resources.ResourceType) (*resources.Resource, error) {
	res := &resources.Resource{
		ID:   uuid.New(),
		Name: resources.BuiltinPrefix + name,
		Type: resourceType,
	}
	switch {
	case name == loaders.BuiltinQuad && resourceType == resources.ResourceTypeMesh:
		mesh := loaders.QuadMesh()
		res.Data = mesh
		res.DataSize = uint64(len(mesh.Vertices)*32 + len(mesh.Indices)*4)
	case name == loaders.BuiltinChecker && resourceType == resources.ResourceTypeImage:
		texture := loaders.CheckerTexture(checkerSize)
		res.Data = texture
		res.DataSize = uint64(len(texture.Pixels))
	default:
		return nil, fmt.Errorf("unknown builtin %s resource: %s", resourceType, name)
	}
	return res, nil
}

func (am *AssetManager) index(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			am.handleFileEvent(path)
		}
		return nil
	})
}

// AddRecursive starts watching the named directory and all sub-directories.
func (am *AssetManager) addRecursive(name string) error {
	return filepath.WalkDir(name, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return am.fsnotify.Add(path)
		}
		return nil
	})
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleWatchEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handleWatchEvent(e fsnotify.Event) {
	if e.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := am.addRecursive(e.Name); err != nil {
				core.LogWarn("asset watcher: %s", err)
			}
			// Files written before the watch was added.
			if err := am.index(e.Name); err != nil {
				core.LogWarn("asset watcher: %s", err)
			}
			return
		}
	}

	// Handle create or modify events
	if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
		if asset, ok := am.handleFileEvent(e.Name); ok && asset.InUse {
			core.LogInfo("asset %s changed, requesting reload", asset.Path)
			ctx := core.EventContext{}
			ctx.Data.C[0] = asset.Path
			core.EventFire(core.EVENT_CODE_ASSET_CHANGED, am, ctx)
		}
	}
	if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		am.removeAsset(e.Name)
	}
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) (AssetInfo, bool) {
	assetType := determineAssetType(path)
	if assetType == resources.ResourceTypeNone {
		return AssetInfo{}, false
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()

	key := am.key(path)
	asset, exists := am.assets[key]
	if !exists {
		asset = AssetInfo{Path: key, Type: assetType}
	}
	am.assets[key] = asset
	return asset, true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, am.key(path))
}

func determineAssetType(path string) resources.ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".spv":
		return resources.ResourceTypeBinary
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return resources.ResourceTypeImage
	case ".obj":
		return resources.ResourceTypeMesh
	default:
		return resources.ResourceTypeNone
	}
}
