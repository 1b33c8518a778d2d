package assets

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/spaghettifunk/vkframe/engine/assets/loaders"
	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

// DEFAULT_TEXTURE_SEED keeps the generated texture identical between runs.
const DEFAULT_TEXTURE_SEED uint64 = 1

// Assets are cached per type, one file may be read as more than one type.
type assetKey struct {
	Type metadata.ResourceType
	Path string
}

type AssetInfo struct {
	Resource   *metadata.Resource
	LastLoaded time.Time
}

/** @brief Everything the scene needs from disk before the renderer starts. */
type StaticAssets struct {
	VertexShader   []byte
	FragmentShader []byte
	Texture        *metadata.TextureData
}

/**
 * @brief Loads assets from a directory and caches them by path. When
 * watching, a changed, created, removed or renamed file is evicted so the
 * next Load reads it again.
 */
type AssetManager struct {
	dir     string
	assets  map[assetKey]AssetInfo
	loaders map[metadata.ResourceType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager() *AssetManager {
	return &AssetManager{
		assets:  make(map[assetKey]AssetInfo),
		loaders: make(map[metadata.ResourceType]Loader),
		done:    make(chan struct{}),
	}
}

func (am *AssetManager) Initialize(assetsDir string, watch bool) error {
	am.dir = assetsDir

	// Register loaders
	am.registerLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(metadata.ResourceTypeImage, &loaders.TextureLoader{})

	if !watch {
		return nil
	}

	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create the asset watcher")
	}
	am.fsnotify = fsWatch

	if err := am.watchRecursive(assetsDir); err != nil {
		am.fsnotify.Close()
		am.fsnotify = nil
		return errors.Wrapf(err, "failed to watch '%s'", assetsDir)
	}

	am.wg.Add(1)
	go am.start()

	core.LogDebug("Watching asset directory '%s'.", assetsDir)
	return nil
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// Load returns the cached resource for name, relative to the asset
// directory, or loads it with the loader registered for resourceType.
func (am *AssetManager) Load(name string, resourceType metadata.ResourceType) (*metadata.Resource, error) {
	loader, loaderExists := am.loaders[resourceType]
	if !loaderExists {
		return nil, errors.Newf("no loader registered for asset type: %s", resourceType)
	}

	path := filepath.Clean(filepath.Join(am.dir, name))
	key := assetKey{Type: resourceType, Path: path}

	am.mutex.RLock()
	asset, exists := am.assets[key]
	am.mutex.RUnlock()
	if exists {
		return asset.Resource, nil
	}

	res, err := loader.Load(path, resourceType, nil)
	if err != nil {
		return nil, err
	}

	am.mutex.Lock()
	am.assets[key] = AssetInfo{
		Resource:   res,
		LastLoaded: time.Now(),
	}
	am.mutex.Unlock()

	core.LogDebug("Loaded %s asset '%s' (%d bytes).", resourceType, path, res.DataSize)
	return res, nil
}

/**
 * @brief Loads the vertex shader, the fragment shader and the texture in
 * parallel. An empty texture path yields the generated bordered texture.
 */
func (am *AssetManager) LoadStatic(ctx context.Context, cfg core.AssetsConfig) (*StaticAssets, error) {
	static := &StaticAssets{}
	g, ctx := errgroup.WithContext(ctx)

	loadShader := func(name string, dst *[]byte) func() error {
		return func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := am.Load(name, metadata.ResourceTypeShader)
			if err != nil {
				return err
			}
			*dst = res.Data.([]byte)
			return nil
		}
	}
	g.Go(loadShader(cfg.VertexShader, &static.VertexShader))
	g.Go(loadShader(cfg.FragmentShader, &static.FragmentShader))

	g.Go(func() error {
		if cfg.Texture == "" {
			static.Texture = loaders.GenerateBorderedTexture(metadata.DEFAULT_TEXTURE_WIDTH, metadata.DEFAULT_TEXTURE_HEIGHT, DEFAULT_TEXTURE_SEED)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := am.Load(cfg.Texture, metadata.ResourceTypeImage)
		if err != nil {
			return err
		}
		static.Texture = res.Data.(*metadata.TextureData)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "failed to load static assets")
	}
	return static, nil
}

func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	var err error
	if am.fsnotify != nil {
		close(am.done)
		am.wg.Wait()
		err = am.fsnotify.Close()
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	for key, asset := range am.assets {
		if loader, ok := am.loaders[key.Type]; ok {
			loader.Unload(asset.Resource)
		}
		delete(am.assets, key)
	}
	return err
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			if e.Op&fsnotify.Create != 0 {
				if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
					if err := am.watchRecursive(e.Name); err != nil {
						core.LogWarn("Unable to watch '%s': %s", e.Name, err)
					}
				}
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				am.evict(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("Asset watcher: %s", err)

		case <-am.done:
			return
		}
	}
}

// watchRecursive adds path and every directory below it to the watch list.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.WalkDir(path, func(walkPath string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		return nil
	})
}

// Drops every cached copy of path, whatever type it was loaded as.
func (am *AssetManager) evict(path string) {
	path = filepath.Clean(path)

	am.mutex.Lock()
	defer am.mutex.Unlock()

	for key := range am.assets {
		if key.Path == path {
			delete(am.assets, key)
			core.LogDebug("Asset '%s' (%s) changed on disk, evicted.", path, key.Type)
		}
	}
}
