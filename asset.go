package snapfilter

import (
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

// The asset names used by the built-in filters.
const (
	SunglassesAsset = "sunglasses"
	LipsAsset       = "lips"
	FlowersAsset    = "flowers"
)

// ErrUnknownAsset is returned when the registry has no entry for the requested asset.
var ErrUnknownAsset = errors.New("unknown asset")

// AssetLoader returns the RGBA clipart registered under a name.
// The returned image must be treated as read only.
type AssetLoader interface {
	Load(name string) (*image.NRGBA, error)
}

// Registry maps the clipart asset names to files on disk.
// Assets are decoded on every Load, unless caching has been enabled with WithCache.
// A Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	paths map[string]string
	cache *cache.Cache
}

// NewRegistry creates a registry from an asset name to file path map.
func NewRegistry(paths map[string]string) *Registry {
	r := &Registry{paths: make(map[string]string, len(paths))}
	for name, path := range paths {
		r.paths[name] = path
	}
	return r
}

// RegistryFromDir registers every png file of dir under its base name,
// e.g. dir/sunglasses.png becomes the "sunglasses" asset.
func RegistryFromDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read the asset directory %q", dir)
	}

	paths := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		paths[strings.ToLower(name)] = filepath.Join(dir, e.Name())
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("no png assets found in %q", dir)
	}
	return NewRegistry(paths), nil
}

// WithCache turns on the read-through cache. A zero ttl keeps the decoded assets forever.
func (r *Registry) WithCache(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	r.mu.Lock()
	r.cache = cache.New(ttl, 10*time.Minute)
	r.mu.Unlock()
	return r
}

// Register adds or replaces an asset.
func (r *Registry) Register(name, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.paths[name] = path
	if r.cache != nil {
		r.cache.Delete(name)
	}
}

// Path returns the file registered for the asset.
func (r *Registry) Path(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	path, ok := r.paths[name]
	return path, ok
}

// Names returns the registered asset names in alphabetical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.paths))
	for name := range r.paths {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load decodes the asset as an RGBA image.
func (r *Registry) Load(name string) (*image.NRGBA, error) {
	r.mu.RLock()
	path, ok := r.paths[name]
	c := r.cache
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Wrapf(ErrUnknownAsset, "%q", name)
	}
	if c != nil {
		if img, found := c.Get(name); found {
			return img.(*image.NRGBA), nil
		}
	}

	img, err := decodeRGBA(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load the %q asset", name)
	}
	if c != nil {
		c.SetDefault(name, img)
	}
	return img, nil
}
