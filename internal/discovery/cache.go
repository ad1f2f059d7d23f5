package discovery

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/ocrd-go/resmgr/internal/manifest"
	"go.uber.org/zap"
)

// CacheFileName is the name of the on-disk introspection cache.
const CacheFileName = "tool-cache.json"

// cachedTool is what is remembered about one executable, along with the
// binary's identity used for invalidation.
type cachedTool struct {
	Path        string                    `json:"path"`
	ModTime     int64                     `json:"mod_time"`
	Size        int64                     `json:"size"`
	Description *manifest.ToolDescription `json:"description,omitempty"`
	ModuleDir   *string                   `json:"module_dir,omitempty"`
}

// cacheIndex is the cache file layout.
type cacheIndex struct {
	Tools    map[string]*cachedTool `json:"tools"`
	CachedAt time.Time              `json:"cached_at"`
}

// CachedIntrospector remembers what Inner answered for each executable in a
// JSON file, so tools are not run again until their binary changes (a
// different resolved path, modification time or size). Failures are never
// cached.
type CachedIntrospector struct {
	Inner ToolIntrospector
	Path  string

	log    *zap.Logger
	mu     sync.Mutex
	index  *cacheIndex
	loaded bool
}

// NewCachedIntrospector wraps inner with a cache stored at path.
func NewCachedIntrospector(inner ToolIntrospector, path string, log *zap.Logger) *CachedIntrospector {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedIntrospector{Inner: inner, Path: path, log: log.Named("discovery")}
}

// Describe returns the cached description of executable, asking Inner when
// there is none or the binary changed.
func (c *CachedIntrospector) Describe(ctx context.Context, executable string) (*manifest.ToolDescription, error) {
	entry, ok := c.lookup(executable)
	if ok && entry.Description != nil {
		return entry.Description, nil
	}
	td, err := c.Inner.Describe(ctx, executable)
	if err != nil {
		return nil, err
	}
	c.store(executable, func(e *cachedTool) { e.Description = td })
	return td, nil
}

// ModuleDir returns the cached module directory of executable, asking Inner
// when there is none or the binary changed.
func (c *CachedIntrospector) ModuleDir(ctx context.Context, executable string) (string, error) {
	entry, ok := c.lookup(executable)
	if ok && entry.ModuleDir != nil {
		return *entry.ModuleDir, nil
	}
	dir, err := c.Inner.ModuleDir(ctx, executable)
	if err != nil {
		return "", err
	}
	c.store(executable, func(e *cachedTool) { e.ModuleDir = &dir })
	return dir, nil
}

// lookup returns the entry for executable if it still matches the binary
// on disk.
func (c *CachedIntrospector) lookup(executable string) (*cachedTool, bool) {
	id, ok := identify(executable)
	if !ok {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.load()
	entry, ok := c.index.Tools[executable]
	if !ok || entry.Path != id.Path || entry.ModTime != id.ModTime || entry.Size != id.Size {
		return nil, false
	}
	return entry, true
}

func (c *CachedIntrospector) store(executable string, update func(*cachedTool)) {
	id, ok := identify(executable)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.load()
	entry, ok := c.index.Tools[executable]
	if !ok || entry.Path != id.Path || entry.ModTime != id.ModTime || entry.Size != id.Size {
		entry = &id
		c.index.Tools[executable] = entry
	}
	update(entry)
	c.index.CachedAt = time.Now()

	// Best effort: introspection still works without the file.
	if err := c.write(); err != nil {
		c.log.Debug("could not write tool cache", zap.String("path", c.Path), zap.Error(err))
	}
}

// load reads the cache file once. A missing or unreadable file starts an
// empty cache. Callers hold c.mu.
func (c *CachedIntrospector) load() {
	if c.loaded {
		return
	}
	c.loaded = true
	c.index = &cacheIndex{Tools: map[string]*cachedTool{}}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return
	}
	var idx cacheIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		c.log.Debug("discarding unreadable tool cache", zap.String("path", c.Path), zap.Error(err))
		return
	}
	if idx.Tools != nil {
		c.index = &idx
	}
}

func (c *CachedIntrospector) write() error {
	data, err := json.MarshalIndent(c.index, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0755); err != nil {
		return err
	}
	return os.WriteFile(c.Path, data, 0644)
}

func identify(executable string) (cachedTool, bool) {
	bin, err := exec.LookPath(executable)
	if err != nil {
		return cachedTool{}, false
	}
	info, err := os.Stat(bin)
	if err != nil {
		return cachedTool{}, false
	}
	abs, err := filepath.Abs(bin)
	if err != nil {
		abs = bin
	}
	return cachedTool{Path: abs, ModTime: info.ModTime().UnixNano(), Size: info.Size()}, true
}

// LookPath reports where tool is installed on the search path.
func LookPath(tool string) (string, bool) {
	bin, err := exec.LookPath(tool)
	if err != nil {
		return "", false
	}
	return bin, true
}
