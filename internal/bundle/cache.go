package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/funvibe/funir/internal/config"
)

// loweringVersion is bumped when the lowered output format changes, so
// stale cache entries are never served across tool upgrades.
const loweringVersion = "v1"

// CacheKey derives the content key for one lowering run: the input
// bundle bytes plus the option fingerprint. Equal keys mean the cached
// output is valid verbatim.
func CacheKey(input, fingerprint []byte) string {
	h := sha256.New()
	h.Write(input)
	h.Write([]byte("\x00"))
	h.Write(fingerprint)
	h.Write([]byte("\x00"))
	h.Write([]byte(loweringVersion))
	return hex.EncodeToString(h.Sum(nil))[:16] // first 16 hex chars = 64 bits
}

// Cache stores lowered bundles under a directory, one file per key.
// The library layer never touches it; only the CLI reads and writes
// the cache. An empty directory disables it.
type Cache struct {
	dir string
}

func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Lookup returns the cached bundle for key, or nil when not cached.
func (c *Cache) Lookup(key string) []byte {
	if c.dir == "" {
		return nil
	}
	path := c.entryPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	if len(data) == 0 {
		os.Remove(path)
		return nil
	}
	return data
}

// Store writes a lowered bundle under key.
func (c *Cache) Store(key string, data []byte) error {
	if c.dir == "" {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	if err := os.WriteFile(c.entryPath(key), data, 0o644); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

// Clean removes all cached bundles.
func (c *Cache) Clean() error {
	if c.dir == "" {
		return nil
	}
	return os.RemoveAll(c.dir)
}

func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, key+config.LoweredBundleExt)
}
