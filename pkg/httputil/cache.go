package httputil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ErrExpired is returned by [Cache.Get] when an entry exists but has
// outlived its TTL. The stale data remains on disk; callers should fetch
// fresh data and refresh the entry with [Cache.Set].
var ErrExpired = errors.New("cache entry expired")

// Cache is a file-based cache for JSON-marshalable values.
//
// Each entry is a JSON file in the cache directory named by the SHA-256
// hash of its key, so arbitrary key strings are safe. Entries expire by
// file modification time; a TTL of 0 disables expiry.
//
// A Cache instance is not goroutine-safe, but separate instances (even in
// separate processes) may share a directory. Use [Cache.Namespace] to
// scope keys per data source:
//
//	fetches := cache.Namespace("fetch:")
//	fetches.Set("prod", payload) // stored under "fetch:prod"
type Cache struct {
	dir    string
	ttl    time.Duration
	prefix string
}

// NewCache creates a Cache rooted at dir with the given TTL. An empty dir
// selects the default ~/.cache/reliamap/. The directory is created if
// missing; directory creation is the only failure mode.
func NewCache(dir string, ttl time.Duration) (*Cache, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".cache", "reliamap")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir, ttl: ttl, prefix: ""}, nil
}

// Dir returns the cache directory path.
func (c *Cache) Dir() string { return c.dir }

// TTL returns the entry time-to-live. Zero means entries never expire.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get retrieves the value stored under key into v.
//
// Outcomes:
//   - (true, nil): hit, v holds the fresh value.
//   - (false, nil): miss, v untouched.
//   - (false, ErrExpired): entry exists but exceeded the TTL.
//   - (false, other): I/O or unmarshal failure.
//
// Reads never mutate the cache or refresh modification times.
func (c *Cache) Get(key string, v any) (bool, error) {
	path := c.keyPath(c.prefix + key)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if c.ttl > 0 && time.Since(info.ModTime()) > c.ttl {
		return false, ErrExpired
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, v)
}

// Set stores v under key, overwriting any existing entry and resetting
// its TTL clock.
func (c *Cache) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(c.keyPath(c.prefix+key), data, 0o644)
}

// Namespace returns a view of the cache that prefixes every key. The view
// shares the parent's directory and TTL, and namespaces chain.
func (c *Cache) Namespace(prefix string) *Cache {
	return &Cache{
		dir:    c.dir,
		ttl:    c.ttl,
		prefix: c.prefix + prefix,
	}
}

func (c *Cache) keyPath(key string) string {
	h := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(h[:]))
}
