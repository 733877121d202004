// Package cache provides pluggable byte caching for the fetch, layout,
// and render stages. The CLI uses a file-backed cache, the server can use
// Redis, and tests use the null cache.
package cache

import (
	"context"
	"time"
)

// TTLs for each pipeline stage. Fetched payloads go stale faster than
// derived layouts and artifacts, which are keyed by content hash and only
// expire to bound disk usage.
const (
	TTLMap      = 15 * time.Minute
	TTLLayout   = 24 * time.Hour
	TTLArtifact = 24 * time.Hour
)

// Cache stores opaque byte values with per-entry TTLs.
// A TTL of 0 means the entry never expires.
type Cache interface {
	// Get retrieves a value. The bool reports whether the key was found
	// and fresh; expired entries count as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// Keyer generates cache keys for pipeline stages. Implementations must be
// deterministic: the same inputs always produce the same key.
type Keyer interface {
	// HTTPKey generates a key for raw HTTP response caching.
	HTTPKey(namespace, key string) string

	// MapKey generates a key for a fetched reliability map payload.
	MapKey(endpoint string, opts MapKeyOpts) string

	// LayoutKey generates a key for computed node positions.
	LayoutKey(mapHash string, opts LayoutKeyOpts) string

	// ArtifactKey generates a key for a rendered artifact.
	ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string
}

// MapKeyOpts are the fetch parameters that affect the payload identity.
type MapKeyOpts struct {
	APIKeyHash string
}

// LayoutKeyOpts are the layout parameters that affect node positions.
type LayoutKeyOpts struct {
	CenterX float64
	CenterY float64
	Radius  float64
}

// ArtifactKeyOpts are the render parameters that affect artifact bytes.
type ArtifactKeyOpts struct {
	Format   string
	Theme    string
	Engine   string
	Tooltips bool
}

// DefaultKeyer generates versioned, hash-based cache keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// HTTPKey generates a key for HTTP response caching.
func (k *DefaultKeyer) HTTPKey(namespace, key string) string {
	return hashKey("http:v1:"+namespace, key)
}

// MapKey generates a key for a fetched payload.
func (k *DefaultKeyer) MapKey(endpoint string, opts MapKeyOpts) string {
	return hashKey("map:v1", endpoint, opts)
}

// LayoutKey generates a key for computed positions.
func (k *DefaultKeyer) LayoutKey(mapHash string, opts LayoutKeyOpts) string {
	return hashKey("layout:v1", mapHash, opts)
}

// ArtifactKey generates a key for a rendered artifact.
func (k *DefaultKeyer) ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact:v1", layoutHash, opts)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = (*DefaultKeyer)(nil)
