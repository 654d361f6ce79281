// Package dircache caches directory listings for a backend handle.
//
// One cache is shared by every file opened through the same handle, so a
// write-side invalidation must be visible to concurrent readers. The
// underlying ttlcache is safe for that mix. Expiry is checked on access
// rather than by a background loop, so a cache needs no teardown and a
// stale listing still never outlives the TTL.
package dircache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/fsbridge/fsbridge/internal/urlpath"
	"github.com/fsbridge/fsbridge/pkg/types"
)

const (
	// DefaultTTL bounds how long a listing may be served without re-listing
	// the backend.
	DefaultTTL = 30 * time.Second

	// DefaultCapacity bounds the number of cached listings per handle.
	DefaultCapacity = 4096
)

// Cache is a TTL-bounded listing cache.
type Cache struct {
	entries *ttlcache.Cache[string, []types.ObjectInfo]
}

// New creates a listing cache. Zero values select the package defaults.
func New(ttl time.Duration, capacity uint64) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	entries := ttlcache.New[string, []types.ObjectInfo](
		ttlcache.WithTTL[string, []types.ObjectInfo](ttl),
		ttlcache.WithCapacity[string, []types.ObjectInfo](capacity),
	)
	return &Cache{entries: entries}
}

// Get returns the cached listing for path, if present and unexpired.
func (c *Cache) Get(path string) ([]types.ObjectInfo, bool) {
	item := c.entries.Get(path)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Put stores the listing for path.
func (c *Cache) Put(path string, listing []types.ObjectInfo) {
	c.entries.Set(path, listing, ttlcache.DefaultTTL)
}

// Invalidate drops the listing for path and for its parent directory, which
// is the listing a write to path goes stale in.
func (c *Cache) Invalidate(path string) {
	c.entries.Delete(path)
	if parent := urlpath.Parent(path); parent != "" {
		c.entries.Delete(parent)
	} else {
		// Top-level entries live in the root listing.
		c.entries.Delete("")
		c.entries.Delete("/")
	}
}

// InvalidateAll drops every cached listing.
func (c *Cache) InvalidateAll() {
	c.entries.DeleteAll()
}
