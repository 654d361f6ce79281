package dircache

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsbridge/fsbridge/pkg/types"
)

func listing(paths ...string) []types.ObjectInfo {
	out := make([]types.ObjectInfo, len(paths))
	for i, p := range paths {
		out[i] = types.ObjectInfo{Path: p, Type: types.TypeFile}
	}
	return out
}

func TestCache_PutGet(t *testing.T) {
	c := New(0, 0)

	_, ok := c.Get("data")
	assert.False(t, ok)

	c.Put("data", listing("data/a", "data/b"))
	got, ok := c.Get("data")
	require.True(t, ok)
	assert.Len(t, got, 2)
}

func TestCache_InvalidateDropsPathAndParent(t *testing.T) {
	c := New(0, 0)

	c.Put("data", listing("data/a"))
	c.Put("data/sub", listing("data/sub/x"))
	c.Put("other", listing("other/y"))

	// A write to data/sub/x stales both the sub listing and its parent.
	c.Invalidate("data/sub/x")
	_, ok := c.Get("data/sub")
	assert.False(t, ok)

	got, ok := c.Get("data")
	assert.True(t, ok)
	assert.Len(t, got, 1)

	c.Invalidate("data/a")
	_, ok = c.Get("data")
	assert.False(t, ok)

	// Unrelated listings survive.
	_, ok = c.Get("other")
	assert.True(t, ok)
}

func TestCache_InvalidateTopLevelDropsRoot(t *testing.T) {
	c := New(0, 0)

	c.Put("", listing("a", "b"))
	c.Put("/", listing("/a"))

	c.Invalidate("a")
	_, ok := c.Get("")
	assert.False(t, ok)
	_, ok = c.Get("/")
	assert.False(t, ok)
}

func TestCache_InvalidateAll(t *testing.T) {
	c := New(0, 0)

	c.Put("a", listing("a/x"))
	c.Put("b", listing("b/y"))
	c.InvalidateAll()

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestNew_SpawnsNoGoroutine(t *testing.T) {
	before := runtime.NumGoroutine()

	caches := make([]*Cache, 64)
	for i := range caches {
		caches[i] = New(time.Minute, 16)
	}
	caches[0].Put("data", listing("data/a"))

	// Handles are constructed freely; each cache must not cost a goroutine.
	assert.Less(t, runtime.NumGoroutine(), before+len(caches))
}

func TestCache_EntriesExpire(t *testing.T) {
	c := New(20*time.Millisecond, 0)

	c.Put("data", listing("data/a"))
	_, ok := c.Get("data")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, ok = c.Get("data")
	assert.False(t, ok)
}
