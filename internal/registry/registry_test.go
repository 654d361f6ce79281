package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsbridge/fsbridge/internal/storage/memory"
	fserrors "github.com/fsbridge/fsbridge/pkg/errors"
	"github.com/fsbridge/fsbridge/pkg/types"
)

func memoryFactory(options map[string]string) (types.Backend, error) {
	return memory.New(), nil
}

func TestToken_OptionOrderIrrelevant(t *testing.T) {
	a := Token("s3", map[string]string{"region": "us-east-1", "bucket": "data", "endpoint": "http://localhost"})
	b := Token("s3", map[string]string{"endpoint": "http://localhost", "bucket": "data", "region": "us-east-1"})
	assert.Equal(t, a, b)
}

func TestToken_DistinguishesOptions(t *testing.T) {
	base := Token("s3", map[string]string{"bucket": "data"})
	assert.NotEqual(t, base, Token("s3", map[string]string{"bucket": "other"}))
	assert.NotEqual(t, base, Token("s3", map[string]string{"bucket": "data", "region": "us-west-2"}))
	assert.NotEqual(t, base, Token("gcs", map[string]string{"bucket": "data"}))
}

func TestGetOrCreate_ReusesHandle(t *testing.T) {
	r := New()
	r.RegisterFactory("memory", memoryFactory)

	h1, err := r.GetOrCreate("memory", map[string]string{"a": "1", "b": "2"})
	require.NoError(t, err)
	h2, err := r.GetOrCreate("memory", map[string]string{"b": "2", "a": "1"})
	require.NoError(t, err)

	assert.Same(t, h1, h2)
	assert.Equal(t, 1, r.Len())
}

func TestSetListingConfig_AppliesToNewHandles(t *testing.T) {
	r := New()
	r.RegisterFactory("memory", memoryFactory)
	r.SetListingConfig(20*time.Millisecond, 8)

	h, err := r.GetOrCreate("memory", nil)
	require.NoError(t, err)

	h.Listings.Put("data", []types.ObjectInfo{{Path: "data/x", Type: types.TypeFile}})
	_, ok := h.Listings.Get("data")
	require.True(t, ok)

	// The configured TTL applies, not the dircache default.
	time.Sleep(60 * time.Millisecond)
	_, ok = h.Listings.Get("data")
	assert.False(t, ok)
}

func TestGetOrCreate_DistinctOptionsDistinctHandles(t *testing.T) {
	r := New()
	r.RegisterFactory("memory", memoryFactory)

	h1, err := r.GetOrCreate("memory", map[string]string{"name": "a"})
	require.NoError(t, err)
	h2, err := r.GetOrCreate("memory", map[string]string{"name": "b"})
	require.NoError(t, err)

	assert.NotSame(t, h1, h2)
	assert.Equal(t, 2, r.Len())
}

func TestGetOrCreate_UnknownProtocol(t *testing.T) {
	r := New()
	_, err := r.GetOrCreate("gopher", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fserrors.ErrMalformedPath))
}

func TestGetOrCreate_CachingDisabled(t *testing.T) {
	r := New()
	r.RegisterFactory("memory", memoryFactory)
	r.SetCaching("memory", false)

	h1, err := r.GetOrCreate("memory", nil)
	require.NoError(t, err)
	h2, err := r.GetOrCreate("memory", nil)
	require.NoError(t, err)

	assert.NotSame(t, h1, h2)
	assert.Equal(t, 0, r.Len())
}

func TestGetOrCreate_ConcurrentSingleConstruction(t *testing.T) {
	var constructions atomic.Int64
	r := New()
	r.RegisterFactory("memory", func(options map[string]string) (types.Backend, error) {
		constructions.Add(1)
		return memory.New(), nil
	})

	const goroutines = 32
	handles := make([]*Handle, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := r.GetOrCreate("memory", map[string]string{"shared": "yes"})
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), constructions.Load())
	for _, h := range handles[1:] {
		assert.Same(t, handles[0], h)
	}
}

func TestGetOrCreate_FailedConstructionRetries(t *testing.T) {
	var calls atomic.Int64
	r := New()
	r.RegisterFactory("flaky", func(options map[string]string) (types.Backend, error) {
		if calls.Add(1) == 1 {
			return nil, fmt.Errorf("transient bootstrap failure")
		}
		return memory.New(), nil
	})

	_, err := r.GetOrCreate("flaky", nil)
	require.Error(t, err)

	h, err := r.GetOrCreate("flaky", nil)
	require.NoError(t, err)
	assert.NotNil(t, h.Backend)
	assert.Equal(t, int64(2), calls.Load())
}

func TestClear_KeepsLiveHandlesUsable(t *testing.T) {
	r := New()
	r.RegisterFactory("memory", memoryFactory)

	h1, err := r.GetOrCreate("memory", nil)
	require.NoError(t, err)

	r.Clear("memory")
	assert.Equal(t, 0, r.Len())

	// The evicted handle keeps working; only reuse stops.
	require.NoError(t, h1.Backend.Put(context.Background(), "x", []byte("live")))

	h2, err := r.GetOrCreate("memory", nil)
	require.NoError(t, err)
	assert.NotSame(t, h1, h2)
}

func TestClear_OnlyNamedProtocol(t *testing.T) {
	r := New()
	r.RegisterFactory("memory", memoryFactory)
	r.RegisterFactory("scratch", memoryFactory)

	_, err := r.GetOrCreate("memory", nil)
	require.NoError(t, err)
	_, err = r.GetOrCreate("scratch", nil)
	require.NoError(t, err)

	r.Clear("memory")
	assert.Equal(t, 1, r.Len())

	r.ClearAll()
	assert.Equal(t, 0, r.Len())
}
