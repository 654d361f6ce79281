package cache

import (
	"context"

	"github.com/fsbridge/fsbridge/pkg/types"
)

// noneEngine issues one exact range request per read and retains nothing.
type noneEngine struct {
	sized
}

func (e *noneEngine) ReadAt(ctx context.Context, offset, length int64) ([]byte, error) {
	start, end, ok, err := e.clamp(ctx, offset, length)
	if err != nil || !ok {
		return nil, err
	}
	e.stats.Misses++
	e.stats.Fetches++
	return e.fetcher.FetchRange(ctx, start, end-start)
}

func (e *noneEngine) Stats() types.CacheStats { return e.snapshot() }

// bytesEngine fetches the entire object once and serves reads from memory.
type bytesEngine struct {
	sized
	data   []byte
	loaded bool
}

func (e *bytesEngine) ReadAt(ctx context.Context, offset, length int64) ([]byte, error) {
	start, end, ok, err := e.clamp(ctx, offset, length)
	if err != nil || !ok {
		return nil, err
	}
	if !e.loaded {
		e.stats.Misses++
		e.stats.Fetches++
		data, err := e.fetcher.FetchRange(ctx, 0, -1)
		if err != nil {
			return nil, err
		}
		e.data = data
		e.loaded = true
		e.stats.Retained = 1
		e.stats.Bytes = int64(len(data))
	} else {
		e.stats.Hits++
	}
	if start > int64(len(e.data)) {
		return nil, nil
	}
	if end > int64(len(e.data)) {
		end = int64(len(e.data))
	}
	out := make([]byte, end-start)
	copy(out, e.data[start:end])
	return out, nil
}

func (e *bytesEngine) Stats() types.CacheStats { return e.snapshot() }

// readaheadEngine retains a single window: the requested range plus a
// trailing margin. Sequential reads drain the window before the next fetch.
type readaheadEngine struct {
	sized
	margin int64

	winStart int64
	window   []byte
}

func (e *readaheadEngine) ReadAt(ctx context.Context, offset, length int64) ([]byte, error) {
	start, end, ok, err := e.clamp(ctx, offset, length)
	if err != nil || !ok {
		return nil, err
	}

	winEnd := e.winStart + int64(len(e.window))
	if len(e.window) > 0 && start >= e.winStart && end <= winEnd {
		e.stats.Hits++
		out := make([]byte, end-start)
		copy(out, e.window[start-e.winStart:end-e.winStart])
		return out, nil
	}

	// Fetch the requested range plus the readahead margin in one call.
	e.stats.Misses++
	e.stats.Fetches++
	fetchEnd := end + e.margin
	if size, _ := e.Size(ctx); fetchEnd > size {
		fetchEnd = size
	}
	data, err := e.fetcher.FetchRange(ctx, start, fetchEnd-start)
	if err != nil {
		return nil, err
	}
	if len(e.window) > 0 {
		e.stats.Evictions++
	}
	e.winStart = start
	e.window = data
	e.stats.Retained = 1
	e.stats.Bytes = int64(len(data))

	n := end - start
	if n > int64(len(data)) {
		n = int64(len(data))
	}
	out := make([]byte, n)
	copy(out, data[:n])
	return out, nil
}

func (e *readaheadEngine) Stats() types.CacheStats { return e.snapshot() }
