package cache

import (
	"container/list"
	"context"

	"github.com/fsbridge/fsbridge/pkg/types"
)

// blockEngine partitions the object into fixed aligned blocks. A read
// resolves the blocks it spans, fetches the missing ones (adjacent misses
// coalesce into one range request) and assembles the exact slice as it
// goes, so correctness never depends on a fetched block surviving
// eviction. Retention is bounded: past maxBlocks blocks, the
// least-recently-used block is evicted.
type blockEngine struct {
	sized
	blockSize int64
	maxBlocks int

	blocks    map[int64]*blockEntry // keyed by block index
	evictList list.List             // front = most recently used
}

type blockEntry struct {
	index   int64
	data    []byte
	element *list.Element
}

func (e *blockEngine) ReadAt(ctx context.Context, offset, length int64) ([]byte, error) {
	start, end, ok, err := e.clamp(ctx, offset, length)
	if err != nil || !ok {
		return nil, err
	}
	size, err := e.Size(ctx)
	if err != nil {
		return nil, err
	}

	firstBlock := start / e.blockSize
	lastBlock := (end - 1) / e.blockSize
	out := make([]byte, 0, end-start)

	for idx := firstBlock; idx <= lastBlock; {
		if entry, ok := e.blocks[idx]; ok {
			e.stats.Hits++
			e.evictList.MoveToFront(entry.element)
			out = e.appendSlice(out, idx, entry.data, start, end)
			idx++
			continue
		}

		// Extend the run over every consecutive missing block, then fetch
		// the whole run with one backend call.
		runEnd := idx
		for runEnd+1 <= lastBlock {
			if _, cached := e.blocks[runEnd+1]; cached {
				break
			}
			runEnd++
		}

		fetchStart := idx * e.blockSize
		fetchEnd := (runEnd + 1) * e.blockSize
		if fetchEnd > size {
			fetchEnd = size
		}
		e.stats.Fetches++
		data, err := e.fetcher.FetchRange(ctx, fetchStart, fetchEnd-fetchStart)
		if err != nil {
			return nil, err
		}

		for b := idx; b <= runEnd; b++ {
			lo := (b - idx) * e.blockSize
			if lo >= int64(len(data)) {
				break
			}
			hi := lo + e.blockSize
			if hi > int64(len(data)) {
				hi = int64(len(data))
			}
			e.stats.Misses++
			block := data[lo:hi]
			out = e.appendSlice(out, b, block, start, end)
			e.insert(b, block)
		}
		idx = runEnd + 1
	}
	return out, nil
}

// appendSlice appends the portion of block idx that falls inside the
// requested [start, end) range.
func (e *blockEngine) appendSlice(out []byte, idx int64, block []byte, start, end int64) []byte {
	blockStart := idx * e.blockSize
	lo := int64(0)
	if start > blockStart {
		lo = start - blockStart
	}
	hi := int64(len(block))
	if end < blockStart+hi {
		hi = end - blockStart
	}
	if lo >= hi {
		return out
	}
	return append(out, block[lo:hi]...)
}

func (e *blockEngine) insert(index int64, data []byte) {
	block := make([]byte, len(data))
	copy(block, data)

	entry := &blockEntry{index: index, data: block}
	entry.element = e.evictList.PushFront(entry)
	e.blocks[index] = entry
	e.stats.Bytes += int64(len(block))

	for len(e.blocks) > e.maxBlocks {
		e.evictOldest()
	}
	e.stats.Retained = len(e.blocks)
}

func (e *blockEngine) evictOldest() {
	element := e.evictList.Back()
	if element == nil {
		return
	}
	entry := element.Value.(*blockEntry)
	e.evictList.Remove(element)
	delete(e.blocks, entry.index)
	e.stats.Bytes -= int64(len(entry.data))
	e.stats.Evictions++
}

func (e *blockEngine) Stats() types.CacheStats {
	st := e.snapshot()
	st.Retained = len(e.blocks)
	return st
}
