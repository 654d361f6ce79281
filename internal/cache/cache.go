// Package cache implements the per-file read engines that turn ranged
// backend fetches into local-feeling random access.
//
// An Engine is created per open file and is owned by that file's caller;
// it is not safe for concurrent use. Every strategy memoizes the object
// size after the first lookup, truncates reads at end-of-object instead of
// failing, and surfaces backend failures unchanged; retry policy belongs
// to whoever constructed the backend (see pkg/retry).
package cache

import (
	"context"
	"fmt"

	fserrors "github.com/fsbridge/fsbridge/pkg/errors"
	"github.com/fsbridge/fsbridge/pkg/types"
)

// Fetcher is the engine's view of one backend object.
type Fetcher interface {
	// FetchRange reads length bytes at offset. length < 0 reads to the end.
	FetchRange(ctx context.Context, offset, length int64) ([]byte, error)

	// Size returns the total object size.
	Size(ctx context.Context) (int64, error)
}

// Strategy selects how much data a read fetches and retains.
type Strategy string

const (
	// StrategyNone fetches exactly the requested bytes and retains nothing.
	StrategyNone Strategy = "none"

	// StrategyBytes fetches the whole object on first access and serves all
	// reads from memory.
	StrategyBytes Strategy = "bytes"

	// StrategyReadahead fetches the requested range plus a trailing margin
	// and serves sequential reads from the retained window.
	StrategyReadahead Strategy = "readahead"

	// StrategyBlock partitions the object into fixed aligned blocks with
	// bounded LRU retention.
	StrategyBlock Strategy = "block"
)

const (
	// DefaultBlockSize is the block size used when none is configured.
	DefaultBlockSize int64 = 5 * 1024 * 1024

	// DefaultMaxBlocks bounds retained blocks per open file.
	DefaultMaxBlocks = 32

	// DefaultReadahead is the trailing margin fetched beyond a request.
	DefaultReadahead int64 = 256 * 1024
)

// Config carries the per-file read tuning knobs.
type Config struct {
	Strategy  Strategy `yaml:"strategy"`
	BlockSize int64    `yaml:"block_size"`
	MaxBlocks int      `yaml:"max_blocks"`
	Readahead int64    `yaml:"readahead"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Strategy:  StrategyBlock,
		BlockSize: DefaultBlockSize,
		MaxBlocks: DefaultMaxBlocks,
		Readahead: DefaultReadahead,
	}
}

// Validate checks the configuration for use.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyNone, StrategyBytes, StrategyReadahead, StrategyBlock:
	default:
		return fmt.Errorf("unknown cache strategy %q", c.Strategy)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("block_size must be positive, got %d", c.BlockSize)
	}
	if c.MaxBlocks <= 0 {
		return fmt.Errorf("max_blocks must be positive, got %d", c.MaxBlocks)
	}
	if c.Readahead < 0 {
		return fmt.Errorf("readahead must not be negative, got %d", c.Readahead)
	}
	return nil
}

// Engine serves random-access reads over one object.
type Engine interface {
	// ReadAt returns up to length bytes at offset. Reads past end-of-object
	// return the truncated remainder; a read at or beyond the end returns an
	// empty slice and no error.
	ReadAt(ctx context.Context, offset, length int64) ([]byte, error)

	// Size returns the object size, fetched at most once.
	Size(ctx context.Context) (int64, error)

	// Stats reports cache effectiveness counters.
	Stats() types.CacheStats
}

// NewEngine constructs the engine selected by cfg.Strategy.
func NewEngine(f Fetcher, cfg Config) (Engine, error) {
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyBlock
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.MaxBlocks == 0 {
		cfg.MaxBlocks = DefaultMaxBlocks
	}
	if cfg.Readahead == 0 {
		cfg.Readahead = DefaultReadahead
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Strategy {
	case StrategyNone:
		return &noneEngine{sized: sized{fetcher: f}}, nil
	case StrategyBytes:
		return &bytesEngine{sized: sized{fetcher: f}}, nil
	case StrategyReadahead:
		return &readaheadEngine{sized: sized{fetcher: f}, margin: cfg.Readahead}, nil
	default:
		return &blockEngine{
			sized:     sized{fetcher: f},
			blockSize: cfg.BlockSize,
			maxBlocks: cfg.MaxBlocks,
			blocks:    make(map[int64]*blockEntry),
		}, nil
	}
}

// sized memoizes the object size shared by all engines.
type sized struct {
	fetcher  Fetcher
	size     int64
	haveSize bool
	stats    types.CacheStats
}

func (s *sized) Size(ctx context.Context) (int64, error) {
	if s.haveSize {
		return s.size, nil
	}
	size, err := s.fetcher.Size(ctx)
	if err != nil {
		return 0, err
	}
	s.size = size
	s.haveSize = true
	return size, nil
}

// clamp bounds a requested (offset, length) to the object, returning the
// effective range. ok is false when nothing remains to read.
func (s *sized) clamp(ctx context.Context, offset, length int64) (start, end int64, ok bool, err error) {
	if offset < 0 {
		return 0, 0, false, fserrors.E("read", "", fserrors.ErrUnsupportedOperation,
			fmt.Errorf("negative offset %d", offset))
	}
	size, err := s.Size(ctx)
	if err != nil {
		return 0, 0, false, err
	}
	if offset >= size || length == 0 {
		return 0, 0, false, nil
	}
	end = size
	if length > 0 && offset+length < size {
		end = offset + length
	}
	return offset, end, true, nil
}

func (s *sized) snapshot() types.CacheStats {
	st := s.stats
	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) / float64(total)
	}
	return st
}
