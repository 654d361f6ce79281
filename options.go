package fsbridge

import (
	"io"
	"log/slog"
	"time"

	"github.com/fsbridge/fsbridge/internal/cache"
	"github.com/fsbridge/fsbridge/internal/metrics"
	"github.com/fsbridge/fsbridge/internal/registry"
	"github.com/fsbridge/fsbridge/internal/txn"
	"github.com/fsbridge/fsbridge/pkg/retry"
)

type settings struct {
	registry       *registry.Registry
	logger         *slog.Logger
	collector      *metrics.Collector
	metricsCfg     *metrics.Config
	retryer        *retry.Retryer
	cacheCfg       cache.Config
	backendOptions map[string]map[string]string

	listingTTL      time.Duration
	listingCapacity uint64
	listingSet      bool
}

func defaultSettings() *settings {
	return &settings{
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		cacheCfg:       cache.DefaultConfig(),
		backendOptions: make(map[string]map[string]string),
	}
}

// Option configures an FS at construction time.
type Option func(*settings)

// WithRegistry substitutes the instance registry, e.g. an isolated one
// for tests.
func WithRegistry(r *registry.Registry) Option {
	return func(s *settings) { s.registry = r }
}

// WithLogger sets the structured logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCollector installs a pre-built metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(s *settings) { s.collector = c }
}

// WithMetricsConfig builds a collector from cfg. Ignored when a
// collector was installed directly.
func WithMetricsConfig(cfg *metrics.Config) Option {
	return func(s *settings) { s.metricsCfg = cfg }
}

// WithRetryConfig applies retry with backoff to every backend call.
func WithRetryConfig(cfg retry.Config) Option {
	return func(s *settings) { s.retryer = retry.New(cfg) }
}

// WithListingConfig tunes the per-handle directory listing cache. Zero
// values select the dircache defaults.
func WithListingConfig(ttl time.Duration, capacity uint64) Option {
	return func(s *settings) {
		s.listingTTL = ttl
		s.listingCapacity = capacity
		s.listingSet = true
	}
}

// WithCacheConfig sets the default read cache configuration.
func WithCacheConfig(cfg cache.Config) Option {
	return func(s *settings) { s.cacheCfg = cfg }
}

// WithCacheStrategy sets the default read cache strategy.
func WithCacheStrategy(strategy cache.Strategy) Option {
	return func(s *settings) { s.cacheCfg.Strategy = strategy }
}

// WithBackendOption sets a default construction option for one protocol.
func WithBackendOption(protocol, key, value string) Option {
	return func(s *settings) {
		if s.backendOptions[protocol] == nil {
			s.backendOptions[protocol] = make(map[string]string)
		}
		s.backendOptions[protocol][key] = value
	}
}

// openSettings carries per-open overrides.
type openSettings struct {
	cacheCfg       cache.Config
	backendOptions map[string]string
	tx             *txn.Transaction
	txSet          bool
}

// OpenOption configures one Open call.
type OpenOption func(*openSettings)

// OpenWithCacheStrategy overrides the read cache strategy for this file.
func OpenWithCacheStrategy(strategy cache.Strategy) OpenOption {
	return func(s *openSettings) { s.cacheCfg.Strategy = strategy }
}

// OpenWithBlockSize overrides the cache block size for this file.
func OpenWithBlockSize(n int64) OpenOption {
	return func(s *openSettings) { s.cacheCfg.BlockSize = n }
}

// OpenWithMaxBlocks overrides the retained block bound for this file.
func OpenWithMaxBlocks(n int) OpenOption {
	return func(s *openSettings) { s.cacheCfg.MaxBlocks = n }
}

// OpenWithReadahead overrides the readahead margin for this file.
func OpenWithReadahead(n int64) OpenOption {
	return func(s *openSettings) { s.cacheCfg.Readahead = n }
}

// OpenWithTransaction binds a write-mode file to tx instead of the
// currently active transaction. Passing nil detaches the file, so its
// close promotes immediately.
func OpenWithTransaction(tx *txn.Transaction) OpenOption {
	return func(s *openSettings) {
		s.tx = tx
		s.txSet = true
	}
}

// OpenWithBackendOption adds a backend construction option for this
// call. Distinct option sets resolve to distinct backend handles.
func OpenWithBackendOption(key, value string) OpenOption {
	return func(s *openSettings) {
		if s.backendOptions == nil {
			s.backendOptions = make(map[string]string)
		}
		s.backendOptions[key] = value
	}
}
