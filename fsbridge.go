package fsbridge

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fsbridge/fsbridge/internal/cache"
	"github.com/fsbridge/fsbridge/internal/config"
	"github.com/fsbridge/fsbridge/internal/file"
	"github.com/fsbridge/fsbridge/internal/metrics"
	"github.com/fsbridge/fsbridge/internal/registry"
	"github.com/fsbridge/fsbridge/internal/storage/local"
	"github.com/fsbridge/fsbridge/internal/storage/memory"
	"github.com/fsbridge/fsbridge/internal/storage/s3"
	"github.com/fsbridge/fsbridge/internal/txn"
	"github.com/fsbridge/fsbridge/internal/urlpath"
	"github.com/fsbridge/fsbridge/pkg/retry"
	"github.com/fsbridge/fsbridge/pkg/types"
)

// FS is the entry point: it resolves URLs to shared backend handles and
// opens buffered files over them. Safe for concurrent use.
type FS struct {
	registry  *registry.Registry
	txns      *txn.Manager
	collector *metrics.Collector
	logger    *slog.Logger
	retryer   *retry.Retryer
	cacheCfg  cache.Config

	// per-protocol default backend options, merged under per-call options
	backendOptions map[string]map[string]string
}

// New creates a filesystem with the built-in protocol drivers registered
// ("memory", "file", "s3").
func New(opts ...Option) (*FS, error) {
	settings := defaultSettings()
	for _, opt := range opts {
		opt(settings)
	}

	collector := settings.collector
	if collector == nil && settings.metricsCfg != nil {
		var err error
		collector, err = metrics.NewCollector(settings.metricsCfg)
		if err != nil {
			return nil, err
		}
	}

	fs := &FS{
		registry:       settings.registry,
		collector:      collector,
		logger:         settings.logger,
		retryer:        settings.retryer,
		cacheCfg:       settings.cacheCfg,
		backendOptions: settings.backendOptions,
	}
	fs.txns = txn.NewManager(fs.logger, collector)

	if fs.registry == nil {
		fs.registry = registry.New()
	}
	if settings.listingSet {
		fs.registry.SetListingConfig(settings.listingTTL, settings.listingCapacity)
	}
	fs.registerBuiltins()
	return fs, nil
}

// FromConfiguration creates a filesystem from a loaded configuration.
func FromConfiguration(cfg *config.Configuration) (*FS, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	opts := []Option{
		WithCacheConfig(cfg.Cache),
		WithLogger(newLogger(cfg.Global)),
		WithRetryConfig(retry.Config{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.BaseDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
		}),
		WithMetricsConfig(&cfg.Metrics),
		WithListingConfig(cfg.Listings.TTL, uint64(cfg.Listings.Capacity)),
	}
	for protocol, option := range cfg.Backends {
		for k, v := range option {
			opts = append(opts, WithBackendOption(protocol, k, v))
		}
	}
	fs, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Registry.SkipCache {
		for _, protocol := range []string{"memory", "file", "s3"} {
			fs.registry.SetCaching(protocol, false)
		}
	}
	return fs, nil
}

func newLogger(cfg config.GlobalConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(cfg.LogLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func (fs *FS) registerBuiltins() {
	fs.registry.RegisterFactory("memory", func(options map[string]string) (types.Backend, error) {
		return fs.decorate(memory.New()), nil
	})
	fs.registry.RegisterFactory("file", func(options map[string]string) (types.Backend, error) {
		backend, err := local.New(options)
		if err != nil {
			return nil, err
		}
		return fs.decorate(backend), nil
	})
	fs.registry.RegisterFactory("s3", func(options map[string]string) (types.Backend, error) {
		backend, err := s3.New(context.Background(), s3.ConfigFromOptions(options), fs.logger)
		if err != nil {
			return nil, err
		}
		return fs.decorate(backend), nil
	})
}

// decorate applies the ambient backend wrappers: retry inside, metrics
// outside so retried attempts count individually against latency but the
// operation is accounted once.
func (fs *FS) decorate(b types.Backend) types.Backend {
	return metrics.InstrumentBackend(retry.Wrap(b, fs.retryer), fs.collector)
}

// Registry exposes the instance registry, e.g. to toggle caching or
// evict handles.
func (fs *FS) Registry() *registry.Registry { return fs.registry }

// Collector exposes the metrics collector; nil when metrics are disabled.
func (fs *FS) Collector() *metrics.Collector { return fs.collector }

// FileSystemFor returns the shared backend handle for protocol,
// constructing it on first use. options merge over the filesystem's
// per-protocol defaults; distinct merged sets yield distinct handles.
func (fs *FS) FileSystemFor(protocol string, options map[string]string) (*registry.Handle, error) {
	merged := map[string]string{}
	for k, v := range fs.backendOptions[protocol] {
		merged[k] = v
	}
	for k, v := range options {
		merged[k] = v
	}
	return fs.registry.GetOrCreate(protocol, merged)
}

// resolve canonicalizes url and returns the shared handle plus the
// normalized in-backend path.
func (fs *FS) resolve(url string, extra map[string]string) (*registry.Handle, string, error) {
	protocol, path, err := urlpath.Canonicalize(url)
	if err != nil {
		return nil, "", err
	}
	options := map[string]string{}
	for k, v := range fs.backendOptions[protocol] {
		options[k] = v
	}
	for k, v := range extra {
		options[k] = v
	}
	handle, err := fs.registry.GetOrCreate(protocol, options)
	if err != nil {
		return nil, "", err
	}
	return handle, path, nil
}

// Open opens url in mode ("r"/"rb" to read, "w"/"wb" to write).
//
// Reads flow through a per-file cache engine; writes buffer locally and
// stage to a temporary path, promoted on Close. While a transaction is
// open every new write-mode file joins it and promotion waits for Commit.
func (fs *FS) Open(ctx context.Context, url, mode string, opts ...OpenOption) (*file.File, error) {
	m, err := file.ParseMode(mode)
	if err != nil {
		return nil, err
	}

	settings := &openSettings{cacheCfg: fs.cacheCfg}
	for _, opt := range opts {
		opt(settings)
	}

	handle, path, err := fs.resolve(url, settings.backendOptions)
	if err != nil {
		return nil, err
	}

	if m == file.ModeWrite {
		tx := fs.txns.Active()
		if settings.txSet {
			tx = settings.tx
		}
		return file.NewWriter(ctx, handle, path, tx, fs.logger, fs.collector), nil
	}

	engine, err := cache.NewEngine(&backendFetcher{handle: handle, path: path}, settings.cacheCfg)
	if err != nil {
		return nil, err
	}
	strategy := settings.cacheCfg.Strategy
	if strategy == "" {
		strategy = cache.StrategyBlock
	}
	return file.NewReader(ctx, handle, path, engine, strategy, fs.logger, fs.collector), nil
}

// Begin opens a transaction. Write-mode files opened before End/Commit
// stage their output and promote together at Commit.
func (fs *FS) Begin() (*txn.Transaction, error) {
	return fs.txns.Begin()
}

// Transaction returns the currently open transaction, or nil.
func (fs *FS) Transaction() *txn.Transaction {
	return fs.txns.Active()
}

// WithTransaction runs fn inside a transaction: commit if fn returns
// nil, discard otherwise.
func (fs *FS) WithTransaction(ctx context.Context, fn func(tx *txn.Transaction) error) error {
	return fs.txns.Run(ctx, fn)
}

// backendFetcher adapts one (handle, path) to the cache engine's view.
type backendFetcher struct {
	handle *registry.Handle
	path   string
}

func (f *backendFetcher) FetchRange(ctx context.Context, offset, length int64) ([]byte, error) {
	return f.handle.Backend.GetRange(ctx, f.path, offset, length)
}

func (f *backendFetcher) Size(ctx context.Context) (int64, error) {
	info, err := f.handle.Backend.Info(ctx, f.path)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

var _ io.ReadWriteSeeker = (*file.File)(nil)
