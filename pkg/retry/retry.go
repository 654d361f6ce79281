// Package retry provides retry with exponential backoff for backend
// operations, plus a Backend decorator applying it to every call.
package retry

import (
	"context"
	stderr "errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	fserrors "github.com/fsbridge/fsbridge/pkg/errors"
	"github.com/fsbridge/fsbridge/pkg/types"
)

// Config defines retry behavior configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts (including the first)
	MaxAttempts int `yaml:"max_attempts"`

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration `yaml:"max_delay"`

	// Multiplier is the factor by which delay increases after each retry
	Multiplier float64 `yaml:"multiplier"`

	// Jitter adds randomness to delay to prevent thundering herd
	Jitter bool `yaml:"jitter"`

	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-"`
}

// DefaultConfig returns a sensible default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retryer handles retry logic with exponential backoff
type Retryer struct {
	config Config
}

// New creates a new Retryer with the given configuration
func New(config Config) *Retryer {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 5 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}

	return &Retryer{config: config}
}

// Do executes fn with retry logic and context support.
func (r *Retryer) Do(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("operation canceled: %w", ctx.Err())
		default:
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) {
			return err
		}
		if attempt >= r.config.MaxAttempts {
			break
		}

		delay := r.calculateDelay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation canceled after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w", r.config.MaxAttempts, lastErr)
}

// retryable reports whether an error is worth retrying. Deterministic
// failures (absent paths, rejected arguments) never are; transient
// backend failures are.
func retryable(err error) bool {
	switch {
	case stderr.Is(err, context.Canceled), stderr.Is(err, context.DeadlineExceeded):
		return false
	case stderr.Is(err, fserrors.ErrNotFound),
		stderr.Is(err, fserrors.ErrMalformedPath),
		stderr.Is(err, fserrors.ErrUnsupportedOperation),
		stderr.Is(err, fserrors.ErrClosedFile):
		return false
	}
	return true
}

// calculateDelay calculates the delay for the next retry attempt
func (r *Retryer) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}
	if r.config.Jitter {
		// ±20%
		delay += delay * 0.2 * (rand.Float64()*2 - 1)
	}
	return time.Duration(delay)
}

// Wrap decorates a backend so every operation runs under r.
func Wrap(b types.Backend, r *Retryer) types.Backend {
	if r == nil {
		return b
	}
	return &retryingBackend{inner: b, retryer: r}
}

type retryingBackend struct {
	inner   types.Backend
	retryer *Retryer
}

func (b *retryingBackend) Protocol() string { return b.inner.Protocol() }

func (b *retryingBackend) List(ctx context.Context, path string) ([]types.ObjectInfo, error) {
	var entries []types.ObjectInfo
	err := b.retryer.Do(ctx, func(ctx context.Context) error {
		var err error
		entries, err = b.inner.List(ctx, path)
		return err
	})
	return entries, err
}

func (b *retryingBackend) Info(ctx context.Context, path string) (*types.ObjectInfo, error) {
	var info *types.ObjectInfo
	err := b.retryer.Do(ctx, func(ctx context.Context) error {
		var err error
		info, err = b.inner.Info(ctx, path)
		return err
	})
	return info, err
}

func (b *retryingBackend) GetRange(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	var data []byte
	err := b.retryer.Do(ctx, func(ctx context.Context) error {
		var err error
		data, err = b.inner.GetRange(ctx, path, offset, length)
		return err
	})
	return data, err
}

func (b *retryingBackend) Put(ctx context.Context, path string, data []byte) error {
	return b.retryer.Do(ctx, func(ctx context.Context) error {
		return b.inner.Put(ctx, path, data)
	})
}

func (b *retryingBackend) Move(ctx context.Context, src, dst string) error {
	return b.retryer.Do(ctx, func(ctx context.Context) error {
		return b.inner.Move(ctx, src, dst)
	})
}

func (b *retryingBackend) Exists(ctx context.Context, path string) (bool, error) {
	var ok bool
	err := b.retryer.Do(ctx, func(ctx context.Context) error {
		var err error
		ok, err = b.inner.Exists(ctx, path)
		return err
	})
	return ok, err
}

func (b *retryingBackend) Delete(ctx context.Context, path string) error {
	return b.retryer.Do(ctx, func(ctx context.Context) error {
		return b.inner.Delete(ctx, path)
	})
}
