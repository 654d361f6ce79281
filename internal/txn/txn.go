// Package txn implements the transactional write commit protocol.
//
// Files opened for writing while a transaction is open stage their output
// to temporary paths and register the staging->final pair here. Commit
// promotes every registered pair in registration order; discard deletes
// the staged artifacts and leaves final paths untouched. A transaction
// resolves exactly once: OPEN -> COMMITTED or OPEN -> DISCARDED.
package txn

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/fsbridge/fsbridge/internal/metrics"
	"github.com/fsbridge/fsbridge/internal/registry"
	fserrors "github.com/fsbridge/fsbridge/pkg/errors"
)

// State is the lifecycle state of a transaction.
type State int

const (
	StateOpen State = iota
	StateCommitted
	StateDiscarded
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCommitted:
		return "committed"
	case StateDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// pending is one registered staging->final promotion.
type pending struct {
	staging string
	final   string
	handle  *registry.Handle
}

// Transaction tracks the staged writes of one transactional scope.
// Safe for concurrent Register calls from independent files.
type Transaction struct {
	mu       sync.Mutex
	state    State
	pendings []pending

	manager *Manager
	logger  *slog.Logger
}

// Manager owns the currently active transaction for a logical scope.
type Manager struct {
	mu        sync.Mutex
	active    *Transaction
	logger    *slog.Logger
	collector *metrics.Collector
}

// NewManager creates a transaction manager. logger may be nil.
func NewManager(logger *slog.Logger, collector *metrics.Collector) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{logger: logger.With("component", "txn"), collector: collector}
}

// Begin opens a new transaction and makes it the active one. Beginning
// while a transaction is already open fails: nesting is not supported.
func (m *Manager) Begin() (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return nil, fserrors.E("begin", "", fserrors.ErrTransactionAlreadyOpen, nil)
	}
	tx := &Transaction{manager: m, logger: m.logger}
	m.active = tx
	m.logger.Debug("transaction opened")
	return tx, nil
}

// Active returns the currently open transaction, or nil.
func (m *Manager) Active() *Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Run executes fn inside a transaction scope with guaranteed resolution:
// commit when fn returns nil, discard when it returns an error or panics.
// The panic is re-raised after the discard.
func (m *Manager) Run(ctx context.Context, fn func(tx *Transaction) error) (err error) {
	tx, err := m.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Discard(ctx)
			panic(r)
		}
	}()
	if err = fn(tx); err != nil {
		if derr := tx.Discard(ctx); derr != nil {
			m.logger.Warn("discard after failed scope", "error", derr)
		}
		return err
	}
	return tx.Commit(ctx)
}

func (m *Manager) release(tx *Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == tx {
		m.active = nil
	}
}

// State returns the transaction's current state.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Pending reports the number of registered, not yet promoted pairs.
func (t *Transaction) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pendings)
}

// Register records a staging->final promotion for commit time. Called
// exactly once per write-file close while the transaction is open.
func (t *Transaction) Register(staging, final string, handle *registry.Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateOpen {
		return fserrors.E("register", final, fserrors.ErrTransactionResolved, nil)
	}
	t.pendings = append(t.pendings, pending{staging: staging, final: final, handle: handle})
	t.logger.Debug("staged write registered", "staging", staging, "final", final)
	return nil
}

// Commit promotes every registered pair in registration order.
//
// Promotion uses the backend's Move: atomic where the store supports a
// native rename, otherwise copy-then-delete with a brief window in which
// both paths exist. On the first failure the remaining promotions are
// skipped and promotions already applied stay applied; callers get a
// PartialCommitError listing both sets when at least one pair succeeded,
// or the bare failure when the first promotion failed. Concurrent
// transactions promoting to overlapping final paths are not coordinated;
// the last writer wins.
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	if t.state != StateOpen {
		state := t.state
		t.mu.Unlock()
		return fserrors.E("commit", "", fserrors.ErrTransactionResolved,
			fmt.Errorf("transaction is %s", state))
	}
	t.state = StateCommitted
	pendings := t.pendings
	t.pendings = nil
	t.mu.Unlock()
	t.manager.release(t)

	var succeeded, failed []fserrors.Promotion
	var firstErr error
	for i, p := range pendings {
		if firstErr == nil {
			err := p.handle.Backend.Move(ctx, p.staging, p.final)
			if err == nil {
				p.handle.Listings.Invalidate(p.final)
				succeeded = append(succeeded, fserrors.Promotion{Staging: p.staging, Final: p.final})
				continue
			}
			firstErr = err
			t.logger.Error("promotion failed", "staging", p.staging, "final", p.final, "error", err)
		}
		failed = append(failed, fserrors.Promotion{Staging: pendings[i].staging, Final: pendings[i].final})
	}

	switch {
	case firstErr == nil:
		t.manager.collector.RecordTransaction("committed")
		t.logger.Debug("transaction committed", "promotions", len(succeeded))
		return nil
	case len(succeeded) == 0:
		t.manager.collector.RecordTransaction("failed")
		return fserrors.IO("commit", failed[0].Final, firstErr)
	default:
		t.manager.collector.RecordTransaction("partial")
		return &fserrors.PartialCommitError{Succeeded: succeeded, Failed: failed, Err: firstErr}
	}
}

// Discard deletes every staged artifact without touching final paths.
// Discarding an already-resolved transaction is a no-op.
func (t *Transaction) Discard(ctx context.Context) error {
	t.mu.Lock()
	if t.state != StateOpen {
		t.mu.Unlock()
		return nil
	}
	t.state = StateDiscarded
	pendings := t.pendings
	t.pendings = nil
	t.mu.Unlock()
	t.manager.release(t)
	t.manager.collector.RecordTransaction("discarded")

	// Staged artifacts are independent; clean them up in parallel.
	p := pool.New().WithErrors().WithContext(ctx)
	for _, pd := range pendings {
		p.Go(func(ctx context.Context) error {
			if err := pd.handle.Backend.Delete(ctx, pd.staging); err != nil {
				return fserrors.IO("discard", pd.staging, err)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		t.logger.Warn("staged artifact cleanup incomplete", "error", err)
		return err
	}
	t.logger.Debug("transaction discarded", "staged", len(pendings))
	return nil
}

// StagingPath derives a collision-resistant staging location for final.
// The random token guarantees the name can never collide with a
// legitimate final path.
func StagingPath(final string) string {
	return final + ".staging-" + uuid.NewString()
}
