package txn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsbridge/fsbridge/internal/dircache"
	"github.com/fsbridge/fsbridge/internal/registry"
	"github.com/fsbridge/fsbridge/internal/storage/memory"
	fserrors "github.com/fsbridge/fsbridge/pkg/errors"
	"github.com/fsbridge/fsbridge/pkg/types"
)

func newHandle(backend types.Backend) *registry.Handle {
	return &registry.Handle{
		Backend:  backend,
		Protocol: backend.Protocol(),
		Token:    backend.Protocol() + ":test",
		Listings: dircache.New(0, 0),
	}
}

// failAfterMoves wraps a backend and fails Move once the allowed number
// of successful promotions is used up.
type failAfterMoves struct {
	types.Backend
	allowed int
	moves   int
}

func (b *failAfterMoves) Move(ctx context.Context, src, dst string) error {
	b.moves++
	if b.moves > b.allowed {
		return fmt.Errorf("move rejected")
	}
	return b.Backend.Move(ctx, src, dst)
}

func stage(t *testing.T, backend types.Backend, tx *Transaction, handle *registry.Handle, final, content string) string {
	t.Helper()
	staging := StagingPath(final)
	require.NoError(t, backend.Put(context.Background(), staging, []byte(content)))
	require.NoError(t, tx.Register(staging, final, handle))
	return staging
}

func TestManager_SingleOpenTransaction(t *testing.T) {
	mgr := NewManager(nil, nil)

	tx, err := mgr.Begin()
	require.NoError(t, err)
	assert.Equal(t, StateOpen, tx.State())
	assert.Same(t, tx, mgr.Active())

	_, err = mgr.Begin()
	require.Error(t, err)
	assert.True(t, errors.Is(err, fserrors.ErrTransactionAlreadyOpen))

	require.NoError(t, tx.Commit(context.Background()))
	assert.Nil(t, mgr.Active())

	// Resolved; a new transaction may begin.
	tx2, err := mgr.Begin()
	require.NoError(t, err)
	require.NoError(t, tx2.Discard(context.Background()))
}

func TestCommit_PromotesInRegistrationOrder(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	handle := newHandle(backend)
	mgr := NewManager(nil, nil)

	tx, err := mgr.Begin()
	require.NoError(t, err)

	// Two writes to the same final path: registration order decides.
	stage(t, backend, tx, handle, "data/x.bin", "first")
	stage(t, backend, tx, handle, "data/x.bin", "second")
	stage(t, backend, tx, handle, "data/y.bin", "other")
	assert.Equal(t, 3, tx.Pending())

	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, StateCommitted, tx.State())
	assert.Equal(t, 0, tx.Pending())

	data, err := backend.GetRange(ctx, "data/x.bin", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	data, err = backend.GetRange(ctx, "data/y.bin", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "other", string(data))

	// All staging objects were consumed by promotion.
	assert.Equal(t, 2, backend.Len())
}

func TestDiscard_DeletesStagedArtifactsOnly(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	handle := newHandle(backend)
	require.NoError(t, backend.Put(ctx, "data/keep.bin", []byte("untouched")))

	mgr := NewManager(nil, nil)
	tx, err := mgr.Begin()
	require.NoError(t, err)

	stage(t, backend, tx, handle, "data/a.bin", "aaa")
	stage(t, backend, tx, handle, "data/b.bin", "bbb")

	require.NoError(t, tx.Discard(ctx))
	assert.Equal(t, StateDiscarded, tx.State())
	assert.Nil(t, mgr.Active())

	// Final paths never appeared, staging is gone, pre-existing data stays.
	assert.Equal(t, 1, backend.Len())
	data, err := backend.GetRange(ctx, "data/keep.bin", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "untouched", string(data))
}

func TestDiscard_AfterResolveIsNoOp(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(nil, nil)

	tx, err := mgr.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	require.NoError(t, tx.Discard(ctx))
	assert.Equal(t, StateCommitted, tx.State())
}

func TestRegister_AfterResolveFails(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	handle := newHandle(backend)
	mgr := NewManager(nil, nil)

	tx, err := mgr.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	err = tx.Register("x.staging-1", "x", handle)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fserrors.ErrTransactionResolved))

	err = tx.Commit(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fserrors.ErrTransactionResolved))
}

func TestCommit_PartialFailure(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	backend := &failAfterMoves{Backend: inner, allowed: 1}
	handle := newHandle(backend)
	mgr := NewManager(nil, nil)

	tx, err := mgr.Begin()
	require.NoError(t, err)

	stage(t, inner, tx, handle, "a", "1")
	stage(t, inner, tx, handle, "b", "2")
	stage(t, inner, tx, handle, "c", "3")

	err = tx.Commit(ctx)
	require.Error(t, err)

	var pce *fserrors.PartialCommitError
	require.True(t, errors.As(err, &pce))
	require.Len(t, pce.Succeeded, 1)
	assert.Equal(t, "a", pce.Succeeded[0].Final)
	require.Len(t, pce.Failed, 2)
	assert.Equal(t, "b", pce.Failed[0].Final)
	assert.Equal(t, "c", pce.Failed[1].Final)

	// Applied promotions stay applied; later ones were skipped entirely.
	data, err := inner.GetRange(ctx, "a", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "1", string(data))
	ok, err := inner.Exists(ctx, "c")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, backend.moves) // third move never attempted
}

func TestCommit_FirstPromotionFailure(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	backend := &failAfterMoves{Backend: inner, allowed: 0}
	handle := newHandle(backend)
	mgr := NewManager(nil, nil)

	tx, err := mgr.Begin()
	require.NoError(t, err)
	stage(t, inner, tx, handle, "a", "1")

	err = tx.Commit(ctx)
	require.Error(t, err)

	var pce *fserrors.PartialCommitError
	assert.False(t, errors.As(err, &pce))
	assert.True(t, errors.Is(err, fserrors.ErrBackendIO))
}

func TestRun_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	handle := newHandle(backend)
	mgr := NewManager(nil, nil)

	err := mgr.Run(ctx, func(tx *Transaction) error {
		stage(t, backend, tx, handle, "data/x.bin", "committed")
		return nil
	})
	require.NoError(t, err)

	data, err := backend.GetRange(ctx, "data/x.bin", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "committed", string(data))
	assert.Nil(t, mgr.Active())
}

func TestRun_DiscardsOnError(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	handle := newHandle(backend)
	mgr := NewManager(nil, nil)

	boom := fmt.Errorf("scope failed")
	err := mgr.Run(ctx, func(tx *Transaction) error {
		stage(t, backend, tx, handle, "data/x.bin", "doomed")
		return boom
	})
	assert.Equal(t, boom, err)

	assert.Equal(t, 0, backend.Len())
	assert.Nil(t, mgr.Active())
}

func TestRun_DiscardsOnPanic(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	handle := newHandle(backend)
	mgr := NewManager(nil, nil)

	assert.PanicsWithValue(t, "boom", func() {
		_ = mgr.Run(ctx, func(tx *Transaction) error {
			stage(t, backend, tx, handle, "data/x.bin", "doomed")
			panic("boom")
		})
	})

	assert.Equal(t, 0, backend.Len())
	assert.Nil(t, mgr.Active())
}

func TestStagingPath(t *testing.T) {
	a := StagingPath("data/x.bin")
	b := StagingPath("data/x.bin")

	assert.True(t, strings.HasPrefix(a, "data/x.bin.staging-"))
	assert.NotEqual(t, a, b)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "committed", StateCommitted.String())
	assert.Equal(t, "discarded", StateDiscarded.String())
}
