// Package file implements the buffered file object callers read and write
// through.
//
// A read-mode file delegates to a per-file cache engine; a write-mode file
// accumulates output locally and stages it to a temporary backend path,
// which is promoted to the final path on close: immediately when no
// transaction is active, at commit time otherwise. A File is mutated only
// by its owning caller; concurrent use requires external synchronization.
package file

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fsbridge/fsbridge/internal/cache"
	"github.com/fsbridge/fsbridge/internal/metrics"
	"github.com/fsbridge/fsbridge/internal/registry"
	"github.com/fsbridge/fsbridge/internal/txn"
	fserrors "github.com/fsbridge/fsbridge/pkg/errors"
	"github.com/fsbridge/fsbridge/pkg/types"
)

// Mode is a file's open mode. Mixed read/write mode is not supported.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

// ParseMode maps an open-mode string to a Mode. Accepted: "r", "rb",
// "w", "wb".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "r", "rb":
		return ModeRead, nil
	case "w", "wb":
		return ModeWrite, nil
	default:
		return 0, fserrors.E("open", "", fserrors.ErrUnsupportedOperation,
			fmt.Errorf("mode %q not supported", s))
	}
}

// File is a buffered, seekable view of one backend object.
type File struct {
	ctx    context.Context
	handle *registry.Handle
	path   string
	mode   Mode
	pos    int64
	closed bool

	// Read mode.
	engine   cache.Engine
	strategy cache.Strategy

	// Write mode. Output accumulates in buf and is staged to stagingPath;
	// flushedLen tracks how much of buf the staging object already holds.
	buf         []byte
	stagingPath string
	flushedLen  int64
	staged      bool
	tx          *txn.Transaction

	logger    *slog.Logger
	collector *metrics.Collector
}

// NewReader creates a read-mode file over engine.
func NewReader(ctx context.Context, handle *registry.Handle, path string,
	engine cache.Engine, strategy cache.Strategy,
	logger *slog.Logger, collector *metrics.Collector) *File {
	return &File{
		ctx:       ctx,
		handle:    handle,
		path:      path,
		mode:      ModeRead,
		engine:    engine,
		strategy:  strategy,
		logger:    nopLogger(logger),
		collector: collector,
	}
}

// NewWriter creates a write-mode file staging to a fresh temporary path.
// tx may be nil, in which case close promotes immediately.
func NewWriter(ctx context.Context, handle *registry.Handle, path string,
	tx *txn.Transaction, logger *slog.Logger, collector *metrics.Collector) *File {
	return &File{
		ctx:         ctx,
		handle:      handle,
		path:        path,
		mode:        ModeWrite,
		stagingPath: txn.StagingPath(path),
		tx:          tx,
		logger:      nopLogger(logger),
		collector:   collector,
	}
}

// Path returns the file's final path.
func (f *File) Path() string { return f.path }

// Mode returns the file's open mode.
func (f *File) Mode() Mode { return f.mode }

// Tell returns the current logical position.
func (f *File) Tell() int64 { return f.pos }

// Size returns the object size. Read mode only.
func (f *File) Size() (int64, error) {
	if f.mode != ModeRead {
		return 0, fserrors.E("size", f.path, fserrors.ErrUnsupportedOperation,
			fmt.Errorf("size is a read-mode operation"))
	}
	return f.engine.Size(f.ctx)
}

// Read fills p from the current position and advances it by the bytes
// actually returned. At end-of-object it returns 0, io.EOF.
func (f *File) Read(p []byte) (int, error) {
	if f.closed {
		return 0, fserrors.E("read", f.path, fserrors.ErrClosedFile, nil)
	}
	if f.mode != ModeRead {
		return 0, fserrors.E("read", f.path, fserrors.ErrUnsupportedOperation,
			fmt.Errorf("file open for writing"))
	}
	if len(p) == 0 {
		return 0, nil
	}
	data, err := f.engine.ReadAt(f.ctx, f.pos, int64(len(p)))
	if err != nil {
		return 0, err
	}
	n := copy(p, data)
	f.pos += int64(n)
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// ReadAll reads from the current position through end-of-object.
func (f *File) ReadAll() ([]byte, error) {
	if f.closed {
		return nil, fserrors.E("read", f.path, fserrors.ErrClosedFile, nil)
	}
	if f.mode != ModeRead {
		return nil, fserrors.E("read", f.path, fserrors.ErrUnsupportedOperation,
			fmt.Errorf("file open for writing"))
	}
	data, err := f.engine.ReadAt(f.ctx, f.pos, -1)
	if err != nil {
		return nil, err
	}
	f.pos += int64(len(data))
	return data, nil
}

// Seek updates the logical position without performing I/O. In write mode
// the position is append-only: any seek away from the current position is
// rejected.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, fserrors.E("seek", f.path, fserrors.ErrClosedFile, nil)
	}

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = f.pos + offset
	case io.SeekEnd:
		if f.mode == ModeWrite {
			target = int64(len(f.buf)) + offset
		} else {
			size, err := f.engine.Size(f.ctx)
			if err != nil {
				return 0, err
			}
			target = size + offset
		}
	default:
		return 0, fserrors.E("seek", f.path, fserrors.ErrUnsupportedOperation,
			fmt.Errorf("whence %d not supported", whence))
	}

	if target < 0 {
		return 0, fserrors.E("seek", f.path, fserrors.ErrUnsupportedOperation,
			fmt.Errorf("negative position %d", target))
	}
	if f.mode == ModeWrite && target != f.pos {
		return 0, fserrors.E("seek", f.path, fserrors.ErrUnsupportedOperation,
			fmt.Errorf("write mode is append-only"))
	}
	f.pos = target
	return f.pos, nil
}

// Write appends p to the staging buffer. Write mode only.
func (f *File) Write(p []byte) (int, error) {
	if f.closed {
		return 0, fserrors.E("write", f.path, fserrors.ErrClosedFile, nil)
	}
	if f.mode != ModeWrite {
		return 0, fserrors.E("write", f.path, fserrors.ErrUnsupportedOperation,
			fmt.Errorf("file open for reading"))
	}
	f.buf = append(f.buf, p...)
	f.pos += int64(len(p))
	return len(p), nil
}

// Flush pushes the accumulated bytes to the staging path without making
// them visible at the final path. Backends take whole objects, so each
// flush rewrites the staging object with everything written so far.
func (f *File) Flush() error {
	if f.closed {
		return fserrors.E("flush", f.path, fserrors.ErrClosedFile, nil)
	}
	if f.mode != ModeWrite {
		return nil
	}
	return f.stage()
}

// Close resolves the file.
//
// Write mode: the staged output is finalized; with no transaction active
// it is promoted to the final path immediately, otherwise the
// staging->final pair is registered with the transaction and promotion
// waits for commit. If staging fails (including caller cancellation) the
// file closes without registering or promoting anything, so a later
// discard can clean up. Read mode: releases the cache engine. Closing
// twice is a no-op.
func (f *File) Close() error {
	if f.closed {
		return nil
	}

	if f.mode == ModeRead {
		f.closed = true
		st := f.engine.Stats()
		f.collector.RecordCache(string(f.strategy), st.Hits, st.Misses, st.Evictions)
		return nil
	}

	if err := f.stage(); err != nil {
		f.closed = true
		return err
	}
	f.closed = true

	if f.tx != nil {
		return f.tx.Register(f.stagingPath, f.path, f.handle)
	}

	if err := f.handle.Backend.Move(f.ctx, f.stagingPath, f.path); err != nil {
		return fserrors.IO("close", f.path, err)
	}
	f.handle.Listings.Invalidate(f.path)
	f.logger.Debug("write promoted", "path", f.path, "bytes", len(f.buf))
	return nil
}

// Stats reports the read cache counters. Zero value in write mode.
func (f *File) Stats() types.CacheStats {
	if f.engine == nil {
		return types.CacheStats{}
	}
	return f.engine.Stats()
}

func (f *File) stage() error {
	if f.staged && int64(len(f.buf)) == f.flushedLen {
		return nil
	}
	if err := f.handle.Backend.Put(f.ctx, f.stagingPath, f.buf); err != nil {
		return fserrors.IO("flush", f.path, err)
	}
	f.staged = true
	f.flushedLen = int64(len(f.buf))
	return nil
}

func nopLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
