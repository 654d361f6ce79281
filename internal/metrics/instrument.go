package metrics

import (
	"context"
	"time"

	"github.com/fsbridge/fsbridge/pkg/types"
)

// InstrumentBackend wraps a backend so every call is timed and counted.
// With a nil collector the backend is returned unwrapped.
func InstrumentBackend(b types.Backend, c *Collector) types.Backend {
	if c == nil {
		return b
	}
	return &instrumented{inner: b, collector: c}
}

type instrumented struct {
	inner     types.Backend
	collector *Collector
}

func (m *instrumented) Protocol() string { return m.inner.Protocol() }

func (m *instrumented) List(ctx context.Context, path string) ([]types.ObjectInfo, error) {
	start := time.Now()
	entries, err := m.inner.List(ctx, path)
	m.collector.RecordBackendOp("list", m.inner.Protocol(), time.Since(start), err)
	return entries, err
}

func (m *instrumented) Info(ctx context.Context, path string) (*types.ObjectInfo, error) {
	start := time.Now()
	info, err := m.inner.Info(ctx, path)
	m.collector.RecordBackendOp("info", m.inner.Protocol(), time.Since(start), err)
	return info, err
}

func (m *instrumented) GetRange(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	start := time.Now()
	data, err := m.inner.GetRange(ctx, path, offset, length)
	m.collector.RecordBackendOp("get_range", m.inner.Protocol(), time.Since(start), err)
	m.collector.RecordBytesRead(m.inner.Protocol(), len(data))
	return data, err
}

func (m *instrumented) Put(ctx context.Context, path string, data []byte) error {
	start := time.Now()
	err := m.inner.Put(ctx, path, data)
	m.collector.RecordBackendOp("put", m.inner.Protocol(), time.Since(start), err)
	if err == nil {
		m.collector.RecordBytesWritten(m.inner.Protocol(), len(data))
	}
	return err
}

func (m *instrumented) Move(ctx context.Context, src, dst string) error {
	start := time.Now()
	err := m.inner.Move(ctx, src, dst)
	m.collector.RecordBackendOp("move", m.inner.Protocol(), time.Since(start), err)
	return err
}

func (m *instrumented) Exists(ctx context.Context, path string) (bool, error) {
	start := time.Now()
	ok, err := m.inner.Exists(ctx, path)
	m.collector.RecordBackendOp("exists", m.inner.Protocol(), time.Since(start), err)
	return ok, err
}

func (m *instrumented) Delete(ctx context.Context, path string) error {
	start := time.Now()
	err := m.inner.Delete(ctx, path)
	m.collector.RecordBackendOp("delete", m.inner.Protocol(), time.Since(start), err)
	return err
}
