// Package types defines the backend capability contract and the shared data
// model that every storage driver implements. The core never branches on a
// concrete driver type; everything it needs is expressed here.
package types

import (
	"context"
	"time"
)

// EntryType classifies a storage entry.
type EntryType string

const (
	TypeFile      EntryType = "file"
	TypeDirectory EntryType = "directory"
)

// ObjectInfo describes a single object or directory entry.
type ObjectInfo struct {
	// Path is the full normalized path of the entry within the backend.
	Path string `json:"path"`

	// Name is the last path component.
	Name string `json:"name"`

	Size    int64     `json:"size"`
	Type    EntryType `json:"type"`
	ModTime time.Time `json:"mtime,omitempty"`

	// ETag is an opaque backend version identifier, when available.
	ETag string `json:"etag,omitempty"`

	// Metadata carries backend-specific key/value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Backend is the minimal capability set a storage driver exposes.
//
// GetRange with length < 0 reads to the end of the object. Requests past the
// end of an object return the truncated remainder; drivers do not treat a
// short range read as an error.
//
// Move renames src to dst. Drivers back it with an atomic rename where the
// underlying store supports one; otherwise copy-then-delete, which leaves a
// brief window in which both paths exist.
type Backend interface {
	// Protocol returns the protocol identifier this driver serves ("file",
	// "memory", "s3", ...).
	Protocol() string

	List(ctx context.Context, path string) ([]ObjectInfo, error)
	Info(ctx context.Context, path string) (*ObjectInfo, error)
	GetRange(ctx context.Context, path string, offset, length int64) ([]byte, error)
	Put(ctx context.Context, path string, data []byte) error
	Move(ctx context.Context, src, dst string) error
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
}

// CacheStats reports read-cache effectiveness for one open file.
type CacheStats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Fetches   uint64  `json:"fetches"`
	Evictions uint64  `json:"evictions"`
	Retained  int     `json:"retained"`
	Bytes     int64   `json:"bytes"`
	HitRate   float64 `json:"hit_rate"`
}
