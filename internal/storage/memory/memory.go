// Package memory implements an in-process backend driver. It backs the
// "memory" protocol and most of the test suite: every operation, including
// Move, is atomic under one lock.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	fserrors "github.com/fsbridge/fsbridge/pkg/errors"
	"github.com/fsbridge/fsbridge/pkg/types"
)

// Backend is a map-backed object store.
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

type object struct {
	data    []byte
	modTime time.Time
}

// New creates an empty store.
func New() *Backend {
	return &Backend{objects: make(map[string]object)}
}

func (b *Backend) Protocol() string { return "memory" }

// GetRange returns length bytes at offset, truncated at end-of-object.
// length < 0 reads to the end.
func (b *Backend) GetRange(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[path]
	if !ok {
		return nil, fserrors.E("get_range", path, fserrors.ErrNotFound, nil)
	}
	size := int64(len(obj.data))
	if offset < 0 || offset >= size {
		return nil, nil
	}
	end := size
	if length >= 0 && offset+length < size {
		end = offset + length
	}
	out := make([]byte, end-offset)
	copy(out, obj.data[offset:end])
	return out, nil
}

func (b *Backend) Put(ctx context.Context, path string, data []byte) error {
	stored := make([]byte, len(data))
	copy(stored, data)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[path] = object{data: stored, modTime: time.Now()}
	return nil
}

// Move renames src to dst atomically.
func (b *Backend) Move(ctx context.Context, src, dst string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[src]
	if !ok {
		return fserrors.E("move", src, fserrors.ErrNotFound, nil)
	}
	delete(b.objects, src)
	obj.modTime = time.Now()
	b.objects[dst] = obj
	return nil
}

func (b *Backend) Exists(ctx context.Context, path string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, ok := b.objects[path]; ok {
		return true, nil
	}
	return b.hasPrefix(path), nil
}

func (b *Backend) Delete(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[path]; !ok {
		return fserrors.E("delete", path, fserrors.ErrNotFound, nil)
	}
	delete(b.objects, path)
	return nil
}

func (b *Backend) Info(ctx context.Context, path string) (*types.ObjectInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if obj, ok := b.objects[path]; ok {
		return &types.ObjectInfo{
			Path:    path,
			Name:    baseName(path),
			Size:    int64(len(obj.data)),
			Type:    types.TypeFile,
			ModTime: obj.modTime,
		}, nil
	}
	if b.hasPrefix(path) {
		return &types.ObjectInfo{Path: path, Name: baseName(path), Type: types.TypeDirectory}, nil
	}
	return nil, fserrors.E("info", path, fserrors.ErrNotFound, nil)
}

// List returns the entries directly under path. Directories exist only
// implicitly, as object key prefixes.
func (b *Backend) List(ctx context.Context, path string) ([]types.ObjectInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	prefix := ""
	if path != "" && path != "/" {
		prefix = path + "/"
	}

	files := make([]types.ObjectInfo, 0)
	dirs := make(map[string]struct{})
	for key, obj := range b.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		if rest == "" {
			continue
		}
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			dirs[rest[:i]] = struct{}{}
			continue
		}
		files = append(files, types.ObjectInfo{
			Path:    key,
			Name:    rest,
			Size:    int64(len(obj.data)),
			Type:    types.TypeFile,
			ModTime: obj.modTime,
		})
	}
	if len(files) == 0 && len(dirs) == 0 && prefix != "" {
		if _, ok := b.objects[path]; !ok {
			return nil, fserrors.E("list", path, fserrors.ErrNotFound, nil)
		}
		// Listing a file yields the file itself.
		obj := b.objects[path]
		return []types.ObjectInfo{{
			Path: path, Name: baseName(path), Size: int64(len(obj.data)),
			Type: types.TypeFile, ModTime: obj.modTime,
		}}, nil
	}

	entries := files
	for d := range dirs {
		entries = append(entries, types.ObjectInfo{
			Path: prefix + d,
			Name: d,
			Type: types.TypeDirectory,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// Len reports the number of stored objects.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

func (b *Backend) hasPrefix(path string) bool {
	if path == "" || path == "/" {
		return len(b.objects) > 0
	}
	prefix := path + "/"
	for key := range b.objects {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
