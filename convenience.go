package fsbridge

import (
	"bytes"
	"context"

	"github.com/fsbridge/fsbridge/internal/cache"
	"github.com/fsbridge/fsbridge/internal/urlpath"
	fserrors "github.com/fsbridge/fsbridge/pkg/errors"
	"github.com/fsbridge/fsbridge/pkg/types"
)

// ReadFile reads the whole object at url.
func (fs *FS) ReadFile(ctx context.Context, url string) ([]byte, error) {
	f, err := fs.Open(ctx, url, "rb", OpenWithCacheStrategy(cache.StrategyNone))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.ReadAll()
}

// WriteFile writes data to url as one object. The write is staged and
// promoted like any other: inside a transaction it becomes visible at
// commit, outside it is visible when WriteFile returns.
func (fs *FS) WriteFile(ctx context.Context, url string, data []byte) error {
	f, err := fs.Open(ctx, url, "wb")
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Cat returns the contents of every url, keyed by url.
func (fs *FS) Cat(ctx context.Context, urls ...string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(urls))
	for _, url := range urls {
		data, err := fs.ReadFile(ctx, url)
		if err != nil {
			return nil, err
		}
		out[url] = data
	}
	return out, nil
}

// Head returns the first n bytes of the object at url.
func (fs *FS) Head(ctx context.Context, url string, n int64) ([]byte, error) {
	handle, path, err := fs.resolve(url, nil)
	if err != nil {
		return nil, err
	}
	return handle.Backend.GetRange(ctx, path, 0, n)
}

// Tail returns the last n bytes of the object at url.
func (fs *FS) Tail(ctx context.Context, url string, n int64) ([]byte, error) {
	handle, path, err := fs.resolve(url, nil)
	if err != nil {
		return nil, err
	}
	info, err := handle.Backend.Info(ctx, path)
	if err != nil {
		return nil, err
	}
	offset := info.Size - n
	if offset < 0 {
		offset = 0
	}
	return handle.Backend.GetRange(ctx, path, offset, -1)
}

// Exists reports whether url names an object or a non-empty prefix.
func (fs *FS) Exists(ctx context.Context, url string) (bool, error) {
	handle, path, err := fs.resolve(url, nil)
	if err != nil {
		return false, err
	}
	return handle.Backend.Exists(ctx, path)
}

// Info returns metadata for the object or directory at url.
func (fs *FS) Info(ctx context.Context, url string) (*types.ObjectInfo, error) {
	handle, path, err := fs.resolve(url, nil)
	if err != nil {
		return nil, err
	}
	return handle.Backend.Info(ctx, path)
}

// Ls lists the entries directly under url. Listings are served from the
// handle's shared cache until a write invalidates them or they age out.
func (fs *FS) Ls(ctx context.Context, url string) ([]types.ObjectInfo, error) {
	handle, path, err := fs.resolve(url, nil)
	if err != nil {
		return nil, err
	}
	if listing, ok := handle.Listings.Get(path); ok {
		return listing, nil
	}
	listing, err := handle.Backend.List(ctx, path)
	if err != nil {
		return nil, err
	}
	handle.Listings.Put(path, listing)
	return listing, nil
}

// Walk visits every file under url depth-first, calling fn for each.
func (fs *FS) Walk(ctx context.Context, url string, fn func(info types.ObjectInfo) error) error {
	entries, err := fs.Ls(ctx, url)
	if err != nil {
		return err
	}
	protocol, _, err := urlProtocol(url)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Type == types.TypeDirectory {
			if err := fs.Walk(ctx, protocol+"://"+entry.Path, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}

// Du returns the total size in bytes of all files under url.
func (fs *FS) Du(ctx context.Context, url string) (int64, error) {
	var total int64
	err := fs.Walk(ctx, url, func(info types.ObjectInfo) error {
		total += info.Size
		return nil
	})
	return total, err
}

// Rm removes the object at url.
func (fs *FS) Rm(ctx context.Context, url string) error {
	handle, path, err := fs.resolve(url, nil)
	if err != nil {
		return err
	}
	if err := handle.Backend.Delete(ctx, path); err != nil {
		return err
	}
	handle.Listings.Invalidate(path)
	return nil
}

// Mv renames src to dst within one backend.
func (fs *FS) Mv(ctx context.Context, src, dst string) error {
	srcHandle, srcPath, err := fs.resolve(src, nil)
	if err != nil {
		return err
	}
	dstHandle, dstPath, err := fs.resolve(dst, nil)
	if err != nil {
		return err
	}
	if srcHandle.Token != dstHandle.Token {
		return fserrors.E("mv", src, fserrors.ErrUnsupportedOperation, nil)
	}
	if err := srcHandle.Backend.Move(ctx, srcPath, dstPath); err != nil {
		return err
	}
	srcHandle.Listings.Invalidate(srcPath)
	srcHandle.Listings.Invalidate(dstPath)
	return nil
}

// ReadBlock reads a byte block from url, optionally aligned to delimiter
// boundaries.
//
// Without a delimiter it is a plain ranged read. With one, the block
// starts after the first delimiter at or beyond offset (or at 0 when
// offset is 0) and ends after the first delimiter at or beyond
// offset+length, so adjacent blocks tile the object into whole records.
func (fs *FS) ReadBlock(ctx context.Context, url string, offset, length int64, delimiter []byte) ([]byte, error) {
	handle, path, err := fs.resolve(url, nil)
	if err != nil {
		return nil, err
	}
	if len(delimiter) == 0 {
		return handle.Backend.GetRange(ctx, path, offset, length)
	}

	info, err := handle.Backend.Info(ctx, path)
	if err != nil {
		return nil, err
	}
	size := info.Size

	start := offset
	if offset > 0 {
		start, err = seekDelimiter(ctx, handle.Backend, path, offset, size, delimiter)
		if err != nil {
			return nil, err
		}
	}
	if length < 0 {
		return handle.Backend.GetRange(ctx, path, start, -1)
	}
	end, err := seekDelimiter(ctx, handle.Backend, path, offset+length, size, delimiter)
	if err != nil {
		return nil, err
	}
	if end <= start {
		return []byte{}, nil
	}
	return handle.Backend.GetRange(ctx, path, start, end-start)
}

// seekDelimiter returns the position just past the first delimiter at or
// after pos, or the object size when none remains.
func seekDelimiter(ctx context.Context, b types.Backend, path string, pos, size int64, delimiter []byte) (int64, error) {
	const chunk = 64 * 1024
	if pos >= size {
		return size, nil
	}
	// Overlap successive chunks so a delimiter split across a boundary is
	// still found.
	overlap := int64(len(delimiter) - 1)
	for at := pos; at < size; {
		data, err := b.GetRange(ctx, path, at, chunk)
		if err != nil {
			return 0, err
		}
		if len(data) == 0 {
			return size, nil
		}
		if i := bytes.Index(data, delimiter); i >= 0 {
			return at + int64(i) + int64(len(delimiter)), nil
		}
		advance := int64(len(data)) - overlap
		if advance <= 0 {
			return size, nil
		}
		at += advance
	}
	return size, nil
}

func urlProtocol(url string) (protocol, path string, err error) {
	return urlpath.Canonicalize(url)
}
