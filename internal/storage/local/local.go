// Package local implements the disk-backed driver behind the "file"
// protocol. Paths are mapped onto the host filesystem, optionally rooted
// under a base directory via the "root" option.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	fserrors "github.com/fsbridge/fsbridge/pkg/errors"
	"github.com/fsbridge/fsbridge/pkg/types"
)

// Backend serves objects from the local filesystem.
type Backend struct {
	root string
}

// New creates a local backend. options["root"], when set, anchors all
// paths under that directory.
func New(options map[string]string) (*Backend, error) {
	root := options["root"]
	if root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fserrors.IO("new", root, err)
		}
		root = abs
	}
	return &Backend{root: root}, nil
}

func (b *Backend) Protocol() string { return "file" }

// resolve maps a normalized slash path onto the host filesystem. With a
// root configured, paths that would land outside it are rejected.
func (b *Backend) resolve(path string) (string, error) {
	native := filepath.FromSlash(path)
	if b.root == "" {
		return native, nil
	}
	target := filepath.Join(b.root, native)
	if target != b.root && !strings.HasPrefix(target, b.root+string(filepath.Separator)) {
		return "", fserrors.E("resolve", path, fserrors.ErrMalformedPath,
			fmt.Errorf("path escapes root"))
	}
	return target, nil
}

func (b *Backend) GetRange(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		return nil, classify("get_range", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fserrors.IO("get_range", path, err)
	}
	size := st.Size()
	if offset < 0 || offset >= size {
		return nil, nil
	}
	end := size
	if length >= 0 && offset+length < size {
		end = offset + length
	}
	out := make([]byte, end-offset)
	if _, err := f.ReadAt(out, offset); err != nil && err != io.EOF {
		return nil, fserrors.IO("get_range", path, err)
	}
	return out, nil
}

func (b *Backend) Put(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := b.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fserrors.IO("put", path, err)
	}
	// Staged objects hold caller data not yet promoted; keep them private.
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return fserrors.IO("put", path, err)
	}
	return nil
}

// Move renames src to dst. os.Rename is atomic within a filesystem.
func (b *Backend) Move(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	source, err := b.resolve(src)
	if err != nil {
		return err
	}
	target, err := b.resolve(dst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fserrors.IO("move", dst, err)
	}
	if err := os.Rename(source, target); err != nil {
		return classify("move", src, err)
	}
	return nil
}

func (b *Backend) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	target, err := b.resolve(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fserrors.IO("exists", path, err)
	}
	return true, nil
}

func (b *Backend) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := b.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil {
		return classify("delete", path, err)
	}
	return nil
}

func (b *Backend) Info(ctx context.Context, path string) (*types.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(target)
	if err != nil {
		return nil, classify("info", path, err)
	}
	return b.infoFromStat(path, st), nil
}

func (b *Backend) List(ctx context.Context, path string) ([]types.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, classify("list", path, err)
	}
	infos := make([]types.ObjectInfo, 0, len(entries))
	for _, entry := range entries {
		st, err := entry.Info()
		if err != nil {
			continue
		}
		child := entry.Name()
		if path != "" && path != "/" {
			child = strings.TrimSuffix(path, "/") + "/" + entry.Name()
		} else if path == "/" {
			child = "/" + entry.Name()
		}
		infos = append(infos, *b.infoFromStat(child, st))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

func (b *Backend) infoFromStat(path string, st os.FileInfo) *types.ObjectInfo {
	info := &types.ObjectInfo{
		Path:    path,
		Name:    st.Name(),
		Size:    st.Size(),
		Type:    types.TypeFile,
		ModTime: st.ModTime(),
	}
	if st.IsDir() {
		info.Type = types.TypeDirectory
		info.Size = 0
	}
	return info
}

func classify(op, path string, err error) error {
	if os.IsNotExist(err) {
		return fserrors.E(op, path, fserrors.ErrNotFound, err)
	}
	return fserrors.IO(op, path, err)
}
