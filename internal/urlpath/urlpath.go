// Package urlpath canonicalizes backend URLs into a (protocol, path) pair.
//
// Canonicalization is a pure function: it never touches the backend and its
// only failure mode is rejecting empty or syntactically invalid input.
package urlpath

import (
	"path"
	"strings"

	fserrors "github.com/fsbridge/fsbridge/pkg/errors"
)

// DefaultProtocol is assumed when a URL carries no scheme prefix.
const DefaultProtocol = "file"

// Canonicalize splits raw into a protocol identifier and a normalized path.
//
// "s3://bucket/a/../b" yields ("s3", "bucket/b"); a bare "data//x.bin"
// yields ("file", "data/x.bin"). Normalization converts backslashes to
// forward slashes, resolves "." and ".." segments, collapses duplicate
// separators and strips trailing separators except for the root itself.
func Canonicalize(raw string) (protocol, normalized string, err error) {
	if raw == "" {
		return "", "", fserrors.E("canonicalize", raw, fserrors.ErrMalformedPath, nil)
	}

	protocol = DefaultProtocol
	rest := raw
	if i := strings.Index(raw, "://"); i >= 0 {
		protocol = strings.ToLower(raw[:i])
		rest = raw[i+len("://"):]
		if !validProtocol(protocol) {
			return "", "", fserrors.E("canonicalize", raw, fserrors.ErrMalformedPath, nil)
		}
	}

	normalized, ok := normalize(rest)
	if !ok {
		return "", "", fserrors.E("canonicalize", raw, fserrors.ErrMalformedPath, nil)
	}
	return protocol, normalized, nil
}

// Join canonicalizes base and appends elem to it, renormalizing the result.
func Join(base, elem string) string {
	if base == "" {
		out, _ := normalize(elem)
		return out
	}
	out, _ := normalize(base + "/" + elem)
	return out
}

// Parent returns the canonical parent of p, or "" when p has none.
func Parent(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == p {
		return ""
	}
	return dir
}

func normalize(p string) (string, bool) {
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.ContainsRune(p, '\x00') {
		return "", false
	}

	cleaned := path.Clean(p)

	// path.Clean turns an empty or fully-collapsed path into "."; a scheme
	// root such as "s3://" is a legitimate empty path.
	if cleaned == "." {
		cleaned = ""
	}

	// A path that still begins with ".." after cleaning points above the
	// backend's root and cannot name an object.
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return cleaned, true
}

func validProtocol(p string) bool {
	if p == "" {
		return false
	}
	for i, r := range p {
		switch {
		case r >= 'a' && r <= 'z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}
