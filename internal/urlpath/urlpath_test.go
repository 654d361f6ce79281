package urlpath

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fserrors "github.com/fsbridge/fsbridge/pkg/errors"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		protocol string
		path     string
	}{
		{"scheme and path", "s3://bucket/data/x.bin", "s3", "bucket/data/x.bin"},
		{"no scheme defaults to file", "data/x.bin", "file", "data/x.bin"},
		{"absolute without scheme", "/var/data/x.bin", "file", "/var/data/x.bin"},
		{"uppercase scheme folds", "S3://bucket/key", "s3", "bucket/key"},
		{"backslash separators", `dir\sub\x.bin`, "file", "dir/sub/x.bin"},
		{"duplicate separators", "memory://a//b///c", "memory", "a/b/c"},
		{"dot segments", "s3://bucket/a/./b/../c", "s3", "bucket/a/c"},
		{"trailing separator", "memory://data/", "memory", "data"},
		{"scheme root", "s3://", "s3", ""},
		{"root path", "file:///", "file", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			protocol, path, err := Canonicalize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.protocol, protocol)
			assert.Equal(t, tt.path, path)
		})
	}
}

func TestCanonicalize_EquivalentSpellingsAgree(t *testing.T) {
	spellings := []string{
		"s3://bucket/a/b/x.bin",
		"s3://bucket//a/b/x.bin",
		"s3://bucket/a/./b/x.bin",
		"s3://bucket/a/c/../b/x.bin",
		`s3://bucket\a\b\x.bin`,
	}
	first := ""
	for _, raw := range spellings {
		_, path, err := Canonicalize(raw)
		require.NoError(t, err, raw)
		if first == "" {
			first = path
			continue
		}
		assert.Equal(t, first, path, raw)
	}
}

func TestCanonicalize_Malformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"://missing-scheme",
		"3abc://leading-digit",
		"sch eme://x",
		"file://a\x00b",
		"..",
		"../secret.txt",
		"file://../secret.txt",
		"s3://a/../../b",
	} {
		_, _, err := Canonicalize(raw)
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, fserrors.ErrMalformedPath), raw)
	}
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a/b/c", Join("a/b", "c"))
	assert.Equal(t, "a/c", Join("a/b", "../c"))
	assert.Equal(t, "c", Join("", "c"))
}

func TestParent(t *testing.T) {
	assert.Equal(t, "a/b", Parent("a/b/c"))
	assert.Equal(t, "/", Parent("/a"))
	assert.Equal(t, "", Parent("a"))
	assert.Equal(t, "", Parent("/"))
}
