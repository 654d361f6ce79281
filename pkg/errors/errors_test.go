package errors

import (
	stderr "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_KindMatching(t *testing.T) {
	err := E("open", "data/x.bin", ErrNotFound, nil)

	assert.True(t, stderr.Is(err, ErrNotFound))
	assert.False(t, stderr.Is(err, ErrBackendIO))
	assert.Contains(t, err.Error(), "open")
	assert.Contains(t, err.Error(), "data/x.bin")
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := IO("get_range", "data/x.bin", cause)

	assert.True(t, stderr.Is(err, ErrBackendIO))
	assert.True(t, stderr.Is(err, cause))

	var e *Error
	require.True(t, stderr.As(err, &e))
	assert.Equal(t, "get_range", e.Op)
	assert.Equal(t, "data/x.bin", e.Path)
}

func TestPartialCommitError(t *testing.T) {
	cause := fmt.Errorf("move rejected")
	err := &PartialCommitError{
		Succeeded: []Promotion{{Staging: "a.staging-1", Final: "a"}},
		Failed: []Promotion{
			{Staging: "b.staging-2", Final: "b"},
			{Staging: "c.staging-3", Final: "c"},
		},
		Err: cause,
	}

	assert.True(t, stderr.Is(err, cause))
	assert.Contains(t, err.Error(), "1 promoted")
	assert.Contains(t, err.Error(), "2 failed")

	var pce *PartialCommitError
	require.True(t, stderr.As(error(err), &pce))
	assert.Len(t, pce.Succeeded, 1)
	assert.Len(t, pce.Failed, 2)
}
