// Package errors defines the error taxonomy shared across fsbridge.
//
// Callers classify failures with errors.Is against the exported sentinels;
// the structured Error type adds the operation and path without hiding the
// classification or the underlying cause.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Each core failure mode maps to exactly one of these.
var (
	// ErrMalformedPath reports empty or syntactically invalid path input.
	// Local, never retried.
	ErrMalformedPath = errors.New("fsbridge: malformed path")

	// ErrBackendIO reports a transport or backend failure surfaced to the
	// caller. The core does not retry; see pkg/retry for a wrapping policy.
	ErrBackendIO = errors.New("fsbridge: backend I/O failure")

	// ErrNotFound reports a missing object or path.
	ErrNotFound = errors.New("fsbridge: not found")

	// ErrTransactionAlreadyOpen reports an attempt to begin a transaction
	// while one is already open. Nesting is not supported.
	ErrTransactionAlreadyOpen = errors.New("fsbridge: transaction already open")

	// ErrTransactionResolved reports an operation on a transaction that has
	// already committed or been discarded.
	ErrTransactionResolved = errors.New("fsbridge: transaction already resolved")

	// ErrClosedFile reports use of a file after Close.
	ErrClosedFile = errors.New("fsbridge: file already closed")

	// ErrUnsupportedOperation reports an operation outside a file's mode
	// contract, e.g. a backward seek on a write-mode file.
	ErrUnsupportedOperation = errors.New("fsbridge: unsupported operation")
)

// Error is a structured error carrying the failed operation, the path it
// applied to, the sentinel classification and the underlying cause.
type Error struct {
	Op   string // operation, e.g. "read", "commit", "canonicalize"
	Path string // path or URL involved, may be empty
	Kind error  // one of the sentinels above
	Err  error  // underlying cause, may be nil
}

// E builds a classified error. Kind must be one of the package sentinels.
func E(op, path string, kind, cause error) *Error {
	return &Error{Op: op, Path: path, Kind: kind, Err: cause}
}

// IO is shorthand for a backend I/O failure during op on path.
func IO(op, path string, cause error) *Error {
	return E(op, path, ErrBackendIO, cause)
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches against the sentinel classification, so
// errors.Is(err, ErrBackendIO) holds for any wrapped I/O failure.
func (e *Error) Is(target error) bool { return errors.Is(e.Kind, target) }

// Promotion identifies one staged object and its final destination.
type Promotion struct {
	Staging string `json:"staging"`
	Final   string `json:"final"`
}

// PartialCommitError reports a commit in which at least one promotion
// succeeded before a later one failed. Promotions already applied are not
// rolled back; promotions after the failure were skipped.
type PartialCommitError struct {
	Succeeded []Promotion
	Failed    []Promotion
	Err       error // failure that stopped the commit
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("fsbridge: partial commit: %d promoted, %d failed or skipped: %v",
		len(e.Succeeded), len(e.Failed), e.Err)
}

func (e *PartialCommitError) Unwrap() error { return e.Err }
