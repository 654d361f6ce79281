// Package fsbridge presents heterogeneous storage backends behind one
// filesystem-like interface.
//
// A URL such as "s3://bucket/data/x.bin" or "memory://tmp/scratch" is
// canonicalized into a (protocol, path) pair and resolved through an
// instance registry: equal protocol and options always yield the same
// shared backend handle. Files opened for reading flow through a
// configurable per-file cache (whole-object, readahead, or fixed blocks
// with LRU retention); files opened for writing buffer locally, stage to
// a temporary path, and are promoted to their final path on close.
//
// Transactions group staged writes. While one is open, every write-mode
// file joins it and promotion waits for Commit; Discard removes the
// staged artifacts and final paths are never touched.
//
//	fs, _ := fsbridge.New()
//	err := fs.WithTransaction(ctx, func(tx *txn.Transaction) error {
//	    return fs.WriteFile(ctx, "memory://data/x.bin", payload)
//	})
package fsbridge
