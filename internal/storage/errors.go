package storage

import "errors"

// Sentinel errors raised above the page/file layer (spec §7). Page-level
// failures (pager.ErrPageFull, pager.ErrSchemaMismatch, ...) propagate
// unwrapped or wrapped with %w; they are never translated into these.
var (
	ErrNoSuchField        = errors.New("storage: no such field")
	ErrNoSuchTable        = errors.New("storage: no such table")
	ErrTransactionAborted = errors.New("storage: transaction aborted")
	ErrSchemaMismatch     = errors.New("storage: tuple does not match schema")
)
