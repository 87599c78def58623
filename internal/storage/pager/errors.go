package pager

import "errors"

// Sentinel errors for the page/file/buffer-pool layer (spec §7). This
// package wraps them with operation context via fmt.Errorf's %w verb
// where it adds context; the storage package returns them unchanged
// rather than introducing a parallel error type hierarchy.
var (
	ErrSchemaMismatch = errors.New("pager: tuple does not match page layout")
	ErrPageFull       = errors.New("pager: page has no empty slot")
	ErrSlotEmpty      = errors.New("pager: slot is empty or foreign")
	ErrBufferFull     = errors.New("pager: no clean page available for eviction")
	ErrIoFailure      = errors.New("pager: i/o failure")
)
