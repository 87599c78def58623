package pager

import (
	"fmt"
	"sync"
)

// PageSource is the per-table backing store a BufferPool reads misses
// from and flushes dirty pages to. HeapFile and BTreeFile both satisfy
// it, dispatching on PageID.Kind internally.
type PageSource interface {
	ReadPage(id PageID) (Page, error)
	WritePage(p Page) error
}

// BufferPool is the single process-wide cache of pages mediating every
// access to every table file (spec §4.7). It enforces a NO-STEAL
// eviction policy: a dirty page belonging to an uncommitted transaction
// is never written to disk to make room for another page. Eviction
// picks the oldest clean page in load order (the teacher's PageBufferPool
// used the same FIFO-over-a-map-plus-order-slice shape for its
// table-level cache; this one operates one page at a time instead).
type BufferPool struct {
	mu       sync.Mutex
	capacity int
	cache    map[PageID]Page
	order    []PageID // load order, oldest first, for FIFO eviction
	sources  map[uint64]PageSource
	locks    *LockManager
}

// NewBufferPool creates a pool that holds at most capacity pages.
func NewBufferPool(capacity int) *BufferPool {
	return &BufferPool{
		capacity: capacity,
		cache:    make(map[PageID]Page),
		sources:  make(map[uint64]PageSource),
		locks:    NewLockManager(),
	}
}

// RegisterTable associates a table id with the PageSource (HeapFile or
// BTreeFile) that loads and flushes its pages.
func (bp *BufferPool) RegisterTable(tableID uint64, src PageSource) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.sources[tableID] = src
}

// Locks exposes the pool's lock manager, for callers that need to
// acquire or query a lock without also fetching the page.
func (bp *BufferPool) Locks() *LockManager { return bp.locks }

// GetPage fetches the page identified by pid, blocking until tid holds
// perm on it, loading it from its table's PageSource on a cache miss
// and evicting a clean page first if the pool is full.
func (bp *BufferPool) GetPage(tid TxID, pid PageID, perm Permission) (Page, error) {
	bp.locks.Acquire(tid, pid, perm)

	bp.mu.Lock()
	defer bp.mu.Unlock()

	if p, ok := bp.cache[pid]; ok {
		return p, nil
	}

	if len(bp.cache) >= bp.capacity {
		if err := bp.evictOneLocked(); err != nil {
			return nil, err
		}
	}

	src, ok := bp.sources[pid.TableID]
	if !ok {
		return nil, fmt.Errorf("buffer pool: table %d has no registered source", pid.TableID)
	}
	p, err := src.ReadPage(pid)
	if err != nil {
		return nil, err
	}
	p.SetBeforeImage(append([]byte(nil), p.Encode()...))
	bp.cache[pid] = p
	bp.order = append(bp.order, pid)
	return p, nil
}

// evictOneLocked removes the oldest clean page from the pool. Callers
// must hold bp.mu. Returns ErrBufferFull if every cached page is dirty.
func (bp *BufferPool) evictOneLocked() error {
	for i, pid := range bp.order {
		p := bp.cache[pid]
		if p == nil || p.IsDirty() {
			continue
		}
		delete(bp.cache, pid)
		bp.order = append(bp.order[:i], bp.order[i+1:]...)
		return nil
	}
	return ErrBufferFull
}

// DiscardPage drops pid from the cache without flushing it, used when a
// page is freed back to a B+Tree file's empty list.
func (bp *BufferPool) DiscardPage(pid PageID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.removeFromOrderLocked(pid)
	delete(bp.cache, pid)
}

func (bp *BufferPool) removeFromOrderLocked(pid PageID) {
	for i, q := range bp.order {
		if q == pid {
			bp.order = append(bp.order[:i], bp.order[i+1:]...)
			return
		}
	}
}

// FlushAllPages writes every dirty cached page back to its source and
// marks it clean, refreshing its before-image to the now-durable bytes.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, pid := range bp.order {
		p := bp.cache[pid]
		if p != nil && p.IsDirty() {
			if err := bp.flushLocked(pid, p); err != nil {
				return err
			}
		}
	}
	return nil
}

// flushPagesLocked writes every dirty page owned by tid.
func (bp *BufferPool) flushPagesLocked(tid TxID) error {
	for _, pid := range bp.order {
		p := bp.cache[pid]
		if p != nil && p.IsDirty() && p.Owner() == tid {
			if err := bp.flushLocked(pid, p); err != nil {
				return err
			}
		}
	}
	return nil
}

func (bp *BufferPool) flushLocked(pid PageID, p Page) error {
	src, ok := bp.sources[pid.TableID]
	if !ok {
		return fmt.Errorf("buffer pool: table %d has no registered source", pid.TableID)
	}
	if err := src.WritePage(p); err != nil {
		return err
	}
	p.SetBeforeImage(append([]byte(nil), p.Encode()...))
	p.MarkClean()
	return nil
}

// FlushPages flushes every page dirtied by tid, without releasing locks
// or completing the transaction.
func (bp *BufferPool) FlushPages(tid TxID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.flushPagesLocked(tid)
}

// TransactionComplete ends tid: on commit its dirty pages are flushed to
// disk; on abort they are rolled back to their before-image in place.
// Either way every lock tid holds is released (spec §4.6, §4.7).
func (bp *BufferPool) TransactionComplete(tid TxID, commit bool) error {
	bp.mu.Lock()
	if commit {
		if err := bp.flushPagesLocked(tid); err != nil {
			bp.mu.Unlock()
			return err
		}
	} else {
		for _, pid := range bp.order {
			p := bp.cache[pid]
			if p != nil && p.IsDirty() && p.Owner() == tid {
				p.Overwrite(p.BeforeImage())
				p.MarkClean()
				if src, ok := bp.sources[pid.TableID]; ok {
					if err := src.WritePage(p); err != nil {
						bp.mu.Unlock()
						return err
					}
				}
			}
		}
	}
	bp.mu.Unlock()

	bp.locks.ReleaseAll(tid)
	return nil
}
