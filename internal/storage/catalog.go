package storage

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/nwolfe/coredb/internal/storage/pager"
)

// TableKind distinguishes a table backed by a heap file from one backed
// by a single-index B+Tree file (spec §3).
type TableKind int

const (
	HeapTable TableKind = iota
	BTreeTable
)

// TableEntry is one catalog record: a table's name, schema, storage
// kind, and the live file handle the rest of the system reads and
// writes it through (spec §4.1: "registry mapping table-id to (file,
// primary-key name, display name)"). Exactly one of Heap/BTree is set,
// matching Kind.
type TableEntry struct {
	ID   uint64
	Name string
	Path string
	Desc *TupleDesc
	Kind TableKind

	// KeyFieldName is the indexed column's name, meaningful only for
	// BTreeTable entries.
	KeyFieldName string

	Heap  *pager.HeapFile
	BTree *pager.BTreeFile
}

// Catalog is the process-wide, thread-safe registry mapping table ids
// and names to their TableEntry (spec §3). A table's id is derived from
// its backing file's absolute path, so the same file always resolves to
// the same id across process restarts. Every table it opens is
// registered with pool, so a looked-up entry's file handle can be read
// and written through the same buffer pool as any other page.
type Catalog struct {
	mu     sync.RWMutex
	byID   map[uint64]*TableEntry
	byName map[string]uint64
	pool   *pager.BufferPool
}

// NewCatalog returns an empty catalog whose tables are opened against pool.
func NewCatalog(pool *pager.BufferPool) *Catalog {
	return &Catalog{
		byID:   make(map[uint64]*TableEntry),
		byName: make(map[string]uint64),
		pool:   pool,
	}
}

// TableID derives a table's id by hashing its backing file's absolute
// path with SHA-1 (via uuid.NewSHA1, namespaced under uuid.Nil since
// there is no enclosing namespace), truncated to 64 bits. The table's
// identity is therefore fully determined by where it lives on disk.
func TableID(path string) (uint64, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("storage: resolve table path %q: %w", path, err)
	}
	id := uuid.NewSHA1(uuid.Nil, []byte(abs))
	b := id[:]
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

// AddTable opens path as a table's backing file, registers it with the
// catalog's buffer pool, and records it under id and name, replacing
// any existing entry for the same id or the same name: re-adding the
// same backing file overwrites its entry in place, and adding a
// different file under a name already in use repoints that name at the
// new file (spec §3). keyFieldName names the indexed column and is
// required (and must resolve via desc.FieldIndex) for a BTreeTable; it
// is ignored for a HeapTable.
func (c *Catalog) AddTable(path, name string, desc *TupleDesc, kind TableKind, keyFieldName string) (*TableEntry, error) {
	id, err := TableID(path)
	if err != nil {
		return nil, err
	}

	entry := &TableEntry{ID: id, Name: name, Path: path, Desc: desc, Kind: kind}

	switch kind {
	case HeapTable:
		hf, err := pager.OpenHeapFile(path, id, desc.Width())
		if err != nil {
			return nil, err
		}
		entry.Heap = hf
	case BTreeTable:
		idx, err := desc.FieldIndex(keyFieldName)
		if err != nil {
			return nil, err
		}
		entry.KeyFieldName = keyFieldName
		bf, err := pager.OpenBTreeFile(path, id, desc.FieldType(idx).Width())
		if err != nil {
			return nil, err
		}
		entry.BTree = bf
	default:
		return nil, fmt.Errorf("storage: unknown table kind %d", kind)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if oldID, ok := c.byName[name]; ok && oldID != id {
		delete(c.byID, oldID)
	}
	c.byID[id] = entry
	c.byName[name] = id
	if entry.Heap != nil {
		c.pool.RegisterTable(id, entry.Heap)
	} else {
		c.pool.RegisterTable(id, entry.BTree)
	}
	return entry, nil
}

// LookupByID returns the table registered under id.
func (c *Catalog) LookupByID(id uint64) (*TableEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("storage: %w: id %d", ErrNoSuchTable, id)
	}
	return e, nil
}

// LookupByName returns the table currently registered under name.
func (c *Catalog) LookupByName(name string) (*TableEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("storage: %w: %q", ErrNoSuchTable, name)
	}
	return c.byID[id], nil
}

// TableIDs returns every registered table id, in no particular order.
func (c *Catalog) TableIDs() []uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]uint64, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	return ids
}
