package storage

import (
	"github.com/nwolfe/coredb/internal/storage/pager"
)

// Table is the tuple-level entry point onto a heap file (spec §4.3):
// everywhere the pager package deals in raw bytes, Table deals in
// *Tuple, encoding on the way in and decoding on the way out so the
// schema in entry.Desc is exercised on every insert and scan instead of
// orphaned beside the byte-oriented heap file API.
type Table struct {
	entry *TableEntry
}

// OpenTable wraps a catalog entry's heap file for tuple-level access.
// entry.Kind must be HeapTable.
func OpenTable(entry *TableEntry) *Table {
	return &Table{entry: entry}
}

// Insert encodes t under the table's schema, stores it in the backing
// heap file, and stamps t's RecordID with where it landed (spec §4.3
// "Insert tuple (tid, t)").
func (tbl *Table) Insert(tid pager.TxID, bp *pager.BufferPool, t *Tuple) error {
	data, err := t.Encode()
	if err != nil {
		return err
	}
	rid, err := tbl.entry.Heap.InsertTupleData(tid, bp, data)
	if err != nil {
		return err
	}
	t.SetRecordID(rid)
	return nil
}

// Delete removes the tuple at rid from the backing heap file.
func (tbl *Table) Delete(tid pager.TxID, bp *pager.BufferPool, rid RecordID) error {
	_, err := tbl.entry.Heap.DeleteTupleData(tid, bp, rid)
	return err
}

// Scan opens a tuple-level sequential scan of the table (spec §4.3
// "sequential scan").
func (tbl *Table) Scan(tid pager.TxID, bp *pager.BufferPool) (*TupleScan, error) {
	hs, err := tbl.entry.Heap.NewHeapScan(tid, bp)
	if err != nil {
		return nil, err
	}
	return &TupleScan{desc: tbl.entry.Desc, hs: hs}, nil
}

// TupleScan iterates a heap table's tuples, decoding each raw slot back
// into a *Tuple stamped with its RecordID.
type TupleScan struct {
	desc *TupleDesc
	hs   *pager.HeapScan
}

// Next returns the next tuple in the scan, or ok=false once exhausted.
func (s *TupleScan) Next() (t *Tuple, ok bool, err error) {
	data, rid, ok, err := s.hs.Next()
	if err != nil || !ok {
		return nil, ok, err
	}
	t, err = DecodeTuple(s.desc, data)
	if err != nil {
		return nil, false, err
	}
	t.SetRecordID(rid)
	return t, true, nil
}

// Rewind resets the scan to its initial position.
func (s *TupleScan) Rewind() { s.hs.Rewind() }

// BTreeIndex is the tuple-level entry point onto a single-column B+Tree
// secondary index (spec §4.5): its key is "declared by the indexed
// column", so every Insert/Delete here takes a whole *Tuple and
// extracts the one storage.Field that becomes the encoded B+Tree key,
// instead of asking callers to encode the column themselves.
type BTreeIndex struct {
	entry  *TableEntry
	keyIdx int
}

// OpenBTreeIndex wraps a catalog entry's B+Tree file for tuple-level
// access. entry.Kind must be BTreeTable.
func OpenBTreeIndex(entry *TableEntry) (*BTreeIndex, error) {
	idx, err := entry.Desc.FieldIndex(entry.KeyFieldName)
	if err != nil {
		return nil, err
	}
	return &BTreeIndex{entry: entry, keyIdx: idx}, nil
}

// Insert adds t to the index under the encoded value of its key
// column, pointing at rid (the tuple's location in the backing heap
// table this index is built over).
func (idx *BTreeIndex) Insert(tid pager.TxID, bp *pager.BufferPool, t *Tuple, rid RecordID) error {
	key := t.Field(idx.keyIdx).Encode()
	return idx.entry.BTree.Insert(tid, bp, key, rid)
}

// Delete removes the entry for t's key column pointing at rid.
func (idx *BTreeIndex) Delete(tid pager.TxID, bp *pager.BufferPool, t *Tuple, rid RecordID) error {
	key := t.Field(idx.keyIdx).Encode()
	return idx.entry.BTree.Delete(tid, bp, key, rid)
}

// Scan opens a full ascending scan of the index.
func (idx *BTreeIndex) Scan(tid pager.TxID, bp *pager.BufferPool) (*IndexScan, error) {
	it, err := idx.entry.BTree.NewIterator(tid, bp)
	if err != nil {
		return nil, err
	}
	return &IndexScan{keyType: idx.entry.Desc.FieldType(idx.keyIdx), it: it}, nil
}

// RangeScan opens a scan bounded to keys in [min, max) under the key
// column's field-type ordering (spec §4.5, §4.8); min/max are nil for an
// unbounded side of the range.
func (idx *BTreeIndex) RangeScan(tid pager.TxID, bp *pager.BufferPool, min, max Field) (*IndexScan, error) {
	var minKey, maxKey []byte
	if min != nil {
		minKey = min.Encode()
	}
	if max != nil {
		maxKey = max.Encode()
	}
	it, err := idx.entry.BTree.NewRangeIterator(tid, bp, minKey, maxKey)
	if err != nil {
		return nil, err
	}
	return &IndexScan{keyType: idx.entry.Desc.FieldType(idx.keyIdx), it: it}, nil
}

// IndexScan iterates a B+Tree index's entries, decoding each raw key
// back into the indexed column's Field type.
type IndexScan struct {
	keyType FieldType
	it      *pager.BTreeIterator
}

// Next returns the next (key, RecordID) pair, or ok=false once exhausted.
func (s *IndexScan) Next() (key Field, rid RecordID, ok bool, err error) {
	raw, rid, ok, err := s.it.Next()
	if err != nil || !ok {
		return nil, rid, ok, err
	}
	return DecodeField(s.keyType, raw), rid, true, nil
}
