package storage

import (
	"path/filepath"
	"testing"

	"github.com/nwolfe/coredb/internal/storage/pager"
)

func mustIntTuple(t *testing.T, desc *TupleDesc, v int32) *Tuple {
	t.Helper()
	tup := NewTuple(desc)
	if err := tup.SetField(0, IntField{Value: v}); err != nil {
		t.Fatal(err)
	}
	return tup
}

func TestTableInsertAndScanRoundTrip(t *testing.T) {
	pool := pager.NewBufferPool(100)
	cat := NewCatalog(pool)
	desc := intDesc("id")
	path := filepath.Join(t.TempDir(), "people.tbl")

	entry, err := cat.AddTable(path, "people", desc, HeapTable, "")
	if err != nil {
		t.Fatal(err)
	}
	defer entry.Heap.Close()

	tbl := OpenTable(entry)
	const tid = pager.TxID(1)

	want := []int32{3, 1, 4}
	for _, v := range want {
		tup := mustIntTuple(t, desc, v)
		if tup.HasRecordID() {
			t.Fatal("a fresh tuple must not have a RecordID before Insert")
		}
		if err := tbl.Insert(tid, pool, tup); err != nil {
			t.Fatal(err)
		}
		if !tup.HasRecordID() {
			t.Error("Insert must stamp the tuple's RecordID")
		}
	}

	scan, err := tbl.Scan(tid, pool)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[int32]bool{}
	for {
		tup, ok, err := scan.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		if !tup.HasRecordID() {
			t.Error("a scanned tuple must carry the RecordID it was read from")
		}
		seen[tup.Field(0).(IntField).Value] = true
	}
	for _, v := range want {
		if !seen[v] {
			t.Errorf("scan missing inserted value %d", v)
		}
	}
}

func TestTableDelete(t *testing.T) {
	pool := pager.NewBufferPool(100)
	cat := NewCatalog(pool)
	desc := intDesc("id")
	path := filepath.Join(t.TempDir(), "people.tbl")

	entry, err := cat.AddTable(path, "people", desc, HeapTable, "")
	if err != nil {
		t.Fatal(err)
	}
	defer entry.Heap.Close()

	tbl := OpenTable(entry)
	const tid = pager.TxID(1)

	tup := mustIntTuple(t, desc, 7)
	if err := tbl.Insert(tid, pool, tup); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Delete(tid, pool, tup.RID); err != nil {
		t.Fatal(err)
	}

	scan, err := tbl.Scan(tid, pool)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := scan.Next(); err != nil || ok {
		t.Error("scan should find no tuples after the only one was deleted")
	}
}

func TestBTreeIndexInsertAndScanRoundTrip(t *testing.T) {
	pool := pager.NewBufferPool(100)
	cat := NewCatalog(pool)
	desc := intDesc("id")
	path := filepath.Join(t.TempDir(), "idx.tbl")

	entry, err := cat.AddTable(path, "idx", desc, BTreeTable, "id")
	if err != nil {
		t.Fatal(err)
	}
	defer entry.BTree.Close()

	idx, err := OpenBTreeIndex(entry)
	if err != nil {
		t.Fatal(err)
	}
	const tid = pager.TxID(1)

	for i, v := range []int32{30, 10, 20} {
		tup := mustIntTuple(t, desc, v)
		rid := pager.RecordID{PageID: pager.PageID{TableID: 99, PageNo: 0, Kind: pager.KindHeap}, Slot: uint32(i)}
		if err := idx.Insert(tid, pool, tup, rid); err != nil {
			t.Fatal(err)
		}
	}

	scan, err := idx.Scan(tid, pool)
	if err != nil {
		t.Fatal(err)
	}
	var got []int32
	for {
		key, _, ok, err := scan.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		got = append(got, key.(IntField).Value)
	}
	want := []int32{10, 20, 30}
	if len(got) != len(want) {
		t.Fatalf("scan returned %d entries, want %d", len(got), len(want))
	}
	for i, v := range want {
		if got[i] != v {
			t.Errorf("entry %d = %d, want %d (index scan must be key-ordered)", i, got[i], v)
		}
	}
}

func TestBTreeIndexDelete(t *testing.T) {
	pool := pager.NewBufferPool(100)
	cat := NewCatalog(pool)
	desc := intDesc("id")
	path := filepath.Join(t.TempDir(), "idx.tbl")

	entry, err := cat.AddTable(path, "idx", desc, BTreeTable, "id")
	if err != nil {
		t.Fatal(err)
	}
	defer entry.BTree.Close()

	idx, err := OpenBTreeIndex(entry)
	if err != nil {
		t.Fatal(err)
	}
	const tid = pager.TxID(1)

	tup := mustIntTuple(t, desc, 5)
	rid := pager.RecordID{PageID: pager.PageID{TableID: 99, PageNo: 0, Kind: pager.KindHeap}, Slot: 0}
	if err := idx.Insert(tid, pool, tup, rid); err != nil {
		t.Fatal(err)
	}
	if err := idx.Delete(tid, pool, tup, rid); err != nil {
		t.Fatal(err)
	}

	scan, err := idx.Scan(tid, pool)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, ok, err := scan.Next(); err != nil || ok {
		t.Error("scan should find no entries after the only one was deleted")
	}
}
