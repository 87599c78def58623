package storage

import (
	"path/filepath"
	"testing"

	"github.com/nwolfe/coredb/internal/storage/pager"
)

func TestTableIDDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.tbl")
	a, err := TableID(path)
	if err != nil {
		t.Fatal(err)
	}
	b, err := TableID(path)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("TableID must be deterministic for the same path")
	}

	other, err := TableID(filepath.Join(dir, "other.tbl"))
	if err != nil {
		t.Fatal(err)
	}
	if a == other {
		t.Error("TableID must differ across distinct paths")
	}
}

func TestCatalogAddAndLookup(t *testing.T) {
	c := NewCatalog(pager.NewBufferPool(10))
	desc := intDesc("id")
	path := filepath.Join(t.TempDir(), "people.tbl")

	entry, err := c.AddTable(path, "people", desc, HeapTable, "")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Heap == nil {
		t.Fatal("AddTable must open and hold the table's backing heap file")
	}
	defer entry.Heap.Close()

	byID, err := c.LookupByID(entry.ID)
	if err != nil {
		t.Fatal(err)
	}
	if byID.Name != "people" {
		t.Errorf("LookupByID name = %q, want people", byID.Name)
	}
	if byID.Heap != entry.Heap {
		t.Error("LookupByID must return the same open file handle AddTable recorded")
	}

	byName, err := c.LookupByName("people")
	if err != nil {
		t.Fatal(err)
	}
	if byName.ID != entry.ID {
		t.Error("LookupByName returned a different table id than AddTable")
	}
}

func TestCatalogAddBTreeTable(t *testing.T) {
	c := NewCatalog(pager.NewBufferPool(10))
	desc := intDesc("id")
	path := filepath.Join(t.TempDir(), "idx.tbl")

	entry, err := c.AddTable(path, "idx", desc, BTreeTable, "id")
	if err != nil {
		t.Fatal(err)
	}
	defer entry.BTree.Close()
	if entry.BTree == nil {
		t.Fatal("AddTable must open and hold the table's backing B+Tree file")
	}
	if entry.KeyFieldName != "id" {
		t.Errorf("KeyFieldName = %q, want id", entry.KeyFieldName)
	}
}

func TestCatalogAddBTreeTableUnknownKeyField(t *testing.T) {
	c := NewCatalog(pager.NewBufferPool(10))
	desc := intDesc("id")
	path := filepath.Join(t.TempDir(), "idx.tbl")

	if _, err := c.AddTable(path, "idx", desc, BTreeTable, "nope"); err == nil {
		t.Fatal("expected an error for a key field name absent from the schema")
	}
}

func TestCatalogLookupMissing(t *testing.T) {
	c := NewCatalog(pager.NewBufferPool(10))
	if _, err := c.LookupByName("nope"); err == nil {
		t.Fatal("expected ErrNoSuchTable for missing name")
	}
	if _, err := c.LookupByID(12345); err == nil {
		t.Fatal("expected ErrNoSuchTable for missing id")
	}
}

func TestCatalogReplaceSameFile(t *testing.T) {
	c := NewCatalog(pager.NewBufferPool(10))
	path := filepath.Join(t.TempDir(), "t.tbl")
	desc := intDesc("id")

	first, err := c.AddTable(path, "t", desc, HeapTable, "")
	if err != nil {
		t.Fatal(err)
	}
	defer first.Heap.Close()
	second, err := c.AddTable(path, "t", desc, HeapTable, "")
	if err != nil {
		t.Fatal(err)
	}
	defer second.Heap.Close()
	if first.ID != second.ID {
		t.Fatal("re-adding the same backing file must keep the same id")
	}
	got, err := c.LookupByID(first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Heap != second.Heap {
		t.Error("AddTable should overwrite the entry in place with the newly opened handle")
	}
}

func TestCatalogRenamePointsToNewFile(t *testing.T) {
	c := NewCatalog(pager.NewBufferPool(10))
	desc := intDesc("id")
	pathA := filepath.Join(t.TempDir(), "a.tbl")
	pathB := filepath.Join(t.TempDir(), "b.tbl")

	entryA, err := c.AddTable(pathA, "shared", desc, HeapTable, "")
	if err != nil {
		t.Fatal(err)
	}
	defer entryA.Heap.Close()
	entryB, err := c.AddTable(pathB, "shared", desc, HeapTable, "")
	if err != nil {
		t.Fatal(err)
	}
	defer entryB.Heap.Close()

	got, err := c.LookupByName("shared")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != entryB.ID {
		t.Error("re-using a name with a different file must repoint the name to the new id")
	}
	if _, err := c.LookupByID(entryA.ID); err == nil {
		t.Error("the old id should no longer be reachable once its name is reassigned")
	}
}

func TestCatalogTableIDs(t *testing.T) {
	c := NewCatalog(pager.NewBufferPool(10))
	desc := intDesc("id")
	dir := t.TempDir()
	want := map[uint64]bool{}
	for _, name := range []string{"a", "b", "c"} {
		e, err := c.AddTable(filepath.Join(dir, name+".tbl"), name, desc, HeapTable, "")
		if err != nil {
			t.Fatal(err)
		}
		defer e.Heap.Close()
		want[e.ID] = true
	}
	ids := c.TableIDs()
	if len(ids) != len(want) {
		t.Fatalf("TableIDs() returned %d ids, want %d", len(ids), len(want))
	}
	for _, id := range ids {
		if !want[id] {
			t.Errorf("unexpected table id %d", id)
		}
	}
}
