package pager

import (
	"fmt"
	"io"
	"os"
)

// HeapFile is the concatenation of heap pages numbered from 0 (spec
// §4.3). Access methods never touch it directly in production use —
// they go through a BufferPool — but the file itself owns the raw
// read/write/append operations the pool delegates to.
type HeapFile struct {
	tableID    uint64
	path       string
	f          *os.File
	tupleWidth int
}

// OpenHeapFile opens (creating if necessary) the backing file for a
// heap table.
func OpenHeapFile(path string, tableID uint64, tupleWidth int) (*HeapFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open heap file %q: %w: %v", path, ErrIoFailure, err)
	}
	return &HeapFile{tableID: tableID, path: path, f: f, tupleWidth: tupleWidth}, nil
}

func (hf *HeapFile) TableID() uint64 { return hf.tableID }
func (hf *HeapFile) Path() string    { return hf.path }

// NumPages returns ceil(file_length / PageSize()).
func (hf *HeapFile) NumPages() (int, error) {
	info, err := hf.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat heap file %q: %w: %v", hf.path, ErrIoFailure, err)
	}
	ps := int64(PageSize())
	return int(ceilDiv(info.Size(), ps)), nil
}

// GetNumTuplesPerPage reports the heap page slot capacity for this
// file's fixed tuple width (used by the heap-insert page-count test,
// mirroring the GoDB lab's own exposed getNumTuplesPerPage query).
func (hf *HeapFile) GetNumTuplesPerPage() int {
	return HeapPageCapacity(PageSize(), hf.tupleWidth)
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// readHeapPage reads exactly PageSize() bytes at pageNo*PageSize() and
// decodes it as a heap page. A file shorter than the required range is
// treated as a zero-filled (all-empty) page, per spec §4.3.
func (hf *HeapFile) readHeapPage(pageNo uint32) (*HeapPage, error) {
	ps := PageSize()
	buf := make([]byte, ps)
	off := int64(pageNo) * int64(ps)
	n, err := hf.f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read heap page %d: %w: %v", pageNo, ErrIoFailure, err)
	}
	_ = n // short/absent reads leave the rest of buf zeroed, which is the empty page
	id := PageID{TableID: hf.tableID, PageNo: pageNo, Kind: KindHeap}
	return DecodeHeapPage(id, hf.tupleWidth, buf), nil
}

// ReadPage implements PageSource for the buffer pool.
func (hf *HeapFile) ReadPage(id PageID) (Page, error) { return hf.readHeapPage(id.PageNo) }

// WritePage implements PageSource for the buffer pool; it also overwrites
// the page's byte range directly, used for the immediate-extend step of
// InsertTupleData.
func (hf *HeapFile) WritePage(p Page) error {
	hp, ok := p.(*HeapPage)
	if !ok {
		return fmt.Errorf("heap file %q: %w", hf.path, ErrSchemaMismatch)
	}
	ps := PageSize()
	off := int64(hp.ID().PageNo) * int64(ps)
	if _, err := hf.f.WriteAt(hp.Encode(), off); err != nil {
		return fmt.Errorf("write heap page %d: %w: %v", hp.ID().PageNo, ErrIoFailure, err)
	}
	return nil
}

// Close closes the underlying file.
func (hf *HeapFile) Close() error { return hf.f.Close() }

// InsertTupleData stores data (exactly tupleWidth bytes) in the first
// page with a free slot, scanning existing pages before creating a new
// one. A newly created page is written to disk immediately so the
// file's page count advances right away, then re-fetched through the
// buffer pool for the actual mutation — the dirty page itself still
// flows through normal NO-STEAL commit/abort handling (spec §4.3, §4.7).
func (hf *HeapFile) InsertTupleData(tid TxID, bp *BufferPool, data []byte) (RecordID, error) {
	n, err := hf.NumPages()
	if err != nil {
		return RecordID{}, err
	}
	for pageNo := 0; pageNo < n; pageNo++ {
		pid := PageID{TableID: hf.tableID, PageNo: uint32(pageNo), Kind: KindHeap}
		page, err := bp.GetPage(tid, pid, ReadWrite)
		if err != nil {
			return RecordID{}, err
		}
		hp := page.(*HeapPage)
		if hp.NumUsedSlots() < hp.Capacity() {
			slot, err := hp.InsertRaw(data)
			if err != nil {
				return RecordID{}, err
			}
			hp.MarkDirty(tid)
			return RecordID{PageID: hp.ID(), Slot: uint32(slot)}, nil
		}
	}

	newID := PageID{TableID: hf.tableID, PageNo: uint32(n), Kind: KindHeap}
	if err := hf.WritePage(NewHeapPage(newID, hf.tupleWidth)); err != nil {
		return RecordID{}, err
	}
	page, err := bp.GetPage(tid, newID, ReadWrite)
	if err != nil {
		return RecordID{}, err
	}
	hp := page.(*HeapPage)
	slot, err := hp.InsertRaw(data)
	if err != nil {
		return RecordID{}, err
	}
	hp.MarkDirty(tid)
	return RecordID{PageID: hp.ID(), Slot: uint32(slot)}, nil
}

// DeleteTupleData removes the tuple identified by rid, returning the
// single dirtied page.
func (hf *HeapFile) DeleteTupleData(tid TxID, bp *BufferPool, rid RecordID) (Page, error) {
	page, err := bp.GetPage(tid, rid.PageID, ReadWrite)
	if err != nil {
		return nil, err
	}
	hp := page.(*HeapPage)
	if err := hp.DeleteRaw(int(rid.Slot)); err != nil {
		return nil, err
	}
	hp.MarkDirty(tid)
	return hp, nil
}

// RecordID locates a tuple by page and slot.
type RecordID struct {
	PageID PageID
	Slot   uint32
}

// HeapScan iterates every occupied slot of a heap file in page, then
// slot, order, fetching each page through the buffer pool under a
// shared lock (spec §4.3 "sequential scan").
type HeapScan struct {
	hf       *HeapFile
	bp       *BufferPool
	tid      TxID
	pageNo   int
	numPages int
	slot     int
	curPage  *HeapPage
}

// NewHeapScan opens a scan positioned before the first tuple.
func (hf *HeapFile) NewHeapScan(tid TxID, bp *BufferPool) (*HeapScan, error) {
	n, err := hf.NumPages()
	if err != nil {
		return nil, err
	}
	return &HeapScan{hf: hf, bp: bp, tid: tid, pageNo: 0, numPages: n, slot: 0}, nil
}

// Next returns the next occupied (data, RecordID) pair, or ok=false
// once the file is exhausted.
func (s *HeapScan) Next() (data []byte, rid RecordID, ok bool, err error) {
	for {
		if s.curPage == nil {
			if s.pageNo >= s.numPages {
				return nil, RecordID{}, false, nil
			}
			pid := PageID{TableID: s.hf.tableID, PageNo: uint32(s.pageNo), Kind: KindHeap}
			page, err := s.bp.GetPage(s.tid, pid, ReadOnly)
			if err != nil {
				return nil, RecordID{}, false, err
			}
			s.curPage = page.(*HeapPage)
			s.slot = 0
		}
		for s.slot < s.curPage.Capacity() {
			i := s.slot
			s.slot++
			if s.curPage.IsSlotUsed(i) {
				rid := RecordID{PageID: s.curPage.ID(), Slot: uint32(i)}
				return s.curPage.GetSlotBytes(i), rid, true, nil
			}
		}
		s.curPage = nil
		s.pageNo++
	}
}

// Rewind resets the scan to its initial position.
func (s *HeapScan) Rewind() { s.pageNo = 0; s.slot = 0; s.curPage = nil }
