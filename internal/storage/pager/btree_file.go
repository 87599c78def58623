package pager

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// BTreeFile is a single-index B+Tree table file: page 0 is always the
// root pointer page, page 1 the first header (allocation bitmap) page,
// and every other page is a leaf, internal, or header page reached only
// through AllocatePage/FreePage (spec §3, §4.5).
type BTreeFile struct {
	tableID  uint64
	path     string
	f        *os.File
	keyWidth int
}

const (
	rootPointerPageNo = 0
	firstHeaderPageNo = 1
)

// OpenBTreeFile opens (creating if necessary) the backing file for a
// B+Tree table, initializing its root pointer and first header page if
// the file is new.
func OpenBTreeFile(path string, tableID uint64, keyWidth int) (*BTreeFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open btree file %q: %w: %v", path, ErrIoFailure, err)
	}
	bf := &BTreeFile{tableID: tableID, path: path, f: f, keyWidth: keyWidth}
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat btree file %q: %w: %v", path, ErrIoFailure, err)
	}
	if info.Size() == 0 {
		rootID := PageID{TableID: tableID, PageNo: rootPointerPageNo, Kind: KindRootPointer}
		if err := bf.WritePage(NewBTreeRootPointerPage(rootID)); err != nil {
			return nil, err
		}
		headerID := PageID{TableID: tableID, PageNo: firstHeaderPageNo, Kind: KindHeader}
		if err := bf.WritePage(NewBTreeHeaderPage(headerID)); err != nil {
			return nil, err
		}
	}
	return bf, nil
}

func (bf *BTreeFile) TableID() uint64 { return bf.tableID }
func (bf *BTreeFile) Path() string    { return bf.path }
func (bf *BTreeFile) Close() error    { return bf.f.Close() }

// NumPages returns the number of PageSize()-byte pages currently in the file.
func (bf *BTreeFile) NumPages() (int64, error) {
	info, err := bf.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat btree file %q: %w: %v", bf.path, ErrIoFailure, err)
	}
	return ceilDiv(info.Size(), int64(PageSize())), nil
}

func (bf *BTreeFile) readRaw(pageNo uint32) ([]byte, error) {
	ps := PageSize()
	buf := make([]byte, ps)
	n, err := bf.f.ReadAt(buf, int64(pageNo)*int64(ps))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read btree page %d: %w: %v", pageNo, ErrIoFailure, err)
	}
	_ = n
	return buf, nil
}

func (bf *BTreeFile) writeRaw(pageNo uint32, buf []byte) error {
	if _, err := bf.f.WriteAt(buf, int64(pageNo)*int64(PageSize())); err != nil {
		return fmt.Errorf("write btree page %d: %w: %v", pageNo, ErrIoFailure, err)
	}
	return nil
}

// ReadPage implements PageSource, dispatching on the page kind recorded
// in pid (the root pointer page and header pages carry no key width;
// leaf and internal pages decode with the file's key width).
func (bf *BTreeFile) ReadPage(pid PageID) (Page, error) {
	raw, err := bf.readRaw(pid.PageNo)
	if err != nil {
		return nil, err
	}
	switch pid.Kind {
	case KindRootPointer:
		return DecodeBTreeRootPointerPage(pid, raw), nil
	case KindHeader:
		return DecodeBTreeHeaderPage(pid, raw), nil
	case KindLeaf:
		return DecodeBTreeLeafPage(pid, bf.keyWidth, raw), nil
	case KindInternal:
		return DecodeBTreeInternalPage(pid, bf.keyWidth, raw), nil
	default:
		return nil, fmt.Errorf("btree file: unknown page kind %v", pid.Kind)
	}
}

// WritePage implements PageSource.
func (bf *BTreeFile) WritePage(p Page) error { return bf.writeRaw(p.ID().PageNo, p.Encode()) }

// --- page allocation -----------------------------------------------------

// AllocatePage returns a page number free for a brand-new leaf or
// internal page, preferring the root pointer's empty list (pages freed
// by a prior merge) over extending the file (spec §3, §4.5). The root
// pointer page and the header pages are fetched through the buffer pool;
// only the free-list link kept in the first four bytes of a freed page
// is read and written directly against the file.
func (bf *BTreeFile) AllocatePage(tid TxID, bp *BufferPool) (uint32, error) {
	rootID := PageID{TableID: bf.tableID, PageNo: rootPointerPageNo, Kind: KindRootPointer}
	rp, err := bp.GetPage(tid, rootID, ReadWrite)
	if err != nil {
		return 0, err
	}
	root := rp.(*BTreeRootPointerPage)

	if head := root.EmptyListHead(); head != InvalidPageNo {
		next, err := bf.readFreeListNext(head)
		if err != nil {
			return 0, err
		}
		root.SetEmptyListHead(next)
		root.MarkDirty(tid)
		return head, nil
	}

	n, err := bf.NumPages()
	if err != nil {
		return 0, err
	}
	pageNo := uint32(n)
	if err := bf.writeRaw(pageNo, make([]byte, PageSize())); err != nil {
		return 0, err
	}
	if err := bf.markAllocated(tid, bp, pageNo); err != nil {
		return 0, err
	}
	return pageNo, nil
}

// FreePage returns pageNo (of the given kind, so its cached copy can be
// evicted) to the root pointer's empty list for immediate reuse.
func (bf *BTreeFile) FreePage(tid TxID, bp *BufferPool, pageNo uint32, kind PageKind) error {
	bp.DiscardPage(PageID{TableID: bf.tableID, PageNo: pageNo, Kind: kind})

	rootID := PageID{TableID: bf.tableID, PageNo: rootPointerPageNo, Kind: KindRootPointer}
	rp, err := bp.GetPage(tid, rootID, ReadWrite)
	if err != nil {
		return err
	}
	root := rp.(*BTreeRootPointerPage)

	if err := bf.writeFreeListNext(pageNo, root.EmptyListHead()); err != nil {
		return err
	}
	root.SetEmptyListHead(pageNo)
	root.MarkDirty(tid)
	return nil
}

func (bf *BTreeFile) readFreeListNext(pageNo uint32) (uint32, error) {
	buf := make([]byte, 4)
	if _, err := bf.f.ReadAt(buf, int64(pageNo)*int64(PageSize())); err != nil && err != io.EOF {
		return 0, fmt.Errorf("read free list link %d: %w: %v", pageNo, ErrIoFailure, err)
	}
	return getUint32(buf), nil
}

func (bf *BTreeFile) writeFreeListNext(pageNo uint32, next uint32) error {
	buf := make([]byte, 4)
	putUint32(buf, next)
	if _, err := bf.f.WriteAt(buf, int64(pageNo)*int64(PageSize())); err != nil {
		return fmt.Errorf("write free list link %d: %w: %v", pageNo, ErrIoFailure, err)
	}
	return nil
}

// markAllocated sets bit pageNo in the header-page bitmap chain rooted
// at firstHeaderPageNo, appending a new header page if the chain's
// capacity is exhausted.
func (bf *BTreeFile) markAllocated(tid TxID, bp *BufferPool, pageNo uint32) error {
	headerNo := uint32(firstHeaderPageNo)
	base := 0
	for {
		id := PageID{TableID: bf.tableID, PageNo: headerNo, Kind: KindHeader}
		hp, err := bp.GetPage(tid, id, ReadWrite)
		if err != nil {
			return err
		}
		h := hp.(*BTreeHeaderPage)
		if int(pageNo)-base < h.Capacity() {
			h.MarkAllocated(int(pageNo)-base, true)
			h.MarkDirty(tid)
			return nil
		}
		next := h.Next()
		if next == InvalidPageNo {
			n, err := bf.NumPages()
			if err != nil {
				return err
			}
			newHeaderNo := uint32(n)
			newID := PageID{TableID: bf.tableID, PageNo: newHeaderNo, Kind: KindHeader}
			if err := bf.WritePage(NewBTreeHeaderPage(newID)); err != nil {
				return err
			}
			h.SetNext(newHeaderNo)
			h.MarkDirty(tid)
			base += h.Capacity()
			headerNo = newHeaderNo
			continue
		}
		base += h.Capacity()
		headerNo = next
	}
}

// --- root / descent -------------------------------------------------------

func (bf *BTreeFile) rootPointer(tid TxID, bp *BufferPool, perm Permission) (*BTreeRootPointerPage, error) {
	id := PageID{TableID: bf.tableID, PageNo: rootPointerPageNo, Kind: KindRootPointer}
	p, err := bp.GetPage(tid, id, perm)
	if err != nil {
		return nil, err
	}
	return p.(*BTreeRootPointerPage), nil
}

// findLeafPage descends from the root to the leaf that holds (or would
// hold) key, acquiring perm on the returned leaf and ReadOnly on every
// internal page traversed along the way. A nil key descends to the
// leftmost leaf (used for unfiltered scans).
func (bf *BTreeFile) findLeafPage(tid TxID, bp *BufferPool, key []byte, perm Permission) (*BTreeLeafPage, error) {
	root, err := bf.rootPointer(tid, bp, ReadOnly)
	if err != nil {
		return nil, err
	}
	pageNo, kind := root.RootPageNo(), root.RootKind()
	if pageNo == InvalidPageNo {
		return nil, fmt.Errorf("btree file: empty tree has no leaf page")
	}
	for kind == KindInternal {
		id := PageID{TableID: bf.tableID, PageNo: pageNo, Kind: KindInternal}
		p, err := bp.GetPage(tid, id, ReadOnly)
		if err != nil {
			return nil, err
		}
		internal := p.(*BTreeInternalPage)
		pageNo = internal.ChildForKey(key)
		kind = internal.ChildKind()
	}
	id := PageID{TableID: bf.tableID, PageNo: pageNo, Kind: KindLeaf}
	p, err := bp.GetPage(tid, id, perm)
	if err != nil {
		return nil, err
	}
	return p.(*BTreeLeafPage), nil
}

// --- insert ----------------------------------------------------------------

// Insert adds (key, rid) to the tree, splitting leaf and, recursively,
// internal pages as needed (spec §4.5).
func (bf *BTreeFile) Insert(tid TxID, bp *BufferPool, key []byte, rid RecordID) error {
	root, err := bf.rootPointer(tid, bp, ReadWrite)
	if err != nil {
		return err
	}
	if root.RootPageNo() == InvalidPageNo {
		pageNo, err := bf.AllocatePage(tid, bp)
		if err != nil {
			return err
		}
		id := PageID{TableID: bf.tableID, PageNo: pageNo, Kind: KindLeaf}
		if err := bf.WritePage(NewBTreeLeafPage(id, bf.keyWidth)); err != nil {
			return err
		}
		root.SetRootPageNo(pageNo)
		root.SetRootKind(KindLeaf)
		root.MarkDirty(tid)
	}

	leaf, err := bf.findLeafPage(tid, bp, key, ReadWrite)
	if err != nil {
		return err
	}
	if leaf.NumEntries() >= leaf.Capacity() {
		if err := bf.splitLeafAndInsert(tid, bp, leaf, key, rid); err != nil {
			return err
		}
		return nil
	}
	pos, _ := leaf.FindKey(key)
	if err := leaf.InsertAt(pos, LeafEntry{Key: key, PageNo: rid.PageID.PageNo, Slot: rid.Slot}); err != nil {
		return err
	}
	leaf.MarkDirty(tid)
	return nil
}

func (bf *BTreeFile) splitLeafAndInsert(tid TxID, bp *BufferPool, leaf *BTreeLeafPage, key []byte, rid RecordID) error {
	n := leaf.NumEntries()
	mid := n / 2
	rightCount := n - mid

	newPageNo, err := bf.AllocatePage(tid, bp)
	if err != nil {
		return err
	}
	newID := PageID{TableID: bf.tableID, PageNo: newPageNo, Kind: KindLeaf}
	if err := bf.WritePage(NewBTreeLeafPage(newID, bf.keyWidth)); err != nil {
		return err
	}
	rp, err := bp.GetPage(tid, newID, ReadWrite)
	if err != nil {
		return err
	}
	right := rp.(*BTreeLeafPage)

	for i := 0; i < rightCount; i++ {
		right.setEntry(i, leaf.GetEntry(mid+i))
	}
	right.setCount(rightCount)
	leaf.setCount(mid)

	right.SetRightSibling(leaf.RightSibling())
	right.SetLeftSibling(leaf.ID().PageNo)
	if oldRightNo := leaf.RightSibling(); oldRightNo != InvalidPageNo {
		orp, err := bp.GetPage(tid, PageID{TableID: bf.tableID, PageNo: oldRightNo, Kind: KindLeaf}, ReadWrite)
		if err != nil {
			return err
		}
		oldRight := orp.(*BTreeLeafPage)
		oldRight.SetLeftSibling(newPageNo)
		oldRight.MarkDirty(tid)
	}
	leaf.SetRightSibling(newPageNo)
	right.SetParent(leaf.Parent())
	leaf.MarkDirty(tid)
	right.MarkDirty(tid)

	middleKey := right.GetEntry(0).Key
	parent, alreadyLinked, err := bf.getParentWithEmptySlots(tid, bp, leaf, leaf.ID().PageNo, newPageNo, middleKey)
	if err != nil {
		return err
	}
	if !alreadyLinked {
		idx := parent.ChildIndexOf(leaf.ID().PageNo)
		if err := parent.InsertChildAt(idx+1, middleKey, newPageNo); err != nil {
			return err
		}
		parent.MarkDirty(tid)
	}
	right.SetParent(parent.ID().PageNo)
	right.MarkDirty(tid)

	// Insert the original key into whichever half now owns its range.
	var dest *BTreeLeafPage
	if bytes.Compare(key, middleKey) < 0 {
		dest = leaf
	} else {
		dest = right
	}
	pos, _ := dest.FindKey(key)
	if err := dest.InsertAt(pos, LeafEntry{Key: key, PageNo: rid.PageID.PageNo, Slot: rid.Slot}); err != nil {
		return err
	}
	dest.MarkDirty(tid)
	return nil
}

// getParentWithEmptySlots returns the internal page that should receive
// the separator (middleKey, rightPageNo) for a just-split child,
// splitting the existing parent first (recursively up to the root) if
// it is itself full, and materializing a brand-new root if child has no
// parent at all. When it creates a new root it links both children in
// directly and reports alreadyLinked=true so the caller does not also
// call InsertChildAt; otherwise the caller must still insert the
// separator into the returned page.
func (bf *BTreeFile) getParentWithEmptySlots(tid TxID, bp *BufferPool, child Page, childPageNo, rightPageNo uint32, middleKey []byte) (parent *BTreeInternalPage, alreadyLinked bool, err error) {
	parentNo := parentOf(child)
	if parentNo == InvalidPageNo {
		newRootNo, err := bf.AllocatePage(tid, bp)
		if err != nil {
			return nil, false, err
		}
		newRootID := PageID{TableID: bf.tableID, PageNo: newRootNo, Kind: KindInternal}
		if err := bf.WritePage(NewBTreeInternalPage(newRootID, bf.keyWidth, childKindOf(child))); err != nil {
			return nil, false, err
		}
		rp, err := bp.GetPage(tid, newRootID, ReadWrite)
		if err != nil {
			return nil, false, err
		}
		newRoot := rp.(*BTreeInternalPage)
		newRoot.InitRoot(childPageNo, middleKey, rightPageNo)
		newRoot.MarkDirty(tid)

		root, err := bf.rootPointer(tid, bp, ReadWrite)
		if err != nil {
			return nil, false, err
		}
		root.SetRootPageNo(newRootNo)
		root.SetRootKind(KindInternal)
		root.MarkDirty(tid)
		setParentOf(child, newRootNo)
		markDirtyAny(child, tid)
		return newRoot, true, nil
	}

	id := PageID{TableID: bf.tableID, PageNo: parentNo, Kind: KindInternal}
	pp, err := bp.GetPage(tid, id, ReadWrite)
	if err != nil {
		return nil, false, err
	}
	p := pp.(*BTreeInternalPage)
	if p.NumChildren() < p.MaxChildren() {
		return p, false, nil
	}

	rightNo, parentMiddleKey, err := bf.splitInternalAndReparent(tid, bp, p)
	if err != nil {
		return nil, false, err
	}
	grandparent, grandAlreadyLinked, err := bf.getParentWithEmptySlots(tid, bp, p, p.ID().PageNo, rightNo, parentMiddleKey)
	if err != nil {
		return nil, false, err
	}
	if !grandAlreadyLinked {
		gIdx := grandparent.ChildIndexOf(p.ID().PageNo)
		if err := grandparent.InsertChildAt(gIdx+1, parentMiddleKey, rightNo); err != nil {
			return nil, false, err
		}
		grandparent.MarkDirty(tid)
	}

	rp, err := bp.GetPage(tid, PageID{TableID: bf.tableID, PageNo: rightNo, Kind: KindInternal}, ReadWrite)
	if err != nil {
		return nil, false, err
	}
	right := rp.(*BTreeInternalPage)
	right.SetParent(grandparent.ID().PageNo)
	right.MarkDirty(tid)

	// childPageNo now belongs under whichever of p/right holds its range.
	if p.ChildIndexOf(childPageNo) >= 0 {
		return p, false, nil
	}
	return right, false, nil
}

// splitInternalAndReparent splits a full internal page, pushes its
// middle key up (removed from both halves, as B+Tree internal nodes
// never duplicate a separator they've promoted), and reparents every
// grandchild moved to the new right page.
func (bf *BTreeFile) splitInternalAndReparent(tid TxID, bp *BufferPool, p *BTreeInternalPage) (uint32, []byte, error) {
	n := p.NumChildren()
	mid := n / 2
	rightCount := n - mid
	middleKey := p.Key(mid - 1)

	newPageNo, err := bf.AllocatePage(tid, bp)
	if err != nil {
		return 0, nil, err
	}
	newID := PageID{TableID: bf.tableID, PageNo: newPageNo, Kind: KindInternal}
	if err := bf.WritePage(NewBTreeInternalPage(newID, bf.keyWidth, p.ChildKind())); err != nil {
		return 0, nil, err
	}
	rp, err := bp.GetPage(tid, newID, ReadWrite)
	if err != nil {
		return 0, nil, err
	}
	right := rp.(*BTreeInternalPage)

	for i := 0; i < rightCount; i++ {
		childNo := p.Child(mid + i)
		right.SetChild(i, childNo)
		if i > 0 {
			right.SetKey(i-1, p.Key(mid+i-1))
		}
		if err := bf.reparentChild(tid, bp, childNo, p.ChildKind(), newPageNo); err != nil {
			return 0, nil, err
		}
	}
	right.setCount(rightCount)
	p.setCount(mid)
	right.SetParent(p.Parent())
	p.MarkDirty(tid)
	right.MarkDirty(tid)
	return newPageNo, middleKey, nil
}

func (bf *BTreeFile) reparentChild(tid TxID, bp *BufferPool, childNo uint32, kind PageKind, newParent uint32) error {
	id := PageID{TableID: bf.tableID, PageNo: childNo, Kind: kind}
	p, err := bp.GetPage(tid, id, ReadWrite)
	if err != nil {
		return err
	}
	setParentOf(p, newParent)
	markDirtyAny(p, tid)
	return nil
}

// --- delete -----------------------------------------------------------------

// minFillNumerator/minFillDenominator give the occupancy fraction below which a leaf or
// internal page tries to redistribute from a sibling or merge with one
// (spec §4.5: "a page under half capacity"); GoDB's lab3 uses the same
// half-full trigger.
const minFillNumerator, minFillDenominator = 1, 2

// Delete removes the leaf entry (key, rid), then redistributes from or
// merges with a sibling if the leaf falls under half capacity,
// propagating the rebalance upward one level at a time and collapsing
// the root if it is left with a single child. Deleting the last entry of
// a root leaf frees that leaf and leaves the tree empty.
func (bf *BTreeFile) Delete(tid TxID, bp *BufferPool, key []byte, rid RecordID) error {
	leaf, err := bf.findLeafPage(tid, bp, key, ReadWrite)
	if err != nil {
		return err
	}
	pos := -1
	for i := 0; i < leaf.NumEntries(); i++ {
		e := leaf.GetEntry(i)
		if bytes.Equal(e.Key, key) && e.PageNo == rid.PageID.PageNo && e.Slot == rid.Slot {
			pos = i
			break
		}
	}
	if pos < 0 {
		return ErrSlotEmpty
	}
	if err := leaf.RemoveAt(pos); err != nil {
		return err
	}
	leaf.MarkDirty(tid)

	if leaf.NumEntries()*minFillDenominator >= leaf.Capacity()*minFillNumerator {
		return nil
	}
	return bf.rebalanceLeaf(tid, bp, leaf)
}

func (bf *BTreeFile) rebalanceLeaf(tid TxID, bp *BufferPool, leaf *BTreeLeafPage) error {
	parentNo := leaf.Parent()
	if parentNo == InvalidPageNo {
		if leaf.NumEntries() > 0 {
			return nil // root leaf is allowed to be underfull
		}
		root, err := bf.rootPointer(tid, bp, ReadWrite)
		if err != nil {
			return err
		}
		root.SetRootPageNo(InvalidPageNo)
		root.SetRootKind(KindLeaf)
		root.MarkDirty(tid)
		return bf.FreePage(tid, bp, leaf.ID().PageNo, KindLeaf)
	}
	pp, err := bp.GetPage(tid, PageID{TableID: bf.tableID, PageNo: parentNo, Kind: KindInternal}, ReadWrite)
	if err != nil {
		return err
	}
	parent := pp.(*BTreeInternalPage)

	if leftNo := leaf.LeftSibling(); leftNo != InvalidPageNo && bf.siblingSharesParent(tid, bp, leftNo, KindLeaf, parentNo) {
		lp, err := bp.GetPage(tid, PageID{TableID: bf.tableID, PageNo: leftNo, Kind: KindLeaf}, ReadWrite)
		if err != nil {
			return err
		}
		left := lp.(*BTreeLeafPage)
		if left.NumEntries()*minFillDenominator > left.Capacity()*minFillNumerator {
			return bf.stealFromLeftLeaf(tid, parent, left, leaf)
		}
		return bf.mergeLeaves(tid, bp, parent, left, leaf)
	}
	if rightNo := leaf.RightSibling(); rightNo != InvalidPageNo && bf.siblingSharesParent(tid, bp, rightNo, KindLeaf, parentNo) {
		rp, err := bp.GetPage(tid, PageID{TableID: bf.tableID, PageNo: rightNo, Kind: KindLeaf}, ReadWrite)
		if err != nil {
			return err
		}
		right := rp.(*BTreeLeafPage)
		if right.NumEntries()*minFillDenominator > right.Capacity()*minFillNumerator {
			return bf.stealFromRightLeaf(tid, parent, leaf, right)
		}
		return bf.mergeLeaves(tid, bp, parent, leaf, right)
	}
	return nil
}

func (bf *BTreeFile) siblingSharesParent(tid TxID, bp *BufferPool, sibNo uint32, kind PageKind, parentNo uint32) bool {
	sp, err := bp.GetPage(tid, PageID{TableID: bf.tableID, PageNo: sibNo, Kind: kind}, ReadOnly)
	if err != nil {
		return false
	}
	return parentOf(sp) == parentNo
}

func (bf *BTreeFile) stealFromLeftLeaf(tid TxID, parent *BTreeInternalPage, left, right *BTreeLeafPage) error {
	lastIdx := left.NumEntries() - 1
	moved := left.GetEntry(lastIdx)
	if err := left.RemoveAt(lastIdx); err != nil {
		return err
	}
	if err := right.InsertAt(0, moved); err != nil {
		return err
	}
	idx := parent.ChildIndexOf(right.ID().PageNo)
	parent.SetKey(idx-1, moved.Key)
	left.MarkDirty(tid)
	right.MarkDirty(tid)
	parent.MarkDirty(tid)
	return nil
}

func (bf *BTreeFile) stealFromRightLeaf(tid TxID, parent *BTreeInternalPage, left, right *BTreeLeafPage) error {
	moved := right.GetEntry(0)
	if err := right.RemoveAt(0); err != nil {
		return err
	}
	if err := left.InsertAt(left.NumEntries(), moved); err != nil {
		return err
	}
	idx := parent.ChildIndexOf(right.ID().PageNo)
	parent.SetKey(idx-1, right.GetEntry(0).Key)
	left.MarkDirty(tid)
	right.MarkDirty(tid)
	parent.MarkDirty(tid)
	return nil
}

// mergeLeaves absorbs right's entries into left, unlinks right from the
// sibling chain, removes its separator from parent, frees right's page,
// and rebalances parent if it is now underfull itself.
func (bf *BTreeFile) mergeLeaves(tid TxID, bp *BufferPool, parent *BTreeInternalPage, left, right *BTreeLeafPage) error {
	for i := 0; i < right.NumEntries(); i++ {
		if err := left.InsertAt(left.NumEntries(), right.GetEntry(i)); err != nil {
			return err
		}
	}
	left.SetRightSibling(right.RightSibling())
	if rr := right.RightSibling(); rr != InvalidPageNo {
		rrp, err := bp.GetPage(tid, PageID{TableID: bf.tableID, PageNo: rr, Kind: KindLeaf}, ReadWrite)
		if err != nil {
			return err
		}
		rrPage := rrp.(*BTreeLeafPage)
		rrPage.SetLeftSibling(left.ID().PageNo)
		rrPage.MarkDirty(tid)
	}
	left.MarkDirty(tid)

	idx := parent.ChildIndexOf(right.ID().PageNo)
	if err := parent.RemoveChildAt(idx); err != nil {
		return err
	}
	parent.MarkDirty(tid)
	if err := bf.FreePage(tid, bp, right.ID().PageNo, KindLeaf); err != nil {
		return err
	}

	return bf.rebalanceInternal(tid, bp, parent)
}

// rebalanceInternal mirrors rebalanceLeaf one level up, and additionally
// collapses the root when an internal root is left holding one child.
func (bf *BTreeFile) rebalanceInternal(tid TxID, bp *BufferPool, node *BTreeInternalPage) error {
	if node.Parent() == InvalidPageNo {
		if node.NumChildren() == 1 {
			root, err := bf.rootPointer(tid, bp, ReadWrite)
			if err != nil {
				return err
			}
			onlyChild := node.Child(0)
			root.SetRootPageNo(onlyChild)
			root.SetRootKind(node.ChildKind())
			root.MarkDirty(tid)
			cp, err := bp.GetPage(tid, PageID{TableID: bf.tableID, PageNo: onlyChild, Kind: node.ChildKind()}, ReadWrite)
			if err != nil {
				return err
			}
			setParentOf(cp, InvalidPageNo)
			markDirtyAny(cp, tid)
			return bf.FreePage(tid, bp, node.ID().PageNo, KindInternal)
		}
		return nil
	}
	if node.NumChildren()*minFillDenominator >= node.MaxChildren()*minFillNumerator {
		return nil
	}

	parentNo := node.Parent()
	pp, err := bp.GetPage(tid, PageID{TableID: bf.tableID, PageNo: parentNo, Kind: KindInternal}, ReadWrite)
	if err != nil {
		return err
	}
	parent := pp.(*BTreeInternalPage)
	idx := parent.ChildIndexOf(node.ID().PageNo)

	if idx > 0 {
		lp, err := bp.GetPage(tid, PageID{TableID: bf.tableID, PageNo: parent.Child(idx - 1), Kind: KindInternal}, ReadWrite)
		if err != nil {
			return err
		}
		left := lp.(*BTreeInternalPage)
		if left.NumChildren()*minFillDenominator > left.MaxChildren()*minFillNumerator {
			return bf.stealFromLeftInternal(tid, bp, parent, idx, left, node)
		}
		return bf.mergeInternal(tid, bp, parent, idx-1, left, node)
	}
	rp, err := bp.GetPage(tid, PageID{TableID: bf.tableID, PageNo: parent.Child(idx + 1), Kind: KindInternal}, ReadWrite)
	if err != nil {
		return err
	}
	right := rp.(*BTreeInternalPage)
	if right.NumChildren()*minFillDenominator > right.MaxChildren()*minFillNumerator {
		return bf.stealFromRightInternal(tid, bp, parent, idx, node, right)
	}
	return bf.mergeInternal(tid, bp, parent, idx, node, right)
}

// stealFromLeftInternal moves left's last child to become node's new
// first child. Neither InsertChildAt nor RemoveChildAt apply at
// position 0 (both assume a preceding separator key exists), so the
// shift is done directly here.
func (bf *BTreeFile) stealFromLeftInternal(tid TxID, bp *BufferPool, parent *BTreeInternalPage, idx int, left, node *BTreeInternalPage) error {
	lastChildIdx := left.NumChildren() - 1
	movedChild := left.Child(lastChildIdx)
	promoted := left.Key(lastChildIdx - 1)
	oldSeparator := parent.Key(idx - 1)

	left.setCount(lastChildIdx)

	n := node.NumChildren()
	for i := n; i > 0; i-- {
		node.SetChild(i, node.Child(i-1))
	}
	for i := n - 1; i > 0; i-- {
		node.SetKey(i, node.Key(i-1))
	}
	node.SetChild(0, movedChild)
	node.SetKey(0, oldSeparator)
	node.setCount(n + 1)

	parent.SetKey(idx-1, promoted)
	if err := bf.reparentChild(tid, bp, movedChild, node.ChildKind(), node.ID().PageNo); err != nil {
		return err
	}
	left.MarkDirty(tid)
	node.MarkDirty(tid)
	parent.MarkDirty(tid)
	return nil
}

// stealFromRightInternal moves right's first child to become node's
// new last child, same reasoning as stealFromLeftInternal in reverse.
func (bf *BTreeFile) stealFromRightInternal(tid TxID, bp *BufferPool, parent *BTreeInternalPage, idx int, node, right *BTreeInternalPage) error {
	movedChild := right.Child(0)
	promoted := right.Key(0)
	oldSeparator := parent.Key(idx)

	rn := right.NumChildren()
	for i := 0; i < rn-1; i++ {
		right.SetChild(i, right.Child(i+1))
	}
	for i := 0; i < rn-2; i++ {
		right.SetKey(i, right.Key(i+1))
	}
	right.setCount(rn - 1)

	nn := node.NumChildren()
	node.SetChild(nn, movedChild)
	node.SetKey(nn-1, oldSeparator)
	node.setCount(nn + 1)

	parent.SetKey(idx, promoted)
	if err := bf.reparentChild(tid, bp, movedChild, node.ChildKind(), node.ID().PageNo); err != nil {
		return err
	}
	node.MarkDirty(tid)
	right.MarkDirty(tid)
	parent.MarkDirty(tid)
	return nil
}

// mergeInternal absorbs right (and the parent separator at idx that
// divided left/right) into left, frees right, and rebalances parent.
func (bf *BTreeFile) mergeInternal(tid TxID, bp *BufferPool, parent *BTreeInternalPage, idx int, left, right *BTreeInternalPage) error {
	separator := parent.Key(idx)
	base := left.NumChildren()
	for i := 0; i < right.NumChildren(); i++ {
		childNo := right.Child(i)
		if err := left.InsertChildAt(base+i, separatorOrKey(separator, right, i), childNo); err != nil {
			return err
		}
		if err := bf.reparentChild(tid, bp, childNo, left.ChildKind(), left.ID().PageNo); err != nil {
			return err
		}
	}
	left.MarkDirty(tid)

	if err := parent.RemoveChildAt(idx + 1); err != nil {
		return err
	}
	parent.MarkDirty(tid)
	if err := bf.FreePage(tid, bp, right.ID().PageNo, KindInternal); err != nil {
		return err
	}
	return bf.rebalanceInternal(tid, bp, parent)
}

func separatorOrKey(separator []byte, right *BTreeInternalPage, i int) []byte {
	if i == 0 {
		return separator
	}
	return right.Key(i - 1)
}

// --- generic helpers over the two child page kinds --------------------------

func parentOf(p Page) uint32 {
	switch v := p.(type) {
	case *BTreeLeafPage:
		return v.Parent()
	case *BTreeInternalPage:
		return v.Parent()
	default:
		return InvalidPageNo
	}
}

func setParentOf(p Page, parent uint32) {
	switch v := p.(type) {
	case *BTreeLeafPage:
		v.SetParent(parent)
	case *BTreeInternalPage:
		v.SetParent(parent)
	}
}

func childKindOf(p Page) PageKind {
	if _, ok := p.(*BTreeLeafPage); ok {
		return KindLeaf
	}
	return KindInternal
}

func markDirtyAny(p Page, tid TxID) { p.MarkDirty(tid) }

// ChildIndexOf returns the slot holding childPageNo, or -1 if absent.
func (p *BTreeInternalPage) ChildIndexOf(childPageNo uint32) int {
	for i := 0; i < p.NumChildren(); i++ {
		if p.Child(i) == childPageNo {
			return i
		}
	}
	return -1
}

// --- iteration ---------------------------------------------------------------

// BTreeIterator walks leaf entries in ascending key order by following
// right-sibling pointers from a starting leaf, matching the
// leftmost-duplicate descent rule used for both full scans and
// predicate-anchored range scans (spec §4.5, §4.8).
type BTreeIterator struct {
	bf     *BTreeFile
	bp     *BufferPool
	tid    TxID
	page   *BTreeLeafPage
	idx    int
	maxKey []byte // exclusive upper bound for a bounded range scan, nil = unbounded
}

// NewIterator opens a full, unfiltered ascending scan of the tree.
func (bf *BTreeFile) NewIterator(tid TxID, bp *BufferPool) (*BTreeIterator, error) {
	return bf.newIteratorFrom(tid, bp, nil, nil)
}

// NewRangeIterator opens a scan starting at the first entry with
// key >= minKey (nil for unbounded) and stopping before the first entry
// with key >= maxKey (nil for unbounded), enabling early termination
// for equality and bounded-range predicates.
func (bf *BTreeFile) NewRangeIterator(tid TxID, bp *BufferPool, minKey, maxKey []byte) (*BTreeIterator, error) {
	return bf.newIteratorFrom(tid, bp, minKey, maxKey)
}

func (bf *BTreeFile) newIteratorFrom(tid TxID, bp *BufferPool, minKey, maxKey []byte) (*BTreeIterator, error) {
	leaf, err := bf.findLeafPage(tid, bp, minKey, ReadOnly)
	if err != nil {
		return nil, err
	}
	idx := 0
	if minKey != nil {
		idx, _ = leaf.FindKey(minKey)
	}
	return &BTreeIterator{bf: bf, bp: bp, tid: tid, page: leaf, idx: idx, maxKey: maxKey}, nil
}

// Next returns the next (key, RecordID), or ok=false when the scan (or
// its range bound) is exhausted.
func (it *BTreeIterator) Next() (key []byte, rid RecordID, ok bool, err error) {
	for {
		if it.page == nil {
			return nil, RecordID{}, false, nil
		}
		if it.idx >= it.page.NumEntries() {
			nextNo := it.page.RightSibling()
			if nextNo == InvalidPageNo {
				it.page = nil
				continue
			}
			np, err := it.bp.GetPage(it.tid, PageID{TableID: it.bf.tableID, PageNo: nextNo, Kind: KindLeaf}, ReadOnly)
			if err != nil {
				return nil, RecordID{}, false, err
			}
			it.page = np.(*BTreeLeafPage)
			it.idx = 0
			continue
		}
		e := it.page.GetEntry(it.idx)
		if it.maxKey != nil && bytes.Compare(e.Key, it.maxKey) >= 0 {
			it.page = nil
			return nil, RecordID{}, false, nil
		}
		it.idx++
		return e.Key, RecordID{PageID: PageID{TableID: it.bf.tableID, PageNo: e.PageNo, Kind: KindHeap}, Slot: e.Slot}, true, nil
	}
}
