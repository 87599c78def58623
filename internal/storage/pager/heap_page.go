package pager

// HeapPage is the slotted page format backing heap files (spec: "Page
// codec"). Layout: header[ceil(n/8)] ‖ tuple[0..n-1], where n is the
// page's slot capacity and each tuple occupies tupleWidth bytes. Bit i
// of the header (LSB first within a byte) is set iff slot i holds a
// live tuple.
type HeapPage struct {
	pageMeta
	buf        []byte
	tupleWidth int
	capacity   int
	headerLen  int
}

// HeapPageCapacity returns floor((pageSize*8) / (tupleWidth*8 + 1)),
// the number of fixed-width tuple slots that fit on one page alongside
// their occupancy bitmap.
func HeapPageCapacity(pageSize, tupleWidth int) int {
	return (pageSize * 8) / (tupleWidth*8 + 1)
}

// NewHeapPage allocates an empty, all-zero heap page of the process
// page size.
func NewHeapPage(id PageID, tupleWidth int) *HeapPage {
	ps := PageSize()
	capV := HeapPageCapacity(ps, tupleWidth)
	hp := &HeapPage{
		pageMeta:   pageMeta{id: id},
		buf:        make([]byte, ps),
		tupleWidth: tupleWidth,
		capacity:   capV,
		headerLen:  headerBytes(capV),
	}
	return hp
}

// DecodeHeapPage wraps an existing PageSize()-byte buffer as a heap
// page. The buffer is retained, not copied; callers that need an
// independent snapshot should copy first.
func DecodeHeapPage(id PageID, tupleWidth int, raw []byte) *HeapPage {
	capV := HeapPageCapacity(len(raw), tupleWidth)
	return &HeapPage{
		pageMeta:   pageMeta{id: id},
		buf:        raw,
		tupleWidth: tupleWidth,
		capacity:   capV,
		headerLen:  headerBytes(capV),
	}
}

// Capacity returns the number of tuple slots on the page.
func (h *HeapPage) Capacity() int { return h.capacity }

// IsSlotUsed reports whether slot i currently holds a tuple.
func (h *HeapPage) IsSlotUsed(i int) bool {
	return bitmapGet(h.buf[:h.headerLen], i)
}

// NumUsedSlots returns the count of occupied slots.
func (h *HeapPage) NumUsedSlots() int {
	return bitmapCount(h.buf[:h.headerLen], h.capacity)
}

func (h *HeapPage) slotOffset(i int) int {
	return h.headerLen + i*h.tupleWidth
}

// GetSlotBytes returns the raw tuple bytes at slot i, or nil if empty.
func (h *HeapPage) GetSlotBytes(i int) []byte {
	if !h.IsSlotUsed(i) {
		return nil
	}
	off := h.slotOffset(i)
	return h.buf[off : off+h.tupleWidth]
}

// InsertRaw writes data into the lowest-index empty slot and marks it
// used. Returns the slot index or ErrPageFull if no slot is free.
func (h *HeapPage) InsertRaw(data []byte) (int, error) {
	if len(data) != h.tupleWidth {
		return -1, ErrSchemaMismatch
	}
	for i := 0; i < h.capacity; i++ {
		if !h.IsSlotUsed(i) {
			off := h.slotOffset(i)
			copy(h.buf[off:off+h.tupleWidth], data)
			bitmapSet(h.buf[:h.headerLen], i, true)
			return i, nil
		}
	}
	return -1, ErrPageFull
}

// DeleteRaw clears slot i, zeroing its bytes so the page round-trips
// losslessly. Returns ErrSlotEmpty if the slot was not occupied.
func (h *HeapPage) DeleteRaw(slot int) error {
	if slot < 0 || slot >= h.capacity || !h.IsSlotUsed(slot) {
		return ErrSlotEmpty
	}
	off := h.slotOffset(slot)
	for i := off; i < off+h.tupleWidth; i++ {
		h.buf[i] = 0
	}
	bitmapSet(h.buf[:h.headerLen], slot, false)
	return nil
}

// Iterate calls fn for every occupied slot in ascending slot order,
// stopping early if fn returns false.
func (h *HeapPage) Iterate(fn func(slot int, data []byte) bool) {
	for i := 0; i < h.capacity; i++ {
		if h.IsSlotUsed(i) {
			if !fn(i, h.GetSlotBytes(i)) {
				return
			}
		}
	}
}

// Encode returns the page's on-disk byte image. Unused tuple bytes are
// always zero because DeleteRaw zeroes them and fresh pages start zero.
func (h *HeapPage) Encode() []byte { return h.buf }

// Overwrite replaces the page's bytes in place (buffer pool abort undo).
func (h *HeapPage) Overwrite(raw []byte) { copy(h.buf, raw) }
