package storage

import (
	"fmt"
	"hash/fnv"

	"github.com/nwolfe/coredb/internal/storage/pager"
)

// FieldItem is one column of a TupleDesc: its type and an optional
// display name (spec §2).
type FieldItem struct {
	Type FieldType
	Name string
}

// TupleDesc is an ordered column schema shared by every tuple in a
// table. It is immutable once built.
type TupleDesc struct {
	items []FieldItem
}

// NewTupleDesc builds a schema from field items in column order.
func NewTupleDesc(items ...FieldItem) *TupleDesc {
	return &TupleDesc{items: append([]FieldItem(nil), items...)}
}

// NumFields returns the column count.
func (td *TupleDesc) NumFields() int { return len(td.items) }

// FieldType returns the type of column i.
func (td *TupleDesc) FieldType(i int) FieldType { return td.items[i].Type }

// FieldName returns the name of column i (possibly empty).
func (td *TupleDesc) FieldName(i int) string { return td.items[i].Name }

// Width returns the fixed byte width of one tuple under this schema:
// the sum of each column's fixed field width (spec §2, §4.3: "fixed
// tuple width").
func (td *TupleDesc) Width() int {
	w := 0
	for _, it := range td.items {
		w += it.Type.Width()
	}
	return w
}

// FieldIndex returns the index of the first column whose name equals
// name exactly; an unqualified name does not match a "table.name"-
// qualified column.
func (td *TupleDesc) FieldIndex(name string) (int, error) {
	for i, it := range td.items {
		if it.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("storage: %w: %q", ErrNoSuchField, name)
}

// Equals reports whether two schemas have the same field types in the
// same order (names are not compared, matching the GoDB TupleDesc
// contract this is grounded on).
func (td *TupleDesc) Equals(other *TupleDesc) bool {
	if len(td.items) != len(other.items) {
		return false
	}
	for i := range td.items {
		if td.items[i].Type != other.items[i].Type {
			return false
		}
	}
	return true
}

// Hash returns an FNV-1a hash over the schema's type sequence, so two
// schemas that Equals reports equal also hash equal.
func (td *TupleDesc) Hash() uint64 {
	h := fnv.New64a()
	for _, it := range td.items {
		h.Write([]byte{byte(it.Type)})
	}
	return h.Sum64()
}

// RecordID locates one tuple by page and slot (spec §2).
type RecordID = pager.RecordID

// Tuple is a fixed-length row of Field values conforming to a
// TupleDesc, plus the RecordID it was read from (unset for a tuple not
// yet inserted).
type Tuple struct {
	Desc   *TupleDesc
	fields []Field
	RID    RecordID
	hasRID bool
}

// NewTuple allocates a tuple with nil fields pre-sized to desc's column
// count; every field must be set via SetField before encoding.
func NewTuple(desc *TupleDesc) *Tuple {
	return &Tuple{Desc: desc, fields: make([]Field, desc.NumFields())}
}

// Field returns column i's value.
func (t *Tuple) Field(i int) Field { return t.fields[i] }

// SetField stores v at column i. Out-of-range indices are rejected
// rather than silently growing the tuple (a tuple's width is fixed by
// its schema for the lifetime of the table).
func (t *Tuple) SetField(i int, v Field) error {
	if i < 0 || i >= len(t.fields) {
		return fmt.Errorf("storage: field index %d out of range [0,%d)", i, len(t.fields))
	}
	t.fields[i] = v
	return nil
}

// SetRecordID attaches the page/slot a tuple was read from or inserted at.
func (t *Tuple) SetRecordID(rid RecordID) { t.RID = rid; t.hasRID = true }

// HasRecordID reports whether SetRecordID has been called.
func (t *Tuple) HasRecordID() bool { return t.hasRID }

// Encode packs every field into the schema's fixed-width byte layout,
// column after column, ready to store in a heap slot or use as a
// B+Tree key (when the schema is a single indexed column).
func (t *Tuple) Encode() ([]byte, error) {
	buf := make([]byte, t.Desc.Width())
	off := 0
	for i, f := range t.fields {
		want := t.Desc.FieldType(i)
		if f == nil {
			return nil, fmt.Errorf("storage: tuple field %d not set", i)
		}
		if f.Type() != want {
			return nil, fmt.Errorf("storage: %w: field %d is %s, schema wants %s", ErrSchemaMismatch, i, f.Type(), want)
		}
		enc := f.Encode()
		copy(buf[off:off+len(enc)], enc)
		off += len(enc)
	}
	return buf, nil
}

// DecodeTuple unpacks raw bytes (as read from a heap slot) into a new
// tuple conforming to desc.
func DecodeTuple(desc *TupleDesc, raw []byte) (*Tuple, error) {
	if len(raw) != desc.Width() {
		return nil, fmt.Errorf("storage: %w: got %d bytes, want %d", ErrSchemaMismatch, len(raw), desc.Width())
	}
	t := NewTuple(desc)
	off := 0
	for i := 0; i < desc.NumFields(); i++ {
		w := desc.FieldType(i).Width()
		chunk := raw[off : off+w]
		t.fields[i] = DecodeField(desc.FieldType(i), chunk)
		off += w
	}
	return t, nil
}
