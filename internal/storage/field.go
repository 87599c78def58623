// Package storage is the domain layer on top of internal/storage/pager:
// it knows what a tuple's fields mean, encodes and decodes them to the
// raw fixed-width bytes pager deals in, and builds the catalog,
// statistics, and join planner on top of the page-level engine.
package storage

import (
	"encoding/binary"
	"fmt"
)

// FieldType identifies a column's Go-level representation and its
// fixed on-disk width (spec §2: "two field types").
type FieldType int

const (
	IntType FieldType = iota
	StringType
)

// StringLength is the fixed width, in bytes, of every StringType field
// (spec §2). Shorter values are padded with zero bytes; Go strings
// longer than this are rejected by NewStringField.
const StringLength = 32

func (t FieldType) String() string {
	switch t {
	case IntType:
		return "INT"
	case StringType:
		return "STRING"
	default:
		return "UNKNOWN"
	}
}

// Width returns the fixed number of bytes a field of this type occupies
// on a page.
func (t FieldType) Width() int {
	switch t {
	case IntType:
		return 4
	case StringType:
		return StringLength
	default:
		return 0
	}
}

// Op is a comparison operator usable in a predicate (spec §4.8).
type Op int

const (
	Equals Op = iota
	GreaterThan
	LessThan
	GreaterThanOrEq
	LessThanOrEq
	NotEquals
	Like
)

func (o Op) String() string {
	switch o {
	case Equals:
		return "="
	case GreaterThan:
		return ">"
	case LessThan:
		return "<"
	case GreaterThanOrEq:
		return ">="
	case LessThanOrEq:
		return "<="
	case NotEquals:
		return "<>"
	case Like:
		return "LIKE"
	default:
		return "?"
	}
}

// Field is a single typed value within a tuple. Compare and Encode give
// the optimizer and the B+Tree an order-preserving, type-agnostic way
// to work with values without a type switch at every call site.
type Field interface {
	Type() FieldType
	// Compare applies op to self versus other and reports whether it
	// holds; it returns an error if other is of a different field type.
	Compare(op Op, other Field) (bool, error)
	// Encode returns the field's order-preserving, fixed-width byte
	// encoding used as a raw heap tuple slot or B+Tree key (spec §4.5:
	// "bytes.Compare already matches field-type ordering").
	Encode() []byte
	String() string
}

// IntField is a signed 32-bit integer field.
type IntField struct{ Value int32 }

func (f IntField) Type() FieldType { return IntType }
func (f IntField) String() string  { return fmt.Sprintf("%d", f.Value) }

func (f IntField) Compare(op Op, other Field) (bool, error) {
	o, ok := other.(IntField)
	if !ok {
		return false, fmt.Errorf("storage: cannot compare INT field against %s", other.Type())
	}
	return compareOrdered(op, f.Value, o.Value), nil
}

// Encode XORs the sign bit so that unsigned byte comparison of the
// big-endian representation matches signed integer ordering: negative
// values (sign bit 1) become the smaller unsigned range, non-negative
// values (sign bit 0) the larger.
func (f IntField) Encode() []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(f.Value)^0x80000000)
	return buf
}

// DecodeIntField reverses IntField.Encode.
func DecodeIntField(buf []byte) IntField {
	u := binary.BigEndian.Uint32(buf) ^ 0x80000000
	return IntField{Value: int32(u)}
}

// StringField is a fixed-width, zero-padded string field.
type StringField struct{ Value string }

// NewStringField validates the value fits StringLength before encoding.
func NewStringField(v string) (StringField, error) {
	if len(v) > StringLength {
		return StringField{}, fmt.Errorf("storage: string value %q exceeds field width %d", v, StringLength)
	}
	return StringField{Value: v}, nil
}

func (f StringField) Type() FieldType { return StringType }
func (f StringField) String() string  { return f.Value }

func (f StringField) Compare(op Op, other Field) (bool, error) {
	o, ok := other.(StringField)
	if !ok {
		return false, fmt.Errorf("storage: cannot compare STRING field against %s", other.Type())
	}
	if op == Like {
		return stringLike(f.Value, o.Value), nil
	}
	return compareOrdered(op, f.Value, o.Value), nil
}

// Encode zero-pads the value to StringLength bytes. Zero-padding at the
// end preserves lexicographic ordering under bytes.Compare for any pair
// of values that both fit within the fixed width.
func (f StringField) Encode() []byte {
	buf := make([]byte, StringLength)
	copy(buf, f.Value)
	return buf
}

// DecodeStringField reverses StringField.Encode, trimming the zero pad.
func DecodeStringField(buf []byte) StringField {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return StringField{Value: string(buf[:n])}
}

// DecodeField reverses Field.Encode for a value of type t, dispatching to
// DecodeIntField or DecodeStringField. Shared by DecodeTuple and the
// B+Tree index key codec so both decode a column's bytes the same way.
func DecodeField(t FieldType, buf []byte) Field {
	switch t {
	case IntType:
		return DecodeIntField(buf)
	case StringType:
		return DecodeStringField(buf)
	default:
		panic(fmt.Sprintf("storage: unknown field type %d", t))
	}
}

func stringLike(value, pattern string) bool {
	// A minimal SQL-LIKE: '%' matches any run, everything else literal.
	return likeMatch([]byte(value), []byte(pattern))
}

func likeMatch(value, pattern []byte) bool {
	if len(pattern) == 0 {
		return len(value) == 0
	}
	if pattern[0] == '%' {
		for i := 0; i <= len(value); i++ {
			if likeMatch(value[i:], pattern[1:]) {
				return true
			}
		}
		return false
	}
	if len(value) == 0 || value[0] != pattern[0] {
		return false
	}
	return likeMatch(value[1:], pattern[1:])
}

type ordered interface{ ~int32 | ~string }

func compareOrdered[T ordered](op Op, a, b T) bool {
	switch op {
	case Equals:
		return a == b
	case NotEquals:
		return a != b
	case GreaterThan:
		return a > b
	case LessThan:
		return a < b
	case GreaterThanOrEq:
		return a >= b
	case LessThanOrEq:
		return a <= b
	default:
		return false
	}
}
