package storage

import (
	"bytes"
	"testing"
)

func TestIntFieldEncodeOrderPreserving(t *testing.T) {
	tests := []struct {
		a, b int32
	}{
		{-5, 5},
		{-100, -1},
		{0, 1},
		{1<<31 - 1, -1 << 31},
	}
	for _, tt := range tests {
		a := IntField{Value: tt.a}
		b := IntField{Value: tt.b}
		if tt.a < tt.b && bytes.Compare(a.Encode(), b.Encode()) >= 0 {
			t.Errorf("Encode(%d) should sort before Encode(%d)", tt.a, tt.b)
		}
		if tt.a > tt.b && bytes.Compare(a.Encode(), b.Encode()) <= 0 {
			t.Errorf("Encode(%d) should sort after Encode(%d)", tt.a, tt.b)
		}
	}
}

func TestIntFieldRoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 12345, -12345, 1 << 30, -(1 << 30)} {
		f := IntField{Value: v}
		got := DecodeIntField(f.Encode())
		if got.Value != v {
			t.Errorf("round trip %d: got %d", v, got.Value)
		}
	}
}

func TestStringFieldRoundTrip(t *testing.T) {
	for _, v := range []string{"", "hello", "a string with spaces"} {
		f, err := NewStringField(v)
		if err != nil {
			t.Fatalf("NewStringField(%q): %v", v, err)
		}
		got := DecodeStringField(f.Encode())
		if got.Value != v {
			t.Errorf("round trip %q: got %q", v, got.Value)
		}
	}
}

func TestStringFieldTooLong(t *testing.T) {
	long := make([]byte, StringLength+1)
	if _, err := NewStringField(string(long)); err == nil {
		t.Fatal("expected error for over-length string")
	}
}

func TestStringFieldEncodeOrderPreserving(t *testing.T) {
	a, _ := NewStringField("abc")
	b, _ := NewStringField("abd")
	if bytes.Compare(a.Encode(), b.Encode()) >= 0 {
		t.Fatal(`"abc" should sort before "abd"`)
	}
}

func TestIntFieldCompare(t *testing.T) {
	a := IntField{Value: 3}
	b := IntField{Value: 5}
	ok, err := a.Compare(LessThan, b)
	if err != nil || !ok {
		t.Fatalf("3 < 5 should hold, got %v, %v", ok, err)
	}
	ok, err = a.Compare(GreaterThan, b)
	if err != nil || ok {
		t.Fatalf("3 > 5 should not hold, got %v, %v", ok, err)
	}
}

func TestFieldCompareTypeMismatch(t *testing.T) {
	a := IntField{Value: 1}
	b := StringField{Value: "x"}
	if _, err := a.Compare(Equals, b); err == nil {
		t.Fatal("expected error comparing INT against STRING")
	}
}

func TestStringLikeMatch(t *testing.T) {
	tests := []struct {
		value, pattern string
		want           bool
	}{
		{"hello", "hello", true},
		{"hello", "hel%", true},
		{"hello", "%llo", true},
		{"hello", "%ell%", true},
		{"hello", "h%x", false},
		{"", "%", true},
		{"", "", true},
	}
	for _, tt := range tests {
		a, _ := NewStringField(tt.value)
		b, _ := NewStringField(tt.pattern)
		got, err := a.Compare(Like, b)
		if err != nil {
			t.Fatalf("Compare(Like): %v", err)
		}
		if got != tt.want {
			t.Errorf("LIKE(%q, %q) = %v, want %v", tt.value, tt.pattern, got, tt.want)
		}
	}
}
