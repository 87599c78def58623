package storage

import "testing"

func makeIntTuples(desc *TupleDesc, values []int32) []*Tuple {
	out := make([]*Tuple, len(values))
	for i, v := range values {
		tup := NewTuple(desc)
		_ = tup.SetField(0, IntField{Value: v})
		out[i] = tup
	}
	return out
}

func TestTableStatsScanCost(t *testing.T) {
	desc := intDesc("id")
	ts := NewTableStats(desc, 1000, 7, nil)
	if got := ts.EstimateScanCost(); got != 7000 {
		t.Errorf("EstimateScanCost() = %v, want 7000", got)
	}
}

func TestTableStatsCardinality(t *testing.T) {
	desc := intDesc("id")
	tuples := makeIntTuples(desc, make([]int32, 200))
	ts := NewTableStats(desc, 1000, 1, tuples)
	if got := ts.NumTuples(); got != 200 {
		t.Errorf("NumTuples() = %d, want 200", got)
	}
	if got := ts.EstimateTableCardinality(0.5); got != 100 {
		t.Errorf("EstimateTableCardinality(0.5) = %d, want 100", got)
	}
	if got := ts.EstimateTableCardinality(0); got != 0 {
		t.Errorf("EstimateTableCardinality(0) = %d, want 0", got)
	}
	if got := ts.EstimateTableCardinality(0.001); got < 1 {
		t.Errorf("EstimateTableCardinality(0.001) = %d, want >= 1 for non-zero selectivity", got)
	}
}

func TestTableStatsEstimateSelectivityInt(t *testing.T) {
	desc := intDesc("id")
	values := make([]int32, 0, 100)
	for v := int32(1); v <= 100; v++ {
		values = append(values, v)
	}
	ts := NewTableStats(desc, 1000, 1, makeIntTuples(desc, values))

	sel, err := ts.EstimateSelectivity(0, Equals, IntField{Value: 50}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if sel <= 0 || sel > 1 {
		t.Errorf("selectivity out of range: %v", sel)
	}
}

func TestTableStatsEstimateSelectivityUnknownColumn(t *testing.T) {
	desc := intDesc("id")
	ts := NewTableStats(desc, 1000, 1, nil)
	if _, err := ts.EstimateSelectivity(5, Equals, IntField{Value: 1}, 10); err == nil {
		t.Fatal("expected error for out-of-range column index")
	}
}

func TestTableStatsEstimateSelectivityTypeMismatch(t *testing.T) {
	desc := intDesc("id")
	ts := NewTableStats(desc, 1000, 1, makeIntTuples(desc, []int32{1, 2, 3}))
	s, _ := NewStringField("x")
	if _, err := ts.EstimateSelectivity(0, Equals, s, 10); err == nil {
		t.Fatal("expected error comparing a STRING value against an INT column's histogram")
	}
}

func TestTableStatsStringColumn(t *testing.T) {
	desc := NewTupleDesc(FieldItem{Type: StringType, Name: "name"})
	names := []string{"alice", "bob", "carol", "dave", "erin"}
	tuples := make([]*Tuple, len(names))
	for i, n := range names {
		f, _ := NewStringField(n)
		tup := NewTuple(desc)
		_ = tup.SetField(0, f)
		tuples[i] = tup
	}
	ts := NewTableStats(desc, 1000, 1, tuples)
	carol, _ := NewStringField("carol")
	sel, err := ts.EstimateSelectivity(0, Equals, carol, 10)
	if err != nil {
		t.Fatal(err)
	}
	if sel <= 0 {
		t.Errorf("EQUALS selectivity for a present value should be positive, got %v", sel)
	}
}
