package storage

import "fmt"

// columnStats accumulates what a single pass over a table's tuples
// needs to answer later selectivity queries for one column: the full
// value list (spec §4.8: "captures ... the full value list per
// column"), plus running min/max for IntType columns so a fresh
// histogram can be built on demand without a second scan.
type columnStats struct {
	ftype   FieldType
	ints    []int32
	strs    []string
	haveMin bool
	min     int32
	max     int32
}

func (cs *columnStats) observe(f Field) {
	switch v := f.(type) {
	case IntField:
		cs.ints = append(cs.ints, v.Value)
		if !cs.haveMin {
			cs.min, cs.max, cs.haveMin = v.Value, v.Value, true
		}
		if v.Value < cs.min {
			cs.min = v.Value
		}
		if v.Value > cs.max {
			cs.max = v.Value
		}
	case StringField:
		cs.strs = append(cs.strs, v.Value)
	}
}

// TableStats captures per-column selectivity statistics for one table
// from a single scan (spec §4.8), and the table's scan-cost inputs used
// by the join optimizer (spec §4.9).
type TableStats struct {
	desc          *TupleDesc
	ioCostPerPage float64
	numPages      int
	numTuples     int
	columns       []*columnStats
}

// NewTableStats scans tuples once, building per-column min/max and
// value lists. numPages is the table's current page count, used
// (alongside ioCostPerPage) for the optimizer's leaf scan cost.
func NewTableStats(desc *TupleDesc, ioCostPerPage float64, numPages int, tuples []*Tuple) *TableStats {
	ts := &TableStats{
		desc:          desc,
		ioCostPerPage: ioCostPerPage,
		numPages:      numPages,
		columns:       make([]*columnStats, desc.NumFields()),
	}
	for i := 0; i < desc.NumFields(); i++ {
		ts.columns[i] = &columnStats{ftype: desc.FieldType(i)}
	}
	for _, t := range tuples {
		for i := 0; i < desc.NumFields(); i++ {
			ts.columns[i].observe(t.Field(i))
		}
	}
	ts.numTuples = len(tuples)
	return ts
}

// NumTuples returns the tuple count observed during the scan.
func (ts *TableStats) NumTuples() int { return ts.numTuples }

// EstimateScanCost is io_cost_per_page charged once per page, the leaf
// cost term of the join optimizer's cost model (spec §4.9).
func (ts *TableStats) EstimateScanCost() float64 {
	return ts.ioCostPerPage * float64(ts.numPages)
}

// EstimateTableCardinality scales the observed tuple count by a
// predicate's selectivity, never rounding below one matching tuple for
// a non-zero selectivity (spec §4.9's cost formula needs a cardinality
// estimate per subplan, not an exact count).
func (ts *TableStats) EstimateTableCardinality(selectivity float64) int {
	card := int(float64(ts.numTuples) * selectivity)
	if card < 1 && selectivity > 0 {
		card = 1
	}
	return card
}

// EstimateSelectivity builds a fresh histogram of histogramBins buckets
// over column i's observed values and evaluates "field op v" against it
// (spec §4.8: "builds a fresh histogram ... on demand and evaluates
// it" -- this package never caches histograms across calls, matching
// the teacher's own prefer-recompute-over-cache statistics style).
func (ts *TableStats) EstimateSelectivity(i int, op Op, v Field, histogramBins int) (float64, error) {
	if i < 0 || i >= len(ts.columns) {
		return 0, fmt.Errorf("storage: %w: column index %d", ErrNoSuchField, i)
	}
	col := ts.columns[i]
	switch col.ftype {
	case IntType:
		iv, ok := v.(IntField)
		if !ok {
			return 0, fmt.Errorf("storage: %w: column %d is INT", ErrSchemaMismatch, i)
		}
		if len(col.ints) == 0 {
			return 0, nil
		}
		h := NewIntHistogram(histogramBins, col.min, col.max)
		for _, x := range col.ints {
			h.AddValue(x)
		}
		return h.EstimateSelectivity(op, iv.Value), nil
	case StringType:
		sv, ok := v.(StringField)
		if !ok {
			return 0, fmt.Errorf("storage: %w: column %d is STRING", ErrSchemaMismatch, i)
		}
		if len(col.strs) == 0 {
			return 0, nil
		}
		h := NewStringHistogram(histogramBins)
		for _, s := range col.strs {
			h.AddValue(s)
		}
		return h.EstimateSelectivity(op, sv.Value), nil
	default:
		return 0, fmt.Errorf("storage: column %d has unknown field type", i)
	}
}
