package storage

import "github.com/nwolfe/coredb/internal/storage/pager"

// Config gathers the process-wide tunables spec §7 names explicitly,
// separate from ambient defaults baked into the pager package itself.
type Config struct {
	// PageSize is kept in sync with pager.PageSize(); it is exposed here
	// too so callers configuring a Config don't need a separate import.
	PageSize int
	// BufferCapacity is the number of pages the buffer pool may cache
	// at once (spec §4.7).
	BufferCapacity int
	// IOCostPerPage weights a page fetch in the join optimizer's cost
	// model (spec §4.9).
	IOCostPerPage float64
	// HistogramBins is a default bucket count for IntHistogram/
	// StringHistogram (spec §4.8). Nothing in this package reads it;
	// TableStats.EstimateSelectivity takes the bucket count as an argument.
	HistogramBins int
}

// DefaultConfig returns the factory defaults, applying pager's own
// DefaultPageSize so the two layers never drift apart.
func DefaultConfig() Config {
	return Config{
		PageSize:       pager.DefaultPageSize,
		BufferCapacity: 50,
		IOCostPerPage:  1000.0,
		HistogramBins:  100,
	}
}

// Apply pushes PageSize through to the pager package's process-global.
func (c Config) Apply() {
	pager.SetPageSize(c.PageSize)
}

// Reset restores pager's page size to its factory default. Tests should
// defer this after overriding PageSize so later tests see the default.
func Reset() {
	pager.ResetPageSize()
}
