package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// JoinEdge names a binary equi-join predicate between two tables and
// its pre-computed selectivity (spec §4.9). Tables are named, not
// indexed, so the optimizer never needs catalog access of its own.
type JoinEdge struct {
	Left, Right string
	Selectivity float64
}

// joinPlan is one candidate left-deep join order with its estimated
// total cost and output cardinality.
type joinPlan struct {
	order []string
	cost  float64
	card  float64
}

// JoinOptimizer produces a left-deep join order minimizing a simple
// nested-loop cost model via bottom-up dynamic programming over
// subsets of size 1..N with memoized best plans (spec §4.9). Grounded
// on the teacher's engine/optimizations.go "...Optimizer" struct /
// "Process..." method naming, generalized from runtime hash-join
// selection to query-planning join ordering; subset-cost evaluation at
// each DP level fans out over goroutines the way the teacher's
// storage/concurrency.go worker pool fans out read/write requests,
// trimmed to a plain WaitGroup since this is a one-shot, CPU-bound
// computation with no need for the teacher's request/response channel
// protocol.
type JoinOptimizer struct {
	ioCostPerPage float64
}

// NewJoinOptimizer returns an optimizer charging ioCostPerPage for
// every left-by-right tuple pair a nested-loop join compares; base-table
// scan costs come from the caller's scanCost map.
func NewJoinOptimizer(ioCostPerPage float64) *JoinOptimizer {
	return &JoinOptimizer{ioCostPerPage: ioCostPerPage}
}

// OrderJoins returns the cheapest left-deep join order over tables and
// its estimated cost, given each table's scan cost (io_cost_per_page *
// numPages) and cardinality, and the selectivity of every join edge
// between two named tables. An edge whose tables are not both present
// in a given subset is simply never consulted for that subset (spec
// §4.9: "predicates referencing tables not both present ... are
// deferred").
func (jo *JoinOptimizer) OrderJoins(tables []string, scanCost, cardinality map[string]float64, edges []JoinEdge) ([]string, float64, error) {
	if len(tables) == 0 {
		return nil, 0, fmt.Errorf("storage: join optimizer needs at least one table")
	}
	for _, t := range tables {
		if _, ok := scanCost[t]; !ok {
			return nil, 0, fmt.Errorf("storage: join optimizer: no scan cost for table %q", t)
		}
		if _, ok := cardinality[t]; !ok {
			return nil, 0, fmt.Errorf("storage: join optimizer: no cardinality for table %q", t)
		}
	}

	best := make(map[string]joinPlan, 1<<uint(len(tables)))
	for _, t := range tables {
		best[subsetKey([]string{t})] = joinPlan{order: []string{t}, cost: scanCost[t], card: cardinality[t]}
	}

	for size := 2; size <= len(tables); size++ {
		subsets := combinations(tables, size)
		results := make([]joinPlan, len(subsets))
		var wg sync.WaitGroup
		for i, subset := range subsets {
			wg.Add(1)
			go func(i int, subset []string) {
				defer wg.Done()
				results[i] = jo.bestPlanForSubset(subset, scanCost, cardinality, best, edges)
			}(i, subset)
		}
		wg.Wait()
		for i, subset := range subsets {
			if results[i].order != nil {
				best[subsetKey(subset)] = results[i]
			}
		}
	}

	full, ok := best[subsetKey(tables)]
	if !ok {
		return nil, 0, fmt.Errorf("storage: join optimizer: no connected join order found over %v", tables)
	}
	return full.order, full.cost, nil
}

// bestPlanForSubset tries appending each table t in subset last onto
// the memoized best plan for "subset minus t", keeping the cheapest
// resulting left-deep plan.
func (jo *JoinOptimizer) bestPlanForSubset(subset []string, scanCost, cardinality map[string]float64, best map[string]joinPlan, edges []JoinEdge) joinPlan {
	var bestPlan joinPlan
	haveBest := false
	for _, t := range subset {
		rest := remove(subset, t)
		sub, ok := best[subsetKey(rest)]
		if !ok {
			continue
		}
		sel := bestSelectivity(rest, t, edges)
		card := sub.card * cardinality[t] * sel
		if card < 1 {
			card = 1
		}
		cost := sub.cost + scanCost[t] + sub.card*cardinality[t]*jo.ioCostPerPage
		if !haveBest || cost < bestPlan.cost {
			order := append(append([]string(nil), sub.order...), t)
			bestPlan = joinPlan{order: order, cost: cost, card: card}
			haveBest = true
		}
	}
	return bestPlan
}

// bestSelectivity returns the selectivity of the most selective edge
// connecting t to any table already in rest, or 1 (a cross join) if no
// edge connects them.
func bestSelectivity(rest []string, t string, edges []JoinEdge) float64 {
	sel := 1.0
	found := false
	restSet := make(map[string]bool, len(rest))
	for _, r := range rest {
		restSet[r] = true
	}
	for _, e := range edges {
		var matches bool
		switch {
		case e.Left == t && restSet[e.Right]:
			matches = true
		case e.Right == t && restSet[e.Left]:
			matches = true
		}
		if matches && (!found || e.Selectivity < sel) {
			sel = e.Selectivity
			found = true
		}
	}
	return sel
}

// subsetKey canonicalizes a table-name subset into a map key independent
// of enumeration order.
func subsetKey(tables []string) string {
	sorted := append([]string(nil), tables...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}

// remove returns subset without t (t is expected to be present exactly
// once).
func remove(subset []string, t string) []string {
	out := make([]string, 0, len(subset)-1)
	for _, s := range subset {
		if s != t {
			out = append(out, s)
		}
	}
	return out
}

// combinations returns every size-length subset of tables, order
// preserved within each subset.
func combinations(tables []string, size int) [][]string {
	var out [][]string
	var pick func(start int, chosen []string)
	pick = func(start int, chosen []string) {
		if len(chosen) == size {
			out = append(out, append([]string(nil), chosen...))
			return
		}
		for i := start; i < len(tables); i++ {
			pick(i+1, append(chosen, tables[i]))
		}
	}
	pick(0, nil)
	return out
}
