package engine

import (
	"cmp"
	"slices"

	"github.com/RafaelSullivam/editor-sub001/internal/ir"
)

// SortByTimestamp returns a copy of results ordered by ascending
// timestamp. Equal timestamps keep their relative order.
func SortByTimestamp(results []ir.OperationResult) []ir.OperationResult {
	sorted := slices.Clone(results)
	slices.SortStableFunc(sorted, func(a, b ir.OperationResult) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return sorted
}

// Partition splits a timestamp-sorted run into concurrency groups. A new
// group starts whenever an operation's timestamp is more than tolerance
// after the previous one's, so a group can span more than tolerance in
// total when its members are chained closely enough.
//
// Groups share no storage with sorted. A negative tolerance counts as 0.
func Partition(sorted []ir.OperationResult, tolerance int64) [][]ir.OperationResult {
	if len(sorted) == 0 {
		return nil
	}
	tolerance = max(tolerance, 0)

	var groups [][]ir.OperationResult
	start := 0
	for i := 1; i < len(sorted); i++ {
		// The run is ascending, so the unsigned gap is exact even where the
		// signed subtraction overflows.
		gap := uint64(sorted[i].Timestamp) - uint64(sorted[i-1].Timestamp)
		if gap > uint64(tolerance) {
			groups = append(groups, slices.Clone(sorted[start:i]))
			start = i
		}
	}
	return append(groups, slices.Clone(sorted[start:]))
}
