package hitfinder

import (
	"slices"
	"sort"

	"golang.org/x/exp/maps"
)

// ThresholdOrderings maps a PM to a permutation of its threshold numbers.
// perm[i] is the zero-based level assigned to threshold number i+1.
type ThresholdOrderings map[int][]int

// Level returns the level for a threshold number of a PM. Unknown PMs and
// numbers outside the permutation are returned unchanged.
func (o ThresholdOrderings) Level(pm int, threshold int) int {
	perm, ok := o[pm]
	if !ok || threshold <= 0 || threshold > len(perm) {
		return threshold
	}
	return perm[threshold-1] + 1
}

// PermuteThresholdsByValue returns the permutation that sorts the
// thresholds by ascending comparator value. Ties keep their numbering.
func PermuteThresholdsByValue(values []float64) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return values[idx[a]] < values[idx[b]]
	})
	perm := make([]int, len(values))
	for rank, i := range idx {
		perm[i] = rank
	}
	return perm
}

// FindThresholdOrders builds the orderings of every PM known to the channel
// map from the threshold values of its channels.
func FindThresholdOrders(channels map[int]ChannelInfo) ThresholdOrderings {
	valuesByPM := make(map[int]map[int]float64)
	for _, channel := range slices.Sorted(maps.Keys(channels)) {
		info := channels[channel]
		if info.Threshold <= 0 {
			continue
		}
		if valuesByPM[info.PMID] == nil {
			valuesByPM[info.PMID] = make(map[int]float64)
		}
		valuesByPM[info.PMID][info.Threshold] = info.ThresholdValue
	}

	orderings := make(ThresholdOrderings, len(valuesByPM))
	for pm, byThreshold := range valuesByPM {
		n := slices.Max(slices.Collect(maps.Keys(byThreshold)))
		values := make([]float64, n)
		for thr, value := range byThreshold {
			values[thr-1] = value
		}
		orderings[pm] = PermuteThresholdsByValue(values)
	}
	return orderings
}
