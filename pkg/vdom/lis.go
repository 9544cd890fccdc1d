package vdom

import "sort"

// LongestIncreasingSubsequence returns the indices (into seq, ascending) of a
// longest strictly increasing subsequence of seq.
//
// It runs in O(n log n): tails[l] holds the index of the smallest value that
// ends an increasing run of length l+1, and each element is placed with a
// binary search. When several subsequences share the maximal length, the one
// reconstructed from the final tail is returned, which is deterministic for a
// given input.
func LongestIncreasingSubsequence(seq []int) []int {
	if len(seq) == 0 {
		return nil
	}

	prev := make([]int, len(seq))
	tails := make([]int, 0, len(seq))

	for i, v := range seq {
		// First tail whose value is >= v; strict increase means equal values
		// replace rather than extend.
		pos := sort.Search(len(tails), func(j int) bool {
			return seq[tails[j]] >= v
		})
		if pos > 0 {
			prev[i] = tails[pos-1]
		} else {
			prev[i] = -1
		}
		if pos == len(tails) {
			tails = append(tails, i)
		} else {
			tails[pos] = i
		}
	}

	out := make([]int, len(tails))
	k := tails[len(tails)-1]
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = k
		k = prev[k]
	}
	return out
}
