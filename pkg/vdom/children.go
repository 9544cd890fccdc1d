package vdom

// Placement positions one child of the new list: a CREATE when New is set,
// otherwise a MOVE of a retained child.
type Placement struct {
	Key    string
	Index  int    // Index in the new children list
	Before string // Key following it in the new list, "" when last
	New    bool
}

// ChildrenDiff is the outcome of comparing two ordered children lists.
type ChildrenDiff struct {
	// Removed lists keys present only in the old list, in old order.
	Removed []string

	// Placed lists CREATEs and MOVEs from the last position to the first, so
	// each Before anchor is settled before anything is placed in front of it.
	Placed []Placement

	// Retained lists keys present in both lists, in new order.
	Retained []string

	// Stable lists the retained keys that keep their place (the longest
	// increasing run of old positions), in new order.
	Stable []string
}

// Creates returns the CREATE placements in new-list order.
func (d ChildrenDiff) Creates() []Placement {
	return d.filter(true)
}

// Moves returns the MOVE placements in new-list order.
func (d ChildrenDiff) Moves() []Placement {
	return d.filter(false)
}

func (d ChildrenDiff) filter(created bool) []Placement {
	var out []Placement
	for i := len(d.Placed) - 1; i >= 0; i-- {
		if d.Placed[i].New == created {
			out = append(out, d.Placed[i])
		}
	}
	return out
}

// DiffChildren compares an old and a new list of child keys.
//
// Keys only in prev are removed and keys only in next are created. Retained
// keys whose old positions, read in new order, belong to the longest strictly
// increasing subsequence stay put; every other retained key is moved. This
// yields the minimum number of moves in O(n log n).
//
// A key appearing twice in either list is reported as a *DuplicateKeyError.
func DiffChildren(prev, next []string) (ChildrenDiff, error) {
	var d ChildrenDiff
	if len(prev) == 0 && len(next) == 0 {
		return d, nil
	}

	prevIdx := make(map[string]int, len(prev))
	for i, key := range prev {
		if first, dup := prevIdx[key]; dup {
			return ChildrenDiff{}, &DuplicateKeyError{Side: SideOld, Key: key, First: first, Second: i}
		}
		prevIdx[key] = i
	}
	nextIdx := make(map[string]int, len(next))
	for i, key := range next {
		if first, dup := nextIdx[key]; dup {
			return ChildrenDiff{}, &DuplicateKeyError{Side: SideNew, Key: key, First: first, Second: i}
		}
		nextIdx[key] = i
	}

	for _, key := range prev {
		if _, ok := nextIdx[key]; !ok {
			d.Removed = append(d.Removed, key)
		}
	}

	// Old positions of retained keys, listed in new order.
	var positions []int
	for _, key := range next {
		if i, ok := prevIdx[key]; ok {
			d.Retained = append(d.Retained, key)
			positions = append(positions, i)
		}
	}

	stable := make([]bool, len(d.Retained))
	for _, j := range LongestIncreasingSubsequence(positions) {
		stable[j] = true
		d.Stable = append(d.Stable, d.Retained[j])
	}

	r := len(d.Retained) - 1
	for i := len(next) - 1; i >= 0; i-- {
		key := next[i]
		before := ""
		if i+1 < len(next) {
			before = next[i+1]
		}
		if _, ok := prevIdx[key]; !ok {
			d.Placed = append(d.Placed, Placement{Key: key, Index: i, Before: before, New: true})
			continue
		}
		if !stable[r] {
			d.Placed = append(d.Placed, Placement{Key: key, Index: i, Before: before})
		}
		r--
	}

	return d, nil
}
