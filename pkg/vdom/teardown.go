package vdom

// teardownFirst reorders a walk-ordered patch list so the old instance of a
// key is always torn down before a patch creates its new instance.
//
// REMOVEs whose old subtree holds a key the new tree keeps go first, in walk
// order. REPLACEs whose old subtree holds a key kept outside their own new
// subtree follow, each one ahead of any REPLACE that recreates one of its
// keys. When two such REPLACEs trade keys no order works; the traded keys
// are then removed explicitly from their old parents before either runs.
// Everything else keeps its place.
func (w *walker) teardownFirst(root string, patches []Patch) []Patch {
	var kept map[string]struct{}
	var removes, replaces []int
	escapes := make(map[int][]string)
	creator := make(map[string]int)

	for i, p := range patches {
		if p.Op != PatchRemove && p.Op != PatchReplace {
			continue
		}
		if kept == nil {
			kept = reachable(w.next, root)
		}

		var own map[string]struct{}
		if p.Op == PatchReplace {
			own = make(map[string]struct{})
			p.Node.Walk(func(s *Subtree) bool {
				own[s.Key] = struct{}{}
				return true
			})
		}
		esc := escapingKeys(w.prev, p.Target, kept, own)
		if len(esc) == 0 {
			continue
		}

		if p.Op == PatchRemove {
			removes = append(removes, i)
			continue
		}
		replaces = append(replaces, i)
		escapes[i] = esc
		for k := range own {
			creator[k] = i
		}
	}
	if len(removes) == 0 && len(replaces) == 0 {
		return patches
	}

	// i -> j when REPLACE i tears down a key REPLACE j recreates.
	succ := make(map[int][]int)
	indeg := make(map[int]int)
	for _, i := range replaces {
		linked := make(map[int]bool)
		for _, k := range escapes[i] {
			j, ok := creator[k]
			if !ok || j == i || linked[j] {
				continue
			}
			linked[j] = true
			succ[i] = append(succ[i], j)
			indeg[j]++
		}
	}

	done := make(map[int]bool, len(removes)+len(replaces))
	out := make([]Patch, 0, len(patches))
	for _, i := range removes {
		done[i] = true
		out = append(out, patches[i])
	}

	for emitted := 0; emitted < len(replaces); emitted++ {
		next := -1
		for _, i := range replaces {
			if !done[i] && indeg[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			out = w.breakTrades(root, patches, replaces, escapes, creator, done, out)
			break
		}
		done[next] = true
		out = append(out, patches[next])
		for _, j := range succ[next] {
			indeg[j]--
		}
	}

	for i, p := range patches {
		if !done[i] {
			out = append(out, p)
		}
	}
	return out
}

// breakTrades handles REPLACEs left waiting on each other. Each key one of
// them tears down and another recreates is removed from its old parent
// first, skipping keys whose old ancestor is already removed this way. The
// waiting REPLACEs then follow in walk order.
func (w *walker) breakTrades(root string, patches []Patch, replaces []int, escapes map[int][]string, creator map[string]int, done map[int]bool, out []Patch) []Patch {
	parents := parentsOf(w.prev, root)
	detached := make(map[string]struct{})

	var waiting []int
	for _, i := range replaces {
		if done[i] {
			continue
		}
		waiting = append(waiting, i)
		for _, k := range escapes[i] {
			if j, ok := creator[k]; !ok || j == i {
				continue
			}
			if hasDetachedAncestor(k, patches[i].Target, parents, detached) {
				continue
			}
			detached[k] = struct{}{}
			out = append(out, Patch{Op: PatchRemove, Target: k, Parent: parents[k]})
		}
	}

	for _, i := range waiting {
		done[i] = true
		out = append(out, patches[i])
	}
	return out
}

func hasDetachedAncestor(key, stop string, parents map[string]string, detached map[string]struct{}) bool {
	for p := parents[key]; p != stop && p != ""; p = parents[p] {
		if _, ok := detached[p]; ok {
			return true
		}
	}
	return false
}

// escapingKeys lists, in pre-order, the keys of t's subtree at key that are
// in kept but not in own.
func escapingKeys(t Tree, key string, kept, own map[string]struct{}) []string {
	var out []string
	stack := []string{key}
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := kept[k]; ok {
			if _, mine := own[k]; !mine {
				out = append(out, k)
			}
		}
		children := t[k].Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return out
}

func reachable(t Tree, root string) map[string]struct{} {
	seen := map[string]struct{}{root: {}}
	stack := []string{root}
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range t[k].Children {
			seen[c] = struct{}{}
			stack = append(stack, c)
		}
	}
	return seen
}

func parentsOf(t Tree, root string) map[string]string {
	parents := make(map[string]string, len(t))
	stack := []string{root}
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range t[k].Children {
			parents[c] = k
			stack = append(stack, c)
		}
	}
	return parents
}
