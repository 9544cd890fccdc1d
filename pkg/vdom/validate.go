package vdom

import (
	"sort"
	"strconv"
)

// Validate checks that t can be reconciled from root: the root exists, every
// child reference resolves, no children list repeats a key, and the nodes
// reachable from root form a tree (no cycles, no shared children).
func (t Tree) Validate(root string) error {
	return validateTree(t, root, "")
}

func validateTree(t Tree, root string, side Side) error {
	if _, ok := t[root]; !ok {
		return &MalformedTreeError{Side: side, Kind: MalformedRootMissing, Key: root, Reason: "root key missing"}
	}

	// Sorted so the same snapshot always reports the same first problem.
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		node := t[k]
		if node.Key != "" && node.Key != k {
			return &MalformedTreeError{Side: side, Kind: MalformedKeyMismatch, Key: k, Reason: "record key " + strconv.Quote(node.Key) + " does not match its entry"}
		}
		if len(node.Children) == 0 {
			continue
		}
		positions := make(map[string]int, len(node.Children))
		for i, child := range node.Children {
			if first, dup := positions[child]; dup {
				return &DuplicateKeyError{Side: side, Parent: k, Key: child, First: first, Second: i}
			}
			positions[child] = i
			if _, ok := t[child]; !ok {
				return &MalformedTreeError{Side: side, Kind: MalformedDanglingChild, Key: child, Parent: k, Reason: "child references unknown key"}
			}
		}
	}

	seen := map[string]struct{}{root: {}}
	stack := []string{root}
	for len(stack) > 0 {
		key := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range t[key].Children {
			if _, ok := seen[child]; ok {
				return &MalformedTreeError{Side: side, Kind: MalformedSharedChild, Key: child, Parent: key, Reason: "key reachable through more than one parent"}
			}
			seen[child] = struct{}{}
			stack = append(stack, child)
		}
	}
	return nil
}
