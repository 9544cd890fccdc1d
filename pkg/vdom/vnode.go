package vdom

import "strings"

// DefaultRootKey is the key Reconcile starts from unless Options.RootKey is set.
const DefaultRootKey = "root"

// Props holds a node's properties. Values are compared by deep equality.
type Props map[string]any

// Node is one entry of a tree snapshot.
type Node struct {
	Key      string   `json:"key" yaml:"key" validate:"required"`
	Type     string   `json:"type" yaml:"type" validate:"required"`
	Props    Props    `json:"props,omitempty" yaml:"props,omitempty"`
	Children []string `json:"children,omitempty" yaml:"children,omitempty"`
}

// HasEventHandlers returns true if any prop looks like an event handler.
func (n *Node) HasEventHandlers() bool {
	if n == nil {
		return false
	}
	for key := range n.Props {
		if isEventHandler(key) {
			return true
		}
	}
	return false
}

// Tree is a snapshot: every node of one version of the UI, indexed by key.
// Trees are read-only once handed to Reconcile.
type Tree map[string]Node

// Lookup returns the node stored under key.
func (t Tree) Lookup(key string) (Node, bool) {
	n, ok := t[key]
	return n, ok
}

// Size returns the number of nodes reachable from root, including root.
// Unreachable entries and dangling references are not counted.
func (t Tree) Size(root string) int {
	if _, ok := t[root]; !ok {
		return 0
	}
	seen := map[string]struct{}{root: {}}
	stack := []string{root}
	for len(stack) > 0 {
		key := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range t[key].Children {
			if _, ok := seen[child]; ok {
				continue
			}
			if _, ok := t[child]; !ok {
				continue
			}
			seen[child] = struct{}{}
			stack = append(stack, child)
		}
	}
	return len(seen)
}

// isEventHandler returns true if the key is an event handler (starts with "on").
// Case-insensitive to catch onclick, ONCLICK, onClick, OnLoad, etc.
func isEventHandler(key string) bool {
	return len(key) > 2 && strings.EqualFold(key[:2], "on")
}
