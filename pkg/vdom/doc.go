// Package vdom implements keyed tree reconciliation.
//
// A Tree is a flat snapshot mapping node keys to Nodes. Each Node names its
// children by key rather than embedding them, so two snapshots of the same
// logical UI can be held side by side and compared with plain lookups.
//
// # Core Types
//
// Node carries a key, a type tag, Props and an ordered list of child keys.
// Patch is the single output entity: one CREATE, REMOVE, REPLACE, UPDATE or
// MOVE operation targeting a key. CREATE and REPLACE carry a self-contained
// Subtree; UPDATE carries only the changed props, with Removed marking
// deleted ones; MOVE carries the node's final position in its parent.
//
// # Diffing
//
// Reconcile compares two snapshots starting at the root key:
//
//	patches, err := vdom.Reconcile(prev, next)
//
// Nodes with the same key but a different type are replaced wholesale.
// Children are matched by key; the moves needed to reorder retained children
// are minimized by keeping the longest increasing subsequence of their old
// positions in place.
//
// # Building Trees
//
// Build composes a snapshot from nested elements:
//
//	tree := vdom.Build(
//	    vdom.N("root", "Div", vdom.Props{"class": "card"},
//	        vdom.N("title", "Text", vdom.Props{"data": "Hello"}),
//	    ),
//	)
package vdom
