package vdom

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var cmpEmptySlices = cmpopts.EquateEmpty()

// liveTree is a mutable copy of a snapshot that patches are replayed on.
type liveTree struct {
	nodes map[string]*Node
}

func newLiveTree(t Tree) *liveTree {
	lt := &liveTree{nodes: make(map[string]*Node, len(t))}
	for k, n := range t {
		lt.put(k, n)
	}
	return lt
}

func (lt *liveTree) put(key string, n Node) {
	c := Node{Key: key, Type: n.Type, Children: append([]string(nil), n.Children...)}
	if len(n.Props) > 0 {
		c.Props = make(Props, len(n.Props))
		for k, v := range n.Props {
			c.Props[k] = v
		}
	}
	lt.nodes[key] = &c
}

func (lt *liveTree) drop(key string) {
	n, ok := lt.nodes[key]
	if !ok {
		return
	}
	for _, c := range n.Children {
		lt.drop(c)
	}
	delete(lt.nodes, key)
}

func (lt *liveTree) graft(s *Subtree) {
	for k, n := range s.Snapshot() {
		lt.put(k, n)
	}
}

func (lt *liveTree) parent(t *testing.T, key string) *Node {
	t.Helper()
	n, ok := lt.nodes[key]
	if !ok {
		t.Fatalf("Parent %q not present while applying", key)
	}
	return n
}

func (lt *liveTree) apply(t *testing.T, p Patch) {
	t.Helper()
	switch p.Op {
	case PatchRemove:
		parent := lt.parent(t, p.Parent)
		parent.Children = removeKey(parent.Children, p.Target)
		lt.drop(p.Target)

	case PatchCreate:
		lt.graft(p.Node)
		parent := lt.parent(t, p.Parent)
		parent.Children = insertBefore(parent.Children, p.Target, p.Before)

	case PatchMove:
		parent := lt.parent(t, p.Parent)
		if p.Before != "" && !containsKey(parent.Children, p.Before) {
			t.Fatalf("MOVE %s: anchor %q not in place", p.Target, p.Before)
		}
		parent.Children = insertBefore(removeKey(parent.Children, p.Target), p.Target, p.Before)

	case PatchReplace:
		lt.drop(p.Target)
		lt.graft(p.Node)

	case PatchUpdate:
		n, ok := lt.nodes[p.Target]
		if !ok {
			t.Fatalf("UPDATE %s: node not present", p.Target)
		}
		for k, v := range p.Props {
			if IsRemoved(v) {
				delete(n.Props, k)
				continue
			}
			if n.Props == nil {
				n.Props = make(Props)
			}
			n.Props[k] = v
		}

	default:
		t.Fatalf("Unknown op %v", p.Op)
	}
}

// reachable returns the part of the tree reachable from root.
func (lt *liveTree) reachable(root string) Tree {
	out := make(Tree)
	var walk func(string)
	walk = func(key string) {
		n, ok := lt.nodes[key]
		if !ok {
			return
		}
		out[key] = *n
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}

// assertPatchesReproduce replays patches on prev and checks the result is next.
func assertPatchesReproduce(t *testing.T, prev, next Tree, patches []Patch) {
	t.Helper()
	lt := newLiveTree(prev)
	for _, p := range patches {
		lt.apply(t, p)
	}

	want := make(Tree)
	for k, n := range next {
		n.Key = k
		want[k] = n
	}
	want = newLiveTree(want).reachable(DefaultRootKey)
	got := lt.reachable(DefaultRootKey)
	if diff := cmp.Diff(want, got, cmpEmptySlices); diff != "" {
		t.Fatalf("Replayed tree mismatch (-want +got):\n%s", diff)
	}

	for _, p := range patches {
		if p.Op != PatchCreate && p.Op != PatchMove {
			continue
		}
		children := got[p.Parent].Children
		if p.Index >= len(children) || children[p.Index] != p.Target {
			t.Errorf("%s: index %d does not hold %s in %v", p.Op, p.Index, p.Target, children)
		}
	}
}

func removeKey(list []string, key string) []string {
	out := list[:0]
	for _, k := range list {
		if k != key {
			out = append(out, k)
		}
	}
	return out
}

func insertBefore(list []string, key, before string) []string {
	if before == "" {
		return append(list, key)
	}
	for i, k := range list {
		if k == before {
			list = append(list, "")
			copy(list[i+1:], list[i:])
			list[i] = key
			return list
		}
	}
	return append(list, key)
}

func containsKey(list []string, key string) bool {
	for _, k := range list {
		if k == key {
			return true
		}
	}
	return false
}
