package vdom

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Options tunes reconciliation. The zero value diffs every prop, starts at
// DefaultRootKey and runs sequentially.
type Options struct {
	// RootKey is the key both snapshots are walked from.
	RootKey string

	// IgnoreProps lists prop names that never produce UPDATE patches.
	IgnoreProps []string

	// SkipEventHandlers ignores props whose name starts with "on".
	SkipEventHandlers bool

	// ParallelDepth enables concurrent diffing of retained children for
	// parents shallower than this depth (the root is depth 0). Output is
	// identical to the sequential walk.
	ParallelDepth int

	// Workers caps the goroutines used per parallel level. 0 means no cap.
	Workers int
}

func (o *Options) rootKey() string {
	if o.RootKey == "" {
		return DefaultRootKey
	}
	return o.RootKey
}

// NodeOutcome is the verdict of comparing two nodes that share a key.
type NodeOutcome uint8

const (
	NodeUnchanged NodeOutcome = iota // Same type, same props
	NodeUpdate                       // Same type, some props differ
	NodeReplace                      // Type changed
)

// String returns the string representation of the NodeOutcome.
func (o NodeOutcome) String() string {
	switch o {
	case NodeUnchanged:
		return "Unchanged"
	case NodeUpdate:
		return "Update"
	case NodeReplace:
		return "Replace"
	default:
		return "Unknown"
	}
}

// NodeDiff is the result of DiffNode.
type NodeDiff struct {
	Outcome NodeOutcome
	Props   Props // Changed props, only for NodeUpdate
}

// DiffNode compares two nodes that share a key. A type change yields
// NodeReplace without looking at props; otherwise the changed props decide
// between NodeUpdate and NodeUnchanged.
func DiffNode(prev, next Node) (NodeDiff, error) {
	return diffNode(prev, next, propFilter{})
}

func diffNode(prev, next Node, f propFilter) (NodeDiff, error) {
	if prev.Type != next.Type {
		return NodeDiff{Outcome: NodeReplace}, nil
	}
	changed, err := diffProps(prev.Props, next.Props, f)
	if err != nil {
		return NodeDiff{}, err
	}
	if len(changed) == 0 {
		return NodeDiff{Outcome: NodeUnchanged}, nil
	}
	return NodeDiff{Outcome: NodeUpdate, Props: changed}, nil
}

// Reconciler computes patch lists between snapshots.
// It holds no state between calls and is safe for concurrent use.
type Reconciler struct {
	opts   Options
	filter propFilter
}

// NewReconciler creates a Reconciler with the given options.
func NewReconciler(opts Options) *Reconciler {
	opts.IgnoreProps = append([]string(nil), opts.IgnoreProps...)
	return &Reconciler{
		opts:   opts,
		filter: newPropFilter(&opts),
	}
}

// Options returns the options the Reconciler was created with.
func (r *Reconciler) Options() Options {
	return r.opts
}

// Reconcile compares two snapshots with default options.
func Reconcile(prev, next Tree) ([]Patch, error) {
	return NewReconciler(Options{}).Reconcile(prev, next)
}

// Reconcile returns the patches that turn prev into next.
//
// Both snapshots are validated first; a missing root, a dangling child
// reference or a shared child fails with *MalformedTreeError, a repeated key
// in a children list with *DuplicateKeyError. No patches are returned on
// error. Two empty snapshots reconcile to no patches.
//
// Patches come out in generation order: a node's UPDATE or REPLACE precedes
// its children's patches, and within one children list REMOVEs precede the
// CREATEs and MOVEs. Nothing is emitted below a REPLACE'd or REMOVE'd key.
//
// A key that changes parent is removed and created again. Every REMOVE or
// REPLACE that tears down the old instance of such a key is moved ahead of
// the walk's other patches, so the list applies in order. Two REPLACEs that
// trade keys get those keys removed explicitly ahead of both.
func (r *Reconciler) Reconcile(prev, next Tree) ([]Patch, error) {
	if len(prev) == 0 && len(next) == 0 {
		return nil, nil
	}

	root := r.opts.rootKey()
	if err := validateTree(prev, root, SideOld); err != nil {
		return nil, err
	}
	if err := validateTree(next, root, SideNew); err != nil {
		return nil, err
	}

	w := &walker{prev: prev, next: next, filter: r.filter, opts: &r.opts}
	var patches []Patch
	if err := w.diffKey(root, 0, &patches); err != nil {
		return nil, err
	}
	return w.teardownFirst(root, patches), nil
}

// walker carries the inputs of one Reconcile call.
type walker struct {
	prev, next Tree
	filter     propFilter
	opts       *Options
}

// diffKey compares the node stored under key in both snapshots and appends
// its patches and those of its retained descendants.
func (w *walker) diffKey(key string, depth int, patches *[]Patch) error {
	prev, next := w.prev[key], w.next[key]

	nd, err := diffNode(prev, next, w.filter)
	if err != nil {
		return err
	}

	switch nd.Outcome {
	case NodeReplace:
		sub, err := buildSubtree(w.next, key)
		if err != nil {
			return err
		}
		*patches = append(*patches, Patch{
			Op:     PatchReplace,
			Target: key,
			Node:   sub,
		})
		// The whole subtree is new; old and new children are irrelevant.
		return nil

	case NodeUpdate:
		*patches = append(*patches, Patch{
			Op:     PatchUpdate,
			Target: key,
			Props:  nd.Props,
		})
	}

	return w.diffChildren(key, prev.Children, next.Children, depth, patches)
}

// diffChildren appends the REMOVE, CREATE and MOVE patches for one children
// list, then recurses into the retained children.
func (w *walker) diffChildren(parent string, prevKeys, nextKeys []string, depth int, patches *[]Patch) error {
	cd, err := DiffChildren(prevKeys, nextKeys)
	if err != nil {
		return fmt.Errorf("vdom: children of %q: %w", parent, err)
	}

	for _, key := range cd.Removed {
		*patches = append(*patches, Patch{
			Op:     PatchRemove,
			Target: key,
			Parent: parent,
		})
	}

	for _, pl := range cd.Placed {
		p := Patch{
			Op:     PatchMove,
			Target: pl.Key,
			Parent: parent,
			Index:  pl.Index,
			Before: pl.Before,
		}
		if pl.New {
			sub, err := buildSubtree(w.next, pl.Key)
			if err != nil {
				return err
			}
			p.Op = PatchCreate
			p.Node = sub
		}
		*patches = append(*patches, p)
	}

	if depth < w.opts.ParallelDepth && len(cd.Retained) > 1 {
		return w.diffParallel(cd.Retained, depth+1, patches)
	}
	for _, key := range cd.Retained {
		if err := w.diffKey(key, depth+1, patches); err != nil {
			return err
		}
	}
	return nil
}

// diffParallel diffs sibling subtrees concurrently into per-branch lists and
// appends them in sibling order.
func (w *walker) diffParallel(keys []string, depth int, patches *[]Patch) error {
	results := make([][]Patch, len(keys))

	var g errgroup.Group
	if w.opts.Workers > 0 {
		g.SetLimit(w.opts.Workers)
	}
	for i, key := range keys {
		g.Go(func() error {
			var local []Patch
			if err := w.diffKey(key, depth, &local); err != nil {
				return err
			}
			results[i] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, branch := range results {
		*patches = append(*patches, branch...)
	}
	return nil
}
