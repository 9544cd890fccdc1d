package vdom

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed errors below through errors.Is.
var (
	ErrMalformedTree = errors.New("vdom: malformed tree")
	ErrDuplicateKey  = errors.New("vdom: duplicate child key")
)

// Side names which snapshot an error was found in.
type Side string

const (
	SideOld Side = "old"
	SideNew Side = "new"
)

func (s Side) tree() string {
	if s == "" {
		return "tree"
	}
	return string(s) + " tree"
}

// MalformedKind classifies a MalformedTreeError.
type MalformedKind uint8

const (
	MalformedRootMissing   MalformedKind = iota + 1 // Root key absent
	MalformedDanglingChild                          // Child key absent from the snapshot
	MalformedSharedChild                            // Key reachable twice (cycle or two parents)
	MalformedKeyMismatch                            // Record key differs from its entry
)

// String returns the string representation of the MalformedKind.
func (k MalformedKind) String() string {
	switch k {
	case MalformedRootMissing:
		return "RootMissing"
	case MalformedDanglingChild:
		return "DanglingChild"
	case MalformedSharedChild:
		return "SharedChild"
	case MalformedKeyMismatch:
		return "KeyMismatch"
	default:
		return "Unknown"
	}
}

// MalformedTreeError reports a snapshot that cannot be reconciled: a missing
// root, a child reference to a key absent from the snapshot, a key reachable
// through more than one parent, or a record whose key disagrees with its
// map entry.
type MalformedTreeError struct {
	Side   Side   // Snapshot the problem was found in
	Kind   MalformedKind
	Key    string // Offending key (the missing one, for dangling references)
	Parent string // Node whose children list refers to Key, if any
	Reason string
}

func (e *MalformedTreeError) Error() string {
	if e.Parent != "" {
		return fmt.Sprintf("vdom: malformed %s: %s (key %q, parent %q)", e.Side.tree(), e.Reason, e.Key, e.Parent)
	}
	return fmt.Sprintf("vdom: malformed %s: %s (key %q)", e.Side.tree(), e.Reason, e.Key)
}

// Is makes errors.Is(err, ErrMalformedTree) succeed.
func (e *MalformedTreeError) Is(target error) bool {
	return target == ErrMalformedTree
}

// DuplicateKeyError reports a children list naming the same key twice.
type DuplicateKeyError struct {
	Side   Side
	Parent string // Node owning the children list
	Key    string // Repeated key
	First  int    // Index of the first occurrence
	Second int    // Index of the repeat
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("vdom: duplicate key %q in children of %q (%s, positions %d and %d)",
		e.Key, e.Parent, e.Side.tree(), e.First, e.Second)
}

// Is makes errors.Is(err, ErrDuplicateKey) succeed.
func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}
