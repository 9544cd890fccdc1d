package vdom

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// PatchOp is the type of patch operation.
type PatchOp uint8

const (
	PatchCreate  PatchOp = 0x01 // Insert a new subtree
	PatchRemove  PatchOp = 0x02 // Remove a node and everything below it
	PatchReplace PatchOp = 0x03 // Replace a node whose type changed
	PatchUpdate  PatchOp = 0x04 // Apply changed props
	PatchMove    PatchOp = 0x05 // Reposition a retained node within its parent
)

// String returns the string representation of the PatchOp.
func (op PatchOp) String() string {
	switch op {
	case PatchCreate:
		return "CREATE"
	case PatchRemove:
		return "REMOVE"
	case PatchReplace:
		return "REPLACE"
	case PatchUpdate:
		return "UPDATE"
	case PatchMove:
		return "MOVE"
	default:
		return "UNKNOWN"
	}
}

// ParsePatchOp is the inverse of PatchOp.String. It is case-insensitive.
func ParsePatchOp(s string) (PatchOp, bool) {
	switch strings.ToUpper(s) {
	case "CREATE":
		return PatchCreate, true
	case "REMOVE":
		return PatchRemove, true
	case "REPLACE":
		return PatchReplace, true
	case "UPDATE":
		return PatchUpdate, true
	case "MOVE":
		return PatchMove, true
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler.
func (op PatchOp) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (op *PatchOp) UnmarshalText(b []byte) error {
	parsed, ok := ParsePatchOp(string(b))
	if !ok {
		return fmt.Errorf("vdom: unknown patch action %q", b)
	}
	*op = parsed
	return nil
}

// Patch represents a single edit operation on the old tree.
//
// Parent is set for CREATE, MOVE and REMOVE; it is not part of REMOVE's Data,
// which stays empty. Index and Before are set for CREATE and MOVE. Index
// is the node's final index in the parent's new child list. Before is the key
// of the sibling that follows it in the new order, or "" when it goes last.
// Patches of one parent are emitted so that Before is already in place when
// the patch is applied in order.
type Patch struct {
	Op     PatchOp  // Operation type
	Target string   // Key of the node the patch applies to
	Parent string   // Parent key (CREATE/MOVE/REMOVE)
	Index  int      // Final position in parent (CREATE/MOVE)
	Before string   // Next sibling in the new order (CREATE/MOVE)
	Node   *Subtree // New subtree (CREATE/REPLACE)
	Props  Props    // Changed props, Removed for deleted ones (UPDATE)
}

// Data returns the action-specific payload as a generic mapping.
// REMOVE has no payload and returns nil.
func (p Patch) Data() map[string]any {
	switch p.Op {
	case PatchCreate:
		data := p.position()
		data["node"] = p.Node.Map()
		return data
	case PatchReplace:
		return map[string]any{"node": p.Node.Map()}
	case PatchUpdate:
		data := make(map[string]any, len(p.Props))
		for k, v := range p.Props {
			data[k] = v
		}
		return data
	case PatchMove:
		return p.position()
	default:
		return nil
	}
}

func (p Patch) position() map[string]any {
	var before any
	if p.Before != "" {
		before = p.Before
	}
	return map[string]any{
		"parent": p.Parent,
		"index":  p.Index,
		"before": before,
	}
}

// wirePatch is the JSON form handed to external appliers.
type wirePatch struct {
	Action   PatchOp        `json:"action"`
	TargetID string         `json:"target_id"`
	Data     map[string]any `json:"data,omitempty"`
}

// MarshalJSON renders the patch as {"action", "target_id", "data"}.
func (p Patch) MarshalJSON() ([]byte, error) {
	return json.Marshal(wirePatch{
		Action:   p.Op,
		TargetID: p.Target,
		Data:     p.Data(),
	})
}

// String returns a single-line description of the patch.
func (p Patch) String() string {
	var b strings.Builder
	b.WriteString(p.Op.String())
	b.WriteByte(' ')
	b.WriteString(p.Target)

	switch p.Op {
	case PatchCreate, PatchMove:
		fmt.Fprintf(&b, " parent=%s index=%d", p.Parent, p.Index)
		if p.Before != "" {
			fmt.Fprintf(&b, " before=%s", p.Before)
		}
		if p.Node != nil {
			fmt.Fprintf(&b, " type=%s nodes=%d", p.Node.Type, p.Node.Count())
		}
	case PatchReplace:
		if p.Node != nil {
			fmt.Fprintf(&b, " type=%s nodes=%d", p.Node.Type, p.Node.Count())
		}
	case PatchUpdate:
		names := make([]string, 0, len(p.Props))
		for k := range p.Props {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			fmt.Fprintf(&b, " %s=%v", k, p.Props[k])
		}
	}
	return b.String()
}

// SortForDisplay returns a copy of patches ordered by (action, target) name.
// The order is for presentation; appliers must consume Reconcile's order.
func SortForDisplay(patches []Patch) []Patch {
	out := make([]Patch, len(patches))
	copy(out, patches)
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := out[i].Op.String(), out[j].Op.String()
		if ai != aj {
			return ai < aj
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// Count returns how many patches of each op the list contains.
func Count(patches []Patch) map[PatchOp]int {
	counts := make(map[PatchOp]int)
	for _, p := range patches {
		counts[p.Op]++
	}
	return counts
}
