package vdom

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPatchOpString(t *testing.T) {
	tests := []struct {
		op   PatchOp
		want string
	}{
		{PatchCreate, "CREATE"},
		{PatchRemove, "REMOVE"},
		{PatchReplace, "REPLACE"},
		{PatchUpdate, "UPDATE"},
		{PatchMove, "MOVE"},
		{PatchOp(0xFF), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("PatchOp(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
		if tt.want == "UNKNOWN" {
			continue
		}
		parsed, ok := ParsePatchOp(tt.want)
		if !ok || parsed != tt.op {
			t.Errorf("ParsePatchOp(%q) = %v, %v", tt.want, parsed, ok)
		}
	}

	if _, ok := ParsePatchOp("SPLICE"); ok {
		t.Error("ParsePatchOp accepted an unknown action")
	}
}

func TestPatchJSON(t *testing.T) {
	tests := []struct {
		name  string
		patch Patch
		want  string
	}{
		{
			name:  "remove",
			patch: Patch{Op: PatchRemove, Target: "e", Parent: "root"},
			want:  `{"action":"REMOVE","target_id":"e"}`,
		},
		{
			name:  "move",
			patch: Patch{Op: PatchMove, Target: "c", Parent: "root", Index: 2, Before: "f"},
			want:  `{"action":"MOVE","target_id":"c","data":{"before":"f","index":2,"parent":"root"}}`,
		},
		{
			name:  "move last",
			patch: Patch{Op: PatchMove, Target: "c", Parent: "root", Index: 4},
			want:  `{"action":"MOVE","target_id":"c","data":{"before":null,"index":4,"parent":"root"}}`,
		},
		{
			name:  "replace",
			patch: Patch{Op: PatchReplace, Target: "c1", Node: &Subtree{Key: "c1", Type: "Button"}},
			want:  `{"action":"REPLACE","target_id":"c1","data":{"node":{"children":[],"key":"c1","props":{},"type":"Button"}}}`,
		},
		{
			name:  "update",
			patch: Patch{Op: PatchUpdate, Target: "root", Props: Props{"color": "red"}},
			want:  `{"action":"UPDATE","target_id":"root","data":{"color":"red"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.patch)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("JSON = %s\nwant   %s", data, tt.want)
			}
		})
	}
}

func TestPatchString(t *testing.T) {
	p := Patch{Op: PatchCreate, Target: "f", Parent: "root", Index: 3, Before: "b", Node: &Subtree{Key: "f", Type: "Div"}}
	want := "CREATE f parent=root index=3 before=b type=Div nodes=1"
	if got := p.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	u := Patch{Op: PatchUpdate, Target: "root", Props: Props{"b": Removed, "a": 1}}
	if got := u.String(); got != "UPDATE root a=1 b=<removed>" {
		t.Errorf("String() = %q", got)
	}
}

func TestSortForDisplay(t *testing.T) {
	patches := []Patch{
		{Op: PatchRemove, Target: "e"},
		{Op: PatchCreate, Target: "f"},
		{Op: PatchMove, Target: "d"},
		{Op: PatchMove, Target: "c"},
	}

	sorted := SortForDisplay(patches)

	var got []string
	for _, p := range sorted {
		got = append(got, p.Op.String()+" "+p.Target)
	}
	want := []string{"CREATE f", "MOVE c", "MOVE d", "REMOVE e"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Order mismatch (-want +got):\n%s", diff)
	}
	if patches[0].Target != "e" {
		t.Error("SortForDisplay modified its input")
	}
}

func TestRemovedMarker(t *testing.T) {
	if !IsRemoved(Removed) {
		t.Error("IsRemoved(Removed) = false")
	}
	if IsRemoved(nil) {
		t.Error("IsRemoved(nil) = true")
	}
	data, err := json.Marshal(Props{"x": Removed, "y": nil})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"x":{"$removed":true},"y":null}` {
		t.Errorf("JSON = %s", data)
	}
}
