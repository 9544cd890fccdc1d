package vdom

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReconcileBothEmpty(t *testing.T) {
	patches, err := Reconcile(Tree{}, Tree{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(patches) != 0 {
		t.Errorf("Expected 0 patches, got %d", len(patches))
	}
}

func TestReconcileIdentical(t *testing.T) {
	tree := Build(N("root", "Div", A("class", "app"),
		N("header", "Header", N("title", "Text", A("text", "Hi"))),
		N("list", "Ul",
			N("i1", "Li", Props{"n": 1, "tags": []any{"x", "y"}}),
			N("i2", "Li", Props{"n": 2}),
		),
	))

	patches, err := Reconcile(tree, tree)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(patches) != 0 {
		t.Errorf("Expected 0 patches for identical trees, got %v", patches)
	}
}

func TestReconcileIdenticalNaNAndFuncs(t *testing.T) {
	onClick := func() {}
	tree := Build(N("root", "Div", A("w", math.NaN()), A("onClick", onClick),
		N("chart", "Svg", Props{"points": []any{1.5, math.NaN()}}),
	))

	patches, err := Reconcile(tree, tree)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(patches) != 0 {
		t.Errorf("Expected 0 patches for identical trees, got %v", patches)
	}
}

func TestReconcilePropChange(t *testing.T) {
	prev := Build(N("root", "Div", A("color", "blue")))
	next := Build(N("root", "Div", A("color", "red")))

	patches, err := Reconcile(prev, next)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("Expected 1 patch, got %d", len(patches))
	}
	if patches[0].Op != PatchUpdate {
		t.Errorf("Op = %v, want UPDATE", patches[0].Op)
	}
	if patches[0].Target != "root" {
		t.Errorf("Target = %q, want root", patches[0].Target)
	}
	if diff := cmp.Diff(Props{"color": "red"}, patches[0].Props); diff != "" {
		t.Errorf("Props mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcilePropRemoved(t *testing.T) {
	prev := Build(N("root", "Div", Props{"a": 1, "b": 2}))
	next := Build(N("root", "Div", Props{"a": 1}))

	patches, err := Reconcile(prev, next)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("Expected 1 patch, got %d", len(patches))
	}
	if len(patches[0].Props) != 1 || !IsRemoved(patches[0].Props["b"]) {
		t.Errorf("Props = %v, want only b removed", patches[0].Props)
	}

	data, err := json.Marshal(patches[0])
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"action":"UPDATE","target_id":"root","data":{"b":{"$removed":true}}}`
	if string(data) != want {
		t.Errorf("JSON = %s, want %s", data, want)
	}
}

func TestReconcileTypeChange(t *testing.T) {
	prev := Build(N("root", "Div", N("c1", "Text")))
	next := Build(N("root", "Div", N("c1", "Button")))

	patches, err := Reconcile(prev, next)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("Expected 1 patch, got %d", len(patches))
	}
	p := patches[0]
	if p.Op != PatchReplace || p.Target != "c1" {
		t.Errorf("Patch = %s, want REPLACE c1", p)
	}
	if p.Node == nil || p.Node.Type != "Button" {
		t.Errorf("Node = %+v, want Button subtree", p.Node)
	}
}

func TestReconcileReplaceSkipsDescendants(t *testing.T) {
	prev := Build(N("root", "Div",
		N("a", "Div", N("x", "Text", A("v", 1)), N("y", "Text")),
	))
	next := Build(N("root", "Div",
		N("a", "Section", N("y", "Text", A("v", 2)), N("z", "Text")),
	))

	patches, err := Reconcile(prev, next)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("Expected only the REPLACE, got %v", patches)
	}

	want := &Subtree{Key: "a", Type: "Section", Children: []*Subtree{
		{Key: "y", Type: "Text", Props: Props{"v": 2}},
		{Key: "z", Type: "Text"},
	}}
	if diff := cmp.Diff(want, patches[0].Node); diff != "" {
		t.Errorf("Subtree mismatch (-want +got):\n%s", diff)
	}
	assertPatchesReproduce(t, prev, next, patches)
}

func TestReconcileInsertChild(t *testing.T) {
	prev := Build(N("root", "Div", N("a", "Div"), N("c", "Div")))
	next := Build(N("root", "Div", N("a", "Div"), N("b", "Div"), N("c", "Div")))

	patches, err := Reconcile(prev, next)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("Expected 1 patch, got %v", patches)
	}
	p := patches[0]
	if p.Op != PatchCreate || p.Target != "b" {
		t.Fatalf("Patch = %s, want CREATE b", p)
	}
	if p.Parent != "root" || p.Index != 1 || p.Before != "c" {
		t.Errorf("Position = (%s, %d, %q), want (root, 1, c)", p.Parent, p.Index, p.Before)
	}
	assertPatchesReproduce(t, prev, next, patches)
}

func TestReconcilePrepend(t *testing.T) {
	prev := Build(N("root", "Div", N("b", "Div"), N("c", "Div")))
	next := Build(N("root", "Div", N("a", "Div"), N("b", "Div"), N("c", "Div")))

	patches, err := Reconcile(prev, next)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	counts := Count(patches)
	if counts[PatchCreate] != 1 || len(patches) != 1 {
		t.Fatalf("Expected a single CREATE, got %v", patches)
	}
	if patches[0].Before != "b" || patches[0].Index != 0 {
		t.Errorf("Position = (%d, %q), want (0, b)", patches[0].Index, patches[0].Before)
	}
}

func TestReconcileReorder(t *testing.T) {
	prev := Build(N("root", "Div",
		N("a", "Div"), N("b", "Div"), N("c", "Div"), N("d", "Div"), N("e", "Div"),
	))
	next := Build(N("root", "Div",
		N("a", "Div"), N("d", "Div"), N("c", "Div"), N("f", "Div"), N("b", "Div"),
	))

	patches, err := Reconcile(prev, next)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var got []string
	for _, p := range patches {
		got = append(got, p.Op.String()+" "+p.Target)
	}
	want := []string{"REMOVE e", "CREATE f", "MOVE c", "MOVE d"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Patches mismatch (-want +got):\n%s", diff)
	}
	assertPatchesReproduce(t, prev, next, patches)
}

func TestReconcileRemoveAllChildren(t *testing.T) {
	prev := Build(N("root", "Div", N("a", "Div", N("a1", "Text")), N("b", "Div")))
	next := Tree{"root": {Key: "root", Type: "Div", Children: []string{}}}

	patches, err := Reconcile(prev, next)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(patches) != 2 {
		t.Fatalf("Expected 2 patches, got %v", patches)
	}
	for i, key := range []string{"a", "b"} {
		if patches[i].Op != PatchRemove || patches[i].Target != key {
			t.Errorf("patches[%d] = %s, want REMOVE %s", i, patches[i], key)
		}
		if patches[i].Data() != nil {
			t.Errorf("patches[%d].Data() = %v, want nil", i, patches[i].Data())
		}
	}
	assertPatchesReproduce(t, prev, next, patches)
}

func TestReconcileCreateCarriesSubtree(t *testing.T) {
	prev := Build(N("root", "Div"))
	next := Build(N("root", "Div",
		N("card", "Div", A("class", "card"),
			N("title", "H1", A("text", "Hello")),
			N("body", "P"),
		),
	))

	patches, err := Reconcile(prev, next)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("Expected a single CREATE, got %v", patches)
	}
	if n := patches[0].Node.Count(); n != 3 {
		t.Errorf("Subtree.Count() = %d, want 3", n)
	}

	data := patches[0].Data()
	node, ok := data["node"].(map[string]any)
	if !ok {
		t.Fatalf("data[node] = %T, want map", data["node"])
	}
	if node["type"] != "Div" {
		t.Errorf("node type = %v, want Div", node["type"])
	}
	if data["before"] != nil {
		t.Errorf("before = %v, want nil for last child", data["before"])
	}
}

func TestReconcileReparent(t *testing.T) {
	prev := Build(N("root", "Div",
		N("left", "Div", N("x", "Text", A("v", 1))),
		N("right", "Div"),
	))
	next := Build(N("root", "Div",
		N("left", "Div"),
		N("right", "Div", N("x", "Text", A("v", 1))),
	))

	patches, err := Reconcile(prev, next)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(patches) != 2 {
		t.Fatalf("Expected REMOVE then CREATE, got %v", patches)
	}
	if patches[0].Op != PatchRemove || patches[0].Parent != "left" {
		t.Errorf("patches[0] = %s (parent %s), want REMOVE from left", patches[0], patches[0].Parent)
	}
	if patches[1].Op != PatchCreate || patches[1].Parent != "right" {
		t.Errorf("patches[1] = %s, want CREATE under right", patches[1])
	}
	assertPatchesReproduce(t, prev, next, patches)
}

func TestReconcileReparentOrder(t *testing.T) {
	tests := []struct {
		name       string
		prev, next Tree
		want       []string
	}{
		{
			name: "new parent visited first",
			prev: Build(N("root", "Div",
				N("right", "Div"),
				N("left", "Div", N("x", "Text", A("v", 1))),
			)),
			next: Build(N("root", "Div",
				N("right", "Div", N("x", "Text", A("v", 1))),
				N("left", "Div"),
			)),
			want: []string{
				"REMOVE x",
				"CREATE x parent=right index=0 type=Text nodes=1",
			},
		},
		{
			name: "old parent removed",
			prev: Build(N("root", "Div",
				N("b", "Div"),
				N("c", "Div", N("a", "Div", N("x", "Text"))),
			)),
			next: Build(N("root", "Div",
				N("b", "Div", N("x", "Text")),
				N("c", "Div"),
			)),
			want: []string{
				"REMOVE a",
				"CREATE x parent=b index=0 type=Text nodes=1",
			},
		},
		{
			name: "old parent replaced",
			prev: Build(N("root", "Div",
				N("b", "Div"),
				N("a", "Div", N("x", "Text")),
			)),
			next: Build(N("root", "Div",
				N("b", "Div", N("x", "Text")),
				N("a", "Span"),
			)),
			want: []string{
				"REPLACE a type=Span nodes=1",
				"CREATE x parent=b index=0 type=Text nodes=1",
			},
		},
		{
			name: "replacement adopts key of later replacement",
			prev: Build(N("root", "Div",
				N("a", "Div"),
				N("b", "Div", N("x", "Text")),
			)),
			next: Build(N("root", "Div",
				N("a", "Span", N("x", "Text")),
				N("b", "Span"),
			)),
			want: []string{
				"REPLACE b type=Span nodes=1",
				"REPLACE a type=Span nodes=2",
			},
		},
		{
			name: "replacements trade keys",
			prev: Build(N("root", "Div",
				N("a", "Div", N("x", "Text")),
				N("b", "Div", N("y", "Text")),
			)),
			next: Build(N("root", "Div",
				N("a", "Span", N("y", "Text")),
				N("b", "Span", N("x", "Text")),
			)),
			want: []string{
				"REMOVE x",
				"REMOVE y",
				"REPLACE a type=Span nodes=2",
				"REPLACE b type=Span nodes=2",
			},
		},
		{
			name: "moved key keeps its anchor",
			prev: Build(N("root", "Div",
				N("list", "Ul", N("i1", "Li"), N("i2", "Li")),
				N("trash", "Ul", N("i3", "Li")),
			)),
			next: Build(N("root", "Div",
				N("list", "Ul", N("i3", "Li"), N("i2", "Li"), N("i1", "Li")),
				N("trash", "Ul"),
			)),
			want: []string{
				"REMOVE i3",
				"MOVE i2 parent=list index=1 before=i1",
				"CREATE i3 parent=list index=0 before=i2 type=Li nodes=1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, opts := range []Options{{}, {ParallelDepth: 2}} {
				patches, err := NewReconciler(opts).Reconcile(tt.prev, tt.next)
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				got := make([]string, len(patches))
				for i, p := range patches {
					got[i] = p.String()
				}
				if diff := cmp.Diff(tt.want, got); diff != "" {
					t.Errorf("%+v: patches mismatch (-want +got):\n%s", opts, diff)
				}
				assertPatchesReproduce(t, tt.prev, tt.next, patches)
			}
		})
	}
}

func TestReconcileCustomRoot(t *testing.T) {
	prev := Build(N("app", "Div", A("v", 1)))
	next := Build(N("app", "Div", A("v", 2)))

	if _, err := Reconcile(prev, next); !errors.Is(err, ErrMalformedTree) {
		t.Fatalf("Expected ErrMalformedTree with default root, got %v", err)
	}

	r := NewReconciler(Options{RootKey: "app"})
	patches, err := r.Reconcile(prev, next)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(patches) != 1 || patches[0].Target != "app" {
		t.Errorf("Expected UPDATE app, got %v", patches)
	}
}

func TestReconcileIgnoreProps(t *testing.T) {
	prev := Build(N("root", "Div", Props{"itemBuilder": "f1", "onTap": "h1", "color": "red"}))
	next := Build(N("root", "Div", Props{"itemBuilder": "f2", "onTap": "h2", "color": "red"}))

	patches, err := Reconcile(prev, next)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(patches) != 1 || len(patches[0].Props) != 2 {
		t.Fatalf("Expected both props to update by default, got %v", patches)
	}

	r := NewReconciler(Options{IgnoreProps: []string{"itemBuilder"}, SkipEventHandlers: true})
	patches, err = r.Reconcile(prev, next)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(patches) != 0 {
		t.Errorf("Expected 0 patches with ignored props, got %v", patches)
	}
}

func TestReconcileDoesNotAliasInputs(t *testing.T) {
	style := map[string]any{"color": "red"}
	prev := Build(N("root", "Div"))
	next := Build(N("root", "Div", A("style", style), N("child", "P", A("style", style))))

	patches, err := Reconcile(prev, next)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	style["color"] = "blue"

	if got := patches[0].Props["style"].(map[string]any)["color"]; got != "red" {
		t.Errorf("UPDATE prop aliased input: color = %v", got)
	}
	if got := patches[1].Node.Props["style"].(map[string]any)["color"]; got != "red" {
		t.Errorf("CREATE subtree aliased input: color = %v", got)
	}
}

func TestReconcileDoesNotMutateInputs(t *testing.T) {
	build := func() (Tree, Tree) {
		prev := Build(N("root", "Div", N("a", "Div"), N("b", "Div", A("v", 1)), N("c", "Div")))
		next := Build(N("root", "Div", N("c", "Div"), N("b", "Span"), N("d", "Div")))
		return prev, next
	}
	prev, next := build()
	wantPrev, wantNext := build()

	if _, err := Reconcile(prev, next); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diff := cmp.Diff(wantPrev, prev); diff != "" {
		t.Errorf("prev mutated (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantNext, next); diff != "" {
		t.Errorf("next mutated (-want +got):\n%s", diff)
	}
}

func TestReconcileMalformed(t *testing.T) {
	tests := []struct {
		name       string
		prev, next Tree
		side       Side
		kind       MalformedKind
		key        string
	}{
		{
			name: "old root missing",
			prev: Build(N("other", "Div")),
			next: Build(N("root", "Div")),
			side: SideOld,
			kind: MalformedRootMissing,
			key:  "root",
		},
		{
			name: "new root missing",
			prev: Build(N("root", "Div")),
			next: Tree{},
			side: SideNew,
			kind: MalformedRootMissing,
			key:  "root",
		},
		{
			name: "dangling child",
			prev: Build(N("root", "Div")),
			next: Tree{"root": {Key: "root", Type: "Div", Children: []string{"ghost"}}},
			side: SideNew,
			kind: MalformedDanglingChild,
			key:  "ghost",
		},
		{
			name: "cycle",
			prev: Build(N("root", "Div")),
			next: Tree{
				"root": {Key: "root", Type: "Div", Children: []string{"a"}},
				"a":    {Key: "a", Type: "Div", Children: []string{"root"}},
			},
			side: SideNew,
			kind: MalformedSharedChild,
			key:  "root",
		},
		{
			name: "shared child",
			prev: Tree{
				"root": {Key: "root", Type: "Div", Children: []string{"a", "b"}},
				"a":    {Key: "a", Type: "Div", Children: []string{"x"}},
				"b":    {Key: "b", Type: "Div", Children: []string{"x"}},
				"x":    {Key: "x", Type: "Text"},
			},
			next: Build(N("root", "Div")),
			side: SideOld,
			kind: MalformedSharedChild,
			key:  "x",
		},
		{
			name: "key mismatch",
			prev: Tree{"root": {Key: "main", Type: "Div"}},
			next: Build(N("root", "Div")),
			side: SideOld,
			kind: MalformedKeyMismatch,
			key:  "root",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patches, err := Reconcile(tt.prev, tt.next)
			if patches != nil {
				t.Errorf("Expected no patches on error, got %v", patches)
			}
			if !errors.Is(err, ErrMalformedTree) {
				t.Fatalf("Expected ErrMalformedTree, got %v", err)
			}
			var me *MalformedTreeError
			if !errors.As(err, &me) {
				t.Fatalf("Expected *MalformedTreeError, got %T", err)
			}
			if me.Side != tt.side {
				t.Errorf("Side = %q, want %q", me.Side, tt.side)
			}
			if me.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", me.Kind, tt.kind)
			}
			if me.Key != tt.key {
				t.Errorf("Key = %q, want %q", me.Key, tt.key)
			}
		})
	}
}

func TestReconcileDuplicateChild(t *testing.T) {
	prev := Build(N("root", "Div", N("a", "Div")))
	next := Tree{
		"root": {Key: "root", Type: "Div", Children: []string{"a", "b", "a"}},
		"a":    {Key: "a", Type: "Div"},
		"b":    {Key: "b", Type: "Div"},
	}

	_, err := Reconcile(prev, next)
	var dup *DuplicateKeyError
	if !errors.As(err, &dup) {
		t.Fatalf("Expected *DuplicateKeyError, got %v", err)
	}
	if dup.Parent != "root" || dup.Key != "a" || dup.First != 0 || dup.Second != 2 {
		t.Errorf("DuplicateKeyError = %+v", dup)
	}
	if dup.Side != SideNew {
		t.Errorf("Side = %q, want new", dup.Side)
	}
	if !strings.Contains(err.Error(), `"a"`) {
		t.Errorf("Error() = %q, want the key mentioned", err.Error())
	}
}

func TestReconcileParallelMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	id := 1000
	prev := randomTree(rng, 400)
	next := mutateTree(rng, prev, &id)

	want, err := Reconcile(prev, next)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, opts := range []Options{
		{ParallelDepth: 1},
		{ParallelDepth: 3, Workers: 2},
		{ParallelDepth: 8, Workers: 4},
	} {
		got, err := NewReconciler(opts).Reconcile(prev, next)
		if err != nil {
			t.Fatalf("%+v: unexpected error: %v", opts, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%+v: output differs from sequential (-want +got):\n%s", opts, diff)
		}
	}
}

func TestReconcileRandomReplay(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	id := 10000
	for round := 0; round < 100; round++ {
		prev := randomTree(rng, 1+rng.Intn(60))
		next := mutateTree(rng, prev, &id)

		patches, err := Reconcile(prev, next)
		if err != nil {
			t.Fatalf("round %d: unexpected error: %v", round, err)
		}
		assertPatchesReproduce(t, prev, next, patches)

		// No patch is emitted twice for the same key.
		seen := make(map[string]bool)
		for _, p := range patches {
			id := p.Op.String() + " " + p.Target
			if seen[id] {
				t.Fatalf("round %d: %s emitted twice", round, id)
			}
			seen[id] = true
		}
	}
}

func TestDiffNode(t *testing.T) {
	tests := []struct {
		name       string
		prev, next Node
		want       NodeOutcome
	}{
		{"same", Node{Type: "Div", Props: Props{"a": 1}}, Node{Type: "Div", Props: Props{"a": 1}}, NodeUnchanged},
		{"nil vs empty props", Node{Type: "Div"}, Node{Type: "Div", Props: Props{}}, NodeUnchanged},
		{"prop change", Node{Type: "Div", Props: Props{"a": 1}}, Node{Type: "Div", Props: Props{"a": 2}}, NodeUpdate},
		{"type change wins", Node{Type: "Div", Props: Props{"a": 1}}, Node{Type: "Span", Props: Props{"a": 2}}, NodeReplace},
		{"children ignored", Node{Type: "Div", Children: []string{"x"}}, Node{Type: "Div"}, NodeUnchanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiffNode(tt.prev, tt.next)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got.Outcome != tt.want {
				t.Errorf("Outcome = %v, want %v", got.Outcome, tt.want)
			}
			if got.Outcome != NodeUpdate && got.Props != nil {
				t.Errorf("Props = %v, want nil", got.Props)
			}
		})
	}
}

// randomTree builds a snapshot of n nodes attached to random earlier nodes.
func randomTree(rng *rand.Rand, n int) Tree {
	types := []string{"Div", "Span", "Text"}
	t := Tree{"root": {Key: "root", Type: "Div"}}
	keys := []string{"root"}
	for i := 1; i < n; i++ {
		key := "n" + strconv.Itoa(i)
		parent := keys[rng.Intn(len(keys))]
		p := t[parent]
		p.Children = append(p.Children, key)
		t[parent] = p
		t[key] = Node{Key: key, Type: types[rng.Intn(len(types))], Props: Props{"v": rng.Intn(3)}}
		keys = append(keys, key)
	}
	return t
}

// mutateTree derives a new snapshot from prev: children are dropped,
// shuffled and inserted, types and props change, and a few keys move with
// their subtrees to another parent.
func mutateTree(rng *rand.Rand, prev Tree, id *int) Tree {
	adopted, moved := reparentings(rng, prev)

	next := make(Tree)
	var visit func(key string)
	visit = func(key string) {
		n := prev[key]
		out := Node{Key: key, Type: n.Type}

		if len(n.Props) > 0 {
			out.Props = make(Props, len(n.Props))
			for k, v := range n.Props {
				out.Props[k] = v
			}
		}
		if key != "root" && rng.Intn(10) == 0 {
			out.Type = n.Type + "X"
		}
		switch rng.Intn(4) {
		case 0:
			if out.Props == nil {
				out.Props = make(Props)
			}
			out.Props["v"] = rng.Intn(3)
		case 1:
			delete(out.Props, "v")
		case 2:
			if out.Props == nil {
				out.Props = make(Props)
			}
			out.Props["w"] = []any{rng.Intn(2), "w"}
		}

		var kept []string
		for _, c := range n.Children {
			if !moved[c] && rng.Intn(6) != 0 {
				kept = append(kept, c)
			}
		}
		for _, c := range adopted[key] {
			pos := rng.Intn(len(kept) + 1)
			kept = append(kept[:pos], append([]string{c}, kept[pos:]...)...)
		}
		if rng.Intn(2) == 0 {
			rng.Shuffle(len(kept), func(i, j int) { kept[i], kept[j] = kept[j], kept[i] })
		}
		for adds := rng.Intn(3); adds > 0; adds-- {
			*id++
			fresh := "new" + strconv.Itoa(*id)
			next[fresh] = Node{Key: fresh, Type: "Text", Props: Props{"v": *id}}
			pos := rng.Intn(len(kept) + 1)
			kept = append(kept[:pos], append([]string{fresh}, kept[pos:]...)...)
		}
		out.Children = kept
		next[key] = out

		for _, c := range kept {
			if _, ok := prev[c]; ok {
				visit(c)
			}
		}
	}
	visit("root")
	return next
}

// reparentings picks up to three keys of prev to move under another parent.
// Moved subtrees are disjoint and no new parent lies inside one, so the
// result stays a tree.
func reparentings(rng *rand.Rand, prev Tree) (map[string][]string, map[string]bool) {
	parents := make(map[string]string)
	order := []string{"root"}
	for i := 0; i < len(order); i++ {
		for _, c := range prev[order[i]].Children {
			parents[c] = order[i]
			order = append(order, c)
		}
	}
	inside := func(key, top string) bool {
		for k := key; k != ""; k = parents[k] {
			if k == top {
				return true
			}
		}
		return false
	}

	adopted := make(map[string][]string)
	moved := make(map[string]bool)
	var chosen [][2]string
	if len(order) < 3 {
		return adopted, moved
	}
	for tries := rng.Intn(4); tries > 0; tries-- {
		key := order[1+rng.Intn(len(order)-1)]
		to := order[rng.Intn(len(order))]
		if to == parents[key] || inside(to, key) {
			continue
		}
		ok := true
		for _, c := range chosen {
			if inside(key, c[0]) || inside(c[0], key) || inside(to, c[0]) || inside(c[1], key) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		chosen = append(chosen, [2]string{key, to})
		adopted[to] = append(adopted[to], key)
		moved[key] = true
	}
	return adopted, moved
}
