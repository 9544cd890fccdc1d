package protocol

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/treediff/pkg/vdom"
)

func TestPatchEncodeDecode(t *testing.T) {
	sub := &vdom.Subtree{
		Key:   "card",
		Type:  "Div",
		Props: vdom.Props{"class": "card", "n": int64(3)},
		Children: []*vdom.Subtree{
			{Key: "title", Type: "H1", Props: vdom.Props{"text": "Hello"}},
		},
	}

	tests := []struct {
		name  string
		patch vdom.Patch
	}{
		{"create", vdom.Patch{Op: vdom.PatchCreate, Target: "card", Parent: "root", Index: 2, Before: "footer", Node: sub}},
		{"create last", vdom.Patch{Op: vdom.PatchCreate, Target: "card", Parent: "root", Index: 7, Node: sub}},
		{"remove", vdom.Patch{Op: vdom.PatchRemove, Target: "e", Parent: "root"}},
		{"replace", vdom.Patch{Op: vdom.PatchReplace, Target: "card", Node: sub}},
		{"move", vdom.Patch{Op: vdom.PatchMove, Target: "c", Parent: "list", Index: 300, Before: "f"}},
		{
			name: "update",
			patch: vdom.Patch{Op: vdom.PatchUpdate, Target: "root", Props: vdom.Props{
				"color":   "red",
				"count":   int64(-42),
				"ratio":   1.5,
				"visible": true,
				"hidden":  false,
				"nothing": nil,
				"gone":    vdom.Removed,
				"list":    []any{"a", int64(1), []any{}},
				"style":   map[string]any{"margin": int64(0), "nested": map[string]any{"x": "y"}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pf := &PatchesFrame{Seq: 9, Patches: []vdom.Patch{tt.patch}}
			data, err := EncodePatches(pf)
			if err != nil {
				t.Fatalf("EncodePatches error: %v", err)
			}

			got, err := DecodePatches(data)
			if err != nil {
				t.Fatalf("DecodePatches error: %v", err)
			}
			if diff := cmp.Diff(pf, got); diff != "" {
				t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeReconcileOutput(t *testing.T) {
	prev := vdom.Build(vdom.N("root", "Div",
		vdom.N("a", "Div"), vdom.N("b", "Div"), vdom.N("c", "Div"), vdom.N("d", "Div"), vdom.N("e", "Div"),
	))
	next := vdom.Build(vdom.N("root", "Div", vdom.A("theme", "dark"),
		vdom.N("a", "Div"), vdom.N("d", "Div"), vdom.N("c", "Span"), vdom.N("f", "Div", vdom.N("f1", "Text")), vdom.N("b", "Div"),
	))

	patches, err := vdom.Reconcile(prev, next)
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}

	data, err := EncodePatches(&PatchesFrame{Seq: 1, Patches: patches})
	if err != nil {
		t.Fatalf("EncodePatches error: %v", err)
	}
	got, err := DecodePatches(data)
	if err != nil {
		t.Fatalf("DecodePatches error: %v", err)
	}
	if diff := cmp.Diff(patches, got.Patches); diff != "" {
		t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeNormalizesValues(t *testing.T) {
	type color string
	n := 5
	p := vdom.Patch{Op: vdom.PatchUpdate, Target: "root", Props: vdom.Props{
		"int":   7,
		"uint":  uint(8),
		"f32":   float32(0.5),
		"named": color("red"),
		"strs":  []string{"a", "b"},
		"ptr":   &n,
		"props": vdom.Props{"k": "v"},
		"imap":  map[string]int{"x": 1},
	}}

	data, err := EncodePatches(&PatchesFrame{Patches: []vdom.Patch{p}})
	if err != nil {
		t.Fatalf("EncodePatches error: %v", err)
	}
	got, err := DecodePatches(data)
	if err != nil {
		t.Fatalf("DecodePatches error: %v", err)
	}

	want := vdom.Props{
		"int":   int64(7),
		"uint":  int64(8),
		"f32":   0.5,
		"named": "red",
		"strs":  []any{"a", "b"},
		"ptr":   int64(5),
		"props": map[string]any{"k": "v"},
		"imap":  map[string]any{"x": int64(1)},
	}
	if diff := cmp.Diff(want, got.Patches[0].Props); diff != "" {
		t.Errorf("Decoded props mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	p := vdom.Patch{Op: vdom.PatchUpdate, Target: "root", Props: vdom.Props{
		"a": 1, "b": 2, "c": map[string]any{"x": 1, "y": 2, "z": 3},
	}}
	first, err := EncodePatches(&PatchesFrame{Patches: []vdom.Patch{p}})
	if err != nil {
		t.Fatalf("EncodePatches error: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, _ := EncodePatches(&PatchesFrame{Patches: []vdom.Patch{p}})
		if !bytes.Equal(first, again) {
			t.Fatal("Encoding depends on map iteration order")
		}
	}
}

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		patch vdom.Patch
		want  error
	}{
		{"unknown op", vdom.Patch{Op: vdom.PatchOp(0x7F), Target: "x"}, ErrInvalidPatchOp},
		{"create without subtree", vdom.Patch{Op: vdom.PatchCreate, Target: "x", Parent: "root"}, ErrMissingSubtree},
		{"unsupported value", vdom.Patch{Op: vdom.PatchUpdate, Target: "x", Props: vdom.Props{"ch": make(chan int)}}, ErrUnsupportedValue},
		{"value too deep", vdom.Patch{Op: vdom.PatchUpdate, Target: "x", Props: vdom.Props{"deep": nestedList(MaxValueDepth + 1)}}, ErrMaxDepthExceeded},
		{"subtree too deep", vdom.Patch{Op: vdom.PatchReplace, Target: "x", Node: nestedSubtree(MaxSubtreeDepth + 2)}, ErrMaxDepthExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodePatches(&PatchesFrame{Patches: []vdom.Patch{tt.patch}})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	valid, err := EncodePatches(&PatchesFrame{Seq: 1, Patches: []vdom.Patch{
		{Op: vdom.PatchMove, Target: "c", Parent: "root", Index: 1, Before: "d"},
	}})
	if err != nil {
		t.Fatalf("EncodePatches error: %v", err)
	}

	t.Run("every truncation fails", func(t *testing.T) {
		for i := 0; i < len(valid); i++ {
			if _, err := DecodePatches(valid[:i]); err == nil {
				t.Errorf("DecodePatches(valid[:%d]) succeeded", i)
			}
		}
	})

	t.Run("trailing bytes", func(t *testing.T) {
		_, err := DecodePatches(append(append([]byte(nil), valid...), 0x00))
		if !errors.Is(err, ErrTrailingBytes) {
			t.Errorf("err = %v, want ErrTrailingBytes", err)
		}
	})

	t.Run("invalid op", func(t *testing.T) {
		e := NewEncoder(0)
		e.PutUvarint(1)
		e.PutUvarint(1)
		e.PutByte(0x09)
		e.PutString("x")
		_, err := DecodePatches(e.Bytes())
		if !errors.Is(err, ErrInvalidPatchOp) {
			t.Errorf("err = %v, want ErrInvalidPatchOp", err)
		}
	})

	t.Run("invalid value tag", func(t *testing.T) {
		e := NewEncoder(0)
		e.PutUvarint(1)
		e.PutUvarint(1)
		e.PutByte(byte(vdom.PatchUpdate))
		e.PutString("x")
		e.PutUvarint(1)
		e.PutString("p")
		e.PutByte(0xEE)
		_, err := DecodePatches(e.Bytes())
		if !errors.Is(err, ErrInvalidValueType) {
			t.Errorf("err = %v, want ErrInvalidValueType", err)
		}
	})

	t.Run("custom depth limit", func(t *testing.T) {
		data, err := EncodePatches(&PatchesFrame{Patches: []vdom.Patch{
			{Op: vdom.PatchReplace, Target: "x", Node: nestedSubtree(5)},
		}})
		if err != nil {
			t.Fatalf("EncodePatches error: %v", err)
		}
		_, err = DecodePatchesWithLimits(data, &DepthLimits{SubtreeDepth: 2, ValueDepth: MaxValueDepth})
		if !errors.Is(err, ErrMaxDepthExceeded) {
			t.Errorf("err = %v, want ErrMaxDepthExceeded", err)
		}
	})
}

func TestEncodePatchFramesSingle(t *testing.T) {
	patches := []vdom.Patch{{Op: vdom.PatchRemove, Target: "a", Parent: "root"}}
	frames, err := EncodePatchFrames(3, patches)
	if err != nil {
		t.Fatalf("EncodePatchFrames error: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(frames))
	}
	if !frames[0].Flags.Has(FlagFinal) {
		t.Error("Single frame is not marked final")
	}

	direct, _ := EncodePatches(&PatchesFrame{Seq: 3, Patches: patches})
	if !bytes.Equal(direct, frames[0].Payload) {
		t.Error("Single-frame payload differs from EncodePatches")
	}
}

func TestEncodePatchFramesEmpty(t *testing.T) {
	frames, err := EncodePatchFrames(4, nil)
	if err != nil {
		t.Fatalf("EncodePatchFrames error: %v", err)
	}
	if len(frames) != 1 || !frames[0].Flags.Has(FlagFinal) {
		t.Fatalf("Expected one final frame, got %d", len(frames))
	}
	pf, err := NewAssembler(nil).Add(frames[0])
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if pf.Seq != 4 || len(pf.Patches) != 0 {
		t.Errorf("Assembled %+v", pf)
	}
}

func TestEncodePatchFramesSplit(t *testing.T) {
	text := strings.Repeat("x", 1000)
	var patches []vdom.Patch
	for i := 0; i < 200; i++ {
		patches = append(patches, vdom.Patch{
			Op:     vdom.PatchUpdate,
			Target: "n" + strconv.Itoa(i),
			Props:  vdom.Props{"text": text},
		})
	}

	frames, err := EncodePatchFrames(77, patches)
	if err != nil {
		t.Fatalf("EncodePatchFrames error: %v", err)
	}
	if len(frames) < 3 {
		t.Fatalf("Expected the batch to be split, got %d frames", len(frames))
	}

	a := NewAssembler(nil)
	for i, f := range frames {
		if len(f.Payload) > MaxPayloadSize {
			t.Errorf("frame %d payload %d exceeds limit", i, len(f.Payload))
		}
		last := i == len(frames)-1
		if f.Flags.Has(FlagFinal) != last {
			t.Errorf("frame %d final = %v, want %v", i, f.Flags.Has(FlagFinal), last)
		}

		var buf bytes.Buffer
		if err := WriteFrame(&buf, f); err != nil {
			t.Fatalf("WriteFrame error: %v", err)
		}
		read, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame error: %v", err)
		}

		pf, err := a.Add(read)
		if err != nil {
			t.Fatalf("Add error: %v", err)
		}
		if !last && pf != nil {
			t.Fatalf("frame %d completed the batch early", i)
		}
		if last {
			if pf == nil {
				t.Fatal("final frame did not complete the batch")
			}
			if pf.Seq != 77 {
				t.Errorf("Seq = %d, want 77", pf.Seq)
			}
			if diff := cmp.Diff(patches, pf.Patches); diff != "" {
				t.Errorf("Reassembled patches mismatch (-want +got):\n%s", diff)
			}
		}
	}
}

func TestEncodePatchFramesOversizedPatch(t *testing.T) {
	patches := []vdom.Patch{{
		Op:     vdom.PatchUpdate,
		Target: "big",
		Props:  vdom.Props{"text": strings.Repeat("y", MaxPayloadSize)},
	}}
	if _, err := EncodePatchFrames(1, patches); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("err = %v, want ErrFrameTooLarge", err)
	}
}

func TestAssemblerSequenceChange(t *testing.T) {
	first := &Frame{Type: FramePatches}
	first.Payload, _ = EncodePatches(&PatchesFrame{Seq: 1})
	second := &Frame{Type: FramePatches, Flags: FlagFinal}
	second.Payload, _ = EncodePatches(&PatchesFrame{Seq: 2})

	a := NewAssembler(nil)
	if _, err := a.Add(first); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if _, err := a.Add(second); !errors.Is(err, ErrSequenceChanged) {
		t.Errorf("err = %v, want ErrSequenceChanged", err)
	}
	if _, err := a.Add(&Frame{Type: FrameError}); !errors.Is(err, ErrInvalidFrameType) {
		t.Errorf("err = %v, want ErrInvalidFrameType", err)
	}
}

func nestedList(depth int) any {
	var v any = "leaf"
	for i := 0; i < depth; i++ {
		v = []any{v}
	}
	return v
}

func nestedSubtree(depth int) *vdom.Subtree {
	s := &vdom.Subtree{Key: "leaf", Type: "Text"}
	for i := 0; i < depth; i++ {
		s = &vdom.Subtree{Key: "n" + strconv.Itoa(i), Type: "Div", Children: []*vdom.Subtree{s}}
	}
	return s
}
