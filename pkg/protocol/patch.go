package protocol

import (
	"errors"
	"fmt"
	"math"

	"github.com/vango-dev/treediff/pkg/vdom"
)

// Patch errors.
var (
	ErrInvalidPatchOp  = errors.New("protocol: invalid patch op")
	ErrMissingSubtree  = errors.New("protocol: CREATE or REPLACE without subtree")
	ErrSequenceChanged = errors.New("protocol: sequence changed before final frame")
)

// PatchesFrame represents a batch of patches with sequence number.
type PatchesFrame struct {
	Seq     uint64
	Patches []vdom.Patch
}

// EncodePatches encodes a patches frame to bytes.
func EncodePatches(pf *PatchesFrame) ([]byte, error) {
	e := NewEncoder(0)
	if err := EncodePatchesTo(e, pf, nil); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// EncodePatchesTo encodes a patches frame using the provided encoder.
// A nil limits uses DefaultDepthLimits.
func EncodePatchesTo(e *Encoder, pf *PatchesFrame, limits *DepthLimits) error {
	limits = limits.orDefault()
	e.PutUvarint(pf.Seq)
	e.PutCount(len(pf.Patches))

	for i := range pf.Patches {
		if err := encodePatch(e, &pf.Patches[i], limits); err != nil {
			return fmt.Errorf("patch %d (%s %s): %w", i, pf.Patches[i].Op, pf.Patches[i].Target, err)
		}
	}
	return nil
}

// encodePatch encodes a single patch.
func encodePatch(e *Encoder, p *vdom.Patch, limits *DepthLimits) error {
	e.PutByte(byte(p.Op))
	e.PutString(p.Target)

	switch p.Op {
	case vdom.PatchCreate:
		writePosition(e, p)
		return encodeSubtree(e, p.Node, 0, limits)

	case vdom.PatchRemove:
		e.PutString(p.Parent)

	case vdom.PatchReplace:
		return encodeSubtree(e, p.Node, 0, limits)

	case vdom.PatchUpdate:
		return encodeProps(e, p.Props, limits.ValueDepth)

	case vdom.PatchMove:
		writePosition(e, p)

	default:
		return fmt.Errorf("%w: 0x%02x", ErrInvalidPatchOp, byte(p.Op))
	}
	return nil
}

func writePosition(e *Encoder, p *vdom.Patch) {
	e.PutString(p.Parent)
	e.PutUvarint(uint64(p.Index))
	e.PutString(p.Before)
}

func encodeSubtree(e *Encoder, s *vdom.Subtree, depth int, limits *DepthLimits) error {
	if s == nil {
		return ErrMissingSubtree
	}
	if err := checkDepth(depth, limits.SubtreeDepth); err != nil {
		return err
	}
	e.PutString(s.Key)
	e.PutString(s.Type)
	if err := encodeProps(e, s.Props, limits.ValueDepth); err != nil {
		return fmt.Errorf("node %q: %w", s.Key, err)
	}
	e.PutCount(len(s.Children))
	for _, c := range s.Children {
		if err := encodeSubtree(e, c, depth+1, limits); err != nil {
			return err
		}
	}
	return nil
}

// DecodePatches decodes a patches frame from bytes with the default limits.
func DecodePatches(data []byte) (*PatchesFrame, error) {
	return DecodePatchesWithLimits(data, nil)
}

// DecodePatchesWithLimits decodes a patches frame from bytes. The payload
// must be consumed exactly.
func DecodePatchesWithLimits(data []byte, limits *DepthLimits) (*PatchesFrame, error) {
	d := NewDecoder(data)
	pf, err := DecodePatchesFrom(d, limits)
	if err != nil {
		return nil, err
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return pf, nil
}

// DecodePatchesFrom decodes a patches frame from a decoder.
func DecodePatchesFrom(d *Decoder, limits *DepthLimits) (*PatchesFrame, error) {
	limits = limits.orDefault()

	seq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}

	count, err := d.ReadCount()
	if err != nil {
		return nil, err
	}

	patches := make([]vdom.Patch, count)
	for i := 0; i < count; i++ {
		if err := decodePatch(d, &patches[i], limits); err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
	}

	return &PatchesFrame{
		Seq:     seq,
		Patches: patches,
	}, nil
}

// decodePatch decodes a single patch.
func decodePatch(d *Decoder, p *vdom.Patch, limits *DepthLimits) error {
	opByte, err := d.ReadByte()
	if err != nil {
		return err
	}
	p.Op = vdom.PatchOp(opByte)

	p.Target, err = d.ReadString()
	if err != nil {
		return err
	}

	switch p.Op {
	case vdom.PatchCreate:
		if err := readPosition(d, p); err != nil {
			return err
		}
		p.Node, err = decodeSubtree(d, 0, limits)
		return err

	case vdom.PatchRemove:
		p.Parent, err = d.ReadString()
		return err

	case vdom.PatchReplace:
		p.Node, err = decodeSubtree(d, 0, limits)
		return err

	case vdom.PatchUpdate:
		p.Props, err = decodeProps(d, limits.ValueDepth)
		return err

	case vdom.PatchMove:
		return readPosition(d, p)

	default:
		return fmt.Errorf("%w: 0x%02x", ErrInvalidPatchOp, opByte)
	}
}

func readPosition(d *Decoder, p *vdom.Patch) error {
	var err error
	if p.Parent, err = d.ReadString(); err != nil {
		return err
	}
	index, err := d.ReadUvarint()
	if err != nil {
		return err
	}
	if index > math.MaxInt32 {
		return ErrCollectionTooLarge
	}
	p.Index = int(index)
	p.Before, err = d.ReadString()
	return err
}

func decodeSubtree(d *Decoder, depth int, limits *DepthLimits) (*vdom.Subtree, error) {
	if err := checkDepth(depth, limits.SubtreeDepth); err != nil {
		return nil, err
	}

	s := &vdom.Subtree{}
	var err error
	if s.Key, err = d.ReadString(); err != nil {
		return nil, err
	}
	if s.Type, err = d.ReadString(); err != nil {
		return nil, err
	}
	if s.Props, err = decodeProps(d, limits.ValueDepth); err != nil {
		return nil, err
	}

	count, err := d.ReadCount()
	if err != nil {
		return nil, err
	}
	if count > 0 {
		s.Children = make([]*vdom.Subtree, count)
		for i := 0; i < count; i++ {
			if s.Children[i], err = decodeSubtree(d, depth+1, limits); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// EncodePatchFrames encodes patches into one or more Patches frames, each
// within MaxPayloadSize. Every frame repeats seq and the last one carries
// FlagFinal. A single patch too large for a frame fails with ErrFrameTooLarge.
func EncodePatchFrames(seq uint64, patches []vdom.Patch) ([]*Frame, error) {
	limits := DefaultDepthLimits()
	seqLen := uvarintLen(seq)

	var frames []*Frame
	var chunk [][]byte
	size := 0

	flush := func(final bool) {
		e := NewEncoder(seqLen + uvarintLen(uint64(len(chunk))) + size)
		e.PutUvarint(seq)
		e.PutCount(len(chunk))
		for _, b := range chunk {
			e.PutRaw(b)
		}
		f := NewFrame(FramePatches, e.Bytes())
		if final {
			f.Flags |= FlagFinal
		}
		frames = append(frames, f)
		chunk, size = nil, 0
	}

	for i := range patches {
		e := NewEncoder(0)
		if err := encodePatch(e, &patches[i], limits); err != nil {
			return nil, fmt.Errorf("patch %d (%s %s): %w", i, patches[i].Op, patches[i].Target, err)
		}
		b := e.Bytes()

		if seqLen+uvarintLen(1)+len(b) > MaxPayloadSize {
			return nil, fmt.Errorf("patch %d (%s %s): %w", i, patches[i].Op, patches[i].Target, ErrFrameTooLarge)
		}
		next := len(chunk) + 1
		if len(chunk) > 0 && (seqLen+uvarintLen(uint64(next))+size+len(b) > MaxPayloadSize || next > MaxCollectionCount) {
			flush(false)
		}
		chunk = append(chunk, b)
		size += len(b)
	}
	flush(true)
	return frames, nil
}

// Assembler joins the Patches frames of one sequence number back together.
type Assembler struct {
	seq     uint64
	started bool
	patches []vdom.Patch
	limits  *DepthLimits
}

// NewAssembler creates an Assembler that decodes with the given limits.
func NewAssembler(limits *DepthLimits) *Assembler {
	return &Assembler{limits: limits.orDefault()}
}

// Add consumes one frame. It returns the complete batch when f carries
// FlagFinal and nil otherwise.
func (a *Assembler) Add(f *Frame) (*PatchesFrame, error) {
	if f.Type != FramePatches {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFrameType, f.Type)
	}
	pf, err := DecodePatchesWithLimits(f.Payload, a.limits)
	if err != nil {
		return nil, err
	}
	if a.started && pf.Seq != a.seq {
		a.reset()
		return nil, ErrSequenceChanged
	}
	a.seq, a.started = pf.Seq, true
	a.patches = append(a.patches, pf.Patches...)

	if !f.Flags.Has(FlagFinal) {
		return nil, nil
	}
	out := &PatchesFrame{Seq: a.seq, Patches: a.patches}
	a.reset()
	return out, nil
}

func (a *Assembler) reset() {
	a.seq, a.started, a.patches = 0, false, nil
}

// uvarintLen returns the number of bytes needed to encode v as a varint.
func uvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		n++
		v >>= 7
	}
	return n
}
