// Package protocol implements the binary wire format patch lists are shipped
// in to remote appliers.
//
// The format favours small frames and allocation-free encoding. Every value is
// written with explicit tags and varint lengths, no reflection is used on the
// hot path, and decoding enforces depth and allocation limits so a hostile
// peer cannot exhaust memory or the stack.
//
// # Wire Format
//
// All messages are framed with a 4-byte header:
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (2 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
//
// A Patches payload is:
//
//	seq:varint count:varint patch*
//
// and each patch starts with the action byte (vdom.PatchOp) and the target
// key, followed by the action's fields:
//
//	CREATE   parent:string index:varint before:string subtree
//	REMOVE   parent:string
//	REPLACE  subtree
//	UPDATE   count:varint (name:string value)*
//	MOVE     parent:string index:varint before:string
//
// A subtree is key, type, props and a counted list of child subtrees. Values
// are tagged: null, false, true, int (zigzag varint), float (IEEE 754),
// string, list, map and the removal marker.
//
// # Usage
//
//	payload, err := protocol.EncodePatches(&protocol.PatchesFrame{Seq: 1, Patches: patches})
//	frame := protocol.NewFrame(protocol.FramePatches, payload)
//	err = protocol.WriteFrame(conn, frame)
package protocol
