package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// FrameHeaderSize is the fixed header in front of every payload.
	FrameHeaderSize = 4

	// MaxPayloadSize is the largest payload the 16-bit length can describe.
	MaxPayloadSize = 1<<16 - 1
)

// FrameType identifies the payload carried by a frame. All frames travel
// from server to client.
type FrameType uint8

const (
	FrameHello   FrameType = 0x00 // connection id
	FramePatches FrameType = 0x02 // one chunk of a patch list
	FrameError   FrameType = 0x05 // ErrorMessage
)

var frameTypeNames = map[FrameType]string{
	FrameHello:   "Hello",
	FramePatches: "Patches",
	FrameError:   "Error",
}

func (ft FrameType) String() string {
	if name, ok := frameTypeNames[ft]; ok {
		return name
	}
	return "Unknown"
}

func (ft FrameType) known() bool {
	_, ok := frameTypeNames[ft]
	return ok
}

// FrameFlags modify how a frame is processed.
type FrameFlags uint8

// FlagFinal marks the last frame of a patch list split across frames.
const FlagFinal FrameFlags = 0x04

// Has reports whether all bits of flag are set.
func (ff FrameFlags) Has(flag FrameFlags) bool {
	return ff&flag == flag
}

var (
	ErrFrameTooLarge    = errors.New("protocol: frame payload too large")
	ErrInvalidFrameType = errors.New("protocol: invalid frame type")
)

// Frame is one binary WebSocket message:
//
//	byte 0     frame type
//	byte 1     flags
//	bytes 2-3  payload length, big-endian
//	bytes 4-   payload
type Frame struct {
	Type    FrameType
	Flags   FrameFlags
	Payload []byte
}

// NewFrame returns a frame of type ft without flags.
func NewFrame(ft FrameType, payload []byte) *Frame {
	return &Frame{Type: ft, Payload: payload}
}

// Encode returns the header followed by the payload. It does not check the
// payload size; WriteFrame does.
func (f *Frame) Encode() []byte {
	buf := make([]byte, FrameHeaderSize, FrameHeaderSize+len(f.Payload))
	buf[0] = byte(f.Type)
	buf[1] = byte(f.Flags)
	binary.BigEndian.PutUint16(buf[2:], uint16(len(f.Payload)))
	return append(buf, f.Payload...)
}

// parseHeader returns the frame described by header with an allocated but
// unfilled payload.
func parseHeader(header []byte) (*Frame, error) {
	ft := FrameType(header[0])
	if !ft.known() {
		return nil, fmt.Errorf("%w: 0x%02x", ErrInvalidFrameType, header[0])
	}
	length := binary.BigEndian.Uint16(header[2:])
	return &Frame{
		Type:    ft,
		Flags:   FrameFlags(header[1]),
		Payload: make([]byte, length),
	}, nil
}

// DecodeFrame decodes one frame. data must hold exactly that frame.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < FrameHeaderSize {
		return nil, io.ErrUnexpectedEOF
	}
	f, err := parseHeader(data[:FrameHeaderSize])
	if err != nil {
		return nil, err
	}
	body := data[FrameHeaderSize:]
	switch {
	case len(body) < len(f.Payload):
		return nil, io.ErrUnexpectedEOF
	case len(body) > len(f.Payload):
		return nil, ErrTrailingBytes
	}
	copy(f.Payload, body)
	return f, nil
}

// ReadFrame reads the next frame from a stream. A clean end of stream before
// the header is reported as io.EOF.
func ReadFrame(r io.Reader) (*Frame, error) {
	var header [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	f, err := parseHeader(header[:])
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return f, nil
}

// WriteFrame writes f to w, rejecting payloads over MaxPayloadSize.
func WriteFrame(w io.Writer, f *Frame) error {
	if len(f.Payload) > MaxPayloadSize {
		return ErrFrameTooLarge
	}
	_, err := w.Write(f.Encode())
	return err
}

// NewHelloFrame announces the connection id. It is the first frame on every
// connection.
func NewHelloFrame(connID string) *Frame {
	e := NewEncoder(len(connID) + 2)
	e.PutString(connID)
	return NewFrame(FrameHello, e.Bytes())
}

// DecodeHello returns the connection id carried by a Hello payload.
func DecodeHello(payload []byte) (string, error) {
	d := NewDecoder(payload)
	id, err := d.ReadString()
	if err != nil {
		return "", err
	}
	if err := d.Finish(); err != nil {
		return "", err
	}
	return id, nil
}
