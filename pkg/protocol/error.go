package protocol

import (
	"errors"

	"github.com/vango-dev/treediff/pkg/vdom"
)

// ErrorCode classifies an Error frame.
type ErrorCode uint16

const (
	ErrUnknown        ErrorCode = 0x0000
	ErrInvalidFrame   ErrorCode = 0x0001 // malformed frame
	ErrInvalidRequest ErrorCode = 0x0002 // request could not be decoded
	ErrMalformedTree  ErrorCode = 0x0010 // snapshot failed validation
	ErrDuplicateKey   ErrorCode = 0x0011 // children list repeats a key
	ErrTooLarge       ErrorCode = 0x0012 // request or result exceeds a limit
	ErrServerError    ErrorCode = 0x0100
)

var errorCodeNames = map[ErrorCode]string{
	ErrInvalidFrame:   "InvalidFrame",
	ErrInvalidRequest: "InvalidRequest",
	ErrMalformedTree:  "MalformedTree",
	ErrDuplicateKey:   "DuplicateKey",
	ErrTooLarge:       "TooLarge",
	ErrServerError:    "ServerError",
}

func (ec ErrorCode) String() string {
	if name, ok := errorCodeNames[ec]; ok {
		return name
	}
	return "Unknown"
}

// ErrorCodeFor maps a reconciliation or encoding error to its wire code.
func ErrorCodeFor(err error) ErrorCode {
	switch {
	case err == nil:
		return ErrUnknown
	case errors.Is(err, vdom.ErrDuplicateKey):
		return ErrDuplicateKey
	case errors.Is(err, vdom.ErrMalformedTree):
		return ErrMalformedTree
	case errors.Is(err, ErrFrameTooLarge), errors.Is(err, ErrMaxDepthExceeded):
		return ErrTooLarge
	}
	return ErrServerError
}

// ErrorMessage is the payload of an Error frame. A fatal error is followed
// by the server closing the connection.
type ErrorMessage struct {
	Code    ErrorCode
	Message string
	Fatal   bool
}

// NewError returns a non-fatal ErrorMessage.
func NewError(code ErrorCode, message string) *ErrorMessage {
	return &ErrorMessage{Code: code, Message: message}
}

func (em *ErrorMessage) Error() string {
	s := em.Code.String() + ": " + em.Message
	if em.Fatal {
		return "fatal: " + s
	}
	return s
}

// EncodeErrorMessage lays out the code (uint16), the message and the fatal
// flag.
func EncodeErrorMessage(em *ErrorMessage) []byte {
	e := NewEncoder(len(em.Message) + 8)
	e.PutUint16(uint16(em.Code))
	e.PutString(em.Message)
	e.PutBool(em.Fatal)
	return e.Bytes()
}

// DecodeErrorMessage is the inverse of EncodeErrorMessage.
func DecodeErrorMessage(data []byte) (*ErrorMessage, error) {
	d := NewDecoder(data)
	var em ErrorMessage
	code, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}
	em.Code = ErrorCode(code)
	if em.Message, err = d.ReadString(); err != nil {
		return nil, err
	}
	if em.Fatal, err = d.ReadBool(); err != nil {
		return nil, err
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return &em, nil
}

// Frame wraps the message in an Error frame, truncating the message so the
// payload fits.
func (em *ErrorMessage) Frame() *Frame {
	out := *em
	if limit := MaxPayloadSize - 16; len(out.Message) > limit {
		out.Message = out.Message[:limit]
	}
	return NewFrame(FrameError, EncodeErrorMessage(&out))
}
