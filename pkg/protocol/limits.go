package protocol

import "errors"

// Depth limits against stack exhaustion through deeply nested payloads.
// They complement the allocation limits in codec.go.
const (
	// MaxSubtreeDepth limits the nesting of subtrees carried by CREATE and
	// REPLACE patches.
	MaxSubtreeDepth = 256

	// MaxValueDepth limits the nesting of list and map prop values.
	MaxValueDepth = 64
)

// ErrMaxDepthExceeded is returned when a subtree or value nests deeper than
// the configured limit, on encode and on decode.
var ErrMaxDepthExceeded = errors.New("protocol: maximum nesting depth exceeded")

// DepthLimits configures the depth limits used for encoding and decoding.
// Use DefaultDepthLimits() for sensible defaults.
type DepthLimits struct {
	SubtreeDepth int
	ValueDepth   int
}

// DefaultDepthLimits returns the default depth limits.
func DefaultDepthLimits() *DepthLimits {
	return &DepthLimits{
		SubtreeDepth: MaxSubtreeDepth,
		ValueDepth:   MaxValueDepth,
	}
}

func (l *DepthLimits) orDefault() *DepthLimits {
	if l == nil {
		return DefaultDepthLimits()
	}
	return l
}

// checkDepth fails once current goes past max.
func checkDepth(current, max int) error {
	if current > max {
		return ErrMaxDepthExceeded
	}
	return nil
}
