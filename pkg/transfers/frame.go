package transfers

import (
	"encoding/binary"
	"fmt"
)

type FrameKind uint8

const (
	FrameKindColor FrameKind = iota
	FrameKindDepth
)

func (k FrameKind) String() string {
	switch k {
	case FrameKindColor:
		return "color"
	case FrameKindDepth:
		return "depth"
	default:
		return fmt.Sprintf("FrameKind(%d)", uint8(k))
	}
}

// Frame is a single captured image owned by exactly one party at a time:
// the router between pool acquire and delivery, a consumer between delivery
// and release back to the pool.
type Frame struct {
	Serial      uint32
	TimestampUs int64
	Width       int
	Height      int
	Kind        FrameKind
	Format      uint32

	// Data is the reusable capture buffer. Its capacity is fixed when the
	// frame is allocated into the pool; ActualSize is the byte count of the
	// most recent capture.
	Data       []byte
	ActualSize int

	// Depth annotation, set by the router on depth frames. ZDTable is a
	// shared read-only slice of big-endian uint16 entries.
	DevType uint16
	ZDTable []byte
	ZNear   uint16
	ZFar    uint16
}

// NewFrame allocates a frame with a capture buffer of the given size.
func NewFrame(bufferSize int) *Frame {
	return &Frame{Data: make([]byte, bufferSize)}
}

// Depth returns the raw depth sample at (x, y). Depth pixels are
// little-endian uint16 on the wire regardless of 11/14-bit format.
func (f *Frame) Depth(x, y int) uint16 {
	offset := 2 * (y*f.Width + x)
	if offset < 0 || offset+2 > f.ActualSize {
		return 0
	}
	return binary.LittleEndian.Uint16(f.Data[offset : offset+2])
}

// ZValue translates a raw depth sample into physical distance in
// millimetres via the frame's ZD table annotation. Returns 0 when the
// frame carries no table or the sample indexes past it.
func (f *Frame) ZValue(depth uint16) uint16 {
	offset := 2 * int(depth)
	if f.ZDTable == nil || offset+2 > len(f.ZDTable) {
		return 0
	}
	return binary.BigEndian.Uint16(f.ZDTable[offset : offset+2])
}
