package transfers

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// serialStampSize is the number of leading image bytes the ORANGE firmware
// overwrites with the frame serial number (little-endian uint32, zero
// padded). In interleave mode this stamp is the only way to tell color and
// depth frames apart.
const serialStampSize = 16

// FrameSource produces one complete frame per call into the frame's capture
// buffer, filling Serial, TimestampUs, and ActualSize. Implementations
// block until a frame is available, an error occurs, or ctx is cancelled.
type FrameSource interface {
	ReadFrame(ctx context.Context, f *Frame) error
}

// BulkTransferer is the single transport primitive a BulkSource needs. It
// is satisfied by *usb.DeviceHandle.
type BulkTransferer interface {
	BulkTransfer(endpoint uint8, data []byte, timeout time.Duration) (int, error)
}

// BulkSource reads video frames from one bulk IN endpoint, reassembling
// UVC-style payloads until the end-of-frame bit.
type BulkSource struct {
	handle      BulkTransferer
	endpoint    uint8
	readTimeout time.Duration
	scratch     []byte
}

// NewBulkSource creates a source for the given endpoint address.
// maxPayloadSize is the largest single bulk transfer the device commits to.
func NewBulkSource(handle BulkTransferer, endpoint uint8, maxPayloadSize int) *BulkSource {
	return &BulkSource{
		handle:      handle,
		endpoint:    endpoint,
		readTimeout: time.Second,
		scratch:     make([]byte, maxPayloadSize),
	}
}

// ReadFrame implements FrameSource.
func (s *BulkSource) ReadFrame(ctx context.Context, f *Frame) error {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m, err := s.handle.BulkTransfer(s.endpoint, s.scratch, s.readTimeout)
		if err != nil {
			return fmt.Errorf("bulk transfer on endpoint %#02x: %w", s.endpoint, err)
		}
		if m == 0 {
			continue
		}
		var p Payload
		if err := p.UnmarshalBinary(s.scratch[:m]); err != nil {
			return fmt.Errorf("payload header on endpoint %#02x: %w", s.endpoint, err)
		}
		if p.Error() {
			return fmt.Errorf("device reported payload error on endpoint %#02x", s.endpoint)
		}
		if n+len(p.Data) > len(f.Data) {
			return fmt.Errorf("frame exceeds %d byte buffer", len(f.Data))
		}
		n += copy(f.Data[n:], p.Data)
		if p.EndOfFrame() {
			break
		}
	}
	f.ActualSize = n
	if n >= serialStampSize {
		f.Serial = binary.LittleEndian.Uint32(f.Data[:4])
	}
	f.TimestampUs = monotonicMicros()
	return nil
}

func monotonicMicros() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return time.Now().UnixMicro()
	}
	return ts.Sec*1_000_000 + ts.Nsec/1_000
}
