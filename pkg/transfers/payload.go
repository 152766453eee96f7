package transfers

import (
	"encoding/binary"
	"io"
)

// Payload is one bulk transfer unit of an ORANGE video stream. The chip
// speaks UVC-style payload framing: a variable-length header with a bit
// field, then image data.
type Payload struct {
	HeaderInfoBitmask uint8
	PTS               uint32
	SCR               struct {
		SourceTimeClock uint32
		TokenCounter    uint16
	}
	Data []byte
}

func (p *Payload) FrameID() bool {
	return p.HeaderInfoBitmask&0b00000001 != 0
}

func (p *Payload) EndOfFrame() bool {
	return p.HeaderInfoBitmask&0b00000010 != 0
}

func (p *Payload) HasPTS() bool {
	return p.HeaderInfoBitmask&0b00000100 != 0
}

func (p *Payload) HasSCR() bool {
	return p.HeaderInfoBitmask&0b00001000 != 0
}

func (p *Payload) Error() bool {
	return p.HeaderInfoBitmask&0b01000000 != 0
}

func (p *Payload) EndOfHeader() bool {
	return p.HeaderInfoBitmask&0b10000000 != 0
}

func (p *Payload) UnmarshalBinary(buf []byte) error {
	if len(buf) < 2 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	p.HeaderInfoBitmask = buf[1]
	offset := 2
	if p.HasPTS() {
		p.PTS = binary.LittleEndian.Uint32(buf[offset : offset+4])
		offset += 4
	}
	if p.HasSCR() {
		p.SCR.SourceTimeClock = binary.LittleEndian.Uint32(buf[offset : offset+4])
		offset += 4
		p.SCR.TokenCounter = binary.LittleEndian.Uint16(buf[offset : offset+2])
		offset += 2
	}
	// Skip any vendor header extension bytes between the known fields and
	// the header length the device reported.
	if hl := int(buf[0]); hl > offset {
		offset = hl
	}
	p.Data = buf[offset:]
	return nil
}
