package orange

import (
	"encoding/binary"
	"fmt"
)

func (d *Device) readRegister(category ActionCategory, request uint8, addr uint16) (uint16, error) {
	ep := d.Resolve(category)
	var buf [2]byte
	n, err := ep.handle.ControlTransfer(requestTypeVendorIn, request, addr, 0, buf[:], controlTimeout)
	if err != nil {
		return 0, fmt.Errorf("read register %#04x: %w", addr, err)
	}
	if n < 2 {
		return 0, fmt.Errorf("read register %#04x: short read (%d bytes)", addr, n)
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (d *Device) writeRegister(category ActionCategory, request uint8, addr, value uint16) error {
	ep := d.Resolve(category)
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], value)
	if _, err := ep.handle.ControlTransfer(requestTypeVendorOut, request, addr, 0, buf[:], controlTimeout); err != nil {
		return fmt.Errorf("write register %#04x: %w", addr, err)
	}
	return nil
}

// ReadFWRegister reads a firmware register, routed through the
// streaming-hardware-access category.
func (d *Device) ReadFWRegister(addr uint16) (uint16, error) {
	return d.readRegister(CategoryStreamingHardwareAccess, requestReadFWReg, addr)
}

func (d *Device) WriteFWRegister(addr, value uint16) error {
	return d.writeRegister(CategoryStreamingHardwareAccess, requestWriteFWReg, addr, value)
}

// ReadASICRegister reads a depth-ASIC register.
func (d *Device) ReadASICRegister(addr uint16) (uint16, error) {
	return d.readRegister(CategoryASICAccess, requestReadASICReg, addr)
}

func (d *Device) WriteASICRegister(addr, value uint16) error {
	return d.writeRegister(CategoryASICAccess, requestWriteASICReg, addr, value)
}
