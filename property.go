package orange

import (
	"encoding/binary"
	"fmt"
)

// Camera property selectors (wValue of the get/set property requests).
const (
	propertyExposure uint16 = 0x01
	propertyGain     uint16 = 0x02
	propertyIRMode   uint16 = 0x10
	propertyIRValue  uint16 = 0x11
)

func (d *Device) getProperty(category ActionCategory, selector uint16) (int32, error) {
	ep := d.Resolve(category)
	var buf [4]byte
	n, err := ep.handle.ControlTransfer(requestTypeVendorIn, requestGetProperty,
		selector, 0, buf[:], controlTimeout)
	if err != nil {
		return 0, fmt.Errorf("get property %#02x: %w", selector, err)
	}
	if n < 4 {
		return 0, fmt.Errorf("get property %#02x: short read (%d bytes)", selector, n)
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func (d *Device) setProperty(category ActionCategory, selector uint16, value int32) error {
	ep := d.Resolve(category)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(value))
	if _, err := ep.handle.ControlTransfer(requestTypeVendorOut, requestSetProperty,
		selector, 0, buf[:], controlTimeout); err != nil {
		return fmt.Errorf("set property %#02x: %w", selector, err)
	}
	return nil
}

// Exposure reads the current exposure value.
func (d *Device) Exposure() (int32, error) {
	return d.getProperty(CategoryCameraProperty, propertyExposure)
}

func (d *Device) SetExposure(value int32) error {
	return d.setProperty(CategoryCameraProperty, propertyExposure, value)
}

// Gain reads the current sensor gain.
func (d *Device) Gain() (int32, error) {
	return d.getProperty(CategoryCameraProperty, propertyGain)
}

func (d *Device) SetGain(value int32) error {
	return d.setProperty(CategoryCameraProperty, propertyGain, value)
}

// IRMode reads the IR emitter mode. IR controls live on the mono path.
func (d *Device) IRMode() (int32, error) {
	return d.getProperty(CategoryIRControl, propertyIRMode)
}

func (d *Device) SetIRMode(mode int32) error {
	return d.setProperty(CategoryIRControl, propertyIRMode, mode)
}

// IRValue reads the IR emitter intensity.
func (d *Device) IRValue() (int32, error) {
	return d.getProperty(CategoryIRControl, propertyIRValue)
}

func (d *Device) SetIRValue(value int32) error {
	return d.setProperty(CategoryIRControl, propertyIRValue, value)
}

// IsInterleaveModeSupported reports interleave capture support; always true
// on the 80363.
func (d *Device) IsInterleaveModeSupported() bool { return true }

// EnableInterleaveMode toggles per-frame IR switching (on/off/on/off by
// frames). On the ORANGE chip the interleave capture mode itself is chosen
// by the depth format at InitStream, not by this control.
func (d *Device) EnableInterleaveMode(enable bool) error {
	ep := d.Resolve(CategoryIRControl)
	var buf [1]byte
	if enable {
		buf[0] = 1
	}
	if _, err := ep.handle.ControlTransfer(requestTypeVendorOut, requestIRControl,
		0, 0, buf[:], controlTimeout); err != nil {
		return fmt.Errorf("enable interleave ir switching: %w", err)
	}
	return nil
}
