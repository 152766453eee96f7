// Package orange is a driver for eYs3D ORANGE-chip (80363 / eSP936) stereo
// depth camera modules. The chip enumerates as three USB control paths;
// operations are routed to the right path by action category, and the
// interleave capture mode demultiplexes color and depth frames arriving on
// the single primary path by frame serial parity.
package orange

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	usb "github.com/kevmo314/go-usb"
	"github.com/rs/zerolog"
)

// Vendor control protocol of the ORANGE firmware.
const (
	requestTypeVendorIn  = 0xc0
	requestTypeVendorOut = 0x40

	requestFirmwareVersion = 0x01
	requestSerialNumber    = 0x02
	requestSetVideoMode    = 0x10
	requestStopVideo       = 0x11
	requestReadFWReg       = 0x20
	requestWriteFWReg      = 0x21
	requestReadASICReg     = 0x22
	requestWriteASICReg    = 0x23
	requestGetProperty     = 0x30
	requestSetProperty     = 0x31
	requestIRControl       = 0x41
	requestReadCalibration = 0x50

	controlTimeout = time.Second

	// Each path carries its video stream on bulk IN endpoint 0x81.
	endpointVideoIn = 0x81

	// Largest single bulk payload the firmware commits to. Matches the
	// usbfs URB ceiling.
	maxBulkPayload = 16384

	videoInterfaceNumber = 1
)

// transport is the slice of the USB SDK the driver needs from each opened
// path. *usb.DeviceHandle satisfies it; tests substitute fakes.
type transport interface {
	ControlTransfer(requestType, request uint8, value, index uint16, data []byte, timeout time.Duration) (int, error)
	BulkTransfer(endpoint uint8, data []byte, timeout time.Duration) (int, error)
	ClaimInterface(iface uint8) error
	ReleaseInterface(iface uint8) error
	Close() error
}

// Device is one ORANGE camera module: three resolved endpoints, the
// category routing table, and at most one streaming session.
type Device struct {
	log       zerolog.Logger
	pid       uint16
	endpoints [3]*Endpoint
	routes    [categoryCount]uint8

	mu      sync.Mutex
	session *session
}

// Open enumerates USB devices and opens the first ORANGE module found. The
// chip's three consecutive usbfs nodes become endpoints base+0..base+2.
func Open() (*Device, error) {
	devices, err := usb.DeviceList()
	if err != nil {
		return nil, fmt.Errorf("listing usb devices: %w", err)
	}

	var nodes []*usb.Device
	var pid uint16
	for _, dev := range devices {
		if dev.Descriptor.VendorID != VendorID {
			continue
		}
		if dev.Descriptor.ProductID != ProductID80363C && dev.Descriptor.ProductID != ProductID80363IR {
			continue
		}
		pid = dev.Descriptor.ProductID
		nodes = append(nodes, dev)
	}
	if len(nodes) < 3 {
		return nil, ErrDeviceNotFound
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Path < nodes[j].Path })
	nodes = nodes[:3]

	var handles [3]transport
	var paths [3]string
	for i, node := range nodes {
		h, err := node.Open()
		if err != nil {
			for j := 0; j < i; j++ {
				handles[j].Close()
			}
			return nil, fmt.Errorf("opening %s: %w", node.Path, err)
		}
		handles[i] = h
		paths[i] = node.Path
	}
	return newDevice(pid, handles, paths), nil
}

// NewDevice wraps three already-open file descriptors for the module's
// base+0, base+1, and base+2 nodes, in that order. Useful on systems where
// the caller owns device-file permissions.
func NewDevice(pid uint16, fds [3]uintptr) (*Device, error) {
	var handles [3]transport
	for i, fd := range fds {
		h, err := usb.WrapSysDevice(int(fd))
		if err != nil {
			for j := 0; j < i; j++ {
				handles[j].Close()
			}
			return nil, fmt.Errorf("wrapping fd %d: %w", fd, err)
		}
		handles[i] = h
	}
	return newDevice(pid, handles, [3]string{}), nil
}

func newDevice(pid uint16, handles [3]transport, paths [3]string) *Device {
	d := &Device{
		log:    zerolog.New(os.Stderr).With().Timestamp().Str("driver", "orange").Logger(),
		pid:    pid,
		routes: routingTableFor(pid),
	}
	for i := range handles {
		d.endpoints[i] = &Endpoint{Index: uint8(i), Path: paths[i], handle: handles[i]}
	}
	return d
}

// SetLogger replaces the driver's logger. Call before InitStream.
func (d *Device) SetLogger(log zerolog.Logger) {
	d.log = log
}

// PID returns the module's USB product ID.
func (d *Device) PID() uint16 { return d.pid }

// FirmwareVersion reads the firmware version string, routed through the
// device-info category.
func (d *Device) FirmwareVersion() (string, error) {
	return d.readInfoString(requestFirmwareVersion)
}

// SerialNumber reads the module serial number string.
func (d *Device) SerialNumber() (string, error) {
	return d.readInfoString(requestSerialNumber)
}

func (d *Device) readInfoString(request uint8) (string, error) {
	ep := d.Resolve(CategoryDeviceInfo)
	buf := make([]byte, 64)
	n, err := ep.handle.ControlTransfer(requestTypeVendorIn, request, 0, 0, buf, controlTimeout)
	if err != nil {
		return "", fmt.Errorf("device info request %#02x: %w", request, err)
	}
	for n > 0 && buf[n-1] == 0 {
		n--
	}
	return string(buf[:n]), nil
}

// readPointCloudInfo fetches the point-cloud calibration blob for the given
// rectify log index: a float32 focal length followed by the
// disparity-to-world array, read in control-transfer-sized chunks. A device
// with no calibration at all answers the first read with zero bytes.
func (d *Device) readPointCloudInfo(rectifyLogIndex int) (*PointCloudInfo, error) {
	ep := d.Resolve(CategoryCalibration)
	chunk := make([]byte, 1024)

	n, err := ep.handle.ControlTransfer(requestTypeVendorIn, requestReadCalibration,
		uint16(rectifyLogIndex), 0, chunk[:4], controlTimeout)
	if err != nil {
		return nil, fmt.Errorf("reading calibration header: %w", err)
	}
	if n == 0 {
		return nil, ErrNoCalibration
	}
	if n < 4 {
		return nil, fmt.Errorf("calibration header is %d bytes: %w", n, ErrInvalidCalibration)
	}
	info := &PointCloudInfo{
		FocalLength: math.Float32frombits(binary.LittleEndian.Uint32(chunk[:4])),
	}

	for block := uint16(1); ; block++ {
		n, err := ep.handle.ControlTransfer(requestTypeVendorIn, requestReadCalibration,
			uint16(rectifyLogIndex), block, chunk, controlTimeout)
		if err != nil {
			return nil, fmt.Errorf("reading calibration block %d: %w", block, err)
		}
		for i := 0; i+4 <= n; i += 4 {
			info.DisparityToW = append(info.DisparityToW,
				math.Float32frombits(binary.LittleEndian.Uint32(chunk[i:i+4])))
		}
		if n < len(chunk) {
			break
		}
	}
	return info, nil
}

// updateZDTable derives the session's depth lookup table during stream
// initialization. The table size follows the depth bit depth.
func (d *Device) updateZDTable(format DepthFormat, rectifyLogIndex int) (*ZDTable, error) {
	info, err := d.readPointCloudInfo(rectifyLogIndex)
	if err != nil {
		return nil, err
	}
	return BuildZDTable(info, format.ZDTableSize())
}

// Close stops any active stream and releases all three endpoint handles.
func (d *Device) Close() error {
	if err := d.CloseStream(); err != nil {
		return err
	}
	var firstErr error
	for _, ep := range d.endpoints {
		if ep == nil || ep.handle == nil {
			continue
		}
		if err := ep.handle.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
