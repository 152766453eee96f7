package orange

import "errors"

var (
	// ErrDeviceNotFound means enumeration found no ORANGE module (or fewer
	// than the three usbfs nodes the chip exposes).
	ErrDeviceNotFound = errors.New("orange: device not found")

	// ErrInvalidConfig is a stream configuration rejected before any state
	// change, e.g. the interleave width/height precondition.
	ErrInvalidConfig = errors.New("orange: invalid stream configuration")

	// ErrStreamActive is returned by InitStream while a session is open.
	ErrStreamActive = errors.New("orange: stream already initialized")

	// ErrStreamNotOpen is returned by EnableStream with no session.
	ErrStreamNotOpen = errors.New("orange: stream not initialized")

	// ErrNoCalibration means the device has no point-cloud calibration data
	// at all. Callers may choose to stream without depth translation.
	ErrNoCalibration = errors.New("orange: no calibration data available")

	// ErrInvalidCalibration means calibration data exists but cannot produce
	// a ZD table (short array, zero disparity entries).
	ErrInvalidCalibration = errors.New("orange: malformed calibration data")
)
