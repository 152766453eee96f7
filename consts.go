package orange

// USB identity of the ORANGE (80363 / eSP936) camera module.
const (
	VendorID         = 0x1e4e
	ProductID80363C  = 0x0202 // color variant
	ProductID80363IR = 0x0211 // IR variant
)

// DevTypeORANGE is the chip family tag carried on depth frames. The 80363
// must be detected as ORANGE/GRAPE, not as the older PUMA family.
const DevTypeORANGE uint16 = 5

type ColorFormat uint32

const (
	ColorFormatYUY2  ColorFormat = 0x00
	ColorFormatMJPEG ColorFormat = 0x01
)

// DepthFormat selects both the depth bit depth and the capture topology.
// The interleave formats put color and depth on the single primary
// endpoint, alternating by frame serial parity.
type DepthFormat uint32

const (
	DepthFormat11Bits           DepthFormat = 0x18
	DepthFormat14Bits           DepthFormat = 0x19
	DepthFormat11BitsInterleave DepthFormat = 0x1a
	DepthFormat14BitsInterleave DepthFormat = 0x1b
)

// Interleaved reports whether the format selects interleave (ILM) capture.
func (f DepthFormat) Interleaved() bool {
	return f == DepthFormat11BitsInterleave || f == DepthFormat14BitsInterleave
}

// Bits returns the depth sample bit depth.
func (f DepthFormat) Bits() int {
	if f == DepthFormat14Bits || f == DepthFormat14BitsInterleave {
		return 14
	}
	return 11
}

// ZD table entry counts by depth bit depth.
const (
	ZDTableSize11Bits = 2048
	ZDTableSize14Bits = 16384
)

// ZDTableSize returns the number of ZD lookup entries for the format.
func (f DepthFormat) ZDTableSize() int {
	if f.Bits() == 14 {
		return ZDTableSize14Bits
	}
	return ZDTableSize11Bits
}

// DepthTransferCtrl selects whether raw depth is decoded into a color
// palette view for human reading. The driver itself never transcodes;
// the flag is forwarded to the device.
type DepthTransferCtrl uint8

const (
	DepthImgNonTransfer DepthTransferCtrl = iota
	DepthImgColorfulTransfer
	DepthImgGrayTransfer
)

// ControlMode selects whether the device synchronizes color and depth
// frame serial numbers.
type ControlMode uint8

const (
	ControlModeSNSync ControlMode = iota
	ControlModeSNNonSync
)
