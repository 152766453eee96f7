package orange

// ActionCategory keys endpoint selection. Every SDK-level operation names
// the category it belongs to and the routing table decides which of the
// chip's USB control paths serves it.
type ActionCategory uint8

const (
	CategoryDeviceInfo ActionCategory = iota // firmware version, serial, bus info
	CategoryCalibration                      // ZD table, rectify, point-cloud data
	CategoryCameraProperty                   // exposure, gain, CT/PU properties
	CategoryIRControl                        // IR mode/value, interleave IR switching
	CategoryStreaming                        // open/close video, set depth data type
	CategoryStreamingHardwareAccess          // FW/sensor registers
	CategoryASICAccess                       // IC registers
	CategoryFrameColor                       // color frame reads
	CategoryFrameDepth                       // depth frame reads (non-interleave)
	CategoryFrameProcess                     // frame processing controls

	categoryCount
)

func (c ActionCategory) String() string {
	switch c {
	case CategoryDeviceInfo:
		return "device-info"
	case CategoryCalibration:
		return "calibration"
	case CategoryCameraProperty:
		return "camera-property"
	case CategoryIRControl:
		return "ir-control"
	case CategoryStreaming:
		return "streaming"
	case CategoryStreamingHardwareAccess:
		return "streaming-hardware-access"
	case CategoryASICAccess:
		return "asic-access"
	case CategoryFrameColor:
		return "frame-color"
	case CategoryFrameDepth:
		return "frame-depth"
	case CategoryFrameProcess:
		return "frame-process"
	default:
		return "unknown"
	}
}

// Categories lists every defined ActionCategory.
func Categories() []ActionCategory {
	cats := make([]ActionCategory, categoryCount)
	for i := range cats {
		cats[i] = ActionCategory(i)
	}
	return cats
}

// The ORANGE chip enumerates as three consecutive usbfs nodes.
const (
	indexColorPath0 = 0 // reserved on this chip generation
	indexColorPath1 = 1 // primary path: control, color frames, ILM stream
	indexMonoPath   = 2 // depth/IR path
)

// Endpoint is one addressable USB control path of the module. Endpoints
// are resolved once at device open and are immutable afterwards; the
// routing layer only borrows them.
type Endpoint struct {
	Index  uint8
	Path   string // usbfs node path, empty when wrapped from a raw fd
	handle transport
}

// routingTableFor builds the immutable category-to-path assignment for a
// chip variant. The ORANGE triple routes IR control and non-interleave
// depth reads to the mono path and everything else to the primary path;
// legacy single-node cameras use base+0 for everything.
func routingTableFor(pid uint16) [categoryCount]uint8 {
	var t [categoryCount]uint8
	if pid != ProductID80363C && pid != ProductID80363IR {
		return t
	}
	for c := range t {
		t[c] = indexColorPath1
	}
	t[CategoryIRControl] = indexMonoPath
	t[CategoryFrameDepth] = indexMonoPath
	return t
}

// Resolve maps an operation category to the endpoint that serves it. It is
// total over the defined categories and performs no I/O.
func (d *Device) Resolve(category ActionCategory) *Endpoint {
	if category >= categoryCount {
		return d.endpoints[indexColorPath1]
	}
	return d.endpoints[d.routes[category]]
}
