package orange

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kevmo314/go-orange/pkg/transfers"
)

// StreamingMode is the capture topology of an open session, fixed at
// InitStream time and reset to Idle by CloseStream.
type StreamingMode int

const (
	ModeIdle StreamingMode = iota
	ModeInterleave
	ModeColorOnly
	ModeDepthOnly
	ModeDualStream
)

func (m StreamingMode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeInterleave:
		return "interleave"
	case ModeColorOnly:
		return "color-only"
	case ModeDepthOnly:
		return "depth-only"
	case ModeDualStream:
		return "dual-stream"
	default:
		return fmt.Sprintf("StreamingMode(%d)", int(m))
	}
}

// dualStreamSettle is how long the firmware needs between opening the
// primary and mono paths in dual-stream mode.
const dualStreamSettle = 2 * time.Second

// streamModeFor derives the session mode from the requested stream
// parameters. Interleave capability is a property of the depth format and
// wins over the size heuristics; it demands color width equal depth height
// because both streams share one endpoint and one physical frame shape.
func streamModeFor(colorWidth, depthWidth, depthHeight int, depthFormat DepthFormat) (StreamingMode, error) {
	switch {
	case depthFormat.Interleaved():
		if colorWidth != depthHeight {
			return ModeIdle, fmt.Errorf("interleave mode requires color width (%d) to equal depth height (%d): %w",
				colorWidth, depthHeight, ErrInvalidConfig)
		}
		return ModeInterleave, nil
	case depthWidth == 0:
		return ModeColorOnly, nil
	case colorWidth == 0:
		return ModeDepthOnly, nil
	default:
		return ModeDualStream, nil
	}
}

type session struct {
	id   string
	log  zerolog.Logger
	mode StreamingMode

	ctx    context.Context
	cancel context.CancelFunc

	router     *transfers.Router
	colorQueue *transfers.Channel[*transfers.Frame]
	depthQueue *transfers.Channel[*transfers.Frame]
	producers  []*producer
	captures   []*capture

	opened  []*Endpoint
	zd      *ZDTable
	enabled bool
}

// InitStream validates the requested configuration, opens the endpoints the
// resulting mode needs (primary path always first), derives the ZD table
// for depth-bearing modes, and constructs the frame plumbing. The stream
// does not deliver frames until EnableStream.
//
// Mode selection:
//   - interleave-capable depth format: interleave mode on the primary path
//     alone (requires colorWidth == depthHeight)
//   - depthWidth == 0: color only
//   - colorWidth == 0: depth only (primary path still opened and drained,
//     a firmware liveness requirement)
//   - otherwise: dual stream on both paths
//
// On any failure no endpoint is left open and the device stays Idle.
func (d *Device) InitStream(
	colorFormat ColorFormat, colorWidth, colorHeight, fps int,
	depthFormat DepthFormat, depthWidth, depthHeight int,
	transferCtrl DepthTransferCtrl, ctrlMode ControlMode, rectifyLogIndex int,
	colorCallback, depthCallback, pcFrameCallback FrameCallback,
) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		return ErrStreamActive
	}

	mode, err := streamModeFor(colorWidth, depthWidth, depthHeight, depthFormat)
	if err != nil {
		return err
	}

	sess := &session{
		id:   uuid.NewString(),
		mode: mode,
	}
	sess.log = d.log.With().Str("session", sess.id).Str("mode", mode.String()).Logger()
	sess.ctx, sess.cancel = context.WithCancel(context.Background())

	if mode != ModeColorOnly {
		zd, err := d.updateZDTable(depthFormat, rectifyLogIndex)
		if err != nil {
			sess.cancel()
			return err
		}
		sess.zd = zd
	}

	if err := d.buildSession(sess, colorFormat, colorWidth, colorHeight, fps,
		depthFormat, depthWidth, depthHeight,
		colorCallback, depthCallback, pcFrameCallback); err != nil {
		d.teardownSession(sess)
		return err
	}

	d.session = sess
	sess.log.Info().
		Int("color_width", colorWidth).Int("color_height", colorHeight).
		Int("depth_width", depthWidth).Int("depth_height", depthHeight).
		Int("fps", fps).
		Msg("stream initialized")
	return nil
}

func (d *Device) buildSession(sess *session,
	colorFormat ColorFormat, colorWidth, colorHeight, fps int,
	depthFormat DepthFormat, depthWidth, depthHeight int,
	colorCallback, depthCallback, pcFrameCallback FrameCallback,
) error {
	primary := d.Resolve(CategoryStreaming)
	mono := d.Resolve(CategoryFrameDepth)

	colorCallbacks := nonNil(colorCallback)
	depthCallbacks := nonNil(depthCallback, pcFrameCallback)

	switch sess.mode {
	case ModeInterleave:
		// Single endpoint: the depth format doubles as the video mode that
		// turns interleaving on in the firmware.
		if err := d.openVideoStream(sess, primary, colorWidth, colorHeight, fps, uint32(depthFormat)); err != nil {
			return err
		}
		bufferSize := 2 * colorWidth * colorHeight
		sess.colorQueue = transfers.NewChannel[*transfers.Frame](transfers.SharedPoolSize)
		sess.depthQueue = transfers.NewChannel[*transfers.Frame](transfers.SharedPoolSize)
		cfg := transfers.RouterConfig{
			Source:      transfers.NewBulkSource(primary.handle, endpointVideoIn, maxBulkPayload),
			Color:       sess.colorQueue,
			Depth:       sess.depthQueue,
			Width:       colorWidth,
			Height:      colorHeight,
			BufferSize:  bufferSize,
			ColorFormat: uint32(colorFormat),
			DepthFormat: uint32(depthFormat),
			DevType:     DevTypeORANGE,
			Logger:      sess.log.With().Str("component", "ilm-router").Logger(),
		}
		if sess.zd != nil {
			cfg.ZDTable = sess.zd.Data
			cfg.ZNear = sess.zd.ZNear
			cfg.ZFar = sess.zd.ZFar
		}
		sess.router = transfers.NewRouter(cfg)
		sess.producers = append(sess.producers,
			&producer{name: "color", log: sess.log, queue: sess.colorQueue, pool: sess.router.Pool(), callbacks: colorCallbacks},
			&producer{name: "depth", log: sess.log, queue: sess.depthQueue, pool: sess.router.Pool(), callbacks: depthCallbacks},
		)

	case ModeColorOnly:
		if err := d.openVideoStream(sess, primary, colorWidth, colorHeight, fps, uint32(colorFormat)); err != nil {
			return err
		}
		c := newCapture("color", sess.log,
			transfers.NewBulkSource(primary.handle, endpointVideoIn, maxBulkPayload),
			2*colorWidth*colorHeight, transfers.FrameKindColor,
			colorWidth, colorHeight, uint32(colorFormat), colorCallbacks)
		sess.captures = append(sess.captures, c)

	case ModeDepthOnly:
		// The primary path must be opened and continuously read even though
		// no color frames are delivered; the firmware stalls otherwise. A
		// discard capture drains it.
		if err := d.openVideoStream(sess, primary, depthWidth, depthHeight, fps, uint32(depthFormat)); err != nil {
			return err
		}
		if err := d.openVideoStream(sess, mono, depthWidth, depthHeight, fps, uint32(depthFormat)); err != nil {
			return err
		}
		discard := newCapture("primary-discard", sess.log,
			transfers.NewBulkSource(primary.handle, endpointVideoIn, maxBulkPayload),
			2*depthWidth*depthHeight, transfers.FrameKindColor,
			depthWidth, depthHeight, uint32(depthFormat), nil)
		depth := newCapture("depth", sess.log,
			transfers.NewBulkSource(mono.handle, endpointVideoIn, maxBulkPayload),
			2*depthWidth*depthHeight, transfers.FrameKindDepth,
			depthWidth, depthHeight, uint32(depthFormat), depthCallbacks)
		depth.annotate(sess.zd, DevTypeORANGE)
		sess.captures = append(sess.captures, discard, depth)

	case ModeDualStream:
		if err := d.openVideoStream(sess, primary, colorWidth, colorHeight, fps, uint32(colorFormat)); err != nil {
			return err
		}
		time.Sleep(dualStreamSettle)
		if err := d.openVideoStream(sess, mono, depthWidth, depthHeight, fps, uint32(depthFormat)); err != nil {
			return err
		}
		color := newCapture("color", sess.log,
			transfers.NewBulkSource(primary.handle, endpointVideoIn, maxBulkPayload),
			2*colorWidth*colorHeight, transfers.FrameKindColor,
			colorWidth, colorHeight, uint32(colorFormat), colorCallbacks)
		depth := newCapture("depth", sess.log,
			transfers.NewBulkSource(mono.handle, endpointVideoIn, maxBulkPayload),
			2*depthWidth*depthHeight, transfers.FrameKindDepth,
			depthWidth, depthHeight, uint32(depthFormat), depthCallbacks)
		depth.annotate(sess.zd, DevTypeORANGE)
		sess.captures = append(sess.captures, color, depth)
	}
	return nil
}

// EnableStream starts frame delivery. Producers and captures start before
// the interleave router so every consumer is draining by the time the
// reader loop produces its first frame; starting the router first would
// back frames up into the 4-slot pool immediately.
func (d *Device) EnableStream() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sess := d.session
	if sess == nil {
		return ErrStreamNotOpen
	}
	if sess.enabled {
		return nil
	}

	for _, p := range sess.producers {
		p.start(sess.ctx)
	}
	for _, c := range sess.captures {
		c.start(sess.ctx)
	}
	if sess.router != nil {
		if err := sess.router.Start(); err != nil {
			return err
		}
	}
	sess.enabled = true
	sess.log.Info().Msg("stream enabled")
	return nil
}

// CloseStream tears the session down and returns the device to Idle.
// Calling it with no open session is a no-op success.
//
// Order matters: the router is stopped and joined before the producers are
// disabled. The router may be parked in a backpressured send into a
// producer queue; stopping the producers first would leave nothing to wake
// it and deadlock the join.
func (d *Device) CloseStream() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sess := d.session
	if sess == nil {
		return nil
	}
	d.session = nil
	d.teardownSession(sess)
	sess.log.Info().Msg("stream closed")
	return nil
}

func (d *Device) teardownSession(sess *session) {
	if sess.router != nil {
		sess.router.Stop()
	}
	if sess.colorQueue != nil {
		sess.colorQueue.Close()
	}
	if sess.depthQueue != nil {
		sess.depthQueue.Close()
	}
	sess.cancel()
	for _, p := range sess.producers {
		p.wait()
	}
	for _, c := range sess.captures {
		c.wait()
	}
	for i := len(sess.opened) - 1; i >= 0; i-- {
		d.closeVideoStream(sess.opened[i])
	}
	sess.opened = nil
	sess.mode = ModeIdle
}

// Mode returns the active streaming mode, ModeIdle when no session is open.
func (d *Device) Mode() StreamingMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return ModeIdle
	}
	return d.session.mode
}

// RouterStats returns the interleave router's counters. The zero snapshot
// is returned outside interleave mode.
func (d *Device) RouterStats() transfers.RouterStatsSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil || d.session.router == nil {
		return transfers.RouterStatsSnapshot{}
	}
	return d.session.router.Stats()
}

// RouterRunning reports whether the interleave reader loop is alive. This
// is how callers observe an asynchronous fatal stop, since the loop cannot
// return an error across its goroutine boundary.
func (d *Device) RouterRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session != nil && d.session.router != nil && d.session.router.Running()
}

// ZDTable returns the session's calibration table, nil outside depth modes.
func (d *Device) ZDTable() *ZDTable {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil
	}
	return d.session.zd
}

// openVideoStream claims the path's video interface and commits the
// resolution, frame rate, and video mode. Opened paths are recorded on the
// session for teardown.
func (d *Device) openVideoStream(sess *session, ep *Endpoint, width, height, fps int, format uint32) error {
	if err := ep.handle.ClaimInterface(videoInterfaceNumber); err != nil {
		return fmt.Errorf("claiming video interface on path %d: %w", ep.Index, err)
	}
	var commit [12]byte
	binary.LittleEndian.PutUint16(commit[0:2], uint16(width))
	binary.LittleEndian.PutUint16(commit[2:4], uint16(height))
	binary.LittleEndian.PutUint16(commit[4:6], uint16(fps))
	binary.LittleEndian.PutUint32(commit[6:10], format)
	if _, err := ep.handle.ControlTransfer(requestTypeVendorOut, requestSetVideoMode,
		0, uint16(ep.Index), commit[:], controlTimeout); err != nil {
		ep.handle.ReleaseInterface(videoInterfaceNumber)
		return fmt.Errorf("committing video mode on path %d: %w", ep.Index, err)
	}
	sess.opened = append(sess.opened, ep)
	return nil
}

func nonNil(cbs ...FrameCallback) []FrameCallback {
	var out []FrameCallback
	for _, cb := range cbs {
		if cb != nil {
			out = append(out, cb)
		}
	}
	return out
}

func (d *Device) closeVideoStream(ep *Endpoint) {
	if _, err := ep.handle.ControlTransfer(requestTypeVendorOut, requestStopVideo,
		0, uint16(ep.Index), nil, controlTimeout); err != nil {
		d.log.Warn().Err(err).Uint8("path", ep.Index).Msg("stop video request failed")
	}
	if err := ep.handle.ReleaseInterface(videoInterfaceNumber); err != nil {
		d.log.Warn().Err(err).Uint8("path", ep.Index).Msg("releasing video interface failed")
	}
}
