// Package transfers implements the data path of the ORANGE driver: bounded
// frame channels, bulk endpoint frame sources, and the interleave-mode
// router that demultiplexes a single endpoint into color and depth streams.
package transfers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	// SharedPoolSize is the number of reusable frames in the router's free
	// pool. Frames in flight (pool + queued + held by consumers) never
	// exceed this.
	SharedPoolSize = 4

	// retryDelay is how long the reader loop backs off after a transient
	// read failure before reacquiring the endpoint.
	retryDelay = 10 * time.Millisecond

	// maxConsecutiveFailures is the fatal ceiling: this many transient
	// failures in a row stop the reader loop.
	maxConsecutiveFailures = 100

	// statsLogInterval is the routed-frame period of the summary log line.
	statsLogInterval = 100
)

// RouterConfig configures an interleave-mode Router.
//
// The caller must validate colorWidth == depthHeight before constructing
// the router; both streams share one endpoint and one physical frame shape,
// and the router does not re-check this.
type RouterConfig struct {
	Source FrameSource

	// Color and Depth receive routed frames. The router sends blocking:
	// a full consumer queue stalls the reader loop rather than dropping.
	Color *Channel[*Frame]
	Depth *Channel[*Frame]

	Width      int
	Height     int
	BufferSize int

	ColorFormat uint32
	DepthFormat uint32

	// Depth annotation applied to every depth frame.
	DevType uint16
	ZDTable []byte
	ZNear   uint16
	ZFar    uint16

	Logger zerolog.Logger
}

// Router runs the interleave-mode reader loop: acquire a frame from the
// shared pool, read it from the endpoint, and route it by serial parity
// (odd to color, even to depth) with backpressure-propagating sends.
type Router struct {
	cfg  RouterConfig
	log  zerolog.Logger
	pool *Channel[*Frame]

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool

	mu      sync.Mutex
	started bool
	stopped bool

	stats RouterStats
}

// NewRouter creates a router and fills its shared pool with SharedPoolSize
// frames of cfg.BufferSize bytes.
func NewRouter(cfg RouterConfig) *Router {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		cfg:    cfg,
		log:    cfg.Logger,
		pool:   NewChannel[*Frame](SharedPoolSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < SharedPoolSize; i++ {
		// The pool has exactly SharedPoolSize slots; these sends cannot block.
		r.pool.Send(context.Background(), NewFrame(cfg.BufferSize))
	}
	return r
}

// Pool returns the shared free pool. Consumers must return every delivered
// frame here once they are done with it.
func (r *Router) Pool() *Channel[*Frame] {
	return r.pool
}

// Start spawns the reader loop. Producers must already be draining the
// color and depth channels, otherwise the first few frames back up
// immediately.
func (r *Router) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return errors.New("transfers: router already stopped")
	}
	if r.started {
		return errors.New("transfers: router already started")
	}
	r.started = true
	r.running.Store(true)
	r.wg.Add(1)
	go r.run()
	return nil
}

// RequestStop asks the reader loop to exit without waiting for it. The
// cancellation is observed at the loop's suspension points, including a
// pending blocking send.
func (r *Router) RequestStop() {
	r.cancel()
}

// Stop requests cancellation and blocks until the reader loop has fully
// exited. Safe to call multiple times.
func (r *Router) Stop() {
	r.mu.Lock()
	wasStarted := r.started
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	if wasStarted {
		r.wg.Wait()
	}
}

// Running reports whether the reader loop is alive. It turns false on
// Stop, on consumer channel closure, and on the fatal failure ceiling, so
// callers can detect asynchronous termination.
func (r *Router) Running() bool {
	return r.running.Load()
}

// Stats returns a snapshot of the routing counters.
func (r *Router) Stats() RouterStatsSnapshot {
	return r.stats.Snapshot()
}

func (r *Router) run() {
	defer r.wg.Done()
	defer r.running.Store(false)
	defer r.logSummary("frame router stopped")

	consecutive := 0
	for {
		if r.ctx.Err() != nil {
			return
		}

		frame, err := r.pool.Receive(r.ctx)
		if err != nil {
			// Pool closed or stop requested: clean shutdown.
			return
		}

		if err := r.cfg.Source.ReadFrame(r.ctx, frame); err != nil {
			r.recycle(frame)
			if r.ctx.Err() != nil {
				return
			}
			consecutive++
			r.stats.readErrors.Add(1)
			r.stats.dropsReadError.Add(1)
			r.stats.consecutiveFailures.Store(int64(consecutive))
			if consecutive >= maxConsecutiveFailures {
				r.log.Error().
					Err(err).
					Int("consecutive_failures", consecutive).
					Msg("read failure ceiling reached, stopping frame router")
				return
			}
			r.log.Warn().
				Err(err).
				Int("consecutive_failures", consecutive).
				Msg("transient read failure, retrying")
			select {
			case <-time.After(retryDelay):
			case <-r.ctx.Done():
				return
			}
			continue
		}

		if err := r.route(frame); err != nil {
			r.recycle(frame)
			if errors.Is(err, ErrChannelClosed) {
				r.log.Info().Msg("consumer channel closed, frame router shutting down")
			}
			return
		}

		consecutive = 0
		r.stats.consecutiveFailures.Store(0)
		if routed := r.stats.Snapshot().Routed(); routed%statsLogInterval == 0 {
			r.logSummary("frame router summary")
		}
	}
}

// route assigns the frame to a consumer by serial parity and delivers it
// with a blocking send. Odd serials are color, even serials are depth.
func (r *Router) route(frame *Frame) error {
	frame.Width = r.cfg.Width
	frame.Height = r.cfg.Height
	if frame.Serial%2 == 1 {
		frame.Kind = FrameKindColor
		frame.Format = r.cfg.ColorFormat
		frame.ZDTable = nil
		if err := r.cfg.Color.Send(r.ctx, frame); err != nil {
			return err
		}
		r.stats.colorRouted.Add(1)
		return nil
	}
	frame.Kind = FrameKindDepth
	frame.Format = r.cfg.DepthFormat
	frame.DevType = r.cfg.DevType
	frame.ZDTable = r.cfg.ZDTable
	frame.ZNear = r.cfg.ZNear
	frame.ZFar = r.cfg.ZFar
	if err := r.cfg.Depth.Send(r.ctx, frame); err != nil {
		return err
	}
	r.stats.depthRouted.Add(1)
	return nil
}

// recycle returns a frame to the free pool. The pool holds one slot per
// frame, so this never blocks; the background context only guards against
// a closed pool during teardown.
func (r *Router) recycle(frame *Frame) {
	_ = r.pool.Send(context.Background(), frame)
}

func (r *Router) logSummary(msg string) {
	s := r.stats.Snapshot()
	r.log.Info().
		Uint64("color_routed", s.ColorRouted).
		Uint64("depth_routed", s.DepthRouted).
		Uint64("read_errors", s.ReadErrors).
		Uint64("drops_read_error", s.DropsReadError).
		Msg(msg)
}
