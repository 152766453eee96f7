package orange

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kevmo314/go-orange/pkg/transfers"
)

// FrameCallback receives ownership of a frame for the duration of the
// call. The frame buffer is recycled as soon as the callback returns;
// callers that need the data longer must copy it.
type FrameCallback func(*transfers.Frame) error

// producer drains one delivery queue, invokes the registered callbacks,
// and returns every frame to the shared pool. A producer with no callbacks
// is a discard sink: it keeps the endpoint drained without delivering
// anything, which depth-only mode requires of the primary path.
type producer struct {
	name  string
	log   zerolog.Logger
	queue *transfers.Channel[*transfers.Frame]
	pool  *transfers.Channel[*transfers.Frame]

	// callbacks invoked in order for every frame; typically the image
	// callback, plus the point-cloud callback on the depth producer.
	callbacks []FrameCallback

	wg sync.WaitGroup
}

func (p *producer) start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
}

func (p *producer) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		frame, err := p.queue.Receive(ctx)
		if err != nil {
			return
		}
		for _, cb := range p.callbacks {
			if cbErr := cb(frame); cbErr != nil {
				p.log.Warn().Err(cbErr).Str("producer", p.name).Msg("frame callback failed")
			}
		}
		if err := p.pool.Send(ctx, frame); err != nil {
			return
		}
	}
}

// wait blocks until the drain loop has exited. The caller must already
// have cancelled the context or closed the queue.
func (p *producer) wait() {
	p.wg.Wait()
}

// capture is the single-endpoint read loop used outside interleave mode:
// acquire a buffer from its private pool, read one frame, hand it to the
// callbacks, recycle. Read errors are retried with the same short backoff
// the interleave router uses.
type capture struct {
	name   string
	log    zerolog.Logger
	source transfers.FrameSource
	pool   *transfers.Channel[*transfers.Frame]

	kind      transfers.FrameKind
	width     int
	height    int
	format    uint32
	devType   uint16
	zdTable   []byte
	zNear     uint16
	zFar      uint16
	callbacks []FrameCallback

	wg sync.WaitGroup
}

func newCapture(name string, log zerolog.Logger, source transfers.FrameSource, bufferSize int, kind transfers.FrameKind, width, height int, format uint32, callbacks []FrameCallback) *capture {
	c := &capture{
		name:      name,
		log:       log,
		source:    source,
		pool:      transfers.NewChannel[*transfers.Frame](transfers.SharedPoolSize),
		kind:      kind,
		width:     width,
		height:    height,
		format:    format,
		callbacks: callbacks,
	}
	for i := 0; i < transfers.SharedPoolSize; i++ {
		c.pool.Send(context.Background(), transfers.NewFrame(bufferSize))
	}
	return c
}

func (c *capture) annotate(zd *ZDTable, devType uint16) {
	if zd == nil {
		return
	}
	c.devType = devType
	c.zdTable = zd.Data
	c.zNear = zd.ZNear
	c.zFar = zd.ZFar
}

func (c *capture) start(ctx context.Context) {
	c.wg.Add(1)
	go c.run(ctx)
}

func (c *capture) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		frame, err := c.pool.Receive(ctx)
		if err != nil {
			return
		}
		if err := c.source.ReadFrame(ctx, frame); err != nil {
			c.pool.Send(context.Background(), frame)
			if ctx.Err() != nil {
				return
			}
			c.log.Warn().Err(err).Str("capture", c.name).Msg("frame read failed, retrying")
			select {
			case <-time.After(10 * time.Millisecond):
			case <-ctx.Done():
				return
			}
			continue
		}
		frame.Kind = c.kind
		frame.Width = c.width
		frame.Height = c.height
		frame.Format = c.format
		frame.DevType = c.devType
		frame.ZDTable = c.zdTable
		frame.ZNear = c.zNear
		frame.ZFar = c.zFar
		for _, cb := range c.callbacks {
			if cbErr := cb(frame); cbErr != nil {
				c.log.Warn().Err(cbErr).Str("capture", c.name).Msg("frame callback failed")
			}
		}
		if err := c.pool.Send(ctx, frame); err != nil {
			return
		}
	}
}

func (c *capture) wait() {
	c.wg.Wait()
}
