package transfers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serialSource emits frames with scripted serial numbers, then blocks
// until the context is cancelled.
type serialSource struct {
	serials []uint32
	reads   atomic.Int64
}

func (s *serialSource) ReadFrame(ctx context.Context, f *Frame) error {
	n := int(s.reads.Add(1)) - 1
	if n >= len(s.serials) {
		<-ctx.Done()
		return ctx.Err()
	}
	f.Serial = s.serials[n]
	f.ActualSize = len(f.Data)
	return nil
}

// failingSource fails a fixed number of reads before emitting frames with
// increasing serials.
type failingSource struct {
	failures int
	reads    atomic.Int64
	serial   atomic.Uint32
}

func (s *failingSource) ReadFrame(ctx context.Context, f *Frame) error {
	if int(s.reads.Add(1)) <= s.failures {
		return errors.New("transient read failure")
	}
	f.Serial = s.serial.Add(1)
	f.ActualSize = len(f.Data)
	return nil
}

func newTestRouter(src FrameSource, queueCap int) (*Router, *Channel[*Frame], *Channel[*Frame]) {
	color := NewChannel[*Frame](queueCap)
	depth := NewChannel[*Frame](queueCap)
	r := NewRouter(RouterConfig{
		Source:     src,
		Color:      color,
		Depth:      depth,
		Width:      4,
		Height:     4,
		BufferSize: 32,
		Logger:     zerolog.Nop(),
	})
	return r, color, depth
}

// drain collects serials delivered to a consumer channel and returns each
// frame to the pool, imitating a well-behaved producer.
func drain(t *testing.T, ctx context.Context, ch *Channel[*Frame], pool *Channel[*Frame], mu *sync.Mutex, out *[]uint32) {
	t.Helper()
	go func() {
		for {
			f, err := ch.Receive(ctx)
			if err != nil {
				return
			}
			mu.Lock()
			*out = append(*out, f.Serial)
			mu.Unlock()
			if pool.Send(ctx, f) != nil {
				return
			}
		}
	}()
}

func TestRouterParityRouting(t *testing.T) {
	src := &serialSource{serials: []uint32{1, 2, 3, 4, 5, 6, 7, 8}}
	r, color, depth := newTestRouter(src, SharedPoolSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var mu sync.Mutex
	var colors, depths []uint32
	drain(t, ctx, color, r.Pool(), &mu, &colors)
	drain(t, ctx, depth, r.Pool(), &mu, &depths)

	require.NoError(t, r.Start())
	require.Eventually(t, func() bool { return r.Stats().Routed() == 8 },
		2*time.Second, 5*time.Millisecond)
	r.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint32{1, 3, 5, 7}, colors, "odd serials go to the color consumer in order")
	assert.Equal(t, []uint32{2, 4, 6, 8}, depths, "even serials go to the depth consumer in order")

	s := r.Stats()
	assert.Equal(t, uint64(4), s.ColorRouted)
	assert.Equal(t, uint64(4), s.DepthRouted)
	assert.Equal(t, uint64(0), s.DropsReadError)
}

func TestRouterBackpressureBlocksBeforeNextRead(t *testing.T) {
	// Serial 1 fills the single-slot color queue, serial 3 must park the
	// reader loop in a blocking send. Serial 2 (a depth frame) must not be
	// read, let alone routed, until color drains.
	src := &serialSource{serials: []uint32{1, 3, 2}}
	r, color, depth := newTestRouter(src, 1)

	require.NoError(t, r.Start())
	defer r.Stop()

	require.Eventually(t, func() bool { return src.reads.Load() == 2 },
		time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 2, src.reads.Load(), "router must stall on the full color queue")
	assert.Equal(t, 0, depth.Len(), "depth frame read before color consumer drained")

	ctx := context.Background()
	f, err := color.Receive(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.Serial)
	require.NoError(t, r.Pool().Send(ctx, f))

	require.Eventually(t, func() bool { return depth.Len() == 1 },
		time.Second, time.Millisecond)
	f, err = depth.Receive(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.Serial)
	assert.Equal(t, uint64(0), r.Stats().DropsReadError, "backpressure must never drop")
}

func TestRouterTransientFailuresBelowCeiling(t *testing.T) {
	src := &failingSource{failures: maxConsecutiveFailures - 1}
	r, color, depth := newTestRouter(src, SharedPoolSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var mu sync.Mutex
	var colors, depths []uint32
	drain(t, ctx, color, r.Pool(), &mu, &colors)
	drain(t, ctx, depth, r.Pool(), &mu, &depths)

	require.NoError(t, r.Start())
	require.Eventually(t, func() bool { return r.Stats().Routed() >= 2 },
		5*time.Second, 10*time.Millisecond)

	assert.True(t, r.Running(), "99 consecutive failures must not stop the router")
	s := r.Stats()
	assert.Equal(t, uint64(maxConsecutiveFailures-1), s.ReadErrors)
	assert.EqualValues(t, 0, s.ConsecutiveFailures, "successful route resets the failure counter")
	r.Stop()
}

func TestRouterFatalFailureCeiling(t *testing.T) {
	src := &failingSource{failures: int(^uint(0) >> 1)} // never succeeds
	r, _, _ := newTestRouter(src, SharedPoolSize)

	require.NoError(t, r.Start())
	require.Eventually(t, func() bool { return !r.Running() },
		5*time.Second, 10*time.Millisecond,
		"reaching the failure ceiling must terminate the router observably")

	s := r.Stats()
	assert.Equal(t, uint64(maxConsecutiveFailures), s.ReadErrors)
	assert.EqualValues(t, maxConsecutiveFailures, s.ConsecutiveFailures)
	r.Stop() // join after self-termination must not hang
}

func TestRouterConsumerCloseIsCleanShutdown(t *testing.T) {
	src := &serialSource{serials: []uint32{1, 3, 5}}
	r, color, _ := newTestRouter(src, 1)
	color.Close()

	require.NoError(t, r.Start())
	require.Eventually(t, func() bool { return !r.Running() },
		time.Second, time.Millisecond)
	assert.Equal(t, uint64(0), r.Stats().Routed())
	r.Stop()
}

func TestRouterStopWhileConsumerStalled(t *testing.T) {
	// All-odd serials with nobody draining color: the router parks in a
	// backpressured send. Stop must still complete.
	src := &serialSource{serials: []uint32{1, 3, 5, 7, 9, 11}}
	r, _, _ := newTestRouter(src, 1)
	require.NoError(t, r.Start())

	require.Eventually(t, func() bool { return src.reads.Load() >= 2 },
		time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop deadlocked on a stalled consumer")
	}
	assert.False(t, r.Running())
}

func TestRouterLifecycleGuards(t *testing.T) {
	src := &serialSource{}
	r, _, _ := newTestRouter(src, 1)
	require.NoError(t, r.Start())
	assert.Error(t, r.Start(), "second Start must fail")
	r.Stop()
	r.Stop() // idempotent
	assert.Error(t, r.Start(), "Start after Stop must fail")
}

func TestRouterDepthAnnotation(t *testing.T) {
	zd := []byte{0x01, 0x02, 0x03, 0x04}
	src := &serialSource{serials: []uint32{2, 1}}
	color := NewChannel[*Frame](2)
	depth := NewChannel[*Frame](2)
	r := NewRouter(RouterConfig{
		Source:      src,
		Color:       color,
		Depth:       depth,
		Width:       4,
		Height:      4,
		BufferSize:  32,
		ColorFormat: 0x00,
		DepthFormat: 0x1a,
		DevType:     5,
		ZDTable:     zd,
		ZNear:       0x0102,
		ZFar:        0x0304,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, r.Start())
	defer r.Stop()

	ctx := context.Background()
	f, err := depth.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, FrameKindDepth, f.Kind)
	assert.Equal(t, uint32(0x1a), f.Format)
	assert.Equal(t, zd, f.ZDTable)
	assert.Equal(t, uint16(0x0102), f.ZNear)
	assert.Equal(t, uint16(0x0304), f.ZFar)
	require.NoError(t, r.Pool().Send(ctx, f))

	f, err = color.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, FrameKindColor, f.Kind)
	assert.Nil(t, f.ZDTable, "color frames carry no depth annotation")
}
