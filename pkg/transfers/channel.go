package transfers

import (
	"context"
	"errors"
	"sync"
)

// ErrChannelClosed is returned by Send and Receive after Close. Shutdown
// paths should treat it as a normal stop signal, not a failure.
var ErrChannelClosed = errors.New("transfers: channel closed")

// Channel is a fixed-capacity blocking queue used to transfer Frame
// ownership between the router, producers, and the shared free pool.
// Send blocks while full and Receive blocks while empty; neither ever
// drops. Close wakes every blocked caller.
type Channel[T any] struct {
	ch        chan T
	done      chan struct{}
	closeOnce sync.Once
}

// NewChannel creates a channel with the given capacity. Capacity is fixed
// for the channel's lifetime.
func NewChannel[T any](capacity int) *Channel[T] {
	return &Channel[T]{
		ch:   make(chan T, capacity),
		done: make(chan struct{}),
	}
}

// Send blocks until the value is enqueued, the channel is closed, or ctx is
// cancelled. A nil-context caller may pass context.Background().
func (c *Channel[T]) Send(ctx context.Context, v T) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}
	select {
	case c.ch <- v:
		return nil
	case <-c.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks until a value is available, the channel is closed, or ctx
// is cancelled. Values already enqueued before Close are still drained.
func (c *Channel[T]) Receive(ctx context.Context) (T, error) {
	select {
	case v := <-c.ch:
		return v, nil
	default:
	}
	select {
	case v := <-c.ch:
		return v, nil
	case <-c.done:
		// A value may have raced in between the fast path and Close.
		select {
		case v := <-c.ch:
			return v, nil
		default:
		}
		var zero T
		return zero, ErrChannelClosed
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Close wakes all blocked senders and receivers. Safe to call multiple
// times and concurrently with Send/Receive.
func (c *Channel[T]) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Closed reports whether Close has been called.
func (c *Channel[T]) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Len returns the number of buffered values.
func (c *Channel[T]) Len() int { return len(c.ch) }

// Cap returns the fixed capacity.
func (c *Channel[T]) Cap() int { return cap(c.ch) }
