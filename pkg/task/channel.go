package task

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Send on a channel that has been closed. Recv
// does not return it: after all buffered values have been drained, Recv
// surfaces the "term" sentinel as ok==false with a nil error, per spec.md
// §3's Channel<T> invariant: "closed channels still deliver buffered
// values, then surface term".
var ErrClosed = errors.New("task: channel closed")

// Channel is a bounded or rendezvous queue, grounded on the guard/waiters
// polling pattern in docker/model-runner's pkg/inference/scheduling/loader.go
// (a buffered chan struct{} used as a semaphore, plus a set of waiter
// channels woken by a non-blocking broadcast send).
type Channel[T any] struct {
	ch        chan T
	closeOnce sync.Once
	closed    chan struct{}
}

// NewChannel creates a channel with the given capacity. capacity==0 is a
// rendezvous channel (unbuffered), matching spec.md's "N=0 => rendezvous".
func NewChannel[T any](capacity int) *Channel[T] {
	return &Channel[T]{
		ch:     make(chan T, capacity),
		closed: make(chan struct{}),
	}
}

// Send delivers v to the channel, suspending the caller until there is
// room, ctx is cancelled, or the channel is closed.
func (c *Channel[T]) Send(ctx context.Context, v T) (err error) {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	// Close closes c.ch too, so a Close racing with this send makes the
	// send below panic; that panic is reported as ErrClosed.
	defer func() {
		if recover() != nil {
			err = ErrClosed
		}
	}()
	select {
	case c.ch <- v:
		return nil
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend attempts a non-blocking send, used for best-effort broadcast
// fan-out (spec.md §4.3 "each broadcast is best-effort, no ack").
func (c *Channel[T]) TrySend(v T) bool {
	select {
	case c.ch <- v:
		return true
	default:
		return false
	}
}

// Recv waits for a value, a deadline expressed via ctx, or channel closure.
// It returns ok==false only once buffered values are exhausted and the
// channel has been closed, matching the "term" sentinel semantics.
func (c *Channel[T]) Recv(ctx context.Context) (v T, ok bool, err error) {
	select {
	case v, open := <-c.ch:
		if !open {
			return v, false, nil
		}
		return v, true, nil
	case <-ctx.Done():
		return v, false, ctx.Err()
	}
}

// Close marks the channel closed. Idempotent. Buffered values already sent
// remain readable until drained, then Recv reports ok==false.
func (c *Channel[T]) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		close(c.ch)
	})
}

// Raw exposes the underlying Go channel for use in select/Choose.
func (c *Channel[T]) Raw() <-chan T {
	return c.ch
}
