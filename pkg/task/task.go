// Package task provides the cooperative-scheduling vocabulary described in
// spec.md §4.1 (C1), realized on top of goroutines and channels rather than
// user-level coroutines — Go's netpoller and channel select already give the
// same externally observable guarantees (FIFO readiness is approximated by
// the Go scheduler, suspension happens only at explicit I/O/channel/sleep/
// yield points from the caller's perspective).
package task

import (
	"context"
	"runtime"
	"time"
)

// Spawn launches f as a new task (goroutine). It is fire-and-forget: the
// caller observes nothing about f's completion except through channels f
// itself closes or writes to, mirroring spec.md's "no implicit parallelism"
// and "fire-and-forget spawn" semantics.
func Spawn(ctx context.Context, f func(context.Context)) {
	go f(ctx)
}

// Yield cooperatively yields the processor, matching the spec's yield()
// primitive. Go's scheduler is preemptive, so this is advisory; within
// this module it is reached through Sleep with a non-positive duration.
func Yield(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runtime.Gosched()
	return nil
}

// Sleep suspends the current task for d, or until ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return Yield(ctx)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DeadlineAfter computes an absolute deadline ms milliseconds from now,
// mirroring the spec's deadline_after(ms) helper. A non-positive ms means
// "no deadline", returned as the zero time.Time (the Go analogue of the
// spec's -1 sentinel).
func DeadlineAfter(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(ms) * time.Millisecond)
}
