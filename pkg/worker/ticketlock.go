// Package worker implements the worker-process supervisor described in
// spec.md §4.3 (C3): a parent process launches N sibling workers that share
// a listening socket guarded by a ticket lock, pin themselves to a CPU, and
// broadcast between each other over pipes. Go processes cannot safely
// fork(2) once goroutines are running, so the supervisor re-execs the
// current binary as N child processes instead of forking — the same
// "spawn an external process and track it" shape docker/model-runner's
// llamacpp/vllm/mlx backends use for their inference server subprocesses,
// generalized from "one subprocess per model" to "N sibling worker
// subprocesses sharing accept duties".
package worker

import (
	"sync/atomic"
	"time"
)

// TicketLock is a fair spinlock built on atomic fetch-and-add, load and
// store over shared int32 counters, a direct translation of
// original suil's Lock_t (Next/Serving counters, On flag) from
// suil/worker.cpp: Lock::spin_lock/Lock::unlock. In the Go port the
// "shared memory" is the region SharedState maps (shm.go), so the same
// struct layout is usable from multiple OS processes.
type TicketLock struct {
	// Next is the next ticket to hand out.
	Next int32
	// Serving is the ticket currently being served.
	Serving int32
	// On is nonzero while the lock is active; Cancel clears it so any
	// spinning waiters fall through immediately.
	On int32
	// ID is a small debugging tag, mirroring Lock_t.Id.
	ID int32
}

// Reset initializes (or re-initializes) a lock in newly mapped shared
// memory, matching Lock::reset.
func (l *TicketLock) Reset(id int32) {
	atomic.StoreInt32(&l.Serving, 0)
	atomic.StoreInt32(&l.Next, 0)
	atomic.StoreInt32(&l.On, 1)
	atomic.StoreInt32(&l.ID, id)
}

// Cancel disables the lock; any spinning waiter observes On==0 and returns
// immediately without acquiring, matching Lock::cancel.
func (l *TicketLock) Cancel() {
	atomic.StoreInt32(&l.On, 0)
}

// SpinLock takes a ticket and spins (yielding between polls) until it is
// being served, the lock is cancelled, or timeout elapses (zero timeout
// means wait forever). It returns false only on timeout.
func (l *TicketLock) SpinLock(timeout time.Duration) bool {
	ticket := atomic.AddInt32(&l.Next, 1) - 1

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for atomic.LoadInt32(&l.On) != 0 && atomic.LoadInt32(&l.Serving) != ticket {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return false
		}
		// Cooperative yield between polls, same spirit as the original
		// suil Lock::spin_lock's yield() call inside its spin loop.
		time.Sleep(time.Microsecond * 50)
	}
	return true
}

// Unlock advances the serving counter, releasing the next waiting ticket
// holder, matching Lock::unlock.
func (l *TicketLock) Unlock() {
	atomic.AddInt32(&l.Serving, 1)
}

// Locked acquires the lock, runs f, and always releases it — the Go
// analogue of the RAII suil::Lock guard (suil::Lock's constructor/
// destructor pair around spin_lock/unlock).
func (l *TicketLock) Locked(f func()) {
	l.SpinLock(0)
	defer l.Unlock()
	f()
}
