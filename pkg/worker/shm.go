package worker

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// SharedState is a fixed-size region, backed by a temp file and mapped
// MAP_SHARED so every worker process (all descendants of the same
// re-exec'd binary) observes the same bytes. Real fork()+shmget() isn't
// available once goroutines are running, so a shared mmap over an
// unlinked-on-exit temp file is the idiomatic Go substitute. The region
// lays out two sections back to back: an array of TicketLocks (index 0 is
// the accept-arbitration lock every worker takes before Accept; index i+1
// is worker i's own spinlock, currently unused by the connection loop but
// reserved for future per-worker coordination), followed by an array of
// WorkerRecords the supervisor and every worker can both read without a
// round trip through the parent process.
type SharedState struct {
	file    *os.File
	data    []byte
	locks   []*TicketLock
	workers []*WorkerRecord
}

// lockSize is a conservative size for TicketLock once mapped onto raw
// bytes; four int32 fields, 16 bytes, matching Lock_t's packed layout.
const lockSize = int(unsafe.Sizeof(TicketLock{}))

// recordSize is WorkerRecord's mapped size.
const recordSize = int(unsafe.Sizeof(WorkerRecord{}))

// WorkerRecord is one worker's entry in the shared region: its identity,
// its OS process id, and whether the supervisor currently considers it
// alive. PID and Active are accessed through sync/atomic since the writer
// (the supervisor) and any reader (a sibling worker, a future admin
// endpoint) live in different processes and cannot take a Go-level mutex
// across that boundary; ID and CPU are plain fields the supervisor sets
// once, before it marks the record active.
type WorkerRecord struct {
	ID     int32
	CPU    int32
	PID    int32
	Active int32
}

// MarkActive records that this worker is running.
func (r *WorkerRecord) MarkActive() { atomic.StoreInt32(&r.Active, 1) }

// MarkInactive records that this worker has exited.
func (r *WorkerRecord) MarkInactive() { atomic.StoreInt32(&r.Active, 0) }

// IsActive reports the worker's last-recorded liveness.
func (r *WorkerRecord) IsActive() bool { return atomic.LoadInt32(&r.Active) != 0 }

// SetPID records the OS process id the supervisor assigned this slot,
// set once right after the child starts.
func (r *WorkerRecord) SetPID(pid int) { atomic.StoreInt32(&r.PID, int32(pid)) }

// OpenSharedState creates (or opens, for a re-exec'd child that inherited
// the path via the SUIL_SHM_PATH environment variable) the shared region
// sized to hold nLocks ticket locks followed by nWorkers worker records.
func OpenSharedState(path string, nLocks, nWorkers int) (*SharedState, error) {
	lockBytes := lockSize * nLocks
	recordBytes := recordSize * nWorkers
	size := lockBytes + recordBytes
	if size == 0 {
		size = lockSize
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("worker: open shared state file: %w", err)
	}

	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("worker: truncate shared state file: %w", err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("worker: mmap shared state: %w", err)
	}

	s := &SharedState{file: f, data: data}
	s.locks = make([]*TicketLock, nLocks)
	for i := 0; i < nLocks; i++ {
		s.locks[i] = (*TicketLock)(unsafe.Pointer(&data[i*lockSize]))
	}
	s.workers = make([]*WorkerRecord, nWorkers)
	for i := 0; i < nWorkers; i++ {
		s.workers[i] = (*WorkerRecord)(unsafe.Pointer(&data[lockBytes+i*recordSize]))
	}
	return s, nil
}

// Lock returns the i'th ticket lock in the shared region. Lock 0 is the
// accept-arbitration lock every worker acquires before ServerSocket.Accept
// and releases right after.
func (s *SharedState) Lock(i int) *TicketLock {
	return s.locks[i]
}

// PerWorkerLock returns the spinlock reserved for worker index i
// (0-based), distinct from the shared accept lock at Lock(0).
func (s *SharedState) PerWorkerLock(i int) *TicketLock {
	return s.locks[i+1]
}

// Worker returns the shared record for worker index i (0-based).
func (s *SharedState) Worker(i int) *WorkerRecord {
	return s.workers[i]
}

// NumWorkers reports how many worker records the region holds.
func (s *SharedState) NumWorkers() int {
	return len(s.workers)
}

// InitLocks resets every lock slot with a distinct id.
func (s *SharedState) InitLocks() {
	for i, l := range s.locks {
		l.Reset(int32(256 + i))
	}
}

// Close unmaps the region and closes (but does not remove) the backing
// file; the supervisor removes the file itself once all workers exit.
func (s *SharedState) Close() error {
	if err := unix.Munmap(s.data); err != nil {
		return err
	}
	return s.file.Close()
}

// Path returns the backing file's path, passed to child workers via
// SUIL_SHM_PATH so they can OpenSharedState onto the same region.
func (s *SharedState) Path() string {
	return s.file.Name()
}
