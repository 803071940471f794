package worker

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/suilhq/suil/pkg/logging"
)

// Worker is the child-process side of the supervisor/worker relationship:
// it attaches to the shared region the supervisor created, pins itself to
// its assigned CPU, and exposes the shared accept lock to the connection
// loop in pkg/server.
type Worker struct {
	Identity    Identity
	Broadcaster *Broadcaster
	log         logging.Logger
	shm         *SharedState
}

// Attach opens the worker entrypoint for a re-exec'd child process: reads
// its Identity from the environment, pins its CPU, maps the shared state
// the supervisor created, and reconstructs this worker's Broadcaster from
// the pipe descriptors Supervisor.Launch handed it (nil if the
// supervisor did not set up a broadcast mesh, e.g. a single-worker run).
func Attach(log logging.Logger) (*Worker, error) {
	id, err := IdentityFromEnv()
	if err != nil {
		return nil, fmt.Errorf("worker: attach: %w", err)
	}

	if err := PinCPU(id.CPU); err != nil {
		log.Warnf("worker/%d: pin to cpu %d failed: %v", id.WorkerID, id.CPU, err)
	}

	shm, err := OpenSharedState(id.ShmPath, id.ShmLocks, id.ShmWorkers)
	if err != nil {
		return nil, fmt.Errorf("worker: attach shared state: %w", err)
	}

	w := &Worker{
		Identity: id,
		log:      logging.Component(log, fmt.Sprintf("worker/%d", id.WorkerID)),
		shm:      shm,
	}
	w.Broadcaster = attachBroadcaster(id)
	return w, nil
}

// attachBroadcaster rebuilds this worker's Broadcaster from the fd layout
// Supervisor.Launch described via the environment. Each peer write-end fd
// is wrapped in an *os.File, an io.Writer good enough for Broadcaster.Send
// without pulling in any net/exec machinery here.
func attachBroadcaster(id Identity) *Broadcaster {
	if id.BroadcastInboxFD == 0 {
		return nil
	}
	inbox := os.NewFile(uintptr(id.BroadcastInboxFD), "worker-broadcast-inbox")
	peers := make(map[int]io.Writer, id.BroadcastPeerCount-1)
	for _, k := range broadcastPeerPositions(id.BroadcastPeerCount, id.BroadcastSelfIndex) {
		fd := id.BroadcastPeerBase + k
		peers[k+1] = os.NewFile(uintptr(fd), fmt.Sprintf("worker-broadcast-peer-%d", k+1))
	}
	return NewBroadcaster(inbox, peers)
}

// broadcastPeerPositions returns every 0-based position in [0, peerCount)
// except selfIndex: one entry per sibling worker whose write end this
// worker should hold, in ascending fd-offset order. Factored out of
// attachBroadcaster so the "every worker but myself" selection can be
// tested without constructing real file descriptors.
func broadcastPeerPositions(peerCount, selfIndex int) []int {
	positions := make([]int, 0, peerCount-1)
	for k := 0; k < peerCount; k++ {
		if k == selfIndex {
			continue
		}
		positions = append(positions, k)
	}
	return positions
}

// RunBroadcastLoop drains this worker's Broadcaster inbox in the
// background, invoking handle for every frame received from a sibling,
// until ctx is done or the inbox pipe closes. It is a no-op if Attach did
// not find a broadcast mesh to join.
func (w *Worker) RunBroadcastLoop(ctx context.Context, handle func(tag byte, payload []byte)) {
	if w.Broadcaster == nil {
		return
	}
	go func() {
		for {
			if ctx.Err() != nil {
				return
			}
			tag, payload, err := w.Broadcaster.Receive()
			if err != nil {
				return
			}
			handle(tag, payload)
		}
	}()
}

// AcceptLock returns the shared accept-arbitration lock (index 0), which
// the connection loop in pkg/server takes before ServerSocket.Accept and
// releases immediately after, serializing the thundering herd across
// workers sharing one inherited listener.
func (w *Worker) AcceptLock() *TicketLock {
	return w.shm.Lock(0)
}

// Close releases this worker's mapping of the shared region. It does not
// remove the backing file; only the supervisor does that on full shutdown.
func (w *Worker) Close() error {
	return w.shm.Close()
}
