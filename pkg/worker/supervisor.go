package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strconv"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/suilhq/suil/pkg/logging"
)

// Environment variables a re-exec'd worker reads to discover its identity;
// the supervisor sets these on each child's Cmd.Env, the same
// environment-variable handoff style main.go uses for MODEL_RUNNER_SOCK/
// MODELS_PATH/LLAMA_SERVER_PATH.
const (
	EnvRole       = "SUIL_WORKER_ROLE" // "1" marks a re-exec'd worker process
	EnvWorkerID   = "SUIL_WORKER_ID"
	EnvWorkerCPU  = "SUIL_WORKER_CPU"
	EnvShmPath    = "SUIL_SHM_PATH"
	EnvShmLocks   = "SUIL_SHM_LOCKS"
	EnvShmWorkers = "SUIL_SHM_WORKERS"
	EnvListenFD   = "SUIL_LISTEN_FD"

	// Broadcast mesh descriptor layout, set by Launch and read back by
	// IdentityFromEnv. InboxFD is this worker's own read end; PeerBase is
	// the fd of peer 0's write end, with peer k's write end at
	// PeerBase+k for k in [0, PeerCount); SelfIndex is this worker's own
	// 0-based position in that range (its own write end, included for
	// uniform indexing, is simply never written to).
	EnvBroadcastInboxFD   = "SUIL_BCAST_INBOX_FD"
	EnvBroadcastPeerBase  = "SUIL_BCAST_PEER_BASE"
	EnvBroadcastPeerCount = "SUIL_BCAST_PEER_COUNT"
	EnvBroadcastSelfIndex = "SUIL_BCAST_SELF_INDEX"
)

// ListenFD is the file descriptor a worker process finds its inherited
// listening socket on: when Launch is given a listener it is the first
// entry passed via os/exec.Cmd.ExtraFiles, which always lands at fd 3 in
// the child (0/1/2 are stdin/stdout/stderr); the broadcast pipe ends
// follow it.
const ListenFD = 3

// IsWorker reports whether the current process was re-exec'd as a worker,
// i.e. whether main() should run the worker entrypoint instead of the
// supervisor.
func IsWorker() bool {
	return os.Getenv(EnvRole) == "1"
}

// Identity describes the current process's place in the worker topology,
// populated from the environment by a re-exec'd child via IdentityFromEnv.
type Identity struct {
	WorkerID int
	CPU      int
	ShmPath  string
	ShmLocks int
	// ShmWorkers is how many WorkerRecord slots the shared region holds,
	// one per launched worker.
	ShmWorkers int
	// ListenFD is the inherited listening socket's descriptor, or 0 if
	// this worker must bind its own listener instead of sharing one.
	ListenFD int

	// BroadcastInboxFD is this worker's own pipe read end, or 0 if the
	// supervisor did not set up a broadcast mesh (e.g. a single-worker
	// deployment with no siblings to reach).
	BroadcastInboxFD   int
	BroadcastPeerBase  int
	BroadcastPeerCount int
	BroadcastSelfIndex int
}

// IdentityFromEnv reads the identity a supervisor assigned to this process.
func IdentityFromEnv() (Identity, error) {
	id, err := strconv.Atoi(os.Getenv(EnvWorkerID))
	if err != nil {
		return Identity{}, fmt.Errorf("worker: invalid %s: %w", EnvWorkerID, err)
	}
	cpu, err := strconv.Atoi(os.Getenv(EnvWorkerCPU))
	if err != nil {
		return Identity{}, fmt.Errorf("worker: invalid %s: %w", EnvWorkerCPU, err)
	}
	locks, err := strconv.Atoi(os.Getenv(EnvShmLocks))
	if err != nil {
		locks = 1
	}
	workers, _ := strconv.Atoi(os.Getenv(EnvShmWorkers))
	listenFD, _ := strconv.Atoi(os.Getenv(EnvListenFD))
	inboxFD, _ := strconv.Atoi(os.Getenv(EnvBroadcastInboxFD))
	peerBase, _ := strconv.Atoi(os.Getenv(EnvBroadcastPeerBase))
	peerCount, _ := strconv.Atoi(os.Getenv(EnvBroadcastPeerCount))
	selfIndex, _ := strconv.Atoi(os.Getenv(EnvBroadcastSelfIndex))
	return Identity{
		WorkerID:           id,
		CPU:                cpu,
		ShmPath:            os.Getenv(EnvShmPath),
		ShmLocks:           locks,
		ShmWorkers:         workers,
		ListenFD:           listenFD,
		BroadcastInboxFD:   inboxFD,
		BroadcastPeerBase:  peerBase,
		BroadcastPeerCount: peerCount,
		BroadcastSelfIndex: selfIndex,
	}, nil
}

// worker tracks one live child process from the supervisor's side.
type worker struct {
	id      int
	cpu     int
	cmd     *exec.Cmd
	active  bool
	tailBuf *outputTail
}

// Supervisor launches and tracks N sibling worker processes sharing a
// SharedState region, the Go-process-model substitute for suil's
// fork()-based Worker::launch(). Re-execing the binary is necessary
// because Go forbids a safe fork() once goroutines/the runtime's internal
// threads exist; exec.Command re-invoking os.Executable() is the idiomatic
// stand-in, the same "spawn an external process, track its lifecycle"
// shape used by the llamacpp/vllm/mlx backend runners.
type Supervisor struct {
	log     logging.Logger
	shm     *SharedState
	workers []*worker
	mu      sync.Mutex
}

// NewSupervisor creates the shared-memory region (shmPath) sized for n
// workers plus the accept-arbitration lock, and prepares to launch them.
func NewSupervisor(log logging.Logger, shmPath string, n int) (*Supervisor, error) {
	shm, err := OpenSharedState(shmPath, n+1, n)
	if err != nil {
		return nil, err
	}
	shm.InitLocks()
	return &Supervisor{log: log, shm: shm}, nil
}

// AcceptLock returns the shared accept-arbitration lock (index 0), the
// lock every worker takes before ServerSocket.Accept and releases right
// after, serializing the thundering herd across sibling workers.
func (s *Supervisor) AcceptLock() *TicketLock {
	return s.shm.Lock(0)
}

// Launch starts n worker processes, each a re-exec of the current binary
// with EnvRole/EnvWorkerID/EnvWorkerCPU/EnvShmPath set. extraEnv is
// appended to each child's environment (e.g. the listen address).
// listenerFile, if non-nil, is inherited by every child as fd ListenFD
// (via ExtraFiles) and EnvListenFD is set so the child knows to use it
// instead of binding its own listener.
//
// Launch also builds the cross-worker broadcast mesh: one pipe per
// worker, read end kept by its owner and write end handed to every
// sibling, so any worker can reach every other worker's locally-held
// WebSocket connections (see pkg/wsock.BroadcastCluster). Descriptor
// numbers are assigned per child starting right after the listener (if
// any), and communicated via the EnvBroadcast* variables rather than
// relying on the child guessing fd layout.
func (s *Supervisor) Launch(ctx context.Context, n int, listenerFile *os.File, extraEnv []string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("worker: resolve executable: %w", err)
	}

	ncpu := runtime.NumCPU()
	if ncpu < 1 {
		ncpu = 1
	}

	pipes := make([]PipePair, n)
	for i := range pipes {
		p, err := NewPipePair()
		if err != nil {
			closePipes(pipes[:i])
			return fmt.Errorf("worker: create broadcast pipe %d: %w", i, err)
		}
		pipes[i] = p
	}
	// Every pipe end above was inherited by a child via ExtraFiles (dup'd
	// into its own fd table); the supervisor's own copies can close once
	// every child has started.
	defer closePipes(pipes)

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < n; i++ {
		cpu := i % ncpu
		cmd := exec.CommandContext(ctx, exe, os.Args[1:]...)
		cmd.Env = append(os.Environ(),
			EnvRole+"=1",
			fmt.Sprintf("%s=%d", EnvWorkerID, i+1),
			fmt.Sprintf("%s=%d", EnvWorkerCPU, cpu),
			fmt.Sprintf("%s=%s", EnvShmPath, s.shm.Path()),
			fmt.Sprintf("%s=%d", EnvShmLocks, len(s.shm.locks)),
			fmt.Sprintf("%s=%d", EnvShmWorkers, s.shm.NumWorkers()),
		)

		nextFD := ListenFD
		var extraFiles []*os.File
		if listenerFile != nil {
			extraFiles = append(extraFiles, listenerFile)
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%d", EnvListenFD, nextFD))
			nextFD++
		}

		inboxFD := nextFD
		extraFiles = append(extraFiles, pipes[i].Read)
		nextFD++

		peerBase := nextFD
		for k := 0; k < n; k++ {
			extraFiles = append(extraFiles, pipes[k].Write)
			nextFD++
		}

		cmd.ExtraFiles = extraFiles
		cmd.Env = append(cmd.Env,
			fmt.Sprintf("%s=%d", EnvBroadcastInboxFD, inboxFD),
			fmt.Sprintf("%s=%d", EnvBroadcastPeerBase, peerBase),
			fmt.Sprintf("%s=%d", EnvBroadcastPeerCount, n),
			fmt.Sprintf("%s=%d", EnvBroadcastSelfIndex, i),
		)
		cmd.Env = append(cmd.Env, extraEnv...)

		// Every worker's combined stdout/stderr is teed into a tail
		// buffer alongside the ordinary passthrough, so a crash message
		// can quote the worker's last output without the supervisor
		// having kept the whole process log around.
		tailBuf := newOutputTail(4096)
		cmd.Stdout = io.MultiWriter(os.Stdout, tailBuf)
		cmd.Stderr = io.MultiWriter(os.Stderr, tailBuf)

		if err := cmd.Start(); err != nil {
			return fmt.Errorf("worker: start worker %d: %w", i+1, err)
		}

		record := s.shm.Worker(i)
		record.ID = int32(i + 1)
		record.CPU = int32(cpu)
		record.SetPID(cmd.Process.Pid)
		record.MarkActive()

		w := &worker{id: i + 1, cpu: cpu, cmd: cmd, active: true, tailBuf: tailBuf}
		s.workers = append(s.workers, w)
		s.log.Infof("started worker/%d pid=%d cpu=%d", w.id, cmd.Process.Pid, cpu)
	}
	return nil
}

func closePipes(pipes []PipePair) {
	for _, p := range pipes {
		p.Read.Close()
		p.Write.Close()
	}
}

// Wait blocks until every worker has exited, marking each inactive as it
// does, mirroring Parent_sa_handler's SIGCHLD bookkeeping (nActive
// decrement per exiting worker). Built on errgroup.Group the way
// docker/model-runner's own scheduler fans out its concurrent backend
// goroutines, even though every worker's wait error is only logged here
// rather than propagated (there is no single "first worker failure"
// concept worth cancelling the rest of the fleet over).
func (s *Supervisor) Wait() {
	var g errgroup.Group
	for i, w := range s.workers {
		if w == nil {
			continue
		}
		idx := i
		g.Go(func() error {
			err := w.cmd.Wait()
			s.mu.Lock()
			w.active = false
			s.mu.Unlock()
			s.shm.Worker(idx).MarkInactive()
			if err != nil {
				if tail := w.tailBuf.Tail(); len(tail) != 0 {
					s.log.Warnf("worker/%d exited: %v\nwith output: %s", w.id, err, tail)
				} else {
					s.log.Warnf("worker/%d exited: %v", w.id, err)
				}
			} else {
				s.log.Infof("worker/%d exited cleanly", w.id)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Shutdown signals every live worker to terminate and releases the shared
// region, matching Worker::exit's parent-side shmctl(IPC_RMID) teardown.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	for _, w := range s.workers {
		if w != nil && w.active && w.cmd.Process != nil {
			_ = w.cmd.Process.Signal(syscall.SIGTERM)
		}
	}
	s.mu.Unlock()
	s.Wait()
	s.AcceptLock().Cancel()
	if err := s.shm.Close(); err != nil {
		s.log.Warnf("closing shared state: %v", err)
	}
	_ = os.Remove(s.shm.Path())
}

// NotifyShutdown wires SIGINT/SIGTERM into ctx cancellation for the
// supervisor process, the same pattern main.go uses via
// signal.NotifyContext.
func NotifyShutdown() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
