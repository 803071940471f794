package worker

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Broadcaster implements cross-worker fan-out over pipes: each worker
// owns a read end draining messages sent by any sibling, and write ends
// to every sibling's read end. Frames are [1-byte tag][4-byte big-endian
// length][payload], the same length-prefixing idiom pkg/rpc's envelope
// uses, so pkg/wsock's cluster broadcast and any future framed traffic
// between workers share one convention. Supervisor.Launch builds the
// pipe mesh and threads the resulting descriptors into each child via
// exec.Cmd.ExtraFiles; worker.Attach reconstructs a Broadcaster from the
// fd layout it describes in the environment.
type Broadcaster struct {
	// peers holds one write end per sibling worker, keyed by worker id.
	peers map[int]io.Writer
	// readEnd is this worker's own read end, drained by Receive.
	readEnd io.Reader
}

// NewBroadcaster wraps the read end owned by this worker and the write
// ends of every peer, typically created from os.Pipe pairs threaded
// through exec.Cmd.ExtraFiles when the supervisor launches workers.
func NewBroadcaster(readEnd io.Reader, peers map[int]io.Writer) *Broadcaster {
	return &Broadcaster{peers: peers, readEnd: readEnd}
}

// Send writes a tagged frame to every peer. Best-effort: a write failure
// to one peer (e.g. it has already exited) is reported but does not stop
// delivery to the others — there is no ack and no retry.
func (b *Broadcaster) Send(tag byte, payload []byte) []error {
	var errs []error
	for id, w := range b.peers {
		if err := writeFrame(w, tag, payload); err != nil {
			errs = append(errs, fmt.Errorf("worker: broadcast to peer %d: %w", id, err))
		}
	}
	return errs
}

// Receive reads the next frame from this worker's own read end, blocking
// until one arrives or the pipe is closed.
func (b *Broadcaster) Receive() (tag byte, payload []byte, err error) {
	return readFrame(b.readEnd)
}

func writeFrame(w io.Writer, tag byte, payload []byte) error {
	header := make([]byte, 5)
	header[0] = tag
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) (byte, []byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	tag := header[0]
	n := binary.BigEndian.Uint32(header[1:])
	if n == 0 {
		return tag, nil, nil
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return tag, payload, nil
}

// PipePair is a convenience alias documenting intent at call sites that
// wire up os.Pipe() results into ExtraFiles slots.
type PipePair struct {
	Read  *os.File
	Write *os.File
}

// NewPipePair creates one OS pipe, used once per worker by the supervisor
// to build the N-to-N broadcast mesh.
func NewPipePair() (PipePair, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return PipePair{}, err
	}
	return PipePair{Read: r, Write: w}, nil
}
