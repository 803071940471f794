// Package netio provides the socket abstraction described in spec.md §4.2:
// a uniform connect/send/recv/sendfile/flush interface over plain TCP and
// TLS, with all operations taking a deadline instead of relying on blocking
// syscalls reaching the OS directly. Every operation is a thin wrapper
// around net.Conn's SetDeadline family, the same style docker/model-runner's
// main.go uses around net.ListenUnix/net.Listen.
package netio

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
	"time"
)

// ErrSendfileUnsupported is returned by Sendfile on adapters (TLS) that
// cannot perform a zero-copy transfer. Callers probe CanSendfile first.
var ErrSendfileUnsupported = errors.New("netio: sendfile not supported on this socket")

// Socket is the uniform transport interface consumed by pkg/server and
// pkg/wsock. A zero deadline means "no deadline", mirroring spec.md's use
// of -1 as a sentinel for "block forever".
type Socket interface {
	// Send writes buf, respecting deadline. It may perform a short write;
	// callers loop until all bytes are sent or an error occurs.
	Send(buf []byte, deadline time.Time) (int, error)
	// Recv reads into buf, respecting deadline.
	Recv(buf []byte, deadline time.Time) (int, error)
	// RecvUntil reads until one of delims is seen as a trailing byte
	// sequence, returning everything read so far including the delimiter.
	RecvUntil(delims [][]byte, maxLen int, deadline time.Time) ([]byte, error)
	// Sendfile transmits length bytes from f starting at offset using a
	// zero-copy primitive where supported, or ErrSendfileUnsupported.
	Sendfile(f *os.File, offset int64, length int64, deadline time.Time) (int64, error)
	// CanSendfile reports whether Sendfile is implemented by this adapter.
	CanSendfile() bool
	// Flush ensures any adapter-level buffering reaches the wire (a no-op
	// for the raw TCP/TLS adapters, present for interface symmetry with
	// buffered adapters used in tests).
	Flush(deadline time.Time) error
	// Close closes the underlying connection. Idempotent.
	Close() error
}

// ServerSocket listens for and accepts new connections, each returned as a
// Socket. Workers share the listening socket and serialize accept via the
// ticket lock in pkg/worker; ServerSocket itself does no locking.
type ServerSocket interface {
	// Accept blocks (respecting deadline) for the next inbound connection.
	Accept(deadline time.Time) (Socket, error)
	// Addr returns the address the socket is bound to.
	Addr() net.Addr
	// Close stops accepting and releases the listener.
	Close() error
}

func setDeadline(conn net.Conn, deadline time.Time) error {
	if deadline.IsZero() {
		return conn.SetDeadline(time.Time{})
	}
	return conn.SetDeadline(deadline)
}

// isReset reports whether err indicates the peer reset the connection,
// matching spec.md §4.2's "close() is automatically invoked for ECONNRESET".
func isReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, net.ErrClosed)
}

// recvUntil is the shared RecvUntil implementation for byte-stream sockets:
// it reads one byte at a time into an accumulator, checking each of delims
// as a suffix match. This mirrors the line-oriented accumulation strategy
// in andycostintoma-go-httpx's CRLFFastReader, generalized from a single
// CRLF delimiter to an arbitrary delimiter set (needed for RPC framing and
// multipart boundary scanning in pkg/httpmsg).
func recvUntil(readByte func() (byte, error), delims [][]byte, maxLen int) ([]byte, error) {
	var buf []byte
	for {
		b, err := readByte()
		if err != nil {
			return buf, err
		}
		buf = append(buf, b)
		for _, d := range delims {
			if len(d) == 0 || len(buf) < len(d) {
				continue
			}
			if string(buf[len(buf)-len(d):]) == string(d) {
				return buf, nil
			}
		}
		if maxLen > 0 && len(buf) >= maxLen {
			return buf, io.ErrShortBuffer
		}
	}
}
