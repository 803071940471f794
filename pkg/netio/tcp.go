package netio

import (
	"bufio"
	"io"
	"net"
	"os"
	"time"
)

// TCPSocket wraps a *net.TCPConn, providing the sendfile-capable Socket
// adapter TCP connections need.
type TCPSocket struct {
	conn *net.TCPConn
	br   *bufio.Reader
}

// NewTCPSocket wraps an already-established TCP connection.
func NewTCPSocket(conn *net.TCPConn) *TCPSocket {
	return &TCPSocket{conn: conn, br: bufio.NewReaderSize(conn, 4096)}
}

// DialTCP connects to addr, respecting deadline.
func DialTCP(addr string, deadline time.Time) (*TCPSocket, error) {
	d := net.Dialer{}
	if !deadline.IsZero() {
		d.Deadline = deadline
	}
	conn, err := d.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return nil, net.UnknownNetworkError("tcp")
	}
	return NewTCPSocket(tcpConn), nil
}

func (s *TCPSocket) Send(buf []byte, deadline time.Time) (int, error) {
	if err := setDeadline(s.conn, deadline); err != nil {
		return 0, err
	}
	n, err := s.conn.Write(buf)
	if err != nil && isReset(err) {
		s.Close()
	}
	return n, err
}

func (s *TCPSocket) Recv(buf []byte, deadline time.Time) (int, error) {
	if err := setDeadline(s.conn, deadline); err != nil {
		return 0, err
	}
	n, err := s.br.Read(buf)
	if err != nil && isReset(err) {
		s.Close()
	}
	return n, err
}

func (s *TCPSocket) RecvUntil(delims [][]byte, maxLen int, deadline time.Time) ([]byte, error) {
	if err := setDeadline(s.conn, deadline); err != nil {
		return nil, err
	}
	buf, err := recvUntil(s.br.ReadByte, delims, maxLen)
	if err != nil && isReset(err) {
		s.Close()
	}
	return buf, err
}

// Sendfile transmits length bytes of f starting at offset using io.Copy
// over an io.SectionReader of f. The net package's sendfile(2) path in
// TCPConn.ReadFrom only recognises an *os.File source (or an
// io.LimitedReader around one), so the section reader is copied through a
// user-space buffer rather than with sendfile(2).
func (s *TCPSocket) Sendfile(f *os.File, offset int64, length int64, deadline time.Time) (int64, error) {
	if err := setDeadline(s.conn, deadline); err != nil {
		return 0, err
	}
	section := io.NewSectionReader(f, offset, length)
	n, err := io.Copy(s.conn, section)
	if err != nil && isReset(err) {
		s.Close()
	}
	return n, err
}

func (s *TCPSocket) CanSendfile() bool { return true }

func (s *TCPSocket) Flush(deadline time.Time) error { return nil }

func (s *TCPSocket) Close() error {
	return s.conn.Close()
}

// tcpServerSocket implements ServerSocket over *net.TCPListener.
type tcpServerSocket struct {
	ln *net.TCPListener
}

// ListenTCP binds addr with the given backlog hint. Go's net package does
// not expose backlog directly, so it is accepted for interface parity
// with a conventional listen(addr, backlog) call and otherwise left to
// the OS default backlog.
func ListenTCP(addr string, backlog int) (ServerSocket, error) {
	a, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}
	ln, err := net.ListenTCP("tcp", a)
	if err != nil {
		return nil, err
	}
	return &tcpServerSocket{ln: ln}, nil
}

func (s *tcpServerSocket) Accept(deadline time.Time) (Socket, error) {
	if !deadline.IsZero() {
		if err := s.ln.SetDeadline(deadline); err != nil {
			return nil, err
		}
	} else {
		s.ln.SetDeadline(time.Time{})
	}
	conn, err := s.ln.AcceptTCP()
	if err != nil {
		return nil, err
	}
	return NewTCPSocket(conn), nil
}

func (s *tcpServerSocket) Addr() net.Addr { return s.ln.Addr() }

func (s *tcpServerSocket) Close() error { return s.ln.Close() }

// NewTCPServerSocketFromListener wraps an already-bound *net.TCPListener,
// the seam a worker supervisor uses to hand the same listening socket to
// several sibling processes: the listener is opened once, its file
// descriptor inherited by each re-exec'd child via os/exec.Cmd.ExtraFiles,
// and FileListenerFD below reconstructs it on the child side. This
// substitutes for suil's fork()-inherited listen fd now that accept
// arbitration across processes needs an explicit descriptor handoff
// instead of a free ride from fork(2).
func NewTCPServerSocketFromListener(ln *net.TCPListener) ServerSocket {
	return &tcpServerSocket{ln: ln}
}

// FileListenerFD reconstructs a ServerSocket from a file descriptor
// inherited from a parent process (fd 3 is the first entry of
// os/exec.Cmd.ExtraFiles), the worker-side half of
// NewTCPServerSocketFromListener's handoff.
func FileListenerFD(fd uintptr, name string) (ServerSocket, error) {
	f := os.NewFile(fd, name)
	ln, err := net.FileListener(f)
	if err != nil {
		return nil, err
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, net.UnknownNetworkError("tcp")
	}
	return &tcpServerSocket{ln: tcpLn}, nil
}
