package netio

import (
	"bufio"
	"crypto/tls"
	"net"
	"os"
	"time"
)

// TLSSocket wraps a *tls.Conn. It does not support Sendfile since TLS
// framing requires the record layer to see every plaintext byte; callers
// probe CanSendfile and fall back to Send, exactly as spec.md §4.2 requires.
type TLSSocket struct {
	conn *tls.Conn
	br   *bufio.Reader
}

// NewTLSSocket wraps an established TLS connection.
func NewTLSSocket(conn *tls.Conn) *TLSSocket {
	return &TLSSocket{conn: conn, br: bufio.NewReaderSize(conn, 4096)}
}

// DialTLS connects to addr and performs the TLS handshake, respecting
// deadline for both the TCP dial and the handshake.
func DialTLS(addr string, cfg *tls.Config, deadline time.Time) (*TLSSocket, error) {
	d := net.Dialer{}
	if !deadline.IsZero() {
		d.Deadline = deadline
	}
	conn, err := tls.DialWithDialer(&d, "tcp", addr, cfg)
	if err != nil {
		return nil, err
	}
	return NewTLSSocket(conn), nil
}

func (s *TLSSocket) Send(buf []byte, deadline time.Time) (int, error) {
	if err := setDeadline(s.conn, deadline); err != nil {
		return 0, err
	}
	n, err := s.conn.Write(buf)
	if err != nil && isReset(err) {
		s.Close()
	}
	return n, err
}

func (s *TLSSocket) Recv(buf []byte, deadline time.Time) (int, error) {
	if err := setDeadline(s.conn, deadline); err != nil {
		return 0, err
	}
	n, err := s.br.Read(buf)
	if err != nil && isReset(err) {
		s.Close()
	}
	return n, err
}

func (s *TLSSocket) RecvUntil(delims [][]byte, maxLen int, deadline time.Time) ([]byte, error) {
	if err := setDeadline(s.conn, deadline); err != nil {
		return nil, err
	}
	buf, err := recvUntil(s.br.ReadByte, delims, maxLen)
	if err != nil && isReset(err) {
		s.Close()
	}
	return buf, err
}

// Sendfile always fails on TLS sockets; see ErrSendfileUnsupported.
func (s *TLSSocket) Sendfile(f *os.File, offset int64, length int64, deadline time.Time) (int64, error) {
	return 0, ErrSendfileUnsupported
}

func (s *TLSSocket) CanSendfile() bool { return false }

func (s *TLSSocket) Flush(deadline time.Time) error { return nil }

func (s *TLSSocket) Close() error { return s.conn.Close() }

// tlsServerSocket implements ServerSocket by wrapping a TCP listener with
// tls.NewListener, mirroring the capability-probe split from spec.md §4.2
// ("a TLS variant does not implement sendfile").
type tlsServerSocket struct {
	ln net.Listener
	// raw is the TCP listener under ln; the tls listener itself has no
	// SetDeadline, so Accept sets the deadline here.
	raw net.Listener
}

// ListenTLS binds addr and wraps the listener with cfg, so Accept returns
// already-handshaking *tls.Conn-backed sockets.
func ListenTLS(addr string, cfg *tls.Config, backlog int) (ServerSocket, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &tlsServerSocket{ln: tls.NewListener(ln, cfg), raw: ln}, nil
}

func (s *tlsServerSocket) Accept(deadline time.Time) (Socket, error) {
	type deadlineListener interface {
		SetDeadline(time.Time) error
	}
	if dl, ok := s.raw.(deadlineListener); ok {
		if !deadline.IsZero() {
			if err := dl.SetDeadline(deadline); err != nil {
				return nil, err
			}
		} else {
			dl.SetDeadline(time.Time{})
		}
	}
	conn, err := s.ln.Accept()
	if err != nil {
		return nil, err
	}
	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		conn.Close()
		return nil, net.UnknownNetworkError("tls")
	}
	return NewTLSSocket(tlsConn), nil
}

func (s *tlsServerSocket) Addr() net.Addr { return s.ln.Addr() }

func (s *tlsServerSocket) Close() error { return s.ln.Close() }
