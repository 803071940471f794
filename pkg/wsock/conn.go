package wsock

import (
	"io"
	"time"

	"github.com/suilhq/suil/pkg/netio"
)

// Conn is a live WebSocket connection handed off from the HTTP connection
// task after a successful upgrade, grounded on WebSock's sock+api+key
// fields in wsock.cpp.
type Conn struct {
	ID      string
	sock    netio.Socket
	timeout time.Duration
	closed  bool
}

// NewConn wraps sock (already past the 101 response) as a WebSocket
// connection identified by id, with timeout applied to every frame
// read/write deadline.
func NewConn(id string, sock netio.Socket, timeout time.Duration) *Conn {
	return &Conn{ID: id, sock: sock, timeout: timeout}
}

func (c *Conn) deadline() time.Time {
	if c.timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.timeout)
}

// socketIO adapts netio.Socket to io.Reader/io.Writer for ReadFrame/
// WriteFrame, which only need byte-stream semantics.
type socketIO struct {
	sock     netio.Socket
	deadline time.Time
}

func (s socketIO) Read(p []byte) (int, error)  { return s.sock.Recv(p, s.deadline) }
func (s socketIO) Write(p []byte) (int, error) { return s.sock.Send(p, s.deadline) }

// ReadFrame reads one client frame, applying the connection's configured
// timeout as the read deadline.
func (c *Conn) ReadFrame() (Frame, error) {
	return ReadFrame(socketIO{sock: c.sock, deadline: c.deadline()})
}

// Send writes one server frame of the given opcode.
func (c *Conn) Send(op Opcode, payload []byte) error {
	if c.closed {
		return io.ErrClosedPipe
	}
	return WriteFrame(socketIO{sock: c.sock, deadline: c.deadline()}, op, payload)
}

// SendText is a convenience wrapper for the common TEXT-frame case.
func (c *Conn) SendText(s string) error { return c.Send(OpText, []byte(s)) }

// Close marks the connection closed and releases the underlying socket.
// Safe to call more than once.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.sock.Close()
}

// API groups the callbacks and registry for one named WebSocket endpoint,
// the Go realization of WebSockApi: on_connect/on_message/on_close/
// on_disconnect plus a shared per-endpoint timeout.
type API struct {
	Name    string
	Timeout time.Duration

	OnConnect    func(c *Conn) bool // returning true rejects the connection
	OnMessage    func(c *Conn, payload []byte, op Opcode)
	OnClose      func(c *Conn)
	OnDisconnect func()

	registry *Registry
}

// NewAPI builds a named WebSocket endpoint backed by its own Registry.
func NewAPI(name string, timeout time.Duration) *API {
	return &API{Name: name, Timeout: timeout, registry: NewRegistry()}
}

// Registry returns this API's live-connection registry.
func (a *API) Registry() *Registry { return a.registry }

// Handle runs the per-connection loop described by WebSock::handle: calls
// OnConnect, registers the connection (always removed on exit, even on
// error, via defer), then loops ReadFrame→dispatch until CLOSE, a
// protocol error, or a read failure ends the session. CONT and PONG are
// both treated as session-ending per the no-reassembly design decision
// (see frame.go's ErrProtocol doc).
func (a *API) Handle(c *Conn) {
	if a.OnConnect != nil && a.OnConnect(c) {
		return
	}

	a.registry.Add(c)
	defer a.registry.Remove(c.ID)
	defer func() {
		if a.OnDisconnect != nil {
			a.OnDisconnect()
		}
	}()

	for {
		frame, err := c.ReadFrame()
		if err != nil {
			return
		}

		switch frame.Opcode {
		case OpContinuation, OpPong:
			// No fragmentation reassembly and no pong tracking: treat as
			// a terminal protocol condition, matching the original.
			return

		case OpText, OpBinary:
			if a.OnMessage != nil {
				a.OnMessage(c, frame.Payload, frame.Opcode)
			}

		case OpClose:
			if a.OnClose != nil {
				a.OnClose(c)
			}
			_ = c.Send(OpClose, nil)
			return

		case OpPing:
			if err := c.Send(OpPong, frame.Payload); err != nil {
				return
			}

		default:
			return
		}
	}
}
