package server

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/suilhq/suil/pkg/config"
	"github.com/suilhq/suil/pkg/httpmsg"
	"github.com/suilhq/suil/pkg/logging"
	"github.com/suilhq/suil/pkg/middleware"
	"github.com/suilhq/suil/pkg/routing"
)

// scriptedSocket is an in-memory netio.Socket over a fixed input byte
// stream, recording everything written to it, enough to drive one
// connectionTask call end to end without a real listener.
type scriptedSocket struct {
	in     []byte
	pos    int
	out    bytes.Buffer
	closed bool
}

func newScriptedSocket(in string) *scriptedSocket {
	return &scriptedSocket{in: []byte(in)}
}

func (s *scriptedSocket) Send(buf []byte, _ time.Time) (int, error) {
	return s.out.Write(buf)
}

func (s *scriptedSocket) Recv(buf []byte, _ time.Time) (int, error) {
	if s.pos >= len(s.in) {
		return 0, io.EOF
	}
	n := copy(buf, s.in[s.pos:])
	s.pos += n
	return n, nil
}

func (s *scriptedSocket) RecvUntil(delims [][]byte, maxLen int, _ time.Time) ([]byte, error) {
	var line []byte
	for {
		if s.pos >= len(s.in) {
			if len(line) > 0 {
				return line, nil
			}
			return nil, io.EOF
		}
		b := s.in[s.pos]
		s.pos++
		line = append(line, b)
		for _, d := range delims {
			if len(line) >= len(d) && bytes.Equal(line[len(line)-len(d):], d) {
				return line, nil
			}
		}
		if maxLen > 0 && len(line) >= maxLen {
			return line, io.ErrShortBuffer
		}
	}
}

func (s *scriptedSocket) Sendfile(_ *os.File, _, _ int64, _ time.Time) (int64, error) {
	return 0, nil
}
func (s *scriptedSocket) CanSendfile() bool      { return false }
func (s *scriptedSocket) Flush(_ time.Time) error { return nil }
func (s *scriptedSocket) Close() error {
	s.closed = true
	return nil
}

func testServer(t *testing.T, routes func(r *routing.Router)) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.ServerName = "suil/test"

	r := routing.NewRouter()
	routes(r)
	r.Optimize()

	chain := middleware.NewChain()
	return New(cfg, logging.New(), nil, r, chain, nil)
}

func TestConnectionTaskServesSingleRequestAndCloses(t *testing.T) {
	s := testServer(t, func(r *routing.Router) {
		Route(r, "/hello", routing.MethodGet, func(req *httpmsg.Request, resp *httpmsg.Response, p routing.Params) error {
			return nil
		})
	})

	sock := newScriptedSocket("GET /hello HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
	s.connectionTask(context.Background(), sock)

	require.True(t, sock.closed)
	require.Contains(t, sock.out.String(), "200 OK")
	require.Contains(t, sock.out.String(), "Connection: close")
}

func TestConnectionTaskKeepsAliveAcrossRequests(t *testing.T) {
	s := testServer(t, func(r *routing.Router) {
		Route(r, "/ping", routing.MethodGet, func(req *httpmsg.Request, resp *httpmsg.Response, p routing.Params) error {
			return nil
		})
	})

	raw := "GET /ping HTTP/1.1\r\nHost: x\r\n\r\n" + "GET /ping HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"
	sock := newScriptedSocket(raw)
	s.connectionTask(context.Background(), sock)

	require.True(t, sock.closed)
	out := sock.out.String()
	require.Equal(t, 2, bytes.Count([]byte(out), []byte("200 OK")))
}

func TestConnectionTaskNotFoundRoute(t *testing.T) {
	s := testServer(t, func(r *routing.Router) {})

	sock := newScriptedSocket("GET /missing HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
	s.connectionTask(context.Background(), sock)

	require.Contains(t, sock.out.String(), "404")
}

func TestConnectionTaskMethodNotAllowed(t *testing.T) {
	s := testServer(t, func(r *routing.Router) {
		Route(r, "/only-post", routing.MethodPost, func(req *httpmsg.Request, resp *httpmsg.Response, p routing.Params) error { return nil })
	})

	sock := newScriptedSocket("GET /only-post HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
	s.connectionTask(context.Background(), sock)

	require.Contains(t, sock.out.String(), "405")
}

func TestConnectionTaskHandlerStatusErrorSetsStatusAndForceCloses(t *testing.T) {
	s := testServer(t, func(r *routing.Router) {
		Route(r, "/boom", routing.MethodGet, func(req *httpmsg.Request, resp *httpmsg.Response, p routing.Params) error {
			return httpmsg.StatusError{Status: 503, Message: "down"}
		})
	})

	sock := newScriptedSocket("GET /boom HTTP/1.1\r\nHost: x\r\n\r\n")
	s.connectionTask(context.Background(), sock)

	require.Contains(t, sock.out.String(), "503")
	require.Contains(t, sock.out.String(), "Connection: close")
}

func TestWantsKeepAliveHTTP10RequiresExplicitHeader(t *testing.T) {
	req := &httpmsg.Request{ProtoMajor: 1, ProtoMinor: 0, Header: make(map[string][]string)}
	resp := httpmsg.NewResponse()
	require.False(t, wantsKeepAlive(req, resp))

	req.Header["Connection"] = []string{"keep-alive"}
	require.True(t, wantsKeepAlive(req, resp))
}

func TestWantsKeepAliveHTTP11DefaultsAlive(t *testing.T) {
	req := &httpmsg.Request{ProtoMajor: 1, ProtoMinor: 1, Header: make(map[string][]string)}
	resp := httpmsg.NewResponse()
	require.True(t, wantsKeepAlive(req, resp))

	resp.Header.Set("Connection", "close")
	require.False(t, wantsKeepAlive(req, resp))
}
