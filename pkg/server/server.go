// Package server implements the connection accept/dispatch loop
// described in spec.md §4.10 (C10): a literal translation of the
// pseudocode's accept-lock/accept/release/spawn structure, wiring every
// other component (pkg/task, pkg/netio, pkg/worker, pkg/httpparse,
// pkg/routing, pkg/middleware, pkg/httpmsg, pkg/wsock) into one running
// server.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/suilhq/suil/pkg/config"
	"github.com/suilhq/suil/pkg/httpmsg"
	"github.com/suilhq/suil/pkg/httpparse"
	"github.com/suilhq/suil/pkg/logging"
	"github.com/suilhq/suil/pkg/middleware"
	"github.com/suilhq/suil/pkg/netio"
	"github.com/suilhq/suil/pkg/routing"
	"github.com/suilhq/suil/pkg/task"
	"github.com/suilhq/suil/pkg/worker"
	"github.com/suilhq/suil/pkg/wsock"
)

// RouteHandler is the concrete handler signature routes registered through
// this package use: full access to the request/response pair plus the
// captured path parameters, matching spec.md §4.10's `route.handler(req,
// resp)` call. Register with Route, not router.AddRoute directly, so the
// value stored in routing.Rule.Handler is always this type.
type RouteHandler func(req *httpmsg.Request, resp *httpmsg.Response, params routing.Params) error

// Route registers pattern on router with the given methods and handler,
// wrapping handler as the routing.Handler payload this package knows how
// to invoke.
func Route(router *routing.Router, pattern string, methods routing.Method, handler RouteHandler) uint {
	return router.AddRoute(pattern, methods, routing.Handler(handler))
}

// AcceptLocker is the accept-arbitration interface a single-worker server
// can stub out; pkg/worker.TicketLock implements it directly via Locked.
type AcceptLocker interface {
	Locked(f func())
}

// noLock is a no-op AcceptLocker for standalone (single-process, no
// pkg/worker supervisor) servers, where there is only one acceptor and
// nothing to arbitrate.
type noLock struct{}

func (noLock) Locked(f func()) { f() }

// Upgrader is called after a route handler requests a protocol switch
// (currently WebSocket); it takes ownership of sock and blocks until the
// subprotocol session ends.
type Upgrader func(ctx context.Context, sock netio.Socket, req *httpmsg.Request, resp *httpmsg.Response)

// Server owns the listening socket, router, middleware chain, and
// configuration needed to answer HTTP/1.x connections, per spec.md
// §4.10's connection_task pseudocode.
type Server struct {
	cfg    config.Config
	log    logging.Logger
	ln     netio.ServerSocket
	router *routing.Router
	chain  *middleware.Chain
	lock   AcceptLocker

	wsHandshake Upgrader
}

// New builds a Server. lock may be nil for a standalone (non-worker)
// process.
func New(cfg config.Config, log logging.Logger, ln netio.ServerSocket, router *routing.Router, chain *middleware.Chain, lock AcceptLocker) *Server {
	if lock == nil {
		lock = noLock{}
	}
	return &Server{cfg: cfg, log: log, ln: ln, router: router, chain: chain, lock: lock}
}

// SetUpgrader installs the handler invoked on a successful protocol
// switch (e.g. pkg/wsock's handshake+connection loop).
func (s *Server) SetUpgrader(u Upgrader) {
	s.wsHandshake = u
}

// WorkerAcceptLock wraps a *worker.TicketLock as an AcceptLocker, the
// glue between pkg/worker's shared-memory arbitration and this package's
// accept loop.
func WorkerAcceptLock(l *worker.TicketLock) AcceptLocker { return l }

// Run implements spec.md §4.10's outer loop: acquire accept_lock, accept
// with a deadline of half the keep-alive time, release the lock, spawn a
// connection task. It returns only when ctx is cancelled or the listener
// is closed.
func (s *Server) Run(ctx context.Context) error {
	acceptDeadlineFor := func() time.Time {
		if s.cfg.KeepAliveTime <= 0 {
			return time.Time{}
		}
		return time.Now().Add(s.cfg.KeepAliveTime / 2)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var sock netio.Socket
		var acceptErr error
		s.lock.Locked(func() {
			sock, acceptErr = s.ln.Accept(acceptDeadlineFor())
		})

		if acceptErr != nil {
			if errors.Is(acceptErr, net.ErrClosed) {
				return acceptErr
			}
			if isTimeout(acceptErr) {
				continue
			}
			s.log.Warnf("server: accept failed: %v", acceptErr)
			continue
		}

		task.Spawn(ctx, func(ctx context.Context) {
			s.connectionTask(ctx, sock)
		})
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// maxHeaderBytes bounds the whole header block independent of
// config.MaxBodyLen, which governs the body instead.
const maxHeaderBytes = 16384

// limits returns the fixed httpparse.Limits every connection uses; none
// of them is read from the server's configuration.
func (s *Server) limits() httpparse.Limits {
	return httpparse.Limits{
		MaxLineBytes:   8192,
		MaxHeaderBytes: maxHeaderBytes,
		MaxHeaders:     200,
	}
}

// connectionTask implements spec.md §4.10's connection_task: loop
// receive_headers → receive_body → (chain.before → route → chain.after)
// → send_response, honoring keep-alive, Connection: close, and protocol
// switches, closing the socket on any exit path.
func (s *Server) connectionTask(ctx context.Context, sock netio.Socket) {
	defer sock.Close()

	for {
		deadline := time.Time{}
		if s.cfg.ConnectionTimeout > 0 {
			deadline = time.Now().Add(s.cfg.ConnectionTimeout)
		}

		msg, err := httpparse.ReceiveHeaders(sock, s.limits(), deadline)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.writeErrorResponse(sock, 400, "bad request", deadline)
			}
			return
		}

		req, err := httpmsg.NewRequest(ctx, msg)
		if err != nil {
			s.writeErrorResponse(sock, 400, "bad request-target", deadline)
			return
		}

		if err := req.ReceiveBody(sock, msg, s.cfg.MaxBodyLen, s.cfg.DiskOffload, s.cfg.DiskOffloadMin, s.cfg.OffloadPath, deadline); err != nil {
			s.writeErrorResponse(sock, statusForBodyError(err), "error reading body", deadline)
			req.Close()
			return
		}

		resp := httpmsg.NewResponse()
		resp.SetProto(msg.Line.ProtoMajor, msg.Line.ProtoMinor)
		resp.Header.Set("Server", s.cfg.ServerName)

		forceClose := s.handleRequest(ctx, req, resp)

		if upgraded := resp.Status == 101 && s.wsHandshake != nil; upgraded {
			if err := resp.WriteTo(sock, s.cfg.SendChunk, deadline); err != nil {
				req.Close()
				return
			}
			req.Close()
			s.wsHandshake(ctx, sock, req, resp)
			return
		}

		keepAlive := !forceClose && wantsKeepAlive(req, resp)
		if !keepAlive {
			resp.Header.Set("Connection", "close")
		}

		writeErr := resp.WriteTo(sock, s.cfg.SendChunk, deadline)
		req.Close()
		if writeErr != nil || !keepAlive {
			return
		}
	}
}

// handleRequest runs the middleware chain and route handler for one
// request, returning true if the connection must be force-closed (the
// §4.10 "force_close = true" branch for an unrecovered handler error).
func (s *Server) handleRequest(ctx context.Context, req *httpmsg.Request, resp *httpmsg.Response) (forceClose bool) {
	mctx := s.chain.NewContext(req, resp)

	err := s.chain.Dispatch(mctx, func(mctx *middleware.Context) error {
		return s.dispatchRoute(mctx)
	})
	if err != nil {
		if !resp.Ended() {
			status := 500
			var se httpmsg.StatusError
			if errors.As(err, &se) {
				status = se.Status
			}
			resp.End(status)
		}
		if resp.BodyEmpty() {
			resp.Write([]byte(fmt.Sprintf("%d %s", resp.Status, err.Error())))
		}
		return true
	}
	return false
}

// dispatchRoute resolves the route for mctx.Request and invokes its
// handler, translating routing outcomes (not found, method not allowed,
// trailing-slash redirect) into the matching response per spec.md §4.5.
func (s *Server) dispatchRoute(mctx *middleware.Context) error {
	if mctx.Response.Ended() {
		return nil
	}

	resolution, err := s.router.Resolve(mctx.Request.Method, mctx.Request.URL.Path)
	switch {
	case resolution.RedirectToSlash:
		mctx.Response.Header.Set("Location", mctx.Request.URL.Path+"/")
		mctx.Response.End(301)
		return nil
	case errors.Is(err, routing.ErrNotFound):
		mctx.Response.End(404)
		return nil
	case errors.Is(err, routing.ErrMethodNotAllowed):
		mctx.Response.End(405)
		return nil
	case err != nil:
		return err
	}

	mctx.Request.RouteParams = resolution.Params

	handler, ok := resolution.Rule.Handler.(RouteHandler)
	if !ok {
		return fmt.Errorf("server: route %q registered without a server.RouteHandler", resolution.Rule.Pattern)
	}
	return handler(mctx.Request, mctx.Response, resolution.Params)
}

func (s *Server) writeErrorResponse(sock netio.Socket, status int, message string, deadline time.Time) {
	resp := httpmsg.NewResponse()
	resp.Write([]byte(message))
	resp.End(status)
	resp.Header.Set("Connection", "close")
	_ = resp.WriteTo(sock, s.cfg.SendChunk, deadline)
}

func statusForBodyError(err error) int {
	switch {
	case errors.Is(err, httpparse.ErrBodyTooLarge):
		return 413
	case errors.Is(err, httpparse.ErrBadChunk):
		return 400
	case errors.Is(err, httpparse.ErrLengthMismatch):
		return 400
	default:
		return 400
	}
}

// wantsKeepAlive decides whether the connection stays open for another
// request, per HTTP/1.1's default-alive / HTTP/1.0's default-close rule,
// honoring an explicit Connection header from either side.
func wantsKeepAlive(req *httpmsg.Request, resp *httpmsg.Response) bool {
	reqConn := req.Header.Get("Connection")
	respConn := resp.Header.Get("Connection")
	if strings.EqualFold(reqConn, "close") || strings.EqualFold(respConn, "close") {
		return false
	}
	if req.ProtoMajor == 1 && req.ProtoMinor == 0 {
		return strings.EqualFold(reqConn, "keep-alive")
	}
	return true
}

// WebSocketUpgrader builds an Upgrader that runs api's connection loop
// over sock once the 101 response has already been flushed, assigning
// each connection a fresh id.
func WebSocketUpgrader(api *wsock.API, nextID func() string) Upgrader {
	return func(ctx context.Context, sock netio.Socket, req *httpmsg.Request, resp *httpmsg.Response) {
		conn := wsock.NewConn(nextID(), sock, api.Timeout)
		api.Handle(conn)
	}
}
