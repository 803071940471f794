// Command suild is the suil server entrypoint: it reads configuration from
// the environment, builds the router/middleware/WebSocket/RPC surface, and
// runs either as a standalone process, a re-exec'd worker, or the worker
// supervisor depending on the configured worker count.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/suilhq/suil/pkg/config"
	"github.com/suilhq/suil/pkg/httpmsg"
	"github.com/suilhq/suil/pkg/logging"
	"github.com/suilhq/suil/pkg/metrics"
	"github.com/suilhq/suil/pkg/middleware"
	"github.com/suilhq/suil/pkg/netio"
	"github.com/suilhq/suil/pkg/routing"
	"github.com/suilhq/suil/pkg/rpc/jsonrpc"
	"github.com/suilhq/suil/pkg/rpc/suilrpc"
	"github.com/suilhq/suil/pkg/server"
	"github.com/suilhq/suil/pkg/worker"
	"github.com/suilhq/suil/pkg/wsock"
)

// broadcastBus adapts a *worker.Broadcaster, which only exists once
// worker.Attach has run, to the wsock.ClusterBus interface buildRouter
// needs at router-construction time (before it's known whether this
// process is a worker at all). runWorker fills it in once attached;
// Send is a no-op until then, and stays a no-op forever in a standalone
// or supervisor process.
type broadcastBus struct {
	bus atomic.Pointer[worker.Broadcaster]
}

func (b *broadcastBus) Send(tag byte, payload []byte) []error {
	bc := b.bus.Load()
	if bc == nil {
		return nil
	}
	return bc.Send(tag, payload)
}

func main() {
	staticDir := flag.String("static-dir", "", "directory to serve under /static/ (disabled if empty)")
	listenAddr := flag.String("listen", "", "override SUIL_LISTEN_ADDR")
	flag.Parse()

	cfg := config.FromEnv()
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	log := logging.New()
	log.Infof("suild starting: %s", cfg.Describe())

	bus := &broadcastBus{}
	router, registry, wsAPI := buildRouter(cfg, log, *staticDir, bus)
	chain := buildChain(log, registry)

	ctx, cancel := worker.NotifyShutdown()
	defer cancel()

	switch {
	case worker.IsWorker():
		runWorker(ctx, cfg, log, router, chain, wsAPI, bus)
	case cfg.Workers > 1:
		runSupervisor(ctx, cfg, log)
	default:
		runStandalone(ctx, cfg, log, router, chain, wsAPI)
	}
}

// buildRouter assembles every route this binary answers: a liveness check,
// the Prometheus exposition endpoint, an optional static file tree, a
// JSON-RPC-over-HTTP endpoint, a cluster-wide broadcast trigger, and a
// WebSocket endpoint carrying the compact binary RPC framing. It returns
// the metrics registry and the WebSocket API alongside the router since
// both are needed again by the caller (registry for the request
// recorder, wsAPI for SetUpgrader).
func buildRouter(cfg config.Config, log logging.Logger, staticDir string, bus *broadcastBus) (*routing.Router, *metrics.Registry, *wsock.API) {
	router := routing.NewRouter()
	registry := metrics.NewRegistry()

	server.Route(router, "/healthz", routing.MethodGet, func(req *httpmsg.Request, resp *httpmsg.Response, params routing.Params) error {
		resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
		resp.Write([]byte("ok"))
		resp.End(200)
		return nil
	})

	server.Route(router, "/metrics", routing.MethodGet, metrics.Handle(registry))

	if staticDir != "" {
		fs, err := server.NewStaticFS(staticDir)
		if err != nil {
			log.Warnf("static dir %q unavailable, skipping: %v", staticDir, err)
		} else {
			fs.Route(router, "/static/")
		}
	}

	jrpc := jsonrpc.NewDispatcher(config.Version)
	jrpc.Register("echo", func(params json.RawMessage) (any, error) {
		return json.RawMessage(params), nil
	})
	server.Route(router, "/rpc", routing.MethodPost, jsonrpc.HTTPHandler(jrpc))

	server.Route(router, "/ws", routing.MethodGet, func(req *httpmsg.Request, resp *httpmsg.Response, params routing.Params) error {
		ok, err := wsock.Handshake(req, resp)
		if err != nil || !ok {
			if resp.Status == 0 {
				resp.End(400)
			}
			return nil
		}
		return nil
	})

	wsAPI := wsock.NewAPI("suild", cfg.ConnectionTimeout)

	server.Route(router, "/broadcast", routing.MethodPost, func(req *httpmsg.Request, resp *httpmsg.Response, params routing.Params) error {
		body, err := req.BodyBytes()
		if err != nil {
			return err
		}
		errs := wsock.BroadcastCluster(req.Context(), wsAPI.Registry(), wsock.OpText, body, bus)
		if len(errs) > 0 {
			log.Warnf("broadcast: %d of the attempted sends failed: %v", len(errs), errs[0])
		}
		resp.End(204)
		return nil
	})

	srpc := suilrpc.NewDispatcher(config.Version)
	srpc.Register("echo", func(params []byte) ([]byte, error) {
		return params, nil
	})
	wsAPI.OnMessage = func(c *wsock.Conn, payload []byte, op wsock.Opcode) {
		if op != wsock.OpBinary {
			return
		}
		req, err := suilrpc.DecodeRequest(payload)
		if err != nil {
			return
		}
		resp := srpc.Dispatch(req)
		_ = c.Send(wsock.OpBinary, suilrpc.EncodeResponse(resp))
	}

	return router, registry, wsAPI
}

// buildChain installs the CORS, request-recording, and access-log
// middlewares, in that order: recorder occupies slot 1 since it is the
// second middleware the chain assigns a slot to.
func buildChain(log logging.Logger, registry *metrics.Registry) *middleware.Chain {
	cors := middleware.NewCORS(nil)
	recorder := metrics.NewRequestRecorder(registry, 1)
	accessLog := middleware.NewAccessLog(log)
	return middleware.NewChain(cors, recorder, accessLog)
}

var connCounter uint64

// nextConnID generates a WebSocket connection id from a simple process-wide
// monotonic counter.
func nextConnID() string {
	return strconv.FormatUint(atomic.AddUint64(&connCounter, 1), 10)
}

// runStandalone serves directly off a freshly bound listener with no
// accept-arbitration lock, the single-process case (SUIL_WORKERS unset or
// 1).
func runStandalone(ctx context.Context, cfg config.Config, log logging.Logger, router *routing.Router, chain *middleware.Chain, wsAPI *wsock.API) {
	ln, err := netio.ListenTCP(cfg.ListenAddr, 1024)
	if err != nil {
		log.Fatalf("listen %s: %v", cfg.ListenAddr, err)
	}
	log.Infof("suild listening on %s", cfg.ListenAddr)

	srv := server.New(cfg, log, ln, router, chain, nil)
	srv.SetUpgrader(server.WebSocketUpgrader(wsAPI, nextConnID))

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		log.Warnf("server exited: %v", err)
	}
}

// runWorker is the re-exec'd child entrypoint: it attaches to the shared
// accept lock and inherited listener fd the supervisor handed it, joins
// the cross-worker broadcast mesh if one was set up, then runs the
// ordinary connection loop with that lock installed.
func runWorker(ctx context.Context, cfg config.Config, log logging.Logger, router *routing.Router, chain *middleware.Chain, wsAPI *wsock.API, bus *broadcastBus) {
	w, err := worker.Attach(log)
	if err != nil {
		log.Fatalf("worker attach: %v", err)
	}
	defer w.Close()

	if w.Broadcaster != nil {
		bus.bus.Store(w.Broadcaster)
		w.RunBroadcastLoop(ctx, func(tag byte, payload []byte) {
			// A frame arriving from a sibling worker is delivered only to
			// this process's own connections — Broadcast, not
			// BroadcastCluster, or the frame would bounce back out to the
			// mesh forever.
			wsock.Broadcast(ctx, wsAPI.Registry(), wsock.Opcode(tag), payload)
		})
	}

	var ln netio.ServerSocket
	if w.Identity.ListenFD != 0 {
		ln, err = netio.FileListenerFD(uintptr(w.Identity.ListenFD), "suild-listener")
	} else {
		ln, err = netio.ListenTCP(cfg.ListenAddr, 1024)
	}
	if err != nil {
		log.Fatalf("worker/%d: acquire listener: %v", w.Identity.WorkerID, err)
	}

	srv := server.New(cfg, log, ln, router, chain, server.WorkerAcceptLock(w.AcceptLock()))
	srv.SetUpgrader(server.WebSocketUpgrader(wsAPI, nextConnID))

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		log.Warnf("worker/%d exited: %v", w.Identity.WorkerID, err)
	}
}

// runSupervisor binds the shared listening socket itself, launches
// cfg.Workers re-exec'd children inheriting its descriptor, and waits for
// them to exit. It never serves a connection itself — the listener fd is
// handed outright to the children, who each race for it under the shared
// accept lock.
func runSupervisor(ctx context.Context, cfg config.Config, log logging.Logger) {
	addr, err := net.ResolveTCPAddr("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("resolve %s: %v", cfg.ListenAddr, err)
	}
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		log.Fatalf("listen %s: %v", cfg.ListenAddr, err)
	}

	lnFile, err := ln.File()
	if err != nil {
		log.Fatalf("dup listener fd: %v", err)
	}

	shmPath := filepath.Join(os.TempDir(), fmt.Sprintf("suild-%d.shm", os.Getpid()))
	sup, err := worker.NewSupervisor(log, shmPath, cfg.Workers)
	if err != nil {
		log.Fatalf("create supervisor: %v", err)
	}

	extraEnv := []string{"SUIL_LISTEN_ADDR=" + cfg.ListenAddr}
	if err := sup.Launch(ctx, cfg.Workers, lnFile, extraEnv); err != nil {
		log.Fatalf("launch workers: %v", err)
	}

	// Each child dup'd the descriptor on exec; the supervisor's own
	// handles are no longer needed once every worker has started.
	lnFile.Close()
	ln.Close()

	log.Infof("suild supervisor running %d workers on %s", cfg.Workers, cfg.ListenAddr)

	go func() {
		<-ctx.Done()
		sup.Shutdown()
	}()

	sup.Wait()
}
