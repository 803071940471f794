package jsonrpc

import (
	"encoding/json"
	"sync"
)

// HandlerFunc answers one application method call, returning a value to
// be marshaled into the response's result field, or an error (optionally
// an *Error to control the wire code, otherwise CodeInternalError).
type HandlerFunc func(params json.RawMessage) (any, error)

// Dispatcher holds the registered application methods plus the
// framework's reserved rpc_ namespace. A single Dispatcher is shared
// across every connection an HTTP or WebSocket listener answers (see
// cmd/suild/main.go), so request ids are scoped to whatever the caller
// considers one logical client — the dispatcher itself does not track or
// enforce an ordering across them, only the map of registered methods.
type Dispatcher struct {
	version string

	mu      sync.Mutex
	methods map[string]HandlerFunc
}

// NewDispatcher creates a Dispatcher that answers rpc_Version with
// version.
func NewDispatcher(version string) *Dispatcher {
	return &Dispatcher{version: version, methods: make(map[string]HandlerFunc)}
}

// Register installs an application-level method handler. Registering a
// name in the reserved rpc_ namespace panics: that namespace belongs to
// the framework.
func (d *Dispatcher) Register(method string, fn HandlerFunc) {
	if len(method) >= 4 && method[:4] == "rpc_" {
		panic("jsonrpc: method name " + method + " is in the reserved rpc_ namespace")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.methods[method] = fn
}

// Dispatch answers one request. The caller's id is echoed back verbatim
// in the response (or error) and otherwise left uninterpreted: ids are
// meaningful only for matching a response to its request on whatever
// connection sent it, and a Dispatcher has no notion of "connection" of
// its own to check them against.
func (d *Dispatcher) Dispatch(req Request) Response {
	if req.Method == VersionMethodReserved {
		resp, err := NewResult(req.ID, d.version)
		if err != nil {
			return NewError(req.ID, CodeInternalError, err.Error())
		}
		return resp
	}
	if req.IsReserved() {
		return NewError(req.ID, CodeMethodNotFound, "unknown reserved method "+req.Method)
	}

	d.mu.Lock()
	fn, ok := d.methods[req.Method]
	d.mu.Unlock()
	if !ok {
		return NewError(req.ID, CodeMethodNotFound, "method not found: "+req.Method)
	}

	result, err := fn(req.Params)
	if err != nil {
		if rpcErr, ok := err.(*Error); ok {
			return NewError(req.ID, rpcErr.Code, rpcErr.Message)
		}
		return NewError(req.ID, CodeInternalError, err.Error())
	}

	resp, err := NewResult(req.ID, result)
	if err != nil {
		return NewError(req.ID, CodeInternalError, err.Error())
	}
	return resp
}

// DispatchBatch answers a batch of requests in the order given: batch
// entries are independent calls, but the response slice preserves the
// request slice's order so a caller can zip them back up positionally.
func (d *Dispatcher) DispatchBatch(reqs []Request) []Response {
	resps := make([]Response, len(reqs))
	for i, req := range reqs {
		resps[i] = d.Dispatch(req)
	}
	return resps
}
