// Package suilrpc implements the compact binary RPC variant described in
// spec.md §4.9, grounded on original_source/suil/rpc/suilrpc.h
// (SuilRpcRequest/SuilRpcResponse/SuilRpcMeta/SuilRpcMethod). Methods are
// assigned dense integer ids at startup; method id 0 is the reserved
// handshake returning a {version, methods, extensions} meta record.
package suilrpc

import "errors"

// Error codes, a direct port of suilrpc.h's SRPC_METHOD_NOT_FOUND /
// SRPC_INTERNAL_ERROR / SRPC_API_ERROR constants.
const (
	ErrMethodNotFound = 0
	ErrInternal       = 1
	ErrAPI            = 6000
)

// MetaMethodID is the reserved method id returning the handshake meta
// record, per spec.md §4.9 ("handshake message id 0").
const MetaMethodID = 0

// ErrExtensionReserved is returned by RegisterExtension for an id at or
// above 0 (0 is the meta handshake, > 0 are application ids) — extension
// ids are system-reserved per spec.md §4.9 ("Extension method ids are <= 0
// (system), app ids > 0").
var ErrExtensionReserved = errors.New("suilrpc: method ids <= 0 are reserved for extensions")

// Method names one method: its dense id and display name, matching
// SuilRpcMethod{id,name}.
type Method struct {
	ID   int
	Name string
}

// Request mirrors SuilRpcRequest{id,method,params}: id is the
// per-connection request id, method is the dense method id, params is
// the opaque encoded argument payload.
type Request struct {
	ID     int
	Method int
	Params []byte
}

// RPCError mirrors suilrpc.h's RpcError: a code/message/data triple
// carried in a Response's Error field.
type RPCError struct {
	Code    int
	Message string
	Data    []byte
}

func (e *RPCError) Error() string { return e.Message }

// Response mirrors SuilRpcResponse{id,error,data}: exactly one of Error/
// Data is meaningful per call, matching the same mutual-exclusion
// invariant jsonrpc.Response enforces via NewResult/NewError.
type Response struct {
	ID    int
	Error *RPCError
	Data  []byte
}

// Meta mirrors SuilRpcMeta{version,methods,extensions}: the handshake
// record clients decode to build a name→id map before making any other
// call.
type Meta struct {
	Version    string
	Methods    []Method
	Extensions []Method
}
