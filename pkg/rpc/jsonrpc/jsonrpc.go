// Package jsonrpc implements the JSON-RPC 2.0 variant of the RPC layer
// described in spec.md §4.9: request/response/batch encoding, the
// rpc_-prefixed reserved method namespace, and the standard JSON-RPC
// error code table. Wire envelopes are framed by pkg/rpc.
package jsonrpc

import (
	"encoding/json"
	"errors"
)

// Standard JSON-RPC 2.0 error codes, per spec.md §4.9.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	// CodeAPIErrorLow/CodeAPIErrorHigh bound the -32000..-32099
	// "reserved for implementation-defined server errors" range that
	// application-level API errors use.
	CodeAPIErrorLow  = -32099
	CodeAPIErrorHigh = -32000
)

// VersionMethodReserved is the framework-reserved method that returns the
// library version string, per spec.md §4.9 ("rpc_Version returns the
// library version string").
const VersionMethodReserved = "rpc_Version"

// ErrNotBatch is returned by DecodeBatch when the payload is a single
// object rather than a JSON array.
var ErrNotBatch = errors.New("jsonrpc: payload is not a batch")

// Request is one JSON-RPC 2.0 request object.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	ID      json.RawMessage `json:"id,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsReserved reports whether this request's method is in the framework's
// reserved `rpc_` namespace.
func (r Request) IsReserved() bool {
	return len(r.Method) >= 4 && r.Method[:4] == "rpc_"
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// Response is one JSON-RPC 2.0 response object. Exactly one of Result/
// Error is set, per spec.md §4.9's "a response with both result and
// error set is invalid" invariant, enforced by NewResult/NewError rather
// than left to the caller to get right.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResult builds a success response carrying result, marshaled to
// JSON.
func NewResult(id json.RawMessage, result any) (Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{}, err
	}
	return Response{JSONRPC: "2.0", ID: id, Result: raw}, nil
}

// NewError builds an error response.
func NewError(id json.RawMessage, code int, message string) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message}}
}

// DecodeRequest parses a single JSON-RPC request object from raw.
func DecodeRequest(raw []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, &Error{Code: CodeParseError, Message: err.Error()}
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return Request{}, &Error{Code: CodeInvalidRequest, Message: "missing jsonrpc/method"}
	}
	return req, nil
}

// DecodeBatch parses raw as a JSON array of request objects, per spec.md
// §4.9's "payload may be a single object or an array for batch".
func DecodeBatch(raw []byte) ([]Request, error) {
	var rawItems []json.RawMessage
	if err := json.Unmarshal(raw, &rawItems); err != nil {
		return nil, ErrNotBatch
	}
	reqs := make([]Request, 0, len(rawItems))
	for _, item := range rawItems {
		req, err := DecodeRequest(item)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// Encode marshals resp (or a batch, via EncodeBatch) for wire transport.
func Encode(resp Response) ([]byte, error) {
	return json.Marshal(resp)
}

// EncodeBatch marshals a batch of responses as a JSON array, preserving
// order — request order on a single connection is never reordered, per
// spec.md §4.9's pipelining invariant.
func EncodeBatch(resps []Response) ([]byte, error) {
	return json.Marshal(resps)
}
