package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeRequestValid(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","method":"add","id":1,"params":[1,2]}`)
	req, err := DecodeRequest(raw)
	require.NoError(t, err)
	require.Equal(t, "add", req.Method)
	require.False(t, req.IsReserved())
}

func TestDecodeRequestMissingMethodIsInvalid(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","id":1}`)
	_, err := DecodeRequest(raw)
	require.Error(t, err)
	rpcErr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, CodeInvalidRequest, rpcErr.Code)
}

func TestDecodeBatch(t *testing.T) {
	raw := []byte(`[{"jsonrpc":"2.0","method":"a","id":1},{"jsonrpc":"2.0","method":"b","id":2}]`)
	reqs, err := DecodeBatch(raw)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
}

func TestDispatcherVersionMethod(t *testing.T) {
	d := NewDispatcher("1.2.3")
	req := Request{JSONRPC: "2.0", Method: VersionMethodReserved, ID: json.RawMessage(`1`)}
	resp := d.Dispatch(req)
	require.Nil(t, resp.Error)

	var version string
	require.NoError(t, json.Unmarshal(resp.Result, &version))
	require.Equal(t, "1.2.3", version)
}

func TestDispatcherMethodNotFound(t *testing.T) {
	d := NewDispatcher("1.0")
	req := Request{JSONRPC: "2.0", Method: "missing", ID: json.RawMessage(`1`)}
	resp := d.Dispatch(req)
	require.NotNil(t, resp.Error)
	require.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestDispatcherRegisterPanicsOnReservedPrefix(t *testing.T) {
	d := NewDispatcher("1.0")
	require.Panics(t, func() {
		d.Register("rpc_custom", func(json.RawMessage) (any, error) { return nil, nil })
	})
}

func TestDispatcherEnforcesMonotonicIDs(t *testing.T) {
	d := NewDispatcher("1.0")
	d.Register("echo", func(p json.RawMessage) (any, error) { return "ok", nil })

	first := d.Dispatch(Request{JSONRPC: "2.0", Method: "echo", ID: json.RawMessage(`1`)})
	require.Nil(t, first.Error)

	second := d.Dispatch(Request{JSONRPC: "2.0", Method: "echo", ID: json.RawMessage(`1`)})
	require.NotNil(t, second.Error)
	require.Equal(t, CodeInvalidRequest, second.Error.Code)

	third := d.Dispatch(Request{JSONRPC: "2.0", Method: "echo", ID: json.RawMessage(`2`)})
	require.Nil(t, third.Error)
}

func TestDispatcherBatchPreservesOrder(t *testing.T) {
	d := NewDispatcher("1.0")
	d.Register("echo", func(p json.RawMessage) (any, error) {
		var s string
		json.Unmarshal(p, &s)
		return s, nil
	})

	reqs := []Request{
		{JSONRPC: "2.0", Method: "echo", ID: json.RawMessage(`1`), Params: json.RawMessage(`"a"`)},
		{JSONRPC: "2.0", Method: "echo", ID: json.RawMessage(`2`), Params: json.RawMessage(`"b"`)},
	}
	resps := d.DispatchBatch(reqs)
	require.Len(t, resps, 2)

	var a, b string
	require.NoError(t, json.Unmarshal(resps[0].Result, &a))
	require.NoError(t, json.Unmarshal(resps[1].Result, &b))
	require.Equal(t, "a", a)
	require.Equal(t, "b", b)
}
