package jsonrpc

import (
	"github.com/suilhq/suil/pkg/httpmsg"
	"github.com/suilhq/suil/pkg/routing"
)

// HTTPHandler returns a request handler that answers one POST with a
// JSON-RPC request (or batch) body by running it through d and writing
// back the JSON-RPC response, an HTTP transport binding for the
// connection-oriented Dispatch/DispatchBatch methods that otherwise only
// frame over pkg/rpc's length-prefixed envelopes. Its signature matches
// pkg/server.RouteHandler, so it can be passed directly to server.Route.
func HTTPHandler(d *Dispatcher) func(req *httpmsg.Request, resp *httpmsg.Response, params routing.Params) error {
	return func(req *httpmsg.Request, resp *httpmsg.Response, params routing.Params) error {
		body, err := req.BodyBytes()
		if err != nil {
			return err
		}

		resp.Header.Set("Content-Type", "application/json")

		if reqs, err := DecodeBatch(body); err == nil {
			out, err := EncodeBatch(d.DispatchBatch(reqs))
			if err != nil {
				return err
			}
			resp.Write(out)
			resp.End(200)
			return nil
		}

		jreq, err := DecodeRequest(body)
		if err != nil {
			rpcErr, _ := err.(*Error)
			code := CodeParseError
			msg := err.Error()
			if rpcErr != nil {
				code = rpcErr.Code
				msg = rpcErr.Message
			}
			out, encErr := Encode(NewError(nil, code, msg))
			if encErr != nil {
				return encErr
			}
			resp.Write(out)
			resp.End(200)
			return nil
		}

		out, err := Encode(d.Dispatch(jreq))
		if err != nil {
			return err
		}
		resp.Write(out)
		resp.End(200)
		return nil
	}
}
