package metrics

import (
	"github.com/suilhq/suil/pkg/httpmsg"
	"github.com/suilhq/suil/pkg/routing"
)

// Handle answers one /metrics request by writing reg's current families in
// Prometheus text exposition format straight into resp, the same
// Content-Type and status writeAggregatedMetrics sends, just against a
// single process's own registry instead of a fan-out across runners.
// Its signature matches pkg/server.RouteHandler, so it can be passed
// directly to server.Route.
func Handle(reg *Registry) func(req *httpmsg.Request, resp *httpmsg.Response, params routing.Params) error {
	return func(req *httpmsg.Request, resp *httpmsg.Response, params routing.Params) error {
		resp.Header.Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		if err := reg.WriteTo(resp); err != nil {
			return err
		}
		resp.End(200)
		return nil
	}
}
