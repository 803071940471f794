package metrics

import (
	"strconv"
	"time"

	"github.com/suilhq/suil/pkg/middleware"
)

// RequestRecorder is a middleware.Middleware that counts requests and
// tracks in-flight requests on a Registry, generalizing
// docker/model-runner/pkg/metrics.Tracker's single-purpose model-fetch
// tracking into the ambient per-request counters this framework's own
// connection loop needs.
type RequestRecorder struct {
	slot int

	inFlight    *Gauge
	total       *CounterVec
	errorTotal  *Counter
	durationSum *Counter
	durationObs *Counter
}

// NewRequestRecorder builds a RequestRecorder registered on reg. slot must
// be this middleware's position in the Chain it is installed into (the
// index NewChain(...) assigns it), since Before stashes the request's
// start time in that slot for After to read back.
func NewRequestRecorder(reg *Registry, slot int) *RequestRecorder {
	return &RequestRecorder{
		slot:        slot,
		inFlight:    reg.NewGauge("suil_requests_in_flight", "Requests currently being handled."),
		total:       reg.NewCounterVec("suil_requests_total", "Total requests handled, by method and status.", "method", "status"),
		errorTotal:  reg.NewCounter("suil_request_errors_total", "Requests whose response status is 5xx."),
		durationSum: reg.NewCounter("suil_request_duration_seconds_sum", "Sum of request handling durations in seconds."),
		durationObs: reg.NewCounter("suil_request_duration_seconds_count", "Count of requests whose duration was observed."),
	}
}

// Before records the request's start time and increments the in-flight
// gauge.
func (r *RequestRecorder) Before(ctx *middleware.Context) error {
	ctx.SetSlot(r.slot, time.Now())
	r.inFlight.Inc()
	return nil
}

// After decrements the in-flight gauge and records the finished request's
// method/status counters, regardless of how the request ended (error,
// panic, or ordinary completion) since Chain.Dispatch always runs After
// for an entered middleware.
func (r *RequestRecorder) After(ctx *middleware.Context) {
	r.inFlight.Dec()

	status := ctx.Response.Status
	r.total.WithLabelValues(ctx.Request.Method, strconv.Itoa(status)).Inc()
	if status >= 500 {
		r.errorTotal.Inc()
	}

	if start, ok := ctx.Slot(r.slot).(time.Time); ok {
		r.durationSum.Add(time.Since(start).Seconds())
		r.durationObs.Inc()
	}
}

var _ middleware.Middleware = (*RequestRecorder)(nil)
