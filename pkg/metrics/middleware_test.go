package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/suilhq/suil/pkg/httpmsg"
	"github.com/suilhq/suil/pkg/middleware"
)

func TestRequestRecorderTracksInFlightAndTotals(t *testing.T) {
	reg := NewRegistry()
	rec := NewRequestRecorder(reg, 0)
	chain := middleware.NewChain(rec)

	req := &httpmsg.Request{Method: "GET"}
	resp := httpmsg.NewResponse()
	ctx := chain.NewContext(req, resp)

	err := chain.Dispatch(ctx, func(ctx *middleware.Context) error {
		require.Equal(t, float64(1), rec.inFlight.Value())
		ctx.Response.End(200)
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, float64(0), rec.inFlight.Value())
	require.Equal(t, float64(1), rec.total.WithLabelValues("GET", "200").Value())
	require.Equal(t, float64(1), rec.durationObs.Value())
}

func TestRequestRecorderCountsServerErrors(t *testing.T) {
	reg := NewRegistry()
	rec := NewRequestRecorder(reg, 0)
	chain := middleware.NewChain(rec)

	req := &httpmsg.Request{Method: "POST"}
	resp := httpmsg.NewResponse()
	ctx := chain.NewContext(req, resp)

	err := chain.Dispatch(ctx, func(ctx *middleware.Context) error {
		ctx.Response.End(503)
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, float64(1), rec.errorTotal.Value())
}
