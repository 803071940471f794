package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/suilhq/suil/pkg/httpmsg"
)

func TestHandleWritesExpositionAndEnds200(t *testing.T) {
	reg := NewRegistry()
	reg.NewCounter("suil_handled_total", "requests handled").Add(3)

	handler := Handle(reg)
	req := &httpmsg.Request{Method: "GET"}
	resp := httpmsg.NewResponse()

	require.NoError(t, handler(req, resp, nil))
	require.Equal(t, 200, resp.Status)
	require.Equal(t, "text/plain; version=0.0.4; charset=utf-8", resp.Header.Get("Content-Type"))
}

func TestHandleWritesNonEmptyBody(t *testing.T) {
	reg := NewRegistry()
	reg.NewCounter("suil_named_total", "a named counter")

	handler := Handle(reg)
	req := &httpmsg.Request{Method: "GET"}
	resp := httpmsg.NewResponse()
	require.NoError(t, handler(req, resp, nil))

	require.False(t, resp.BodyEmpty())
}
