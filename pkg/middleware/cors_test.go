package middleware

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/suilhq/suil/pkg/httpmsg"
	"github.com/suilhq/suil/pkg/httpparse"
)

func newCtxFor(method, origin string) *Context {
	header := make(httpparse.Header)
	if origin != "" {
		header.Set("Origin", origin)
	}
	req := &httpmsg.Request{Method: method, Header: header}
	resp := httpmsg.NewResponse()
	return &Context{Request: req, Response: resp, slots: make([]any, 1)}
}

func TestCORSAllowAll(t *testing.T) {
	c := NewCORS([]string{"*"})
	ctx := newCtxFor("GET", "http://example.com")
	require.NoError(t, c.Before(ctx))
	require.Equal(t, "http://example.com", ctx.Response.Header.Get("Access-Control-Allow-Origin"))
	require.False(t, ctx.Response.Ended())
}

func TestCORSAllowSpecificOrigin(t *testing.T) {
	c := NewCORS([]string{"http://foo.com"})
	ctx := newCtxFor("GET", "http://foo.com")
	require.NoError(t, c.Before(ctx))
	require.Equal(t, "http://foo.com", ctx.Response.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORSDisallowOrigin(t *testing.T) {
	c := NewCORS([]string{"http://foo.com"})
	ctx := newCtxFor("GET", "http://bar.com")
	require.NoError(t, c.Before(ctx))
	require.Equal(t, "", ctx.Response.Header.Get("Access-Control-Allow-Origin"))
	require.False(t, ctx.Response.Ended())
}

func TestCORSOptionsPreflightEndsResponse(t *testing.T) {
	c := NewCORS([]string{"http://foo.com"})
	ctx := newCtxFor("OPTIONS", "http://foo.com")
	require.NoError(t, c.Before(ctx))
	require.True(t, ctx.Response.Ended())
	require.Equal(t, 204, ctx.Response.Status)
	require.Equal(t, "true", ctx.Response.Header.Get("Access-Control-Allow-Credentials"))
}

func TestCORSOptionsInvalidOriginPassesThrough(t *testing.T) {
	c := NewCORS([]string{"http://foo.com"})
	ctx := newCtxFor("OPTIONS", "http://bar.com")
	require.NoError(t, c.Before(ctx))
	require.False(t, ctx.Response.Ended())
}

func TestCORSDisabledWhenNoOrigins(t *testing.T) {
	c := NewCORS(nil)
	ctx := newCtxFor("GET", "http://foo.com")
	require.NoError(t, c.Before(ctx))
	require.Equal(t, "", ctx.Response.Header.Get("Access-Control-Allow-Origin"))
}

func TestOriginAllowed(t *testing.T) {
	set := map[string]struct{}{"http://foo.com": {}}
	require.True(t, originAllowed("http://foo.com", set))
	require.False(t, originAllowed("http://bar.com", set))
}
