package middleware

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/suilhq/suil/pkg/httpmsg"
	"github.com/suilhq/suil/pkg/httpparse"
)

func TestAccessLogWritesMethodPathStatus(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	al := NewAccessLog(log)

	req := &httpmsg.Request{Method: "GET", Header: make(httpparse.Header), URL: &httpmsg.URL{Path: "/widgets"}}
	resp := httpmsg.NewResponse()
	resp.End(200)
	ctx := &Context{Request: req, Response: resp, slots: make([]any, 1)}

	require.NoError(t, al.Before(ctx))
	al.After(ctx)

	require.True(t, strings.Contains(buf.String(), "GET /widgets -> 200"))
}

func TestAccessLogSanitizesPath(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	al := NewAccessLog(log)

	req := &httpmsg.Request{Method: "GET", Header: make(httpparse.Header), URL: &httpmsg.URL{Path: "/a\nb"}}
	resp := httpmsg.NewResponse()
	resp.End(404)
	ctx := &Context{Request: req, Response: resp, slots: make([]any, 1)}

	al.After(ctx)

	require.True(t, strings.Contains(buf.String(), "/a\\nb -> 404"))
	require.False(t, strings.Contains(buf.String(), "/a\nb"))
}
