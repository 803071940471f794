package server

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/suilhq/suil/pkg/httpmsg"
	"github.com/suilhq/suil/pkg/httpparse"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	full := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return full
}

func TestServeFileServesWholeFile(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "index.html", "<html>hi</html>")
	fs, err := NewStaticFS(dir)
	require.NoError(t, err)

	req := &httpmsg.Request{Method: "GET", Header: make(httpparse.Header)}
	resp := httpmsg.NewResponse()
	require.NoError(t, fs.ServeFile(req, resp, "index.html"))

	require.Equal(t, 200, resp.Status)
	require.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
}

func TestServeFileRejectsPathEscape(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewStaticFS(dir)
	require.NoError(t, err)

	req := &httpmsg.Request{Method: "GET", Header: make(httpparse.Header)}
	resp := httpmsg.NewResponse()
	require.NoError(t, fs.ServeFile(req, resp, "../../../../etc/passwd"))

	require.Equal(t, 404, resp.Status)
}

func TestServeFileMissingFile(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewStaticFS(dir)
	require.NoError(t, err)

	req := &httpmsg.Request{Method: "GET", Header: make(httpparse.Header)}
	resp := httpmsg.NewResponse()
	require.NoError(t, fs.ServeFile(req, resp, "missing.html"))

	require.Equal(t, 404, resp.Status)
}

func TestServeFileRange(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "data.txt", "0123456789")
	fs, err := NewStaticFS(dir)
	require.NoError(t, err)

	header := make(httpparse.Header)
	header.Set("Range", "bytes=2-5")
	req := &httpmsg.Request{Method: "GET", Header: header}
	resp := httpmsg.NewResponse()
	require.NoError(t, fs.ServeFile(req, resp, "data.txt"))

	require.Equal(t, 206, resp.Status)
	require.Equal(t, "bytes 2-5/10", resp.Header.Get("Content-Range"))
}

func TestServeFileIfModifiedSinceReturnsNotModified(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "cached.css", "body{}")
	fs, err := NewStaticFS(dir)
	require.NoError(t, err)
	fs.AllowCaching = true

	info, err := os.Stat(filepath.Join(dir, "cached.css"))
	require.NoError(t, err)

	header := make(httpparse.Header)
	header.Set("If-Modified-Since", info.ModTime().Add(time.Second).UTC().Format(http.TimeFormat))
	req := &httpmsg.Request{Method: "GET", Header: header}
	resp := httpmsg.NewResponse()
	require.NoError(t, fs.ServeFile(req, resp, "cached.css"))

	require.Equal(t, 304, resp.Status)
}
