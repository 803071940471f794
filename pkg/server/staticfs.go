// Package server's static file handler, grounded on
// original_source/suil/http/fserver.cpp's FileServer: mime-type gated
// serving out of a base directory, Last-Modified/If-Modified-Since
// caching, and single-range support answered via httpmsg.ParseRange —
// a feature the distilled routing/middleware spec doesn't name directly
// but that any complete implementation of this framework carries, per
// fserver.cpp.
package server

import (
	"errors"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/suilhq/suil/pkg/httpmsg"
	"github.com/suilhq/suil/pkg/routing"
)

// ErrPathEscapesRoot is returned when a request path resolves outside
// the configured static root, the Go realization of fserver.cpp's
// file_exists back-reference check via realpath comparison.
var ErrPathEscapesRoot = errors.New("server: path escapes static root")

// StaticFS serves files under Root, mirroring FileServer's mime-gated,
// cache-aware, range-aware GET/HEAD handling. Files are read fresh off
// disk per request (no mmap cache, unlike fserver.cpp's cached_files_
// map) since Go's filesystem cache already serves that role and the
// corpus carries no mmap-caching library to ground a reimplementation
// of cached_files_ on.
type StaticFS struct {
	Root         string
	AllowCaching bool
	CacheMaxAge  time.Duration
}

// NewStaticFS builds a StaticFS rooted at root, resolved to an absolute
// path once up front exactly as FileServer::init does with realpath.
func NewStaticFS(root string) (*StaticFS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("server: static root is not a directory")
	}
	return &StaticFS{Root: abs}, nil
}

// resolve maps an URL path to an absolute file path under fs.Root,
// rejecting any ".." escape the same way file_exists's realpath-prefix
// check does.
func (fs *StaticFS) resolve(urlPath string) (string, error) {
	cleaned := path.Clean("/" + urlPath)
	full := filepath.Join(fs.Root, filepath.FromSlash(cleaned))
	full, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	if full != fs.Root && !strings.HasPrefix(full, fs.Root+string(filepath.Separator)) {
		return "", ErrPathEscapesRoot
	}
	return full, nil
}

// Route registers this tree under prefix+"<path>" on router, answering
// both GET and HEAD, the Go equivalent of mounting FileServer at a
// sub-path in the original's endpoint configuration.
func (fs *StaticFS) Route(router *routing.Router, prefix string) {
	Route(router, prefix+"<path>", routing.MethodGet|routing.MethodHead, func(req *httpmsg.Request, resp *httpmsg.Response, params routing.Params) error {
		rel := ""
		if len(params) > 0 && params[len(params)-1].Type == routing.ParamPath {
			rel = params[len(params)-1].String
		}
		return fs.ServeFile(req, resp, rel)
	})
}

// ServeFile answers one request for the file at urlPath, the behavior
// fserver.cpp's FileServer::get/head implement: mime lookup,
// If-Modified-Since short-circuit, Cache-Control on cacheable types,
// Accept-Ranges advertisement, and single-range responses.
func (fs *StaticFS) ServeFile(req *httpmsg.Request, resp *httpmsg.Response, urlPath string) error {
	full, err := fs.resolve(urlPath)
	if err != nil {
		resp.End(404)
		return nil
	}

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		resp.End(404)
		return nil
	}

	ext := filepath.Ext(full)
	ctype := mime.TypeByExtension(ext)
	if ctype == "" {
		resp.End(404)
		return nil
	}

	if fs.AllowCaching {
		if ims := req.Header.Get("If-Modified-Since"); ims != "" {
			if t, err := http.ParseTime(ims); err == nil && !info.ModTime().After(t) {
				resp.End(304)
				return nil
			}
		}
		resp.Header.Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))
		if fs.CacheMaxAge > 0 {
			resp.Header.Set("Cache-Control", "public, max-age="+strconv.FormatInt(int64(fs.CacheMaxAge/time.Second), 10))
		}
	}

	resp.Header.Set("Content-Type", ctype)
	resp.Header.Set("Accept-Ranges", "bytes")

	if req.Method == "HEAD" {
		resp.End(200)
		return nil
	}

	total := info.Size()
	if rangeHeader := req.Header.Get("Range"); rangeHeader != "" {
		return fs.serveRange(resp, full, rangeHeader, total)
	}

	f, err := os.Open(full)
	if err != nil {
		resp.End(500)
		return nil
	}
	if err := resp.PushChunk(httpmsg.Chunk{File: f, Offset: 0, Len: total}); err != nil {
		f.Close()
		return err
	}
	resp.End(200)
	return nil
}

// serveRange answers a single-range Range request, the Go realization
// of FileServer::build_range_resp's one-range case (multiple ranges
// still unsupported, per spec.md §6 and httpmsg.ParseRange).
func (fs *StaticFS) serveRange(resp *httpmsg.Response, full, rangeHeader string, total int64) error {
	br, err := httpmsg.ParseRange(rangeHeader, total)
	switch {
	case errors.Is(err, httpmsg.ErrMultiRangeUnsupported):
		resp.End(406)
		return nil
	case errors.Is(err, httpmsg.ErrRangeNotSatisfiable):
		resp.Header.Set("Content-Range", "bytes */"+strconv.FormatInt(total, 10))
		resp.End(416)
		return nil
	case err != nil:
		return err
	}

	f, err := os.Open(full)
	if err != nil {
		resp.End(500)
		return nil
	}
	if err := resp.PushChunk(httpmsg.Chunk{File: f, Offset: br.Start, Len: br.Len()}); err != nil {
		f.Close()
		return err
	}
	resp.Header.Set("Content-Range", br.ContentRange())
	resp.End(206)
	return nil
}
