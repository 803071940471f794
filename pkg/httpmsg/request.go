// Package httpmsg implements the request/response model described in
// spec.md §4.7 (C7): header/query/cookie/body access, the multipart form
// parser, disk-offloaded bodies, and chunked/sendfile-eligible response
// assembly. Grounded on andycostintoma-go-httpx's internal/httpx package
// (Header, URL, body framing, response writer), extended with suil's
// disk-offload and explicit chunk-list response model that httpx itself
// does not need.
package httpmsg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/suilhq/suil/pkg/httpparse"
	"github.com/suilhq/suil/pkg/netio"
	"github.com/suilhq/suil/pkg/routing"
)

// URL mirrors httpx.URL: a minimal parsed request-target.
type URL struct {
	Scheme   string
	Host     string
	Path     string
	RawQuery string
}

// ParseRequestURI parses the request-target per RFC 7230 §5.3, identical
// in shape to httpx.ParseRequestURI.
func ParseRequestURI(raw string) (*URL, error) {
	if raw == "" {
		return nil, errors.New("httpmsg: empty request-target")
	}
	if strings.ContainsAny(raw, " \r\n") {
		return nil, errors.New("httpmsg: invalid characters in request-target")
	}
	if raw == "*" {
		return &URL{Path: "*"}, nil
	}

	u := &URL{}
	switch {
	case strings.HasPrefix(raw, "http://"):
		u.Scheme = "http"
		rest := strings.TrimPrefix(raw, "http://")
		if slash := strings.IndexByte(rest, '/'); slash == -1 {
			u.Host = strings.ToLower(rest)
			u.Path = "/"
			return u, nil
		} else {
			u.Host = strings.ToLower(rest[:slash])
			raw = rest[slash:]
		}
	case strings.HasPrefix(raw, "https://"):
		u.Scheme = "https"
		rest := strings.TrimPrefix(raw, "https://")
		if slash := strings.IndexByte(rest, '/'); slash == -1 {
			u.Host = strings.ToLower(rest)
			u.Path = "/"
			return u, nil
		} else {
			u.Host = strings.ToLower(rest[:slash])
			raw = rest[slash:]
		}
	}

	if q := strings.IndexByte(raw, '?'); q >= 0 {
		u.Path, u.RawQuery = raw[:q], raw[q+1:]
	} else {
		u.Path = raw
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

// UploadedFile is one file field extracted by the multipart parser: a
// slice view into the already-buffered body (no copy for in-memory
// bodies), per spec.md §4.7's "null-terminates and slices views rather
// than copying".
type UploadedFile struct {
	Name     string
	Filename string
	MIME     string
	Data     []byte
}

// Request is the server-side view of an inbound HTTP/1.x request,
// grounded on httpx.Request but extended with suil's offload path,
// route-parameter capture, and form/multipart/cookie accessors.
type Request struct {
	Method        string
	URI           string
	URL           *URL
	Header        httpparse.Header
	ProtoMajor    int
	ProtoMinor    int
	ContentLength int64

	ctx context.Context

	bodyBuf    []byte   // in-memory body, nil if offloaded
	offload    *os.File // non-nil once the body has been spilled to disk
	offloadLen int64

	form   url.Values
	files  map[string][]UploadedFile
	cookies []*Cookie

	// RouteParams is populated by the router once a route has matched.
	RouteParams routing.Params
}

// NewRequest builds a Request from a parsed header message, ready for
// ReceiveBody to fill in.
func NewRequest(ctx context.Context, msg *httpparse.Message) (*Request, error) {
	u, err := ParseRequestURI(msg.Line.URI)
	if err != nil {
		return nil, err
	}
	cl := msg.ContentLength
	return &Request{
		Method:        msg.Line.Method,
		URI:           msg.Line.URI,
		URL:           u,
		Header:        msg.Header,
		ProtoMajor:    msg.Line.ProtoMajor,
		ProtoMinor:    msg.Line.ProtoMinor,
		ContentLength: cl,
		ctx:           ctx,
	}, nil
}

func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// OffloadDecision is the result of applying config.DiskOffload/
// DiskOffloadMin to a request's declared Content-Length, per spec.md
// §4.7's process_headers step.
type OffloadDecision struct {
	Offload bool
	Path    string
}

// DecideOffload determines whether this request's body should be spilled
// to disk, given the configured threshold and enable flag.
func DecideOffload(contentLength int64, diskOffload bool, diskOffloadMin int64) bool {
	return diskOffload && contentLength >= 0 && contentLength >= diskOffloadMin
}

// ReceiveBody reads the body from sock (already past the header block)
// according to msg's framing, either buffering it in memory or spilling
// it to a temp file under offloadDir when the offload decision says so.
// This realizes spec.md §4.7's receive_body + process_headers offload
// step, resolving the spec's Open Question that the offload file must be
// removed on every exit path by always being paired with Request.Close.
func (r *Request) ReceiveBody(sock netio.Socket, msg *httpparse.Message, maxBodyLen int64, offload bool, offloadMin int64, offloadDir string, deadline time.Time) error {
	body, err := httpparse.NewBodyReader(msg, socketReader{sock: sock, deadline: deadline}, maxBodyLen)
	if err != nil {
		return err
	}
	defer body.Close()

	if DecideOffload(msg.ContentLength, offload, offloadMin) {
		f, err := os.CreateTemp(offloadDir, "suil-body-*")
		if err != nil {
			return fmt.Errorf("httpmsg: create offload file: %w", err)
		}
		n, err := io.Copy(f, body)
		if err != nil {
			f.Close()
			os.Remove(f.Name())
			return fmt.Errorf("httpmsg: write offload file: %w", err)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			os.Remove(f.Name())
			return err
		}
		r.offload = f
		r.offloadLen = n
		return nil
	}

	buf, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	r.bodyBuf = buf
	return nil
}

// ReadBody copies up to len(buf) bytes starting at offset out of the
// request body, supporting seeking into offloaded bodies, per spec.md
// §4.7's "handler may call read_body(buf,len) ... supports seeking".
func (r *Request) ReadBody(buf []byte, offset int64) (int, error) {
	if r.offload != nil {
		return r.offload.ReadAt(buf, offset)
	}
	if offset >= int64(len(r.bodyBuf)) {
		return 0, io.EOF
	}
	n := copy(buf, r.bodyBuf[offset:])
	return n, nil
}

// BodyLen returns the total body length, whichever storage backs it.
func (r *Request) BodyLen() int64 {
	if r.offload != nil {
		return r.offloadLen
	}
	return int64(len(r.bodyBuf))
}

// BodyBytes returns the whole body as a byte slice, reading the offload
// file fully if the body was spilled to disk.
func (r *Request) BodyBytes() ([]byte, error) {
	if r.offload == nil {
		return r.bodyBuf, nil
	}
	buf := make([]byte, r.offloadLen)
	if _, err := r.offload.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

// Close releases any resources the request holds, most importantly
// removing the disk-offload temp file. Always call this on every exit
// path of the connection loop, offload-write-failure or not — this is
// the closing half of the Open Question resolution described at
// ReceiveBody.
func (r *Request) Close() error {
	if r.offload == nil {
		return nil
	}
	path := r.offload.Name()
	err := r.offload.Close()
	if rmErr := os.Remove(path); rmErr != nil && err == nil {
		err = rmErr
	}
	r.offload = nil
	return err
}

// socketReader adapts a netio.Socket to io.Reader for httpparse's body
// readers, which only need Read, not the full Socket surface.
type socketReader struct {
	sock     netio.Socket
	deadline time.Time
}

func (s socketReader) Read(p []byte) (int, error) {
	return s.sock.Recv(p, s.deadline)
}

// Query returns the first value of the named query-string parameter.
func (r *Request) Query(name string) string {
	if r.URL == nil {
		return ""
	}
	values, err := url.ParseQuery(r.URL.RawQuery)
	if err != nil {
		return ""
	}
	return values.Get(name)
}

// ParseCookies parses the Cookie header into r.cookies, idempotent.
func (r *Request) ParseCookies() []*Cookie {
	if r.cookies != nil {
		return r.cookies
	}
	r.cookies = parseCookieHeader(r.Header.Get("Cookie"))
	return r.cookies
}

// Cookie returns the named request cookie's value, or "" if absent.
func (r *Request) Cookie(name string) string {
	for _, c := range r.ParseCookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// ParseForm parses a urlencoded or multipart body into r.form/r.files,
// dispatching on Content-Type exactly as spec.md §4.7 describes.
func (r *Request) ParseForm() error {
	if r.form != nil {
		return nil
	}
	ct := r.Header.Get("Content-Type")
	body, err := r.BodyBytes()
	if err != nil {
		return err
	}

	if strings.HasPrefix(ct, "multipart/form-data") {
		boundary, err := boundaryFromContentType(ct)
		if err != nil {
			return err
		}
		form, files, err := parseMultipart(body, boundary)
		if err != nil {
			return err
		}
		r.form, r.files = form, files
		return nil
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return fmt.Errorf("httpmsg: parse form body: %w", err)
	}
	r.form = values
	return nil
}

// FormValue returns the named form field, parsing the body on first use.
func (r *Request) FormValue(name string) string {
	if err := r.ParseForm(); err != nil {
		return ""
	}
	return r.form.Get(name)
}

// FormFile returns the named uploaded file(s).
func (r *Request) FormFile(name string) []UploadedFile {
	if err := r.ParseForm(); err != nil {
		return nil
	}
	return r.files[name]
}
