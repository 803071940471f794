package httpmsg

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/suilhq/suil/pkg/httpparse"
	"github.com/suilhq/suil/pkg/netio"
)

// ErrAlreadyEnded is returned by Write/PushChunk once End has been called.
var ErrAlreadyEnded = errors.New("httpmsg: response already ended")

// ErrMixedBody is returned when a response tries to use both the inline
// buffer and the explicit chunk list, violating spec.md §3's "a response
// is either accumulating chunks OR holding a single inline body buffer,
// not both simultaneously after end() is called" invariant.
var ErrMixedBody = errors.New("httpmsg: response cannot mix inline body and chunks")

// Chunk is one response body segment: either a contiguous in-memory
// buffer, or a file region to be sent with Socket.Sendfile.
type Chunk struct {
	Buf    []byte
	File   *os.File
	Offset int64
	Len    int64
}

// isFile reports whether this chunk should be transmitted via sendfile.
func (c Chunk) isFile() bool { return c.File != nil }

// Response accumulates a status, headers, cookies, and a body (inline
// buffer XOR chunk list) before being serialized by WriteTo to a
// pkg/netio.Socket. Grounded on httpx.Response/WriteResponse, generalized
// to suil's chunk-list + sendfile model.
type Response struct {
	Status     int
	Header     httpparse.Header
	cookies    []*Cookie
	inlineBody []byte
	chunks     []Chunk
	ended      bool
	protoMajor int
	protoMinor int
}

// NewResponse creates an empty 200 response with an initialized header map.
func NewResponse() *Response {
	return &Response{Status: 200, Header: make(httpparse.Header), protoMajor: 1, protoMinor: 1}
}

// SetProto records the protocol version to echo in the status line,
// mirroring the request's own HTTP/1.0 vs HTTP/1.1 version.
func (r *Response) SetProto(major, minor int) {
	r.protoMajor, r.protoMinor = major, minor
}

// Cookie registers a cookie to be flushed to Set-Cookie headers just
// before serialization, one header per cookie, insertion order preserved
// (a slice, not a map), per spec.md §4.7.
func (r *Response) Cookie(c *Cookie) {
	r.cookies = append(r.cookies, c)
}

// Write appends p to the inline body buffer. Returns ErrMixedBody if
// chunks have already been pushed, and ErrAlreadyEnded once End was
// called.
func (r *Response) Write(p []byte) (int, error) {
	if r.ended {
		return 0, ErrAlreadyEnded
	}
	if len(r.chunks) > 0 {
		return 0, ErrMixedBody
	}
	r.inlineBody = append(r.inlineBody, p...)
	return len(p), nil
}

// PushChunk pushes an explicit body chunk. Returns ErrMixedBody if the
// inline buffer already has content.
func (r *Response) PushChunk(c Chunk) error {
	if r.ended {
		return ErrAlreadyEnded
	}
	if len(r.inlineBody) > 0 {
		return ErrMixedBody
	}
	r.chunks = append(r.chunks, c)
	return nil
}

// End marks the response complete with the given status code.
func (r *Response) End(status int) {
	r.Status = status
	r.ended = true
}

// Ended reports whether End has been called, the signal middleware uses
// to short-circuit the before-chain per spec.md §4.6.
func (r *Response) Ended() bool {
	return r.ended
}

// bodyLen returns the total body length across whichever of the inline
// buffer or chunk list is in use, for the Content-Length header.
func (r *Response) bodyLen() int64 {
	if len(r.inlineBody) > 0 {
		return int64(len(r.inlineBody))
	}
	var n int64
	for _, c := range r.chunks {
		if c.isFile() {
			n += c.Len
			continue
		}
		n += int64(len(c.Buf))
	}
	return n
}

// BodyEmpty reports whether no body content (inline or chunked) has been
// written yet, used by callers deciding whether to attach a default error
// message body.
func (r *Response) BodyEmpty() bool {
	return len(r.inlineBody) == 0 && len(r.chunks) == 0
}

// flushCookies writes every registered cookie as a Set-Cookie header,
// called immediately before header serialization.
func (r *Response) flushCookies() {
	for _, c := range r.cookies {
		r.Header.Add("Set-Cookie", c.String())
	}
}

// WriteTo serializes the status line, headers, and body to sock,
// segmenting any chunk at or above sendChunk bytes and using Sendfile for
// file chunks when the socket supports it, per spec.md §4.7's "Chunks >=
// config.send_chunk are segmented; fd chunks use sendfile."
func (r *Response) WriteTo(sock netio.Socket, sendChunk int64, deadline time.Time) error {
	r.flushCookies()
	if r.Header.Get("Content-Length") == "" && r.Header.Get("Transfer-Encoding") == "" {
		r.Header.Set("Content-Length", fmt.Sprintf("%d", r.bodyLen()))
	}

	statusLine := fmt.Sprintf("HTTP/%d.%d %d %s\r\n", r.protoMajor, r.protoMinor, r.Status, http.StatusText(r.Status))
	if _, err := sock.Send([]byte(statusLine), deadline); err != nil {
		return err
	}

	var headerBuf []byte
	for k, vals := range r.Header {
		for _, v := range vals {
			headerBuf = append(headerBuf, []byte(k+": "+v+"\r\n")...)
		}
	}
	headerBuf = append(headerBuf, '\r', '\n')
	if _, err := sock.Send(headerBuf, deadline); err != nil {
		return err
	}

	if len(r.inlineBody) > 0 {
		return r.sendBuffer(sock, r.inlineBody, sendChunk, deadline)
	}

	for _, c := range r.chunks {
		if c.isFile() {
			if sock.CanSendfile() {
				if _, err := sock.Sendfile(c.File, c.Offset, c.Len, deadline); err != nil {
					return err
				}
				continue
			}
			buf := make([]byte, c.Len)
			if _, err := c.File.ReadAt(buf, c.Offset); err != nil && err != io.EOF {
				return err
			}
			if err := r.sendBuffer(sock, buf, sendChunk, deadline); err != nil {
				return err
			}
			continue
		}
		if err := r.sendBuffer(sock, c.Buf, sendChunk, deadline); err != nil {
			return err
		}
	}
	return nil
}

// sendBuffer segments buf into sendChunk-sized writes, per spec.md §4.7's
// send-chunk cap on a single socket send call.
func (r *Response) sendBuffer(sock netio.Socket, buf []byte, sendChunk int64, deadline time.Time) error {
	if sendChunk <= 0 {
		_, err := sock.Send(buf, deadline)
		return err
	}
	for len(buf) > 0 {
		n := int64(len(buf))
		if n > sendChunk {
			n = sendChunk
		}
		if _, err := sock.Send(buf[:n], deadline); err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}
