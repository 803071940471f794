package httpparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/suilhq/suil/pkg/netio"
)

var crlf = []byte("\r\n")

// Limits bounds the parser against oversized input before any body
// framing or disk-offload decision is made, mirroring spec.md §4.4's
// "header line too long" failure. pkg/server passes fixed values here;
// the body size limit is applied separately by the body reader.
type Limits struct {
	MaxLineBytes   int
	MaxHeaderBytes int
	MaxHeaders     int
}

// RequestLine is the parsed first line of an HTTP/1.x request.
type RequestLine struct {
	Method     string
	URI        string
	ProtoMajor int
	ProtoMinor int
}

// Message is the result of ReceiveHeaders: the request line, the header
// map, and the body-framing decision (content length, or -1 when chunked
// or when no Content-Length is present; a non-chunked message without one
// has no body), matching spec.md §4.4's parser state ("method,
// major/minor version, content-length, chunked flag").
type Message struct {
	Line          RequestLine
	Header        Header
	ContentLength int64
	Chunked       bool
}

// ReceiveHeaders reads bytes from sock until the full request line and
// header block have been consumed, or deadline/limits are exceeded. It is
// the Go realization of spec.md §4.10's "receive_headers: loop socket.recv
// -> parser.feed until headers-complete or deadline".
func ReceiveHeaders(sock netio.Socket, limits Limits, deadline time.Time) (*Message, error) {
	line, err := sock.RecvUntil([][]byte{crlf}, limits.MaxLineBytes, deadline)
	if err != nil {
		return nil, err
	}
	rl, err := parseRequestLine(trimCRLF(line))
	if err != nil {
		return nil, err
	}

	hdr := make(Header)
	headerBytes := 0
	for i := 0; ; i++ {
		if limits.MaxHeaders > 0 && i > limits.MaxHeaders {
			return nil, badRequest("too many header fields")
		}
		raw, err := sock.RecvUntil([][]byte{crlf}, limits.MaxLineBytes, deadline)
		if err != nil {
			return nil, err
		}
		headerBytes += len(raw)
		if limits.MaxHeaderBytes > 0 && headerBytes > limits.MaxHeaderBytes {
			return nil, badRequest("header block too large")
		}
		trimmed := trimCRLF(raw)
		if trimmed == "" {
			break
		}
		key, val, err := parseHeaderLine(trimmed)
		if err != nil {
			return nil, err
		}
		hdr.Add(key, val)
	}

	contentLength, chunked, err := resolveFraming(hdr)
	if err != nil {
		return nil, err
	}

	return &Message{Line: rl, Header: hdr, ContentLength: contentLength, Chunked: chunked}, nil
}

func trimCRLF(b []byte) string {
	s := string(b)
	s = strings.TrimSuffix(s, "\r\n")
	s = strings.TrimSuffix(s, "\n")
	return s
}

// parseRequestLine parses "METHOD SP Request-URI SP HTTP/x.y", identical in
// spirit to httpx's parseRequestLine.
func parseRequestLine(line string) (RequestLine, error) {
	if line == "" {
		return RequestLine{}, badRequest("empty request line")
	}
	parts := strings.Fields(line)
	if len(parts) != 3 {
		return RequestLine{}, badRequest(fmt.Sprintf("malformed request line: %q", line))
	}

	method, uri, proto := parts[0], parts[1], parts[2]

	if method == "" || len(method) > 20 {
		return RequestLine{}, badRequest("invalid method")
	}
	for _, c := range method {
		if c < 'A' || c > 'Z' {
			return RequestLine{}, badRequest("method must be uppercase A-Z")
		}
	}

	if !strings.HasPrefix(proto, "HTTP/") {
		return RequestLine{}, badRequest("invalid protocol")
	}
	ver := strings.TrimPrefix(proto, "HTTP/")
	dot := strings.IndexByte(ver, '.')
	if dot < 0 {
		return RequestLine{}, badRequest("invalid HTTP version")
	}
	major, err1 := strconv.Atoi(ver[:dot])
	minor, err2 := strconv.Atoi(ver[dot+1:])
	if err1 != nil || err2 != nil {
		return RequestLine{}, badRequest("invalid HTTP version numbers")
	}

	return RequestLine{Method: method, URI: uri, ProtoMajor: major, ProtoMinor: minor}, nil
}

// resolveFraming decides body framing from headers, rejecting duplicate
// Content-Length headers with conflicting values per spec.md §4.4.
func resolveFraming(hdr Header) (contentLength int64, chunked bool, err error) {
	if strings.EqualFold(hdr.Get("Transfer-Encoding"), "chunked") {
		return -1, true, nil
	}

	vals := hdr.Values("Content-Length")
	if len(vals) == 0 {
		return -1, false, nil
	}
	first := strings.TrimSpace(vals[0])
	n, err := strconv.ParseInt(first, 10, 64)
	if err != nil || n < 0 {
		return 0, false, badRequest("invalid Content-Length")
	}
	for _, v := range vals[1:] {
		if strings.TrimSpace(v) != first {
			return 0, false, badRequest("conflicting Content-Length values")
		}
	}
	return n, false, nil
}
