package httpparse

import (
	"bytes"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeSocket adapts a bytes.Reader to netio.Socket for RecvUntil-only tests.
type fakeSocket struct {
	r *fakeByteReader
}

type fakeByteReader struct {
	data []byte
	pos  int
}

func (f *fakeByteReader) ReadByte() (byte, error) {
	if f.pos >= len(f.data) {
		return 0, io.EOF
	}
	b := f.data[f.pos]
	f.pos++
	return b, nil
}

func newFakeSocket(s string) *fakeSocket {
	return &fakeSocket{r: &fakeByteReader{data: []byte(s)}}
}

func (f *fakeSocket) Send(buf []byte, deadline time.Time) (int, error) { return len(buf), nil }
func (f *fakeSocket) Recv(buf []byte, deadline time.Time) (int, error) { return 0, io.EOF }
func (f *fakeSocket) RecvUntil(delims [][]byte, maxLen int, deadline time.Time) ([]byte, error) {
	var buf []byte
	for {
		b, err := f.r.ReadByte()
		if err != nil {
			return buf, err
		}
		buf = append(buf, b)
		for _, d := range delims {
			if len(buf) >= len(d) && bytes.Equal(buf[len(buf)-len(d):], d) {
				return buf, nil
			}
		}
		if maxLen > 0 && len(buf) >= maxLen {
			return buf, io.ErrShortBuffer
		}
	}
}
func (f *fakeSocket) Sendfile(_ *os.File, offset, length int64, deadline time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeSocket) CanSendfile() bool             { return false }
func (f *fakeSocket) Flush(deadline time.Time) error { return nil }
func (f *fakeSocket) Close() error                   { return nil }

func TestReceiveHeadersBasic(t *testing.T) {
	raw := "GET /hello?x=1 HTTP/1.1\r\nHost: example.com\r\nContent-Length: 5\r\n\r\n"
	sock := newFakeSocket(raw)

	msg, err := receiveHeadersFromFake(sock, Limits{MaxLineBytes: 4096, MaxHeaderBytes: 65536, MaxHeaders: 100})
	require.NoError(t, err)
	require.Equal(t, "GET", msg.Line.Method)
	require.Equal(t, "/hello?x=1", msg.Line.URI)
	require.Equal(t, 1, msg.Line.ProtoMajor)
	require.Equal(t, 1, msg.Line.ProtoMinor)
	require.Equal(t, "example.com", msg.Header.Get("Host"))
	require.Equal(t, int64(5), msg.ContentLength)
	require.False(t, msg.Chunked)
}

func TestReceiveHeadersChunked(t *testing.T) {
	raw := "POST /x HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n"
	sock := newFakeSocket(raw)
	msg, err := receiveHeadersFromFake(sock, Limits{MaxLineBytes: 4096, MaxHeaderBytes: 65536})
	require.NoError(t, err)
	require.True(t, msg.Chunked)
	require.Equal(t, int64(-1), msg.ContentLength)
}

func TestReceiveHeadersConflictingContentLength(t *testing.T) {
	raw := "POST /x HTTP/1.1\r\nContent-Length: 5\r\nContent-Length: 6\r\n\r\n"
	sock := newFakeSocket(raw)
	_, err := receiveHeadersFromFake(sock, Limits{MaxLineBytes: 4096, MaxHeaderBytes: 65536})
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestReceiveHeadersMalformedRequestLine(t *testing.T) {
	raw := "GET\r\n\r\n"
	sock := newFakeSocket(raw)
	_, err := receiveHeadersFromFake(sock, Limits{MaxLineBytes: 4096, MaxHeaderBytes: 65536})
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestFixedReaderShortBodyIsLengthMismatch(t *testing.T) {
	r := newFixedReader(bytes.NewReader([]byte("ab")), 5, 0)
	buf := make([]byte, 10)
	_, err := r.Read(buf)
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestChunkedReaderDecodesChunks(t *testing.T) {
	raw := "4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"
	r := newChunkedReader(bytes.NewReader([]byte(raw)), 0, make(Header))
	var out []byte
	buf := make([]byte, 16)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	require.Equal(t, "Wikipedia", string(out))
}

func TestCloseReaderEnforcesLimit(t *testing.T) {
	r := newCloseReader(bytes.NewReader(bytes.Repeat([]byte("x"), 100)), 10)
	buf := make([]byte, 100)
	_, err := r.Read(buf)
	require.ErrorIs(t, err, ErrBodyTooLarge)
}

// receiveHeadersFromFake adapts the fakeSocket (which only implements the
// subset RecvUntil needs) into ReceiveHeaders' netio.Socket parameter via a
// minimal shim satisfying that interface for header parsing alone.
func receiveHeadersFromFake(sock *fakeSocket, limits Limits) (*Message, error) {
	return ReceiveHeaders(sock, limits, time.Time{})
}
