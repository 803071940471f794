package rpc

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// loopSocket is an in-memory netio.Socket backed by a byte buffer, enough
// to exercise ReadEnvelope/WriteEnvelope round trips.
type loopSocket struct {
	buf []byte
	pos int
}

func (s *loopSocket) Send(p []byte, _ time.Time) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}
func (s *loopSocket) Recv(p []byte, _ time.Time) (int, error) {
	n := copy(p, s.buf[s.pos:])
	s.pos += n
	return n, nil
}
func (s *loopSocket) RecvUntil(delims [][]byte, maxLen int, deadline time.Time) ([]byte, error) {
	return nil, os.ErrClosed
}
func (s *loopSocket) Sendfile(_ *os.File, offset, length int64, _ time.Time) (int64, error) {
	return 0, nil
}
func (s *loopSocket) CanSendfile() bool           { return false }
func (s *loopSocket) Flush(_ time.Time) error     { return nil }
func (s *loopSocket) Close() error                { return nil }

func TestEnvelopeRoundTripSmallPayload(t *testing.T) {
	sock := &loopSocket{}
	payload := []byte("hello")
	require.NoError(t, WriteEnvelope(sock, payload, time.Time{}))

	got, err := ReadEnvelope(sock, time.Time{})
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestEnvelopeRoundTripEmptyPayload(t *testing.T) {
	sock := &loopSocket{}
	require.NoError(t, WriteEnvelope(sock, nil, time.Time{}))

	got, err := ReadEnvelope(sock, time.Time{})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestEnvelopeUsesMinimalLengthPrefix(t *testing.T) {
	sock := &loopSocket{}
	require.NoError(t, WriteEnvelope(sock, []byte("x"), time.Time{}))
	require.Equal(t, byte(1), sock.buf[0]) // length-of-length == 1 for a tiny payload
}

func TestEnvelopeLargePayloadRoundTrip(t *testing.T) {
	sock := &loopSocket{}
	payload := make([]byte, 70000)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, WriteEnvelope(sock, payload, time.Time{}))

	got, err := ReadEnvelope(sock, time.Time{})
	require.NoError(t, err)
	require.Equal(t, payload, got)
}
