package netio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTCPSocketRoundTrip(t *testing.T) {
	srv, err := ListenTCP("127.0.0.1:0", 128)
	require.NoError(t, err)
	defer srv.Close()

	addr := srv.Addr().String()
	done := make(chan struct{})

	go func() {
		defer close(done)
		conn, err := srv.Accept(time.Now().Add(2 * time.Second))
		require.NoError(t, err)
		defer conn.Close()

		buf := make([]byte, 5)
		n, err := conn.Recv(buf, time.Now().Add(2*time.Second))
		require.NoError(t, err)
		require.Equal(t, "hello", string(buf[:n]))

		_, err = conn.Send([]byte("world"), time.Now().Add(2*time.Second))
		require.NoError(t, err)
	}()

	client, err := DialTCP(addr, time.Now().Add(2*time.Second))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Send([]byte("hello"), time.Now().Add(2*time.Second))
	require.NoError(t, err)

	buf := make([]byte, 5)
	n, err := client.Recv(buf, time.Now().Add(2*time.Second))
	require.NoError(t, err)
	require.Equal(t, "world", string(buf[:n]))

	<-done
}

func TestTCPSocketRecvUntil(t *testing.T) {
	srv, err := ListenTCP("127.0.0.1:0", 128)
	require.NoError(t, err)
	defer srv.Close()

	addr := srv.Addr().String()
	done := make(chan struct{})

	go func() {
		defer close(done)
		conn, err := srv.Accept(time.Now().Add(2 * time.Second))
		require.NoError(t, err)
		defer conn.Close()

		line, err := conn.RecvUntil([][]byte{[]byte("\r\n")}, 1024, time.Now().Add(2*time.Second))
		require.NoError(t, err)
		require.Equal(t, "GET / HTTP/1.1\r\n", string(line))
	}()

	client, err := DialTCP(addr, time.Now().Add(2*time.Second))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Send([]byte("GET / HTTP/1.1\r\n"), time.Now().Add(2*time.Second))
	require.NoError(t, err)

	<-done
}

func TestTLSSocketCannotSendfile(t *testing.T) {
	var s TLSSocket
	require.False(t, s.CanSendfile())
	_, err := s.Sendfile(nil, 0, 0, time.Time{})
	require.ErrorIs(t, err, ErrSendfileUnsupported)
}
