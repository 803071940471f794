package worker

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBroadcastFrameRoundTrip(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	go func() {
		require.NoError(t, writeFrame(w, 7, []byte("payload")))
	}()

	tag, payload, err := readFrame(r)
	require.NoError(t, err)
	require.Equal(t, byte(7), tag)
	require.Equal(t, "payload", string(payload))
}

func TestBroadcastEmptyPayload(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	go func() {
		require.NoError(t, writeFrame(w, 1, nil))
	}()

	tag, payload, err := readFrame(r)
	require.NoError(t, err)
	require.Equal(t, byte(1), tag)
	require.Empty(t, payload)
}
