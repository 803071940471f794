package suilrpc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	req := Request{ID: 42, Method: 7, Params: []byte("params-payload")}
	buf := EncodeRequest(req)

	got, err := DecodeRequest(buf)
	require.NoError(t, err)
	require.Equal(t, req, got)
}

func TestDecodeRequestShortBuffer(t *testing.T) {
	_, err := DecodeRequest([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestResponseRoundTripSuccess(t *testing.T) {
	resp := Response{ID: 5, Data: []byte("result-bytes")}
	buf := EncodeResponse(resp)

	got, err := DecodeResponse(buf)
	require.NoError(t, err)
	require.Equal(t, resp, got)
}

func TestResponseRoundTripError(t *testing.T) {
	resp := Response{ID: 9, Error: &RPCError{Code: ErrAPI, Message: "boom"}}
	buf := EncodeResponse(resp)

	got, err := DecodeResponse(buf)
	require.NoError(t, err)
	require.Equal(t, resp.ID, got.ID)
	require.NotNil(t, got.Error)
	require.Equal(t, ErrAPI, got.Error.Code)
	require.Equal(t, "boom", got.Error.Message)
	require.Nil(t, got.Data)
}
