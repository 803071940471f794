package suilrpc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatcherMetaHandshake(t *testing.T) {
	d := NewDispatcher("1.0.0")
	id := d.Register("echo", func(p []byte) ([]byte, error) { return p, nil })
	require.Equal(t, 1, id)

	resp := d.Dispatch(Request{ID: 1, Method: MetaMethodID})
	require.Nil(t, resp.Error)
	require.NotEmpty(t, resp.Data)
}

func TestDispatcherRegisterAssignsDenseIDs(t *testing.T) {
	d := NewDispatcher("1.0.0")
	a := d.Register("a", func(p []byte) ([]byte, error) { return nil, nil })
	b := d.Register("b", func(p []byte) ([]byte, error) { return nil, nil })
	require.Equal(t, 1, a)
	require.Equal(t, 2, b)
}

func TestDispatcherDispatchEchoes(t *testing.T) {
	d := NewDispatcher("1.0.0")
	id := d.Register("echo", func(p []byte) ([]byte, error) { return p, nil })

	resp := d.Dispatch(Request{ID: 10, Method: id, Params: []byte("hi")})
	require.Nil(t, resp.Error)
	require.Equal(t, "hi", string(resp.Data))
}

func TestDispatcherMethodNotFound(t *testing.T) {
	d := NewDispatcher("1.0.0")
	resp := d.Dispatch(Request{ID: 1, Method: 999})
	require.NotNil(t, resp.Error)
	require.Equal(t, ErrMethodNotFound, resp.Error.Code)
}

func TestRegisterExtensionRejectsNonNegativeIDs(t *testing.T) {
	d := NewDispatcher("1.0.0")
	err := d.RegisterExtension(0, "meta-clash", func(p []byte) ([]byte, error) { return nil, nil })
	require.ErrorIs(t, err, ErrExtensionReserved)

	err = d.RegisterExtension(-1, "system-extension", func(p []byte) ([]byte, error) { return nil, nil })
	require.NoError(t, err)
}
