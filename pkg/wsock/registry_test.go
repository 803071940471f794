package wsock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryAddGetRemove(t *testing.T) {
	reg := NewRegistry()
	c := &Conn{ID: "conn-1"}
	reg.Add(c)

	require.Equal(t, 1, reg.Len())
	require.Same(t, c, reg.Get("conn-1"))

	reg.Remove("conn-1")
	require.Equal(t, 0, reg.Len())
	require.Nil(t, reg.Get("conn-1"))
}

func TestRegistryEachVisitsAll(t *testing.T) {
	reg := NewRegistry()
	reg.Add(&Conn{ID: "a"})
	reg.Add(&Conn{ID: "b"})

	seen := map[string]bool{}
	reg.Each(func(c *Conn) { seen[c.ID] = true })

	require.True(t, seen["a"])
	require.True(t, seen["b"])
}
