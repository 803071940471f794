package routing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrieLiteralMatch(t *testing.T) {
	tr := NewTrie()
	tr.Add("/hello", 1)
	tr.Add("/world", 2)

	idx, params := tr.Find("/hello")
	require.Equal(t, uint(1), idx)
	require.Empty(t, params)

	idx, _ = tr.Find("/world")
	require.Equal(t, uint(2), idx)

	idx, _ = tr.Find("/missing")
	require.Equal(t, uint(0), idx)
}

func TestTrieIntParam(t *testing.T) {
	tr := NewTrie()
	tr.Add("/users/<int>", 1)

	idx, params := tr.Find("/users/42")
	require.Equal(t, uint(1), idx)
	require.Len(t, params, 1)
	require.Equal(t, ParamInt, params[0].Type)
	require.Equal(t, int64(42), params[0].Int)
}

func TestTrieStringParamStopsAtSlash(t *testing.T) {
	tr := NewTrie()
	tr.Add("/users/<str>/posts", 1)

	idx, params := tr.Find("/users/alice/posts")
	require.Equal(t, uint(1), idx)
	require.Equal(t, "alice", params[0].String)

	idx, _ = tr.Find("/users/alice/bob/posts")
	require.Equal(t, uint(0), idx)
}

func TestTriePathParamConsumesRemainder(t *testing.T) {
	tr := NewTrie()
	tr.Add("/static/<path>", 1)

	idx, params := tr.Find("/static/css/app.css")
	require.Equal(t, uint(1), idx)
	require.Equal(t, "css/app.css", params[0].String)
}

func TestTrieTieBreakLowestRuleIndexWins(t *testing.T) {
	tr := NewTrie()
	// Two branches can both match "/items/5": a literal "5" route and an
	// <int> route. The literal route is registered with a higher rule
	// index; the lower-indexed match must win regardless of registration
	// order, per trie_t::find's update_found semantics.
	tr.Add("/items/<int>", 1)
	tr.Add("/items/5", 2)

	idx, _ := tr.Find("/items/5")
	require.Equal(t, uint(1), idx)
}

func TestTrieOptimizeDoesNotChangeMatchResults(t *testing.T) {
	tr := NewTrie()
	tr.Add("/api/v1/users", 1)
	tr.Add("/api/v1/posts", 2)
	tr.Add("/api/v2/users", 3)

	before := map[string]uint{}
	for _, p := range []string{"/api/v1/users", "/api/v1/posts", "/api/v2/users"} {
		idx, _ := tr.Find(p)
		before[p] = idx
	}

	tr.Optimize()

	for p, want := range before {
		idx, _ := tr.Find(p)
		require.Equal(t, want, idx, "path %s", p)
	}
}

func TestTrieDuplicateRoutePanics(t *testing.T) {
	tr := NewTrie()
	tr.Add("/dup", 1)
	require.Panics(t, func() {
		tr.Add("/dup", 2)
	})
}

func TestRouterDirectorySlashRedirect(t *testing.T) {
	r := NewRouter()
	r.AddRoute("/about/", MethodGet, func(Params) error { return nil })

	res, err := r.Resolve("GET", "/about")
	require.NoError(t, err)
	require.True(t, res.RedirectToSlash)
}

func TestRouterMethodNotAllowed(t *testing.T) {
	r := NewRouter()
	r.AddRoute("/x", MethodGet, func(Params) error { return nil })

	_, err := r.Resolve("POST", "/x")
	require.ErrorIs(t, err, ErrMethodNotAllowed)
}

func TestRouterNotFound(t *testing.T) {
	r := NewRouter()
	r.AddRoute("/x", MethodGet, func(Params) error { return nil })

	_, err := r.Resolve("GET", "/y")
	require.ErrorIs(t, err, ErrNotFound)
}
