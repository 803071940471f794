package routing

import (
	stdpath "path"
	"strings"
)

// Method is an HTTP method bitmask, letting one rule answer several
// methods (the original's `get_methods() & (1<<method)` check).
type Method uint32

const (
	MethodGet Method = 1 << iota
	MethodPost
	MethodPut
	MethodDelete
	MethodPatch
	MethodHead
	MethodOptions
)

var methodNames = map[string]Method{
	"GET":     MethodGet,
	"POST":    MethodPost,
	"PUT":     MethodPut,
	"DELETE":  MethodDelete,
	"PATCH":   MethodPatch,
	"HEAD":    MethodHead,
	"OPTIONS": MethodOptions,
}

// ParseMethod maps an HTTP method name to its bitmask value, or 0 if
// unrecognized.
func ParseMethod(name string) Method {
	return methodNames[strings.ToUpper(name)]
}

// Handler is an opaque per-route payload whose concrete function
// signature is defined by whichever package wires up routes and invokes
// them. This package cannot define that signature itself (it would need
// to depend on the request/response types, which in turn depend on
// Params for route-parameter capture — a cycle), so Resolve hands the
// stored value back untyped and the caller type-asserts it to its own
// handler type (see pkg/server.RouteHandler).
type Handler any

// Rule is one registered route: the pattern it was compiled from, the set
// of methods it answers, and its handler.
type Rule struct {
	Pattern string
	Methods Method
	Handler Handler
}

// ErrNotFound is returned by Resolve when no rule matches the URL at all
// (trie miss), corresponding to the original's error::not_found() thrown
// from router_t::before when params.first == 0.
var ErrNotFound = routingError("no route matches")

// ErrMethodNotAllowed is returned when a rule matches the URL but not the
// request method, corresponding to router_t::handle's method-mask check.
var ErrMethodNotAllowed = routingError("method not allowed for matched route")

type routingError string

func (e routingError) Error() string { return string(e) }

// Router owns the trie and the rule table; NewRouter starts with an empty
// trie that accepts AddRoute calls, and Optimize compacts it for serving.
type Router struct {
	trie  *Trie
	rules []Rule // rules[0] is unused; indices start at 1, 0 means "no rule"
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{trie: NewTrie(), rules: []Rule{{}}}
}

// AddRoute registers pattern against methods and handler, returning the
// assigned rule index. If pattern ends in '/' and has more than one
// character, a second trie entry without the trailing slash is installed
// pointing at RuleSpecialRedirectSlash, so "/about" redirects to "/about/"
// — the "directory case" from router_t::internal_add_rule_object.
func (r *Router) AddRoute(pattern string, methods Method, handler Handler) uint {
	r.rules = append(r.rules, Rule{Pattern: pattern, Methods: methods, Handler: handler})
	idx := uint(len(r.rules) - 1)
	r.trie.Add(pattern, idx)

	if len(pattern) > 1 && pattern[len(pattern)-1] == '/' {
		r.trie.Add(pattern[:len(pattern)-1], RuleSpecialRedirectSlash)
	}
	return idx
}

// Optimize compresses the trie; call once after all routes are
// registered, before serving traffic.
func (r *Router) Optimize() {
	r.trie.Optimize()
}

// Resolution is the outcome of Resolve: either a matched rule with its
// captured params, or a redirect-to-trailing-slash instruction.
type Resolution struct {
	RuleIndex       uint
	Params          Params
	RedirectToSlash bool
	Rule            *Rule
}

// Resolve finds the rule matching path, validates it against method, and
// returns the resolution or an error (ErrNotFound / ErrMethodNotAllowed).
// A path containing a doubled slash is collapsed with path.Clean first,
// the same normalization a prior net/http-based ServeMux wrapper in this
// package applied before handing a request off for dispatch.
func (r *Router) Resolve(method, path string) (Resolution, error) {
	if strings.Contains(path, "//") {
		path = stdpath.Clean(path)
	}

	idx, params := r.trie.Find(path)

	if idx == RuleSpecialRedirectSlash {
		return Resolution{RedirectToSlash: true}, nil
	}
	if idx == 0 {
		return Resolution{}, ErrNotFound
	}
	if idx >= uint(len(r.rules)) {
		return Resolution{}, ErrNotFound
	}

	rule := &r.rules[idx]
	m := ParseMethod(method)
	if m == 0 || rule.Methods&m == 0 {
		return Resolution{}, ErrMethodNotAllowed
	}

	return Resolution{RuleIndex: idx, Params: params, Rule: rule}, nil
}
