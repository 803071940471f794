// Package middleware implements the before/after middleware chain
// described in spec.md §4.6: ordered Before hooks that can short-circuit
// by ending the response, and After hooks that always run in reverse
// order for every middleware whose Before was entered, even on panic.
// Generalized from leo-pony-model-runner's pkg/middleware/cors.go, which
// only had room for net/http's single-pass Handler wrapping.
package middleware

import (
	"github.com/suilhq/suil/pkg/httpmsg"
)

// Context is the per-request state threaded through a Chain: the request
// and response being built, plus one typed slot per registered
// middleware so a middleware can stash state in Before and read it back
// in After without a shared map.
type Context struct {
	Request  *httpmsg.Request
	Response *httpmsg.Response

	slots []any
}

// Slot returns the state this middleware stashed at index i (its
// registration position in the chain), or nil if nothing was stored.
func (c *Context) Slot(i int) any {
	if i < 0 || i >= len(c.slots) {
		return nil
	}
	return c.slots[i]
}

// SetSlot stores v in this middleware's slot.
func (c *Context) SetSlot(i int, v any) {
	if i < 0 || i >= len(c.slots) {
		return
	}
	c.slots[i] = v
}

// Middleware is one link in a Chain. Before runs in declaration order;
// returning a non-nil error, or calling ctx.Response.End, stops the
// before-phase from entering any later middleware. After runs for every
// middleware whose Before was entered, in reverse declaration order,
// unconditionally — even if a later Before failed, panicked, or the
// handler itself panicked.
type Middleware interface {
	Before(ctx *Context) error
	After(ctx *Context)
}

// Chain is an ordered, fixed list of middlewares, built once at startup
// and reused across every request.
type Chain struct {
	middlewares []Middleware
}

// NewChain builds a chain from mw in the order they should run Before
// (and the reverse order they run After).
func NewChain(mw ...Middleware) *Chain {
	return &Chain{middlewares: mw}
}

// NewContext builds a Context with one slot reserved per middleware in c.
func (c *Chain) NewContext(req *httpmsg.Request, resp *httpmsg.Response) *Context {
	return &Context{Request: req, Response: resp, slots: make([]any, len(c.middlewares))}
}

// Dispatch runs the chain's Before hooks, then handler unless a Before
// already ended the response, then the chain's After hooks for every
// middleware that was entered — in reverse order — regardless of how the
// request ended. A panic during Before or handler is recovered at this
// boundary: an httpmsg.StatusError rewrites the response to its status,
// anything else rewrites it to 500, and after-hooks for already-entered
// middlewares still run before the (possibly re-wrapped) error is
// returned.
func (c *Chain) Dispatch(ctx *Context, handler func(*Context) error) (err error) {
	entered := 0

	defer func() {
		if r := recover(); r != nil {
			err = panicToError(r, ctx)
		}
		for i := entered - 1; i >= 0; i-- {
			c.middlewares[i].After(ctx)
		}
	}()

	for i, mw := range c.middlewares {
		entered = i + 1
		if berr := mw.Before(ctx); berr != nil {
			return berr
		}
		if ctx.Response.Ended() {
			return nil
		}
	}

	if err := handler(ctx); err != nil {
		return err
	}
	return nil
}

// panicToError converts a recovered panic value into an error, rewriting
// ctx.Response to the matching status for an httpmsg.StatusError and to
// 500 for anything else.
func panicToError(r any, ctx *Context) error {
	if se, ok := r.(httpmsg.StatusError); ok {
		ctx.Response.End(se.Status)
		return se
	}
	ctx.Response.End(500)
	if e, ok := r.(error); ok {
		return e
	}
	return httpmsg.StatusError{Status: 500, Message: "internal error"}
}
