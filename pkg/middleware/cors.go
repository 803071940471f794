package middleware

import (
	"os"
	"strings"
)

// CORS implements Middleware, generalizing leo-pony-model-runner's
// CorsMiddleware(allowedOrigins, next http.Handler) into the chain's
// explicit Before/After shape. Before sets the Access-Control-Allow-*
// headers and, for a valid-origin OPTIONS preflight, ends the response
// with 204 directly (the short-circuit case); After is a no-op since CORS
// has no cleanup to do once the response is underway.
type CORS struct {
	allowAll   bool
	allowedSet map[string]struct{}
	disabled   bool
}

// NewCORS builds a CORS middleware from allowedOrigins. An empty slice
// falls back to the SUIL_ORIGINS environment variable via originsFromEnv;
// a nil result from that fallback disables CORS entirely (Before becomes
// a pass-through), an explicit "no origins configured" outcome rather
// than an error.
func NewCORS(allowedOrigins []string) *CORS {
	if len(allowedOrigins) == 0 {
		allowedOrigins = originsFromEnv()
	}
	if allowedOrigins == nil {
		return &CORS{disabled: true}
	}

	c := &CORS{allowedSet: make(map[string]struct{}, len(allowedOrigins))}
	if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
		c.allowAll = true
	}
	for _, o := range allowedOrigins {
		c.allowedSet[o] = struct{}{}
	}
	return c
}

// Before sets CORS response headers for an allowed origin and, for a
// valid OPTIONS preflight, ends the response with 204 No Content.
func (c *CORS) Before(ctx *Context) error {
	if c.disabled {
		return nil
	}

	origin := ctx.Request.Header.Get("Origin")
	allowed := origin != "" && (c.allowAll || originAllowed(origin, c.allowedSet))
	if allowed {
		ctx.Response.Header.Set("Access-Control-Allow-Origin", origin)
	}

	if ctx.Request.Method == "OPTIONS" {
		if !allowed {
			// No valid origin: let routing produce the ordinary 404/405.
			return nil
		}
		ctx.Response.Header.Set("Access-Control-Allow-Credentials", "true")
		ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, DELETE")
		ctx.Response.Header.Set("Access-Control-Allow-Headers", "*")
		ctx.Response.End(204)
	}
	return nil
}

// After is a no-op: CORS has no per-request state to release.
func (c *CORS) After(ctx *Context) {}

func originAllowed(origin string, allowedSet map[string]struct{}) bool {
	_, ok := allowedSet[origin]
	return ok
}

// originsFromEnv retrieves allowed origins from the SUIL_ORIGINS
// environment variable. If unset, CORS is disabled (nil).
func originsFromEnv() (origins []string) {
	raw := os.Getenv("SUIL_ORIGINS")
	if raw == "" {
		return nil
	}
	for _, o := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return nil
	}
	return origins
}

var _ Middleware = (*CORS)(nil)
