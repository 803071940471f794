package middleware

import (
	"strings"

	"github.com/suilhq/suil/pkg/logging"
)

// AccessLog is a Middleware that writes one log line per finished request.
type AccessLog struct {
	log logging.Logger
}

// NewAccessLog builds an AccessLog middleware writing through log.
func NewAccessLog(log logging.Logger) *AccessLog {
	return &AccessLog{log: log}
}

// Before is a no-op: AccessLog only has something to say once the
// response status is known.
func (a *AccessLog) Before(ctx *Context) error { return nil }

// After logs the method, escaped path, and final status of the request
// ctx just finished.
func (a *AccessLog) After(ctx *Context) {
	a.log.Infof("%s %s -> %d", ctx.Request.Method, escapePathForLog(ctx.Request.URL.Path), ctx.Response.Status)
}

var _ Middleware = (*AccessLog)(nil)

// maxLoggedPathLen bounds how much of a request path lands in one log
// line; a client controls this string, so an unbounded path could blow up
// log storage or wrap a terminal many times over.
const maxLoggedPathLen = 256

// pathEscapes are the byte substitutions applied before a request path is
// interpolated into a log line: a client-supplied path must not be able
// to inject a newline (forging a second log line) or a raw control byte
// (corrupting a terminal) into otherwise plain-text output.
var pathEscapes = map[byte]string{
	'\n': `\n`,
	'\r': `\r`,
	'\t': `\t`,
	'\\': `\\`,
}

// escapePathForLog renders path safe to splice into a single log line.
// Request paths are expected to be short and mostly ASCII, so this works
// byte-by-byte rather than decoding runes: any byte without an explicit
// escape that falls outside printable ASCII is replaced with '?' rather
// than risk splitting a multi-byte UTF-8 sequence across the truncation
// boundary.
func escapePathForLog(path string) string {
	if path == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(path))
	for i := 0; i < len(path) && b.Len() < maxLoggedPathLen; i++ {
		c := path[i]
		if esc, ok := pathEscapes[c]; ok {
			b.WriteString(esc)
			continue
		}
		if c < 0x20 || c >= 0x7f {
			b.WriteByte('?')
			continue
		}
		b.WriteByte(c)
	}

	if b.Len() >= maxLoggedPathLen {
		return b.String() + "...[truncated]"
	}
	return b.String()
}
