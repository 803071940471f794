package httpmsg

import (
	"fmt"
	"strings"
	"time"
)

// Cookie models one Set-Cookie/Cookie entry, including the Max-Age/Expires
// coexistence rule from spec.md §4.7 ("Max-Age and Expires coexist;
// expires=-1 with a set value means delete").
type Cookie struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	MaxAge   int // 0 means unset; negative means delete
	Expires  time.Time
	Secure   bool
	HTTPOnly bool
	SameSite string
}

// Delete marks the cookie for immediate client-side removal: Max-Age=-1
// combined with an Expires time in the past, the pairing spec.md §4.7
// calls out explicitly.
func (c *Cookie) Delete() {
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
}

// String serializes the cookie into Set-Cookie wire format.
func (c *Cookie) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s=%s", c.Name, c.Value)
	if c.Path != "" {
		fmt.Fprintf(&b, "; Path=%s", c.Path)
	}
	if c.Domain != "" {
		fmt.Fprintf(&b, "; Domain=%s", c.Domain)
	}
	if c.MaxAge != 0 {
		fmt.Fprintf(&b, "; Max-Age=%d", c.MaxAge)
	}
	if !c.Expires.IsZero() {
		fmt.Fprintf(&b, "; Expires=%s", c.Expires.UTC().Format(time.RFC1123))
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	if c.SameSite != "" {
		fmt.Fprintf(&b, "; SameSite=%s", c.SameSite)
	}
	return b.String()
}

// parseCookieHeader splits a request's "Cookie: a=1; b=2" header into
// individual name/value pairs.
func parseCookieHeader(raw string) []*Cookie {
	if raw == "" {
		return nil
	}
	var out []*Cookie
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			continue
		}
		out = append(out, &Cookie{Name: part[:eq], Value: part[eq+1:]})
	}
	return out
}
