package httpmsg

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMultipart wraps any multipart parse failure.
var ErrMultipart = errors.New("httpmsg: malformed multipart body")

// boundaryFromContentType extracts the boundary parameter from a
// "multipart/form-data; boundary=..." Content-Type value.
func boundaryFromContentType(ct string) (string, error) {
	parts := strings.Split(ct, ";")
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "boundary=") {
			b := strings.TrimPrefix(p, "boundary=")
			b = strings.Trim(b, `"`)
			if b == "" {
				return "", fmt.Errorf("%w: empty boundary", ErrMultipart)
			}
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: missing boundary parameter", ErrMultipart)
}

// parseMultipart is a hand-written boundary state machine operating
// directly on body (no copies for field/file payload views, slicing
// instead), per spec.md §4.7's "the parser works in-place on the already-
// received body buffer: it null-terminates and slices views rather than
// copying". Go slices of the same backing array give the same "view, not
// copy" property the original achieves with raw pointers.
func parseMultipart(body []byte, boundary string) (url.Values, map[string][]UploadedFile, error) {
	delim := []byte("--" + boundary)
	form := url.Values{}
	files := make(map[string][]UploadedFile)

	parts := splitParts(body, delim)
	for _, part := range parts {
		if len(part) == 0 {
			continue
		}
		headerEnd := bytes.Index(part, []byte("\r\n\r\n"))
		if headerEnd < 0 {
			return nil, nil, fmt.Errorf("%w: missing header/body separator", ErrMultipart)
		}
		headerBlock := part[:headerEnd]
		payload := part[headerEnd+4:]
		// Each part body is terminated by the preceding "\r\n" before the
		// next boundary delimiter; splitParts already stripped everything
		// from the delimiter onward, but the trailing CRLF of the part
		// itself remains and must be trimmed.
		payload = bytes.TrimSuffix(payload, []byte("\r\n"))

		name, filename, mime, err := parsePartHeaders(headerBlock)
		if err != nil {
			return nil, nil, err
		}
		if name == "" {
			continue
		}

		if filename != "" {
			files[name] = append(files[name], UploadedFile{
				Name:     name,
				Filename: filename,
				MIME:     mime,
				Data:     payload,
			})
		} else {
			form.Add(name, string(payload))
		}
	}

	return form, files, nil
}

// splitParts splits body on occurrences of delim, discarding the preamble
// before the first delimiter and the "--\r\n" epilogue after the final
// "delim--" terminator.
func splitParts(body []byte, delim []byte) [][]byte {
	segments := bytes.Split(body, delim)
	if len(segments) <= 1 {
		return nil
	}
	// segments[0] is the preamble; the last segment begins with "--\r\n"
	// (the closing delimiter) and is discarded.
	middle := segments[1 : len(segments)-1]
	out := make([][]byte, 0, len(middle))
	for _, seg := range middle {
		seg = bytes.TrimPrefix(seg, []byte("\r\n"))
		out = append(out, seg)
	}
	return out
}

// parsePartHeaders extracts name/filename/Content-Type from one part's
// Content-Disposition and Content-Type header lines.
func parsePartHeaders(block []byte) (name, filename, mime string, err error) {
	lines := strings.Split(string(block), "\r\n")
	for _, line := range lines {
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "content-disposition:"):
			name = extractDispositionParam(line, "name")
			filename = extractDispositionParam(line, "filename")
		case strings.HasPrefix(lower, "content-type:"):
			if i := strings.IndexByte(line, ':'); i >= 0 {
				mime = strings.TrimSpace(line[i+1:])
			}
		}
	}
	if name == "" {
		return "", "", "", fmt.Errorf("%w: part missing name", ErrMultipart)
	}
	return name, filename, mime, nil
}

func extractDispositionParam(line, key string) string {
	needle := key + `="`
	i := strings.Index(line, needle)
	if i < 0 {
		return ""
	}
	start := i + len(needle)
	end := strings.IndexByte(line[start:], '"')
	if end < 0 {
		return ""
	}
	return line[start : start+end]
}
