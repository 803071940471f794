package httpmsg

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMultiRangeUnsupported is returned for any Range header naming more
// than one range: multipart/byteranges framing is explicitly unimplemented
// per spec.md §6 ("multiple ranges -> 406 Not Acceptable ... multipart/
// byteranges is not implemented"), matching the source's own inconsistent
// multi-range handling rather than attempting to "fix" it.
var ErrMultiRangeUnsupported = errors.New("httpmsg: multiple ranges not supported")

// ErrRangeNotSatisfiable is returned when the single requested range falls
// outside [0, total).
var ErrRangeNotSatisfiable = errors.New("httpmsg: range not satisfiable")

// ByteRange is a single resolved [Start,End) byte range within a
// total-length resource.
type ByteRange struct {
	Start int64
	End   int64 // exclusive
	Total int64
}

// ParseRange resolves a "Range: bytes=a-b" header against total, per
// spec.md §6: exactly one range -> 206 semantics, more than one -> 406,
// out of bounds -> 416.
func ParseRange(header string, total int64) (ByteRange, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return ByteRange{}, ErrRangeNotSatisfiable
	}
	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return ByteRange{}, ErrMultiRangeUnsupported
	}

	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return ByteRange{}, ErrRangeNotSatisfiable
	}
	startStr, endStr := spec[:dash], spec[dash+1:]

	var start, end int64
	var err error

	switch {
	case startStr == "" && endStr != "":
		// suffix range: last N bytes
		n, e := strconv.ParseInt(endStr, 10, 64)
		if e != nil || n <= 0 {
			return ByteRange{}, ErrRangeNotSatisfiable
		}
		start = total - n
		if start < 0 {
			start = 0
		}
		end = total - 1
	case startStr != "" && endStr == "":
		start, err = strconv.ParseInt(startStr, 10, 64)
		if err != nil {
			return ByteRange{}, ErrRangeNotSatisfiable
		}
		end = total - 1
	default:
		start, err = strconv.ParseInt(startStr, 10, 64)
		if err != nil {
			return ByteRange{}, ErrRangeNotSatisfiable
		}
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return ByteRange{}, ErrRangeNotSatisfiable
		}
	}

	if start < 0 || end < start || start >= total {
		return ByteRange{}, ErrRangeNotSatisfiable
	}
	if end >= total {
		end = total - 1
	}

	return ByteRange{Start: start, End: end + 1, Total: total}, nil
}

// ContentRange formats the Content-Range header value for r.
func (r ByteRange) ContentRange() string {
	return "bytes " + strconv.FormatInt(r.Start, 10) + "-" + strconv.FormatInt(r.End-1, 10) + "/" + strconv.FormatInt(r.Total, 10)
}

// Len returns the number of bytes in the range.
func (r ByteRange) Len() int64 {
	return r.End - r.Start
}
