package httpmsg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMultipartFieldsAndFile(t *testing.T) {
	boundary := "XBOUNDARY"
	body := "--" + boundary + "\r\n" +
		"Content-Disposition: form-data; name=\"title\"\r\n\r\n" +
		"hello world\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Disposition: form-data; name=\"upload\"; filename=\"a.txt\"\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"file contents\r\n" +
		"--" + boundary + "--\r\n"

	form, files, err := parseMultipart([]byte(body), boundary)
	require.NoError(t, err)
	require.Equal(t, "hello world", form.Get("title"))
	require.Len(t, files["upload"], 1)
	require.Equal(t, "a.txt", files["upload"][0].Filename)
	require.Equal(t, "text/plain", files["upload"][0].MIME)
	require.Equal(t, "file contents", string(files["upload"][0].Data))
}

func TestBoundaryFromContentType(t *testing.T) {
	b, err := boundaryFromContentType(`multipart/form-data; boundary=XBOUNDARY`)
	require.NoError(t, err)
	require.Equal(t, "XBOUNDARY", b)
}

func TestBoundaryFromContentTypeMissing(t *testing.T) {
	_, err := boundaryFromContentType("multipart/form-data")
	require.ErrorIs(t, err, ErrMultipart)
}
