// Package wsock implements RFC 6455 WebSocket server support: handshake,
// frame encode/decode, a per-API connection registry, and fan-out
// broadcast. Grounded on original_source/suil/http/wsock.cpp
// (WebSock::handshake/receive_frame/send/handle), realized with native
// frame handling rather than a third-party client — see DESIGN.md for why
// gorilla/websocket (available elsewhere in the corpus) is not used here.
package wsock

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"

	"github.com/suilhq/suil/pkg/httpmsg"
)

// magicGUID is RFC 6455's fixed handshake suffix.
const magicGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// ErrBadHandshake is returned when the request doesn't carry a valid
// upgrade request: missing/empty Sec-WebSocket-Key, or a
// Sec-WebSocket-Version other than "13".
var ErrBadHandshake = errors.New("wsock: invalid websocket handshake")

// Accept computes the Sec-WebSocket-Accept value for a client's
// Sec-WebSocket-Key, per RFC 6455 §1.3: base64(SHA1(key + magicGUID)).
func Accept(key string) string {
	sum := sha1.Sum([]byte(key + magicGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Handshake validates req as a version-13 WebSocket upgrade request and,
// on success, writes the 101 Switching Protocols headers onto resp and
// returns true. On failure it returns false with the reason; the only
// thing it writes then is a Sec-WebSocket-Version: 13 header when the
// client asked for another version.
func Handshake(req *httpmsg.Request, resp *httpmsg.Response) (bool, error) {
	key := req.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		return false, ErrBadHandshake
	}
	version := req.Header.Get("Sec-WebSocket-Version")
	if version != "13" {
		resp.Header.Set("Sec-WebSocket-Version", "13")
		return false, ErrBadHandshake
	}

	resp.Header.Set("Upgrade", "websocket")
	resp.Header.Set("Connection", "Upgrade")
	resp.Header.Set("Sec-WebSocket-Accept", Accept(key))
	resp.Status = 101
	return true, nil
}
