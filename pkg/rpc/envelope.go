// Package rpc implements the length-prefixed wire envelope shared by both
// RPC variants described in spec.md §4.9: JSON-RPC 2.0 (pkg/rpc/jsonrpc)
// and the compact binary suilrpc (pkg/rpc/suilrpc). Grounded on
// original_source/suil/rpc/suilrpc.h's RpcTxRx framing and kept
// consistent with pkg/worker/broadcast.go's own length-prefixed pipe
// frames, so the two length-prefixing schemes in this module read as one
// house style.
package rpc

import (
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/suilhq/suil/pkg/netio"
)

// ErrEnvelopeTooLarge is returned when a length-of-length byte would
// require more than 8 bytes to represent the payload length.
var ErrEnvelopeTooLarge = errors.New("rpc: envelope length exceeds 8 bytes")

// maxLenBytes bounds the length-of-length byte per spec.md §4.9's wire
// format ("1 byte, value in 1..8").
const maxLenBytes = 8

// ReadEnvelope reads one framed message from sock: a 1-byte
// length-of-length (1..8), that many big-endian length bytes, then the
// payload itself.
func ReadEnvelope(sock netio.Socket, deadline time.Time) ([]byte, error) {
	var lenOfLen [1]byte
	if _, err := sock.Recv(lenOfLen[:], deadline); err != nil {
		return nil, err
	}
	n := int(lenOfLen[0])
	if n < 1 || n > maxLenBytes {
		return nil, ErrEnvelopeTooLarge
	}

	lenBuf := make([]byte, 8)
	if _, err := recvFull(sock, lenBuf[8-n:], deadline); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint64(lenBuf)

	payload := make([]byte, length)
	if _, err := recvFull(sock, payload, deadline); err != nil {
		return nil, err
	}
	return payload, nil
}

// WriteEnvelope writes payload to sock framed with the minimal
// length-of-length/length prefix that fits its size.
func WriteEnvelope(sock netio.Socket, payload []byte, deadline time.Time) error {
	length := uint64(len(payload))
	lenBytes := minimalBytes(length)

	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], length)

	frame := make([]byte, 0, 1+lenBytes+len(payload))
	frame = append(frame, byte(lenBytes))
	frame = append(frame, lenBuf[8-lenBytes:]...)
	frame = append(frame, payload...)

	_, err := sock.Send(frame, deadline)
	return err
}

func minimalBytes(n uint64) int {
	if n == 0 {
		return 1
	}
	bytes := 0
	for v := n; v > 0; v >>= 8 {
		bytes++
	}
	return bytes
}

func recvFull(sock netio.Socket, buf []byte, deadline time.Time) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := sock.Recv(buf[total:], deadline)
		total += n
		if err != nil {
			if err == io.EOF && total == len(buf) {
				return total, nil
			}
			return total, err
		}
		if n == 0 {
			return total, io.ErrUnexpectedEOF
		}
	}
	return total, nil
}
