package suilrpc

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned when a buffer ends before a complete field
// has been read.
var ErrShortBuffer = errors.New("suilrpc: buffer too short")

// EncodeRequest serializes req as [id int32][method int32][len
// uint32][params], a fixed-width binary layout standing in for
// suilrpc.h's iod-generated struct packing.
func EncodeRequest(req Request) []byte {
	buf := make([]byte, 4+4+4+len(req.Params))
	binary.BigEndian.PutUint32(buf[0:4], uint32(int32(req.ID)))
	binary.BigEndian.PutUint32(buf[4:8], uint32(int32(req.Method)))
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(req.Params)))
	copy(buf[12:], req.Params)
	return buf
}

// DecodeRequest parses the layout EncodeRequest produces.
func DecodeRequest(buf []byte) (Request, error) {
	if len(buf) < 12 {
		return Request{}, ErrShortBuffer
	}
	id := int32(binary.BigEndian.Uint32(buf[0:4]))
	method := int32(binary.BigEndian.Uint32(buf[4:8]))
	paramsLen := binary.BigEndian.Uint32(buf[8:12])
	if uint32(len(buf)-12) < paramsLen {
		return Request{}, ErrShortBuffer
	}
	params := append([]byte(nil), buf[12:12+paramsLen]...)
	return Request{ID: int(id), Method: int(method), Params: params}, nil
}

// EncodeResponse serializes resp as [id int32][hasError
// byte][errcode int32][errmsglen uint32][errmsg][datalen uint32][data].
// hasError selects whether Error or Data is populated, enforcing the
// mutual-exclusion invariant at the wire level.
func EncodeResponse(resp Response) []byte {
	var errCode int32
	var errMsg []byte
	hasError := byte(0)
	if resp.Error != nil {
		hasError = 1
		errCode = int32(resp.Error.Code)
		errMsg = []byte(resp.Error.Message)
	}

	size := 4 + 1 + 4 + 4 + len(errMsg) + 4 + len(resp.Data)
	buf := make([]byte, size)
	off := 0
	binary.BigEndian.PutUint32(buf[off:], uint32(int32(resp.ID)))
	off += 4
	buf[off] = hasError
	off++
	binary.BigEndian.PutUint32(buf[off:], uint32(errCode))
	off += 4
	binary.BigEndian.PutUint32(buf[off:], uint32(len(errMsg)))
	off += 4
	copy(buf[off:], errMsg)
	off += len(errMsg)
	binary.BigEndian.PutUint32(buf[off:], uint32(len(resp.Data)))
	off += 4
	copy(buf[off:], resp.Data)
	return buf
}

// DecodeResponse parses the layout EncodeResponse produces.
func DecodeResponse(buf []byte) (Response, error) {
	if len(buf) < 13 {
		return Response{}, ErrShortBuffer
	}
	off := 0
	id := int32(binary.BigEndian.Uint32(buf[off:]))
	off += 4
	hasError := buf[off]
	off++
	errCode := int32(binary.BigEndian.Uint32(buf[off:]))
	off += 4
	msgLen := binary.BigEndian.Uint32(buf[off:])
	off += 4
	if uint32(len(buf)-off) < msgLen {
		return Response{}, ErrShortBuffer
	}
	errMsg := string(buf[off : off+int(msgLen)])
	off += int(msgLen)

	if len(buf)-off < 4 {
		return Response{}, ErrShortBuffer
	}
	dataLen := binary.BigEndian.Uint32(buf[off:])
	off += 4
	if uint32(len(buf)-off) < dataLen {
		return Response{}, ErrShortBuffer
	}
	data := append([]byte(nil), buf[off:off+int(dataLen)]...)

	resp := Response{ID: int(id)}
	if hasError == 1 {
		resp.Error = &RPCError{Code: int(errCode), Message: errMsg}
	} else {
		resp.Data = data
	}
	return resp, nil
}
