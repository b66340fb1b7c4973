// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package zabi

import (
	"encoding/binary"

	"github.com/semtoolchain/sem/zerr"
)

// ZCL1 constants: a 24-byte header, magic "ZCL1", version 1 (spec §3,
// §4.3, grounded on the original implementation's zcl1.c/.h).
const (
	zcl1HdrSize = 24
	zcl1Version = 1
)

var zcl1Magic = [4]byte{'Z', 'C', 'L', '1'}

// Header is a parsed ZCL1 frame header.
type Header struct {
	Version    uint16
	Op         uint16
	RID        uint32
	Status     uint32
	Reserved   uint32
	PayloadLen uint32
}

// ParseFrame validates buf as a ZCL1 frame: magic, version, reserved
// must be zero, and 24+payload_len must fit within buf. Returns the
// parsed header and the payload slice (a view into buf, not a copy).
func ParseFrame(buf []byte) (Header, []byte, error) {
	if len(buf) < zcl1HdrSize {
		return Header{}, nil, zerr.New(zerr.Invalid, "zcl1: frame shorter than header")
	}
	if [4]byte(buf[0:4]) != zcl1Magic {
		return Header{}, nil, zerr.New(zerr.Invalid, "zcl1: bad magic")
	}
	h := Header{
		Version:    binary.LittleEndian.Uint16(buf[4:6]),
		Op:         binary.LittleEndian.Uint16(buf[6:8]),
		RID:        binary.LittleEndian.Uint32(buf[8:12]),
		Status:     binary.LittleEndian.Uint32(buf[12:16]),
		Reserved:   binary.LittleEndian.Uint32(buf[16:20]),
		PayloadLen: binary.LittleEndian.Uint32(buf[20:24]),
	}
	if h.Version != zcl1Version {
		return Header{}, nil, zerr.New(zerr.Invalid, "zcl1: unsupported version")
	}
	if h.Reserved != 0 {
		return Header{}, nil, zerr.New(zerr.Invalid, "zcl1: reserved field must be zero")
	}
	if uint64(zcl1HdrSize)+uint64(h.PayloadLen) > uint64(len(buf)) {
		return Header{}, nil, zerr.New(zerr.Invalid, "zcl1: payload_len exceeds buffer")
	}
	return h, buf[zcl1HdrSize : zcl1HdrSize+h.PayloadLen], nil
}

// WriteFrame composes a ZCL1 frame into buf and returns its total
// length. buf must have capacity for 24+len(payload) bytes.
func WriteFrame(buf []byte, op uint16, rid, status uint32, payload []byte) (int, error) {
	need := zcl1HdrSize + len(payload)
	if len(buf) < need {
		return 0, zerr.New(zerr.Bounds, "zcl1: buffer too small for frame")
	}
	copy(buf[0:4], zcl1Magic[:])
	binary.LittleEndian.PutUint16(buf[4:6], zcl1Version)
	binary.LittleEndian.PutUint16(buf[6:8], op)
	binary.LittleEndian.PutUint32(buf[8:12], rid)
	binary.LittleEndian.PutUint32(buf[12:16], status)
	binary.LittleEndian.PutUint32(buf[16:20], 0)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(len(payload)))
	copy(buf[zcl1HdrSize:], payload)
	return need, nil
}

// AppendFrame is the allocating counterpart of WriteFrame, used by
// callers that don't pre-size a response buffer (e.g. the Go-side
// capability host, which doesn't share the original's fixed stack
// buffers).
func AppendFrame(op uint16, rid, status uint32, payload []byte) []byte {
	buf := make([]byte, zcl1HdrSize+len(payload))
	_, _ = WriteFrame(buf, op, rid, status, payload)
	return buf
}

// WriteErrorPayload packs three length-prefixed UTF-8 strings (trace
// id, message, detail) into the ZCL1 error payload shape.
func WriteErrorPayload(trace, msg, detail string) []byte {
	total := 4 + len(trace) + 4 + len(msg) + 4 + len(detail)
	out := make([]byte, total)
	off := 0
	for _, s := range []string{trace, msg, detail} {
		binary.LittleEndian.PutUint32(out[off:], uint32(len(s)))
		off += 4
		copy(out[off:], s)
		off += len(s)
	}
	return out
}
