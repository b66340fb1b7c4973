// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package zabi

import (
	"encoding/binary"

	"github.com/semtoolchain/sem/zerr"
)

// Cap flag bits (spec §4.4, zABI 2.5 aligned).
const (
	CapCanOpen uint32 = 1 << iota
	CapPure
	CapMayBlock
)

// Cap describes one entry in the host's configured capability list.
type Cap struct {
	Kind  string
	Name  string
	Flags uint32
	Meta  []byte
}

// zi_ctl op codes recognized by the capability host.
const (
	CtlOpCapsList  uint16 = 1
	CtlOpArgvCount uint16 = 1000
	CtlOpArgvGet   uint16 = 1001
	CtlOpEnvCount  uint16 = 1002
	CtlOpEnvGet    uint16 = 1003
)

// EnvKV is one key=value environment entry.
type EnvKV struct{ Key, Val string }

// HostConfig configures a CapHost: the static capability list plus
// optional argv/env snapshots, each independently enabled.
type HostConfig struct {
	Caps        []Cap
	ArgvEnabled bool
	Argv        []string
	EnvEnabled  bool
	Env         []EnvKV
}

// CapHost is the stateless zi_ctl dispatcher over a configured
// capability list and optional argv/env snapshots (spec §4.4, grounded
// on the original implementation's sem_host.c).
type CapHost struct {
	cfg HostConfig
}

// NewCapHost constructs a CapHost from cfg.
func NewCapHost(cfg HostConfig) *CapHost { return &CapHost{cfg: cfg} }

// Dispatch parses req as a ZCL1 frame, routes it by op, and returns the
// response frame bytes, or a transport-level *zerr.Error (no
// response frame is produced in that case — distinct from an
// application-level error response frame, which Dispatch still returns
// as response bytes with a nil error).
func (h *CapHost) Dispatch(req []byte) ([]byte, error) {
	rh, payload, err := ParseFrame(req)
	if err != nil {
		return nil, zerr.New(zerr.Invalid, "zi_ctl: malformed request frame")
	}
	if rh.Status != 0 {
		return nil, zerr.New(zerr.Invalid, "zi_ctl: request status must be zero")
	}

	switch rh.Op {
	case CtlOpCapsList:
		return h.dispatchCapsList(rh, payload), nil
	case CtlOpArgvCount:
		return h.dispatchArgvCount(rh, payload), nil
	case CtlOpArgvGet:
		return h.dispatchArgvGet(rh, payload), nil
	case CtlOpEnvCount:
		return h.dispatchEnvCount(rh, payload), nil
	case CtlOpEnvGet:
		return h.dispatchEnvGet(rh, payload), nil
	default:
		return h.errFrame(rh, "sem.zi_ctl.nosys", "unsupported zi_ctl op", ""), nil
	}
}

func (h *CapHost) errFrame(rh Header, trace, msg, detail string) []byte {
	return AppendFrame(rh.Op, rh.RID, 0, WriteErrorPayload(trace, msg, detail))
}

func (h *CapHost) okFrame(rh Header, payload []byte) []byte {
	return AppendFrame(rh.Op, rh.RID, 1, payload)
}

func (h *CapHost) dispatchCapsList(rh Header, payload []byte) []byte {
	if len(payload) != 0 {
		return h.errFrame(rh, "sem.zi_ctl.invalid", "CAPS_LIST payload must be empty", "")
	}
	out := make([]byte, 0, 8)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], 1)
	out = append(out, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], uint32(len(h.cfg.Caps)))
	out = append(out, u32[:]...)
	for _, c := range h.cfg.Caps {
		out = appendU32Str(out, c.Kind)
		out = appendU32Str(out, c.Name)
		binary.LittleEndian.PutUint32(u32[:], c.Flags)
		out = append(out, u32[:]...)
		binary.LittleEndian.PutUint32(u32[:], uint32(len(c.Meta)))
		out = append(out, u32[:]...)
		out = append(out, c.Meta...)
	}
	return h.okFrame(rh, out)
}

func appendU32Str(out []byte, s string) []byte {
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(s)))
	out = append(out, u32[:]...)
	return append(out, s...)
}

func (h *CapHost) dispatchArgvCount(rh Header, payload []byte) []byte {
	if !h.cfg.ArgvEnabled {
		return h.errFrame(rh, "sem.zi_ctl.denied", "argv not enabled", "")
	}
	if len(payload) != 0 {
		return h.errFrame(rh, "sem.zi_ctl.invalid", "ARGV_COUNT payload must be empty", "")
	}
	var out [4]byte
	binary.LittleEndian.PutUint32(out[:], uint32(len(h.cfg.Argv)))
	return h.okFrame(rh, out[:])
}

func (h *CapHost) dispatchArgvGet(rh Header, payload []byte) []byte {
	if !h.cfg.ArgvEnabled {
		return h.errFrame(rh, "sem.zi_ctl.denied", "argv not enabled", "")
	}
	if len(payload) != 4 {
		return h.errFrame(rh, "sem.zi_ctl.invalid", "ARGV_GET payload must be u32 index", "")
	}
	index := binary.LittleEndian.Uint32(payload)
	if int(index) >= len(h.cfg.Argv) {
		return h.errFrame(rh, "sem.zi_ctl.bounds", "ARGV index out of range", "")
	}
	out := appendU32Str(nil, h.cfg.Argv[index])
	return h.okFrame(rh, out)
}

func (h *CapHost) dispatchEnvCount(rh Header, payload []byte) []byte {
	if !h.cfg.EnvEnabled {
		return h.errFrame(rh, "sem.zi_ctl.denied", "env not enabled", "")
	}
	if len(payload) != 0 {
		return h.errFrame(rh, "sem.zi_ctl.invalid", "ENV_COUNT payload must be empty", "")
	}
	var out [4]byte
	binary.LittleEndian.PutUint32(out[:], uint32(len(h.cfg.Env)))
	return h.okFrame(rh, out[:])
}

func (h *CapHost) dispatchEnvGet(rh Header, payload []byte) []byte {
	if !h.cfg.EnvEnabled {
		return h.errFrame(rh, "sem.zi_ctl.denied", "env not enabled", "")
	}
	if len(payload) != 4 {
		return h.errFrame(rh, "sem.zi_ctl.invalid", "ENV_GET payload must be u32 index", "")
	}
	index := binary.LittleEndian.Uint32(payload)
	if int(index) >= len(h.cfg.Env) {
		return h.errFrame(rh, "sem.zi_ctl.bounds", "ENV index out of range", "")
	}
	kv := h.cfg.Env[index]
	out := appendU32Str(nil, kv.Key)
	out = appendU32Str(out, kv.Val)
	return h.okFrame(rh, out)
}

// BuildArgvBlob packs argv into the "argv blob" shape from spec §4.6:
// u32 version=1, u32 argc, [u32 len, bytes]×argc.
func BuildArgvBlob(argv []string) []byte {
	out := make([]byte, 0, 8)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], 1)
	out = append(out, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], uint32(len(argv)))
	out = append(out, u32[:]...)
	for _, a := range argv {
		out = appendU32Str(out, a)
	}
	return out
}

// BuildEnvBlob packs env into the "env blob" shape from spec §4.6:
// u32 version=1, u32 envc, [u32 entry_len, key '=' val]×envc.
func BuildEnvBlob(env []EnvKV) []byte {
	out := make([]byte, 0, 8)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], 1)
	out = append(out, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], uint32(len(env)))
	out = append(out, u32[:]...)
	for _, kv := range env {
		entry := kv.Key + "=" + kv.Val
		out = appendU32Str(out, entry)
	}
	return out
}
