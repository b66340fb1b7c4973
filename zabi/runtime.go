// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package zabi

import (
	"encoding/binary"
	"io"

	"github.com/semtoolchain/sem/log"
	"github.com/semtoolchain/sem/telemetry"
	"github.com/semtoolchain/sem/zerr"
)

const abiVersion uint32 = 0x00020005 // zABI 2.5, matching the capability host's op-code generation

// RuntimeConfig configures a Runtime: arena sizing, the capability
// list, optional argv/env, and the sandbox root for file/fs.
type RuntimeConfig struct {
	ArenaCap     uint32
	ArenaBase    uint64
	HandleCap    uint32
	Caps         []Cap
	Argv         []string
	Env          []EnvKV
	FSRoot       string
	// RequireSignedManifest gates the optional PKCS#7 manifest check
	// (zabi.VerifyManifest) before the fs sandbox root is trusted; off
	// by default, leaving §4.5's base file/fs semantics unchanged.
	RequireSignedManifest bool
	SignedManifest         []byte
	Stdin        io.Reader
	Stdout       io.Writer
	Stderr       io.Writer
	ArgvEnabled  bool
	EnvEnabled   bool
	TelemetryLog *log.Helper
	// TelemetrySink additionally mirrors every zi_telemetry call as a
	// JSONL line (spec §4.6); nil means telemetry only reaches the
	// debug log.
	TelemetrySink *telemetry.Sink
}

// stdioHandle adapts an io.Reader/io.Writer pair to HandleOps for the
// reserved stdio slots.
type stdioHandle struct {
	r io.Reader
	w io.Writer
}

func (s *stdioHandle) Read(dst []byte) (int, error) {
	if s.r == nil {
		return 0, zerr.New(zerr.Denied, "stdio: not readable")
	}
	n, err := s.r.Read(dst)
	if err != nil && err != io.EOF {
		return n, zerr.Newf(zerr.IO, "stdio read: %v", err)
	}
	return n, nil
}

func (s *stdioHandle) Write(src []byte) (int, error) {
	if s.w == nil {
		return 0, zerr.New(zerr.Denied, "stdio: not writable")
	}
	n, err := s.w.Write(src)
	if err != nil {
		return n, zerr.Newf(zerr.IO, "stdio write: %v", err)
	}
	return n, nil
}

func (s *stdioHandle) End() error { return nil }

// Runtime binds the arena, handle table, capability host, stdio and
// file/fs capability into the hosted zABI call surface a SIR
// interpreter's call_extern dispatch table targets (spec §4.6).
type Runtime struct {
	arena    *Arena
	handle   *HandleTable
	caps     *CapHost
	fs       *FSCap
	cfg      RuntimeConfig
	log      *log.Helper
	dispatch func(req []byte) ([]byte, error)
}

// NewRuntime constructs and wires a Runtime from cfg, installing the
// stdio handles and opening the file/fs sandbox root if configured.
func NewRuntime(cfg RuntimeConfig) (*Runtime, error) {
	if cfg.ArenaCap == 0 {
		cfg.ArenaCap = 1 << 20
	}
	if cfg.ArenaBase == 0 {
		cfg.ArenaBase = 0x1000_0000
	}
	if cfg.HandleCap == 0 {
		cfg.HandleCap = 64
	}

	arena, err := NewArena(cfg.ArenaCap, cfg.ArenaBase)
	if err != nil {
		return nil, err
	}
	handles, err := NewHandleTable(cfg.HandleCap)
	if err != nil {
		return nil, err
	}
	handles.Install(HandleStdin, &stdioHandle{r: cfg.Stdin}, HFlagReadable)
	handles.Install(HandleStdout, &stdioHandle{w: cfg.Stdout}, HFlagWritable)
	handles.Install(HandleStderr, &stdioHandle{w: cfg.Stderr}, HFlagWritable)

	if cfg.RequireSignedManifest {
		if err := VerifyManifest(cfg.SignedManifest); err != nil {
			return nil, err
		}
	}
	fs, err := NewFSCap(cfg.FSRoot)
	if err != nil {
		return nil, err
	}

	host := NewCapHost(HostConfig{
		Caps: cfg.Caps, ArgvEnabled: cfg.ArgvEnabled, Argv: cfg.Argv,
		EnvEnabled: cfg.EnvEnabled, Env: cfg.Env,
	})

	rt := &Runtime{arena: arena, handle: handles, caps: host, fs: fs, cfg: cfg, log: cfg.TelemetryLog}
	rt.dispatch = host.Dispatch
	return rt, nil
}

// SetDispatch replaces the zi_ctl dispatch function Ctl calls, letting a
// caller interpose request/response recording or replay (the sem CLI's
// --tape-out/--tape-in) around the real capability host without zabi or
// sem2sir needing to know tape mode is active.
func (rt *Runtime) SetDispatch(fn func(req []byte) ([]byte, error)) { rt.dispatch = fn }

// CapsDispatch returns the current zi_ctl dispatch function, so a
// caller wrapping it with SetDispatch (tape recording) can still chain
// through to whatever was installed before — the real capability host
// on a fresh Runtime, or an outer tape wrapper if called again.
func (rt *Runtime) CapsDispatch() func(req []byte) ([]byte, error) { return rt.dispatch }

// Dispose tears down the runtime: flushes stdio, closes remaining
// non-stdio handles, frees the arena, closes the fs sandbox root.
func (rt *Runtime) Dispose() {
	rt.handle.Dispose()
	rt.arena.Dispose()
	rt.fs.Close()
}

// ABIVersion implements the abi_version() zABI call.
func (rt *Runtime) ABIVersion() uint32 { return abiVersion }

// Ctl implements the ctl() zABI call: maps both buffers against the
// arena, routes the request to the capability host, copies the response
// into resp_ptr.
func (rt *Runtime) Ctl(reqPtr Ptr, reqLen uint32, respPtr Ptr, respCap uint32) (int32, error) {
	req, err := rt.arena.MapRO(reqPtr, reqLen)
	if err != nil {
		return 0, err
	}
	resp, err := rt.dispatch(req)
	if err != nil {
		return 0, err
	}
	if uint32(len(resp)) > respCap {
		return 0, zerr.New(zerr.Bounds, "ctl: response exceeds resp_cap")
	}
	dst, err := rt.arena.MapRW(respPtr, uint32(len(resp)))
	if err != nil {
		return 0, err
	}
	n := copy(dst, resp)
	return int32(n), nil
}

// Read implements the read() zABI call.
func (rt *Runtime) Read(h Handle, dstPtr Ptr, cap uint32) (int32, error) {
	ops, flags, ok := rt.handle.Lookup(h)
	if !ok {
		return 0, zerr.New(zerr.Closed, "read: handle not open")
	}
	if flags&HFlagReadable == 0 {
		return 0, zerr.New(zerr.Denied, "read: handle not readable")
	}
	dst, err := rt.arena.MapRW(dstPtr, cap)
	if err != nil {
		return 0, err
	}
	n, err := ops.Read(dst)
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}

// Write implements the write() zABI call.
func (rt *Runtime) Write(h Handle, srcPtr Ptr, length uint32) (int32, error) {
	ops, flags, ok := rt.handle.Lookup(h)
	if !ok {
		return 0, zerr.New(zerr.Closed, "write: handle not open")
	}
	if flags&HFlagWritable == 0 {
		return 0, zerr.New(zerr.Denied, "write: handle not writable")
	}
	src, err := rt.arena.MapRO(srcPtr, length)
	if err != nil {
		return 0, err
	}
	n, err := ops.Write(src)
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}

// End implements the end() zABI call.
func (rt *Runtime) End(h Handle) error {
	ops, _, ok := rt.handle.Lookup(h)
	if !ok {
		return zerr.New(zerr.Closed, "end: handle not open")
	}
	return ops.End()
}

// Alloc implements the alloc() zABI call, with default alignment 16.
func (rt *Runtime) Alloc(size uint32) Ptr { return rt.arena.Alloc(size, 16) }

// Free implements the free() zABI call.
func (rt *Runtime) Free(ptr Ptr) error { return rt.arena.Free(ptr) }

// MapRO exposes the arena's read-only view for the interpreter's
// load-family opcodes, which need to read guest memory directly rather
// than through a zABI call.
func (rt *Runtime) MapRO(ptr Ptr, length uint32) ([]byte, error) { return rt.arena.MapRO(ptr, length) }

// MapRW exposes the arena's mutable view for the interpreter's
// store/alloca-family opcodes.
func (rt *Runtime) MapRW(ptr Ptr, length uint32) ([]byte, error) { return rt.arena.MapRW(ptr, length) }

// Telemetry implements the telemetry() zABI call: a best-effort
// diagnostic line, format not part of the stable contract (spec §9
// open question 2).
func (rt *Runtime) Telemetry(topicPtr Ptr, topicLen uint32, msgPtr Ptr, msgLen uint32) {
	topic, err := rt.arena.MapRO(topicPtr, topicLen)
	if err != nil {
		return
	}
	msg, err := rt.arena.MapRO(msgPtr, msgLen)
	if err != nil {
		return
	}
	rt.log.Debugf("zi_telemetry: %s: %s", topic, msg)
	rt.cfg.TelemetrySink.Emit(string(topic), string(msg))
}

// CapCount implements cap_count().
func (rt *Runtime) CapCount() uint32 { return uint32(len(rt.cfg.Caps)) }

// CapGetSize implements cap_get_size(index): the byte size of the
// caps-list entry for the capability at index.
func (rt *Runtime) CapGetSize(index uint32) (uint32, error) {
	if int(index) >= len(rt.cfg.Caps) {
		return 0, zerr.New(zerr.Bounds, "cap_get_size: index out of range")
	}
	c := rt.cfg.Caps[index]
	return uint32(4 + len(c.Kind) + 4 + len(c.Name) + 4 + 4 + len(c.Meta)), nil
}

// CapGet implements cap_get(index, out_ptr, out_cap): writes the
// caps-list encoding of the capability at index into the guest buffer.
func (rt *Runtime) CapGet(index uint32, outPtr Ptr, outCap uint32) (uint32, error) {
	size, err := rt.CapGetSize(index)
	if err != nil {
		return 0, err
	}
	if size > outCap {
		return 0, zerr.New(zerr.Bounds, "cap_get: out_cap too small")
	}
	c := rt.cfg.Caps[index]
	enc := appendU32Str(nil, c.Kind)
	enc = appendU32Str(enc, c.Name)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], c.Flags)
	enc = append(enc, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], uint32(len(c.Meta)))
	enc = append(enc, u32[:]...)
	enc = append(enc, c.Meta...)
	dst, err := rt.arena.MapRW(outPtr, uint32(len(enc)))
	if err != nil {
		return 0, err
	}
	return uint32(copy(dst, enc)), nil
}

// CapOpenRequest is the fixed 40-byte packed record cap_open reads:
// (u64 kind_ptr, u32 kind_len, u64 name_ptr, u32 name_len, u32 mode,
// u64 params_ptr, u32 params_len).
type CapOpenRequest struct {
	KindPtr   Ptr
	KindLen   uint32
	NamePtr   Ptr
	NameLen   uint32
	Mode      uint32
	ParamsPtr Ptr
	ParamsLen uint32
}

const capOpenRequestSize = 8 + 4 + 8 + 4 + 4 + 8 + 4

// CapOpen implements cap_open(req_ptr) -> handle | err: matches
// (kind,name) by exact bytewise equality against the configured cap
// list and dispatches to the appropriate provider.
func (rt *Runtime) CapOpen(reqPtr Ptr) (Handle, error) {
	raw, err := rt.arena.MapRO(reqPtr, capOpenRequestSize)
	if err != nil {
		return 0, err
	}
	req := CapOpenRequest{
		KindPtr:   Ptr(binary.LittleEndian.Uint64(raw[0:8])),
		KindLen:   binary.LittleEndian.Uint32(raw[8:12]),
		NamePtr:   Ptr(binary.LittleEndian.Uint64(raw[12:20])),
		NameLen:   binary.LittleEndian.Uint32(raw[20:24]),
		Mode:      binary.LittleEndian.Uint32(raw[24:28]),
		ParamsPtr: Ptr(binary.LittleEndian.Uint64(raw[28:36])),
		ParamsLen: binary.LittleEndian.Uint32(raw[36:40]),
	}
	if req.Mode != 0 {
		return 0, zerr.New(zerr.Invalid, "cap_open: mode must be zero")
	}
	kindB, err := rt.arena.MapRO(req.KindPtr, req.KindLen)
	if err != nil {
		return 0, err
	}
	nameB, err := rt.arena.MapRO(req.NamePtr, req.NameLen)
	if err != nil {
		return 0, err
	}
	kind, name := string(kindB), string(nameB)

	var matched *Cap
	for i := range rt.cfg.Caps {
		if rt.cfg.Caps[i].Kind == kind && rt.cfg.Caps[i].Name == name {
			matched = &rt.cfg.Caps[i]
			break
		}
	}
	if matched == nil {
		return 0, zerr.New(zerr.Noent, "cap_open: no such capability")
	}
	if matched.Flags&CapCanOpen == 0 {
		return 0, zerr.New(zerr.Denied, "cap_open: capability not openable")
	}

	switch kind {
	case "file/fs":
		paramsB, err := rt.arena.MapRO(req.ParamsPtr, req.ParamsLen)
		if err != nil {
			return 0, err
		}
		params, err := DecodeOpenParams(paramsB)
		if err != nil {
			return 0, err
		}
		pathB, err := rt.arena.MapRO(params.PathPtr, params.PathLen)
		if err != nil {
			return 0, err
		}
		fd, err := rt.fs.Open(string(pathB), params.OpenFlags, params.CreateMode)
		if err != nil {
			return 0, err
		}
		flags := uint32(0)
		if params.OpenFlags&OpenRead != 0 {
			flags |= HFlagReadable
		}
		if params.OpenFlags&(OpenWrite|OpenCreate|OpenTrunc|OpenAppend) != 0 {
			flags |= HFlagWritable
		}
		flags |= HFlagEndable
		return rt.handle.Alloc(&fileHandle{fd: fd}, flags)
	case "proc/argv":
		return rt.handle.Alloc(newBlobHandle(BuildArgvBlob(rt.cfg.Argv)), HFlagReadable|HFlagEndable)
	case "proc/env":
		return rt.handle.Alloc(newBlobHandle(BuildEnvBlob(rt.cfg.Env)), HFlagReadable|HFlagEndable)
	default:
		return 0, zerr.Newf(zerr.Denied, "cap_open: unsupported capability kind %q", kind)
	}
}

// blobHandle serves a read-only in-memory buffer, used by proc/argv and
// proc/env capability opens.
type blobHandle struct {
	data []byte
	pos  int
}

func newBlobHandle(data []byte) *blobHandle { return &blobHandle{data: data} }

func (b *blobHandle) Read(dst []byte) (int, error) {
	n := copy(dst, b.data[b.pos:])
	b.pos += n
	return n, nil
}

func (b *blobHandle) Write([]byte) (int, error) {
	return 0, zerr.New(zerr.Denied, "blob handle is read-only")
}

func (b *blobHandle) End() error { return nil }
