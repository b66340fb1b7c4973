// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package tape records and replays ZCL1 control-op transcripts as JSONL
// files, one (request, response) frame pair per line, backing the sem
// CLI's --tape-out/--tape-in/--tape-lax flags (§6). This is additive to
// the base spec (§1 names capability dispatch itself as in-scope but
// record/replay tooling as out-of-scope); it is grounded on the original
// implementation's zi_tape.c/.h, reworked here as a thin decorator
// around the same zabi.CapHost.Dispatch(req []byte) ([]byte, error) shape
// the capability host already exposes, so neither zabi nor sem2sir need
// to know tape mode is active.
package tape

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/semtoolchain/sem/zerr"
)

// Entry is one recorded (request, response) ZCL1 frame pair. []byte
// fields marshal as base64 under encoding/json, keeping the tape a
// plain JSONL text file.
type Entry struct {
	Seq     uint64 `json:"seq"`
	Req     []byte `json:"req"`
	Resp    []byte `json:"resp"`
	ErrCode int32  `json:"err_code,omitempty"`
	ErrMsg  string `json:"err_msg,omitempty"`
}

// Recorder wraps a Dispatch function, writing every call's request and
// response (or error) to w as it happens.
type Recorder struct {
	Dispatch func(req []byte) ([]byte, error)
	w        io.Writer
	seq      uint64
}

// NewRecorder returns a Recorder that tees calls through fn and appends
// one JSONL Entry per call to w.
func NewRecorder(fn func(req []byte) ([]byte, error), w io.Writer) *Recorder {
	return &Recorder{Dispatch: fn, w: w}
}

// Call invokes the wrapped Dispatch and records the outcome before
// returning it unchanged to the caller.
func (r *Recorder) Call(req []byte) ([]byte, error) {
	resp, err := r.Dispatch(req)
	r.seq++
	e := Entry{Seq: r.seq, Req: append([]byte(nil), req...), Resp: append([]byte(nil), resp...)}
	if err != nil {
		e.ErrCode = int32(zerr.CodeOf(err))
		e.ErrMsg = err.Error()
	}
	line, mErr := json.Marshal(e)
	if mErr == nil {
		line = append(line, '\n')
		_, _ = r.w.Write(line)
	}
	return resp, err
}

// Player replays a previously recorded tape in order: each Call returns
// the next Entry's response without invoking a real capability host,
// giving deterministic re-execution of a guest's control-op sequence.
type Player struct {
	entries []Entry
	next    int
	lax     bool
}

// LoadPlayer reads a JSONL tape from r. lax controls whether Call
// tolerates a request that doesn't byte-match the recorded one (replay
// against a slightly different build) or hard-fails (strict replay).
func LoadPlayer(r io.Reader, lax bool) (*Player, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var entries []Entry
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, zerr.Newf(zerr.Invalid, "tape: malformed entry: %v", err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, zerr.Newf(zerr.IO, "tape: read: %v", err)
	}
	return &Player{entries: entries, lax: lax}, nil
}

// Call returns the next recorded response in sequence. In strict mode
// (lax == false) a request that doesn't match the recorded bytes is a
// hard error; in lax mode the mismatch is ignored and the recorded
// response is returned regardless, for replaying against builds whose
// request encoding shifted in ways that don't affect the op's outcome.
func (p *Player) Call(req []byte) ([]byte, error) {
	if p.next >= len(p.entries) {
		return nil, zerr.New(zerr.Noent, "tape: replay exhausted: no more recorded calls")
	}
	e := p.entries[p.next]
	p.next++
	if !p.lax && !bytesEqual(e.Req, req) {
		return nil, zerr.Newf(zerr.Invalid, "tape: request %d does not match recording (use --tape-lax to ignore)", e.Seq)
	}
	if e.ErrCode != 0 {
		return nil, zerr.New(zerr.Code(e.ErrCode), e.ErrMsg)
	}
	return e.Resp, nil
}

// Remaining reports how many recorded calls have not yet been replayed.
func (p *Player) Remaining() int { return len(p.entries) - p.next }

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
