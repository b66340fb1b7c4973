// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package telemetry formats structured diagnostic lines as JSONL: one
// compact JSON object per line, written to an io.Writer. It backs both
// zabi.Runtime's telemetry() zABI call and the sem CLI's --json mode,
// so a guest's zi_telemetry emissions and the CLI's own run summary
// share one line format (spec §4.6, §4.9, §9 open question 2).
package telemetry

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/semtoolchain/sem/zerr"
)

// Record is one JSONL telemetry line. Seq is assigned by the Sink so
// consumers can detect drops without relying on wall-clock ordering;
// Msg and Code are omitted when empty to keep lines compact, matching
// the teacher's prettyPrint convention of marshaling only what's set,
// while Seq, TS and Topic are always written.
type Record struct {
	Seq   uint64 `json:"seq"`
	TS    string `json:"ts"`
	Topic string `json:"topic"`
	Msg   string `json:"msg,omitempty"`
	Code  string `json:"code,omitempty"`
}

// Sink serializes Records to an underlying writer as newline-delimited
// JSON. Safe for concurrent use: zabi.Runtime.Telemetry may be called
// from guest code while the CLI driver is still flushing output.
type Sink struct {
	mu  sync.Mutex
	w   io.Writer
	seq uint64
	now func() string
}

// NewSink wraps w. A nil w discards every record (the zero value's
// "best-effort, format not part of the stable contract" default).
func NewSink(w io.Writer) *Sink {
	return &Sink{w: w, now: func() string { return time.Now().UTC().Format(time.RFC3339Nano) }}
}

// Emit writes one telemetry line for topic/msg. Errors are swallowed:
// telemetry is diagnostic-only and must never fail the call that
// triggered it (spec §4.6).
func (s *Sink) Emit(topic, msg string) {
	s.emit(Record{Topic: topic, Msg: msg})
}

// EmitError writes a telemetry line carrying a zerr.Code's stable name,
// used by cmd/sem to surface the final --json run outcome.
func (s *Sink) EmitError(topic string, code zerr.Code, msg string) {
	s.emit(Record{Topic: topic, Msg: msg, Code: code.String()})
}

func (s *Sink) emit(rec Record) {
	if s == nil || s.w == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	rec.Seq = s.seq
	rec.TS = s.now()
	line, err := json.Marshal(rec)
	if err != nil {
		return
	}
	line = append(line, '\n')
	_, _ = s.w.Write(line)
}
