// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/semtoolchain/sem/zerr"
)

func TestSinkEmitWritesOneJSONLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(&buf)
	s.Emit("zi_telemetry", "hello")
	s.Emit("zi_telemetry", "world")

	sc := bufio.NewScanner(&buf)
	var lines []Record
	for sc.Scan() {
		var r Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		lines = append(lines, r)
	}
	require.Len(t, lines, 2)
	require.Equal(t, uint64(1), lines[0].Seq)
	require.Equal(t, uint64(2), lines[1].Seq)
	require.Equal(t, "hello", lines[0].Msg)
	require.NotEmpty(t, lines[0].TS)
}

func TestSinkEmitErrorCarriesStableCodeName(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(&buf)
	s.EmitError("run", zerr.Bounds, "slot out of range")

	var r Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &r))
	require.Equal(t, "bounds", r.Code)
}

func TestNilWriterDiscardsSilently(t *testing.T) {
	s := NewSink(nil)
	require.NotPanics(t, func() { s.Emit("topic", "msg") })
}
