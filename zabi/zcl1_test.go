// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package zabi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZCL1RoundTrip(t *testing.T) {
	buf := AppendFrame(7, 42, 1, []byte("hello"))
	h, payload, err := ParseFrame(buf)
	require.NoError(t, err)
	require.Equal(t, uint16(7), h.Op)
	require.Equal(t, uint32(42), h.RID)
	require.Equal(t, uint32(1), h.Status)
	require.Equal(t, "hello", string(payload))
}

func TestZCL1RejectsBadMagic(t *testing.T) {
	buf := AppendFrame(1, 1, 0, nil)
	buf[0] = 'X'
	_, _, err := ParseFrame(buf)
	require.Error(t, err)
}

func TestZCL1RejectsNonZeroReserved(t *testing.T) {
	buf := AppendFrame(1, 1, 0, nil)
	buf[16] = 1 // reserved field
	_, _, err := ParseFrame(buf)
	require.Error(t, err)
}

func TestZCL1EmptyCapsListResponseShape(t *testing.T) {
	host := NewCapHost(HostConfig{})
	req := AppendFrame(CtlOpCapsList, 42, 0, nil)
	resp, err := host.Dispatch(req)
	require.NoError(t, err)

	h, payload, err := ParseFrame(resp)
	require.NoError(t, err)
	require.Equal(t, CtlOpCapsList, h.Op)
	require.Equal(t, uint32(42), h.RID)
	require.Equal(t, uint32(1), h.Status)
	require.Equal(t, uint32(8), h.PayloadLen)
	require.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0}, payload)
}

func TestZCL1UnknownOpIsNosys(t *testing.T) {
	host := NewCapHost(HostConfig{})
	req := AppendFrame(999, 1, 0, nil)
	resp, err := host.Dispatch(req)
	require.NoError(t, err)
	h, payload, err := ParseFrame(resp)
	require.NoError(t, err)
	require.Equal(t, uint32(0), h.Status)
	require.Contains(t, string(payload), "nosys")
}

func TestWriteErrorPayloadShape(t *testing.T) {
	p := WriteErrorPayload("sem.zi_ctl.denied", "nope", "")
	require.Contains(t, string(p), "sem.zi_ctl.denied")
	require.Contains(t, string(p), "nope")
}
