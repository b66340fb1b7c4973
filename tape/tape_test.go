// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package tape

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/semtoolchain/sem/zerr"
)

func TestRecorderThenPlayerRoundTrips(t *testing.T) {
	calls := [][]byte{{1, 2, 3}, {4, 5}}
	i := 0
	dispatch := func(req []byte) ([]byte, error) {
		resp := append([]byte{0xAA}, req...)
		i++
		return resp, nil
	}

	var tape bytes.Buffer
	rec := NewRecorder(dispatch, &tape)
	for _, c := range calls {
		resp, err := rec.Call(c)
		require.NoError(t, err)
		require.Equal(t, append([]byte{0xAA}, c...), resp)
	}

	p, err := LoadPlayer(&tape, false)
	require.NoError(t, err)
	require.Equal(t, 2, p.Remaining())
	for _, c := range calls {
		resp, err := p.Call(c)
		require.NoError(t, err)
		require.Equal(t, append([]byte{0xAA}, c...), resp)
	}
	require.Equal(t, 0, p.Remaining())
}

func TestPlayerStrictModeRejectsMismatchedRequest(t *testing.T) {
	var tapeBuf bytes.Buffer
	rec := NewRecorder(func(req []byte) ([]byte, error) { return []byte("ok"), nil }, &tapeBuf)
	_, err := rec.Call([]byte{1, 2, 3})
	require.NoError(t, err)

	p, err := LoadPlayer(&tapeBuf, false)
	require.NoError(t, err)
	_, err = p.Call([]byte{9, 9, 9})
	require.Error(t, err)
	require.Equal(t, zerr.Invalid, zerr.CodeOf(err))
}

func TestPlayerLaxModeIgnoresMismatch(t *testing.T) {
	var tapeBuf bytes.Buffer
	rec := NewRecorder(func(req []byte) ([]byte, error) { return []byte("ok"), nil }, &tapeBuf)
	_, err := rec.Call([]byte{1, 2, 3})
	require.NoError(t, err)

	p, err := LoadPlayer(&tapeBuf, true)
	require.NoError(t, err)
	resp, err := p.Call([]byte{9, 9, 9})
	require.NoError(t, err)
	require.Equal(t, []byte("ok"), resp)
}

func TestRecorderCapturesDispatchError(t *testing.T) {
	var tapeBuf bytes.Buffer
	rec := NewRecorder(func(req []byte) ([]byte, error) {
		return nil, zerr.New(zerr.Denied, "nope")
	}, &tapeBuf)
	_, err := rec.Call([]byte{1})
	require.Error(t, err)

	p, err := LoadPlayer(&tapeBuf, false)
	require.NoError(t, err)
	_, err = p.Call([]byte{1})
	require.Error(t, err)
	require.Equal(t, zerr.Denied, zerr.CodeOf(err))
}

func TestPlayerExhaustedReturnsNoent(t *testing.T) {
	p, err := LoadPlayer(&bytes.Buffer{}, false)
	require.NoError(t, err)
	_, err = p.Call([]byte{1})
	require.Error(t, err)
	require.Equal(t, zerr.Noent, zerr.CodeOf(err))
}
