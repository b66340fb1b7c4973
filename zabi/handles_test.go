// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package zabi

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/semtoolchain/sem/zerr"
)

type noopOps struct{}

func (noopOps) Read([]byte) (int, error)  { return 0, nil }
func (noopOps) Write([]byte) (int, error) { return 0, nil }
func (noopOps) End() error                { return nil }

func TestHandleAllocStartsAtThreeAndWraps(t *testing.T) {
	ht, err := NewHandleTable(6)
	require.NoError(t, err)
	h1, err := ht.Alloc(noopOps{}, 0)
	require.NoError(t, err)
	require.Equal(t, Handle(3), h1)
	h2, err := ht.Alloc(noopOps{}, 0)
	require.NoError(t, err)
	require.Equal(t, Handle(4), h2)
	h3, err := ht.Alloc(noopOps{}, 0)
	require.NoError(t, err)
	require.Equal(t, Handle(5), h3)
}

func TestHandleAllocBeyondCapacityIsOOM(t *testing.T) {
	ht, err := NewHandleTable(4)
	require.NoError(t, err)
	_, err = ht.Alloc(noopOps{}, 0)
	require.NoError(t, err)
	_, err = ht.Alloc(noopOps{}, 0)
	require.Error(t, err)
	require.Equal(t, zerr.OOM, zerr.CodeOf(err))
}

func TestReleaseStdioFails(t *testing.T) {
	ht, err := NewHandleTable(8)
	require.NoError(t, err)
	require.NoError(t, ht.Install(HandleStdin, noopOps{}, HFlagReadable))
	err = ht.Release(HandleStdin)
	require.Error(t, err)
}

func TestLookupAfterReleaseIsEmpty(t *testing.T) {
	ht, err := NewHandleTable(8)
	require.NoError(t, err)
	h, err := ht.Alloc(noopOps{}, 0)
	require.NoError(t, err)
	require.NoError(t, ht.Release(h))
	_, _, ok := ht.Lookup(h)
	require.False(t, ok)
}

func TestReleasedSlotIsReusable(t *testing.T) {
	ht, err := NewHandleTable(4)
	require.NoError(t, err)
	h, err := ht.Alloc(noopOps{}, 0)
	require.NoError(t, err)
	require.NoError(t, ht.Release(h))
	h2, err := ht.Alloc(noopOps{}, 0)
	require.NoError(t, err)
	require.Equal(t, h, h2)
}
