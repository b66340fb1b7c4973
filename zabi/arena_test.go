// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package zabi

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/semtoolchain/sem/zerr"
)

func TestArenaAllocAlignedAndInBounds(t *testing.T) {
	a, err := NewArena(1024, 0x1000)
	require.NoError(t, err)

	p := a.Alloc(32, 16)
	require.NotZero(t, p)
	require.Zero(t, uint64(p)%16)

	b, err := a.MapRO(p, 32)
	require.NoError(t, err)
	require.Len(t, b, 32)
}

func TestArenaMapROOutOfBoundsFails(t *testing.T) {
	a, err := NewArena(1024, 0x1000)
	require.NoError(t, err)
	p := a.Alloc(16, 16)
	_, err = a.MapRO(p-1, 1)
	require.Error(t, err)
	require.Equal(t, zerr.Bounds, zerr.CodeOf(err))
}

func TestArenaAllocZeroFails(t *testing.T) {
	a, err := NewArena(1024, 0x1000)
	require.NoError(t, err)
	require.Zero(t, a.Alloc(0, 16))
}

func TestArenaExhaustion(t *testing.T) {
	a, err := NewArena(16, 0x1000)
	require.NoError(t, err)
	require.Zero(t, a.Alloc(17, 1))
}

func TestNewArenaRejectsZeroCapOrBase(t *testing.T) {
	_, err := NewArena(0, 0x1000)
	require.Error(t, err)
	_, err = NewArena(16, 0)
	require.Error(t, err)
}
