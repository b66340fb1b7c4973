// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vocab

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTypeRoundTrip asserts the §8 round-trip property: parse(format(x))
// == x for every x in the closed vocabulary, and format(parse(s))
// produces the canonical spelling for every valid s.
func TestTypeRoundTrip(t *testing.T) {
	for _, name := range TypeNames() {
		ty, err := ParseType(name)
		require.NoError(t, err)
		require.Equal(t, name, ty.String())
	}
}

func TestTypeParseUnknownIsError(t *testing.T) {
	_, err := ParseType("i128")
	require.Error(t, err)
	require.Contains(t, err.Error(), "i128")
}

func TestOpRoundTrip(t *testing.T) {
	for _, name := range OpNames() {
		op, err := ParseOp(name)
		require.NoError(t, err)
		require.Equal(t, name, op.String())
	}
}

func TestOpClassification(t *testing.T) {
	add, _ := ParseOp("core.add")
	require.True(t, add.IsArithmeticOrBitwise())
	require.False(t, add.IsComparison())

	eq, _ := ParseOp("core.eq")
	require.True(t, eq.IsComparison())

	andSC, _ := ParseOp("core.bool.and_sc")
	require.True(t, andSC.IsShortCircuit())
}

func TestIntrinsicRoundTrip(t *testing.T) {
	for _, name := range IntrinsicNames() {
		k, err := ParseIntrinsic(name)
		require.NoError(t, err)
		require.Equal(t, name, k.String())
	}
}

func TestIntrinsicUnknownIsError(t *testing.T) {
	_, err := ParseIntrinsic("Frobnicate")
	require.Error(t, err)
}

func TestSlotBackedLocals(t *testing.T) {
	slotBacked := []string{"i32", "i64", "u8", "f64", "ptr"}
	for _, n := range slotBacked {
		ty, err := ParseType(n)
		require.NoError(t, err)
		require.True(t, ty.SupportsLoadStore(), "%s should be slot-backed", n)
	}

	direct := []string{"bool", "slice", "bytes", "string.utf8", "cstr"}
	for _, n := range direct {
		ty, err := ParseType(n)
		require.NoError(t, err)
		require.False(t, ty.SupportsLoadStore(), "%s should be a direct binding", n)
	}
}
