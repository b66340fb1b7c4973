// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package sem2sir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLowererStatsCountsLocalsAndFuncs(t *testing.T) {
	doc := unit(proc("main", nil, "i32", false, block(
		varDecl("x", "i32", intLit("1")),
		returnStmt(nameRef("x")),
	)))

	lw := NewLowerer(Options{})
	mod, err := lw.Lower(doc)
	require.NoError(t, err)
	require.NotNil(t, mod)

	stats := lw.Stats()
	require.Equal(t, 1, stats.Funcs)
	require.Equal(t, 1, stats.LocalsBound)
	require.Greater(t, stats.NodesEmitted, 0)
	require.Greater(t, stats.BlocksCreated, 0)
}

func TestLowerFreeFunctionMatchesLowererLower(t *testing.T) {
	doc := unit(proc("main", nil, "i32", false, block(
		returnStmt(intLit("0")),
	)))

	viaFunc, err := Lower(doc, Options{})
	require.NoError(t, err)
	viaLowerer, err := NewLowerer(Options{}).Lower(doc)
	require.NoError(t, err)
	require.Equal(t, len(viaFunc.Funcs), len(viaLowerer.Funcs))
}
