// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package sir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/semtoolchain/sem/vocab"
)

// buildExitZero builds `fn main() -> void { exit(0) }`: the smallest
// module the validator should accept.
func buildExitZero(t *testing.T) *Module {
	t.Helper()
	b := NewBuilder("main")
	voidT := b.Prim(vocab.TypeVoid)
	sig := b.FnType(nil, voidT)

	fid := b.Begin("main")
	b.SetSig(fid, sig)
	b.SetEntry(fid)
	b.SetLinkage(fid, LinkagePublic)
	b.SetValueCount(fid, 1)

	b.StartBlock("entry")
	b.Emit(Inst{Op: OpExitVal, Args: []Operand{{Kind: OperandImmI64, ImmI64: 0}}})
	b.EndBlock()

	return b.Finalize()
}

func TestBuilderAndValidatorAcceptMinimalModule(t *testing.T) {
	m := buildExitZero(t)
	require.Nil(t, Validate(m))
}

func TestValidateRejectsMissingTerminator(t *testing.T) {
	b := NewBuilder("main")
	voidT := b.Prim(vocab.TypeVoid)
	sig := b.FnType(nil, voidT)
	fid := b.Begin("main")
	b.SetSig(fid, sig)
	b.SetEntry(fid)
	b.SetValueCount(fid, 1)
	b.StartBlock("entry")
	b.Emit(Inst{Op: OpConstI32, Type: b.Prim(vocab.TypeI32), Dst: 1})
	b.EndBlock()
	m := b.Finalize()

	d := Validate(m)
	require.NotNil(t, d)
	require.Contains(t, d.Message, "terminator")
}

func TestValidateRejectsOutOfRangeSlot(t *testing.T) {
	b := NewBuilder("main")
	voidT := b.Prim(vocab.TypeVoid)
	sig := b.FnType(nil, voidT)
	fid := b.Begin("main")
	b.SetSig(fid, sig)
	b.SetEntry(fid)
	b.SetValueCount(fid, 1) // only slot 0 valid
	b.StartBlock("entry")
	b.Emit(Inst{Op: OpTermCondBr, Args: []Operand{{Kind: OperandSlot, Slot: 5}, {Kind: OperandIP, IP: 0}, {Kind: OperandIP, IP: 0}}})
	b.EndBlock()
	m := b.Finalize()

	d := Validate(m)
	require.NotNil(t, d)
	require.Equal(t, "bounds", d.Code)
}

func TestValidateRejectsBranchTargetNotBlockStart(t *testing.T) {
	b := NewBuilder("main")
	voidT := b.Prim(vocab.TypeVoid)
	sig := b.FnType(nil, voidT)
	fid := b.Begin("main")
	b.SetSig(fid, sig)
	b.SetEntry(fid)
	b.SetValueCount(fid, 1)
	b.StartBlock("entry")
	b.Emit(Inst{Op: OpTermBr, Args: []Operand{{Kind: OperandIP, IP: 99}}})
	b.EndBlock()
	m := b.Finalize()

	d := Validate(m)
	require.NotNil(t, d)
	require.Equal(t, "bounds", d.Code)
}

func TestWriteTextEmitsMetaLineFirst(t *testing.T) {
	m := buildExitZero(t)
	out, err := Text(m)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Contains(t, lines[0], `"k":"meta"`)
	require.Contains(t, lines[0], `"producer":"sem2sir"`)
}

func TestTypeInterningDedups(t *testing.T) {
	b := NewBuilder("main")
	a := b.Prim(vocab.TypeI32)
	c := b.Prim(vocab.TypeI32)
	require.Equal(t, a, c)
	p1 := b.PtrOf(a)
	p2 := b.PtrOf(a)
	require.Equal(t, p1, p2)
}

func TestBranchPatching(t *testing.T) {
	b := NewBuilder("main")
	voidT := b.Prim(vocab.TypeVoid)
	sig := b.FnType(nil, voidT)
	fid := b.Begin("main")
	b.SetSig(fid, sig)
	b.SetEntry(fid)
	b.SetValueCount(fid, 1)

	b.StartBlock("entry")
	brIP := b.EmitBr()
	b.EndBlock()

	target := b.StartBlock("exit")
	b.Emit(Inst{Op: OpExitVal, Args: []Operand{{Kind: OperandImmI64, ImmI64: 0}}})
	b.EndBlock()

	b.PatchBr(brIP, b.mod.Funcs[fid].Blocks[target].Start)
	m := b.Finalize()
	require.Nil(t, Validate(m))
}
