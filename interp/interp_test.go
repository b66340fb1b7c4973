// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package interp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/semtoolchain/sem/sir"
	"github.com/semtoolchain/sem/vocab"
	"github.com/semtoolchain/sem/zabi"
)

func newTestRuntime(t *testing.T) *zabi.Runtime {
	t.Helper()
	rt, err := zabi.NewRuntime(zabi.RuntimeConfig{
		Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{},
	})
	require.NoError(t, err)
	return rt
}

// buildAddExit builds `fn main() -> void { exit_val(7+2) }`.
func buildAddExit(t *testing.T) *sir.Module {
	t.Helper()
	b := sir.NewBuilder("main")
	voidT := b.Prim(vocab.TypeVoid)
	sig := b.FnType(nil, voidT)
	fid := b.Begin("main")
	b.SetSig(fid, sig)
	b.SetEntry(fid)
	b.SetValueCount(fid, 2)

	b.StartBlock("entry")
	b.Emit(sir.Inst{
		Op: sir.OpI32Add, Dst: 1,
		Args: []sir.Operand{{Kind: sir.OperandImmI64, ImmI64: 7}, {Kind: sir.OperandImmI64, ImmI64: 2}},
	})
	b.Emit(sir.Inst{Op: sir.OpExitVal, Args: []sir.Operand{{Kind: sir.OperandSlot, Slot: 1}}})
	b.EndBlock()
	return b.Finalize()
}

func TestInterpRunsSimpleArithmetic(t *testing.T) {
	mod := buildAddExit(t)
	require.Nil(t, sir.Validate(mod))
	rt := newTestRuntime(t)
	defer rt.Dispose()

	code, err := New(mod, rt).Run()
	require.NoError(t, err)
	require.Equal(t, int64(9), code)
}

// buildForIntLoop builds a header/body/step/exit loop counting i from 0
// to 3 (spec §8 scenario 5), returning the final increment count as the
// exit code.
func buildForIntLoop(t *testing.T) *sir.Module {
	t.Helper()
	b := sir.NewBuilder("main")
	voidT := b.Prim(vocab.TypeVoid)
	sig := b.FnType(nil, voidT)
	fid := b.Begin("main")
	b.SetSig(fid, sig)
	b.SetEntry(fid)
	b.SetValueCount(fid, 4) // 1: i (the step block adds 1 in place), 2: cond; slot 3 is unused

	b.StartBlock("init")
	b.Emit(sir.Inst{Op: sir.OpConstI32, Dst: 1, Args: []sir.Operand{{Kind: sir.OperandImmI64, ImmI64: 0}}})
	initBr := b.EmitBr()
	b.EndBlock()

	header := b.StartBlock("header")
	b.Emit(sir.Inst{
		Op: sir.OpI32CmpLtS, Dst: 2,
		Args: []sir.Operand{{Kind: sir.OperandSlot, Slot: 1}, {Kind: sir.OperandImmI64, ImmI64: 3}},
	})
	condBr := b.EmitCondBr(2)
	b.EndBlock()

	body := b.StartBlock("body")
	bodyBr := b.EmitBr()
	b.EndBlock()

	step := b.StartBlock("step")
	b.Emit(sir.Inst{
		Op: sir.OpI32Add, Dst: 1,
		Args: []sir.Operand{{Kind: sir.OperandSlot, Slot: 1}, {Kind: sir.OperandImmI64, ImmI64: 1}},
	})
	stepBr := b.EmitBr()
	b.EndBlock()

	exit := b.StartBlock("exit")
	b.Emit(sir.Inst{Op: sir.OpExitVal, Args: []sir.Operand{{Kind: sir.OperandSlot, Slot: 1}}})
	b.EndBlock()

	b.PatchBr(initBr, b.BlockStart(fid, header))
	b.PatchCondBr(condBr, b.BlockStart(fid, body), b.BlockStart(fid, exit))
	b.PatchBr(bodyBr, b.BlockStart(fid, step))
	b.PatchBr(stepBr, b.BlockStart(fid, header))
	return b.Finalize()
}

func TestInterpForIntLoopRunsThreeIncrements(t *testing.T) {
	mod := buildForIntLoop(t)
	require.Nil(t, sir.Validate(mod))
	rt := newTestRuntime(t)
	defer rt.Dispose()

	code, err := New(mod, rt).Run()
	require.NoError(t, err)
	require.Equal(t, int64(3), code)
}

// countingSink records step/mem/hostcall counts without affecting
// execution, the shape a coverage or trace tool would build on top of
// RunWithSink.
type countingSink struct {
	steps     int
	mem       int
	hostcalls []string
}

func (s *countingSink) OnStep(fid sir.FuncID, ip int, op sir.Opcode) { s.steps++ }
func (s *countingSink) OnMem(addr zabi.Ptr, size uint32, write bool) { s.mem++ }
func (s *countingSink) OnHostcall(name string)                      { s.hostcalls = append(s.hostcalls, name) }

func TestRunWithSinkObservesStepsWithoutChangingResult(t *testing.T) {
	mod := buildAddExit(t)
	require.Nil(t, sir.Validate(mod))
	rt := newTestRuntime(t)
	defer rt.Dispose()

	sink := &countingSink{}
	code, err := New(mod, rt).RunWithSink(sink)
	require.NoError(t, err)
	require.Equal(t, int64(9), code)
	require.Equal(t, 2, sink.steps)
	require.Empty(t, sink.hostcalls)
}

func TestRunNilSinkBehavesLikeRun(t *testing.T) {
	mod := buildAddExit(t)
	require.Nil(t, sir.Validate(mod))
	rt := newTestRuntime(t)
	defer rt.Dispose()

	code, err := New(mod, rt).RunWithSink(nil)
	require.NoError(t, err)
	require.Equal(t, int64(9), code)
}
