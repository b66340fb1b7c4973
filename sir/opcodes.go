// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package sir

// Opcode is the closed vocabulary of SIR instruction kinds (spec §3's
// "Instruction" and §6's wire `tag`). Grouped by family; the family
// groupings are what the validator and interpreter switch on.
type Opcode uint8

const (
	OpInvalid Opcode = iota

	// constants
	OpConstI32
	OpConstI64
	OpConstF32
	OpConstF64
	OpConstStruct // {cstr data ptr, i64 len} pair used by data:v1 literals
	OpCStr        // materializes a cstr data pointer for a literal

	// name/value references produced by lowering
	OpName // slot-backed local's alloca address, or a direct-value binding

	// memory
	OpAlloca
	OpLoadI32
	OpLoadI64
	OpLoadU8
	OpLoadF64
	OpLoadPtr
	OpStoreI32
	OpStoreI64
	OpStoreU8
	OpStoreF64
	OpStorePtr
	OpMemcpy
	OpMemfill

	// integer arithmetic / bitwise / shift (i32 and i64 each have their
	// own opcodes)
	OpI32Add
	OpI32Sub
	OpI32Mul
	OpI32DivS
	OpI32RemU
	OpI32Shl
	OpI32Shr
	OpI32And
	OpI32Or
	OpI32Xor
	OpI32Neg
	OpI32Not
	OpI64Add
	OpI64Sub
	OpI64Mul
	OpI64DivS
	OpI64RemU
	OpI64Shl
	OpI64Shr
	OpI64And
	OpI64Or
	OpI64Xor
	OpI64Neg
	OpI64Not

	// integer comparisons (result is bool)
	OpI32CmpEq
	OpI32CmpNe
	OpI32CmpLtS
	OpI32CmpLeS
	OpI32CmpGtS
	OpI32CmpGeS
	OpI64CmpEq
	OpI64CmpNe
	OpI64CmpLtS
	OpI64CmpLeS
	OpI64CmpGtS
	OpI64CmpGeS

	// boolean / short-circuit (sem:v1)
	OpBoolNot
	OpSemAndSC
	OpSemOrSC

	// pointer / width conversions
	OpPtrFromI64
	OpI64FromPtr
	OpZExtI64FromI32
	OpSExtI64FromI32
	OpTruncI32FromI64
	OpF64FromI32S
	OpF32FromI32S
	OpTruncSatI32FromF64S
	OpTruncSatI32FromF32S

	// select
	OpSelect

	// calls
	OpCall         // direct
	OpCallIndirect // via function pointer / extern symbol
	OpDeclFn       // extern declaration pseudo-node (no control flow)

	// terminators
	OpTermRet
	OpTermRetVal
	OpTermBr
	OpTermCondBr
	OpTermSwitch // core switch with ip targets
	OpSemSwitch  // sem:v1 switch, case targets + default; sem2sir's Match lowering does not emit it (it emits an equality-compare chain)
	OpExit
	OpExitVal
)

var opcodeNames = map[Opcode]string{
	OpConstI32: "const.i32", OpConstI64: "const.i64",
	OpConstF32: "const.f32", OpConstF64: "const.f64",
	OpConstStruct: "const.struct", OpCStr: "cstr", OpName: "name",
	OpAlloca: "alloca",
	OpLoadI32: "load.i32", OpLoadI64: "load.i64", OpLoadU8: "load.u8", OpLoadF64: "load.f64", OpLoadPtr: "load.ptr",
	OpStoreI32: "store.i32", OpStoreI64: "store.i64", OpStoreU8: "store.u8", OpStoreF64: "store.f64", OpStorePtr: "store.ptr",
	OpMemcpy: "memcpy", OpMemfill: "memfill",
	OpI32Add: "i32.add", OpI32Sub: "i32.sub", OpI32Mul: "i32.mul", OpI32DivS: "i32.div_s", OpI32RemU: "i32.rem_u",
	OpI32Shl: "i32.shl", OpI32Shr: "i32.shr", OpI32And: "i32.and", OpI32Or: "i32.or", OpI32Xor: "i32.xor",
	OpI32Neg: "i32.neg", OpI32Not: "i32.not",
	OpI64Add: "i64.add", OpI64Sub: "i64.sub", OpI64Mul: "i64.mul", OpI64DivS: "i64.div_s", OpI64RemU: "i64.rem_u",
	OpI64Shl: "i64.shl", OpI64Shr: "i64.shr", OpI64And: "i64.and", OpI64Or: "i64.or", OpI64Xor: "i64.xor",
	OpI64Neg: "i64.neg", OpI64Not: "i64.not",
	OpI32CmpEq: "i32.cmp_eq", OpI32CmpNe: "i32.cmp_ne", OpI32CmpLtS: "i32.cmp_lt_s", OpI32CmpLeS: "i32.cmp_le_s",
	OpI32CmpGtS: "i32.cmp_gt_s", OpI32CmpGeS: "i32.cmp_ge_s",
	OpI64CmpEq: "i64.cmp_eq", OpI64CmpNe: "i64.cmp_ne", OpI64CmpLtS: "i64.cmp_lt_s", OpI64CmpLeS: "i64.cmp_le_s",
	OpI64CmpGtS: "i64.cmp_gt_s", OpI64CmpGeS: "i64.cmp_ge_s",
	OpBoolNot: "bool.not", OpSemAndSC: "sem.and_sc", OpSemOrSC: "sem.or_sc",
	OpPtrFromI64: "ptr_from_i64", OpI64FromPtr: "i64_from_ptr",
	OpZExtI64FromI32: "zext_i64_from_i32", OpSExtI64FromI32: "sext_i64_from_i32", OpTruncI32FromI64: "trunc_i32_from_i64",
	OpF64FromI32S: "f64_from_i32_s", OpF32FromI32S: "f32_from_i32_s",
	OpTruncSatI32FromF64S: "trunc_sat_i32_from_f64_s", OpTruncSatI32FromF32S: "trunc_sat_i32_from_f32_s",
	OpSelect:       "select",
	OpCall:         "call",
	OpCallIndirect: "call.indirect",
	OpDeclFn:       "decl.fn",
	OpTermRet:      "term.ret", OpTermRetVal: "term.ret_val",
	OpTermBr: "term.br", OpTermCondBr: "term.condbr", OpTermSwitch: "term.switch",
	OpSemSwitch: "sem.switch",
	OpExit:      "exit", OpExitVal: "exit_val",
}

func (o Opcode) String() string {
	if s, ok := opcodeNames[o]; ok {
		return s
	}
	return "invalid"
}

// IsTerminator reports whether o ends a block, per spec §3's "every
// block ends in a terminator" invariant.
func (o Opcode) IsTerminator() bool {
	switch o {
	case OpTermRet, OpTermRetVal, OpTermBr, OpTermCondBr, OpTermSwitch, OpSemSwitch, OpExit, OpExitVal:
		return true
	}
	return false
}
