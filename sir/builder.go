// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package sir

import "github.com/semtoolchain/sem/vocab"

// Builder is the mutable construction API sem2sir drives. Spec §9 notes
// that a pointer-free rewrite should hold pool-relative offsets instead
// of raw pointers and resolve them only on read; here that pool is
// simply the growing Module.Types/Symbols/Globals/Funcs slices
// themselves; Finalize takes ownership and hands back an immutable
// *Module with no further mutation API exposed.
type Builder struct {
	mod      Module
	typeKey  map[typeKey]TypeID
	curFunc  FuncID
	curBlock int // index into curFunc's Blocks, -1 if none open
	src      SrcLoc
}

type typeKey struct {
	kind TypeKind
	prim vocab.Type
	of   TypeID
	fn   string // stable string key over params+ret for fn types
}

// NewBuilder starts a fresh builder for a single-unit module.
func NewBuilder(unit string) *Builder {
	b := &Builder{
		mod:     Module{Unit: unit, Types: make([]Type, 1), Funcs: make([]Func, 1)},
		typeKey: make(map[typeKey]TypeID),
	}
	return b
}

// EnableFeature records a meta feature flag (e.g. "sem:v1", "data:v1")
// in the emitted module, deduplicated.
func (b *Builder) EnableFeature(name string) {
	for _, f := range b.mod.Features {
		if f == name {
			return
		}
	}
	b.mod.Features = append(b.mod.Features, name)
}

// Prim interns a primitive type, deduplicating on insert.
func (b *Builder) Prim(p vocab.Type) TypeID {
	k := typeKey{kind: TypeKindPrim, prim: p}
	if id, ok := b.typeKey[k]; ok {
		return id
	}
	id := TypeID(len(b.mod.Types))
	b.mod.Types = append(b.mod.Types, Type{Kind: TypeKindPrim, Prim: p})
	b.typeKey[k] = id
	return id
}

// PtrOf interns a derived pointer type for the given pointee type id.
func (b *Builder) PtrOf(pointee TypeID) TypeID {
	k := typeKey{kind: TypeKindPtr, of: pointee}
	if id, ok := b.typeKey[k]; ok {
		return id
	}
	id := TypeID(len(b.mod.Types))
	b.mod.Types = append(b.mod.Types, Type{Kind: TypeKindPtr, Of: pointee})
	b.typeKey[k] = id
	return id
}

// FnType interns a function type from its parameter and return type ids.
func (b *Builder) FnType(params []TypeID, ret TypeID) TypeID {
	key := fnTypeKey(params, ret)
	k := typeKey{kind: TypeKindFn, fn: key}
	if id, ok := b.typeKey[k]; ok {
		return id
	}
	ps := append([]TypeID(nil), params...)
	id := TypeID(len(b.mod.Types))
	b.mod.Types = append(b.mod.Types, Type{Kind: TypeKindFn, Params: ps, Ret: ret})
	b.typeKey[k] = id
	return id
}

func fnTypeKey(params []TypeID, ret TypeID) string {
	buf := make([]byte, 0, 4*(len(params)+1))
	for _, p := range params {
		buf = appendU32(buf, uint32(p))
	}
	buf = appendU32(buf, uint32(ret))
	return string(buf)
}

func appendU32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// ExternFn declares an extern function symbol with the given signature.
func (b *Builder) ExternFn(name string, sig TypeID) SymbolID {
	id := SymbolID(len(b.mod.Symbols))
	b.mod.Symbols = append(b.mod.Symbols, Symbol{Name: name, Sig: sig})
	return id
}

// Global declares a named byte region, optionally initialized.
func (b *Builder) Global(name string, size, align uint32, init []byte) GlobalID {
	id := GlobalID(len(b.mod.Globals))
	b.mod.Globals = append(b.mod.Globals, Global{Name: name, Size: size, Align: align, Init: init})
	return id
}

// Begin starts a new function and returns its id. The builder tracks
// exactly one "current function" at a time; nested Begin calls are a
// caller bug (sem2sir never does this — one Proc at a time).
func (b *Builder) Begin(name string) FuncID {
	id := FuncID(len(b.mod.Funcs))
	b.mod.Funcs = append(b.mod.Funcs, Func{Name: name})
	b.curFunc = id
	b.curBlock = -1
	return id
}

// DeclExtern records fn as an extern declaration (decl.fn): no body,
// no blocks.
func (b *Builder) DeclExtern(fid FuncID, sig TypeID) {
	f := &b.mod.Funcs[fid]
	f.Sig = sig
	f.Extern = true
}

func (b *Builder) SetEntry(fid FuncID) { b.mod.Entry = fid }
func (b *Builder) SetSig(fid FuncID, sig TypeID) {
	b.mod.Funcs[fid].Sig = sig
}
func (b *Builder) SetValueCount(fid FuncID, n uint32) {
	b.mod.Funcs[fid].NumSlots = n
}
func (b *Builder) SetLinkage(fid FuncID, l Linkage) {
	b.mod.Funcs[fid].Linkage = l
}

// SetSrc sets the source mapping applied to every instruction emitted
// after it; ClearSrc clears it.
func (b *Builder) SetSrc(nodeID, line int) { b.src = SrcLoc{NodeID: nodeID, Line: line, Valid: true} }
func (b *Builder) ClearSrc()               { b.src = SrcLoc{} }

// FuncIP returns the next instruction ip that will be assigned within
// fid's instruction stream — the value branch targets are computed
// against before the instruction exists yet.
func (b *Builder) FuncIP(fid FuncID) int { return len(b.mod.Funcs[fid].Insts) }

// emit appends inst to the current function's instruction stream and
// returns its ip.
func (b *Builder) emit(inst Inst) int {
	inst.Src = b.src
	f := &b.mod.Funcs[b.curFunc]
	ip := len(f.Insts)
	f.Insts = append(f.Insts, inst)
	return ip
}

// Emit is the single opcode-family entry point the lowerer drives; one
// call per instruction kind, parameterized by Inst's fields rather
// than one Go method per opcode (spec §4.8 calls for "an emit family
// per opcode" — here realized as one generic emitter plus the typed
// helpers below that build well-formed Insts for the lowerer's actual
// call sites).
func (b *Builder) Emit(inst Inst) int { return b.emit(inst) }

// EmitBr emits an unconditional branch to an as-yet-unknown target and
// returns its ip for a later PatchBr call.
func (b *Builder) EmitBr() int {
	return b.emit(Inst{Op: OpTermBr, Args: []Operand{{Kind: OperandIP, IP: -1}}})
}

func (b *Builder) PatchBr(ip, target int) {
	b.mod.Funcs[b.curFunc].Insts[ip].Args[0] = Operand{Kind: OperandIP, IP: target}
}

// EmitCondBr emits a conditional branch over cond to two as-yet-unknown
// targets.
func (b *Builder) EmitCondBr(cond SlotID) int {
	return b.emit(Inst{
		Op:   OpTermCondBr,
		Args: []Operand{{Kind: OperandSlot, Slot: cond}, {Kind: OperandIP, IP: -1}, {Kind: OperandIP, IP: -1}},
	})
}

func (b *Builder) PatchCondBr(ip, thenTarget, elseTarget int) {
	args := b.mod.Funcs[b.curFunc].Insts[ip].Args
	args[1] = Operand{Kind: OperandIP, IP: thenTarget}
	args[2] = Operand{Kind: OperandIP, IP: elseTarget}
}

// EmitSwitch emits a term.switch over scrutinee with ncases placeholder
// targets plus one default target, all -1 until patched.
func (b *Builder) EmitSwitch(scrutinee SlotID, ncases int) int {
	args := make([]Operand, 0, ncases+2)
	args = append(args, Operand{Kind: OperandSlot, Slot: scrutinee})
	for i := 0; i < ncases; i++ {
		args = append(args, Operand{Kind: OperandIP, IP: -1})
	}
	args = append(args, Operand{Kind: OperandIP, IP: -1}) // default
	return b.emit(Inst{Op: OpTermSwitch, Args: args})
}

func (b *Builder) PatchSwitch(ip, caseIdx, target int) {
	b.mod.Funcs[b.curFunc].Insts[ip].Args[1+caseIdx] = Operand{Kind: OperandIP, IP: target}
}

func (b *Builder) PatchSwitchDefault(ip, target int) {
	args := b.mod.Funcs[b.curFunc].Insts[ip].Args
	args[len(args)-1] = Operand{Kind: OperandIP, IP: target}
}

// StartBlock opens a new named block starting at the function's
// current ip.
func (b *Builder) StartBlock(name string) int {
	f := &b.mod.Funcs[b.curFunc]
	idx := len(f.Blocks)
	f.Blocks = append(f.Blocks, Block{Name: name, Start: len(f.Insts)})
	b.curBlock = idx
	return idx
}

// EndBlock closes the currently open block at the function's current
// ip (after its terminator has been emitted).
func (b *Builder) EndBlock() {
	f := &b.mod.Funcs[b.curFunc]
	f.Blocks[b.curBlock].End = len(f.Insts)
	b.curBlock = -1
}

// BlockStart returns the ip a previously StartBlock-opened block (by
// its returned index) begins at, for patching branch targets that were
// emitted before the destination block existed.
func (b *Builder) BlockStart(fid FuncID, blockIdx int) int {
	return b.mod.Funcs[fid].Blocks[blockIdx].Start
}

// Finalize freezes the builder's accumulated state into an immutable
// *Module. The builder itself remains usable afterward but is not
// reset: further calls keep extending the same module, whose slices
// the returned *Module shares (spec §4.8: "the builder remains usable
// and is freed separately").
func (b *Builder) Finalize() *Module {
	mod := b.mod
	return &mod
}
