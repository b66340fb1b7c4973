// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package sir implements the Structured IR module model: a
// structurally-typed, control-flow-graph-shaped instruction set with
// deduplicated types, extern symbols, globals and functions. A Module
// is produced by a Builder and is immutable once Finalize returns it.
package sir

import "github.com/semtoolchain/sem/vocab"

// TypeKind classifies an entry in the module's type table.
type TypeKind uint8

const (
	TypeKindPrim TypeKind = iota
	TypeKindPtr
	TypeKindFn
)

// TypeID indexes into Module.Types. 0 is never a valid id.
type TypeID uint32

// Type is one entry of the module's deduplicated type table.
type Type struct {
	Kind   TypeKind
	Prim   vocab.Type // valid when Kind == TypeKindPrim
	Of     TypeID     // pointee, valid when Kind == TypeKindPtr
	Params []TypeID   // valid when Kind == TypeKindFn
	Ret    TypeID     // valid when Kind == TypeKindFn
}

// SymbolID indexes into Module.Symbols.
type SymbolID uint32

// Symbol is an extern function declaration: a name and a function
// signature with no body.
type Symbol struct {
	Name string
	Sig  TypeID
}

// GlobalID indexes into Module.Globals.
type GlobalID uint32

// Global is a named byte region with optional initializer contents.
type Global struct {
	Name  string
	Size  uint32
	Align uint32
	Init  []byte // nil when uninitialized
}

// FuncID indexes into Module.Funcs. Valid ids are 1-based; 0 means "no
// function" and is used as the zero value of Module.Entry before
// SetEntry is called.
type FuncID uint32

// Linkage controls a function's visibility in the emitted text form.
type Linkage uint8

const (
	LinkageLocal Linkage = iota
	LinkagePublic
)

func (l Linkage) String() string {
	if l == LinkagePublic {
		return "public"
	}
	return "local"
}

// Func is a lowered function: a signature, a value-slot count and a
// flat instruction stream addressed by 0-based ip. Extern procs have
// Insts == nil and are represented purely through their Sig and Name.
type Func struct {
	Name     string
	Sig      TypeID
	Extern   bool
	Linkage  Linkage
	NumSlots uint32
	Insts    []Inst
	Blocks   []Block
}

// Block is a labeled run of instruction ips, always ending on a
// terminator opcode (enforced by the validator, not the builder).
type Block struct {
	Name string
	// Start and End are the half-open [Start, End) ip range of this
	// block's instructions within its Func's Insts slice.
	Start, End int
}

// SlotID names a per-function value slot. Slots are not reused across
// functions; slot 0 is a reserved "no value" sentinel.
type SlotID uint32

// SrcLoc is optional source mapping carried by an instruction, set via
// Builder.SetSrc before an emit call.
type SrcLoc struct {
	NodeID int
	Line   int
	Valid  bool
}

// Inst is a single SIR instruction: an opcode, up to two destination
// slots, and an operand block drawn from Module's pooled arrays (spec
// §9's "builder pool relocation" — interior indices, not raw pointers,
// since Go has no pointer arithmetic to rebase).
type Inst struct {
	Op   Opcode
	Type TypeID // result type, 0 if the opcode has no result
	Dst  SlotID // 0 if the opcode has no destination slot
	Dst2 SlotID // second destination, used by a handful of opcodes
	Args []Operand
	Src  SrcLoc
}

// OperandKind tags the union carried by Operand.
type OperandKind uint8

const (
	OperandSlot OperandKind = iota
	OperandImmI64
	OperandImmF32
	OperandImmF64
	OperandSymbol
	OperandGlobal
	OperandFunc
	OperandIP     // branch target
	OperandBytes  // inline byte blob (const.struct / bytes literal backing)
	OperandString // inline string (names, case literals formatted as text)
)

// Operand is a single tagged operand of an instruction's Args list.
type Operand struct {
	Kind   OperandKind
	Slot   SlotID
	ImmI64 int64
	ImmF32 uint32 // raw bit pattern
	ImmF64 uint64 // raw bit pattern
	Sym    SymbolID
	Global GlobalID
	Func   FuncID
	IP     int
	Bytes  []byte
	Str    string
}

// Module is an immutable SIR module, the output of Builder.Finalize.
type Module struct {
	Features []string
	Unit     string
	Types    []Type
	Symbols  []Symbol
	Globals  []Global
	Funcs    []Func // index 0 unused; FuncID is 1-based
	Entry    FuncID
}

func (m *Module) Func(id FuncID) *Func {
	if id == 0 || int(id) >= len(m.Funcs) {
		return nil
	}
	return &m.Funcs[id]
}

func (m *Module) Type(id TypeID) *Type {
	if id == 0 || int(id) >= len(m.Types) {
		return nil
	}
	return &m.Types[id]
}
