// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package sem2sir

import (
	"github.com/semtoolchain/sem/sir"
	"github.com/semtoolchain/sem/vocab"
)

// newSlot allocates a fresh value slot in the current function.
func (l *lowering) newSlot() sir.SlotID {
	s := l.fn.nextSlot
	l.fn.nextSlot++
	return s
}

func sizeOf(t vocab.Type) int64 {
	switch t {
	case vocab.TypeU8:
		return 1
	case vocab.TypeI32, vocab.TypeU32, vocab.TypeF32:
		return 4
	default:
		return 8 // i64/u64/f64/ptr
	}
}

func loadOpFor(t vocab.Type) sir.Opcode {
	switch t {
	case vocab.TypeI32:
		return sir.OpLoadI32
	case vocab.TypeI64:
		return sir.OpLoadI64
	case vocab.TypeU8:
		return sir.OpLoadU8
	case vocab.TypeF64:
		return sir.OpLoadF64
	case vocab.TypePtr:
		return sir.OpLoadPtr
	}
	return sir.OpInvalid
}

func storeOpFor(t vocab.Type) sir.Opcode {
	switch t {
	case vocab.TypeI32:
		return sir.OpStoreI32
	case vocab.TypeI64:
		return sir.OpStoreI64
	case vocab.TypeU8:
		return sir.OpStoreU8
	case vocab.TypeF64:
		return sir.OpStoreF64
	case vocab.TypePtr:
		return sir.OpStorePtr
	}
	return sir.OpInvalid
}

// declareLocal binds name to initSlot's value. Slot-backed types get an
// alloca and an initializing store so later AddrOf/assignment has a
// stable address; direct-value types simply adopt the slot that already
// holds their value (spec §4.9's "local bindings").
func (l *lowering) declareLocal(name string, typ vocab.Type, initSlot sir.SlotID) {
	l.stats.LocalsBound++
	if !typ.SupportsLoadStore() {
		l.fn.locals[name] = &localBinding{typ: typ, slot: initSlot}
		return
	}
	addr := l.newSlot()
	ptrT := l.b.PtrOf(l.internType(typ))
	l.b.Emit(sir.Inst{Op: sir.OpAlloca, Type: ptrT, Dst: addr, Args: []sir.Operand{{Kind: sir.OperandImmI64, ImmI64: sizeOf(typ)}}})
	l.b.Emit(sir.Inst{Op: storeOpFor(typ), Args: []sir.Operand{
		{Kind: sir.OperandSlot, Slot: addr}, {Kind: sir.OperandSlot, Slot: initSlot},
	}})
	l.fn.locals[name] = &localBinding{typ: typ, slotBacked: true, slot: addr}
}

// readLocal loads a slot-backed local's current value into a fresh
// slot, or returns a direct binding's slot unchanged.
func (l *lowering) readLocal(b *localBinding) sir.SlotID {
	if !b.slotBacked {
		return b.slot
	}
	dst := l.newSlot()
	l.b.Emit(sir.Inst{Op: loadOpFor(b.typ), Dst: dst, Args: []sir.Operand{{Kind: sir.OperandSlot, Slot: b.slot}}})
	return dst
}

// assignLocal writes rhsSlot into a local binding: a real store for
// slot-backed locals, a rebind (the local now refers to rhsSlot) for
// direct-value locals, which have no addressable storage.
func (l *lowering) assignLocal(b *localBinding, rhsSlot sir.SlotID) {
	if !b.slotBacked {
		b.slot = rhsSlot
		return
	}
	l.b.Emit(sir.Inst{Op: storeOpFor(b.typ), Args: []sir.Operand{
		{Kind: sir.OperandSlot, Slot: b.slot}, {Kind: sir.OperandSlot, Slot: rhsSlot},
	}})
}
