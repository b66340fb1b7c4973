// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package sem2sir

import (
	"fmt"
	"strconv"

	"golang.org/x/text/encoding/unicode"

	"github.com/semtoolchain/sem/ast4"
	"github.com/semtoolchain/sem/sir"
	"github.com/semtoolchain/sem/vocab"
)

// utf16RoundTrip mirrors the well-formedness check the teacher runs on
// decoded ImageResourceDataEntry strings, applied in the opposite
// direction: a StringUtf8 token's text is already valid UTF-8 (Go's
// string type guarantees it), so the only way it could carry an
// unpaired surrogate is if the Stage-4 producer smuggled one through as
// an escaped code point. Encoding to UTF-16LE and back catches that
// before the literal is baked into a const.struct global.
var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func utf16RoundTrip(s string) error {
	enc := utf16LE.NewEncoder()
	encoded, err := enc.String(s)
	if err != nil {
		return fmt.Errorf("not valid UTF-16-representable text: %w", err)
	}
	dec := utf16LE.NewDecoder()
	back, err := dec.String(encoded)
	if err != nil || back != s {
		return fmt.Errorf("UTF-16 round-trip mismatch")
	}
	return nil
}

// defaultIntType returns the unit's declared @default.int meta type, or
// i32 if the document left it unset (spec §4.7's meta default policy).
func (l *lowering) defaultIntType() vocab.Type {
	if l.doc.DefaultInt != nil {
		return *l.doc.DefaultInt
	}
	return vocab.TypeI32
}

var convOps = map[vocab.Intrinsic]struct {
	op  sir.Opcode
	typ vocab.Type
	src vocab.Type
}{
	vocab.IntrZExtI64FromI32:      {sir.OpZExtI64FromI32, vocab.TypeI64, vocab.TypeI32},
	vocab.IntrSExtI64FromI32:      {sir.OpSExtI64FromI32, vocab.TypeI64, vocab.TypeI32},
	vocab.IntrTruncI32FromI64:     {sir.OpTruncI32FromI64, vocab.TypeI32, vocab.TypeI64},
	vocab.IntrF64FromI32S:         {sir.OpF64FromI32S, vocab.TypeF64, vocab.TypeI32},
	vocab.IntrF32FromI32S:         {sir.OpF32FromI32S, vocab.TypeF32, vocab.TypeI32},
	vocab.IntrTruncSatI32FromF64S: {sir.OpTruncSatI32FromF64S, vocab.TypeI32, vocab.TypeF64},
	vocab.IntrTruncSatI32FromF32S: {sir.OpTruncSatI32FromF32S, vocab.TypeI32, vocab.TypeF32},
	vocab.IntrPtrFromI64:          {sir.OpPtrFromI64, vocab.TypePtr, vocab.TypeI64},
	vocab.IntrI64FromPtr:          {sir.OpI64FromPtr, vocab.TypeI64, vocab.TypePtr},
}

// lowerExpr lowers n into the current function, returning the slot
// holding its value (0 for a void-typed expression) and its type.
// expected carries the type the surrounding context has already
// committed for n (spec §4.9: every expression's type is committed by
// context, never guessed) — vocab.TypeInvalid means the caller imposes
// no constraint, in which case a bare Int literal falls back to
// @default.int. Passing an expected type down to Int is what lets
// e.g. an i64-typed local's initializer be written as a bare literal
// without a document-wide @default.int of i64 breaking every other
// i32 literal in the same unit.
func (l *lowering) lowerExpr(n *ast4.Node, expected vocab.Type) (sir.SlotID, vocab.Type, error) {
	switch n.Kind {
	case vocab.IntrInt:
		v, err := strconv.ParseInt(n.Token("lit").Text, 10, 64)
		if err != nil {
			return 0, 0, errf("sem2sir: Int literal %q: %v", n.Token("lit").Text, err)
		}
		t := expected
		if t == vocab.TypeInvalid {
			t = l.defaultIntType()
		}
		if !t.IsInteger() {
			return 0, 0, errf("sem2sir: Int literal requires an expected integer type, got %s", t)
		}
		dst := l.newSlot()
		op := sir.OpConstI32
		if is64(t) {
			op = sir.OpConstI64
		}
		l.b.Emit(sir.Inst{Op: op, Type: l.sirTypeOf(t), Dst: dst, Args: []sir.Operand{{Kind: sir.OperandImmI64, ImmI64: v}}})
		return dst, t, nil

	case vocab.IntrChar:
		r := []rune(n.Token("lit").Text)
		if len(r) != 1 {
			return 0, 0, errf("sem2sir: Char literal must be exactly one code point, got %q", n.Token("lit").Text)
		}
		dst := l.newSlot()
		l.b.Emit(sir.Inst{Op: sir.OpConstI32, Type: l.sirTypeOf(vocab.TypeI32), Dst: dst, Args: []sir.Operand{{Kind: sir.OperandImmI64, ImmI64: int64(r[0])}}})
		return dst, vocab.TypeI32, nil

	case vocab.IntrF32:
		bits, err := strconv.ParseUint(n.Token("bits").Text, 16, 32)
		if err != nil {
			return 0, 0, errf("sem2sir: F32 literal %q: %v", n.Token("bits").Text, err)
		}
		dst := l.newSlot()
		l.b.Emit(sir.Inst{Op: sir.OpConstF32, Type: l.sirTypeOf(vocab.TypeF32), Dst: dst, Args: []sir.Operand{{Kind: sir.OperandImmF32, ImmF32: uint32(bits)}}})
		return dst, vocab.TypeF32, nil

	case vocab.IntrF64:
		bits, err := strconv.ParseUint(n.Token("bits").Text, 16, 64)
		if err != nil {
			return 0, 0, errf("sem2sir: F64 literal %q: %v", n.Token("bits").Text, err)
		}
		dst := l.newSlot()
		l.b.Emit(sir.Inst{Op: sir.OpConstF64, Type: l.sirTypeOf(vocab.TypeF64), Dst: dst, Args: []sir.Operand{{Kind: sir.OperandImmF64, ImmF64: bits}}})
		return dst, vocab.TypeF64, nil

	case vocab.IntrTrue, vocab.IntrFalse:
		v := int64(0)
		if n.Kind == vocab.IntrTrue {
			v = 1
		}
		dst := l.newSlot()
		l.b.Emit(sir.Inst{Op: sir.OpConstI32, Type: l.sirTypeOf(vocab.TypeBool), Dst: dst, Args: []sir.Operand{{Kind: sir.OperandImmI64, ImmI64: v}}})
		return dst, vocab.TypeBool, nil

	case vocab.IntrNil:
		dst := l.newSlot()
		l.b.Emit(sir.Inst{Op: sir.OpConstI64, Type: l.sirTypeOf(vocab.TypePtr), Dst: dst, Args: []sir.Operand{{Kind: sir.OperandImmI64, ImmI64: 0}}})
		return dst, vocab.TypePtr, nil

	case vocab.IntrUnitVal:
		return 0, vocab.TypeVoid, nil

	case vocab.IntrCStr:
		gid := l.b.Global(fmt.Sprintf("cstr$%d", n.Off), 0, 1, append([]byte(n.Token("lit").Text), 0))
		dst := l.newSlot()
		l.b.Emit(sir.Inst{Op: sir.OpCStr, Type: l.sirTypeOf(vocab.TypeCStr), Dst: dst, Args: []sir.Operand{{Kind: sir.OperandGlobal, Global: gid}}})
		return dst, vocab.TypeCStr, nil

	case vocab.IntrStringUtf8, vocab.IntrBytes:
		raw := []byte(n.Token("lit").Text)
		t := vocab.TypeBytes
		if n.Kind == vocab.IntrStringUtf8 {
			t = vocab.TypeString
			if err := utf16RoundTrip(n.Token("lit").Text); err != nil {
				return 0, 0, errf("sem2sir: StringUtf8 literal: %v", err)
			}
		}
		gid := l.b.Global(fmt.Sprintf("data$%d", n.Off), uint32(len(raw)), 1, raw)
		dst := l.newSlot()
		dst2 := l.newSlot()
		l.b.Emit(sir.Inst{
			Op: sir.OpConstStruct, Type: l.sirTypeOf(t), Dst: dst, Dst2: dst2,
			Args: []sir.Operand{{Kind: sir.OperandGlobal, Global: gid}, {Kind: sir.OperandImmI64, ImmI64: int64(len(raw))}},
		})
		return dst, t, nil

	case vocab.IntrName:
		b, ok := l.fn.locals[n.Token("id").Text]
		if !ok {
			return 0, 0, errf("sem2sir: reference to unknown name %q", n.Token("id").Text)
		}
		return l.readLocal(b), b.typ, nil

	case vocab.IntrParen:
		return l.lowerExpr(n.Child("expr"), expected)

	case vocab.IntrNot:
		if expected != vocab.TypeInvalid && expected != vocab.TypeBool {
			return 0, 0, errf("sem2sir: Not result type bool does not match expected %s", expected)
		}
		s, t, err := l.lowerExpr(n.Child("expr"), vocab.TypeBool)
		if err != nil {
			return 0, 0, err
		}
		if t != vocab.TypeBool {
			return 0, 0, errf("sem2sir: Not requires a bool operand, got %s", t)
		}
		dst := l.newSlot()
		l.b.Emit(sir.Inst{Op: sir.OpBoolNot, Type: l.sirTypeOf(vocab.TypeBool), Dst: dst, Args: []sir.Operand{{Kind: sir.OperandSlot, Slot: s}}})
		return dst, vocab.TypeBool, nil

	case vocab.IntrNeg:
		if expected != vocab.TypeI32 && expected != vocab.TypeI64 {
			return 0, 0, errf("sem2sir: Neg requires an expected type of i32 or i64, got %s", expected)
		}
		s, t, err := l.lowerExpr(n.Child("expr"), expected)
		if err != nil {
			return 0, 0, err
		}
		if t != expected {
			return 0, 0, errf("sem2sir: Neg operand type %s does not match expected %s", t, expected)
		}
		dst := l.newSlot()
		l.b.Emit(sir.Inst{Op: negOpFor(t), Type: l.sirTypeOf(t), Dst: dst, Args: []sir.Operand{{Kind: sir.OperandSlot, Slot: s}}})
		return dst, t, nil

	case vocab.IntrBitNot:
		if expected != vocab.TypeI32 && expected != vocab.TypeI64 {
			return 0, 0, errf("sem2sir: BitNot requires an expected type of i32 or i64, got %s", expected)
		}
		s, t, err := l.lowerExpr(n.Child("expr"), expected)
		if err != nil {
			return 0, 0, err
		}
		if t != expected {
			return 0, 0, errf("sem2sir: BitNot operand type %s does not match expected %s", t, expected)
		}
		dst := l.newSlot()
		l.b.Emit(sir.Inst{Op: notOpFor(t), Type: l.sirTypeOf(t), Dst: dst, Args: []sir.Operand{{Kind: sir.OperandSlot, Slot: s}}})
		return dst, t, nil

	case vocab.IntrAddrOf:
		if expected != vocab.TypeInvalid && expected != vocab.TypePtr {
			return 0, 0, errf("sem2sir: AddrOf requires expected type ptr, got %s", expected)
		}
		target := n.Child("expr")
		if target.Kind != vocab.IntrName {
			return 0, 0, errf("sem2sir: AddrOf only supports a local name operand")
		}
		b, ok := l.fn.locals[target.Token("id").Text]
		if !ok {
			return 0, 0, errf("sem2sir: AddrOf of unknown name %q", target.Token("id").Text)
		}
		if !b.slotBacked {
			return 0, 0, errf("sem2sir: cannot take the address of %q (not slot-backed)", target.Token("id").Text)
		}
		return b.slot, vocab.TypePtr, nil

	case vocab.IntrDeref:
		s, t, err := l.lowerExpr(n.Child("expr"), vocab.TypePtr)
		if err != nil {
			return 0, 0, err
		}
		if t != vocab.TypePtr {
			return 0, 0, errf("sem2sir: Deref requires a ptr operand, got %s", t)
		}
		pointee := expected
		if pointee == vocab.TypeInvalid {
			pointee = l.defaultPtrPointee()
		}
		dst := l.newSlot()
		l.b.Emit(sir.Inst{Op: loadOpFor(pointee), Type: l.sirTypeOf(pointee), Dst: dst, Args: []sir.Operand{{Kind: sir.OperandSlot, Slot: s}}})
		return dst, pointee, nil

	case vocab.IntrBin:
		return l.lowerBin(n, expected)

	case vocab.IntrCall:
		return l.lowerCall(n, expected)

	case vocab.IntrMatch:
		if err := l.lowerMatch(n); err != nil {
			return 0, 0, err
		}
		return 0, vocab.TypeVoid, nil
	}

	if cv, ok := convOps[n.Kind]; ok {
		if expected != vocab.TypeInvalid && expected != cv.typ {
			return 0, 0, errf("sem2sir: %s result type %s does not match expected %s", n.Kind, cv.typ, expected)
		}
		s, srcT, err := l.lowerExpr(n.Child("value"), cv.src)
		if err != nil {
			return 0, 0, err
		}
		if srcT != cv.src {
			return 0, 0, errf("sem2sir: %s operand type %s does not match required %s", n.Kind, srcT, cv.src)
		}
		dst := l.newSlot()
		l.b.Emit(sir.Inst{Op: cv.op, Type: l.sirTypeOf(cv.typ), Dst: dst, Args: []sir.Operand{{Kind: sir.OperandSlot, Slot: s}}})
		return dst, cv.typ, nil
	}

	return 0, 0, errf("sem2sir: unsupported expression node %s", n.Kind)
}

func negOpFor(t vocab.Type) sir.Opcode {
	if t == vocab.TypeI64 || t == vocab.TypeU64 {
		return sir.OpI64Neg
	}
	return sir.OpI32Neg
}

func notOpFor(t vocab.Type) sir.Opcode {
	if t == vocab.TypeI64 || t == vocab.TypeU64 {
		return sir.OpI64Not
	}
	return sir.OpI32Not
}

func is64(t vocab.Type) bool { return t == vocab.TypeI64 || t == vocab.TypeU64 || t == vocab.TypePtr }

var arithOps = map[vocab.Op]struct{ i32, i64 sir.Opcode }{
	vocab.OpAdd:    {sir.OpI32Add, sir.OpI64Add},
	vocab.OpSub:    {sir.OpI32Sub, sir.OpI64Sub},
	vocab.OpMul:    {sir.OpI32Mul, sir.OpI64Mul},
	vocab.OpDiv:    {sir.OpI32DivS, sir.OpI64DivS},
	vocab.OpRem:    {sir.OpI32RemU, sir.OpI64RemU},
	vocab.OpShl:    {sir.OpI32Shl, sir.OpI64Shl},
	vocab.OpShr:    {sir.OpI32Shr, sir.OpI64Shr},
	vocab.OpBitAnd: {sir.OpI32And, sir.OpI64And},
	vocab.OpBitOr:  {sir.OpI32Or, sir.OpI64Or},
	vocab.OpBitXor: {sir.OpI32Xor, sir.OpI64Xor},
}

var cmpOps = map[vocab.Op]struct{ i32, i64 sir.Opcode }{
	vocab.OpEq:  {sir.OpI32CmpEq, sir.OpI64CmpEq},
	vocab.OpNe:  {sir.OpI32CmpNe, sir.OpI64CmpNe},
	vocab.OpLt:  {sir.OpI32CmpLtS, sir.OpI64CmpLtS},
	vocab.OpLte: {sir.OpI32CmpLeS, sir.OpI64CmpLeS},
	vocab.OpGt:  {sir.OpI32CmpGtS, sir.OpI64CmpGtS},
	vocab.OpGte: {sir.OpI32CmpGeS, sir.OpI64CmpGeS},
}

func (l *lowering) lowerBin(n *ast4.Node, expected vocab.Type) (sir.SlotID, vocab.Type, error) {
	op, err := vocab.ParseOp(n.Token("op_tok").Text)
	if err != nil {
		return 0, 0, errf("sem2sir: %v", err)
	}

	if op == vocab.OpAssign {
		return l.lowerAssign(n)
	}
	if op.IsShortCircuit() {
		return l.lowerShortCircuit(n, op)
	}

	if op.IsArithmeticOrBitwise() {
		// Numeric width is committed by the expected result type, not
		// guessed from whichever operand happens to be concretely typed
		// (spec §4.9): both operands are lowered against that same
		// expected type, so a bare int literal on either side adopts it
		// instead of falling back to @default.int.
		if expected != vocab.TypeI32 && expected != vocab.TypeI64 {
			return 0, 0, errf("sem2sir: %s requires an expected type of i32 or i64, got %s", op, expected)
		}
		lv, lt, err := l.lowerExpr(n.Child("lhs"), expected)
		if err != nil {
			return 0, 0, err
		}
		rv, rt, err := l.lowerExpr(n.Child("rhs"), expected)
		if err != nil {
			return 0, 0, err
		}
		if lt != expected || rt != expected {
			return 0, 0, errf("sem2sir: %s operands must match expected type %s, got %s and %s", op, expected, lt, rt)
		}
		pair := arithOps[op]
		opc := pair.i32
		if is64(expected) {
			opc = pair.i64
		}
		dst := l.newSlot()
		l.b.Emit(sir.Inst{Op: opc, Type: l.sirTypeOf(expected), Dst: dst, Args: []sir.Operand{
			{Kind: sir.OperandSlot, Slot: lv}, {Kind: sir.OperandSlot, Slot: rv},
		}})
		return dst, expected, nil
	}
	if op.IsComparison() {
		if expected != vocab.TypeInvalid && expected != vocab.TypeBool {
			return 0, 0, errf("sem2sir: %s result type bool does not match expected %s", op, expected)
		}
		// No operand has an a-priori expected type here, so the lhs is
		// lowered unconstrained (a bare literal falls back to
		// @default.int) and its resolved type then commits the rhs's
		// expected type, the same "first operand commits, second
		// conforms" rule lowerForInt and lowerAssign apply.
		lv, lt, err := l.lowerExpr(n.Child("lhs"), vocab.TypeInvalid)
		if err != nil {
			return 0, 0, err
		}
		if lt != vocab.TypeI32 && lt != vocab.TypeI64 {
			return 0, 0, errf("sem2sir: %s operands must be i32 or i64, got %s", op, lt)
		}
		rv, rt, err := l.lowerExpr(n.Child("rhs"), lt)
		if err != nil {
			return 0, 0, err
		}
		if rt != lt {
			return 0, 0, errf("sem2sir: %s operand type mismatch: %s vs %s", op, lt, rt)
		}
		pair := cmpOps[op]
		opc := pair.i32
		if is64(lt) {
			opc = pair.i64
		}
		dst := l.newSlot()
		l.b.Emit(sir.Inst{Op: opc, Type: l.sirTypeOf(vocab.TypeBool), Dst: dst, Args: []sir.Operand{
			{Kind: sir.OperandSlot, Slot: lv}, {Kind: sir.OperandSlot, Slot: rv},
		}})
		return dst, vocab.TypeBool, nil
	}
	return 0, 0, errf("sem2sir: unsupported binary operator %s", op)
}

// lowerAssign handles `lhs = rhs`, lhs being either a Name (a local) or
// a Deref (a store through a pointer). The store type is committed by
// the lvalue, not by any outer expected type, so rhs is lowered against
// whatever type lhs names (spec §4.9's "assignment commits its own
// type"), letting a bare literal rhs adopt the lvalue's type directly.
func (l *lowering) lowerAssign(n *ast4.Node) (sir.SlotID, vocab.Type, error) {
	lhs := n.Child("lhs")
	switch lhs.Kind {
	case vocab.IntrName:
		b, ok := l.fn.locals[lhs.Token("id").Text]
		if !ok {
			return 0, 0, errf("sem2sir: assignment to unknown name %q", lhs.Token("id").Text)
		}
		rv, rt, err := l.lowerExpr(n.Child("rhs"), b.typ)
		if err != nil {
			return 0, 0, err
		}
		if b.typ != rt {
			return 0, 0, errf("sem2sir: cannot assign %s into %q of type %s", rt, lhs.Token("id").Text, b.typ)
		}
		l.assignLocal(b, rv)
		return rv, rt, nil
	case vocab.IntrDeref:
		addr, at, err := l.lowerExpr(lhs.Child("expr"), vocab.TypePtr)
		if err != nil {
			return 0, 0, err
		}
		if at != vocab.TypePtr {
			return 0, 0, errf("sem2sir: assignment through Deref requires a ptr operand, got %s", at)
		}
		pointee := l.defaultPtrPointee()
		rv, rt, err := l.lowerExpr(n.Child("rhs"), pointee)
		if err != nil {
			return 0, 0, err
		}
		if pointee != rt {
			return 0, 0, errf("sem2sir: cannot store %s through ptr(%s)", rt, pointee)
		}
		l.b.Emit(sir.Inst{Op: storeOpFor(pointee), Args: []sir.Operand{
			{Kind: sir.OperandSlot, Slot: addr}, {Kind: sir.OperandSlot, Slot: rv},
		}})
		return rv, rt, nil
	}
	return 0, 0, errf("sem2sir: assignment target must be a Name or Deref, got %s", lhs.Kind)
}

// lowerShortCircuit lowers core.bool.and_sc/or_sc via a real branch
// diamond so the right-hand side is genuinely skipped when short
// circuiting applies, rather than always evaluated (spec §4.9).
func (l *lowering) lowerShortCircuit(n *ast4.Node, op vocab.Op) (sir.SlotID, vocab.Type, error) {
	lv, lt, err := l.lowerExpr(n.Child("lhs"), vocab.TypeBool)
	if err != nil {
		return 0, 0, err
	}
	if lt != vocab.TypeBool {
		return 0, 0, errf("sem2sir: %s requires bool operands, got %s", op, lt)
	}
	result := l.newSlot()
	l.b.Emit(sir.Inst{Op: sir.OpI32Add, Type: l.sirTypeOf(vocab.TypeBool), Dst: result, Args: []sir.Operand{
		{Kind: sir.OperandSlot, Slot: lv}, {Kind: sir.OperandImmI64, ImmI64: 0},
	}})

	condBr := l.b.EmitCondBr(lv)
	l.b.EndBlock()

	rhsIdx := l.b.StartBlock("sc_rhs")
	rv, rt, err := l.lowerExpr(n.Child("rhs"), vocab.TypeBool)
	if err != nil {
		return 0, 0, err
	}
	if rt != vocab.TypeBool {
		return 0, 0, errf("sem2sir: %s requires bool operands, got %s", op, rt)
	}
	l.b.Emit(sir.Inst{Op: sir.OpI32Add, Type: l.sirTypeOf(vocab.TypeBool), Dst: result, Args: []sir.Operand{
		{Kind: sir.OperandSlot, Slot: rv}, {Kind: sir.OperandImmI64, ImmI64: 0},
	}})
	rhsBr := l.b.EmitBr()
	l.b.EndBlock()

	mergeIdx := l.b.StartBlock("sc_merge")

	if op == vocab.OpBoolAndSC {
		l.b.PatchCondBr(condBr, l.b.BlockStart(l.fn.fid, rhsIdx), l.b.BlockStart(l.fn.fid, mergeIdx))
	} else {
		l.b.PatchCondBr(condBr, l.b.BlockStart(l.fn.fid, mergeIdx), l.b.BlockStart(l.fn.fid, rhsIdx))
	}
	l.b.PatchBr(rhsBr, l.b.BlockStart(l.fn.fid, mergeIdx))

	return result, vocab.TypeBool, nil
}

// lowerCall lowers a Call expression. expected is validated against the
// callee's declared return type up front (spec §4.9), and each argument
// is lowered with that parameter's own declared type as its expected,
// so a bare int-literal argument adopts the parameter's type instead of
// @default.int.
func (l *lowering) lowerCall(n *ast4.Node, expected vocab.Type) (sir.SlotID, vocab.Type, error) {
	callee := n.Child("callee")
	if callee.Kind != vocab.IntrName {
		return 0, 0, errf("sem2sir: Call callee must be a Name referencing a proc")
	}
	pi, ok := l.procs[callee.Token("id").Text]
	if !ok {
		return 0, 0, errf("sem2sir: call to unknown proc %q", callee.Token("id").Text)
	}
	if expected != vocab.TypeInvalid && pi.ret != expected {
		return 0, 0, errf("sem2sir: call to %q returns %s, expected %s", pi.name, pi.ret, expected)
	}

	var argNodes []*ast4.Node
	if args := n.Child("args"); args != nil {
		argNodes = args.Array("items")
	}
	if len(argNodes) != len(pi.params) {
		return 0, 0, errf("sem2sir: call to %q passes %d argument(s), want %d", pi.name, len(argNodes), len(pi.params))
	}

	argOperands := make([]sir.Operand, 0, len(argNodes)+1)
	if pi.extern {
		argOperands = append(argOperands, sir.Operand{Kind: sir.OperandSymbol, Sym: pi.sym})
	} else {
		argOperands = append(argOperands, sir.Operand{Kind: sir.OperandFunc, Func: pi.fid})
	}
	for i, an := range argNodes {
		s, t, err := l.lowerExpr(an, pi.params[i].typ)
		if err != nil {
			return 0, 0, err
		}
		if t != pi.params[i].typ {
			return 0, 0, errf("sem2sir: call to %q: argument %d is %s, want %s", pi.name, i, t, pi.params[i].typ)
		}
		argOperands = append(argOperands, sir.Operand{Kind: sir.OperandSlot, Slot: s})
	}

	var dst sir.SlotID
	if pi.ret != vocab.TypeVoid {
		dst = l.newSlot()
	}
	opc := sir.OpCall
	if pi.extern {
		opc = sir.OpCallIndirect
	}
	l.b.Emit(sir.Inst{Op: opc, Type: l.sirTypeOf(pi.ret), Dst: dst, Args: argOperands})
	return dst, pi.ret, nil
}
