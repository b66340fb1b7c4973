// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package sem2sir

import (
	"github.com/semtoolchain/sem/ast4"
	"github.com/semtoolchain/sem/sir"
	"github.com/semtoolchain/sem/vocab"
)

// lowerProc lowers one non-extern Proc's body into its already-declared
// sir.Func (spec §4.9).
func (l *lowering) lowerProc(item *ast4.Node, pi *procInfo) error {
	l.fn = &fnCtx{
		fid:    pi.fid,
		locals: map[string]*localBinding{},
		fnRet:  pi.ret,
	}
	l.fn.nextSlot = 1

	l.b.Begin(pi.name) // re-select pi.fid as the current function
	l.b.SetSig(pi.fid, pi.sig)
	if pi.name == "main" {
		l.b.SetEntry(pi.fid)
		l.b.SetLinkage(pi.fid, sir.LinkagePublic)
	}

	// Params occupy slots 1..len(params) by the interpreter's calling
	// convention; bind each one, giving slot-backed types a real address
	// so a later AddrOf/assignment works.
	for i, p := range pi.params {
		incoming := sir.SlotID(i + 1)
		l.fn.nextSlot = incoming + 1
		if p.typ.SupportsLoadStore() {
			l.declareLocal(p.name, p.typ, incoming)
		} else if p.name != "" {
			l.fn.locals[p.name] = &localBinding{typ: p.typ, slot: incoming}
		}
	}

	l.b.StartBlock("entry")
	l.fn.blockIsOpen = true
	body := item.Child("body")
	if body == nil {
		return errf("sem2sir: proc %q has no body", pi.name)
	}
	if err := l.lowerBlockItems(body.Array("items")); err != nil {
		return err
	}
	l.closeWithImplicitReturn(pi)

	l.b.SetValueCount(pi.fid, uint32(l.fn.nextSlot))
	l.fn = nil
	return nil
}

// closeWithImplicitReturn terminates the proc's current block if no
// statement already did (a fallthrough return for void procs).
func (l *lowering) closeWithImplicitReturn(pi *procInfo) {
	if l.blockOpen() {
		if pi.ret == vocab.TypeVoid {
			l.b.Emit(sir.Inst{Op: sir.OpTermRet})
		} else {
			// Falling off the end of a non-void proc with no Return is not
			// rejected: the block is closed with a const.i32 zero return,
			// whatever the declared return type, so the module still validates.
			zero := l.newSlot()
			l.b.Emit(sir.Inst{Op: sir.OpConstI32, Dst: zero, Args: []sir.Operand{{Kind: sir.OperandImmI64, ImmI64: 0}}})
			l.b.Emit(sir.Inst{Op: sir.OpTermRetVal, Args: []sir.Operand{{Kind: sir.OperandSlot, Slot: zero}}})
		}
		l.b.EndBlock()
	}
}

// blockOpen reports whether the builder currently has an open block
// with no terminator yet — tracked indirectly since Builder doesn't
// expose its curBlock state; sem2sir always pairs StartBlock/EndBlock
// itself and tracks openness locally.
func (l *lowering) blockOpen() bool { return l.fn.blockIsOpen }

func (l *lowering) lowerBlockItems(items []*ast4.Node) error {
	for _, it := range items {
		if !l.fn.blockIsOpen {
			// Dead code after a terminating statement (Return/Break/
			// Continue) in the same block; later AST items are simply
			// unreachable, matching how the teacher's own fallthrough
			// switches silently drop unreachable cases.
			return nil
		}
		if err := l.lowerStmt(it); err != nil {
			return err
		}
	}
	return nil
}

func (l *lowering) lowerStmt(n *ast4.Node) error {
	switch n.Kind {
	case vocab.IntrBlock:
		return l.lowerBlockItems(n.Array("items"))

	case vocab.IntrExprStmt:
		_, _, err := l.lowerExpr(n.Child("expr"), vocab.TypeInvalid)
		return err

	case vocab.IntrVar:
		return l.lowerVar(n)

	case vocab.IntrVarPat:
		return l.lowerVarPat(n)

	case vocab.IntrReturn:
		return l.lowerReturn(n)

	case vocab.IntrIf:
		return l.lowerIf(n)

	case vocab.IntrWhile:
		return l.lowerWhile(n)

	case vocab.IntrLoop:
		return l.lowerLoop(n)

	case vocab.IntrDoWhile:
		return l.lowerDoWhile(n)

	case vocab.IntrFor:
		return l.lowerFor(n)

	case vocab.IntrForInt:
		return l.lowerForInt(n)

	case vocab.IntrBreak:
		if len(l.fn.loops) == 0 {
			return errf("sem2sir: Break outside of any loop")
		}
		top := len(l.fn.loops) - 1
		br := l.b.EmitBr()
		l.fn.loops[top].breakBrs = append(l.fn.loops[top].breakBrs, br)
		l.fn.blockIsOpen = false
		l.b.EndBlock()
		return nil

	case vocab.IntrContinue:
		if len(l.fn.loops) == 0 {
			return errf("sem2sir: Continue outside of any loop")
		}
		top := len(l.fn.loops) - 1
		br := l.b.EmitBr()
		l.fn.loops[top].continueBrs = append(l.fn.loops[top].continueBrs, br)
		l.fn.blockIsOpen = false
		l.b.EndBlock()
		return nil

	case vocab.IntrMatch:
		return l.lowerMatch(n)
	}
	return errf("sem2sir: unsupported statement node %s", n.Kind)
}

// patchLoopExits patches every Break/Continue branch recorded against
// loop to the now-known continue and exit targets.
func (l *lowering) patchLoopExits(loop loopCtx, continueTarget, exitTarget int) {
	for _, br := range loop.breakBrs {
		l.b.PatchBr(br, exitTarget)
	}
	for _, br := range loop.continueBrs {
		l.b.PatchBr(br, continueTarget)
	}
}

func (l *lowering) lowerVar(n *ast4.Node) error {
	typeNode := n.Child("type")
	t, err := typeFromRef(typeNode)
	if err != nil {
		return err
	}
	initSlot, initT, err := l.lowerExpr(n.Child("init"), t)
	if err != nil {
		return err
	}
	if initT != t {
		return errf("sem2sir: Var %q declared %s but initialized with %s", n.Token("name").Text, t, initT)
	}
	l.declareLocal(n.Token("name").Text, t, initSlot)
	return nil
}

func (l *lowering) lowerVarPat(n *ast4.Node) error {
	typeNode := n.Child("type")
	t, err := typeFromRef(typeNode)
	if err != nil {
		return err
	}
	initSlot, initT, err := l.lowerExpr(n.Child("init"), t)
	if err != nil {
		return err
	}
	if initT != t {
		return errf("sem2sir: VarPat declared %s but initialized with %s", t, initT)
	}
	pat := n.Child("pat")
	switch pat.Kind {
	case vocab.IntrPatBind:
		l.declareLocal(pat.Token("name").Text, t, initSlot)
	case vocab.IntrPatWild:
		// value intentionally discarded
	default:
		return errf("sem2sir: VarPat only supports PatBind or PatWild, got %s", pat.Kind)
	}
	return nil
}

func (l *lowering) lowerReturn(n *ast4.Node) error {
	if n.IsNull("value") {
		if l.fn.fnRet != vocab.TypeVoid {
			return errf("sem2sir: Return with no value in a proc returning %s", l.fn.fnRet)
		}
		l.b.Emit(sir.Inst{Op: sir.OpTermRet})
	} else {
		s, t, err := l.lowerExpr(n.Child("value"), l.fn.fnRet)
		if err != nil {
			return err
		}
		if t != l.fn.fnRet {
			return errf("sem2sir: Return(%s) in a proc returning %s", t, l.fn.fnRet)
		}
		l.b.Emit(sir.Inst{Op: sir.OpTermRetVal, Args: []sir.Operand{{Kind: sir.OperandSlot, Slot: s}}})
	}
	l.fn.blockIsOpen = false
	l.b.EndBlock()
	return nil
}

func (l *lowering) lowerIf(n *ast4.Node) error {
	cond, ct, err := l.lowerExpr(n.Child("cond"), vocab.TypeBool)
	if err != nil {
		return err
	}
	if ct != vocab.TypeBool {
		return errf("sem2sir: If condition must be bool, got %s", ct)
	}
	condBr := l.b.EmitCondBr(cond)
	l.b.EndBlock()

	thenIdx := l.b.StartBlock("if_then")
	l.fn.blockIsOpen = true
	if err := l.lowerStmt(n.Child("then")); err != nil {
		return err
	}
	thenFellThrough := l.fn.blockIsOpen
	var thenBr int
	if thenFellThrough {
		thenBr = l.b.EmitBr()
		l.b.EndBlock()
	}

	elseNode := n.Child("else")
	elseIdx := thenIdx
	elseFellThrough := false
	var elseBr int
	if elseNode != nil {
		elseIdx = l.b.StartBlock("if_else")
		l.fn.blockIsOpen = true
		if err := l.lowerStmt(elseNode); err != nil {
			return err
		}
		elseFellThrough = l.fn.blockIsOpen
		if elseFellThrough {
			elseBr = l.b.EmitBr()
			l.b.EndBlock()
		}
	}

	mergeIdx := l.b.StartBlock("if_merge")
	if elseNode != nil {
		l.b.PatchCondBr(condBr, l.b.BlockStart(l.fn.fid, thenIdx), l.b.BlockStart(l.fn.fid, elseIdx))
	} else {
		l.b.PatchCondBr(condBr, l.b.BlockStart(l.fn.fid, thenIdx), l.b.BlockStart(l.fn.fid, mergeIdx))
	}
	if thenFellThrough {
		l.b.PatchBr(thenBr, l.b.BlockStart(l.fn.fid, mergeIdx))
	}
	if elseNode != nil && elseFellThrough {
		l.b.PatchBr(elseBr, l.b.BlockStart(l.fn.fid, mergeIdx))
	}
	l.fn.blockIsOpen = true

	// The implicit else (no elseNode) always reaches merge directly via
	// condBr's false edge, so merge is unreachable only when an explicit
	// else is present and neither arm falls through (e.g. both Return).
	mergeReachable := thenFellThrough || elseNode == nil || elseFellThrough
	if !mergeReachable {
		l.b.Emit(sir.Inst{Op: sir.OpTermRet})
		l.fn.blockIsOpen = false
		l.b.EndBlock()
	}
	return nil
}

func (l *lowering) lowerWhile(n *ast4.Node) error {
	headerBr := l.b.EmitBr()
	l.b.EndBlock()

	headerIdx := l.b.StartBlock("while_header")
	cond, ct, err := l.lowerExpr(n.Child("cond"), vocab.TypeBool)
	if err != nil {
		return err
	}
	if ct != vocab.TypeBool {
		return errf("sem2sir: While condition must be bool, got %s", ct)
	}
	condBr := l.b.EmitCondBr(cond)
	l.b.EndBlock()
	l.b.PatchBr(headerBr, l.b.BlockStart(l.fn.fid, headerIdx))

	bodyIdx := l.b.StartBlock("while_body")
	l.fn.blockIsOpen = true
	l.fn.loops = append(l.fn.loops, loopCtx{})
	if err := l.lowerStmt(n.Child("body")); err != nil {
		return err
	}
	var bodyBr int
	bodyFellThrough := l.fn.blockIsOpen
	if bodyFellThrough {
		bodyBr = l.b.EmitBr()
		l.b.EndBlock()
	}

	exitIdx := l.b.StartBlock("while_exit")
	headerStart := l.b.BlockStart(l.fn.fid, headerIdx)
	exitStart := l.b.BlockStart(l.fn.fid, exitIdx)
	l.b.PatchCondBr(condBr, l.b.BlockStart(l.fn.fid, bodyIdx), exitStart)
	if bodyFellThrough {
		l.b.PatchBr(bodyBr, headerStart)
	}
	loop := l.fn.loops[len(l.fn.loops)-1]
	l.fn.loops = l.fn.loops[:len(l.fn.loops)-1]
	l.patchLoopExits(loop, headerStart, exitStart)
	l.fn.blockIsOpen = true
	return nil
}

func (l *lowering) lowerLoop(n *ast4.Node) error {
	headerBr := l.b.EmitBr()
	l.b.EndBlock()

	headerIdx := l.b.StartBlock("loop_header")
	headerStart := l.b.BlockStart(l.fn.fid, headerIdx)
	l.fn.blockIsOpen = true
	l.fn.loops = append(l.fn.loops, loopCtx{})
	if err := l.lowerStmt(n.Child("body")); err != nil {
		return err
	}
	var bodyBr int
	bodyFellThrough := l.fn.blockIsOpen
	if bodyFellThrough {
		bodyBr = l.b.EmitBr()
		l.b.EndBlock()
	}

	exitIdx := l.b.StartBlock("loop_exit")
	exitStart := l.b.BlockStart(l.fn.fid, exitIdx)
	l.b.PatchBr(headerBr, headerStart)
	if bodyFellThrough {
		l.b.PatchBr(bodyBr, headerStart)
	}
	loop := l.fn.loops[len(l.fn.loops)-1]
	l.fn.loops = l.fn.loops[:len(l.fn.loops)-1]
	l.patchLoopExits(loop, headerStart, exitStart)
	l.fn.blockIsOpen = true
	return nil
}

func (l *lowering) lowerDoWhile(n *ast4.Node) error {
	headerBr := l.b.EmitBr()
	l.b.EndBlock()

	bodyIdx := l.b.StartBlock("dowhile_body")
	l.fn.blockIsOpen = true
	l.b.PatchBr(headerBr, l.b.BlockStart(l.fn.fid, bodyIdx))
	l.fn.loops = append(l.fn.loops, loopCtx{})
	if err := l.lowerStmt(n.Child("body")); err != nil {
		return err
	}
	var bodyBr int
	bodyFellThrough := l.fn.blockIsOpen
	if bodyFellThrough {
		bodyBr = l.b.EmitBr()
		l.b.EndBlock()
	}

	condIdx := l.b.StartBlock("dowhile_cond")
	condStart := l.b.BlockStart(l.fn.fid, condIdx)
	cond, ct, err := l.lowerExpr(n.Child("cond"), vocab.TypeBool)
	if err != nil {
		return err
	}
	if ct != vocab.TypeBool {
		return errf("sem2sir: DoWhile condition must be bool, got %s", ct)
	}
	condBr := l.b.EmitCondBr(cond)
	l.b.EndBlock()
	if bodyFellThrough {
		l.b.PatchBr(bodyBr, condStart)
	}

	exitIdx := l.b.StartBlock("dowhile_exit")
	exitStart := l.b.BlockStart(l.fn.fid, exitIdx)
	l.b.PatchCondBr(condBr, l.b.BlockStart(l.fn.fid, bodyIdx), exitStart)
	loop := l.fn.loops[len(l.fn.loops)-1]
	l.fn.loops = l.fn.loops[:len(l.fn.loops)-1]
	l.patchLoopExits(loop, condStart, exitStart)
	l.fn.blockIsOpen = true
	return nil
}

func (l *lowering) lowerFor(n *ast4.Node) error {
	if init := n.Child("init"); init != nil {
		if err := l.lowerStmt(init); err != nil {
			return err
		}
	}
	headerBr := l.b.EmitBr()
	l.b.EndBlock()

	headerIdx := l.b.StartBlock("for_header")
	var condBr int
	hasCond := n.Child("cond") != nil
	if hasCond {
		cond, ct, err := l.lowerExpr(n.Child("cond"), vocab.TypeBool)
		if err != nil {
			return err
		}
		if ct != vocab.TypeBool {
			return errf("sem2sir: For condition must be bool, got %s", ct)
		}
		condBr = l.b.EmitCondBr(cond)
	} else {
		condBr = l.b.EmitBr()
	}
	l.b.EndBlock()
	l.b.PatchBr(headerBr, l.b.BlockStart(l.fn.fid, headerIdx))

	bodyIdx := l.b.StartBlock("for_body")
	l.fn.blockIsOpen = true
	l.fn.loops = append(l.fn.loops, loopCtx{})
	if err := l.lowerStmt(n.Child("body")); err != nil {
		return err
	}
	bodyFellThrough := l.fn.blockIsOpen
	var bodyBr int
	if bodyFellThrough {
		bodyBr = l.b.EmitBr()
		l.b.EndBlock()
	}

	stepIdx := l.b.StartBlock("for_step")
	stepStart := l.b.BlockStart(l.fn.fid, stepIdx)
	if step := n.Child("step"); step != nil {
		if _, _, err := l.lowerExpr(step.Child("expr"), vocab.TypeInvalid); err != nil {
			return err
		}
	}
	stepBr := l.b.EmitBr()
	l.b.EndBlock()
	l.b.PatchBr(stepBr, l.b.BlockStart(l.fn.fid, headerIdx))

	exitIdx := l.b.StartBlock("for_exit")
	exitStart := l.b.BlockStart(l.fn.fid, exitIdx)
	if hasCond {
		l.b.PatchCondBr(condBr, l.b.BlockStart(l.fn.fid, bodyIdx), exitStart)
	} else {
		l.b.PatchBr(condBr, l.b.BlockStart(l.fn.fid, bodyIdx))
	}
	if bodyFellThrough {
		l.b.PatchBr(bodyBr, stepStart)
	}
	loop := l.fn.loops[len(l.fn.loops)-1]
	l.fn.loops = l.fn.loops[:len(l.fn.loops)-1]
	l.patchLoopExits(loop, stepStart, exitStart)
	l.fn.blockIsOpen = true
	return nil
}

// lowerForInt lowers ForInt, whose induction variable is declared by a
// real Var/VarPat node rather than implied (spec §8's canonical ForInt
// example writes `var=Var("i", i32, Int("0"))`, matching the original
// lowerer's "ForInt.var must be Var or VarPat" restriction). The var
// node is relowered through the normal statement path so its own
// declared type and init expression commit the induction variable's
// type, instead of hardcoding @default.int.
func (l *lowering) lowerForInt(n *ast4.Node) error {
	varNode := n.Child("var")
	var name string
	switch varNode.Kind {
	case vocab.IntrVar:
		name = varNode.Token("name").Text
	case vocab.IntrVarPat:
		pat := varNode.Child("pat")
		if pat.Kind != vocab.IntrPatBind {
			return errf("sem2sir: ForInt.var pattern must be a PatBind")
		}
		name = pat.Token("name").Text
	default:
		return errf("sem2sir: ForInt.var must be Var or VarPat")
	}
	if err := l.lowerStmt(varNode); err != nil {
		return err
	}
	ivar, ok := l.fn.locals[name]
	if !ok {
		return errf("sem2sir: ForInt.var did not bind a local")
	}
	if !ivar.slotBacked {
		return errf("sem2sir: ForInt induction var must be addressable (slot-backed local)")
	}
	t := ivar.typ
	if t != vocab.TypeI32 && t != vocab.TypeI64 {
		return errf("sem2sir: ForInt induction var type must be i32 or i64, got %s", t)
	}

	headerBr := l.b.EmitBr()
	l.b.EndBlock()

	headerIdx := l.b.StartBlock("forint_header")
	endSlot, endT, err := l.lowerExpr(n.Child("end"), t)
	if err != nil {
		return err
	}
	if endT != t {
		return errf("sem2sir: ForInt.end type %s does not match induction variable type %s", endT, t)
	}
	cur := l.readLocal(ivar)
	cmpDst := l.newSlot()
	cmpOp := sir.OpI32CmpLtS
	if is64(t) {
		cmpOp = sir.OpI64CmpLtS
	}
	l.b.Emit(sir.Inst{Op: cmpOp, Type: l.sirTypeOf(vocab.TypeBool), Dst: cmpDst, Args: []sir.Operand{
		{Kind: sir.OperandSlot, Slot: cur}, {Kind: sir.OperandSlot, Slot: endSlot},
	}})
	condBr := l.b.EmitCondBr(cmpDst)
	l.b.EndBlock()
	l.b.PatchBr(headerBr, l.b.BlockStart(l.fn.fid, headerIdx))

	bodyIdx := l.b.StartBlock("forint_body")
	l.fn.blockIsOpen = true
	l.fn.loops = append(l.fn.loops, loopCtx{})
	if err := l.lowerStmt(n.Child("body")); err != nil {
		return err
	}
	bodyFellThrough := l.fn.blockIsOpen
	var bodyBr int
	if bodyFellThrough {
		bodyBr = l.b.EmitBr()
		l.b.EndBlock()
	}

	stepIdx := l.b.StartBlock("forint_step")
	stepAmount := int64(1)
	if stepNode := n.Child("step"); stepNode != nil {
		s, st, err := l.lowerExpr(stepNode, t)
		if err != nil {
			return err
		}
		if st != t {
			return errf("sem2sir: ForInt.step type %s does not match induction variable type %s", st, t)
		}
		curForStep := l.readLocal(ivar)
		nextDst := l.newSlot()
		addOp := sir.OpI32Add
		if is64(t) {
			addOp = sir.OpI64Add
		}
		l.b.Emit(sir.Inst{Op: addOp, Type: l.sirTypeOf(t), Dst: nextDst, Args: []sir.Operand{
			{Kind: sir.OperandSlot, Slot: curForStep}, {Kind: sir.OperandSlot, Slot: s},
		}})
		l.assignLocal(ivar, nextDst)
	} else {
		curForStep := l.readLocal(ivar)
		nextDst := l.newSlot()
		addOp := sir.OpI32Add
		if is64(t) {
			addOp = sir.OpI64Add
		}
		l.b.Emit(sir.Inst{Op: addOp, Type: l.sirTypeOf(t), Dst: nextDst, Args: []sir.Operand{
			{Kind: sir.OperandSlot, Slot: curForStep}, {Kind: sir.OperandImmI64, ImmI64: stepAmount},
		}})
		l.assignLocal(ivar, nextDst)
	}
	stepBr := l.b.EmitBr()
	l.b.EndBlock()
	l.b.PatchBr(stepBr, l.b.BlockStart(l.fn.fid, headerIdx))

	exitIdx := l.b.StartBlock("forint_exit")
	continueStart := l.b.BlockStart(l.fn.fid, stepIdx)
	exitStart := l.b.BlockStart(l.fn.fid, exitIdx)
	l.b.PatchCondBr(condBr, l.b.BlockStart(l.fn.fid, bodyIdx), exitStart)
	if bodyFellThrough {
		l.b.PatchBr(bodyBr, continueStart)
	}
	loop := l.fn.loops[len(l.fn.loops)-1]
	l.fn.loops = l.fn.loops[:len(l.fn.loops)-1]
	l.patchLoopExits(loop, continueStart, exitStart)
	l.fn.blockIsOpen = true
	return nil
}

// lowerMatch lowers a Match into a cascading equality-compare chain
// against PatInt arms, with the last PatWild/PatBind arm as the
// catch-all (spec §4.9's exhaustiveness rule: a wildcard arm must be
// present, since literal patterns alone can never be proven exhaustive).
func (l *lowering) lowerMatch(n *ast4.Node) error {
	scrut, st, err := l.lowerExpr(n.Child("cond"), vocab.TypeInvalid)
	if err != nil {
		return err
	}
	if st != vocab.TypeI32 && st != vocab.TypeI64 {
		return errf("sem2sir: Match scrutinee must be i32 or i64, got %s", st)
	}
	arms := n.Array("arms")
	if len(arms) == 0 {
		return errf("sem2sir: Match has no arms")
	}
	last := arms[len(arms)-1]
	if last.Child("pat").Kind != vocab.IntrPatWild && last.Child("pat").Kind != vocab.IntrPatBind {
		return errf("sem2sir: Match is not exhaustive: the last arm must be PatWild or PatBind")
	}

	cmpOp := sir.OpI32CmpEq
	if is64(st) {
		cmpOp = sir.OpI64CmpEq
	}

	exitBlocks := make([]int, 0, len(arms))
	for i, arm := range arms {
		pat := arm.Child("pat")
		isLast := i == len(arms)-1
		if !isLast {
			if pat.Kind != vocab.IntrPatInt {
				return errf("sem2sir: only the final Match arm may be a wildcard; arm %d is %s", i, pat.Kind)
			}
			lit, err := parseIntLit(pat.Token("lit").Text)
			if err != nil {
				return err
			}
			eq := l.newSlot()
			l.b.Emit(sir.Inst{Op: cmpOp, Type: l.sirTypeOf(vocab.TypeBool), Dst: eq, Args: []sir.Operand{
				{Kind: sir.OperandSlot, Slot: scrut}, {Kind: sir.OperandImmI64, ImmI64: lit},
			}})
			condBr := l.b.EmitCondBr(eq)
			l.b.EndBlock()

			armIdx := l.b.StartBlock("match_arm")
			l.fn.blockIsOpen = true
			if err := l.lowerStmt(arm.Child("body")); err != nil {
				return err
			}
			if l.fn.blockIsOpen {
				br := l.b.EmitBr()
				exitBlocks = append(exitBlocks, br)
				l.b.EndBlock()
			}
			nextIdx := l.b.StartBlock("match_next")
			l.b.PatchCondBr(condBr, l.b.BlockStart(l.fn.fid, armIdx), l.b.BlockStart(l.fn.fid, nextIdx))
		} else {
			if pat.Kind == vocab.IntrPatBind {
				l.declareLocal(pat.Token("name").Text, st, scrut)
			}
			l.fn.blockIsOpen = true
			if err := l.lowerStmt(arm.Child("body")); err != nil {
				return err
			}
			if l.fn.blockIsOpen {
				br := l.b.EmitBr()
				exitBlocks = append(exitBlocks, br)
				l.b.EndBlock()
			}
		}
	}

	mergeIdx := l.b.StartBlock("match_merge")
	for _, br := range exitBlocks {
		l.b.PatchBr(br, l.b.BlockStart(l.fn.fid, mergeIdx))
	}
	l.fn.blockIsOpen = true
	return nil
}

func parseIntLit(s string) (int64, error) {
	var v int64
	neg := false
	i := 0
	if len(s) > 0 && s[0] == '-' {
		neg = true
		i = 1
	}
	if i == len(s) {
		return 0, errf("sem2sir: invalid PatInt literal %q", s)
	}
	for ; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, errf("sem2sir: invalid PatInt literal %q", s)
		}
		v = v*10 + int64(c-'0')
	}
	if neg {
		v = -v
	}
	return v, nil
}
