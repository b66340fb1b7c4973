// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package sem2sir

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/semtoolchain/sem/ast4"
	"github.com/semtoolchain/sem/interp"
	"github.com/semtoolchain/sem/sir"
	"github.com/semtoolchain/sem/vocab"
	"github.com/semtoolchain/sem/zabi"
)

// --- minimal AST construction helpers -------------------------------
//
// These build *ast4.Node trees directly (ast4.Node's fields are
// exported), bypassing JSON parsing/validation entirely; sem2sir only
// ever consumes already-validated nodes, so this matches exactly what
// it sees in production.

func tok(text string) ast4.Token { return ast4.Token{Text: text} }

func node(kind vocab.Intrinsic) *ast4.Node {
	return &ast4.Node{
		Kind:   kind,
		Tokens: map[string]ast4.Token{},
		Nodes:  map[string]*ast4.Node{},
		Null:   map[string]bool{},
		Arrays: map[string][]*ast4.Node{},
	}
}

func typeRef(name string) *ast4.Node {
	n := node(vocab.IntrTypeRef)
	n.Tokens["name"] = tok(name)
	return n
}

func intLit(v string) *ast4.Node {
	n := node(vocab.IntrInt)
	n.Tokens["lit"] = tok(v)
	return n
}

func nameRef(id string) *ast4.Node {
	n := node(vocab.IntrName)
	n.Tokens["id"] = tok(id)
	return n
}

func block(items ...*ast4.Node) *ast4.Node {
	n := node(vocab.IntrBlock)
	n.Arrays["items"] = items
	return n
}

func exprStmt(e *ast4.Node) *ast4.Node {
	n := node(vocab.IntrExprStmt)
	n.Nodes["expr"] = e
	return n
}

func returnStmt(v *ast4.Node) *ast4.Node {
	n := node(vocab.IntrReturn)
	if v == nil {
		n.Null["value"] = true
	} else {
		n.Nodes["value"] = v
	}
	return n
}

func bin(op vocab.Op, lhs, rhs *ast4.Node) *ast4.Node {
	n := node(vocab.IntrBin)
	n.Tokens["op_tok"] = tok(op.String())
	n.Nodes["lhs"] = lhs
	n.Nodes["rhs"] = rhs
	return n
}

func varDecl(name, typ string, init *ast4.Node) *ast4.Node {
	n := node(vocab.IntrVar)
	n.Tokens["name"] = tok(name)
	n.Nodes["type"] = typeRef(typ)
	n.Nodes["init"] = init
	return n
}

func param(name, typ string) *ast4.Node {
	n := node(vocab.IntrParam)
	n.Tokens["name"] = tok(name)
	n.Nodes["type"] = typeRef(typ)
	return n
}

func proc(name string, params []*ast4.Node, ret string, extern bool, body *ast4.Node) *ast4.Node {
	n := node(vocab.IntrProc)
	n.Tokens["name"] = tok(name)
	n.Tokens["extern"] = tok("false")
	if extern {
		n.Tokens["extern"] = tok("true")
	}
	n.Tokens["link_name"] = tok("")
	n.Arrays["params"] = params
	n.Nodes["ret"] = typeRef(ret)
	if body != nil {
		n.Nodes["body"] = body
	}
	return n
}

func unit(items ...*ast4.Node) *ast4.Document {
	u := node(vocab.IntrUnit)
	u.Arrays["items"] = items
	return &ast4.Document{Ast: u}
}

func newTestRuntime(t *testing.T) *zabi.Runtime {
	t.Helper()
	rt, err := zabi.NewRuntime(zabi.RuntimeConfig{
		Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{},
	})
	require.NoError(t, err)
	return rt
}

// --- scenario 1: arithmetic + exit code -----------------------------

func TestLowerArithmeticMain(t *testing.T) {
	// fn main() -> i32 { return 2 + 3 }
	body := block(returnStmt(bin(vocab.OpAdd, intLit("2"), intLit("3"))))
	doc := unit(proc("main", nil, "i32", false, body))

	mod, err := Lower(doc, Options{})
	require.NoError(t, err)
	require.Nil(t, sir.Validate(mod))

	rt := newTestRuntime(t)
	defer rt.Dispose()
	code, err := interp.New(mod, rt).Run()
	require.NoError(t, err)
	require.Equal(t, int64(5), code)
}

// --- scenario 2: a non-void proc falling off the end is defensively
// zero-returned, but a mismatched Return type is still rejected --------

func TestLowerReturnTypeMismatchRejected(t *testing.T) {
	// fn main() -> void { return 1 }  -- Return(value) inside a void proc
	body := block(returnStmt(intLit("1")))
	doc := unit(proc("main", nil, "void", false, body))

	_, err := Lower(doc, Options{})
	require.Error(t, err)
}

// --- scenario 3: local Var round-trips through a slot-backed alloca ---

func TestLowerVarAssignReturn(t *testing.T) {
	// fn main() -> i32 {
	//   var x: i32 = 10
	//   x = x + 1
	//   return x
	// }
	body := block(
		varDecl("x", "i32", intLit("10")),
		exprStmt(bin(vocab.OpAssign, nameRef("x"), bin(vocab.OpAdd, nameRef("x"), intLit("1")))),
		returnStmt(nameRef("x")),
	)
	doc := unit(proc("main", nil, "i32", false, body))

	mod, err := Lower(doc, Options{})
	require.NoError(t, err)
	require.Nil(t, sir.Validate(mod))

	rt := newTestRuntime(t)
	defer rt.Dispose()
	code, err := interp.New(mod, rt).Run()
	require.NoError(t, err)
	require.Equal(t, int64(11), code)
}

// --- scenario 4: ForInt loop summing 0..<5 -----------------------------

func forIntLoop(endLit string, body *ast4.Node) *ast4.Node {
	n := node(vocab.IntrForInt)
	n.Nodes["var"] = varDecl("i", "i32", intLit("0"))
	n.Nodes["end"] = intLit(endLit)
	n.Nodes["body"] = body
	return n
}

func TestLowerForIntLoopAccumulates(t *testing.T) {
	// fn main() -> i32 {
	//   var sum: i32 = 0
	//   for_int i in 0..<5 { sum = sum + i }
	//   return sum
	// }
	loopBody := block(exprStmt(bin(vocab.OpAssign, nameRef("sum"), bin(vocab.OpAdd, nameRef("sum"), nameRef("i")))))
	body := block(
		varDecl("sum", "i32", intLit("0")),
		forIntLoop("5", loopBody),
		returnStmt(nameRef("sum")),
	)
	doc := unit(proc("main", nil, "i32", false, body))

	mod, err := Lower(doc, Options{})
	require.NoError(t, err)
	require.Nil(t, sir.Validate(mod))

	rt := newTestRuntime(t)
	defer rt.Dispose()
	code, err := interp.New(mod, rt).Run()
	require.NoError(t, err)
	require.Equal(t, int64(0+1+2+3+4), code)
}

// --- scenario 5: Match exhaustiveness is enforced ----------------------

func matchArm(lit string, wild bool, body *ast4.Node) *ast4.Node {
	n := node(vocab.IntrMatchArm)
	var pat *ast4.Node
	if wild {
		pat = node(vocab.IntrPatWild)
	} else {
		pat = node(vocab.IntrPatInt)
		pat.Tokens["lit"] = tok(lit)
	}
	n.Nodes["pat"] = pat
	n.Nodes["body"] = body
	return n
}

func matchExpr(scrut *ast4.Node, arms ...*ast4.Node) *ast4.Node {
	n := node(vocab.IntrMatch)
	n.Nodes["cond"] = scrut
	n.Arrays["arms"] = arms
	return n
}

func TestLowerMatchRequiresWildcardArm(t *testing.T) {
	// fn main() -> void { match (1) { 1 => {} } } -- no catch-all arm
	body := block(exprStmt(matchExpr(intLit("1"), matchArm("1", false, block()))))
	doc := unit(proc("main", nil, "void", false, body))

	_, err := Lower(doc, Options{})
	require.Error(t, err)
}

func TestLowerMatchDispatchesByArm(t *testing.T) {
	// fn main() -> i32 {
	//   var x: i32 = 2
	//   var out: i32 = 0
	//   match (x) {
	//     1 => { out = 10 }
	//     2 => { out = 20 }
	//     _ => { out = 99 }
	//   }
	//   return out
	// }
	body := block(
		varDecl("x", "i32", intLit("2")),
		varDecl("out", "i32", intLit("0")),
		exprStmt(matchExpr(nameRef("x"),
			matchArm("1", false, block(exprStmt(bin(vocab.OpAssign, nameRef("out"), intLit("10"))))),
			matchArm("2", false, block(exprStmt(bin(vocab.OpAssign, nameRef("out"), intLit("20"))))),
			matchArm("", true, block(exprStmt(bin(vocab.OpAssign, nameRef("out"), intLit("99"))))),
		)),
		returnStmt(nameRef("out")),
	)
	doc := unit(proc("main", nil, "i32", false, body))

	mod, err := Lower(doc, Options{})
	require.NoError(t, err)
	require.Nil(t, sir.Validate(mod))
	require.Contains(t, mod.Features, "sem:v1")

	rt := newTestRuntime(t)
	defer rt.Dispose()
	code, err := interp.New(mod, rt).Run()
	require.NoError(t, err)
	require.Equal(t, int64(20), code)
}

// --- short-circuit boolean operators really branch ---------------------

func TestLowerShortCircuitAndSkipsRHS(t *testing.T) {
	// fn main() -> i32 {
	//   var hit: i32 = 0
	//   var r: bool = false && (hit = 1) == 1   -- RHS must never run
	//   return hit
	// }
	rhs := bin(vocab.OpEq, bin(vocab.OpAssign, nameRef("hit"), intLit("1")), intLit("1"))
	body := block(
		varDecl("hit", "i32", intLit("0")),
		varDecl("r", "bool", bin(vocab.OpBoolAndSC, falseLit(), rhs)),
		returnStmt(nameRef("hit")),
	)
	doc := unit(proc("main", nil, "i32", false, body))

	mod, err := Lower(doc, Options{})
	require.NoError(t, err)
	require.Nil(t, sir.Validate(mod))
	require.Contains(t, mod.Features, "sem:v1")

	rt := newTestRuntime(t)
	defer rt.Dispose()
	code, err := interp.New(mod, rt).Run()
	require.NoError(t, err)
	require.Equal(t, int64(0), code)
}

func falseLit() *ast4.Node { return node(vocab.IntrFalse) }

// --- Break/Continue deferred-patch plumbing ----------------------------

func TestLowerWhileBreakExitsEarly(t *testing.T) {
	// fn main() -> i32 {
	//   var i: i32 = 0
	//   while (i < 10) {
	//     if (i == 3) { break }
	//     i = i + 1
	//   }
	//   return i
	// }
	whileBody := block(
		ifStmt(bin(vocab.OpEq, nameRef("i"), intLit("3")), block(breakStmt()), nil),
		exprStmt(bin(vocab.OpAssign, nameRef("i"), bin(vocab.OpAdd, nameRef("i"), intLit("1")))),
	)
	whileStmt := node(vocab.IntrWhile)
	whileStmt.Nodes["cond"] = bin(vocab.OpLt, nameRef("i"), intLit("10"))
	whileStmt.Nodes["body"] = whileBody

	body := block(
		varDecl("i", "i32", intLit("0")),
		whileStmt,
		returnStmt(nameRef("i")),
	)
	doc := unit(proc("main", nil, "i32", false, body))

	mod, err := Lower(doc, Options{})
	require.NoError(t, err)
	require.Nil(t, sir.Validate(mod))

	rt := newTestRuntime(t)
	defer rt.Dispose()
	code, err := interp.New(mod, rt).Run()
	require.NoError(t, err)
	require.Equal(t, int64(3), code)
}

func ifStmt(cond, then, els *ast4.Node) *ast4.Node {
	n := node(vocab.IntrIf)
	n.Nodes["cond"] = cond
	n.Nodes["then"] = then
	if els != nil {
		n.Nodes["else"] = els
	}
	return n
}

func breakStmt() *ast4.Node { return node(vocab.IntrBreak) }

// --- duplicate proc names are rejected at prescan time ------------------

func TestLowerRejectsDuplicateProcNames(t *testing.T) {
	body := block(returnStmt(nil))
	doc := unit(
		proc("helper", nil, "void", false, body),
		proc("helper", nil, "void", false, body),
		proc("main", nil, "void", false, block(returnStmt(nil))),
	)
	_, err := Lower(doc, Options{})
	require.Error(t, err)
}

// --- scenario: cstr literal lowers into a module global ------------------

func cstrLit(s string) *ast4.Node {
	n := node(vocab.IntrCStr)
	n.Tokens["lit"] = tok(s)
	return n
}

func TestLowerCStrLiteralBecomesGlobal(t *testing.T) {
	// fn main() -> cstr { return "hi" }
	body := block(returnStmt(cstrLit("hi")))
	doc := unit(proc("main", nil, "cstr", false, body))

	mod, err := Lower(doc, Options{})
	require.NoError(t, err)
	require.Nil(t, sir.Validate(mod))
	require.Len(t, mod.Globals, 1)
	require.Equal(t, append([]byte("hi"), 0), mod.Globals[0].Init)
}

// --- scenario: assignment through a ptr(T) deref -------------------------

func addrOf(e *ast4.Node) *ast4.Node {
	n := node(vocab.IntrAddrOf)
	n.Nodes["expr"] = e
	return n
}

func deref(e *ast4.Node) *ast4.Node {
	n := node(vocab.IntrDeref)
	n.Nodes["expr"] = e
	return n
}

func TestLowerAssignmentThroughPointerDeref(t *testing.T) {
	// @default.ptr.pointee = i32
	// fn main() -> i32 {
	//   var x: i32 = 5
	//   var p: ptr = &x
	//   *p = 42
	//   return x
	// }
	ptrPointee := vocab.TypeI32
	body := block(
		varDecl("x", "i32", intLit("5")),
		varDecl("p", "ptr", addrOf(nameRef("x"))),
		exprStmt(bin(vocab.OpAssign, deref(nameRef("p")), intLit("42"))),
		returnStmt(nameRef("x")),
	)
	doc := unit(proc("main", nil, "i32", false, body))
	doc.DefaultPtrPointee = &ptrPointee

	mod, err := Lower(doc, Options{})
	require.NoError(t, err)
	require.Nil(t, sir.Validate(mod))

	rt := newTestRuntime(t)
	defer rt.Dispose()
	code, err := interp.New(mod, rt).Run()
	require.NoError(t, err)
	require.Equal(t, int64(42), code)
}

// --- missing main is rejected --------------------------------------------

func TestLowerRequiresMain(t *testing.T) {
	doc := unit(proc("helper", nil, "void", false, block(returnStmt(nil))))
	_, err := Lower(doc, Options{})
	require.Error(t, err)
}
