// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package sem2sir

import (
	"github.com/semtoolchain/sem/ast4"
	"github.com/semtoolchain/sem/sir"
	"github.com/semtoolchain/sem/vocab"
)

// defaultPtrPointee returns the document's declared @default.ptr.pointee
// meta type, or i64 when the document left it unset.
func (l *lowering) defaultPtrPointee() vocab.Type {
	if l.doc.DefaultPtrPointee != nil {
		return *l.doc.DefaultPtrPointee
	}
	return vocab.TypeI64
}

// sirTypeOf resolves a vocab.Type to its interned sir.TypeID, expanding
// the bare "ptr" tag into ptr(default-pointee) per spec §4.7's meta
// default policy.
func (l *lowering) sirTypeOf(t vocab.Type) sir.TypeID {
	if t == vocab.TypePtr {
		return l.b.PtrOf(l.internType(l.defaultPtrPointee()))
	}
	return l.internType(t)
}

// typeFromRef reads a TypeRef node's already-validated type name.
func typeFromRef(n *ast4.Node) (vocab.Type, error) {
	tok := n.Token("name")
	t, err := vocab.ParseType(tok.Text)
	if err != nil {
		return vocab.TypeInvalid, errf("sem2sir: %v", err)
	}
	return t, nil
}

// prescanProcs walks every top-level Proc, recording its signature and
// declaring its sir.Func up front so calls can reference callees
// regardless of declaration order (spec §4.9's "Proc pre-scan").
func (l *lowering) prescanProcs() error {
	items := l.doc.Ast.Array("items")
	haveMain := false
	for _, item := range items {
		if item.Kind != vocab.IntrProc {
			continue
		}
		name := item.Token("name").Text
		if _, dup := l.procs[name]; dup {
			return errf("sem2sir: duplicate proc name %q", name)
		}

		paramNodes := item.Array("params")
		params := make([]paramInfo, 0, len(paramNodes))
		for _, p := range paramNodes {
			var pname string
			var typeNode *ast4.Node
			switch p.Kind {
			case vocab.IntrParam:
				pname = p.Token("name").Text
				typeNode = p.Child("type")
			case vocab.IntrParamPat:
				typeNode = p.Child("type")
			default:
				return errf("sem2sir: proc %q has an unrecognized parameter node %s", name, p.Kind)
			}
			pt, err := typeFromRef(typeNode)
			if err != nil {
				return err
			}
			params = append(params, paramInfo{name: pname, typ: pt})
		}

		retNode := item.Child("ret")
		retT, err := typeFromRef(retNode)
		if err != nil {
			return err
		}

		extern := item.Token("extern").Text == "true"
		linkName := item.Token("link_name").Text

		if name == "main" {
			haveMain = true
			if extern {
				return errf("sem2sir: \"main\" must not be declared extern")
			}
		}

		pi := &procInfo{name: name, params: params, ret: retT, extern: extern, linkName: linkName}
		l.procs[name] = pi
	}
	if !haveMain {
		return errf("sem2sir: unit is missing a non-extern \"main\" proc")
	}

	// Second pass: now that every proc's signature is known, declare the
	// sir.Func/sig for each so call sites (which may appear lexically
	// before a callee's own Proc item) resolve against a stable FuncID.
	for _, item := range items {
		if item.Kind != vocab.IntrProc {
			continue
		}
		name := item.Token("name").Text
		pi := l.procs[name]
		paramTypes := make([]sir.TypeID, 0, len(pi.params))
		for _, p := range pi.params {
			paramTypes = append(paramTypes, l.sirTypeOf(p.typ))
		}
		retType := l.sirTypeOf(pi.ret)
		sig := l.b.FnType(paramTypes, retType)
		pi.sig = sig

		if pi.extern {
			linkName := linkNameOr(pi)
			fid := l.b.Begin(linkName)
			l.b.DeclExtern(fid, sig)
			pi.fid = fid
			// Calls dispatch through the call.indirect symbol table (the
			// hosted runtime's fixed zi_* primitive set), not a direct
			// call to this decl.fn entry.
			pi.sym = l.b.ExternFn(linkName, sig)
			continue
		}
		fid := l.b.Begin(name)
		l.b.SetSig(fid, sig)
		if name == "main" {
			l.b.SetEntry(fid)
			l.b.SetLinkage(fid, sir.LinkagePublic)
		} else {
			l.b.SetLinkage(fid, sir.LinkageLocal)
		}
		pi.fid = fid
	}
	return nil
}

func linkNameOr(pi *procInfo) string {
	if pi.linkName != "" {
		return pi.linkName
	}
	return pi.name
}

// detectSemV1 scans the whole unit for surface forms that require the
// sem:v1 feature flag: short-circuit boolean operators and Match
// expressions (spec §4.9).
func (l *lowering) detectSemV1() bool {
	var walk func(n *ast4.Node) bool
	walk = func(n *ast4.Node) bool {
		if n == nil {
			return false
		}
		if n.Kind == vocab.IntrMatch {
			return true
		}
		if n.Kind == vocab.IntrBin {
			if op, err := vocab.ParseOp(n.Token("op_tok").Text); err == nil && op.IsShortCircuit() {
				return true
			}
		}
		for _, c := range n.Nodes {
			if walk(c) {
				return true
			}
		}
		for _, arr := range n.Arrays {
			for _, c := range arr {
				if walk(c) {
					return true
				}
			}
		}
		return false
	}
	return walk(l.doc.Ast)
}
