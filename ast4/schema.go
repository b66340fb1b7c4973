// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ast4

import "github.com/semtoolchain/sem/vocab"

// fieldKind classifies how a field's value must be shaped, enforced by
// the single strict helper spec §4.7 step 4 calls for.
type fieldKind uint8

const (
	fieldToken       fieldKind = iota // must parse as a token leaf (k=="tok")
	fieldNode                         // must be a non-token intrinsic node
	fieldNodeOrNull                   // object node, or JSON null
	fieldArray                        // a JSON array (element shape checked by caller)
	fieldArgsOrNull                   // Call.args: an Args node, or JSON null
)

type fieldSpec struct {
	name     string
	kind     fieldKind
	required bool
}

// intrinsicSchema is the per-intrinsic allow list spec §4.7 step 3
// consults: any field outside this set is rejected by name, and any
// field marked required that is absent is rejected citing the expected
// schema (step 8).
type intrinsicSchema struct {
	fields []fieldSpec
}

func (s intrinsicSchema) allowed(name string) (fieldSpec, bool) {
	for _, f := range s.fields {
		if f.name == name {
			return f, true
		}
	}
	return fieldSpec{}, false
}

func (s intrinsicSchema) allowedNames() []string {
	out := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, f.name)
	}
	return out
}

// schemas enumerates the fixed field set for every non-token intrinsic.
// Field names here are the single source of truth shared with sem2sir's
// lowerer, which reads the identical keys.
var schemas = map[vocab.Intrinsic]intrinsicSchema{
	vocab.IntrUnit: {fields: []fieldSpec{
		{"items", fieldArray, true},
		{"name", fieldToken, false},
	}},
	vocab.IntrProc: {fields: []fieldSpec{
		{"name", fieldToken, true},
		{"params", fieldArray, true},
		{"ret", fieldNode, true},
		{"body", fieldNodeOrNull, true},
		{"extern", fieldToken, false},
		{"link_name", fieldToken, false},
	}},
	vocab.IntrBlock: {fields: []fieldSpec{
		{"items", fieldArray, true},
	}},
	vocab.IntrVar: {fields: []fieldSpec{
		{"name", fieldToken, true},
		{"type", fieldNode, true},
		{"init", fieldNode, true},
	}},
	vocab.IntrVarPat: {fields: []fieldSpec{
		{"pat", fieldNode, true},
		{"type", fieldNode, true},
		{"init", fieldNode, true},
	}},
	vocab.IntrExprStmt: {fields: []fieldSpec{
		{"expr", fieldNode, true},
	}},
	vocab.IntrReturn: {fields: []fieldSpec{
		{"value", fieldNodeOrNull, true},
	}},
	vocab.IntrIf: {fields: []fieldSpec{
		{"cond", fieldNode, true},
		{"then", fieldNode, true},
		{"else", fieldNodeOrNull, true},
	}},
	vocab.IntrWhile: {fields: []fieldSpec{
		{"cond", fieldNode, true},
		{"body", fieldNode, true},
	}},
	vocab.IntrLoop: {fields: []fieldSpec{
		{"body", fieldNode, true},
	}},
	vocab.IntrDoWhile: {fields: []fieldSpec{
		{"body", fieldNode, true},
		{"cond", fieldNode, true},
	}},
	vocab.IntrFor: {fields: []fieldSpec{
		{"init", fieldNodeOrNull, true},
		{"cond", fieldNodeOrNull, true},
		{"step", fieldNodeOrNull, true},
		{"body", fieldNode, true},
	}},
	vocab.IntrForInt: {fields: []fieldSpec{
		{"var", fieldNode, true},
		{"end", fieldNode, true},
		{"step", fieldNodeOrNull, true},
		{"body", fieldNode, true},
	}},
	vocab.IntrBreak:    {},
	vocab.IntrContinue: {},
	vocab.IntrParam: {fields: []fieldSpec{
		{"name", fieldToken, true},
		{"type", fieldNode, true},
	}},
	vocab.IntrParamPat: {fields: []fieldSpec{
		{"pat", fieldNode, true},
		{"type", fieldNode, true},
	}},
	vocab.IntrCall: {fields: []fieldSpec{
		{"callee", fieldNode, true},
		{"args", fieldArgsOrNull, true},
	}},
	vocab.IntrArgs: {fields: []fieldSpec{
		{"items", fieldArray, true},
	}},
	vocab.IntrPatBind: {fields: []fieldSpec{
		{"name", fieldToken, true},
	}},
	vocab.IntrPatInt: {fields: []fieldSpec{
		{"lit", fieldToken, true},
	}},
	vocab.IntrPatWild: {},
	vocab.IntrName: {fields: []fieldSpec{
		{"id", fieldToken, true},
	}},
	vocab.IntrTypeRef: {fields: []fieldSpec{
		{"name", fieldToken, true},
	}},
	vocab.IntrInt: {fields: []fieldSpec{
		{"lit", fieldToken, true},
	}},
	vocab.IntrF32: {fields: []fieldSpec{
		{"bits", fieldToken, true},
	}},
	vocab.IntrF64: {fields: []fieldSpec{
		{"bits", fieldToken, true},
	}},
	vocab.IntrUnitVal: {},
	vocab.IntrBytes: {fields: []fieldSpec{
		{"lit", fieldToken, true},
	}},
	vocab.IntrStringUtf8: {fields: []fieldSpec{
		{"lit", fieldToken, true},
	}},
	vocab.IntrCStr: {fields: []fieldSpec{
		{"lit", fieldToken, true},
	}},
	vocab.IntrChar: {fields: []fieldSpec{
		{"lit", fieldToken, true},
	}},
	vocab.IntrTrue:  {},
	vocab.IntrFalse: {},
	vocab.IntrNil:   {},
	vocab.IntrParen: {fields: []fieldSpec{
		{"expr", fieldNode, true},
	}},
	vocab.IntrNot: {fields: []fieldSpec{
		{"expr", fieldNode, true},
	}},
	vocab.IntrNeg: {fields: []fieldSpec{
		{"expr", fieldNode, true},
	}},
	vocab.IntrBitNot: {fields: []fieldSpec{
		{"expr", fieldNode, true},
	}},
	vocab.IntrAddrOf: {fields: []fieldSpec{
		{"expr", fieldNode, true},
	}},
	vocab.IntrDeref: {fields: []fieldSpec{
		{"expr", fieldNode, true},
	}},
	vocab.IntrBin: {fields: []fieldSpec{
		{"op_tok", fieldToken, true},
		{"lhs", fieldNode, true},
		{"rhs", fieldNode, true},
	}},
	vocab.IntrMatch: {fields: []fieldSpec{
		{"cond", fieldNode, true},
		{"arms", fieldArray, true},
	}},
	vocab.IntrMatchArm: {fields: []fieldSpec{
		{"pat", fieldNode, true},
		{"guard", fieldNodeOrNull, true},
		{"body", fieldNode, true},
	}},
}

// This init registers the nine explicit width-conversion intrinsics,
// which all share the single-field shape {"value": expr}.
func init() {
	single := intrinsicSchema{fields: []fieldSpec{{"value", fieldNode, true}}}
	for _, k := range []vocab.Intrinsic{
		vocab.IntrZExtI64FromI32, vocab.IntrSExtI64FromI32, vocab.IntrTruncI32FromI64,
		vocab.IntrF64FromI32S, vocab.IntrF32FromI32S,
		vocab.IntrTruncSatI32FromF64S, vocab.IntrTruncSatI32FromF32S,
		vocab.IntrPtrFromI64, vocab.IntrI64FromPtr,
	} {
		schemas[k] = single
	}
}
