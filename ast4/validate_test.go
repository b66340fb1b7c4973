// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ast4

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func tok(text string) string {
	return `{"k":"tok","text":"` + text + `"}`
}

func minimalDoc(astInner string) []byte {
	return []byte(`{
  "ast": ` + astInner + `,
  "diagnostics": [],
  "meta": {"types": {"void":"void"}}
}`)
}

func emptyMainUnit() string {
	return `{
    "k":"Unit",
    "items":[
      {"k":"Proc","name":` + tok("main") + `,"params":[],"ret":{"k":"TypeRef","name":` + tok("void") + `},
       "body":{"k":"Block","items":[]}}
    ]
  }`
}

func TestValidateAcceptsMinimalDocument(t *testing.T) {
	doc, diag := Validate(minimalDoc(emptyMainUnit()), nil)
	require.Nil(t, diag, "unexpected diagnostic: %+v", diag)
	require.NotNil(t, doc)
	require.Equal(t, "Unit", doc.Ast.Kind.String())
	require.Len(t, doc.Ast.Array("items"), 1)
}

func TestValidateRejectsUnknownTopLevelKey(t *testing.T) {
	buf := []byte(`{
  "ast": ` + emptyMainUnit() + `,
  "diagnostics": [],
  "meta": {"types": {}},
  "bogus": 1
}`)
	_, diag := Validate(buf, nil)
	require.NotNil(t, diag)
	require.Contains(t, diag.Msg, "bogus")
}

func TestValidateRejectsNonEmptyDiagnostics(t *testing.T) {
	buf := []byte(`{
  "ast": ` + emptyMainUnit() + `,
  "diagnostics": [1],
  "meta": {"types": {}}
}`)
	_, diag := Validate(buf, nil)
	require.NotNil(t, diag)
	require.Contains(t, diag.Msg, "diagnostics")
}

func TestValidateRejectsKNotFirst(t *testing.T) {
	buf := minimalDoc(`{"items":[], "k":"Unit"}`)
	_, diag := Validate(buf, nil)
	require.NotNil(t, diag)
	require.Contains(t, diag.Msg, "first field")
}

func TestValidateRejectsDuplicateKey(t *testing.T) {
	buf := []byte(`{
  "ast": ` + emptyMainUnit() + `,
  "diagnostics": [],
  "meta": {"types": {}},
  "meta": {"types": {}}
}`)
	_, diag := Validate(buf, nil)
	require.NotNil(t, diag)
	require.Contains(t, diag.Msg, "duplicate")
}

func TestValidateRejectsUnknownField(t *testing.T) {
	ast := `{"k":"Unit","items":[],"bogus_field":1}`
	_, diag := Validate(minimalDoc(ast), nil)
	require.NotNil(t, diag)
	require.Contains(t, diag.Msg, "bogus_field")
}

func TestValidateRejectsUnknownTypeRef(t *testing.T) {
	ast := `{
    "k":"Unit",
    "items":[
      {"k":"Proc","name":` + tok("main") + `,"params":[],"ret":{"k":"TypeRef","name":` + tok("i128") + `},
       "body":{"k":"Block","items":[]}}
    ]
  }`
	_, diag := Validate(minimalDoc(ast), nil)
	require.NotNil(t, diag)
	require.Contains(t, diag.Msg, "TypeRef.name")
}

func TestValidateRejectsUnknownOp(t *testing.T) {
	ast := `{
    "k":"Unit",
    "items":[
      {"k":"Proc","name":` + tok("main") + `,"params":[],"ret":{"k":"TypeRef","name":` + tok("void") + `},
       "body":{"k":"Block","items":[
         {"k":"ExprStmt","expr":{"k":"Bin","op_tok":` + tok("core.bogus") + `,"lhs":{"k":"True"},"rhs":{"k":"False"}}}
       ]}}
    ]
  }`
	_, diag := Validate(minimalDoc(ast), nil)
	require.NotNil(t, diag)
	require.Contains(t, diag.Msg, "Bin.op")
}

func TestValidateRejectsCallArgsNotArgsNode(t *testing.T) {
	ast := `{
    "k":"Unit",
    "items":[
      {"k":"Proc","name":` + tok("main") + `,"params":[],"ret":{"k":"TypeRef","name":` + tok("void") + `},
       "body":{"k":"Block","items":[
         {"k":"ExprStmt","expr":{"k":"Call","callee":{"k":"Name","id":` + tok("f") + `},"args":{"k":"True"}}}
       ]}}
    ]
  }`
	_, diag := Validate(minimalDoc(ast), nil)
	require.NotNil(t, diag)
	require.Contains(t, diag.Msg, "Args")
}

func TestDiagnosticCarriesLocation(t *testing.T) {
	ast := `{"k":"Unit","items":[],"bogus":1}`
	_, diag := Validate(minimalDoc(ast), nil)
	require.NotNil(t, diag)
	require.Greater(t, diag.Line, 0)
	require.Greater(t, diag.Col, 0)
	require.NotEmpty(t, diag.Near)
}
