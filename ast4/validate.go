// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ast4

import (
	"sort"

	"github.com/semtoolchain/sem/log"
	"github.com/semtoolchain/sem/vocab"
)

// Document is the accepted result of Validate: the root Unit node plus
// the meta.types table and the two reserved default-policy keys (spec
// §3). Once Validate returns a *Document, sem2sir never touches raw
// JSON again.
type Document struct {
	Ast               *Node
	MetaTypes         map[string]vocab.Type
	DefaultInt        *vocab.Type
	DefaultPtrPointee *vocab.Type
}

// topLevelRequired and topLevelOptional partition the document's root
// object keys per spec §3: "ast", "diagnostics" and "meta" are required;
// "symbols", "symtab", "sym_by_tok_i" and "tokens" are accepted but
// ignored; anything else is an error.
var topLevelRequired = map[string]bool{"ast": true, "diagnostics": true, "meta": true}
var topLevelIgnored = map[string]bool{"symbols": true, "symtab": true, "sym_by_tok_i": true, "tokens": true}

// Validator holds the buffer being validated so diagnostics can resolve
// byte offsets back to line/column/snippet.
type Validator struct {
	buf []byte
	log *log.Helper
}

// NewValidator constructs a Validator over buf. logger may be nil.
func NewValidator(buf []byte, logger *log.Helper) *Validator {
	return &Validator{buf: buf, log: logger}
}

// Validate parses and strictly validates buf as a Stage-4 AST document,
// per spec §4.7. It fails fast on the first structural violation (§4.10:
// "a single structured error propagated upward"), always attaching a
// source location.
func Validate(buf []byte, logger *log.Helper) (*Document, *Diagnostic) {
	v := NewValidator(buf, logger)
	return v.Validate()
}

func (val *Validator) Validate() (*Document, *Diagnostic) {
	root, err := ParseJSON(val.buf)
	if err != nil {
		pe := err.(*ParseError)
		return nil, newDiag(val.buf, pe.Off, "%s", pe.Msg)
	}
	if root.Kind != KindObject {
		return nil, newDiag(val.buf, root.Off, "root document must be a JSON object, got %s", kindName(root.Kind))
	}

	for _, m := range root.Members {
		if !topLevelRequired[m.Key] && !topLevelIgnored[m.Key] {
			return nil, newDiag(val.buf, m.KeyOff, "unrecognized top-level key %q (allowed: ast, diagnostics, meta, symbols, symtab, sym_by_tok_i, tokens)", m.Key)
		}
	}
	for key := range topLevelRequired {
		if !root.HasField(key) {
			return nil, newDiag(val.buf, root.Off, "document missing required top-level key %q", key)
		}
	}

	diagV, _ := root.Field("diagnostics")
	if diagV.Kind != KindArray || len(diagV.Elems) != 0 {
		return nil, newDiag(val.buf, diagV.Off, "\"diagnostics\" must be an empty array")
	}

	metaV, _ := root.Field("meta")
	doc := &Document{}
	if d := val.validateMeta(metaV, doc); d != nil {
		return nil, d
	}

	astV, _ := root.Field("ast")
	astNode, d := val.validateNode(astV)
	if d != nil {
		return nil, d
	}
	if astNode.Kind != vocab.IntrUnit {
		return nil, newDiag(val.buf, astV.Off, "\"ast\" must be a Unit node, got %s", astNode.Kind)
	}
	doc.Ast = astNode

	val.log.Debugf("ast4: accepted document with %d meta types", len(doc.MetaTypes))
	return doc, nil
}

func (val *Validator) validateMeta(metaV Value, doc *Document) *Diagnostic {
	if metaV.Kind != KindObject {
		return newDiag(val.buf, metaV.Off, "\"meta\" must be an object")
	}
	typesV, ok := metaV.Field("types")
	if !ok {
		return newDiag(val.buf, metaV.Off, "\"meta\" must carry a \"types\" mapping")
	}
	if typesV.Kind != KindObject {
		return newDiag(val.buf, typesV.Off, "\"meta.types\" must be an object")
	}

	doc.MetaTypes = make(map[string]vocab.Type, len(typesV.Members))
	for _, m := range typesV.Members {
		s, ok := m.Val.AsString()
		if !ok {
			return newDiag(val.buf, m.Val.Off, "meta.types[%q] must be a string", m.Key)
		}
		if m.Key == "@default.int" {
			t, err := vocab.ParseType(s)
			if err != nil || (t != vocab.TypeI32 && t != vocab.TypeI64) {
				return newDiag(val.buf, m.Val.Off, "meta.types[\"@default.int\"] must be \"i32\" or \"i64\", got %q", s)
			}
			tc := t
			doc.DefaultInt = &tc
			continue
		}
		if m.Key == "@default.ptr.pointee" {
			t, err := vocab.ParseType(s)
			if err != nil || t == vocab.TypePtr || !t.SupportsLoadStore() {
				return newDiag(val.buf, m.Val.Off, "meta.types[\"@default.ptr.pointee\"] must be a load/store-capable non-ptr type, got %q", s)
			}
			tc := t
			doc.DefaultPtrPointee = &tc
			continue
		}
		t, err := vocab.ParseType(s)
		if err != nil {
			return newDiag(val.buf, m.Val.Off, "meta.types[%q]: %v", m.Key, err)
		}
		doc.MetaTypes[m.Key] = t
	}

	if opsV, ok := metaV.Field("ops"); ok {
		empty := false
		switch opsV.Kind {
		case KindObject:
			empty = len(opsV.Members) == 0
		case KindArray:
			empty = len(opsV.Elems) == 0
		}
		if !empty {
			return newDiag(val.buf, opsV.Off, "\"meta.ops\" must be empty when present")
		}
	}
	return nil
}

// validateNode is the recursive per-object check described by spec
// §4.7 steps 1-8.
func (val *Validator) validateNode(v Value) (*Node, *Diagnostic) {
	if v.Kind != KindObject {
		return nil, newDiag(val.buf, v.Off, "expected an AST node object, got %s", kindName(v.Kind))
	}
	if len(v.Members) == 0 || v.Members[0].Key != "k" {
		return nil, newDiag(val.buf, v.Off, "\"k\" must be the first field of every node")
	}
	kv, _ := v.Field("k")
	ks, ok := kv.AsString()
	if !ok {
		return nil, newDiag(val.buf, kv.Off, "\"k\" must be a string")
	}
	if ks == vocab.TokenKind {
		return nil, newDiag(val.buf, v.Off, "expected an intrinsic node, got a bare token leaf")
	}
	kind, err := vocab.ParseIntrinsic(ks)
	if err != nil {
		return nil, newDiag(val.buf, kv.Off, "%v", err)
	}

	schema, ok := schemas[kind]
	if !ok {
		return nil, newDiag(val.buf, kv.Off, "no schema registered for intrinsic %q", ks)
	}

	for _, m := range v.Members {
		if m.Key == "k" {
			continue
		}
		if _, ok := schema.allowed(m.Key); !ok {
			allowed := schema.allowedNames()
			sort.Strings(allowed)
			return nil, newDiag(val.buf, m.KeyOff, "%s: unrecognized field %q (allowed: %v)", kind, m.Key, allowed)
		}
	}

	node := &Node{
		Kind:   kind,
		Off:    v.Off,
		Tokens: map[string]Token{},
		Nodes:  map[string]*Node{},
		Null:   map[string]bool{},
		Arrays: map[string][]*Node{},
	}

	for _, f := range schema.fields {
		fv, present := v.Field(f.name)
		if !present {
			if f.required {
				return nil, newDiag(val.buf, v.Off, "%s: missing required field %q (schema: %v)", kind, f.name, schema.allowedNames())
			}
			continue
		}
		switch f.kind {
		case fieldToken:
			tok, d := val.asToken(fv)
			if d != nil {
				return nil, d
			}
			node.Tokens[f.name] = tok
			if kind == vocab.IntrTypeRef && f.name == "name" {
				if _, err := vocab.ParseType(tok.Text); err != nil {
					return nil, newDiag(val.buf, fv.Off, "TypeRef.name: %v", err)
				}
			}
			if kind == vocab.IntrBin && f.name == "op_tok" {
				if _, err := vocab.ParseOp(tok.Text); err != nil {
					return nil, newDiag(val.buf, fv.Off, "Bin.op: %v (allowed: %v)", err, vocab.OpNames())
				}
			}
		case fieldNode:
			child, d := val.validateNode(fv)
			if d != nil {
				return nil, d
			}
			node.Nodes[f.name] = child
		case fieldNodeOrNull:
			if fv.Kind == KindNull {
				node.Null[f.name] = true
				continue
			}
			child, d := val.validateNode(fv)
			if d != nil {
				return nil, d
			}
			node.Nodes[f.name] = child
		case fieldArgsOrNull:
			if fv.Kind == KindNull {
				node.Null[f.name] = true
				continue
			}
			child, d := val.validateNode(fv)
			if d != nil {
				return nil, d
			}
			if child.Kind != vocab.IntrArgs {
				return nil, newDiag(val.buf, fv.Off, "%s.%s must be null or an Args node, got %s", kind, f.name, child.Kind)
			}
			node.Nodes[f.name] = child
		case fieldArray:
			if fv.Kind != KindArray {
				return nil, newDiag(val.buf, fv.Off, "%s.%s must be an array", kind, f.name)
			}
			items := make([]*Node, 0, len(fv.Elems))
			for _, e := range fv.Elems {
				child, d := val.validateNode(e)
				if d != nil {
					return nil, d
				}
				items = append(items, child)
			}
			node.Arrays[f.name] = items
		}
	}

	return node, nil
}
