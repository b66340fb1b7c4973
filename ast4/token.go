// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ast4

// Token is a leaf node (k == "tok"): a terminal carrying source text.
// Spec §4.7 step 2 allows only this fixed field set on a token object,
// and requires Text to be present.
type Token struct {
	NID       int
	I         int
	Kind      string
	StartByte int
	EndByte   int
	Text      string
}

var tokenAllowedFields = map[string]bool{
	"k": true, "nid": true, "i": true, "kind": true,
	"start_byte": true, "end_byte": true, "text": true,
}

// asToken validates v as a token leaf and extracts Text (the only field
// the lowerer actually needs; nid/i/kind/start_byte/end_byte are carried
// for round-tripping but not semantically consumed by sem2sir).
func (val *Validator) asToken(v Value) (Token, *Diagnostic) {
	if v.Kind != KindObject {
		return Token{}, newDiag(val.buf, v.Off, "expected a token leaf object, got %s", kindName(v.Kind))
	}
	kv, ok := v.Field("k")
	if !ok {
		return Token{}, newDiag(val.buf, v.Off, "token leaf missing required field \"k\"")
	}
	if v.Members[0].Key != "k" {
		return Token{}, newDiag(val.buf, v.Off, "\"k\" must be the first field of every node")
	}
	ks, ok := kv.AsString()
	if !ok || ks != "tok" {
		return Token{}, newDiag(val.buf, v.Off, "expected token leaf (k==\"tok\"), got k=%v", kv)
	}
	for _, m := range v.Members {
		if !tokenAllowedFields[m.Key] {
			return Token{}, newDiag(val.buf, m.Val.Off, "token leaf: unrecognized field %q", m.Key)
		}
	}
	textV, ok := v.Field("text")
	if !ok {
		return Token{}, newDiag(val.buf, v.Off, "token leaf missing required field \"text\"")
	}
	text, ok := textV.AsString()
	if !ok {
		return Token{}, newDiag(val.buf, textV.Off, "token leaf field \"text\" must be a string")
	}

	tok := Token{Text: text}
	if n, ok := v.Field("nid"); ok {
		tok.NID = int(numberToInt(n))
	}
	if n, ok := v.Field("i"); ok {
		tok.I = int(numberToInt(n))
	}
	if s, ok := v.Field("kind"); ok {
		if ks, ok2 := s.AsString(); ok2 {
			tok.Kind = ks
		}
	}
	if n, ok := v.Field("start_byte"); ok {
		tok.StartByte = int(numberToInt(n))
	}
	if n, ok := v.Field("end_byte"); ok {
		tok.EndByte = int(numberToInt(n))
	}
	return tok, nil
}

func numberToInt(v Value) int64 {
	var n int64
	for _, c := range v.Num {
		if c == '-' {
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int64(c-'0')
	}
	if len(v.Num) > 0 && v.Num[0] == '-' {
		n = -n
	}
	return n
}

func kindName(k Kind) string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return "unknown"
}
