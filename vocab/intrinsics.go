// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vocab

import "fmt"

// Intrinsic is an AST node kind drawn from the closed vocabulary of
// Stage-4 constructors (spec §3). "tok" (a token leaf) is deliberately
// not part of this enum: it is recognized by ast4 directly since it has
// no allow-listed field set of its own.
type Intrinsic uint8

const (
	IntrInvalid Intrinsic = iota
	IntrUnit
	IntrProc
	IntrBlock
	IntrVar
	IntrVarPat
	IntrExprStmt
	IntrReturn
	IntrIf
	IntrWhile
	IntrLoop
	IntrDoWhile
	IntrFor
	IntrForInt
	IntrBreak
	IntrContinue
	IntrParam
	IntrParamPat
	IntrCall
	IntrArgs
	IntrPatBind
	IntrPatInt
	IntrPatWild
	IntrName
	IntrTypeRef
	IntrInt
	IntrF32
	IntrF64
	IntrUnitVal
	IntrBytes
	IntrStringUtf8
	IntrCStr
	IntrChar
	IntrZExtI64FromI32
	IntrSExtI64FromI32
	IntrTruncI32FromI64
	IntrF64FromI32S
	IntrF32FromI32S
	IntrTruncSatI32FromF64S
	IntrTruncSatI32FromF32S
	IntrPtrFromI64
	IntrI64FromPtr
	IntrTrue
	IntrFalse
	IntrNil
	IntrParen
	IntrNot
	IntrNeg
	IntrBitNot
	IntrAddrOf
	IntrDeref
	IntrBin
	IntrMatch
	IntrMatchArm
)

var intrinsicNames = [...]string{
	IntrInvalid:             "",
	IntrUnit:                "Unit",
	IntrProc:                "Proc",
	IntrBlock:               "Block",
	IntrVar:                 "Var",
	IntrVarPat:              "VarPat",
	IntrExprStmt:            "ExprStmt",
	IntrReturn:              "Return",
	IntrIf:                  "If",
	IntrWhile:               "While",
	IntrLoop:                "Loop",
	IntrDoWhile:             "DoWhile",
	IntrFor:                 "For",
	IntrForInt:              "ForInt",
	IntrBreak:               "Break",
	IntrContinue:            "Continue",
	IntrParam:               "Param",
	IntrParamPat:            "ParamPat",
	IntrCall:                "Call",
	IntrArgs:                "Args",
	IntrPatBind:             "PatBind",
	IntrPatInt:              "PatInt",
	IntrPatWild:             "PatWild",
	IntrName:                "Name",
	IntrTypeRef:             "TypeRef",
	IntrInt:                 "Int",
	IntrF32:                 "F32",
	IntrF64:                 "F64",
	IntrUnitVal:             "UnitVal",
	IntrBytes:               "Bytes",
	IntrStringUtf8:          "StringUtf8",
	IntrCStr:                "CStr",
	IntrChar:                "Char",
	IntrZExtI64FromI32:      "ZExtI64FromI32",
	IntrSExtI64FromI32:      "SExtI64FromI32",
	IntrTruncI32FromI64:     "TruncI32FromI64",
	IntrF64FromI32S:         "F64FromI32S",
	IntrF32FromI32S:         "F32FromI32S",
	IntrTruncSatI32FromF64S: "TruncSatI32FromF64S",
	IntrTruncSatI32FromF32S: "TruncSatI32FromF32S",
	IntrPtrFromI64:          "PtrFromI64",
	IntrI64FromPtr:          "I64FromPtr",
	IntrTrue:                "True",
	IntrFalse:               "False",
	IntrNil:                 "Nil",
	IntrParen:               "Paren",
	IntrNot:                 "Not",
	IntrNeg:                 "Neg",
	IntrBitNot:              "BitNot",
	IntrAddrOf:              "AddrOf",
	IntrDeref:               "Deref",
	IntrBin:                 "Bin",
	IntrMatch:               "Match",
	IntrMatchArm:            "MatchArm",
}

// TokenKind is the sentinel "k" value for a token leaf, which parses
// outside of the Intrinsic enum proper (spec §4.7 step 2).
const TokenKind = "tok"

var intrinsicByName map[string]Intrinsic

func init() {
	intrinsicByName = make(map[string]Intrinsic, len(intrinsicNames))
	for k, n := range intrinsicNames {
		if n == "" {
			continue
		}
		intrinsicByName[n] = Intrinsic(k)
	}
}

func (k Intrinsic) String() string {
	if int(k) < len(intrinsicNames) {
		return intrinsicNames[k]
	}
	return ""
}

// ParseIntrinsic parses a node's "k" field, excluding the "tok" sentinel
// which callers must check for first.
func ParseIntrinsic(s string) (Intrinsic, error) {
	if k, ok := intrinsicByName[s]; ok {
		return k, nil
	}
	return IntrInvalid, fmt.Errorf("vocab: unrecognized intrinsic %q", s)
}

// IsIntConv reports whether k is one of the explicit integer/float width
// conversion intrinsics (spec §3's "plus the integer conversions"
// clause) — these never implicitly coerce, they are always an explicit
// AST node.
func (k Intrinsic) IsIntConv() bool {
	switch k {
	case IntrZExtI64FromI32, IntrSExtI64FromI32, IntrTruncI32FromI64,
		IntrF64FromI32S, IntrF32FromI32S,
		IntrTruncSatI32FromF64S, IntrTruncSatI32FromF32S,
		IntrPtrFromI64, IntrI64FromPtr:
		return true
	}
	return false
}

// IntrinsicNames returns the canonical spellings of every recognized
// non-token intrinsic, in table order.
func IntrinsicNames() []string {
	out := make([]string, 0, len(intrinsicNames)-1)
	for k, n := range intrinsicNames {
		if k == int(IntrInvalid) {
			continue
		}
		out = append(out, n)
	}
	return out
}
