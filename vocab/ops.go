// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package vocab

import "fmt"

// Op is a normalized semantic operator identifier (spec §3's "Ops").
type Op uint8

const (
	OpInvalid Op = iota
	OpAssign
	OpBoolAndSC
	OpBoolOrSC
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpShl
	OpShr
	OpBitAnd
	OpBitOr
	OpBitXor
	OpEq
	OpNe
	OpLt
	OpLte
	OpGt
	OpGte
)

var opNames = [...]string{
	OpInvalid:   "",
	OpAssign:    "core.assign",
	OpBoolAndSC: "core.bool.and_sc",
	OpBoolOrSC:  "core.bool.or_sc",
	OpAdd:       "core.add",
	OpSub:       "core.sub",
	OpMul:       "core.mul",
	OpDiv:       "core.div",
	OpRem:       "core.rem",
	OpShl:       "core.shl",
	OpShr:       "core.shr",
	OpBitAnd:    "core.bitand",
	OpBitOr:     "core.bitor",
	OpBitXor:    "core.bitxor",
	OpEq:        "core.eq",
	OpNe:        "core.ne",
	OpLt:        "core.lt",
	OpLte:       "core.lte",
	OpGt:        "core.gt",
	OpGte:       "core.gte",
}

var opByName map[string]Op

func init() {
	opByName = make(map[string]Op, len(opNames))
	for o, n := range opNames {
		if n == "" {
			continue
		}
		opByName[n] = Op(o)
	}
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return ""
}

// ParseOp parses a semantic operator id. Unknown strings are always an
// error per spec §3.
func ParseOp(s string) (Op, error) {
	if o, ok := opByName[s]; ok {
		return o, nil
	}
	return OpInvalid, fmt.Errorf("vocab: unrecognized op id %q (allowed: %v)", s, OpNames())
}

// IsArithmeticOrBitwise reports whether o is one of the i32/i64 "require
// expected type i32 or i64" operators from spec §4.9.
func (o Op) IsArithmeticOrBitwise() bool {
	switch o {
	case OpAdd, OpSub, OpMul, OpDiv, OpRem, OpShl, OpShr, OpBitAnd, OpBitOr, OpBitXor:
		return true
	}
	return false
}

// IsComparison reports whether o is one of the six comparison operators.
func (o Op) IsComparison() bool {
	switch o {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte:
		return true
	}
	return false
}

// IsShortCircuit reports whether o is a short-circuit boolean operator
// (triggers the sem:v1 feature per spec §4.9).
func (o Op) IsShortCircuit() bool {
	return o == OpBoolAndSC || o == OpBoolOrSC
}

// OpNames returns the canonical spellings of every recognized op.
func OpNames() []string {
	out := make([]string, 0, len(opNames)-1)
	for o, n := range opNames {
		if o == int(OpInvalid) {
			continue
		}
		out = append(out, n)
	}
	return out
}
