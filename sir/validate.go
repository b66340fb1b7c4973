// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package sir

import "fmt"

// ValidateDiag is the structured diagnostic a failed Validate call
// returns (spec §4.8: "{code, message, fid, ip, op, src_node_id,
// src_line}").
type ValidateDiag struct {
	Code      string
	Message   string
	FID       FuncID
	IP        int
	Op        Opcode
	SrcNodeID int
	SrcLine   int
}

func (d *ValidateDiag) Error() string {
	return fmt.Sprintf("sir: %s: %s (fn=%d ip=%d op=%s)", d.Code, d.Message, d.FID, d.IP, d.Op)
}

func diag(code, msg string, fid FuncID, ip int, op Opcode, src SrcLoc) *ValidateDiag {
	d := &ValidateDiag{Code: code, Message: msg, FID: fid, IP: ip, Op: op}
	if src.Valid {
		d.SrcNodeID, d.SrcLine = src.NodeID, src.Line
	}
	return d
}

// Validate performs the structural and type-level checks spec §4.8
// names: entry existence, in-range branch targets, in-range slot ids,
// referenced type/symbol/global/function ids exist, no statement
// follows a terminator, every block terminates.
func Validate(m *Module) *ValidateDiag {
	if m.Entry == 0 || int(m.Entry) >= len(m.Funcs) {
		return &ValidateDiag{Code: "invalid", Message: "entry function id out of range"}
	}
	if m.Funcs[m.Entry].Extern {
		return &ValidateDiag{Code: "invalid", Message: "entry function cannot be extern"}
	}

	for fid := 1; fid < len(m.Funcs); fid++ {
		f := &m.Funcs[fid]
		if err := validateType(m, f.Sig); err != nil {
			return diag("invalid", "function references unknown signature type", FuncID(fid), -1, OpInvalid, SrcLoc{})
		}
		if f.Extern {
			continue
		}
		if d := validateFunc(m, FuncID(fid), f); d != nil {
			return d
		}
	}
	return nil
}

func validateType(m *Module, id TypeID) error {
	if id == 0 || int(id) >= len(m.Types) {
		return fmt.Errorf("type id %d out of range", id)
	}
	return nil
}

func validateFunc(m *Module, fid FuncID, f *Func) *ValidateDiag {
	if len(f.Blocks) == 0 {
		return diag("invalid", "function has no blocks", fid, -1, OpInvalid, SrcLoc{})
	}

	// Every ip belongs to exactly one block, in increasing non-overlapping order,
	// and every block's last instruction (and only its last) is a terminator.
	nextStart := 0
	for bi, blk := range f.Blocks {
		if blk.Start != nextStart {
			return diag("invalid", "blocks are not contiguous", fid, blk.Start, OpInvalid, SrcLoc{})
		}
		if blk.End <= blk.Start {
			return diag("invalid", "block has no instructions", fid, blk.Start, OpInvalid, SrcLoc{})
		}
		for ip := blk.Start; ip < blk.End; ip++ {
			inst := f.Insts[ip]
			isLast := ip == blk.End-1
			if inst.Op.IsTerminator() && !isLast {
				return diag("invalid", "statement follows a terminator in the same block", fid, ip, inst.Op, inst.Src)
			}
			if !inst.Op.IsTerminator() && isLast {
				return diag("invalid", fmt.Sprintf("block %d does not end in a terminator", bi), fid, ip, inst.Op, inst.Src)
			}
			if d := validateInst(m, f, fid, ip, &inst); d != nil {
				return d
			}
		}
		nextStart = blk.End
	}
	if nextStart != len(f.Insts) {
		return diag("invalid", "trailing instructions outside any block", fid, nextStart, OpInvalid, SrcLoc{})
	}

	for _, blk := range f.Blocks {
		last := f.Insts[blk.End-1]
		for _, target := range branchTargets(last) {
			if target < 0 || target >= len(f.Insts) {
				return diag("bounds", "branch target ip out of range", fid, blk.End-1, last.Op, last.Src)
			}
			if !blockStartsAt(f, target) {
				return diag("invalid", "branch target is not a block start", fid, blk.End-1, last.Op, last.Src)
			}
		}
	}
	return nil
}

func blockStartsAt(f *Func, ip int) bool {
	for _, b := range f.Blocks {
		if b.Start == ip {
			return true
		}
	}
	return false
}

func branchTargets(inst Inst) []int {
	var out []int
	switch inst.Op {
	case OpTermBr:
		out = append(out, inst.Args[0].IP)
	case OpTermCondBr:
		out = append(out, inst.Args[1].IP, inst.Args[2].IP)
	case OpTermSwitch:
		for _, a := range inst.Args[1:] {
			out = append(out, a.IP)
		}
	}
	return out
}

func validateInst(m *Module, f *Func, fid FuncID, ip int, inst *Inst) *ValidateDiag {
	for _, a := range inst.Args {
		if a.Kind == OperandSlot && uint32(a.Slot) >= f.NumSlots {
			return diag("bounds", "operand slot id out of range", fid, ip, inst.Op, inst.Src)
		}
		if a.Kind == OperandSymbol && int(a.Sym) >= len(m.Symbols) {
			return diag("invalid", "operand references unknown symbol", fid, ip, inst.Op, inst.Src)
		}
		if a.Kind == OperandGlobal && int(a.Global) >= len(m.Globals) {
			return diag("invalid", "operand references unknown global", fid, ip, inst.Op, inst.Src)
		}
		if a.Kind == OperandFunc && (a.Func == 0 || int(a.Func) >= len(m.Funcs)) {
			return diag("invalid", "operand references unknown function", fid, ip, inst.Op, inst.Src)
		}
	}
	if uint32(inst.Dst) >= f.NumSlots && inst.Dst != 0 {
		return diag("bounds", "destination slot id out of range", fid, ip, inst.Op, inst.Src)
	}
	if inst.Type != 0 {
		if err := validateType(m, inst.Type); err != nil {
			return diag("invalid", "instruction result type unknown", fid, ip, inst.Op, inst.Src)
		}
	}
	return nil
}
