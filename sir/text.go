// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package sir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// WriteText emits m as the JSON-lines stream described by spec §6: a
// leading meta line, then one line per type, node, block and function,
// each a single JSON object. encoding/json is used only for this
// output-side formatting — the strict input path lives in ast4, which
// needs byte-offset tracking json/Unmarshal cannot give back.
func WriteText(w io.Writer, m *Module) error {
	enc := json.NewEncoder(w)

	if err := enc.Encode(map[string]any{
		"ir": "sir-v1.0", "k": "meta", "producer": "sem2sir", "unit": m.Unit,
		"ext": map[string]any{"features": m.Features},
	}); err != nil {
		return err
	}

	for id, t := range m.Types {
		if id == 0 {
			continue
		}
		if err := enc.Encode(typeLine(m, TypeID(id), t)); err != nil {
			return err
		}
	}

	for fid := 1; fid < len(m.Funcs); fid++ {
		f := &m.Funcs[fid]
		fref := fmt.Sprintf("fn:%s", f.Name)
		if f.Extern {
			if err := enc.Encode(map[string]any{
				"k": "node", "id": fref, "tag": "decl.fn",
				"type_ref": typeRef(f.Sig), "fields": map[string]any{"name": f.Name},
			}); err != nil {
				return err
			}
			continue
		}

		var blockRefs []string
		for bi, blk := range f.Blocks {
			bref := fmt.Sprintf("%s.b%d", fref, bi)
			blockRefs = append(blockRefs, bref)
			var stmtRefs []string
			for ip := blk.Start; ip < blk.End; ip++ {
				nref := fmt.Sprintf("%s.n%d", fref, ip)
				stmtRefs = append(stmtRefs, nref)
				if err := enc.Encode(instLine(m, fref, ip, &f.Insts[ip])); err != nil {
					return err
				}
			}
			if err := enc.Encode(map[string]any{
				"k": "node", "id": bref, "tag": "block",
				"fields": map[string]any{"stmts": stmtRefs},
			}); err != nil {
				return err
			}
		}

		if err := enc.Encode(map[string]any{
			"k": "node", "id": fref, "tag": "fn", "type_ref": typeRef(f.Sig),
			"fields": map[string]any{
				"name": f.Name, "linkage": f.Linkage.String(),
				"entry": blockRefs[0], "blocks": blockRefs,
			},
		}); err != nil {
			return err
		}
	}
	return nil
}

// Text renders m as a JSONL byte slice by running WriteText into a
// buffer.
func Text(m *Module) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteText(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func typeRef(id TypeID) string { return fmt.Sprintf("t:%d", id) }

func typeLine(m *Module, id TypeID, t Type) map[string]any {
	switch t.Kind {
	case TypeKindPrim:
		return map[string]any{"k": "type", "id": typeRef(id), "kind": "prim", "prim": t.Prim.String()}
	case TypeKindPtr:
		return map[string]any{"k": "type", "id": typeRef(id), "kind": "ptr", "of": typeRef(t.Of)}
	default:
		params := make([]string, len(t.Params))
		for i, p := range t.Params {
			params[i] = typeRef(p)
		}
		return map[string]any{
			"k": "type", "id": typeRef(id), "kind": "fn",
			"params": params, "ret": typeRef(t.Ret),
		}
	}
}

func operandRef(fref string, o Operand) any {
	switch o.Kind {
	case OperandSlot:
		return fmt.Sprintf("%s.s%d", fref, o.Slot)
	case OperandImmI64:
		return o.ImmI64
	case OperandImmF32:
		return o.ImmF32
	case OperandImmF64:
		return o.ImmF64
	case OperandSymbol:
		return fmt.Sprintf("sym:%d", o.Sym)
	case OperandGlobal:
		return fmt.Sprintf("g:%d", o.Global)
	case OperandFunc:
		return fmt.Sprintf("fn:%d", o.Func)
	case OperandIP:
		return fmt.Sprintf("%s.n%d", fref, o.IP)
	case OperandBytes:
		return o.Bytes
	default:
		return o.Str
	}
}

func instLine(m *Module, fref string, ip int, inst *Inst) map[string]any {
	id := fmt.Sprintf("%s.n%d", fref, ip)
	fields := map[string]any{}

	switch inst.Op {
	case OpTermBr:
		fields["to"] = operandRef(fref, inst.Args[0])
	case OpTermCondBr:
		fields["cond"] = operandRef(fref, inst.Args[0])
		fields["then"] = operandRef(fref, inst.Args[1])
		fields["else"] = operandRef(fref, inst.Args[2])
	case OpTermSwitch, OpSemSwitch:
		fields["args"] = refs(fref, inst.Args)
	case OpLoadI32, OpLoadI64, OpLoadU8, OpLoadF64, OpLoadPtr:
		fields["addr"] = operandRef(fref, inst.Args[0])
		fields["align"] = alignOf(inst.Op)
	case OpStoreI32, OpStoreI64, OpStoreU8, OpStoreF64, OpStorePtr:
		fields["addr"] = operandRef(fref, inst.Args[0])
		fields["value"] = operandRef(fref, inst.Args[1])
		fields["align"] = alignOf(inst.Op)
	default:
		fields["args"] = refs(fref, inst.Args)
	}
	if inst.Src.Valid {
		fields["src_node_id"] = inst.Src.NodeID
		fields["src_line"] = inst.Src.Line
	}

	out := map[string]any{"k": "node", "id": id, "tag": inst.Op.String(), "fields": fields}
	if inst.Type != 0 {
		out["type_ref"] = typeRef(inst.Type)
	}
	return out
}

func refs(fref string, args []Operand) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = operandRef(fref, a)
	}
	return out
}

func alignOf(op Opcode) int {
	switch op {
	case OpLoadU8, OpStoreU8:
		return 1
	case OpLoadI32, OpStoreI32:
		return 4
	case OpLoadI64, OpStoreI64, OpLoadF64, OpStoreF64, OpLoadPtr, OpStorePtr:
		return 8
	}
	return 1
}
