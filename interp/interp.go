// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package interp implements the SIR interpreter: a slot-table
// evaluator that executes a validated sir.Module's entry function
// against a hosted zabi.Runtime (spec §4.8's "Interpreter", §5's
// single-threaded cooperative scheduling model).
package interp

import (
	"encoding/binary"
	"math"

	"github.com/semtoolchain/sem/sir"
	"github.com/semtoolchain/sem/zabi"
	"github.com/semtoolchain/sem/zerr"
)

// Slot is a tagged-union value: at most one kind is meaningful,
// determined by the instruction that defined it (spec §3's "Value
// slot").
type Slot struct {
	I64 int64
	F32 float32
	F64 float64
	Ptr zabi.Ptr
}

// Host is the subset of zabi.Runtime the interpreter's call_extern
// dispatch table targets (spec §4.8: "zi_write, zi_end, zi_alloc,
// zi_free, zi_telemetry"). Declared as an interface so tests can stub
// it without constructing a full zabi.Runtime.
type Host interface {
	Read(h zabi.Handle, dstPtr zabi.Ptr, cap uint32) (int32, error)
	Write(h zabi.Handle, srcPtr zabi.Ptr, length uint32) (int32, error)
	End(h zabi.Handle) error
	Alloc(size uint32) zabi.Ptr
	Free(ptr zabi.Ptr) error
	Telemetry(topicPtr zabi.Ptr, topicLen uint32, msgPtr zabi.Ptr, msgLen uint32)
	MapRO(ptr zabi.Ptr, length uint32) ([]byte, error)
	MapRW(ptr zabi.Ptr, length uint32) ([]byte, error)
}

// EventSink observes a run without influencing it: every hook is
// best-effort and side-effect-free from the interpreter's point of
// view, letting trace/coverage tooling sit on top of Interp without
// forking it (supplementary to spec §4.8/§5, grounded on the original
// implementation's sir_exec_event_sink_t).
type EventSink interface {
	// OnStep fires immediately before fid's instruction at ip executes.
	OnStep(fid sir.FuncID, ip int, op sir.Opcode)
	// OnMem fires around a guest memory access; write reports whether
	// it was a store (true) or a load (false).
	OnMem(addr zabi.Ptr, size uint32, write bool)
	// OnHostcall fires before a call.indirect dispatches to name.
	OnHostcall(name string)
}

// RuntimeError is the non-zero-but-negative result the interpreter
// returns when execution fails rather than reaching a terminator
// cleanly (spec §4.10: "a non-negative exit code or a negative error").
type RuntimeError struct {
	Code zerr.Code
	Msg  string
}

func (e *RuntimeError) Error() string { return e.Msg }

// Interp executes one sir.Module's entry function against a Host.
type Interp struct {
	mod     *sir.Module
	host    Host
	globals []zabi.Ptr // lazily populated by ensureGlobals, indexed by GlobalID
	sink    EventSink
}

// New constructs an interpreter over mod (assumed already
// sir.Validate-accepted) and host.
func New(mod *sir.Module, host Host) *Interp {
	return &Interp{mod: mod, host: host}
}

// Run allocates a zeroed value-slot table for the entry function and
// executes it by ip until a ret/ret_val/exit/exit_val terminator is
// reached, returning the resulting exit code or a *RuntimeError. It is
// RunWithSink(nil) (spec's required entry point, per the supplementary
// event-sink feature).
func (ip *Interp) Run() (int64, error) {
	return ip.RunWithSink(nil)
}

// RunWithSink is Run with an optional EventSink observing every step,
// memory access and hostcall as it happens. Passing nil behaves exactly
// like Run.
func (ip *Interp) RunWithSink(sink EventSink) (int64, error) {
	ip.sink = sink
	if err := ip.ensureGlobals(); err != nil {
		return 0, err
	}
	return ip.call(ip.mod.Entry, nil)
}

// ensureGlobals materializes every module-level Global's initializer
// into host-arena memory once, up front, so const.struct/cstr opcodes
// can reference a stable address for the rest of the run (spec §4.9's
// data:v1 string/bytes literal lowering).
func (ip *Interp) ensureGlobals() error {
	if ip.globals != nil {
		return nil
	}
	ip.globals = make([]zabi.Ptr, len(ip.mod.Globals))
	for i, g := range ip.mod.Globals {
		if len(g.Init) == 0 {
			continue
		}
		p := ip.host.Alloc(uint32(len(g.Init)))
		if p == 0 {
			return &RuntimeError{Code: zerr.OOM, Msg: "interp: out of memory materializing global " + g.Name}
		}
		raw, err := ip.host.MapRW(p, uint32(len(g.Init)))
		if err != nil {
			return &RuntimeError{Code: zerr.CodeOf(err), Msg: err.Error()}
		}
		copy(raw, g.Init)
		ip.globals[i] = p
	}
	return nil
}

func (ip *Interp) call(fid sir.FuncID, args []Slot) (int64, error) {
	f := ip.mod.Func(fid)
	if f == nil {
		return 0, &RuntimeError{Code: zerr.Internal, Msg: "interp: unknown function id"}
	}
	slots := make([]Slot, f.NumSlots)
	for i, a := range args {
		if i+1 < len(slots) {
			slots[i+1] = a
		}
	}

	pc := 0
	for pc < len(f.Insts) {
		inst := &f.Insts[pc]
		if ip.sink != nil {
			ip.sink.OnStep(fid, pc, inst.Op)
		}
		next, ret, retOK, err := ip.step(f, slots, pc, inst)
		if err != nil {
			return 0, err
		}
		if retOK {
			return ret, nil
		}
		pc = next
	}
	return 0, &RuntimeError{Code: zerr.Internal, Msg: "interp: fell off the end of the instruction stream"}
}

func slotVal(slots []Slot, op sir.Operand) (Slot, error) {
	switch op.Kind {
	case sir.OperandSlot:
		if int(op.Slot) >= len(slots) {
			return Slot{}, &RuntimeError{Code: zerr.Invalid, Msg: "interp: slot id out of range"}
		}
		return slots[op.Slot], nil
	case sir.OperandImmI64:
		return Slot{I64: op.ImmI64}, nil
	case sir.OperandImmF32:
		return Slot{F32: math.Float32frombits(op.ImmF32)}, nil
	case sir.OperandImmF64:
		return Slot{F64: math.Float64frombits(op.ImmF64)}, nil
	default:
		return Slot{}, &RuntimeError{Code: zerr.Invalid, Msg: "interp: unsupported immediate operand kind"}
	}
}

// step executes one instruction, returning either the next pc or (ret,
// true) if a terminator ended execution.
func (ip *Interp) step(f *sir.Func, slots []Slot, pc int, inst *sir.Inst) (next int, ret int64, done bool, err error) {
	switch inst.Op {
	case sir.OpConstI32, sir.OpConstI64:
		slots[inst.Dst] = Slot{I64: inst.Args[0].ImmI64}
		return pc + 1, 0, false, nil
	case sir.OpConstF32:
		slots[inst.Dst] = Slot{F32: math.Float32frombits(inst.Args[0].ImmF32)}
		return pc + 1, 0, false, nil
	case sir.OpConstF64:
		slots[inst.Dst] = Slot{F64: math.Float64frombits(inst.Args[0].ImmF64)}
		return pc + 1, 0, false, nil

	case sir.OpCStr:
		if inst.Args[0].Kind != sir.OperandGlobal {
			return 0, 0, false, &RuntimeError{Code: zerr.Invalid, Msg: "interp: cstr missing global operand"}
		}
		slots[inst.Dst] = Slot{Ptr: ip.globals[inst.Args[0].Global]}
		return pc + 1, 0, false, nil

	case sir.OpConstStruct:
		if inst.Args[0].Kind != sir.OperandGlobal {
			return 0, 0, false, &RuntimeError{Code: zerr.Invalid, Msg: "interp: const.struct missing global operand"}
		}
		slots[inst.Dst] = Slot{Ptr: ip.globals[inst.Args[0].Global]}
		if inst.Dst2 != 0 {
			slots[inst.Dst2] = Slot{I64: inst.Args[1].ImmI64}
		}
		return pc + 1, 0, false, nil

	case sir.OpAlloca:
		size := inst.Args[0].ImmI64
		align := uint32(16)
		if len(inst.Args) > 1 {
			align = uint32(inst.Args[1].ImmI64)
		}
		p := zabiAllocViaHost(ip.host, uint32(size), align)
		slots[inst.Dst] = Slot{Ptr: p}
		return pc + 1, 0, false, nil

	case sir.OpLoadI32, sir.OpLoadI64, sir.OpLoadU8, sir.OpLoadF64, sir.OpLoadPtr:
		addr, e := slotVal(slots, inst.Args[0])
		if e != nil {
			return 0, 0, false, e
		}
		width := loadWidth(inst.Op)
		if ip.sink != nil {
			ip.sink.OnMem(addr.Ptr, width, false)
		}
		raw, merr := ip.host.MapRO(addr.Ptr, width)
		if merr != nil {
			return 0, 0, false, &RuntimeError{Code: zerr.CodeOf(merr), Msg: merr.Error()}
		}
		slots[inst.Dst] = decodeLoad(inst.Op, raw)
		return pc + 1, 0, false, nil

	case sir.OpStoreI32, sir.OpStoreI64, sir.OpStoreU8, sir.OpStoreF64, sir.OpStorePtr:
		addr, e1 := slotVal(slots, inst.Args[0])
		val, e2 := slotVal(slots, inst.Args[1])
		if e1 != nil {
			return 0, 0, false, e1
		}
		if e2 != nil {
			return 0, 0, false, e2
		}
		width := storeWidth(inst.Op)
		if ip.sink != nil {
			ip.sink.OnMem(addr.Ptr, width, true)
		}
		raw, merr := ip.host.MapRW(addr.Ptr, width)
		if merr != nil {
			return 0, 0, false, &RuntimeError{Code: zerr.CodeOf(merr), Msg: merr.Error()}
		}
		encodeStore(inst.Op, raw, val)
		return pc + 1, 0, false, nil

	case sir.OpI32Add, sir.OpI64Add:
		a, b, e := binOperands(slots, inst)
		if e != nil {
			return 0, 0, false, e
		}
		slots[inst.Dst] = Slot{I64: a + b}
		return pc + 1, 0, false, nil
	case sir.OpI32Sub, sir.OpI64Sub:
		a, b, e := binOperands(slots, inst)
		if e != nil {
			return 0, 0, false, e
		}
		slots[inst.Dst] = Slot{I64: a - b}
		return pc + 1, 0, false, nil
	case sir.OpI32Mul, sir.OpI64Mul:
		a, b, e := binOperands(slots, inst)
		if e != nil {
			return 0, 0, false, e
		}
		slots[inst.Dst] = Slot{I64: a * b}
		return pc + 1, 0, false, nil
	case sir.OpI32DivS, sir.OpI64DivS:
		a, b, e := binOperands(slots, inst)
		if e != nil {
			return 0, 0, false, e
		}
		if b == 0 {
			return 0, 0, false, &RuntimeError{Code: zerr.Invalid, Msg: "interp: division by zero"}
		}
		slots[inst.Dst] = Slot{I64: a / b}
		return pc + 1, 0, false, nil
	case sir.OpI32RemU, sir.OpI64RemU:
		a, b, e := binOperands(slots, inst)
		if e != nil {
			return 0, 0, false, e
		}
		if b == 0 {
			return 0, 0, false, &RuntimeError{Code: zerr.Invalid, Msg: "interp: remainder by zero"}
		}
		slots[inst.Dst] = Slot{I64: int64(uint64(a) % uint64(b))}
		return pc + 1, 0, false, nil
	case sir.OpI32And, sir.OpI64And:
		a, b, e := binOperands(slots, inst)
		if e != nil {
			return 0, 0, false, e
		}
		slots[inst.Dst] = Slot{I64: a & b}
		return pc + 1, 0, false, nil
	case sir.OpI32Or, sir.OpI64Or:
		a, b, e := binOperands(slots, inst)
		if e != nil {
			return 0, 0, false, e
		}
		slots[inst.Dst] = Slot{I64: a | b}
		return pc + 1, 0, false, nil
	case sir.OpI32Xor, sir.OpI64Xor:
		a, b, e := binOperands(slots, inst)
		if e != nil {
			return 0, 0, false, e
		}
		slots[inst.Dst] = Slot{I64: a ^ b}
		return pc + 1, 0, false, nil
	case sir.OpI32Shl, sir.OpI64Shl:
		a, b, e := binOperands(slots, inst)
		if e != nil {
			return 0, 0, false, e
		}
		slots[inst.Dst] = Slot{I64: a << uint(b)}
		return pc + 1, 0, false, nil
	case sir.OpI32Shr, sir.OpI64Shr:
		a, b, e := binOperands(slots, inst)
		if e != nil {
			return 0, 0, false, e
		}
		slots[inst.Dst] = Slot{I64: a >> uint(b)}
		return pc + 1, 0, false, nil
	case sir.OpI32Neg, sir.OpI64Neg:
		a, e := slotVal(slots, inst.Args[0])
		if e != nil {
			return 0, 0, false, e
		}
		slots[inst.Dst] = Slot{I64: -a.I64}
		return pc + 1, 0, false, nil
	case sir.OpI32Not, sir.OpI64Not:
		a, e := slotVal(slots, inst.Args[0])
		if e != nil {
			return 0, 0, false, e
		}
		slots[inst.Dst] = Slot{I64: ^a.I64}
		return pc + 1, 0, false, nil
	case sir.OpBoolNot:
		a, e := slotVal(slots, inst.Args[0])
		if e != nil {
			return 0, 0, false, e
		}
		if a.I64 == 0 {
			slots[inst.Dst] = Slot{I64: 1}
		} else {
			slots[inst.Dst] = Slot{I64: 0}
		}
		return pc + 1, 0, false, nil

	case sir.OpI32CmpEq, sir.OpI64CmpEq:
		slots[inst.Dst] = boolSlot(mustCmp(slots, inst) == 0)
		return pc + 1, 0, false, nil
	case sir.OpI32CmpNe, sir.OpI64CmpNe:
		slots[inst.Dst] = boolSlot(mustCmp(slots, inst) != 0)
		return pc + 1, 0, false, nil
	case sir.OpI32CmpLtS, sir.OpI64CmpLtS:
		slots[inst.Dst] = boolSlot(mustCmp(slots, inst) < 0)
		return pc + 1, 0, false, nil
	case sir.OpI32CmpLeS, sir.OpI64CmpLeS:
		slots[inst.Dst] = boolSlot(mustCmp(slots, inst) <= 0)
		return pc + 1, 0, false, nil
	case sir.OpI32CmpGtS, sir.OpI64CmpGtS:
		slots[inst.Dst] = boolSlot(mustCmp(slots, inst) > 0)
		return pc + 1, 0, false, nil
	case sir.OpI32CmpGeS, sir.OpI64CmpGeS:
		slots[inst.Dst] = boolSlot(mustCmp(slots, inst) >= 0)
		return pc + 1, 0, false, nil

	case sir.OpTermBr:
		return inst.Args[0].IP, 0, false, nil
	case sir.OpTermCondBr:
		cond, e := slotVal(slots, inst.Args[0])
		if e != nil {
			return 0, 0, false, e
		}
		if cond.I64 != 0 {
			return inst.Args[1].IP, 0, false, nil
		}
		return inst.Args[2].IP, 0, false, nil
	case sir.OpTermSwitch, sir.OpSemSwitch:
		scrut, e := slotVal(slots, inst.Args[0])
		if e != nil {
			return 0, 0, false, e
		}
		cases := inst.Args[1 : len(inst.Args)-1]
		for i, c := range cases {
			if int64(i) == scrut.I64 {
				return c.IP, 0, false, nil
			}
		}
		return inst.Args[len(inst.Args)-1].IP, 0, false, nil

	case sir.OpTermRet:
		return 0, 0, true, nil
	case sir.OpTermRetVal:
		v, e := slotVal(slots, inst.Args[0])
		if e != nil {
			return 0, 0, false, e
		}
		return 0, v.I64, true, nil
	case sir.OpExit:
		return 0, 0, true, nil
	case sir.OpExitVal:
		v, e := slotVal(slots, inst.Args[0])
		if e != nil {
			return 0, 0, false, e
		}
		return 0, v.I64, true, nil

	case sir.OpCall:
		ret, err := ip.callDirect(slots, inst)
		if err != nil {
			return 0, 0, false, err
		}
		if inst.Dst != 0 {
			slots[inst.Dst] = Slot{I64: ret}
		}
		return pc + 1, 0, false, nil

	case sir.OpCallIndirect:
		return pc + 1, 0, false, ip.callExtern(slots, inst)

	default:
		return 0, 0, false, &RuntimeError{Code: zerr.Nosys, Msg: "interp: unsupported opcode " + inst.Op.String()}
	}
}

func binOperands(slots []Slot, inst *sir.Inst) (int64, int64, error) {
	a, e1 := slotVal(slots, inst.Args[0])
	if e1 != nil {
		return 0, 0, e1
	}
	b, e2 := slotVal(slots, inst.Args[1])
	if e2 != nil {
		return 0, 0, e2
	}
	return a.I64, b.I64, nil
}

func mustCmp(slots []Slot, inst *sir.Inst) int64 {
	a, _ := slotVal(slots, inst.Args[0])
	b, _ := slotVal(slots, inst.Args[1])
	switch {
	case a.I64 < b.I64:
		return -1
	case a.I64 > b.I64:
		return 1
	default:
		return 0
	}
}

func boolSlot(v bool) Slot {
	if v {
		return Slot{I64: 1}
	}
	return Slot{I64: 0}
}

func loadWidth(op sir.Opcode) uint32 {
	switch op {
	case sir.OpLoadU8:
		return 1
	case sir.OpLoadI32:
		return 4
	default:
		return 8
	}
}

func storeWidth(op sir.Opcode) uint32 {
	switch op {
	case sir.OpStoreU8:
		return 1
	case sir.OpStoreI32:
		return 4
	default:
		return 8
	}
}

func decodeLoad(op sir.Opcode, raw []byte) Slot {
	switch op {
	case sir.OpLoadU8:
		return Slot{I64: int64(raw[0])}
	case sir.OpLoadI32:
		return Slot{I64: int64(int32(binary.LittleEndian.Uint32(raw)))}
	case sir.OpLoadI64:
		return Slot{I64: int64(binary.LittleEndian.Uint64(raw))}
	case sir.OpLoadF64:
		return Slot{F64: math.Float64frombits(binary.LittleEndian.Uint64(raw))}
	case sir.OpLoadPtr:
		return Slot{Ptr: zabi.Ptr(binary.LittleEndian.Uint64(raw))}
	}
	return Slot{}
}

func encodeStore(op sir.Opcode, raw []byte, v Slot) {
	switch op {
	case sir.OpStoreU8:
		raw[0] = byte(v.I64)
	case sir.OpStoreI32:
		binary.LittleEndian.PutUint32(raw, uint32(v.I64))
	case sir.OpStoreI64:
		binary.LittleEndian.PutUint64(raw, uint64(v.I64))
	case sir.OpStoreF64:
		binary.LittleEndian.PutUint64(raw, math.Float64bits(v.F64))
	case sir.OpStorePtr:
		binary.LittleEndian.PutUint64(raw, uint64(v.Ptr))
	}
}

func zabiAllocViaHost(h Host, size, align uint32) zabi.Ptr {
	_ = align // the hosted runtime's Alloc always uses default alignment 16 (spec §4.6)
	return h.Alloc(size)
}

// callDirect dispatches a call instruction to another function defined
// in the same module (spec §3: a Proc calling another Proc lowers to a
// direct call, never through the extern symbol table).
func (ip *Interp) callDirect(slots []Slot, inst *sir.Inst) (int64, error) {
	if len(inst.Args) == 0 || inst.Args[0].Kind != sir.OperandFunc {
		return 0, &RuntimeError{Code: zerr.Invalid, Msg: "interp: call missing function operand"}
	}
	callee := inst.Args[0].Func
	argSlots := inst.Args[1:]
	args := make([]Slot, len(argSlots))
	for i, a := range argSlots {
		v, err := slotVal(slots, a)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	return ip.call(callee, args)
}

// callExtern dispatches call.indirect instructions by symbol name to
// the hard-wired host primitive table (spec §4.8: "zi_write, zi_end,
// zi_alloc, zi_free, zi_telemetry").
func (ip *Interp) callExtern(slots []Slot, inst *sir.Inst) error {
	if len(inst.Args) == 0 || inst.Args[0].Kind != sir.OperandSymbol {
		return &RuntimeError{Code: zerr.Invalid, Msg: "interp: call.indirect missing symbol operand"}
	}
	sym := ip.mod.Symbols[inst.Args[0].Sym]
	if ip.sink != nil {
		ip.sink.OnHostcall(sym.Name)
	}
	argSlots := inst.Args[1:]
	args := make([]Slot, len(argSlots))
	for i, a := range argSlots {
		v, err := slotVal(slots, a)
		if err != nil {
			return err
		}
		args[i] = v
	}

	switch sym.Name {
	case "zi_write":
		n, err := ip.host.Write(zabi.Handle(args[0].I64), args[1].Ptr, uint32(args[2].I64))
		if err != nil {
			return &RuntimeError{Code: zerr.CodeOf(err), Msg: err.Error()}
		}
		if inst.Dst != 0 {
			slots[inst.Dst] = Slot{I64: int64(n)}
		}
		return nil
	case "zi_end":
		if err := ip.host.End(zabi.Handle(args[0].I64)); err != nil {
			return &RuntimeError{Code: zerr.CodeOf(err), Msg: err.Error()}
		}
		return nil
	case "zi_alloc":
		p := ip.host.Alloc(uint32(args[0].I64))
		if inst.Dst != 0 {
			slots[inst.Dst] = Slot{Ptr: p}
		}
		return nil
	case "zi_free":
		if err := ip.host.Free(args[0].Ptr); err != nil {
			return &RuntimeError{Code: zerr.CodeOf(err), Msg: err.Error()}
		}
		return nil
	case "zi_telemetry":
		ip.host.Telemetry(args[0].Ptr, uint32(args[1].I64), args[2].Ptr, uint32(args[3].I64))
		return nil
	default:
		return &RuntimeError{Code: zerr.Nosys, Msg: "interp: unknown extern symbol " + sym.Name}
	}
}
