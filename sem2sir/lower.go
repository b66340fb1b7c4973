// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package sem2sir lowers a validated Stage-4 AST (ast4.Document) into a
// SIR module (sir.Module). It is the design centerpiece: a single,
// non-recursive-on-the-IR, strictly-checking translator that performs
// no type inference and accepts no implicit context (spec §4.9).
package sem2sir

import (
	"fmt"

	"github.com/semtoolchain/sem/ast4"
	"github.com/semtoolchain/sem/log"
	"github.com/semtoolchain/sem/sir"
	"github.com/semtoolchain/sem/vocab"
)

// Error is the single structured failure type every lowering step
// returns; spec §4.10 requires a single propagated error with no
// partial output.
type Error struct {
	Msg    string
	NodeID int
}

func (e *Error) Error() string { return e.Msg }

func errf(format string, args ...any) *Error { return &Error{Msg: fmt.Sprintf(format, args...)} }

// Options configures a Lower call.
type Options struct {
	Logger *log.Helper
}

// procInfo is the pre-scanned signature of one Proc item (spec §4.9's
// "Proc pre-scan").
type procInfo struct {
	name     string
	params   []paramInfo
	ret      vocab.Type
	extern   bool
	linkName string
	fid      sir.FuncID
	sig      sir.TypeID
	sym      sir.SymbolID // valid when extern: the call.indirect symbol target
}

type paramInfo struct {
	name string
	typ  vocab.Type
}

// lowering carries all state threaded through one Lower call: the
// builder, the proc table, the meta defaults, the feature set, and the
// per-function context stack (locals/effects/loop targets) reset at
// each Proc.
type lowering struct {
	opts    Options
	b       *sir.Builder
	doc     *ast4.Document
	procs   map[string]*procInfo
	feature struct{ semV1, dataV1 bool }

	typeIDs map[vocab.Type]sir.TypeID

	fn    *fnCtx
	stats Stats // running counters; see profile.go
}

// fnCtx is the per-function lowering context.
type fnCtx struct {
	fid         sir.FuncID
	locals      map[string]*localBinding
	nextSlot    sir.SlotID
	loops       []loopCtx
	fnRet       vocab.Type
	blockIsOpen bool // false once the current block has a terminator
}

// loopCtx accumulates Break/Continue branch ips emitted while a loop's
// body is being lowered; their real targets (the step/header block and
// the exit block) aren't known until the loop's control-flow skeleton
// finishes being built, so they are patched in a final pass.
type loopCtx struct {
	breakBrs    []int
	continueBrs []int
}

// localBinding is either slot-backed (an alloca address held in a slot)
// or a direct value binding (the value lives in a slot with no memory
// behind it), per spec §4.9's "Local bindings".
type localBinding struct {
	typ        vocab.Type
	slotBacked bool
	slot       sir.SlotID // address slot if slotBacked, else the value slot
}

// Lower runs the full SEM2SIR pass over doc and returns the resulting
// SIR module, or a structured *Error on the first strict-checking
// violation. It is a convenience wrapper over NewLowerer(opts).Lower;
// use a Lowerer directly when the caller wants Stats() afterward.
func Lower(doc *ast4.Document, opts Options) (*sir.Module, error) {
	return NewLowerer(opts).Lower(doc)
}

// Lowerer runs one or more Lower passes with the same Options,
// accumulating the most recent pass's profiling counters (the
// supplementary sem2sir_profile.c-grounded feature) for callers that
// want them; package-level Lower is stateless sugar over an anonymous
// Lowerer for callers that don't.
type Lowerer struct {
	opts  Options
	stats Stats
}

// NewLowerer constructs a Lowerer configured with opts.
func NewLowerer(opts Options) *Lowerer { return &Lowerer{opts: opts} }

// Stats reports the profiling counters from the most recent successful
// Lower call. Zero value before any call has succeeded.
func (lw *Lowerer) Stats() Stats { return lw.stats }

// Lower runs the full SEM2SIR pass over doc and returns the resulting
// SIR module, or a structured *Error on the first strict-checking
// violation.
func (lw *Lowerer) Lower(doc *ast4.Document) (*sir.Module, error) {
	l := &lowering{
		opts:    lw.opts,
		b:       sir.NewBuilder("main"),
		doc:     doc,
		procs:   map[string]*procInfo{},
		typeIDs: map[vocab.Type]sir.TypeID{},
	}

	l.b.EnableFeature("data:v1")
	for _, prim := range []vocab.Type{vocab.TypeBytes, vocab.TypeString, vocab.TypeCStr} {
		l.internType(prim)
	}

	if err := l.prescanProcs(); err != nil {
		return nil, err
	}
	if l.detectSemV1() {
		l.feature.semV1 = true
		l.b.EnableFeature("sem:v1")
	}

	items := doc.Ast.Array("items")
	for _, item := range items {
		if item.Kind != vocab.IntrProc {
			continue
		}
		name := item.Token("name").Text
		pi := l.procs[name]
		if pi.extern {
			continue // fully declared during prescanProcs; no body to lower
		}
		if err := l.lowerProc(item, pi); err != nil {
			return nil, err
		}
	}

	mod := l.b.Finalize()
	lw.stats = statsOf(mod, l.stats.LocalsBound)
	return mod, nil
}

// internType returns the sir.TypeID for a vocab.Type, interning it on
// first use.
func (l *lowering) internType(t vocab.Type) sir.TypeID {
	if id, ok := l.typeIDs[t]; ok {
		return id
	}
	id := l.b.Prim(t)
	l.typeIDs[t] = id
	return id
}

func (l *lowering) log() *log.Helper { return l.opts.Logger }

func (l *lowering) debugf(format string, args ...any) {
	if l.opts.Logger != nil {
		l.opts.Logger.Debugf(format, args...)
	}
}
