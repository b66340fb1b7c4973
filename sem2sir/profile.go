// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package sem2sir

import "github.com/semtoolchain/sem/sir"

// Stats accumulates per-pass counters for one Lower call: purely
// observational bookkeeping that never feeds back into a lowering
// decision (supplementary feature grounded on the original
// implementation's sem2sir_profile.c/.h).
type Stats struct {
	NodesEmitted  int
	BlocksCreated int
	LocalsBound   int
	Funcs         int
}

// statsOf derives the instruction/block/function counts directly from
// the finalized module, so lowerProc's many call sites never need to
// remember to bump a counter themselves; localsBound is threaded in
// separately since declareLocal's bookkeeping has no module-level
// trace once locals are resolved to slots.
func statsOf(mod *sir.Module, localsBound int) Stats {
	st := Stats{LocalsBound: localsBound}
	for fid := 1; fid < len(mod.Funcs); fid++ {
		f := &mod.Funcs[fid]
		if f.Extern {
			continue
		}
		st.Funcs++
		st.NodesEmitted += len(f.Insts)
		st.BlocksCreated += len(f.Blocks)
	}
	return st
}
