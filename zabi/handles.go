// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package zabi

import "github.com/semtoolchain/sem/zerr"

// Handle is a guest-visible capability reference. Slots 0/1/2 are
// reserved for stdio per spec §4.2.
type Handle int32

const (
	HandleStdin  Handle = 0
	HandleStdout Handle = 1
	HandleStderr Handle = 2
)

// HandleOps is the vtable a handle entry carries: the subset of
// read/write/end operations its flags permit.
type HandleOps interface {
	Read(dst []byte) (int, error)
	Write(src []byte) (int, error)
	End() error
}

// Handle flag bits, gating which HandleOps methods may be called.
const (
	HFlagReadable uint32 = 1 << iota
	HFlagWritable
	HFlagEndable
)

type handleEntry struct {
	ops    HandleOps
	hflags uint32
}

// HandleTable is a fixed-capacity, capability-gated slot table. Slots
// 0/1/2 are installable but never releasable or allocatable via the
// rolling cursor, which starts at 3 and wraps back to 3 (spec §4.2,
// grounded on the original implementation's handles.c).
type HandleTable struct {
	entries []handleEntry
	cap     uint32
	next    int32
}

// NewHandleTable allocates a table of cap slots. cap must be >= 4 (slots
// 0-2 reserved, at least one allocatable slot).
func NewHandleTable(cap uint32) (*HandleTable, error) {
	if cap < 4 {
		return nil, zerr.New(zerr.Invalid, "handles: capacity must be >= 4")
	}
	return &HandleTable{entries: make([]handleEntry, cap), cap: cap, next: 3}, nil
}

func (t *HandleTable) index(h Handle) (int, bool) {
	if h < 0 || uint32(h) >= t.cap {
		return 0, false
	}
	return int(h), true
}

// Install places entry directly into slot h, bypassing the rolling
// cursor; used to seed the reserved stdio slots.
func (t *HandleTable) Install(h Handle, ops HandleOps, hflags uint32) error {
	i, ok := t.index(h)
	if !ok {
		return zerr.New(zerr.Bounds, "handles: install out of range")
	}
	t.entries[i] = handleEntry{ops: ops, hflags: hflags}
	return nil
}

// Alloc scans forward from the rolling cursor for an empty slot (ops ==
// nil), skipping occupied ones, and installs entry there. Returns
// zerr.OOM if no empty slot is found within one full cycle.
func (t *HandleTable) Alloc(ops HandleOps, hflags uint32) (Handle, error) {
	for attempt := uint32(0); attempt < t.cap; attempt++ {
		h := Handle(t.next)
		t.next++
		if t.next >= int32(t.cap) {
			t.next = 3
		}
		i, ok := t.index(h)
		if !ok {
			continue
		}
		if t.entries[i].ops != nil {
			continue
		}
		t.entries[i] = handleEntry{ops: ops, hflags: hflags}
		return h, nil
	}
	return 0, zerr.New(zerr.OOM, "handles: table exhausted")
}

// Lookup returns the entry installed at h, or ok=false if h is out of
// range or empty.
func (t *HandleTable) Lookup(h Handle) (HandleOps, uint32, bool) {
	i, ok := t.index(h)
	if !ok || t.entries[i].ops == nil {
		return nil, 0, false
	}
	return t.entries[i].ops, t.entries[i].hflags, true
}

// Release empties slot h. Reserved stdio slots (0/1/2) can never be
// released.
func (t *HandleTable) Release(h Handle) error {
	i, ok := t.index(h)
	if !ok {
		return zerr.New(zerr.Bounds, "handles: release out of range")
	}
	if t.entries[i].ops == nil {
		return zerr.New(zerr.Invalid, "handles: release of empty slot")
	}
	if h == HandleStdin || h == HandleStdout || h == HandleStderr {
		return zerr.New(zerr.Denied, "handles: stdio slots cannot be released")
	}
	t.entries[i] = handleEntry{}
	return nil
}

// HFlags returns h's flag bits, or 0 if h is empty or out of range.
func (t *HandleTable) HFlags(h Handle) uint32 {
	i, ok := t.index(h)
	if !ok || t.entries[i].ops == nil {
		return 0
	}
	return t.entries[i].hflags
}

// Dispose flushes stdio and releases every non-stdio occupied handle's
// End hook (spec §3: "torn down on dispose, which also flushes stdio
// and closes any remaining non-stdio handles").
func (t *HandleTable) Dispose() {
	for i := range t.entries {
		h := Handle(i)
		if h == HandleStdin || h == HandleStdout || h == HandleStderr {
			if t.entries[i].ops != nil {
				t.entries[i].ops.End()
			}
			continue
		}
		if t.entries[i].ops != nil {
			t.entries[i].ops.End()
			t.entries[i] = handleEntry{}
		}
	}
}
