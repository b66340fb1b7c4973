// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package zabi implements the hosted zABI syscall surface: a guest
// arena, a capability-gated handle table, ZCL1 wire framing, a
// capability host dispatcher, the file/fs capability, and the
// Runtime that wires them all into the call surface a guest program
// drives (spec §4.1-§4.6).
package zabi

import "github.com/semtoolchain/sem/zerr"

// Ptr is a guest-visible, base-relative address (spec's "Guest
// pointer"): valid iff base <= p < base+brk.
type Ptr uint64

// Arena is a bump allocator over a fixed-capacity byte buffer exposed
// to guest code as addresses in [base, base+cap). Grounded on the
// original implementation's guest_mem.c bump allocator and bounds
// check.
type Arena struct {
	buf  []byte
	cap  uint32
	brk  uint32
	base uint64
}

// NewArena allocates a cap-byte arena whose guest-visible addresses
// start at base. cap and base must both be nonzero.
func NewArena(cap uint32, base uint64) (*Arena, error) {
	if cap == 0 {
		return nil, zerr.New(zerr.Invalid, "arena: capacity must be nonzero")
	}
	if base == 0 {
		return nil, zerr.New(zerr.Invalid, "arena: base must be nonzero")
	}
	return &Arena{buf: make([]byte, cap), cap: cap, base: base}, nil
}

// Dispose releases the arena's backing storage.
func (a *Arena) Dispose() { a.buf = nil; a.cap, a.brk, a.base = 0, 0, 0 }

func alignUp(x, a uint32) uint32 {
	if a == 0 {
		return x
	}
	mask := a - 1
	return (x + mask) &^ mask
}

// Alloc bump-allocates size bytes aligned to align (default 16 when 0),
// returning 0 on failure (capacity exhausted, size 0, or align not a
// power of two).
func (a *Arena) Alloc(size, align uint32) Ptr {
	if size == 0 {
		return 0
	}
	al := align
	if al == 0 {
		al = 16
	}
	if al&(al-1) != 0 {
		return 0
	}
	start := alignUp(a.brk, al)
	end := uint64(start) + uint64(size)
	if end > uint64(a.cap) {
		return 0
	}
	a.brk = uint32(end)
	return Ptr(a.base + uint64(start))
}

// Free is a deterministic no-op that only shape-validates ptr (spec
// §9 open question 3): the arena never reuses memory, so free-after-use
// is never an error.
func (a *Arena) Free(ptr Ptr) error {
	if ptr == 0 {
		return zerr.New(zerr.Invalid, "arena: free of null pointer")
	}
	return nil
}

func (a *Arena) bounds(ptr Ptr, length uint32) (uint32, bool) {
	if ptr == 0 || uint64(ptr) < a.base {
		return 0, false
	}
	off64 := uint64(ptr) - a.base
	if off64 > 0xFFFFFFFF {
		return 0, false
	}
	off := uint32(off64)
	end := uint64(off) + uint64(length)
	if end > uint64(a.brk) {
		return 0, false
	}
	return off, true
}

// MapRO returns a read-only view of length bytes starting at ptr. A
// zero-length request yields a non-nil sentinel slice into the arena
// rather than failing.
func (a *Arena) MapRO(ptr Ptr, length uint32) ([]byte, error) {
	if length == 0 {
		if a.buf == nil {
			return nil, zerr.New(zerr.Invalid, "arena: disposed")
		}
		return a.buf[:0], nil
	}
	off, ok := a.bounds(ptr, length)
	if !ok {
		return nil, zerr.New(zerr.Bounds, "arena: map_ro out of bounds")
	}
	return a.buf[off : off+length], nil
}

// MapRW returns a mutable view of length bytes starting at ptr.
func (a *Arena) MapRW(ptr Ptr, length uint32) ([]byte, error) {
	if length == 0 {
		if a.buf == nil {
			return nil, zerr.New(zerr.Invalid, "arena: disposed")
		}
		return a.buf[:0], nil
	}
	off, ok := a.bounds(ptr, length)
	if !ok {
		return nil, zerr.New(zerr.Bounds, "arena: map_rw out of bounds")
	}
	return a.buf[off : off+length], nil
}

// InRange reports whether ptr is a currently valid guest address (spec
// §3's "Guest pointer in range" invariant, base <= p < base+brk).
func (a *Arena) InRange(ptr Ptr) bool {
	if uint64(ptr) < a.base {
		return false
	}
	off := uint64(ptr) - a.base
	return off < uint64(a.brk)
}
