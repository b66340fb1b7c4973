// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strings"

	"github.com/semtoolchain/sem/zabi"
)

// parseCapFlag parses one --cap KIND:NAME[:FLAGS] argument into a
// zabi.Cap, per spec §6. FLAGS, if present, is a comma list drawn from
// {open, pure, block}.
func parseCapFlag(raw string) (zabi.Cap, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return zabi.Cap{}, fmt.Errorf("--cap %q: want KIND:NAME[:FLAGS]", raw)
	}
	cap := zabi.Cap{Kind: parts[0], Name: parts[1]}
	if len(parts) == 3 && parts[2] != "" {
		flags, err := parseCapFlagBits(parts[2])
		if err != nil {
			return zabi.Cap{}, fmt.Errorf("--cap %q: %w", raw, err)
		}
		cap.Flags = flags
	}
	return cap, nil
}

func parseCapFlagBits(s string) (uint32, error) {
	var bits uint32
	for _, name := range strings.Split(s, ",") {
		switch name {
		case "open":
			bits |= zabi.CapCanOpen
		case "pure":
			bits |= zabi.CapPure
		case "block":
			bits |= zabi.CapMayBlock
		default:
			return 0, fmt.Errorf("unknown cap flag %q (want open, pure or block)", name)
		}
	}
	return bits, nil
}

// sugarCaps are the fixed caps the three sugar flags stand in for, so
// --allow-fs/--allow-argv/--allow-env don't each require a fully spelled
// out --cap KIND:NAME:FLAGS.
var (
	sugarCapFS   = zabi.Cap{Kind: "file/fs", Name: "root", Flags: zabi.CapCanOpen | zabi.CapMayBlock}
	sugarCapArgv = zabi.Cap{Kind: "proc/argv", Name: "argv", Flags: zabi.CapCanOpen | zabi.CapPure}
	sugarCapEnv  = zabi.Cap{Kind: "proc/env", Name: "env", Flags: zabi.CapCanOpen | zabi.CapPure}
)
