// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ast4

import (
	"fmt"
	"strings"
)

// Diagnostic is a single validator rejection, always carrying a source
// location per spec §4.7 and §7: byte offset, 1-based line and column,
// and a 120-byte "near" snippet with control characters folded to
// spaces.
type Diagnostic struct {
	Msg    string
	Offset int
	Line   int
	Col    int
	Near   string
}

const nearWindow = 120

// locate computes line/col/near for a byte offset into buf, per spec
// §4.7's "byte offset, line/column computed from the buffer, and a
// 120-byte near snippet with CR/LF/TAB folded to spaces".
func locate(buf []byte, off int) (line, col int, near string) {
	if off < 0 {
		off = 0
	}
	if off > len(buf) {
		off = len(buf)
	}
	line = 1
	lineStart := 0
	for i := 0; i < off; i++ {
		if buf[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	col = off - lineStart + 1

	start := off - nearWindow/2
	if start < 0 {
		start = 0
	}
	end := start + nearWindow
	if end > len(buf) {
		end = len(buf)
		start = end - nearWindow
		if start < 0 {
			start = 0
		}
	}
	raw := string(buf[start:end])
	near = foldControl(raw)
	return line, col, near
}

func foldControl(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\r', '\n', '\t':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func newDiag(buf []byte, off int, format string, args ...any) *Diagnostic {
	line, col, near := locate(buf, off)
	return &Diagnostic{
		Msg:    fmt.Sprintf(format, args...),
		Offset: off,
		Line:   line,
		Col:    col,
		Near:   near,
	}
}

func (d *Diagnostic) Error() string { return d.Msg }
