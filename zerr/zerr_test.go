// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package zerr

import (
	"errors"
	"testing"
)

func TestCodeString(t *testing.T) {
	tests := []struct {
		in  Code
		out string
	}{
		{Invalid, "invalid"},
		{Bounds, "bounds"},
		{Noent, "noent"},
		{Denied, "denied"},
		{Closed, "closed"},
		{Again, "again"},
		{Nosys, "nosys"},
		{OOM, "oom"},
		{IO, "io"},
		{Internal, "internal"},
		{Code(42), "code(42)"},
	}

	for _, tt := range tests {
		t.Run(tt.out, func(t *testing.T) {
			if got := tt.in.String(); got != tt.out {
				t.Fatalf("String() = %q, want %q", got, tt.out)
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	err := New(Bounds, "ptr out of range")
	if !errors.Is(err, New(Bounds, "")) {
		t.Fatalf("expected errors.Is match on Code")
	}
	if errors.Is(err, New(Invalid, "")) {
		t.Fatalf("expected no match across different codes")
	}
}

func TestCodeOf(t *testing.T) {
	if CodeOf(nil) != 0 {
		t.Fatalf("CodeOf(nil) should be 0")
	}
	if CodeOf(New(Noent, "x")) != Noent {
		t.Fatalf("CodeOf did not round-trip")
	}
	if CodeOf(errors.New("plain")) != Internal {
		t.Fatalf("CodeOf of a non-*Error should default to Internal")
	}
}
