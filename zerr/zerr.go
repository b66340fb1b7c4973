// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package zerr defines the numeric error taxonomy shared by every zABI
// collaborator: the guest arena, the handle table, the capability host,
// the SIR validator and the interpreter all fail into one of these ten
// codes so the boundary error is stable across the zABI call surface.
package zerr

import (
	"errors"
	"fmt"
)

// Code is a stable, negative error code crossing the zABI boundary as an
// int32. Zero and positive values are never error codes.
type Code int32

// The taxonomy from spec §7. Values are part of the wire contract and
// must never be renumbered.
const (
	Invalid  Code = -1
	Bounds   Code = -2
	Noent    Code = -3
	Denied   Code = -4
	Closed   Code = -5
	Again    Code = -6
	Nosys    Code = -7
	OOM      Code = -8
	IO       Code = -9
	Internal Code = -10
)

var names = map[Code]string{
	Invalid:  "invalid",
	Bounds:   "bounds",
	Noent:    "noent",
	Denied:   "denied",
	Closed:   "closed",
	Again:    "again",
	Nosys:    "nosys",
	OOM:      "oom",
	IO:       "io",
	Internal: "internal",
}

// String returns the stable lowercase taxonomy name, e.g. "bounds".
// Unknown codes format as "code(<n>)".
func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("code(%d)", int32(c))
}

// Error is a Code annotated with a human-readable message, the way the
// teacher pairs a sentinel error with a descriptive comment in helper.go;
// here the code is the stable part and the message is diagnostic only.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Is reports whether target is a *Error with the same Code, so callers
// can use errors.Is(err, zerr.New(zerr.Bounds, "")) idiomatically.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New constructs an *Error for the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the Code carried by err, or Internal if err does not
// wrap a *Error.
func CodeOf(err error) Code {
	if err == nil {
		return 0
	}
	var e *Error
	if !errors.As(err, &e) {
		return Internal
	}
	return e.Code
}

// FromOSErrno maps an OS-level syscall errno-class error to the closed
// taxonomy, per spec §7's file/fs mapping table. Callers pass the result
// of errors.Is checks against syscall sentinels; this helper centralizes
// the table so zabi/fscap.go and any future capability provider agree.
func FromOSErrno(again, badf, accessDenied, notFound, isDir, noMem bool) Code {
	switch {
	case again:
		return Again
	case badf:
		return Closed
	case accessDenied:
		return Denied
	case notFound:
		return Noent
	case isDir:
		return Invalid
	case noMem:
		return OOM
	default:
		return IO
	}
}
