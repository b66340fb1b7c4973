// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package log provides the small leveled-logging facade threaded through
// options structs across the module, the same way saferwall/pe threads a
// *log.Helper through pe.Options.Logger.
package log

import "go.uber.org/zap"

// Logger is the minimal interface components depend on. Passing nil to
// any Options.Logger field is always valid; NewHelper(nil) is a no-op
// sink so callers never need a nil check before logging.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Helper wraps a Logger (or no logger at all) behind one non-nil value,
// mirroring pe's *log.Helper so call sites never branch on nilness.
type Helper struct {
	l Logger
}

// NewHelper wraps l. A nil l yields a Helper whose methods are no-ops.
func NewHelper(l Logger) *Helper {
	return &Helper{l: l}
}

func (h *Helper) Debugf(format string, args ...any) {
	if h == nil || h.l == nil {
		return
	}
	h.l.Debugf(format, args...)
}

func (h *Helper) Infof(format string, args ...any) {
	if h == nil || h.l == nil {
		return
	}
	h.l.Infof(format, args...)
}

func (h *Helper) Warnf(format string, args ...any) {
	if h == nil || h.l == nil {
		return
	}
	h.l.Warnf(format, args...)
}

func (h *Helper) Errorf(format string, args ...any) {
	if h == nil || h.l == nil {
		return
	}
	h.l.Errorf(format, args...)
}

// zapLogger adapts *zap.SugaredLogger to Logger. This is the default
// backend used by cmd/sem; library packages never construct one
// themselves, they only accept a Logger from the caller.
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZap wraps a *zap.SugaredLogger as a Logger.
func NewZap(s *zap.SugaredLogger) Logger {
	return &zapLogger{s: s}
}

func (z *zapLogger) Debugf(format string, args ...any) { z.s.Debugf(format, args...) }
func (z *zapLogger) Infof(format string, args ...any)  { z.s.Infof(format, args...) }
func (z *zapLogger) Warnf(format string, args ...any)  { z.s.Warnf(format, args...) }
func (z *zapLogger) Errorf(format string, args ...any) { z.s.Errorf(format, args...) }

// NewProduction builds a ready-to-use *Helper backed by zap's production
// config (JSON, info level), the default for cmd/sem when --json is set.
func NewProduction() (*Helper, error) {
	zl, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return NewHelper(NewZap(zl.Sugar())), nil
}

// NewDevelopment builds a *Helper backed by zap's human-readable console
// config, the cmd/sem default when --json is not set.
func NewDevelopment() (*Helper, error) {
	zl, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return NewHelper(NewZap(zl.Sugar())), nil
}
