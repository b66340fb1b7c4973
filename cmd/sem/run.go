// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/semtoolchain/sem/ast4"
	"github.com/semtoolchain/sem/interp"
	"github.com/semtoolchain/sem/log"
	"github.com/semtoolchain/sem/sem2sir"
	"github.com/semtoolchain/sem/sir"
	"github.com/semtoolchain/sem/tape"
	"github.com/semtoolchain/sem/telemetry"
	"github.com/semtoolchain/sem/zabi"
	"github.com/semtoolchain/sem/zerr"
)

// exitCode mirrors spec §6: 0 success, 1 runtime error, 2 usage error.
// runGuest never itself calls os.Exit — main decides that from the
// returned code so defers (Runtime.Dispose, flushing the tape) always
// run first.
const (
	exitOK       = 0
	exitRuntime  = 1
	exitUsageErr = 2
)

// runConfig collects everything main parses from flags before dispatch.
type runConfig struct {
	inputPath string
	jsonMode  bool
	caps      []zabi.Cap
	argv      []string
	argvOn    bool
	env       []zabi.EnvKV
	envOn     bool
	fsRoot    string
	tapeOut   string
	tapeIn    string
	tapeLax   bool
}

func runGuest(cfg runConfig, stdout, stderr io.Writer) int {
	logger, sink, err := newLoggerAndSink(cfg.jsonMode, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "sem: logger init: %v\n", err)
		return exitRuntime
	}

	buf, closeInput, err := mmapInput(cfg.inputPath)
	if err != nil {
		fmt.Fprintf(stderr, "sem: %v\n", err)
		return exitUsageErr
	}
	defer closeInput()

	doc, diag := ast4.Validate(buf, logger)
	if diag != nil {
		fmt.Fprintf(stderr, "sem: %s\n", diag.Error())
		return exitRuntime
	}

	mod, lerr := sem2sir.Lower(doc, sem2sir.Options{Logger: logger})
	if lerr != nil {
		fmt.Fprintf(stderr, "sem: lower: %v\n", lerr)
		return exitRuntime
	}

	if vdiag := sir.Validate(mod); vdiag != nil {
		fmt.Fprintf(stderr, "sem: validate: %s\n", vdiag.Error())
		return exitRuntime
	}

	rt, err := zabi.NewRuntime(zabi.RuntimeConfig{
		Caps:          cfg.caps,
		Argv:          cfg.argv,
		ArgvEnabled:   cfg.argvOn,
		Env:           cfg.env,
		EnvEnabled:    cfg.envOn,
		FSRoot:        cfg.fsRoot,
		Stdin:         os.Stdin,
		Stdout:        stdout,
		Stderr:        stderr,
		TelemetryLog:  logger,
		TelemetrySink: sink,
	})
	if err != nil {
		fmt.Fprintf(stderr, "sem: runtime init: %v\n", err)
		return exitRuntime
	}
	defer rt.Dispose()

	teardown, err := wireTape(rt, cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "sem: %v\n", err)
		return exitUsageErr
	}
	defer teardown()

	code, runErr := interp.New(mod, rt).Run()
	if runErr != nil {
		sink.EmitError("run", zerr.CodeOf(runErr), runErr.Error())
		fmt.Fprintf(stderr, "sem: run: %v\n", runErr)
		return exitRuntime
	}

	sink.Emit("run", fmt.Sprintf("exit_val=%d", code))
	if !cfg.jsonMode {
		fmt.Fprintf(stdout, "exit_val=%d\n", code)
	}
	return exitOK
}

// wireTape installs a recording or replaying dispatch wrapper on rt per
// --tape-out/--tape-in, returning a teardown func that flushes/closes
// the tape file. At most one of tapeOut/tapeIn may be set.
func wireTape(rt *zabi.Runtime, cfg runConfig, stderr io.Writer) (func(), error) {
	if cfg.tapeOut != "" && cfg.tapeIn != "" {
		return nil, fmt.Errorf("--tape-out and --tape-in are mutually exclusive")
	}
	if cfg.tapeOut != "" {
		f, err := os.Create(cfg.tapeOut)
		if err != nil {
			return nil, fmt.Errorf("--tape-out: %w", err)
		}
		base := rt.CapsDispatch()
		rec := tape.NewRecorder(base, f)
		rt.SetDispatch(rec.Call)
		return func() {
			if err := f.Close(); err != nil {
				fmt.Fprintf(stderr, "sem: tape-out: %v\n", err)
			}
		}, nil
	}
	if cfg.tapeIn != "" {
		f, err := os.Open(cfg.tapeIn)
		if err != nil {
			return nil, fmt.Errorf("--tape-in: %w", err)
		}
		player, err := tape.LoadPlayer(f, cfg.tapeLax)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("--tape-in: %w", err)
		}
		rt.SetDispatch(player.Call)
		return func() {}, nil
	}
	return func() {}, nil
}

// mmapInput memory-maps path read-only, the same way the teacher's
// pe.New maps a PE file before parsing: the validator only ever reads
// the buffer, so there's no reason to copy it into the Go heap first.
func mmapInput(path string) ([]byte, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return data, func() {
		data.Unmap()
		f.Close()
	}, nil
}

func newLoggerAndSink(jsonMode bool, stdout io.Writer) (*log.Helper, *telemetry.Sink, error) {
	if jsonMode {
		logger, err := log.NewProduction()
		if err != nil {
			return nil, nil, err
		}
		return logger, telemetry.NewSink(stdout), nil
	}
	logger, err := log.NewDevelopment()
	if err != nil {
		return nil, nil, err
	}
	return logger, telemetry.NewSink(nil), nil
}
