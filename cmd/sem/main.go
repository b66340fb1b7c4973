// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Command sem is the zABI runner: it validates a Stage-4 AST document,
// lowers it to SIR, validates the SIR, and interprets it against a
// capability set configured from the command line (spec §6).
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semtoolchain/sem/zabi"
)

// version is overwritten at release build time via -ldflags.
var version = "0.0.1-dev"

var (
	jsonMode  bool
	capFlags  []string
	allowFS   string
	allowArgv bool
	allowEnv  bool
	showCaps  bool
	tapeOut   string
	tapeIn    string
	tapeLax   bool
)

func buildCaps() ([]zabi.Cap, error) {
	var caps []zabi.Cap
	if allowFS != "" {
		caps = append(caps, sugarCapFS)
	}
	if allowArgv {
		caps = append(caps, sugarCapArgv)
	}
	if allowEnv {
		caps = append(caps, sugarCapEnv)
	}
	for _, raw := range capFlags {
		c, err := parseCapFlag(raw)
		if err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	return caps, nil
}

func printCaps(caps []zabi.Cap) {
	if jsonMode {
		enc := json.NewEncoder(os.Stdout)
		for _, c := range caps {
			enc.Encode(map[string]any{"kind": c.Kind, "name": c.Name, "flags": capFlagNames(c.Flags)})
		}
		return
	}
	for _, c := range caps {
		fmt.Printf("%s:%s\t%s\n", c.Kind, c.Name, strings.Join(capFlagNames(c.Flags), ","))
	}
}

func capFlagNames(flags uint32) []string {
	var names []string
	if flags&zabi.CapCanOpen != 0 {
		names = append(names, "open")
	}
	if flags&zabi.CapPure != 0 {
		names = append(names, "pure")
	}
	if flags&zabi.CapMayBlock != 0 {
		names = append(names, "block")
	}
	return names
}

func runRoot(cmd *cobra.Command, args []string) error {
	caps, err := buildCaps()
	if err != nil {
		os.Exit(exitUsageErr)
		return nil
	}

	if showCaps {
		printCaps(caps)
		os.Exit(exitOK)
	}

	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "sem: expected exactly one input file (stage-4 AST document)")
		os.Exit(exitUsageErr)
	}
	if tapeOut != "" && tapeIn != "" {
		fmt.Fprintln(os.Stderr, "sem: --tape-out and --tape-in are mutually exclusive")
		os.Exit(exitUsageErr)
	}

	cfg := runConfig{
		inputPath: args[0],
		jsonMode:  jsonMode,
		caps:      caps,
		argvOn:    allowArgv,
		argv:      []string{args[0]},
		envOn:     allowEnv,
		env:       osEnviron(),
		fsRoot:    allowFS,
		tapeOut:   tapeOut,
		tapeIn:    tapeIn,
		tapeLax:   tapeLax,
	}
	os.Exit(runGuest(cfg, os.Stdout, os.Stderr))
	return nil
}

func osEnviron() []zabi.EnvKV {
	raw := os.Environ()
	out := make([]zabi.EnvKV, 0, len(raw))
	for _, kv := range raw {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out = append(out, zabi.EnvKV{Key: kv[:i], Val: kv[i+1:]})
		}
	}
	return out
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "sem <input.json>",
		Short:   "Validate, lower and run a Stage-4 AST document against a sandboxed zABI host",
		Version: version,
		Args:    cobra.MaximumNArgs(1),
		RunE:    runRoot,
	}
	rootCmd.SetVersionTemplate("sem version {{.Version}}\n")

	rootCmd.Flags().BoolVar(&jsonMode, "json", false, "emit machine-readable JSONL telemetry/output")
	rootCmd.Flags().BoolVar(&showCaps, "caps", false, "print the configured capability list and exit")
	rootCmd.Flags().StringArrayVar(&capFlags, "cap", nil, "add a capability: KIND:NAME[:FLAGS] (FLAGS=open,pure,block)")
	rootCmd.Flags().StringVar(&allowFS, "allow-fs", "", "sugar for --cap file/fs:root:open,block, sandboxed at the given root directory")
	rootCmd.Flags().BoolVar(&allowArgv, "allow-argv", false, "sugar for --cap proc/argv:argv:open,pure, exposing argv to the guest")
	rootCmd.Flags().BoolVar(&allowEnv, "allow-env", false, "sugar for --cap proc/env:env:open,pure, exposing the environment to the guest")
	rootCmd.Flags().StringVar(&tapeOut, "tape-out", "", "record the zi_ctl request/response transcript to this file")
	rootCmd.Flags().StringVar(&tapeIn, "tape-in", "", "replay a previously recorded zi_ctl transcript from this file instead of dispatching live")
	rootCmd.Flags().BoolVar(&tapeLax, "tape-lax", false, "ignore request mismatches during --tape-in replay")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsageErr)
	}
}
