// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package sem2sir

import (
	"github.com/semtoolchain/sem/ast4"
	"github.com/semtoolchain/sem/sir"
)

// FuzzLower is the go-fuzz entry point (spec's original sem2sir_profile
// neighbor, sem2sir's analog of pe.Fuzz): data is treated as a raw
// Stage-4 AST JSON document and pushed through the full
// validate-lower-validate pipeline. The go-fuzz driver itself is an
// out-of-process binary with no importable API beyond this
// Fuzz(data []byte) int convention, so there is nothing else to wire.
func FuzzLower(data []byte) int {
	doc, diag := ast4.Validate(data, nil)
	if diag != nil {
		return 0
	}
	mod, err := Lower(doc, Options{})
	if err != nil {
		return 0
	}
	if sir.Validate(mod) != nil {
		return 0
	}
	return 1
}
