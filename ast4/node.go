// Copyright 2024 The sem Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ast4

import "github.com/semtoolchain/sem/vocab"

// Node is a fully validated AST object: every field named by its
// intrinsic's schema has been checked against the allow list and shape
// rules in spec §4.7, recursively, down to token leaves. sem2sir walks
// this tree and never re-examines raw JSON.
type Node struct {
	Kind   vocab.Intrinsic
	Off    int
	Tokens map[string]Token
	Nodes  map[string]*Node
	Null   map[string]bool
	Arrays map[string][]*Node
}

// Token returns the named token field (zero value if absent — callers
// only ask for fields their intrinsic's schema declares required).
func (n *Node) Token(name string) Token { return n.Tokens[name] }

// Child returns the named node field, or nil if it was null or absent.
func (n *Node) Child(name string) *Node { return n.Nodes[name] }

// IsNull reports whether the named nullable field was explicitly null.
func (n *Node) IsNull(name string) bool { return n.Null[name] }

// Array returns the named array-of-node field.
func (n *Node) Array(name string) []*Node { return n.Arrays[name] }
