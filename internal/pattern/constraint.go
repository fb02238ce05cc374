// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package pattern

import "github.com/conceptgraph/conceptgraph/internal/typesystem"

// Constraint is one conjunct of a block (§3.4). Variables reports
// every pattern variable the constraint touches, in a stable order —
// used to build the type-inference graph's vertex set and the
// planner's adjacency.
type Constraint interface {
	Variables() []Variable
	constraintNode()
}

// IsaKind distinguishes "thing's type is a subtype of type" from
// "thing's type is exactly type".
type IsaKind uint8

const (
	IsaSubtype IsaKind = iota + 1
	IsaExact
)

// Isa binds Thing's type, directly (Exact) or via its subtype closure
// (Subtype), to Type.
type Isa struct {
	Thing Variable
	Type  Variable
	Kind  IsaKind
}

func (c Isa) Variables() []Variable { return []Variable{c.Thing, c.Type} }
func (Isa) constraintNode()         {}

// Sub constrains Sub to be a (non-strict) subtype of Super.
type Sub struct {
	Sub   Variable
	Super Variable
}

func (c Sub) Variables() []Variable { return []Variable{c.Sub, c.Super} }
func (Sub) constraintNode()         {}

// Label binds Var to exactly the schema type named Literal within
// Kind's namespace. The compiler that builds a Conjunction (not in
// this specification's scope — patterns are constructed
// programmatically, not parsed from query text) always knows which
// kind a literal resolves in, so Label carries it explicitly rather
// than inference guessing across kinds.
type Label struct {
	Var     Variable
	Kind    typesystem.Kind
	Literal string
}

func (c Label) Variables() []Variable { return []Variable{c.Var} }
func (Label) constraintNode()         {}

// Has constrains Owner to own an instance of Attribute (§3.3 invariant
// 2 at the instance level; at the type-inference level it co-
// constrains the two variables' candidate schema types via Owns).
type Has struct {
	Owner     Variable
	Attribute Variable
}

func (c Has) Variables() []Variable { return []Variable{c.Owner, c.Attribute} }
func (Has) constraintNode()         {}

// Links constrains Player to fill Role in Relation (§3.3 invariant 3).
// Role may be the zero Variable when the pattern leaves the role
// unbound to a variable (e.g. a literal role label was already
// resolved into a Relates/Plays pair elsewhere); when set, inference
// produces the filtered relation<->player annotation keyed by Role's
// candidate types (§4.5).
type Links struct {
	Relation Variable
	Player   Variable
	Role     Variable
}

func (c Links) Variables() []Variable {
	if c.Role == 0 {
		return []Variable{c.Relation, c.Player}
	}
	return []Variable{c.Relation, c.Player, c.Role}
}
func (Links) constraintNode() {}

// Owns constrains Owner's type to declare an Owns capability for
// Attr's type (a schema-level query, unlike Has which is instance
// level).
type Owns struct {
	Owner Variable
	Attr  Variable
}

func (c Owns) Variables() []Variable { return []Variable{c.Owner, c.Attr} }
func (Owns) constraintNode()         {}

// Relates constrains Relation's type to relate Role's type.
type Relates struct {
	Relation Variable
	Role     Variable
}

func (c Relates) Variables() []Variable { return []Variable{c.Relation, c.Role} }
func (Relates) constraintNode()         {}

// Plays constrains Player's type to play Role's type.
type Plays struct {
	Player Variable
	Role   Variable
}

func (c Plays) Variables() []Variable { return []Variable{c.Player, c.Role} }
func (Plays) constraintNode()         {}

// ComparisonOp enumerates the comparison operators a Comparison
// constraint may apply.
type ComparisonOp uint8

const (
	CompareEQ ComparisonOp = iota + 1
	CompareNEQ
	CompareLT
	CompareLTE
	CompareGT
	CompareGTE
	CompareContains
	CompareLike
)

// Comparison constrains two Value-category variables (or a variable
// and an already-assigned expression result) by Op. Comparisons never
// co-constrain schema types (§4.5 design note): the type-inference
// graph has no edge for them.
type Comparison struct {
	LHS Variable
	Op  ComparisonOp
	RHS Variable
}

func (c Comparison) Variables() []Variable { return []Variable{c.LHS, c.RHS} }
func (Comparison) constraintNode()         {}

// Is constrains LHS and RHS to be the identical concept (pointer
// identity for things, value identity for values).
type Is struct {
	LHS Variable
	RHS Variable
}

func (c Is) Variables() []Variable { return []Variable{c.LHS, c.RHS} }
func (Is) constraintNode()         {}

// ExpressionBinding evaluates Expr and binds its result to Var.
type ExpressionBinding struct {
	Var  Variable
	Expr Expression
}

func (c ExpressionBinding) Variables() []Variable {
	return append([]Variable{c.Var}, c.Expr.Inputs()...)
}
func (ExpressionBinding) constraintNode() {}

// FunctionCall invokes Function with Args, binding its outputs to
// Assigned in order.
type FunctionCall struct {
	Function string
	Args     []Variable
	Assigned []Variable
}

func (c FunctionCall) Variables() []Variable {
	out := make([]Variable, 0, len(c.Args)+len(c.Assigned))
	out = append(out, c.Args...)
	out = append(out, c.Assigned...)
	return out
}
func (FunctionCall) constraintNode() {}
