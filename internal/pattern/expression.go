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

// Expression is the small arithmetic AST an ExpressionBinding
// evaluates (§4.7 Assignment step). It is not a general expression
// language — just enough to bind a computed Value to a variable.
type Expression interface {
	Inputs() []Variable
	expressionNode()
}

// ConstantExpr is a literal long or double value.
type ConstantExpr struct {
	IsDouble bool
	Long     int64
	Double   float64
}

func (ConstantExpr) Inputs() []Variable { return nil }
func (ConstantExpr) expressionNode()    {}

// VariableExpr refers to an already-bound Value-category variable.
type VariableExpr struct {
	Var Variable
}

func (e VariableExpr) Inputs() []Variable { return []Variable{e.Var} }
func (VariableExpr) expressionNode()      {}

// BinaryOp enumerates the arithmetic operators BinaryExpr supports.
type BinaryOp uint8

const (
	OpAdd BinaryOp = iota + 1
	OpSub
	OpMul
	OpDiv
	OpMod
)

// BinaryExpr applies Op to the results of LHS and RHS.
type BinaryExpr struct {
	Op       BinaryOp
	LHS, RHS Expression
}

func (e BinaryExpr) Inputs() []Variable {
	return append(append([]Variable{}, e.LHS.Inputs()...), e.RHS.Inputs()...)
}
func (BinaryExpr) expressionNode() {}
