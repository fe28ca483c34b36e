// Copyright 2025 Keel Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package expression

import (
	"github.com/keeldb/keel/types"
	"github.com/keeldb/keel/util/chunk"
)

// Expression represents a scalar expression evaluated against a row.
type Expression interface {
	// Eval evaluates the expression on the given row.
	Eval(row chunk.Row) (types.Datum, error)
	// GetType gets the type that the expression returns.
	GetType() *types.FieldType
	// String implements the fmt.Stringer interface.
	String() string
}

// CNFExprs stands for a CNF expression.
type CNFExprs []Expression

// EvalBool evaluates an expression list to a boolean value. A null or false
// conjunct makes the whole list false.
func EvalBool(exprList CNFExprs, row chunk.Row) (bool, error) {
	for _, expr := range exprList {
		data, err := expr.Eval(row)
		if err != nil {
			return false, err
		}
		if data.IsNull() {
			return false, nil
		}
		isTrue, err := data.ToBool()
		if err != nil {
			return false, err
		}
		if !isTrue {
			return false, nil
		}
	}
	return true, nil
}

// VectorizedFilter applies a list of filters to a chunk and returns one bool
// per row telling whether the row passes all filters. The selected slice is
// reused when its capacity allows.
func VectorizedFilter(filters CNFExprs, it *chunk.Iterator4Chunk, selected []bool) ([]bool, error) {
	selected = selected[:0]
	for row := it.Begin(); row != it.End(); row = it.Next() {
		ok, err := EvalBool(filters, row)
		if err != nil {
			return nil, err
		}
		selected = append(selected, ok)
	}
	return selected, nil
}
