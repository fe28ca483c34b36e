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
	"fmt"
	"strings"

	"github.com/pingcap/errors"

	"github.com/keeldb/keel/types"
	"github.com/keeldb/keel/util/chunk"
)

// Supported scalar function names.
const (
	EQ = "eq"
	NE = "ne"
	LT = "lt"
	LE = "le"
	GT = "gt"
	GE = "ge"
)

// ScalarFunction is a compiled comparison over its argument expressions.
// Comparing with a null operand yields null.
type ScalarFunction struct {
	FuncName string
	args     []Expression
	retType  *types.FieldType
	evalFn   func(cmp int) bool
}

var cmpEvalFns = map[string]func(cmp int) bool{
	EQ: func(cmp int) bool { return cmp == 0 },
	NE: func(cmp int) bool { return cmp != 0 },
	LT: func(cmp int) bool { return cmp < 0 },
	LE: func(cmp int) bool { return cmp <= 0 },
	GT: func(cmp int) bool { return cmp > 0 },
	GE: func(cmp int) bool { return cmp >= 0 },
}

// NewFunction builds a ScalarFunction from a function name and arguments.
func NewFunction(funcName string, args ...Expression) (Expression, error) {
	evalFn, ok := cmpEvalFns[funcName]
	if !ok {
		return nil, errors.Errorf("unsupported function %q", funcName)
	}
	if len(args) != 2 {
		return nil, errors.Errorf("function %q expects 2 arguments, got %d", funcName, len(args))
	}
	return &ScalarFunction{
		FuncName: funcName,
		args:     args,
		retType:  types.NewFieldType(types.KindInt64),
		evalFn:   evalFn,
	}, nil
}

// NewFunctionInternal is like NewFunction but panics on error. Used when the
// function name is a trusted constant.
func NewFunctionInternal(funcName string, args ...Expression) Expression {
	expr, err := NewFunction(funcName, args...)
	if err != nil {
		panic(err)
	}
	return expr
}

// Eval implements the Expression interface.
func (sf *ScalarFunction) Eval(row chunk.Row) (types.Datum, error) {
	var d types.Datum
	lhs, err := sf.args[0].Eval(row)
	if err != nil {
		return d, err
	}
	rhs, err := sf.args[1].Eval(row)
	if err != nil {
		return d, err
	}
	if lhs.IsNull() || rhs.IsNull() {
		return d, nil
	}
	cmp, err := lhs.Compare(rhs)
	if err != nil {
		return d, err
	}
	if sf.evalFn(cmp) {
		d.SetInt64(1)
	} else {
		d.SetInt64(0)
	}
	return d, nil
}

// GetType implements the Expression interface.
func (sf *ScalarFunction) GetType() *types.FieldType {
	return sf.retType
}

// GetArgs gets the arguments of the function.
func (sf *ScalarFunction) GetArgs() []Expression {
	return sf.args
}

// String implements the fmt.Stringer interface.
func (sf *ScalarFunction) String() string {
	argStrs := make([]string, 0, len(sf.args))
	for _, arg := range sf.args {
		argStrs = append(argStrs, arg.String())
	}
	return fmt.Sprintf("%s(%s)", sf.FuncName, strings.Join(argStrs, ", "))
}
