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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keeldb/keel/types"
	"github.com/keeldb/keel/util/chunk"
)

func intCol(idx int) *Column {
	return &Column{Index: idx, RetType: types.NewFieldType(types.KindInt64)}
}

func intConst(v int64) *Constant {
	return &Constant{Value: types.NewIntDatum(v), RetType: types.NewFieldType(types.KindInt64)}
}

func twoIntRow(a, b types.Datum) chunk.Row {
	return chunk.MutRowFromDatums([]types.Datum{a, b}).ToRow()
}

func TestColumnEval(t *testing.T) {
	row := twoIntRow(types.NewIntDatum(3), types.NewIntDatum(7))
	d, err := intCol(1).Eval(row)
	require.NoError(t, err)
	require.Equal(t, int64(7), d.GetInt64())
}

func TestComparisonFunctions(t *testing.T) {
	row := twoIntRow(types.NewIntDatum(3), types.NewIntDatum(7))
	cases := []struct {
		fn       string
		expected int64
	}{
		{EQ, 0}, {NE, 1}, {LT, 1}, {LE, 1}, {GT, 0}, {GE, 0},
	}
	for _, c := range cases {
		fn, err := NewFunction(c.fn, intCol(0), intCol(1))
		require.NoError(t, err)
		d, err := fn.Eval(row)
		require.NoError(t, err)
		require.Equal(t, c.expected, d.GetInt64(), "func %s", c.fn)
	}
}

func TestComparisonWithNull(t *testing.T) {
	var null types.Datum
	row := twoIntRow(null, types.NewIntDatum(7))
	for _, name := range []string{EQ, NE, LT, GE} {
		fn := NewFunctionInternal(name, intCol(0), intCol(1))
		d, err := fn.Eval(row)
		require.NoError(t, err)
		require.True(t, d.IsNull(), "func %s", name)
	}
}

func TestNewFunctionErrors(t *testing.T) {
	_, err := NewFunction("concat", intCol(0), intCol(1))
	require.Error(t, err)
	_, err = NewFunction(EQ, intCol(0))
	require.Error(t, err)
	require.Panics(t, func() { NewFunctionInternal("nope", intCol(0), intCol(1)) })
}

func TestEvalBool(t *testing.T) {
	row := twoIntRow(types.NewIntDatum(3), types.NewIntDatum(7))

	ok, err := EvalBool(CNFExprs{
		NewFunctionInternal(LT, intCol(0), intCol(1)),
		NewFunctionInternal(EQ, intCol(0), intConst(3)),
	}, row)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = EvalBool(CNFExprs{NewFunctionInternal(GT, intCol(0), intCol(1))}, row)
	require.NoError(t, err)
	require.False(t, ok)

	// A null conjunct evaluates to false.
	var null types.Datum
	ok, err = EvalBool(CNFExprs{NewFunctionInternal(EQ, intCol(0), intCol(1))}, twoIntRow(null, types.NewIntDatum(1)))
	require.NoError(t, err)
	require.False(t, ok)

	// An empty list is vacuously true.
	ok, err = EvalBool(nil, row)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVectorizedFilter(t *testing.T) {
	fields := []*types.FieldType{types.NewFieldType(types.KindInt64)}
	chk := chunk.New(fields, 4, 4)
	for i := 0; i < 4; i++ {
		chk.AppendInt64(0, int64(i))
	}
	filters := CNFExprs{NewFunctionInternal(GE, intCol(0), intConst(2))}
	selected, err := VectorizedFilter(filters, chunk.NewIterator4Chunk(chk), nil)
	require.NoError(t, err)
	require.Equal(t, []bool{false, false, true, true}, selected)
}

func TestStringer(t *testing.T) {
	fn := NewFunctionInternal(EQ, intCol(0), intConst(3))
	require.Equal(t, "eq(col_0, const(3))", fn.String())
}
