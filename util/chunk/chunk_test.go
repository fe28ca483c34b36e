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

package chunk

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keeldb/keel/types"
)

func fieldsForTest() []*types.FieldType {
	return []*types.FieldType{
		types.NewFieldType(types.KindInt64),
		types.NewFieldType(types.KindString),
	}
}

func TestAppendRow(t *testing.T) {
	chk := New(fieldsForTest(), 4, 8)
	require.Equal(t, 0, chk.NumRows())
	require.Equal(t, 2, chk.NumCols())

	for i := 0; i < 5; i++ {
		chk.AppendInt64(0, int64(i))
		chk.AppendString(1, "abc")
	}
	require.Equal(t, 5, chk.NumRows())
	for i := 0; i < 5; i++ {
		row := chk.GetRow(i)
		require.Equal(t, int64(i), row.GetInt64(0))
		require.Equal(t, "abc", row.GetString(1))
	}

	other := New(fieldsForTest(), 4, 8)
	other.AppendRow(chk.GetRow(3))
	require.Equal(t, 1, other.NumRows())
	require.Equal(t, int64(3), other.GetRow(0).GetInt64(0))
}

func TestAppendNull(t *testing.T) {
	chk := New(fieldsForTest(), 4, 8)
	chk.AppendNull(0)
	chk.AppendString(1, "x")
	row := chk.GetRow(0)
	require.True(t, row.IsNull(0))
	require.False(t, row.IsNull(1))
}

func TestRequiredRows(t *testing.T) {
	chk := New(fieldsForTest(), 4, 1024)
	chk.SetRequiredRows(2, 1024)
	require.Equal(t, 2, chk.RequiredRows())
	require.False(t, chk.IsFull())
	chk.AppendInt64(0, 1)
	chk.AppendString(1, "a")
	require.False(t, chk.IsFull())
	chk.AppendInt64(0, 2)
	chk.AppendString(1, "b")
	require.True(t, chk.IsFull())

	chk.Reset()
	require.Equal(t, 0, chk.NumRows())
	require.False(t, chk.IsFull())
}

func TestAppendPartialRow(t *testing.T) {
	left := New([]*types.FieldType{types.NewFieldType(types.KindInt64)}, 4, 8)
	left.AppendInt64(0, 7)
	right := New([]*types.FieldType{types.NewFieldType(types.KindString)}, 4, 8)
	right.AppendString(0, "r")

	joined := New(fieldsForTest(), 4, 8)
	joined.AppendPartialRow(0, left.GetRow(0))
	joined.AppendPartialRow(1, right.GetRow(0))
	require.Equal(t, 1, joined.NumRows())
	row := joined.GetRow(0)
	require.Equal(t, int64(7), row.GetInt64(0))
	require.Equal(t, "r", row.GetString(1))
}

func TestMutRow(t *testing.T) {
	mr := MutRowFromDatums([]types.Datum{types.NewIntDatum(1), types.NewStringDatum("a")})
	row := mr.ToRow()
	require.Equal(t, int64(1), row.GetInt64(0))
	require.Equal(t, "a", row.GetString(1))

	mr.SetDatum(0, types.NewIntDatum(5))
	require.Equal(t, int64(5), mr.ToRow().GetInt64(0))
}

func TestIterator(t *testing.T) {
	chk := New(fieldsForTest(), 4, 8)
	for i := 0; i < 3; i++ {
		chk.AppendInt64(0, int64(i))
		chk.AppendString(1, "v")
	}
	it := NewIterator4Chunk(chk)
	require.Equal(t, 3, it.Len())
	var got []int64
	for row := it.Begin(); row != it.End(); row = it.Next() {
		got = append(got, row.GetInt64(0))
	}
	require.Equal(t, []int64{0, 1, 2}, got)

	rows := []Row{chk.GetRow(2), chk.GetRow(0)}
	its := NewIterator4Slice(rows)
	require.Equal(t, 2, its.Len())
	require.Equal(t, int64(2), its.Begin().GetInt64(0))
	require.Equal(t, int64(0), its.Next().GetInt64(0))
	require.Equal(t, its.End(), its.Next())
}
