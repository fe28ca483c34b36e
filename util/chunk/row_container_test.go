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
	"github.com/keeldb/keel/util/memory"
)

func chunkWithRows(fields []*types.FieldType, base, n int) *Chunk {
	chk := New(fields, n, n)
	for i := 0; i < n; i++ {
		chk.AppendInt64(0, int64(base+i))
		chk.AppendString(1, "row")
	}
	return chk
}

func TestRowContainerInMemory(t *testing.T) {
	fields := fieldsForTest()
	rc := NewRowContainer(fields, 4)
	defer func() { require.NoError(t, rc.Close()) }()

	require.NoError(t, rc.Add(chunkWithRows(fields, 0, 4)))
	ptr, err := rc.AppendRow(MutRowFromDatums([]types.Datum{
		types.NewIntDatum(100),
		types.NewStringDatum("x"),
	}).ToRow())
	require.NoError(t, err)
	require.Equal(t, 5, rc.NumRow())
	require.False(t, rc.AlreadySpilledSafeForTest())

	row, err := rc.GetRow(ptr)
	require.NoError(t, err)
	require.Equal(t, int64(100), row.GetInt64(0))
	require.Positive(t, rc.GetMemTracker().BytesConsumed())
}

func TestRowContainerSpillRoundtrip(t *testing.T) {
	useTempStorageDir(t)
	fields := fieldsForTest()
	rc := NewRowContainer(fields, 4)
	defer func() { require.NoError(t, rc.Close()) }()

	require.NoError(t, rc.Add(chunkWithRows(fields, 0, 4)))
	require.NoError(t, rc.Add(chunkWithRows(fields, 4, 4)))

	rc.SpillToDisk()
	require.True(t, rc.AlreadySpilledSafeForTest())
	require.Equal(t, 8, rc.NumRow())
	require.Equal(t, 2, rc.NumChunks())
	require.Positive(t, rc.GetDiskTracker().BytesConsumed())

	for i := 0; i < 8; i++ {
		row, err := rc.GetRow(RowPtr{ChkIdx: uint32(i / 4), RowIdx: uint32(i % 4)})
		require.NoError(t, err)
		require.Equal(t, int64(i), row.GetInt64(0))
	}

	// Appends after the spill land on disk.
	ptr, err := rc.AppendRow(MutRowFromDatums([]types.Datum{
		types.NewIntDatum(42),
		types.NewStringDatum("late"),
	}).ToRow())
	require.NoError(t, err)
	require.Equal(t, 9, rc.NumRow())
	row, err := rc.GetRow(ptr)
	require.NoError(t, err)
	require.Equal(t, int64(42), row.GetInt64(0))
	require.Equal(t, "late", row.GetString(1))
}

func TestRowContainerSpillError(t *testing.T) {
	useTempStorageDir(t)
	fields := fieldsForTest()
	rc := NewRowContainer(fields, 4)
	defer func() { require.NoError(t, rc.Close()) }()

	require.NoError(t, rc.Add(chunkWithRows(fields, 0, 4)))
	rc.SpillToDisk()
	rc.m.records.spillError = errSpillForTest

	_, err := rc.AppendRow(chunkWithRows(fields, 0, 1).GetRow(0))
	require.ErrorIs(t, err, errSpillForTest)
	require.Error(t, rc.Add(chunkWithRows(fields, 0, 1)))
	_, err = rc.GetRow(RowPtr{})
	require.ErrorIs(t, err, errSpillForTest)
	_, err = rc.GetChunk(0)
	require.ErrorIs(t, err, errSpillForTest)
}

func TestSpillDiskAction(t *testing.T) {
	useTempStorageDir(t)
	fields := fieldsForTest()
	rc := NewRowContainer(fields, 4)
	defer func() { require.NoError(t, rc.Close()) }()

	tracker := rc.GetMemTracker()
	tracker.SetBytesLimit(1)
	action := rc.ActionSpillForTest()
	tracker.SetActionOnExceed(action)

	require.NoError(t, rc.Add(chunkWithRows(fields, 0, 4)))
	tracker.Consume(1024)
	action.WaitForTest()
	require.True(t, rc.AlreadySpilledSafeForTest())
	require.Equal(t, 4, rc.NumRow())
}

func TestSpillDiskActionFallback(t *testing.T) {
	useTempStorageDir(t)
	fields := fieldsForTest()
	rc := NewRowContainer(fields, 4)
	defer func() { require.NoError(t, rc.Close()) }()

	action := rc.ActionSpillForTest()
	fallback := &memory.LogOnExceed{}
	action.SetFallback(fallback)

	tracker := memory.NewTracker(1, 1)
	tracker.SetActionOnExceed(action)
	require.NoError(t, rc.Add(chunkWithRows(fields, 0, 4)))

	// First trigger spills, second falls through to the fallback action.
	tracker.Consume(1024)
	action.WaitForTest()
	require.True(t, rc.AlreadySpilledSafeForTest())
	tracker.Consume(1024)
}
