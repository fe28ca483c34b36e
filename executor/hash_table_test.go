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

package executor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keeldb/keel/types"
	"github.com/keeldb/keel/util/chunk"
)

func TestUnsafeHashTablePutGet(t *testing.T) {
	ht := newUnsafeHashTable(0)
	require.Equal(t, uint64(0), ht.Len())
	require.Empty(t, ht.Get(42))

	ht.Put(42, chunk.RowPtr{ChkIdx: 0, RowIdx: 0})
	ht.Put(42, chunk.RowPtr{ChkIdx: 0, RowIdx: 1})
	ht.Put(7, chunk.RowPtr{ChkIdx: 1, RowIdx: 0})
	require.Equal(t, uint64(3), ht.Len())

	// entries for one key come back newest first
	require.Equal(t, []chunk.RowPtr{{ChkIdx: 0, RowIdx: 1}, {ChkIdx: 0, RowIdx: 0}}, ht.Get(42))
	require.Equal(t, []chunk.RowPtr{{ChkIdx: 1, RowIdx: 0}}, ht.Get(7))
	require.Empty(t, ht.Get(8))
}

func TestEntryStoreGrowth(t *testing.T) {
	es := newEntryStore()
	seen := make(map[*entry]bool)
	var memDelta int64
	for i := 0; i < initialEntrySliceLen*4; i++ {
		e, delta := es.GetStore()
		require.False(t, seen[e])
		seen[e] = true
		memDelta += delta
	}
	require.Positive(t, memDelta)
	require.Greater(t, len(es.slices), 1)
}

func TestHashTableMemoryDelta(t *testing.T) {
	ht := newUnsafeHashTable(0)
	for i := uint32(0); i < 4096; i++ {
		ht.Put(uint64(i), chunk.RowPtr{RowIdx: i})
	}
	require.Positive(t, ht.GetAndCleanMemoryDelta())
	require.Zero(t, ht.GetAndCleanMemoryDelta())
}

func TestHashChunkNullKeys(t *testing.T) {
	fields := joinTestTypes()
	hc := &hashContext{allTypes: fields, keyColIdx: []int{0}}

	chk := chunk.New(fields, 4, 4)
	chk.AppendInt64(0, 1)
	chk.AppendInt64(1, 10)
	chk.AppendNull(0)
	chk.AppendInt64(1, 20)

	require.NoError(t, hc.hashChunk(chk, nil))
	require.False(t, hc.hasNull[0])
	require.True(t, hc.hasNull[1])

	// with null-equality enabled the null key hashes instead of excluding
	require.NoError(t, hc.hashChunk(chk, []bool{true}))
	require.False(t, hc.hasNull[0])
	require.False(t, hc.hasNull[1])
}

func TestHashChunkCrossSideEquality(t *testing.T) {
	intFields := []*types.FieldType{types.NewFieldType(types.KindInt64)}
	uintFields := []*types.FieldType{types.NewFieldType(types.KindUint64)}

	buildHC := &hashContext{allTypes: intFields, keyColIdx: []int{0}}
	buildChk := chunk.New(intFields, 1, 1)
	buildChk.AppendInt64(0, 42)
	require.NoError(t, buildHC.hashChunk(buildChk, nil))

	probeHC := &hashContext{allTypes: uintFields, keyColIdx: []int{0}}
	probeChk := chunk.New(uintFields, 1, 1)
	probeChk.AppendDatums(types.NewUintDatum(42))
	require.NoError(t, probeHC.hashChunk(probeChk, nil))

	require.Equal(t, buildHC.hashVals[0].Sum64(), probeHC.hashVals[0].Sum64())
}

func TestHashRowContainerCollisionRecheck(t *testing.T) {
	fields := joinTestTypes()
	hc := &hashContext{allTypes: fields, keyColIdx: []int{0}}
	c := newHashRowContainer(hc, fields, 32)
	defer func() { require.NoError(t, c.Close()) }()

	chk := chunk.New(fields, 2, 32)
	chk.AppendInt64(0, 1)
	chk.AppendInt64(1, 10)
	for i := 0; i < chk.NumRows(); i++ {
		_, err := c.AppendRow(chk.GetRow(i))
		require.NoError(t, err)
	}
	require.NoError(t, c.buildHashTable(nil))
	require.Equal(t, uint64(1), c.Len())

	// fake a hash collision: correct bucket, different key
	probeHC := &hashContext{allTypes: fields, keyColIdx: []int{0}}
	probeChk := chunk.New(fields, 1, 1)
	probeChk.AppendInt64(0, 2)
	probeChk.AppendInt64(1, 0)
	require.NoError(t, probeHC.hashChunk(probeChk, nil))

	buildKeyHash := hashOfIntKey(t, 1)
	matched, _, err := c.GetMatchedRowsAndPtrs(buildKeyHash, probeChk.GetRow(0), probeHC)
	require.NoError(t, err)
	require.Empty(t, matched)
	require.Equal(t, int64(1), c.stat.probeCollision)
}

func hashOfIntKey(t *testing.T, key int64) uint64 {
	fields := []*types.FieldType{types.NewFieldType(types.KindInt64)}
	hc := &hashContext{allTypes: fields, keyColIdx: []int{0}}
	chk := chunk.New(fields, 1, 1)
	chk.AppendInt64(0, key)
	require.NoError(t, hc.hashChunk(chk, nil))
	return hc.hashVals[0].Sum64()
}

func TestHashRowContainerMatchedStatus(t *testing.T) {
	fields := joinTestTypes()
	hc := &hashContext{allTypes: fields, keyColIdx: []int{0}}
	c := newHashRowContainer(hc, fields, 32)
	defer func() { require.NoError(t, c.Close()) }()

	for i := int64(0); i < 3; i++ {
		chk := chunk.New(fields, 1, 32)
		chk.AppendInt64(0, i)
		chk.AppendInt64(1, i*10)
		_, err := c.AppendRow(chk.GetRow(0))
		require.NoError(t, err)
	}
	require.NoError(t, c.buildHashTable(nil))

	ptr := chunk.RowPtr{ChkIdx: 0, RowIdx: 1}
	require.False(t, c.isMatched(ptr))
	c.markMatched(ptr)
	require.True(t, c.isMatched(ptr))
	require.Len(t, c.unmatchedRowPtrs(), 2)
}
