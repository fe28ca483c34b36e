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

package codec

import (
	"hash/fnv"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keeldb/keel/types"
)

func TestEncodeDecodeRow(t *testing.T) {
	row := []types.Datum{
		types.NewIntDatum(-42),
		types.NewUintDatum(42),
		types.NewFloat64Datum(3.25),
		types.NewStringDatum("probe"),
		types.NewBytesDatum([]byte{0x0, 0x1}),
		{},
	}
	b := EncodeRow(nil, row)
	decoded, err := DecodeRow(b, len(row))
	require.NoError(t, err)
	require.Len(t, decoded, len(row))
	for i := range row {
		cmp, err := row[i].Compare(decoded[i])
		require.NoError(t, err)
		require.Zero(t, cmp)
	}

	_, err = DecodeRow(b[:len(b)-1], len(row))
	require.Error(t, err)
	_, err = DecodeRow(b, len(row)-1)
	require.Error(t, err)
}

func TestHashDatumEquivalence(t *testing.T) {
	sum := func(d types.Datum) uint64 {
		h := fnv.New64()
		require.NoError(t, HashDatum(h, d))
		return h.Sum64()
	}
	// Signed and unsigned keys holding the same non-negative value must
	// land in the same bucket.
	require.Equal(t, sum(types.NewIntDatum(7)), sum(types.NewUintDatum(7)))
	require.NotEqual(t, sum(types.NewIntDatum(7)), sum(types.NewIntDatum(8)))
	// String and bytes keys of identical content hash alike.
	require.Equal(t, sum(types.NewStringDatum("k")), sum(types.NewBytesDatum([]byte("k"))))
	// Null hashes but never equals a value.
	require.NotEqual(t, sum(types.Datum{}), sum(types.NewIntDatum(0)))
	// Negative zero compares equal to zero, so it must hash equal too.
	require.Equal(t, sum(types.NewFloat64Datum(math.Copysign(0, -1))), sum(types.NewFloat64Datum(0)))
}
