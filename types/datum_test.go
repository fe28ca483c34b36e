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

package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDatumCompare(t *testing.T) {
	tests := []struct {
		lhs Datum
		rhs Datum
		ret int
	}{
		{NewIntDatum(1), NewIntDatum(1), 0},
		{NewIntDatum(1), NewIntDatum(2), -1},
		{NewIntDatum(-1), NewUintDatum(1), -1},
		{NewUintDatum(3), NewIntDatum(2), 1},
		{NewFloat64Datum(1.5), NewIntDatum(1), 1},
		{NewStringDatum("abc"), NewStringDatum("abd"), -1},
		{NewStringDatum("abc"), NewBytesDatum([]byte("abc")), 0},
		{Datum{}, NewIntDatum(0), -1},
		{Datum{}, Datum{}, 0},
	}
	for _, tt := range tests {
		cmp, err := tt.lhs.Compare(tt.rhs)
		require.NoError(t, err)
		require.Equal(t, tt.ret, cmp)
	}

	str := NewStringDatum("1")
	one := NewIntDatum(1)
	_, err := str.Compare(one)
	require.Error(t, err)
}

func TestDatumToBool(t *testing.T) {
	d := NewIntDatum(0)
	b, err := d.ToBool()
	require.NoError(t, err)
	require.False(t, b)

	d = NewFloat64Datum(0.5)
	b, err = d.ToBool()
	require.NoError(t, err)
	require.True(t, b)

	d = NewStringDatum("")
	b, err = d.ToBool()
	require.NoError(t, err)
	require.False(t, b)

	d = Datum{}
	_, err = d.ToBool()
	require.Error(t, err)
}
