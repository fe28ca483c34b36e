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
	"github.com/keeldb/keel/types"
	"github.com/keeldb/keel/util/codec"
)

func encodeRow(buf []byte, row Row) []byte {
	return codec.EncodeRow(buf, row.GetDatums())
}

func decodeRow(buf []byte, fieldTypes []*types.FieldType) (Row, error) {
	ds, err := codec.DecodeRow(buf, len(fieldTypes))
	if err != nil {
		return Row{}, err
	}
	chk := NewChunkWithCapacity(fieldTypes, 1)
	chk.AppendDatums(ds...)
	return chk.GetRow(0), nil
}
