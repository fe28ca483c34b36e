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

	"github.com/keeldb/keel/types"
	"github.com/keeldb/keel/util/chunk"
)

// Column represents a column reference by offset in the evaluated row.
type Column struct {
	RetType *types.FieldType
	Index   int
}

// Eval implements the Expression interface.
func (col *Column) Eval(row chunk.Row) (types.Datum, error) {
	return row.GetDatum(col.Index), nil
}

// GetType implements the Expression interface.
func (col *Column) GetType() *types.FieldType {
	return col.RetType
}

// String implements the fmt.Stringer interface.
func (col *Column) String() string {
	return fmt.Sprintf("col_%d", col.Index)
}

// Constant stands for a constant value.
type Constant struct {
	Value   types.Datum
	RetType *types.FieldType
}

// Eval implements the Expression interface.
func (c *Constant) Eval(chunk.Row) (types.Datum, error) {
	return c.Value, nil
}

// GetType implements the Expression interface.
func (c *Constant) GetType() *types.FieldType {
	return c.RetType
}

// String implements the fmt.Stringer interface.
func (c *Constant) String() string {
	if c.Value.IsNull() {
		return "null"
	}
	return fmt.Sprintf("const(%v)", c.Value)
}
