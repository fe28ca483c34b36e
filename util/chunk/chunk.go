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
	"unsafe"

	"github.com/keeldb/keel/types"
)

// InitialCapacity is the default initial capacity of a chunk.
const InitialCapacity = 32

// Chunk stores multiple rows of data.
// The number of rows it may hold is bounded by requiredRows: callers use
// IsFull to decide when to hand the chunk over and allocate a fresh one.
type Chunk struct {
	fields []*types.FieldType
	rows   [][]types.Datum
	// capacity indicates the max number of rows this chunk is expected to
	// hold. requiredRows indicates how many rows the parent executor wants;
	// it is always in (0, capacity].
	capacity     int
	requiredRows int
}

// New creates a Chunk with the given field types, initial capacity and the
// max number of rows.
func New(fields []*types.FieldType, capacity, maxChunkSize int) *Chunk {
	if capacity > maxChunkSize {
		capacity = maxChunkSize
	}
	return &Chunk{
		fields:       fields,
		rows:         make([][]types.Datum, 0, capacity),
		capacity:     capacity,
		requiredRows: capacity,
	}
}

// NewChunkWithCapacity creates a new chunk with the given field types and
// capacity.
func NewChunkWithCapacity(fields []*types.FieldType, capacity int) *Chunk {
	return New(fields, capacity, capacity)
}

// NumCols returns the number of columns in the chunk.
func (c *Chunk) NumCols() int { return len(c.fields) }

// NumRows returns the number of rows in the chunk.
func (c *Chunk) NumRows() int { return len(c.rows) }

// Capacity returns the max number of rows this chunk can hold.
func (c *Chunk) Capacity() int { return c.capacity }

// FieldTypes returns the field types of the chunk.
func (c *Chunk) FieldTypes() []*types.FieldType { return c.fields }

// RequiredRows returns how many rows is considered full for this chunk.
func (c *Chunk) RequiredRows() int { return c.requiredRows }

// SetRequiredRows sets the number of rows the parent executor wants.
func (c *Chunk) SetRequiredRows(requiredRows, maxChunkSize int) *Chunk {
	if requiredRows <= 0 || requiredRows > maxChunkSize {
		requiredRows = maxChunkSize
	}
	c.requiredRows = requiredRows
	return c
}

// IsFull returns if this chunk is considered full.
func (c *Chunk) IsFull() bool {
	return len(c.rows) >= c.requiredRows
}

// Reset resets the chunk, so the memory it holds can be reused.
func (c *Chunk) Reset() {
	c.rows = c.rows[:0]
}

// GetRow gets the Row in the chunk with the row index.
func (c *Chunk) GetRow(idx int) Row {
	return Row{c: c, idx: idx}
}

// AppendRow appends a row to the chunk. The datums of the row are copied so
// the chunk does not alias the source row's backing storage.
func (c *Chunk) AppendRow(row Row) {
	c.AppendDatums(row.GetDatums()...)
}

// AppendPartialRow appends the row's datums starting at column colOff.
// Columns before colOff of the destination row must already be present:
// the call either starts a new row (colOff == 0) or completes the row
// appended by the previous AppendPartialRow call.
func (c *Chunk) AppendPartialRow(colOff int, row Row) {
	if colOff == 0 {
		c.rows = append(c.rows, make([]types.Datum, 0, len(c.fields)))
	}
	last := len(c.rows) - 1
	c.rows[last] = append(c.rows[last], row.GetDatums()...)
}

// AppendDatums appends one row of datum values to the chunk.
func (c *Chunk) AppendDatums(ds ...types.Datum) {
	row := make([]types.Datum, len(ds))
	copy(row, ds)
	c.rows = append(c.rows, row)
}

// AppendInt64 appends an int64 value to the colIdx column of the last open
// row, starting a new row when colIdx is 0. Used by tests to fill chunks
// column by column.
func (c *Chunk) AppendInt64(colIdx int, i int64) {
	c.appendCell(colIdx, types.NewIntDatum(i))
}

// AppendString appends a string value to the colIdx column of the last open
// row, starting a new row when colIdx is 0.
func (c *Chunk) AppendString(colIdx int, s string) {
	c.appendCell(colIdx, types.NewStringDatum(s))
}

// AppendNull appends a null value to the colIdx column of the last open row,
// starting a new row when colIdx is 0.
func (c *Chunk) AppendNull(colIdx int) {
	c.appendCell(colIdx, types.Datum{})
}

func (c *Chunk) appendCell(colIdx int, d types.Datum) {
	if colIdx == 0 {
		c.rows = append(c.rows, make([]types.Datum, 0, len(c.fields)))
	}
	last := len(c.rows) - 1
	c.rows[last] = append(c.rows[last], d)
}

// MemoryUsage returns the total memory usage of this chunk in bytes.
func (c *Chunk) MemoryUsage() (sum int64) {
	for i := range c.rows {
		sum += datumsSize(c.rows[i])
	}
	return sum
}

func datumsSize(ds []types.Datum) int64 {
	size := int64(unsafe.Sizeof(types.Datum{})) * int64(len(ds))
	for i := range ds {
		size += int64(len(ds[i].GetBytes()))
	}
	return size
}

// Row represents one row in a Chunk.
type Row struct {
	c   *Chunk
	idx int
}

// Chunk returns the Chunk which the row belongs to.
func (r Row) Chunk() *Chunk { return r.c }

// Idx returns the row index of the Chunk.
func (r Row) Idx() int { return r.idx }

// Len returns the number of values in the row.
func (r Row) Len() int { return len(r.c.rows[r.idx]) }

// IsEmpty returns true if the Row is the zero value, which is used as the
// end sentinel by iterators.
func (r Row) IsEmpty() bool { return r == Row{} }

// GetDatum returns the datum of the colIdx column.
func (r Row) GetDatum(colIdx int) types.Datum {
	return r.c.rows[r.idx][colIdx]
}

// GetDatums returns all datum values of the row.
func (r Row) GetDatums() []types.Datum {
	return r.c.rows[r.idx]
}

// IsNull returns whether the colIdx column value is null.
func (r Row) IsNull(colIdx int) bool {
	return r.c.rows[r.idx][colIdx].IsNull()
}

// GetInt64 returns the int64 value of the colIdx column.
func (r Row) GetInt64(colIdx int) int64 {
	return r.c.rows[r.idx][colIdx].GetInt64()
}

// GetString returns the string value of the colIdx column.
func (r Row) GetString(colIdx int) string {
	return r.c.rows[r.idx][colIdx].GetString()
}

// MutRow represents a mutable Row not attached to a batch.
// It is used to assemble a row value for predicate evaluation before the
// row is committed to an output chunk.
type MutRow Row

// MutRowFromDatums creates a MutRow from a datum slice. The datums are not
// copied; the caller keeps ownership.
func MutRowFromDatums(ds []types.Datum) MutRow {
	c := &Chunk{rows: [][]types.Datum{ds}}
	return MutRow{c: c, idx: 0}
}

// ToRow converts the MutRow to a Row.
func (mr MutRow) ToRow() Row { return Row(mr) }

// Len returns the number of values in the mutable row.
func (mr MutRow) Len() int { return len(mr.c.rows[mr.idx]) }

// SetDatum sets the datum of the colIdx column.
func (mr MutRow) SetDatum(colIdx int, d types.Datum) {
	mr.c.rows[mr.idx][colIdx] = d
}

// RowPtr is used to get a row from a list.
// It is only valid for the list that returned it.
type RowPtr struct {
	ChkIdx uint32
	RowIdx uint32
}
