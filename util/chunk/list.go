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
	"github.com/keeldb/keel/util/memory"
)

// List holds a slice of chunks, use to append rows with max chunk size
// properly handled.
type List struct {
	fieldTypes    []*types.FieldType
	initChunkSize int
	maxChunkSize  int
	length        int
	chunks        []*Chunk
	memTracker    *memory.Tracker
}

// NewList creates a new List with field types, init chunk size and max chunk
// size.
func NewList(fieldTypes []*types.FieldType, initChunkSize, maxChunkSize int) *List {
	return &List{
		fieldTypes:    fieldTypes,
		initChunkSize: initChunkSize,
		maxChunkSize:  maxChunkSize,
		memTracker:    memory.NewTracker(memory.LabelForChunkList, -1),
	}
}

// GetMemTracker returns the memory tracker of this List.
func (l *List) GetMemTracker() *memory.Tracker { return l.memTracker }

// FieldTypes returns the fieldTypes of the list.
func (l *List) FieldTypes() []*types.FieldType { return l.fieldTypes }

// Len returns the length of the List.
func (l *List) Len() int { return l.length }

// NumChunks returns the number of chunks in the List.
func (l *List) NumChunks() int { return len(l.chunks) }

// GetChunk gets the Chunk by ChkIdx.
func (l *List) GetChunk(chkIdx int) *Chunk { return l.chunks[chkIdx] }

// NumRowsOfChunk returns the number of rows of a chunk.
func (l *List) NumRowsOfChunk(chkIdx int) int { return l.chunks[chkIdx].NumRows() }

// AppendRow appends a row to the List, the row is copied to the List.
func (l *List) AppendRow(row Row) RowPtr {
	chkIdx := len(l.chunks) - 1
	if chkIdx == -1 || l.chunks[chkIdx].NumRows() >= l.chunks[chkIdx].Capacity() {
		newChk := l.allocChunk()
		l.chunks = append(l.chunks, newChk)
		chkIdx++
	}
	chk := l.chunks[chkIdx]
	rowIdx := chk.NumRows()
	chk.AppendRow(row)
	l.memTracker.Consume(datumsSize(chk.rows[rowIdx]))
	l.length++
	return RowPtr{ChkIdx: uint32(chkIdx), RowIdx: uint32(rowIdx)}
}

// Add adds a chunk to the List, the chunk may be modified later by the list.
// Caller must make sure the input chk is not empty, not used any more and has
// the same field types with the list.
func (l *List) Add(chk *Chunk) {
	if chk.NumRows() == 0 {
		panic("chunk appended to List should have at least 1 row")
	}
	l.memTracker.Consume(chk.MemoryUsage())
	l.chunks = append(l.chunks, chk)
	l.length += chk.NumRows()
}

func (l *List) allocChunk() *Chunk {
	if len(l.chunks) > 0 {
		lastCap := l.chunks[len(l.chunks)-1].Capacity()
		if lastCap*2 <= l.maxChunkSize {
			lastCap *= 2
		} else {
			lastCap = l.maxChunkSize
		}
		return New(l.fieldTypes, lastCap, l.maxChunkSize)
	}
	return New(l.fieldTypes, l.initChunkSize, l.maxChunkSize)
}

// GetRow gets a Row from the list by RowPtr.
func (l *List) GetRow(ptr RowPtr) Row {
	return l.chunks[ptr.ChkIdx].GetRow(int(ptr.RowIdx))
}

// Reset resets the List.
func (l *List) Reset() {
	l.length = 0
	l.chunks = l.chunks[:0]
	l.memTracker.ReplaceBytesUsed(0)
}

// Clear releases the chunks and the memory they hold.
func (l *List) Clear() {
	l.length = 0
	l.chunks = nil
	l.memTracker.ReplaceBytesUsed(0)
}
